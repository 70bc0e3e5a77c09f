package auth

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"merx/internal/core/apperror"
	"merx/pkg/logger"
)

// Operator is a statically configured login identity. Operators are
// provisioned through configuration, not through the API.
type Operator struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
}

// Service authenticates operators against the configured credential set
// and issues access tokens.
type Service struct {
	operators map[string]Operator
	jwt       *JWTService
}

// NewService creates an auth service over a static operator set.
func NewService(operators []Operator, jwtService *JWTService) *Service {
	byName := make(map[string]Operator, len(operators))
	for _, op := range operators {
		byName[op.Username] = op
	}
	return &Service{operators: byName, jwt: jwtService}
}

// LoginResult carries the issued token and its expiry.
type LoginResult struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Username    string    `json:"username"`
	Role        string    `json:"role"`
}

// Login verifies the credentials and issues an access token. The error
// is identical for an unknown username and a wrong password.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	op, ok := s.operators[username]
	if !ok {
		// Burn a comparison so unknown usernames take the same time.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"), []byte(password))
		return nil, apperror.NewNotAuthenticated("Invalid username or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		logger.Warn(ctx, "failed login attempt", "username", username)
		return nil, apperror.NewNotAuthenticated("Invalid username or password")
	}

	token, expiresAt, err := s.jwt.GenerateAccessToken(op.ID, op.Username, op.Role)
	if err != nil {
		return nil, apperror.NewInternal(err)
	}

	return &LoginResult{
		AccessToken: token,
		ExpiresAt:   expiresAt,
		Username:    op.Username,
		Role:        op.Role,
	}, nil
}

// ParseOperators parses the operator credential list from its
// configuration form: comma-separated "id:username:bcrypt-hash:role"
// entries. Role may be omitted.
func ParseOperators(raw string) ([]Operator, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var operators []Operator
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) < 3 {
			return nil, apperror.NewValidation("operators: expected id:username:hash[:role], got " + entry)
		}
		op := Operator{
			ID:           parts[0],
			Username:     parts[1],
			PasswordHash: parts[2],
		}
		if len(parts) == 4 {
			op.Role = parts[3]
		}
		operators = append(operators, op)
	}
	return operators, nil
}
