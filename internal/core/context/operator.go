// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// OperatorContext contains the authenticated operator information.
type OperatorContext struct {
	OperatorID string
	Username   string
	Role       string
	SessionID  string
}

type operatorContextKey struct{}

// WithOperator adds OperatorContext to context.
func WithOperator(ctx context.Context, op *OperatorContext) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// GetOperator returns OperatorContext from context.
func GetOperator(ctx context.Context) *OperatorContext {
	if v, ok := ctx.Value(operatorContextKey{}).(*OperatorContext); ok {
		return v
	}
	return nil
}

// GetOperatorID returns operator ID from context or empty string.
func GetOperatorID(ctx context.Context) string {
	if op := GetOperator(ctx); op != nil {
		return op.OperatorID
	}
	return ""
}

// GetUsername returns operator username from context or empty string.
func GetUsername(ctx context.Context) string {
	if op := GetOperator(ctx); op != nil {
		return op.Username
	}
	return ""
}

// HasRole checks if operator has specific role.
func HasRole(ctx context.Context, role string) bool {
	op := GetOperator(ctx)
	if op == nil {
		return false
	}
	return op.Role == role
}
