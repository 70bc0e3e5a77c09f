package lots

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"merx/internal/core/entity"
	"merx/internal/core/id"
)

func datePtr(t time.Time) *time.Time { return &t }

func TestLotStatus(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		expiry *time.Time
		want   ExpiryStatus
	}{
		{"no expiry date", nil, StatusUnmanaged},
		{"expired yesterday", datePtr(now.AddDate(0, 0, -1)), StatusExpired},
		{"expires today", datePtr(now), StatusExpiringSoon},
		{"expires in 30 days", datePtr(now.AddDate(0, 0, 30)), StatusExpiringSoon},
		{"expires in 31 days", datePtr(now.AddDate(0, 0, 31)), StatusOK},
		{"expires next year", datePtr(now.AddDate(1, 0, 0)), StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := &Lot{ExpiryDate: tc.expiry}
			assert.Equal(t, tc.want, l.Status(now))
		})
	}
}

func TestDaysUntilExpiry(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	l := &Lot{ExpiryDate: datePtr(now.AddDate(0, 0, 7))}
	assert.Equal(t, 7, l.DaysUntilExpiry(now))
	assert.False(t, l.IsExpired(now))

	l = &Lot{ExpiryDate: datePtr(now.AddDate(0, 0, -3))}
	assert.Equal(t, -3, l.DaysUntilExpiry(now))
	assert.True(t, l.IsExpired(now))

	// Expired within the last 24h still counts as a day behind.
	l = &Lot{ExpiryDate: datePtr(now.Add(-6 * time.Hour))}
	assert.Equal(t, -1, l.DaysUntilExpiry(now))
	assert.True(t, l.IsExpired(now))
	assert.Equal(t, StatusExpired, l.Status(now))

	l = &Lot{}
	assert.False(t, l.IsExpired(now))
}

func TestLotValidate(t *testing.T) {
	ctx := context.Background()
	productID := id.New()

	ok := New(productID, "L-100", 5, nil, nil)
	assert.NoError(t, ok.Validate(ctx))

	missing := New(productID, "  ", 5, nil, nil)
	assert.Error(t, missing.Validate(ctx))

	negative := &Lot{BaseEntity: entity.NewBaseEntity(), ProductID: productID, LotNumber: "L", Quantity: -1}
	assert.Error(t, negative.Validate(ctx))

	mfg := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	exp := mfg.AddDate(0, 0, -1)
	backwards := New(productID, "L", 1, &mfg, &exp)
	assert.Error(t, backwards.Validate(ctx))
}
