package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"merx/internal/core/id"
)

func TestPublisher_DeliversToAllObservers(t *testing.T) {
	p := NewPublisher()
	var got []Event

	p.Subscribe(ObserverFunc(func(ctx context.Context, ev Event) error {
		got = append(got, ev)
		return nil
	}))
	p.Subscribe(ObserverFunc(func(ctx context.Context, ev Event) error {
		got = append(got, ev)
		return nil
	}))

	p.Publish(context.Background(), NewEvent(TypeMovementRecorded, id.New(), "Beans", 5, "exit of %d", 5))
	assert.Len(t, got, 2)
	assert.Equal(t, "exit of 5", got[0].Message)
}

func TestPublisher_FailingObserverDoesNotBlockOthers(t *testing.T) {
	p := NewPublisher()
	delivered := false

	p.Subscribe(ObserverFunc(func(ctx context.Context, ev Event) error {
		return errors.New("webhook down")
	}))
	p.Subscribe(ObserverFunc(func(ctx context.Context, ev Event) error {
		panic("observer bug")
	}))
	p.Subscribe(ObserverFunc(func(ctx context.Context, ev Event) error {
		delivered = true
		return nil
	}))

	// Must not panic and must reach the last observer.
	p.Publish(context.Background(), NewEvent(TypeLotAdjusted, id.New(), "", 1, "adjusted"))
	assert.True(t, delivered)
}
