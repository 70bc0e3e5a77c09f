// Package events provides the post-commit notification publisher.
// Publishing is fire-and-forget: observer failures are logged and swallowed,
// never rolling back the mutation they describe.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"merx/internal/core/id"
	"merx/pkg/logger"
)

// Type classifies a notification event.
type Type string

const (
	TypeMovementRecorded Type = "movement.recorded"
	TypeMovementRemoved  Type = "movement.removed"
	TypeStatusChanged    Type = "movement.status_changed"
	TypeLotCreated       Type = "lot.created"
	TypeLotAdjusted      Type = "lot.adjusted"
	TypeCheckout         Type = "cart.checkout"
)

// Event describes one completed mutation for the notification surface.
// Quantity and product are always present so the operator-facing message
// can state exactly what changed.
type Event struct {
	Type          Type      `json:"type"`
	ProductID     id.ID     `json:"productId"`
	ProductName   string    `json:"productName,omitempty"`
	Quantity      int64     `json:"quantity"`
	ReceiptNumber string    `json:"receiptNumber,omitempty"`
	Message       string    `json:"message"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// NewEvent builds an event stamped with the current time.
func NewEvent(typ Type, productID id.ID, productName string, quantity int64, format string, args ...any) Event {
	return Event{
		Type:        typ,
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		Message:     fmt.Sprintf(format, args...),
		OccurredAt:  time.Now().UTC(),
	}
}

// Observer consumes published events. Errors are logged, not propagated.
type Observer interface {
	Notify(ctx context.Context, ev Event) error
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event) error

func (f ObserverFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Publisher fans events out to a registered observer list.
type Publisher struct {
	mu        sync.RWMutex
	observers []Observer
}

// NewPublisher creates an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers an observer for all future events.
func (p *Publisher) Subscribe(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, o)
}

// Publish delivers ev to every observer. A panicking or failing observer
// never affects the caller or the remaining observers.
func (p *Publisher) Publish(ctx context.Context, ev Event) {
	p.mu.RLock()
	observers := make([]Observer, len(p.observers))
	copy(observers, p.observers)
	p.mu.RUnlock()

	for _, o := range observers {
		p.notifyOne(ctx, o, ev)
	}
}

func (p *Publisher) notifyOne(ctx context.Context, o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "event observer panicked", "event_type", ev.Type, "panic", r)
		}
	}()
	if err := o.Notify(ctx, ev); err != nil {
		logger.Warn(ctx, "event observer failed", "event_type", ev.Type, "error", err)
	}
}
