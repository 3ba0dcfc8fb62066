// Package events publishes order lifecycle events.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"fusion-swap/pkg/types"
)

// Kind names a lifecycle event.
type Kind string

const (
	KindSubmitted      Kind = "order.submitted"
	KindStateChanged   Kind = "order.state_changed"
	KindSecretRevealed Kind = "order.secret_revealed"
	KindRevealFailed   Kind = "order.reveal_failed"
	KindTerminal       Kind = "order.terminal"
)

// Event is one lifecycle notification for an order.
type Event struct {
	ID        string           `json:"id"`
	Kind      Kind             `json:"kind"`
	OrderHash string           `json:"orderHash"`
	State     types.OrderState `json:"state,omitempty"`
	Previous  types.OrderState `json:"previous,omitempty"`
	Idx       *int             `json:"idx,omitempty"`
	Message   string           `json:"message,omitempty"`
	Time      time.Time        `json:"time"`
}

// New stamps an event with an id and the current time.
func New(kind Kind, orderHash string) Event {
	return Event{
		ID:        uuid.NewString(),
		Kind:      kind,
		OrderHash: orderHash,
		Time:      time.Now().UTC(),
	}
}

// WithState sets the state transition carried by the event.
func (e Event) WithState(previous, current types.OrderState) Event {
	e.Previous = previous
	e.State = current
	return e
}

// WithIdx sets the fill index carried by the event.
func (e Event) WithIdx(idx int) Event {
	e.Idx = &idx
	return e
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// LogPublisher writes events to a structured logger.
type LogPublisher struct {
	log *slog.Logger
}

// NewLogPublisher creates a publisher that logs every event at info level.
func NewLogPublisher(log *slog.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) error {
	attrs := []any{
		"event_id", event.ID,
		"order_hash", event.OrderHash,
	}
	if event.State != "" {
		attrs = append(attrs, "state", event.State)
	}
	if event.Previous != "" {
		attrs = append(attrs, "previous", event.Previous)
	}
	if event.Idx != nil {
		attrs = append(attrs, "idx", *event.Idx)
	}
	if event.Message != "" {
		attrs = append(attrs, "message", event.Message)
	}
	p.log.InfoContext(ctx, string(event.Kind), attrs...)
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Multi fans an event out to several publishers. Every publisher sees every
// event; their errors are joined.
type Multi struct {
	mu         sync.RWMutex
	publishers []Publisher
}

// NewMulti creates a fan-out publisher.
func NewMulti(publishers ...Publisher) *Multi {
	m := &Multi{}
	for _, p := range publishers {
		m.Add(p)
	}
	return m
}

// Add registers another publisher. Nil publishers are ignored.
func (m *Multi) Add(p Publisher) {
	if p == nil {
		return
	}
	m.mu.Lock()
	m.publishers = append(m.publishers, p)
	m.mu.Unlock()
}

func (m *Multi) Publish(ctx context.Context, event Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var err error
	for _, p := range m.publishers {
		err = errors.Join(err, p.Publish(ctx, event))
	}
	return err
}

func (m *Multi) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var err error
	for _, p := range m.publishers {
		err = errors.Join(err, p.Close())
	}
	m.publishers = nil
	return err
}
