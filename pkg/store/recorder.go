package store

import (
	"context"

	"fusion-swap/pkg/events"
)

// Recorder mirrors lifecycle events of one order attempt into its record.
type Recorder struct {
	store Store
	id    string
}

// NewRecorder creates a Recorder for the record id.
func NewRecorder(s Store, id string) *Recorder {
	return &Recorder{store: s, id: id}
}

func (r *Recorder) Publish(ctx context.Context, event events.Event) error {
	switch event.Kind {
	case events.KindSubmitted:
		return SetOrderHash(ctx, r.store, r.id, event.OrderHash)
	case events.KindSecretRevealed:
		if event.Idx == nil {
			return nil
		}
		return MarkRevealed(ctx, r.store, r.id, *event.Idx)
	case events.KindStateChanged, events.KindTerminal:
		return SetState(ctx, r.store, r.id, event.State)
	}
	return nil
}

func (r *Recorder) Close() error { return nil }
