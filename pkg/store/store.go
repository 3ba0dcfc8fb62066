// Package store persists order attempts so a crashed swap can resume
// monitoring and still reveal its secrets.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"fusion-swap/pkg/types"
)

// ErrNotFound is returned when no record matches.
var ErrNotFound = errors.New("order record not found")

// Record is one persisted order attempt.
type Record struct {
	ID            string            `json:"id"`
	OrderHash     string            `json:"order_hash,omitempty"`
	QuoteID       string            `json:"quote_id"`
	SrcChainID    uint64            `json:"src_chain_id"`
	DstChainID    uint64            `json:"dst_chain_id"`
	Preset        string            `json:"preset"`
	Maker         string            `json:"maker"`
	State         types.OrderState  `json:"state"`
	Revealed      []int             `json:"revealed,omitempty"`
	Order         types.SignedOrder `json:"order"`
	SecretHashes  []string          `json:"secret_hashes"`
	SealedSecrets string            `json:"sealed_secrets"` // encrypted, never plaintext
	Created       time.Time         `json:"created"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// NewRecord creates a Created record for a signed order.
func NewRecord(order *types.Order, sealedSecrets string) *Record {
	now := time.Now().UTC()
	return &Record{
		ID:            uuid.NewString(),
		QuoteID:       order.QuoteID,
		SrcChainID:    order.SrcChainID,
		DstChainID:    order.DstChainID,
		Preset:        order.Preset,
		Maker:         order.Signed.Maker,
		State:         types.StateCreated,
		Order:         order.Signed,
		SecretHashes:  append([]string(nil), order.SecretHashes...),
		SealedSecrets: sealedSecrets,
		Created:       now,
		LastUpdated:   now,
	}
}

// HasRevealed reports whether the secret at idx was already shared.
func (r *Record) HasRevealed(idx int) bool {
	for _, i := range r.Revealed {
		if i == idx {
			return true
		}
	}
	return false
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Revealed = append([]int(nil), r.Revealed...)
	cp.SecretHashes = append([]string(nil), r.SecretHashes...)
	return &cp
}

// Store persists records. Implementations are safe for concurrent use.
type Store interface {
	// Save inserts or replaces a record.
	Save(ctx context.Context, rec *Record) error
	// Get loads a record by id.
	Get(ctx context.Context, id string) (*Record, error)
	// FindByOrderHash loads the record of a submitted order.
	FindByOrderHash(ctx context.Context, orderHash string) (*Record, error)
	// List returns every record, newest first.
	List(ctx context.Context) ([]*Record, error)
	// Update applies fn to the stored record and saves the result.
	Update(ctx context.Context, id string, fn func(*Record) error) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// SetOrderHash records the relayer's hash and moves the record to Submitted.
func SetOrderHash(ctx context.Context, s Store, id, orderHash string) error {
	return s.Update(ctx, id, func(r *Record) error {
		r.OrderHash = orderHash
		if types.CanTransition(r.State, types.StateSubmitted) {
			r.State = types.StateSubmitted
		}
		return nil
	})
}

// SetState moves a record to state unless that would move it backwards.
// Once the record is terminal its sealed secrets are dropped.
func SetState(ctx context.Context, s Store, id string, state types.OrderState) error {
	return s.Update(ctx, id, func(r *Record) error {
		if types.Advances(r.State, state) {
			r.State = state
		}
		if r.State.IsTerminal() {
			r.SealedSecrets = ""
		}
		return nil
	})
}

// MarkRevealed adds idx to the record's revealed indices.
func MarkRevealed(ctx context.Context, s Store, id string, idx int) error {
	return s.Update(ctx, id, func(r *Record) error {
		if r.HasRevealed(idx) {
			return nil
		}
		r.Revealed = append(r.Revealed, idx)
		sort.Ints(r.Revealed)
		return nil
	})
}

// Pending returns records that are not yet terminal.
func Pending(ctx context.Context, s Store) ([]*Record, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*Record, 0, len(all))
	for _, r := range all {
		if !r.State.IsTerminal() {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func sortNewestFirst(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Created.After(records[j].Created)
	})
}
