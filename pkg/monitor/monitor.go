// Package monitor drives a submitted order to a terminal state, revealing
// secrets as the relayer reports fills ready for them.
package monitor

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"fusion-swap/pkg/events"
	"fusion-swap/pkg/hashlock"
	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/types"
)

const DefaultPollInterval = 5 * time.Second

// Relayer is the subset of the Fusion+ API the monitor polls.
type Relayer interface {
	GetReadyToAcceptSecretFills(ctx context.Context, orderHash string) (*types.ReadyFills, error)
	SubmitSecret(ctx context.Context, orderHash, secret string) error
	GetOrderStatus(ctx context.Context, orderHash string) (*types.OrderStatus, error)
}

// Monitor polls one order at a time. A Monitor may watch several orders
// concurrently; each Watch call keeps its own state.
type Monitor struct {
	relayer   Relayer
	interval  time.Duration
	log       *slog.Logger
	publisher events.Publisher
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) Option {
	return func(m *Monitor) {
		if p != nil {
			m.publisher = p
		}
	}
}

// New creates a Monitor polling relayer.
func New(relayer Relayer, opts ...Option) *Monitor {
	m := &Monitor{
		relayer:   relayer,
		interval:  DefaultPollInterval,
		log:       logger.Named("monitor"),
		publisher: events.Nop{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WatchOptions seed a Watch call.
type WatchOptions struct {
	// InitialState is the last known state. Zero means Submitted.
	InitialState types.OrderState
	// Revealed lists fill indices whose secrets were already shared.
	Revealed []int
}

// Watch loops until the order reaches Executed, Expired or Refunded. Each
// round reveals secrets for fills the relayer reports ready, refreshes the
// status, then waits the poll interval. Transport errors are logged and the
// loop carries on. A nil secrets set watches without revealing anything.
//
// On cancellation Watch returns the last known state and ctx.Err().
func (m *Monitor) Watch(ctx context.Context, orderHash string, secrets *hashlock.SecretSet, opts WatchOptions) (types.OrderState, error) {
	if orderHash == "" {
		return "", types.ProtocolError("watch order", "order hash is required")
	}

	w := &watch{
		Monitor:   m,
		orderHash: orderHash,
		secrets:   secrets,
		state:     types.StateSubmitted,
		revealed:  make(map[int]bool, len(opts.Revealed)),
		log:       m.log.With("order_hash", orderHash),
	}
	if opts.InitialState != "" {
		w.state = opts.InitialState
	}
	for _, idx := range opts.Revealed {
		w.revealed[idx] = true
	}

	w.log.Info("watching order", "state", w.state, "revealed", len(w.revealed), "interval", m.interval)

	for !w.state.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return w.state, err
		}

		w.revealReady(ctx)
		w.refreshState(ctx)
		if w.state.IsTerminal() {
			break
		}

		if err := m.wait(ctx); err != nil {
			w.log.Info("stopped watching order", "state", w.state, "reason", err)
			return w.state, err
		}
	}

	w.log.Info("order reached terminal state", "state", w.state, "revealed", w.revealedList())
	w.publish(ctx, events.New(events.KindTerminal, orderHash).WithState(w.state, w.state))
	return w.state, nil
}

func (m *Monitor) wait(ctx context.Context) error {
	timer := time.NewTimer(m.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// watch is the per-call state of Watch.
type watch struct {
	*Monitor
	orderHash string
	secrets   *hashlock.SecretSet
	state     types.OrderState
	revealed  map[int]bool
	log       *slog.Logger
}

func (w *watch) revealReady(ctx context.Context) {
	ready, err := w.relayer.GetReadyToAcceptSecretFills(ctx, w.orderHash)
	if err != nil {
		w.log.Warn("failed to fetch ready fills", "error", err, "retryable", types.IsRetryable(err))
		return
	}

	for _, fill := range ready.Fills {
		if ctx.Err() != nil {
			return
		}
		if w.revealed[fill.Idx] {
			continue
		}
		if w.secrets == nil {
			w.log.Info("fill ready for secret", "idx", fill.Idx)
			continue
		}
		secret, err := w.secrets.Hex(fill.Idx)
		if err != nil {
			w.log.Error("relayer reported a fill outside the secret set",
				"idx", fill.Idx,
				"secrets", w.secrets.Len(),
			)
			continue
		}

		if err := w.relayer.SubmitSecret(ctx, w.orderHash, secret); err != nil {
			w.log.Warn("failed to reveal secret", "idx", fill.Idx, "error", err)
			failed := events.New(events.KindRevealFailed, w.orderHash).WithIdx(fill.Idx)
			failed.Message = err.Error()
			w.publish(ctx, failed)
			continue
		}

		w.revealed[fill.Idx] = true
		w.log.Info("secret revealed",
			"idx", fill.Idx,
			"src_escrow_tx", fill.SrcEscrowDeployTxHash,
			"dst_escrow_tx", fill.DstEscrowDeployTxHash,
		)
		w.publish(ctx, events.New(events.KindSecretRevealed, w.orderHash).WithIdx(fill.Idx).WithState(w.state, w.state))
	}
}

func (w *watch) refreshState(ctx context.Context) {
	status, err := w.relayer.GetOrderStatus(ctx, w.orderHash)
	if err != nil {
		w.log.Warn("failed to fetch order status", "error", err, "retryable", types.IsRetryable(err))
		return
	}

	next := status.Status
	switch {
	case !next.Known():
		w.log.Warn("ignoring unknown order status", "status", next, "state", w.state)
		return
	case next == w.state:
		return
	case !types.Advances(w.state, next):
		w.log.Warn("ignoring status that does not follow the current state", "status", next, "state", w.state)
		return
	}

	previous := w.state
	w.state = next
	w.log.Info("order state changed", "from", previous, "to", next)
	w.publish(ctx, events.New(events.KindStateChanged, w.orderHash).WithState(previous, next))
}

func (w *watch) publish(ctx context.Context, event events.Event) {
	if err := w.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		w.log.Warn("failed to publish event", "kind", event.Kind, "error", err)
	}
}

func (w *watch) revealedList() []int {
	out := make([]int, 0, len(w.revealed))
	for idx := range w.revealed {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
