package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fusion-swap/pkg/events"
	"fusion-swap/pkg/hashlock"
	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/types"
)

const orderHash = "0xorder"

type round struct {
	ready     []int
	readyErr  error
	status    types.OrderState
	statusErr error
}

type submission struct {
	idx    int
	secret string
}

type fakeRelayer struct {
	mu          sync.Mutex
	secrets     *hashlock.SecretSet
	rounds      []round
	readyCalls  int
	statusCalls int
	submitted   []submission
	attempts    map[int]int
	failFirst   map[int]int
}

func (f *fakeRelayer) current(n int) round {
	if n >= len(f.rounds) {
		return f.rounds[len(f.rounds)-1]
	}
	return f.rounds[n]
}

func (f *fakeRelayer) GetReadyToAcceptSecretFills(_ context.Context, hash string) (*types.ReadyFills, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.current(f.readyCalls)
	f.readyCalls++
	if r.readyErr != nil {
		return nil, r.readyErr
	}
	ready := &types.ReadyFills{}
	for _, idx := range r.ready {
		ready.Fills = append(ready.Fills, types.Fill{Idx: idx})
	}
	return ready, nil
}

func (f *fakeRelayer) SubmitSecret(_ context.Context, hash, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := -1
	if f.secrets != nil {
		for i := 0; i < f.secrets.Len(); i++ {
			if s, _ := f.secrets.Hex(i); s == secret {
				idx = i
			}
		}
	}
	if f.attempts == nil {
		f.attempts = map[int]int{}
	}
	f.attempts[idx]++
	if f.failFirst[idx] >= f.attempts[idx] {
		return types.NetworkError("submit secret", 502, "bad gateway", nil)
	}
	f.submitted = append(f.submitted, submission{idx: idx, secret: secret})
	return nil
}

func (f *fakeRelayer) GetOrderStatus(_ context.Context, hash string) (*types.OrderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := f.current(f.statusCalls)
	f.statusCalls++
	if r.statusErr != nil {
		return nil, r.statusErr
	}
	return &types.OrderStatus{OrderHash: hash, Status: r.status}, nil
}

func (f *fakeRelayer) submittedIdx() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, 0, len(f.submitted))
	for _, s := range f.submitted {
		out = append(out, s.idx)
	}
	return out
}

type capture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capture) Publish(_ context.Context, e events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *capture) Close() error { return nil }

func (c *capture) kinds(kind events.Kind) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, e := range c.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func newMonitor(relayer Relayer, publisher events.Publisher) *Monitor {
	return New(relayer,
		WithInterval(time.Millisecond),
		WithLogger(logger.Discard()),
		WithPublisher(publisher),
	)
}

func newSecrets(t *testing.T, n int) *hashlock.SecretSet {
	t.Helper()
	set, err := hashlock.NewSecretSet(n)
	require.NoError(t, err)
	return set
}

func TestWatchTwoFills(t *testing.T) {
	secrets := newSecrets(t, 2)
	relayer := &fakeRelayer{
		secrets: secrets,
		rounds: []round{
			{status: types.StateSubmitted},
			{ready: []int{0}, status: types.StatePartiallyFilled},
			{ready: []int{0, 1}, status: types.StatePartiallyFilled},
			{ready: []int{0, 1}, status: types.StateExecuted},
		},
	}
	sink := &capture{}

	state, err := newMonitor(relayer, sink).Watch(context.Background(), orderHash, secrets, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)

	require.Equal(t, []int{0, 1}, relayer.submittedIdx(), "each secret revealed exactly once, in order")
	for _, s := range relayer.submitted {
		want, err := secrets.Hex(s.idx)
		require.NoError(t, err)
		require.Equal(t, want, s.secret)
	}

	require.Len(t, sink.kinds("order.secret_revealed"), 2)
	changes := sink.kinds("order.state_changed")
	require.Len(t, changes, 2)
	require.Equal(t, types.StatePartiallyFilled, changes[0].State)
	require.Equal(t, types.StateExecuted, changes[1].State)
	require.Len(t, sink.kinds("order.terminal"), 1)
}

func TestWatchSingleSecretOnlyAfterReady(t *testing.T) {
	secrets := newSecrets(t, 1)
	relayer := &fakeRelayer{
		secrets: secrets,
		rounds: []round{
			{status: types.StateSubmitted},
			{status: types.StateSubmitted},
			{ready: []int{0}, status: types.StateExecuted},
		},
	}

	state, err := newMonitor(relayer, nil).Watch(context.Background(), orderHash, secrets, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)
	require.Equal(t, []int{0}, relayer.submittedIdx())
	require.Equal(t, 3, relayer.readyCalls)
}

func TestWatchNetworkErrorsDoNotStopLoop(t *testing.T) {
	secrets := newSecrets(t, 1)
	netErr := types.NetworkError("get order status", 0, "", errors.New("connection reset"))
	relayer := &fakeRelayer{
		secrets: secrets,
		rounds: []round{
			{readyErr: netErr, statusErr: netErr},
			{readyErr: netErr, statusErr: netErr},
			{ready: []int{0}, status: types.StateExecuted},
		},
	}

	state, err := newMonitor(relayer, nil).Watch(context.Background(), orderHash, secrets, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)
	require.Equal(t, 3, relayer.statusCalls)
}

func TestWatchRetriesFailedReveal(t *testing.T) {
	secrets := newSecrets(t, 1)
	relayer := &fakeRelayer{
		secrets:   secrets,
		failFirst: map[int]int{0: 1},
		rounds: []round{
			{ready: []int{0}, status: types.StateSubmitted},
			{ready: []int{0}, status: types.StateSubmitted},
			{ready: []int{0}, status: types.StateExecuted},
		},
	}
	sink := &capture{}

	state, err := newMonitor(relayer, sink).Watch(context.Background(), orderHash, secrets, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)
	require.Equal(t, 2, relayer.attempts[0])
	require.Equal(t, []int{0}, relayer.submittedIdx())
	require.Len(t, sink.kinds("order.reveal_failed"), 1)
}

func TestWatchIgnoresOutOfRangeFill(t *testing.T) {
	secrets := newSecrets(t, 1)
	relayer := &fakeRelayer{
		secrets: secrets,
		rounds: []round{
			{ready: []int{5, -1}, status: types.StateSubmitted},
			{ready: []int{5}, status: types.StateExpired},
		},
	}

	state, err := newMonitor(relayer, nil).Watch(context.Background(), orderHash, secrets, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateExpired, state)
	require.Empty(t, relayer.submittedIdx())
}

func TestWatchKeepsStateOnUnknownOrBackwardsStatus(t *testing.T) {
	relayer := &fakeRelayer{
		rounds: []round{
			{status: types.StatePartiallyFilled},
			{status: types.StateSubmitted},
			{status: types.OrderState("Settling")},
			{status: types.StateCreated},
			{status: types.StateRefunded},
		},
	}
	sink := &capture{}

	state, err := newMonitor(relayer, sink).Watch(context.Background(), orderHash, nil, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateRefunded, state)

	changes := sink.kinds("order.state_changed")
	require.Len(t, changes, 2)
	require.Equal(t, types.StateSubmitted, changes[0].Previous)
	require.Equal(t, types.StatePartiallyFilled, changes[0].State)
	require.Equal(t, types.StatePartiallyFilled, changes[1].Previous)
	require.Equal(t, types.StateRefunded, changes[1].State)
}

func TestWatchResumesWithRevealed(t *testing.T) {
	secrets := newSecrets(t, 3)
	relayer := &fakeRelayer{
		secrets: secrets,
		rounds: []round{
			{ready: []int{0, 1, 2}, status: types.StateExecuted},
		},
	}

	state, err := newMonitor(relayer, nil).Watch(context.Background(), orderHash, secrets, WatchOptions{
		InitialState: types.StatePartiallyFilled,
		Revealed:     []int{0, 2},
	})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)
	require.Equal(t, []int{1}, relayer.submittedIdx())
}

func TestWatchWithoutSecretsNeverReveals(t *testing.T) {
	relayer := &fakeRelayer{
		rounds: []round{
			{ready: []int{0}, status: types.StatePartiallyFilled},
			{ready: []int{0}, status: types.StateExecuted},
		},
	}

	state, err := newMonitor(relayer, nil).Watch(context.Background(), orderHash, nil, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)
	require.Empty(t, relayer.submitted)
}

func TestWatchCancellation(t *testing.T) {
	relayer := &fakeRelayer{rounds: []round{{status: types.StatePartiallyFilled}}}
	m := New(relayer, WithInterval(5*time.Millisecond), WithLogger(logger.Discard()))

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	state, err := m.Watch(ctx, orderHash, nil, WatchOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, types.StatePartiallyFilled, state)
	require.GreaterOrEqual(t, relayer.statusCalls, 1)
}

func TestWatchTerminalInitialState(t *testing.T) {
	relayer := &fakeRelayer{rounds: []round{{status: types.StateSubmitted}}}

	state, err := newMonitor(relayer, nil).Watch(context.Background(), orderHash, nil, WatchOptions{InitialState: types.StateExpired})
	require.NoError(t, err)
	require.Equal(t, types.StateExpired, state)
	require.Zero(t, relayer.statusCalls)

	_, err = newMonitor(relayer, nil).Watch(context.Background(), "", nil, WatchOptions{})
	require.True(t, types.IsKind(err, types.KindProtocol))
}

func TestWatchFromCreatedAcceptsTerminalStatus(t *testing.T) {
	relayer := &fakeRelayer{rounds: []round{{status: types.StateExecuted}}}
	sink := &capture{}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	state, err := newMonitor(relayer, sink).Watch(ctx, orderHash, nil, WatchOptions{InitialState: types.StateCreated})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)

	changes := sink.kinds("order.state_changed")
	require.Len(t, changes, 1)
	require.Equal(t, types.StateCreated, changes[0].Previous)
	require.Equal(t, types.StateExecuted, changes[0].State)
}

func TestWatchFromCreatedSkipsToPartiallyFilled(t *testing.T) {
	relayer := &fakeRelayer{
		rounds: []round{
			{status: types.StatePartiallyFilled},
			{status: types.StateExpired},
		},
	}
	sink := &capture{}

	state, err := newMonitor(relayer, sink).Watch(context.Background(), orderHash, nil, WatchOptions{InitialState: types.StateCreated})
	require.NoError(t, err)
	require.Equal(t, types.StateExpired, state)

	changes := sink.kinds("order.state_changed")
	require.Len(t, changes, 2)
	require.Equal(t, types.StatePartiallyFilled, changes[0].State)
	require.Equal(t, types.StateExpired, changes[1].State)
}

func TestWatchIgnoresRelayerFailedAndCancelled(t *testing.T) {
	relayer := &fakeRelayer{
		rounds: []round{
			{status: types.OrderState("Failed")},
			{status: types.OrderState("cancelled")},
			{status: types.StateExecuted},
		},
	}
	sink := &capture{}

	state, err := newMonitor(relayer, sink).Watch(context.Background(), orderHash, nil, WatchOptions{})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)

	changes := sink.kinds("order.state_changed")
	require.Len(t, changes, 1)
	require.Equal(t, types.StateSubmitted, changes[0].Previous)
	require.Equal(t, types.StateExecuted, changes[0].State)

	relayer.mu.Lock()
	defer relayer.mu.Unlock()
	require.Equal(t, 3, relayer.statusCalls)
}
