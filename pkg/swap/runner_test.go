package swap

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"fusion-swap/pkg/events"
	"fusion-swap/pkg/fusion"
	"fusion-swap/pkg/hashlock"
	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/monitor"
	"fusion-swap/pkg/order"
	"fusion-swap/pkg/store"
	"fusion-swap/pkg/types"
)

const (
	testKey   = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	orderHash = "0xorder"
)

const quoteJSON = `{
  "quoteId": "q-1",
  "srcTokenAmount": "1000000",
  "dstTokenAmount": "998000",
  "srcEscrowFactory": "0xa7bcb4eac8964306f9e3764f67db6a7af6ddf99a",
  "dstEscrowFactory": "0xa7bcb4eac8964306f9e3764f67db6a7af6ddf99a",
  "recommendedPreset": "fast",
  "presets": {
    "fast": {"secretsCount": 1, "allowPartialFills": false, "allowMultipleFills": false,
             "auctionEndAmount": "990000", "startAuctionIn": 12, "auctionDuration": 180},
    "slow": {"secretsCount": 3, "allowPartialFills": true, "allowMultipleFills": true,
             "auctionEndAmount": "995000", "startAuctionIn": 24, "auctionDuration": 600}
  }
}`

var params = types.QuoteParams{
	Amount:          "1000000",
	SrcChainID:      1,
	DstChainID:      137,
	SrcTokenAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
	DstTokenAddress: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
}

// relayer is an in-memory Fusion+ API. The order becomes Executed once
// executeAfter secrets have been revealed.
type relayer struct {
	mu           sync.Mutex
	submitStatus int
	failSubmits  int
	ready        []types.Fill
	executeAfter int
	submitted    []types.SubmitRequest
	revealed     []types.SecretSubmission
}

func (f *relayer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/quoter/v1.0/quote/receive":
		_, _ = io.WriteString(w, quoteJSON)

	case path == "/relayer/v1.0/order/submit":
		if f.failSubmits > 0 {
			f.failSubmits--
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":"unavailable"}`)
			return
		}
		if f.submitStatus != 0 {
			w.WriteHeader(f.submitStatus)
			_, _ = io.WriteString(w, `{"error":"rejected"}`)
			return
		}
		var req types.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.submitted = append(f.submitted, req)
		_ = json.NewEncoder(w).Encode(types.SubmitResult{OrderHash: orderHash})

	case strings.HasPrefix(path, "/orders/v1.0/order/ready-to-accept-secret-fills/"):
		_ = json.NewEncoder(w).Encode(types.ReadyFills{Fills: f.ready})

	case path == "/relayer/v1.0/order/submit-secret":
		var sub types.SecretSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.revealed = append(f.revealed, sub)

	case strings.HasPrefix(path, "/orders/v1.0/order/status/"):
		status := types.StateSubmitted
		if len(f.revealed) >= f.executeAfter {
			status = types.StateExecuted
		}
		_, _ = io.WriteString(w, `{"status":"`+string(status)+`"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *relayer) snapshot() ([]types.SubmitRequest, []types.SecretSubmission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.SubmitRequest(nil), f.submitted...), append([]types.SecretSubmission(nil), f.revealed...)
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

func (c *capture) kinds() []events.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]events.Kind, len(c.events))
	for i, e := range c.events {
		out[i] = e.Kind
	}
	return out
}

type env struct {
	relayer *relayer
	runner  *Runner
	store   *store.FileStore
	sealer  *store.Sealer
	sink    *capture
}

func newEnv(t *testing.T, fake *relayer, opts ...Option) *env {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := fusion.NewClient(fusion.Options{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
		Logger:  logger.Discard(),
	})
	require.NoError(t, err)

	signer, err := order.NewSignerFromHex(testKey)
	require.NoError(t, err)

	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)
	sealer, err := store.NewSealer(make([]byte, 32))
	require.NoError(t, err)
	sink := &capture{}

	opts = append([]Option{
		WithStore(s, sealer),
		WithPublisher(sink),
		WithPollInterval(10 * time.Millisecond),
		WithLogger(logger.Discard()),
	}, opts...)
	runner, err := NewRunner(client, signer, opts...)
	require.NoError(t, err)

	return &env{relayer: fake, runner: runner, store: s, sealer: sealer, sink: sink}
}

func TestRunSingleSecret(t *testing.T) {
	e := newEnv(t, &relayer{ready: []types.Fill{{Idx: 0}}, executeAfter: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := e.runner.Run(ctx, Request{Params: params})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, res.State)
	require.Equal(t, orderHash, res.OrderHash)
	require.Equal(t, types.PresetFast, res.Preset)

	submitted, revealed := e.relayer.snapshot()
	require.Len(t, submitted, 1)
	sub := submitted[0]
	require.Equal(t, uint64(1), sub.SrcChainID)
	require.Equal(t, "q-1", sub.QuoteID)
	require.Len(t, sub.SecretHashes, 1)

	require.Len(t, revealed, 1)
	secret, err := hashlock.ParseSecret(revealed[0].Secret)
	require.NoError(t, err)
	require.Equal(t, sub.SecretHashes[0], hashlock.HashSecret(secret))
	require.Equal(t, sub.Order.HashLock, hashlock.HashSecret(secret))

	rec, err := e.store.FindByOrderHash(ctx, orderHash)
	require.NoError(t, err)
	require.Equal(t, res.RecordID, rec.ID)
	require.Equal(t, types.StateExecuted, rec.State)
	require.Equal(t, []int{0}, rec.Revealed)
	require.Empty(t, rec.SealedSecrets, "secrets leave the store once the order is terminal")

	require.Equal(t, []events.Kind{
		events.KindSubmitted,
		events.KindSecretRevealed,
		events.KindStateChanged,
		events.KindTerminal,
	}, e.sink.kinds())
}

func TestRunDryRun(t *testing.T) {
	e := newEnv(t, &relayer{})

	res, err := e.runner.Run(context.Background(), Request{Params: params, Preset: types.PresetSlow, DryRun: true})
	require.NoError(t, err)
	require.Equal(t, types.StateCreated, res.State)
	require.Empty(t, res.OrderHash)
	require.Equal(t, "995000", res.Order.TakingAmount)
	submitted, _ := e.relayer.snapshot()
	require.Empty(t, submitted)

	list, err := e.store.List(context.Background())
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRunSubmitRejected(t *testing.T) {
	e := newEnv(t, &relayer{submitStatus: http.StatusBadRequest})

	res, err := e.runner.Run(context.Background(), Request{Params: params})
	require.Error(t, err)
	require.True(t, types.IsKind(err, types.KindNetwork))
	require.Equal(t, types.StateFailed, res.State)

	rec, err := e.store.Get(context.Background(), res.RecordID)
	require.NoError(t, err)
	require.Equal(t, types.StateFailed, rec.State)
	_, revealed := e.relayer.snapshot()
	require.Empty(t, revealed)
}

func TestResumeRevealsOnlyRemaining(t *testing.T) {
	fake := &relayer{executeAfter: 1}
	e := newEnv(t, fake)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quote, err := e.runner.Quote(ctx, params)
	require.NoError(t, err)
	p, err := e.runner.Prepare(ctx, quote, types.PresetSlow, "")
	require.NoError(t, err)
	require.Equal(t, 3, p.Secrets().Len())

	hash, err := e.runner.Submit(ctx, p)
	require.NoError(t, err)
	require.Equal(t, orderHash, hash)

	rec, err := e.store.FindByOrderHash(ctx, orderHash)
	require.NoError(t, err)
	require.Equal(t, types.StateSubmitted, rec.State)
	require.NoError(t, store.MarkRevealed(ctx, e.store, rec.ID, 0))

	fake.mu.Lock()
	fake.ready = []types.Fill{{Idx: 0}, {Idx: 1}}
	fake.mu.Unlock()

	res, err := e.runner.Resume(ctx, orderHash)
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, res.State)

	_, revealed := fake.snapshot()
	require.Len(t, revealed, 1)
	secret, err := hashlock.ParseSecret(revealed[0].Secret)
	require.NoError(t, err)
	require.Equal(t, rec.SecretHashes[1], hashlock.HashSecret(secret))

	rec, err = e.store.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, rec.Revealed)
	require.Equal(t, types.StateExecuted, rec.State)

	again, err := e.runner.Resume(ctx, orderHash)
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, again.State)
	_, revealed = fake.snapshot()
	require.Len(t, revealed, 1, "terminal orders are not watched again")
}

type failingPreflight struct {
	calls   int
	spender common.Address
}

func (f *failingPreflight) Check(_ context.Context, _, _, spender common.Address, amount *big.Int) error {
	f.calls++
	f.spender = spender
	return errors.New("insufficient token allowance: need " + amount.String())
}

func TestPreflightBlocksSigning(t *testing.T) {
	spender := common.HexToAddress("0x111111125421cA6dc452d289314280a0f8842A65")
	pf := &failingPreflight{}
	e := newEnv(t, &relayer{}, WithPreflight(1, pf, spender))

	_, err := e.runner.Run(context.Background(), Request{Params: params})
	require.ErrorContains(t, err, "need 1000000")
	require.Equal(t, 1, pf.calls)
	require.Equal(t, spender, pf.spender)
	submitted, _ := e.relayer.snapshot()
	require.Empty(t, submitted)
}

func TestNewRunnerValidation(t *testing.T) {
	signer, err := order.NewSignerFromHex(testKey)
	require.NoError(t, err)
	client, err := fusion.NewClient(fusion.Options{APIKey: "k", Logger: logger.Discard()})
	require.NoError(t, err)

	_, err = NewRunner(nil, signer)
	require.True(t, types.IsKind(err, types.KindConfiguration))
	_, err = NewRunner(client, nil)
	require.True(t, types.IsKind(err, types.KindConfiguration))

	s, err := store.NewFileStore(filepath.Join(t.TempDir(), "orders.json"))
	require.NoError(t, err)
	_, err = NewRunner(client, signer, WithStore(s, nil))
	require.True(t, types.IsKind(err, types.KindConfiguration))

	r, err := NewRunner(client, signer)
	require.NoError(t, err)
	_, err = r.Resume(context.Background(), orderHash)
	require.ErrorIs(t, err, ErrNoStore)
}

func TestSubmitRetryReusesSecretsAndRecord(t *testing.T) {
	e := newEnv(t, &relayer{failSubmits: 1, ready: []types.Fill{{Idx: 0}}, executeAfter: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	quote, err := e.runner.Quote(ctx, params)
	require.NoError(t, err)
	p, err := e.runner.Prepare(ctx, quote, types.PresetFast, "")
	require.NoError(t, err)

	_, err = e.runner.Submit(ctx, p)
	require.Error(t, err)
	require.True(t, CanResubmit(err))
	require.Equal(t, 1, p.Secrets().Len())

	rec, err := e.store.Get(ctx, p.RecordID)
	require.NoError(t, err)
	require.Equal(t, types.StateCreated, rec.State)
	require.NotEmpty(t, rec.SealedSecrets)
	firstID := p.RecordID

	hash, err := e.runner.Submit(ctx, p)
	require.NoError(t, err)
	require.Equal(t, orderHash, hash)
	require.Equal(t, firstID, p.RecordID)

	list, err := e.store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	state, err := e.runner.Watch(ctx, p, hash, monitor.WatchOptions{InitialState: types.StateSubmitted})
	require.NoError(t, err)
	require.Equal(t, types.StateExecuted, state)
	_, revealed := e.relayer.snapshot()
	require.Len(t, revealed, 1)
}

func TestSubmitWithoutSecretsIsRejected(t *testing.T) {
	e := newEnv(t, &relayer{})
	ctx := context.Background()

	quote, err := e.runner.Quote(ctx, params)
	require.NoError(t, err)
	p, err := e.runner.Prepare(ctx, quote, types.PresetFast, "")
	require.NoError(t, err)
	p.Secrets().Destroy()

	_, err = e.runner.Submit(ctx, p)
	require.True(t, types.IsKind(err, types.KindProtocol))
	submitted, _ := e.relayer.snapshot()
	require.Empty(t, submitted)
}

func TestCanResubmit(t *testing.T) {
	require.True(t, CanResubmit(types.NetworkError("submit", 0, "", errors.New("timeout"))))
	require.True(t, CanResubmit(types.NetworkError("submit", http.StatusServiceUnavailable, "", nil)))
	require.True(t, CanResubmit(types.NetworkError("submit", http.StatusTooManyRequests, "", nil)))
	require.False(t, CanResubmit(types.NetworkError("submit", http.StatusBadRequest, "", nil)))
	require.False(t, CanResubmit(types.ProtocolError("submit", "bad response")))
	require.False(t, CanResubmit(errors.New("plain")))
}
