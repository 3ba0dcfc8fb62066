// Package swap runs one cross-chain order attempt end to end: quote, hash
// lock, signature, submission and secret revelation.
package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"fusion-swap/pkg/events"
	"fusion-swap/pkg/hashlock"
	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/monitor"
	"fusion-swap/pkg/order"
	"fusion-swap/pkg/store"
	"fusion-swap/pkg/types"
)

// API is the part of the Fusion+ client a Runner needs.
type API interface {
	monitor.Relayer
	GetQuote(ctx context.Context, params types.QuoteParams) (*types.Quote, error)
	Submit(ctx context.Context, srcChainID uint64, order types.SignedOrder, quoteID string, secretHashes []string) (*types.SubmitResult, error)
}

// Preflight checks that the maker can fund an order.
type Preflight interface {
	Check(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error
}

type preflight struct {
	checker Preflight
	spender common.Address
}

// Runner executes order attempts. It is safe for concurrent use as long as
// each attempt has its own Prepared value.
type Runner struct {
	api        API
	signer     *order.Signer
	store      store.Store
	sealer     *store.Sealer
	publisher  events.Publisher
	interval   time.Duration
	preflights map[uint64]preflight
	log        *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists attempts with their secrets sealed by sealer.
func WithStore(s store.Store, sealer *store.Sealer) Option {
	return func(r *Runner) {
		r.store = s
		r.sealer = sealer
	}
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) Option {
	return func(r *Runner) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithPollInterval sets the monitor poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(r *Runner) { r.interval = d }
}

// WithPreflight checks balance and allowance on chainID before signing.
func WithPreflight(chainID uint64, checker Preflight, spender common.Address) Option {
	return func(r *Runner) {
		if checker != nil {
			r.preflights[chainID] = preflight{checker: checker, spender: spender}
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(api API, signer *order.Signer, opts ...Option) (*Runner, error) {
	if api == nil {
		return nil, types.ConfigurationError("fusion client is required")
	}
	if signer == nil {
		return nil, types.ConfigurationError("signer is required")
	}
	r := &Runner{
		api:        api,
		signer:     signer,
		publisher:  events.Nop{},
		interval:   monitor.DefaultPollInterval,
		preflights: make(map[uint64]preflight),
		log:        logger.Named("swap"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.store != nil && r.sealer == nil {
		return nil, types.ConfigurationError("a store needs a sealer for its secrets")
	}
	return r, nil
}

// Request describes one swap.
type Request struct {
	Params   types.QuoteParams
	Preset   string
	Receiver string
	// DryRun stops after signing and verifying the order.
	DryRun bool
}

// Prepared is a signed order that has not been submitted yet. Its secrets
// stay in memory until the order reaches a terminal state.
type Prepared struct {
	Quote    *types.Quote
	Order    *types.Order
	RecordID string

	secrets *hashlock.SecretSet
}

// Secrets exposes the attempt's secret set.
func (p *Prepared) Secrets() *hashlock.SecretSet {
	return p.secrets
}

// Result is the outcome of Run.
type Result struct {
	RecordID  string            `json:"record_id,omitempty"`
	QuoteID   string            `json:"quote_id"`
	Preset    string            `json:"preset"`
	OrderHash string            `json:"order_hash,omitempty"`
	HashLock  string            `json:"hash_lock"`
	State     types.OrderState  `json:"state"`
	Order     types.SignedOrder `json:"order"`
}

// Quote requests a quote. The wallet defaults to the signer's address.
func (r *Runner) Quote(ctx context.Context, params types.QuoteParams) (*types.Quote, error) {
	if params.WalletAddress == "" {
		params.WalletAddress = r.signer.Address().Hex()
	}
	return r.api.GetQuote(ctx, params)
}

// Prepare generates the secrets for the selected preset, runs the funding
// preflight when one is configured for the source chain and signs the order.
func (r *Runner) Prepare(ctx context.Context, quote *types.Quote, presetName, receiver string) (*Prepared, error) {
	name, preset, err := quote.Preset(presetName)
	if err != nil {
		return nil, err
	}

	if err := r.checkFunding(ctx, quote); err != nil {
		return nil, err
	}

	secrets, err := hashlock.NewSecretSet(preset.SecretsCount)
	if err != nil {
		return nil, fmt.Errorf("generate secrets: %w", err)
	}

	signed, err := r.signer.BuildAndSign(quote, secrets, name, "", receiver)
	if err != nil {
		secrets.Destroy()
		return nil, err
	}
	if err := r.signer.Verify(signed); err != nil {
		secrets.Destroy()
		return nil, err
	}

	r.log.Info("order signed",
		"quote_id", quote.QuoteID,
		"preset", name,
		"secrets", secrets.Len(),
		"hash_lock", signed.Signed.HashLock,
		"nonce", signed.UsesNonce)

	return &Prepared{Quote: quote, Order: signed, secrets: secrets}, nil
}

func (r *Runner) checkFunding(ctx context.Context, quote *types.Quote) error {
	pf, ok := r.preflights[quote.SrcChainID]
	if !ok {
		return nil
	}
	amount, ok := new(big.Int).SetString(quote.SrcTokenAmount, 10)
	if !ok {
		return types.ProtocolError("preflight", "invalid srcTokenAmount %q", quote.SrcTokenAmount)
	}
	token := common.HexToAddress(quote.SrcTokenAddress)
	if err := pf.checker.Check(ctx, token, r.signer.Address(), pf.spender, amount); err != nil {
		return fmt.Errorf("funding preflight on chain %d: %w", quote.SrcChainID, err)
	}
	return nil
}

// Submit persists the attempt when a store is configured, then posts the
// order. A failure for which CanResubmit holds keeps the secrets and the Created record so the
// same signed order can be submitted again. Any other failure marks the
// attempt Failed and destroys its secrets.
func (r *Runner) Submit(ctx context.Context, p *Prepared) (string, error) {
	if p.secrets == nil || p.secrets.Len() == 0 {
		return "", types.ProtocolError("submit order", "order has no secrets; it was already settled or failed")
	}
	if err := r.save(ctx, p); err != nil {
		p.secrets.Destroy()
		return "", err
	}
	pub := r.attemptPublisher(p)

	res, err := r.api.Submit(ctx, p.Order.SrcChainID, p.Order.Signed, p.Order.QuoteID, p.Order.SecretHashes)
	if err != nil {
		if CanResubmit(err) {
			r.log.Warn("order submission failed, retry is possible", "quote_id", p.Order.QuoteID, "record_id", p.RecordID, "error", err)
			return "", err
		}
		r.fail(ctx, p, err)
		return "", err
	}

	r.log.Info("order submitted", "order_hash", res.OrderHash, "quote_id", p.Order.QuoteID)
	event := events.New(events.KindSubmitted, res.OrderHash).WithState(types.StateCreated, types.StateSubmitted)
	if err := pub.Publish(context.WithoutCancel(ctx), event); err != nil {
		r.log.Warn("failed to publish submission", "order_hash", res.OrderHash, "error", err)
	}
	return res.OrderHash, nil
}

// CanResubmit reports whether a failed submission may be retried with the
// same signed order. Transport failures, timeouts and 5xx responses qualify.
// A 4xx response other than 408 or 429 is a final rejection.
func CanResubmit(err error) bool {
	if !types.IsRetryable(err) {
		return false
	}
	var typed *types.Error
	if errors.As(err, &typed) && typed.StatusCode >= 400 && typed.StatusCode < 500 {
		return typed.StatusCode == http.StatusRequestTimeout || typed.StatusCode == http.StatusTooManyRequests
	}
	return true
}

// save stores the attempt once. A resubmission reuses the existing record.
func (r *Runner) save(ctx context.Context, p *Prepared) error {
	if r.store == nil || p.RecordID != "" {
		return nil
	}
	rec := store.NewRecord(p.Order, "")
	sealed, err := r.sealer.Seal(rec.ID, p.secrets)
	if err != nil {
		return fmt.Errorf("seal secrets: %w", err)
	}
	rec.SealedSecrets = sealed
	if err := r.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("persist order attempt: %w", err)
	}
	p.RecordID = rec.ID
	return nil
}

func (r *Runner) fail(ctx context.Context, p *Prepared, cause error) {
	r.log.Error("order submission failed", "quote_id", p.Order.QuoteID, "error", cause)
	p.secrets.Destroy()
	if r.store == nil || p.RecordID == "" {
		return
	}
	if err := store.SetState(context.WithoutCancel(ctx), r.store, p.RecordID, types.StateFailed); err != nil {
		r.log.Warn("failed to record failure", "record_id", p.RecordID, "error", err)
	}
}

// attemptPublisher fans events out to the runner's publisher and, when the
// attempt is persisted, to its record.
func (r *Runner) attemptPublisher(p *Prepared) events.Publisher {
	if r.store == nil || p.RecordID == "" {
		return r.publisher
	}
	return events.NewMulti(r.publisher, store.NewRecorder(r.store, p.RecordID))
}

// Watch monitors a submitted order until it is terminal and then destroys
// its secrets. On cancellation the secrets are kept so the attempt can be
// resumed from the store.
func (r *Runner) Watch(ctx context.Context, p *Prepared, orderHash string, opts monitor.WatchOptions) (types.OrderState, error) {
	m := monitor.New(r.api,
		monitor.WithInterval(r.interval),
		monitor.WithPublisher(r.attemptPublisher(p)),
		monitor.WithLogger(r.log.With("component", "monitor")))

	state, err := m.Watch(ctx, orderHash, p.secrets, opts)
	if state.IsTerminal() {
		p.secrets.Destroy()
	}
	return state, err
}

// Run executes the whole lifecycle of req.
func (r *Runner) Run(ctx context.Context, req Request) (*Result, error) {
	quote, err := r.Quote(ctx, req.Params)
	if err != nil {
		return nil, err
	}
	p, err := r.Prepare(ctx, quote, req.Preset, req.Receiver)
	if err != nil {
		return nil, err
	}

	res := &Result{
		QuoteID:  quote.QuoteID,
		Preset:   p.Order.Preset,
		HashLock: p.Order.Signed.HashLock,
		State:    types.StateCreated,
		Order:    p.Order.Signed,
	}
	if req.DryRun {
		p.secrets.Destroy()
		return res, nil
	}

	orderHash, err := r.Submit(ctx, p)
	res.RecordID = p.RecordID
	if err != nil {
		if !CanResubmit(err) {
			res.State = types.StateFailed
		}
		return res, err
	}
	res.OrderHash = orderHash
	res.State = types.StateSubmitted

	state, err := r.Watch(ctx, p, orderHash, monitor.WatchOptions{InitialState: types.StateSubmitted})
	if state != "" {
		res.State = state
	}
	return res, err
}

// ErrNoStore is returned by Resume when the runner has no store.
var ErrNoStore = errors.New("no order store configured")

// Resume continues monitoring a persisted order, revealing only secrets that
// were not shared before.
func (r *Runner) Resume(ctx context.Context, orderHash string) (*Result, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	rec, err := r.store.FindByOrderHash(ctx, orderHash)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RecordID:  rec.ID,
		QuoteID:   rec.QuoteID,
		Preset:    rec.Preset,
		OrderHash: rec.OrderHash,
		HashLock:  rec.Order.HashLock,
		State:     rec.State,
		Order:     rec.Order,
	}
	if rec.State.IsTerminal() {
		return res, nil
	}

	secrets, err := r.sealer.Open(rec.ID, rec.SealedSecrets)
	if err != nil {
		return nil, fmt.Errorf("open secrets of %s: %w", orderHash, err)
	}
	if secrets.HashLock().Value() != rec.Order.HashLock {
		secrets.Destroy()
		return nil, fmt.Errorf("stored secrets of %s do not match the order hash lock", orderHash)
	}

	p := &Prepared{
		Order: &types.Order{
			SrcChainID:   rec.SrcChainID,
			DstChainID:   rec.DstChainID,
			QuoteID:      rec.QuoteID,
			Preset:       rec.Preset,
			Signed:       rec.Order,
			SecretHashes: rec.SecretHashes,
		},
		RecordID: rec.ID,
		secrets:  secrets,
	}

	r.log.Info("resuming order", "order_hash", orderHash, "state", rec.State, "revealed", rec.Revealed)
	state, err := r.Watch(ctx, p, orderHash, monitor.WatchOptions{
		InitialState: rec.State,
		Revealed:     rec.Revealed,
	})
	if state != "" {
		res.State = state
	}
	return res, err
}
