package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"fusion-swap/config"
	"fusion-swap/pkg/allowance"
	"fusion-swap/pkg/events"
	"fusion-swap/pkg/fusion"
	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/order"
	"fusion-swap/pkg/parser"
	"fusion-swap/pkg/store"
	"fusion-swap/pkg/swap"
	"fusion-swap/pkg/types"
)

// loadConfig loads the configuration and initializes logging. It exits the
// process on failure.
func loadConfig(cmd *cobra.Command) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Log.Level = "debug"
	}
	if err := logger.Init(cfg.Log); err != nil {
		printError(err)
		os.Exit(1)
	}
	logger.L().Debug("configuration loaded", "config", cfg.String())
	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newClient(cfg *config.Config) (*fusion.Client, error) {
	return fusion.NewClient(fusion.Options{
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
		APIKey:     cfg.APIKey,
		Timeout:    cfg.RequestTimeout,
	})
}

func newSigner(cfg *config.Config) (*order.Signer, error) {
	key, err := cfg.SigningKey()
	if err != nil {
		return nil, err
	}
	return order.NewSigner(key, order.WithDomain(cfg.Order.DomainName, cfg.Order.DomainVersion))
}

// openStore returns a nil store when persistence is disabled.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, *store.Sealer, error) {
	var (
		s   store.Store
		err error
	)
	switch cfg.Store.Driver {
	case config.StoreFile:
		s, err = store.NewFileStore(cfg.Store.Path)
	case config.StoreRedis:
		s, err = store.NewRedisStore(ctx, store.RedisConfig{
			Address:  cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		})
	default:
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open %s order store: %w", cfg.Store.Driver, err)
	}

	key, err := cfg.SealKey()
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	sealer, err := store.NewSealer(key)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return s, sealer, nil
}

// newPublisher always logs events and forwards them to RabbitMQ when
// events.amqp_url is set.
func newPublisher(cfg *config.Config, extra ...events.Publisher) (*events.Multi, error) {
	pub := events.NewMulti(events.NewLogPublisher(logger.Named("events")))
	for _, p := range extra {
		pub.Add(p)
	}
	if cfg.Events.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(events.AMQPConfig{
			URL:      cfg.Events.AMQPURL,
			Exchange: cfg.Events.Exchange,
		})
		if err != nil {
			return nil, err
		}
		pub.Add(amqpPub)
	}
	return pub, nil
}

// session holds everything a swap or watch command needs.
type session struct {
	client    *fusion.Client
	signer    *order.Signer
	store     store.Store
	runner    *swap.Runner
	publisher *events.Multi
	checker   *allowance.Checker
}

// newSession wires a runner. The allowance preflight is enabled for
// srcChainID when both an RPC URL and a limit-order contract are configured.
func newSession(ctx context.Context, cfg *config.Config, srcChainID uint64, progress events.Publisher) (*session, error) {
	s := &session{}
	var err error

	if s.client, err = newClient(cfg); err != nil {
		return nil, err
	}
	if s.signer, err = newSigner(cfg); err != nil {
		return nil, err
	}
	if s.publisher, err = newPublisher(cfg, progress); err != nil {
		return nil, err
	}

	orderStore, sealer, err := openStore(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.store = orderStore

	opts := []swap.Option{
		swap.WithPublisher(s.publisher),
		swap.WithPollInterval(cfg.PollInterval),
	}
	if orderStore != nil {
		opts = append(opts, swap.WithStore(orderStore, sealer))
	}

	rpcURL, hasRPC := cfg.RPCURLs[srcChainID]
	spender, hasSpender := cfg.LimitOrderContract(srcChainID)
	if srcChainID != 0 && hasRPC && hasSpender {
		if s.checker, err = allowance.Dial(ctx, rpcURL); err != nil {
			s.Close()
			return nil, err
		}
		opts = append(opts, swap.WithPreflight(srcChainID, s.checker, spender))
	}

	if s.runner, err = swap.NewRunner(s.client, s.signer, opts...); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *session) Close() {
	if s.checker != nil {
		s.checker.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
}

// swapInput is a parsed "<amount> <token> to <token>" command resolved
// against the selected chains.
type swapInput struct {
	req    *types.SwapRequest
	src    parser.Token
	dst    parser.Token
	amount string
}

func parseSwapInput(ctx context.Context, cfg *config.Config, args []string, srcChain, dstChain string, srcDecimals int) (*swapInput, error) {
	req, err := parser.ParseSwapCommand(strings.Join(args, " "))
	if err != nil {
		return nil, err
	}
	if srcChain == "" || dstChain == "" {
		return nil, fmt.Errorf("--src-chain and --dst-chain are required")
	}
	if req.SourceChainID, err = parser.ParseChain(srcChain); err != nil {
		return nil, err
	}
	if req.DestChainID, err = parser.ParseChain(dstChain); err != nil {
		return nil, err
	}
	if err := parser.ValidateSwapRequest(req); err != nil {
		return nil, err
	}

	in := &swapInput{req: req}
	if in.src, err = parser.ResolveToken(req.SourceChainID, req.SourceToken); err != nil {
		return nil, err
	}
	if in.dst, err = parser.ResolveToken(req.DestChainID, req.DestToken); err != nil {
		return nil, err
	}

	if in.src.Decimals == parser.UnknownDecimals {
		if srcDecimals >= 0 {
			in.src.Decimals = int32(srcDecimals)
		} else if in.src.Decimals, err = tokenDecimals(ctx, cfg, req.SourceChainID, in.src.Address); err != nil {
			return nil, fmt.Errorf("decimals of %s are unknown (pass --decimals): %w", in.src.Address, err)
		}
	}
	if in.dst.Decimals == parser.UnknownDecimals {
		if decimals, err := tokenDecimals(ctx, cfg, req.DestChainID, in.dst.Address); err == nil {
			in.dst.Decimals = decimals
		}
	}

	if in.amount, err = parser.ToBaseUnits(req.Amount, in.src.Decimals); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *swapInput) quoteParams(wallet string) types.QuoteParams {
	return types.QuoteParams{
		Amount:          in.amount,
		SrcChainID:      in.req.SourceChainID,
		DstChainID:      in.req.DestChainID,
		SrcTokenAddress: in.src.Address,
		DstTokenAddress: in.dst.Address,
		WalletAddress:   wallet,
		EnableEstimate:  true,
		Fee:             in.req.Fee,
		Preset:          in.req.Preset,
	}
}

func tokenDecimals(ctx context.Context, cfg *config.Config, chainID uint64, address string) (int32, error) {
	rpcURL, ok := cfg.RPCURLs[chainID]
	if !ok {
		return 0, fmt.Errorf("no RPC URL configured for chain %d", chainID)
	}
	checker, err := allowance.Dial(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer checker.Close()

	decimals, err := checker.Decimals(ctx, common.HexToAddress(address))
	if err != nil {
		return 0, err
	}
	return int32(decimals), nil
}

// formatAmount renders a base-unit amount, or the raw value when the
// token's decimals are unknown.
func formatAmount(amount string, decimals int32) string {
	if decimals == parser.UnknownDecimals {
		return amount + " (base units)"
	}
	human, err := parser.FromBaseUnits(amount, decimals)
	if err != nil {
		return amount
	}
	return human
}

func tokenLabel(t parser.Token) string {
	if t.Symbol != "" {
		return t.Symbol
	}
	return shortHash(t.Address)
}

func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:8] + "..." + hash[len(hash)-6:]
}
