package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusion-swap/pkg/events"
	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/monitor"
	"fusion-swap/pkg/parser"
	"fusion-swap/pkg/swap"
	"fusion-swap/pkg/types"
)

const (
	submitAttempts = 3
	submitBackoff  = 2 * time.Second
)

var (
	swapSrcChain string
	swapDstChain string
	swapDecimals int
	swapPreset   string
	swapReceiver string
	swapFee      uint64
	noConfirm    bool
	dryRun       bool
	swapTimeout  time.Duration
)

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Perform a cross-chain token swap",
	Long: `Swap tokens across chains through the Fusion+ resolver network.

The command requests a quote, generates the secrets for the chosen preset,
signs the order with your key, submits it and keeps running until the order
is executed, expired or refunded, revealing each secret as its fill becomes
ready.

IMPORTANT:
  - The maker is the address of the configured private key
  - The source token must be approved for the limit-order contract
  - Keep the command running (or use 'fusion-swap watch') until the order finishes;
    resolvers cannot complete fills without your secrets

Examples:
  # Cross-chain swap with the recommended preset
  fusion-swap swap 100 USDC to USDC --src-chain ethereum --dst-chain polygon

  # Partial fills with a different receiver
  fusion-swap swap 1.5 WETH to USDC --src-chain arbitrum --dst-chain base --preset slow --receiver 0x123...

  # Sign and verify without submitting
  fusion-swap swap 100 USDC to USDT --src-chain 1 --dst-chain 137 --dry-run --json`,
	Args: cobra.MinimumNArgs(1),
	Run:  runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().StringVar(&swapSrcChain, "src-chain", "", "Source chain name or id (REQUIRED)")
	swapCmd.Flags().StringVar(&swapDstChain, "dst-chain", "", "Destination chain name or id (REQUIRED)")
	swapCmd.Flags().IntVar(&swapDecimals, "decimals", -1, "Source token decimals (only for tokens outside the built-in list)")
	swapCmd.Flags().StringVar(&swapPreset, "preset", "", "Auction preset (defaults to the quote's recommendation)")
	swapCmd.Flags().StringVar(&swapReceiver, "receiver", "", "Receiver on the destination chain (defaults to the maker)")
	swapCmd.Flags().Uint64Var(&swapFee, "fee", 0, "Integrator fee in basis points")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Sign and verify the order without submitting it")
	swapCmd.Flags().DurationVar(&swapTimeout, "timeout", 0, "Stop watching after this long (0 waits for a final state)")
}

func runSwap(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := loadConfig(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	in, err := parseSwapInput(ctx, cfg, args, swapSrcChain, swapDstChain, swapDecimals)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	in.req.Fee = swapFee
	if swapReceiver != "" {
		if err := parser.ValidateAddress(swapReceiver); err != nil {
			printError(fmt.Errorf("receiver: %w", err))
			os.Exit(1)
		}
	}

	var progress events.Publisher
	if !jsonOutput {
		progress = &consolePublisher{}
	}
	sess, err := newSession(ctx, cfg, in.req.SourceChainID, progress)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer sess.Close()

	// Quote
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}
	quote, err := sess.runner.Quote(ctx, in.quoteParams(""))
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !jsonOutput {
		displayQuote(quote, in, swapPreset)
	}

	if !noConfirm && !jsonOutput && !dryRun {
		if !confirmSwap() {
			fmt.Println("\nSwap cancelled.")
			os.Exit(0)
		}
	}

	// Secrets, preflight and signature
	prepared, err := sess.runner.Prepare(ctx, quote, swapPreset, swapReceiver)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if verbose && !jsonOutput {
		fmt.Printf("\nSigned order (%s):\n", prepared.Order.TypedHash)
		orderJSON, _ := json.MarshalIndent(prepared.Order.Signed, "", "  ")
		fmt.Println(string(orderJSON))
	}

	if dryRun {
		prepared.Secrets().Destroy()
		displayDryRun(prepared, jsonOutput)
		return
	}

	// Submit
	if !jsonOutput {
		s.Suffix = " Submitting order..."
		s.Start()
	}
	orderHash, err := sess.runner.Submit(ctx, prepared)
	for attempt := 2; err != nil && swap.CanResubmit(err) && attempt <= submitAttempts; attempt++ {
		logger.L().Debug("resubmitting order", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
		case <-time.After(submitBackoff):
		}
		if ctx.Err() != nil {
			break
		}
		if !jsonOutput {
			s.Suffix = fmt.Sprintf(" Submitting order (attempt %d of %d)...", attempt, submitAttempts)
		}
		orderHash, err = sess.runner.Submit(ctx, prepared)
	}
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// Monitor
	watchCtx := ctx
	if swapTimeout > 0 {
		var stop context.CancelFunc
		watchCtx, stop = context.WithTimeout(ctx, swapTimeout)
		defer stop()
	}

	if !jsonOutput {
		fmt.Printf("\nWatching order %s\n", color.CyanString(orderHash))
		fmt.Printf("Checking every %s. Press Ctrl+C to stop (resume later with 'fusion-swap watch').\n\n", cfg.PollInterval)
	}

	state, err := sess.runner.Watch(watchCtx, prepared, orderHash, monitor.WatchOptions{InitialState: types.StateSubmitted})
	result := swap.Result{
		RecordID:  prepared.RecordID,
		QuoteID:   quote.QuoteID,
		Preset:    prepared.Order.Preset,
		OrderHash: orderHash,
		HashLock:  prepared.Order.Signed.HashLock,
		State:     state,
		Order:     prepared.Order.Signed,
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(result, "", "  ")
		fmt.Println(string(jsonData))
	}

	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if !jsonOutput {
				color.Yellow("\nStopped watching in state %s.", state)
				if prepared.RecordID == "" {
					color.Red("No order store is configured: the unrevealed secrets are lost with this process.")
				} else {
					fmt.Println("Resume with:")
					color.Cyan("  fusion-swap watch %s\n", orderHash)
				}
			}
			os.Exit(1)
		}
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displaySwapResult(&result)
	}
	if state != types.StateExecuted {
		os.Exit(1)
	}
}

func displayDryRun(prepared *swap.Prepared, jsonOutput bool) {
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"status":        "signed",
			"quote_id":      prepared.Order.QuoteID,
			"preset":        prepared.Order.Preset,
			"typed_hash":    prepared.Order.TypedHash,
			"hash_lock":     prepared.Order.Signed.HashLock,
			"secret_hashes": prepared.Order.SecretHashes,
			"order":         prepared.Order.Signed,
		}, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Yellow("                     DRY RUN (NOT SUBMITTED)")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Preset:        %s\n", prepared.Order.Preset)
	fmt.Printf("  Maker:         %s\n", prepared.Order.Signed.Maker)
	fmt.Printf("  Receiver:      %s\n", prepared.Order.Signed.Receiver)
	fmt.Printf("  Hash Lock:     %s (%s)\n", color.CyanString(prepared.Order.Signed.HashLock), prepared.Order.HashLockKind)
	fmt.Printf("  Secrets:       %d\n", len(prepared.Order.SecretHashes))
	fmt.Printf("  Typed Hash:    %s\n", prepared.Order.TypedHash)
	fmt.Printf("  Signature:     %s\n", color.HiBlackString(prepared.Order.Signed.Signature))
	color.Green("\n  ✓ Signature verified against the maker address")
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func displaySwapResult(result *swap.Result) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP RESULT")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("\n  Order Hash:    %s\n", color.CyanString(result.OrderHash))
	fmt.Printf("  Final State:   %s\n", coloredState(result.State))
	fmt.Printf("  Preset:        %s\n", result.Preset)
	if result.RecordID != "" {
		fmt.Printf("  Record:        %s\n", color.HiBlackString(result.RecordID))
	}
	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func confirmSwap() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with swap? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
