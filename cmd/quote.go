package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusion-swap/pkg/parser"
	"fusion-swap/pkg/types"
)

var (
	quoteSrcChain string
	quoteDstChain string
	quoteDecimals int
	quotePreset   string
	quoteFee      uint64
	quoteWallet   string
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Get a cross-chain swap quote",
	Long: `Request a quote from the Fusion+ quoter and show the available auction presets.

Tokens can be given by symbol (for well-known tokens, see 'fusion-swap tokens')
or by contract address.

Examples:
  fusion-swap quote 100 USDC to USDC --src-chain ethereum --dst-chain polygon
  fusion-swap quote 1.5 WETH to USDC --src-chain arbitrum --dst-chain base --preset fast
  fusion-swap quote 250 0xA0b8...eB48 to USDT --src-chain 1 --dst-chain 137 --json`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteSrcChain, "src-chain", "", "Source chain name or id (REQUIRED)")
	quoteCmd.Flags().StringVar(&quoteDstChain, "dst-chain", "", "Destination chain name or id (REQUIRED)")
	quoteCmd.Flags().IntVar(&quoteDecimals, "decimals", -1, "Source token decimals (only for tokens outside the built-in list)")
	quoteCmd.Flags().StringVar(&quotePreset, "preset", "", "Preset to highlight (fast, medium, slow, custom)")
	quoteCmd.Flags().Uint64Var(&quoteFee, "fee", 0, "Integrator fee in basis points")
	quoteCmd.Flags().StringVar(&quoteWallet, "wallet", "", "Maker wallet address (defaults to the configured key's address)")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg := loadConfig(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	in, err := parseSwapInput(ctx, cfg, args, quoteSrcChain, quoteDstChain, quoteDecimals)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	in.req.Fee = quoteFee

	wallet := quoteWallet
	if wallet == "" {
		signer, err := newSigner(cfg)
		if err != nil {
			printError(fmt.Errorf("%w (or pass --wallet)", err))
			os.Exit(1)
		}
		wallet = signer.Address().Hex()
	}
	if err := parser.ValidateAddress(wallet); err != nil {
		printError(err)
		os.Exit(1)
	}

	apiClient, err := newClient(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	quote, err := apiClient.GetQuote(ctx, in.quoteParams(wallet))
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		if verbose && types.IsKind(err, types.KindNetwork) {
			fmt.Printf("\nDebug: This might be due to:\n")
			fmt.Printf("  1. Invalid API key\n")
			fmt.Printf("  2. Unsupported token pair (try: fusion-swap tokens)\n")
			fmt.Printf("  3. Amount below the resolver minimum\n")
		}
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(quote, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayQuote(quote, in, quotePreset)
}

func displayQuote(quote *types.Quote, in *swapInput, selected string) {
	if selected == "" {
		selected = quote.RecommendedPreset
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP QUOTE")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Quote ID:          %s\n", color.CyanString(quote.QuoteID))
	fmt.Printf("  From:              %s %s on %s\n",
		formatAmount(quote.SrcTokenAmount, in.src.Decimals),
		color.YellowString(tokenLabel(in.src)),
		parser.ChainName(quote.SrcChainID))
	fmt.Printf("  To:                ~%s %s on %s\n",
		formatAmount(quote.DstTokenAmount, in.dst.Decimals),
		color.YellowString(tokenLabel(in.dst)),
		parser.ChainName(quote.DstChainID))
	if quote.PricesUSD != nil {
		fmt.Printf("  USD Prices:        %s / %s\n", quote.PricesUSD.SrcToken, quote.PricesUSD.DstToken)
	}
	fmt.Printf("  Escrow Factory:    %s\n", color.HiBlackString(quote.SrcEscrowFactory))

	fmt.Println("\n  Presets:")
	for _, name := range quote.PresetNames() {
		preset := quote.Presets[name]
		marker := "  "
		if name == selected {
			marker = color.GreenString("→ ")
		}
		fmt.Printf("  %s%-8s  min receive %s  secrets %d  auction %ds (starts in %ds)\n",
			marker,
			name,
			formatAmount(preset.AuctionEndAmount, in.dst.Decimals),
			preset.SecretsCount,
			preset.AuctionDuration,
			preset.StartAuctionIn)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
