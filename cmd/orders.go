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
	"fusion-swap/pkg/store"
	"fusion-swap/pkg/types"
)

var (
	ordersPage     int
	ordersLimit    int
	ordersSrcChain string
	ordersDstChain string
	ordersLocal    bool
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List active orders",
	Long: `List the relayer's active cross-chain orders, or with --local the order
attempts kept in the configured order store.

Examples:
  fusion-swap orders
  fusion-swap orders --src-chain ethereum --dst-chain polygon --limit 20
  fusion-swap orders --local`,
	Run: runOrders,
}

func init() {
	rootCmd.AddCommand(ordersCmd)

	ordersCmd.Flags().IntVar(&ordersPage, "page", 1, "Page number")
	ordersCmd.Flags().IntVar(&ordersLimit, "limit", 10, "Orders per page")
	ordersCmd.Flags().StringVar(&ordersSrcChain, "src-chain", "", "Filter by source chain")
	ordersCmd.Flags().StringVar(&ordersDstChain, "dst-chain", "", "Filter by destination chain")
	ordersCmd.Flags().BoolVar(&ordersLocal, "local", false, "List order attempts from the local order store")
}

func runOrders(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	if ordersLocal {
		s, _, err := openStore(ctx, cfg)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if s == nil {
			printError(fmt.Errorf("no order store configured: set store.driver to file or redis"))
			os.Exit(1)
		}
		defer s.Close()

		records, err := s.List(ctx)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(records, "", "  ")
			fmt.Println(string(jsonData))
			return
		}
		displayRecords(records)
		return
	}

	params := types.ActiveOrdersParams{Page: ordersPage, Limit: ordersLimit}
	var err error
	if ordersSrcChain != "" {
		if params.SrcChainID, err = parser.ParseChain(ordersSrcChain); err != nil {
			printError(err)
			os.Exit(1)
		}
	}
	if ordersDstChain != "" {
		if params.DstChainID, err = parser.ParseChain(ordersDstChain); err != nil {
			printError(err)
			os.Exit(1)
		}
	}

	apiClient, err := newClient(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching active orders..."
		s.Start()
	}
	orders, err := apiClient.GetActiveOrders(ctx, params)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(orders, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayActiveOrders(orders)
}

func displayActiveOrders(orders *types.ActiveOrders) {
	if len(orders.Items) == 0 {
		fmt.Println("\nNo active orders found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              ACTIVE ORDERS")
	fmt.Println(strings.Repeat("=", 90))

	for _, o := range orders.Items {
		fmt.Printf("\n  %s  %s → %s\n",
			color.CyanString(o.OrderHash),
			parser.ChainName(o.SrcChainID),
			parser.ChainName(o.DstChainID))
		fmt.Printf("    Maker:     %s\n", o.Order.Maker)
		fmt.Printf("    Making:    %s of %s\n", o.Order.MakingAmount, color.HiBlackString(o.Order.MakerAsset))
		fmt.Printf("    Taking:    %s of %s\n", o.Order.TakingAmount, color.HiBlackString(o.Order.TakerAsset))
		if o.RemainingMake != "" {
			fmt.Printf("    Remaining: %s\n", o.RemainingMake)
		}
		if o.AuctionEnd > 0 {
			fmt.Printf("    Auction:   ends %s\n", time.Unix(o.AuctionEnd, 0).Format("2006-01-02 15:04:05"))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nPage %d of %d (%d orders total)\n\n", orders.Meta.CurrentPage, orders.Meta.TotalPages, orders.Meta.TotalItems)
}

func displayRecords(records []*store.Record) {
	if len(records) == 0 {
		fmt.Println("\nNo stored orders.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              STORED ORDERS")
	fmt.Println(strings.Repeat("=", 90))

	for _, rec := range records {
		hash := rec.OrderHash
		if hash == "" {
			hash = "(not submitted)"
		}
		fmt.Printf("\n  %s  %s\n", color.CyanString(hash), coloredState(rec.State))
		fmt.Printf("    Route:     %s → %s (%s preset)\n", parser.ChainName(rec.SrcChainID), parser.ChainName(rec.DstChainID), rec.Preset)
		fmt.Printf("    Secrets:   %d revealed of %d\n", len(rec.Revealed), len(rec.SecretHashes))
		fmt.Printf("    Created:   %s\n", rec.Created.Local().Format("2006-01-02 15:04:05"))
		fmt.Printf("    Record:    %s\n", color.HiBlackString(rec.ID))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d orders\n\n", len(records))
}
