package cmd

import (
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

	"fusion-swap/pkg/fusion"
	"fusion-swap/pkg/monitor"
	"fusion-swap/pkg/types"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <order-hash>",
	Short: "Check the status of an order",
	Long: `Check the relayer's view of a submitted order by its hash.

With --watch the command keeps polling until the order reaches a final state.
It only observes: secrets are revealed by 'fusion-swap swap' or 'fusion-swap watch'.

Examples:
  fusion-swap status 0x1234...abcd
  fusion-swap status 0x1234...abcd --watch
  fusion-swap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	orderHash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	apiClient, err := newClient(cfg)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if watchStatus {
		watchOrderStatus(ctx, apiClient, orderHash, jsonOutput)
	} else {
		checkOrderStatus(ctx, apiClient, orderHash, jsonOutput)
	}
}

func checkOrderStatus(ctx context.Context, apiClient *fusion.Client, orderHash string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking order status..."
		s.Start()
	}

	status, err := apiClient.GetOrderStatus(ctx, orderHash)
	var ready *types.ReadyFills
	if err == nil {
		ready, err = apiClient.GetReadyToAcceptSecretFills(ctx, orderHash)
	}
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(map[string]interface{}{
			"status":      status,
			"ready_fills": ready.Fills,
		}, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status, ready)
	}
}

func watchOrderStatus(ctx context.Context, apiClient *fusion.Client, orderHash string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}
	if watchInterval <= 0 {
		printError(fmt.Errorf("--interval must be positive"))
		os.Exit(1)
	}

	fmt.Printf("\nWatching order status (Order Hash: %s)\n", color.CyanString(orderHash))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	m := monitor.New(apiClient,
		monitor.WithInterval(time.Duration(watchInterval)*time.Second),
		monitor.WithPublisher(&consolePublisher{}))

	initial := types.StateSubmitted
	if status, err := apiClient.GetOrderStatus(ctx, orderHash); err == nil && status.Status.Known() {
		initial = status.Status
		fmt.Printf("Current status: %s\n", coloredState(initial))
	}

	state, err := m.Watch(ctx, orderHash, nil, monitor.WatchOptions{InitialState: initial})
	if err != nil && !errors.Is(err, context.Canceled) {
		printError(err)
		os.Exit(1)
	}
	fmt.Printf("\nLast known status: %s\n\n", coloredState(state))
}

func displayStatus(status *types.OrderStatus, ready *types.ReadyFills) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        ORDER STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Order Hash:      %s\n", color.CyanString(status.OrderHash))
	fmt.Printf("  Status:          %s\n", coloredState(status.Status))
	if status.CreatedAt > 0 {
		fmt.Printf("  Created:         %s\n", time.UnixMilli(status.CreatedAt).Format("2006-01-02 15:04:05"))
	}

	for _, fill := range status.Fills {
		fmt.Printf("  Fill %-3d         src %s  dst %s\n",
			fill.Idx,
			color.HiBlackString(shortHash(fill.SrcEscrowDeployTxHash)),
			color.HiBlackString(shortHash(fill.DstEscrowDeployTxHash)))
	}

	if ready != nil && len(ready.Fills) > 0 {
		idx := make([]string, len(ready.Fills))
		for i, fill := range ready.Fills {
			idx[i] = fmt.Sprint(fill.Idx)
		}
		fmt.Printf("  Awaiting Secret: %s\n", color.YellowString(strings.Join(idx, ", ")))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
