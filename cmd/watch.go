package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusion-swap/pkg/events"
	"fusion-swap/pkg/store"
	"fusion-swap/pkg/swap"
)

var watchCmd = &cobra.Command{
	Use:   "watch [order-hash]",
	Short: "Resume revealing secrets for a stored order",
	Long: `Resume monitoring an order submitted by an earlier 'fusion-swap swap' run.

The order and its sealed secrets are loaded from the configured order store
(store.driver = file or redis). Secrets already revealed are not sent again.
Without an order hash every pending order in the store is resumed in turn.

Examples:
  fusion-swap watch 0x1234...abcd
  fusion-swap watch`,
	Args: cobra.MaximumNArgs(1),
	Run:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg := loadConfig(cmd)
	ctx, cancel := signalContext()
	defer cancel()

	var progress events.Publisher
	if !jsonOutput {
		progress = &consolePublisher{}
	}
	sess, err := newSession(ctx, cfg, 0, progress)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer sess.Close()

	if sess.store == nil {
		printError(fmt.Errorf("%w: set store.driver to file or redis", swap.ErrNoStore))
		os.Exit(1)
	}

	hashes := args
	if len(hashes) == 0 {
		pending, err := store.Pending(ctx, sess.store)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		for _, rec := range pending {
			if rec.OrderHash != "" {
				hashes = append(hashes, rec.OrderHash)
			}
		}
		if len(hashes) == 0 {
			printSuccess("No pending orders.")
			return
		}
	}

	var results []*swap.Result
	for _, orderHash := range hashes {
		if !jsonOutput {
			fmt.Printf("\nResuming order %s\n", color.CyanString(orderHash))
		}
		res, err := sess.runner.Resume(ctx, orderHash)
		if res != nil {
			results = append(results, res)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			if errors.Is(err, store.ErrNotFound) {
				err = fmt.Errorf("order %s is not in the order store", orderHash)
			}
			printError(err)
			continue
		}
		if !jsonOutput {
			displaySwapResult(res)
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(results, "", "  ")
		fmt.Println(string(jsonData))
	}
}
