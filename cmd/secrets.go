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

	"fusion-swap/pkg/types"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets <order-hash>",
	Short: "Show the escrow and secret data of an order",
	Long: `Show the data the relayer holds for withdrawing from or cancelling an order's
escrows: the committed secret hashes, the secrets already revealed and the
source and destination escrow immutables.

Examples:
  fusion-swap secrets 0x1234...abcd
  fusion-swap secrets 0x1234...abcd --json`,
	Args: cobra.ExactArgs(1),
	Run:  runSecrets,
}

func init() {
	rootCmd.AddCommand(secretsCmd)
}

func runSecrets(cmd *cobra.Command, args []string) {
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

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching order secrets..."
		s.Start()
	}
	secrets, err := apiClient.GetOrderSecrets(ctx, orderHash)
	if !jsonOutput {
		s.Stop()
	}
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(secrets, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displaySecrets(orderHash, secrets)
}

func displaySecrets(orderHash string, secrets *types.OrderSecrets) {
	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              ORDER SECRETS")
	fmt.Println(strings.Repeat("=", 90))

	fmt.Printf("\n  Order Hash:  %s\n", color.CyanString(orderHash))
	if secrets.OrderType != "" {
		fmt.Printf("  Order Type:  %s\n", secrets.OrderType)
	}

	revealed := make(map[int]string, len(secrets.Secrets))
	for _, s := range secrets.Secrets {
		revealed[s.Idx] = s.Secret
	}

	fmt.Println("\n  Secret hashes:")
	for i, hash := range secrets.SecretHashes {
		status := color.YellowString("pending")
		if secret, ok := revealed[i]; ok {
			status = color.GreenString("revealed ") + color.HiBlackString(shortHash(secret))
		}
		fmt.Printf("    %3d  %s  %s\n", i, hash, status)
	}

	if len(secrets.DstImmutables) > 0 {
		fmt.Printf("\n  Destination escrows: %d\n", len(secrets.DstImmutables))
	}

	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}
