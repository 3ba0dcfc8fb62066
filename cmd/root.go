package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "fusion-swap",
	Short: "A CLI for trustless cross-chain swaps through a Fusion+ resolver network",
	Long: `fusion-swap is a command-line tool that executes cross-chain atomic swaps
through a Fusion+ relayer. It requests a quote, commits to a hash lock, signs
the order with your key, submits it and reveals the secrets as resolvers fill it.

Examples:
  fusion-swap quote 100 USDC to USDC --src-chain ethereum --dst-chain polygon
  fusion-swap swap 100 USDC to USDC --src-chain ethereum --dst-chain polygon --preset fast
  fusion-swap status 0xabc...
  fusion-swap watch 0xabc...
  fusion-swap orders --src-chain 1`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
