package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusion-swap/pkg/parser"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List the built-in tokens",
	Long: `List the well-known tokens that can be referred to by symbol. Any other
ERC-20 can be swapped by passing its contract address.

You can filter tokens by chain or symbol.

Examples:
  fusion-swap tokens
  fusion-swap tokens --chain polygon
  fusion-swap tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by chain name or id")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

type chainTokens struct {
	ChainID uint64         `json:"chain_id"`
	Chain   string         `json:"chain"`
	Tokens  []parser.Token `json:"tokens"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	chains := parser.Chains()
	if filterChain != "" {
		id, err := parser.ParseChain(filterChain)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		chains = []uint64{id}
	}

	var listing []chainTokens
	for _, id := range chains {
		var tokens []parser.Token
		for _, token := range parser.Tokens(id) {
			if filterSymbol != "" && !strings.Contains(token.Symbol, strings.ToUpper(filterSymbol)) {
				continue
			}
			tokens = append(tokens, token)
		}
		if len(tokens) > 0 {
			listing = append(listing, chainTokens{ChainID: id, Chain: parser.ChainName(id), Tokens: tokens})
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(listing, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTokens(listing)
	}
}

func displayTokens(listing []chainTokens) {
	if len(listing) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	total := 0
	for _, chain := range listing {
		color.Cyan("\n%s (%d)", strings.ToUpper(chain.Chain), chain.ChainID)
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range chain.Tokens {
			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(token.Address))
			total++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d chains\n\n", total, len(listing))
}
