package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"fusion-swap/pkg/hashlock"
)

var (
	secretCount int
	showSecrets bool
)

var hashlockCmd = &cobra.Command{
	Use:   "hashlock",
	Short: "Generate secrets and their hash lock",
	Long: `Generate a secret set offline and print its secret hashes and hash lock.

One secret produces a single hash lock (the secret's hash); several secrets
produce a Merkle hash lock whose leaves are the secret hashes in order.

Examples:
  fusion-swap hashlock
  fusion-swap hashlock --count 4 --show-secrets --json`,
	Args: cobra.NoArgs,
	Run:  runHashLock,
}

func init() {
	rootCmd.AddCommand(hashlockCmd)

	hashlockCmd.Flags().IntVarP(&secretCount, "count", "n", 1, "Number of secrets")
	hashlockCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print the raw secrets")
}

type hashLockOutput struct {
	Kind         string     `json:"kind"`
	HashLock     string     `json:"hash_lock"`
	SecretHashes []string   `json:"secret_hashes"`
	Secrets      []string   `json:"secrets,omitempty"`
	Proofs       [][]string `json:"proofs,omitempty"`
}

func runHashLock(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	set, err := hashlock.NewSecretSet(secretCount)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer set.Destroy()

	lock := set.HashLock()
	out := hashLockOutput{
		Kind:         string(lock.Kind()),
		HashLock:     lock.Value(),
		SecretHashes: set.Hashes(),
	}
	if showSecrets {
		for i := 0; i < set.Len(); i++ {
			secret, _ := set.Hex(i)
			out.Secrets = append(out.Secrets, secret)
		}
	}
	if set.Len() > 1 {
		leaves := hashlock.Leaves(set.Secrets())
		for i := range leaves {
			proof, err := hashlock.MerkleProof(leaves, i)
			if err != nil {
				printError(err)
				os.Exit(1)
			}
			encoded := make([]string, len(proof))
			for j, node := range proof {
				encoded[j] = fmt.Sprintf("0x%x", node)
			}
			out.Proofs = append(out.Proofs, encoded)
		}
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                                HASH LOCK")
	fmt.Println(strings.Repeat("=", 90))
	fmt.Printf("\n  Kind:       %s\n", out.Kind)
	fmt.Printf("  Hash Lock:  %s\n", color.CyanString(out.HashLock))
	fmt.Println("\n  Secret hashes:")
	for i, hash := range out.SecretHashes {
		fmt.Printf("    %3d  %s\n", i, hash)
		if showSecrets {
			fmt.Printf("         %s\n", color.MagentaString(out.Secrets[i]))
		}
	}
	if showSecrets {
		color.Red("\n  Anyone holding a secret can complete the matching fill. Keep them private.")
	}
	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}
