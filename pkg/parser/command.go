package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"fusion-swap/pkg/types"
)

var swapPattern = regexp.MustCompile(`(?i)^(?:swap\s+)?(\d+(?:\.\d+)?)\s+(\S+)\s+to\s+(\S+)$`)

// ParseSwapCommand parses a swap command of the form
// "<amount> <source-token> to <dest-token>". Tokens may be symbols or
// contract addresses.
// Examples:
//   - "swap 100 USDC to WETH"
//   - "1.5 WETH to USDC"
//   - "250 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 to USDT"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	command = strings.Join(strings.Fields(command), " ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> to <token>' (e.g., 'swap 100 USDC to WETH')")
	}

	return &types.SwapRequest{
		Amount:      matches[1],
		SourceToken: normalizeToken(matches[2]),
		DestToken:   normalizeToken(matches[3]),
	}, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if req.SourceChainID == 0 || req.DestChainID == 0 {
		return fmt.Errorf("source and destination chain ids are required")
	}
	if req.SourceChainID == req.DestChainID {
		return fmt.Errorf("source and destination chains must differ for a cross-chain swap")
	}
	if req.ReceiverAddress != "" {
		if err := ValidateAddress(req.ReceiverAddress); err != nil {
			return fmt.Errorf("receiver: %w", err)
		}
	}
	return nil
}

// ValidateAddress checks that addr is a 0x-prefixed 20-byte hex address.
func ValidateAddress(addr string) error {
	if !strings.HasPrefix(addr, "0x") && !strings.HasPrefix(addr, "0X") {
		return fmt.Errorf("address %q must be 0x-prefixed", addr)
	}
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid address %q", addr)
	}
	return nil
}

// ToBaseUnits converts a human amount such as "1.5" into the token's
// smallest unit.
func ToBaseUnits(amount string, decimals int32) (string, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if !value.IsPositive() {
		return "", fmt.Errorf("amount must be positive, got %s", amount)
	}
	if decimals < 0 {
		return "", fmt.Errorf("invalid decimals %d", decimals)
	}

	shifted := value.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return "", fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	return shifted.BigInt().String(), nil
}

// FromBaseUnits renders a base-unit amount with the token's decimals.
func FromBaseUnits(amount string, decimals int32) (string, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if decimals < 0 {
		return "", fmt.Errorf("invalid decimals %d", decimals)
	}
	return value.Shift(-decimals).String(), nil
}

func normalizeToken(token string) string {
	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		return token
	}
	return NormalizeTokenSymbol(token)
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	aliases := map[string]string{
		"ETH":    "WETH",
		"MATIC":  "WMATIC",
		"POL":    "WMATIC",
		"BNB":    "WBNB",
		"USDC.E": "USDC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
