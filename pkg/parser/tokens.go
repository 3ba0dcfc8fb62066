package parser

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// UnknownDecimals marks a token given by address that is not in the table.
const UnknownDecimals int32 = -1

// Token is a well-known ERC-20 on a supported chain.
type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int32  `json:"decimals"`
}

// Chain ids supported by the resolver network.
const (
	ChainEthereum uint64 = 1
	ChainOptimism uint64 = 10
	ChainBSC      uint64 = 56
	ChainPolygon  uint64 = 137
	ChainBase     uint64 = 8453
	ChainArbitrum uint64 = 42161
)

var chainNames = map[uint64]string{
	ChainEthereum: "ethereum",
	ChainOptimism: "optimism",
	ChainBSC:      "bsc",
	ChainPolygon:  "polygon",
	ChainBase:     "base",
	ChainArbitrum: "arbitrum",
}

var knownTokens = map[uint64][]Token{
	ChainEthereum: {
		{"USDC", "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", 6},
		{"USDT", "0xdAC17F958D2ee523a2206206994597C13D831ec7", 6},
		{"DAI", "0x6B175474E89094C44Da98b954EedeAC495271d0F", 18},
		{"WETH", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", 18},
		{"WBTC", "0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599", 8},
	},
	ChainOptimism: {
		{"USDC", "0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85", 6},
		{"WETH", "0x4200000000000000000000000000000000000006", 18},
	},
	ChainBSC: {
		{"USDC", "0x8AC76a51cc950d9822D68b83fE1Ad97B32Cd580d", 18},
		{"USDT", "0x55d398326f99059fF775485246999027B3197955", 18},
		{"WBNB", "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c", 18},
	},
	ChainPolygon: {
		{"USDC", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", 6},
		{"USDT", "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", 6},
		{"WETH", "0x7ceB23fD6bC0adD59E62ac25578270cFf1b9f619", 18},
		{"WMATIC", "0x0d500B1d8E8eF31E21C99d1Db9A6444d3ADf1270", 18},
	},
	ChainBase: {
		{"USDC", "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", 6},
		{"WETH", "0x4200000000000000000000000000000000000006", 18},
	},
	ChainArbitrum: {
		{"USDC", "0xaf88d065e77c8cC2239327C5EDb3A432268e5831", 6},
		{"USDT", "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9", 6},
		{"WETH", "0x82aF49447D8a07e3bd95BD0d56f35241523fBab1", 18},
	},
}

// ParseChain accepts a chain id or a chain name.
func ParseChain(value string) (uint64, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for id, name := range chainNames {
		if name == value || fmt.Sprint(id) == value {
			return id, nil
		}
	}
	switch value {
	case "eth", "mainnet":
		return ChainEthereum, nil
	case "op":
		return ChainOptimism, nil
	case "bnb":
		return ChainBSC, nil
	case "matic":
		return ChainPolygon, nil
	case "arb":
		return ChainArbitrum, nil
	}
	return 0, fmt.Errorf("unsupported chain %q", value)
}

// ChainName returns the display name of a chain id.
func ChainName(id uint64) string {
	if name, ok := chainNames[id]; ok {
		return name
	}
	return fmt.Sprintf("chain-%d", id)
}

// Chains returns the supported chain ids in ascending order.
func Chains() []uint64 {
	ids := make([]uint64, 0, len(chainNames))
	for id := range chainNames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Tokens returns the well-known tokens of a chain.
func Tokens(chainID uint64) []Token {
	return append([]Token(nil), knownTokens[chainID]...)
}

// ResolveToken maps a symbol or address to a token on chainID. Addresses
// not in the table resolve with UnknownDecimals.
func ResolveToken(chainID uint64, token string) (Token, error) {
	if _, ok := chainNames[chainID]; !ok {
		return Token{}, fmt.Errorf("unsupported chain %d", chainID)
	}

	if strings.HasPrefix(token, "0x") || strings.HasPrefix(token, "0X") {
		if err := ValidateAddress(token); err != nil {
			return Token{}, err
		}
		addr := common.HexToAddress(token)
		for _, known := range knownTokens[chainID] {
			if common.HexToAddress(known.Address) == addr {
				return known, nil
			}
		}
		return Token{Address: addr.Hex(), Decimals: UnknownDecimals}, nil
	}

	symbol := NormalizeTokenSymbol(token)
	for _, known := range knownTokens[chainID] {
		if known.Symbol == symbol {
			return known, nil
		}
	}
	return Token{}, fmt.Errorf("token %s is not known on %s; pass its contract address", symbol, ChainName(chainID))
}
