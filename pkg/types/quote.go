package types

import (
	"math/big"
	"sort"
)

// Preset names offered by the quoter.
const (
	PresetFast   = "fast"
	PresetMedium = "medium"
	PresetSlow   = "slow"
	PresetCustom = "custom"
)

// Preset is a named auction strategy returned with a quote
type Preset struct {
	SecretsCount       int    `json:"secretsCount"`
	AllowPartialFills  bool   `json:"allowPartialFills"`
	AllowMultipleFills bool   `json:"allowMultipleFills"`
	AuctionStartAmount string `json:"auctionStartAmount,omitempty"`
	AuctionEndAmount   string `json:"auctionEndAmount"`
	StartAuctionIn     int64  `json:"startAuctionIn"`  // seconds until the auction starts
	AuctionDuration    int64  `json:"auctionDuration"` // seconds
	InitialRateBump    int64  `json:"initialRateBump,omitempty"`
	CostInDstToken     string `json:"costInDstToken,omitempty"`
}

// Validate checks the preset invariants required to build an order.
func (p *Preset) Validate(name string) error {
	const op = "preset"
	if p.SecretsCount < 1 {
		return ProtocolError(op, "preset %q: secretsCount must be at least 1, got %d", name, p.SecretsCount)
	}
	if p.SecretsCount > 1 && !p.AllowMultipleFills {
		return ProtocolError(op, "preset %q: %d secrets require allowMultipleFills", name, p.SecretsCount)
	}
	if _, ok := new(big.Int).SetString(p.AuctionEndAmount, 10); !ok {
		return ProtocolError(op, "preset %q: invalid auctionEndAmount %q", name, p.AuctionEndAmount)
	}
	if p.AuctionDuration < 0 || p.StartAuctionIn < 0 {
		return ProtocolError(op, "preset %q: negative auction timing", name)
	}
	return nil
}

// NeedsNonce reports whether the order must carry a nonce-style salt.
func (p *Preset) NeedsNonce() bool {
	return !(p.AllowPartialFills && p.AllowMultipleFills)
}

// TimeLocks are the escrow time-lock offsets in seconds.
type TimeLocks struct {
	SrcWithdrawal         int64 `json:"srcWithdrawal"`
	SrcPublicWithdrawal   int64 `json:"srcPublicWithdrawal"`
	SrcCancellation       int64 `json:"srcCancellation"`
	SrcPublicCancellation int64 `json:"srcPublicCancellation"`
	DstWithdrawal         int64 `json:"dstWithdrawal"`
	DstPublicWithdrawal   int64 `json:"dstPublicWithdrawal"`
	DstCancellation       int64 `json:"dstCancellation"`
}

// TokenPrices holds USD prices reported alongside a quote.
type TokenPrices struct {
	SrcToken string `json:"srcToken"`
	DstToken string `json:"dstToken"`
}

// Quote is the immutable result of a quote request
type Quote struct {
	QuoteID           string            `json:"quoteId"`
	SrcChainID        uint64            `json:"srcChainId"`
	DstChainID        uint64            `json:"dstChainId"`
	SrcTokenAddress   string            `json:"srcTokenAddress"`
	DstTokenAddress   string            `json:"dstTokenAddress"`
	SrcTokenAmount    string            `json:"srcTokenAmount"`
	DstTokenAmount    string            `json:"dstTokenAmount"`
	Presets           map[string]Preset `json:"presets"`
	SrcEscrowFactory  string            `json:"srcEscrowFactory"`
	DstEscrowFactory  string            `json:"dstEscrowFactory"`
	RecommendedPreset string            `json:"recommendedPreset"`
	SrcSafetyDeposit  string            `json:"srcSafetyDeposit,omitempty"`
	DstSafetyDeposit  string            `json:"dstSafetyDeposit,omitempty"`
	Whitelist         []string          `json:"whitelist,omitempty"`
	TimeLocks         TimeLocks         `json:"timeLocks"`
	PricesUSD         *TokenPrices      `json:"prices,omitempty"`
}

// Preset resolves a preset by name. An empty name selects the recommended preset.
func (q *Quote) Preset(name string) (string, *Preset, error) {
	if name == "" {
		name = q.RecommendedPreset
	}
	if name == "" {
		return "", nil, ProtocolError("quote", "no preset selected and quote has no recommended preset")
	}
	preset, ok := q.Presets[name]
	if !ok {
		return "", nil, ProtocolError("quote", "preset %q not present in quote %s", name, q.QuoteID)
	}
	if err := preset.Validate(name); err != nil {
		return "", nil, err
	}
	return name, &preset, nil
}

// PresetNames returns the available preset names in a stable order.
func (q *Quote) PresetNames() []string {
	rank := map[string]int{PresetFast: 0, PresetMedium: 1, PresetSlow: 2, PresetCustom: 3}
	names := make([]string, 0, len(q.Presets))
	for name := range q.Presets {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, iok := rank[names[i]]
		rj, jok := rank[names[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok != jok:
			return iok
		default:
			return names[i] < names[j]
		}
	})
	return names
}
