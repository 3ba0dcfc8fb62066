package fusion

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"fusion-swap/pkg/types"
)

// presetWire keeps required fields as pointers so a missing field is
// distinguishable from a zero value.
type presetWire struct {
	SecretsCount       *int    `json:"secretsCount"`
	AllowPartialFills  *bool   `json:"allowPartialFills"`
	AllowMultipleFills *bool   `json:"allowMultipleFills"`
	AuctionStartAmount string  `json:"auctionStartAmount"`
	AuctionEndAmount   *string `json:"auctionEndAmount"`
	StartAuctionIn     *int64  `json:"startAuctionIn"`
	AuctionDuration    *int64  `json:"auctionDuration"`
	InitialRateBump    int64   `json:"initialRateBump"`
	CostInDstToken     string  `json:"costInDstToken"`
}

type quoteWire struct {
	QuoteID           string                 `json:"quoteId"`
	SrcTokenAmount    string                 `json:"srcTokenAmount"`
	DstTokenAmount    string                 `json:"dstTokenAmount"`
	Presets           map[string]*presetWire `json:"presets"`
	SrcEscrowFactory  string                 `json:"srcEscrowFactory"`
	DstEscrowFactory  string                 `json:"dstEscrowFactory"`
	RecommendedPreset string                 `json:"recommendedPreset"`
	SrcSafetyDeposit  string                 `json:"srcSafetyDeposit"`
	DstSafetyDeposit  string                 `json:"dstSafetyDeposit"`
	Whitelist         []string               `json:"whitelist"`
	TimeLocks         types.TimeLocks        `json:"timeLocks"`
	Prices            *pricesWire            `json:"prices"`
}

type pricesWire struct {
	USD *types.TokenPrices `json:"usd"`
}

// GetQuote requests a quote for moving Amount of the source token to the
// destination chain.
func (c *Client) GetQuote(ctx context.Context, params types.QuoteParams) (*types.Quote, error) {
	const op = "get quote"

	if params.Amount == "" || params.SrcTokenAddress == "" || params.DstTokenAddress == "" || params.WalletAddress == "" {
		return nil, types.ConfigurationError("%s: amount, token addresses and wallet address are required", op)
	}

	query := url.Values{}
	query.Set("amount", params.Amount)
	query.Set("srcChainId", strconv.FormatUint(params.SrcChainID, 10))
	query.Set("dstChainId", strconv.FormatUint(params.DstChainID, 10))
	query.Set("srcTokenAddress", params.SrcTokenAddress)
	query.Set("dstTokenAddress", params.DstTokenAddress)
	query.Set("walletAddress", params.WalletAddress)
	query.Set("enableEstimate", strconv.FormatBool(params.EnableEstimate))
	if params.Fee > 0 {
		query.Set("fee", strconv.FormatUint(params.Fee, 10))
	}
	if params.Preset != "" {
		query.Set("preset", params.Preset)
	}

	var wire quoteWire
	if err := c.do(ctx, op, http.MethodGet, c.endpoint("quoter", "quote/receive"), query, nil, &wire); err != nil {
		return nil, err
	}

	quote, err := wire.toQuote(op)
	if err != nil {
		return nil, err
	}
	quote.SrcChainID = params.SrcChainID
	quote.DstChainID = params.DstChainID
	quote.SrcTokenAddress = params.SrcTokenAddress
	quote.DstTokenAddress = params.DstTokenAddress

	c.log.Info("quote received",
		"quote_id", quote.QuoteID,
		"src_amount", quote.SrcTokenAmount,
		"dst_amount", quote.DstTokenAmount,
		"recommended", quote.RecommendedPreset,
	)
	return quote, nil
}

func (w *quoteWire) toQuote(op string) (*types.Quote, error) {
	if w.QuoteID == "" {
		return nil, types.ProtocolError(op, "quote has no quoteId")
	}
	if len(w.Presets) == 0 {
		return nil, types.ProtocolError(op, "quote %s has no presets", w.QuoteID)
	}
	if w.SrcEscrowFactory == "" {
		return nil, types.ProtocolError(op, "quote %s has no srcEscrowFactory", w.QuoteID)
	}
	if w.SrcTokenAmount == "" {
		return nil, types.ProtocolError(op, "quote %s has no srcTokenAmount", w.QuoteID)
	}

	presets := make(map[string]types.Preset, len(w.Presets))
	for name, p := range w.Presets {
		// optional presets such as custom may be sent as null
		if p == nil {
			continue
		}
		preset, err := p.toPreset(op, name)
		if err != nil {
			return nil, err
		}
		presets[name] = preset
	}
	if len(presets) == 0 {
		return nil, types.ProtocolError(op, "quote %s has no presets", w.QuoteID)
	}
	if w.RecommendedPreset != "" {
		if _, ok := presets[w.RecommendedPreset]; !ok {
			return nil, types.ProtocolError(op, "recommended preset %q is not among the quote presets", w.RecommendedPreset)
		}
	}

	quote := &types.Quote{
		QuoteID:           w.QuoteID,
		SrcTokenAmount:    w.SrcTokenAmount,
		DstTokenAmount:    w.DstTokenAmount,
		Presets:           presets,
		SrcEscrowFactory:  w.SrcEscrowFactory,
		DstEscrowFactory:  w.DstEscrowFactory,
		RecommendedPreset: w.RecommendedPreset,
		SrcSafetyDeposit:  w.SrcSafetyDeposit,
		DstSafetyDeposit:  w.DstSafetyDeposit,
		Whitelist:         w.Whitelist,
		TimeLocks:         w.TimeLocks,
	}
	if w.Prices != nil && w.Prices.USD != nil {
		prices := *w.Prices.USD
		quote.PricesUSD = &prices
	}
	return quote, nil
}

func (p *presetWire) toPreset(op, name string) (types.Preset, error) {
	missing := func(field string) error {
		return types.ProtocolError(op, "preset %q is missing %s", name, field)
	}
	switch {
	case p.SecretsCount == nil:
		return types.Preset{}, missing("secretsCount")
	case p.AllowPartialFills == nil:
		return types.Preset{}, missing("allowPartialFills")
	case p.AllowMultipleFills == nil:
		return types.Preset{}, missing("allowMultipleFills")
	case p.AuctionEndAmount == nil || *p.AuctionEndAmount == "":
		return types.Preset{}, missing("auctionEndAmount")
	case p.StartAuctionIn == nil:
		return types.Preset{}, missing("startAuctionIn")
	case p.AuctionDuration == nil:
		return types.Preset{}, missing("auctionDuration")
	}

	preset := types.Preset{
		SecretsCount:       *p.SecretsCount,
		AllowPartialFills:  *p.AllowPartialFills,
		AllowMultipleFills: *p.AllowMultipleFills,
		AuctionStartAmount: p.AuctionStartAmount,
		AuctionEndAmount:   *p.AuctionEndAmount,
		StartAuctionIn:     *p.StartAuctionIn,
		AuctionDuration:    *p.AuctionDuration,
		InitialRateBump:    p.InitialRateBump,
		CostInDstToken:     p.CostInDstToken,
	}
	if err := preset.Validate(name); err != nil {
		return types.Preset{}, err
	}
	return preset, nil
}
