package types

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount          string
	SourceToken     string
	DestToken       string
	SourceChainID   uint64
	DestChainID     uint64
	WalletAddress   string
	ReceiverAddress string
	Preset          string
	Fee             uint64
	EnableEstimate  bool
}

// QuoteParams are the query parameters of a quote request. Amount is
// expressed in the source token's smallest unit.
type QuoteParams struct {
	Amount          string
	SrcChainID      uint64
	DstChainID      uint64
	SrcTokenAddress string
	DstTokenAddress string
	WalletAddress   string
	EnableEstimate  bool
	Fee             uint64
	Preset          string
}

// ActiveOrdersParams filters the relayer's active order listing.
type ActiveOrdersParams struct {
	Page       int
	Limit      int
	SrcChainID uint64
	DstChainID uint64
}
