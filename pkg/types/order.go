package types

import "time"

// LimitOrder is the EIP-712 message signed by the maker. Field order mirrors the
// on-chain type definition.
type LimitOrder struct {
	Salt          string `json:"salt"`
	MakerAsset    string `json:"makerAsset"`
	TakerAsset    string `json:"takerAsset"`
	Maker         string `json:"maker"`
	Receiver      string `json:"receiver"`
	AllowedSender string `json:"allowedSender"`
	MakingAmount  string `json:"makingAmount"`
	TakingAmount  string `json:"takingAmount"`
	Predicate     string `json:"predicate"`
	Permit        string `json:"permit"`
	Interaction   string `json:"interaction"`
}

// SignedOrder is the payload carried in an order submission.
type SignedOrder struct {
	LimitOrder
	Signature        string `json:"signature"`
	HashLock         string `json:"hashLock"`
	AuctionStartTime int64  `json:"auctionStartTime"`
	AuctionEndTime   int64  `json:"auctionEndTime"`
}

// Order is an immutable signed order together with its commitments. Resubmission
// must reuse the same salt and signature.
type Order struct {
	SrcChainID        uint64
	DstChainID        uint64
	QuoteID           string
	Preset            string
	Signed            SignedOrder
	VerifyingContract string
	TypedHash         string
	HashLockKind      string
	SecretHashes      []string
	UsesNonce         bool
	SignedAt          time.Time
}

// SubmitRequest is the relayer order submission body.
type SubmitRequest struct {
	SrcChainID   uint64      `json:"srcChainId"`
	Order        SignedOrder `json:"order"`
	QuoteID      string      `json:"quoteId"`
	SecretHashes []string    `json:"secretHashes"`
}

// SubmitResult is the relayer's answer to an order submission.
type SubmitResult struct {
	OrderHash string `json:"orderHash"`
}

// Fill is a partial or full match waiting for the secret at Idx.
type Fill struct {
	Idx                   int    `json:"idx"`
	SrcEscrowDeployTxHash string `json:"srcEscrowDeployTxHash,omitempty"`
	DstEscrowDeployTxHash string `json:"dstEscrowDeployTxHash,omitempty"`
}

// ReadyFills lists fills whose escrows are deployed and ready for a secret.
type ReadyFills struct {
	Fills []Fill `json:"fills"`
}

// OrderStatus is the relayer's view of an order.
type OrderStatus struct {
	OrderHash string     `json:"orderHash,omitempty"`
	Status    OrderState `json:"status"`
	CreatedAt int64      `json:"createdAt,omitempty"`
	Fills     []Fill     `json:"fills,omitempty"`
}

// SecretSubmission is the body of a secret reveal.
type SecretSubmission struct {
	OrderHash string `json:"orderHash"`
	Secret    string `json:"secret"`
}

// ActiveOrder is one entry of the relayer's active order listing.
type ActiveOrder struct {
	OrderHash     string     `json:"orderHash"`
	Signature     string     `json:"signature"`
	Deadline      int64      `json:"deadline"`
	AuctionStart  int64      `json:"auctionStartDate"`
	AuctionEnd    int64      `json:"auctionEndDate"`
	QuoteID       string     `json:"quoteId"`
	RemainingMake string     `json:"remainingMakerAmount"`
	SrcChainID    uint64     `json:"srcChainId"`
	DstChainID    uint64     `json:"dstChainId"`
	Order         LimitOrder `json:"order"`
	SecretHashes  []string   `json:"secretHashes,omitempty"`
}

// PageMeta describes a page of a paginated listing.
type PageMeta struct {
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
	TotalPages   int `json:"totalPages"`
	CurrentPage  int `json:"currentPage"`
}

// ActiveOrders is a page of active orders.
type ActiveOrders struct {
	Meta  PageMeta      `json:"meta"`
	Items []ActiveOrder `json:"items"`
}

// RevealedSecret is a secret already shared with resolvers.
type RevealedSecret struct {
	Idx    int    `json:"idx"`
	Secret string `json:"secret"`
}

// OrderSecrets carries the data needed to withdraw from or cancel escrows.
type OrderSecrets struct {
	OrderType     string           `json:"orderType"`
	Secrets       []RevealedSecret `json:"secrets"`
	SecretHashes  []string         `json:"secretHashes"`
	SrcImmutables map[string]any   `json:"srcImmutables,omitempty"`
	DstImmutables []map[string]any `json:"dstImmutables,omitempty"`
}
