package fusion

import (
	"context"
	"net/http"

	"fusion-swap/pkg/types"
)

// Submit posts a signed order with its public secret hashes to the relayer.
// Raw secrets are never part of the body. The call is not retried: a repeated
// submission must carry the same salt and signature.
func (c *Client) Submit(ctx context.Context, srcChainID uint64, order types.SignedOrder, quoteID string, secretHashes []string) (*types.SubmitResult, error) {
	const op = "submit order"

	switch {
	case quoteID == "":
		return nil, types.ProtocolError(op, "quoteId is required")
	case order.Signature == "":
		return nil, types.ProtocolError(op, "order is not signed")
	case len(secretHashes) == 0:
		return nil, types.ProtocolError(op, "at least one secret hash is required")
	}

	body := types.SubmitRequest{
		SrcChainID:   srcChainID,
		Order:        order,
		QuoteID:      quoteID,
		SecretHashes: secretHashes,
	}

	var result types.SubmitResult
	if err := c.do(ctx, op, http.MethodPost, c.endpoint("relayer", "order/submit"), nil, body, &result); err != nil {
		return nil, err
	}
	if result.OrderHash == "" {
		return nil, types.ProtocolError(op, "relayer accepted the order but returned no orderHash")
	}

	c.log.Info("order submitted",
		"order_hash", result.OrderHash,
		"quote_id", quoteID,
		"secrets", len(secretHashes),
	)
	return &result, nil
}

// SubmitOrder submits a signed Order using its own chain, quote and hashes.
func (c *Client) SubmitOrder(ctx context.Context, order *types.Order) (*types.SubmitResult, error) {
	return c.Submit(ctx, order.SrcChainID, order.Signed, order.QuoteID, order.SecretHashes)
}

// SubmitSecret reveals the secret for one fill of an order.
func (c *Client) SubmitSecret(ctx context.Context, orderHash, secret string) error {
	const op = "submit secret"
	if orderHash == "" || secret == "" {
		return types.ProtocolError(op, "order hash and secret are required")
	}

	body := types.SecretSubmission{OrderHash: orderHash, Secret: secret}
	return c.do(ctx, op, http.MethodPost, c.endpoint("relayer", "order/submit-secret"), nil, body, nil)
}
