package fusion

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"fusion-swap/pkg/types"
)

// GetOrderStatus fetches the relayer's view of an order.
func (c *Client) GetOrderStatus(ctx context.Context, orderHash string) (*types.OrderStatus, error) {
	const op = "get order status"
	if orderHash == "" {
		return nil, types.ProtocolError(op, "order hash is required")
	}

	var status types.OrderStatus
	path := "order/status/" + url.PathEscape(orderHash)
	if err := c.do(ctx, op, http.MethodGet, c.endpoint("orders", path), nil, nil, &status); err != nil {
		return nil, err
	}
	if status.Status == "" {
		return nil, types.ProtocolError(op, "status response for %s has no status", orderHash)
	}
	if status.OrderHash == "" {
		status.OrderHash = orderHash
	}
	return &status, nil
}

// GetReadyToAcceptSecretFills lists the fills whose escrows are ready for a secret.
func (c *Client) GetReadyToAcceptSecretFills(ctx context.Context, orderHash string) (*types.ReadyFills, error) {
	const op = "get ready fills"
	if orderHash == "" {
		return nil, types.ProtocolError(op, "order hash is required")
	}

	var ready types.ReadyFills
	path := "order/ready-to-accept-secret-fills/" + url.PathEscape(orderHash)
	if err := c.do(ctx, op, http.MethodGet, c.endpoint("orders", path), nil, nil, &ready); err != nil {
		return nil, err
	}
	return &ready, nil
}

// GetActiveOrders lists orders currently open for resolvers.
func (c *Client) GetActiveOrders(ctx context.Context, params types.ActiveOrdersParams) (*types.ActiveOrders, error) {
	const op = "get active orders"

	query := url.Values{}
	if params.Page > 0 {
		query.Set("page", strconv.Itoa(params.Page))
	}
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.SrcChainID > 0 {
		query.Set("srcChain", strconv.FormatUint(params.SrcChainID, 10))
	}
	if params.DstChainID > 0 {
		query.Set("dstChain", strconv.FormatUint(params.DstChainID, 10))
	}

	var orders types.ActiveOrders
	if err := c.do(ctx, op, http.MethodGet, c.endpoint("orders", "order/active"), query, nil, &orders); err != nil {
		return nil, err
	}
	return &orders, nil
}

// GetOrderSecrets fetches the escrow immutables and revealed secrets of an order.
func (c *Client) GetOrderSecrets(ctx context.Context, orderHash string) (*types.OrderSecrets, error) {
	const op = "get order secrets"
	if orderHash == "" {
		return nil, types.ProtocolError(op, "order hash is required")
	}

	var secrets types.OrderSecrets
	path := "order/secrets/" + url.PathEscape(orderHash)
	if err := c.do(ctx, op, http.MethodGet, c.endpoint("orders", path), nil, nil, &secrets); err != nil {
		return nil, err
	}
	return &secrets, nil
}
