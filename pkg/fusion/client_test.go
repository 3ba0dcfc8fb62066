package fusion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"fusion-swap/pkg/logger"
	"fusion-swap/pkg/types"
)

const quoteJSON = `{
  "quoteId": "q-1",
  "srcTokenAmount": "1000000",
  "dstTokenAmount": "998000",
  "srcEscrowFactory": "0xa7bcb4eac8964306f9e3764f67db6a7af6ddf99a",
  "dstEscrowFactory": "0xa7bcb4eac8964306f9e3764f67db6a7af6ddf99a",
  "recommendedPreset": "fast",
  "srcSafetyDeposit": "100",
  "dstSafetyDeposit": "200",
  "whitelist": ["0x1111111111111111111111111111111111111111"],
  "timeLocks": {"srcWithdrawal": 36, "dstWithdrawal": 24},
  "prices": {"usd": {"srcToken": "1.0001", "dstToken": "0.9998"}},
  "presets": {
    "fast": {"secretsCount": 1, "allowPartialFills": false, "allowMultipleFills": false,
             "auctionStartAmount": "999000", "auctionEndAmount": "990000",
             "startAuctionIn": 12, "auctionDuration": 180, "initialRateBump": 50},
    "slow": {"secretsCount": 3, "allowPartialFills": true, "allowMultipleFills": true,
             "auctionEndAmount": "995000", "startAuctionIn": 24, "auctionDuration": 600},
    "custom": null
  }
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		BaseURL: server.URL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
		Logger:  logger.Discard(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Options{})
	require.True(t, types.IsKind(err, types.KindConfiguration))
}

func TestGetQuote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/quoter/v1.0/quote/receive", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "application/json", r.Header.Get("Accept"))

		q := r.URL.Query()
		require.Equal(t, "1000000", q.Get("amount"))
		require.Equal(t, "1", q.Get("srcChainId"))
		require.Equal(t, "137", q.Get("dstChainId"))
		require.Equal(t, "true", q.Get("enableEstimate"))
		require.Equal(t, "", q.Get("fee"))
		_, _ = io.WriteString(w, quoteJSON)
	})

	quote, err := client.GetQuote(context.Background(), types.QuoteParams{
		Amount:          "1000000",
		SrcChainID:      1,
		DstChainID:      137,
		SrcTokenAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		DstTokenAddress: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359",
		WalletAddress:   "0x2222222222222222222222222222222222222222",
		EnableEstimate:  true,
	})
	require.NoError(t, err)
	require.Equal(t, "q-1", quote.QuoteID)
	require.Equal(t, uint64(1), quote.SrcChainID)
	require.Equal(t, "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", quote.SrcTokenAddress)
	require.Len(t, quote.Presets, 2)
	require.Equal(t, []string{"fast", "slow"}, quote.PresetNames())
	require.NotNil(t, quote.PricesUSD)
	require.Equal(t, "1.0001", quote.PricesUSD.SrcToken)
	require.Equal(t, int64(36), quote.TimeLocks.SrcWithdrawal)

	name, preset, err := quote.Preset("")
	require.NoError(t, err)
	require.Equal(t, "fast", name)
	require.Equal(t, "990000", preset.AuctionEndAmount)
	require.Equal(t, int64(180), preset.AuctionDuration)
	require.True(t, preset.NeedsNonce())

	_, slow, err := quote.Preset("slow")
	require.NoError(t, err)
	require.Equal(t, 3, slow.SecretsCount)
	require.False(t, slow.NeedsNonce())

	_, _, err = quote.Preset("medium")
	require.True(t, types.IsKind(err, types.KindProtocol))
}

func TestGetQuoteProtocolErrors(t *testing.T) {
	cases := map[string]string{
		"no presets":        `{"quoteId":"q","srcTokenAmount":"1","srcEscrowFactory":"0x1","presets":{}}`,
		"missing field":     `{"quoteId":"q","srcTokenAmount":"1","srcEscrowFactory":"0x1","presets":{"fast":{"secretsCount":1,"allowPartialFills":false,"allowMultipleFills":false,"startAuctionIn":1,"auctionDuration":1}}}`,
		"only null presets": `{"quoteId":"q","srcTokenAmount":"1","srcEscrowFactory":"0x1","presets":{"custom":null}}`,
		"no quote id":       `{"srcTokenAmount":"1","srcEscrowFactory":"0x1","presets":{}}`,
		"bad recommended":   `{"quoteId":"q","srcTokenAmount":"1","srcEscrowFactory":"0x1","recommendedPreset":"fast","presets":{"slow":{"secretsCount":1,"allowPartialFills":false,"allowMultipleFills":false,"auctionEndAmount":"1","startAuctionIn":1,"auctionDuration":1}}}`,
		"multi w/o fills":   `{"quoteId":"q","srcTokenAmount":"1","srcEscrowFactory":"0x1","presets":{"fast":{"secretsCount":2,"allowPartialFills":true,"allowMultipleFills":false,"auctionEndAmount":"1","startAuctionIn":1,"auctionDuration":1}}}`,
		"undecodable body":  `{"quoteId":`,
		"empty body":        ``,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, body)
			})
			_, err := client.GetQuote(context.Background(), types.QuoteParams{
				Amount: "1", SrcTokenAddress: "0x1", DstTokenAddress: "0x2", WalletAddress: "0x3",
			})
			require.Error(t, err)
			require.Truef(t, types.IsKind(err, types.KindProtocol), "got %v", err)
			require.False(t, types.IsRetryable(err))
		})
	}
}

func TestNon2xxIsNetworkError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":"insufficient liquidity"}`)
	})

	_, err := client.GetQuote(context.Background(), types.QuoteParams{
		Amount: "1", SrcTokenAddress: "0x1", DstTokenAddress: "0x2", WalletAddress: "0x3",
	})
	require.Error(t, err)
	require.True(t, types.IsKind(err, types.KindNetwork))
	require.True(t, types.IsRetryable(err))

	var typed *types.Error
	require.True(t, errors.As(err, &typed))
	require.Equal(t, http.StatusBadRequest, typed.StatusCode)
	require.Contains(t, err.Error(), "400")
	require.Contains(t, err.Error(), "insufficient liquidity")
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client, err := NewClient(Options{BaseURL: server.URL, APIKey: "k", Logger: logger.Discard()})
	require.NoError(t, err)

	_, err = client.GetOrderStatus(context.Background(), "0xabc")
	require.True(t, types.IsKind(err, types.KindNetwork))
}

func TestContextCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.GetOrderStatus(ctx, "0xabc")
	require.True(t, types.IsKind(err, types.KindNetwork))
	require.ErrorIs(t, err, context.Canceled)
}

func TestSubmit(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/relayer/v1.0/order/submit", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"orderHash":"0xorder"}`)
	})

	order := types.SignedOrder{
		LimitOrder: types.LimitOrder{Salt: "42", Maker: "0xmaker"},
		Signature:  "0xsig",
		HashLock:   "0xlock",
	}
	result, err := client.Submit(context.Background(), 1, order, "q-1", []string{"0xh0"})
	require.NoError(t, err)
	require.Equal(t, "0xorder", result.OrderHash)

	require.EqualValues(t, 1, got["srcChainId"])
	require.Equal(t, "q-1", got["quoteId"])
	require.Equal(t, []any{"0xh0"}, got["secretHashes"])
	submitted := got["order"].(map[string]any)
	require.Equal(t, "42", submitted["salt"])
	require.Equal(t, "0xsig", submitted["signature"])
	require.NotContains(t, got, "secret")
}

func TestSubmitEmptyOrderHash(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"orderHash":""}`)
	})

	_, err := client.Submit(context.Background(), 1, types.SignedOrder{Signature: "0xsig"}, "q", []string{"0xh"})
	require.True(t, types.IsKind(err, types.KindProtocol))
}

func TestSubmitDoesNotRetry(t *testing.T) {
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Submit(context.Background(), 1, types.SignedOrder{Signature: "0xsig"}, "q", []string{"0xh"})
	require.True(t, types.IsKind(err, types.KindNetwork))
	require.Equal(t, 1, calls)
}

func TestMonitorEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/orders/v1.0/order/status/0xabc":
			_, _ = io.WriteString(w, `{"status":"partially_filled","fills":[{"idx":0}]}`)
		case r.URL.Path == "/orders/v1.0/order/ready-to-accept-secret-fills/0xabc":
			_, _ = io.WriteString(w, `{"fills":[{"idx":0,"srcEscrowDeployTxHash":"0xs"},{"idx":2}]}`)
		case r.URL.Path == "/relayer/v1.0/order/submit-secret":
			var body types.SecretSubmission
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "0xabc", body.OrderHash)
			require.True(t, strings.HasPrefix(body.Secret, "0x"))
			w.WriteHeader(http.StatusCreated)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	status, err := client.GetOrderStatus(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, types.StatePartiallyFilled, status.Status)
	require.Equal(t, "0xabc", status.OrderHash)

	ready, err := client.GetReadyToAcceptSecretFills(ctx, "0xabc")
	require.NoError(t, err)
	require.Len(t, ready.Fills, 2)
	require.Equal(t, 2, ready.Fills[1].Idx)
	require.Equal(t, "0xs", ready.Fills[0].SrcEscrowDeployTxHash)

	require.NoError(t, client.SubmitSecret(ctx, "0xabc", "0x01"))
	require.Error(t, client.SubmitSecret(ctx, "0xabc", ""))
}

func TestActiveOrdersAndSecrets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders/v1.0/order/active":
			require.Equal(t, "2", r.URL.Query().Get("page"))
			require.Equal(t, "10", r.URL.Query().Get("limit"))
			require.Equal(t, "1", r.URL.Query().Get("srcChain"))
			require.Equal(t, "", r.URL.Query().Get("dstChain"))
			_, _ = io.WriteString(w, `{"meta":{"totalItems":11,"itemsPerPage":10,"totalPages":2,"currentPage":2},
				"items":[{"orderHash":"0x1","quoteId":"q","srcChainId":1,"dstChainId":137,"order":{"salt":"7","maker":"0xm"}}]}`)
		case "/orders/v1.0/order/secrets/0xabc":
			_, _ = io.WriteString(w, `{"orderType":"MultipleFills","secrets":[{"idx":1,"secret":"0x02"}],"secretHashes":["0xa","0xb"]}`)
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	orders, err := client.GetActiveOrders(ctx, types.ActiveOrdersParams{Page: 2, Limit: 10, SrcChainID: 1})
	require.NoError(t, err)
	require.Equal(t, 11, orders.Meta.TotalItems)
	require.Len(t, orders.Items, 1)
	require.Equal(t, "7", orders.Items[0].Order.Salt)

	secrets, err := client.GetOrderSecrets(ctx, "0xabc")
	require.NoError(t, err)
	require.Equal(t, "MultipleFills", secrets.OrderType)
	require.Equal(t, 1, secrets.Secrets[0].Idx)
	require.Len(t, secrets.SecretHashes, 2)

	_, err = client.GetOrderSecrets(ctx, "0xmissing")
	require.True(t, types.IsKind(err, types.KindNetwork))
}
