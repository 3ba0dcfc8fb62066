// Package allowance checks that a maker can actually fund an order before it
// is signed: enough ERC-20 balance and enough allowance for the limit-order
// contract.
package allowance

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient token allowance")
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"type":"function"}
]`

// Caller runs read-only contract calls. *ethclient.Client implements it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Checker reads ERC-20 state over JSON-RPC.
type Checker struct {
	caller Caller
	abi    abi.ABI
	client *ethclient.Client
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*Checker, error) {
	if rpcURL == "" {
		return nil, errors.New("RPC URL is required")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	checker, err := NewChecker(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	checker.client = client
	return checker, nil
}

// NewChecker wraps an existing caller.
func NewChecker(caller Caller) (*Checker, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ERC20 ABI: %w", err)
	}
	return &Checker{caller: caller, abi: parsed}, nil
}

// Close releases the RPC connection opened by Dial.
func (c *Checker) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Balance returns the token balance of owner.
func (c *Checker) Balance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "balanceOf", owner)
}

// Allowance returns how much spender may move on behalf of owner.
func (c *Checker) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callUint(ctx, token, "allowance", owner, spender)
}

// Decimals returns the token's decimals.
func (c *Checker) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := c.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals result %T", out[0])
	}
	return decimals, nil
}

// Check verifies that owner holds at least amount of token and has approved
// spender for at least amount.
func (c *Checker) Check(ctx context.Context, token, owner, spender common.Address, amount *big.Int) error {
	balance, err := c.Balance(ctx, token, owner)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amount)
	}

	allowed, err := c.Allowance(ctx, token, owner, spender)
	if err != nil {
		return err
	}
	if allowed.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s approved for %s, need %s", ErrInsufficientAllowance, allowed, spender.Hex(), amount)
	}
	return nil
}

func (c *Checker) callUint(ctx context.Context, token common.Address, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, token, method, args...)
	if err != nil {
		return nil, err
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result %T", method, out[0])
	}
	return value, nil
}

func (c *Checker) call(ctx context.Context, token common.Address, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
	}

	result, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	out, err := c.abi.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty %s result", method)
	}
	return out, nil
}
