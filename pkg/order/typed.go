package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"fusion-swap/pkg/types"
)

const (
	DefaultDomainName    = "1inch Limit Order Protocol"
	DefaultDomainVersion = "4"

	primaryType = "Order"
)

// orderTypes is the EIP-712 type set. Field order is part of the signature.
var orderTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	primaryType: {
		{Name: "salt", Type: "uint256"},
		{Name: "makerAsset", Type: "address"},
		{Name: "takerAsset", Type: "address"},
		{Name: "maker", Type: "address"},
		{Name: "receiver", Type: "address"},
		{Name: "allowedSender", Type: "address"},
		{Name: "makingAmount", Type: "uint256"},
		{Name: "takingAmount", Type: "uint256"},
		{Name: "predicate", Type: "bytes"},
		{Name: "permit", Type: "bytes"},
		{Name: "interaction", Type: "bytes"},
	},
}

// Domain identifies the contract an order signature is bound to.
type Domain struct {
	Name              string
	Version           string
	ChainID           uint64
	VerifyingContract string
}

func (d Domain) typed() apitypes.TypedDataDomain {
	return apitypes.TypedDataDomain{
		Name:              d.Name,
		Version:           d.Version,
		ChainId:           math.NewHexOrDecimal256(int64(d.ChainID)),
		VerifyingContract: d.VerifyingContract,
	}
}

// TypedData assembles the EIP-712 document for a limit order.
func TypedData(domain Domain, lo types.LimitOrder) (apitypes.TypedData, error) {
	message, err := messageOf(lo)
	if err != nil {
		return apitypes.TypedData{}, err
	}
	return apitypes.TypedData{
		Types:       orderTypes,
		PrimaryType: primaryType,
		Domain:      domain.typed(),
		Message:     message,
	}, nil
}

// Hash returns the EIP-712 digest of a limit order.
func Hash(domain Domain, lo types.LimitOrder) ([]byte, error) {
	typed, err := TypedData(domain, lo)
	if err != nil {
		return nil, err
	}

	domainHash, err := typed.HashStruct("EIP712Domain", typed.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}
	messageHash, err := typed.HashStruct(typed.PrimaryType, typed.Message)
	if err != nil {
		return nil, fmt.Errorf("hash order: %w", err)
	}

	raw := append([]byte("\x19\x01"), domainHash...)
	raw = append(raw, messageHash...)
	return crypto.Keccak256(raw), nil
}

func messageOf(lo types.LimitOrder) (apitypes.TypedDataMessage, error) {
	salt, ok := new(big.Int).SetString(lo.Salt, 10)
	if !ok {
		return nil, fmt.Errorf("invalid salt %q", lo.Salt)
	}
	making, ok := new(big.Int).SetString(lo.MakingAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid making amount %q", lo.MakingAmount)
	}
	taking, ok := new(big.Int).SetString(lo.TakingAmount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid taking amount %q", lo.TakingAmount)
	}

	addresses := map[string]string{
		"makerAsset":    lo.MakerAsset,
		"takerAsset":    lo.TakerAsset,
		"maker":         lo.Maker,
		"receiver":      lo.Receiver,
		"allowedSender": lo.AllowedSender,
	}
	for field, addr := range addresses {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid %s address %q", field, addr)
		}
	}

	predicate, err := decodeBytes("predicate", lo.Predicate)
	if err != nil {
		return nil, err
	}
	permit, err := decodeBytes("permit", lo.Permit)
	if err != nil {
		return nil, err
	}
	interaction, err := decodeBytes("interaction", lo.Interaction)
	if err != nil {
		return nil, err
	}

	return apitypes.TypedDataMessage{
		"salt":          salt,
		"makerAsset":    lo.MakerAsset,
		"takerAsset":    lo.TakerAsset,
		"maker":         lo.Maker,
		"receiver":      lo.Receiver,
		"allowedSender": lo.AllowedSender,
		"makingAmount":  making,
		"takingAmount":  taking,
		"predicate":     predicate,
		"permit":        permit,
		"interaction":   interaction,
	}, nil
}

func decodeBytes(field, value string) (hexutil.Bytes, error) {
	if value == "" || value == "0x" {
		return hexutil.Bytes{}, nil
	}
	b, err := hexutil.Decode(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s bytes: %w", field, err)
	}
	return b, nil
}
