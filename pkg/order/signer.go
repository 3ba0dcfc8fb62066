// Package order builds Fusion+ limit orders and signs them with EIP-712.
package order

import (
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"fusion-swap/pkg/hashlock"
	"fusion-swap/pkg/types"
)

const signOp = "sign order"

var (
	// nonceLimit is 2^40-1, the upper bound of a nonce-style salt.
	nonceLimit = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 40), big.NewInt(1))
	saltLimit  = new(big.Int).Lsh(big.NewInt(1), 256)

	zeroAddress = common.Address{}.Hex()
)

// Signer builds and signs orders for one maker key. The key is read-only and
// the Signer is safe for concurrent use.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address

	domainName    string
	domainVersion string
	now           func() time.Time
	random        io.Reader
}

// Option customizes a Signer.
type Option func(*Signer)

// WithDomain overrides the EIP-712 domain name and version.
func WithDomain(name, version string) Option {
	return func(s *Signer) {
		if name != "" {
			s.domainName = name
		}
		if version != "" {
			s.domainVersion = version
		}
	}
}

// WithClock sets the time source used for auction timing.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// WithRandom sets the entropy source used for salts.
func WithRandom(r io.Reader) Option {
	return func(s *Signer) { s.random = r }
}

// NewSigner creates a Signer for key.
func NewSigner(key *ecdsa.PrivateKey, opts ...Option) (*Signer, error) {
	if key == nil {
		return nil, types.SigningError(signOp, errors.New("no signing key configured"))
	}
	s := &Signer{
		key:           key,
		address:       crypto.PubkeyToAddress(key.PublicKey),
		domainName:    DefaultDomainName,
		domainVersion: DefaultDomainVersion,
		now:           time.Now,
		random:        rand.Reader,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSignerFromHex parses a hex private key, with or without 0x.
func NewSignerFromHex(privateKey string, opts ...Option) (*Signer, error) {
	if privateKey == "" {
		return nil, types.SigningError(signOp, errors.New("no signing key configured"))
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKey, "0x"))
	if err != nil {
		return nil, types.SigningError(signOp, fmt.Errorf("invalid private key: %w", err))
	}
	return NewSigner(key, opts...)
}

// Address returns the maker address derived from the key.
func (s *Signer) Address() common.Address {
	return s.address
}

// Domain returns the signing domain for a source chain and escrow factory.
func (s *Signer) Domain(chainID uint64, verifyingContract string) Domain {
	return Domain{
		Name:              s.domainName,
		Version:           s.domainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

// BuildAndSign turns a quote and a secret set into a signed order. An empty
// presetName selects the quote's recommended preset, an empty maker is the
// signer's address and an empty receiver defaults to the maker.
func (s *Signer) BuildAndSign(quote *types.Quote, secrets *hashlock.SecretSet, presetName, maker, receiver string) (*types.Order, error) {
	if quote == nil {
		return nil, types.ProtocolError(signOp, "quote is required")
	}
	name, preset, err := quote.Preset(presetName)
	if err != nil {
		return nil, err
	}
	if secrets == nil || secrets.Len() != preset.SecretsCount {
		have := 0
		if secrets != nil {
			have = secrets.Len()
		}
		return nil, types.ProtocolError(signOp, "preset %q needs %d secrets, got %d", name, preset.SecretsCount, have)
	}

	if maker == "" {
		maker = s.address.Hex()
	}
	if !common.IsHexAddress(maker) {
		return nil, types.ConfigurationError("invalid maker address %q", maker)
	}
	if common.HexToAddress(maker) != s.address {
		return nil, types.SigningError(signOp, fmt.Errorf("maker %s does not match signing key %s", maker, s.address.Hex()))
	}
	if receiver == "" {
		receiver = maker
	}
	if !common.IsHexAddress(receiver) {
		return nil, types.ConfigurationError("invalid receiver address %q", receiver)
	}
	for field, addr := range map[string]string{
		"srcTokenAddress":  quote.SrcTokenAddress,
		"dstTokenAddress":  quote.DstTokenAddress,
		"srcEscrowFactory": quote.SrcEscrowFactory,
	} {
		if !common.IsHexAddress(addr) {
			return nil, types.ProtocolError(signOp, "quote %s has invalid %s %q", quote.QuoteID, field, addr)
		}
	}

	needsNonce := preset.NeedsNonce()
	salt, err := s.salt(needsNonce)
	if err != nil {
		return nil, types.SigningError(signOp, fmt.Errorf("generate salt: %w", err))
	}

	lock := secrets.HashLock()
	auctionStart := s.now().Unix() + preset.StartAuctionIn
	auctionEnd := auctionStart + preset.AuctionDuration

	lo := types.LimitOrder{
		Salt:          salt.String(),
		MakerAsset:    common.HexToAddress(quote.SrcTokenAddress).Hex(),
		TakerAsset:    common.HexToAddress(quote.DstTokenAddress).Hex(),
		Maker:         common.HexToAddress(maker).Hex(),
		Receiver:      common.HexToAddress(receiver).Hex(),
		AllowedSender: zeroAddress,
		MakingAmount:  quote.SrcTokenAmount,
		TakingAmount:  preset.AuctionEndAmount,
		Predicate:     "0x",
		Permit:        "0x",
		Interaction:   "0x",
	}

	domain := s.Domain(quote.SrcChainID, quote.SrcEscrowFactory)
	digest, err := Hash(domain, lo)
	if err != nil {
		return nil, types.ProtocolError(signOp, "encode order: %v", err)
	}
	sig, err := crypto.Sign(digest, s.key)
	if err != nil {
		return nil, types.SigningError(signOp, err)
	}
	sig[64] += 27

	return &types.Order{
		SrcChainID: quote.SrcChainID,
		DstChainID: quote.DstChainID,
		QuoteID:    quote.QuoteID,
		Preset:     name,
		Signed: types.SignedOrder{
			LimitOrder:       lo,
			Signature:        hexutil.Encode(sig),
			HashLock:         lock.Value(),
			AuctionStartTime: auctionStart,
			AuctionEndTime:   auctionEnd,
		},
		VerifyingContract: domain.VerifyingContract,
		TypedHash:         hexutil.Encode(digest),
		HashLockKind:      string(lock.Kind()),
		SecretHashes:      secrets.Hashes(),
		UsesNonce:         needsNonce,
		SignedAt:          s.now(),
	}, nil
}

// salt draws a nonce-style salt in [1, 2^40-1] or a non-zero 256-bit salt.
func (s *Signer) salt(nonce bool) (*big.Int, error) {
	if nonce {
		n, err := rand.Int(s.random, nonceLimit)
		if err != nil {
			return nil, err
		}
		return n.Add(n, big.NewInt(1)), nil
	}
	for {
		n, err := rand.Int(s.random, saltLimit)
		if err != nil {
			return nil, err
		}
		if n.Sign() > 0 {
			return n, nil
		}
	}
}

// Recover returns the address that signed order under this signer's domain.
func (s *Signer) Recover(order *types.Order) (common.Address, error) {
	return Recover(s.Domain(order.SrcChainID, order.VerifyingContract), order.Signed)
}

// Recover returns the address that produced the signature on a signed order.
func Recover(domain Domain, signed types.SignedOrder) (common.Address, error) {
	digest, err := Hash(domain, signed.LimitOrder)
	if err != nil {
		return common.Address{}, err
	}
	sig, err := hexutil.Decode(signed.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	if sig[64] != 27 && sig[64] != 28 {
		return common.Address{}, fmt.Errorf("invalid recovery id %d", sig[64])
	}
	sig[64] -= 27

	pub, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that order was signed by its maker.
func (s *Signer) Verify(order *types.Order) error {
	signer, err := s.Recover(order)
	if err != nil {
		return types.SigningError("verify order", err)
	}
	if signer != common.HexToAddress(order.Signed.Maker) {
		return types.SigningError("verify order", fmt.Errorf("signed by %s, maker is %s", signer.Hex(), order.Signed.Maker))
	}
	return nil
}
