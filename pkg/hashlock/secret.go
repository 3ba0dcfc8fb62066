package hashlock

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SecretSize is the length of a secret in bytes.
const SecretSize = 32

// Secret is a 256-bit preimage revealed to resolvers.
type Secret [SecretSize]byte

// Hex returns the 0x-prefixed hex encoding of the secret.
func (s Secret) Hex() string {
	return hexutil.Encode(s[:])
}

// ParseSecret decodes a 0x-prefixed 32-byte hex secret.
func ParseSecret(s string) (Secret, error) {
	var secret Secret
	raw, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return secret, fmt.Errorf("invalid secret encoding: %w", err)
	}
	if len(raw) != SecretSize {
		return secret, fmt.Errorf("invalid secret length: want %d bytes, got %d", SecretSize, len(raw))
	}
	copy(secret[:], raw)
	return secret, nil
}

// NewSecret draws a secret from the system CSPRNG.
func NewSecret() (Secret, error) {
	var secret Secret
	if _, err := rand.Read(secret[:]); err != nil {
		return secret, fmt.Errorf("failed to generate secret: %w", err)
	}
	return secret, nil
}

// HashSecret returns the 0x-hex SHA-256 digest of the raw secret bytes.
func HashSecret(secret Secret) string {
	digest := hashSecretBytes(secret)
	return hexutil.Encode(digest[:])
}

func hashSecretBytes(secret Secret) [32]byte {
	return sha256.Sum256(secret[:])
}

// SecretSet is the ordered set of secrets backing one order attempt. It is
// read-only after creation and must be destroyed once the order is terminal.
type SecretSet struct {
	secrets []Secret
}

// NewSecretSet generates count independent secrets.
func NewSecretSet(count int) (*SecretSet, error) {
	if count < 1 {
		return nil, fmt.Errorf("secret count must be at least 1, got %d", count)
	}
	secrets := make([]Secret, count)
	for i := range secrets {
		secret, err := NewSecret()
		if err != nil {
			return nil, err
		}
		secrets[i] = secret
	}
	return &SecretSet{secrets: secrets}, nil
}

// SecretSetFrom wraps existing secrets, preserving their order.
func SecretSetFrom(secrets []Secret) *SecretSet {
	cp := make([]Secret, len(secrets))
	copy(cp, secrets)
	return &SecretSet{secrets: cp}
}

// Len returns the number of secrets.
func (s *SecretSet) Len() int {
	return len(s.secrets)
}

// At returns the secret at idx.
func (s *SecretSet) At(idx int) (Secret, error) {
	if idx < 0 || idx >= len(s.secrets) {
		return Secret{}, fmt.Errorf("secret index %d out of range [0, %d)", idx, len(s.secrets))
	}
	return s.secrets[idx], nil
}

// Hex returns the hex encoding of the secret at idx.
func (s *SecretSet) Hex(idx int) (string, error) {
	secret, err := s.At(idx)
	if err != nil {
		return "", err
	}
	return secret.Hex(), nil
}

// Secrets returns a copy of the ordered secrets.
func (s *SecretSet) Secrets() []Secret {
	cp := make([]Secret, len(s.secrets))
	copy(cp, s.secrets)
	return cp
}

// Hashes returns HashSecret for every secret in index order.
func (s *SecretSet) Hashes() []string {
	hashes := make([]string, len(s.secrets))
	for i, secret := range s.secrets {
		hashes[i] = HashSecret(secret)
	}
	return hashes
}

// HashLock returns the commitment for the whole set.
func (s *SecretSet) HashLock() HashLock {
	return ForSecrets(s.secrets)
}

// Destroy zeroes every secret. The set is unusable afterwards.
func (s *SecretSet) Destroy() {
	for i := range s.secrets {
		for j := range s.secrets[i] {
			s.secrets[i][j] = 0
		}
	}
	s.secrets = nil
}
