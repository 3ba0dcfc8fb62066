package store

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"fusion-swap/pkg/hashlock"
)

// Sealer encrypts secret sets at rest with XChaCha20-Poly1305. The record id
// is bound as associated data, so a sealed blob cannot be moved to another
// record.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create sealer: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts secrets for the record id.
func (s *Sealer) Seal(id string, secrets *hashlock.SecretSet) (string, error) {
	plain := make([]byte, 0, secrets.Len()*hashlock.SecretSize)
	for _, secret := range secrets.Secrets() {
		plain = append(plain, secret[:]...)
	}
	defer zero(plain)

	nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, plain, []byte(id))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed secret set for the record id.
func (s *Sealer) Open(id, sealed string) (*hashlock.SecretSet, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, fmt.Errorf("decode sealed secrets: %w", err)
	}
	if len(data) < s.aead.NonceSize() {
		return nil, fmt.Errorf("sealed secrets too short")
	}
	nonce, ciphertext := data[:s.aead.NonceSize()], data[s.aead.NonceSize():]
	plain, err := s.aead.Open(nil, nonce, ciphertext, []byte(id))
	if err != nil {
		return nil, fmt.Errorf("open sealed secrets: %w", err)
	}
	defer zero(plain)

	if len(plain) == 0 || len(plain)%hashlock.SecretSize != 0 {
		return nil, fmt.Errorf("sealed secrets have invalid length %d", len(plain))
	}
	secrets := make([]hashlock.Secret, len(plain)/hashlock.SecretSize)
	for i := range secrets {
		copy(secrets[i][:], plain[i*hashlock.SecretSize:])
	}
	set := hashlock.SecretSetFrom(secrets)
	for i := range secrets {
		secrets[i] = hashlock.Secret{}
	}
	return set, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
