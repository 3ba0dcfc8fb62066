// Package hashlock builds the commitments that gate fund release in a swap:
// a single secret hash, or a Merkle root over one hash per partial fill.
//
// The Merkle tree is computed over raw 32-byte SHA-256 digests. On every
// level with an odd node count the last node is duplicated, then adjacent
// nodes are hashed as SHA-256(left || right). The relayer recomputes the
// same tree, so leaf order must equal secret index order.
package hashlock

import (
	"crypto/sha256"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Kind tags the HashLock variant.
type Kind string

const (
	KindSingle Kind = "single"
	KindMerkle Kind = "merkle"
)

// HashLock is either a single secret hash or a Merkle root of secret hashes.
type HashLock struct {
	kind  Kind
	value [32]byte
}

// Kind returns the variant tag.
func (h HashLock) Kind() Kind {
	return h.kind
}

// Bytes returns the raw commitment.
func (h HashLock) Bytes() [32]byte {
	return h.value
}

// Value returns the 0x-hex commitment.
func (h HashLock) Value() string {
	return hexutil.Encode(h.value[:])
}

func (h HashLock) String() string {
	return fmt.Sprintf("%s(%s)", h.kind, h.Value())
}

// BuildSingle commits to exactly one secret.
func BuildSingle(secret Secret) HashLock {
	return HashLock{kind: KindSingle, value: hashSecretBytes(secret)}
}

// BuildMerkle commits to an ordered list of secrets.
func BuildMerkle(secrets []Secret) HashLock {
	return HashLock{kind: KindMerkle, value: MerkleRoot(Leaves(secrets))}
}

// ForSecrets picks Single for one secret and Merkle otherwise.
func ForSecrets(secrets []Secret) HashLock {
	if len(secrets) == 1 {
		return BuildSingle(secrets[0])
	}
	return BuildMerkle(secrets)
}

// Leaves hashes every secret, preserving order.
func Leaves(secrets []Secret) [][32]byte {
	leaves := make([][32]byte, len(secrets))
	for i, secret := range secrets {
		leaves[i] = hashSecretBytes(secret)
	}
	return leaves
}

// MerkleRoot reduces leaves to a root. No leaves yields 32 zero bytes and a
// single leaf is returned unchanged.
func MerkleRoot(leaves [][32]byte) [32]byte {
	switch len(leaves) {
	case 0:
		return [32]byte{}
	case 1:
		return leaves[0]
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		level = nextLevel(level)
	}
	return level[0]
}

// MerkleProof returns the sibling hashes needed to recompute the root from
// the leaf at idx, ordered from the leaf level upwards.
func MerkleProof(leaves [][32]byte, idx int) ([][32]byte, error) {
	if idx < 0 || idx >= len(leaves) {
		return nil, fmt.Errorf("leaf index %d out of range [0, %d)", idx, len(leaves))
	}
	level := make([][32]byte, len(leaves))
	copy(level, leaves)

	var proof [][32]byte
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		proof = append(proof, level[idx^1])
		level = nextLevel(level)
		idx /= 2
	}
	return proof, nil
}

// VerifyProof recomputes the root from a leaf and its proof.
func VerifyProof(leaf [32]byte, idx int, proof [][32]byte, root [32]byte) bool {
	if idx < 0 {
		return false
	}
	node := leaf
	for _, sibling := range proof {
		if idx%2 == 0 {
			node = hashPair(node, sibling)
		} else {
			node = hashPair(sibling, node)
		}
		idx /= 2
	}
	return node == root
}

func nextLevel(level [][32]byte) [][32]byte {
	if len(level)%2 == 1 {
		level = append(level, level[len(level)-1])
	}
	next := make([][32]byte, 0, len(level)/2)
	for i := 0; i < len(level); i += 2 {
		next = append(next, hashPair(level[i], level[i+1]))
	}
	return next
}

func hashPair(left, right [32]byte) [32]byte {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return sha256.Sum256(buf[:])
}
