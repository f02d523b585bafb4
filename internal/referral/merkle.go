package referral

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"golang.org/x/crypto/sha3"
)

// OperatorProof proves membership of one operator key in a Merkle root.
type OperatorProof struct {
	Index uint64
	Path  [][32]byte
}

// ParseOperatorProof reads a comma separated list of hex siblings.
func ParseOperatorProof(index uint64, path string) (*OperatorProof, error) {
	proof := &OperatorProof{Index: index}
	path = strings.TrimSpace(path)
	if path == "" {
		return proof, nil
	}
	for _, part := range strings.Split(path, ",") {
		node, err := parseHash(part)
		if err != nil {
			return nil, err
		}
		proof.Path = append(proof.Path, node)
	}
	return proof, nil
}

// Encode renders the path in the ParseOperatorProof format.
func (p *OperatorProof) Encode() string {
	parts := make([]string, len(p.Path))
	for i, node := range p.Path {
		parts[i] = hex.EncodeToString(node[:])
	}
	return strings.Join(parts, ",")
}

func parseHash(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil || len(raw) != len(out) {
		return out, fmt.Errorf("%w: bad merkle node %q", ErrInvalidOperatorConfig, s)
	}
	copy(out[:], raw)
	return out, nil
}

// ParseOperatorRoot decodes a hex root.
func ParseOperatorRoot(s string) ([32]byte, error) {
	return parseHash(s)
}

func keccak(parts ...[]byte) [32]byte {
	hasher := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		hasher.Write(p)
	}
	var out [32]byte
	copy(out[:], hasher.Sum(nil))
	return out
}

// OperatorLeaf is keccak256(u64le(index) || key).
func OperatorLeaf(index uint64, key solana.PublicKey) [32]byte {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	return keccak(idx[:], key[:])
}

func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return keccak(a[:], b[:])
	}
	return keccak(b[:], a[:])
}

// VerifyOperatorProof folds the proof path over the caller's leaf and
// compares the result with root.
func VerifyOperatorProof(root [32]byte, caller solana.PublicKey, proof *OperatorProof) bool {
	if proof == nil {
		return false
	}
	current := OperatorLeaf(proof.Index, caller)
	for _, sibling := range proof.Path {
		current = hashPair(current, sibling)
	}
	return current == root
}

// BuildOperatorTree computes the root over keys (leaf i is keys[i]) and a
// proof per key. A node without a sibling is promoted unchanged.
func BuildOperatorTree(keys []solana.PublicKey) ([32]byte, []OperatorProof) {
	var root [32]byte
	if len(keys) == 0 {
		return root, nil
	}
	proofs := make([]OperatorProof, len(keys))
	level := make([][32]byte, len(keys))
	// position of each key's ancestor in the current level
	pos := make([]int, len(keys))
	for i, k := range keys {
		level[i] = OperatorLeaf(uint64(i), k)
		proofs[i].Index = uint64(i)
		pos[i] = i
	}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		for k := range keys {
			p := pos[k]
			sibling := p ^ 1
			if sibling < len(level) {
				proofs[k].Path = append(proofs[k].Path, level[sibling])
			}
			pos[k] = p / 2
		}
		level = next
	}
	return level[0], proofs
}
