// Package merkle builds and verifies the membership-proof trees that bind a
// distribution round to its holder and off-ledger claim sets. Leaf encodings
// are bit-exact contracts shared with the external proof-generation tool.
package merkle

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"sort"
	"time"

	"github.com/zeebo/blake3"
)

// HashLen is the digest size of every node and leaf.
const HashLen = 32

// LeafOnLedger encodes hash(holder, trancheIndex, balance, snapshotRef).
func LeafOnLedger(holder string, trancheIndex int, balance *big.Int, snapshotAt time.Time) []byte {
	return leaf([][]byte{
		[]byte(holder),
		uint32Bytes(uint32(trancheIndex)),
		bigBytes(balance),
		uint64Bytes(uint64(snapshotAt.UTC().Unix())),
	})
}

// LeafOffLedger encodes hash(claimant, trancheIndex, amount, legalHash, snapshotRef).
func LeafOffLedger(claimant string, trancheIndex int, amount *big.Int, legalHash []byte, snapshotAt time.Time) []byte {
	return leaf([][]byte{
		[]byte(claimant),
		uint32Bytes(uint32(trancheIndex)),
		bigBytes(amount),
		legalHash,
		uint64Bytes(uint64(snapshotAt.UTC().Unix())),
	})
}

// leaf hashes length-prefixed fields so no two field sequences collide.
func leaf(fields [][]byte) []byte {
	var buf bytes.Buffer
	for _, field := range fields {
		buf.Write(uint32Bytes(uint32(len(field))))
		buf.Write(field)
	}
	sum := blake3.Sum256(buf.Bytes())
	return sum[:]
}

// Tree is a sorted-pair binary hash tree. Pair ordering makes proofs
// position-independent: Verify needs only the sibling path.
type Tree struct {
	layers [][][]byte
}

// NewTree builds a tree over the given leaves. Leaves are deduplicated and
// sorted so the root is deterministic regardless of input order.
func NewTree(leaves [][]byte) *Tree {
	unique := make([][]byte, 0, len(leaves))
	seen := make(map[string]struct{}, len(leaves))
	for _, l := range leaves {
		key := string(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		unique = append(unique, append([]byte(nil), l...))
	}
	sort.Slice(unique, func(i, j int) bool { return bytes.Compare(unique[i], unique[j]) < 0 })

	layers := [][][]byte{unique}
	current := unique
	for len(current) > 1 {
		next := make([][]byte, 0, (len(current)+1)/2)
		for i := 0; i < len(current); i += 2 {
			if i+1 == len(current) {
				next = append(next, current[i])
				continue
			}
			next = append(next, hashPair(current[i], current[i+1]))
		}
		layers = append(layers, next)
		current = next
	}
	return &Tree{layers: layers}
}

// Root returns the tree digest, or nil for an empty tree.
func (t *Tree) Root() []byte {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return nil
	}
	return append([]byte(nil), top[0]...)
}

// Prove returns the sibling path for a leaf, or false if absent.
func (t *Tree) Prove(target []byte) ([][]byte, bool) {
	index := -1
	for i, l := range t.layers[0] {
		if bytes.Equal(l, target) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, false
	}
	var proof [][]byte
	for _, layer := range t.layers[:len(t.layers)-1] {
		sibling := index ^ 1
		if sibling < len(layer) {
			proof = append(proof, append([]byte(nil), layer[sibling]...))
		}
		index /= 2
	}
	return proof, true
}

// Verify checks a leaf and sibling path against a root.
func Verify(root, target []byte, proof [][]byte) bool {
	if len(root) != HashLen || len(target) != HashLen {
		return false
	}
	node := target
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return bytes.Equal(node, root)
}

func hashPair(a, b []byte) []byte {
	if bytes.Compare(a, b) > 0 {
		a, b = b, a
	}
	sum := blake3.Sum256(append(append(make([]byte, 0, len(a)+len(b)), a...), b...))
	return sum[:]
}

func uint32Bytes(v uint32) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, v)
	return out
}

func uint64Bytes(v uint64) []byte {
	out := make([]byte, 8)
	binary.BigEndian.PutUint64(out, v)
	return out
}

func bigBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}
