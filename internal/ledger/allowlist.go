package ledger

import (
	"bytes"
	"sort"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// AllowlistLeaf returns the merkle leaf committed for claimant.
func AllowlistLeaf(claimant domain.Address) domain.Hash {
	return domain.BytesToHash(domain.Keccak256(claimant.Bytes()))
}

// hashPair hashes two nodes in sorted order, so proofs carry no
// left/right flags.
func hashPair(a, b domain.Hash) domain.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return domain.BytesToHash(domain.Keccak256(a[:], b[:]))
}

// VerifyMembership reports whether proof links claimant's leaf to root.
func VerifyMembership(proof []domain.Hash, root domain.Hash, claimant domain.Address) bool {
	node := AllowlistLeaf(claimant)
	for _, sibling := range proof {
		node = hashPair(node, sibling)
	}
	return node == root
}

// Allowlist builds a sorted-pair merkle tree over a set of addresses. It is
// the producer side of VerifyMembership: operators commit Root() in
// configuration and hand each claimant its Proof().
type Allowlist struct {
	levels [][]domain.Hash
}

// NewAllowlist builds the tree. Duplicate addresses are collapsed.
func NewAllowlist(members []domain.Address) *Allowlist {
	seen := make(map[domain.Hash]struct{}, len(members))
	leaves := make([]domain.Hash, 0, len(members))
	for _, m := range members {
		leaf := AllowlistLeaf(m)
		if _, dup := seen[leaf]; dup {
			continue
		}
		seen[leaf] = struct{}{}
		leaves = append(leaves, leaf)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i][:], leaves[j][:]) < 0
	})

	a := &Allowlist{levels: [][]domain.Hash{leaves}}
	for level := leaves; len(level) > 1; {
		next := make([]domain.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				// Odd node is promoted unchanged.
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		a.levels = append(a.levels, next)
		level = next
	}
	return a
}

// Root returns the committed root. An empty allowlist has the zero root.
func (a *Allowlist) Root() domain.Hash {
	top := a.levels[len(a.levels)-1]
	if len(top) == 0 {
		return domain.Hash{}
	}
	return top[0]
}

// Proof returns the membership proof for claimant.
func (a *Allowlist) Proof(claimant domain.Address) ([]domain.Hash, bool) {
	leaf := AllowlistLeaf(claimant)
	idx := -1
	for i, l := range a.levels[0] {
		if l == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, false
	}

	var proof []domain.Hash
	for _, level := range a.levels[:len(a.levels)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			proof = append(proof, level[sibling])
		}
		idx /= 2
	}
	return proof, true
}
