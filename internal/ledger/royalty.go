package ledger

import (
	"math/bits"

	"github.com/yndnr/licmesh/internal/core/domain"
)

// MaxBasisPoints is 100%.
const MaxBasisPoints = 10000

// RoyaltyPolicy is the collection-wide secondary-sale royalty.
type RoyaltyPolicy struct {
	Receiver    domain.Address `json:"receiver"`
	BasisPoints uint64         `json:"basis_points"`
}

// Validate checks the basis points range.
func (p RoyaltyPolicy) Validate() error {
	if p.BasisPoints > MaxBasisPoints {
		return domain.ErrInvalidArgument.WithDetailsf("royalty basis points %d exceed %d", p.BasisPoints, MaxBasisPoints)
	}
	return nil
}

// Amount returns salePrice * bps / 10000 without overflowing.
func (p RoyaltyPolicy) Amount(salePrice uint64) uint64 {
	hi, lo := bits.Mul64(salePrice, p.BasisPoints)
	q, _ := bits.Div64(hi, lo, MaxBasisPoints)
	return q
}
