// internal/token/fees.go
package token

import (
	"math"

	"github.com/gagliardetto/solana-go"
)

// FeeSplit is the creation fee divided between the fee receiver and an
// optional affiliate. Commission + Receiver always equals Total; commission
// is zero unless an affiliate relationship exists for the paying wallet.
type FeeSplit struct {
	Total      uint64
	Commission uint64
	Receiver   uint64
	Affiliate  *solana.PublicKey
}

// NewFeeSplit computes the split. With no affiliate the receiver gets the
// whole fee; otherwise commission = floor(total * rate).
func NewFeeSplit(total uint64, affiliate *solana.PublicKey, rate float64) FeeSplit {
	split := FeeSplit{Total: total, Receiver: total}
	if affiliate == nil || rate <= 0 {
		return split
	}
	split.Affiliate = affiliate
	split.Commission = uint64(math.Floor(float64(total) * rate))
	split.Receiver = total - split.Commission
	return split
}

// FeeLamports converts a SOL-denominated fee to lamports.
func FeeLamports(sol float64) uint64 {
	return uint64(math.Round(sol * float64(solana.LAMPORTS_PER_SOL)))
}
