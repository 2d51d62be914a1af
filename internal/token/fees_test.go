// internal/token/fees_test.go
package token

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
)

func TestNewFeeSplit(t *testing.T) {
	affiliate := solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	t.Run("no affiliate sends everything to receiver", func(t *testing.T) {
		split := NewFeeSplit(200_000_000, nil, 0.2)
		assert.Equal(t, uint64(200_000_000), split.Total)
		assert.Equal(t, uint64(0), split.Commission)
		assert.Equal(t, uint64(200_000_000), split.Receiver)
		assert.Nil(t, split.Affiliate)
	})

	t.Run("affiliate takes floor of commission", func(t *testing.T) {
		split := NewFeeSplit(200_000_000, &affiliate, 0.2)
		assert.Equal(t, uint64(40_000_000), split.Commission)
		assert.Equal(t, uint64(160_000_000), split.Receiver)
		assert.Equal(t, &affiliate, split.Affiliate)
	})

	t.Run("parts always sum to total", func(t *testing.T) {
		for _, total := range []uint64{0, 1, 3, 199_999_999, 200_000_000} {
			split := NewFeeSplit(total, &affiliate, 0.2)
			assert.Equal(t, total, split.Commission+split.Receiver,
				"total %d", total)
		}
	})

	t.Run("zero rate means no commission", func(t *testing.T) {
		split := NewFeeSplit(200_000_000, &affiliate, 0)
		assert.Equal(t, uint64(0), split.Commission)
		assert.Nil(t, split.Affiliate)
	})
}

func TestFeeLamports(t *testing.T) {
	assert.Equal(t, uint64(200_000_000), FeeLamports(0.2))
	assert.Equal(t, uint64(1_000_000_000), FeeLamports(1))
	assert.Equal(t, uint64(0), FeeLamports(0))
}
