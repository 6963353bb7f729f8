package orders

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"time"
)

const NumberPrefix = "ORD"

// NumberGenerator builds human-readable order numbers: ORD-<last 6 ms digits>-<3 random digits>.
// Not unique on its own; the store's unique constraint plus a retry in Create closes the gap.
type NumberGenerator struct {
	Prefix string
	Now    func() time.Time
	Rand   io.Reader
}

func NewNumberGenerator() *NumberGenerator {
	return &NumberGenerator{Prefix: NumberPrefix, Now: time.Now, Rand: rand.Reader}
}

func (g *NumberGenerator) Next() (string, error) {
	ts := g.Now().UnixMilli() % 1_000_000
	n, err := rand.Int(g.Rand, big.NewInt(1000))
	if err != nil {
		return "", fmt.Errorf("order number entropy: %w", err)
	}
	return fmt.Sprintf("%s-%06d-%03d", g.Prefix, ts, n.Int64()), nil
}
