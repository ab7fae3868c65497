package redemption

import (
	"math/rand"
	"strings"
	"sync"
)

const (
	codeAlphabet      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	defaultCodeLength = 10
)

// CodeGenerator produces candidate voucher codes.
type CodeGenerator interface {
	NewCode() string
}

// RandomCodeGenerator draws codes from a seedable source so tests can pin the
// sequence.
type RandomCodeGenerator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	length int
}

func NewRandomCodeGenerator(seed int64, length int) *RandomCodeGenerator {
	if length <= 0 {
		length = defaultCodeLength
	}
	return &RandomCodeGenerator{
		rng:    rand.New(rand.NewSource(seed)),
		length: length,
	}
}

func (g *RandomCodeGenerator) NewCode() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(g.length)
	for i := 0; i < g.length; i++ {
		b.WriteByte(codeAlphabet[g.rng.Intn(len(codeAlphabet))])
	}
	return b.String()
}
