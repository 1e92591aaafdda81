package provider

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// StubProvider hashes words into a fixed number of buckets. Texts sharing
// words get similar vectors, which is enough for offline use and tests.
type StubProvider struct {
	dims int
}

func NewStubProvider(dims int) *StubProvider {
	if dims <= 0 {
		dims = 256
	}
	return &StubProvider{dims: dims}
}

func (p *StubProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, p.dims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(p.dims)]++
	}
	return vec, nil
}

func (p *StubProvider) Name() string {
	return "stub"
}
