package embedding

import "context"

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Stateful embedders carry corpus-derived state that must be stored next to
// the vectors they produced, so the same space can be rebuilt after a restart.
type Stateful interface {
	State() ([]byte, error)
	Restore(state []byte) error
}

// Factory returns an embedder ready for Prepare. Each index generation gets
// its own instance.
type Factory func() (Embedder, error)
