package retrieval

import "sync/atomic"

// ExamplePair is one prior input/output pair in the example pool. The vector
// is the embedded input; pairs loaded without a vector are embedded lazily by
// the retriever.
type ExamplePair struct {
	Input  string
	Output string
	Vector []float64
}

// valid reports whether the pair is usable at all. Malformed entries are
// filtered out before ranking.
func (p ExamplePair) valid() bool {
	return p.Input != "" && p.Output != ""
}

// Pool holds the example pairs shared by concurrent pipeline runs. Reads see
// a consistent snapshot; Swap replaces the whole pool atomically so a reload
// never exposes a half-loaded state.
type Pool struct {
	data atomic.Pointer[[]ExamplePair]
}

// NewPool creates a pool seeded with pairs.
func NewPool(pairs []ExamplePair) *Pool {
	p := &Pool{}
	p.Swap(pairs)
	return p
}

// Swap atomically replaces the pool contents.
func (p *Pool) Swap(pairs []ExamplePair) {
	snapshot := make([]ExamplePair, len(pairs))
	copy(snapshot, pairs)
	p.data.Store(&snapshot)
}

// Snapshot returns the current contents. The returned slice must not be
// mutated.
func (p *Pool) Snapshot() []ExamplePair {
	ptr := p.data.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// Len returns the current number of entries.
func (p *Pool) Len() int {
	return len(p.Snapshot())
}
