package ingest

import (
	"sync"

	"github.com/willf/bloom"
)

// dedupFilter remembers indicator values this process has seen stored. A
// negative answer is definite, so the exists round trip can be skipped and
// the unique constraint left to catch anything stored by an earlier process.
// A nil filter always answers "maybe".
type dedupFilter struct {
	mu sync.Mutex
	bf *bloom.BloomFilter
}

func newDedupFilter(n uint) *dedupFilter {
	return &dedupFilter{bf: bloom.NewWithEstimates(n, 0.01)}
}

func (f *dedupFilter) mayContain(v string) bool {
	if f == nil {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bf.TestString(v)
}

func (f *dedupFilter) add(v string) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.bf.AddString(v)
	f.mu.Unlock()
}
