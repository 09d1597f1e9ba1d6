package chunkuploader

import (
	"sync"
	"sync/atomic"
)

// ProgressReporter receives the cumulative number of acknowledged bytes.
type ProgressReporter func(uploaded, total uint64)

// Progress counts the acknowledged bytes of a transfer.
// Parts finish in any order, the reported totals never decrease.
type Progress struct {
	total    uint64
	uploaded atomic.Uint64

	mu       sync.Mutex
	reported uint64
	reporter ProgressReporter
}

// NewProgress creates a Progress for a transfer of total bytes. reporter may be nil.
func NewProgress(total uint64, reporter ProgressReporter) *Progress {
	return &Progress{total: total, reporter: reporter}
}

// Add records n acknowledged bytes.
func (p *Progress) Add(n uint64) {
	uploaded := p.uploaded.Add(n)
	if p.reporter == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// A concurrent Add may already have reported a larger total.
	if uploaded < p.reported {
		return
	}
	p.reported = uploaded
	p.reporter(uploaded, p.total)
}

// Uploaded ...
func (p *Progress) Uploaded() uint64 {
	return p.uploaded.Load()
}

// Total ...
func (p *Progress) Total() uint64 {
	return p.total
}
