package chunkuploader

import (
	"sync"
	"time"
)

// Stats tracks finished part uploads for hung detection and reporting.
type Stats struct {
	mu            sync.Mutex
	sum           time.Duration
	bytes         uint64
	finishedParts int64
}

// NewStats ...
func NewStats() *Stats {
	return &Stats{}
}

// Update records a successful part upload.
func (s *Stats) Update(took time.Duration, size uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sum += took
	s.bytes += size
	s.finishedParts++
}

// Average returns the average upload duration of the finished parts.
func (s *Stats) Average() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finishedParts == 0 {
		return 0
	}
	return s.sum / time.Duration(s.finishedParts)
}

// FinishedCount ...
func (s *Stats) FinishedCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finishedParts
}

// Throughput returns the bytes per second of a single upload slot.
func (s *Stats) Throughput() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sum <= 0 {
		return 0
	}
	return float64(s.bytes) / s.sum.Seconds()
}
