package handler

import (
	"sync/atomic"
)

// Stats tracks per-handler delivery counters. All methods are safe for
// concurrent use.
type Stats struct {
	processed    uint64
	dropped      uint64
	emitFailures uint64
	reconnects   uint64
	blocked      uint64
}

// NewStats creates a new Stats instance
func NewStats() *Stats {
	return &Stats{}
}

// IncrementProcessed counts one successfully delivered record.
func (s *Stats) IncrementProcessed() {
	atomic.AddUint64(&s.processed, 1)
}

// IncrementDropped counts one record dropped by overflow or transport policy.
func (s *Stats) IncrementDropped() {
	atomic.AddUint64(&s.dropped, 1)
}

// IncrementEmitFailures counts one downstream delivery failure.
func (s *Stats) IncrementEmitFailures() {
	atomic.AddUint64(&s.emitFailures, 1)
}

// IncrementReconnects counts one transport reconnect attempt.
func (s *Stats) IncrementReconnects() {
	atomic.AddUint64(&s.reconnects, 1)
}

// IncrementBlocked counts one producer stall on a full bounded queue.
func (s *Stats) IncrementBlocked() {
	atomic.AddUint64(&s.blocked, 1)
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Processed    uint64
	Dropped      uint64
	EmitFailures uint64
	Reconnects   uint64
	Blocked      uint64
}

// GetSnapshot returns a snapshot of current statistics
func (s *Stats) GetSnapshot() Snapshot {
	return Snapshot{
		Processed:    atomic.LoadUint64(&s.processed),
		Dropped:      atomic.LoadUint64(&s.dropped),
		EmitFailures: atomic.LoadUint64(&s.emitFailures),
		Reconnects:   atomic.LoadUint64(&s.reconnects),
		Blocked:      atomic.LoadUint64(&s.blocked),
	}
}

// Reset resets all counters to zero.
func (s *Stats) Reset() {
	atomic.StoreUint64(&s.processed, 0)
	atomic.StoreUint64(&s.dropped, 0)
	atomic.StoreUint64(&s.emitFailures, 0)
	atomic.StoreUint64(&s.reconnects, 0)
	atomic.StoreUint64(&s.blocked, 0)
}
