package handler

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/hostvirt/hostlog/core"
)

// QueueHandler decouples producers from a wrapped handler's I/O latency.
// Emit appends to an internal FIFO queue and returns; a single consumer
// goroutine drains the queue and calls the wrapped handler's Emit. The
// queue is unbounded by default, so producers never block; a bounded
// queue requires an explicit OverflowPolicy.
//
// A failed downstream emit is reported on the fallback writer and the
// consumer moves on: one bad record never halts the pipeline.
type QueueHandler struct {
	target   Handler
	fallback io.Writer
	minLevel core.Level
	stats    *Stats

	// Unbounded mode: a mutex-guarded slice with a condition variable.
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []*core.Record
	closed bool

	// Bounded mode: a channel with the configured overflow policy.
	ch           chan *core.Record
	policy       OverflowPolicy
	blockTimeout time.Duration
	done         chan struct{}

	wg sync.WaitGroup
}

// QueueConfig holds configuration for a queued handler wrapper.
type QueueConfig struct {
	// Target is the single handler the queue wraps (required)
	Target Handler
	// MinLevel is the wrapper's own threshold, applied before a record
	// is enqueued (default: DebugLevel, pass everything). The target
	// handler still applies its own threshold on top.
	MinLevel core.Level
	// Capacity bounds the queue. Zero means unbounded, which is the
	// default: growth over process lifetime is acceptable at expected
	// log volume.
	Capacity int
	// Policy is required when Capacity > 0. There is deliberately no
	// default for bounded queues.
	Policy OverflowPolicy
	// BlockTimeout caps a producer stall under the Block policy
	// (default: 1s). After the timeout the record is written
	// synchronously by the producer, which can deliver it ahead of
	// that producer's still-queued earlier records: a timed-out Block
	// trades per-producer ordering for completeness.
	BlockTimeout time.Duration
	// Fallback receives terse diagnostics for downstream emit failures
	// (default: os.Stderr)
	Fallback io.Writer
}

// NewQueueHandler creates the wrapper and starts its consumer goroutine.
func NewQueueHandler(cfg QueueConfig) (*QueueHandler, error) {
	if cfg.Target == nil {
		return nil, fmt.Errorf("handler: queue target is required")
	}
	if cfg.Capacity > 0 && cfg.Policy == PolicyUnset {
		return nil, fmt.Errorf("handler: bounded queue requires an explicit overflow policy")
	}
	if cfg.Fallback == nil {
		cfg.Fallback = os.Stderr
	}
	if cfg.BlockTimeout == 0 {
		cfg.BlockTimeout = time.Second
	}

	h := &QueueHandler{
		target:       cfg.Target,
		fallback:     cfg.Fallback,
		minLevel:     cfg.MinLevel,
		stats:        NewStats(),
		policy:       cfg.Policy,
		blockTimeout: cfg.BlockTimeout,
	}

	h.wg.Add(1)
	if cfg.Capacity > 0 {
		h.ch = make(chan *core.Record, cfg.Capacity)
		h.done = make(chan struct{})
		go h.consumeBounded()
	} else {
		h.cond = sync.NewCond(&h.mu)
		go h.consumeUnbounded()
	}

	return h, nil
}

// Retains reports that the queue keeps records past Emit; the router
// hands it a private copy and the consumer recycles it after delivery.
func (h *QueueHandler) Retains() bool {
	return true
}

// Emit enqueues one record at or above the wrapper's threshold. In
// unbounded mode it never blocks; in bounded mode the configured
// overflow policy applies.
func (h *QueueHandler) Emit(r *core.Record) error {
	if r.Level < h.minLevel {
		core.PutRecord(r)
		return nil
	}
	if h.ch != nil {
		return h.emitBounded(r)
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		h.stats.IncrementDropped()
		core.PutRecord(r)
		return ErrQueueClosed
	}
	h.buf = append(h.buf, r)
	h.mu.Unlock()
	h.cond.Signal()
	return nil
}

func (h *QueueHandler) emitBounded(r *core.Record) error {
	select {
	case <-h.done:
		h.stats.IncrementDropped()
		core.PutRecord(r)
		return ErrQueueClosed
	default:
	}

	switch h.policy {
	case Block:
		select {
		case h.ch <- r:
			return nil
		default:
		}
		h.stats.IncrementBlocked()
		timer := time.NewTimer(h.blockTimeout)
		defer timer.Stop()
		select {
		case h.ch <- r:
			return nil
		case <-timer.C:
			// Timed out waiting for space; deliver on the producer's
			// thread rather than lose the record.
			return h.deliver(r)
		case <-h.done:
			return h.deliver(r)
		}

	case DropOldest:
		select {
		case h.ch <- r:
			return nil
		default:
		}
		// Evict one and retry once.
		select {
		case old := <-h.ch:
			h.stats.IncrementDropped()
			core.PutRecord(old)
		default:
		}
		select {
		case h.ch <- r:
			return nil
		default:
			h.stats.IncrementDropped()
			core.PutRecord(r)
			return nil
		}

	default: // DropNewest
		select {
		case h.ch <- r:
			return nil
		default:
			h.stats.IncrementDropped()
			core.PutRecord(r)
			return nil
		}
	}
}

// deliver runs the wrapped handler synchronously and recycles the record.
func (h *QueueHandler) deliver(r *core.Record) error {
	err := h.target.Emit(r)
	if err != nil {
		h.stats.IncrementEmitFailures()
		fmt.Fprintf(h.fallback, "hostlog: emit failed: %v\n", err)
	} else {
		h.stats.IncrementProcessed()
	}
	if !Retains(h.target) {
		core.PutRecord(r)
	}
	return err
}

// consumeUnbounded drains the slice queue in FIFO order until Close.
func (h *QueueHandler) consumeUnbounded() {
	defer h.wg.Done()

	for {
		h.mu.Lock()
		for len(h.buf) == 0 && !h.closed {
			h.cond.Wait()
		}
		if len(h.buf) == 0 && h.closed {
			h.mu.Unlock()
			return
		}
		// Take the whole batch to keep lock hold times short.
		batch := h.buf
		h.buf = nil
		h.mu.Unlock()

		for _, r := range batch {
			h.deliver(r)
		}
	}
}

// consumeBounded drains the channel queue in FIFO order until Close,
// then flushes whatever is still pending.
func (h *QueueHandler) consumeBounded() {
	defer h.wg.Done()

	for {
		select {
		case r := <-h.ch:
			h.deliver(r)
		case <-h.done:
			for {
				select {
				case r := <-h.ch:
					h.deliver(r)
				default:
					return
				}
			}
		}
	}
}

// Stats returns a snapshot of the current statistics
func (h *QueueHandler) Stats() Snapshot {
	return h.stats.GetSnapshot()
}

// Close drains all pending records, joins the consumer goroutine, and
// then closes the wrapped handler. Safe to call more than once.
func (h *QueueHandler) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	if h.ch != nil {
		close(h.done)
	} else {
		h.cond.Signal()
	}

	h.wg.Wait()
	return h.target.Close()
}
