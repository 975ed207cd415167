package core

import (
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

var (
	coarseOnce sync.Once
	coarseNow  unsafe.Pointer // *time.Time
)

// StartCoarseClock starts the background goroutine that caches time.Now()
// every 500µs. Registries configured with the coarse clock stamp records
// from this cache instead of calling time.Now() per record. Safe to call
// multiple times; the goroutine is started exactly once and runs for the
// lifetime of the process, which matches the registry's own lifecycle.
func StartCoarseClock() {
	coarseOnce.Do(func() {
		t := time.Now()
		atomic.StorePointer(&coarseNow, unsafe.Pointer(&t))
		go func() {
			ticker := time.NewTicker(500 * time.Microsecond)
			for range ticker.C {
				t := time.Now()
				atomic.StorePointer(&coarseNow, unsafe.Pointer(&t))
			}
		}()
	})
}

// CoarseNow returns the most recently cached time. StartCoarseClock must
// have been called first.
func CoarseNow() time.Time {
	return *(*time.Time)(atomic.LoadPointer(&coarseNow))
}
