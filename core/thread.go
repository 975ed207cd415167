package core

import (
	"bytes"
	"runtime"
)

// GoroutineLabel returns a stable label for the calling goroutine, in the
// form "goroutine-N". It parses the header line of runtime.Stack, which is
// the only portable way to observe the goroutine id. The parse costs about
// a microsecond, so registries only capture it when configured to.
func GoroutineLabel() string {
	var buf [32]byte
	n := runtime.Stack(buf[:], false)
	b := bytes.TrimPrefix(buf[:n], []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	return "goroutine-" + string(b)
}
