// Package handler provides the Handler interface and its built-in
// implementations for delivering log records to their terminal sinks.
//
// Four kinds exist, matching the closed set selectable from
// configuration:
//
//   - StreamHandler writes formatted records to any io.Writer
//     (default: stdout).
//   - FileHandler appends to a log file owned by a fixed unprivileged
//     user/group with a fixed mode, even when the process runs as root,
//     and can reopen the path after external rotation.
//   - SyslogHandler forwards records at or above a threshold to the
//     local system log, reconnecting at most once per failed write.
//   - QueueHandler wraps exactly one other handler behind a FIFO queue
//     drained by a single consumer goroutine, so producers never wait
//     on sink I/O.
//
// Every handler applies its own minimum level, which may be stricter
// than the logger that routed the record. Delivery failures never
// propagate to logging call sites: the queue consumer reports them on a
// fallback writer and keeps going, and each handler counts processed,
// dropped, and failed records in its Stats.
//
// The queue is unbounded unless configured with a capacity, in which
// case an explicit OverflowPolicy (Block, DropOldest, DropNewest) is
// required. Close on a queued handler drains everything already
// accepted before closing the wrapped handler.
package handler
