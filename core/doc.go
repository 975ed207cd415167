// Package core defines the shared types used across the hostlog pipeline.
//
// It provides the Level type for severity filtering and the Record type
// that represents a single log event. Records carry everything a
// formatter may interpolate: logger name, severity, message, timestamp,
// goroutine label, process id, and the source module and line of the
// call site.
//
// Record objects are pooled via sync.Pool to keep the hot path
// allocation-free. The router gets a Record with GetRecord and returns
// it with PutRecord once every matched handler has consumed it
// synchronously. Handlers that retain a record past their Emit call
// (the queued wrapper) declare so; the router hands each of them a
// private copy, which the handler recycles after delivery.
package core
