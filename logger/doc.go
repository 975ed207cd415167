// Package logger is the public API of hostlog. Most callers only need
// this package: get a named logger, log through it, and let the
// registry route records to whatever handlers configuration attached.
//
// Loggers form a tree keyed by dot-separated names, with the root at
// the empty name. A logger without its own level inherits the nearest
// ancestor's, and an emitted record is offered to every handler from
// the originating logger up to the first node with propagation turned
// off. A path with no handlers at all drops the record silently; that
// is a valid configuration, not an error.
//
//	log := registry.GetLogger("storage.volume")
//	log.Infof("volume %s attached", id)
//
// Level gating happens before printf substitution, so a filtered-out
// call costs a read lock and one integer comparison. Handlers that keep
// records past Emit (the queued wrapper) receive their own copy; all
// delivery failures are contained in the handler layer and never reach
// the logging call site.
//
// The Default registry exists for the common daemon case of one
// process-wide tree configured once at startup. It starts with no
// handlers. Tests should build isolated registries with NewRegistry.
package logger
