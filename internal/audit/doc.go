// Package audit defines the audit event model and the sinks that consume
// it (channel, JSON line writer, no-op).
//
// The package owns event shape and sink delivery only. It does not decide
// which events to emit — that responsibility belongs to the Engine — and it
// performs no I/O beyond what a caller-supplied Sink does.
package audit
