// Package vrrblog centralizes structured logging construction, adapting
// `github.com/luxfi/log` the way the teacher's own packages consume it
// (a `log.Logger` field threaded through component configs, structured
// fields via `log.Err`/`log.String`/etc., rather than format strings).
package vrrblog

import (
	"github.com/luxfi/log"
	"go.uber.org/zap"

	"github.com/vrrb-chain/consensus-core/primitives"
)

// Logger is the structured logger type every component config carries.
type Logger = log.Logger

// Field is a structured logging field, re-exported for callers that
// build up fields without importing luxfi/log directly.
type Field = log.Field

// New constructs a component-scoped logger, matching
// `log.NewLogger("ringtail")`'s per-subsystem scoping pattern
// (`internal/ringtail/finalizer.go`). The node id is not baked into the
// logger, since luxfi/log's `Logger` does not expose a persistent `With`;
// a call site that records it attaches NodeField explicitly.
func New(component string) Logger {
	return log.NewLogger(component)
}

// NodeField is the structured field every component log call should
// attach to identify which node emitted the record.
func NodeField(nodeID string) Field {
	return log.String("node_id", nodeID)
}

// NoOp returns a logger that discards everything, used by tests and
// components run without an owning node (e.g. standalone package tests).
func NoOp() Logger {
	return log.NewNoOpLogger()
}

// BlockField attaches a block/proposal ref hash as a structured field,
// rendered as its canonical luxfi/ids.ID fingerprint when the ref is a
// well-formed 32-byte digest. Refs that aren't (e.g. the synthetic
// "genesis" ref, or short hand-written test fixtures) fall back to the
// raw string rather than failing the log call. `log.Field` is `zap.Field`
// under the teacher's logger (see `protocol/nova/consensus.go`'s
// `ts.ctx.Log.Trace("rejecting block", zap.Stringer("blkID", childID),
// ...)`), so an `ids.ID` fingerprint is logged the same way: via
// `zap.Stringer`, not a pre-rendered string.
func BlockField(label, refHex string) Field {
	id, err := primitives.Fingerprint(refHex)
	if err != nil {
		return log.String(label, refHex)
	}
	return zap.Stringer(label, id)
}
