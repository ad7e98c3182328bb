// internal/audit/sink.go

// Package audit persists every produced decision to append-only history
// sinks. Decisions are immutable; a re-evaluation appends a new record and
// never rewrites an old one.
package audit

import (
	"context"

	"eligibility-engine/internal/models"
)

// Sink receives finished decisions. Append failures are reported to the
// caller for logging but must never fail the evaluation that produced the
// decision.
type Sink interface {
	Name() string
	Append(ctx context.Context, d *models.Decision) error
}
