package dispatch

import (
	"errors"

	"github.com/danieljhkim/mirrorsync/internal/audit"
	"github.com/danieljhkim/mirrorsync/internal/events"
)

// Status is how the handling of one event ended.
type Status string

const (
	StatusApplied   = Status(audit.OutcomeApplied)
	StatusUnchanged = Status(audit.OutcomeUnchanged)
	StatusPartial   = Status(audit.OutcomePartial)
	StatusFailed    = Status(audit.OutcomeFailed)
	// StatusSkipped: no repository or mirror matched the event.
	StatusSkipped Status = "skipped"
)

// Outcome describes the handling of one event.
type Outcome struct {
	Event      events.Event    `json:"event"`
	Repository string          `json:"repository,omitempty"`
	Origin     string          `json:"origin,omitempty"`
	Direction  audit.Direction `json:"direction,omitempty"`
	Status     Status          `json:"status"`

	Classification string   `json:"classification,omitempty"`
	FailedMirrors  []string `json:"failed_mirrors,omitempty"`

	// Error is Err's message, for JSON output
	Error string `json:"error,omitempty"`
	Err   error  `json:"-"`
}

// Report lists one Outcome per event, in input order.
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Err joins the errors of all failed or partial outcomes. Skipped events are
// not errors.
func (r *Report) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		if o.Err != nil && o.Status != StatusSkipped {
			errs = append(errs, o.Err)
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of outcomes with status s.
func (r *Report) Count(s Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == s {
			n++
		}
	}
	return n
}
