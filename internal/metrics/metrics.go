// Package metrics exports event counters through expvar. They are served
// under /debug/vars by the serve command.
package metrics

import (
	"expvar"
	"sync"
	"time"
)

var (
	eventsProcessedMu     sync.Mutex
	eventsProcessed       = expvar.NewInt("events_processed")
	eventProcessingAvgSec = expvar.NewFloat("events_processing_avg_seconds")

	eventsApplied   = expvar.NewInt("events_applied")
	eventsUnchanged = expvar.NewInt("events_unchanged")
	eventsPartial   = expvar.NewInt("events_partial")
	eventsFailed    = expvar.NewInt("events_failed")
	eventsSkipped   = expvar.NewInt("events_skipped")

	integrityViolations = expvar.NewInt("integrity_violations")
	mirrorPushFailures  = expvar.NewInt("mirror_push_failures")
	notificationsSent   = expvar.NewInt("notifications_sent")
	notificationsFailed = expvar.NewInt("notifications_failed")
)

// Snapshot is a copy of the counters.
type Snapshot struct {
	Processed           int64
	Applied             int64
	Unchanged           int64
	Partial             int64
	Failed              int64
	Skipped             int64
	IntegrityViolations int64
	MirrorPushFailures  int64
	NotificationsSent   int64
	NotificationsFailed int64
}

// EventProcessed increments the processed counter and updates the average
// processing time.
func EventProcessed(elapsed time.Duration) {
	eventsProcessedMu.Lock()
	defer eventsProcessedMu.Unlock()
	eventsProcessed.Add(1)
	n := float64(eventsProcessed.Value())
	// (t[n] + avg[n-1] * (n - 1)) / n
	avg := (elapsed.Seconds() + eventProcessingAvgSec.Value()*(n-1)) / n
	eventProcessingAvgSec.Set(avg)
}

// EventApplied counts an event that changed refs.
func EventApplied() {
	eventsApplied.Add(1)
}

// EventUnchanged counts an event that found its update already applied.
func EventUnchanged() {
	eventsUnchanged.Add(1)
}

// EventPartial counts an event that left some mirrors behind.
func EventPartial() {
	eventsPartial.Add(1)
}

// EventFailed counts an event that changed nothing because of an error.
func EventFailed() {
	eventsFailed.Add(1)
}

// EventSkipped counts an event no repository could be resolved for.
func EventSkipped() {
	eventsSkipped.Add(1)
}

// IntegrityViolation counts a detected race or false update claim.
func IntegrityViolation() {
	integrityViolations.Add(1)
}

// MirrorPushFailures adds n failed mirror pushes.
func MirrorPushFailures(n int) {
	mirrorPushFailures.Add(int64(n))
}

// NotificationSent counts an owner notification.
func NotificationSent() {
	notificationsSent.Add(1)
}

// NotificationFailed counts an owner notification that could not be delivered.
func NotificationFailed() {
	notificationsFailed.Add(1)
}

// Current returns the current counter values.
func Current() Snapshot {
	return Snapshot{
		Processed:           eventsProcessed.Value(),
		Applied:             eventsApplied.Value(),
		Unchanged:           eventsUnchanged.Value(),
		Partial:             eventsPartial.Value(),
		Failed:              eventsFailed.Value(),
		Skipped:             eventsSkipped.Value(),
		IntegrityViolations: integrityViolations.Value(),
		MirrorPushFailures:  mirrorPushFailures.Value(),
		NotificationsSent:   notificationsSent.Value(),
		NotificationsFailed: notificationsFailed.Value(),
	}
}
