// Package dispatch routes ref update events to the sync engine.
//
// A Dispatcher resolves the repository (and, for mirror events, the origin
// mirror) of every event, serialises work per (repository, ref), bounds each
// event with a timeout, records the outcome in the audit log and tells the
// repository owner about failures. Events are handled one after the other;
// a failing event does not stop the rest.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danieljhkim/mirrorsync/internal/audit"
	"github.com/danieljhkim/mirrorsync/internal/clock"
	"github.com/danieljhkim/mirrorsync/internal/config"
	"github.com/danieljhkim/mirrorsync/internal/events"
	"github.com/danieljhkim/mirrorsync/internal/lock"
	"github.com/danieljhkim/mirrorsync/internal/metrics"
	"github.com/danieljhkim/mirrorsync/internal/notify"
	"github.com/danieljhkim/mirrorsync/internal/sync"
	"k8s.io/klog/v2"
)

// Engine is the part of *sync.Engine the dispatcher drives.
type Engine interface {
	PropagateToMirrors(ctx context.Context, req *sync.PropagateRequest) (*sync.PropagateResult, error)
	ApplyFromMirror(ctx context.Context, req *sync.ApplyRequest) (*sync.ApplyResult, error)
}

// Dispatcher handles events for the repositories of a registry.
type Dispatcher struct {
	registry *config.Registry
	engine   Engine
	locks    lock.Service
	recorder audit.Recorder
	notifier notify.Notifier
	clock    clock.Clock
	timeout  time.Duration
}

// New creates a Dispatcher. recorder may be nil to disable the audit log.
// A non-positive timeout leaves events unbounded.
func New(
	registry *config.Registry,
	engine Engine,
	locks lock.Service,
	recorder audit.Recorder,
	notifier notify.Notifier,
	clk clock.Clock,
	timeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		engine:   engine,
		locks:    locks,
		recorder: recorder,
		notifier: notifier,
		clock:    clk,
		timeout:  timeout,
	}
}

// job is one event bound to its repository.
type job struct {
	repo     *config.Repository
	origin   string
	skip     []string
	event    events.Event
	suppress bool
}

// HandleLocalPush propagates events that happened in the repository at dir,
// as reported by its post-receive hook.
func (d *Dispatcher) HandleLocalPush(ctx context.Context, dir string, evs []events.Event, suppress bool) (*Report, error) {
	repo, err := d.registry.FindByDirectory(dir)
	if err != nil {
		return nil, err
	}
	report := &Report{}
	for _, ev := range evs {
		report.Outcomes = append(report.Outcomes, d.process(ctx, job{repo: repo, event: ev, suppress: suppress}))
	}
	return report, report.Err()
}

// HandleMirrorPush applies events reported by mirrors. Events whose URLs
// match no configured mirror are skipped; nobody is notified because no
// owner is known.
func (d *Dispatcher) HandleMirrorPush(ctx context.Context, evs []events.Event, suppress bool) (*Report, error) {
	report := &Report{}
	for _, ev := range evs {
		repo, mirror, err := d.registry.FindMirrorByURL(ev.MirrorURLs)
		if err != nil {
			klog.InfoS("Skipping event from unknown mirror", "ref", ev.Ref, "urls", ev.MirrorURLs)
			metrics.EventSkipped()
			report.Outcomes = append(report.Outcomes, Outcome{
				Event:  ev,
				Status: StatusSkipped,
				Error:  err.Error(),
				Err:    err,
			})
			continue
		}
		report.Outcomes = append(report.Outcomes, d.process(ctx, job{repo: repo, origin: mirror, event: ev, suppress: suppress}))
	}
	return report, report.Err()
}

// Propagate pushes a local update of the named repository to its mirrors,
// except those in skip. Every name in skip must be a configured mirror.
func (d *Dispatcher) Propagate(ctx context.Context, repository string, ev events.Event, skip []string, suppress bool) (*Report, error) {
	repo, err := d.registry.Get(repository)
	if err != nil {
		return nil, err
	}
	for _, name := range skip {
		if _, ok := repo.Mirrors.Get(name); !ok {
			return nil, fmt.Errorf("%w: cannot skip %q in repository %s", sync.ErrUnknownMirror, name, repository)
		}
	}
	report := &Report{Outcomes: []Outcome{d.process(ctx, job{repo: repo, skip: skip, event: ev, suppress: suppress})}}
	return report, report.Err()
}

// Apply ingests an update that mirror of the named repository reports.
func (d *Dispatcher) Apply(ctx context.Context, repository, mirror string, ev events.Event, suppress bool) (*Report, error) {
	repo, err := d.registry.Get(repository)
	if err != nil {
		return nil, err
	}
	if _, ok := repo.Mirrors.Get(mirror); !ok {
		return nil, fmt.Errorf("%w: %q in repository %s", sync.ErrUnknownMirror, mirror, repository)
	}
	report := &Report{Outcomes: []Outcome{d.process(ctx, job{repo: repo, origin: mirror, event: ev, suppress: suppress})}}
	return report, report.Err()
}

func (d *Dispatcher) process(ctx context.Context, j job) Outcome {
	start := d.clock.Now()
	out := Outcome{
		Event:      j.event,
		Repository: j.repo.Name,
		Origin:     j.origin,
		Direction:  audit.DirectionPropagate,
	}
	if j.origin != "" {
		out.Direction = audit.DirectionApply
	}

	// Bookkeeping outlives the event's deadline.
	bg := context.WithoutCancel(ctx)

	runCtx, cancel := d.withTimeout(ctx)
	err := d.run(runCtx, j, &out)
	cancel()

	if err != nil {
		out.Err = err
		out.Error = err.Error()
	}
	d.count(&out)
	d.record(bg, &out, start)
	metrics.EventProcessed(d.clock.Since(start))

	if err != nil {
		d.notifyOwner(bg, j.repo, &out)
	}
	klog.InfoS("Processed event",
		"repository", out.Repository, "ref", j.event.Ref, "origin", out.Origin,
		"status", out.Status, "classification", out.Classification)
	return out
}

func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout > 0 {
		return context.WithTimeout(ctx, d.timeout)
	}
	return context.WithCancel(ctx)
}

// run holds the ref lock while the engine works and fills in out.Status.
func (d *Dispatcher) run(ctx context.Context, j job, out *Outcome) (err error) {
	out.Status = StatusFailed

	rel, err := d.locks.Acquire(ctx, lock.Key(j.repo.Name, j.event.Ref))
	if err != nil {
		return fmt.Errorf("failed to lock %s of %s: %w", j.event.Ref, j.repo.Name, err)
	}
	defer func() {
		if rerr := rel.Release(context.WithoutCancel(ctx)); rerr != nil {
			klog.ErrorS(rerr, "Failed to release lock", "repository", j.repo.Name, "ref", j.event.Ref)
		}
	}()

	update := sync.RefUpdate{Ref: j.event.Ref, OldSHA: j.event.OldSHA, NewSHA: j.event.NewSHA}

	if j.origin == "" {
		res, err := d.engine.PropagateToMirrors(ctx, &sync.PropagateRequest{
			RefUpdate:      update,
			Repository:     j.repo.Name,
			Dir:            j.repo.LocalPath,
			Mirrors:        j.repo.Mirrors,
			Skip:           j.skip,
			SuppressStderr: j.suppress,
		})
		fillPropagation(out, res)
		switch {
		case err == nil:
			out.Status = StatusApplied
		case errors.Is(err, sync.ErrMirrorPush) && len(res.Pushed) > 0:
			out.Status = StatusPartial
		}
		return err
	}

	res, err := d.engine.ApplyFromMirror(ctx, &sync.ApplyRequest{
		RefUpdate:      update,
		Repository:     j.repo.Name,
		Dir:            j.repo.LocalPath,
		Mirrors:        j.repo.Mirrors,
		Origin:         j.origin,
		SuppressStderr: j.suppress,
	})
	if res != nil {
		fillPropagation(out, res.Propagation)
	}
	switch {
	case err == nil && res.Applied:
		out.Status = StatusApplied
	case err == nil:
		out.Status = StatusUnchanged
	case errors.Is(err, sync.ErrMirrorPush) && res != nil && res.Applied:
		out.Status = StatusPartial
	}
	return err
}

func fillPropagation(out *Outcome, res *sync.PropagateResult) {
	if res == nil {
		return
	}
	out.Classification = res.Classification.String()
	out.FailedMirrors = res.FailedMirrors()
}

func (d *Dispatcher) count(out *Outcome) {
	switch out.Status {
	case StatusApplied:
		metrics.EventApplied()
	case StatusUnchanged:
		metrics.EventUnchanged()
	case StatusPartial:
		metrics.EventPartial()
	default:
		metrics.EventFailed()
	}
	if errors.Is(out.Err, sync.ErrIntegrity) {
		metrics.IntegrityViolation()
	}
	if n := len(out.FailedMirrors); n > 0 {
		metrics.MirrorPushFailures(n)
	}
}

func (d *Dispatcher) record(ctx context.Context, out *Outcome, start time.Time) {
	if d.recorder == nil {
		return
	}
	rec := &audit.Record{
		Repository:     out.Repository,
		Ref:            out.Event.Ref,
		OldSHA:         string(out.Event.OldSHA),
		NewSHA:         string(out.Event.NewSHA),
		Origin:         out.Origin,
		Direction:      out.Direction,
		Outcome:        audit.Outcome(out.Status),
		Classification: out.Classification,
		FailedMirrors:  audit.MirrorList(out.FailedMirrors),
		Error:          out.Error,
		CreatedAt:      start,
	}
	if err := d.recorder.Record(ctx, rec); err != nil {
		klog.ErrorS(err, "Failed to write audit record", "repository", out.Repository, "ref", out.Event.Ref)
	}
}

func (d *Dispatcher) notifyOwner(ctx context.Context, repo *config.Repository, out *Outcome) {
	msg := ownerMessage(out)
	if err := d.notifier.Notify(ctx, repo.Name, msg, repo.Owner); err != nil {
		metrics.NotificationFailed()
		klog.ErrorS(err, "Failed to notify owner", "repository", repo.Name, "owner", repo.Owner)
		return
	}
	metrics.NotificationSent()
}
