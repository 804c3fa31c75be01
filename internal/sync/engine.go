// Package sync propagates ref updates between a local repository and its
// mirrors.
//
// PropagateToMirrors pushes an update that already happened locally to every
// mirror. ApplyFromMirror ingests an update one mirror reports: it checks the
// claim against the mirror and the local repository, applies it with an
// atomic compare-and-swap and then propagates it to the remaining mirrors.
// A ref that is at neither end of the reported transition is never
// overwritten; that surfaces as an *IntegrityError.
package sync

import (
	"context"
	"fmt"

	"github.com/danieljhkim/mirrorsync/internal/classify"
	"github.com/danieljhkim/mirrorsync/internal/gitx"
	"github.com/danieljhkim/mirrorsync/internal/mirrors"
	"k8s.io/klog/v2"
)

// Engine runs the synchronisation protocol through a gitx.Oracle.
type Engine struct {
	oracle gitx.Oracle
}

// New creates an Engine.
func New(oracle gitx.Oracle) *Engine {
	return &Engine{oracle: oracle}
}

// PropagateToMirrors pushes req.NewSHA to req.Ref on every mirror not in
// req.Skip, in mirror name order. Rewrites are force-pushed. A mirror that
// fails does not stop the others: the result lists it and a
// *PropagationError is returned alongside the result.
func (e *Engine) PropagateToMirrors(ctx context.Context, req *PropagateRequest) (*PropagateResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	refs := gitx.NewRefs(e.oracle, req.Dir, req.SuppressStderr)
	kind, err := classify.Classify(ctx, refs, req.OldSHA, req.NewSHA)
	if err != nil {
		return nil, fmt.Errorf("failed to classify update of %s: %w", req.Ref, err)
	}

	skip := make(map[string]bool, len(req.Skip))
	for _, name := range req.Skip {
		skip[name] = true
	}

	res := &PropagateResult{Classification: kind, Pushed: []string{}}
	for _, m := range mirrorList(req.Mirrors) {
		if skip[m.Name] {
			res.Skipped = append(res.Skipped, m.Name)
			continue
		}
		if err := refs.Push(ctx, m.URL, req.Ref, req.NewSHA, kind.Forced()); err != nil {
			klog.ErrorS(err, "Push to mirror failed",
				"repository", req.Repository, "ref", req.Ref, "mirror", m.Name)
			res.Failures = append(res.Failures, MirrorFailure{Mirror: m.Name, URL: m.URL, Err: err})
			continue
		}
		klog.V(2).InfoS("Pushed to mirror",
			"repository", req.Repository, "ref", req.Ref, "mirror", m.Name,
			"sha", req.NewSHA.Short(), "classification", kind)
		res.Pushed = append(res.Pushed, m.Name)
	}

	if len(res.Failures) > 0 {
		return res, &PropagationError{Repository: req.Repository, Ref: req.Ref, Failures: res.Failures}
	}
	return res, nil
}

// ApplyFromMirror ingests the update req.OldSHA -> req.NewSHA of req.Ref
// reported by mirror req.Origin:
//
//  1. the origin must hold req.NewSHA;
//  2. the local ref must be at req.OldSHA or req.NewSHA;
//  3. if it is already at req.NewSHA nothing else happens;
//  4. the new commits are fetched without touching any ref and the local ref
//     is compare-and-swapped (or deleted) from the value read in step 2;
//  5. the update is propagated to every mirror except the origin.
//
// Violations of 1, 2 and 4 return an *IntegrityError and leave every ref
// untouched.
func (e *Engine) ApplyFromMirror(ctx context.Context, req *ApplyRequest) (*ApplyResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	var url string
	if req.Mirrors != nil {
		url, _ = req.Mirrors.URL(req.Origin)
	}
	if url == "" {
		return nil, fmt.Errorf("%w: %q in repository %s", ErrUnknownMirror, req.Origin, req.Repository)
	}

	refs := gitx.NewRefs(e.oracle, req.Dir, req.SuppressStderr)

	remote, err := refs.RemoteRef(ctx, url, req.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s on mirror %s: %w", req.Ref, req.Origin, err)
	}
	if remote != req.NewSHA {
		return nil, &IntegrityError{
			Kind:       RemoteClaimMismatch,
			Repository: req.Repository,
			Ref:        req.Ref,
			Mirror:     req.Origin,
			Expected:   []gitx.SHA{req.NewSHA},
			Observed:   remote,
		}
	}

	local, err := refs.LocalRef(ctx, req.Ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read local %s: %w", req.Ref, err)
	}
	if local != req.OldSHA && local != req.NewSHA {
		return nil, &IntegrityError{
			Kind:       LocalStateMismatch,
			Repository: req.Repository,
			Ref:        req.Ref,
			Expected:   []gitx.SHA{req.OldSHA, req.NewSHA},
			Observed:   local,
		}
	}

	res := &ApplyResult{LocalBefore: local}
	if local == req.NewSHA {
		klog.V(1).InfoS("Local ref already up to date",
			"repository", req.Repository, "ref", req.Ref, "sha", local.Short())
		return res, nil
	}

	if req.NewSHA.IsNull() {
		err = refs.Delete(ctx, req.Ref, local)
	} else {
		// Fetch objects only. If the mirror moved on since step 1, the
		// commit may be missing and the swap below fails.
		if err := refs.Fetch(ctx, url, req.Ref); err != nil {
			return res, fmt.Errorf("failed to fetch %s from mirror %s: %w", req.Ref, req.Origin, err)
		}
		err = refs.CompareAndSwap(ctx, req.Ref, req.NewSHA, local)
	}
	if err != nil {
		ierr := &IntegrityError{
			Kind:       CompareAndSwapRace,
			Repository: req.Repository,
			Ref:        req.Ref,
			Expected:   []gitx.SHA{local},
			Err:        err,
		}
		if observed, rerr := refs.LocalRef(ctx, req.Ref); rerr == nil {
			ierr.Observed = observed
		}
		return res, ierr
	}
	res.Applied = true
	klog.InfoS("Applied update from mirror",
		"repository", req.Repository, "ref", req.Ref, "mirror", req.Origin,
		"old", local.Short(), "new", req.NewSHA.Short())

	res.Propagation, err = e.PropagateToMirrors(ctx, &PropagateRequest{
		RefUpdate:      req.RefUpdate,
		Repository:     req.Repository,
		Dir:            req.Dir,
		Mirrors:        req.Mirrors,
		Skip:           []string{req.Origin},
		SuppressStderr: req.SuppressStderr,
	})
	return res, err
}

func mirrorList(s *mirrors.Set) []mirrors.Mirror {
	if s == nil {
		return nil
	}
	return s.All()
}
