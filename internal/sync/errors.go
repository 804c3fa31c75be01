package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danieljhkim/mirrorsync/internal/gitx"
)

var (
	// ErrIntegrity is matched by every *IntegrityError.
	ErrIntegrity = errors.New("integrity violation")

	// ErrMirrorPush is matched by every *PropagationError.
	ErrMirrorPush = errors.New("mirror push failed")

	// ErrUnknownMirror is returned when an origin mirror is not configured.
	ErrUnknownMirror = errors.New("unknown mirror")
)

// IntegrityKind says which observation contradicted a reported update.
type IntegrityKind int

const (
	// RemoteClaimMismatch: the origin mirror does not hold the new value.
	RemoteClaimMismatch IntegrityKind = iota + 1
	// LocalStateMismatch: the local ref is at neither the old nor the new value.
	LocalStateMismatch
	// CompareAndSwapRace: the local ref moved between reading and updating it.
	CompareAndSwapRace
)

func (k IntegrityKind) String() string {
	switch k {
	case RemoteClaimMismatch:
		return "remote claim mismatch"
	case LocalStateMismatch:
		return "local state mismatch"
	case CompareAndSwapRace:
		return "compare-and-swap race"
	default:
		return fmt.Sprintf("IntegrityKind(%d)", int(k))
	}
}

// IntegrityError reports that a ref was not where a reported update said it
// would be. Nothing was changed when it is returned. It is never retried.
type IntegrityError struct {
	Kind       IntegrityKind
	Repository string
	Ref        string
	// Mirror is the origin mirror for remote claim mismatches.
	Mirror   string
	Expected []gitx.SHA
	// Observed is empty when the value could not be read back.
	Observed gitx.SHA
	Err      error
}

func (e *IntegrityError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s of %s", e.Kind, e.Ref, e.Repository)
	if e.Mirror != "" {
		fmt.Fprintf(&b, " on mirror %s", e.Mirror)
	}
	expected := make([]string, len(e.Expected))
	for i, sha := range e.Expected {
		expected[i] = string(sha)
	}
	fmt.Fprintf(&b, ": expected %s", strings.Join(expected, " or "))
	if e.Observed != "" {
		fmt.Fprintf(&b, ", observed %s", e.Observed)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// MirrorFailure is one mirror that could not be updated.
type MirrorFailure struct {
	Mirror string
	URL    string
	Err    error
}

// MarshalJSON renders Err as its message.
func (f MirrorFailure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Mirror string `json:"mirror"`
		URL    string `json:"url"`
		Error  string `json:"error"`
	}{f.Mirror, f.URL, msg})
}

// PropagationError collects the mirrors a fan-out could not update. The
// other mirrors were updated.
type PropagationError struct {
	Repository string
	Ref        string
	Failures   []MirrorFailure
}

func (e *PropagationError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Mirror, f.Err)
	}
	return fmt.Sprintf("failed to push %s of %s to %d mirror(s): %s",
		e.Ref, e.Repository, len(e.Failures), strings.Join(parts, "; "))
}

// Unwrap exposes every mirror's error, so errors.Is finds tool failures.
func (e *PropagationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

func (e *PropagationError) Is(target error) bool {
	return target == ErrMirrorPush
}
