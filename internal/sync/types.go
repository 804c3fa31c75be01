package sync

import (
	"fmt"

	"github.com/danieljhkim/mirrorsync/internal/classify"
	"github.com/danieljhkim/mirrorsync/internal/gitx"
	"github.com/danieljhkim/mirrorsync/internal/mirrors"
)

// RefUpdate is one observed ref transition.
type RefUpdate struct {
	Ref    string   `json:"ref"`
	OldSHA gitx.SHA `json:"old"`
	NewSHA gitx.SHA `json:"new"`
}

// Validate checks the ref name and both SHAs. SHAs must be in canonical
// lowercase form so they compare equal to git's output.
func (u RefUpdate) Validate() error {
	if err := gitx.ValidateRefName(u.Ref); err != nil {
		return err
	}
	for _, sha := range []gitx.SHA{u.OldSHA, u.NewSHA} {
		parsed, err := gitx.ParseSHA(string(sha))
		if err != nil {
			return err
		}
		if parsed != sha {
			return fmt.Errorf("%w: %q is not lowercase", gitx.ErrMalformedSHA, string(sha))
		}
	}
	if u.OldSHA.IsNull() && u.NewSHA.IsNull() {
		return fmt.Errorf("%s: %w", u.Ref, classify.ErrNoTransition)
	}
	return nil
}

// PropagateRequest contains parameters for pushing a local ref update to the
// mirrors of a repository.
type PropagateRequest struct {
	RefUpdate

	// Repository is the repository name, for messages.
	Repository string

	// Dir is the local repository directory
	Dir string

	// Mirrors are the repository's mirrors
	Mirrors *mirrors.Set

	// Skip names mirrors that must not be pushed to
	Skip []string

	// SuppressStderr captures git's stderr instead of forwarding it
	SuppressStderr bool
}

// PropagateResult contains the outcome of a fan-out.
type PropagateResult struct {
	// Classification decides whether the pushes were forced
	Classification classify.Kind `json:"classification"`

	// Pushed lists the mirrors that accepted the update
	Pushed []string `json:"pushed"`

	// Skipped lists the mirrors that were not contacted
	Skipped []string `json:"skipped,omitempty"`

	// Failures lists the mirrors that rejected the update or were unreachable
	Failures []MirrorFailure `json:"failures,omitempty"`
}

// FailedMirrors returns the names of the mirrors in Failures.
func (r *PropagateResult) FailedMirrors() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		names = append(names, f.Mirror)
	}
	return names
}

// ApplyRequest contains parameters for ingesting a ref update reported by a
// mirror.
type ApplyRequest struct {
	RefUpdate

	Repository string
	Dir        string
	Mirrors    *mirrors.Set

	// Origin is the name of the mirror that reported the update
	Origin string

	SuppressStderr bool
}

// ApplyResult contains the outcome of ApplyFromMirror.
type ApplyResult struct {
	// LocalBefore is the local ref value observed before the update
	LocalBefore gitx.SHA `json:"local_before"`

	// Applied is false when the local ref already had the new value
	Applied bool `json:"applied"`

	// Propagation is the fan-out to the other mirrors, nil when nothing was
	// applied
	Propagation *PropagateResult `json:"propagation,omitempty"`
}
