package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danieljhkim/mirrorsync/internal/gitx"
	"github.com/danieljhkim/mirrorsync/internal/sync"
)

// ownerMessage explains a failed or partial event to the repository owner.
func ownerMessage(out *Outcome) string {
	var b strings.Builder
	ev := out.Event

	switch out.Status {
	case StatusPartial:
		fmt.Fprintf(&b, "%s of repository %s was updated, but some mirrors could not be synchronised.\n\n", ev.Ref, out.Repository)
	default:
		fmt.Fprintf(&b, "Synchronising %s of repository %s failed.\n\n", ev.Ref, out.Repository)
	}
	fmt.Fprintf(&b, "Update:    %s -> %s\n", ev.OldSHA, ev.NewSHA)
	if out.Origin != "" {
		fmt.Fprintf(&b, "Reported by mirror: %s\n", out.Origin)
	}
	if out.Classification != "" {
		fmt.Fprintf(&b, "Kind:      %s\n", out.Classification)
	}
	b.WriteString("\n")

	var ierr *sync.IntegrityError
	var perr *sync.PropagationError
	var terr *gitx.ToolError
	switch {
	case errors.As(out.Err, &ierr):
		fmt.Fprintf(&b, "Integrity violation: %s\n", ierr.Kind)
		if ierr.Mirror != "" {
			fmt.Fprintf(&b, "Mirror:    %s\n", ierr.Mirror)
		}
		expected := make([]string, len(ierr.Expected))
		for i, sha := range ierr.Expected {
			expected[i] = string(sha)
		}
		fmt.Fprintf(&b, "Expected:  %s\n", strings.Join(expected, " or "))
		observed := string(ierr.Observed)
		if observed == "" {
			observed = "(unknown)"
		}
		fmt.Fprintf(&b, "Observed:  %s\n", observed)
		b.WriteString("\nNo ref was changed. Someone else updated the ref concurrently or the report was wrong; please check the repository by hand.\n")
		if errors.As(ierr.Err, &terr) && terr.Output != "" {
			fmt.Fprintf(&b, "\ngit output:\n%s\n", terr.Output)
		}

	case errors.As(out.Err, &perr):
		b.WriteString("The following mirrors lag behind:\n")
		for _, f := range perr.Failures {
			fmt.Fprintf(&b, "  %s (%s)\n", f.Mirror, f.URL)
			var ft *gitx.ToolError
			if errors.As(f.Err, &ft) && ft.Output != "" {
				for _, line := range strings.Split(ft.Output, "\n") {
					fmt.Fprintf(&b, "      %s\n", line)
				}
			} else {
				fmt.Fprintf(&b, "      %v\n", f.Err)
			}
		}

	default:
		fmt.Fprintf(&b, "Error: %v\n", out.Err)
		if errors.As(out.Err, &terr) && terr.Output != "" {
			fmt.Fprintf(&b, "\ngit output:\n%s\n", terr.Output)
		}
	}
	return b.String()
}
