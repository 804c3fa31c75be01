// Package classify decides whether a ref transition is safe to push without
// overriding remote protection.
package classify

import (
	"context"
	"errors"
	"fmt"

	"github.com/danieljhkim/mirrorsync/internal/gitx"
)

// ErrNoTransition is returned when both sides of a transition are NullSHA.
var ErrNoTransition = errors.New("transition from and to NullSHA")

// Kind is the classification of a ref transition.
type Kind int

const (
	// Creation moves a ref from NullSHA to a commit.
	Creation Kind = iota + 1
	// Deletion moves a ref from a commit to NullSHA.
	Deletion
	// FastForward moves a ref to a descendant of its old value.
	FastForward
	// Rewrite moves a ref to a commit that does not contain its old value.
	Rewrite
)

func (k Kind) String() string {
	switch k {
	case Creation:
		return "creation"
	case Deletion:
		return "deletion"
	case FastForward:
		return "fast-forward"
	case Rewrite:
		return "rewrite"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Forced reports whether pushing this transition needs --force.
func (k Kind) Forced() bool {
	return k == Rewrite
}

// MarshalText renders the kind by name in JSON output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// AncestryTester answers whether one commit is an ancestor of another.
// *gitx.Refs implements it.
type AncestryTester interface {
	IsAncestor(ctx context.Context, a, b gitx.SHA) (bool, error)
}

// Classify returns the kind of the transition oldSHA -> newSHA. Creations and
// deletions are decided without consulting the repository.
func Classify(ctx context.Context, refs AncestryTester, oldSHA, newSHA gitx.SHA) (Kind, error) {
	switch {
	case oldSHA.IsNull() && newSHA.IsNull():
		return 0, ErrNoTransition
	case oldSHA.IsNull():
		return Creation, nil
	case newSHA.IsNull():
		return Deletion, nil
	}

	ancestor, err := refs.IsAncestor(ctx, oldSHA, newSHA)
	if err != nil {
		return 0, fmt.Errorf("failed to test ancestry of %s and %s: %w", oldSHA.Short(), newSHA.Short(), err)
	}
	if ancestor {
		return FastForward, nil
	}
	return Rewrite, nil
}
