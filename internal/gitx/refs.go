package gitx

import (
	"context"
	"fmt"
	"strings"
)

// Refs binds an Oracle to one repository directory and exposes the typed
// ref operations the sync engine needs. Create one per call; a Refs value
// holds no state beyond its configuration.
type Refs struct {
	oracle        Oracle
	dir           string
	captureStderr bool
}

// NewRefs creates a Refs for the repository at dir. When captureStderr is
// set, network operations merge git's stderr into their captured output
// instead of forwarding it.
func NewRefs(oracle Oracle, dir string, captureStderr bool) *Refs {
	return &Refs{oracle: oracle, dir: dir, captureStderr: captureStderr}
}

// Dir returns the repository directory.
func (r *Refs) Dir() string {
	return r.dir
}

// IsAncestor reports whether a is an ancestor of b.
func (r *Refs) IsAncestor(ctx context.Context, a, b SHA) (bool, error) {
	args := []string{string(a), string(b)}
	res, err := r.oracle.Invoke(ctx, r.dir, OpAncestorTest, args, Options{})
	if err != nil {
		return false, err
	}
	switch res.ExitCode {
	case 0:
		return true, nil
	case 1:
		return false, nil
	default:
		return false, &ToolError{Op: OpAncestorTest, Args: args, ExitCode: res.ExitCode, Output: res.Output}
	}
}

// RemoteRef returns the value of ref at url, or NullSHA if the remote does
// not have it.
func (r *Refs) RemoteRef(ctx context.Context, url, ref string) (SHA, error) {
	res, err := r.oracle.Invoke(ctx, r.dir, OpListRemoteRef, []string{url, ref},
		Options{CaptureStderr: r.captureStderr, Check: true})
	if err != nil {
		return "", err
	}
	return findRef(res.Output, ref)
}

// LocalRef returns the local value of ref, or NullSHA if it does not exist.
func (r *Refs) LocalRef(ctx context.Context, ref string) (SHA, error) {
	res, err := r.oracle.Invoke(ctx, r.dir, OpShowLocalRef, []string{ref}, Options{})
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		if res.Output != "" {
			return "", &ToolError{Op: OpShowLocalRef, Args: []string{ref}, ExitCode: res.ExitCode, Output: res.Output}
		}
		return NullSHA, nil
	}
	return findRef(res.Output, ref)
}

// CompareAndSwap sets ref to newSHA if its current value is expected.
// An expected NullSHA requires the ref not to exist yet.
func (r *Refs) CompareAndSwap(ctx context.Context, ref string, newSHA, expected SHA) error {
	_, err := r.oracle.Invoke(ctx, r.dir, OpCompareAndSwapRef,
		[]string{ref, string(newSHA), string(expected)}, Options{Check: true})
	return err
}

// Delete removes ref if its current value is expected.
func (r *Refs) Delete(ctx context.Context, ref string, expected SHA) error {
	_, err := r.oracle.Invoke(ctx, r.dir, OpDeleteRef,
		[]string{ref, string(expected)}, Options{Check: true})
	return err
}

// Fetch retrieves the objects reachable from ref at url without updating
// any local ref.
func (r *Refs) Fetch(ctx context.Context, url, ref string) error {
	_, err := r.oracle.Invoke(ctx, r.dir, OpFetch, []string{url, ref},
		Options{CaptureStderr: r.captureStderr, Check: true})
	return err
}

// Push sets ref on the remote at url to sha. A NullSHA deletes the remote ref.
// Without force the remote only accepts fast-forwards.
func (r *Refs) Push(ctx context.Context, url, ref string, sha SHA, force bool) error {
	var args []string
	if force {
		args = append(args, "--force")
	}
	args = append(args, url, Refspec(ref, sha))
	_, err := r.oracle.Invoke(ctx, r.dir, OpPush, args,
		Options{CaptureStderr: r.captureStderr, Check: true})
	return err
}

// Refspec returns the push refspec that sets ref to sha.
func Refspec(ref string, sha SHA) string {
	if sha.IsNull() {
		return ":" + ref
	}
	return string(sha) + ":" + ref
}

// findRef picks the "<sha> <ref>" line naming exactly ref out of ls-remote
// or show-ref output. Both commands match patterns by suffix, so other lines
// may be present.
func findRef(output, ref string) (SHA, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 || fields[1] != ref {
			continue
		}
		sha, err := ParseSHA(fields[0])
		if err != nil {
			return "", fmt.Errorf("unexpected git output %q: %w", line, err)
		}
		return sha, nil
	}
	return NullSHA, nil
}
