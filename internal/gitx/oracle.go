// Package gitx is the single point of contact with the git binary.
//
// It exposes a small, fixed set of ref-level plumbing operations (ancestry
// test, remote and local ref listing, compare-and-swap ref update, ref
// deletion, fetch and push). Every call names the repository directory it
// runs in; nothing in this package changes the process working directory.
//
// Key components:
//   - Oracle: generic invoker backed by a fixed operation table
//   - RealOracle: runs git through exec.CommandContext
//   - FakeOracle: in-memory model used by tests
//   - Refs: typed operations bound to one repository directory
package gitx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"k8s.io/klog/v2"
)

// Op names one supported ref-plumbing operation.
type Op string

const (
	OpAncestorTest      Op = "ancestor-test"
	OpListRemoteRef     Op = "list-remote-ref"
	OpShowLocalRef      Op = "show-local-ref"
	OpCompareAndSwapRef Op = "compare-and-swap-ref"
	OpDeleteRef         Op = "delete-ref"
	OpFetch             Op = "fetch"
	OpPush              Op = "push"
)

// commands maps every supported operation to the git sub-command prefix it
// runs. Positional arguments are appended by the caller.
var commands = map[Op][]string{
	OpAncestorTest:      {"merge-base", "--is-ancestor"},
	OpListRemoteRef:     {"ls-remote"},
	OpShowLocalRef:      {"show-ref"},
	OpCompareAndSwapRef: {"update-ref"},
	OpDeleteRef:         {"update-ref", "-d"},
	OpFetch:             {"fetch"},
	OpPush:              {"push"},
}

// Ops returns the supported operations.
func Ops() []Op {
	return []Op{
		OpAncestorTest, OpListRemoteRef, OpShowLocalRef,
		OpCompareAndSwapRef, OpDeleteRef, OpFetch, OpPush,
	}
}

// Options controls how an invocation treats stderr and exit codes.
type Options struct {
	// CaptureStderr merges stderr into Result.Output instead of forwarding it.
	CaptureStderr bool

	// Check turns a non-zero exit code into a *ToolError.
	Check bool
}

// Result is the captured output and exit code of one invocation.
type Result struct {
	Output   string
	ExitCode int
}

// Oracle runs ref-plumbing operations against a repository directory.
type Oracle interface {
	// Invoke runs op with args in the repository at dir.
	Invoke(ctx context.Context, dir string, op Op, args []string, opts Options) (Result, error)
}

// RealOracle implements Oracle by running the git binary.
type RealOracle struct {
	gitPath string

	// Stderr receives git's stderr when it is not captured.
	Stderr io.Writer
}

// NewRealOracle creates a RealOracle. An empty gitPath looks up "git" on PATH.
func NewRealOracle(gitPath string) (*RealOracle, error) {
	if gitPath == "" {
		gitPath = "git"
	}
	p, err := exec.LookPath(gitPath)
	if err != nil {
		return nil, fmt.Errorf("no %q program on path: %w", gitPath, err)
	}
	return &RealOracle{gitPath: p, Stderr: os.Stderr}, nil
}

// Invoke runs the git sub-command registered for op.
func (o *RealOracle) Invoke(ctx context.Context, dir string, op Op, args []string, opts Options) (Result, error) {
	prefix, ok := commands[op]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	if dir == "" {
		return Result{}, fmt.Errorf("git %s: repository directory is required", op)
	}

	argv := append(append([]string{}, prefix...), args...)
	cmd := exec.CommandContext(ctx, o.gitPath, argv...)
	cmd.Dir = dir
	cmd.Env = os.Environ()

	var out bytes.Buffer
	cmd.Stdout = &out
	if opts.CaptureStderr {
		cmd.Stderr = &out
	} else if o.Stderr != nil {
		cmd.Stderr = o.Stderr
	}

	klog.V(4).InfoS("running git", "dir", dir, "op", op, "args", argv)

	code := 0
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// git never ran, or the context killed it before it exited.
			return Result{Output: trimOutput(out.String()), ExitCode: -1}, &ToolError{
				Op: op, Args: args, ExitCode: -1, Output: trimOutput(out.String()), Err: err,
			}
		}
		code = exitErr.ExitCode()
		if ctx.Err() != nil {
			return Result{Output: trimOutput(out.String()), ExitCode: code}, &ToolError{
				Op: op, Args: args, ExitCode: code, Output: trimOutput(out.String()), Err: ctx.Err(),
			}
		}
	}

	res := Result{Output: trimOutput(out.String()), ExitCode: code}
	if opts.Check && code != 0 {
		return res, &ToolError{Op: op, Args: args, ExitCode: code, Output: res.Output}
	}
	return res, nil
}

func trimOutput(s string) string {
	return strings.Trim(s, "\n")
}
