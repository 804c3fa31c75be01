package gitx

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedSHA is returned when a value is not a 40 character hex SHA.
	ErrMalformedSHA = errors.New("malformed SHA")

	// ErrInvalidRef is returned for ref names that are not fully qualified
	// or that git would reject.
	ErrInvalidRef = errors.New("invalid ref name")

	// ErrUnknownOp is returned by Invoke for operations outside the
	// supported set.
	ErrUnknownOp = errors.New("unknown ref operation")

	// ErrToolFailure matches every *ToolError.
	ErrToolFailure = errors.New("git command failed")
)

// ToolError describes a git invocation that exited non-zero while the caller
// asked for the exit code to be checked.
type ToolError struct {
	Op       Op
	Args     []string
	ExitCode int
	// Output holds stdout, and stderr too when it was captured.
	Output string
	Err    error
}

func (e *ToolError) Error() string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "git %s %s: exit code %d", e.Op, strings.Join(e.Args, " "), e.ExitCode)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	if e.Output != "" {
		b.WriteString(": ")
		b.WriteString(e.Output)
	}
	return b.String()
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrToolFailure) match any ToolError.
func (e *ToolError) Is(target error) bool {
	return target == ErrToolFailure
}
