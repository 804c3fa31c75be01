package gitx

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeOracle implements Oracle with an in-memory model of one local
// repository and any number of remotes. It records every call.
//
// The model is deliberately small: refs are plain maps, Objects is the set of
// commits the local repository has, and ancestry is an explicit relation.
type FakeOracle struct {
	mu sync.Mutex

	// Local holds the local repository's refs.
	Local map[string]SHA

	// Objects holds the commits present in the local object store.
	Objects map[SHA]bool

	// Remotes holds each remote's refs, keyed by URL.
	Remotes map[string]map[string]SHA

	// ancestors[a][b] means a is an ancestor of b.
	ancestors map[SHA]map[SHA]bool

	failures []fakeFailure

	// BeforeInvoke, when set, runs before every call with the lock released.
	// Tests use it to move refs between protocol steps.
	BeforeInvoke func(op Op, args []string)

	Calls []FakeCall
}

// FakeCall records one Invoke.
type FakeCall struct {
	Dir  string
	Op   Op
	Args []string
	Opts Options
}

type fakeFailure struct {
	op     Op
	match  string
	code   int
	stderr string
}

// NewFakeOracle creates an empty FakeOracle.
func NewFakeOracle() *FakeOracle {
	return &FakeOracle{
		Local:     make(map[string]SHA),
		Objects:   make(map[SHA]bool),
		Remotes:   make(map[string]map[string]SHA),
		ancestors: make(map[SHA]map[SHA]bool),
	}
}

// SetLocal sets a local ref and records its commit as present.
func (f *FakeOracle) SetLocal(ref string, sha SHA) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Local[ref] = sha
	f.Objects[sha] = true
}

// LocalValue returns the local value of ref, NullSHA when absent.
func (f *FakeOracle) LocalValue(ref string) SHA {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sha, ok := f.Local[ref]; ok {
		return sha
	}
	return NullSHA
}

// AddRemote registers an empty remote at url.
func (f *FakeOracle) AddRemote(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Remotes[url]; !ok {
		f.Remotes[url] = make(map[string]SHA)
	}
}

// SetRemote sets ref on the remote at url, registering the remote if needed.
func (f *FakeOracle) SetRemote(url, ref string, sha SHA) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Remotes[url]; !ok {
		f.Remotes[url] = make(map[string]SHA)
	}
	f.Remotes[url][ref] = sha
}

// RemoteValue returns the value of ref at url, NullSHA when absent.
func (f *FakeOracle) RemoteValue(url, ref string) SHA {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sha, ok := f.Remotes[url][ref]; ok {
		return sha
	}
	return NullSHA
}

// AddObjects marks commits as present in the local object store.
func (f *FakeOracle) AddObjects(shas ...SHA) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sha := range shas {
		f.Objects[sha] = true
	}
}

// SetAncestor records that a is an ancestor of b.
func (f *FakeOracle) SetAncestor(a, b SHA) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ancestors[a] == nil {
		f.ancestors[a] = make(map[SHA]bool)
	}
	f.ancestors[a][b] = true
}

// Fail makes every call of op whose arguments contain match exit with code,
// writing stderr. An empty match applies to every call of op.
func (f *FakeOracle) Fail(op Op, match string, code int, stderr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, fakeFailure{op: op, match: match, code: code, stderr: stderr})
}

// CallsFor returns the recorded calls of op.
func (f *FakeOracle) CallsFor(op Op) []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var calls []FakeCall
	for _, c := range f.Calls {
		if c.Op == op {
			calls = append(calls, c)
		}
	}
	return calls
}

// Invoke interprets op against the in-memory model.
func (f *FakeOracle) Invoke(ctx context.Context, dir string, op Op, args []string, opts Options) (Result, error) {
	if _, ok := commands[op]; !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, &ToolError{Op: op, Args: args, ExitCode: -1, Err: err}
	}
	if f.BeforeInvoke != nil {
		f.BeforeInvoke(op, args)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, FakeCall{Dir: dir, Op: op, Args: append([]string{}, args...), Opts: opts})

	stdout, stderr, code := f.run(op, args)

	output := stdout
	if opts.CaptureStderr && stderr != "" {
		if output != "" {
			output += "\n"
		}
		output += stderr
	}
	res := Result{Output: trimOutput(output), ExitCode: code}
	if opts.Check && code != 0 {
		return res, &ToolError{Op: op, Args: args, ExitCode: code, Output: res.Output}
	}
	return res, nil
}

func (f *FakeOracle) run(op Op, args []string) (stdout, stderr string, code int) {
	for _, fl := range f.failures {
		if fl.op == op && (fl.match == "" || containsArg(args, fl.match)) {
			return "", fl.stderr, fl.code
		}
	}

	switch op {
	case OpAncestorTest:
		if len(args) != 2 {
			return "", "usage: git merge-base --is-ancestor <a> <b>", 129
		}
		a, b := SHA(args[0]), SHA(args[1])
		if a == b || f.ancestors[a][b] {
			return "", "", 0
		}
		return "", "", 1

	case OpListRemoteRef:
		refs, ok := f.Remotes[args[0]]
		if !ok {
			return "", fmt.Sprintf("fatal: repository '%s' not found", args[0]), 128
		}
		if sha, ok := refs[args[1]]; ok {
			return fmt.Sprintf("%s\t%s", sha, args[1]), "", 0
		}
		return "", "", 0

	case OpShowLocalRef:
		if sha, ok := f.Local[args[0]]; ok {
			return fmt.Sprintf("%s %s", sha, args[0]), "", 0
		}
		return "", "", 1

	case OpCompareAndSwapRef:
		ref, newSHA, expected := args[0], SHA(args[1]), SHA(args[2])
		if msg := f.checkCurrent(ref, expected); msg != "" {
			return "", msg, 128
		}
		if !f.Objects[newSHA] {
			return "", fmt.Sprintf("fatal: update_ref failed for ref '%s': cannot update ref '%s': trying to write ref '%s' with nonexistent object %s", ref, ref, ref, newSHA), 128
		}
		f.Local[ref] = newSHA
		return "", "", 0

	case OpDeleteRef:
		ref, expected := args[0], SHA(args[1])
		if msg := f.checkCurrent(ref, expected); msg != "" {
			return "", msg, 128
		}
		delete(f.Local, ref)
		return "", "", 0

	case OpFetch:
		refs, ok := f.Remotes[args[0]]
		if !ok {
			return "", fmt.Sprintf("fatal: repository '%s' not found", args[0]), 128
		}
		sha, ok := refs[args[1]]
		if !ok {
			return "", fmt.Sprintf("fatal: couldn't find remote ref %s", args[1]), 128
		}
		f.Objects[sha] = true
		return "", "", 0

	case OpPush:
		force := false
		if len(args) > 0 && args[0] == "--force" {
			force = true
			args = args[1:]
		}
		url, refspec := args[0], args[1]
		refs, ok := f.Remotes[url]
		if !ok {
			return "", fmt.Sprintf("fatal: repository '%s' not found", url), 128
		}
		src, ref, _ := strings.Cut(refspec, ":")
		if src == "" {
			delete(refs, ref)
			return "", "", 0
		}
		sha := SHA(src)
		if !f.Objects[sha] {
			return "", fmt.Sprintf("error: src refspec %s does not match any", src), 1
		}
		if cur, ok := refs[ref]; ok && !force && cur != sha && !f.ancestors[cur][sha] {
			return "", fmt.Sprintf(" ! [rejected]        %s -> %s (non-fast-forward)", src, ref), 1
		}
		refs[ref] = sha
		return "", "", 0
	}
	return "", "", 0
}

func (f *FakeOracle) checkCurrent(ref string, expected SHA) string {
	cur, ok := f.Local[ref]
	if !ok {
		cur = NullSHA
	}
	if cur != expected {
		return fmt.Sprintf("fatal: cannot lock ref '%s': is at %s but expected %s", ref, cur, expected)
	}
	return ""
}

func containsArg(args []string, match string) bool {
	for _, a := range args {
		if a == match {
			return true
		}
	}
	return false
}
