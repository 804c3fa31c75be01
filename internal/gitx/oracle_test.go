package gitx

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// emptyTree is the well-known SHA-1 of the empty tree.
const emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// gitFixture holds a local repository with three commits (two linear, one
// unrelated) and an empty bare mirror.
type gitFixture struct {
	oracle     *RealOracle
	local      string
	mirror     string
	c1, c2, c3 SHA
}

func newGitFixture(t *testing.T) *gitFixture {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	tmp := t.TempDir()
	local := filepath.Join(tmp, "local.git")
	mirror := filepath.Join(tmp, "mirror.git")
	runGit(t, tmp, "init", "--bare", "--quiet", local)
	runGit(t, tmp, "init", "--bare", "--quiet", mirror)

	c1 := SHA(runGit(t, local, "commit-tree", emptyTree, "-m", "one"))
	c2 := SHA(runGit(t, local, "commit-tree", emptyTree, "-p", string(c1), "-m", "two"))
	c3 := SHA(runGit(t, local, "commit-tree", emptyTree, "-m", "three"))

	oracle, err := NewRealOracle("")
	require.NoError(t, err)
	oracle.Stderr = &bytes.Buffer{}

	return &gitFixture{oracle: oracle, local: local, mirror: mirror, c1: c1, c2: c2, c3: c3}
}

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=mirrorsync", "GIT_AUTHOR_EMAIL=mirrorsync@example.org",
		"GIT_COMMITTER_NAME=mirrorsync", "GIT_COMMITTER_EMAIL=mirrorsync@example.org",
	)
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

func TestRealOracle_AncestorTest(t *testing.T) {
	f := newGitFixture(t)
	ctx := context.Background()
	refs := NewRefs(f.oracle, f.local, false)

	ok, err := refs.IsAncestor(ctx, f.c1, f.c2)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = refs.IsAncestor(ctx, f.c2, f.c1)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = refs.IsAncestor(ctx, f.c1, f.c3)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRealOracle_LocalRefLifecycle(t *testing.T) {
	f := newGitFixture(t)
	ctx := context.Background()
	refs := NewRefs(f.oracle, f.local, false)
	const ref = "refs/heads/main"

	got, err := refs.LocalRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, NullSHA, got)

	require.NoError(t, refs.CompareAndSwap(ctx, ref, f.c1, NullSHA))
	got, err = refs.LocalRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, f.c1, got)

	// A stale expectation must not move the ref.
	err = refs.CompareAndSwap(ctx, ref, f.c3, f.c2)
	require.ErrorIs(t, err, ErrToolFailure)
	got, err = refs.LocalRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, f.c1, got)

	require.ErrorIs(t, refs.Delete(ctx, ref, f.c2), ErrToolFailure)
	require.NoError(t, refs.Delete(ctx, ref, f.c1))
	got, err = refs.LocalRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, NullSHA, got)
}

func TestRealOracle_PushListFetch(t *testing.T) {
	f := newGitFixture(t)
	ctx := context.Background()
	refs := NewRefs(f.oracle, f.local, true)
	const ref = "refs/heads/main"

	got, err := refs.RemoteRef(ctx, f.mirror, ref)
	require.NoError(t, err)
	assert.Equal(t, NullSHA, got)

	require.NoError(t, refs.Push(ctx, f.mirror, ref, f.c1, false))
	require.NoError(t, refs.Push(ctx, f.mirror, ref, f.c2, false))
	got, err = refs.RemoteRef(ctx, f.mirror, ref)
	require.NoError(t, err)
	assert.Equal(t, f.c2, got)

	// Rewrites need force.
	err = refs.Push(ctx, f.mirror, ref, f.c3, false)
	require.ErrorIs(t, err, ErrToolFailure)
	require.NoError(t, refs.Push(ctx, f.mirror, ref, f.c3, true))
	got, err = refs.RemoteRef(ctx, f.mirror, ref)
	require.NoError(t, err)
	assert.Equal(t, f.c3, got)

	// Fetching into a fresh repository brings objects but no refs.
	fresh := filepath.Join(t.TempDir(), "fresh.git")
	runGit(t, filepath.Dir(fresh), "init", "--bare", "--quiet", fresh)
	freshRefs := NewRefs(f.oracle, fresh, true)
	require.NoError(t, freshRefs.Fetch(ctx, f.mirror, ref))
	local, err := freshRefs.LocalRef(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, NullSHA, local)
	require.NoError(t, freshRefs.CompareAndSwap(ctx, ref, f.c3, NullSHA))

	// Deletion.
	require.NoError(t, refs.Push(ctx, f.mirror, ref, NullSHA, false))
	got, err = refs.RemoteRef(ctx, f.mirror, ref)
	require.NoError(t, err)
	assert.Equal(t, NullSHA, got)
}

func TestRealOracle_InvokeUnknownOp(t *testing.T) {
	f := newGitFixture(t)
	_, err := f.oracle.Invoke(context.Background(), f.local, Op("gc"), nil, Options{})
	assert.ErrorIs(t, err, ErrUnknownOp)
}

func TestRealOracle_CheckDisabledReturnsExitCode(t *testing.T) {
	f := newGitFixture(t)
	res, err := f.oracle.Invoke(context.Background(), f.local, OpShowLocalRef,
		[]string{"refs/heads/none"}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)
	assert.Empty(t, res.Output)

	_, err = f.oracle.Invoke(context.Background(), f.local, OpShowLocalRef,
		[]string{"refs/heads/none"}, Options{Check: true})
	assert.ErrorIs(t, err, ErrToolFailure)
}
