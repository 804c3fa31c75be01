package sync

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danieljhkim/mirrorsync/internal/classify"
	"github.com/danieljhkim/mirrorsync/internal/gitx"
	"github.com/danieljhkim/mirrorsync/internal/mirrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const emptyTree = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// world is a local repository, two bare mirrors and a scratch repository
// that plays the part of whoever pushes to m1.
type world struct {
	engine  *Engine
	local   string
	m1, m2  string
	work    string
	mirrors *mirrors.Set
}

func newWorld(t *testing.T) *world {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	tmp := t.TempDir()
	w := &world{
		local: filepath.Join(tmp, "local.git"),
		m1:    filepath.Join(tmp, "m1.git"),
		m2:    filepath.Join(tmp, "m2.git"),
		work:  filepath.Join(tmp, "work.git"),
	}
	for _, dir := range []string{w.local, w.m1, w.m2, w.work} {
		git(t, tmp, "init", "--bare", "--quiet", dir)
	}

	set, err := mirrors.FromMap(map[string]string{"m1": w.m1, "m2": w.m2})
	require.NoError(t, err)
	w.mirrors = set

	oracle, err := gitx.NewRealOracle("")
	require.NoError(t, err)
	oracle.Stderr = &bytes.Buffer{}
	w.engine = New(oracle)
	return w
}

func git(t *testing.T, dir string, args ...string) string {
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

// commit creates a commit in dir.
func commit(t *testing.T, dir, msg string, parents ...gitx.SHA) gitx.SHA {
	t.Helper()
	args := []string{"commit-tree", emptyTree, "-m", msg}
	for _, p := range parents {
		args = append(args, "-p", string(p))
	}
	return gitx.SHA(git(t, dir, args...))
}

// refValue reads ref in the repository at dir, NullSHA when absent.
func refValue(t *testing.T, dir, ref string) gitx.SHA {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", "--verify", "--quiet", ref)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		require.True(t, errors.As(err, &exitErr), "git rev-parse: %v", err)
		return gitx.NullSHA
	}
	return gitx.SHA(strings.TrimSpace(string(out)))
}

func (w *world) apply(ref string, oldSHA, newSHA gitx.SHA) (*ApplyResult, error) {
	return w.engine.ApplyFromMirror(context.Background(), &ApplyRequest{
		RefUpdate:      RefUpdate{Ref: ref, OldSHA: oldSHA, NewSHA: newSHA},
		Repository:     "project",
		Dir:            w.local,
		Mirrors:        w.mirrors,
		Origin:         "m1",
		SuppressStderr: true,
	})
}

func TestIntegration_ApplyLifecycle(t *testing.T) {
	w := newWorld(t)

	// Creation reported by m1.
	c1 := commit(t, w.work, "one")
	git(t, w.work, "push", "--quiet", w.m1, string(c1)+":"+mainRef)

	res, err := w.apply(mainRef, gitx.NullSHA, c1)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, classify.Creation, res.Propagation.Classification)
	assert.Equal(t, []string{"m2"}, res.Propagation.Pushed)
	assert.Equal(t, c1, refValue(t, w.local, mainRef))
	assert.Equal(t, c1, refValue(t, w.m2, mainRef))

	// Replaying the same event changes nothing.
	res, err = w.apply(mainRef, gitx.NullSHA, c1)
	require.NoError(t, err)
	assert.False(t, res.Applied)

	// Fast-forward.
	c2 := commit(t, w.work, "two", c1)
	git(t, w.work, "push", "--quiet", w.m1, string(c2)+":"+mainRef)
	res, err = w.apply(mainRef, c1, c2)
	require.NoError(t, err)
	assert.Equal(t, classify.FastForward, res.Propagation.Classification)
	assert.Equal(t, c2, refValue(t, w.m2, mainRef))

	// Rewrite: m2 only accepts it because the push is forced.
	c3 := commit(t, w.work, "three")
	git(t, w.work, "push", "--quiet", "--force", w.m1, string(c3)+":"+mainRef)
	res, err = w.apply(mainRef, c2, c3)
	require.NoError(t, err)
	assert.Equal(t, classify.Rewrite, res.Propagation.Classification)
	assert.Equal(t, c3, refValue(t, w.local, mainRef))
	assert.Equal(t, c3, refValue(t, w.m2, mainRef))
}

func TestIntegration_Deletion(t *testing.T) {
	w := newWorld(t)
	const tag = "refs/tags/v1"

	c1 := commit(t, w.work, "one")
	for _, m := range []string{w.m1, w.m2, w.local} {
		git(t, w.work, "push", "--quiet", m, string(c1)+":"+tag)
	}
	git(t, w.work, "push", "--quiet", w.m1, ":"+tag)

	res, err := w.apply(tag, c1, gitx.NullSHA)
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, classify.Deletion, res.Propagation.Classification)
	assert.Equal(t, gitx.NullSHA, refValue(t, w.local, tag))
	assert.Equal(t, gitx.NullSHA, refValue(t, w.m2, tag))
}

func TestIntegration_RaceLeavesEverythingAlone(t *testing.T) {
	w := newWorld(t)

	c1 := commit(t, w.work, "one")
	for _, m := range []string{w.m1, w.m2, w.local} {
		git(t, w.work, "push", "--quiet", m, string(c1)+":"+mainRef)
	}

	// Someone moved the local ref behind our back.
	z := commit(t, w.local, "unexpected")
	git(t, w.local, "update-ref", mainRef, string(z), string(c1))

	c2 := commit(t, w.work, "two", c1)
	git(t, w.work, "push", "--quiet", w.m1, string(c2)+":"+mainRef)

	_, err := w.apply(mainRef, c1, c2)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, LocalStateMismatch, integrity.Kind)
	assert.Equal(t, z, integrity.Observed)

	assert.Equal(t, z, refValue(t, w.local, mainRef))
	assert.Equal(t, c1, refValue(t, w.m2, mainRef))
	assert.Equal(t, c2, refValue(t, w.m1, mainRef))
}

func TestIntegration_RemoteClaimMismatch(t *testing.T) {
	w := newWorld(t)

	c1 := commit(t, w.work, "one")
	git(t, w.work, "push", "--quiet", w.m1, string(c1)+":"+mainRef)
	c2 := commit(t, w.work, "two", c1)

	// m1 claims c2 but still has c1.
	_, err := w.apply(mainRef, gitx.NullSHA, c2)
	var integrity *IntegrityError
	require.ErrorAs(t, err, &integrity)
	assert.Equal(t, RemoteClaimMismatch, integrity.Kind)
	assert.Equal(t, gitx.NullSHA, refValue(t, w.local, mainRef))
	assert.Equal(t, gitx.NullSHA, refValue(t, w.m2, mainRef))
}
