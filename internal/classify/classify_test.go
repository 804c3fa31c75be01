package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/danieljhkim/mirrorsync/internal/gitx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	shaX = gitx.SHA(strings.Repeat("1", 40))
	shaY = gitx.SHA(strings.Repeat("2", 40))
	shaZ = gitx.SHA(strings.Repeat("3", 40))
)

func newRefs(fake *gitx.FakeOracle) *gitx.Refs {
	return gitx.NewRefs(fake, "/srv/git/project.git", false)
}

func TestClassify(t *testing.T) {
	fake := gitx.NewFakeOracle()
	fake.SetAncestor(shaX, shaY)

	tests := []struct {
		name           string
		old, new       gitx.SHA
		want           Kind
		wantAncestryQs int
	}{
		{name: "creation", old: gitx.NullSHA, new: shaX, want: Creation, wantAncestryQs: 0},
		{name: "deletion", old: shaX, new: gitx.NullSHA, want: Deletion, wantAncestryQs: 0},
		{name: "fast-forward", old: shaX, new: shaY, want: FastForward, wantAncestryQs: 1},
		{name: "rewrite", old: shaY, new: shaX, want: Rewrite, wantAncestryQs: 1},
		{name: "unrelated", old: shaX, new: shaZ, want: Rewrite, wantAncestryQs: 1},
		{name: "same commit", old: shaZ, new: shaZ, want: FastForward, wantAncestryQs: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(fake.CallsFor(gitx.OpAncestorTest))
			got, err := Classify(context.Background(), newRefs(fake), tt.old, tt.new)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			after := len(fake.CallsFor(gitx.OpAncestorTest))
			assert.Equal(t, tt.wantAncestryQs, after-before, "ancestry queries")
		})
	}
}

func TestClassify_BothNull(t *testing.T) {
	fake := gitx.NewFakeOracle()
	_, err := Classify(context.Background(), newRefs(fake), gitx.NullSHA, gitx.NullSHA)
	assert.ErrorIs(t, err, ErrNoTransition)
	assert.Empty(t, fake.Calls)
}

func TestClassify_ToolFailure(t *testing.T) {
	fake := gitx.NewFakeOracle()
	fake.Fail(gitx.OpAncestorTest, "", 128, "fatal: bad object")

	_, err := Classify(context.Background(), newRefs(fake), shaX, shaY)
	require.Error(t, err)
	assert.ErrorIs(t, err, gitx.ErrToolFailure)
}

func TestKind_Forced(t *testing.T) {
	assert.False(t, Creation.Forced())
	assert.False(t, Deletion.Forced())
	assert.False(t, FastForward.Forced())
	assert.True(t, Rewrite.Forced())
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "fast-forward", FastForward.String())
	assert.Equal(t, "rewrite", Rewrite.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}
