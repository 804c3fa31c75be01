package events

import (
	"strings"
	"testing"

	"github.com/danieljhkim/mirrorsync/internal/gitx"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	shaA = strings.Repeat("a", 40)
	shaB = strings.Repeat("b", 40)
)

func TestParseHookInput(t *testing.T) {
	input := strings.Join([]string{
		shaA + " " + shaB + " refs/heads/main",
		"",
		gitx.NullSHA.String() + " " + shaA + " refs/tags/v1",
		strings.ToUpper(shaB) + "\t" + gitx.NullSHA.String() + "  refs/heads/old",
	}, "\n")

	got, err := ParseHookInput(strings.NewReader(input))
	require.NoError(t, err)

	want := []Event{
		{Ref: "refs/heads/main", OldSHA: gitx.SHA(shaA), NewSHA: gitx.SHA(shaB)},
		{Ref: "refs/tags/v1", OldSHA: gitx.NullSHA, NewSHA: gitx.SHA(shaA)},
		{Ref: "refs/heads/old", OldSHA: gitx.SHA(shaB), NewSHA: gitx.NullSHA},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestParseHookInput_Empty(t *testing.T) {
	got, err := ParseHookInput(strings.NewReader("\n\n"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseHookInput_Malformed(t *testing.T) {
	valid := shaA + " " + shaB + " refs/heads/main\n"
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", shaA + " refs/heads/main"},
		{"too many fields", shaA + " " + shaB + " refs/heads/main extra"},
		{"short sha", "abc " + shaB + " refs/heads/main"},
		{"bad ref", shaA + " " + shaB + " main"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseHookInput(strings.NewReader(valid + tt.line + "\n"))
			assert.ErrorIs(t, err, ErrMalformedInput)
			assert.Nil(t, got, "no partial event list")
		})
	}
}
