package config

import (
	"path/filepath"
	"testing"

	"github.com/danieljhkim/mirrorsync/internal/mirrors"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRepository(t *testing.T, name, local string, mirrorURLs map[string]string) *Repository {
	t.Helper()
	repo, err := NewRepository(name, local, name+"@example.org", mirrorURLs)
	require.NoError(t, err)
	return repo
}

func TestNewRepository(t *testing.T) {
	repo, err := NewRepository(" project ", "/srv/git/project.git", " owner@example.org ", map[string]string{
		"github": "git@github.com:team/project.git",
	})
	require.NoError(t, err)

	assert.Equal(t, "project", repo.Name)
	assert.Equal(t, "/srv/git/project.git", repo.LocalPath)
	assert.Equal(t, "owner@example.org", repo.Owner)
	assert.Equal(t, []string{"github"}, repo.Mirrors.Names())

	_, err = NewRepository("", "/srv/git/x.git", "", nil)
	assert.ErrorIs(t, err, ErrInvalidRepository)

	_, err = NewRepository("x", "", "", nil)
	assert.ErrorIs(t, err, ErrInvalidRepository)

	_, err = NewRepository("x", "/srv/git/x.git", "", map[string]string{"a": "same", "b": "same"})
	assert.ErrorIs(t, err, ErrInvalidRepository)
	assert.ErrorIs(t, err, mirrors.ErrDuplicateURL)
}

func TestNewRegistry(t *testing.T) {
	a := mustRepository(t, "alpha", "/srv/git/alpha.git", map[string]string{"gh": "git@github.com:team/alpha.git"})
	b := mustRepository(t, "beta", "/srv/git/beta.git", map[string]string{"gh": "git@github.com:team/beta.git"})

	reg, err := NewRegistry(b, a)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())
	assert.Equal(t, []*Repository{a, b}, reg.All())

	got, err := reg.Get("beta")
	require.NoError(t, err)
	assert.Same(t, b, got)

	_, err = reg.Get("gamma")
	assert.ErrorIs(t, err, ErrUnknownRepository)
}

func TestNewRegistry_Rejects(t *testing.T) {
	a := mustRepository(t, "alpha", "/srv/git/alpha.git", map[string]string{"gh": "git@github.com:team/shared.git"})

	t.Run("duplicate name", func(t *testing.T) {
		dup := mustRepository(t, "alpha", "/srv/git/other.git", nil)
		_, err := NewRegistry(a, dup)
		assert.ErrorIs(t, err, ErrDuplicateRepository)
	})

	t.Run("shared local path", func(t *testing.T) {
		dup := mustRepository(t, "beta", "/srv/git/alpha.git", nil)
		_, err := NewRegistry(a, dup)
		assert.ErrorIs(t, err, ErrDuplicateRepository)
	})

	t.Run("mirror url shared across repositories", func(t *testing.T) {
		dup := mustRepository(t, "beta", "/srv/git/beta.git", map[string]string{"lab": "git@github.com:team/shared.git"})
		_, err := NewRegistry(a, dup)
		assert.ErrorIs(t, err, mirrors.ErrDuplicateURL)
	})
}

func TestRegistry_FindByDirectory(t *testing.T) {
	dir := t.TempDir()
	repo := mustRepository(t, "alpha", dir, nil)
	reg, err := NewRegistry(repo)
	require.NoError(t, err)

	got, err := reg.FindByDirectory(filepath.Join(dir, "sub", ".."))
	require.NoError(t, err)
	assert.Same(t, repo, got)

	_, err = reg.FindByDirectory(t.TempDir())
	assert.ErrorIs(t, err, ErrUnknownRepository)
}

func TestRegistry_FindMirrorByURL(t *testing.T) {
	a := mustRepository(t, "alpha", "/srv/git/alpha.git", map[string]string{"gh": "https://github.com/team/alpha.git"})
	b := mustRepository(t, "beta", "/srv/git/beta.git", map[string]string{"lab": "git@gitlab.com:team/beta.git"})
	reg, err := NewRegistry(a, b)
	require.NoError(t, err)

	repo, mirror, err := reg.FindMirrorByURL([]string{"git://gitlab.com/team/beta.git", "git@gitlab.com:team/beta.git"})
	require.NoError(t, err)
	assert.Same(t, b, repo)
	assert.Equal(t, "lab", mirror)

	_, _, err = reg.FindMirrorByURL([]string{"https://github.com/team/gamma.git"})
	assert.ErrorIs(t, err, ErrUnknownRepository)

	_, _, err = reg.FindMirrorByURL(nil)
	assert.ErrorIs(t, err, ErrUnknownRepository)
}

func TestLoadRegistry_YAML(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", `
repositories:
  beta:
    local: /srv/git/beta.git
    owner: beta@example.org
  alpha:
    local: /srv/git/alpha.git
    owner: alpha@example.org
    mirrors:
      github: git@github.com:team/alpha.git
      gitlab: git@gitlab.com:team/alpha.git
`)
	v := viper.New()
	v.SetConfigFile(cfg)
	require.NoError(t, v.ReadInConfig())

	reg, err := LoadRegistry(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())

	alpha, err := reg.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha@example.org", alpha.Owner)
	assert.Equal(t, []mirrors.Mirror{
		{Name: "github", URL: "git@github.com:team/alpha.git"},
		{Name: "gitlab", URL: "git@gitlab.com:team/alpha.git"},
	}, alpha.Mirrors.All())

	beta, err := reg.Get("beta")
	require.NoError(t, err)
	assert.Equal(t, 0, beta.Mirrors.Len())
}

func TestLoadRegistry_Empty(t *testing.T) {
	reg, err := LoadRegistry(viper.New())
	require.NoError(t, err)
	assert.Empty(t, reg.Names())
}

func TestLoadRegistry_MissingLocal(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", `
repositories:
  alpha:
    owner: alpha@example.org
`)
	v := viper.New()
	v.SetConfigFile(cfg)
	require.NoError(t, v.ReadInConfig())

	_, err := LoadRegistry(v)
	assert.ErrorIs(t, err, ErrInvalidRepository)
}

func TestLoadRegistry_DottedNames(t *testing.T) {
	dir := t.TempDir()
	cfg := writeFile(t, dir, "config.yaml", `
repositories:
  project.git:
    local: /srv/git/project.git
    mirrors:
      github.com: git@github.com:team/project.git
  team.github.io:
    local: /srv/git/site.git
`)
	v := viper.New()
	v.SetConfigFile(cfg)
	require.NoError(t, v.ReadInConfig())

	reg, err := LoadRegistry(v)
	require.NoError(t, err)
	assert.Equal(t, []string{"project.git", "team.github.io"}, reg.Names())

	project, err := reg.Get("project.git")
	require.NoError(t, err)
	assert.Equal(t, "/srv/git/project.git", project.LocalPath)
	assert.Equal(t, []mirrors.Mirror{{Name: "github.com", URL: "git@github.com:team/project.git"}}, project.Mirrors.All())
}

func TestLoadRegistry_RejectsMalformedEntries(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"scalar entry", "repositories:\n  alpha: /srv/git/alpha.git\n"},
		{"unknown key", "repositories:\n  alpha:\n    local: /srv/git/alpha.git\n    mirror:\n      gh: git@github.com:team/alpha.git\n"},
		{"scalar repositories", "repositories: alpha\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := writeFile(t, t.TempDir(), "config.yaml", tt.yaml)
			v := viper.New()
			v.SetConfigFile(cfg)
			require.NoError(t, v.ReadInConfig())

			_, err := LoadRegistry(v)
			assert.ErrorIs(t, err, ErrInvalidRepository)
		})
	}
}
