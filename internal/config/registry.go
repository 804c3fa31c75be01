package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danieljhkim/mirrorsync/internal/mirrors"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	// ErrUnknownRepository is returned when no configured repository matches.
	ErrUnknownRepository = errors.New("unknown repository")

	// ErrInvalidRepository is returned for incomplete repository definitions.
	ErrInvalidRepository = errors.New("invalid repository definition")

	// ErrDuplicateRepository is returned when two repositories share a name
	// or local path.
	ErrDuplicateRepository = errors.New("duplicate repository")
)

// Repository is one authoritative local repository and its mirrors.
type Repository struct {
	Name      string
	LocalPath string
	// Owner is the address notified when synchronisation fails.
	Owner   string
	Mirrors *mirrors.Set
}

// NewRepository validates and builds a Repository.
func NewRepository(name, localPath, owner string, mirrorURLs map[string]string) (*Repository, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidRepository)
	}
	if localPath == "" {
		return nil, fmt.Errorf("%w: %s: local path is required", ErrInvalidRepository, name)
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRepository, name, err)
	}
	set, err := mirrors.FromMap(mirrorURLs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRepository, name, err)
	}
	return &Repository{
		Name:      name,
		LocalPath: abs,
		Owner:     strings.TrimSpace(owner),
		Mirrors:   set,
	}, nil
}

// Registry indexes all configured repositories. It is immutable once built.
type Registry struct {
	byName map[string]*Repository
	names  []string
}

// NewRegistry builds a Registry. Repository names, local paths and mirror
// URLs must be unique across the whole registry.
func NewRegistry(repos ...*Repository) (*Registry, error) {
	r := &Registry{byName: make(map[string]*Repository, len(repos))}
	paths := make(map[string]string)
	urls := make(map[string]string)

	for _, repo := range repos {
		if _, ok := r.byName[repo.Name]; ok {
			return nil, fmt.Errorf("%w: name %q", ErrDuplicateRepository, repo.Name)
		}
		if other, ok := paths[repo.LocalPath]; ok {
			return nil, fmt.Errorf("%w: %q and %q share local path %s", ErrDuplicateRepository, other, repo.Name, repo.LocalPath)
		}
		for _, m := range repo.Mirrors.All() {
			if other, ok := urls[m.URL]; ok {
				return nil, fmt.Errorf("%w: %q and %q both mirror to %s", mirrors.ErrDuplicateURL, other, repo.Name, m.URL)
			}
			urls[m.URL] = repo.Name
		}
		r.byName[repo.Name] = repo
		paths[repo.LocalPath] = repo.Name
		r.names = append(r.names, repo.Name)
	}
	sort.Strings(r.names)
	return r, nil
}

// Get returns the repository called name.
func (r *Registry) Get(name string) (*Repository, error) {
	repo, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRepository, name)
	}
	return repo, nil
}

// Names returns the repository names in sorted order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// All returns the repositories in name order.
func (r *Registry) All() []*Repository {
	out := make([]*Repository, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.byName[name])
	}
	return out
}

// FindByDirectory returns the repository whose local path is dir.
func (r *Registry) FindByDirectory(dir string) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	for _, name := range r.names {
		if r.byName[name].LocalPath == abs {
			return r.byName[name], nil
		}
	}
	return nil, fmt.Errorf("%w: no repository at %s", ErrUnknownRepository, abs)
}

// FindMirrorByURL returns the repository and mirror name one of urls
// belongs to.
func (r *Registry) FindMirrorByURL(urls []string) (*Repository, string, error) {
	for _, name := range r.names {
		repo := r.byName[name]
		if mirror, ok := repo.Mirrors.FindByURL(urls...); ok {
			return repo, mirror, nil
		}
	}
	return nil, "", fmt.Errorf("%w: no mirror matches %s", ErrUnknownRepository, strings.Join(urls, ", "))
}

// repositoryDef is one entry of the repositories map.
type repositoryDef struct {
	Local   string            `mapstructure:"local"`
	Owner   string            `mapstructure:"owner"`
	Mirrors map[string]string `mapstructure:"mirrors"`
}

// LoadRegistry builds the registry from v. When repositories_file is set the
// repositories are read from that legacy INI file; otherwise from the
// repositories map:
//
//	repositories:
//	  project:
//	    local: /srv/git/project.git
//	    owner: owner@example.org
//	    mirrors:
//	      github: git@github.com:team/project.git
//
// The map is read raw because names like project.git must not be split on
// viper's key delimiter.
func LoadRegistry(v *viper.Viper) (*Registry, error) {
	if file := v.GetString("repositories_file"); file != "" {
		return LoadINI(file)
	}

	raw := v.Get("repositories")
	if raw == nil {
		return NewRegistry()
	}
	defs, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: repositories: expected a mapping, got %T", ErrInvalidRepository, raw)
	}

	var repos []*Repository
	for _, name := range sortedKeys(defs) {
		def, err := decodeRepository(defs[name])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRepository, name, err)
		}
		repo, err := NewRepository(name, def.Local, def.Owner, def.Mirrors)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return NewRegistry(repos...)
}

func decodeRepository(input interface{}) (*repositoryDef, error) {
	def := &repositoryDef{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      def,
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(input); err != nil {
		return nil, err
	}
	return def, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
