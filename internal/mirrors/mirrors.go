// Package mirrors holds the per-repository registry of remote mirrors.
package mirrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrDuplicateName is returned when two mirrors share a name.
	ErrDuplicateName = errors.New("duplicate mirror name")

	// ErrDuplicateURL is returned when two mirrors share a URL. A shared URL
	// would make reverse lookup ambiguous.
	ErrDuplicateURL = errors.New("duplicate mirror URL")

	// ErrInvalidMirror is returned for a mirror with an empty name or URL.
	ErrInvalidMirror = errors.New("invalid mirror")
)

// Mirror is a remote copy of a repository.
type Mirror struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Set maps mirror names to mirrors. It is immutable once built.
type Set struct {
	byName map[string]Mirror
	byURL  map[string]string
	names  []string
}

// New builds a Set, rejecting empty, duplicate names and duplicate URLs.
func New(ms ...Mirror) (*Set, error) {
	s := &Set{
		byName: make(map[string]Mirror, len(ms)),
		byURL:  make(map[string]string, len(ms)),
	}
	for _, m := range ms {
		m.Name = strings.TrimSpace(m.Name)
		m.URL = strings.TrimSpace(m.URL)
		if m.Name == "" || m.URL == "" {
			return nil, fmt.Errorf("%w: name %q, url %q", ErrInvalidMirror, m.Name, m.URL)
		}
		if _, ok := s.byName[m.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, m.Name)
		}
		if other, ok := s.byURL[m.URL]; ok {
			return nil, fmt.Errorf("%w: %q used by %q and %q", ErrDuplicateURL, m.URL, other, m.Name)
		}
		s.byName[m.Name] = m
		s.byURL[m.URL] = m.Name
		s.names = append(s.names, m.Name)
	}
	sort.Strings(s.names)
	return s, nil
}

// FromMap builds a Set from name -> URL pairs.
func FromMap(urls map[string]string) (*Set, error) {
	ms := make([]Mirror, 0, len(urls))
	for name, url := range urls {
		ms = append(ms, Mirror{Name: name, URL: url})
	}
	// Map order is random; sort so duplicate URL errors are stable.
	sort.Slice(ms, func(i, j int) bool { return ms[i].Name < ms[j].Name })
	return New(ms...)
}

// Get returns the mirror called name.
func (s *Set) Get(name string) (Mirror, bool) {
	m, ok := s.byName[name]
	return m, ok
}

// URL returns the URL of the mirror called name.
func (s *Set) URL(name string) (string, bool) {
	m, ok := s.byName[name]
	return m.URL, ok
}

// Names returns the mirror names in sorted order.
func (s *Set) Names() []string {
	return append([]string(nil), s.names...)
}

// All returns the mirrors in name order.
func (s *Set) All() []Mirror {
	out := make([]Mirror, 0, len(s.names))
	for _, name := range s.names {
		out = append(out, s.byName[name])
	}
	return out
}

// Len returns the number of mirrors.
func (s *Set) Len() int {
	return len(s.names)
}

// FindByURL returns the name of the mirror whose URL is one of urls. The
// urls are tried in order.
func (s *Set) FindByURL(urls ...string) (string, bool) {
	for _, u := range urls {
		if name, ok := s.byURL[strings.TrimSpace(u)]; ok {
			return name, true
		}
	}
	return "", false
}
