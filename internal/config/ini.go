package config

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// mirrorKeyPrefix marks INI keys naming a mirror: mirror-<name> = <url>.
const mirrorKeyPrefix = "mirror-"

// LoadINI reads repositories from a legacy INI file. Keys outside any section
// belong to the DEFAULT section and are inherited by every repository
// section, so a shared owner can be declared once:
//
//	owner = admin@example.org
//
//	[project]
//	local = /srv/git/project.git
//	mirror-github = git@github.com:team/project.git
func LoadINI(path string) (*Registry, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read repository file %s: %w", path, err)
	}
	return registryFromINI(f)
}

func registryFromINI(f *ini.File) (*Registry, error) {
	defaults := sectionValues(f.Section(ini.DefaultSection))

	var repos []*Repository
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		values := make(map[string]string, len(defaults))
		for k, v := range defaults {
			values[k] = v
		}
		for k, v := range sectionValues(sec) {
			values[k] = v
		}

		mirrorURLs := make(map[string]string)
		for k, v := range values {
			if name, ok := strings.CutPrefix(k, mirrorKeyPrefix); ok {
				mirrorURLs[name] = v
			}
		}

		repo, err := NewRepository(sec.Name(), values["local"], values["owner"], mirrorURLs)
		if err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}
	return NewRegistry(repos...)
}

func sectionValues(sec *ini.Section) map[string]string {
	values := make(map[string]string)
	for _, key := range sec.Keys() {
		values[strings.ToLower(key.Name())] = strings.TrimSpace(key.String())
	}
	return values
}
