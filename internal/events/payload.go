package events

import (
	"encoding/json"
	"fmt"
	"strings"
)

// repositoryURLs holds every URL field GitHub and GitLab use for a
// repository or project.
type repositoryURLs struct {
	CloneURL   string `json:"clone_url"`
	GitURL     string `json:"git_url"`
	SSHURL     string `json:"ssh_url"`
	SVNURL     string `json:"svn_url"`
	URL        string `json:"url"`
	GitSSHURL  string `json:"git_ssh_url"`
	GitHTTPURL string `json:"git_http_url"`
}

func (r *repositoryURLs) list() []string {
	if r == nil {
		return nil
	}
	return []string{r.CloneURL, r.GitURL, r.SSHURL, r.SVNURL, r.URL, r.GitSSHURL, r.GitHTTPURL}
}

// pushPayload is the subset of a push webhook body that is used.
type pushPayload struct {
	Ref        string          `json:"ref"`
	Before     string          `json:"before"`
	After      string          `json:"after"`
	Repository *repositoryURLs `json:"repository"` // GitHub, GitLab
	Project    *repositoryURLs `json:"project"`    // GitLab
}

// ParsePayload parses a GitHub or GitLab push webhook body. A well-formed
// payload without a ref, like GitHub's ping, yields no events and no error.
func ParsePayload(data []byte) ([]Event, error) {
	var p pushPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if p.Ref == "" {
		return nil, nil
	}

	ev, err := New(p.Ref, p.Before, p.After)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedInput, err)
	}
	ev.MirrorURLs = collectURLs(p.Repository.list(), p.Project.list())
	return []Event{ev}, nil
}

func collectURLs(groups ...[]string) []string {
	seen := make(map[string]bool)
	var urls []string
	for _, group := range groups {
		for _, u := range group {
			u = strings.TrimSpace(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}
