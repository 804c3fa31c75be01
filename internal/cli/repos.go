package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mirrorsync/internal/config"
)

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List configured repositories and their mirrors",
	Args:  cobra.NoArgs,
	RunE:  runRepos,
}

type mirrorInfo struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type repoInfo struct {
	Name    string       `json:"name"`
	Local   string       `json:"local"`
	Owner   string       `json:"owner,omitempty"`
	Mirrors []mirrorInfo `json:"mirrors"`
}

func runRepos(cmd *cobra.Command, args []string) error {
	_, registry, err := loadConfig()
	if err != nil {
		return err
	}
	infos := describeRepos(registry)

	if jsonOutput {
		return outputJSON(infos)
	}

	if len(infos) == 0 {
		PrintEmptyState("No repositories configured")
		return nil
	}
	for _, info := range infos {
		PrintSection(info.Name)
		PrintLabelValue("Local", info.Local)
		if info.Owner != "" {
			PrintLabelValue("Owner", info.Owner)
		}
		if len(info.Mirrors) == 0 {
			PrintEmptyState("No mirrors")
			continue
		}
		items := make([]string, 0, len(info.Mirrors))
		for _, m := range info.Mirrors {
			items = append(items, fmt.Sprintf("%s  %s", m.Name, m.URL))
		}
		PrintList(items, 1)
	}
	return nil
}

func describeRepos(registry *config.Registry) []repoInfo {
	infos := make([]repoInfo, 0, len(registry.Names()))
	for _, repo := range registry.All() {
		info := repoInfo{
			Name:    repo.Name,
			Local:   repo.LocalPath,
			Owner:   repo.Owner,
			Mirrors: []mirrorInfo{},
		}
		for _, m := range repo.Mirrors.All() {
			info.Mirrors = append(info.Mirrors, mirrorInfo{Name: m.Name, URL: m.URL})
		}
		infos = append(infos, info)
	}
	return infos
}
