package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mirrorsync/internal/events"
)

var hookDir string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Propagate updates reported by a post-receive hook",
	Long: `Read "<old> <new> <ref>" lines from stdin, as git passes them to a
post-receive hook, and push every update to the mirrors of the repository.

The repository is found by its directory: --dir, else $GIT_DIR, else the
current directory. Install it as hooks/post-receive:

  #!/bin/sh
  exec mirrorsync hook`,
	Args: cobra.NoArgs,
	RunE: runHook,
}

func init() {
	hookCmd.Flags().StringVar(&hookDir, "dir", "", "Repository directory (default $GIT_DIR or the current directory)")
}

func runHook(cmd *cobra.Command, args []string) error {
	dir, err := hookDirectory()
	if err != nil {
		return err
	}

	evs, err := events.ParseHookInput(cmd.InOrStdin())
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return emitReport(a.dispatcher.HandleLocalPush(cmd.Context(), dir, evs, a.settings.SuppressStderr))
}

func hookDirectory() (string, error) {
	if hookDir != "" {
		return hookDir, nil
	}
	if dir := os.Getenv("GIT_DIR"); dir != "" {
		return dir, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return cwd, nil
}
