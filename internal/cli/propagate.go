package cli

import (
	"github.com/spf13/cobra"

	"github.com/danieljhkim/mirrorsync/internal/events"
)

var propagateSkip []string

var propagateCmd = &cobra.Command{
	Use:   "propagate <repository> <ref> <old> <new>",
	Short: "Push a local ref update to the mirrors of a repository",
	Long: `Push the update of <ref> from <old> to <new> in the local repository to
its mirrors. Rewrites are force-pushed, deletions delete the mirror ref.

Use the all-zero SHA as <old> for a creation and as <new> for a deletion.`,
	Example: `  mirrorsync propagate project refs/heads/main 1a2b... 3c4d...
  mirrorsync propagate project refs/tags/v1 0000000000000000000000000000000000000000 3c4d... --skip github`,
	Args: cobra.ExactArgs(4),
	RunE: runPropagate,
}

func init() {
	propagateCmd.Flags().StringSliceVar(&propagateSkip, "skip", nil, "Mirror to leave alone (repeatable)")
}

func runPropagate(cmd *cobra.Command, args []string) error {
	ev, err := parseEvent(args[1], args[2], args[3])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return emitReport(a.dispatcher.Propagate(cmd.Context(), args[0], ev, propagateSkip, a.settings.SuppressStderr))
}

// parseEvent validates command-line arguments into an event.
func parseEvent(ref, oldSHA, newSHA string) (events.Event, error) {
	return events.New(ref, oldSHA, newSHA)
}
