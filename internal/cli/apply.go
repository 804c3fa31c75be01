package cli

import (
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply <repository> <mirror> <ref> <old> <new>",
	Short: "Apply a ref update reported by one mirror",
	Long: `Apply the update of <ref> from <old> to <new> that <mirror> reports.

The mirror must currently hold <new>, and the local ref must be at <old> or
already at <new>. The local ref is then moved with a compare-and-swap and the
update is pushed to the other mirrors. Any mismatch is an integrity
violation: nothing is changed and the repository owner is notified.`,
	Args: cobra.ExactArgs(5),
	RunE: runApply,
}

func runApply(cmd *cobra.Command, args []string) error {
	ev, err := parseEvent(args[2], args[3], args[4])
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return emitReport(a.dispatcher.Apply(cmd.Context(), args[0], args[1], ev, a.settings.SuppressStderr))
}
