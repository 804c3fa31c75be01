package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/mirrorsync/internal/events"
)

var webhookCmd = &cobra.Command{
	Use:   "webhook",
	Short: "Apply an update reported by a mirror's push webhook",
	Long: `Read one push webhook payload (GitHub or GitLab format) from stdin and
apply it: the update is verified against the reporting mirror, applied to
the local repository and pushed to the other mirrors.

The mirror is recognised by any of the repository URLs in the payload.
git's stderr is always captured.`,
	Args: cobra.NoArgs,
	RunE: runWebhook,
}

func runWebhook(cmd *cobra.Command, args []string) error {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read payload: %w", err)
	}
	evs, err := events.ParsePayload(data)
	if err != nil {
		return err
	}
	if len(evs) == 0 {
		if !jsonOutput {
			PrintInfo("Payload carries no ref update")
		}
		return nil
	}

	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	return emitReport(a.dispatcher.HandleMirrorPush(cmd.Context(), evs, true))
}
