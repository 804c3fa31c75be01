// Package notify tells repository owners about synchronisation failures.
package notify

import (
	"context"
	"fmt"
)

// Notifier delivers a message about repository to recipient. An empty
// recipient is not an error; there is nobody to tell.
type Notifier interface {
	Notify(ctx context.Context, repository, message, recipient string) error
}

// Subject returns the subject line used for repository.
func Subject(repository string) string {
	return fmt.Sprintf("mirrorsync %s", repository)
}
