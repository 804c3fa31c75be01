package notify

import (
	"context"

	"k8s.io/klog/v2"
)

// LogNotifier writes notifications to the log. It is used when no mail
// server is configured.
type LogNotifier struct{}

// Notify logs message.
func (LogNotifier) Notify(_ context.Context, repository, message, recipient string) error {
	klog.InfoS("Owner notification", "repository", repository, "recipient", recipient, "message", message)
	return nil
}
