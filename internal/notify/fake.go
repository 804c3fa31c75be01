package notify

import (
	"context"
	"sync"
)

// Notification is one message recorded by FakeNotifier.
type Notification struct {
	Repository string
	Message    string
	Recipient  string
}

// FakeNotifier records notifications in memory.
type FakeNotifier struct {
	mu   sync.Mutex
	sent []Notification

	// Err, when set, is returned by Notify after recording.
	Err error
}

// NewFakeNotifier creates an empty FakeNotifier.
func NewFakeNotifier() *FakeNotifier {
	return &FakeNotifier{}
}

// Notify records the notification.
func (f *FakeNotifier) Notify(_ context.Context, repository, message, recipient string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, Notification{Repository: repository, Message: message, Recipient: recipient})
	return f.Err
}

// Sent returns a copy of the recorded notifications.
func (f *FakeNotifier) Sent() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.sent...)
}
