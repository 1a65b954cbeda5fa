package testutil

import (
	"context"
	"sync"

	"cfgpush/internal/cfgpush"
)

// RecordingNotifier keeps every notification. When Err is set, Notify
// records the text and then fails with Err.
type RecordingNotifier struct {
	Err error

	mu    sync.Mutex
	texts []string
}

var _ cfgpush.Notifier = (*RecordingNotifier)(nil)

func (n *RecordingNotifier) Notify(_ context.Context, text string) error {
	n.mu.Lock()
	n.texts = append(n.texts, text)
	n.mu.Unlock()
	return n.Err
}

// Texts returns the notifications received so far.
func (n *RecordingNotifier) Texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.texts...)
}
