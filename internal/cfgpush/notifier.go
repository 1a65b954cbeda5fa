package cfgpush

import "context"

// Notifier delivers a one-line failure description to an external sink.
// Delivery is best effort: callers log a failed Notify and carry on.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NopNotifier discards notifications. Used when no webhook is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string) error { return nil }
