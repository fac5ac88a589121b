// Package notifier pushes trading events to a human.
package notifier

// Notifier delivers a plain-text message. Implementations must be safe to
// call from the cycle loop; delivery failures are the implementation's
// problem to retry or drop.
type Notifier interface {
	SendText(text string) error
}

// Noop swallows every message.
type Noop struct{}

func (Noop) SendText(string) error { return nil }
