// Package alert delivers pipeline run digests to chat and webhook destinations.
package alert

import (
	"context"
	"errors"
	"fmt"
)

const (
	userAgent = "aidaily/1.0"
	maxLinks  = 5
)

// Story is one digest entry.
type Story struct {
	Title   string `json:"title"`
	Summary string `json:"summary,omitempty"`
	URL     string `json:"url,omitempty"`
	Items   int    `json:"items"`
}

// Notification is the data sent to alert destinations.
type Notification struct {
	RunID   string  `json:"run_id"`
	Title   string  `json:"title"`
	Body    string  `json:"body"`
	Stories []Story `json:"stories"`
}

func (n *Notification) top() []Story {
	if len(n.Stories) > maxLinks {
		return n.Stories[:maxLinks]
	}
	return n.Stories
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return m != nil && len(m.notifiers) > 0
}

// Broadcast sends a notification to every notifier. One failing
// destination does not stop the others.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}
