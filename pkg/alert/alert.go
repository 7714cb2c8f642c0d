package alert

import (
	"context"
	"errors"
	"fmt"
)

// Mover is one competitor whose ranking moved notably in a collection run.
type Mover struct {
	CompetitorID string  `json:"competitor_id"`
	Name         string  `json:"name"`
	Country      string  `json:"country"`
	Rank         int     `json:"rank"`
	Movement     int     `json:"movement"`
	Points       float64 `json:"points"`
}

// Arrow renders the direction of a movement.
func (m Mover) Arrow() string {
	switch {
	case m.Movement > 0:
		return fmt.Sprintf("▲%d", m.Movement)
	case m.Movement < 0:
		return fmt.Sprintf("▼%d", -m.Movement)
	}
	return "="
}

// Notification is the data sent to alert destinations.
type Notification struct {
	Title  string  `json:"title"`
	Body   string  `json:"body"`
	RunID  string  `json:"run_id"`
	Movers []Mover `json:"movers"`
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

// Broadcast sends a notification to all registered notifiers.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// topMovers returns at most limit movers for chat renderings.
func topMovers(n *Notification, limit int) []Mover {
	if len(n.Movers) < limit {
		limit = len(n.Movers)
	}
	return n.Movers[:limit]
}
