// Package notification carries decision events to users. Producers call
// Notify and move on; delivery happens on a background goroutine and never
// feeds back into the transition that produced the event.
package notification

import (
	"context"
	"sync"

	"marketplace-verification/internal/models"
)

type Priority int

const (
	PriorityNormal Priority = iota
	// PriorityHigh adds an SMS on top of the email.
	PriorityHigh
)

// Recipient is either one user or every user holding Role.
type Recipient struct {
	UserID string
	Role   models.Role
}

func ToUser(id string) Recipient {
	return Recipient{UserID: id}
}

func ToAdmins() Recipient {
	return Recipient{Role: models.RoleAdmin}
}

// Broadcast reports whether the recipient resolves to a role rather than a
// single user.
func (r Recipient) Broadcast() bool {
	return r.UserID == "" && r.Role != ""
}

type Event struct {
	Type     models.NotificationType
	Content  string
	From     string
	To       []Recipient
	Priority Priority
}

// Notifier accepts events without blocking the caller.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) {}

// Collector keeps every event in memory. Used by tests.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *Collector) Notify(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

// For returns the events addressed to recipient.
func (c *Collector) For(recipient Recipient) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		for _, r := range ev.To {
			if r == recipient {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
