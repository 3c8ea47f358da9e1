package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusAssigned  TicketStatus = "assigned"
	TicketStatusCompleted TicketStatus = "completed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusAssigned, TicketStatusCompleted:
		return true
	}
	return false
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// DeadlineLayout is the wire format of ticket deadlines.
const DeadlineLayout = "2006-01-02"

// Ticket is a unit of work that can be assigned to one team member.
// AssignedTo is a lookup key into the member set, not ownership.
type Ticket struct {
	ID             int64          `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	RequiredSkills []string       `json:"requiredSkills"`
	Deadline       time.Time      `json:"deadline"`
	Priority       TicketPriority `json:"priority"`
	Status         TicketStatus   `json:"status"`
	AssignedTo     *int64         `json:"assignedTo,omitempty"`
	AssignedAt     *time.Time     `json:"assignedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (t Ticket) Clone() Ticket {
	out := t
	out.RequiredSkills = append([]string(nil), t.RequiredSkills...)
	if t.AssignedTo != nil {
		v := *t.AssignedTo
		out.AssignedTo = &v
	}
	if t.AssignedAt != nil {
		v := *t.AssignedAt
		out.AssignedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		out.CompletedAt = &v
	}
	return out
}

// CheckInvariants verifies the status/assignment relationship. AssignedAt is
// present exactly when AssignedTo is, whatever the status: completing a ticket
// keeps its assignee and assignment time, and reopening restores "assigned".
func (t Ticket) CheckInvariants() error {
	if (t.AssignedTo == nil) != (t.AssignedAt == nil) {
		return fmt.Errorf("ticket %d: assignedTo and assignedAt must be set together", t.ID)
	}
	switch t.Status {
	case TicketStatusAssigned:
		if t.AssignedTo == nil || t.AssignedAt == nil {
			return fmt.Errorf("ticket %d: assigned without assignee or assignedAt", t.ID)
		}
	case TicketStatusCompleted:
		if t.CompletedAt == nil {
			return fmt.Errorf("ticket %d: completed without completedAt", t.ID)
		}
	case TicketStatusPending:
		if t.AssignedTo != nil {
			return fmt.Errorf("ticket %d: pending with assignee", t.ID)
		}
	default:
		return fmt.Errorf("ticket %d: unknown status %q", t.ID, t.Status)
	}
	return nil
}
