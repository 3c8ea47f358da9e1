package events

import (
	"time"

	"github.com/spec-kit/team-tickets/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated   EventType = "ticket_created"
	EventTicketUpdated   EventType = "ticket_updated"
	EventTicketAssigned  EventType = "ticket_assigned"
	EventTicketCompleted EventType = "ticket_completed"
	EventTicketReopened  EventType = "ticket_reopened"
	EventTicketDeleted   EventType = "ticket_deleted"
)

// Event is published after a ticket change has been committed.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  int64     `json:"ticket_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Priority domain.TicketPriority `json:"priority"`
	Skills   []string              `json:"skills"`
}

// TicketUpdatedPayload payload.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	MemberID   int64  `json:"member_id"`
	MemberName string `json:"member_name"`
	Automatic  bool   `json:"automatic"`
}

// TicketStatusChangedPayload is used for completion and reopening.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}
