package dto

import (
	"time"

	"github.com/spec-kit/team-tickets/internal/domain"
)

// CreateTicketRequest payload. Deadline uses the YYYY-MM-DD layout.
type CreateTicketRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	RequiredSkills []string `json:"requiredSkills"`
	Deadline       string   `json:"deadline"`
	Priority       string   `json:"priority"`
	AssignedTo     *int64   `json:"assignedTo"`
	AutoAssign     bool     `json:"autoAssign"`
}

// UpdateTicketRequest payload. Omitted fields stay untouched.
type UpdateTicketRequest struct {
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	RequiredSkills []string `json:"requiredSkills"`
	Deadline       *string  `json:"deadline"`
	Priority       *string  `json:"priority"`
}

// AssignTicketRequest payload. A missing memberId requests auto-assignment.
type AssignTicketRequest struct {
	MemberID *int64 `json:"memberId"`
}

// TicketResponse represents a ticket on the wire.
type TicketResponse struct {
	ID             int64                 `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	RequiredSkills []string              `json:"requiredSkills"`
	Deadline       string                `json:"deadline"`
	Priority       domain.TicketPriority `json:"priority"`
	Status         domain.TicketStatus   `json:"status"`
	AssignedTo     *int64                `json:"assignedTo"`
	AssignedAt     *time.Time            `json:"assignedAt"`
	CompletedAt    *time.Time            `json:"completedAt"`
	CreatedAt      time.Time             `json:"createdAt"`
}

// ActivityResponse is one audit entry.
type ActivityResponse struct {
	ID        int64                 `json:"id"`
	TicketID  int64                 `json:"ticketId"`
	Action    domain.ActivityAction `json:"action"`
	Details   map[string]any        `json:"details"`
	Timestamp time.Time             `json:"timestamp"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	skills := t.RequiredSkills
	if skills == nil {
		skills = []string{}
	}
	return TicketResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		RequiredSkills: skills,
		Deadline:       t.Deadline.Format(domain.DeadlineLayout),
		Priority:       t.Priority,
		Status:         t.Status,
		AssignedTo:     t.AssignedTo,
		AssignedAt:     t.AssignedAt,
		CompletedAt:    t.CompletedAt,
		CreatedAt:      t.CreatedAt,
	}
}

// NewTicketResponses maps a ticket list.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i]))
	}
	return out
}

// NewActivityResponses maps activity entries, keeping their order.
func NewActivityResponses(entries []domain.ActivityLog) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, ActivityResponse{
			ID:        e.ID,
			TicketID:  e.TicketID,
			Action:    e.Action,
			Details:   e.Details,
			Timestamp: e.Timestamp,
		})
	}
	return out
}
