package domain

import "time"

// NewTicket builds a pending ticket. Callers assign separately.
func NewTicket(title, description string, skills []string, deadline time.Time, priority TicketPriority, createdAt time.Time) Ticket {
	return Ticket{
		Title:          title,
		Description:    description,
		RequiredSkills: NormalizeSkills(skills),
		Deadline:       deadline,
		Priority:       priority,
		Status:         TicketStatusPending,
		CreatedAt:      createdAt,
	}
}

// DeriveStatus computes the non-completed status implied by the assignment relation.
func DeriveStatus(t Ticket) TicketStatus {
	if t.AssignedTo != nil {
		return TicketStatusAssigned
	}
	return TicketStatusPending
}

// AssignTo moves the ticket to assigned, replacing any previous assignee.
// Valid from every state.
func (t *Ticket) AssignTo(memberID int64, at time.Time) {
	id := memberID
	ts := at
	t.Status = TicketStatusAssigned
	t.AssignedTo = &id
	t.AssignedAt = &ts
	t.CompletedAt = nil
}

// Complete marks the ticket completed. No prior status is required. The
// assignee and AssignedAt are left in place.
func (t *Ticket) Complete(at time.Time) {
	ts := at
	t.Status = TicketStatusCompleted
	t.CompletedAt = &ts
}

// Reopen clears completion and re-derives status from the assignee.
// It returns the status the ticket had before the call.
func (t *Ticket) Reopen() TicketStatus {
	previous := t.Status
	t.CompletedAt = nil
	t.Status = DeriveStatus(*t)
	return previous
}
