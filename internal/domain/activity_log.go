package domain

import "time"

// ActivityAction tags what an activity entry records.
type ActivityAction string

const (
	ActionCreated   ActivityAction = "created"
	ActionUpdated   ActivityAction = "updated"
	ActionAssigned  ActivityAction = "assigned"
	ActionCompleted ActivityAction = "completed"
	ActionReopened  ActivityAction = "reopened"
	ActionDeleted   ActivityAction = "deleted"
)

// UnknownAssignee is reported as completedBy when a ticket completes without an assignee.
const UnknownAssignee = "Unknown"

// ActivityLog is an immutable audit trail entry. TicketID is not checked against
// live tickets, so entries outlive ticket deletion.
type ActivityLog struct {
	ID        int64          `json:"id"`
	TicketID  int64          `json:"ticketId"`
	Action    ActivityAction `json:"action"`
	Details   map[string]any `json:"details"`
	Timestamp time.Time      `json:"timestamp"`
}

// CloneDetails deep-copies a details payload, including nested maps and slices.
func CloneDetails(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		out[k] = cloneDetailValue(v)
	}
	return out
}

func cloneDetailValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneDetails(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneDetailValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// CreatedDetails records the ticket as created.
func CreatedDetails(t Ticket) map[string]any {
	return map[string]any{"ticket": TicketSnapshot(t)}
}

// UpdatedDetails records the fields an update changed.
func UpdatedDetails(updates map[string]any) map[string]any {
	return map[string]any{"updates": updates}
}

// AssignedDetails records the new assignee.
func AssignedDetails(member TeamMember) map[string]any {
	return map[string]any{"memberId": member.ID, "memberName": member.Name}
}

// CompletedDetails records completion time and the assignee's name.
func CompletedDetails(completedAt time.Time, completedBy string) map[string]any {
	return map[string]any{"completedAt": completedAt.UTC().Format(time.RFC3339Nano), "completedBy": completedBy}
}

// ReopenedDetails records the status before reopening.
func ReopenedDetails(previous TicketStatus) map[string]any {
	return map[string]any{"previousStatus": string(previous)}
}

// DeletedDetails records the id of the removed ticket.
func DeletedDetails(ticketID int64) map[string]any {
	return map[string]any{"ticketId": ticketID}
}

// TicketSnapshot flattens a ticket into JSON-friendly values for log payloads.
func TicketSnapshot(t Ticket) map[string]any {
	snap := map[string]any{
		"id":             t.ID,
		"title":          t.Title,
		"description":    t.Description,
		"requiredSkills": append([]string(nil), t.RequiredSkills...),
		"deadline":       t.Deadline.Format(DeadlineLayout),
		"priority":       string(t.Priority),
		"status":         string(t.Status),
		"createdAt":      t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if t.AssignedTo != nil {
		snap["assignedTo"] = *t.AssignedTo
	}
	return snap
}
