package dto

import "github.com/spec-kit/team-tickets/internal/domain"

// MemberResponse represents a team member.
type MemberResponse struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Skills   []string `json:"skills"`
	Initials string   `json:"initials"`
}

// NewMemberResponse maps a domain member.
func NewMemberResponse(m *domain.TeamMember) MemberResponse {
	return MemberResponse{ID: m.ID, Name: m.Name, Skills: m.Skills, Initials: m.Initials}
}

// NewMemberResponses maps a member list.
func NewMemberResponses(members []domain.TeamMember) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for i := range members {
		out = append(out, NewMemberResponse(&members[i]))
	}
	return out
}
