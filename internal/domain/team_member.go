package domain

import (
	"strings"
	"unicode"
)

// TeamMember is a person tickets can be assigned to. Members are seeded at
// startup and never change afterwards.
type TeamMember struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	Skills   []string `json:"skills"`
	Initials string   `json:"initials"`
}

// HasSkill reports whether the member lists skill.
func (m TeamMember) HasSkill(skill string) bool {
	for _, s := range m.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// DeriveInitials builds display initials from the first letter of each name part.
func DeriveInitials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		for _, r := range part {
			b.WriteRune(unicode.ToUpper(r))
			break
		}
	}
	return b.String()
}
