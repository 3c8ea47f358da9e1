package repository

import (
	"strings"
	"testing"

	"github.com/spec-kit/team-tickets/internal/domain"
)

func TestBuildTicketListNoFilter(t *testing.T) {
	query, args, err := buildTicketList(TicketFilter{})
	if err != nil {
		t.Fatalf("buildTicketList: %v", err)
	}
	if strings.Contains(query, "WHERE") {
		t.Fatalf("query = %q, want no WHERE clause", query)
	}
	if !strings.HasSuffix(query, "ORDER BY id ASC") {
		t.Fatalf("query = %q, want ORDER BY id ASC", query)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v, want none", args)
	}
}

func TestBuildTicketListAllFilters(t *testing.T) {
	member := int64(4)
	query, args, err := buildTicketList(TicketFilter{
		Statuses:   []domain.TicketStatus{domain.TicketStatusPending, domain.TicketStatusAssigned},
		Priorities: []domain.TicketPriority{domain.TicketPriorityHigh},
		AssignedTo: &member,
		Skill:      domain.SkillDatabase,
	})
	if err != nil {
		t.Fatalf("buildTicketList: %v", err)
	}
	for _, fragment := range []string{
		"status IN ($1,$2)",
		"priority IN ($3)",
		"assigned_to = $4",
		"$5 = ANY(required_skills)",
	} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("query = %q, missing %q", query, fragment)
		}
	}
	if len(args) != 5 {
		t.Fatalf("len(args) = %d, want 5", len(args))
	}
}

func TestBuildTicketUpdateTargetsID(t *testing.T) {
	query, args, err := buildTicketUpdate(&domain.Ticket{ID: 9, Status: domain.TicketStatusPending})
	if err != nil {
		t.Fatalf("buildTicketUpdate: %v", err)
	}
	if !strings.HasPrefix(query, "UPDATE tickets SET") {
		t.Fatalf("query = %q", query)
	}
	if !strings.Contains(query, "WHERE id = $") {
		t.Fatalf("query = %q, want id predicate", query)
	}
	if args[len(args)-1] != int64(9) {
		t.Fatalf("last arg = %v, want 9", args[len(args)-1])
	}
}

func TestBuildActivityListOrdersNewestFirst(t *testing.T) {
	query, _, err := buildActivityList(3)
	if err != nil {
		t.Fatalf("buildActivityList: %v", err)
	}
	if !strings.Contains(query, "ORDER BY logged_at DESC, id DESC") {
		t.Fatalf("query = %q", query)
	}
}

func TestDecodeDetailsKeepsIntegers(t *testing.T) {
	details, err := decodeDetails([]byte(`{"memberId": 2, "memberName": "Jane Smith", "ratio": 0.5, "ticket": {"id": 7, "requiredSkills": ["backend"]}}`))
	if err != nil {
		t.Fatalf("decodeDetails: %v", err)
	}
	if id, ok := details["memberId"].(int64); !ok || id != 2 {
		t.Fatalf("memberId = %#v, want int64(2)", details["memberId"])
	}
	if ratio, ok := details["ratio"].(float64); !ok || ratio != 0.5 {
		t.Fatalf("ratio = %#v, want 0.5", details["ratio"])
	}
	nested := details["ticket"].(map[string]any)
	if id, ok := nested["id"].(int64); !ok || id != 7 {
		t.Fatalf("ticket.id = %#v, want int64(7)", nested["id"])
	}

	empty, err := decodeDetails(nil)
	if err != nil || empty != nil {
		t.Fatalf("decodeDetails(nil) = %v, %v", empty, err)
	}
}
