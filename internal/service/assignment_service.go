package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/team-tickets/internal/domain"
	"github.com/spec-kit/team-tickets/internal/repository"
)

// AssignmentService picks the best team member for a ticket's required skills.
type AssignmentService struct {
	logger *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{logger: logger}
}

// SelectAssignee scores every member against skills using the current active
// workload read through repos. It returns nil when no member shares a skill.
// Workload is read fresh on every call.
func (s *AssignmentService) SelectAssignee(ctx context.Context, repos repository.Repos, skills []string) (*domain.TeamMember, error) {
	members, err := repos.Members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	workload, err := repos.Tickets.ActiveWorkload(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workload: %w", err)
	}

	id, ok := FindBestMember(skills, members, workload)
	if !ok {
		return nil, nil
	}
	for i := range members {
		if members[i].ID == id {
			s.logger.Debug("auto-assignment candidate selected",
				zap.Int64("member_id", id),
				zap.Int("workload", workload[id]),
				zap.Float64("score", ScoreMember(skills, members[i], workload[id])))
			return &members[i], nil
		}
	}
	return nil, nil
}

// FindBestMember returns the member with the strictly highest score. Members
// with no skill overlap are never chosen. Ties keep the earliest member in
// the given order, so callers pass members in creation order.
func FindBestMember(requiredSkills []string, members []domain.TeamMember, workload map[int64]int) (int64, bool) {
	if len(requiredSkills) == 0 {
		return 0, false
	}

	var (
		bestID    int64
		bestScore float64
		found     bool
	)
	for _, member := range members {
		score := ScoreMember(requiredSkills, member, workload[member.ID])
		if score > bestScore {
			bestID, bestScore, found = member.ID, score, true
		}
	}
	return bestID, found
}

// ScoreMember computes matchCount / (activeTickets + 1). Zero means no overlap.
func ScoreMember(requiredSkills []string, member domain.TeamMember, activeTickets int) float64 {
	required := make(map[string]struct{}, len(requiredSkills))
	for _, skill := range requiredSkills {
		required[skill] = struct{}{}
	}
	matches := 0
	for _, skill := range domain.NormalizeSkills(member.Skills) {
		if _, ok := required[skill]; ok {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	if activeTickets < 0 {
		activeTickets = 0
	}
	return float64(matches) * (1 / float64(activeTickets+1))
}
