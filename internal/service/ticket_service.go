package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/team-tickets/internal/clock"
	"github.com/spec-kit/team-tickets/internal/domain"
	"github.com/spec-kit/team-tickets/internal/events"
	"github.com/spec-kit/team-tickets/internal/repository"
)

// TicketService is the single entry point for ticket reads and lifecycle
// operations. Every mutation applies its state change and appends exactly one
// activity entry inside one unit of work.
type TicketService struct {
	store      repository.Store
	cache      TicketCache
	dispatcher events.Dispatcher
	clock      clock.Clock
	logger     *zap.Logger

	assigner *AssignmentService
	activity *ActivityLogger
	locks    *keyedMutex
}

// TicketDependencies bundles collaborators for the ticket service. Only Store
// is required.
type TicketDependencies struct {
	Store      repository.Store
	Cache      TicketCache
	Dispatcher events.Dispatcher
	Clock      clock.Clock
	Logger     *zap.Logger
}

// CreateTicketInput describes ticket creation. AssignedTo bypasses the scorer;
// AutoAssign runs it when no explicit member is given.
type CreateTicketInput struct {
	Title          string
	Description    string
	RequiredSkills []string
	Deadline       time.Time
	Priority       domain.TicketPriority
	AssignedTo     *int64
	AutoAssign     bool
}

// TicketUpdate is a partial update. Nil fields are left untouched.
type TicketUpdate struct {
	Title          *string
	Description    *string
	RequiredSkills []string
	Deadline       *time.Time
	Priority       *domain.TicketPriority
}

// MemberWorkload pairs a member with their active ticket count.
type MemberWorkload struct {
	MemberID      int64  `json:"memberId"`
	Name          string `json:"name"`
	ActiveTickets int    `json:"activeTickets"`
}

// Stats summarizes the ticket set.
type Stats struct {
	Total    int                         `json:"total"`
	ByStatus map[domain.TicketStatus]int `json:"byStatus"`
	Workload []MemberWorkload            `json:"workload"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	if deps.Cache == nil {
		deps.Cache = NopTicketCache{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &TicketService{
		store:      deps.Store,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		clock:      deps.Clock,
		logger:     deps.Logger,
		assigner:   NewAssignmentService(deps.Logger),
		activity:   NewActivityLogger(deps.Clock),
		locks:      newKeyedMutex(),
	}
}

// ListMembers returns all team members in creation order.
func (s *TicketService) ListMembers(ctx context.Context) ([]domain.TeamMember, error) {
	members, err := s.store.Repos().Members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// GetMember returns nil when the member does not exist.
func (s *TicketService) GetMember(ctx context.Context, id int64) (*domain.TeamMember, error) {
	member, err := s.store.Repos().Members.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member %d: %w", id, err)
	}
	return member, nil
}

// ListSkills returns the skill vocabulary.
func (s *TicketService) ListSkills() []string {
	return append([]string(nil), domain.SkillVocabulary...)
}

// ListTickets returns tickets matching filter ordered by id.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	tickets, err := s.store.Repos().Tickets.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	return tickets, nil
}

// GetTicket reads through the ticket cache. It returns nil when the ticket does not exist.
// A miss holds the ticket lock until the cache is filled, so a mutation cannot
// invalidate before the stale row is written back.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	cached, ok, err := s.cache.Get(ctx, id)
	if err != nil {
		s.logger.Warn("ticket cache read failed", zap.Int64("ticket_id", id), zap.Error(err))
	} else if ok {
		return cached, nil
	}

	unlock := s.locks.Lock(id)
	defer unlock()

	ticket, err := s.store.Repos().Tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	if err := s.cache.Set(ctx, ticket); err != nil {
		s.logger.Warn("ticket cache write failed", zap.Int64("ticket_id", id), zap.Error(err))
	}
	return ticket, nil
}

// CreateTicket stores a pending ticket and logs it. When an assignee is given,
// or AutoAssign finds one, the assignment happens in the same unit of work.
func (s *TicketService) CreateTicket(ctx context.Context, input CreateTicketInput) (*domain.Ticket, error) {
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	ticket := domain.NewTicket(
		strings.TrimSpace(input.Title),
		strings.TrimSpace(input.Description),
		input.RequiredSkills,
		input.Deadline,
		priority,
		s.now(),
	)

	var assignee *domain.TeamMember
	err := s.store.WithinTx(ctx, func(repos repository.Repos) error {
		if err := repos.Tickets.Create(ctx, &ticket); err != nil {
			return fmt.Errorf("create ticket: %w", err)
		}
		if _, err := s.activity.Append(ctx, repos.Activity, ticket.ID, domain.ActionCreated, domain.CreatedDetails(ticket)); err != nil {
			return err
		}

		member, err := s.resolveAssignee(ctx, repos, ticket, input.AssignedTo, input.AutoAssign)
		if err != nil || member == nil {
			return err
		}
		if err := s.applyAssignment(ctx, repos, &ticket, *member); err != nil {
			return err
		}
		assignee = member
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("ticket created", zap.Int64("ticket_id", ticket.ID), zap.String("status", string(ticket.Status)))
	s.publish(ctx, events.EventTicketCreated, ticket.ID, events.TicketCreatedPayload{
		Title:    ticket.Title,
		Priority: ticket.Priority,
		Skills:   ticket.RequiredSkills,
	})
	if assignee != nil {
		s.publish(ctx, events.EventTicketAssigned, ticket.ID, events.TicketAssignedPayload{
			MemberID:   assignee.ID,
			MemberName: assignee.Name,
			Automatic:  input.AssignedTo == nil,
		})
	}
	return &ticket, nil
}

// UpdateTicket applies a partial update. Only fields whose value changes are
// written and logged; a patch that changes nothing leaves storage untouched.
// It returns nil when the ticket does not exist.
func (s *TicketService) UpdateTicket(ctx context.Context, id int64, patch TicketUpdate) (*domain.Ticket, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		result  *domain.Ticket
		changes map[string]any
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repos) error {
		ticket, err := s.loadTicket(ctx, repos, id)
		if err != nil || ticket == nil {
			return err
		}
		result = ticket

		changes = applyPatch(ticket, patch)
		if len(changes) == 0 {
			return nil
		}
		if err := repos.Tickets.Update(ctx, ticket); err != nil {
			return fmt.Errorf("update ticket %d: %w", id, err)
		}
		_, err = s.activity.Append(ctx, repos.Activity, id, domain.ActionUpdated, domain.UpdatedDetails(changes))
		return err
	})
	if err != nil || result == nil {
		return nil, err
	}
	if len(changes) == 0 {
		return result, nil
	}

	fields := make([]string, 0, len(changes))
	for field := range changes {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	s.afterCommit(ctx, id)
	s.logger.Debug("ticket updated", zap.Int64("ticket_id", id), zap.Strings("fields", fields))
	s.publish(ctx, events.EventTicketUpdated, id, events.TicketUpdatedPayload{Fields: fields})
	return result, nil
}

// DeleteTicket appends a final "deleted" entry and removes the ticket. Prior
// activity is kept. It returns false when the ticket does not exist.
func (s *TicketService) DeleteTicket(ctx context.Context, id int64) (bool, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	found := false
	err := s.store.WithinTx(ctx, func(repos repository.Repos) error {
		ticket, err := s.loadTicket(ctx, repos, id)
		if err != nil || ticket == nil {
			return err
		}
		found = true
		if _, err := s.activity.Append(ctx, repos.Activity, id, domain.ActionDeleted, domain.DeletedDetails(id)); err != nil {
			return err
		}
		if err := repos.Tickets.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete ticket %d: %w", id, err)
		}
		return nil
	})
	if err != nil || !found {
		return false, err
	}

	s.afterCommit(ctx, id)
	s.logger.Debug("ticket deleted", zap.Int64("ticket_id", id))
	s.publish(ctx, events.EventTicketDeleted, id, nil)
	return true, nil
}

// AssignTicket assigns the ticket to memberID, or to the scorer's pick when
// memberID is nil. An unknown member or no eligible member returns the ticket
// unchanged. It returns nil when the ticket does not exist.
func (s *TicketService) AssignTicket(ctx context.Context, id int64, memberID *int64) (*domain.Ticket, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		result   *domain.Ticket
		assignee *domain.TeamMember
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repos) error {
		ticket, err := s.loadTicket(ctx, repos, id)
		if err != nil || ticket == nil {
			return err
		}
		result = ticket

		member, err := s.resolveAssignee(ctx, repos, *ticket, memberID, true)
		if err != nil || member == nil {
			return err
		}
		if err := s.applyAssignment(ctx, repos, ticket, *member); err != nil {
			return err
		}
		assignee = member
		return nil
	})
	if err != nil || result == nil {
		return nil, err
	}
	if assignee == nil {
		return result, nil
	}

	s.afterCommit(ctx, id)
	s.logger.Debug("ticket assigned", zap.Int64("ticket_id", id), zap.Int64("member_id", assignee.ID))
	s.publish(ctx, events.EventTicketAssigned, id, events.TicketAssignedPayload{
		MemberID:   assignee.ID,
		MemberName: assignee.Name,
		Automatic:  memberID == nil,
	})
	return result, nil
}

// CompleteTicket marks the ticket completed from any state. completedBy is
// the assignee's name, or "Unknown" when there is none. It returns nil when
// the ticket does not exist.
func (s *TicketService) CompleteTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		result   *domain.Ticket
		previous domain.TicketStatus
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repos) error {
		ticket, err := s.loadTicket(ctx, repos, id)
		if err != nil || ticket == nil {
			return err
		}

		completedBy, err := s.assigneeName(ctx, repos, ticket.AssignedTo)
		if err != nil {
			return err
		}
		previous = ticket.Status
		ticket.Complete(s.now())
		if err := s.save(ctx, repos, ticket); err != nil {
			return err
		}
		if _, err := s.activity.Append(ctx, repos.Activity, id, domain.ActionCompleted, domain.CompletedDetails(*ticket.CompletedAt, completedBy)); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil || result == nil {
		return nil, err
	}

	s.afterCommit(ctx, id)
	s.logger.Debug("ticket completed", zap.Int64("ticket_id", id), zap.String("previous_status", string(previous)))
	s.publish(ctx, events.EventTicketCompleted, id, events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: result.Status})
	return result, nil
}

// ReopenTicket clears completion and re-derives the status from the assignee.
// Reopening a ticket that is not completed is allowed and still logged. It
// returns nil when the ticket does not exist.
func (s *TicketService) ReopenTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var (
		result   *domain.Ticket
		previous domain.TicketStatus
	)
	err := s.store.WithinTx(ctx, func(repos repository.Repos) error {
		ticket, err := s.loadTicket(ctx, repos, id)
		if err != nil || ticket == nil {
			return err
		}

		previous = ticket.Reopen()
		if err := s.save(ctx, repos, ticket); err != nil {
			return err
		}
		if _, err := s.activity.Append(ctx, repos.Activity, id, domain.ActionReopened, domain.ReopenedDetails(previous)); err != nil {
			return err
		}
		result = ticket
		return nil
	})
	if err != nil || result == nil {
		return nil, err
	}

	s.afterCommit(ctx, id)
	s.logger.Debug("ticket reopened", zap.Int64("ticket_id", id), zap.String("status", string(result.Status)))
	s.publish(ctx, events.EventTicketReopened, id, events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: result.Status})
	return result, nil
}

// ListActivity returns the ticket's activity newest first. Entries of deleted
// tickets are still returned.
func (s *TicketService) ListActivity(ctx context.Context, ticketID int64) ([]domain.ActivityLog, error) {
	return s.activity.ListForTicket(ctx, s.store.Repos().Activity, ticketID)
}

// Stats counts tickets per status and reports active workload for every member.
func (s *TicketService) Stats(ctx context.Context) (*Stats, error) {
	repos := s.store.Repos()
	tickets, err := repos.Tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, fmt.Errorf("list tickets: %w", err)
	}
	members, err := repos.Members.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	workload, err := repos.Tickets.ActiveWorkload(ctx)
	if err != nil {
		return nil, fmt.Errorf("load workload: %w", err)
	}

	stats := &Stats{
		Total: len(tickets),
		ByStatus: map[domain.TicketStatus]int{
			domain.TicketStatusPending:   0,
			domain.TicketStatusAssigned:  0,
			domain.TicketStatusCompleted: 0,
		},
		Workload: make([]MemberWorkload, 0, len(members)),
	}
	for _, t := range tickets {
		stats.ByStatus[t.Status]++
	}
	for _, m := range members {
		stats.Workload = append(stats.Workload, MemberWorkload{MemberID: m.ID, Name: m.Name, ActiveTickets: workload[m.ID]})
	}
	return stats, nil
}

func (s *TicketService) loadTicket(ctx context.Context, repos repository.Repos, id int64) (*domain.Ticket, error) {
	ticket, err := repos.Tickets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load ticket %d: %w", id, err)
	}
	return ticket, nil
}

// resolveAssignee returns the explicit member, or the scorer's pick when
// explicit is nil and auto is set. nil means nobody to assign.
func (s *TicketService) resolveAssignee(ctx context.Context, repos repository.Repos, ticket domain.Ticket, explicit *int64, auto bool) (*domain.TeamMember, error) {
	if explicit != nil {
		member, err := repos.Members.GetByID(ctx, *explicit)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("assignment skipped: unknown member",
				zap.Int64("ticket_id", ticket.ID), zap.Int64("member_id", *explicit))
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("get member %d: %w", *explicit, err)
		}
		return member, nil
	}
	if !auto {
		return nil, nil
	}
	member, err := s.assigner.SelectAssignee(ctx, repos, ticket.RequiredSkills)
	if err != nil {
		return nil, err
	}
	if member == nil {
		s.logger.Info("no eligible member for ticket",
			zap.Int64("ticket_id", ticket.ID), zap.Strings("required_skills", ticket.RequiredSkills))
	}
	return member, nil
}

func (s *TicketService) applyAssignment(ctx context.Context, repos repository.Repos, ticket *domain.Ticket, member domain.TeamMember) error {
	ticket.AssignTo(member.ID, s.now())
	if err := s.save(ctx, repos, ticket); err != nil {
		return err
	}
	_, err := s.activity.Append(ctx, repos.Activity, ticket.ID, domain.ActionAssigned, domain.AssignedDetails(member))
	return err
}

func (s *TicketService) assigneeName(ctx context.Context, repos repository.Repos, memberID *int64) (string, error) {
	if memberID == nil {
		return domain.UnknownAssignee, nil
	}
	member, err := repos.Members.GetByID(ctx, *memberID)
	if errors.Is(err, repository.ErrNotFound) {
		return domain.UnknownAssignee, nil
	}
	if err != nil {
		return "", fmt.Errorf("get member %d: %w", *memberID, err)
	}
	return member.Name, nil
}

func (s *TicketService) save(ctx context.Context, repos repository.Repos, ticket *domain.Ticket) error {
	if err := ticket.CheckInvariants(); err != nil {
		return err
	}
	if err := repos.Tickets.Update(ctx, ticket); err != nil {
		return fmt.Errorf("update ticket %d: %w", ticket.ID, err)
	}
	return nil
}

// afterCommit drops the cached ticket. The committed change must not be
// masked by a request deadline expiring, so the caller's cancellation is ignored.
func (s *TicketService) afterCommit(ctx context.Context, id int64) {
	if err := s.cache.Invalidate(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Warn("ticket cache invalidation failed", zap.Int64("ticket_id", id), zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, eventType events.EventType, ticketID int64, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(eventType)), zap.Error(err))
	}
}

func (s *TicketService) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Microsecond)
}

// applyPatch mutates ticket and returns the changed fields keyed by their wire name.
func applyPatch(ticket *domain.Ticket, patch TicketUpdate) map[string]any {
	changes := map[string]any{}
	if patch.Title != nil {
		if title := strings.TrimSpace(*patch.Title); title != ticket.Title {
			ticket.Title = title
			changes["title"] = title
		}
	}
	if patch.Description != nil {
		if desc := strings.TrimSpace(*patch.Description); desc != ticket.Description {
			ticket.Description = desc
			changes["description"] = desc
		}
	}
	if patch.RequiredSkills != nil {
		if skills := domain.NormalizeSkills(patch.RequiredSkills); !equalStrings(skills, ticket.RequiredSkills) {
			ticket.RequiredSkills = skills
			changes["requiredSkills"] = append([]string(nil), skills...)
		}
	}
	if patch.Deadline != nil && !patch.Deadline.Equal(ticket.Deadline) {
		ticket.Deadline = *patch.Deadline
		changes["deadline"] = patch.Deadline.Format(domain.DeadlineLayout)
	}
	if patch.Priority != nil && *patch.Priority != ticket.Priority {
		ticket.Priority = *patch.Priority
		changes["priority"] = string(*patch.Priority)
	}
	return changes
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
