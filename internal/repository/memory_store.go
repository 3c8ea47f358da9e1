package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/team-tickets/internal/domain"
)

// MemoryStore keeps all entities in process memory. It is used when no
// database is configured and in tests.
//
// WithinTx runs fn against a private copy of the state and publishes the
// copy only when fn succeeds, so a failed unit of work leaves no trace.
type MemoryStore struct {
	writeMu sync.Mutex

	mu    sync.RWMutex
	state *memState
}

type memState struct {
	mu           sync.RWMutex
	members      []domain.TeamMember
	tickets      map[int64]domain.Ticket
	logs         []domain.ActivityLog
	nextMemberID int64
	nextTicketID int64
	nextLogID    int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{tickets: make(map[int64]domain.Ticket)}}
}

func (s *MemoryStore) current() *memState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Repos returns repositories over the live state. Writes through them are
// serialized with WithinTx.
func (s *MemoryStore) Repos() Repos {
	return memReposFor(s.current, &s.writeMu)
}

// WithinTx implements Store. Calling Repos() writes from inside fn deadlocks.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Repos) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := s.current().clone()
	if err := fn(memReposFor(func() *memState { return draft }, nil)); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = draft
	s.mu.Unlock()
	return nil
}

func (st *memState) clone() *memState {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := &memState{
		members:      make([]domain.TeamMember, len(st.members)),
		tickets:      make(map[int64]domain.Ticket, len(st.tickets)),
		logs:         make([]domain.ActivityLog, len(st.logs)),
		nextMemberID: st.nextMemberID,
		nextTicketID: st.nextTicketID,
		nextLogID:    st.nextLogID,
	}
	copy(out.members, st.members)
	copy(out.logs, st.logs)
	for id, t := range st.tickets {
		out.tickets[id] = t.Clone()
	}
	return out
}

func memReposFor(state func() *memState, guard sync.Locker) Repos {
	return Repos{
		Members:  &memMemberRepository{state: state, guard: guard},
		Tickets:  &memTicketRepository{state: state, guard: guard},
		Activity: &memActivityRepository{state: state, guard: guard},
	}
}

func lockWrite(guard sync.Locker) func() {
	if guard == nil {
		return func() {}
	}
	guard.Lock()
	return guard.Unlock
}

type memMemberRepository struct {
	state func() *memState
	guard sync.Locker
}

func (r *memMemberRepository) Create(ctx context.Context, member *domain.TeamMember) error {
	defer lockWrite(r.guard)()
	st := r.state()
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextMemberID++
	member.ID = st.nextMemberID
	stored := *member
	stored.Skills = append([]string(nil), member.Skills...)
	st.members = append(st.members, stored)
	return nil
}

func (r *memMemberRepository) GetByID(ctx context.Context, id int64) (*domain.TeamMember, error) {
	st := r.state()
	st.mu.RLock()
	defer st.mu.RUnlock()

	for _, m := range st.members {
		if m.ID == id {
			out := m
			out.Skills = append([]string(nil), m.Skills...)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memMemberRepository) List(ctx context.Context) ([]domain.TeamMember, error) {
	st := r.state()
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]domain.TeamMember, len(st.members))
	for i, m := range st.members {
		out[i] = m
		out[i].Skills = append([]string(nil), m.Skills...)
	}
	return out, nil
}

func (r *memMemberRepository) Count(ctx context.Context) (int, error) {
	st := r.state()
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.members), nil
}

type memTicketRepository struct {
	state func() *memState
	guard sync.Locker
}

func (r *memTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	defer lockWrite(r.guard)()
	st := r.state()
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextTicketID++
	ticket.ID = st.nextTicketID
	st.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r *memTicketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	defer lockWrite(r.guard)()
	st := r.state()
	st.mu.Lock()
	defer st.mu.Unlock()

	existing, ok := st.tickets[ticket.ID]
	if !ok {
		return ErrNotFound
	}
	updated := ticket.Clone()
	updated.CreatedAt = existing.CreatedAt
	st.tickets[ticket.ID] = updated
	return nil
}

func (r *memTicketRepository) Delete(ctx context.Context, id int64) error {
	defer lockWrite(r.guard)()
	st := r.state()
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.tickets[id]; !ok {
		return ErrNotFound
	}
	delete(st.tickets, id)
	return nil
}

func (r *memTicketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	st := r.state()
	st.mu.RLock()
	defer st.mu.RUnlock()

	t, ok := st.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := t.Clone()
	return &out, nil
}

func (r *memTicketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	st := r.state()
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]domain.Ticket, 0, len(st.tickets))
	for _, t := range st.tickets {
		if matchesFilter(t, filter) {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchesFilter(t domain.Ticket, filter TicketFilter) bool {
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
		return false
	}
	if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.Skill != "" {
		found := false
		for _, s := range t.RequiredSkills {
			if s == filter.Skill {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func (r *memTicketRepository) ActiveWorkload(ctx context.Context) (map[int64]int, error) {
	st := r.state()
	st.mu.RLock()
	defer st.mu.RUnlock()

	workload := make(map[int64]int)
	for _, t := range st.tickets {
		if t.AssignedTo == nil || t.Status == domain.TicketStatusCompleted {
			continue
		}
		workload[*t.AssignedTo]++
	}
	return workload, nil
}

type memActivityRepository struct {
	state func() *memState
	guard sync.Locker
}

func (r *memActivityRepository) Append(ctx context.Context, entry *domain.ActivityLog) error {
	defer lockWrite(r.guard)()
	st := r.state()
	st.mu.Lock()
	defer st.mu.Unlock()

	st.nextLogID++
	entry.ID = st.nextLogID
	stored := *entry
	stored.Details = domain.CloneDetails(entry.Details)
	st.logs = append(st.logs, stored)
	return nil
}

func (r *memActivityRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActivityLog, error) {
	st := r.state()
	st.mu.RLock()
	defer st.mu.RUnlock()

	var out []domain.ActivityLog
	for _, entry := range st.logs {
		if entry.TicketID == ticketID {
			entry.Details = domain.CloneDetails(entry.Details)
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}
