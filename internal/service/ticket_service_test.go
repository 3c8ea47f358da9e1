package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/team-tickets/internal/clock"
	"github.com/spec-kit/team-tickets/internal/domain"
	"github.com/spec-kit/team-tickets/internal/events"
	"github.com/spec-kit/team-tickets/internal/persistence"
	"github.com/spec-kit/team-tickets/internal/repository"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc    *TicketService
	store  repository.Store
	clock  *clock.FakeClock
	events []events.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithStore(t, repository.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	if _, err := persistence.SeedMembers(ctx, store, persistence.DefaultMembers(), zap.NewNop()); err != nil {
		t.Fatalf("SeedMembers: %v", err)
	}

	f := &fixture{store: store, clock: clock.Fake(epoch)}
	dispatcher := events.NewInMemoryDispatcher()
	record := func(_ context.Context, e events.Event) error {
		f.events = append(f.events, e)
		return nil
	}
	for _, et := range []events.EventType{
		events.EventTicketCreated, events.EventTicketUpdated, events.EventTicketAssigned,
		events.EventTicketCompleted, events.EventTicketReopened, events.EventTicketDeleted,
	} {
		dispatcher.Subscribe(et, record)
	}
	f.svc = NewTicketService(TicketDependencies{
		Store:      store,
		Dispatcher: dispatcher,
		Clock:      f.clock,
		Logger:     zap.NewNop(),
	})
	return f
}

func (f *fixture) create(t *testing.T, skills ...string) *domain.Ticket {
	t.Helper()
	ticket, err := f.svc.CreateTicket(context.Background(), CreateTicketInput{
		Title:          "Fix login",
		Description:    "500 on submit",
		RequiredSkills: skills,
		Deadline:       epoch.AddDate(0, 0, 7),
		Priority:       domain.TicketPriorityHigh,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	return ticket
}

func (f *fixture) memberID(t *testing.T, name string) int64 {
	t.Helper()
	list, err := f.svc.ListMembers(context.Background())
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	for _, m := range list {
		if m.Name == name {
			return m.ID
		}
	}
	t.Fatalf("member %q not seeded", name)
	return 0
}

func actions(logs []domain.ActivityLog) []domain.ActivityAction {
	out := make([]domain.ActivityAction, len(logs))
	for i, l := range logs {
		out[i] = l.Action
	}
	return out
}

func equalActions(got []domain.ActivityAction, want ...domain.ActivityAction) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestCreateTicketStartsPending(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t, domain.SkillBackend, domain.SkillDatabase)

	if ticket.ID == 0 || ticket.Status != domain.TicketStatusPending || ticket.AssignedTo != nil {
		t.Fatalf("created ticket = %+v", ticket)
	}
	logs, err := f.svc.ListActivity(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if !equalActions(actions(logs), domain.ActionCreated) {
		t.Fatalf("actions = %v, want [created]", actions(logs))
	}
	snap, ok := logs[0].Details["ticket"].(map[string]any)
	if !ok || snap["title"] != "Fix login" {
		t.Fatalf("created details = %v", logs[0].Details)
	}
	if len(f.events) != 1 || f.events[0].Type != events.EventTicketCreated {
		t.Fatalf("events = %+v, want one ticket_created", f.events)
	}
}

func TestAutoAssignPicksFirstOfTiedMembers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillBackend, domain.SkillDatabase)

	assigned, err := f.svc.AssignTicket(ctx, ticket.ID, nil)
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	jane := f.memberID(t, "Jane Smith")
	if assigned.Status != domain.TicketStatusAssigned || assigned.AssignedTo == nil || *assigned.AssignedTo != jane {
		t.Fatalf("assigned ticket = %+v, want Jane Smith (%d)", assigned, jane)
	}
	if !assigned.AssignedAt.Equal(epoch) {
		t.Fatalf("AssignedAt = %v, want %v", assigned.AssignedAt, epoch)
	}

	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if logs[0].Action != domain.ActionAssigned || logs[0].Details["memberName"] != "Jane Smith" || logs[0].Details["memberId"] != jane {
		t.Fatalf("assigned log = %+v", logs[0])
	}
}

func TestCreateTicketWithAutoAssign(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket, err := f.svc.CreateTicket(ctx, CreateTicketInput{
		Title:          "Schema change",
		RequiredSkills: []string{domain.SkillBackend, domain.SkillDatabase},
		Deadline:       epoch,
		AutoAssign:     true,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.AssignedTo == nil || *ticket.AssignedTo != f.memberID(t, "Jane Smith") {
		t.Fatalf("AssignedTo = %v, want Jane Smith", ticket.AssignedTo)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("Priority = %q, want medium default", ticket.Priority)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if !equalActions(actions(logs), domain.ActionAssigned, domain.ActionCreated) {
		t.Fatalf("actions = %v, want [assigned created]", actions(logs))
	}
}

func TestAutoAssignPrefersIdleMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.create(t, domain.SkillBackend, domain.SkillDatabase)
	if _, err := f.svc.AssignTicket(ctx, first.ID, nil); err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}

	second := f.create(t, domain.SkillBackend, domain.SkillDatabase)
	assigned, err := f.svc.AssignTicket(ctx, second.ID, nil)
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if taylor := f.memberID(t, "Taylor Green"); *assigned.AssignedTo != taylor {
		t.Fatalf("AssignedTo = %d, want Taylor Green (%d)", *assigned.AssignedTo, taylor)
	}

	if _, err := f.svc.CompleteTicket(ctx, first.ID); err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	third := f.create(t, domain.SkillBackend, domain.SkillDatabase)
	assigned, _ = f.svc.AssignTicket(ctx, third.ID, nil)
	if jane := f.memberID(t, "Jane Smith"); *assigned.AssignedTo != jane {
		t.Fatalf("completed tickets should not count as workload: AssignedTo = %d, want %d", *assigned.AssignedTo, jane)
	}
}

func TestAssignWithoutEligibleMemberLeavesTicketUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillDesign)
	f.events = nil

	got, err := f.svc.AssignTicket(ctx, ticket.ID, nil)
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if got == nil || got.Status != domain.TicketStatusPending || got.AssignedTo != nil {
		t.Fatalf("ticket = %+v, want unchanged pending", got)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if len(logs) != 1 {
		t.Fatalf("len(logs) = %d, want 1", len(logs))
	}
	if len(f.events) != 0 {
		t.Fatalf("events = %+v, want none", f.events)
	}
}

func TestAssignEmptySkillsNeverSucceeds(t *testing.T) {
	f := newFixture(t)
	ticket := f.create(t)
	got, err := f.svc.AssignTicket(context.Background(), ticket.ID, nil)
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if got.Status != domain.TicketStatusPending {
		t.Fatalf("Status = %q, want pending", got.Status)
	}
}

func TestAssignExplicitMember(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillBackend)
	john := f.memberID(t, "John Doe")

	got, err := f.svc.AssignTicket(ctx, ticket.ID, &john)
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if *got.AssignedTo != john {
		t.Fatalf("AssignedTo = %d, want %d", *got.AssignedTo, john)
	}

	unknown := int64(999)
	got, err = f.svc.AssignTicket(ctx, ticket.ID, &unknown)
	if err != nil {
		t.Fatalf("AssignTicket: %v", err)
	}
	if *got.AssignedTo != john {
		t.Fatalf("unknown member changed assignee to %d", *got.AssignedTo)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if !equalActions(actions(logs), domain.ActionAssigned, domain.ActionCreated) {
		t.Fatalf("actions = %v, want [assigned created]", actions(logs))
	}
}

func TestCreateWithExplicitAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alex := f.memberID(t, "Alex Johnson")

	ticket, err := f.svc.CreateTicket(ctx, CreateTicketInput{
		Title:          "Design review",
		RequiredSkills: []string{domain.SkillDesign},
		Deadline:       epoch,
		Priority:       domain.TicketPriorityLow,
		AssignedTo:     &alex,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if ticket.Status != domain.TicketStatusAssigned || *ticket.AssignedTo != alex {
		t.Fatalf("ticket = %+v, want assigned to Alex", ticket)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if !equalActions(actions(logs), domain.ActionAssigned, domain.ActionCreated) {
		t.Fatalf("actions = %v, want [assigned created]", actions(logs))
	}
	if len(f.events) != 2 || f.events[1].Type != events.EventTicketAssigned {
		t.Fatalf("events = %+v, want created then assigned", f.events)
	}
}

func TestCompletePendingTicketReportsUnknown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillBackend)
	f.clock.Advance(time.Hour)

	got, err := f.svc.CompleteTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	if got.Status != domain.TicketStatusCompleted || got.CompletedAt == nil || got.AssignedTo != nil {
		t.Fatalf("ticket = %+v", got)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if logs[0].Details["completedBy"] != domain.UnknownAssignee {
		t.Fatalf("completedBy = %v, want Unknown", logs[0].Details["completedBy"])
	}
	if logs[0].Details["completedAt"] != epoch.Add(time.Hour).Format(time.RFC3339Nano) {
		t.Fatalf("completedAt = %v", logs[0].Details["completedAt"])
	}
}

func TestCompleteAssignedTicketReportsAssignee(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillFrontend)
	f.svc.AssignTicket(ctx, ticket.ID, nil)

	if _, err := f.svc.CompleteTicket(ctx, ticket.ID); err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if logs[0].Details["completedBy"] != "John Doe" {
		t.Fatalf("completedBy = %v, want John Doe", logs[0].Details["completedBy"])
	}
}

func TestLifecycleRoundTripActivityOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillBackend)
	f.svc.AssignTicket(ctx, ticket.ID, nil)
	f.svc.CompleteTicket(ctx, ticket.ID)
	reopened, err := f.svc.ReopenTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("ReopenTicket: %v", err)
	}
	if reopened.Status != domain.TicketStatusAssigned || reopened.CompletedAt != nil {
		t.Fatalf("reopened = %+v, want assigned", reopened)
	}

	logs, err := f.svc.ListActivity(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("ListActivity: %v", err)
	}
	if !equalActions(actions(logs), domain.ActionReopened, domain.ActionCompleted, domain.ActionAssigned, domain.ActionCreated) {
		t.Fatalf("actions = %v, want [reopened completed assigned created]", actions(logs))
	}
	for i := 1; i < len(logs); i++ {
		if !logs[i-1].Timestamp.After(logs[i].Timestamp) {
			t.Fatalf("timestamps not strictly descending at %d: %v then %v", i, logs[i-1].Timestamp, logs[i].Timestamp)
		}
	}
	if logs[0].Details["previousStatus"] != string(domain.TicketStatusCompleted) {
		t.Fatalf("previousStatus = %v", logs[0].Details["previousStatus"])
	}
}

func TestReopenIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	pending := f.create(t, domain.SkillDesign)
	assigned := f.create(t, domain.SkillFrontend)
	f.svc.AssignTicket(ctx, assigned.ID, nil)

	for i := 0; i < 2; i++ {
		got, err := f.svc.ReopenTicket(ctx, pending.ID)
		if err != nil || got.Status != domain.TicketStatusPending {
			t.Fatalf("reopen pending = (%+v, %v), want pending", got, err)
		}
		got, err = f.svc.ReopenTicket(ctx, assigned.ID)
		if err != nil || got.Status != domain.TicketStatusAssigned {
			t.Fatalf("reopen assigned = (%+v, %v), want assigned", got, err)
		}
	}
}

func TestUpdateTicketLogsOnlyChangedFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillBackend)

	sameTitle := "Fix login"
	got, err := f.svc.UpdateTicket(ctx, ticket.ID, TicketUpdate{Title: &sameTitle})
	if err != nil || got == nil {
		t.Fatalf("UpdateTicket = (%v, %v)", got, err)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if len(logs) != 1 {
		t.Fatalf("no-op update appended a log: %v", actions(logs))
	}

	low := domain.TicketPriorityLow
	got, err = f.svc.UpdateTicket(ctx, ticket.ID, TicketUpdate{
		Title:          &sameTitle,
		Priority:       &low,
		RequiredSkills: []string{domain.SkillFrontend, domain.SkillFrontend},
	})
	if err != nil {
		t.Fatalf("UpdateTicket: %v", err)
	}
	if got.Priority != low || len(got.RequiredSkills) != 1 || got.RequiredSkills[0] != domain.SkillFrontend {
		t.Fatalf("updated ticket = %+v", got)
	}
	logs, _ = f.svc.ListActivity(ctx, ticket.ID)
	updates, ok := logs[0].Details["updates"].(map[string]any)
	if logs[0].Action != domain.ActionUpdated || !ok {
		t.Fatalf("latest log = %+v", logs[0])
	}
	if _, ok := updates["title"]; ok || updates["priority"] != "low" || len(updates) != 2 {
		t.Fatalf("updates = %v, want priority and requiredSkills only", updates)
	}
	last := f.events[len(f.events)-1]
	if payload, _ := last.Payload.(events.TicketUpdatedPayload); len(payload.Fields) != 2 || payload.Fields[0] != "priority" {
		t.Fatalf("update event = %+v", last)
	}
}

func TestDeleteKeepsActivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ticket := f.create(t, domain.SkillBackend)

	ok, err := f.svc.DeleteTicket(ctx, ticket.ID)
	if err != nil || !ok {
		t.Fatalf("DeleteTicket = (%v, %v), want true", ok, err)
	}
	if got, _ := f.svc.GetTicket(ctx, ticket.ID); got != nil {
		t.Fatalf("GetTicket after delete = %+v, want nil", got)
	}
	logs, _ := f.svc.ListActivity(ctx, ticket.ID)
	if !equalActions(actions(logs), domain.ActionDeleted, domain.ActionCreated) {
		t.Fatalf("actions = %v, want [deleted created]", actions(logs))
	}
	if logs[0].Details["ticketId"] != ticket.ID {
		t.Fatalf("deleted details = %v", logs[0].Details)
	}

	ok, err = f.svc.DeleteTicket(ctx, ticket.ID)
	if err != nil || ok {
		t.Fatalf("second DeleteTicket = (%v, %v), want false", ok, err)
	}
}

func TestOperationsOnMissingTicketReturnNil(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	const missing = 42

	if got, err := f.svc.GetTicket(ctx, missing); got != nil || err != nil {
		t.Fatalf("GetTicket = (%v, %v)", got, err)
	}
	if got, err := f.svc.AssignTicket(ctx, missing, nil); got != nil || err != nil {
		t.Fatalf("AssignTicket = (%v, %v)", got, err)
	}
	if got, err := f.svc.CompleteTicket(ctx, missing); got != nil || err != nil {
		t.Fatalf("CompleteTicket = (%v, %v)", got, err)
	}
	if got, err := f.svc.ReopenTicket(ctx, missing); got != nil || err != nil {
		t.Fatalf("ReopenTicket = (%v, %v)", got, err)
	}
	title := "x"
	if got, err := f.svc.UpdateTicket(ctx, missing, TicketUpdate{Title: &title}); got != nil || err != nil {
		t.Fatalf("UpdateTicket = (%v, %v)", got, err)
	}
	if got, err := f.svc.GetMember(ctx, missing); got != nil || err != nil {
		t.Fatalf("GetMember = (%v, %v)", got, err)
	}
	logs, err := f.svc.ListActivity(ctx, missing)
	if err != nil || len(logs) != 0 {
		t.Fatalf("ListActivity = (%v, %v), want empty", logs, err)
	}
	if len(f.events) != 0 {
		t.Fatalf("events = %+v, want none", f.events)
	}
}

var errLogWrite = errors.New("log write failed")

type failingActivityRepo struct{ repository.ActivityLogRepository }

func (failingActivityRepo) Append(context.Context, *domain.ActivityLog) error { return errLogWrite }

// failOnLogStore fails every activity append made inside a unit of work.
type failOnLogStore struct {
	*repository.MemoryStore
	fail bool
}

func (s *failOnLogStore) WithinTx(ctx context.Context, fn func(repository.Repos) error) error {
	return s.MemoryStore.WithinTx(ctx, func(repos repository.Repos) error {
		if s.fail {
			repos.Activity = failingActivityRepo{repos.Activity}
		}
		return fn(repos)
	})
}

func TestFailedLogAppendRollsBackStateChange(t *testing.T) {
	ctx := context.Background()
	store := &failOnLogStore{MemoryStore: repository.NewMemoryStore()}
	f := newFixtureWithStore(t, store)
	ticket := f.create(t, domain.SkillBackend)

	store.fail = true
	if _, err := f.svc.CompleteTicket(ctx, ticket.ID); !errors.Is(err, errLogWrite) {
		t.Fatalf("CompleteTicket error = %v, want errLogWrite", err)
	}
	if _, err := f.svc.CreateTicket(ctx, CreateTicketInput{Title: "x", RequiredSkills: []string{domain.SkillBackend}}); !errors.Is(err, errLogWrite) {
		t.Fatalf("CreateTicket error = %v, want errLogWrite", err)
	}
	store.fail = false

	got, _ := f.svc.GetTicket(ctx, ticket.ID)
	if got.Status != domain.TicketStatusPending || got.CompletedAt != nil {
		t.Fatalf("ticket after failed complete = %+v, want pending", got)
	}
	all, _ := f.svc.ListTickets(ctx, repository.TicketFilter{})
	if len(all) != 1 {
		t.Fatalf("len(tickets) = %d, want 1 after failed create", len(all))
	}
}

func TestGetTicketReadsThroughCache(t *testing.T) {
	ctx := context.Background()
	cache, _ := newTestCache(t)
	store := repository.NewMemoryStore()
	svc := NewTicketService(TicketDependencies{Store: store, Cache: cache, Clock: clock.Fake(epoch)})

	ticket, err := svc.CreateTicket(ctx, CreateTicketInput{Title: "cached", RequiredSkills: []string{domain.SkillBackend}, Deadline: epoch})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if _, err := svc.GetTicket(ctx, ticket.ID); err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, ticket.ID); !ok {
		t.Fatal("GetTicket should populate the cache")
	}

	if _, err := svc.CompleteTicket(ctx, ticket.ID); err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, ticket.ID); ok {
		t.Fatal("CompleteTicket should invalidate the cache")
	}
	got, _ := svc.GetTicket(ctx, ticket.ID)
	if got.Status != domain.TicketStatusCompleted {
		t.Fatalf("Status = %q, want completed", got.Status)
	}
}

// racingCache starts mutate on the first Set and gives it a moment to land
// before storing the value it was handed.
type racingCache struct {
	TicketCache
	once   sync.Once
	mutate func()
	done   chan struct{}
}

func (c *racingCache) Set(ctx context.Context, ticket *domain.Ticket) error {
	c.once.Do(func() {
		go func() {
			defer close(c.done)
			c.mutate()
		}()
		select {
		case <-c.done:
		case <-time.After(50 * time.Millisecond):
		}
	})
	return c.TicketCache.Set(ctx, ticket)
}

func TestGetTicketMissDoesNotCacheOverConcurrentMutation(t *testing.T) {
	ctx := context.Background()
	redisCache, _ := newTestCache(t)
	cache := &racingCache{TicketCache: redisCache, done: make(chan struct{})}
	svc := NewTicketService(TicketDependencies{Store: repository.NewMemoryStore(), Cache: cache, Clock: clock.Fake(epoch)})

	ticket, err := svc.CreateTicket(ctx, CreateTicketInput{Title: "racy", RequiredSkills: []string{domain.SkillBackend}, Deadline: epoch})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	var completeErr error
	cache.mutate = func() { _, completeErr = svc.CompleteTicket(ctx, ticket.ID) }

	first, err := svc.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	if first.Status != domain.TicketStatusPending {
		t.Fatalf("first read status = %q, want pending", first.Status)
	}
	<-cache.done
	if completeErr != nil {
		t.Fatalf("CompleteTicket: %v", completeErr)
	}

	got, err := svc.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket: %v", err)
	}
	stored, _ := svc.ListTickets(ctx, repository.TicketFilter{})
	if got.Status != domain.TicketStatusCompleted || stored[0].Status != domain.TicketStatusCompleted {
		t.Fatalf("GetTicket status = %q, stored status = %q, want completed", got.Status, stored[0].Status)
	}
}

// strictCache refuses to invalidate under a finished context.
type strictCache struct {
	TicketCache
}

func (c strictCache) Invalidate(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.TicketCache.Invalidate(ctx, id)
}

// cancelAfterCommitStore cancels the request context once the unit of work returns.
type cancelAfterCommitStore struct {
	repository.Store
	cancel context.CancelFunc
}

func (s cancelAfterCommitStore) WithinTx(ctx context.Context, fn func(repository.Repos) error) error {
	err := s.Store.WithinTx(ctx, fn)
	s.cancel()
	return err
}

func TestInvalidationSurvivesCancelledRequest(t *testing.T) {
	redisCache, _ := newTestCache(t)
	store := repository.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc := NewTicketService(TicketDependencies{
		Store: cancelAfterCommitStore{Store: store, cancel: cancel},
		Cache: strictCache{TicketCache: redisCache},
		Clock: clock.Fake(epoch),
	})

	ticket := domain.NewTicket("cancel", "", []string{domain.SkillBackend}, epoch, domain.TicketPriorityLow, epoch)
	if err := store.Repos().Tickets.Create(context.Background(), &ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.GetTicket(context.Background(), ticket.ID); err != nil {
		t.Fatalf("GetTicket: %v", err)
	}

	if _, err := svc.CompleteTicket(ctx, ticket.ID); err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	if _, ok, _ := redisCache.Get(context.Background(), ticket.ID); ok {
		t.Fatal("cached ticket survived a mutation whose request was cancelled after commit")
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.create(t, domain.SkillBackend, domain.SkillDatabase)
	b := f.create(t, domain.SkillBackend, domain.SkillDatabase)
	f.create(t, domain.SkillDesign)
	f.svc.AssignTicket(ctx, a.ID, nil)
	f.svc.AssignTicket(ctx, b.ID, nil)
	f.svc.CompleteTicket(ctx, b.ID)

	stats, err := f.svc.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.ByStatus[domain.TicketStatusPending] != 1 ||
		stats.ByStatus[domain.TicketStatusAssigned] != 1 || stats.ByStatus[domain.TicketStatusCompleted] != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(stats.Workload) != 4 || stats.Workload[1].Name != "Jane Smith" || stats.Workload[1].ActiveTickets != 1 {
		t.Fatalf("workload = %+v", stats.Workload)
	}
}

func TestActivityLoggerStampsStrictlyIncrease(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	logger := NewActivityLogger(clock.Fake(epoch))

	var prev time.Time
	for i := 0; i < 3; i++ {
		entry, err := logger.Append(ctx, store.Repos().Activity, 1, domain.ActionUpdated, nil)
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if !entry.Timestamp.After(prev) {
			t.Fatalf("timestamp %v not after %v", entry.Timestamp, prev)
		}
		prev = entry.Timestamp
	}
}
