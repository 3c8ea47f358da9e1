package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spec-kit/team-tickets/internal/clock"
	"github.com/spec-kit/team-tickets/internal/domain"
	"github.com/spec-kit/team-tickets/internal/repository"
)

// ActivityLogger appends audit entries. Timestamps it hands out are strictly
// increasing at microsecond resolution, matching what postgres stores.
type ActivityLogger struct {
	clock clock.Clock

	mu   sync.Mutex
	last time.Time
}

// NewActivityLogger creates a logger stamping entries with c.
func NewActivityLogger(c clock.Clock) *ActivityLogger {
	if c == nil {
		c = clock.Real()
	}
	return &ActivityLogger{clock: c}
}

// Append writes a new entry through repo. The ticket is not required to exist.
func (l *ActivityLogger) Append(ctx context.Context, repo repository.ActivityLogRepository, ticketID int64, action domain.ActivityAction, details map[string]any) (*domain.ActivityLog, error) {
	if details == nil {
		details = map[string]any{}
	}
	entry := &domain.ActivityLog{
		TicketID:  ticketID,
		Action:    action,
		Details:   details,
		Timestamp: l.stamp(),
	}
	if err := repo.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("append %s activity: %w", action, err)
	}
	return entry, nil
}

// ListForTicket returns entries newest first.
func (l *ActivityLogger) ListForTicket(ctx context.Context, repo repository.ActivityLogRepository, ticketID int64) ([]domain.ActivityLog, error) {
	entries, err := repo.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	if entries == nil {
		entries = []domain.ActivityLog{}
	}
	return entries, nil
}

func (l *ActivityLogger) stamp() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now().UTC().Truncate(time.Microsecond)
	if !now.After(l.last) {
		now = l.last.Add(time.Microsecond)
	}
	l.last = now
	return now
}
