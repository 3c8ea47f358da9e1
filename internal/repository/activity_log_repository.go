package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/spec-kit/team-tickets/internal/domain"
)

// ActivityLogRepository stores audit entries. Entries are never updated or removed.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *domain.ActivityLog) error
	// ListByTicket returns entries newest first.
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActivityLog, error)
}

type activityLogRepository struct {
	db querier
}

func newActivityLogRepository(db querier) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Append(ctx context.Context, entry *domain.ActivityLog) error {
	query, args, err := psql.
		Insert("activity_logs").
		Columns("ticket_id", "action", "details", "logged_at").
		Values(entry.TicketID, entry.Action, entry.Details, entry.Timestamp).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build activity insert: %w", err)
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&entry.ID)
}

func (r *activityLogRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActivityLog, error) {
	query, args, err := buildActivityList(ticketID)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActivityLog
	for rows.Next() {
		var (
			entry   domain.ActivityLog
			details []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.Action,
			&details,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		if entry.Details, err = decodeDetails(details); err != nil {
			return nil, fmt.Errorf("decode activity %d details: %w", entry.ID, err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// decodeDetails parses a JSONB payload. Integral numbers come back as int64,
// the type ids are written with.
func decodeDetails(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var details map[string]any
	if err := dec.Decode(&details); err != nil {
		return nil, err
	}
	for k, v := range details {
		details[k] = normalizeNumber(v)
	}
	return details, nil
}

func normalizeNumber(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumber(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumber(item)
		}
		return val
	default:
		return v
	}
}

func buildActivityList(ticketID int64) (string, []any, error) {
	query, args, err := psql.
		Select("id", "ticket_id", "action", "details", "logged_at").
		From("activity_logs").
		Where(sq.Eq{"ticket_id": ticketID}).
		OrderBy("logged_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build activity list: %w", err)
	}
	return query, args, nil
}
