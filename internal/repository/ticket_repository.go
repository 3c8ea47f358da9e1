package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/team-tickets/internal/domain"
)

// TicketFilter narrows ticket listings. Zero values match everything.
type TicketFilter struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	AssignedTo *int64
	Skill      string
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// List returns tickets ordered by id.
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	// ActiveWorkload counts non-completed tickets per assignee.
	ActiveWorkload(ctx context.Context) (map[int64]int, error)
}

type ticketRepository struct {
	db querier
}

func newTicketRepository(db querier) TicketRepository {
	return &ticketRepository{db: db}
}

var ticketColumns = []string{
	"id", "title", "description", "required_skills", "deadline", "priority",
	"status", "assigned_to", "assigned_at", "completed_at", "created_at",
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	query, args, err := psql.
		Insert("tickets").
		Columns("title", "description", "required_skills", "deadline", "priority",
			"status", "assigned_to", "assigned_at", "completed_at", "created_at").
		Values(
			ticket.Title,
			ticket.Description,
			ticket.RequiredSkills,
			ticket.Deadline,
			ticket.Priority,
			ticket.Status,
			ticket.AssignedTo,
			ticket.AssignedAt,
			ticket.CompletedAt,
			ticket.CreatedAt,
		).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build ticket insert: %w", err)
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&ticket.ID)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	query, args, err := buildTicketUpdate(ticket)
	if err != nil {
		return err
	}
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func buildTicketUpdate(ticket *domain.Ticket) (string, []any, error) {
	query, args, err := psql.
		Update("tickets").
		SetMap(map[string]any{
			"title":           ticket.Title,
			"description":     ticket.Description,
			"required_skills": ticket.RequiredSkills,
			"deadline":        ticket.Deadline,
			"priority":        ticket.Priority,
			"status":          ticket.Status,
			"assigned_to":     ticket.AssignedTo,
			"assigned_at":     ticket.AssignedAt,
			"completed_at":    ticket.CompletedAt,
		}).
		Where(sq.Eq{"id": ticket.ID}).
		ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build ticket update: %w", err)
	}
	return query, args, nil
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("tickets").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build ticket delete: %w", err)
	}
	cmd, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query, args, err := psql.
		Select(ticketColumns...).
		From("tickets").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ticket select: %w", err)
	}
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	query, args, err := buildTicketList(filter)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func buildTicketList(filter TicketFilter) (string, []any, error) {
	builder := psql.Select(ticketColumns...).From("tickets")
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		builder = builder.Where(sq.Eq{"status": statuses})
	}
	if len(filter.Priorities) > 0 {
		priorities := make([]string, len(filter.Priorities))
		for i, p := range filter.Priorities {
			priorities[i] = string(p)
		}
		builder = builder.Where(sq.Eq{"priority": priorities})
	}
	if filter.AssignedTo != nil {
		builder = builder.Where(sq.Eq{"assigned_to": *filter.AssignedTo})
	}
	if filter.Skill != "" {
		builder = builder.Where("? = ANY(required_skills)", filter.Skill)
	}
	query, args, err := builder.OrderBy("id ASC").ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build ticket list: %w", err)
	}
	return query, args, nil
}

func (r *ticketRepository) ActiveWorkload(ctx context.Context) (map[int64]int, error) {
	query, args, err := psql.
		Select("assigned_to", "COUNT(*)").
		From("tickets").
		Where(sq.NotEq{"assigned_to": nil}).
		Where(sq.NotEq{"status": string(domain.TicketStatusCompleted)}).
		GroupBy("assigned_to").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build workload query: %w", err)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workload := make(map[int64]int)
	for rows.Next() {
		var memberID int64
		var count int
		if err := rows.Scan(&memberID, &count); err != nil {
			return nil, err
		}
		workload[memberID] = count
	}
	return workload, rows.Err()
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.RequiredSkills,
		&ticket.Deadline,
		&ticket.Priority,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.AssignedAt,
		&ticket.CompletedAt,
		&ticket.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}
