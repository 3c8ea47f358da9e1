package repository

import (
	"context"
	"fmt"

	"github.com/spec-kit/team-tickets/internal/domain"
)

// MemberRepository handles persistence for team members.
type MemberRepository interface {
	Create(ctx context.Context, member *domain.TeamMember) error
	GetByID(ctx context.Context, id int64) (*domain.TeamMember, error)
	// List returns members in creation order.
	List(ctx context.Context) ([]domain.TeamMember, error)
	Count(ctx context.Context) (int, error)
}

type memberRepository struct {
	db querier
}

func newMemberRepository(db querier) MemberRepository {
	return &memberRepository{db: db}
}

var memberColumns = []string{"id", "name", "skills", "initials"}

func (r *memberRepository) Create(ctx context.Context, member *domain.TeamMember) error {
	query, args, err := psql.
		Insert("team_members").
		Columns("name", "skills", "initials").
		Values(member.Name, member.Skills, member.Initials).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build member insert: %w", err)
	}
	return r.db.QueryRow(ctx, query, args...).Scan(&member.ID)
}

func (r *memberRepository) GetByID(ctx context.Context, id int64) (*domain.TeamMember, error) {
	query, args, err := psql.
		Select(memberColumns...).
		From("team_members").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build member select: %w", err)
	}

	var member domain.TeamMember
	if err := r.db.QueryRow(ctx, query, args...).Scan(
		&member.ID,
		&member.Name,
		&member.Skills,
		&member.Initials,
	); err != nil {
		return nil, notFoundOr(err)
	}
	return &member, nil
}

func (r *memberRepository) List(ctx context.Context) ([]domain.TeamMember, error) {
	query, args, err := psql.
		Select(memberColumns...).
		From("team_members").
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build member list: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TeamMember
	for rows.Next() {
		var member domain.TeamMember
		if err := rows.Scan(&member.ID, &member.Name, &member.Skills, &member.Initials); err != nil {
			return nil, err
		}
		result = append(result, member)
	}
	return result, rows.Err()
}

func (r *memberRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM team_members`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
