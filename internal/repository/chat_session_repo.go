package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pms-assistant/internal/models"
)

type ChatSessionRepo struct {
	pool *pgxpool.Pool
}

func NewChatSessionRepo(pool *pgxpool.Pool) *ChatSessionRepo {
	return &ChatSessionRepo{pool: pool}
}

func (r *ChatSessionRepo) CreateSession(ctx context.Context, s *models.Session) error {
	s.ID = uuid.New()
	query := `INSERT INTO chat_sessions (id, user_id, title, active)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, s.ID, s.OwnerID, s.Title, s.Active).Scan(&s.CreatedAt)
}

func (r *ChatSessionRepo) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	s := &models.Session{}
	query := `SELECT id, user_id, title, active, created_at FROM chat_sessions WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(&s.ID, &s.OwnerID, &s.Title, &s.Active, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *ChatSessionRepo) ListActiveSessions(ctx context.Context, ownerID uuid.UUID) ([]*models.Session, error) {
	query := `SELECT id, user_id, title, active, created_at FROM chat_sessions
		WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s := &models.Session{}
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Title, &s.Active, &s.CreatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *ChatSessionRepo) UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE chat_sessions SET title = $1, updated_at = NOW() WHERE id = $2", title, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChatSessionRepo) DeactivateSession(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE chat_sessions SET active = FALSE, updated_at = NOW() WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
