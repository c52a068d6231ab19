package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"pms-assistant/internal/models"
)

type ChatMessageRepo struct {
	pool *pgxpool.Pool
}

func NewChatMessageRepo(pool *pgxpool.Pool) *ChatMessageRepo {
	return &ChatMessageRepo{pool: pool}
}

func (r *ChatMessageRepo) AppendMessage(ctx context.Context, m *models.Message) error {
	m.ID = newMessageID()
	query := `INSERT INTO chat_messages (id, session_id, role, content)
		VALUES ($1, $2, $3, $4) RETURNING created_at`

	return r.pool.QueryRow(ctx, query, m.ID, m.SessionID, m.Role, m.Content).Scan(&m.CreatedAt)
}

func (r *ChatMessageRepo) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	query := `SELECT id, session_id, role, content, created_at FROM chat_messages
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
