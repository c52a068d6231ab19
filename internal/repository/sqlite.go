package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"pms-assistant/internal/models"
)

// SQLiteStore is the single-node Conversation Store. Timestamps are stored
// as unix nanoseconds; an autoincrement seq column breaks ties.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *SQLiteStore) CreateSession(ctx context.Context, s *models.Session) error {
	s.ID = uuid.New()
	s.CreatedAt = r.now()
	ts := s.CreatedAt.UnixNano()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, user_id, title, active, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID.String(), s.OwnerID.String(), s.Title, s.Active, ts, ts)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SQLiteStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, active, created_at FROM chat_sessions WHERE id = ?`, id.String())

	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

func (r *SQLiteStore) ListActiveSessions(ctx context.Context, ownerID uuid.UUID) ([]*models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, title, active, created_at FROM chat_sessions
		WHERE user_id = ? AND active = 1 ORDER BY created_at DESC`, ownerID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *SQLiteStore) UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) error {
	return r.execOne(ctx, `UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, r.now().UnixNano(), id.String())
}

func (r *SQLiteStore) DeactivateSession(ctx context.Context, id uuid.UUID) error {
	return r.execOne(ctx, `UPDATE chat_sessions SET active = 0, updated_at = ? WHERE id = ?`,
		r.now().UnixNano(), id.String())
}

func (r *SQLiteStore) AppendMessage(ctx context.Context, m *models.Message) error {
	m.ID = newMessageID()
	m.CreatedAt = r.now()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.SessionID.String(), string(m.Role), m.Content, m.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *SQLiteStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, created_at FROM chat_messages
		WHERE session_id = ? ORDER BY created_at ASC, seq ASC`, sessionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		var (
			m         models.Message
			sessionID string
			role      string
			createdAt int64
		)
		if err := rows.Scan(&m.ID, &sessionID, &role, &m.Content, &createdAt); err != nil {
			return nil, err
		}
		if m.SessionID, err = uuid.Parse(sessionID); err != nil {
			return nil, fmt.Errorf("invalid session id %q: %w", sessionID, err)
		}
		m.Role = models.Role(role)
		m.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

func (r *SQLiteStore) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		s         models.Session
		id, owner string
		createdAt int64
	)
	if err := row.Scan(&id, &owner, &s.Title, &s.Active, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid session id %q: %w", id, err)
	}
	if s.OwnerID, err = uuid.Parse(owner); err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", owner, err)
	}
	s.CreatedAt = time.Unix(0, createdAt).UTC()
	return &s, nil
}
