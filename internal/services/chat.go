package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pms-assistant/internal/metrics"
	"pms-assistant/internal/models"
	"pms-assistant/internal/repository"
)

const (
	MaxMessageLength = 2000
	maxTitleLength   = 30
	maxTitleInput    = 100

	EventChatReply     = "chat.reply"
	EventSessionTitled = "chat.session_titled"
)

// SessionStore persists chat sessions. Lookups of unknown ids return
// repository.ErrNotFound.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListActiveSessions(ctx context.Context, ownerID uuid.UUID) ([]*models.Session, error)
	UpdateSessionTitle(ctx context.Context, id uuid.UUID, title string) error
	DeactivateSession(ctx context.Context, id uuid.UUID) error
}

// MessageStore persists messages append-only. ListMessages returns a
// session's messages ordered by creation time, ties in insertion order.
type MessageStore interface {
	AppendMessage(ctx context.Context, m *models.Message) error
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]*models.Message, error)
}

// historyEvicter is implemented by message stores that cache history.
type historyEvicter interface {
	EvictHistory(ctx context.Context, sessionID uuid.UUID) error
}

// AIResponder produces a reply for an envelope. It must always return one.
type AIResponder interface {
	Chat(ctx context.Context, userID string, env models.ChatRequestEnvelope) models.ChatReply
}

type ChatServiceOptions struct {
	RecentLimit int
	ProjectData ProjectDataProvider
	Publisher   UpdatePublisher
}

// ChatService runs the chat use case and the session management around it.
type ChatService struct {
	sessions    SessionStore
	messages    MessageStore
	augmenter   *RequestAugmenter
	ai          AIResponder
	projectData ProjectDataProvider
	publisher   UpdatePublisher
	recentLimit int
}

func NewChatService(sessions SessionStore, messages MessageStore, augmenter *RequestAugmenter, ai AIResponder, opts ChatServiceOptions) *ChatService {
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = DefaultRecentLimit
	}
	return &ChatService{
		sessions:    sessions,
		messages:    messages,
		augmenter:   augmenter,
		ai:          ai,
		projectData: opts.ProjectData,
		publisher:   opts.Publisher,
		recentLimit: opts.RecentLimit,
	}
}

// SendMessage stores the user's message, asks the AI cascade for a reply,
// stores that too and returns it.
//
// Only a missing caller, an unresolvable session or a failure to store the
// user's message fail the request. Everything after that degrades instead.
func (s *ChatService) SendMessage(ctx context.Context, userID uuid.UUID, req models.SendMessageRequest) (*models.ChatReply, error) {
	logger := zerolog.Ctx(ctx)

	if userID == uuid.Nil {
		return nil, &UnauthorizedError{Message: "Authentication required"}
	}

	message := strings.TrimSpace(req.Message)
	if fields := validateMessage(message); fields != nil {
		return nil, &ValidationError{Fields: fields}
	}

	session, err := s.resolveSession(ctx, userID, req.SessionID)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("session_id", session.ID.String()).Str("user_id", userID.String()).Msg("processing chat message")

	userMsg := &models.Message{SessionID: session.ID, Role: models.RoleUser, Content: message}
	if err := s.messages.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	metrics.ChatMessagesTotal.WithLabelValues(string(models.RoleUser)).Inc()

	history, err := s.messages.ListMessages(ctx, session.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load history, continuing with the current message only")
		history = []*models.Message{userMsg}
	}
	window := AssembleContext(history, s.recentLimit)

	env := s.augmenter.Augment(ctx, message, window, s.fetchProjectData(ctx, message))

	if len(history) <= 2 {
		s.autoTitle(ctx, userID, session, message)
	}

	reply := s.ai.Chat(ctx, userID.String(), env)

	// The caller has gone away; the user message is already stored.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assistantMsg := &models.Message{SessionID: session.ID, Role: models.RoleAssistant, Content: reply.Reply}
	if err := s.messages.AppendMessage(ctx, assistantMsg); err != nil {
		logger.Error().Err(err).Msg("failed to save assistant message")
	} else {
		metrics.ChatMessagesTotal.WithLabelValues(string(models.RoleAssistant)).Inc()
		s.publish(ctx, userID, EventChatReply, models.ChatReplyEvent{
			SessionID:  session.ID,
			MessageID:  assistantMsg.ID,
			Reply:      reply.Reply,
			Confidence: reply.Confidence,
		})
	}

	reply.SessionID = session.ID
	logger.Info().
		Str("session_id", session.ID.String()).
		Str("tier", string(reply.Tier)).
		Msg("chat message processed")
	return &reply, nil
}

func validateMessage(message string) map[string]string {
	switch n := utf8.RuneCountInString(message); {
	case n == 0:
		return map[string]string{"message": "Message is required"}
	case n > MaxMessageLength:
		return map[string]string{"message": fmt.Sprintf("Message must be at most %d characters", MaxMessageLength)}
	}
	return nil
}

func (s *ChatService) resolveSession(ctx context.Context, userID uuid.UUID, sessionID *uuid.UUID) (*models.Session, error) {
	if sessionID != nil {
		return s.ownedSession(ctx, userID, *sessionID)
	}

	session := &models.Session{OwnerID: userID, Title: models.DefaultSessionTitle, Active: true}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ownedSession resolves an active session of userID. Sessions of other
// users look the same as missing ones.
func (s *ChatService) ownedSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.Session, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session.OwnerID != userID || !session.Active {
		return nil, errSessionNotFound
	}
	return session, nil
}

func (s *ChatService) fetchProjectData(ctx context.Context, message string) string {
	if s.projectData == nil {
		return ""
	}
	data, err := s.projectData.ProjectContext(ctx, message)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to load project data")
		return ""
	}
	return data
}

func (s *ChatService) autoTitle(ctx context.Context, userID uuid.UUID, session *models.Session, message string) {
	if session.Title != "" && session.Title != models.DefaultSessionTitle {
		return
	}

	title := DeriveTitle(message)
	if err := s.sessions.UpdateSessionTitle(ctx, session.ID, title); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("failed to set session title")
		return
	}
	session.Title = title
	s.publish(ctx, userID, EventSessionTitled, models.SessionTitledEvent{SessionID: session.ID, Title: title})
}

// DeriveTitle returns the first 30 characters of message, with an ellipsis
// when it was cut.
func DeriveTitle(message string) string {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) <= maxTitleLength {
		return message
	}
	return string([]rune(message)[:maxTitleLength]) + "..."
}

func (s *ChatService) publish(ctx context.Context, userID uuid.UUID, eventType string, payload any) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishUpdate(ctx, userID, models.WSMessage{Type: eventType, Payload: payload})
}

// GetHistory returns the ordered messages of one of userID's sessions.
func (s *ChatService) GetHistory(ctx context.Context, userID, sessionID uuid.UUID) ([]*models.Message, error) {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return msgs, nil
}

// DeleteSession soft-deletes a session and drops its cached history.
func (s *ChatService) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	if _, err := s.ownedSession(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.sessions.DeactivateSession(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if ev, ok := s.messages.(historyEvicter); ok {
		if err := ev.EvictHistory(ctx, sessionID); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("session_id", sessionID.String()).Msg("failed to evict cached history")
		}
	}
	return nil
}

// ListSessions returns userID's active sessions, newest first.
func (s *ChatService) ListSessions(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	sessions, err := s.sessions.ListActiveSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *ChatService) CreateSession(ctx context.Context, userID uuid.UUID, req models.CreateSessionRequest) (*models.Session, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = models.DefaultSessionTitle
	}
	if utf8.RuneCountInString(title) > maxTitleInput {
		return nil, &ValidationError{Fields: map[string]string{"title": fmt.Sprintf("Title must be at most %d characters", maxTitleInput)}}
	}

	session := &models.Session{OwnerID: userID, Title: title, Active: true}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *ChatService) RenameSession(ctx context.Context, userID, sessionID uuid.UUID, req models.UpdateSessionTitleRequest) (*models.Session, error) {
	title := strings.TrimSpace(req.Title)
	switch n := utf8.RuneCountInString(title); {
	case n == 0:
		return nil, &ValidationError{Fields: map[string]string{"title": "Title is required"}}
	case n > maxTitleInput:
		return nil, &ValidationError{Fields: map[string]string{"title": fmt.Sprintf("Title must be at most %d characters", maxTitleInput)}}
	}

	session, err := s.ownedSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateSessionTitle(ctx, sessionID, title); err != nil {
		return nil, fmt.Errorf("failed to rename session: %w", err)
	}
	session.Title = title
	return session, nil
}
