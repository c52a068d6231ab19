package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a chat message.
type Role string

const (
	RoleUser      Role = "USER"
	RoleAssistant Role = "ASSISTANT"
)

// DefaultSessionTitle is the placeholder title of a session that has not been named yet.
const DefaultSessionTitle = "New Chat"

// Message is a single immutable entry in a session's conversation.
type Message struct {
	ID        string    `json:"id"` // ULID, sortable by creation
	SessionID uuid.UUID `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session groups the messages of one conversation owned by a single user.
type Session struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Title     string    `json:"title"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// ContextMessage is the role/content pair sent upstream.
type ContextMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequestEnvelope is the outbound payload assembled for one chat call.
// It is built fresh per request and never persisted.
type ChatRequestEnvelope struct {
	Message         string
	ContextMessages []ContextMessage
	RetrievedDocs   []string
	ProjectData     string
}

// Tier records which cascade level produced a reply.
type Tier string

const (
	TierPrimary   Tier = "PRIMARY"
	TierSecondary Tier = "SECONDARY"
	TierDefault   Tier = "DEFAULT"
)

// ChatReply is the normalized result of the AI call cascade.
type ChatReply struct {
	SessionID   uuid.UUID `json:"session_id"`
	Reply       string    `json:"reply"`
	Confidence  float64   `json:"confidence"`
	Suggestions []string  `json:"suggestions"`
	Tier        Tier      `json:"-"`
}

// SendMessageRequest is the payload of POST /chat/message.
type SendMessageRequest struct {
	SessionID *uuid.UUID `json:"session_id"`
	Message   string     `json:"message"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}

type UpdateSessionTitleRequest struct {
	Title string `json:"title"`
}

// WSMessage is the envelope pushed to websocket clients.
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ChatReplyEvent struct {
	SessionID  uuid.UUID `json:"session_id"`
	MessageID  string    `json:"message_id"`
	Reply      string    `json:"reply"`
	Confidence float64   `json:"confidence"`
}

type SessionTitledEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
