package models

import "time"

// Message roles as stored in the 'messages' table.
const (
	RoleStudent = "user"
	RoleBot     = "assistant"
	RoleSystem  = "system"
)

// Message represents a chat message stored in the 'messages' table.
// Student and bot messages are written by the chat collaborator; this
// service only inserts system-role safety advice messages.
type Message struct {
	ID        string    `db:"id"`
	RoomID    string    `db:"room_id"`
	StudentID string    `db:"student_id"`
	ChatbotID string    `db:"chatbot_id"`
	Role      string    `db:"role"`
	Content   string    `db:"content"`
	Metadata  []byte    `db:"metadata"` // JSONB, nullable
	CreatedAt time.Time `db:"created_at"`
}

// ChatTurn is one prior conversation turn handed to the verifier.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SafetyMetadata is attached to system-role advice messages so the chat
// client can render them distinctly and analytics can trace their origin.
type SafetyMetadata struct {
	IsSystemSafetyResponse bool   `json:"is_system_safety_response"`
	OriginalConcernType    string `json:"original_concern_type"`
	OriginalConcernLevel   int    `json:"original_concern_level"`
}
