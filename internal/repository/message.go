package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"safeguard/internal/models"
)

// MessageRepository reads conversation context and writes system-role
// safety advice messages. Student/bot rows are owned by the chat service.
type MessageRepository interface {
	FetchPriorMessages(ctx context.Context, roomID, studentID, chatbotID string, before time.Time, limit int) ([]models.ChatTurn, error)
	InsertSystemMessage(ctx context.Context, roomID, studentID, chatbotID, content string, meta models.SafetyMetadata) (string, error)
}

type messageRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMessageRepository(db *sqlx.DB, logger *zap.Logger) MessageRepository {
	return &messageRepository{db: db, logger: logger}
}

// FetchPriorMessages returns up to limit messages of the same (room,
// student, bot) conversation strictly older than before, in chronological
// order. Rows come back newest-first and are reversed in place.
func (r *messageRepository) FetchPriorMessages(ctx context.Context, roomID, studentID, chatbotID string, before time.Time, limit int) ([]models.ChatTurn, error) {
	query := `SELECT role, content FROM messages
	          WHERE room_id = $1 AND student_id = $2 AND chatbot_id = $3 AND created_at < $4
	          ORDER BY created_at DESC LIMIT $5`

	var rows []models.ChatTurn
	if err := r.db.SelectContext(ctx, &rows, query, roomID, studentID, chatbotID, before, limit); err != nil {
		return nil, fmt.Errorf("failed to fetch prior messages: %w", err)
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// InsertSystemMessage persists a system-role advice message and returns its
// ID. The message is written into the same (room, student, bot) conversation
// so later context windows include it.
func (r *messageRepository) InsertSystemMessage(ctx context.Context, roomID, studentID, chatbotID, content string, meta models.SafetyMetadata) (string, error) {
	metadata, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message metadata: %w", err)
	}

	msg := &models.Message{
		ID:        uuid.NewString(),
		RoomID:    roomID,
		StudentID: studentID,
		ChatbotID: chatbotID,
		Role:      models.RoleSystem,
		Content:   content,
		Metadata:  metadata,
	}

	query := `INSERT INTO messages (id, room_id, student_id, chatbot_id, role, content, metadata, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`
	if _, err := r.db.ExecContext(ctx, query, msg.ID, msg.RoomID, msg.StudentID, msg.ChatbotID, msg.Role, msg.Content, msg.Metadata); err != nil {
		return "", fmt.Errorf("failed to insert system message: %w", err)
	}

	r.logger.Debug("System safety message inserted",
		zap.String("message_id", msg.ID),
		zap.String("room_id", roomID))
	return msg.ID, nil
}
