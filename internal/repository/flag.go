package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"safeguard/internal/models"
)

// FlagRepository persists escalation records and serves the review API.
type FlagRepository interface {
	InsertFlag(ctx context.Context, flag *models.Flag) error
	GetAllFlags(ctx context.Context) ([]*models.Flag, error)
	GetFlagsByStatus(ctx context.Context, status string) ([]*models.Flag, error)
	GetFlagByID(ctx context.Context, id string) (*models.Flag, error)
	UpdateFlagStatus(ctx context.Context, id, status string) error
}

type flagRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewFlagRepository(db *sqlx.DB, logger *zap.Logger) FlagRepository {
	return &flagRepository{db: db, logger: logger}
}

func (r *flagRepository) InsertFlag(ctx context.Context, flag *models.Flag) error {
	query := `INSERT INTO flags (id, message_id, student_id, teacher_id, room_id, concern_type, concern_level, explanation, status)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`
	err := r.db.QueryRowxContext(ctx, query,
		flag.ID, flag.MessageID, flag.StudentID, flag.TeacherID, flag.RoomID,
		flag.ConcernType, flag.ConcernLevel, flag.Explanation, flag.Status,
	).Scan(&flag.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert flag: %w", err)
	}
	return nil
}

func (r *flagRepository) GetAllFlags(ctx context.Context) ([]*models.Flag, error) {
	var flags []*models.Flag
	query := `SELECT id, message_id, student_id, teacher_id, room_id, concern_type, concern_level, explanation, status, created_at
	          FROM flags ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &flags, query); err != nil {
		return nil, err
	}
	return flags, nil
}

func (r *flagRepository) GetFlagsByStatus(ctx context.Context, status string) ([]*models.Flag, error) {
	var flags []*models.Flag
	query := `SELECT id, message_id, student_id, teacher_id, room_id, concern_type, concern_level, explanation, status, created_at
	          FROM flags WHERE status = $1 ORDER BY created_at DESC`
	if err := r.db.SelectContext(ctx, &flags, query, status); err != nil {
		return nil, err
	}
	return flags, nil
}

func (r *flagRepository) GetFlagByID(ctx context.Context, id string) (*models.Flag, error) {
	var flag models.Flag
	query := `SELECT id, message_id, student_id, teacher_id, room_id, concern_type, concern_level, explanation, status, created_at
	          FROM flags WHERE id = $1`
	err := r.db.GetContext(ctx, &flag, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Flag not found
		}
		return nil, err
	}
	return &flag, nil
}

func (r *flagRepository) UpdateFlagStatus(ctx context.Context, id, status string) error {
	query := `UPDATE flags SET status = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return fmt.Errorf("flag not found: %s", id)
	}

	r.logger.Info("Flag status updated",
		zap.String("flag_id", id),
		zap.String("status", status))
	return nil
}
