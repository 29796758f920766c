package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"safeguard/internal/models"
)

// ProfileRepository reads user profiles maintained by the platform's
// account service.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
}

type profileRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewProfileRepository(db *sqlx.DB, logger *zap.Logger) ProfileRepository {
	return &profileRepository{db: db, logger: logger}
}

func (r *profileRepository) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile models.Profile
	query := `SELECT id, COALESCE(email, '') AS email, COALESCE(full_name, '') AS full_name FROM users WHERE id = $1`
	err := r.db.GetContext(ctx, &profile, query, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Profile not found
		}
		return nil, err
	}
	return &profile, nil
}
