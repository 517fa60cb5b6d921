package repository

import (
	"context"
	"database/sql"

	"github.com/rodrigofdzr/TARdesk/internal/database"
	"github.com/rodrigofdzr/TARdesk/internal/models"
)

// UserRepository handles database operations for internal agent accounts.
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks up an agent by address, nil when absent. The ingestion
// pipeline uses this to distinguish agent mail from customer mail.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := r.db.ConvertPlaceholders(`
		SELECT id, name, email, role, is_active FROM users WHERE email = $1`)
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// GetByID fetches an agent account. Startup uses this to verify the
// configured system user exists.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := r.db.ConvertPlaceholders(`
		SELECT id, name, email, role, is_active FROM users WHERE id = $1`)
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

func scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.IsActive)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
