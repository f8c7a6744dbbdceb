package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"mingle-chat/internal/models"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository resolves user identities. Identity records are owned by the
// auth service; the users table here is a read model.
type UserRepository interface {
	Resolve(ctx context.Context, userID int) (models.Identity, error)
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// Resolve fetches an identity by id.
func (r *UserRepo) Resolve(ctx context.Context, userID int) (models.Identity, error) {
	var identity models.Identity
	err := r.db.GetContext(ctx, &identity, `SELECT id, username FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Identity{}, ErrUserNotFound
	}
	return identity, err
}
