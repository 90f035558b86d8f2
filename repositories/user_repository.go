package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-engine/models"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.User, error)
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) GetByID(ctx context.Context, exec SQLExecutor, id string) (*models.User, error) {
	query := `SELECT id, nickname, role, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := pickExecutor(r.db, exec).QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Nickname, &user.Role, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", id, err)
	}
	return user, nil
}
