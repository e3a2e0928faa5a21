package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// GetOrCreate returns the user with the given email, inserting it first if
// it does not exist yet.
func (r *UserRepository) GetOrCreate(ctx context.Context, email string) (*model.User, error) {
	query := `
        INSERT INTO users (email)
        VALUES ($1)
        ON CONFLICT (email) DO UPDATE SET email = EXCLUDED.email
        RETURNING id, email, created_at
    `
	var u model.User
	err := r.db.QueryRow(ctx, query, email).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, email, created_at FROM users WHERE id = $1`
	var u model.User
	err := r.db.QueryRow(ctx, query, id).Scan(&u.ID, &u.Email, &u.CreatedAt)
	if err != nil {
		return nil, classify(err)
	}
	return &u, nil
}
