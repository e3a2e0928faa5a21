package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
)

// DefaultCategoryName is the built-in bucket for emails the AI could not
// place into a user-defined category.
const DefaultCategoryName = "Uncategorized"

type CategoryRepository struct {
	db *pgxpool.Pool
}

func NewCategoryRepository(db *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{db: db}
}

const categoryColumns = `id, user_id, gmail_account_id, name, description, is_system, created_at`

func scanCategory(row pgx.Row) (*model.Category, error) {
	var c model.Category
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.AccountID,
		&c.Name,
		&c.Description,
		&c.IsSystem,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (r *CategoryRepository) Create(ctx context.Context, c *model.Category) (*model.Category, error) {
	query := `
        INSERT INTO categories (user_id, gmail_account_id, name, description, is_system)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING ` + categoryColumns
	return scanCategory(r.db.QueryRow(ctx, query, c.UserID, c.AccountID, c.Name, c.Description, c.IsSystem))
}

func (r *CategoryRepository) FindByID(ctx context.Context, id int64) (*model.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	return scanCategory(r.db.QueryRow(ctx, query, id))
}

func (r *CategoryRepository) ListByAccount(ctx context.Context, accountID int64) ([]model.Category, error) {
	query := `
        SELECT ` + categoryColumns + `
        FROM categories
        WHERE gmail_account_id = $1
        ORDER BY is_system ASC, created_at DESC
    `
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, *c)
	}
	return categories, classify(rows.Err())
}

func (r *CategoryRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	return classify(err)
}

// EnsureDefaultCategory returns the account's system "Uncategorized"
// bucket, creating it on first use. This is the capability the sync
// engine depends on for emails without a matching category.
func (r *CategoryRepository) EnsureDefaultCategory(ctx context.Context, userID, accountID int64) (*model.Category, error) {
	query := `
        SELECT ` + categoryColumns + `
        FROM categories
        WHERE gmail_account_id = $1 AND name = $2 AND is_system
    `
	c, err := scanCategory(r.db.QueryRow(ctx, query, accountID, DefaultCategoryName))
	if err == nil {
		return c, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	insert := `
        INSERT INTO categories (user_id, gmail_account_id, name, description, is_system)
        VALUES ($1, $2, $3, 'Emails not categorized yet', TRUE)
        ON CONFLICT (gmail_account_id, name) DO UPDATE SET is_system = TRUE
        RETURNING ` + categoryColumns
	return scanCategory(r.db.QueryRow(ctx, insert, userID, accountID, DefaultCategoryName))
}
