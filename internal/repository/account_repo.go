package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `
	id, user_id, email, token_enc, last_sync_at,
	last_history_id, watch_expiration, watch_active`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Email,
		&a.TokenEnc,
		&a.LastSyncAt,
		&a.LastHistoryID,
		&a.WatchExpiration,
		&a.WatchActive,
	)
	if err != nil {
		return nil, classify(err)
	}
	return &a, nil
}

// Upsert inserts the account or, if the user already connected this
// mailbox, replaces its stored token blob.
func (r *AccountRepository) Upsert(ctx context.Context, userID int64, email, tokenEnc string) (*model.Account, error) {
	query := `
        INSERT INTO gmail_accounts (user_id, email, token_enc)
        VALUES ($1, $2, $3)
        ON CONFLICT (user_id, email) DO UPDATE SET token_enc = EXCLUDED.token_enc
        RETURNING ` + accountColumns
	return scanAccount(r.db.QueryRow(ctx, query, userID, email, tokenEnc))
}

func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM gmail_accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM gmail_accounts WHERE email = $1`
	return scanAccount(r.db.QueryRow(ctx, query, email))
}

func (r *AccountRepository) ListByUser(ctx context.Context, userID int64) ([]model.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM gmail_accounts WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	accounts := []model.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *a)
	}
	return accounts, classify(rows.Err())
}

// UpdateToken re-persists a refreshed credential blob.
func (r *AccountRepository) UpdateToken(ctx context.Context, id int64, tokenEnc string) error {
	query := `UPDATE gmail_accounts SET token_enc = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, tokenEnc, id)
	return classify(err)
}

// UpdateCursor advances the sync cursor for an account.
func (r *AccountRepository) UpdateCursor(ctx context.Context, id int64, historyID string) error {
	query := `UPDATE gmail_accounts SET last_history_id = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, historyID, id)
	return classify(err)
}

// UpdateWatch records the outcome of a watch registration: cursor seed,
// expiration and the active flag.
func (r *AccountRepository) UpdateWatch(ctx context.Context, id int64, historyID string, expiration *time.Time) error {
	query := `
        UPDATE gmail_accounts
        SET last_history_id = COALESCE(NULLIF($1, ''), last_history_id),
            watch_expiration = $2,
            watch_active = TRUE
        WHERE id = $3
    `
	_, err := r.db.Exec(ctx, query, historyID, expiration, id)
	return classify(err)
}

func (r *AccountRepository) UpdateLastSync(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE gmail_accounts SET last_sync_at = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, at, id)
	return classify(err)
}

// DeleteCascade disconnects an account: the account row, its categories
// and all of its email records are removed in one transaction.
func (r *AccountRepository) DeleteCascade(ctx context.Context, id int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM email_records WHERE gmail_account_id = $1`, id); err != nil {
		return classify(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM categories WHERE gmail_account_id = $1`, id); err != nil {
		return classify(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM gmail_accounts WHERE id = $1`, id); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}
