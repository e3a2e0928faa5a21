package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS gmail_accounts (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		email TEXT NOT NULL,
		token_enc TEXT NOT NULL,
		last_sync_at TIMESTAMPTZ,
		last_history_id TEXT,
		watch_expiration TIMESTAMPTZ,
		watch_active BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (user_id, email)
	)`,
	`CREATE TABLE IF NOT EXISTS categories (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id),
		gmail_account_id BIGINT NOT NULL REFERENCES gmail_accounts(id),
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		is_system BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (gmail_account_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS email_records (
		id BIGSERIAL PRIMARY KEY,
		gmail_account_id BIGINT NOT NULL REFERENCES gmail_accounts(id),
		category_id BIGINT REFERENCES categories(id),
		gmail_message_id TEXT NOT NULL,
		thread_id TEXT NOT NULL DEFAULT '',
		from_email TEXT NOT NULL DEFAULT '',
		subject TEXT NOT NULL DEFAULT '',
		snippet TEXT NOT NULL DEFAULT '',
		body_text TEXT NOT NULL DEFAULT '',
		body_html TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		received_at TIMESTAMPTZ,
		archived_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ,
		unsubscribed_at TIMESTAMPTZ,
		unsubscribe_status TEXT NOT NULL DEFAULT '',
		unsubscribe_method TEXT NOT NULL DEFAULT '',
		unsubscribe_url TEXT NOT NULL DEFAULT '',
		unsubscribe_error TEXT NOT NULL DEFAULT '',
		UNIQUE (gmail_account_id, gmail_message_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_records_category
		ON email_records (category_id) WHERE deleted_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS idx_email_records_account
		ON email_records (gmail_account_id)`,
}

// InitSchema creates tables and indexes at startup. Statements are
// idempotent so repeated boots are safe.
func InitSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
