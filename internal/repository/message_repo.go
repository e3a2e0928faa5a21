package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JuliaRakitina/ai-email-sorter/internal/model"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

const messageColumns = `
	id, gmail_account_id, category_id, gmail_message_id, thread_id,
	from_email, subject, snippet, body_text, body_html, summary,
	received_at, archived_at, deleted_at, unsubscribed_at,
	unsubscribe_status, unsubscribe_method, unsubscribe_url, unsubscribe_error`

func scanMessage(row pgx.Row) (*model.EmailRecord, error) {
	var m model.EmailRecord
	err := row.Scan(
		&m.ID,
		&m.AccountID,
		&m.CategoryID,
		&m.GmailMessageID,
		&m.ThreadID,
		&m.FromEmail,
		&m.Subject,
		&m.Snippet,
		&m.BodyText,
		&m.BodyHTML,
		&m.Summary,
		&m.ReceivedAt,
		&m.ArchivedAt,
		&m.DeletedAt,
		&m.UnsubscribedAt,
		&m.UnsubscribeStatus,
		&m.UnsubscribeMethod,
		&m.UnsubscribeURL,
		&m.UnsubscribeError,
	)
	if err != nil {
		return nil, classify(err)
	}
	return &m, nil
}

// Exists reports whether the Gmail message was already ingested for this
// account. Used as the cheap pre-fetch dedup check.
func (r *MessageRepository) Exists(ctx context.Context, accountID int64, gmailMessageID string) (bool, error) {
	query := `
        SELECT EXISTS (
            SELECT 1 FROM email_records
            WHERE gmail_account_id = $1 AND gmail_message_id = $2
        )
    `
	var exists bool
	if err := r.db.QueryRow(ctx, query, accountID, gmailMessageID).Scan(&exists); err != nil {
		return false, classify(err)
	}
	return exists, nil
}

// InsertBatch persists a staged batch in one transaction. Records that
// collide on (account, gmail message id) are skipped, not failed, so a
// concurrent writer never breaks the batch.
func (r *MessageRepository) InsertBatch(ctx context.Context, records []*model.EmailRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	query := `
        INSERT INTO email_records (
            gmail_account_id, category_id, gmail_message_id, thread_id,
            from_email, subject, snippet, body_text, body_html, summary,
            received_at, archived_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
        ON CONFLICT (gmail_account_id, gmail_message_id) DO NOTHING
    `
	for _, m := range records {
		_, err := tx.Exec(ctx, query,
			m.AccountID, m.CategoryID, m.GmailMessageID, m.ThreadID,
			m.FromEmail, m.Subject, m.Snippet, m.BodyText, m.BodyHTML, m.Summary,
			m.ReceivedAt, m.ArchivedAt,
		)
		if err != nil {
			return classify(err)
		}
	}
	return classify(tx.Commit(ctx))
}

func (r *MessageRepository) FindByID(ctx context.Context, id int64) (*model.EmailRecord, error) {
	query := `SELECT ` + messageColumns + ` FROM email_records WHERE id = $1`
	return scanMessage(r.db.QueryRow(ctx, query, id))
}

func (r *MessageRepository) ListByCategory(ctx context.Context, categoryID int64) ([]model.EmailRecord, error) {
	query := `
        SELECT ` + messageColumns + `
        FROM email_records
        WHERE category_id = $1 AND deleted_at IS NULL
        ORDER BY received_at DESC NULLS LAST, id DESC
        LIMIT 200
    `
	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	records := []model.EmailRecord{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *m)
	}
	return records, classify(rows.Err())
}

func (r *MessageRepository) CountByCategory(ctx context.Context, categoryID int64) (int64, error) {
	query := `
        SELECT COUNT(*) FROM email_records
        WHERE category_id = $1 AND deleted_at IS NULL
    `
	var n int64
	if err := r.db.QueryRow(ctx, query, categoryID).Scan(&n); err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// ReassignCategory moves all records from one category to another,
// used before a category is deleted.
func (r *MessageRepository) ReassignCategory(ctx context.Context, fromCategoryID, toCategoryID int64) error {
	query := `UPDATE email_records SET category_id = $1 WHERE category_id = $2`
	_, err := r.db.Exec(ctx, query, toCategoryID, fromCategoryID)
	return classify(err)
}

// UpdateUnsubscribeTarget records the discovered target before any
// attempt is made, so a crash mid-attempt still leaves the URL visible.
func (r *MessageRepository) UpdateUnsubscribeTarget(ctx context.Context, id int64, url string) error {
	query := `UPDATE email_records SET unsubscribe_url = $1 WHERE id = $2`
	_, err := r.db.Exec(ctx, query, url, id)
	return classify(err)
}

// UpdateUnsubscribeOutcome persists the final verdict of an attempt.
// unsubscribed_at is set only on success and never cleared.
func (r *MessageRepository) UpdateUnsubscribeOutcome(ctx context.Context, id int64, status, method, errMsg string) error {
	query := `
        UPDATE email_records
        SET unsubscribe_status = $1,
            unsubscribe_method = $2,
            unsubscribe_error = $3,
            unsubscribed_at = CASE WHEN $1 = 'success' THEN NOW() ELSE unsubscribed_at END
        WHERE id = $4
    `
	_, err := r.db.Exec(ctx, query, status, method, errMsg, id)
	return classify(err)
}

// SoftDelete hides the record from category views without losing the
// dedup row, so the message is not re-ingested on the next sync.
func (r *MessageRepository) SoftDelete(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE email_records SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`
	_, err := r.db.Exec(ctx, query, at, id)
	return classify(err)
}

// UnsubscribeStatusRow is the polling view for bulk unsubscribe progress.
type UnsubscribeStatusRow struct {
	MessageID int64
	Status    string
	Method    string
	URL       string
	Error     string
}

func (r *MessageRepository) ListUnsubscribeStatuses(ctx context.Context, categoryID int64) ([]UnsubscribeStatusRow, error) {
	query := `
        SELECT id, unsubscribe_status, unsubscribe_method, unsubscribe_url, unsubscribe_error
        FROM email_records
        WHERE category_id = $1 AND unsubscribe_status <> ''
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query, categoryID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	statuses := []UnsubscribeStatusRow{}
	for rows.Next() {
		var s UnsubscribeStatusRow
		if err := rows.Scan(&s.MessageID, &s.Status, &s.Method, &s.URL, &s.Error); err != nil {
			return nil, classify(err)
		}
		statuses = append(statuses, s)
	}
	return statuses, classify(rows.Err())
}
