package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

type EmailQueueRepository struct {
	DB *sql.DB
}

func NewEmailQueueRepository(db *sql.DB) *EmailQueueRepository {
	return &EmailQueueRepository{DB: db}
}

const queueItemColumns = `
	id, tenant_id, message_id, from_address, subject, received_at, raw_content,
	processing_status, attempts, max_retries, errors, resulting_lead_id,
	cancelled, next_attempt_at, created_at, updated_at
`

// Enqueue inserts the item unless the message_id is already known. The unique
// constraint, not application logic, is what makes at-least-once email
// delivery idempotent here.
func (r *EmailQueueRepository) Enqueue(ctx context.Context, item *entity.EmailQueueItem) (*entity.EmailQueueItem, bool, error) {
	query := `
		INSERT INTO email_queue_items (
			id, tenant_id, message_id, from_address, subject, received_at,
			raw_content, processing_status, max_retries, next_attempt_at,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (message_id) DO NOTHING
		RETURNING id
	`

	var id string
	err := r.DB.QueryRowContext(ctx, query,
		item.ID, item.TenantID, item.MessageID, item.FromAddress, item.Subject,
		item.ReceivedAt, item.RawContent, item.ProcessingStatus, item.MaxRetries,
		item.NextAttemptAt, item.CreatedAt, item.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return item, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.findByMessageID(ctx, item.MessageID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Claim takes exclusive ownership of one runnable item. SKIP LOCKED keeps two
// workers from ever blocking on, or both winning, the same row.
func (r *EmailQueueRepository) Claim(ctx context.Context, itemID string) (*entity.EmailQueueItem, error) {
	query := `
		UPDATE email_queue_items
		SET processing_status = 'processing', updated_at = now()
		WHERE id = (
			SELECT id FROM email_queue_items
			WHERE id = $1 AND processing_status IN ('pending', 'retrying')
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + queueItemColumns

	row := r.DB.QueryRowContext(ctx, query, itemID)
	item, err := scanQueueItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrQueueItemNotFound
	}
	return item, err
}

func (r *EmailQueueRepository) MarkProcessed(ctx context.Context, itemID, leadID string) error {
	query := `
		UPDATE email_queue_items
		SET processing_status = 'processed', resulting_lead_id = $1,
		    attempts = attempts + 1, updated_at = now()
		WHERE id = $2 AND processing_status = 'processing' AND cancelled = FALSE
	`
	res, err := r.DB.ExecContext(ctx, query, leadID, itemID)
	if err != nil {
		return err
	}
	return requireRow(res, entity.ErrStaleTransition)
}

func (r *EmailQueueRepository) MarkRetrying(ctx context.Context, itemID string, attempts int, nextAttemptAt time.Time, procErr string) error {
	query := `
		UPDATE email_queue_items
		SET processing_status = 'retrying', attempts = $1, next_attempt_at = $2,
		    errors = errors || to_jsonb($3::text), updated_at = now()
		WHERE id = $4 AND processing_status = 'processing'
	`
	res, err := r.DB.ExecContext(ctx, query, attempts, nextAttemptAt, procErr, itemID)
	if err != nil {
		return err
	}
	return requireRow(res, entity.ErrStaleTransition)
}

// MarkFailed is terminal. The row stays put for operator review; nothing ever
// deletes it.
func (r *EmailQueueRepository) MarkFailed(ctx context.Context, itemID string, attempts int, procErr string) error {
	query := `
		UPDATE email_queue_items
		SET processing_status = 'failed', attempts = $1,
		    errors = errors || to_jsonb($2::text), updated_at = now()
		WHERE id = $3 AND processing_status = 'processing'
	`
	res, err := r.DB.ExecContext(ctx, query, attempts, procErr, itemID)
	if err != nil {
		return err
	}
	return requireRow(res, entity.ErrStaleTransition)
}

// Cancel flags a not-yet-settled item. In-flight work still completes; the
// flag is observed post-hoc and the result discarded.
func (r *EmailQueueRepository) Cancel(ctx context.Context, tenantID int64, itemID string) error {
	query := `
		UPDATE email_queue_items
		SET cancelled = TRUE, updated_at = now()
		WHERE id = $1 AND tenant_id = $2
		  AND processing_status IN ('pending', 'retrying', 'processing')
	`
	res, err := r.DB.ExecContext(ctx, query, itemID, tenantID)
	if err != nil {
		return err
	}
	return requireRow(res, entity.ErrQueueItemNotFound)
}

func (r *EmailQueueRepository) FindByID(ctx context.Context, tenantID int64, itemID string) (*entity.EmailQueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM email_queue_items WHERE id = $1 AND tenant_id = $2`
	item, err := scanQueueItem(r.DB.QueryRowContext(ctx, query, itemID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrQueueItemNotFound
	}
	return item, err
}

func (r *EmailQueueRepository) findByMessageID(ctx context.Context, messageID string) (*entity.EmailQueueItem, error) {
	query := `SELECT ` + queueItemColumns + ` FROM email_queue_items WHERE message_id = $1`
	item, err := scanQueueItem(r.DB.QueryRowContext(ctx, query, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrQueueItemNotFound
	}
	return item, err
}

func scanQueueItem(row *sql.Row) (*entity.EmailQueueItem, error) {
	var item entity.EmailQueueItem
	var rawErrors []byte
	var leadID sql.NullString

	err := row.Scan(
		&item.ID, &item.TenantID, &item.MessageID, &item.FromAddress, &item.Subject,
		&item.ReceivedAt, &item.RawContent, &item.ProcessingStatus, &item.Attempts,
		&item.MaxRetries, &rawErrors, &leadID, &item.Cancelled, &item.NextAttemptAt,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if leadID.Valid {
		item.ResultingLeadID = &leadID.String
	}
	if len(rawErrors) > 0 {
		if err := json.Unmarshal(rawErrors, &item.Errors); err != nil {
			return nil, err
		}
	}
	return &item, nil
}
