package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

type SmsRepository struct {
	DB *sql.DB
}

func NewSmsRepository(db *sql.DB) *SmsRepository {
	return &SmsRepository{DB: db}
}

// CreateMessage inserts the message unless this lead already has one. The
// unique (tenant_id, lead_id) constraint makes redelivered SMS jobs land on
// the existing row instead of texting the customer twice.
func (r *SmsRepository) CreateMessage(ctx context.Context, msg *entity.SmsMessage) (*entity.SmsMessage, bool, error) {
	query := `
		INSERT INTO sms_messages (
			id, tenant_id, lead_id, phone_encrypted, phone_masked, phone_hash,
			body, carrier_message_id, delivery_status, retry_count, opted_out,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (tenant_id, lead_id) DO NOTHING
		RETURNING id
	`
	var id string
	err := r.DB.QueryRowContext(ctx, query,
		msg.ID, msg.TenantID, msg.LeadID, msg.PhoneEncrypted, msg.PhoneMasked,
		msg.PhoneHash, msg.Body, msg.CarrierMessageID, msg.DeliveryStatus,
		msg.RetryCount, msg.OptedOut, msg.CreatedAt, msg.UpdatedAt,
	).Scan(&id)
	if err == nil {
		return msg, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	existing, err := r.findMessageByLead(ctx, msg.TenantID, msg.LeadID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

const smsColumns = `
	id, tenant_id, lead_id, phone_encrypted, phone_masked, phone_hash, body,
	carrier_message_id, delivery_status, retry_count, opted_out, created_at, updated_at
`

func (r *SmsRepository) FindMessageByID(ctx context.Context, id string) (*entity.SmsMessage, error) {
	query := `SELECT ` + smsColumns + ` FROM sms_messages WHERE id = $1`
	return scanSms(r.DB.QueryRowContext(ctx, query, id))
}

func (r *SmsRepository) FindMessageByCarrierID(ctx context.Context, carrierMessageID string) (*entity.SmsMessage, error) {
	query := `SELECT ` + smsColumns + ` FROM sms_messages WHERE carrier_message_id = $1`
	return scanSms(r.DB.QueryRowContext(ctx, query, carrierMessageID))
}

func (r *SmsRepository) findMessageByLead(ctx context.Context, tenantID int64, leadID string) (*entity.SmsMessage, error) {
	query := `SELECT ` + smsColumns + ` FROM sms_messages WHERE tenant_id = $1 AND lead_id = $2`
	return scanSms(r.DB.QueryRowContext(ctx, query, tenantID, leadID))
}

// UpdateStatus only succeeds when the row still carries the expected prior
// status, so two reconcilers racing on the same webhook cannot double-apply.
func (r *SmsRepository) UpdateStatus(ctx context.Context, id string, from, to entity.DeliveryStatus, carrierMessageID string, retryCount int) error {
	query := `
		UPDATE sms_messages
		SET delivery_status = $1,
		    carrier_message_id = CASE WHEN $2 <> '' THEN $2 ELSE carrier_message_id END,
		    retry_count = $3,
		    opted_out = ($1 = 'opted_out') OR opted_out,
		    updated_at = now()
		WHERE id = $4 AND delivery_status = $5
	`
	res, err := r.DB.ExecContext(ctx, query, to, carrierMessageID, retryCount, id, from)
	if err != nil {
		return err
	}
	return requireRow(res, entity.ErrStaleTransition)
}

func (r *SmsRepository) AppendEvent(ctx context.Context, event *entity.SmsDeliveryEvent) error {
	query := `
		INSERT INTO sms_delivery_events (
			id, sms_message_id, status, error_code, raw_payload, event_at, received_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err := r.DB.ExecContext(ctx, query,
		event.ID, event.SmsMessageID, event.Status, event.ErrorCode,
		event.RawPayload, event.EventAt, event.ReceivedAt,
	)
	return err
}

// ListEvents orders by carrier event time, the ordering reconciliation uses.
func (r *SmsRepository) ListEvents(ctx context.Context, smsMessageID string) ([]entity.SmsDeliveryEvent, error) {
	query := `
		SELECT id, sms_message_id, status, error_code, raw_payload, event_at, received_at
		FROM sms_delivery_events
		WHERE sms_message_id = $1
		ORDER BY event_at ASC
	`
	rows, err := r.DB.QueryContext(ctx, query, smsMessageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []entity.SmsDeliveryEvent
	for rows.Next() {
		var e entity.SmsDeliveryEvent
		if err := rows.Scan(
			&e.ID, &e.SmsMessageID, &e.Status, &e.ErrorCode,
			&e.RawPayload, &e.EventAt, &e.ReceivedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func scanSms(row *sql.Row) (*entity.SmsMessage, error) {
	var msg entity.SmsMessage
	err := row.Scan(
		&msg.ID, &msg.TenantID, &msg.LeadID, &msg.PhoneEncrypted, &msg.PhoneMasked,
		&msg.PhoneHash, &msg.Body, &msg.CarrierMessageID, &msg.DeliveryStatus,
		&msg.RetryCount, &msg.OptedOut, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrSmsNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}
