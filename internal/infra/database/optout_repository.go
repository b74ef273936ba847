package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

// OptOutRepository touches only phone hashes; raw or masked numbers never
// appear in this table.
type OptOutRepository struct {
	DB *sql.DB
}

func NewOptOutRepository(db *sql.DB) *OptOutRepository {
	return &OptOutRepository{DB: db}
}

func (r *OptOutRepository) Find(ctx context.Context, tenantID int64, phoneHash string) (*entity.SmsOptOut, error) {
	query := `
		SELECT id, tenant_id, phone_hash, opted_out_at, opted_back_in_at
		FROM sms_opt_outs
		WHERE tenant_id = $1 AND phone_hash = $2
	`
	var o entity.SmsOptOut
	var backIn sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, tenantID, phoneHash).Scan(
		&o.ID, &o.TenantID, &o.PhoneHash, &o.OptedOutAt, &backIn,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if backIn.Valid {
		o.OptedBackInAt = &backIn.Time
	}
	return &o, nil
}

// OptOut registers (or re-activates) an opt-out.
func (r *OptOutRepository) OptOut(ctx context.Context, tenantID int64, phoneHash string) error {
	query := `
		INSERT INTO sms_opt_outs (id, tenant_id, phone_hash, opted_out_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (tenant_id, phone_hash)
		DO UPDATE SET opted_out_at = now(), opted_back_in_at = NULL
	`
	_, err := r.DB.ExecContext(ctx, query, uuid.New().String(), tenantID, phoneHash)
	return err
}

func (r *OptOutRepository) OptBackIn(ctx context.Context, tenantID int64, phoneHash string) error {
	query := `
		UPDATE sms_opt_outs SET opted_back_in_at = now()
		WHERE tenant_id = $1 AND phone_hash = $2
	`
	_, err := r.DB.ExecContext(ctx, query, tenantID, phoneHash)
	return err
}
