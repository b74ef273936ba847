package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rylieapp/adf-pipeline/internal/entity"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

// UpsertByFingerprint serializes concurrent duplicate deliveries on the
// (tenant_id, dedupe_hash) constraint: the first insert wins, every racer
// gets the winner's id back. `xmax = 0` distinguishes a fresh insert from a
// conflict-touched row.
func (r *LeadRepository) UpsertByFingerprint(ctx context.Context, lead *entity.Lead) (usecase.UpsertResult, error) {
	tradeIn, err := marshalTradeIn(lead.TradeIn)
	if err != nil {
		return usecase.UpsertResult{}, err
	}

	query := `
		INSERT INTO leads (
			id, tenant_id, first_name, last_name, email, phone,
			street, city, state, zip_code,
			vin, vehicle_year, vehicle_make, vehicle_model, vehicle_trim,
			stock_number, vehicle_condition, trade_in,
			vendor_name, provider_name, source_channel, comments,
			status, processing_status, dedupe_hash, raw_xml,
			created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		ON CONFLICT (tenant_id, dedupe_hash)
		DO UPDATE SET updated_at = now()
		RETURNING id, (xmax = 0) AS created
	`

	var result usecase.UpsertResult
	err = r.DB.QueryRowContext(ctx, query,
		lead.ID, lead.TenantID,
		lead.Customer.FirstName, lead.Customer.LastName, lead.Customer.Email, lead.Customer.Phone,
		lead.Customer.Street, lead.Customer.City, lead.Customer.State, lead.Customer.ZipCode,
		lead.Vehicle.VIN, lead.Vehicle.Year, lead.Vehicle.Make, lead.Vehicle.Model, lead.Vehicle.Trim,
		lead.Vehicle.StockNum, lead.Vehicle.Condition, tradeIn,
		lead.VendorName, lead.ProviderName, lead.SourceChannel, lead.Comments,
		lead.Status, lead.ProcessingStatus, lead.DedupeHash, lead.RawXML,
		lead.CreatedAt, lead.UpdatedAt,
	).Scan(&result.LeadID, &result.Created)
	if err != nil {
		return usecase.UpsertResult{}, err
	}
	return result, nil
}

func (r *LeadRepository) FindByID(ctx context.Context, tenantID int64, id string) (*entity.Lead, error) {
	query := `
		SELECT id, tenant_id, first_name, last_name, email, phone,
		       street, city, state, zip_code,
		       vin, vehicle_year, vehicle_make, vehicle_model, vehicle_trim,
		       stock_number, vehicle_condition, trade_in,
		       vendor_name, provider_name, source_channel, comments,
		       status, processing_status, dedupe_hash, raw_xml,
		       conversation_id, created_at, updated_at
		FROM leads
		WHERE id = $1 AND tenant_id = $2
	`

	var lead entity.Lead
	var tradeIn []byte
	var conversationID sql.NullString

	err := r.DB.QueryRowContext(ctx, query, id, tenantID).Scan(
		&lead.ID, &lead.TenantID,
		&lead.Customer.FirstName, &lead.Customer.LastName, &lead.Customer.Email, &lead.Customer.Phone,
		&lead.Customer.Street, &lead.Customer.City, &lead.Customer.State, &lead.Customer.ZipCode,
		&lead.Vehicle.VIN, &lead.Vehicle.Year, &lead.Vehicle.Make, &lead.Vehicle.Model, &lead.Vehicle.Trim,
		&lead.Vehicle.StockNum, &lead.Vehicle.Condition, &tradeIn,
		&lead.VendorName, &lead.ProviderName, &lead.SourceChannel, &lead.Comments,
		&lead.Status, &lead.ProcessingStatus, &lead.DedupeHash, &lead.RawXML,
		&conversationID, &lead.CreatedAt, &lead.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}

	if conversationID.Valid {
		lead.ConversationID = &conversationID.String
	}
	if len(tradeIn) > 0 {
		var v entity.Vehicle
		if err := json.Unmarshal(tradeIn, &v); err == nil {
			lead.TradeIn = &v
		}
	}
	return &lead, nil
}

func (r *LeadRepository) SetConversation(ctx context.Context, tenantID int64, leadID, conversationID string) error {
	query := `
		UPDATE leads SET conversation_id = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3
	`
	res, err := r.DB.ExecContext(ctx, query, conversationID, leadID, tenantID)
	if err != nil {
		return err
	}
	return requireRow(res, entity.ErrLeadNotFound)
}

// UpdateProcessingStatus is a compare-and-swap so concurrent workers cannot
// silently overwrite each other.
func (r *LeadRepository) UpdateProcessingStatus(ctx context.Context, tenantID int64, leadID string, from, to entity.ProcessingStatus) error {
	query := `
		UPDATE leads SET processing_status = $1, updated_at = now()
		WHERE id = $2 AND tenant_id = $3 AND processing_status = $4
	`
	res, err := r.DB.ExecContext(ctx, query, to, leadID, tenantID, from)
	if err != nil {
		return err
	}
	return requireRow(res, entity.ErrStaleTransition)
}

func marshalTradeIn(v *entity.Vehicle) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func requireRow(res sql.Result, missing error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return missing
	}
	return nil
}
