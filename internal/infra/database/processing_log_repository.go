package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rylieapp/adf-pipeline/internal/entity"
	"github.com/rylieapp/adf-pipeline/internal/usecase"
)

// ProcessingLogRepository is insert-only. There is deliberately no update or
// delete path for audit entries.
type ProcessingLogRepository struct {
	DB *sql.DB
}

func NewProcessingLogRepository(db *sql.DB) *ProcessingLogRepository {
	return &ProcessingLogRepository{DB: db}
}

func (r *ProcessingLogRepository) Append(ctx context.Context, entry *entity.ProcessingLogEntry) error {
	query := `
		INSERT INTO processing_logs (
			id, tenant_id, lead_id, queue_item_id, step, outcome,
			message, error_detail, latency_ms, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := r.DB.ExecContext(ctx, query,
		entry.ID, entry.TenantID, entry.LeadID, entry.QueueItemID,
		entry.Step, entry.Outcome, entry.Message, entry.ErrorDetail,
		entry.Latency.Milliseconds(), entry.CreatedAt,
	)
	return err
}

// List returns entries in creation order, narrowed by whatever filter fields
// are set.
func (r *ProcessingLogRepository) List(ctx context.Context, tenantID int64, filter usecase.LogFilter) ([]entity.ProcessingLogEntry, error) {
	query := `
		SELECT id, tenant_id, lead_id, queue_item_id, step, outcome,
		       message, error_detail, latency_ms, created_at
		FROM processing_logs
		WHERE tenant_id = $1
	`
	args := []any{tenantID}

	if filter.LeadID != "" {
		args = append(args, filter.LeadID)
		query += fmt.Sprintf(" AND lead_id = $%d", len(args))
	}
	if filter.QueueItemID != "" {
		args = append(args, filter.QueueItemID)
		query += fmt.Sprintf(" AND queue_item_id = $%d", len(args))
	}
	if filter.Step != "" {
		args = append(args, filter.Step)
		query += fmt.Sprintf(" AND step = $%d", len(args))
	}
	if filter.Outcome != "" {
		args = append(args, filter.Outcome)
		query += fmt.Sprintf(" AND outcome = $%d", len(args))
	}
	if !filter.Since.IsZero() {
		args = append(args, filter.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filter.Until.IsZero() {
		args = append(args, filter.Until)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	query += " ORDER BY created_at ASC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []entity.ProcessingLogEntry
	for rows.Next() {
		var e entity.ProcessingLogEntry
		var leadID, itemID sql.NullString
		var latencyMs int64
		if err := rows.Scan(
			&e.ID, &e.TenantID, &leadID, &itemID, &e.Step, &e.Outcome,
			&e.Message, &e.ErrorDetail, &latencyMs, &e.CreatedAt,
		); err != nil {
			return nil, err
		}
		if leadID.Valid {
			e.LeadID = &leadID.String
		}
		if itemID.Valid {
			e.QueueItemID = &itemID.String
		}
		e.Latency = time.Duration(latencyMs) * time.Millisecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
