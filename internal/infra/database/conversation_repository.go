package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rylieapp/adf-pipeline/internal/entity"
)

type ConversationRepository struct {
	DB *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{DB: db}
}

// CreateForLead relies on the partial unique index over active conversations:
// the first caller creates the thread, later callers get it back.
func (r *ConversationRepository) CreateForLead(ctx context.Context, conv *entity.Conversation) (*entity.Conversation, error) {
	query := `
		INSERT INTO conversations (id, tenant_id, lead_id, channel, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		ON CONFLICT (lead_id) WHERE active DO NOTHING
		RETURNING id
	`
	var id string
	err := r.DB.QueryRowContext(ctx, query,
		conv.ID, conv.TenantID, conv.LeadID, conv.Channel, conv.CreatedAt,
	).Scan(&id)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	existing := &entity.Conversation{}
	query = `
		SELECT id, tenant_id, lead_id, channel, active, created_at
		FROM conversations
		WHERE lead_id = $1 AND active
	`
	err = r.DB.QueryRowContext(ctx, query, conv.LeadID).Scan(
		&existing.ID, &existing.TenantID, &existing.LeadID,
		&existing.Channel, &existing.Active, &existing.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return existing, nil
}
