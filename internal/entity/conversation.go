package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Conversation is the thread downstream follow-up attaches to. A lead owns at
// most one active conversation; the content of the thread lives outside this
// pipeline.
type Conversation struct {
	ID        string    `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	LeadID    string    `json:"lead_id"`
	Channel   string    `json:"channel"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func NewConversation(tenantID int64, leadID, channel string) (*Conversation, error) {
	if tenantID <= 0 {
		return nil, errors.New("tenant_id is required")
	}
	if leadID == "" {
		return nil, errors.New("lead_id is required")
	}
	if channel == "" {
		channel = "sms"
	}
	return &Conversation{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		LeadID:    leadID,
		Channel:   channel,
		Active:    true,
		CreatedAt: time.Now(),
	}, nil
}
