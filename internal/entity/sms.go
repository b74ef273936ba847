package entity

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus is the SMS state machine:
// pending -> queued -> sent -> {delivered | failed | undelivered},
// with opted_out reachable from any non-terminal state.
type DeliveryStatus string

const (
	DeliveryPending     DeliveryStatus = "pending"
	DeliveryQueued      DeliveryStatus = "queued"
	DeliverySent        DeliveryStatus = "sent"
	DeliveryDelivered   DeliveryStatus = "delivered"
	DeliveryFailed      DeliveryStatus = "failed"
	DeliveryUndelivered DeliveryStatus = "undelivered"
	DeliveryOptedOut    DeliveryStatus = "opted_out"
)

func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryPending, DeliveryQueued, DeliverySent, DeliveryDelivered,
		DeliveryFailed, DeliveryUndelivered, DeliveryOptedOut:
		return true
	}
	return false
}

func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryDelivered, DeliveryFailed, DeliveryUndelivered, DeliveryOptedOut:
		return true
	}
	return false
}

// rank orders statuses for reconciliation: a status may only advance.
// Terminal states outrank every non-terminal one.
func (s DeliveryStatus) rank() int {
	switch s {
	case DeliveryPending:
		return 0
	case DeliveryQueued:
		return 1
	case DeliverySent:
		return 2
	case DeliveryUndelivered:
		return 3
	case DeliveryFailed:
		return 4
	case DeliveryDelivered:
		return 5
	case DeliveryOptedOut:
		return 6
	}
	return -1
}

// Supersedes reports whether moving to s from prev is a legal advance.
// A terminal status is never regressed by a non-terminal one.
func (s DeliveryStatus) Supersedes(prev DeliveryStatus) bool {
	if prev.Terminal() && !s.Terminal() {
		return false
	}
	return s.rank() > prev.rank()
}

const SmsMaxRetries = 3

// SmsMessage stores the recipient phone encrypted, alongside a masked display
// form. Lookups never touch either: they go through the one-way phone hash.
type SmsMessage struct {
	ID               string         `json:"id"`
	TenantID         int64          `json:"tenant_id"`
	LeadID           string         `json:"lead_id"`
	PhoneEncrypted   []byte         `json:"-"`
	PhoneMasked      string         `json:"phone_masked"`
	PhoneHash        string         `json:"-"`
	Body             string         `json:"body"`
	CarrierMessageID string         `json:"carrier_message_id,omitempty"`
	DeliveryStatus   DeliveryStatus `json:"delivery_status"`
	RetryCount       int            `json:"retry_count"`
	OptedOut         bool           `json:"opted_out"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

func NewSmsMessage(tenantID int64, leadID string, phoneEncrypted []byte, phoneMasked, phoneHash, body string) (*SmsMessage, error) {
	msg := &SmsMessage{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		LeadID:         leadID,
		PhoneEncrypted: phoneEncrypted,
		PhoneMasked:    phoneMasked,
		PhoneHash:      phoneHash,
		Body:           body,
		DeliveryStatus: DeliveryPending,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *SmsMessage) Validate() error {
	if m.TenantID <= 0 {
		return errors.New("tenant_id is required")
	}
	if m.LeadID == "" {
		return errors.New("lead_id is required")
	}
	if m.PhoneHash == "" {
		return errors.New("phone_hash is required")
	}
	if m.Body == "" {
		return errors.New("body is required")
	}
	if !m.DeliveryStatus.Valid() {
		return errors.New("invalid delivery status")
	}
	return nil
}

// SmsDeliveryEvent is append-only. EventAt is the carrier's timestamp, which
// drives reconciliation ordering; ReceivedAt is when the webhook arrived.
type SmsDeliveryEvent struct {
	ID           string         `json:"id"`
	SmsMessageID string         `json:"sms_message_id"`
	Status       DeliveryStatus `json:"status"`
	ErrorCode    string         `json:"error_code,omitempty"`
	RawPayload   string         `json:"-"`
	EventAt      time.Time      `json:"event_at"`
	ReceivedAt   time.Time      `json:"received_at"`
}

func NewSmsDeliveryEvent(smsMessageID string, status DeliveryStatus, rawPayload string, eventAt time.Time) (*SmsDeliveryEvent, error) {
	if smsMessageID == "" {
		return nil, errors.New("sms_message_id is required")
	}
	if !status.Valid() {
		return nil, errors.New("invalid delivery status")
	}
	return &SmsDeliveryEvent{
		ID:           uuid.New().String(),
		SmsMessageID: smsMessageID,
		Status:       status,
		RawPayload:   rawPayload,
		EventAt:      eventAt,
		ReceivedAt:   time.Now(),
	}, nil
}

// ResolveDeliveryStatus recomputes the canonical status from the full event
// list, ordered by carrier event time. Arrival order is irrelevant, so a late
// webhook carrying an earlier non-terminal status never regresses a terminal
// one.
func ResolveDeliveryStatus(current DeliveryStatus, events []SmsDeliveryEvent) DeliveryStatus {
	resolved := current
	for _, ev := range sortedByEventTime(events) {
		if ev.Status.Supersedes(resolved) {
			resolved = ev.Status
		}
	}
	return resolved
}

func sortedByEventTime(events []SmsDeliveryEvent) []SmsDeliveryEvent {
	out := make([]SmsDeliveryEvent, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool { return out[i].EventAt.Before(out[j].EventAt) })
	return out
}

// SmsOptOut is the per-tenant do-not-contact registry, keyed by phone hash
// only. OptedBackInAt set means the number may be contacted again.
type SmsOptOut struct {
	ID            string     `json:"id"`
	TenantID      int64      `json:"tenant_id"`
	PhoneHash     string     `json:"-"`
	OptedOutAt    time.Time  `json:"opted_out_at"`
	OptedBackInAt *time.Time `json:"opted_back_in_at,omitempty"`
}

// Active reports whether the opt-out currently blocks sends.
func (o *SmsOptOut) Active() bool {
	return o.OptedBackInAt == nil || o.OptedBackInAt.Before(o.OptedOutAt)
}
