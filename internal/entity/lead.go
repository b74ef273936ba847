package entity

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the sales lifecycle of a lead. Leads are never hard-deleted,
// only archived.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusWon       LeadStatus = "won"
	LeadStatusLost      LeadStatus = "lost"
	LeadStatusArchived  LeadStatus = "archived"
)

func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified,
		LeadStatusWon, LeadStatusLost, LeadStatusArchived:
		return true
	}
	return false
}

// ProcessingStatus tracks where a lead sits in the ingestion pipeline,
// independent of its sales status.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingProcessed  ProcessingStatus = "processed"
	ProcessingFailed     ProcessingStatus = "failed"
	ProcessingRetrying   ProcessingStatus = "retrying"
)

func (s ProcessingStatus) Valid() bool {
	switch s {
	case ProcessingPending, ProcessingInProgress, ProcessingProcessed,
		ProcessingFailed, ProcessingRetrying:
		return true
	}
	return false
}

// Value Object: customer contact block from the ADF prospect.
type Customer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Street    string `json:"street,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zip_code,omitempty"`
}

func (c Customer) FullName() string {
	if c.FirstName == "" {
		return c.LastName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Value Object: vehicle of interest (or trade-in, same shape).
type Vehicle struct {
	VIN       string `json:"vin,omitempty"`
	Year      string `json:"year,omitempty"`
	Make      string `json:"make,omitempty"`
	Model     string `json:"model,omitempty"`
	Trim      string `json:"trim,omitempty"`
	StockNum  string `json:"stock_number,omitempty"`
	Condition string `json:"condition,omitempty"`
}

type Lead struct {
	ID               string           `json:"id"`
	TenantID         int64            `json:"tenant_id"`
	Customer         Customer         `json:"customer"`
	Vehicle          Vehicle          `json:"vehicle"`
	TradeIn          *Vehicle         `json:"trade_in,omitempty"`
	VendorName       string           `json:"vendor_name,omitempty"`
	ProviderName     string           `json:"provider_name,omitempty"`
	SourceChannel    string           `json:"source_channel"`
	Comments         string           `json:"comments,omitempty"`
	Status           LeadStatus       `json:"status"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	DedupeHash       string           `json:"dedupe_hash"`
	RawXML           string           `json:"-"`
	ConversationID   *string          `json:"conversation_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewLead builds a lead in its initial state. DedupeHash must already be
// computed from the normalized fields.
func NewLead(tenantID int64, customer Customer, vehicle Vehicle, dedupeHash, rawXML string) (*Lead, error) {
	lead := &Lead{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		Customer:         customer,
		Vehicle:          vehicle,
		SourceChannel:    "adf_email",
		Status:           LeadStatusNew,
		ProcessingStatus: ProcessingPending,
		DedupeHash:       dedupeHash,
		RawXML:           rawXML,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	if err := lead.Validate(); err != nil {
		return nil, err
	}
	return lead, nil
}

func (l *Lead) Validate() error {
	if l.TenantID <= 0 {
		return errors.New("tenant_id is required")
	}
	if l.DedupeHash == "" {
		return errors.New("dedupe_hash is required")
	}
	if l.Customer.FullName() == "" {
		return errors.New("customer name is required")
	}
	if !l.Status.Valid() {
		return errors.New("invalid lead status")
	}
	if !l.ProcessingStatus.Valid() {
		return errors.New("invalid processing status")
	}
	return nil
}
