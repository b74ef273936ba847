package usecase

import (
	"errors"
	"fmt"
)

// The pipeline error taxonomy. Domain errors terminate or reroute one
// message; technical errors are transient and drive the retry machinery.

// DuplicateDetected is not a failure: ingestion routed to an already existing
// lead instead of creating one.
type DuplicateDetected struct {
	ExistingLeadID string
}

func (e *DuplicateDetected) Error() string {
	return fmt.Sprintf("duplicate lead collapsed into %s", e.ExistingLeadID)
}

// PersistenceError wraps a transient database failure. The owning queue item
// is retried up to its bound.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// DeliveryError wraps a carrier rejection. Retried to a bound, then the
// message lands in a terminal failed state.
type DeliveryError struct {
	CarrierCode string
	Err         error
}

func (e *DeliveryError) Error() string {
	if e.CarrierCode != "" {
		return fmt.Sprintf("carrier rejected send (code %s): %v", e.CarrierCode, e.Err)
	}
	return fmt.Sprintf("carrier rejected send: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func IsRetryable(err error) bool {
	var pe *PersistenceError
	var de *DeliveryError
	return errors.As(err, &pe) || errors.As(err, &de)
}
