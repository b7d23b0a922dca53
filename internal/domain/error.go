package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Entitlement errors
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrQuotaExceeded      = errors.New("quota exceeded")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrGenerationFailed   = errors.New("generation failed")
	// ErrStaleRecord means a conditional write lost a race with another
	// writer (tier change or reset) and may be retried on a fresh read.
	ErrStaleRecord        = errors.New("record changed concurrently")

	// Billing errors
	ErrSubscriptionNotActive = errors.New("billing subscription is not active")
	ErrUnknownPlan           = errors.New("billing plan is not mapped to a tier")
	ErrSubscriptionInUse     = errors.New("billing subscription is bound to another account")
	// ErrBillingUnavailable means the billing provider could not be reached
	// or answered with a server error.
	ErrBillingUnavailable    = errors.New("billing provider unavailable")
	ErrRateLimited           = errors.New("too many requests")
)

// QuotaError carries the numbers behind a rejected consumption.
// It matches ErrQuotaExceeded with errors.Is.
type QuotaError struct {
	Resource  string
	Limit     int64
	Used      int64
	Requested int64
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded: %s used %d of %d, requested %d", e.Resource, e.Used, e.Limit, e.Requested)
}

func (e *QuotaError) Is(target error) bool { return target == ErrQuotaExceeded }

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// StorageError wraps a driver failure so callers can test for ErrStorageUnavailable
// without losing the cause.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %v", op, ErrStorageUnavailable, err)
}
