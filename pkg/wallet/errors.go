package wallet

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the wallet service and its stores.
var (
	// ErrInsufficientFunds means the admission check failed and nothing was
	// mutated; the caller may surface an out-of-funds message immediately.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrWalletUnavailable means the operation did not land and the stored
	// balance is unchanged; safe to retry.
	ErrWalletUnavailable = errors.New("wallet unavailable")
	// ErrSpinUnsettled means the debit committed but the credit could not be
	// confirmed; the caller must re-read the balance before spinning again.
	ErrSpinUnsettled = errors.New("spin unsettled")

	// Store contract sentinels.
	ErrGuardViolated    = errors.New("balance guard violated")
	ErrStoreConflict    = errors.New("store conflict")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnknownBalance   = errors.New("unknown balance")

	ErrInvalidUserID        = errors.New("invalid user id")
	ErrInvalidCoins         = errors.New("invalid coin amount")
	ErrInvalidSpinCost      = errors.New("invalid spin cost")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}
