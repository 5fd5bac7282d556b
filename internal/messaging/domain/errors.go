package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidInput indicates malformed caller input (bad number, missing field).
	ErrInvalidInput = errors.New("invalid input")
	// ErrForbidden indicates the caller is not the account's designated admin.
	ErrForbidden = errors.New("caller is not the account administrator")
	// ErrProviderUnavailable indicates a transient vendor/network fault; safe to retry.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidCriteria indicates the vendor rejected the search filter combination.
	ErrInvalidCriteria = errors.New("invalid search criteria")
	// ErrNumberUnavailable indicates the selected candidate expired or was taken.
	ErrNumberUnavailable = errors.New("number no longer available")
	// ErrMalformedPayload indicates a webhook payload missing required fields.
	ErrMalformedPayload = errors.New("malformed provider payload")
	// ErrDuplicateEntry indicates a unique constraint violation; callers treat
	// it as already-applied, not as failure.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrNoSenderNumber indicates the account owns no usable number to send from.
	ErrNoSenderNumber = errors.New("account has no usable sender number")
	// ErrNumberAlreadyProvisioned guards against double-purchase: the account
	// already owns an SMS-capable number from this provider.
	ErrNumberAlreadyProvisioned = errors.New("account already has a provisioned number for this provider")
)

// SendRejectedError is a vendor-side business rejection of an outbound send
// (unverified sender, blocked destination). It is surfaced verbatim to the
// caller and never retried automatically.
type SendRejectedError struct {
	Reason string
}

func (e *SendRejectedError) Error() string {
	return fmt.Sprintf("send rejected by provider: %s", e.Reason)
}

// IsSendRejected reports whether err is (or wraps) a SendRejectedError.
func IsSendRejected(err error) bool {
	var sre *SendRejectedError
	return errors.As(err, &sre)
}
