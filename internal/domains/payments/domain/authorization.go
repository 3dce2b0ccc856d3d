package domain

import (
	"errors"
	"time"
)

// State is the lifecycle of a payment authorization.
type State string

const (
	StateAuthorized State = "authorized"
	StateDenied     State = "denied"
	StateCaptured   State = "captured"
	StateVoided     State = "voided"
	StateRefunded   State = "refunded"
)

var (
	ErrAuthorizationNotFound       = errors.New("authorization not found")
	ErrInvalidPaymentState         = errors.New("invalid payment state transition")
	ErrCaptureExceedsAuthorization = errors.New("capture amount exceeds authorized amount")
	ErrRefundExceedsCapture        = errors.New("refund amount exceeds captured amount")
	ErrInvalidAmount               = errors.New("amount must be greater than zero")
)

// Authorization tracks one payment hold for an order. Amounts are cents; the
// order identity keys the authorization, one per order.
type Authorization struct {
	OrderID       string
	AmountCents   int64
	CapturedCents int64
	State         State
	Reason        string
	CreatedAt     time.Time
}

// NewAuthorization records an approved hold on the instrument.
func NewAuthorization(orderID string, amountCents int64, now time.Time) (*Authorization, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	if amountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	return &Authorization{
		OrderID:     orderID,
		AmountCents: amountCents,
		State:       StateAuthorized,
		CreatedAt:   now.UTC(),
	}, nil
}

// NewDenial records a business decline. Denials are terminal; nothing is held
// on the instrument.
func NewDenial(orderID string, amountCents int64, reason string, now time.Time) *Authorization {
	return &Authorization{
		OrderID:     orderID,
		AmountCents: amountCents,
		State:       StateDenied,
		Reason:      reason,
		CreatedAt:   now.UTC(),
	}
}

// Capture transfers up to the authorized amount. Only an open authorization
// can capture; captured funds never exceed the hold.
func (a *Authorization) Capture(amountCents int64) error {
	if amountCents <= 0 {
		return ErrInvalidAmount
	}
	if a.State != StateAuthorized {
		return ErrInvalidPaymentState
	}
	if amountCents > a.AmountCents {
		return ErrCaptureExceedsAuthorization
	}
	a.CapturedCents = amountCents
	a.State = StateCaptured
	return nil
}

// Void releases the hold. Voiding an already voided or denied authorization
// is a no-op so compensation can be replayed; a captured authorization must
// be refunded instead. Reports whether state changed.
func (a *Authorization) Void() (bool, error) {
	switch a.State {
	case StateAuthorized:
		a.State = StateVoided
		return true, nil
	case StateVoided, StateDenied:
		return false, nil
	default:
		return false, ErrInvalidPaymentState
	}
}

// Refund returns captured funds, never more than were captured. Reports
// whether state changed; refunding an already refunded authorization is a
// no-op.
func (a *Authorization) Refund(amountCents int64) (bool, error) {
	switch a.State {
	case StateCaptured:
		if amountCents <= 0 {
			return false, ErrInvalidAmount
		}
		if amountCents > a.CapturedCents {
			return false, ErrRefundExceedsCapture
		}
		a.State = StateRefunded
		return true, nil
	case StateRefunded:
		return false, nil
	default:
		return false, ErrInvalidPaymentState
	}
}
