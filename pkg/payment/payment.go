package payment

import (
	"context"
	"errors"
	"fmt"
)

// STKPushRequest describes one push payment. Amount is in whole KES.
type STKPushRequest struct {
	Amount           int64
	PhoneNumber      string // any accepted form; normalized before sending
	AccountReference string
	TransactionDesc  string
}

// PushResult is the gateway's acceptance of an STK push. CheckoutRequestID
// is the join key shared by the callback and the status query.
type PushResult struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

// OutcomeStatus is the domain-level status vocabulary shared by the callback
// path and the polling path.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "SUCCESS"
	StatusFailed  OutcomeStatus = "FAILED"
	StatusPending OutcomeStatus = "PENDING"
	StatusTimeout OutcomeStatus = "TIMEOUT"
)

// Outcome is the reconciled result of a payment attempt. Code and Description
// carry the gateway's own result code and message; Metadata is only set on
// success (receipt number, amount, transaction date, phone number).
type Outcome struct {
	Status      OutcomeStatus  `json:"status"`
	Code        string         `json:"code,omitempty"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Terminal reports whether the outcome ends the wait for this payment.
func (o Outcome) Terminal() bool {
	return o.Status == StatusSuccess || o.Status == StatusFailed || o.Status == StatusTimeout
}

// Provider is the gateway surface the handlers depend on.
type Provider interface {
	InitiateSTKPush(ctx context.Context, req STKPushRequest) (*PushResult, error)
	QueryStatus(ctx context.Context, checkoutRequestID string) (Outcome, error)
}

// Validation errors, rejected before any network call.
var (
	ErrInvalidAmount      = errors.New("amount must be at least 1")
	ErrInvalidPhoneNumber = errors.New("invalid phone number: must be a valid Safaricom number")
)

// AuthError means the gateway rejected our credentials or returned no token.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("daraja auth failed: status=%d body=%s", e.StatusCode, e.Body)
}

// InitiationError means the gateway rejected the push request itself.
type InitiationError struct {
	StatusCode int
	Message    string
}

func (e *InitiationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("stk push rejected: %s", e.Message)
	}
	return fmt.Sprintf("stk push rejected: status=%d", e.StatusCode)
}
