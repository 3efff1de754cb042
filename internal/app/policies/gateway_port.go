package policies

import (
	"context"
	"fmt"

	domainpayments "staypay/internal/domain/payments"
	"staypay/internal/domain/shared/money"
)

// PayerInfo identifies who pays; it is passed explicitly on every call.
type PayerInfo struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

type InitializeRequest struct {
	Reference   domainpayments.Reference
	Amount      money.Money
	Payer       PayerInfo
	CallbackURL string
	ReturnURL   string
	Title       string
	Description string
}

type InitializeResult struct {
	CheckoutURL string
}

type VerifyResult struct {
	RemoteStatus domainpayments.RemoteStatus
	// Raw is the undecoded gateway response kept for the receipt archive.
	Raw []byte
}

// PaymentGateway is the outbound protocol adapter to the payment provider. It
// never touches local state.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	VerifyTransaction(ctx context.Context, ref domainpayments.Reference) (VerifyResult, error)
}

type GatewayErrorKind string

const (
	GatewayNetworkFailure    GatewayErrorKind = "network_failure"
	GatewayMalformedResponse GatewayErrorKind = "malformed_response"
	GatewayRemoteRejected    GatewayErrorKind = "remote_rejected"
)

type GatewayError struct {
	Kind    GatewayErrorKind
	Op      string
	Message string
	Err     error
}

var (
	ErrNetworkFailure    = &GatewayError{Kind: GatewayNetworkFailure}
	ErrMalformedResponse = &GatewayError{Kind: GatewayMalformedResponse}
	ErrRemoteRejected    = &GatewayError{Kind: GatewayRemoteRejected}
)

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("gateway: %s", e.Kind)
	if e.Op != "" {
		msg = fmt.Sprintf("gateway %s: %s", e.Op, e.Kind)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Is matches any GatewayError of the same kind.
func (e *GatewayError) Is(target error) bool {
	t, ok := target.(*GatewayError)
	return ok && t.Kind == e.Kind
}

// Temporary reports whether retrying the whole call may succeed.
func (e *GatewayError) Temporary() bool {
	return e.Kind == GatewayNetworkFailure
}
