package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"staypay/internal/app/policies"
	domainpayments "staypay/internal/domain/payments"
)

// Gateway is an in-process stand-in for the payment provider. Initialization
// always succeeds unless a failure is queued; verification reports the verdict
// set for the reference, falling back to Default.
type Gateway struct {
	CheckoutBase string
	Default      domainpayments.RemoteStatus
	Logger       *slog.Logger

	mu        sync.Mutex
	known     map[domainpayments.Reference]bool
	verdicts  map[domainpayments.Reference]domainpayments.RemoteStatus
	initFails []error
	verFails  map[domainpayments.Reference][]error
	calls     map[string]int
}

func New(checkoutBase string) *Gateway {
	return &Gateway{CheckoutBase: checkoutBase, Default: domainpayments.RemoteSuccess}
}

// SetVerdict fixes the verdict returned for ref.
func (g *Gateway) SetVerdict(ref domainpayments.Reference, status domainpayments.RemoteStatus) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verdicts == nil {
		g.verdicts = make(map[domainpayments.Reference]domainpayments.RemoteStatus)
	}
	g.verdicts[ref] = status
}

// FailInitialize makes the next initialization return err.
func (g *Gateway) FailInitialize(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.initFails = append(g.initFails, err)
}

// FailVerify makes the next verification of ref return err.
func (g *Gateway) FailVerify(ref domainpayments.Reference, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verFails == nil {
		g.verFails = make(map[domainpayments.Reference][]error)
	}
	g.verFails[ref] = append(g.verFails[ref], err)
}

// Calls reports how many times op ("initialize" or "verify") was invoked.
func (g *Gateway) Calls(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *Gateway) InitializeTransaction(ctx context.Context, req policies.InitializeRequest) (policies.InitializeResult, error) {
	if err := ctx.Err(); err != nil {
		return policies.InitializeResult{}, &policies.GatewayError{Kind: policies.GatewayNetworkFailure, Op: "initialize", Err: err}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count("initialize")
	if len(g.initFails) > 0 {
		err := g.initFails[0]
		g.initFails = g.initFails[1:]
		return policies.InitializeResult{}, err
	}
	if req.Amount.IsNegative() {
		return policies.InitializeResult{}, &policies.GatewayError{Kind: policies.GatewayRemoteRejected, Op: "initialize", Message: "amount must be positive"}
	}
	if g.known == nil {
		g.known = make(map[domainpayments.Reference]bool)
	}
	g.known[req.Reference] = true
	if g.Logger != nil {
		g.Logger.Info("sandbox checkout created", "tx_ref", req.Reference, "amount", req.Amount.String(), "currency", req.Amount.Currency)
	}
	return policies.InitializeResult{CheckoutURL: strings.TrimRight(g.checkoutBase(), "/") + "/" + string(req.Reference)}, nil
}

func (g *Gateway) VerifyTransaction(ctx context.Context, ref domainpayments.Reference) (policies.VerifyResult, error) {
	if err := ctx.Err(); err != nil {
		return policies.VerifyResult{}, &policies.GatewayError{Kind: policies.GatewayNetworkFailure, Op: "verify", Err: err}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count("verify")
	if queued := g.verFails[ref]; len(queued) > 0 {
		g.verFails[ref] = queued[1:]
		return policies.VerifyResult{}, queued[0]
	}
	status, ok := g.verdicts[ref]
	if !ok {
		if !g.known[ref] {
			return policies.VerifyResult{}, &policies.GatewayError{Kind: policies.GatewayRemoteRejected, Op: "verify", Message: "transaction not found"}
		}
		status = g.Default
	}
	raw := []byte(`{"status":"success","data":{"status":"` + string(status) + `","tx_ref":"` + string(ref) + `"}}`)
	return policies.VerifyResult{RemoteStatus: status, Raw: raw}, nil
}

func (g *Gateway) count(op string) {
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[op]++
}

func (g *Gateway) checkoutBase() string {
	if g.CheckoutBase == "" {
		return "https://sandbox.invalid/checkout"
	}
	return g.CheckoutBase
}

// ErrUnreachable is a ready-made network failure for scripting outages.
var ErrUnreachable error = &policies.GatewayError{Kind: policies.GatewayNetworkFailure, Message: "sandbox unreachable", Err: errors.New("connection refused")}

var _ policies.PaymentGateway = (*Gateway)(nil)
