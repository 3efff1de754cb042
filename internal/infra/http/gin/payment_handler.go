package ginserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staypay/internal/app/commands"
	"staypay/internal/app/dto"
	paymentsapp "staypay/internal/app/handlers/payments"
	"staypay/internal/app/queries"
	domainpayments "staypay/internal/domain/payments"
	"staypay/internal/infra/security"
)

const maxWebhookBodyBytes int64 = 1 << 20

type PaymentHandler struct {
	Commands        commands.Bus
	Queries         queries.Bus
	WebhookVerifier security.WebhookVerifier
	Logger          *slog.Logger
}

type initiatePaymentRequest struct {
	BookingID      string `json:"bookingId"`
	BookingIDSnake string `json:"booking_id"`
}

func (r initiatePaymentRequest) bookingID() string {
	if id := strings.TrimSpace(r.BookingID); id != "" {
		return id
	}
	return strings.TrimSpace(r.BookingIDSnake)
}

func (h PaymentHandler) Initiate(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Commands == nil {
		respondUnavailable(c, "commands")
		return
	}
	var req initiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.bookingID() == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bookingId is required"})
		return
	}
	cmd := paymentsapp.InitiatePaymentCommand{
		BookingID:       req.bookingID(),
		Payer:           user.Payer(),
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	res, err := commands.Dispatch[paymentsapp.InitiatePaymentCommand, *paymentsapp.InitiatePaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"checkoutUrl":          res.CheckoutURL,
		"transactionReference": res.Reference,
		"paymentId":            res.PaymentID,
		"amount":               res.Amount,
		"currency":             res.Currency,
	})
}

// Verify is the gateway callback and return-URL target. It needs no identity.
func (h PaymentHandler) Verify(c *gin.Context) {
	ref := strings.TrimSpace(c.Query("tx_ref"))
	if ref == "" {
		ref = strings.TrimSpace(c.Query("trx_ref"))
	}
	if ref == "" {
		respondError(c, h.Logger, paymentsapp.ErrReferenceRequired)
		return
	}
	res, ok := h.verify(c, ref, paymentsapp.SourceCallback)
	if !ok {
		return
	}
	if res.Status != string(domainpayments.StatusCompleted) {
		c.JSON(http.StatusBadRequest, gin.H{"error": res.Message, "status": res.Status, "transactionReference": res.Reference})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message, "status": res.Status, "transactionReference": res.Reference})
}

type webhookPayload struct {
	TxRef  string `json:"tx_ref"`
	TrxRef string `json:"trx_ref"`
	Status string `json:"status"`
}

// Webhook accepts gateway push notifications. The body is only a hint: the
// outcome always comes from a fresh verify call.
func (h PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}
	if err := h.WebhookVerifier.Verify(body, c.GetHeader("Chapa-Signature"), c.GetHeader("x-chapa-signature")); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("webhook rejected", "error", err)
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook body"})
		return
	}
	ref := strings.TrimSpace(payload.TxRef)
	if ref == "" {
		ref = strings.TrimSpace(payload.TrxRef)
	}
	if ref == "" {
		respondError(c, h.Logger, paymentsapp.ErrReferenceRequired)
		return
	}
	res, ok := h.verify(c, ref, paymentsapp.SourceWebhook)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Status, "transactionReference": res.Reference})
}

func (h PaymentHandler) verify(c *gin.Context, ref, source string) (*paymentsapp.VerifyPaymentResult, bool) {
	if h.Commands == nil {
		respondUnavailable(c, "commands")
		return nil, false
	}
	cmd := paymentsapp.VerifyPaymentCommand{Reference: ref, Source: source}
	res, err := commands.Dispatch[paymentsapp.VerifyPaymentCommand, *paymentsapp.VerifyPaymentResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return nil, false
	}
	if res == nil {
		respondError(c, h.Logger, errors.New("payments: empty verification result"))
		return nil, false
	}
	return res, true
}

// Get returns the stored payment without contacting the gateway.
func (h PaymentHandler) Get(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries")
		return
	}
	query := paymentsapp.GetPaymentQuery{Reference: c.Param("tx_ref"), RequesterID: user.ID}
	res, err := queries.Ask[paymentsapp.GetPaymentQuery, dto.Payment](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h PaymentHandler) ListByBooking(c *gin.Context) {
	user, ok := requireRole(c, "")
	if !ok {
		return
	}
	if h.Queries == nil {
		respondUnavailable(c, "queries")
		return
	}
	query := paymentsapp.ListBookingPaymentsQuery{BookingID: c.Param("id"), RequesterID: user.ID}
	res, err := queries.Ask[paymentsapp.ListBookingPaymentsQuery, dto.PaymentCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

var _ PaymentHTTP = PaymentHandler{}
