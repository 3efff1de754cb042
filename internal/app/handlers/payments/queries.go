package payments

import (
	"context"
	"errors"
	"strings"

	"staypay/internal/app/dto"
	handlersupport "staypay/internal/app/handlers/support"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainpayments "staypay/internal/domain/payments"
)

const (
	getPaymentKey          = "payments.get"
	listBookingPaymentsKey = "payments.list_by_booking"
)

type GetPaymentQuery struct {
	Reference   string
	RequesterID string
}

func (q GetPaymentQuery) Key() string { return getPaymentKey }

func (q GetPaymentQuery) Requester() string { return q.RequesterID }

type GetPaymentHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle returns the local record to the payer; other callers see ErrPaymentNotFound.
func (h *GetPaymentHandler) Handle(ctx context.Context, q GetPaymentQuery) (dto.Payment, error) {
	ref := strings.TrimSpace(q.Reference)
	if ref == "" {
		return dto.Payment{}, ErrReferenceRequired
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Payment{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	payment, err := unit.Payments().ByReference(execCtx, domainpayments.Reference(ref))
	if err != nil {
		if errors.Is(err, domainpayments.ErrNotFound) {
			return dto.Payment{}, ErrPaymentNotFound
		}
		return dto.Payment{}, err
	}
	if q.RequesterID == "" || payment.PayerID != q.RequesterID {
		return dto.Payment{}, ErrPaymentNotFound
	}
	return dto.MapPayment(payment), nil
}

type ListBookingPaymentsQuery struct {
	BookingID   string
	RequesterID string
}

func (q ListBookingPaymentsQuery) Key() string { return listBookingPaymentsKey }

func (q ListBookingPaymentsQuery) Requester() string { return q.RequesterID }

type ListBookingPaymentsHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListBookingPaymentsHandler) Handle(ctx context.Context, q ListBookingPaymentsQuery) (dto.PaymentCollection, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.PaymentCollection{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	booking, err := unit.Booking().ByID(execCtx, domainbooking.BookingID(strings.TrimSpace(q.BookingID)))
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			return dto.PaymentCollection{}, ErrBookingNotFound
		}
		return dto.PaymentCollection{}, err
	}
	if !booking.OwnedBy(q.RequesterID) {
		return dto.PaymentCollection{}, ErrBookingNotFound
	}
	list, err := unit.Payments().ListByBooking(execCtx, booking.ID)
	if err != nil {
		return dto.PaymentCollection{}, err
	}
	items := make([]dto.Payment, 0, len(list))
	for _, p := range list {
		items = append(items, dto.MapPayment(p))
	}
	return dto.PaymentCollection{Items: items}, nil
}

var _ queries.Handler[GetPaymentQuery, dto.Payment] = (*GetPaymentHandler)(nil)
var _ queries.Handler[ListBookingPaymentsQuery, dto.PaymentCollection] = (*ListBookingPaymentsHandler)(nil)
