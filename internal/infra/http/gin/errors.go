package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingapp "staypay/internal/app/handlers/booking"
	listingapp "staypay/internal/app/handlers/listings"
	paymentsapp "staypay/internal/app/handlers/payments"
	reviewsapp "staypay/internal/app/handlers/reviews"
	"staypay/internal/app/policies"
	"staypay/internal/app/uow"
	domainbooking "staypay/internal/domain/booking"
	domainlistings "staypay/internal/domain/listings"
	domainreviews "staypay/internal/domain/reviews"
	"staypay/internal/domain/shared/money"
	"staypay/internal/infra/validation"
)

// statusFor maps application errors onto HTTP status codes. Anything it does
// not recognise is a server fault.
func statusFor(err error) int {
	var verr *domainbooking.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, validation.ErrInvalid),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrTooPrecise),
		errors.Is(err, money.ErrOverflow),
		errors.Is(err, domainlistings.ErrTitleRequired),
		errors.Is(err, domainlistings.ErrLocationRequired),
		errors.Is(err, domainlistings.ErrNightlyRate),
		errors.Is(err, domainreviews.ErrInvalidRating),
		errors.Is(err, paymentsapp.ErrReferenceRequired),
		errors.Is(err, paymentsapp.ErrPayerRequired),
		errors.Is(err, paymentsapp.ErrInitiationFailed),
		errors.Is(err, paymentsapp.ErrPaymentAlreadyInitiated):
		return http.StatusBadRequest
	case errors.Is(err, policies.ErrIdentityRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domainbooking.ErrUnauthorized),
		errors.Is(err, domainlistings.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, domainbooking.ErrIllegalTransition),
		errors.Is(err, domainbooking.ErrConcurrentUpdate),
		errors.Is(err, domainreviews.ErrDuplicateReview),
		errors.Is(err, paymentsapp.ErrPaymentConflict):
		return http.StatusConflict
	case errors.Is(err, bookingapp.ErrBookingNotFound),
		errors.Is(err, bookingapp.ErrListingNotFound),
		errors.Is(err, paymentsapp.ErrBookingNotFound),
		errors.Is(err, paymentsapp.ErrPaymentNotFound),
		errors.Is(err, listingapp.ErrListingNotFound),
		errors.Is(err, reviewsapp.ErrListingNotFound):
		return http.StatusNotFound
	case errors.Is(err, paymentsapp.ErrGatewayUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, uow.ErrUnitOfWorkMissing):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway {
		msg = http.StatusText(status)
	}
	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": msg})
}

func respondUnavailable(c *gin.Context, what string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": what + " unavailable"})
}
