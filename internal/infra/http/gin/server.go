package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"staypay/internal/infra/config"
	"staypay/internal/infra/obs"
)

type PaymentHTTP interface {
	Initiate(c *gin.Context)
	Verify(c *gin.Context)
	Webhook(c *gin.Context)
	Get(c *gin.Context)
	ListByBooking(c *gin.Context)
}

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Confirm(c *gin.Context)
	Cancel(c *gin.Context)
}

type ListingHTTP interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Create(c *gin.Context)
	Update(c *gin.Context)
}

type ReviewsHTTP interface {
	Submit(c *gin.Context)
	ListByListing(c *gin.Context)
}

type Handlers struct {
	Payment PaymentHTTP
	Booking BookingHTTP
	Listing ListingHTTP
	Reviews ReviewsHTTP
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewRouter builds the routing tree without touching the global gin mode.
func NewRouter(obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	router.Use(IdentityHeaders())

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	if h.Payment != nil {
		pay := router.Group("/payment")
		pay.POST("/initiate", h.Payment.Initiate)
		pay.GET("/verify", h.Payment.Verify)
		pay.POST("/webhook", h.Payment.Webhook)
		pay.GET("/:tx_ref", h.Payment.Get)
		router.GET("/bookings/:id/payments", h.Payment.ListByBooking)
	}
	if h.Booking != nil {
		router.POST("/bookings", h.Booking.Create)
		router.GET("/bookings", h.Booking.List)
		router.GET("/bookings/:id", h.Booking.Get)
		router.POST("/bookings/:id/confirm", h.Booking.Confirm)
		router.POST("/bookings/:id/cancel", h.Booking.Cancel)
	}
	if h.Listing != nil {
		router.GET("/listings", h.Listing.List)
		router.POST("/listings", h.Listing.Create)
		router.GET("/listings/:id", h.Listing.Get)
		router.PATCH("/listings/:id", h.Listing.Update)
	}
	if h.Reviews != nil {
		router.GET("/listings/:id/reviews", h.Reviews.ListByListing)
		router.POST("/listings/:id/reviews", h.Reviews.Submit)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
