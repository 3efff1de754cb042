package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"staypay/internal/app/commands"
	bookingapp "staypay/internal/app/handlers/booking"
	listingapp "staypay/internal/app/handlers/listings"
	paymentsapp "staypay/internal/app/handlers/payments"
	reviewsapp "staypay/internal/app/handlers/reviews"
	"staypay/internal/app/middleware"
	appoutbox "staypay/internal/app/outbox"
	"staypay/internal/app/policies"
	"staypay/internal/app/queries"
	"staypay/internal/app/uow"
	domainlistings "staypay/internal/domain/listings"
	"staypay/internal/infra/broker/kafka"
	rediscache "staypay/internal/infra/cache/redis"
	"staypay/internal/infra/config"
	mongodb "staypay/internal/infra/db/mongo"
	"staypay/internal/infra/gateway/chapa"
	"staypay/internal/infra/gateway/sandbox"
	ginserver "staypay/internal/infra/http/gin"
	"staypay/internal/infra/inbox"
	"staypay/internal/infra/obs"
	outboxrelay "staypay/internal/infra/outbox"
	"staypay/internal/infra/security"
	"staypay/internal/infra/storage/memory"
	"staypay/internal/infra/storage/s3"
	"staypay/internal/infra/validation"
)

// relayOutbox is an outbox the relay worker can drain.
type relayOutbox interface {
	appoutbox.Outbox
	appoutbox.Store
	Wake() <-chan struct{}
}

type application struct {
	handlers ginserver.Handlers
	health   obs.HealthHandlers
	commands commands.Bus
	relay    *outboxrelay.Worker
	replay   *kafka.Consumer
	closers  []func()
}

type storage struct {
	factory     uow.UoWFactory
	listings    domainlistings.ListingRepository
	outbox      relayOutbox
	idempotency middleware.IdempotencyStore
	inbox       kafka.Inbox
}

func buildApplication(ctx context.Context, cfg config.Config, logger *slog.Logger) (*application, error) {
	app := &application{health: obs.HealthHandlers{Checks: map[string]obs.ReadinessCheck{}, Timeout: 2 * time.Second}}
	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	store, err := app.openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var locker policies.Locker = memory.NewKeyedLocker()
	if cfg.RedisAddr != "" {
		client, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = client.Close() })
		app.health.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		locker = &rediscache.Locker{Client: client, Prefix: "staypay:lock:", TTL: cfg.LockTTL, Logger: logger.With("component", "locker")}
		store.idempotency = rediscache.NewIdempotencyStore(client, cfg.IdempotencyTTL)
		logger.Info("redis enabled for locks and idempotency", "addr", cfg.RedisAddr)
	}

	var receipts policies.ReceiptArchive
	if cfg.S3Endpoint != "" {
		archive, err := s3.NewReceiptArchive(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, logger.With("component", "receipts"))
		if err != nil {
			return nil, fmt.Errorf("receipt archive: %w", err)
		}
		app.health.Checks["s3"] = archive.Ping
		receipts = archive
	}

	gateway := newGateway(cfg, logger.With("component", "gateway"))
	encoder := appoutbox.JSONEventEncoder{}
	gatewayLog := logger.With("component", "payments")

	rawCommands := commands.NewInMemoryBus()
	commands.RegisterHandler(rawCommands, listingapp.CreateHostListingCommand{}.Key(), &listingapp.CreateHostListingHandler{
		Currency: cfg.Currency, Outbox: store.outbox, Encoder: encoder, Logger: logger,
	})
	commands.RegisterHandler(rawCommands, listingapp.UpdateHostListingCommand{}.Key(), &listingapp.UpdateHostListingHandler{
		Outbox: store.outbox, Encoder: encoder, Logger: logger,
	})
	commands.RegisterHandler(rawCommands, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: store.factory, Logger: logger,
	})
	commands.RegisterHandler(rawCommands, bookingapp.TransitionBookingCommand{}.Key(), &bookingapp.TransitionBookingHandler{
		UoWFactory: store.factory, Policy: bookingapp.ListingHostPolicy{Listings: store.listings}, Logger: logger,
	})
	commands.RegisterHandler(rawCommands, reviewsapp.SubmitReviewCommand{}.Key(), &reviewsapp.SubmitReviewHandler{
		UoWFactory: store.factory, Outbox: store.outbox, Encoder: encoder, Logger: logger,
	})
	commands.RegisterHandler(rawCommands, paymentsapp.InitiatePaymentCommand{}.Key(), &paymentsapp.InitiatePaymentHandler{
		UoWFactory:  store.factory,
		Gateway:     gateway,
		Locker:      locker,
		Outbox:      store.outbox,
		Encoder:     encoder,
		CallbackURL: cfg.PaymentCallbackURL,
		ReturnURL:   cfg.PaymentReturnURL,
		Title:       cfg.PaymentTitle,
		Logger:      gatewayLog,
	})
	verifier := &paymentsapp.VerifyPaymentHandler{
		UoWFactory: store.factory,
		Gateway:    gateway,
		Locker:     locker,
		Receipts:   receipts,
		Outbox:     store.outbox,
		Encoder:    encoder,
		Logger:     gatewayLog,
	}
	commands.RegisterHandler(rawCommands, paymentsapp.VerifyPaymentCommand{}.Key(), verifier)
	commands.RegisterHandler(rawCommands, paymentsapp.ReconcilePendingCommand{}.Key(), &paymentsapp.ReconcilePendingHandler{
		UoWFactory: store.factory, Verifier: verifier, Logger: gatewayLog,
	})

	rawQueries := queries.NewInMemoryBus()
	queries.RegisterHandler(rawQueries, listingapp.GetListingQuery{}.Key(), &listingapp.GetListingHandler{UoWFactory: store.factory})
	queries.RegisterHandler(rawQueries, listingapp.ListListingsQuery{}.Key(), &listingapp.ListListingsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(rawQueries, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{UoWFactory: store.factory})
	queries.RegisterHandler(rawQueries, bookingapp.ListGuestBookingsQuery{}.Key(), &bookingapp.ListGuestBookingsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(rawQueries, paymentsapp.GetPaymentQuery{}.Key(), &paymentsapp.GetPaymentHandler{UoWFactory: store.factory})
	queries.RegisterHandler(rawQueries, paymentsapp.ListBookingPaymentsQuery{}.Key(), &paymentsapp.ListBookingPaymentsHandler{UoWFactory: store.factory})
	queries.RegisterHandler(rawQueries, reviewsapp.ListListingReviewsQuery{}.Key(), &reviewsapp.ListListingReviewsHandler{UoWFactory: store.factory, Logger: logger})

	validator := validation.New()
	replayable := paymentsapp.ReplayableErrors()
	authorizer := policies.IdentityAuthorizer{}
	commandBus := middleware.ChainCommands(
		rawCommands,
		middleware.Logging(logger.With("component", "commands")),
		middleware.Validation(validator),
		middleware.Authorization(authorizer),
		middleware.Idempotency(store.idempotency, nil, replayable...),
		middleware.OutboxFlush(store.outbox),
		middleware.Transaction(store.factory, nil),
	)
	queryBus := middleware.ChainQueries(
		rawQueries,
		middleware.QueryValidation(validator),
		middleware.QueryAuthorization(authorizer),
	)
	app.commands = commandBus
	logger.Debug("command handlers registered", "keys", rawCommands.Keys())

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return nil, fmt.Errorf("kafka producer: %w", err)
		}
		app.closers = append(app.closers, func() { _ = producer.Close() })
		hostname, _ := os.Hostname()
		app.relay = &outboxrelay.Worker{
			Store:       store.outbox,
			Producer:    producer,
			Wake:        store.outbox.Wake(),
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Source:      "staypay",
			ID:          hostname,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger.With("component", "outbox"),
		}

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.VerifyReplayHandler{
			Commands: commandBus,
			Inbox:    store.inbox,
			Logger:   logger.With("component", "replay"),
		}, logger.With("component", "kafka"))
		if err != nil {
			return nil, fmt.Errorf("kafka consumer: %w", err)
		}
		app.closers = append(app.closers, func() { _ = consumer.Close() })
		app.replay = consumer
	}

	app.handlers = ginserver.Handlers{
		Payment: ginserver.PaymentHandler{
			Commands:        commandBus,
			Queries:         queryBus,
			WebhookVerifier: security.WebhookVerifier{Secret: cfg.ChapaWebhookSecret},
			Logger:          gatewayLog,
		},
		Booking: ginserver.BookingHandler{Commands: commandBus, Queries: queryBus, Logger: logger},
		Listing: ginserver.ListingHandler{Commands: commandBus, Queries: queryBus, Logger: logger},
		Reviews: ginserver.ReviewsHandler{Commands: commandBus, Queries: queryBus, Logger: logger},
	}
	ok = true
	return app, nil
}

func (a *application) openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (*storage, error) {
	if cfg.StorageDriver != config.StorageMongo {
		listings := memory.NewListingRepository()
		box := memory.NewOutbox()
		return &storage{
			factory: memory.Factory{
				ListingsRepo: listings,
				BookingRepo:  memory.NewBookingRepository(),
				PaymentsRepo: memory.NewPaymentRepository(),
				ReviewsRepo:  memory.NewReviewsRepository(),
				Outbox:       box,
			},
			listings:    listings,
			outbox:      box,
			idempotency: memory.NewIdempotencyStore(cfg.IdempotencyTTL),
			inbox:       memory.NewInbox(),
		}, nil
	}

	client, err := mongodb.New(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	a.closers = append(a.closers, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	})
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("mongo indexes: %w", err)
	}
	a.health.Checks["mongo"] = client.Ping

	factory := mongodb.NewFactory(client.DB)
	box, err := outboxrelay.NewStore(ctx, client.DB)
	if err != nil {
		return nil, fmt.Errorf("outbox store: %w", err)
	}
	idem, err := mongodb.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("idempotency store: %w", err)
	}
	seen, err := inbox.NewStore(ctx, client.DB, cfg.KafkaGroupID)
	if err != nil {
		return nil, fmt.Errorf("inbox store: %w", err)
	}
	logger.Info("mongo storage ready", "database", cfg.MongoDB)
	return &storage{
		factory:     factory,
		listings:    factory.ListingsRepo,
		outbox:      box,
		idempotency: idem,
		inbox:       seen,
	}, nil
}

func newGateway(cfg config.Config, logger *slog.Logger) policies.PaymentGateway {
	if cfg.GatewayMode == config.GatewayChapa {
		return &chapa.Client{
			BaseURL:   cfg.ChapaBaseURL,
			SecretKey: cfg.ChapaSecretKey,
			Timeout:   cfg.GatewayTimeout,
			Logger:    logger,
		}
	}
	logger.Warn("sandbox payment gateway in use, every checkout succeeds")
	gw := sandbox.New(cfg.PaymentReturnURL + "sandbox-checkout")
	gw.Logger = logger
	return gw
}

func (a *application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
