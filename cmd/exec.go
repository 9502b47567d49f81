package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"ticket-booking/config"
	"ticket-booking/internal/handlers"
	"ticket-booking/internal/inventory"
	"ticket-booking/internal/notify"
	"ticket-booking/internal/services"
	"ticket-booking/internal/services/gateway"
	"ticket-booking/internal/services/gateway/payos"
	"ticket-booking/internal/services/gateway/pos"
	"ticket-booking/internal/services/gateway/vietqr"
	"ticket-booking/internal/status"
	"ticket-booking/internal/store"
	"ticket-booking/internal/sweeper"
	"ticket-booking/models"
	"ticket-booking/monitoring"
	"ticket-booking/security"
	"ticket-booking/utils"

	_ "ticket-booking/migrations"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Payment gateways. A method that fails to initialize is left out of
	// the offered options instead of blocking startup.
	var providers []gateway.Provider

	vietqrProvider, err := vietqr.New(ctx, &vietqr.Config{
		BankBIN:       cfg.VietQR.BankBIN,
		AccountNumber: cfg.VietQR.AccountNumber,
		AccountName:   cfg.VietQR.AccountName,
		WebhookKey:    cfg.VietQR.WebhookKey,
		PNSubKey:      cfg.VietQR.PNSubKey,
		PNSecretKey:   cfg.VietQR.PNSecretKey,
		PNChannel:     cfg.VietQR.PNChannel,
		PNUUID:        cfg.VietQR.PNUUID,
	})
	if err != nil {
		slog.Warn("vietqr disabled", "error", err)
	} else {
		providers = append(providers, vietqrProvider)
	}

	payosProvider, err := payos.New(ctx, &payos.Config{
		BaseURL:     cfg.PayOS.BaseURL,
		ClientID:    cfg.PayOS.ClientID,
		APIKey:      cfg.PayOS.APIKey,
		ChecksumKey: cfg.PayOS.ChecksumKey,
		ReturnURL:   cfg.PayOS.ReturnURL,
		CancelURL:   cfg.PayOS.CancelURL,
	})
	if err != nil {
		slog.Warn("payos disabled", "error", err)
	} else {
		providers = append(providers, payosProvider)
	}

	var posProvider *pos.Provider
	if cfg.POSOperatorPINHash != "" {
		posProvider = pos.New(&pos.Config{OperatorPINHash: cfg.POSOperatorPINHash})
		providers = append(providers, posProvider)
	} else {
		slog.Warn("pos disabled: no operator pin configured")
	}

	// Notification sinks.
	sinks := []notify.Sink{}
	if cfg.PubNubPublishKey != "" {
		pnConfig := pubnub.NewConfig()
		pnConfig.PublishKey = cfg.PubNubPublishKey
		pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
		pnConfig.SecretKey = cfg.PubNubSecretKey
		sinks = append(sinks, notify.NewPubNubSink(pubnub.NewPubNub(pnConfig)))
	}
	var amqpSink *notify.AMQPSink
	if cfg.RabbitMQURL != "" {
		amqpSink = notify.NewAMQPSink(cfg.RabbitMQURL)
		defer amqpSink.Close()
		sinks = append(sinks, amqpSink)
	}

	var notifier services.Notifier = services.NopNotifier{}
	if len(sinks) > 0 {
		notifier = notify.NewFanOut(sinks...)
	}

	// Core services over the embedded database.
	st := store.NewStore(app)
	ledger := inventory.NewLedger(inventory.NewSQLCounterStore(app))
	reservations := services.NewReservationService(st, ledger, notifier, cfg.ReservationWindow)
	payments := services.NewPaymentService(redisClient, st, reservations, providers, cfg.ReservationWindow)

	// Bank transfers settle through the PubNub subscription as well as the
	// HTTP webhook; both funnel into the same notification path.
	if vietqrProvider != nil {
		txChannel := make(chan *status.Transaction, 16)
		vietqrProvider.SetTransactionChannel(txChannel)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-txChannel:
					slog.Info("bank transaction received", "reference", t.RefID)
					if err := payments.OnGatewayNotification(ctx, models.MethodVietQR, t.RefID, models.OutcomeSuccess); err != nil {
						slog.Error("bank transaction processing", "reference", t.RefID, "error", err)
					}
				}
			}
		}()
	}

	// Expired bookings are reclaimed in the background for as long as the
	// process lives.
	sw := sweeper.New(st, reservations, cfg.SweepInterval, cfg.SweepBatchSize)
	go sw.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(app, reservations, payments)
	paymentHandler := handlers.NewPaymentHandler(app, payments, vietqrProvider, payosProvider, posProvider)
	eventHandler := handlers.NewEventHandler(app, st)
	adminHandler := handlers.NewAdminHandler(app, ledger, sw)

	rateLimiter := security.NewRateLimiter(redisClient, cfg.ReserveRateLimit)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	if cfg.EnableMetrics {
		monitoring.NewMonitor(redisClient)
		go serveMetrics(cfg.MetricsPort)
	}

	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Booking endpoints
		e.Router.POST("/api/v1/booking/reserve", bookingHandler.Reserve).
			BindFunc(rateLimiter.AntiBot()).
			BindFunc(rateLimiter.ReserveLimit())
		e.Router.GET("/api/v1/booking/{bookingId}", bookingHandler.GetBooking)
		e.Router.POST("/api/v1/booking/{bookingId}/payment-options", bookingHandler.PaymentOptions)
		e.Router.POST("/api/v1/booking/{bookingId}/cancel", bookingHandler.Cancel)
		e.Router.GET("/api/v1/booking/history", bookingHandler.History)

		// Availability
		e.Router.GET("/api/v1/events/{eventId}/availability", eventHandler.Availability)

		// Payment endpoints
		e.Router.POST("/api/v1/payment/webhook/vietqr", paymentHandler.VietQRWebhook)
		e.Router.POST("/api/v1/payment/webhook/payos", paymentHandler.PayOSWebhook)
		e.Router.POST("/api/v1/payment/pos/confirm", paymentHandler.POSConfirm)
		e.Router.GET("/api/v1/payment/{method}/{reference}/status", paymentHandler.Status)

		// Admin endpoints
		e.Router.POST("/api/v1/admin/capacity", adminHandler.AdjustCapacity)
		e.Router.POST("/api/v1/admin/sweep", adminHandler.Sweep)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		slog.Error("metrics server", "error", err)
	}
}

func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutting down gracefully...")
	cancel()
}
