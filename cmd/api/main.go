package main

import (
	"log"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/newrelic/go-agent/v3/newrelic"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/realtravo/realtravo-sub000/internal/config"
	"github.com/realtravo/realtravo-sub000/internal/gateway/mpesa"
	"github.com/realtravo/realtravo-sub000/internal/gateway/paystack"
	apphttp "github.com/realtravo/realtravo-sub000/internal/http"
	"github.com/realtravo/realtravo-sub000/internal/http/handlers"
	"github.com/realtravo/realtravo-sub000/internal/mailer"
	"github.com/realtravo/realtravo-sub000/internal/modules/bookings"
	"github.com/realtravo/realtravo-sub000/internal/modules/notifications"
	"github.com/realtravo/realtravo-sub000/internal/modules/payments"
	"github.com/realtravo/realtravo-sub000/internal/modules/payouts"
	"github.com/realtravo/realtravo-sub000/internal/modules/referrals"
	"github.com/realtravo/realtravo-sub000/internal/modules/reports"
	"github.com/realtravo/realtravo-sub000/internal/modules/users"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	var nrApp *newrelic.Application
	if cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
		)
		if err != nil {
			logger.Warn("new relic init failed", "err", err)
		}
	}

	// Gateways
	mpesaClient := mpesa.NewClient(cfg.Mpesa)
	paystackClient := paystack.NewClient(cfg.Paystack.BaseURL, cfg.Paystack.SecretKey)

	// Mailer
	var mailSvc mailer.Service
	if cfg.SMTP.Host != "" {
		mailSvc = mailer.NewSMTPMailer(cfg.SMTP)
	} else {
		logger.Warn("SMTP_HOST not set; email delivery disabled")
		mailSvc = &mailer.Mock{}
	}

	// Services
	usersSvc := users.NewService(db, cfg.JWTSecret, cfg.JWTTTL)
	scheduler := payouts.NewScheduler(db)

	notifySvc := notifications.NewService(mailSvc, cfg.SMTP.From, cfg.SMTP.FromName)
	dispatcher := bookings.NewDispatcher(
		referrals.NewCommissionHandler(),
		notifySvc,
	)
	materializer := bookings.NewMaterializer(scheduler, dispatcher)

	paymentsSvc := payments.NewService(db, mpesaClient, paystackClient, materializer)
	confirmSvc := payments.NewConfirmService(db, paystackClient, materializer)
	poller := payments.NewPoller(db, mpesaClient, confirmSvc, cfg.PollInterval, cfg.PollTimeout)

	processor := payouts.NewProcessor(db, paystackClient, cfg.PayoutBatchSize)
	withdrawSvc := payouts.NewWithdrawService(db, processor)
	reconciler := payouts.NewReconciler(db, paystackClient, cfg.PayoutStuckAfter)
	reconciler.SetNotifier(notifySvc)
	webhookSvc := payouts.NewWebhookService(db)
	webhookSvc.SetNotifier(notifySvc)

	reportsSvc := reports.NewService(db)

	r := apphttp.NewRouter(apphttp.Deps{
		Logger:      logger,
		TokenParser: usersSvc,
		NewRelic:    nrApp,

		Auth:      handlers.NewAuthHandlers(usersSvc),
		Payments:  handlers.NewPaymentHandlers(paymentsSvc, poller),
		Callbacks: handlers.NewCallbackHandlers(logger, confirmSvc),
		Webhooks:  handlers.NewWebhookHandler(logger, paystackClient, webhookSvc),
		Payouts:   handlers.NewPayoutHandlers(processor, withdrawSvc, reconciler),
		Account:   handlers.NewAccountHandlers(logger, usersSvc, scheduler),
		Settings:  handlers.NewSettingsHandlers(db),
		Reports:   handlers.NewReportHandlers(reportsSvc),
	})

	logger.Info("listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server: %v", err)
	}
}
