package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"

	"github.com/realtravo/realtravo-sub000/internal/http/handlers"
	"github.com/realtravo/realtravo-sub000/internal/http/middleware"
)

// Deps collects everything the router mounts.
type Deps struct {
	Logger      *slog.Logger
	TokenParser middleware.TokenParser
	NewRelic    *newrelic.Application // optional

	Auth      *handlers.AuthHandlers
	Payments  *handlers.PaymentHandlers
	Callbacks *handlers.CallbackHandlers
	Webhooks  *handlers.WebhookHandler
	Payouts   *handlers.PayoutHandlers
	Account   *handlers.AccountHandlers
	Settings  *handlers.SettingsHandlers
	Reports   *handlers.ReportHandlers
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()

	if d.NewRelic != nil {
		r.Use(nrgin.Middleware(d.NewRelic))
	}

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.ErrorHandler(d.Logger))
	r.Use(middleware.Authenticate(d.TokenParser))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Gateway-facing endpoints: no auth, signature or reference checked inside.
	r.POST("/webhooks/paystack", d.Webhooks.Paystack)

	api := r.Group("/api")
	{
		api.POST("/auth/register", d.Auth.Register)
		api.POST("/auth/login", d.Auth.Login)

		// Guests can pay without an account.
		api.POST("/payments/mpesa/initiate", d.Payments.InitiateSTK)
		api.POST("/payments/mpesa/callback", d.Callbacks.MpesaCallback)
		api.POST("/payments/card/initiate", d.Payments.InitiateCard)
		api.POST("/payments/card/verify", d.Callbacks.VerifyCard)
		api.POST("/payments/free", d.Payments.CreateFree)
		api.GET("/payments/:reference/status", d.Payments.Status)

		authed := api.Group("")
		authed.Use(middleware.RequireAuth())
		{
			authed.GET("/account/me", d.Account.Me)
			authed.PUT("/account/bank-details", d.Account.UpdateBankDetails)

			// Action dispatch: process_scheduled requires admin (checked in
			// the handler), withdraw acts on the caller's own balance.
			authed.POST("/payouts", d.Payouts.Action)
			authed.GET("/payouts/balance", d.Payouts.Balance)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/referral-settings", d.Settings.Get)
			admin.PUT("/referral-settings", d.Settings.Update)
			admin.POST("/users/:id/verify-bank", d.Account.VerifyBank)
			admin.POST("/payouts/reconcile", d.Payouts.Reconcile)
			admin.GET("/reports/settlements", d.Reports.Settlements)
		}
	}

	return r
}
