package apiapp

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/GK-FY/bulk/internal/config"
	"github.com/GK-FY/bulk/internal/infra/metrics"
	"github.com/GK-FY/bulk/internal/services/auth"
	"github.com/GK-FY/bulk/internal/transport/http/handlers"
)

type Dependencies struct {
	Settler      handlers.CallbackSettler
	Settings     handlers.SettingsEditor
	Accounts     handlers.AccountReader
	Transactions handlers.TransactionReader
	HealthChecks map[string]handlers.HealthCheck
	Metrics      *metrics.Metrics
	Logger       *zap.Logger
	Config       config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler(deps.HealthChecks)
	paymentHandler := handlers.NewPaymentHandler(deps.Settler, deps.Logger)
	adminHandler := handlers.NewAdminHandler(deps.Settings, deps.Accounts, deps.Transactions, deps.Logger)

	r.Get("/healthz", healthHandler.Handle)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.With(APIKeyMiddleware(deps.Config.API.CallbackKey, nil, deps.Logger)).
			Post("/payments/callback", paymentHandler.Callback)

		api.Route("/admin", func(admin chi.Router) {
			admin.Use(CORSMiddleware(deps.Config.API.CORSOrigins))

			var tokens TokenVerifier
			if secret := deps.Config.API.JWTSecret; secret != "" {
				issuer := auth.NewTokenIssuer(secret, deps.Config.API.TokenTTL)
				tokens = issuer
				admin.With(APIKeyMiddleware(deps.Config.API.APIKey, nil, deps.Logger)).
					Post("/token", handlers.NewTokenHandler(issuer, deps.Logger).Issue)
			}

			admin.Group(func(protected chi.Router) {
				protected.Use(APIKeyMiddleware(deps.Config.API.APIKey, tokens, deps.Logger))

				protected.Get("/settings", adminHandler.Settings)
				protected.Put("/settings/{key}", adminHandler.UpdateSetting)
				protected.Get("/accounts", adminHandler.Accounts)
				protected.Get("/accounts/{id}", adminHandler.Account)
				protected.Get("/transactions", adminHandler.Transactions)
			})
		})
	})
}
