package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/handler"
	"github.com/coinpilot/exchange-ledger/internal/transport/httpapi/middleware"
	"github.com/coinpilot/exchange-ledger/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger            *logger.Logger
	AllowedOrigins    []string
	HealthHandler     *handler.HealthHandler
	LedgerHandler     *handler.LedgerHandler
	WithdrawalHandler *handler.WithdrawalHandler
	EscrowHandler     *handler.EscrowHandler
	YieldHandler      *handler.YieldHandler
	AssetHandler      *handler.AssetHandler
	RewardsHandler    *handler.RewardsHandler
	JWTMiddleware     func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit()) // Rate limiting: 100 req/s with burst of 20

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
		r.Get("/health/detailed", cfg.HealthHandler.GetHealthDetailed)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Protected routes (require JWT authentication)
		if cfg.JWTMiddleware != nil {
			r.Group(func(r chi.Router) {
				r.Use(cfg.JWTMiddleware)

				// Balance and statement routes
				if cfg.LedgerHandler != nil {
					r.Get("/balances", cfg.LedgerHandler.GetBalances)
					r.Get("/accounts/{id}/lines", cfg.LedgerHandler.GetAccountLines)
				}

				// Withdrawal routes
				if cfg.WithdrawalHandler != nil {
					r.Post("/withdrawals", cfg.WithdrawalHandler.CreateWithdrawal)
					r.Get("/withdrawals", cfg.WithdrawalHandler.GetWithdrawals)
					r.Get("/withdrawals/{id}", cfg.WithdrawalHandler.GetWithdrawal)
				}

				// Escrow routes
				if cfg.EscrowHandler != nil {
					r.Post("/escrow/orders", cfg.EscrowHandler.CreateOrder)
					r.Get("/escrow/orders", cfg.EscrowHandler.GetOrders)
				}

				// Yield routes
				if cfg.YieldHandler != nil {
					r.Post("/yield/positions", cfg.YieldHandler.Subscribe)
					r.Get("/yield/positions", cfg.YieldHandler.GetPositions)
					r.Post("/yield/positions/{id}/redeem", cfg.YieldHandler.Redeem)
				}

				// Asset registry (read-only for users)
				if cfg.AssetHandler != nil {
					r.Get("/assets", cfg.AssetHandler.ListAssets)
					r.Get("/assets/{id}", cfg.AssetHandler.GetAsset)
				}

				// Rewards
				if cfg.RewardsHandler != nil {
					r.Get("/rewards/campaigns/{id}/total", cfg.RewardsHandler.GetCampaignTotal)
				}

				// Back-office routes
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireAdmin)

					if cfg.WithdrawalHandler != nil {
						r.Post("/withdrawals/{id}/review", cfg.WithdrawalHandler.MarkReviewed)
						r.Post("/withdrawals/{id}/approve", cfg.WithdrawalHandler.Approve)
						r.Post("/withdrawals/{id}/reject", cfg.WithdrawalHandler.Reject)
						r.Post("/withdrawals/{id}/broadcast", cfg.WithdrawalHandler.Broadcast)
						r.Post("/withdrawals/{id}/confirm", cfg.WithdrawalHandler.Confirm)
					}

					if cfg.EscrowHandler != nil {
						r.Post("/escrow/orders/{id}/release", cfg.EscrowHandler.ReleaseOrder)
						r.Post("/escrow/orders/{id}/cancel", cfg.EscrowHandler.CancelOrder)
					}

					if cfg.AssetHandler != nil {
						r.Post("/assets", cfg.AssetHandler.CreateAsset)
						r.Put("/assets/{id}", cfg.AssetHandler.UpdateAsset)
					}

					if cfg.RewardsHandler != nil {
						r.Post("/rewards/grants", cfg.RewardsHandler.CreateGrant)
					}
				})
			})
		}
	})

	return r
}
