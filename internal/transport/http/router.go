// Package httptransport is the thin HTTP layer. Handlers parse input, call a
// guard, delegate to a service and translate the result; no business logic
// lives here.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credara/internal/adminops"
	"credara/internal/guard"
	"credara/internal/identity"
	"credara/internal/onboarding"
	"credara/internal/platform/middleware"
	"credara/internal/unlock"
)

type Handler struct {
	identity   identity.Provider
	guard      *guard.Guard
	onboarding *onboarding.Service
	admin      *adminops.Service
	unlocks    *unlock.Service
	logger     *slog.Logger
	health     []HealthChecker
	seed       func(ctx context.Context) error
}

// EnableSeedEndpoint routes POST /admin/seed to fn. Dev mode only; never
// call this in production wiring.
func (h *Handler) EnableSeedEndpoint(fn func(ctx context.Context) error) {
	h.seed = fn
}

// HealthChecker reports the liveness of one backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

func NewHandler(
	provider identity.Provider,
	g *guard.Guard,
	onboardingSvc *onboarding.Service,
	adminSvc *adminops.Service,
	unlockSvc *unlock.Service,
	logger *slog.Logger,
	health ...HealthChecker,
) *Handler {
	return &Handler{
		identity:   provider,
		guard:      g,
		onboarding: onboardingSvc,
		admin:      adminSvc,
		unlocks:    unlockSvc,
		logger:     logger,
		health:     health,
	}
}

// NewRouter wires all endpoints. Authorization is not a routing concern:
// every protected handler calls its guard itself, so the middleware chain
// only carries request-scoped values.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.BearerToken)
	r.Use(middleware.RequestLogger(h.logger))

	r.Get("/healthz", h.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.handleSignUp)
		r.Post("/signin", h.handleSignIn)
		r.Post("/callback", h.handleAuthCallback)
		r.Post("/signout", h.handleSignOut)
		r.Post("/password", h.handleUpdatePassword)
		r.Post("/reset-password", h.handleResetPassword)
	})

	r.Post("/onboarding", h.handleCompleteOnboarding)
	r.Get("/me", h.handleMe)

	r.Route("/institution", func(r chi.Router) {
		r.Get("/search", h.handleSearchLookup)
		r.Post("/unlocks", h.handleUnlockReport)
		r.Get("/unlocks", h.handleUnlockedReports)
		r.Get("/reports/{targetID}", h.handleReportByTarget)
	})

	r.Route("/admin", func(r chi.Router) {
		if h.seed != nil {
			r.Post("/seed", h.handleSeed)
		}
		r.Get("/stats", h.handleAdminStats)
		r.Get("/audit-logs", h.handleAuditLogs)
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.handleListUsers)
			r.Route("/{userID}", func(r chi.Router) {
				r.Get("/", h.handleGetUser)
				r.Patch("/", h.handleUpdateProfileFields)
				r.Post("/verification", h.handleSetVerification)
				r.Post("/score", h.handleOverrideScore)
				r.Put("/notes", h.handleSetInternalNotes)
				r.Put("/trust-report", h.handleUpdateTrustReport)
				r.Post("/credits", h.handleAddCredits)
				r.Put("/subscription", h.handleUpdateSubscription)
			})
		})
	})

	return r
}
