package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dezko/dezko-backend/api/controllers"
	bookingcontrollers "github.com/dezko/dezko-backend/api/controllers/bookings"
	connectcontrollers "github.com/dezko/dezko-backend/api/controllers/connect"
	plancontrollers "github.com/dezko/dezko-backend/api/controllers/plans"
	spacecontrollers "github.com/dezko/dezko-backend/api/controllers/spaces"
	subscriptioncontrollers "github.com/dezko/dezko-backend/api/controllers/subscriptions"
	webhookcontrollers "github.com/dezko/dezko-backend/api/controllers/webhooks"
	"github.com/dezko/dezko-backend/api/middleware"
	"github.com/dezko/dezko-backend/internal/agendas"
	"github.com/dezko/dezko-backend/internal/bookings"
	"github.com/dezko/dezko-backend/internal/gatewayconnect"
	"github.com/dezko/dezko-backend/internal/plans"
	"github.com/dezko/dezko-backend/internal/spaceconfig"
	"github.com/dezko/dezko-backend/internal/subscriptions"
	"github.com/dezko/dezko-backend/pkg/config"
	"github.com/dezko/dezko-backend/pkg/enums"
	"github.com/dezko/dezko-backend/pkg/logger"
	"github.com/dezko/dezko-backend/pkg/metrics"
	"github.com/dezko/dezko-backend/pkg/redis"
)

type sessionManager interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// cacheStore is the Redis surface used by the idempotency and rate limit middleware.
type cacheStore interface {
	redis.IdempotencyStore
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, gateway, eventID string) (bool, error)
	Release(ctx context.Context, gateway, eventID string) error
}

type signingSecretProvider interface {
	SigningSecret() string
}

// Dependencies are the collaborators mounted by NewRouter. Nil services
// produce handlers that answer 500.
type Dependencies struct {
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Cache    cacheStore
	Sessions sessionManager
	Metrics  http.Handler

	Bookings      bookings.Service
	Agendas       agendas.Service
	Plans         plans.Service
	SpaceConfig   spaceconfig.Service
	Subscriptions subscriptions.Service
	Connect       gatewayconnect.Service

	StripeWebhook  webhookcontrollers.StripeWebhookService
	StripeSigning  signingSecretProvider
	OpenPixWebhook webhookcontrollers.OpenPixWebhookService
	WebhookGuard   webhookGuard
	GatewayMetrics *metrics.GatewayMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	bookingCreatePolicy := middleware.NewRateLimitPolicy(
		"booking-create",
		cfg.Bookings.CreateWindow,
		cfg.Bookings.CreateLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readinessDeps(deps), logg))
	})
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhook, deps.StripeSigning, deps.WebhookGuard, deps.GatewayMetrics, logg))
		r.Post("/openpix", webhookcontrollers.OpenPixWebhook(deps.OpenPixWebhook, cfg.OpenPix.WebhookSecret, deps.WebhookGuard, deps.GatewayMetrics, logg))
	})

	r.Route("/api/v1/connect", func(r chi.Router) {
		r.Get("/stripe/callback", connectcontrollers.StripeCallback(deps.Connect, logg))
		r.Get("/mercadopago/callback", connectcontrollers.MercadoPagoCallback(deps.Connect, logg))
	})

	r.Get("/api/v1/plans", plancontrollers.List(deps.Plans, logg))

	// Authenticated routes are registered with full paths so the idempotency
	// middleware sees the complete route pattern.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(deps.Cache, logg))

		r.Post("/api/v1/auth/logout", controllers.AuthLogout(deps.Sessions, cfg.JWT, logg))

		r.With(middleware.RateLimit(bookingCreatePolicy, deps.Cache, logg)).Post("/api/v1/bookings", bookingcontrollers.Create(deps.Bookings, logg))
		r.Get("/api/v1/bookings", bookingcontrollers.List(deps.Bookings, logg))
		r.Get("/api/v1/bookings/{orderId}", bookingcontrollers.Detail(deps.Bookings, logg))
		r.Post("/api/v1/bookings/{orderId}/pay", bookingcontrollers.Pay(deps.Bookings, logg))
		r.Get("/api/v1/bookings/{orderId}/payment-status", bookingcontrollers.PaymentStatus(deps.Bookings, logg))
		r.Post("/api/v1/bookings/{orderId}/cancel", bookingcontrollers.Cancel(deps.Bookings, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSpaceOwner))

			r.Get("/api/v1/spaces/me/agendas", spacecontrollers.ListAgendas(deps.Agendas, logg))
			r.Post("/api/v1/spaces/me/agendas", spacecontrollers.CreateAgenda(deps.Agendas, logg))
			r.Patch("/api/v1/spaces/me/agendas/{agendaId}", spacecontrollers.UpdateAgenda(deps.Agendas, logg))
			r.Delete("/api/v1/spaces/me/agendas/{agendaId}", spacecontrollers.DeleteAgenda(deps.Agendas, logg))
			r.Get("/api/v1/spaces/me/quota", spacecontrollers.Quota(deps.Agendas, logg))

			r.Get("/api/v1/spaces/me/config", spacecontrollers.GetConfig(deps.SpaceConfig, logg))
			r.Put("/api/v1/spaces/me/config", spacecontrollers.UpdateConfig(deps.SpaceConfig, logg))

			r.Get("/api/v1/spaces/me/subscription", subscriptioncontrollers.OwnerFetch(deps.Subscriptions, logg))
			r.Post("/api/v1/spaces/me/subscription", subscriptioncontrollers.OwnerPurchase(deps.Subscriptions, logg))
			r.Post("/api/v1/spaces/me/subscription/cancel", subscriptioncontrollers.OwnerCancel(deps.Subscriptions, logg))

			r.Post("/api/v1/spaces/me/connect/stripe", connectcontrollers.StripeAuthorize(deps.Connect, logg))
			r.Delete("/api/v1/spaces/me/connect/stripe", connectcontrollers.StripeDisconnect(deps.Connect, logg))
			r.Post("/api/v1/spaces/me/connect/mercadopago", connectcontrollers.MercadoPagoAuthorize(deps.Connect, logg))
			r.Delete("/api/v1/spaces/me/connect/mercadopago", connectcontrollers.MercadoPagoDisconnect(deps.Connect, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

			r.Get("/api/v1/admin/plans", plancontrollers.List(deps.Plans, logg))
			r.Post("/api/v1/admin/plans", plancontrollers.Create(deps.Plans, logg))
			r.Patch("/api/v1/admin/plans/{planId}", plancontrollers.Update(deps.Plans, logg))
			r.Delete("/api/v1/admin/plans/{planId}", plancontrollers.Deactivate(deps.Plans, logg))
			r.Post("/api/v1/admin/spaces/{spaceId}/subscription", subscriptioncontrollers.AdminAssign(deps.Subscriptions, logg))
			r.Post("/api/v1/admin/spaces/{spaceId}/subscription/cancel", subscriptioncontrollers.AdminCancel(deps.Subscriptions, logg))
			r.Post("/api/v1/admin/bookings/{orderId}/cancel", bookingcontrollers.Cancel(deps.Bookings, logg))
		})
	})

	return r
}

func readinessDeps(deps Dependencies) map[string]controllers.Pinger {
	checks := map[string]controllers.Pinger{}
	if deps.DB != nil {
		checks["db"] = deps.DB
	}
	if deps.Redis != nil {
		checks["redis"] = deps.Redis
	}
	return checks
}
