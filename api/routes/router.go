package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/promoredeem/api/controllers"
	"github.com/angelmondragon/promoredeem/api/middleware"
	"github.com/angelmondragon/promoredeem/internal/ledger"
	"github.com/angelmondragon/promoredeem/internal/qrinfo"
	"github.com/angelmondragon/promoredeem/internal/redemption"
	"github.com/angelmondragon/promoredeem/pkg/auth/session"
	"github.com/angelmondragon/promoredeem/pkg/config"
	"github.com/angelmondragon/promoredeem/pkg/db"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	"github.com/angelmondragon/promoredeem/pkg/logger"
	"github.com/angelmondragon/promoredeem/pkg/redis"
)

// NewRouter builds the HTTP surface. redisClient and sessions may be nil, in
// which case idempotency, redeem rate limiting and session checks are skipped.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessions session.AccessSessionChecker,
	gatherer prometheus.Gatherer,
	redemptionService redemption.Service,
	qrResolver qrinfo.Resolver,
	ledgerService ledger.Service,
	deadLetters controllers.DeadLetterStore,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiterStore     *redis.Client
		readiness        = map[string]controllers.Pinger{}
	)
	if dbP != nil {
		readiness["db"] = dbP
	}
	if redisClient != nil {
		idempotencyStore = redisClient
		limiterStore = redisClient
		readiness["redis"] = redisClient
	}
	redeemLimit := func(next http.Handler) http.Handler { return next }
	if limiterStore != nil {
		redeemLimit = middleware.RedeemRateLimit(cfg.RedeemRateLimit, limiterStore, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, readiness, logg))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessions, logg))
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1", func(r chi.Router) {
			r.Post("/qr/resolve", controllers.ResolveQR(qrResolver, logg))
			r.Get("/vouchers/{code}", controllers.ValidateVoucher(redemptionService, logg))
			r.Get("/redemptions", controllers.ListRedemptions(redemptionService, logg))
			r.Get("/points/balance", controllers.PointsBalance(ledgerService, logg))
			r.Get("/points/history", controllers.PointsHistory(ledgerService, logg))

			r.With(
				middleware.RequireRole(logg, enums.MemberRoleShopkeeper),
				redeemLimit,
			).Post("/vouchers/{code}/redeem", controllers.RedeemVoucher(redemptionService, logg))

			r.With(
				middleware.RequireRole(logg, enums.MemberRoleCustomer),
				redeemLimit,
			).Post("/qr-codes/{code}/redeem", controllers.RedeemQRCode(redemptionService, logg))

			r.With(middleware.RequireRole(logg, enums.MemberRoleReseller)).
				Post("/vouchers", controllers.IssueVoucher(redemptionService, cfg.Redemption.VoucherTTL, logg))
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.MemberRoleAdmin))
			r.Post("/points/credit", controllers.AdminAdjustPoints(ledgerService, ledger.DirectionCredit, logg))
			r.Post("/points/debit", controllers.AdminAdjustPoints(ledgerService, ledger.DirectionDebit, logg))
			r.Get("/outbox/dead-letters", controllers.ListDeadLetters(deadLetters, logg))
			r.Get("/outbox/dead-letters/{eventID}", controllers.GetDeadLetter(deadLetters, logg))
		})
	})

	return r
}
