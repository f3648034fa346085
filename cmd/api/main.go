package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-kopi/internal/analytics"
	"github.com/noah-isme/backend-kopi/internal/app"
	"github.com/noah-isme/backend-kopi/internal/audit"
	"github.com/noah-isme/backend-kopi/internal/auth"
	"github.com/noah-isme/backend-kopi/internal/cache"
	"github.com/noah-isme/backend-kopi/internal/checkout"
	"github.com/noah-isme/backend-kopi/internal/common"
	"github.com/noah-isme/backend-kopi/internal/config"
	"github.com/noah-isme/backend-kopi/internal/coupon"
	"github.com/noah-isme/backend-kopi/internal/events"
	"github.com/noah-isme/backend-kopi/internal/health"
	"github.com/noah-isme/backend-kopi/internal/lock"
	"github.com/noah-isme/backend-kopi/internal/membership"
	"github.com/noah-isme/backend-kopi/internal/menu"
	"github.com/noah-isme/backend-kopi/internal/obs"
	"github.com/noah-isme/backend-kopi/internal/order"
	"github.com/noah-isme/backend-kopi/internal/ratelimit"
	"github.com/noah-isme/backend-kopi/internal/security"
)

const (
	serviceName  = "kopi-api"
	maxBodyBytes = 1 << 20
	csrfHeader   = "X-CSRF-Token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.New(ctx, cfg, app.Options{Service: serviceName, Migrate: cfg.MigrateOnStart})
	if err != nil {
		panic(err)
	}
	defer deps.Close(context.Background())
	logger := deps.Logger

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("http shutdown")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func newRouter(cfg *config.Config, deps *app.Dependencies) http.Handler {
	logger := deps.Logger
	pool := deps.DB
	rdb := deps.Redis

	authService, err := auth.NewService(auth.Config{
		Queries:        auth.NewStore(pool),
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		ClockSkew:      30 * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	authHandler := &auth.Handler{
		Service:          authService,
		AccessCookieName: cfg.AccessCookieName,
		CookieDomain:     cfg.CookieDomain,
		CookieSecure:     cfg.CookieSecure,
		CookieSameSite:   http.SameSiteLaxMode,
		CSRFCookieName:   csrfHeader,
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: cfg.AccessCookieName}
	staffOnly := auth.RequireRole(auth.RoleStaff, auth.RoleManager, auth.RoleAdmin)
	managerOnly := auth.RequireRole(auth.RoleManager, auth.RoleAdmin)
	adminOnly := auth.RequireRole(auth.RoleAdmin)

	menuService := &menu.Service{
		Q:      menu.NewStore(pool),
		Cache:  cache.NewJSON(rdb, cfg.MenuCacheTTL),
		Logger: obs.Component(logger, "menu"),
	}
	menuHandler := &menu.Handler{Svc: menuService}

	couponService := &coupon.Service{
		Q:      coupon.NewStore(pool),
		Cache:  cache.NewJSON(rdb, cfg.CouponCacheTTL),
		Logger: obs.Component(logger, "coupon"),
	}
	couponHandler := &coupon.Handler{Svc: couponService}

	memberService := &membership.Service{
		Q:       membership.NewStore(pool),
		Locker:  lock.Locker{R: rdb, RetryBackoff: cfg.LockRetryBackoff},
		LockTTL: cfg.LockTTL,
		Logger:  obs.Component(logger, "membership"),
	}
	memberHandler := &membership.Handler{Svc: memberService}

	bus := &events.Bus{
		Store: &events.Store{DB: pool},
		Notifiers: []events.Notifier{
			&events.TaskNotifier{Client: deps.TaskClient, Queue: cfg.AccrualQueue, Retention: 24 * time.Hour},
		},
	}

	orderStore := order.NewStore(pool)
	orderService := &order.Service{Q: orderStore, Events: bus, Logger: obs.Component(logger, "order")}
	orderHandler := &order.Handler{Svc: orderService}
	orderAdmin := &order.AdminHandler{Svc: orderService}

	checkoutService := &checkout.Service{
		Menu:        menuService,
		Coupons:     couponService,
		Members:     memberService,
		Orders:      orderStore,
		Events:      bus,
		Currency:    cfg.CurrencyCode,
		DeliveryFee: cfg.DefaultDeliveryFee,
		Logger:      obs.Component(logger, "checkout"),
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutService}

	reportHandler := &analytics.Handler{Svc: &analytics.Service{
		Q:            analytics.NewStore(pool),
		Cache:        cache.NewJSON(rdb, cfg.ReportCacheTTL),
		DefaultRange: cfg.ReportDefaultDays,
		Logger:       obs.Component(logger, "analytics"),
	}}

	auditService := &audit.Service{Store: audit.NewStore(pool), Enabled: cfg.AuditEnabled, SamplingRate: cfg.AuditSamplingRate}
	auditRec := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) { logger.Error().Err(err).Msg("audit record") },
	}
	audited := func(action, resource, param string) func(http.Handler) http.Handler {
		return auditRec.Middleware(audit.HTTPConfig{Action: action, ResourceType: resource, ResourceIDParam: param, SkipFailures: true})
	}
	auditHandler := audit.Handler{Svc: auditService}

	idem := common.Idem{R: rdb, TTL: cfg.IdempotencyTTL}
	onLimiterError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	publicLimit := ratelimit.Handler{
		Limiter: ratelimit.SlidingWindow{Client: rdb, Prefix: "rl:"},
		Config:  ratelimit.Config{Key: ratelimit.ByUserOrIP("public:"), Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax},
		OnError: onLimiterError,
	}
	globalLimit := ratelimit.Handler{OnError: onLimiterError}
	if window, limit, err := ratelimit.ParseRate(cfg.RateLimitRate); err != nil {
		logger.Error().Err(err).Msg("global rate limit disabled")
	} else if fixed, err := ratelimit.NewFixedWindow(rdb, "rl:global"); err != nil {
		logger.Error().Err(err).Msg("global rate limit disabled")
	} else {
		globalLimit.Limiter = fixed
		globalLimit.Config = ratelimit.Config{Key: ratelimit.ByClientIP(""), Window: window, Max: limit}
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.MetricsNamespace, obs.ParseBucketsCSV(cfg.MetricsBucketsMS), deps.Registry)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.TracingEnabled {
		r.Use(obs.Tracing(nil))
	}
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", csrfHeader},
		ExposedHeaders:   []string{"X-Request-Id", "X-Total-Count", "Retry-After"},
		AllowCredentials: len(cfg.CORSAllowedOrigins) > 0,
		MaxAge:           300,
	}))
	r.Use(security.Headers{
		Enable:     cfg.SecurityHeaders,
		EnableHSTS: cfg.HSTSEnabled,
		HSTSMaxAge: cfg.HSTSMaxAge,
		NoStore:    true,
	}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}

	healthHandler := health.Handler{Checks: []health.Check{
		health.DB(pool, cfg.HealthDBTimeout),
		health.Redis(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }, cfg.HealthRedisTimeout),
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(globalLimit.Middleware)
		v.Use(security.BodyLimit{Max: maxBodyBytes}.Middleware)
		v.Use(security.CSRF{Header: csrfHeader, SessionCookie: cfg.AccessCookieName}.Middleware)
		v.Use(authMiddleware.Authenticate)

		v.Route("/auth", func(a chi.Router) {
			a.With(publicLimit.Middleware).Post("/register", authHandler.Register)
			a.With(publicLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/logout", authHandler.Logout)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Get("/products", menuHandler.Products)
		v.Get("/products/{id}", menuHandler.Product)
		v.With(publicLimit.Middleware).Get("/coupons/{code}", couponHandler.Get)

		v.With(publicLimit.Middleware).Post("/checkout/quote", checkoutHandler.Quote)
		v.With(authMiddleware.RequireAuth, idem.Middleware).Post("/checkout", checkoutHandler.Checkout)

		v.Group(func(customer chi.Router) {
			customer.Use(authMiddleware.RequireAuth)
			customer.Get("/orders", orderHandler.List)
			customer.Get("/orders/{id}", orderHandler.Get)
			customer.Post("/orders/{id}/cancel", orderHandler.Cancel)
		})

		v.Group(func(pos chi.Router) {
			pos.Use(authMiddleware.RequireAuth, staffOnly)
			pos.Get("/customers/lookup", memberHandler.Lookup)
			pos.Post("/pos/quote", checkoutHandler.POSQuote)
			pos.With(idem.Middleware).Post("/pos/orders", checkoutHandler.POSOrder)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)

			admin.Group(func(staff chi.Router) {
				staff.Use(staffOnly)
				staff.Get("/orders", orderAdmin.List)
				staff.Get("/orders/{id}", orderAdmin.Get)
				staff.With(audited("order.status", "order", "id")).Patch("/orders/{id}/status", orderAdmin.PatchStatus)
				staff.With(audited("customer.register", "customer", "")).Post("/customers", memberHandler.Register)
			})

			admin.Group(func(manager chi.Router) {
				manager.Use(managerOnly)
				manager.Get("/coupons", couponHandler.List)
				manager.With(audited("coupon.create", "coupon", "")).Post("/coupons", couponHandler.Create)
				manager.With(audited("coupon.update", "coupon", "code")).Put("/coupons/{code}", couponHandler.Update)
				manager.With(audited("coupon.deactivate", "coupon", "code")).Delete("/coupons/{code}", couponHandler.Deactivate)
				manager.Get("/customers", memberHandler.List)
				manager.With(audited("customer.rank", "customer", "phone")).Patch("/customers/{phone}/rank", memberHandler.SetRank)
				manager.With(audited("product.create", "product", "")).Post("/products", menuHandler.Create)
				manager.With(audited("product.update", "product", "id")).Put("/products/{id}", menuHandler.Update)
				manager.Get("/reports/sales", reportHandler.Sales)
				manager.Get("/reports/top-products", reportHandler.TopProducts)
				manager.Get("/reports/overview", reportHandler.Overview)
			})

			admin.Group(func(root chi.Router) {
				root.Use(adminOnly)
				root.With(audited("user.create", "user", "")).Post("/users", authHandler.CreateStaff)
				root.With(audited("user.roles", "user", "id")).Put("/users/{id}/roles", authHandler.SetRoles)
				root.Get("/audit-logs", auditHandler.List)
			})
		})
	})

	logRoutes(logger, r)
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func logRoutes(logger zerolog.Logger, r chi.Routes) {
	if logger.GetLevel() > zerolog.DebugLevel {
		return
	}
	_ = chi.Walk(r, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		logger.Debug().Str("method", method).Str("route", route).Msg("route registered")
		return nil
	})
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return http.StripPrefix("/debug/pprof", mux)
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorised", nil)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
