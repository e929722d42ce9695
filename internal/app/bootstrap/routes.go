// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	auditlogfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/errors"
	healthfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/health"
	homefeature "github.com/dalemusser/ninjaprotocol/internal/app/features/home"
	loginfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/login"
	logoutfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/logout"
	ninjaprotocolfeature "github.com/dalemusser/ninjaprotocol/internal/app/features/ninjaprotocol"
	appresources "github.com/dalemusser/ninjaprotocol/internal/app/resources"
	"github.com/dalemusser/ninjaprotocol/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/nonce"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/templates"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Roles are re-read on every request so a demotion takes effect immediately.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(deps.MongoDatabase, logger))

	tokens, err := nonce.New(appCfg.NonceKey, appCfg.NonceLifetime)
	if err != nil {
		logger.Error("nonce issuer init failed", zap.Error(err))
		return nil, err
	}

	// Dev mode enables template reloading for faster iteration.
	eng := templates.New(coreCfg.Env == "dev")
	if err := eng.Boot(logger); err != nil {
		logger.Error("template engine boot failed", zap.Error(err))
		return nil, err
	}
	templates.UseEngine(eng, logger)

	errLog := errorsfeature.NewErrorLogger(logger)
	errorsHandler := errorsfeature.NewHandler()
	auditLogger := newAuditLogger(appCfg, deps, logger)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.Timeout(appCfg.RequestTimeout))
	r.Use(middleware.CORSFromConfig(coreCfg))
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Session middleware: loads SessionUser into context if logged in.
	r.Use(sessionMgr.LoadSessionUser)

	csrfOpts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("ninjaprotocol_csrf"),
		csrf.FieldName("csrf_token"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			http.Error(w, "CSRF token invalid or missing", http.StatusForbidden)
		})),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	if !secure {
		csrfOpts = append(csrfOpts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		csrfOpts = append(csrfOpts, csrf.Domain(appCfg.SessionDomain))
	}
	r.Use(csrfExempting(csrf.Protect([]byte(appCfg.CSRFKey), csrfOpts...), csrf.UnsafeSkipCheck))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	// /assets/* serves embedded assets (bundled into the binary)
	r.Handle("/assets/*", appresources.AssetsHandler("/assets"))

	homeHandler := homefeature.NewHandler(deps.MongoDatabase, logger)
	r.Mount("/", homefeature.Routes(homeHandler))

	// Authentication
	var limiter *ratelimit.Store
	if appCfg.LoginThrottleEnabled {
		limiter = ratelimit.New(deps.MongoDatabase, ratelimit.Policy{
			MaxAttempts: appCfg.LoginThrottleAttempts,
			Window:      appCfg.LoginThrottleWindow,
			Lockout:     appCfg.LoginThrottleLockout,
		})
	}
	loginHandler := loginfeature.NewHandler(deps.MongoDatabase, limiter, sessionMgr, errLog, auditLogger, logger)
	r.Mount("/login", loginfeature.Routes(loginHandler))

	logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, logger)
	r.Mount("/logout", logoutfeature.Routes(logoutHandler, sessionMgr))

	// Ninja users protocol, under the user management section
	protocolHandler := ninjaprotocolfeature.NewHandler(
		deps.MongoDatabase,
		tokens,
		errLog,
		auditLogger,
		appCfg.ProtocolPageTitle,
		logger,
	)
	r.Mount(ninjaprotocolfeature.Path, ninjaprotocolfeature.Routes(protocolHandler, sessionMgr))

	// Audit trail of sign-ins, status changes and install events
	auditLogHandler := auditlogfeature.NewHandler(deps.MongoDatabase, errLog, logger)
	r.Mount(auditlogfeature.Path, auditlogfeature.Routes(auditLogHandler, sessionMgr))

	r.Get("/forbidden", errorsHandler.Forbidden)

	// 404 catch-all for unmatched routes
	r.NotFound(errorsHandler.NotFound)

	return r, nil
}

// csrfExempting wraps the gorilla/csrf middleware so exempt paths skip the
// token check. Exempt requests still pass through protect, so csrf.Token
// keeps working for other forms rendered on those pages.
func csrfExempting(protect func(http.Handler) http.Handler, skip func(*http.Request) *http.Request) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if csrfExempt(req.URL.Path) {
				req = skip(req)
			}
			protected.ServeHTTP(w, req)
		})
	}
}

// csrfExempt reports whether path skips gorilla/csrf. The ninja protocol form
// carries its own action-scoped token and must answer a bad one with an
// error notice on the page, not a bare 403.
func csrfExempt(path string) bool {
	switch path {
	case ninjaprotocolfeature.Path, ninjaprotocolfeature.Path + "/":
		return true
	}
	return false
}
