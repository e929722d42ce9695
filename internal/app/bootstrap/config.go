// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/ninjaprotocol/internal/app/features/ninjaprotocol"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auditlog"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auth"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "NINJAPROTOCOL"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: NINJAPROTOCOL_MONGO_URI, NINJAPROTOCOL_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "ninjaprotocol", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "ninjaprotocol-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	// Ninja status form tokens
	{Name: "nonce_key", Default: "dev-only-nonce-key-please-change-0123456789", Desc: "Signing key for ninja status form tokens"},
	{Name: "nonce_lifetime", Default: "24h", Desc: "How long a rendered ninja status form can be submitted"},

	// Presentation
	{Name: "site_name", Default: viewdata.DefaultSiteName, Desc: "Site name shown in the header"},
	{Name: "protocol_page_title", Default: ninjaprotocol.DefaultTitle, Desc: "Heading of the ninja users protocol page"},
	{Name: "protocol_menu_label", Default: viewdata.DefaultMenuLabel, Desc: "Menu label of the ninja users protocol page"},

	// Timeouts
	{Name: "request_timeout", Default: "30s", Desc: "Per-request timeout"},
	{Name: "seed_timeout", Default: "2m", Desc: "Time budget for the install-time ninja status seed"},

	// Login throttling
	{Name: "login_throttle_enabled", Default: true, Desc: "Refuse sign-in for a login ID after repeated failures"},
	{Name: "login_throttle_attempts", Default: 5, Desc: "Failed sign-ins allowed per window"},
	{Name: "login_throttle_window", Default: "15m", Desc: "Window for counting failed sign-ins"},
	{Name: "login_throttle_lockout", Default: "15m", Desc: "How long sign-in is refused once the limit is hit"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Admin seeding configuration
	{Name: "seed_admin_login", Default: "", Desc: "Login ID of the administrator to ensure on startup"},
	{Name: "seed_admin_password", Default: "", Desc: "Password for a newly created seed administrator"},
	{Name: "seed_admin_email", Default: "", Desc: "Email for a newly created seed administrator"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, NINJAPROTOCOL_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		CSRFKey: appValues.String("csrf_key"),

		NonceKey:      appValues.String("nonce_key"),
		NonceLifetime: appValues.Duration("nonce_lifetime", 24*time.Hour),

		SiteName:          appValues.String("site_name"),
		ProtocolPageTitle: appValues.String("protocol_page_title"),
		ProtocolMenuLabel: appValues.String("protocol_menu_label"),

		RequestTimeout: appValues.Duration("request_timeout", 30*time.Second),
		SeedTimeout:    appValues.Duration("seed_timeout", 2*time.Minute),

		LoginThrottleEnabled:  appValues.Bool("login_throttle_enabled"),
		LoginThrottleAttempts: appValues.Int("login_throttle_attempts"),
		LoginThrottleWindow:   appValues.Duration("login_throttle_window", 15*time.Minute),
		LoginThrottleLockout:  appValues.Duration("login_throttle_lockout", 15*time.Minute),

		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),

		SeedAdminLogin:    appValues.String("seed_admin_login"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
		SeedAdminEmail:    appValues.String("seed_admin_email"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if err := validateAppConfig(coreCfg.Env, appCfg); err != nil {
		logger.Error("invalid app config", zap.Error(err))
		return err
	}
	return nil
}

// validateAppConfig checks settings that do not need a live backend.
func validateAppConfig(env string, appCfg AppConfig) error {
	var errs []error

	if appCfg.MongoDatabase == "" {
		errs = append(errs, errors.New("mongo_database is required"))
	}
	if appCfg.SessionKey == "" {
		errs = append(errs, errors.New("session_key is required"))
	}
	if appCfg.CSRFKey == "" {
		errs = append(errs, errors.New("csrf_key is required"))
	}
	if appCfg.NonceKey == "" {
		errs = append(errs, errors.New("nonce_key is required"))
	}
	if env == "prod" {
		if auth.IsDefaultKey(appCfg.NonceKey) || len(appCfg.NonceKey) < 32 {
			errs = append(errs, errors.New("nonce_key is too weak for production; provide ≥32 random chars"))
		}
		if auth.IsDefaultKey(appCfg.CSRFKey) || len(appCfg.CSRFKey) < 32 {
			errs = append(errs, errors.New("csrf_key is too weak for production; provide ≥32 random chars"))
		}
	}
	if appCfg.NonceLifetime <= 0 {
		errs = append(errs, errors.New("nonce_lifetime must be positive"))
	}
	if appCfg.LoginThrottleEnabled {
		if appCfg.LoginThrottleAttempts < 1 {
			errs = append(errs, errors.New("login_throttle_attempts must be at least 1"))
		}
		if appCfg.LoginThrottleWindow <= 0 || appCfg.LoginThrottleLockout <= 0 {
			errs = append(errs, errors.New("login_throttle_window and login_throttle_lockout must be positive"))
		}
	}
	if appCfg.AuditLogAuth != "" && !auditlog.ValidDest(appCfg.AuditLogAuth) {
		errs = append(errs, fmt.Errorf("audit_log_auth: unknown destination %q", appCfg.AuditLogAuth))
	}
	if appCfg.AuditLogAdmin != "" && !auditlog.ValidDest(appCfg.AuditLogAdmin) {
		errs = append(errs, fmt.Errorf("audit_log_admin: unknown destination %q", appCfg.AuditLogAdmin))
	}
	if appCfg.SeedAdminPassword != "" && appCfg.SeedAdminLogin == "" {
		errs = append(errs, errors.New("seed_admin_password is set but seed_admin_login is empty"))
	}

	return errors.Join(errs...)
}
