// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: ninjaprotocol-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// CSRF protection configuration (login and logout forms)
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// Anti-forgery tokens for the ninja status form
	NonceKey      string        // Signing key for action-scoped tokens
	NonceLifetime time.Duration // How long a rendered form stays submittable (default: 24h)

	// Presentation
	SiteName          string // Shown in the header and page titles
	ProtocolPageTitle string // Heading of the admin page
	ProtocolMenuLabel string // Menu entry under Users

	// Request handling
	RequestTimeout time.Duration // Per-request timeout (default: 30s)
	SeedTimeout    time.Duration // Budget for the install-time status seed (default: 2m)

	// Login throttling
	LoginThrottleEnabled  bool          // Refuse sign-in after repeated failures
	LoginThrottleAttempts int           // Failures allowed per window (default: 5)
	LoginThrottleWindow   time.Duration // Window for counting failures (default: 15m)
	LoginThrottleLockout  time.Duration // How long sign-in is refused (default: 15m)

	// Audit logging configuration
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	AuditLogAuth  string // Authentication events (login, logout)
	AuditLogAdmin string // Admin actions (ninja status updates)

	// Admin seeding configuration
	SeedAdminLogin    string // Login ID of the administrator to ensure on startup (if set)
	SeedAdminPassword string // Password for a newly created administrator
	SeedAdminEmail    string // Email for a newly created administrator
}
