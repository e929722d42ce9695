// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/ninjaprotocol/internal/app/store/audit"
	"go.uber.org/zap"
)

// Destinations for a category of audit events.
const (
	DestAll = "all" // MongoDB + zap
	DestDB  = "db"  // MongoDB only
	DestLog = "log" // zap only
	DestOff = "off" // disabled
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls login and logout events.
	Auth string
	// Admin controls ninja status changes made from the admin page.
	Admin string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// ValidDest reports whether s names an audit destination.
func ValidDest(s string) bool {
	switch s {
	case DestAll, DestDB, DestLog, DestOff:
		return true
	}
	return false
}

// getClientIP extracts the client IP from the request.
// getClientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then
// RemoteAddr without its port.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.UserID != nil {
		fields = append(fields, zap.Int64("user_id", *event.UserID))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.Int64("actor_id", *event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// A nil Logger is a no-op so tests can omit auditing.
// Install events are always recorded everywhere.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	default:
		setting = DestAll
	}
	if setting == "" {
		setting = DestAll
	}
	if setting == DestOff {
		return
	}

	if setting == DestAll || setting == DestLog {
		l.logToZap(event)
	}

	if (setting == DestAll || setting == DestDB) && l.store != nil {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful login.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID int64, loginID string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLoginSuccess,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"login_id": loginID},
	})
}

// LoginFailedUserNotFound logs a failed login due to user not found.
func (l *Logger) LoginFailedUserNotFound(ctx context.Context, r *http.Request, attemptedLoginID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedUserNotFound,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "user not found",
		Details:       map[string]string{"attempted_login_id": attemptedLoginID},
	})
}

// LoginFailedWrongPassword logs a failed login due to wrong password.
func (l *Logger) LoginFailedWrongPassword(ctx context.Context, r *http.Request, userID int64, loginID string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginFailedWrongPassword,
		UserID:        &userID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "wrong password",
		Details:       map[string]string{"login_id": loginID},
	})
}

// LoginLockedOut logs a sign-in refused because the login ID is throttled.
func (l *Logger) LoginLockedOut(ctx context.Context, r *http.Request, attemptedLoginID string, until time.Time) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAuth,
		EventType:     audit.EventLoginLockedOut,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "too many failed attempts",
		Details: map[string]string{
			"attempted_login_id": attemptedLoginID,
			"locked_until":       until.UTC().Format(time.RFC3339),
		},
	})
}

// Logout logs a user logout.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userID int64) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAuth,
		EventType: audit.EventLogout,
		UserID:    &userID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	})
}

// --- Admin Events ---

// NinjaStatusUpdated logs an accepted status submission and how many users changed.
func (l *Logger) NinjaStatusUpdated(ctx context.Context, r *http.Request, actorID int64, updated int) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryAdmin,
		EventType: audit.EventNinjaStatusUpdated,
		ActorID:   &actorID,
		IP:        getClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
		Details:   map[string]string{"updated": strconv.Itoa(updated)},
	})
}

// NinjaStatusNonceFailed logs a status submission rejected by the token check.
func (l *Logger) NinjaStatusNonceFailed(ctx context.Context, r *http.Request, actorID int64) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryAdmin,
		EventType:     audit.EventNinjaStatusNonceFailed,
		ActorID:       &actorID,
		IP:            getClientIP(r),
		UserAgent:     r.UserAgent(),
		Success:       false,
		FailureReason: "nonce verification failed",
	})
}

// --- Install Events ---

// Installed logs the first activation of a component.
func (l *Logger) Installed(ctx context.Context, component string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryInstall,
		EventType: audit.EventInstalled,
		Success:   true,
		Details:   map[string]string{"component": component},
	})
}

// StatusSeeded logs the outcome of the install-time status seed.
// seedErr is set when the seed stopped before visiting every user.
func (l *Logger) StatusSeeded(ctx context.Context, scanned, seeded, failed int, seedErr error) {
	e := audit.Event{
		Category:  audit.CategoryInstall,
		EventType: audit.EventNinjaStatusSeed,
		Success:   failed == 0 && seedErr == nil,
		Details: map[string]string{
			"scanned": strconv.Itoa(scanned),
			"seeded":  strconv.Itoa(seeded),
			"failed":  strconv.Itoa(failed),
		},
	}
	if seedErr != nil {
		e.FailureReason = seedErr.Error()
	}
	l.Log(ctx, e)
}

// AdminSeeded logs creation or promotion of the configured administrator.
func (l *Logger) AdminSeeded(ctx context.Context, userID int64, created bool) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryInstall,
		EventType: audit.EventAdminSeeded,
		UserID:    &userID,
		Success:   true,
		Details:   map[string]string{"created": strconv.FormatBool(created)},
	})
}
