// Package protocol implements the ninja users protocol: listing users with
// their ninja status, applying status submissions from the admin form, and
// seeding a default status for users that have none.
//
// The package owns no storage and no HTTP. Users come from a Directory,
// statuses from an AttributeStore, and anti-forgery tokens from a Tokens
// implementation, so handlers and install hooks wire it to whatever backs
// those in the running app.
package protocol

import (
	"context"
	"errors"

	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"go.uber.org/zap"
)

// Action names the form action anti-forgery tokens are bound to.
const Action = "update_ninja_status"

// ErrForbidden is returned when the caller lacks models.CapManageOptions.
var ErrForbidden = errors.New("protocol: insufficient permissions")

// Directory lists the host's users.
type Directory interface {
	List(ctx context.Context) ([]models.User, error)
	ListIDs(ctx context.Context) ([]int64, error)
}

// AttributeStore is the per-user key/value store statuses live in.
type AttributeStore interface {
	// Get returns the stored value and whether one exists.
	Get(ctx context.Context, userID int64, key string) (string, bool, error)
	// Set upserts the value and reports whether anything was created or changed.
	Set(ctx context.Context, userID int64, key, value string) (bool, error)
}

// Tokens issues and verifies action-scoped anti-forgery tokens.
type Tokens interface {
	Issue(action, subject string) (string, error)
	Verify(token, action, subject string) bool
}

// Actor is the signed-in caller.
type Actor interface {
	Can(capability string) bool
	// Subject identifies the caller's session for token binding.
	Subject() string
}

// Service ties the protocol operations to their collaborators.
type Service struct {
	users  Directory
	meta   AttributeStore
	tokens Tokens
	logger *zap.Logger
}

// New creates a Service. A nil logger is replaced with a no-op logger.
func New(users Directory, meta AttributeStore, tokens Tokens, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:  users,
		meta:   meta,
		tokens: tokens,
		logger: logger,
	}
}

func authorized(a Actor) bool {
	return a != nil && a.Can(models.CapManageOptions)
}
