// internal/app/system/seeding/seeding.go
package seeding

import (
	"context"
	"errors"
	"fmt"

	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auditlog"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/authutil"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/inputval"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/protocol"
	"github.com/dalemusser/ninjaprotocol/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Component is the install record name for the ninja users protocol.
const Component = "ninja-users-protocol"

// Installer records first-time installation of a component.
type Installer interface {
	MarkInstalled(ctx context.Context, name string) (bool, error)
}

// Seeder writes default statuses. *protocol.Service implements it.
type Seeder interface {
	Seed(ctx context.Context) (protocol.SeedReport, error)
}

// Activate runs the install hook. The seeder runs only on the call that
// first records the component as installed; restarts do nothing.
// It reports whether this call performed the installation.
func Activate(ctx context.Context, installs Installer, seeder Seeder, audit *auditlog.Logger, logger *zap.Logger) (bool, error) {
	first, err := installs.MarkInstalled(ctx, Component)
	if err != nil {
		return false, fmt.Errorf("mark %s installed: %w", Component, err)
	}
	if !first {
		logger.Debug("component already installed", zap.String("component", Component))
		return false, nil
	}

	audit.Installed(ctx, Component)
	logger.Info("component installed", zap.String("component", Component))

	rep, err := seeder.Seed(ctx)
	// ctx may already be past its deadline; the audit write must still land.
	audit.StatusSeeded(context.WithoutCancel(ctx), rep.Scanned, rep.Seeded, rep.Failed, err)
	if err != nil {
		// The install record stays and the seed is not retried; unset
		// statuses render as pending either way.
		logger.Error("ninja status seed incomplete",
			zap.Int("scanned", rep.Scanned),
			zap.Int("seeded", rep.Seeded),
			zap.Error(err))
		return true, err
	}
	return true, nil
}

// AdminSpec is the configured administrator to seed.
type AdminSpec struct {
	LoginID  string `validate:"required,max=254" label:"Seed admin login"`
	Password string `label:"Seed admin password"`
	Email    string `validate:"max=254" label:"Seed admin email"`
}

// ErrInvalidAdmin wraps validation failures of AdminSpec.
var ErrInvalidAdmin = errors.New("invalid seed admin")

// EnsureAdmin makes sure the configured login exists and is an administrator.
// An existing user is promoted by adding the administrator role; their
// password is left alone. A new user needs a valid password.
// A blank LoginID means no admin is configured and nothing happens.
func EnsureAdmin(ctx context.Context, users *userstore.Store, want AdminSpec, audit *auditlog.Logger, logger *zap.Logger) (int64, error) {
	if want.LoginID == "" {
		return 0, nil
	}
	if res := inputval.Validate(want); res.HasErrors() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAdmin, res.All())
	}
	if want.Email != "" && !inputval.IsValidEmail(want.Email) {
		return 0, fmt.Errorf("%w: seed admin email is not a valid address", ErrInvalidAdmin)
	}

	existing, err := users.GetByLoginID(ctx, want.LoginID)
	switch {
	case err == nil:
		if existing.HasCapability(models.CapManageOptions) {
			logger.Debug("admin user already configured", zap.String("login_id", existing.LoginID))
			return existing.ID, nil
		}
		roles := append([]string{models.RoleAdministrator}, existing.Roles...)
		if err := users.SetRoles(ctx, existing.ID, roles); err != nil {
			return 0, fmt.Errorf("promote %q: %w", existing.LoginID, err)
		}
		logger.Info("promoted existing user to administrator",
			zap.String("login_id", existing.LoginID),
			zap.Int64("user_id", existing.ID),
			zap.Strings("previous_roles", existing.Roles))
		audit.AdminSeeded(ctx, existing.ID, false)
		return existing.ID, nil

	case err != mongo.ErrNoDocuments:
		return 0, fmt.Errorf("look up %q: %w", want.LoginID, err)
	}

	if err := authutil.ValidatePassword(want.Password); err != nil {
		return 0, fmt.Errorf("%w: %v (%s)", ErrInvalidAdmin, err, authutil.PasswordRules())
	}
	hash, err := authutil.HashPassword(want.Password)
	if err != nil {
		return 0, fmt.Errorf("hash admin password: %w", err)
	}

	u, err := users.Create(ctx, models.User{
		LoginID:      want.LoginID,
		Email:        want.Email,
		DisplayName:  "Administrator",
		Roles:        []string{models.RoleAdministrator},
		PasswordHash: &hash,
	})
	if err != nil {
		return 0, fmt.Errorf("create admin %q: %w", want.LoginID, err)
	}
	logger.Info("created admin user", zap.String("login_id", u.LoginID), zap.Int64("user_id", u.ID))
	audit.AdminSeeded(ctx, u.ID, true)
	return u.ID, nil
}
