// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/ninjaprotocol/internal/app/store/audit"
	installstore "github.com/dalemusser/ninjaprotocol/internal/app/store/installs"
	usermetastore "github.com/dalemusser/ninjaprotocol/internal/app/store/usermeta"
	userstore "github.com/dalemusser/ninjaprotocol/internal/app/store/users"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/auditlog"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/indexes"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/protocol"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/seeding"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/timeouts"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/validators"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// ConnectDB connects to MongoDB.
//
// WAFFLE calls this after configuration is loaded but before EnsureSchema and
// Startup.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	poolCfg := wafflemongo.DefaultPoolConfig()
	if appCfg.MongoMaxPoolSize > 0 {
		poolCfg.MaxPoolSize = appCfg.MongoMaxPoolSize
	}
	if appCfg.MongoMinPoolSize > 0 {
		poolCfg.MinPoolSize = appCfg.MongoMinPoolSize
	}

	client, err := wafflemongo.ConnectWithPool(ctx, appCfg.MongoURI, appCfg.MongoDatabase, poolCfg)
	if err != nil {
		return DBDeps{}, err
	}

	db := client.Database(appCfg.MongoDatabase)

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool_size", poolCfg.MaxPoolSize),
		zap.Uint64("min_pool_size", poolCfg.MinPoolSize),
	)

	return DBDeps{
		MongoClient:   client,
		MongoDatabase: db,
	}, nil
}

// EnsureSchema sets up collections, validators, and indexes, then runs the
// one-time install work.
//
// Order matters: the admin is ensured before activation so the seeder also
// gives them a pending status on a fresh database.
//
// The context has a timeout based on coreCfg.IndexBootTimeout, so long-running
// work should respect context cancellation.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	db := deps.MongoDatabase

	// Ensure collections exist and attach JSON-Schema validators.
	// This runs first so indexes can be created on existing collections.
	logger.Info("ensuring collections and validators")
	if err := validators.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure validators", zap.Error(err))
		return err
	}

	logger.Info("ensuring database indexes")
	if err := indexes.EnsureAll(ctx, db); err != nil {
		logger.Error("failed to ensure indexes", zap.Error(err))
		return err
	}

	auditLogger := newAuditLogger(appCfg, deps, logger)
	users := userstore.New(db)

	if _, err := seeding.EnsureAdmin(ctx, users, seeding.AdminSpec{
		LoginID:  appCfg.SeedAdminLogin,
		Password: appCfg.SeedAdminPassword,
		Email:    appCfg.SeedAdminEmail,
	}, auditLogger, logger); err != nil {
		logger.Error("failed to seed admin user", zap.Error(err))
		return err
	}

	timeouts.Configure(timeouts.Config{Seed: appCfg.SeedTimeout})
	logger.Debug("timeouts configured", zap.Any("timeouts", timeouts.Current()))
	seedCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Seed(), logger, "ninja status seed")
	defer cancel()

	svc := protocol.New(users, usermetastore.New(db), nil, logger)
	if _, err := seeding.Activate(seedCtx, installstore.New(db), svc, auditLogger, logger); err != nil {
		// A partial seed is not fatal; unset statuses render as pending.
		logger.Error("ninja users protocol activation incomplete", zap.Error(err))
	}

	logger.Info("database schema ensured successfully")
	return nil
}

func newAuditLogger(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *auditlog.Logger {
	return auditlog.New(audit.New(deps.MongoDatabase), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
	})
}
