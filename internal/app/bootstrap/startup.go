// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/ninjaprotocol/internal/app/resources"
	"github.com/dalemusser/ninjaprotocol/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// Returning a non-nil error will abort startup and prevent the server from
// starting.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()

	viewdata.Init(appCfg.SiteName, appCfg.ProtocolMenuLabel)

	logger.Info("startup complete",
		zap.String("site_name", appCfg.SiteName),
		zap.String("protocol_menu_label", appCfg.ProtocolMenuLabel),
	)
	return nil
}
