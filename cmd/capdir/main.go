// Command capdir runs the local capabilities directory as an HTTP service.
//
// Configuration is read from cmd/capdir/config.yml (or the file named by
// CAPDIR_CONFIG) and CAPDIR_ prefixed environment variables.
package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/capdir/acl"
	"github.com/kbukum/capdir/api"
	"github.com/kbukum/capdir/auth"
	"github.com/kbukum/capdir/auth/jwt"
	"github.com/kbukum/capdir/bootstrap"
	"github.com/kbukum/capdir/component"
	"github.com/kbukum/capdir/config"
	"github.com/kbukum/capdir/directory"
	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/gcd"
	_ "github.com/kbukum/capdir/gcd/consul"
	_ "github.com/kbukum/capdir/gcd/redis"
	"github.com/kbukum/capdir/logger"
	"github.com/kbukum/capdir/observability"
	"github.com/kbukum/capdir/routing"
	"github.com/kbukum/capdir/server"
	"github.com/kbukum/capdir/server/middleware"
)

const serviceName = "capdir"

func main() {
	if err := run(context.Background()); err != nil {
		logger.Error("capdir exited with error", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg := &Config{}
	cfg.Name = serviceName

	opts := []config.LoaderOption{config.WithEnvPrefix("CAPDIR")}
	if path := os.Getenv("CAPDIR_CONFIG"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if err := config.LoadConfig(serviceName, cfg, opts...); err != nil {
		return err
	}

	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	log := app.Logger

	metrics, err := setupObservability(ctx, app)
	if err != nil {
		return err
	}

	global, err := gcd.New(cfg.GCD.Config, cfg.GCD.ProviderConfig(), log)
	if err != nil {
		return err
	}

	var access discovery.AccessController = acl.AllowAll{}
	if cfg.Directory.AccessControl.Enabled {
		access = acl.NewClaimsPolicy(log)
	}

	dir, err := directory.New(cfg.Directory, directory.Deps{
		GCD:     global,
		Routing: routing.NewTable(routing.WithLogger(log)),
		Access:  access,
	}, directory.WithLogger(log), directory.WithMetrics(metrics))
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, log, server.WithMetrics(metrics))
	srv.RegisterProbes(serviceName, app.Components)

	var guard []gin.HandlerFunc
	if cfg.Auth.Enabled {
		tokens, err := jwt.NewService(&cfg.Auth.JWT, auth.NewClaims)
		if err != nil {
			return err
		}
		guard = append(guard, middleware.Auth(func(token string) (any, error) {
			return tokens.Parse(token)
		}))
	}
	api.NewHandler(dir, log).Register(srv.GinEngine(), guard...)

	for _, c := range []component.Component{global, dir, srv} {
		if err := app.RegisterComponent(c); err != nil {
			return err
		}
	}

	log.Info("capdir configured", logger.Fields(
		logger.FieldGbids, cfg.Directory.KnownGbids,
		"cluster_controller_id", cfg.Directory.ClusterControllerID,
		"gcd_provider", cfg.GCD.Provider,
		"addr", srv.Addr(),
	))
	return app.Run(ctx)
}

// setupObservability starts the OTLP exporters that are enabled and
// returns the directory's instruments.
func setupObservability(ctx context.Context, app *bootstrap.App[*Config]) (*observability.Metrics, error) {
	cfg := app.Cfg
	obs := cfg.Observability

	if obs.TracingEnabled {
		tp, err := observability.InitTracer(ctx, obs.TracerConfig(cfg.Name, cfg.Version, cfg.Environment))
		if err != nil {
			return nil, err
		}
		app.OnStop(tp.Shutdown)
	}
	if obs.MetricsEnabled {
		mp, err := observability.InitMeter(ctx, obs.MeterConfig(cfg.Name, cfg.Version, cfg.Environment))
		if err != nil {
			return nil, err
		}
		app.OnStop(mp.Shutdown)
	}
	return observability.NewMetrics(observability.Meter(serviceName))
}
