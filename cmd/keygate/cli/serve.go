package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/keygate/keygate/internal/metrics"
	"github.com/keygate/keygate/internal/server"
)

const banner = `
 _                         _
| | _____ _   _  __ _  __ _| |_ ___
| |/ / _ \ | | |/ _' |/ _' | __/ _ \
|   <  __/ |_| | (_| | (_| | ||  __/
|_|\_\___|\__, |\__, |\__,_|\__\___|
          |___/ |___/
`

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the keygate HTTP server",
		Long: `Start the HTTP server that issues and validates keys.

The expired-key sweep runs every cleanup.interval while the server is up.
SIGINT or SIGTERM drains in-flight requests before exiting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().String("store", "sqlite", "Key store driver: memory, sqlite, postgres, mysql, mssql, oracle")
	cmd.Flags().String("dsn", "", "Key store DSN (not needed for memory or sqlite)")
	cmd.Flags().String("redis", "", "Redis address for a shared rate limiter (e.g. localhost:6379)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))
	viper.BindPFlag("store.driver", cmd.Flags().Lookup("store"))
	viper.BindPFlag("store.dsn", cmd.Flags().Lookup("dsn"))
	viper.BindPFlag("redis.addr", cmd.Flags().Lookup("redis"))

	return cmd
}

func runServe(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder()
	eng, err := buildEngines(ctx, cfg, logger, recorder)
	if err != nil {
		return err
	}
	defer eng.Close()
	logger.Info("key store ready", "driver", eng.backend.Driver())

	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		IPRateLimit:     cfg.Server.IPRateLimit,
		Version:         versionString(),
	}, server.Deps{
		Issuer:    eng.issuer,
		Validator: eng.validator,
		Sweeper:   eng.sweeper,
		Backend:   eng.backend,
		Auth:      newAuthService(cfg),
		Clock:     eng.clock,
		Policy:    eng.policy,
		Metrics:   recorder,
	}, logger)

	if cfg.Auth.JWTSecret == "" {
		logger.Warn("auth.jwt_secret is not set; admin endpoints are disabled")
	}

	fmt.Print(banner)
	fmt.Println()
	fmt.Printf("→ keygate %s\n", versionString())
	fmt.Printf("→ Listening on http://%s\n", srv.Addr())
	fmt.Printf("→ OpenAPI:    http://%s/openapi.json\n", srv.Addr())
	fmt.Printf("→ Health:     http://%s/healthz\n", srv.Addr())
	fmt.Printf("→ Key TTL %s, %d keys per HWID per %s\n", cfg.Keys.TTL, cfg.RateLimit.Max, cfg.RateLimit.Window)
	fmt.Println()

	eng.sweeper.Start()
	defer eng.sweeper.Shutdown()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	// One last sweep on the way out.
	g.Go(func() error {
		<-gctx.Done()
		if _, err := eng.sweeper.Sweep(context.WithoutCancel(gctx)); err != nil {
			logger.Warn("final cleanup failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}
