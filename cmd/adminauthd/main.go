// adminauthd serves the administrative security API of the marketplace.
//
// It loads configuration from an optional YAML file, then from the environment
// (a .env file is read first when present), connects to Redis for secret state and
// the token denylist and to Postgres for the administrator directory, and serves:
//
//	/security/*   secret status, forced rotation, blacklist, permission matrix
//	/auth/*       refresh and logout
//	/metrics      Prometheus exposition
//	/healthz      liveness
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/adminauth"
	"github.com/MrEthical07/adminauth/adminhttp"
	"github.com/MrEthical07/adminauth/directory"
	promexport "github.com/MrEthical07/adminauth/metrics/export/prometheus"
	"github.com/MrEthical07/adminauth/permission"
)

type options struct {
	configPath    string
	envFile       string
	listen        string
	redisAddr     string
	redisPassword string
	redisDB       int
	postgresDSN   string
	migrate       bool
	seed          bool
	rolesFromDB   bool
	logLevel      string
	logFormat     string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("adminauthd", pflag.ContinueOnError)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	flagSet.StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	flagSet.StringVar(&opts.listen, "listen", ":8080", "HTTP listen address")
	flagSet.StringVar(&opts.redisAddr, "redis-addr", "localhost:6379", "Redis address")
	flagSet.StringVar(&opts.redisPassword, "redis-password", "", "Redis password")
	flagSet.IntVar(&opts.redisDB, "redis-db", 0, "Redis database number")
	flagSet.StringVar(&opts.postgresDSN, "postgres-dsn", "", "Postgres DSN for the administrator directory (default $DATABASE_URL)")
	flagSet.BoolVar(&opts.migrate, "migrate", false, "create directory tables before serving")
	flagSet.BoolVar(&opts.seed, "seed", false, "insert the built-in permissions and roles before serving")
	flagSet.BoolVar(&opts.rolesFromDB, "roles-from-db", false, "load the role table from Postgres instead of the built-in defaults")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")
	flagSet.StringVar(&opts.logFormat, "log-format", "json", "json or text")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	logger, err := newLogger(opts.logLevel, opts.logFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if err := godotenv.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("dotenv file not loaded", "path", opts.envFile, "error", err)
	}
	if opts.postgresDSN == "" {
		opts.postgresDSN = os.Getenv("DATABASE_URL")
	}
	if opts.postgresDSN == "" {
		return errors.New("postgres DSN is required (--postgres-dsn or DATABASE_URL)")
	}

	cfg := adminauth.DefaultConfig()
	if opts.configPath != "" {
		if cfg, err = adminauth.LoadConfigFile(opts.configPath); err != nil {
			return err
		}
	}
	cfg.ApplyEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{opts.redisAddr},
		Password: opts.redisPassword,
		DB:       opts.redisDB,
	})
	defer func() { _ = rdb.Close() }()

	dir, err := directory.Open(opts.postgresDSN)
	if err != nil {
		return fmt.Errorf("open directory: %w", err)
	}
	defer func() { _ = dir.Close() }()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := prepareDirectory(startCtx, dir, opts); err != nil {
		return err
	}

	table, err := roleTable(startCtx, cfg, dir, opts.rolesFromDB)
	if err != nil {
		return err
	}

	engine, err := adminauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithDirectory(dir).
		WithRoleTable(table).
		WithAuditSink(adminauth.NewSlogSink(logger.With("component", "audit"))).
		WithLogger(logger).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Initialize(startCtx); err != nil {
		return err
	}
	go engine.Run(ctx)

	if cfg.Permission.WatchRoleFile {
		if err := engine.WatchRoleFile(ctx, cfg.Permission.RoleFile); err != nil {
			return fmt.Errorf("watch role file %s: %w", cfg.Permission.RoleFile, err)
		}
	}

	registry := promclient.NewRegistry()
	registry.MustRegister(
		promexport.NewCollector(engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	router := adminhttp.NewRouter(engine, adminhttp.WithLogger(logger.With("component", "http")))
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              opts.listen,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", opts.listen, "secret_version", engine.SigningSecretVersion())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func prepareDirectory(ctx context.Context, dir *directory.Postgres, opts options) error {
	if err := dir.Ping(ctx); err != nil {
		return fmt.Errorf("ping directory: %w", err)
	}
	if opts.migrate {
		if err := dir.Migrate(ctx); err != nil {
			return err
		}
	}
	if opts.seed {
		if err := dir.Seed(ctx, permission.DefaultPermissions(), permission.DefaultRoles()); err != nil {
			return fmt.Errorf("seed directory: %w", err)
		}
	}
	return nil
}

// roleTable picks the role table source: the YAML role file, then Postgres when
// requested, then the built-in defaults.
func roleTable(ctx context.Context, cfg adminauth.Config, dir *directory.Postgres, fromDB bool) (*permission.Table, error) {
	switch {
	case cfg.Permission.RoleFile != "":
		return permission.LoadRoleFile(cfg.Permission.RoleFile)
	case fromDB:
		return permission.LoadTable(ctx, dir, cfg.Permission.MaxBits, cfg.Permission.SuperAdminRole)
	default:
		return nil, nil
	}
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
