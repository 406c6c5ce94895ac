package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"courier-dashboard/internal/auth"
	"courier-dashboard/internal/config"
	apphttp "courier-dashboard/internal/http"
	"courier-dashboard/internal/kv"
	"courier-dashboard/internal/repository/sqlite"
	"courier-dashboard/internal/seed"
	"courier-dashboard/internal/service"
	"courier-dashboard/internal/session"
	"courier-dashboard/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg, logger := a.cfg, a.logger

	if err := seed.Apply(ctx, a.users, a.records, logger); err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	kvStore, closeKV, err := buildKV(ctx, a, logger)
	if err != nil {
		return fmt.Errorf("setup session backend: %w", err)
	}
	defer closeKV()

	var sweeper *session.Sweeper
	if purger, ok := kvStore.(kv.Purger); ok {
		sweeper = session.NewSweeper(purger, session.SweeperConfig{
			Interval: cfg.Session.SweepInterval,
			Logger:   logger,
		})
		sweeper.Start(ctx)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	sessions := session.NewStore(kvStore, session.WithLogger(logger))
	shell := service.NewShell(sessions,
		service.WithLocation(loc),
		service.WithShellLogger(logger),
	)

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("setup storage: %w", err)
	}

	tokens, err := auth.NewManager(jwtSecret(cfg, logger), "")
	if err != nil {
		return fmt.Errorf("setup session tokens: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	handler := apphttp.NewHandler(apphttp.Config{
		Authenticator:  service.NewAuthenticator(service.NewUserDirectory(a.users)),
		Shell:          shell,
		Dashboards:     service.NewDashboardService(a.records),
		Exports:        service.NewExportService(storageSvc, cfg.Storage.Bucket, cfg.Storage.KeyPrefix),
		Tokens:         tokens,
		CookieName:     cfg.Session.CookieName,
		SecureCookie:   cfg.Session.SecureCookie,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	handler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	if sweeper != nil {
		sweeper.Shutdown()
	}

	logger.Info("bye")
	return nil
}

// buildKV returns the key-value backend sessions are stored in and a func releasing it.
func buildKV(ctx context.Context, a *app, logger *logrus.Logger) (kv.Store, func(), error) {
	switch a.cfg.Session.Backend {
	case config.SessionBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis %s: %w", a.cfg.Redis.Addr, err)
		}
		logger.Infof("storing sessions in redis at %s", a.cfg.Redis.Addr)
		return kv.NewRedisStore(client, ""), func() { client.Close() }, nil
	case config.SessionBackendMemory:
		logger.Warn("storing sessions in memory; they will not survive a restart")
		return kv.NewMemoryStore(), func() {}, nil
	default:
		store := sqlite.NewKVStore(a.db)
		if err := store.Init(ctx); err != nil {
			return nil, nil, err
		}
		logger.Infof("storing sessions in %s", a.cfg.Database.Path)
		return store, func() {}, nil
	}
}

// jwtSecret returns the configured signing secret, or a random one that only lives
// as long as the process.
func jwtSecret(cfg config.Config, logger logrus.FieldLogger) string {
	if secret := strings.TrimSpace(cfg.Auth.JWTSecret); secret != "" {
		return secret
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("read random secret: %v", err))
	}
	logger.Warn("COURIER_AUTH_JWTSECRET is not set; using a random secret, sessions end on restart")
	return hex.EncodeToString(buf)
}

// buildStorage returns nil when no bucket is configured; export archiving is then disabled.
func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("no storage bucket configured, export archiving disabled")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving exports to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client), nil
}
