package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"courier-dashboard/internal/config"
	"courier-dashboard/internal/repository"
	"courier-dashboard/internal/repository/sqlite"
)

var rootCmd = &cobra.Command{
	Use:           "courier-dashboard",
	Short:         "Courier compliance dashboard server",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, seedCmd, usersCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app holds what every command needs: configuration, a logger and the opened database.
type app struct {
	cfg     config.Config
	logger  *logrus.Logger
	db      *sql.DB
	users   repository.UserRepository
	records repository.ComplianceRepository
}

func newLogger(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	if strings.EqualFold(cfg.Log.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// openApp loads configuration, opens the database and creates the tables.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		users:   sqlite.NewUserRepository(db),
		records: sqlite.NewComplianceRepository(db),
	}
	if err := a.users.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init user repository: %w", err)
	}
	if err := a.records.Init(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init compliance repository: %w", err)
	}
	return a, nil
}

func (a *app) Close() error {
	return a.db.Close()
}
