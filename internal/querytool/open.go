package querytool

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/aman-zulfiqar/sql-query-buddy/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Addr     string
	Database string
	Username string
	Password string
}

// OpenPostgres connects through pgx and runs each query in a read-only transaction.
func OpenPostgres(ctx context.Context, dsn string, logger *logrus.Logger) (Runner, error) {
	if dsn == "" {
		return nil, fmt.Errorf("QUERY_TOOL_DSN is required for the postgres query tool")
	}
	if logger == nil {
		logger = logrus.New()
	}
	pgCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}

	db := stdlib.OpenDB(*pgCfg)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"host":     pgCfg.Host,
		"database": pgCfg.Database,
	}).Info("connected query tool to postgres")
	return newDBRunner(db, true, logger), nil
}

// OpenClickHouse connects through the clickhouse-go database/sql wrapper.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig, logger *logrus.Logger) (Runner, error) {
	if logger == nil {
		logger = logrus.New()
	}
	db := clickhouse.OpenDB(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
	})
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected query tool to ClickHouse")
	return newDBRunner(db, false, logger), nil
}

// Open builds the runner selected by cfg.QueryToolDriver.
func Open(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (Runner, error) {
	if logger == nil {
		logger = logrus.New()
	}
	switch cfg.QueryToolDriver {
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.QueryToolDSN, logger)
	case config.DriverClickHouse:
		return OpenClickHouse(ctx, ClickHouseConfig{
			Addr:     cfg.ClickHouseAddr,
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUsername,
			Password: cfg.ClickHousePassword,
		}, logger)
	default:
		return nil, fmt.Errorf("unsupported query tool driver %q", cfg.QueryToolDriver)
	}
}

func newDBRunner(db *sql.DB, readOnlyTx bool, logger *logrus.Logger) *dbRunner {
	if logger == nil {
		logger = logrus.New()
	}
	return &dbRunner{db: db, readOnlyTx: readOnlyTx, logger: logger}
}
