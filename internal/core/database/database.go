package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const DriverName = "pgx"

// Connect opens the shared connection pool used by both sqlx and gorm.
func Connect(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Connect(DriverName, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := internal.WithTimeout(context.Background(), cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// OpenGorm layers gorm over an already open pool.
func OpenGorm(sqlDB *sql.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
}

// Classify maps a raw store error onto the application taxonomy.
// AppErrors pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok {
		return err
	}

	if field, ok := UniqueViolationField(err); ok {
		return internal.NewDuplicateResourceError(field).WithCause(err)
	}
	if IsTransient(err) {
		return internal.NewStoreUnavailableError(err)
	}
	return internal.NewInternalError("store operation failed", err)
}

// IsTransient reports failures worth retrying: timeouts, dropped connections,
// serialization conflicts and lock contention.
func IsTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
			pgErr.Code == "40001",               // serialization_failure
			pgErr.Code == "40P01",               // deadlock_detected
			pgErr.Code == "57P01",               // admin_shutdown
			pgErr.Code == "57014":               // query_canceled
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

func IsUniqueViolation(err error) bool {
	_, ok := UniqueViolationField(err)
	return ok
}

// UniqueViolationField extracts the offending column or constraint from a unique violation.
func UniqueViolationField(err error) (string, bool) {
	if err == nil {
		return "", false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return "", false
		}
		if pgErr.ColumnName != "" {
			return pgErr.ColumnName, true
		}
		return constraintField(pgErr.TableName, pgErr.ConstraintName), true
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "unknown", true
	}

	// sqlite: "UNIQUE constraint failed: users.email"
	const sqlitePrefix = "UNIQUE constraint failed: "
	msg := err.Error()
	if idx := strings.Index(msg, sqlitePrefix); idx >= 0 {
		cols := strings.Split(msg[idx+len(sqlitePrefix):], ", ")
		first := cols[0]
		if dot := strings.LastIndex(first, "."); dot >= 0 {
			first = first[dot+1:]
		}
		return first, true
	}

	return "", false
}

// constraintField turns users_email_key into email.
func constraintField(table, constraint string) string {
	field := strings.TrimPrefix(constraint, table+"_")
	for _, suffix := range []string{"_key", "_idx", "_unique"} {
		field = strings.TrimSuffix(field, suffix)
	}
	if field == "" {
		return constraint
	}
	return field
}
