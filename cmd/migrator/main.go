package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/pflag"
)

const (
	dsnFlag            = "dsn"
	migrationsPathFlag = "migrations-path"
	downFlag           = "down"
)

type migrationLogger struct {
	logger *slog.Logger
}

func (l migrationLogger) Printf(format string, v ...any) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (migrationLogger) Verbose() bool { return true }

func main() {
	dsn := pflag.StringP(dsnFlag, "d", os.Getenv("PG_DSN"), "postgres connection string (defaults to PG_DSN)")
	migrationsPath := pflag.StringP(migrationsPathFlag, "m", "migrations", "directory holding migration files")
	down := pflag.Bool(downFlag, false, "roll back every applied migration")
	pflag.Parse()

	logger := slog.Default()
	if *dsn == "" {
		logger.Error("missing connection string", slog.String("flag", "--"+dsnFlag))
		os.Exit(2)
	}

	m, err := migrate.New("file://"+*migrationsPath, pgxURL(*dsn))
	if err != nil {
		logger.Error("open migrations", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if err := errors.Join(srcErr, dbErr); err != nil {
			logger.Warn("close migrator", slog.Any("error", err))
		}
	}()
	m.Log = migrationLogger{logger: logger}

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations to apply")
	case err != nil:
		logger.Error("migrate", slog.Any("error", err))
		os.Exit(1)
	default:
		version, dirty, _ := m.Version()
		logger.Info("migrations applied", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	}
}

// pgxURL rewrites a postgres:// DSN to the scheme the pgx/v5 driver registers.
func pgxURL(dsn string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, ok := strings.CutPrefix(dsn, scheme); ok {
			return "pgx5://" + rest
		}
	}
	return dsn
}
