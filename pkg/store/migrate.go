package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrFailedToMigrate = errors.New("store: failed to apply migrations")

// Migrate applies the embedded schema migrations. Goose output is routed
// through the given structured logger instead of stdout; a nil logger
// discards it.
func Migrate(ctx context.Context, db *gorm.DB, log *slog.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Join(ErrFailedToMigrate, err)
	}

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(&gooseSlogAdapter{log: log})

	if err := goose.SetDialect("sqlite3"); err != nil {
		return errors.Join(ErrFailedToMigrate, err)
	}
	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return errors.Join(ErrFailedToMigrate, err)
	}
	return nil
}

// gooseSlogAdapter bridges goose's Printf-style logging to slog.
type gooseSlogAdapter struct {
	log *slog.Logger
}

func (a *gooseSlogAdapter) Fatalf(format string, v ...any) {
	if a.log != nil {
		a.log.Error(fmt.Sprintf(format, v...))
	}
}

func (a *gooseSlogAdapter) Printf(format string, v ...any) {
	if a.log != nil {
		a.log.Info(fmt.Sprintf(format, v...))
	}
}
