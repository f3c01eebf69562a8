package store

import "time"

// Config describes the embedded datastore connection. Fields are populated
// from environment variables via github.com/caarlos0/env.
type Config struct {
	// Path is the SQLite database file. ":memory:" is accepted for tests.
	Path string `env:"PURCHASE_DB_PATH" envDefault:"purchases.db"`
	// BusyTimeout bounds how long a write waits on a locked database file
	// before failing with a retryable busy error.
	BusyTimeout time.Duration `env:"PURCHASE_DB_BUSY_TIMEOUT" envDefault:"5s"`
}
