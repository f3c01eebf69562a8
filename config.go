package purchasekit

import (
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/purchasekit/pkg/cache"
	"github.com/dmitrymomot/purchasekit/pkg/purchase"
	"github.com/dmitrymomot/purchasekit/pkg/store"
)

// Config is the engine's environment-driven configuration. Redis is optional:
// with an empty RedisURL the product cache stays in memory.
type Config struct {
	Platform        purchase.Platform `env:"PURCHASE_PLATFORM,required"`
	Store           store.Config
	ProductCacheTTL time.Duration `env:"PURCHASE_PRODUCT_CACHE_TTL" envDefault:"24h"`
	RedisURL        string        `env:"PURCHASE_REDIS_URL"`
	Redis           cache.RedisConfig
}

var dotenvLoaded sync.Once

// LoadConfig populates a Config from the environment, reading a .env file
// first when one exists.
func LoadConfig() (Config, error) {
	dotenvLoaded.Do(func() {
		// Missing .env files are fine, real environments set variables directly.
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, purchase.NewConfiguration("failed to parse environment: " + err.Error())
	}
	if !cfg.Platform.Valid() {
		return Config{}, purchase.NewConfiguration("unknown platform tag: " + string(cfg.Platform))
	}
	return cfg, nil
}
