package global

import (
	"sync"

	"github.com/kolkov/allocpool/internal/pool/config"
	"github.com/kolkov/allocpool/internal/pool/logger"
	"github.com/kolkov/allocpool/internal/pool/provider"
)

var (
	current     *Pool
	currentOnce sync.Once
)

// Current returns the process pool, building it on first use.
//
// Configuration comes from the ALLOCPOOL_OPTIONS environment variable; an
// invalid option string is logged and the defaults are used. The pool is
// never torn down.
func Current() *Pool {
	currentOnce.Do(func() {
		cfg, err := config.FromEnv()
		if err != nil {
			cfg = config.Default()
			defer logger.Error("ignoring invalid options", "env", config.EnvVar, "error", err)
		}
		logger.Init(logger.Options{Enabled: cfg.LogEnabled, Level: cfg.LogLevel})
		logger.Info(cfg.Describe())

		current = New(cfg, provider.Default())
	})
	return current
}
