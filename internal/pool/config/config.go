// Package config holds the build- and start-up configuration of the pool.
//
// Options are read from the ALLOCPOOL_OPTIONS environment variable as a
// space-separated list of key=value pairs, in the manner of GORACE:
//
//	ALLOCPOOL_OPTIONS="quarantine=1 quarantine_per_alloc=65536 log=debug"
//
// Recognised keys:
//
//	quarantine            enable the quarantine on deallocation (0/1)
//	quarantine_per_alloc  bytes an instance may hold in quarantine
//	quarantine_per_chunk  objects per chunk that force a quarantine release
//	cleanup_every         releases between inline cleanup sweeps (0 = never)
//	remote_batch          outgoing remote frees buffered before posting
//	track_acquire         record acquire-site stacks for leak reports (0/1)
//	log                   log level: off, debug, info, warn, error
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"braces.dev/errtrace"

	"github.com/kolkov/allocpool/internal/pool/aba"
)

// EnvVar is the environment variable read by FromEnv.
const EnvVar = "ALLOCPOOL_OPTIONS"

// Quarantine configures delayed reuse of freed memory.
type Quarantine struct {
	// Enabled holds freed objects back instead of making them reusable.
	Enabled bool

	// PerAllocThreshold is the number of quarantined bytes per allocator
	// instance that triggers a release of the whole quarantine.
	PerAllocThreshold uint64

	// PerChunkThreshold is the number of quarantined objects from one chunk
	// that triggers a release. Zero disables the per-chunk trigger.
	PerChunkThreshold uint32
}

// Config is the complete pool configuration.
type Config struct {
	Quarantine Quarantine

	// CleanupEvery runs an inline cleanup sweep every N releases.
	// Zero disables release-triggered sweeps.
	CleanupEvery uint64

	// RemoteBatch is the number of outgoing remote frees an instance
	// buffers before posting them.
	RemoteBatch int

	// TrackAcquire records the stack of every acquire so leak reports can
	// point at the holder.
	TrackAcquire bool

	// LogEnabled turns on diagnostic logging at LogLevel.
	LogEnabled bool
	LogLevel   slog.Level
}

// Default returns the configuration used when no options are given.
func Default() Config {
	return Config{
		Quarantine: Quarantine{
			PerAllocThreshold: 1 << 20,
			PerChunkThreshold: 0,
		},
		CleanupEvery: 1000,
		RemoteBatch:  64,
		LogLevel:     slog.LevelInfo,
	}
}

// FromEnv parses ALLOCPOOL_OPTIONS on top of Default.
func FromEnv() (Config, error) {
	return errtrace.Wrap2(Parse(os.Getenv(EnvVar)))
}

// Parse applies a space-separated key=value option string to Default.
func Parse(opts string) (Config, error) {
	cfg := Default()
	for _, field := range strings.Fields(opts) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return Config{}, errtrace.Errorf("config: option %q is not key=value", field)
		}
		if err := cfg.set(key, value); err != nil {
			return Config{}, errtrace.Wrap(err)
		}
	}
	return cfg, nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "quarantine":
		c.Quarantine.Enabled, err = parseBool(value)
	case "quarantine_per_alloc":
		c.Quarantine.PerAllocThreshold, err = strconv.ParseUint(value, 10, 64)
	case "quarantine_per_chunk":
		var n uint64
		n, err = strconv.ParseUint(value, 10, 32)
		c.Quarantine.PerChunkThreshold = uint32(n)
	case "cleanup_every":
		c.CleanupEvery, err = strconv.ParseUint(value, 10, 64)
	case "remote_batch":
		c.RemoteBatch, err = strconv.Atoi(value)
		if err == nil && c.RemoteBatch < 1 {
			err = errtrace.New("must be at least 1")
		}
	case "track_acquire":
		c.TrackAcquire, err = parseBool(value)
	case "log":
		err = c.setLog(value)
	default:
		return errtrace.Errorf("config: unknown option %q", key)
	}
	if err != nil {
		return errtrace.Errorf("config: option %s=%q: %w", key, value, err)
	}
	return nil
}

func (c *Config) setLog(value string) error {
	if value == "off" {
		c.LogEnabled = false
		return nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return errtrace.Wrap(err)
	}
	c.LogEnabled = true
	c.LogLevel = level
	return nil
}

func parseBool(value string) (bool, error) {
	b, err := strconv.ParseBool(value)
	return b, errtrace.Wrap(err)
}

// Describe renders the configuration announcement, for example
//
//	allocpool tagged quar+paat=1048576+pact=16 track
func (c Config) Describe() string {
	var b strings.Builder
	b.WriteString("allocpool ")
	b.WriteString(aba.Strategy)
	if q := c.Quarantine; q.Enabled {
		fmt.Fprintf(&b, " quar+paat=%d", q.PerAllocThreshold)
		if q.PerChunkThreshold > 0 {
			fmt.Fprintf(&b, "+pact=%d", q.PerChunkThreshold)
		}
	}
	if c.TrackAcquire {
		b.WriteString(" track")
	}
	return b.String()
}
