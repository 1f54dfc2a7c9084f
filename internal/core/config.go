package core

import (
	"github.com/yanun0323/errors"

	"tob/internal/schema"
)

// UnresolvedPolicy decides what happens to events whose locate code did not
// resolve.
type UnresolvedPolicy string

const (
	// UnresolvedDrop drops unresolved events before they reach a shard.
	UnresolvedDrop UnresolvedPolicy = "drop"
	// UnresolvedPass forwards unresolved events with the sentinel index; the
	// builder rejects and counts them.
	UnresolvedPass UnresolvedPolicy = "pass"
)

const (
	defaultShards    = 4
	defaultQueueSize = 4096
)

// Config controls the pipeline layout.
type Config struct {
	Universe   int              `yaml:"universe"`
	Shards     int              `yaml:"shards"`
	QueueSize  int              `yaml:"queue_size"`
	Unresolved UnresolvedPolicy `yaml:"unresolved"`
}

// DefaultConfig returns the default pipeline layout.
func DefaultConfig() Config {
	return Config{
		Universe:   schema.DefaultUniverse,
		Shards:     defaultShards,
		QueueSize:  defaultQueueSize,
		Unresolved: UnresolvedDrop,
	}
}

// WithDefaults fills zero fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c.Universe == 0 {
		c.Universe = def.Universe
	}
	if c.Shards == 0 {
		c.Shards = def.Shards
	}
	if c.QueueSize == 0 {
		c.QueueSize = def.QueueSize
	}
	if c.Unresolved == "" {
		c.Unresolved = def.Unresolved
	}
	return c
}

// Validate checks the config after defaults are applied.
func (c Config) Validate() error {
	if c.Universe <= 0 || c.Universe >= int(schema.SentinelIndex) {
		return errors.Errorf("invalid core config: universe %d out of range", c.Universe)
	}
	if c.Shards <= 0 || c.Shards > c.Universe {
		return errors.Errorf("invalid core config: shards %d", c.Shards)
	}
	if c.QueueSize <= 0 {
		return errors.Errorf("invalid core config: queue size %d", c.QueueSize)
	}
	switch c.Unresolved {
	case UnresolvedDrop, UnresolvedPass:
	default:
		return errors.Errorf("invalid core config: unresolved policy %q", c.Unresolved)
	}
	return nil
}
