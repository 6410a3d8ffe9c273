// Package config contains the configuration of geogit: how diffs are
// streamed, how stores cache objects and what is traced.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/go-git/gcfg"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/go-geogit/geogit"
	"github.com/go-geogit/geogit/plumbing/cache"
	"github.com/go-geogit/geogit/storage/bolt"
	"github.com/go-geogit/geogit/storage/filesystem"
	"github.com/go-geogit/geogit/utils/trace"
)

var (
	ErrInvalidQueueSize    = errors.New("diff.queueSize must be positive")
	ErrInvalidPollInterval = errors.New("diff.pollInterval must be positive")
	ErrInvalidWorkers      = errors.New("diff.workers must be positive")
	ErrUnknownTraceTarget  = errors.New("unknown trace target")
)

// DefaultFileName is the name of the configuration file in a repository.
const DefaultFileName = "config"

// Config contains the geogit configuration, as read from an INI file:
//
//	[diff]
//		queueSize = 100000
//		pollInterval = 10
//		workers = 4
//		preserveOrder = false
//	[storage]
//		cacheSize = 4096
//	[trace]
//		target = walk
//		target = performance
type Config struct {
	Diff    Diff
	Storage Storage
	Trace   Trace
}

// Diff configures DiffTree.
type Diff struct {
	// QueueSize is the number of entries a producer can get ahead of its
	// reader.
	QueueSize int
	// PollInterval is the reader poll interval, in milliseconds.
	PollInterval int
	// Workers is the number of diffs that can be produced at once.
	Workers int
	// PreserveOrder reports the changes in canonical order.
	PreserveOrder bool
}

// Storage configures the object stores.
type Storage struct {
	// CacheSize is the number of decoded objects kept in memory. A negative
	// value disables the cache.
	CacheSize int
}

// Trace lists the enabled trace targets.
type Trace struct {
	Target []string
}

// NewConfig returns a new Config with the default values.
func NewConfig() *Config {
	c := &Config{}
	_ = c.Validate()
	return c
}

func defaults() Config {
	return Config{
		Diff: Diff{
			QueueSize:    geogit.DefaultQueueSize,
			PollInterval: int(geogit.DefaultPollInterval / time.Millisecond),
			Workers:      runtime.NumCPU(),
		},
		Storage: Storage{CacheSize: cache.DefaultMaxEntries},
	}
}

// Validate validates the fields and sets the default values.
func (c *Config) Validate() error {
	if err := mergo.Merge(c, defaults()); err != nil {
		return err
	}

	switch {
	case c.Diff.QueueSize < 0:
		return ErrInvalidQueueSize
	case c.Diff.PollInterval < 0:
		return ErrInvalidPollInterval
	case c.Diff.Workers < 0:
		return ErrInvalidWorkers
	}

	if _, err := c.Trace.Targets(); err != nil {
		return err
	}

	return nil
}

// Unmarshal parses an INI configuration and validates it.
func (c *Config) Unmarshal(b []byte) error {
	return c.Read(bytes.NewReader(b))
}

// Read parses an INI configuration from r and validates it.
func (c *Config) Read(r io.Reader) error {
	if err := gcfg.FatalOnly(gcfg.ReadInto(c, r)); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	return c.Validate()
}

// ReadConfig reads the configuration at path in fs. A missing file is the
// default configuration.
func ReadConfig(fs billy.Filesystem, path string) (*Config, error) {
	c := &Config{}
	b, err := util.ReadFile(fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return c, c.Validate()
	}

	if err != nil {
		return nil, err
	}

	if err := c.Unmarshal(b); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return c, nil
}

// Targets returns the trace targets named by t.
func (t Trace) Targets() (trace.Target, error) {
	var out trace.Target
	for _, name := range t.Target {
		target, ok := trace.ParseTarget(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownTraceTarget, name)
		}

		out |= target
	}

	return out, nil
}

// ApplyTrace enables the configured trace targets, on top of the ones
// already enabled.
func (c *Config) ApplyTrace() error {
	targets, err := c.Trace.Targets()
	if err != nil {
		return err
	}

	trace.SetTarget(trace.Current() | targets)
	return nil
}

// NewPool returns a pool with the configured number of workers. The caller
// must close it.
func (c *Config) NewPool() *geogit.Pool {
	return geogit.NewPool(c.Diff.Workers)
}

// DiffOptions returns the configured harness options. Trees, sources and
// filters are left for the caller.
func (c *Config) DiffOptions(pool *geogit.Pool) *geogit.DiffTreeOptions {
	return &geogit.DiffTreeOptions{
		QueueSize:              c.Diff.QueueSize,
		PollInterval:           time.Duration(c.Diff.PollInterval) * time.Millisecond,
		PreserveIterationOrder: c.Diff.PreserveOrder,
		Pool:                   pool,
	}
}

// BoltOptions returns the options of a bolt store using this
// configuration.
func (c *Config) BoltOptions() bolt.Options {
	return bolt.Options{CacheSize: c.Storage.CacheSize}
}

// FilesystemOptions returns the options of a filesystem store using this
// configuration.
func (c *Config) FilesystemOptions() filesystem.Options {
	return filesystem.Options{CacheSize: c.Storage.CacheSize}
}
