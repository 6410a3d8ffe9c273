// Package trace provides opt-in tracing of geogit operations, grouped by
// target.
package trace

import (
	"fmt"
	"log"
	"os"
	"sync/atomic"
)

var (
	// logger is the logger to use for tracing.
	logger = newLogger()

	// current is the targets that are enabled for tracing.
	current atomic.Int32
)

func newLogger() *log.Logger {
	return log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds|log.Lshortfile)
}

// Target is a tracing target.
type Target int32

const (
	// General traces general operations.
	General Target = 1 << iota

	// Walk traces the traversal of tree pairs by the diff walk.
	Walk

	// Builder traces tree splits and collapses.
	Builder

	// Storage traces object store reads and writes.
	Storage

	// Performance traces timings and counters of diff operations.
	Performance
)

// SetTarget sets the tracing targets.
func SetTarget(target Target) {
	current.Store(int32(target))
}

// Current returns the enabled tracing targets.
func Current() Target {
	return Target(current.Load())
}

// SetLogger sets the logger to use for tracing.
func SetLogger(l *log.Logger) {
	logger = l
}

// Enabled reports whether t is being traced.
func (t Target) Enabled() bool {
	return int32(t)&current.Load() != 0
}

// Print prints the given message if tracing is enabled.
func (t Target) Print(args ...interface{}) {
	if t.Enabled() {
		logger.Output(2, fmt.Sprint(args...)) // nolint: errcheck
	}
}

// Printf prints the given message if tracing is enabled.
func (t Target) Printf(format string, args ...interface{}) {
	if t.Enabled() {
		logger.Output(2, fmt.Sprintf(format, args...)) // nolint: errcheck
	}
}

// ParseTarget returns the target with the given name, as used in
// configuration files: general, walk, builder, storage or performance.
func ParseTarget(name string) (Target, bool) {
	switch name {
	case "general":
		return General, true
	case "walk":
		return Walk, true
	case "builder":
		return Builder, true
	case "storage":
		return Storage, true
	case "performance":
		return Performance, true
	default:
		return 0, false
	}
}
