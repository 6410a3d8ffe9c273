// Package trace provides functions to read environment variables for enabling
// trace targets in the geogit library.
package trace

import (
	"os"
	"strconv"

	"github.com/go-geogit/geogit/utils/trace"
)

// envToTarget maps what environment variables can be used
// to enable specific trace targets.
var envToTarget = map[string]trace.Target{
	"GEOGIT_TRACE":             trace.General,
	"GEOGIT_TRACE_WALK":        trace.Walk,
	"GEOGIT_TRACE_BUILDER":     trace.Builder,
	"GEOGIT_TRACE_STORAGE":     trace.Storage,
	"GEOGIT_TRACE_PERFORMANCE": trace.Performance,
}

// ReadEnv reads the environment variables and sets the trace targets.
// This is used to enable tracing in the geogit library.
func ReadEnv() {
	trace.SetTarget(FromEnv(os.Getenv))
}

// FromEnv returns the targets enabled by the variables getenv resolves.
func FromEnv(getenv func(string) string) trace.Target {
	var target trace.Target
	for k, v := range envToTarget {
		env := getenv(k)
		if val, _ := strconv.ParseBool(env); val {
			target |= v
		}
	}

	return target
}
