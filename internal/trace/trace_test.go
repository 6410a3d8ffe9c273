package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-geogit/geogit/utils/trace"
)

func TestFromEnv(t *testing.T) {
	env := map[string]string{
		"GEOGIT_TRACE_WALK":    "true",
		"GEOGIT_TRACE_STORAGE": "1",
		"GEOGIT_TRACE_BUILDER": "no",
	}

	got := FromEnv(func(k string) string { return env[k] })
	assert.Equal(t, trace.Walk|trace.Storage, got)
}

func TestFromEnvEmpty(t *testing.T) {
	assert.Equal(t, trace.Target(0), FromEnv(func(string) string { return "" }))
}
