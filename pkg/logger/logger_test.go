package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":        "info",
		"info":    "info",
		"INFO":    "info",
		"debug":   "debug",
		"DEBUG":   "debug",
		"warn":    "warn",
		"warning": "warn",
		"error":   "error",
		"bogus":   "info",
	}

	for in, want := range cases {
		assert.Equal(t, want, parseLevel(in).String(), "input %q", in)
	}
}

func TestIsTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, isTerminal("console"))
	assert.True(t, isTerminal("TEXT"))
	assert.False(t, isTerminal(""))
	assert.False(t, isTerminal("json"))
}

func TestPackageFunctionsDoNotPanicBeforeInitialize(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() {
		Info("hello")
		Infof("hello %s", "world")
		Infow("hello", "key", "value")
		Debug("debug")
		Warnf("warn %d", 1)
		Error("error")
	})
}
