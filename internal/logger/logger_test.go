package logger

import (
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/hdf-tools/internal/config"
)

func TestDetermineLogLevel(t *testing.T) {
	tests := []struct {
		name string
		env  string
		cfg  *config.Config
		want hclog.Level
	}{
		{name: "defaults to info", want: hclog.Info},
		{name: "from config", cfg: &config.Config{Logger: config.Logger{Level: "debug"}}, want: hclog.Debug},
		{name: "env wins", env: "error", cfg: &config.Config{Logger: config.Logger{Level: "debug"}}, want: hclog.Error},
		{name: "unknown level", env: "loud", want: hclog.Info},
		{name: "trace", env: "TRACE", want: hclog.Trace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvLogLevel, tt.env)
			assert.Equal(t, tt.want, determineLogLevel(tt.cfg))
		})
	}
}

func TestSetVerbose(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	l := NewLogger(nil, "test")
	assert.False(t, l.IsDebug())

	SetVerbose(l, false)
	assert.False(t, l.IsDebug())

	SetVerbose(l, true)
	assert.True(t, l.IsDebug())
}
