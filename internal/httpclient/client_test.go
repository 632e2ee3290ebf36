package httpclient

import (
	"bytes"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"

	"github.com/scan-io-git/hdf-tools/internal/config"
)

func TestApplyHTTPClientConfig(t *testing.T) {
	defaults := config.DefaultRestyConfig()

	got := applyHTTPClientConfig(nil)
	assert.Equal(t, defaults.RetryCount, got.RetryCount)
	assert.Equal(t, defaults.Timeout, got.Timeout)
	assert.False(t, got.TLSClientConfig.InsecureSkipVerify)
	assert.Empty(t, got.Proxy)

	verify := false
	debug := true
	got = applyHTTPClientConfig(&config.HTTPClient{
		Debug:           &debug,
		RetryCount:      3,
		Timeout:         5 * time.Second,
		TLSClientConfig: config.TLSClientConfig{Verify: &verify},
		Proxy:           config.Proxy{Host: "http://proxy.local", Port: 3128},
	})
	assert.True(t, got.Debug)
	assert.Equal(t, 3, got.RetryCount)
	assert.Equal(t, 5*time.Second, got.Timeout)
	assert.Equal(t, defaults.RetryWaitTime, got.RetryWaitTime)
	assert.True(t, got.TLSClientConfig.InsecureSkipVerify)
	assert.Equal(t, "http://proxy.local:3128", got.Proxy)
}

func TestHclogAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Debug, DisableTime: true})
	a := NewHclogAdapter(l)

	a.Warnf("retrying %s", "GET /api/issues/search")
	a.Debugf("attempt %d", 2)
	assert.Contains(t, buf.String(), "[WARN]  retrying GET /api/issues/search")
	assert.Contains(t, buf.String(), "[DEBUG] attempt 2")
}

func TestNew(t *testing.T) {
	client := New(nil, &config.Config{HTTPClient: config.HTTPClient{RetryCount: 4}})
	assert.Equal(t, 4, client.RetryCount)
	assert.Equal(t, config.DefaultHTTPConfig().Timeout, client.GetClient().Timeout)
}
