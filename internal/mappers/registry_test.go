package mappers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/pkg/shared/errors"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.Len(t, r.Scanners(), 11)

	for _, s := range r.Scanners() {
		if s.Kind == converter.KindAPI {
			assert.Nil(t, s.Convert, s.Name)
		} else {
			assert.NotNil(t, s.Convert, s.Name)
		}
	}

	s, err := r.Get("Nessus")
	require.NoError(t, err)
	assert.Equal(t, converter.KindXML, s.Kind)
	assert.False(t, s.NeedsName)

	s, err = r.Get("zap")
	require.NoError(t, err)
	assert.True(t, s.NeedsName)
}

func TestRegistryConvertAPISource(t *testing.T) {
	_, err := NewRegistry().Convert("sonarqube", []byte("{}"), converter.Options{})
	var notImplemented *errors.NotImplementedError
	require.ErrorAs(t, err, &notImplemented)
	assert.Contains(t, err.Error(), "sonarqube command")
}
