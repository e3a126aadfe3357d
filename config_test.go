package witsml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "witsmld.yml")
	conf := "database:\n  url: mongodb://localhost:27017\n  db: witsml\nhttp_port: 9090\n"
	require.NoError(t, os.WriteFile(path, []byte(conf), 0600))

	settings, err := NewSettings(path)
	require.NoError(t, err)
	require.NoError(t, settings.Validate())

	assert.Equal(t, "witsml", settings.Database.DB)
	assert.Equal(t, 9090, settings.HTTPPort)
	assert.Equal(t, DefaultDepthChunkSize, settings.ChannelData.DepthChunkSize)
	assert.Equal(t, DefaultTimeChunkSize, settings.ChannelData.TimeChunkSize)
	assert.Equal(t, DefaultMaxDataNodes, settings.ChannelData.MaxDataNodes)
	assert.Equal(t, DefaultMaxDataPoints, settings.ChannelData.MaxDataPoints)
}

func TestNewSettingsMissingFile(t *testing.T) {
	_, err := NewSettings(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestSettingsValidate(t *testing.T) {
	s := &Settings{}
	assert.Error(t, s.Validate())

	s.Database = DBSettings{URL: "mongodb://localhost:27017", DB: "witsml"}
	require.NoError(t, s.Validate())
	assert.Equal(t, 8080, s.HTTPPort)
}

func TestChunkSizeByIndexType(t *testing.T) {
	c := ChannelDataConfig{DepthChunkSize: 1000, TimeChunkSize: 2000}
	assert.Equal(t, float64(1000), c.ChunkSize(false))
	assert.Equal(t, float64(2000), c.ChunkSize(true))
}
