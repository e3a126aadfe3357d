package witsml

import (
	"os"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

// DBSettings describes the connection to the backing document store.
type DBSettings struct {
	URL string `yaml:"url" bson:"url" json:"url"`
	DB  string `yaml:"db" bson:"db" json:"db"`
}

// ChannelDataConfig holds the tunables of the channel-data storage
// engine. Chunk sizes are expressed in the primary index domain: raw
// units for depth logs, microseconds since the epoch for time logs.
type ChannelDataConfig struct {
	DepthChunkSize        float64 `yaml:"depth_chunk_size" bson:"depth_chunk_size" json:"depth_chunk_size"`
	TimeChunkSize         float64 `yaml:"time_chunk_size" bson:"time_chunk_size" json:"time_chunk_size"`
	StreamIndexValuePairs bool    `yaml:"stream_index_value_pairs" bson:"stream_index_value_pairs" json:"stream_index_value_pairs"`
	MaxDataNodes          int     `yaml:"max_data_nodes" bson:"max_data_nodes" json:"max_data_nodes"`
	MaxDataPoints         int     `yaml:"max_data_points" bson:"max_data_points" json:"max_data_points"`
}

// ChunkSize returns the configured extent size for the given index type.
func (c ChannelDataConfig) ChunkSize(isTimeIndex bool) float64 {
	if isTimeIndex {
		return c.TimeChunkSize
	}
	return c.DepthChunkSize
}

// Settings contains all configuration for running the service, reflecting
// the settings file given on the command line.
type Settings struct {
	Database    DBSettings        `yaml:"database" bson:"database" json:"database"`
	ChannelData ChannelDataConfig `yaml:"channel_data" bson:"channel_data" json:"channel_data"`
	HTTPPort    int               `yaml:"http_port" bson:"http_port" json:"http_port"`
	LogPath     string            `yaml:"log_path" bson:"log_path" json:"log_path"`
}

// NewSettings builds the settings from the given file.
func NewSettings(filename string) (*Settings, error) {
	configData, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "reading settings file '%s'", filename)
	}

	settings := &Settings{}
	if err = yaml.Unmarshal(configData, settings); err != nil {
		return nil, errors.Wrapf(err, "unmarshalling settings file '%s'", filename)
	}

	return settings, nil
}

// Validate checks the settings for missing required values and fills in
// defaults for the optional ones.
func (s *Settings) Validate() error {
	if s.Database.URL == "" || s.Database.DB == "" {
		return errors.New("database settings must not be blank")
	}

	if s.ChannelData.DepthChunkSize <= 0 {
		s.ChannelData.DepthChunkSize = DefaultDepthChunkSize
	}
	if s.ChannelData.TimeChunkSize <= 0 {
		s.ChannelData.TimeChunkSize = DefaultTimeChunkSize
	}
	if s.ChannelData.MaxDataNodes <= 0 {
		s.ChannelData.MaxDataNodes = DefaultMaxDataNodes
	}
	if s.ChannelData.MaxDataPoints <= 0 {
		s.ChannelData.MaxDataPoints = DefaultMaxDataPoints
	}
	if s.HTTPPort == 0 {
		s.HTTPPort = 8080
	}

	return nil
}
