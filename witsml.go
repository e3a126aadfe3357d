package witsml

// Package-level constants shared across the service.
const (
	// ClientVersion is the release version of the witsmld binary.
	ClientVersion = "2026-08-20"

	// DefaultConfigPath is where the service looks for its settings file
	// when no --conf flag is given.
	DefaultConfigPath = "/etc/witsmld.yml"

	// DefaultDepthChunkSize is the primary-index extent covered by one
	// chunk of a depth-indexed log.
	DefaultDepthChunkSize = float64(1000)

	// DefaultTimeChunkSize is the primary-index extent covered by one
	// chunk of a time-indexed log, in microseconds (one day).
	DefaultTimeChunkSize = float64(86400) * 1e6

	// DefaultMaxDataNodes bounds the number of rows assembled for a
	// single query.
	DefaultMaxDataNodes = 10000

	// DefaultMaxDataPoints bounds the number of individual values
	// assembled for a single query.
	DefaultMaxDataPoints = 500000
)
