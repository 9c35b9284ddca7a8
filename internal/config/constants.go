package config

import "time"

// ConfigFileEnv names the environment variable holding the YAML config path
const ConfigFileEnv = "WORDGAMES_CONFIG_FILE"

// Server defaults
const (
	DefaultServerPort = "8080"

	ShutdownTimeout = 30 * time.Second
)

// Database defaults
const (
	DefaultMaxOpenConns     = 25
	DefaultMaxIdleConns     = 5
	DatabaseConnMaxLifetime = 5 * time.Minute
)

// Question selection defaults
const (
	// DefaultNumQuestions is the batch size served by a play request
	DefaultNumQuestions = 10
	// DefaultMaxWrongResurface caps previously-missed questions per batch
	DefaultMaxWrongResurface = 3
	// DefaultMaxCorrectResurface caps due, previously-correct questions per batch
	DefaultMaxCorrectResurface = 2
	// DefaultMaxCorrectResurfaceFewWrong replaces DefaultMaxCorrectResurface when
	// fewer than DefaultMaxWrongResurface missed questions exist
	DefaultMaxCorrectResurfaceFewWrong = 3
	// DefaultDifficultyMean is the mean of the target difficulty distribution
	DefaultDifficultyMean = 17.5
	// DefaultDifficultyStdDev is the standard deviation of the target difficulty distribution
	DefaultDifficultyStdDev = 5
)

// Cache and segmenter defaults
const (
	DefaultCacheTTL         = 10 * time.Minute
	DefaultCacheKeyPrefix   = "wordgames"
	DefaultSegmenterTimeout = 5 * time.Second
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS
	SessionMaxAge   = 7 * 24 * time.Hour

	SessionName = "wordgames-session"
)

// DefaultCSP is the Content Security Policy sent with every response
const DefaultCSP = "default-src 'self'; img-src 'self' data:;"
