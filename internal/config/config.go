// Package config handles application configuration loading from YAML and environment variables.
package config

import (
	"errors"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	contextutils "wordgames/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server" yaml:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database" yaml:"database"`

	// Question selection policy
	Games GamesConfig `json:"games" yaml:"games"`

	// Redis question cache
	Cache CacheConfig `json:"cache" yaml:"cache"`

	// Word segmentation service
	Segmenter SegmenterConfig `json:"segmenter" yaml:"segmenter"`

	// OpenTelemetry Configuration
	OpenTelemetry OpenTelemetryConfig `json:"open_telemetry" yaml:"open_telemetry"`

	// Internal fields
	IsTest bool `json:"is_test" yaml:"is_test"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port          string   `json:"port" yaml:"port" validate:"required,numeric"`
	SessionSecret string   `json:"session_secret" yaml:"session_secret"`
	Debug         bool     `json:"debug" yaml:"debug"`
	LogLevel      string   `json:"log_level" yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	CORSOrigins   []string `json:"cors_origins" yaml:"cors_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	URL             string        `json:"url" yaml:"url"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns" validate:"gte=0"`       // Maximum number of open connections to the database
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns" validate:"gte=0"`       // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime" validate:"gte=0"` // Maximum amount of time a connection may be reused
	MigrationsPath  string        `json:"migrations_path" yaml:"migrations_path"`                      // Empty means search upwards for ./migrations
}

// GamesConfig holds the question selection policy shared by every game kind.
// Zero values fall back to the defaults in constants.go.
type GamesConfig struct {
	NumQuestions                int            `json:"num_questions" yaml:"num_questions" validate:"gte=0"`
	NumQuestionsByKind          map[string]int `json:"num_questions_by_kind" yaml:"num_questions_by_kind" validate:"dive,gte=0"`
	MaxWrongResurface           int            `json:"max_wrong_resurface" yaml:"max_wrong_resurface" validate:"gte=0"`
	MaxCorrectResurface         int            `json:"max_correct_resurface" yaml:"max_correct_resurface" validate:"gte=0"`
	MaxCorrectResurfaceFewWrong int            `json:"max_correct_resurface_few_wrong" yaml:"max_correct_resurface_few_wrong" validate:"gte=0"`
	DifficultyMean              float64        `json:"difficulty_mean" yaml:"difficulty_mean" validate:"gte=0"`
	DifficultyStdDev            float64        `json:"difficulty_stdev" yaml:"difficulty_stdev" validate:"gte=0"`
}

// CacheConfig configures the Redis-backed question bank cache
type CacheConfig struct {
	Enabled   bool          `json:"enabled" yaml:"enabled"`
	RedisAddr string        `json:"redis_addr" yaml:"redis_addr" validate:"required_if=Enabled true"`
	Password  string        `json:"password" yaml:"password"`
	DB        int           `json:"db" yaml:"db" validate:"gte=0"`
	TTL       time.Duration `json:"ttl" yaml:"ttl" validate:"gte=0"`
	KeyPrefix string        `json:"key_prefix" yaml:"key_prefix"`
}

// SegmenterConfig configures how source texts are split into words
type SegmenterConfig struct {
	// URL of an external segmentation service. Empty selects the built-in segmenter.
	URL     string        `json:"url" yaml:"url" validate:"omitempty,url"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"gte=0"`
	// Exceptions replaces a segmented word with one or more words.
	Exceptions map[string][]string `json:"exceptions" yaml:"exceptions"`
}

// OpenTelemetryConfig holds all OpenTelemetry-related configuration
type OpenTelemetryConfig struct {
	Endpoint       string            `json:"endpoint" yaml:"endpoint"`                                                   // Default: "localhost:4317"
	Protocol       string            `json:"protocol" yaml:"protocol" validate:"omitempty,oneof=grpc http"`              // "grpc" or "http", default: "grpc"
	Insecure       bool              `json:"insecure" yaml:"insecure"`                                                   // Default: true (for localhost)
	Headers        map[string]string `json:"headers" yaml:"headers"`                                                     // For authenticated endpoints
	ServiceName    string            `json:"service_name" yaml:"service_name"`                                           // Default: "wordgames-backend"
	ServiceVersion string            `json:"service_version" yaml:"service_version"`                                     // From version package
	EnableTracing  bool              `json:"enable_tracing" yaml:"enable_tracing"`                                       // Default: true
	EnableMetrics  bool              `json:"enable_metrics" yaml:"enable_metrics"`                                       // Default: true
	EnableLogging  bool              `json:"enable_logging" yaml:"enable_logging"`                                       // Default: true
	SamplingRate   float64           `json:"sampling_rate" yaml:"sampling_rate" validate:"gte=0,lte=1"`                  // Default: 1.0 (100%)
}

// NumQuestionsFor returns the batch size for a game kind. Precedence: per-kind
// override, the kind's own batch size, the global setting, DefaultNumQuestions.
func (g GamesConfig) NumQuestionsFor(kind string, kindDefault int) int {
	if n, ok := g.NumQuestionsByKind[kind]; ok && n > 0 {
		return n
	}
	if kindDefault > 0 {
		return kindDefault
	}
	if g.NumQuestions > 0 {
		return g.NumQuestions
	}
	return DefaultNumQuestions
}

// NewConfig loads configuration from YAML file first, then overrides with environment variables
func NewConfig() (result0 *Config, err error) {
	// A missing .env is normal outside local development
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load .env: %w", err)
	}

	config, err := loadConfigWithOverrides()
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config: %w", err)
	}

	config.overrideFromEnv()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks the struct tags on every section
func (c *Config) Validate() error {
	return contextutils.ValidateStruct(c)
}

// applyDefaults fills zero values that have a sensible default
func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = DefaultMaxOpenConns
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = DefaultMaxIdleConns
	}
	if c.Database.ConnMaxLifetime == 0 {
		c.Database.ConnMaxLifetime = DatabaseConnMaxLifetime
	}
	if c.Games.MaxWrongResurface == 0 {
		c.Games.MaxWrongResurface = DefaultMaxWrongResurface
	}
	if c.Games.MaxCorrectResurface == 0 {
		c.Games.MaxCorrectResurface = DefaultMaxCorrectResurface
	}
	if c.Games.MaxCorrectResurfaceFewWrong == 0 {
		c.Games.MaxCorrectResurfaceFewWrong = DefaultMaxCorrectResurfaceFewWrong
	}
	if c.Games.DifficultyMean == 0 {
		c.Games.DifficultyMean = DefaultDifficultyMean
	}
	if c.Games.DifficultyStdDev == 0 {
		c.Games.DifficultyStdDev = DefaultDifficultyStdDev
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = DefaultCacheKeyPrefix
	}
	if c.Segmenter.Timeout == 0 {
		c.Segmenter.Timeout = DefaultSegmenterTimeout
	}
	if c.OpenTelemetry.ServiceName == "" {
		c.OpenTelemetry.ServiceName = "wordgames-backend"
	}
	if c.OpenTelemetry.Protocol == "" {
		c.OpenTelemetry.Protocol = "grpc"
	}
}

// overrideFromEnv overrides config values with environment variables using reflection
func (c *Config) overrideFromEnv() {
	overrideStructFromEnvWithPrefix(c, "")
}

var durationType = reflect.TypeOf(time.Duration(0))

// overrideStructFromEnvWithPrefix recursively overrides struct fields with environment variables
func overrideStructFromEnvWithPrefix(v interface{}, prefix string) {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	if val.Kind() != reflect.Struct {
		return
	}

	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		if !field.CanSet() {
			continue
		}

		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}

		envKey := strings.ToUpper(strings.ReplaceAll(yamlTag, "-", "_"))
		if prefix != "" {
			envKey = prefix + "_" + envKey
		}

		if field.Type() == durationType {
			if envVal := os.Getenv(envKey); envVal != "" {
				if d, err := time.ParseDuration(envVal); err == nil {
					field.SetInt(int64(d))
				}
			}
			continue
		}

		switch field.Kind() {
		case reflect.String:
			if envVal := os.Getenv(envKey); envVal != "" {
				field.SetString(envVal)
			}
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if intVal, err := strconv.ParseInt(envVal, 10, 64); err == nil {
					field.SetInt(intVal)
				}
			}
		case reflect.Float32, reflect.Float64:
			if envVal := os.Getenv(envKey); envVal != "" {
				if floatVal, err := strconv.ParseFloat(envVal, 64); err == nil {
					field.SetFloat(floatVal)
				}
			}
		case reflect.Bool:
			if envVal := os.Getenv(envKey); envVal != "" {
				if boolVal, err := strconv.ParseBool(envVal); err == nil {
					field.SetBool(boolVal)
				}
			}
		case reflect.Slice:
			if envVal := os.Getenv(envKey); envVal != "" {
				if field.Type().Elem().Kind() == reflect.String {
					slice := strings.Split(envVal, ",")
					field.Set(reflect.ValueOf(slice))
				}
			}
		case reflect.Struct:
			if field.CanAddr() {
				overrideStructFromEnvWithPrefix(field.Addr().Interface(), envKey)
			}
		}
	}
}

// loadConfigWithOverrides loads the config file named by WORDGAMES_CONFIG_FILE or ./config.yaml
func loadConfigWithOverrides() (result0 *Config, err error) {
	if envPath := os.Getenv(ConfigFileEnv); envPath != "" {
		config, err := loadConfigFromFile(envPath)
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInternalError, "failed to load config from %s: %w", envPath, err)
		}
		return config, nil
	}

	return loadConfigFromFile("config.yaml")
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (result0 *Config, err error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(yamlFile, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
