package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_FromFileWithDefaults(t *testing.T) {
	path := createTempConfigFile(t, `
server:
  port: "9090"
  session_secret: "s3cret"
database:
  url: "postgres://localhost/wordgames?sslmode=disable"
games:
  num_questions: 12
  num_questions_by_kind:
    narrative: 5
segmenter:
  exceptions:
    "学中文": ["学", "中文"]
`)
	t.Setenv(ConfigFileEnv, path)

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 12, cfg.Games.NumQuestions)
	assert.Equal(t, DefaultMaxWrongResurface, cfg.Games.MaxWrongResurface)
	assert.Equal(t, DefaultMaxCorrectResurface, cfg.Games.MaxCorrectResurface)
	assert.Equal(t, DefaultMaxCorrectResurfaceFewWrong, cfg.Games.MaxCorrectResurfaceFewWrong)
	assert.InDelta(t, DefaultDifficultyMean, cfg.Games.DifficultyMean, 1e-9)
	assert.InDelta(t, float64(DefaultDifficultyStdDev), cfg.Games.DifficultyStdDev, 1e-9)
	assert.Equal(t, DatabaseConnMaxLifetime, cfg.Database.ConnMaxLifetime)
	assert.Equal(t, DefaultCacheTTL, cfg.Cache.TTL)
	assert.Equal(t, []string{"学", "中文"}, cfg.Segmenter.Exceptions["学中文"])
	assert.Equal(t, "wordgames-backend", cfg.OpenTelemetry.ServiceName)
}

func TestNewConfig_EnvironmentVariableOverrides(t *testing.T) {
	path := createTempConfigFile(t, `
server:
  port: "8080"
cache:
  enabled: false
`)
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("SERVER_CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("GAMES_DIFFICULTY_MEAN", "20.5")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CACHE_REDIS_ADDR", "localhost:6379")
	t.Setenv("CACHE_TTL", "90s")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "40")

	cfg, err := NewConfig()
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 20.5, cfg.Games.DifficultyMean, 1e-9)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)
}

func TestNewConfig_InvalidDurationIgnored(t *testing.T) {
	path := createTempConfigFile(t, "server:\n  port: \"8080\"\n")
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("SEGMENTER_TIMEOUT", "soon")

	cfg, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultSegmenterTimeout, cfg.Segmenter.Timeout)
}

func TestNewConfig_ConfigFileNotFound(t *testing.T) {
	t.Setenv(ConfigFileEnv, "/nonexistent/file.yaml")

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config from /nonexistent/file.yaml")
}

func TestNewConfig_ValidationFailure(t *testing.T) {
	path := createTempConfigFile(t, `
server:
  port: "8080"
cache:
  enabled: true
`)
	t.Setenv(ConfigFileEnv, path)

	_, err := NewConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RedisAddr")
}

func TestGamesConfig_NumQuestionsFor(t *testing.T) {
	tests := []struct {
		name        string
		cfg         GamesConfig
		kind        string
		kindDefault int
		expected    int
	}{
		{"per kind override wins", GamesConfig{NumQuestions: 8, NumQuestionsByKind: map[string]int{"scribe": 4}}, "scribe", 6, 4},
		{"kind batch size beats global", GamesConfig{NumQuestions: 8}, "speaker", 3, 3},
		{"global setting", GamesConfig{NumQuestions: 8}, "scribe", 0, 8},
		{"kind default", GamesConfig{}, "speaker", 3, 3},
		{"package default", GamesConfig{}, "scribe", 0, DefaultNumQuestions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.NumQuestionsFor(tt.kind, tt.kindDefault))
		})
	}
}

// createTempConfigFile writes content to a temporary YAML file and returns its path
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
