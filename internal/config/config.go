package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed trial_keys.yaml
var trialKeysYAML []byte

type Config struct {
	Database DatabaseConfig
	Matcher  MatcherConfig
	Web      WebConfig
	Trial    TrialConfig
}

type DatabaseConfig struct {
	Driver       string // "postgres" (default) or "mysql"
	URL          string // PostgreSQL connection URL
	MySQLDSN     string // MySQL DSN, used when Driver is "mysql"
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MatcherConfig struct {
	Dim       int     // embedding dimensionality (default 512)
	Threshold float64 // default match threshold for find-by-embedding (default 0.95)
	Index     string  // "scan" (default) or "hnsw"
}

type WebConfig struct {
	Port int
	Host string
}

type TrialConfig struct {
	Keys map[string]string `yaml:"keys"` // trial key -> client label
}

// IsValidKey reports whether the trial key is on the allow-list.
func (t *TrialConfig) IsValidKey(key string) bool {
	_, ok := t.Keys[key]
	return ok
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float in (0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envString reads an environment variable with a default.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var trial TrialConfig
	if err := yaml.Unmarshal(trialKeysYAML, &trial); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded trial_keys.yaml: " + err.Error())
	}
	if trial.Keys == nil {
		trial.Keys = make(map[string]string)
	}
	// TRIAL_KEYS extends the embedded allow-list (comma-separated).
	for _, key := range strings.Split(os.Getenv("TRIAL_KEYS"), ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			trial.Keys[key] = "env"
		}
	}

	return &Config{
		Database: DatabaseConfig{
			Driver:       envString("DATABASE_DRIVER", "postgres"),
			URL:          os.Getenv("DATABASE_URL"),
			MySQLDSN:     os.Getenv("MYSQL_DSN"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Matcher: MatcherConfig{
			Dim:       envInt("EMBEDDING_DIM", 512),
			Threshold: envFloat("MATCH_THRESHOLD", 0.95),
			Index:     envString("MATCH_INDEX", "scan"),
		},
		Web: WebConfig{
			Port: envInt("WEB_PORT", 8080),
			Host: envString("WEB_HOST", "0.0.0.0"),
		},
		Trial: trial,
	}
}
