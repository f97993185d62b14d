package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBPath        string
	LogLevel      string
	LogFormat     string
	SecureCookies bool
	LoginLimit    int
	HistoryLimit  int
	// WSOrigins are extra host patterns allowed to open /ws cross-origin.
	WSOrigins []string
}

// Load reads the process environment after merging an optional .env file
// from the working directory. Variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:      getenv("DIABYTE_PORT", "8080"),
		DBPath:    getenv("DIABYTE_DB_PATH", "diabyte.db"),
		LogLevel:  getenv("DIABYTE_LOG_LEVEL", "info"),
		LogFormat: strings.ToLower(getenv("DIABYTE_LOG_FORMAT", "text")),
		WSOrigins: getlist("DIABYTE_WS_ORIGINS"),
	}

	var err error
	if cfg.SecureCookies, err = getbool("DIABYTE_SECURE_COOKIES", false); err != nil {
		return Config{}, err
	}
	if cfg.LoginLimit, err = getint("DIABYTE_LOGIN_LIMIT", 10); err != nil {
		return Config{}, err
	}
	if cfg.HistoryLimit, err = getint("DIABYTE_HISTORY_LIMIT", 200); err != nil {
		return Config{}, err
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("DIABYTE_LOG_FORMAT: unknown format %q", cfg.LogFormat)
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getlist splits a comma separated value, dropping empty entries.
func getlist(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getint(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: want a positive integer, got %q", key, v)
	}
	return n, nil
}

func getbool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: want a boolean, got %q", key, v)
	}
	return b, nil
}
