package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// LoadDotenv reads a .env file from the working directory if there is one.
// Variables already set in the environment win. The error is for logging;
// a missing file is normal.
func LoadDotenv(files ...string) error {
	return godotenv.Load(files...)
}

type Server struct {
	Addr           string
	LogLevel       string
	MinPlayers     int
	WinThreshold   int
	AllowedOrigins []string
	ShutdownGrace  time.Duration
}

func LoadServer() Server {
	return Server{
		Addr:           getEnv("HEIST_ADDR", ":8080"),
		LogLevel:       getEnv("HEIST_LOG_LEVEL", "info"),
		MinPlayers:     getEnvAsInt("HEIST_MIN_PLAYERS", 3),
		WinThreshold:   getEnvAsInt("HEIST_WIN_THRESHOLD", 3),
		AllowedOrigins: getEnvAsList("HEIST_ALLOWED_ORIGINS"),
		ShutdownGrace:  getEnvAsDuration("HEIST_SHUTDOWN_GRACE", 5*time.Second),
	}
}

type Client struct {
	ServerURL    string
	Table        string
	LogLevel     string
	Profile      string
	IdentityFile string
	// IdentityDSN switches identity storage to postgres when set.
	IdentityDSN  string
	RetryInitial time.Duration
	RetryMax     time.Duration
}

func LoadClient() Client {
	return Client{
		ServerURL:    getEnv("HEIST_SERVER_URL", "ws://localhost:8080/ws"),
		Table:        getEnv("HEIST_TABLE", ""),
		LogLevel:     getEnv("HEIST_LOG_LEVEL", "warn"),
		Profile:      getEnv("HEIST_PROFILE", "default"),
		IdentityFile: getEnv("HEIST_IDENTITY_FILE", defaultIdentityFile()),
		IdentityDSN:  getEnv("HEIST_IDENTITY_DSN", ""),
		RetryInitial: getEnvAsDuration("HEIST_RETRY_INITIAL", 250*time.Millisecond),
		RetryMax:     getEnvAsDuration("HEIST_RETRY_MAX", 10*time.Second),
	}
}

func defaultIdentityFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "heist-identity.yaml"
	}
	return filepath.Join(dir, "heist", "identity.yaml")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
