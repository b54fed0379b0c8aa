package bootstrap

import (
	"os"
	"strconv"
)

type Config struct {
	ServerAddr    string
	PublicBaseURL string
	LogLevel      string

	HMACKey []byte

	GitHubClientID     string
	GitHubClientSecret string
	GitHubRedirectURL  string
	GitHubAPIURL       string

	GitLabClientID     string
	GitLabClientSecret string
	GitLabRedirectURL  string
	GitLabAPIURL       string

	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	WorkerCount int
}

func LoadConfig() *Config {
	return &Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		HMACKey: []byte(getEnv("HMAC_KEY", "change-me-in-production")),

		GitHubClientID:     getEnv("GITHUB_CLIENT_ID", ""),
		GitHubClientSecret: getEnv("GITHUB_CLIENT_SECRET", ""),
		GitHubRedirectURL:  getEnv("GITHUB_REDIRECT_URL", ""),
		GitHubAPIURL:       getEnv("GITHUB_API_URL", ""),

		GitLabClientID:     getEnv("GITLAB_CLIENT_ID", ""),
		GitLabClientSecret: getEnv("GITLAB_CLIENT_SECRET", ""),
		GitLabRedirectURL:  getEnv("GITLAB_REDIRECT_URL", ""),
		GitLabAPIURL:       getEnv("GITLAB_API_URL", ""),

		DatabaseDSN: getEnv("DATABASE_DSN", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       0,

		WorkerCount: getEnvInt("WORKER_COUNT", 2),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
