package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type (
	Storage struct {
		Type           string // memory, filesystem, sqlite or s3
		LocalPath      string
		DataSourceName string
		BucketName     string
	}

	Auth struct {
		JWTSecret          string
		GitHubClientID     string
		GitHubClientSecret string
		GitHubRedirectURL  string
		OIDCIssuerURL      string
		OIDCClientID       string
		OIDCClientSecret   string
		OIDCRedirectURL    string
	}

	// Client configures the command line front end talking to a server.
	Client struct {
		ServerURL      string
		Token          string
		Locale         string
		SearchDebounce time.Duration
	}

	Config struct {
		ListenAddr string
		LogLevel   string
		Storage    Storage
		Auth       Auth
		Client     Client
	}
)

// Load reads the process environment after merging an optional .env file.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found")
	}

	return &Config{
		ListenAddr: getenv("LISTEN_ADDR", ":3002"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		Storage: Storage{
			Type:           os.Getenv("STORAGE_TYPE"),
			LocalPath:      getenv("LOCAL_STORAGE_PATH", "./data"),
			DataSourceName: getenv("DATA_SOURCE_NAME", "excalidash.db"),
			BucketName:     os.Getenv("S3_BUCKET_NAME"),
		},
		Auth: Auth{
			JWTSecret:          os.Getenv("JWT_SECRET"),
			GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			GitHubRedirectURL:  os.Getenv("GITHUB_REDIRECT_URL"),
			OIDCIssuerURL:      os.Getenv("OIDC_ISSUER_URL"),
			OIDCClientID:       os.Getenv("OIDC_CLIENT_ID"),
			OIDCClientSecret:   os.Getenv("OIDC_CLIENT_SECRET"),
			OIDCRedirectURL:    os.Getenv("OIDC_REDIRECT_URL"),
		},
		Client: Client{
			ServerURL:      getenv("EXCALIDASH_SERVER", "http://localhost:3002"),
			Token:          os.Getenv("EXCALIDASH_TOKEN"),
			Locale:         getenv("EXCALIDASH_LOCALE", "en"),
			SearchDebounce: getDuration("EXCALIDASH_SEARCH_DEBOUNCE", 300*time.Millisecond),
		},
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	logrus.WithField("key", key).Warnf("Invalid duration %q, using %s", v, fallback)
	return fallback
}
