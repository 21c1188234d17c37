package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Jubelio   JubelioConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

// JubelioConfig holds the upstream base URLs and every supported credential source
type JubelioConfig struct {
	BaseURL      string
	LoginURL     string
	APIKey       string
	ClientID     string
	ClientSecret string
	Email        string
	Password     string
	Timeout      time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Window   time.Duration
}

// Addr returns host:port for the redis client
func (r RedisConfig) Addr() string {
	return r.Host + ":" + r.Port
}

func (s ServerConfig) IsDevelopment() bool {
	return s.Env != "production"
}

// Load reads .env.local into the process environment, then resolves
// settings from .env and the environment with defaults.
func Load() *Config {
	if err := godotenv.Load(".env.local"); err != nil {
		log.Printf("Info: no .env.local loaded: %v", err)
	}

	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("JUBELIO_LOGIN_URL", "https://api2.jubelio.com/login")
	v.SetDefault("JUBELIO_TIMEOUT_SECONDS", 20)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_REQUESTS", 120)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)

	if err := v.ReadInConfig(); err != nil {
		log.Printf("Warning: Could not read config file: %v", err)
	}

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Env:            v.GetString("SERVER_ENV"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Jubelio: JubelioConfig{
			BaseURL:      firstNonEmpty(v.GetString("JUBELIO_API_URL"), v.GetString("NEXT_PUBLIC_JUBELIO_API_URL")),
			LoginURL:     v.GetString("JUBELIO_LOGIN_URL"),
			APIKey:       firstNonEmpty(v.GetString("JUBELIO_API_KEY"), v.GetString("NEXT_PUBLIC_JUBELIO_API_KEY")),
			ClientID:     v.GetString("JUBELIO_CLIENT_ID"),
			ClientSecret: v.GetString("JUBELIO_CLIENT_SECRET"),
			Email:        v.GetString("JUBELIO_EMAIL"),
			Password:     v.GetString("JUBELIO_PASSWORD"),
			Timeout:      time.Duration(v.GetInt("JUBELIO_TIMEOUT_SECONDS")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		RateLimit: RateLimitConfig{
			Enabled:  v.GetBool("RATE_LIMIT_ENABLED"),
			Requests: v.GetInt("RATE_LIMIT_REQUESTS"),
			Window:   time.Duration(v.GetInt("RATE_LIMIT_WINDOW_SECONDS")) * time.Second,
		},
	}
}

func firstNonEmpty(values ...string) string {
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
