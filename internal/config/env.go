package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config is the process configuration assembled from .env and the environment.
type Config struct {
	HTTPAddr    string
	DatabaseDSN string
	RedisAddr   string
	JWTSecret   string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool

	TelegramBotToken string
	TelegramChatID   int64

	TypingDebounce time.Duration
}

// GetEnv returns the value of k, or def when it is unset or empty.
func GetEnv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// Load reads an optional .env file and then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	cfg := Config{
		HTTPAddr:         GetEnv("HTTP_ADDR", ":8080"),
		DatabaseDSN:      GetEnv("DATABASE_DSN", "host=localhost user=user password=password dbname=chatroomdb port=5432 sslmode=disable"),
		RedisAddr:        GetEnv("REDIS_ADDR", "localhost:6380"),
		JWTSecret:        GetEnv("JWT_SECRET", ""),
		MinioEndpoint:    GetEnv("MINIO_ENDPOINT", ""),
		MinioAccessKey:   GetEnv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey:   GetEnv("MINIO_SECRET_KEY", ""),
		MinioBucket:      GetEnv("MINIO_BUCKET", "chatroom"),
		TelegramBotToken: GetEnv("TELEGRAM_BOT_TOKEN", ""),
		TypingDebounce:   TypingDebounceInterval,
	}

	if v, err := strconv.ParseBool(GetEnv("MINIO_USE_SSL", "false")); err == nil {
		cfg.MinioUseSSL = v
	}
	if v := GetEnv("TELEGRAM_CHAT_ID", ""); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			log.Printf("WARNING: ignoring malformed TELEGRAM_CHAT_ID %q: %v", v, err)
		} else {
			cfg.TelegramChatID = id
		}
	}
	if v := GetEnv("TYPING_DEBOUNCE", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			log.Printf("WARNING: ignoring malformed TYPING_DEBOUNCE %q", v)
		} else {
			cfg.TypingDebounce = d
		}
	}

	return cfg
}
