package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
)

// Store backend names accepted in STARBOARD_STORE.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreS3       = "s3"
	StoreNone     = "none"
)

type Config struct {
	BotToken string
	HTTPAddr string
	LogLevel string

	// raw secret kept in-memory only; never log this
	AdminKey string

	// Starboard config persistence. StoreNone disables persistence entirely.
	StoreBackend string
	StorePath    string

	DBDSN    string
	RedisDSN string

	S3Endpoint string
	S3Bucket   string
	S3Region   string
	S3Key      string

	// Defaults applied when a starboard is registered without explicit options.
	DefaultEmoji      string
	DefaultThreshold  int
	DefaultSelfStar   bool
	DefaultStarBotMsg bool
}

func Load() (Config, error) {
	cfg := Config{
		BotToken:     os.Getenv("BOT_TOKEN"),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:     getenvDefault("LOG_LEVEL", "info"),
		AdminKey:     os.Getenv("ADMIN_SECRET_KEY"),
		StoreBackend: strings.ToLower(getenvDefault("STARBOARD_STORE", StoreFile)),
		StorePath:    getenvDefault("STARBOARD_FILE", "starboards.json"),
		DBDSN:        os.Getenv("DB_DSN"),
		RedisDSN:     getenvDefault("REDIS_DSN", ""),
		S3Endpoint:   os.Getenv("S3_ENDPOINT"),
		S3Bucket:     os.Getenv("S3_BUCKET"),
		S3Region:     getenvDefault("S3_REGION", "auto"),
		S3Key:        getenvDefault("S3_KEY", "starboards.json"),

		DefaultEmoji:      getenvDefault("STARBOARD_EMOJI", "⭐"),
		DefaultThreshold:  getenvInt("STARBOARD_THRESHOLD", 5),
		DefaultSelfStar:   getenvBool("STARBOARD_SELF_STAR", false),
		DefaultStarBotMsg: getenvBool("STARBOARD_STAR_BOT_MSG", true),
	}

	if cfg.BotToken == "" {
		return Config{}, errors.New("missing BOT_TOKEN")
	}

	switch cfg.StoreBackend {
	case StoreFile, StoreNone:
	case StorePostgres:
		if cfg.DBDSN == "" {
			return Config{}, errors.New("STARBOARD_STORE=postgres requires DB_DSN")
		}
	case StoreS3:
		if cfg.S3Bucket == "" {
			return Config{}, errors.New("STARBOARD_STORE=s3 requires S3_BUCKET")
		}
	default:
		return Config{}, errors.New("STARBOARD_STORE must be one of file, postgres, s3, none")
	}

	if cfg.DefaultThreshold < 1 {
		return Config{}, errors.New("STARBOARD_THRESHOLD must be >= 1")
	}

	return cfg, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func getenvBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return b
}
