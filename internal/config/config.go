package config

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Match Settings
	MatchExpiryMinutes     int
	TurnTimeoutSeconds     int
	TurnWorkerPollSeconds  int
	DisconnectGraceSeconds int
	ShotRatePerSecond      float64
	DisplayWidth           float64
	DisplayHeight          float64
	FrameIntervalMs        int
	StrictInvariants       bool

	// Security
	JWTSecret          string
	PlayerTokenMinutes int

	// Logging
	Logger LoggerConfig
}

// LoggerConfig configures the zap logger and its rotating file sink.
type LoggerConfig struct {
	ServiceName string
	Level       string
	Format      string // "json" or "console"
	LogFile     string
	MaxSize     int // megabytes
	MaxBackups  int
	MaxAge      int // days
	Compress    bool
	AddSource   bool
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	env := v.GetString("APP_ENV")

	return &Config{
		Environment: env,

		DatabaseURL:    v.GetString("DATABASE_URL"),
		MigrateOnStart: v.GetBool("MIGRATE_ON_START"),

		RedisURL: v.GetString("REDIS_URL"),

		Port:        v.GetString("APP_PORT"),
		FrontendURL: v.GetString("FRONTEND_URL"),

		MatchExpiryMinutes:     v.GetInt("MATCH_EXPIRY_MINUTES"),
		TurnTimeoutSeconds:     v.GetInt("TURN_TIMEOUT_SECONDS"),
		TurnWorkerPollSeconds:  v.GetInt("TURN_WORKER_POLL_SECONDS"),
		DisconnectGraceSeconds: v.GetInt("DISCONNECT_GRACE_SECONDS"),
		ShotRatePerSecond:      v.GetFloat64("SHOT_RATE_PER_SECOND"),
		DisplayWidth:           v.GetFloat64("DISPLAY_WIDTH"),
		DisplayHeight:          v.GetFloat64("DISPLAY_HEIGHT"),
		FrameIntervalMs:        v.GetInt("FRAME_INTERVAL_MS"),
		StrictInvariants:       v.GetBool("STRICT_INVARIANTS"),

		JWTSecret:          v.GetString("JWT_SECRET"),
		PlayerTokenMinutes: v.GetInt("PLAYER_TOKEN_MINUTES"),

		Logger: LoggerConfig{
			ServiceName: "bumper",
			Level:       v.GetString("LOG_LEVEL"),
			Format:      v.GetString("LOG_FORMAT"),
			LogFile:     v.GetString("LOG_FILE"),
			MaxSize:     v.GetInt("LOG_MAX_SIZE_MB"),
			MaxBackups:  v.GetInt("LOG_MAX_BACKUPS"),
			MaxAge:      v.GetInt("LOG_MAX_AGE_DAYS"),
			Compress:    v.GetBool("LOG_COMPRESS"),
			AddSource:   env != "production",
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("DATABASE_URL", "postgres://localhost:5432/bumper?sslmode=disable")
	v.SetDefault("MIGRATE_ON_START", false)
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")

	v.SetDefault("MATCH_EXPIRY_MINUTES", 10)
	v.SetDefault("TURN_TIMEOUT_SECONDS", 45)
	v.SetDefault("TURN_WORKER_POLL_SECONDS", 2)
	v.SetDefault("DISCONNECT_GRACE_SECONDS", 30)
	v.SetDefault("SHOT_RATE_PER_SECOND", 2.0)
	v.SetDefault("DISPLAY_WIDTH", 1000.0)
	v.SetDefault("DISPLAY_HEIGHT", 800.0)
	v.SetDefault("FRAME_INTERVAL_MS", 16)
	v.SetDefault("STRICT_INVARIANTS", false)

	v.SetDefault("JWT_SECRET", "change-me-in-production")
	v.SetDefault("PLAYER_TOKEN_MINUTES", 120)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("LOG_FILE", "")
	v.SetDefault("LOG_MAX_SIZE_MB", 50)
	v.SetDefault("LOG_MAX_BACKUPS", 3)
	v.SetDefault("LOG_MAX_AGE_DAYS", 14)
	v.SetDefault("LOG_COMPRESS", true)
}
