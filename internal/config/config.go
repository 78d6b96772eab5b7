// Package config loads runtime configuration from the environment (and an
// optional .env file) into typed structs.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Zone is the single time zone every date and time of the bot is read and
// written in.  It is deliberately not configurable.
const Zone = "Asia/Phnom_Penh"

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; defaults apply when the variable is unset.
type Config struct {
	Env      string `envconfig:"APP_ENV" default:"dev"`    // application environment (dev, prod)
	HTTPPort string `envconfig:"APP_PORT" default:"8080"` // ops/admin HTTP port

	BotToken    string `envconfig:"BOT_TOKEN" required:"true"`     // Telegram bot token
	GroupChatID int64  `envconfig:"GROUP_CHAT_ID" required:"true"` // broadcast destination
	AdminID     int64  `envconfig:"ADMIN_ID" required:"true"`      // the single administrator identity
	BotWorkers  int    `envconfig:"BOT_WORKERS" default:"8"`       // update handlers, sharded by chat

	StoreDriver string `envconfig:"STORE_DRIVER" default:"mysql"` // mysql | memory
	DBUser      string `envconfig:"DB_USER" default:"root"`
	DBPass      string `envconfig:"DB_PASS"`
	DBHost      string `envconfig:"DB_HOST" default:"localhost"`
	DBPort      string `envconfig:"DB_PORT" default:"3306"`
	DBName      string `envconfig:"DB_NAME" default:"meeting_room"`

	SweepInterval time.Duration `envconfig:"SWEEP_INTERVAL" default:"1h"`
	SweepFirstRun time.Duration `envconfig:"SWEEP_FIRST_RUN" default:"10s"`
	EndGrace      time.Duration `envconfig:"END_GRACE" default:"30m"`

	DocsDir string `envconfig:"DOCS_DIR" default:"docs"`

	// RABBITMQ_URL empty disables the event bus.
	AMQPURL        string `envconfig:"RABBITMQ_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"meeting_room.events"`
	AuditQueue     string `envconfig:"AUDIT_QUEUE" default:"meeting_room.audit"`
	AuditLogPath   string `envconfig:"AUDIT_LOG_PATH" default:"logs/booking.log"`

	// JWT_SECRET empty disables the admin HTTP API.
	JWTSecret    string `envconfig:"JWT_SECRET"`
	AccessTTLMin int    `envconfig:"ACCESS_TOKEN_TTL_MIN" default:"60"`

	StateTTL        time.Duration `envconfig:"CONVERSATION_TTL" default:"30m"`
	NotifyPerMinute int           `envconfig:"NOTIFY_PER_MINUTE" default:"20"`

	Redis     RedisConfig     `ignored:"true"`
	RateLimit RateLimitConfig `ignored:"true"`
	Cache     CacheConfig     `ignored:"true"`
}

// Location loads the fixed zone.  The binary embeds tzdata so this only
// fails on a corrupt build.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(Zone)
}

// Load reads .env (if present) and the process environment.  Missing
// required variables are reported together in the returned error.
func Load() (Config, error) {
	_ = godotenv.Load()

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	var err error
	if c.Redis, err = LoadRedisConfig(); err != nil {
		return Config{}, err
	}
	if c.RateLimit, err = LoadRateLimitConfig(); err != nil {
		return Config{}, err
	}
	if c.Cache, err = LoadCacheConfig(); err != nil {
		return Config{}, err
	}
	if c.BotToken == "" {
		return Config{}, fmt.Errorf("load config: BOT_TOKEN is empty")
	}
	if c.StoreDriver != "mysql" && c.StoreDriver != "memory" {
		return Config{}, fmt.Errorf("load config: unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.BotWorkers < 1 {
		c.BotWorkers = 1
	}
	return c, nil
}
