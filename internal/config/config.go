package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Supervisor SupervisorConfig
	Feed       FeedConfig
	Gateway    GatewayConfig
	Log        LogConfig
}

type ServerConfig struct {
	Port    string
	AppName string `mapstructure:"app_name"`
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	TimeZone    string
	TablePrefix string `mapstructure:"table_prefix"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SupervisorConfig controls the backing-store connection lifecycle.
type SupervisorConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	BaseRetryDelay time.Duration `mapstructure:"base_retry_delay"`
	MaxRetryDelay  time.Duration `mapstructure:"max_retry_delay"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

type FeedConfig struct {
	CommandQueue  string `mapstructure:"command_queue"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	BufferSize    int    `mapstructure:"buffer_size"`
}

type GatewayConfig struct {
	SendBuffer        int    `mapstructure:"send_buffer"`
	AnnouncementRoom  string `mapstructure:"announcement_room"`
	TradingRoomPrefix string `mapstructure:"trading_room_prefix"`
}

type LogConfig struct {
	Level  string
	Format string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":5050")
	v.SetDefault("server.app_name", "smartstock-gateway")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "smartstock")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("supervisor.connect_timeout", 10*time.Second)
	v.SetDefault("supervisor.base_retry_delay", time.Second)
	v.SetDefault("supervisor.max_retry_delay", 30*time.Second)
	v.SetDefault("supervisor.reconnect_delay", 500*time.Millisecond)
	v.SetDefault("supervisor.health_interval", 5*time.Second)

	v.SetDefault("feed.command_queue", "feed_cmd_queue")
	v.SetDefault("feed.channel_prefix", "market.")
	v.SetDefault("feed.buffer_size", 1000)

	v.SetDefault("gateway.send_buffer", 256)
	v.SetDefault("gateway.announcement_room", "ipo-updates")
	v.SetDefault("gateway.trading_room_prefix", "trading-")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads config.yaml from the working directory or ./config and
// overlays environment variables (DATABASE_HOST, SUPERVISOR_BASE_RETRY_DELAY, ...).
// A missing config file is not an error; defaults and the environment still apply.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the supervisor and gateway rely on.
func (c *Config) Validate() error {
	s := c.Supervisor
	switch {
	case s.ConnectTimeout <= 0:
		return errors.New("config: supervisor.connect_timeout must be positive")
	case s.BaseRetryDelay <= 0:
		return errors.New("config: supervisor.base_retry_delay must be positive")
	case s.MaxRetryDelay < s.BaseRetryDelay:
		return errors.New("config: supervisor.max_retry_delay must be >= base_retry_delay")
	case s.ReconnectDelay <= 0 || s.ReconnectDelay >= s.BaseRetryDelay:
		return errors.New("config: supervisor.reconnect_delay must be positive and shorter than base_retry_delay")
	case s.HealthInterval <= 0:
		return errors.New("config: supervisor.health_interval must be positive")
	}
	if c.Gateway.SendBuffer <= 0 {
		return errors.New("config: gateway.send_buffer must be positive")
	}
	if c.Feed.BufferSize <= 0 {
		return errors.New("config: feed.buffer_size must be positive")
	}
	if c.Gateway.AnnouncementRoom == "" {
		return errors.New("config: gateway.announcement_room must be set")
	}
	return nil
}

// DSN renders the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		d.Host, d.User, d.Password, d.DBName, d.Port, d.SSLMode, d.TimeZone)
}
