package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Registry RegistryConfig `yaml:"registry"`
	Activity ActivityConfig `yaml:"activity"`
	Outbox   OutboxConfig   `yaml:"outbox"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"                env:"SERVER_ADDR"                env-default:":8080"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" env:"SERVER_READ_HEADER_TIMEOUT" env-default:"5s"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"    env:"SERVER_SHUTDOWN_TIMEOUT"    env-default:"10s"`
}

type SQLiteConfig struct {
	Path string `yaml:"path" env:"SQLITE_PATH" env-default:"./activitylog.sqlite"`
}

// RegistryConfig selects where bulk operation markers live. "sqlite" keeps
// them in the service database; "postgres" shares them between instances.
type RegistryConfig struct {
	Driver        string         `yaml:"driver"         env:"REGISTRY_DRIVER"         env-default:"sqlite"`
	Staleness     time.Duration  `yaml:"staleness"      env:"REGISTRY_STALENESS"      env-default:"5m"`
	SweepInterval time.Duration  `yaml:"sweep_interval" env:"REGISTRY_SWEEP_INTERVAL" env-default:"1h"`
	Postgres      PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"                env:"POSTGRES_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"POSTGRES_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"POSTGRES_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"POSTGRES_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"POSTGRES_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

type ActivityConfig struct {
	BatchWindow     time.Duration `yaml:"batch_window"     env:"ACTIVITY_BATCH_WINDOW"     env-default:"3s"`
	NameThreshold   int           `yaml:"name_threshold"   env:"ACTIVITY_NAME_THRESHOLD"   env-default:"5"`
	DefaultLocale   string        `yaml:"default_locale"   env:"ACTIVITY_DEFAULT_LOCALE"   env-default:"en"`
	TeardownTimeout time.Duration `yaml:"teardown_timeout" env:"ACTIVITY_TEARDOWN_TIMEOUT" env-default:"5s"`
	SinkRetryDelay  time.Duration `yaml:"sink_retry_delay" env:"ACTIVITY_SINK_RETRY_DELAY" env-default:"200ms"`
}

type OutboxConfig struct {
	Interval       time.Duration `yaml:"interval"        env:"OUTBOX_INTERVAL"        env-default:"2s"`
	BatchSize      int           `yaml:"batch_size"      env:"OUTBOX_BATCH_SIZE"      env-default:"100"`
	MaxRetry       int           `yaml:"max_retry"       env:"OUTBOX_MAX_RETRY"       env-default:"5"`
	WebhookURL     string        `yaml:"webhook_url"     env:"OUTBOX_WEBHOOK_URL"`
	WebhookSecret  string        `yaml:"webhook_secret"  env:"OUTBOX_WEBHOOK_SECRET"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout" env:"OUTBOX_WEBHOOK_TIMEOUT" env-default:"10s"`
}

type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
