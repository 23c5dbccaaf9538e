package config

import (
	"bytes"
	_ "embed"
	"strings"
	"time"

	"github.com/spf13/viper"
)

//go:embed defaults.yaml
var defaults []byte

// ---- Root ----

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	MySQL      DatabaseConfig   `mapstructure:"mysql"`
	ClickHouse DatabaseConfig   `mapstructure:"clickhouse"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Checkin    CheckinConfig    `mapstructure:"checkin"`
	Streak     StreakConfig     `mapstructure:"streak"`
	Replay     ReplayConfig     `mapstructure:"replay"`
	QR         QRConfig         `mapstructure:"qr"`
	Reconcile  ReconcileConfig  `mapstructure:"reconcile"`
	Notify     NotifyConfig     `mapstructure:"notify"`
	Outbox     OutboxConfig     `mapstructure:"outbox"`
	History    HistoryConfig    `mapstructure:"history"`
	Providers  []ProviderConfig `mapstructure:"providers"`
}

// ---- Leaf structs ----

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idletime"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
}

type RedisConfig struct {
	Addr        string        `mapstructure:"addr"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type KafkaConfig struct {
	Brokers        []string `mapstructure:"brokers"`
	GroupID        string   `mapstructure:"group_id"`
	MinBytes       int      `mapstructure:"min_bytes"`
	MaxBytes       int      `mapstructure:"max_bytes"`
	CommitInterval int      `mapstructure:"commit_interval_ms"`
}

type RateLimitConfig struct {
	RPS   int `mapstructure:"rps"`
	Burst int `mapstructure:"burst"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// CheckinConfig carries the three anti-passback windows as separate keys. They are
// tuned independently even when they currently hold the same value.
type CheckinConfig struct {
	MemberCooldown    time.Duration `mapstructure:"member_cooldown"`
	StaffCooldown     time.Duration `mapstructure:"staff_cooldown"`
	BiometricCooldown time.Duration `mapstructure:"biometric_cooldown"`
	GraceFreeze       time.Duration `mapstructure:"grace_freeze"`
	NotifyTimeout     time.Duration `mapstructure:"notify_timeout"`
	AuditTopic        string        `mapstructure:"audit_topic"`
}

type StreakConfig struct {
	ReactivationGrace time.Duration `mapstructure:"reactivation_grace"`
}

type ReplayConfig struct {
	Backend   string `mapstructure:"backend"` // redis | memory
	KeyPrefix string `mapstructure:"key_prefix"`
}

type QRConfig struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type ReconcileConfig struct {
	RunAt         string `mapstructure:"run_at"` // HH:MM
	Timezone      string `mapstructure:"timezone"`
	OperatorToken string `mapstructure:"operator_token"`
}

type NotifyConfig struct {
	Topic            string        `mapstructure:"topic"`
	MaxRetryAttempts int           `mapstructure:"max_retry_attempts"`
	WorkerCount      int           `mapstructure:"worker_count"`
	DeliverTimeout   time.Duration `mapstructure:"deliver_timeout"`
}

type OutboxConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// HistoryConfig drives the worker copying entry events into ClickHouse.
type HistoryConfig struct {
	GroupID       string        `mapstructure:"group_id"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type BreakerConfig struct {
	FailThreshold int `mapstructure:"fail_threshold" yaml:"fail_threshold"`
	OpenForMs     int `mapstructure:"open_for_ms"    yaml:"open_for_ms"`
}

// ProviderConfig is one webhook endpoint receiving check-in events.
type ProviderConfig struct {
	Name      string        `mapstructure:"name"`
	Enabled   bool          `mapstructure:"enabled"`
	URL       string        `mapstructure:"url"`
	Token     string        `mapstructure:"token"`
	TimeoutMs int           `mapstructure:"timeout_ms"`
	Breaker   BreakerConfig `mapstructure:"breaker"`
}

// Load reads embedded defaults, merges user YAML (if provided), and applies env
// overrides (NEXOGYM_*, nested keys joined by underscores).
func Load(path string) (Config, error) {
	v := viper.New()

	// embedded defaults
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return Config{}, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.MergeInConfig(); err != nil {
			return Config{}, err
		}
	}

	// env override (NEXOGYM_MYSQL_DSN -> mysql.dsn)
	v.SetEnvPrefix("NEXOGYM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
