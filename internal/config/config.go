// Package config loads service settings from config.toml and SHOP_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

const envPrefix = "SHOP"

const (
	BackendMySQL = "mysql"
	BackendRedis = "redis"
)

type Config struct {
	App          AppConfig
	HTTP         HTTPConfig
	GRPC         GRPCConfig
	MySQL        MySQLConfig
	Redis        RedisConfig
	Inventory    InventoryConfig
	Checkout     CheckoutConfig
	Notification NotificationConfig
	Log          LogConfig
	Telemetry    TelemetryConfig
}

type AppConfig struct {
	Name string
	Env  string
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type GRPCConfig struct {
	Addr string
}

type MySQLConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

type InventoryConfig struct {
	Backend string // mysql or redis
}

type CheckoutConfig struct {
	IdempotencyTTL time.Duration
	CartTTL        time.Duration // zero keeps carts until cleared
}

type NotificationConfig struct {
	WebhookURL   string // empty selects the log notifier
	WebhookToken string
	Retries      int
	RetryWait    time.Duration
	Timeout      time.Duration
	QueueSize    int
	Workers      int
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

type TelemetryConfig struct {
	Enabled        bool
	Endpoint       string
	Insecure       bool
	SamplingRatio  float64
	ServiceName    string
	MetricInterval time.Duration
}

// Load reads configuration with this priority, highest first:
// SHOP_ environment variables (SHOP_MYSQL_PASSWORD), the config file, built-in defaults.
// An empty path searches for config.toml in the working directory and /etc/storefront.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/storefront")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		HTTP: HTTPConfig{
			Addr:            v.GetString("http.addr"),
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		GRPC: GRPCConfig{
			Addr: v.GetString("grpc.addr"),
		},
		MySQL: MySQLConfig{
			Host:            v.GetString("mysql.host"),
			Port:            v.GetInt("mysql.port"),
			User:            v.GetString("mysql.user"),
			Password:        v.GetString("mysql.password"),
			Database:        v.GetString("mysql.database"),
			MaxOpenConns:    v.GetInt("mysql.max_open_conns"),
			MaxIdleConns:    v.GetInt("mysql.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("mysql.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			PoolSize: v.GetInt("redis.pool_size"),
		},
		Inventory: InventoryConfig{
			Backend: strings.ToLower(v.GetString("inventory.backend")),
		},
		Checkout: CheckoutConfig{
			IdempotencyTTL: v.GetDuration("checkout.idempotency_ttl"),
			CartTTL:        v.GetDuration("checkout.cart_ttl"),
		},
		Notification: NotificationConfig{
			WebhookURL:   v.GetString("notification.webhook_url"),
			WebhookToken: v.GetString("notification.webhook_token"),
			Retries:      v.GetInt("notification.retries"),
			RetryWait:    v.GetDuration("notification.retry_wait"),
			Timeout:      v.GetDuration("notification.timeout"),
			QueueSize:    v.GetInt("notification.queue_size"),
			Workers:      v.GetInt("notification.workers"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Telemetry: TelemetryConfig{
			Enabled:        v.GetBool("telemetry.enabled"),
			Endpoint:       v.GetString("telemetry.endpoint"),
			Insecure:       v.GetBool("telemetry.insecure"),
			SamplingRatio:  v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:    v.GetString("telemetry.service_name"),
			MetricInterval: v.GetDuration("telemetry.metric_interval"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 10 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":50051"
	}

	if cfg.MySQL.Host == "" {
		cfg.MySQL.Host = "localhost"
	}
	if cfg.MySQL.Port == 0 {
		cfg.MySQL.Port = 3306
	}
	if cfg.MySQL.User == "" {
		cfg.MySQL.User = "root"
	}
	if cfg.MySQL.Database == "" {
		cfg.MySQL.Database = "storefront"
	}
	if cfg.MySQL.MaxOpenConns == 0 {
		cfg.MySQL.MaxOpenConns = 50
	}
	if cfg.MySQL.MaxIdleConns == 0 {
		cfg.MySQL.MaxIdleConns = 25
	}
	if cfg.MySQL.ConnMaxLifetime == 0 {
		cfg.MySQL.ConnMaxLifetime = 5 * time.Minute
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 100
	}

	if cfg.Inventory.Backend == "" {
		cfg.Inventory.Backend = BackendMySQL
	}
	if cfg.Checkout.IdempotencyTTL == 0 {
		cfg.Checkout.IdempotencyTTL = 24 * time.Hour
	}

	if cfg.Notification.Retries == 0 {
		cfg.Notification.Retries = 3
	}
	if cfg.Notification.RetryWait == 0 {
		cfg.Notification.RetryWait = 200 * time.Millisecond
	}
	if cfg.Notification.Timeout == 0 {
		cfg.Notification.Timeout = 5 * time.Second
	}
	if cfg.Notification.QueueSize == 0 {
		cfg.Notification.QueueSize = 10000
	}
	if cfg.Notification.Workers == 0 {
		cfg.Notification.Workers = 10
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricInterval == 0 {
		cfg.Telemetry.MetricInterval = 30 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Inventory.Backend {
	case BackendMySQL, BackendRedis:
	default:
		return fmt.Errorf("inventory.backend must be %q or %q, got %q", BackendMySQL, BackendRedis, c.Inventory.Backend)
	}

	if c.MySQL.MaxOpenConns < 0 || c.MySQL.MaxIdleConns < 0 {
		return fmt.Errorf("mysql connection pool sizes cannot be negative")
	}
	if c.MySQL.MaxIdleConns > c.MySQL.MaxOpenConns {
		return fmt.Errorf("mysql.max_idle_conns (%d) cannot exceed mysql.max_open_conns (%d)",
			c.MySQL.MaxIdleConns, c.MySQL.MaxOpenConns)
	}
	if c.Notification.Workers < 0 || c.Notification.QueueSize < 0 || c.Notification.Retries < 0 {
		return fmt.Errorf("notification workers, queue_size and retries cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.App.Env == "production" {
		if c.MySQL.Password == "" {
			return fmt.Errorf("mysql.password is required in production")
		}
		if c.Telemetry.Enabled && c.Telemetry.Insecure {
			return fmt.Errorf("telemetry.insecure must be false in production")
		}
	}
	return nil
}

// DSN returns a go-sql-driver/mysql DSN with time parsing enabled.
func (m MySQLConfig) DSN() string {
	dc := mysql.NewConfig()
	dc.User = m.User
	dc.Passwd = m.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	dc.DBName = m.Database
	dc.ParseTime = true
	dc.Loc = time.UTC
	return dc.FormatDSN()
}
