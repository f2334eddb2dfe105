package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the marketplace binary.
type Config struct {
	Store    string         `yaml:"store"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	HTTP     HTTPConfig     `yaml:"http"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Realtime RealtimeConfig `yaml:"realtime"`
	Audit    AuditConfig    `yaml:"audit"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Log      LogConfig      `yaml:"log"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode)
}

type RabbitMQConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	VHost    string `yaml:"vhost"`
	UseTLS   bool   `yaml:"tls"`
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func (h HTTPConfig) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

type KafkaConfig struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RealtimeConfig struct {
	SendBuffer     int           `yaml:"send_buffer"`
	DispatchQueue  int           `yaml:"dispatch_queue"`
	WriteWait      time.Duration `yaml:"write_wait"`
	PongWait       time.Duration `yaml:"pong_wait"`
	MaxMessageSize int64         `yaml:"max_message_size"`
}

type AuditConfig struct {
	Workers      int           `yaml:"workers"`
	BatchSize    int           `yaml:"batch_size"`
	ChannelSize  int           `yaml:"channel_size"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
}

type PricingConfig struct {
	TaxRate string `yaml:"tax_rate"`
}

// Rate parses TaxRate. An empty rate means no tax.
func (p PricingConfig) Rate() (decimal.Decimal, error) {
	if p.TaxRate == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(p.TaxRate)
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func Default() *Config {
	return &Config{
		Store: "postgres",
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "marketplace",
			Database: "marketplace",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest", VHost: "/"},
		HTTP:     HTTPConfig{Port: 3000, ShutdownTimeout: 5 * time.Second},
		Kafka:    KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "order-audit"},
		Realtime: RealtimeConfig{
			SendBuffer:     64,
			DispatchQueue:  1024,
			WriteWait:      10 * time.Second,
			PongWait:       60 * time.Second,
			MaxMessageSize: 4096,
		},
		Audit:   AuditConfig{Workers: 2, BatchSize: 50, ChannelSize: 1000, FlushTimeout: 2 * time.Second},
		Pricing: PricingConfig{TaxRate: "0"},
		Log:     LogConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path over the defaults, applies
// environment overrides and validates the result. An empty path skips the
// file.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load is LoadConfig without validation, for callers that still have
// overrides to apply. They must call Validate afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("couldn't open the configuration file: %w", err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("error reading %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

// ApplyFlags sets the command-line overrides. Zero values leave the config
// unchanged.
func (c *Config) ApplyFlags(store string, port int) {
	if store != "" {
		c.Store = store
	}
	if port != 0 {
		c.HTTP.Port = port
	}
}

func (c *Config) applyEnv() {
	c.Store = getEnv("STORE", c.Store)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = getEnvInt("DB_PORT", c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)

	c.RabbitMQ.Host = getEnv("RABBITMQ_HOST", c.RabbitMQ.Host)
	c.RabbitMQ.Port = getEnvInt("RABBITMQ_PORT", c.RabbitMQ.Port)
	c.RabbitMQ.User = getEnv("RABBITMQ_USER", c.RabbitMQ.User)
	c.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", c.RabbitMQ.Password)

	c.HTTP.Port = getEnvInt("APP_PORT", c.HTTP.Port)

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		c.Kafka.Brokers = strings.Split(brokers, ",")
	}
	c.Kafka.Topic = getEnv("KAFKA_TOPIC", c.Kafka.Topic)

	c.Pricing.TaxRate = getEnv("TAX_RATE", c.Pricing.TaxRate)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
}

func (c *Config) Validate() error {
	var errs []error
	switch c.Store {
	case "memory":
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Database == "" {
			errs = append(errs, errors.New("database config incomplete"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if c.RabbitMQ.Enabled && (c.RabbitMQ.Host == "" || c.RabbitMQ.User == "") {
		errs = append(errs, errors.New("rabbitmq config incomplete"))
	}
	if c.Kafka.Enabled && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		errs = append(errs, errors.New("kafka config incomplete"))
	}
	if c.HTTP.Port <= 0 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.HTTP.Port))
	}
	if c.Realtime.SendBuffer <= 0 || c.Realtime.DispatchQueue <= 0 {
		errs = append(errs, errors.New("realtime buffers must be positive"))
	}
	if rate, err := c.Pricing.Rate(); err != nil {
		errs = append(errs, fmt.Errorf("invalid tax rate: %w", err))
	} else if rate.IsNegative() {
		errs = append(errs, errors.New("tax rate must not be negative"))
	}
	return errors.Join(errs...)
}

// FindConfig returns the first config file that exists in the usual places.
func FindConfig() (string, error) {
	for _, p := range []string{"config.yaml", "deploy/config.example.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fs.ErrNotExist
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
