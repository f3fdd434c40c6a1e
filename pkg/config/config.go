package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/KBroJ/LoopPak-BE-sub001/pkg/utils"
	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env            string         `yaml:"env" env:"ENV" env-default:"local"`
	Log            Log            `yaml:"log"`
	HTTP           HTTP           `yaml:"http"`
	Postgres       PG             `yaml:"postgres"`
	Redis          Redis          `yaml:"redis"`
	Kafka          Kafka          `yaml:"kafka"`
	PaymentGateway PaymentGateway `yaml:"payment_gateway"`
	Breaker        Breaker        `yaml:"breaker"`
	Retry          Retry          `yaml:"retry"`
	Aggregator     Aggregator     `yaml:"aggregator"`
	Ranking        Ranking        `yaml:"ranking"`
	Outbox         Outbox         `yaml:"outbox"`
	DataPlatform   DataPlatform   `yaml:"data_platform"`
	Limiter        Limiter        `yaml:"limiter"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"4s"`
}

type PG struct {
	URL             string        `yaml:"url" env:"DB_URL"`
	MaxConns        int32         `yaml:"max_conns" env-default:"10"`
	MinConns        int32         `yaml:"min_conns" env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env-default:"1h"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env-default:"5s"`
	// StatementTimeout is applied per session; zero leaves the server default.
	StatementTimeout time.Duration `yaml:"statement_timeout" env-default:"0s"`
}

type Redis struct {
	Addr     string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	CacheTTL time.Duration `yaml:"cache_ttl" env-default:"5m"`
}

type Kafka struct {
	Brokers       []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	GroupID       string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"looppak"`
	OrderTopic    string   `yaml:"order_topic" env-default:"order-events"`
	CatalogTopic  string   `yaml:"catalog_topic" env-default:"catalog-events"`
	PaymentTopic  string   `yaml:"payment_topic" env-default:"payment-events"`
	DeadLetterTag string   `yaml:"dead_letter_suffix" env-default:".DLT"`
}

type PaymentGateway struct {
	BaseURL        string        `yaml:"base_url" env:"PG_BASE_URL" env-default:"http://localhost:8082"`
	CallbackURL    string        `yaml:"callback_url" env:"PG_CALLBACK_URL" env-default:"http://localhost:3000/api/v1/payments/callback"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" env-default:"1s"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env-default:"3s"`
	SyncInterval   time.Duration `yaml:"sync_interval" env-default:"1m"`
	SyncOlderThan  time.Duration `yaml:"sync_older_than" env-default:"5m"`
}

type Breaker struct {
	WindowSize       int           `yaml:"window_size" env-default:"10"`
	MinCalls         int           `yaml:"min_calls" env-default:"10"`
	FailureThreshold float64       `yaml:"failure_threshold" env-default:"0.5"`
	CoolDown         time.Duration `yaml:"cool_down" env-default:"10s"`
	HalfOpenCalls    uint32        `yaml:"half_open_calls" env-default:"3"`
}

type Retry struct {
	MaxAttempts int           `yaml:"max_attempts" env-default:"3"`
	Delay       time.Duration `yaml:"delay" env-default:"200ms"`
}

type Aggregator struct {
	MaxAttempts  int           `yaml:"max_attempts" env-default:"50"`
	InitialDelay time.Duration `yaml:"initial_delay" env-default:"10ms"`
	Multiplier   float64       `yaml:"multiplier" env-default:"2"`
	MaxDelay     time.Duration `yaml:"max_delay" env-default:"1s"`
	Jitter       float64       `yaml:"jitter" env-default:"0.2"`
}

type Ranking struct {
	WeightLike      float64       `yaml:"weight_like" env-default:"0.2"`
	WeightSales     float64       `yaml:"weight_sales" env-default:"0.6"`
	WeightView      float64       `yaml:"weight_view" env-default:"0.1"`
	KeyTTL          time.Duration `yaml:"key_ttl" env-default:"48h"`
	CarryOverWeight float64       `yaml:"carry_over_weight" env-default:"0.1"`
	BatchInterval   time.Duration `yaml:"batch_interval" env-default:"1h"`
	TimeZone        string        `yaml:"time_zone" env-default:"Asia/Seoul"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env-default:"500ms"`
}

type DataPlatform struct {
	URL     string        `yaml:"url" env:"DATA_PLATFORM_URL"`
	Timeout time.Duration `yaml:"timeout" env-default:"2s"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %w", err)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	configPath := utils.ParseWithFallback("CONFIG_PATH", "./config/local.yaml")

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("failed to load config %s: %v", configPath, err)
	}

	return cfg
}

func (r Ranking) Location() *time.Location {
	loc, err := time.LoadLocation(r.TimeZone)
	if err != nil {
		return time.UTC
	}

	return loc
}
