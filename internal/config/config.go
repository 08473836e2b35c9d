package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	ierr "github.com/medbill/ledger/internal/errors"
	"github.com/medbill/ledger/internal/types"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment     DeploymentConfig     `validate:"required"`
	Server         ServerConfig         `validate:"required"`
	Logging        LoggingConfig        `validate:"required"`
	Postgres       PostgresConfig       `validate:"required"`
	Temporal       TemporalConfig       `mapstructure:"temporal"`
	Sentry         SentryConfig         `mapstructure:"sentry"`
	Pyroscope      PyroscopeConfig      `mapstructure:"pyroscope"`
	Cache          CacheConfig          `mapstructure:"cache"`
	EventPublisher EventPublisherConfig `mapstructure:"event_publisher"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Billing        BillingConfig        `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level string `validate:"required"`
}

type PostgresConfig struct {
	Host                   string `validate:"required"`
	Port                   int    `validate:"required"`
	User                   string `validate:"required"`
	Password               string
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes"`
	ConnectRetries         uint64 `mapstructure:"connect_retries"`
}

type TemporalConfig struct {
	Address   string
	Namespace string
	TaskQueue string `mapstructure:"task_queue"`
}

type SentryConfig struct {
	Enabled     bool
	DSN         string
	Environment string
	SampleRate  float64 `mapstructure:"sample_rate"`
}

type PyroscopeConfig struct {
	Enabled         bool
	ServerAddress   string `mapstructure:"server_address"`
	ApplicationName string `mapstructure:"application_name"`
}

type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type EventPublisherConfig struct {
	Enabled bool
	Backend types.PublisherBackend
	Topic   string
}

type KafkaConfig struct {
	Brokers       []string
	ClientID      string `mapstructure:"client_id"`
	TLS           bool
	UseSASL       bool   `mapstructure:"use_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism"`
	SASLUser      string `mapstructure:"sasl_user"`
	SASLPassword  string `mapstructure:"sasl_password"`
}

// BillingConfig drives the recurring charge generator and invoice defaults.
type BillingConfig struct {
	Timezone             string `validate:"required"`
	DefaultDueDays       int    `mapstructure:"default_due_days"`
	ChargesConcurrency   int    `mapstructure:"charges_concurrency" validate:"gte=1"`
	ChargesCron          string `mapstructure:"charges_cron"`
	InpatientDepartment  string `mapstructure:"inpatient_department" validate:"required"`
	MorgueDepartment     string `mapstructure:"morgue_department" validate:"required"`
	GenericBedService    string `mapstructure:"generic_bed_service" validate:"required"`
	WardBedServiceSuffix string `mapstructure:"ward_bed_service_suffix"`
	StorageService       string `mapstructure:"storage_service" validate:"required"`
}

// Location loads the billing timezone. Calendar days are counted in it.
// Validate rejects unknown zones, so the UTC fallback only covers unvalidated configs.
func (b BillingConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func NewConfig() (*Configuration, error) {
	// a missing .env is fine outside local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ledger")

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
		fmt.Printf("No config file found, using defaults and environment: %v\n", err)
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// defaults double as the key registry AutomaticEnv needs to resolve env-only settings
func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", "info")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "ledger")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "ledger")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 20)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime_minutes", 30)
	v.SetDefault("postgres.connect_retries", 5)

	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "ledger-billing")

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.environment", "local")
	v.SetDefault("sentry.sample_rate", 1.0)

	v.SetDefault("pyroscope.enabled", false)
	v.SetDefault("pyroscope.server_address", "http://localhost:4040")
	v.SetDefault("pyroscope.application_name", "medbill.ledger")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "10m")

	v.SetDefault("event_publisher.enabled", true)
	v.SetDefault("event_publisher.backend", string(types.PublisherBackendMemory))
	v.SetDefault("event_publisher.topic", "ledger_events")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "medbill-ledger")
	v.SetDefault("kafka.tls", false)
	v.SetDefault("kafka.use_sasl", false)
	v.SetDefault("kafka.sasl_mechanism", "")
	v.SetDefault("kafka.sasl_user", "")
	v.SetDefault("kafka.sasl_password", "")

	v.SetDefault("billing.timezone", "Africa/Nairobi")
	v.SetDefault("billing.default_due_days", 0)
	v.SetDefault("billing.charges_concurrency", 4)
	v.SetDefault("billing.charges_cron", "0 1 * * *")
	v.SetDefault("billing.inpatient_department", "Inpatient")
	v.SetDefault("billing.morgue_department", "Morgue")
	v.SetDefault("billing.generic_bed_service", "Bed")
	v.SetDefault("billing.ward_bed_service_suffix", "Ward")
	v.SetDefault("billing.storage_service", "Storage")
}

func (c Configuration) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Billing.Timezone); err != nil {
		return ierr.WithError(err).
			WithHintf("Unknown billing timezone %q", c.Billing.Timezone).
			WithReportableDetails(map[string]any{"timezone": c.Billing.Timezone}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// GetDSN builds a lib/pq connection string
func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}

// GetDefaultConfig returns a default configuration for local development and tests
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Server:     ServerConfig{Address: ":8080"},
		Logging:    LoggingConfig{Level: "debug"},
		Postgres: PostgresConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "ledger",
			DBName:  "ledger",
			SSLMode: "disable",
		},
		Temporal: TemporalConfig{
			Address:   "localhost:7233",
			Namespace: "default",
			TaskQueue: "ledger-billing",
		},
		Cache: CacheConfig{Enabled: true, TTL: 10 * time.Minute},
		EventPublisher: EventPublisherConfig{
			Enabled: true,
			Backend: types.PublisherBackendMemory,
			Topic:   "ledger_events",
		},
		Billing: BillingConfig{
			Timezone:             "UTC",
			ChargesConcurrency:   2,
			ChargesCron:          "0 1 * * *",
			InpatientDepartment:  "Inpatient",
			MorgueDepartment:     "Morgue",
			GenericBedService:    "Bed",
			WardBedServiceSuffix: "Ward",
			StorageService:       "Storage",
		},
	}
}
