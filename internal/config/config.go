// Package config provides configuration structures and validation for the ledger
// services. Every policy threshold (credential rules, minimum opening deposit,
// retry bounds) is configuration so deployments can tune it without a rebuild.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration with settings for all components
type Config struct {
	Application  ApplicationConfig
	Logging      LoggingConfig
	Server       ServerConfig
	Kafka        KafkaConfig
	Postgres     PostgresConfig
	MongoDB      MongoDBConfig
	Outbox       OutboxConfig
	WorkerPool   WorkerPoolConfig
	Ledger       LedgerConfig
	Registration RegistrationConfig
	Credentials  CredentialsConfig
	Auth         AuthConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	CommandTopic      string // Ledger commands consumed by the worker
	EventTopic        string // Committed records published by the outbox poller; empty disables publishing
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration for the audit archive
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig contains outbox pattern configuration
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size int
}

// LedgerConfig bounds the ledger engine's retries and history queries
type LedgerConfig struct {
	MaxRetries          int // Attempts per operation on contention before surfacing a StorageError
	HistoryDefaultLimit int
	HistoryMaxLimit     int
}

// RegistrationConfig contains account opening policy
type RegistrationConfig struct {
	MinInitialDeposit        int64 // Minor units
	AccountNumberLength      int
	AccountNumberMaxAttempts int
}

// CredentialsConfig is the identity and password policy
type CredentialsConfig struct {
	FullNamePattern      string
	FullNameMinLength    int
	FullNameMaxLength    int
	FullNameMinWords     int
	FullNameMaxWords     int
	UsernamePattern      string
	UsernameMinLength    int
	UsernameMaxLength    int
	PasswordMinLength    int
	PasswordMaxLength    int
	PasswordRequireUpper bool
	PasswordRequireLower bool
	PasswordRequireDigit bool
	PasswordRequireOther bool
	PasswordHashCost     int
}

// AuthConfig contains session token settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string
}

// validate checks every configuration value and reports all problems at once
func (c *Config) validate() error {
	var validationErrors []string

	// Server
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Kafka
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.CommandTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_COMMAND_TOPIC is required")
	}
	if c.Kafka.ConsumerGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}

	// PostgreSQL
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// MongoDB
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize == 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}

	// Outbox
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}

	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}

	// Ledger
	if c.Ledger.MaxRetries <= 0 {
		validationErrors = append(validationErrors, "LEDGER_MAX_RETRIES must be greater than 0")
	}
	if c.Ledger.HistoryDefaultLimit <= 0 {
		validationErrors = append(validationErrors, "LEDGER_HISTORY_DEFAULT_LIMIT must be greater than 0")
	}
	if c.Ledger.HistoryMaxLimit < c.Ledger.HistoryDefaultLimit {
		validationErrors = append(validationErrors, "LEDGER_HISTORY_MAX_LIMIT must not be below LEDGER_HISTORY_DEFAULT_LIMIT")
	}

	// Registration
	if c.Registration.MinInitialDeposit < 0 {
		validationErrors = append(validationErrors, "REGISTRATION_MIN_INITIAL_DEPOSIT must not be negative")
	}
	if c.Registration.AccountNumberLength < 4 || c.Registration.AccountNumberLength > 18 {
		validationErrors = append(validationErrors, "ACCOUNT_NUMBER_LENGTH must be between 4 and 18")
	}
	if c.Registration.AccountNumberMaxAttempts <= 0 {
		validationErrors = append(validationErrors, "ACCOUNT_NUMBER_MAX_ATTEMPTS must be greater than 0")
	}

	// Credentials
	if c.Credentials.FullNameMinLength > c.Credentials.FullNameMaxLength {
		validationErrors = append(validationErrors, "FULL_NAME_MIN_LENGTH must not exceed FULL_NAME_MAX_LENGTH")
	}
	if c.Credentials.FullNameMinWords > c.Credentials.FullNameMaxWords {
		validationErrors = append(validationErrors, "FULL_NAME_MIN_WORDS must not exceed FULL_NAME_MAX_WORDS")
	}
	if c.Credentials.UsernameMinLength <= 0 || c.Credentials.UsernameMinLength > c.Credentials.UsernameMaxLength {
		validationErrors = append(validationErrors, "USERNAME_MIN_LENGTH must be positive and not exceed USERNAME_MAX_LENGTH")
	}
	if c.Credentials.PasswordMinLength <= 0 || c.Credentials.PasswordMinLength > c.Credentials.PasswordMaxLength {
		validationErrors = append(validationErrors, "PASSWORD_MIN_LENGTH must be positive and not exceed PASSWORD_MAX_LENGTH")
	}
	// bcrypt rejects passwords over 72 bytes
	if c.Credentials.PasswordMaxLength > 72 {
		validationErrors = append(validationErrors, "PASSWORD_MAX_LENGTH must not exceed 72")
	}
	if c.Credentials.PasswordHashCost < 4 || c.Credentials.PasswordHashCost > 31 {
		validationErrors = append(validationErrors, "PASSWORD_HASH_COST must be between 4 and 31")
	}

	// Auth
	if len(c.Auth.JWTSecret) < 32 {
		validationErrors = append(validationErrors, "AUTH_JWT_SECRET must be at least 32 characters")
	}
	if c.Auth.TokenTTL <= 0 {
		validationErrors = append(validationErrors, "AUTH_TOKEN_TTL must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
