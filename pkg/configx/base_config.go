package configx

import (
	"time"

	"github.com/marcodd23/go-micro-dbcmd/pkg/dbx"
)

// Config - config interface.
type Config interface {
	GetServiceName() string
	GetVersion() string
	GetEnvironment() string
	GetLoggingConfig() *LoggingConfig
	GetServerConfig() *ServerConfig
	GetDatabaseConfig() *dbx.ConnConfig
	GetExecutorConfig() *ExecutorConfig
	IsLocalEnvironment() bool
}

// BaseConfig - app config struct.
// This struct represents the base configuration for the application and is expected to be in the following YAML format:
/*
name: "orders-service"
environment: "development"
version: "1.0"
logging:
  level: "debug"
server:
  port: "8080"
database:
  host: "localhost"
  port: 5432
  name: "orders"
  user: "postgres"
  password: "password"
  maxConn: 4
  isLocalEnv: true
  authMode: "password"
executor:
  commandTimeout: 30s
  retryCount: 3
  isolationLevel: "read-committed"
  backoff:
    initialInterval: 100ms
    maxInterval: 2s
    multiplier: 2
    maxElapsedTime: 10s
*/
type BaseConfig struct {
	Name        string          `mapstructure:"name" validate:"required"`
	Environment string          `mapstructure:"environment"`
	Version     string          `mapstructure:"version"`
	Logging     *LoggingConfig  `mapstructure:"logging"`
	Server      *ServerConfig   `mapstructure:"server"`
	Database    *dbx.ConnConfig `mapstructure:"database"`
	Executor    *ExecutorConfig `mapstructure:"executor"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
}

// ServerConfig - HTTP server settings, used by services exposing the executor over HTTP.
type ServerConfig struct {
	Port                  string `mapstructure:"port" validate:"omitempty,numeric"`
	Concurrency           int    `mapstructure:"concurrency" validate:"gte=0"`
	DisableStartupMessage bool   `mapstructure:"disableStartupMessage"`
}

// ExecutorConfig - defaults applied to every command client created by the service.
type ExecutorConfig struct {
	CommandTimeout time.Duration  `mapstructure:"commandTimeout" validate:"gte=0"`
	RetryCount     int            `mapstructure:"retryCount" validate:"gte=0"`
	IsolationLevel string         `mapstructure:"isolationLevel" validate:"omitempty,oneof=read-committed read-uncommitted repeatable-read serializable"`
	Backoff        *BackoffConfig `mapstructure:"backoff"`
}

// BackoffConfig - exponential delay between two retry attempts.
// A nil BackoffConfig leaves the delay to the connection provider.
type BackoffConfig struct {
	InitialInterval time.Duration `mapstructure:"initialInterval" validate:"gte=0"`
	MaxInterval     time.Duration `mapstructure:"maxInterval" validate:"gte=0"`
	Multiplier      float64       `mapstructure:"multiplier" validate:"gte=0"`
	MaxElapsedTime  time.Duration `mapstructure:"maxElapsedTime" validate:"gte=0"`
}

func (cfg BaseConfig) GetServiceName() string {
	return cfg.Name
}

func (cfg BaseConfig) GetVersion() string {
	return cfg.Version
}

func (cfg BaseConfig) GetEnvironment() string {
	return cfg.Environment
}

func (cfg BaseConfig) IsLocalEnvironment() bool {
	return checkIfLocalEnv(cfg.Environment)
}

func (cfg BaseConfig) GetLoggingConfig() *LoggingConfig {
	if cfg.Logging == nil {
		return &LoggingConfig{Level: "info"}
	}

	return cfg.Logging
}

func (cfg BaseConfig) GetServerConfig() *ServerConfig {
	if cfg.Server == nil {
		return &ServerConfig{Port: "8080"}
	}

	return cfg.Server
}

func (cfg BaseConfig) GetDatabaseConfig() *dbx.ConnConfig {
	return cfg.Database
}

func (cfg BaseConfig) GetExecutorConfig() *ExecutorConfig {
	if cfg.Executor == nil {
		return &ExecutorConfig{}
	}

	return cfg.Executor
}
