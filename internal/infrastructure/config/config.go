package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the factory data service.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service     ServiceConfig     `yaml:"service"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Security    SecurityConfig    `yaml:"security"`
	SWM         SWMConfig         `yaml:"swm"`
	FactoryData FactoryDataConfig `yaml:"factory_data"`
}

// ServiceConfig identifies this instance.
type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracingConfig controls OpenTelemetry trace export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Endpoint is the OTLP/HTTP collector host:port.
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings.
//
// Tokens are issued by an external service sharing Secret; AccessTokenTTL only
// applies to tokens minted locally by the token command.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	Issuer         string `yaml:"issuer"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// SWMConfig contains the external vehicle-management API settings.
type SWMConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// SessionTTL is the session lifetime in seconds.
	SessionTTL int `yaml:"session_ttl"`

	// Timeout bounds every outbound call, in seconds.
	Timeout int `yaml:"timeout"`

	// DefaultModelID is used when a model code cannot be resolved.
	DefaultModelID int64 `yaml:"default_model_id"`

	// AlreadyExistsMessage is the creation failure message treated as success.
	AlreadyExistsMessage string `yaml:"already_exists_message"`

	Paths SWMPathsConfig `yaml:"paths"`
}

// SWMPathsConfig holds the path suffixes appended to SWMConfig.BaseURL.
type SWMPathsConfig struct {
	Login         string `yaml:"login"`
	CreateVehicle string `yaml:"create_vehicle"`
	UpdateVehicle string `yaml:"update_vehicle"`
	DeleteVehicle string `yaml:"delete_vehicle"`
	ListModels    string `yaml:"list_models"`
	ListVehicles  string `yaml:"list_vehicles"`
}

// FactoryDataConfig contains request validation settings.
type FactoryDataConfig struct {
	AllowedDeviceTypes []string `yaml:"allowed_device_types"`
	ImeiMinLength      int      `yaml:"imei_min_length"`
	SerialMinLength    int      `yaml:"serial_min_length"`
	DefaultPageSize    int      `yaml:"default_page_size"`
	MaxPageSize        int      `yaml:"max_page_size"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FACTORYDATA_SECTION_KEY
// For example: FACTORYDATA_DATABASE_PATH, FACTORYDATA_SWM_PASSWORD
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "factorydata",
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:        "./data/factorydata.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "factorydata-core",
			},
			QoS:         1,
			TopicPrefix: "factorydata",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
		SWM: SWMConfig{
			SessionTTL:           1800,
			Timeout:              10,
			DefaultModelID:       1,
			AlreadyExistsMessage: "Vehicle with same identifier already exist",
			Paths: SWMPathsConfig{
				Login:         "/api/v1/login",
				CreateVehicle: "/api/v1/vehicles",
				UpdateVehicle: "/api/v1/vehicles",
				DeleteVehicle: "/api/v1/vehicles/delete",
				ListModels:    "/api/v1/vehicle-models",
				ListVehicles:  "/api/v1/vehicles",
			},
		},
		FactoryData: FactoryDataConfig{
			AllowedDeviceTypes: []string{"dashcam", "telematics", "obd"},
			ImeiMinLength:      3,
			SerialMinLength:    6,
			DefaultPageSize:    20,
			MaxPageSize:        5000,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("FACTORYDATA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("FACTORYDATA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FACTORYDATA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FACTORYDATA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("FACTORYDATA_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FACTORYDATA_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("FACTORYDATA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Tracing
	if v := os.Getenv("FACTORYDATA_TRACING_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}

	// SWM
	if v := os.Getenv("FACTORYDATA_SWM_BASE_URL"); v != "" {
		cfg.SWM.BaseURL = v
	}
	if v := os.Getenv("FACTORYDATA_SWM_USERNAME"); v != "" {
		cfg.SWM.Username = v
	}
	if v := os.Getenv("FACTORYDATA_SWM_PASSWORD"); v != "" {
		cfg.SWM.Password = v
	}

	// Security - always override the JWT secret in production
	if v := os.Getenv("FACTORYDATA_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set FACTORYDATA_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		errs = append(errs, "tracing.endpoint is required when tracing is enabled")
	}

	if c.SWM.Enabled {
		if c.SWM.BaseURL == "" {
			errs = append(errs, "swm.base_url is required when swm is enabled")
		}
		if c.SWM.Username == "" || c.SWM.Password == "" {
			errs = append(errs, "swm.username and swm.password are required when swm is enabled")
		}
		if c.SWM.SessionTTL <= 0 {
			errs = append(errs, "swm.session_ttl must be positive")
		}
		if c.SWM.AlreadyExistsMessage == "" {
			errs = append(errs, "swm.already_exists_message is required when swm is enabled")
		}
	}

	fd := c.FactoryData
	if len(fd.AllowedDeviceTypes) == 0 {
		errs = append(errs, "factory_data.allowed_device_types must not be empty")
	}
	if fd.ImeiMinLength < 1 {
		errs = append(errs, "factory_data.imei_min_length must be positive")
	}
	if fd.SerialMinLength < 1 {
		errs = append(errs, "factory_data.serial_min_length must be positive")
	}
	if fd.MaxPageSize < 1 || fd.DefaultPageSize < 1 || fd.DefaultPageSize > fd.MaxPageSize {
		errs = append(errs, "factory_data page sizes must satisfy 1 <= default_page_size <= max_page_size")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// SessionTTLDuration returns the SWM session lifetime as a Duration.
func (c SWMConfig) SessionTTLDuration() time.Duration {
	return time.Duration(c.SessionTTL) * time.Second
}

// TimeoutDuration returns the SWM call timeout as a Duration.
func (c SWMConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}
