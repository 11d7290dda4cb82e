package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/oauth2"

	"github.com/florianilch/ex30link/internal/connectedvehicle"
	"github.com/florianilch/ex30link/internal/tokenstore"
	"github.com/florianilch/ex30link/internal/volvoid"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// TokenStorageType represents the different storage types supported for refresh tokens.
type TokenStorageType string

const (
	TokenStorageTypeFile    TokenStorageType = "file"
	TokenStorageTypeKeyring TokenStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat               = LogFormatText
	DefaultConfigServerHost              = "127.0.0.1"
	DefaultConfigServerPort              = 8582
	DefaultConfigShutdownTimeout         = 5 * time.Second
	DefaultConfigStorageType             = TokenStorageTypeFile
	DefaultConfigKeyringService          = "ex30link"
	DefaultConfigPollingInterval         = 5 * time.Minute
	DefaultConfigSessionTimeout          = 10 * time.Minute
	DefaultConfigCallbackTimeout         = 10 * time.Minute
	DefaultConfigAuthorizationPollPeriod = 2 * time.Second
)

// TelemetryConfig holds OpenTelemetry log export configuration.
type TelemetryConfig struct {
	// Exporter is empty (disabled), otlp-grpc, otlp-http or stdout.
	Exporter string `json:"exporter" validate:"omitempty,oneof=otlp-grpc otlp-http stdout"`
}

// VehicleConfig identifies the vehicle the refresh token belongs to.
type VehicleConfig struct {
	VIN  string `json:"vin" validate:"required,len=17,alphanum"`
	Name string `json:"name"`
}

// VolvoConfig holds the Volvo developer application credentials and endpoints.
type VolvoConfig struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
	// APIKey is the VCC API key. Without it the vehicle is not polled.
	APIKey string `json:"api_key"`
	// RefreshToken is used when no token is stored yet.
	RefreshToken string   `json:"refresh_token"`
	RedirectURI  string   `json:"redirect_uri" validate:"required,url"`
	Scopes       []string `json:"scopes" validate:"required,min=1,dive,required"`
	AuthURL      string   `json:"auth_url" validate:"required,url"`
	TokenURL     string   `json:"token_url" validate:"required,url"`
	APIBaseURL   string   `json:"api_base_url" validate:"required,url"`
}

// StorageConfig describes where refresh tokens are persisted.
type StorageConfig struct {
	Type           TokenStorageType `json:"type" validate:"required,oneof=file keyring"`
	Dir            string           `json:"dir"`             // For file storage: directory holding token files
	KeyringService string           `json:"keyring_service"` // For keyring storage: service name
}

// PollingConfig controls how often vehicle data is fetched.
type PollingConfig struct {
	Interval time.Duration `json:"interval" validate:"min=30s"`
}

// ServerConfig holds config UI server configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.FormatUint(uint64(s.Port), 10))
}

// AuthorizationConfig holds PKCE authorization timing.
type AuthorizationConfig struct {
	// SessionTimeout bounds how long an authorization session may stay open.
	SessionTimeout time.Duration `json:"session_timeout" validate:"min=1m"`
	// CallbackTimeout bounds how long the login command waits for the redirect.
	CallbackTimeout time.Duration `json:"callback_timeout" validate:"min=10s"`
	// PollInterval is how often the login command checks for the redirect.
	PollInterval time.Duration `json:"poll_interval" validate:"min=100ms"`
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel      slog.Level          `json:"log_level"`
	LogFormat     LogFormat           `json:"log_format" validate:"oneof=text json"`
	Telemetry     TelemetryConfig     `json:"telemetry"`
	Vehicle       VehicleConfig       `json:"vehicle"`
	Volvo         VolvoConfig         `json:"volvo"`
	Storage       StorageConfig       `json:"storage"`
	Polling       PollingConfig       `json:"polling"`
	Server        ServerConfig        `json:"server"`
	Authorization AuthorizationConfig `json:"authorization"`
	Shutdown      ShutdownConfig      `json:"shutdown"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.Polling.Interval == 0 {
		c.Polling.Interval = DefaultConfigPollingInterval
	}
	if c.Authorization.SessionTimeout == 0 {
		c.Authorization.SessionTimeout = DefaultConfigSessionTimeout
	}
	if c.Authorization.CallbackTimeout == 0 {
		c.Authorization.CallbackTimeout = DefaultConfigCallbackTimeout
	}
	if c.Authorization.PollInterval == 0 {
		c.Authorization.PollInterval = DefaultConfigAuthorizationPollPeriod
	}

	// The redirect must hit the config UI, derive it from the server address
	if c.Volvo.RedirectURI == "" {
		c.Volvo.RedirectURI = (&url.URL{Scheme: "http", Host: c.Server.Address(), Path: "/callback"}).String()
	}
	if len(c.Volvo.Scopes) == 0 {
		c.Volvo.Scopes = append([]string(nil), volvoid.DefaultScopes...)
	}
	if c.Volvo.AuthURL == "" {
		c.Volvo.AuthURL = volvoid.Endpoint.AuthURL
	}
	if c.Volvo.TokenURL == "" {
		c.Volvo.TokenURL = volvoid.Endpoint.TokenURL
	}
	if c.Volvo.APIBaseURL == "" {
		c.Volvo.APIBaseURL = connectedvehicle.DefaultBaseURL
	}

	if c.Storage.Type == "" {
		c.Storage.Type = DefaultConfigStorageType
	}

	// Dynamic defaults based on storage type
	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.Dir == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("storage.dir required (auto-detect failed: %w)", err)
			}
			c.Storage.Dir = filepath.Join(configDir, "ex30link", "tokens")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringService == "" {
			c.Storage.KeyringService = DefaultConfigKeyringService
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Type {
	case TokenStorageTypeFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir required for file storage")
		}
	case TokenStorageTypeKeyring:
		if c.Storage.KeyringService == "" {
			return errors.New("storage.keyring_service required for keyring storage")
		}
	}

	return nil
}

// NewTokenStore creates the token Store from the storage configuration.
// No I/O is performed.
func (s *StorageConfig) NewTokenStore() (*tokenstore.Store, error) {
	var (
		backend tokenstore.Backend
		err     error
	)

	switch s.Type {
	case TokenStorageTypeFile:
		backend, err = tokenstore.NewFileBackend(s.Dir)
	case TokenStorageTypeKeyring:
		backend, err = tokenstore.NewKeyringBackend(s.KeyringService)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", s.Type)
	}
	if err != nil {
		return nil, err
	}

	return tokenstore.New(backend)
}

// NewIdentityClient creates the Volvo ID client from the application credentials.
func (v *VolvoConfig) NewIdentityClient() (*volvoid.Client, error) {
	return volvoid.New(volvoid.Config{
		ClientID:     v.ClientID,
		ClientSecret: v.ClientSecret,
		RedirectURL:  v.RedirectURI,
		Scopes:       v.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  v.AuthURL,
			TokenURL: v.TokenURL,
		},
	})
}
