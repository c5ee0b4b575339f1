// Package config loads service configuration from a TOML file. Command line
// flags override file values; see cmd/httpserver.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/invisicipher/secure-image-backend/transform"
)

// Config holds all configuration for the backend service.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Storage   StorageConfig   `toml:"storage"`
	Transform TransformConfig `toml:"transform"`
	Auth      AuthConfig      `toml:"auth"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	ListenAddr  string `toml:"listen_addr"`
	MetricsAddr string `toml:"metrics_addr"`
	EnablePprof bool   `toml:"enable_pprof"`
	LogJSON     bool   `toml:"log_json"`
	LogDebug    bool   `toml:"log_debug"`
}

// LedgerConfig holds the Ethereum connection and contract addresses.
type LedgerConfig struct {
	RPCURL             string `toml:"rpc_url"`
	CredentialContract string `toml:"credential_contract"`
	RecordContract     string `toml:"record_contract"`
	SignerKey          string `toml:"signer_key"`
	ChainID            int64  `toml:"chain_id"`
}

// StorageConfig holds the content backend and local paths.
type StorageConfig struct {
	ContentURI string `toml:"content_uri"`
	CacheDir   string `toml:"cache_dir"`
	DBPath     string `toml:"db_path"`
}

// TransformConfig holds the transformation sidecar endpoints.
type TransformConfig struct {
	StegoURL  string `toml:"stego_url"`
	CryptoURL string `toml:"crypto_url"`
}

// AuthConfig holds token and challenge settings. Durations are Go duration
// strings ("24h", "5m").
type AuthConfig struct {
	TokenSecret     string `toml:"token_secret"`
	TokenExpiration string `toml:"token_expiration"`
	ChallengeTTL    string `toml:"challenge_ttl"`
	AppName         string `toml:"app_name"`
}

// TokenExpirationDuration parses the token expiration setting.
func (a AuthConfig) TokenExpirationDuration() (time.Duration, error) {
	return time.ParseDuration(a.TokenExpiration)
}

// ChallengeTTLDuration parses the challenge lifetime setting.
func (a AuthConfig) ChallengeTTLDuration() (time.Duration, error) {
	return time.ParseDuration(a.ChallengeTTL)
}

// Load reads a TOML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.SetDefaults()
	return &config, nil
}

// Default returns a config with all defaults applied.
func Default() *Config {
	var config Config
	config.SetDefaults()
	return &config
}

// SetDefaults fills unset fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:8080"
	}
	if c.Ledger.RPCURL == "" {
		c.Ledger.RPCURL = "http://127.0.0.1:8545"
	}
	if c.Storage.ContentURI == "" {
		c.Storage.ContentURI = "ipfs://localhost:5001"
	}
	if c.Storage.CacheDir == "" {
		c.Storage.CacheDir = "data/stego-cache"
	}
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "data/backend.db"
	}
	if c.Transform.StegoURL == "" {
		c.Transform.StegoURL = transform.DefaultStegoURL
	}
	if c.Transform.CryptoURL == "" {
		c.Transform.CryptoURL = transform.DefaultCryptoURL
	}
	if c.Auth.TokenExpiration == "" {
		c.Auth.TokenExpiration = "24h"
	}
	if c.Auth.ChallengeTTL == "" {
		c.Auth.ChallengeTTL = "5m"
	}
}

// Validate checks the settings a running service cannot do without.
func (c *Config) Validate() error {
	if c.Auth.TokenSecret == "" {
		return fmt.Errorf("auth.token_secret must be set")
	}
	if c.Ledger.CredentialContract == "" || c.Ledger.RecordContract == "" {
		return fmt.Errorf("ledger contract addresses must be set")
	}
	if _, err := c.Auth.TokenExpirationDuration(); err != nil {
		return fmt.Errorf("invalid auth.token_expiration: %w", err)
	}
	if _, err := c.Auth.ChallengeTTLDuration(); err != nil {
		return fmt.Errorf("invalid auth.challenge_ttl: %w", err)
	}
	return nil
}
