package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds everything the relayer needs to run. Secrets only ever come
// from the environment; the optional YAML file covers the non-secret knobs.
type Config struct {
	RPCURL       string `yaml:"rpc_url"`
	GameAddress  string `yaml:"game_address"`
	TokenAddress string `yaml:"token_address"`
	PrivateKey   string `yaml:"-"`

	FrontendOrigin string `yaml:"frontend_origin"`
	Port           string `yaml:"port"`
	Timezone       string `yaml:"timezone"`
	NATSURL        string `yaml:"nats_url"`

	PollInterval     time.Duration `yaml:"poll_interval"`
	ModeSyncInterval time.Duration `yaml:"mode_sync_interval"`

	RelayRefund   bool `yaml:"relay_refund"`
	ValidateToken bool `yaml:"validate_token"`
	ArmAfterClose bool `yaml:"arm_after_close"`
}

// Defaults returns the baseline configuration before file/env overlays.
func Defaults() Config {
	return Config{
		FrontendOrigin:   "http://localhost:3000",
		Port:             "3000",
		Timezone:         "Australia/Sydney",
		PollInterval:     30 * time.Second,
		ModeSyncInterval: time.Hour,
		ValidateToken:    true,
	}
}

// Load builds the configuration: defaults, then the optional YAML file named
// by RELAYER_CONFIG, then environment variables on top.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("RELAYER_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overlays environment variables, accepting the legacy aliases the
// deployed scripts used (RPC, FREAKY_CONTRACT, RELAYER_PK, GCC_ADDRESS).
func (c *Config) applyEnv() {
	c.RPCURL = firstEnv(c.RPCURL, "RPC_URL", "RPC")
	c.GameAddress = firstEnv(c.GameAddress, "FREAKY_ADDRESS", "FREAKY_CONTRACT")
	c.TokenAddress = firstEnv(c.TokenAddress, "GCC_TOKEN", "GCC_ADDRESS")
	c.PrivateKey = NormalizeKey(firstEnv(c.PrivateKey, "PRIVATE_KEY", "RELAYER_PK"))

	c.FrontendOrigin = firstEnv(c.FrontendOrigin, "FRONTEND_URL")
	c.Port = firstEnv(c.Port, "PORT")
	c.Timezone = firstEnv(c.Timezone, "TIMEZONE")
	c.NATSURL = firstEnv(c.NATSURL, "NATS_URL")

	c.PollInterval = envDuration("POLL_INTERVAL", c.PollInterval)
	c.ModeSyncInterval = envDuration("MODE_SYNC_INTERVAL", c.ModeSyncInterval)

	c.RelayRefund = envBool("RELAY_REFUND", c.RelayRefund)
	c.ValidateToken = envBool("VALIDATE_TOKEN", c.ValidateToken)
	c.ArmAfterClose = envBool("ARM_AFTER_CLOSE", c.ArmAfterClose)
}

// Validate reports every missing required value at once, so operators fix a
// broken .env in one pass instead of one variable per restart.
func (c *Config) Validate() error {
	var missing []string
	if c.RPCURL == "" {
		missing = append(missing, "RPC_URL")
	}
	if c.GameAddress == "" {
		missing = append(missing, "FREAKY_ADDRESS|FREAKY_CONTRACT")
	}
	if c.PrivateKey == "" {
		missing = append(missing, "PRIVATE_KEY|RELAYER_PK")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if _, err := c.Zone(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return nil
}

// Zone resolves the configured calendar zone.
func (c *Config) Zone() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

// NormalizeKey strips accidental quotes and whitespace from a private key and
// ensures the 0x prefix, matching what operators have historically pasted
// into .env files.
func NormalizeKey(pk string) string {
	pk = strings.TrimSpace(pk)
	pk = strings.Trim(pk, `'"`)
	pk = strings.TrimSpace(pk)
	if pk != "" && !strings.HasPrefix(pk, "0x") {
		pk = "0x" + pk
	}
	return pk
}

func firstEnv(fallback string, keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}
