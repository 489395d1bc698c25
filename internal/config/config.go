// Package config loads service settings from defaults, an optional YAML file and the environment.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/layer-3/mintbox/core"
)

// EnvConfigPath names the variable holding the optional YAML config path
const EnvConfigPath = "MINTBOX_CONFIG"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
	IPFS     IPFSConfig     `yaml:"ipfs"`
	Chain    ChainConfig    `yaml:"chain"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	SecureCookies   bool          `yaml:"secure_cookies"`
	ShutdownTimeout time.Duration `yaml:"-"`

	ShutdownTimeoutRaw string `yaml:"shutdown_timeout"`
}

type AuthConfig struct {
	AccessTokenSecret  string `yaml:"access_token_secret"`
	RefreshTokenSecret string `yaml:"refresh_token_secret"`
}

// RedisConfig drives both the session store and the event stream
type RedisConfig struct {
	URL string `yaml:"url"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type IPFSConfig struct {
	// Driver is "pinata" or "memory"
	Driver     string `yaml:"driver"`
	PinataJWT  string `yaml:"pinata_jwt"`
	PinataURL  string `yaml:"pinata_url"`
	GatewayURL string `yaml:"gateway_url"`
}

// ChainConfig enables on-chain minting when RPCURL is set
type ChainConfig struct {
	RPCURL          string `yaml:"rpc_url"`
	PrivateKey      string `yaml:"private_key"`
	ContractAddress string `yaml:"contract_address"`
	ChainID         int64  `yaml:"chain_id"`
}

type EventsConfig struct {
	// Driver is "redis" or "none"
	Driver string `yaml:"driver"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":3000",
			AllowedOrigins:  []string{"http://localhost:5000"},
			ShutdownTimeout: 10 * time.Second,
		},
		Redis:    RedisConfig{URL: "redis://localhost:6379/0"},
		Database: DatabaseConfig{DSN: "file:mintbox.db?cache=shared&_pragma=foreign_keys(1)"},
		IPFS: IPFSConfig{
			Driver:     "pinata",
			PinataURL:  "https://api.pinata.cloud",
			GatewayURL: "https://ipfs.io/ipfs/",
		},
		Chain:   ChainConfig{ChainID: 11155111},
		Events:  EventsConfig{Driver: "redis"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load builds the configuration: defaults, then the YAML file named by MINTBOX_CONFIG,
// then environment variables (a .env file in the working directory is read first).
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if c.Server.ShutdownTimeoutRaw != "" {
		c.Server.ShutdownTimeout, err = time.ParseDuration(c.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", c.Server.ShutdownTimeoutRaw, err)
		}
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} with the variable's value, or the empty string when unset
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyEnv() error {
	setStr(&c.Server.Addr, "MINTBOX_ADDR")
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitList(origins)
	}
	if err := setBool(&c.Server.SecureCookies, "COOKIE_SECURE"); err != nil {
		return err
	}

	setStr(&c.Auth.AccessTokenSecret, "ACCESS_TOKEN_SECRET")
	setStr(&c.Auth.RefreshTokenSecret, "REFRESH_TOKEN_SECRET")

	setStr(&c.Redis.URL, "REDIS_URL")
	setStr(&c.Database.DSN, "DATABASE_DSN")

	setStr(&c.IPFS.Driver, "IPFS_DRIVER")
	setStr(&c.IPFS.PinataJWT, "PINATA_JWT")
	setStr(&c.IPFS.GatewayURL, "PINATA_GATEWAY")

	setStr(&c.Chain.RPCURL, "ALCHEMY_NETWORK_URL")
	setStr(&c.Chain.PrivateKey, "PRIVATE_KEY")
	setStr(&c.Chain.ContractAddress, "NFT_CONTRACT_ADDRESS")
	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: CHAIN_ID: %v", core.ErrConfiguration, err)
		}
		c.Chain.ChainID = id
	}

	setStr(&c.Events.Driver, "EVENTS_DRIVER")
	setStr(&c.Logging.Level, "LOG_LEVEL")
	setStr(&c.Logging.Format, "LOG_FORMAT")
	return nil
}

// Validate checks required settings and their combinations
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", core.ErrConfiguration)
	}
	if c.Auth.AccessTokenSecret == "" || c.Auth.RefreshTokenSecret == "" {
		return fmt.Errorf("%w: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required", core.ErrConfiguration)
	}
	if c.Auth.AccessTokenSecret == c.Auth.RefreshTokenSecret {
		return fmt.Errorf("%w: access and refresh token secrets must differ", core.ErrConfiguration)
	}
	if c.Redis.URL == "" {
		return fmt.Errorf("%w: redis.url is required", core.ErrConfiguration)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required", core.ErrConfiguration)
	}

	switch c.IPFS.Driver {
	case "pinata":
		if c.IPFS.PinataJWT == "" {
			return fmt.Errorf("%w: PINATA_JWT is required for the pinata driver", core.ErrConfiguration)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown ipfs driver %q", core.ErrConfiguration, c.IPFS.Driver)
	}

	switch c.Events.Driver {
	case "redis", "none":
	default:
		return fmt.Errorf("%w: unknown events driver %q", core.ErrConfiguration, c.Events.Driver)
	}

	if c.MintingEnabled() {
		if c.Chain.PrivateKey == "" || c.Chain.ContractAddress == "" {
			return fmt.Errorf("%w: chain.rpc_url requires private_key and contract_address", core.ErrConfiguration)
		}
		if !common.IsHexAddress(c.Chain.ContractAddress) {
			return fmt.Errorf("%w: chain.contract_address is not an address", core.ErrConfiguration)
		}
		if c.Chain.ChainID <= 0 {
			return fmt.Errorf("%w: chain.chain_id must be positive", core.ErrConfiguration)
		}
	} else if c.Chain.PrivateKey != "" || c.Chain.ContractAddress != "" {
		return fmt.Errorf("%w: chain.private_key and contract_address require rpc_url", core.ErrConfiguration)
	}

	return nil
}

// MintingEnabled reports whether an RPC endpoint was configured
func (c *Config) MintingEnabled() bool {
	return c.Chain.RPCURL != ""
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrConfiguration, key, err)
	}
	*dst = b
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
