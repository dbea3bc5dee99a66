package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"bridge-backend/internal/bridge"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	NATS       NATSConfig       `yaml:"nats"`
	Log        LogConfig        `yaml:"log"`
	Auth       AuthConfig       `yaml:"auth"`
	CORS       CORSConfig       `yaml:"cors"`       // CORS configuration
	Admin      AdminConfig      `yaml:"admin"`      // Admin API access control configuration
	RateLimit  RateLimitConfig  `yaml:"ratelimit"`  // HTTP rate limit per client IP
	Monitoring MonitoringConfig `yaml:"monitoring"` // Scheduled monitoring
	Bridge     BridgeConfig     `yaml:"bridge"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig Database configuration
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	Driver          string `yaml:"driver"`
	MaxOpenConns    int    `yaml:"maxOpenConns"`
	MaxIdleConns    int    `yaml:"maxIdleConns"`
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // seconds
}

// NATSConfig NATS message server configuration
type NATSConfig struct {
	URL             string `yaml:"url"`
	Timeout         int    `yaml:"timeout"`
	ReconnectWait   int    `yaml:"reconnect_wait"`
	MaxReconnects   int    `yaml:"max_reconnects"`
	EnableJetStream bool   `yaml:"enable_jetstream"`
	Stream          string `yaml:"stream"`         // JetStream stream name
	SubjectPrefix   string `yaml:"subject_prefix"` // events are published to <prefix>.<EventName>
}

// LogConfig logrus configuration
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json | text
}

// AuthConfig wallet and admin authentication
type AuthConfig struct {
	JWTSecret       string `yaml:"jwtSecret"`
	TokenTTLHours   int    `yaml:"tokenTTLHours"`
	AdminTOTPSecret string `yaml:"adminTOTPSecret"`
	// AdminPasswordHash bcrypt hash, admin login requires the password when set
	AdminPasswordHash string `yaml:"adminPasswordHash"`
	// MessageMaxAge seconds a signed login message stays valid
	MessageMaxAge int `yaml:"messageMaxAge"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowedOrigins"`   // List of allowed origins
	AllowCredentials bool     `yaml:"allowCredentials"` // Whether to allow credentials
	MaxAge           int      `yaml:"maxAge"`           // Max age for preflight requests (seconds)
}

// AdminConfig Admin API access control configuration
type AdminConfig struct {
	AllowedIPs []string `yaml:"allowedIPs"` // List of allowed IP addresses or CIDR ranges
}

// RateLimitConfig token bucket per client IP
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	Burst             int     `yaml:"burst"`
}

// MonitoringConfig cron driven monitoring
type MonitoringConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Schedule        string `yaml:"schedule"`        // cron spec, e.g. "@every 1m"
	StalePendingAge int    `yaml:"stalePendingAge"` // minutes before a pending transfer is reported as stale
}

// BridgeConfig bridge instance parameters and first-boot bootstrap data
type BridgeConfig struct {
	RequiredConfirmations       uint64        `yaml:"requiredConfirmations"`
	LockCancelAfterConfirmation bool          `yaml:"lockCancelAfterConfirmation"`
	CallWaitSeconds             int           `yaml:"callWaitSeconds"` // wait for a running bridge call, 0 uses the default
	Vault                       string        `yaml:"vault"`
	Admin                       string        `yaml:"admin"`
	Pausers                     []string      `yaml:"pausers"`
	Validators                  []string      `yaml:"validators"`
	Ledger                      string        `yaml:"ledger"` // memory | database
	Chains                      []ChainSeed   `yaml:"chains"`
	Routes                      []RouteSeed   `yaml:"routes"`
	Fees                        []FeeSeed     `yaml:"fees"`
	DevMints                    []BalanceSeed `yaml:"devMints"`
}

// ChainSeed chain registered at first boot
type ChainSeed struct {
	ChainID     uint64 `yaml:"chainId"`
	Name        string `yaml:"name"`
	MinTransfer string `yaml:"minTransfer"`
	MaxTransfer string `yaml:"maxTransfer"`
}

// RouteSeed asset route registered at first boot
type RouteSeed struct {
	Asset              string `yaml:"asset"`
	DestinationChainID uint64 `yaml:"destinationChainId"`
	DailyLimit         string `yaml:"dailyLimit"`
}

// FeeSeed fee table entry set at first boot
type FeeSeed struct {
	SourceChainID      uint64 `yaml:"sourceChainId"`
	DestinationChainID uint64 `yaml:"destinationChainId"`
	Fee                string `yaml:"fee"`
}

// BalanceSeed ledger credit for development setups
type BalanceSeed struct {
	Asset  string `yaml:"asset"`
	Holder string `yaml:"holder"`
	Amount string `yaml:"amount"`
}

const (
	LedgerMemory   = "memory"
	LedgerDatabase = "database"
)

var AppConfig *Config

// LoadConfig Load configuration file
func LoadConfig(configPath string) error {
	// if configuration file path is empty, use default path
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("🔧 Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	fmt.Printf("✅ [%s] Loading configuration from config file: %s\n", time.Now().Format("2006-01-02 15:04:05"), configPath)

	overrideFromEnv(config)

	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Debug: Admin configuration
	if len(config.Admin.AllowedIPs) > 0 {
		fmt.Printf("📋 [Config] Admin IP whitelist loaded: %d IPs/CIDRs configured\n", len(config.Admin.AllowedIPs))
	} else {
		fmt.Printf("📋 [Config] Admin IP whitelist: not configured (localhost-only mode)\n")
	}
	fmt.Printf("📋 [Config] Bridge: %d confirmations required, %d chains, %d routes, ledger=%s\n",
		config.Bridge.RequiredConfirmations, len(config.Bridge.Chains), len(config.Bridge.Routes), config.Bridge.Ledger)

	AppConfig = config
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Database: DatabaseConfig{Driver: "postgres", MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 300},
		NATS: NATSConfig{
			Timeout:       10,
			ReconnectWait: 2,
			MaxReconnects: 10,
			Stream:        "BRIDGE_EVENTS",
			SubjectPrefix: "bridge.events",
		},
		Log:        LogConfig{Level: "info", Format: "text"},
		Auth:       AuthConfig{TokenTTLHours: 24, MessageMaxAge: 300},
		RateLimit:  RateLimitConfig{Enabled: true, RequestsPerSecond: 10, Burst: 20},
		Monitoring: MonitoringConfig{Enabled: true, Schedule: "@every 1m", StalePendingAge: 60},
		Bridge:     BridgeConfig{RequiredConfirmations: 2, Ledger: LedgerDatabase},
	}
}

// overrideFromEnv Override configuration from environment
func overrideFromEnv(config *Config) {
	if dsn := os.Getenv("DATABASE_DSN"); dsn != "" {
		config.Database.DSN = dsn
	}

	// server configuration
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	// NATS Configuration
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		config.NATS.URL = natsURL
	}
	if natsTimeout := os.Getenv("NATS_TIMEOUT"); natsTimeout != "" {
		if t, err := strconv.Atoi(natsTimeout); err == nil {
			config.NATS.Timeout = t
		}
	}

	// Auth secrets should never live in the YAML file in production
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.Auth.JWTSecret = secret
	}
	if totpSecret := os.Getenv("ADMIN_TOTP_SECRET"); totpSecret != "" {
		config.Auth.AdminTOTPSecret = totpSecret
	}
	if hash := os.Getenv("ADMIN_PASSWORD_HASH"); hash != "" {
		config.Auth.AdminPasswordHash = hash
	}

	if required := os.Getenv("BRIDGE_REQUIRED_CONFIRMATIONS"); required != "" {
		if n, err := strconv.ParseUint(required, 10, 64); err == nil {
			config.Bridge.RequiredConfirmations = n
		}
	}
	if ledger := os.Getenv("BRIDGE_LEDGER"); ledger != "" {
		config.Bridge.Ledger = ledger
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		config.Log.Level = level
	}

	// CORS Configuration
	if corsOrigins := os.Getenv("CORS_ALLOWED_ORIGINS"); corsOrigins != "" {
		origins := strings.Split(corsOrigins, ",")
		config.CORS.AllowedOrigins = make([]string, 0, len(origins))
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				config.CORS.AllowedOrigins = append(config.CORS.AllowedOrigins, trimmed)
			}
		}
	}
}

// Validate checks fields the service cannot start without
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Bridge.RequiredConfirmations == 0 {
		return fmt.Errorf("bridge.requiredConfirmations must be greater than zero")
	}
	if c.Bridge.Ledger != LedgerMemory && c.Bridge.Ledger != LedgerDatabase {
		return fmt.Errorf("bridge.ledger must be %q or %q, got %q", LedgerMemory, LedgerDatabase, c.Bridge.Ledger)
	}
	if _, err := ParseAddress("bridge.vault", c.Bridge.Vault); err != nil {
		return err
	}
	if _, err := ParseAddress("bridge.admin", c.Bridge.Admin); err != nil {
		return err
	}
	if _, err := c.Bridge.Seeds(); err != nil {
		return err
	}
	return nil
}

// CoreConfig construction parameters of the bridge instance
func (b BridgeConfig) CoreConfig() (bridge.Config, error) {
	vault, err := ParseAddress("bridge.vault", b.Vault)
	if err != nil {
		return bridge.Config{}, err
	}
	admin, err := ParseAddress("bridge.admin", b.Admin)
	if err != nil {
		return bridge.Config{}, err
	}
	pausers, err := parseAddresses("bridge.pausers", b.Pausers)
	if err != nil {
		return bridge.Config{}, err
	}
	validators, err := parseAddresses("bridge.validators", b.Validators)
	if err != nil {
		return bridge.Config{}, err
	}
	return bridge.Config{
		RequiredConfirmations:       b.RequiredConfirmations,
		Vault:                       vault,
		Admin:                       admin,
		Pausers:                     pausers,
		Validators:                  validators,
		LockCancelAfterConfirmation: b.LockCancelAfterConfirmation,
		CallWait:                    time.Duration(b.CallWaitSeconds) * time.Second,
	}, nil
}

// Seeds parsed first-boot registry data
type Seeds struct {
	Chains []SeedChain
	Routes []SeedRoute
	Fees   []SeedFee
	Mints  []SeedMint
}

type SeedChain struct {
	ChainID  uint64
	Name     string
	Min, Max *uint256.Int
}

type SeedRoute struct {
	Asset       common.Address
	Destination uint64
	DailyLimit  *uint256.Int
}

type SeedFee struct {
	Source, Destination uint64
	Fee                 *uint256.Int
}

type SeedMint struct {
	Asset, Holder common.Address
	Amount        *uint256.Int
}

// Seeds parses the bootstrap sections
func (b BridgeConfig) Seeds() (*Seeds, error) {
	out := &Seeds{}
	for i, c := range b.Chains {
		lo, err := ParseAmount(fmt.Sprintf("bridge.chains[%d].minTransfer", i), c.MinTransfer)
		if err != nil {
			return nil, err
		}
		hi, err := ParseAmount(fmt.Sprintf("bridge.chains[%d].maxTransfer", i), c.MaxTransfer)
		if err != nil {
			return nil, err
		}
		out.Chains = append(out.Chains, SeedChain{ChainID: c.ChainID, Name: c.Name, Min: lo, Max: hi})
	}
	for i, r := range b.Routes {
		asset, err := ParseAddress(fmt.Sprintf("bridge.routes[%d].asset", i), r.Asset)
		if err != nil {
			return nil, err
		}
		limit, err := ParseAmount(fmt.Sprintf("bridge.routes[%d].dailyLimit", i), r.DailyLimit)
		if err != nil {
			return nil, err
		}
		out.Routes = append(out.Routes, SeedRoute{Asset: asset, Destination: r.DestinationChainID, DailyLimit: limit})
	}
	for i, f := range b.Fees {
		fee, err := ParseAmount(fmt.Sprintf("bridge.fees[%d].fee", i), f.Fee)
		if err != nil {
			return nil, err
		}
		out.Fees = append(out.Fees, SeedFee{Source: f.SourceChainID, Destination: f.DestinationChainID, Fee: fee})
	}
	for i, m := range b.DevMints {
		asset, err := ParseAddress(fmt.Sprintf("bridge.devMints[%d].asset", i), m.Asset)
		if err != nil {
			return nil, err
		}
		holder, err := ParseAddress(fmt.Sprintf("bridge.devMints[%d].holder", i), m.Holder)
		if err != nil {
			return nil, err
		}
		amount, err := ParseAmount(fmt.Sprintf("bridge.devMints[%d].amount", i), m.Amount)
		if err != nil {
			return nil, err
		}
		out.Mints = append(out.Mints, SeedMint{Asset: asset, Holder: holder, Amount: amount})
	}
	return out, nil
}

// ParseAddress parses a non-zero hex address
func ParseAddress(field, value string) (common.Address, error) {
	value = strings.TrimSpace(value)
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, value)
	}
	addr := common.HexToAddress(value)
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%s: zero address not allowed", field)
	}
	return addr, nil
}

func parseAddresses(field string, values []string) ([]common.Address, error) {
	out := make([]common.Address, 0, len(values))
	for i, v := range values {
		addr, err := ParseAddress(fmt.Sprintf("%s[%d]", field, i), v)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// ParseAmount parses a decimal (or 0x hex) 256-bit amount
func ParseAmount(field, value string) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%s: amount is required", field)
	}
	var (
		v   *uint256.Int
		err error
	)
	if strings.HasPrefix(value, "0x") {
		v, err = uint256.FromHex(value)
	} else {
		v, err = uint256.FromDecimal(value)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: invalid amount %q: %w", field, value, err)
	}
	return v, nil
}
