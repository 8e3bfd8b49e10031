package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig
	Wallet    WalletConfig
	Contracts ContractsConfig
	Events    EventsConfig
	Storage   StorageConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Security  SecurityConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// WalletConfig points at the wallet provider endpoint
type WalletConfig struct {
	ProviderURL  string
	PollInterval time.Duration
}

// ContractsConfig holds the deployed marketplace contract address per network
type ContractsConfig struct {
	SepoliaAddress   string
	LocalhostAddress string
}

// ByChainID returns the configured addresses keyed by numeric chain id.
func (c ContractsConfig) ByChainID() map[uint64]string {
	return map[uint64]string{
		11155111: c.SepoliaAddress,
		31337:    c.LocalhostAddress,
	}
}

// EventsConfig controls contract log polling
type EventsConfig struct {
	PollInterval time.Duration
}

// StorageConfig selects the key/value backend for sessions and role records
type StorageConfig struct {
	Driver     string // memory, redis, sqlite, postgres
	SQLitePath string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// SecurityConfig holds security encryption keys
type SecurityConfig struct {
	SessionEncryptionKey string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Wallet: WalletConfig{
			ProviderURL:  getEnv("WALLET_PROVIDER_URL", ""),
			PollInterval: getEnvAsDuration("WALLET_POLL_INTERVAL", 2*time.Second),
		},
		Contracts: ContractsConfig{
			SepoliaAddress:   getEnv("MARKETPLACE_SEPOLIA_ADDRESS", ""),
			LocalhostAddress: getEnv("MARKETPLACE_LOCALHOST_ADDRESS", ""),
		},
		Events: EventsConfig{
			PollInterval: getEnvAsDuration("EVENTS_POLL_INTERVAL", 4*time.Second),
		},
		Storage: StorageConfig{
			Driver:     getEnv("STORAGE_DRIVER", "sqlite"),
			SQLitePath: getEnv("STORAGE_SQLITE_PATH", "walletd.db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "agrimarket"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		Security: SecurityConfig{
			SessionEncryptionKey: getEnv("SESSION_ENCRYPTION_KEY", ""), // 32-bytes hex string, empty stores plaintext
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
