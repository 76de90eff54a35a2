package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	for _, path := range envFilePath {
		logger.Debug("Looking for environment file", "path", path)
		foundPath, err := findEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}

		logger.Info("Loading environment from file", "path", foundPath)
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		return loadFromEnv()
	}

	logger.Info("No valid environment files found, using default .env")
	if err := godotenv.Load(); err != nil {
		logger.Warn("No .env file found in current directory")
	}
	return loadFromEnv()
}

// findEnvFile looks for name in the working directory and its parents.
// The walk stops at the first directory holding a go.mod, so a checkout
// never picks up env files from outside the module.
func findEnvFile(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return "", os.ErrNotExist
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"db_driver", cfg.DB.Driver,
		"db", maskValue(cfg.DB.Url),
		"hub_transport", cfg.Hub.Transport,
		"hub_url", cfg.Hub.URL,
		"hub_api_key", maskValue(cfg.Hub.ApiKey),
		"chain_driver", cfg.Chain.Driver,
		"chain_private_key", maskValue(cfg.Chain.PrivateKey),
		"lock_driver", cfg.Lock.Driver,
		"settlement_poll_interval", cfg.Settlement.PollInterval,
		"settlement_deadline", cfg.Settlement.Deadline,
		"crypto_rate", cfg.Settlement.CryptoRate.String(),
		"rate_api_key", maskValue(cfg.Settlement.RateApiKey),
		"idempotency", cfg.Idempotency.Enabled,
	)
	return &cfg, nil
}

// Validate checks the enumerated settings and the fields each choice
// requires.
func (a *App) Validate() error {
	var problems []string
	check := func(name, value string, allowed ...string) {
		for _, v := range allowed {
			if value == v {
				return
			}
		}
		problems = append(problems, fmt.Sprintf("%s must be one of %s, got %q", name, strings.Join(allowed, "|"), value))
	}

	check("DATABASE_DRIVER", a.DB.Driver, "memory", "postgres")
	check("HUB_TRANSPORT", a.Hub.Transport, "memory", "http", "redis", "kafka")
	check("CHAIN_DRIVER", a.Chain.Driver, "simulated", "ethereum")
	check("LOCK_DRIVER", a.Lock.Driver, "memory", "redis")
	check("SETTLEMENT_RATE_CACHE", a.Settlement.RateCache, "memory", "redis")

	if a.DB.Driver == "postgres" && a.DB.Url == "" {
		problems = append(problems, "DATABASE_URL is required for the postgres driver")
	}
	if a.Hub.Transport == "http" && a.Hub.URL == "" {
		problems = append(problems, "HUB_URL is required for the http transport")
	}
	if a.Chain.Driver == "ethereum" && (a.Chain.RPCURL == "" || a.Chain.Contract == "" || a.Chain.PrivateKey == "") {
		problems = append(problems, "CHAIN_RPC_URL, CHAIN_CONTRACT and CHAIN_PRIVATE_KEY are required for the ethereum driver")
	}
	if !a.Settlement.CryptoRate.IsPositive() {
		problems = append(problems, "SETTLEMENT_CRYPTO_RATE must be positive")
	}
	if a.Settlement.Deadline < a.Settlement.PollInterval {
		problems = append(problems, "SETTLEMENT_DEADLINE must not be shorter than SETTLEMENT_POLL_INTERVAL")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// UsesRedis reports whether any component needs the Redis client.
func (a *App) UsesRedis() bool {
	return a.Hub.Transport == "redis" || a.Lock.Driver == "redis" ||
		(a.Settlement.RateURL != "" && a.Settlement.RateCache == "redis")
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
