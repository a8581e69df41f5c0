// Package config assembles runtime configuration from the environment. The
// vendor credentials and both database credentials are mandatory; everything
// else has a workable default.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/riftwatch/riftwatch/internal/riot"
)

// Database is one set of database credentials.
type Database struct {
	Host     string
	Username string
	Password string
	DBName   string
}

// Config is everything the binaries need that cannot live in code.
type Config struct {
	// APIKey authenticates every vendor request.
	APIKey string
	// AppRateLimits are the application-wide quotas granted to the key.
	AppRateLimits []riot.Limit
	// RequestHistory is the MySQL database backing the shared quota
	// ledger.
	RequestHistory Database
	// Postgres is the primary match store.
	Postgres Database
	// LedgerBackend selects the quota ledger implementation: mysql,
	// postgres, redis or memory.
	LedgerBackend string
	// RedisAddr is the redis ledger's address.
	RedisAddr string
}

// FromEnv reads the configuration. Missing mandatory variables are reported
// together so one failed start names them all.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIKey: os.Getenv("RIOT_API_KEY"),
		RequestHistory: Database{
			Host:     envOr("MYSQL_REQUESTHISTORY_HOST", "localhost:3306"),
			Username: os.Getenv("MYSQL_REQUESTHISTORY_USERNAME"),
			Password: os.Getenv("MYSQL_REQUESTHISTORY_PASSWORD"),
			DBName:   os.Getenv("MYSQL_REQUESTHISTORY_DBNAME"),
		},
		Postgres: Database{
			Host:     envOr("DJ_PG_HOST", "localhost"),
			Username: os.Getenv("DJ_PG_USERNAME"),
			Password: os.Getenv("DJ_PG_PASSWORD"),
			DBName:   os.Getenv("DJ_PG_DBNAME"),
		},
		LedgerBackend: envOr("RIFTWATCH_LEDGER_BACKEND", "mysql"),
		RedisAddr:     envOr("RIFTWATCH_REDIS_ADDR", "localhost:6379"),
	}

	var missing []string
	if cfg.APIKey == "" {
		missing = append(missing, "RIOT_API_KEY")
	}
	rawLimits := os.Getenv("RIOT_APP_RATE_LIMITS_JSON")
	if rawLimits == "" {
		missing = append(missing, "RIOT_APP_RATE_LIMITS_JSON")
	}
	if cfg.Postgres.Username == "" {
		missing = append(missing, "DJ_PG_USERNAME")
	}
	if cfg.Postgres.DBName == "" {
		missing = append(missing, "DJ_PG_DBNAME")
	}
	if cfg.LedgerBackend == "mysql" {
		if cfg.RequestHistory.Username == "" {
			missing = append(missing, "MYSQL_REQUESTHISTORY_USERNAME")
		}
		if cfg.RequestHistory.DBName == "" {
			missing = append(missing, "MYSQL_REQUESTHISTORY_DBNAME")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("config: missing environment variables: %v", missing)
	}

	limits, err := ParseAppRateLimits(rawLimits)
	if err != nil {
		return nil, err
	}
	cfg.AppRateLimits = limits
	return cfg, nil
}

// ParseAppRateLimits decodes the [[requests, seconds], ..] pairs the vendor
// dashboard hands out.
func ParseAppRateLimits(raw string) ([]riot.Limit, error) {
	var pairs [][]int
	if err := json.Unmarshal([]byte(raw), &pairs); err != nil {
		return nil, fmt.Errorf("config: parse RIOT_APP_RATE_LIMITS_JSON: %w", err)
	}
	limits := make([]riot.Limit, 0, len(pairs))
	for _, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("config: rate limit pair %v must be [requests, seconds]", pair)
		}
		limits = append(limits, riot.Limit{MaxRequests: pair[0], WindowSeconds: pair[1]})
	}
	if len(limits) == 0 {
		return nil, fmt.Errorf("config: RIOT_APP_RATE_LIMITS_JSON holds no limits")
	}
	return limits, nil
}

// PostgresDSN renders the match store connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		c.Postgres.Username, c.Postgres.Password, c.Postgres.Host, c.Postgres.DBName)
}

// MySQLDSN renders the quota ledger connection string. parseTime makes the
// driver scan DATETIME columns into time.Time, which the ledger's window
// reads rely on.
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true",
		c.RequestHistory.Username, c.RequestHistory.Password, c.RequestHistory.Host, c.RequestHistory.DBName)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
