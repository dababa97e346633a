package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/aussiebroadwan/wellmeet/pkg/jwtx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	HashArgon2id = "argon2id"
	HashBcrypt   = "bcrypt"
)

type Config struct {
	Issuer    string        `env:"AUTH_ISSUER"    envDefault:"wellmeet-accounts"`
	Audience  []string      `env:"AUTH_AUDIENCE"  envDefault:"wellmeet-api" envSeparator:","`
	JWTSecret string        `env:"AUTH_JWT_SECRET,required"`
	TokenTTL  time.Duration `env:"AUTH_TOKEN_TTL" envDefault:"4h"`

	DatabaseDriver string `env:"AUTH_DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseFile   string `env:"AUTH_DATABASE_FILE"   envDefault:"accounts.db"`
	DatabaseDSN    string `env:"AUTH_DATABASE_DSN"` // postgres only

	PepperFile      string `env:"AUTH_PEPPER_FILE"       envDefault:"pepper"`
	HashAlgorithm   string `env:"AUTH_HASH_ALGORITHM"    envDefault:"argon2id"`
	Argon2MemoryKiB uint32 `env:"AUTH_ARGON2_MEMORY_KIB"`
	Argon2Iter      uint32 `env:"AUTH_ARGON2_ITERATIONS"`
	BcryptCost      int    `env:"AUTH_BCRYPT_COST"`

	// Admin seeding. Nothing is seeded while AdminPassword is empty.
	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL"    envDefault:"admin@localhost"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	Env                 string        `env:"ENV"                   envDefault:"dev"`
	LogLevel            string        `env:"LOG_LEVEL"             envDefault:"info"`
	LogFormat           string        `env:"LOG_FORMAT"            envDefault:"json"`
	Port                int           `env:"PORT"                  envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`
}

// LoadConfig reads the configuration from the environment and validates it.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error

	if len(c.JWTSecret) < jwtx.MinSecretLength {
		errs = append(errs, fmt.Errorf("AUTH_JWT_SECRET must be at least %d bytes", jwtx.MinSecretLength))
	}
	// An empty value would turn off the matching claim check.
	if strings.TrimSpace(c.Issuer) == "" {
		errs = append(errs, errors.New("AUTH_ISSUER must not be empty"))
	}
	if !slices.ContainsFunc(c.Audience, func(a string) bool { return strings.TrimSpace(a) != "" }) {
		errs = append(errs, errors.New("AUTH_AUDIENCE must name at least one audience"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("AUTH_TOKEN_TTL must be positive"))
	}

	switch c.DatabaseDriver {
	case DriverSQLite:
		if c.DatabaseFile == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_FILE is required for the sqlite driver"))
		}
	case DriverPostgres:
		if c.DatabaseDSN == "" {
			errs = append(errs, errors.New("AUTH_DATABASE_DSN is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	switch c.HashAlgorithm {
	case HashArgon2id, HashBcrypt:
	default:
		errs = append(errs, fmt.Errorf("unknown AUTH_HASH_ALGORITHM %q", c.HashAlgorithm))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}

	return errors.Join(errs...)
}
