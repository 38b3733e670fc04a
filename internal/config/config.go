package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Project config file names, in lookup order.
const (
	FileName     = "reconcile.yaml"
	TOMLFileName = "reconcile.toml"
	EnvFileName  = ".env"
)

// Environment variables that override the config file.
const (
	EnvStoreDSN    = "RECONCILE_STORE_DSN"
	EnvStoreDriver = "RECONCILE_STORE_DRIVER"
	EnvOwner       = "RECONCILE_OWNER"
	EnvServerAddr  = "RECONCILE_SERVER_ADDR"
)

// Store drivers.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config represents the top-level reconcile.yaml configuration.
type Config struct {
	Owner       string            `yaml:"owner" toml:"owner"`
	Store       StoreConfig       `yaml:"store" toml:"store"`
	Matching    MatchingConfig    `yaml:"matching" toml:"matching"`
	Materialize MaterializeConfig `yaml:"materialize" toml:"materialize"`
	Import      ImportConfig      `yaml:"import" toml:"import"`
	Categories  CategoriesConfig  `yaml:"categories" toml:"categories"`
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Git         GitConfig         `yaml:"git" toml:"git"`
}

// StoreConfig selects the ledger store.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"` // csv, sqlite or mysql
	DSN    string `yaml:"dsn,omitempty" toml:"dsn,omitempty"`
}

// MatchingConfig tunes the matcher.
type MatchingConfig struct {
	Tolerance string `yaml:"tolerance" toml:"tolerance"` // decimal string, e.g. "1.00"
	Workers   int    `yaml:"workers,omitempty" toml:"workers,omitempty"`
}

// MaterializeConfig controls ledger writes after matching.
type MaterializeConfig struct {
	LinkMatches bool `yaml:"link_matches" toml:"link_matches"`
}

// ImportConfig picks the default bank export parser.
type ImportConfig struct {
	Format string `yaml:"format" toml:"format"`
}

// CategoriesConfig picks the category profile seeded by init.
type CategoriesConfig struct {
	Profile string `yaml:"profile" toml:"profile"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// GitConfig controls git integration.
type GitConfig struct {
	AutoCommit  bool   `yaml:"auto_commit" toml:"auto_commit"`
	AuthorName  string `yaml:"author_name" toml:"author_name"`
	AuthorEmail string `yaml:"author_email" toml:"author_email"`
}

// Default returns a Config with sensible defaults for a new project.
func Default(owner string) *Config {
	return &Config{
		Owner: owner,
		Store: StoreConfig{Driver: DriverCSV},
		Matching: MatchingConfig{
			Tolerance: "1.00",
		},
		Import:     ImportConfig{Format: "generic"},
		Categories: CategoriesConfig{Profile: "household"},
		Server:     ServerConfig{Addr: ":8080"},
		Git: GitConfig{
			AutoCommit:  true,
			AuthorName:  "Reconcile",
			AuthorEmail: "reconcile@localhost",
		},
	}
}

// Find returns the config file in dir, preferring YAML over TOML.
func Find(dir string) (string, error) {
	for _, name := range []string{FileName, TOMLFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s or %s in %s: %w", FileName, TOMLFileName, dir, fs.ErrNotExist)
}

// Load reads a config file, decoding by extension, then applies the .env
// file next to it and the process environment. Process variables win
// over .env values, which win over the file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	dotenv, err := readDotenv(filepath.Join(filepath.Dir(path), EnvFileName))
	if err != nil {
		return nil, err
	}
	cfg.applyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes a Config, encoding by extension.
func Save(path string, cfg *Config) error {
	var data []byte
	if isTOML(path) {
		var sb strings.Builder
		if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		data = []byte(sb.String())
	} else {
		var err error
		data, err = yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Validate checks the settings that would otherwise fail late.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Owner) == "" {
		errs = append(errs, errors.New("owner is required"))
	}
	switch c.Store.Driver {
	case DriverCSV:
	case DriverSQLite, DriverMySQL:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for driver %s", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if _, err := c.ToleranceAmount(); err != nil {
		errs = append(errs, err)
	}
	if c.Matching.Workers < 0 {
		errs = append(errs, fmt.Errorf("matching.workers must not be negative, got %d", c.Matching.Workers))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ToleranceAmount parses the matching tolerance. An empty value means 1.00.
func (c *Config) ToleranceAmount() (decimal.Decimal, error) {
	if c.Matching.Tolerance == "" {
		return decimal.RequireFromString("1.00"), nil
	}
	d, err := decimal.NewFromString(c.Matching.Tolerance)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("matching.tolerance %q: %w", c.Matching.Tolerance, err)
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("matching.tolerance must be positive, got %s", d)
	}
	return d, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvOwner); ok && v != "" {
		c.Owner = v
	}
	if v, ok := lookup(EnvStoreDriver); ok && v != "" {
		c.Store.Driver = v
	}
	if v, ok := lookup(EnvStoreDSN); ok && v != "" {
		c.Store.DSN = v
	}
	if v, ok := lookup(EnvServerAddr); ok && v != "" {
		c.Server.Addr = v
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverCSV
	}
}

func readDotenv(path string) (map[string]string, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return env, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// WorkersLabel returns the matcher pool size for display.
func (c *Config) WorkersLabel() string {
	if c.Matching.Workers == 0 {
		return "auto"
	}
	return strconv.Itoa(c.Matching.Workers)
}
