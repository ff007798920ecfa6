// Package config loads runtime settings from the environment (with .env
// support) and the YAML seed file that carries the bootstrap allow-list
// and the admin principals.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/normaq/clientbook/internal/auth"
	"github.com/normaq/clientbook/internal/service"
)

// Config is everything read from the environment.
type Config struct {
	Port        int
	TokenSecret string

	// AccountFile is the JSON account store path.
	AccountFile string
	// SeedFile is the YAML seed (allow-list, admins, provisional password).
	SeedFile string

	// TableID names the sheet tab holding the client portfolio.
	TableID string
	// CacheTTL bounds how long a table snapshot is served without refetch.
	CacheTTL time.Duration
	// PlaintextHistory opts in to plaintext password history retention.
	PlaintextHistory bool

	// SourceKind selects the tabular backend: "http" (remote sheet API) or
	// "sqlite" (local file, development).
	SourceKind    string
	SheetAPIURL   string
	SheetAPIToken string
	SheetDBPath   string
}

// Seed is the YAML seed file contents.
type Seed struct {
	ProvisionalPassword string                   `yaml:"provisional_password"`
	AllowedDomain       string                   `yaml:"allowed_domain"`
	AllowList           []service.AllowedAccount `yaml:"allow_list"`
	Admins              []auth.AdminPrincipal    `yaml:"admins"`
}

// Load reads the environment, after loading a .env file if one exists in
// the working directory.
func Load() (Config, error) {
	// Missing .env is the normal case in production.
	_ = godotenv.Load()

	cfg := Config{
		Port:          8080,
		AccountFile:   "data/accounts.json",
		SeedFile:      "clientbook.yaml",
		TableID:       "Página1",
		CacheTTL:      time.Hour,
		SourceKind:    "http",
		TokenSecret:   os.Getenv("TOKEN_SECRET"),
		SheetAPIURL:   os.Getenv("SHEET_API_URL"),
		SheetAPIToken: os.Getenv("SHEET_API_TOKEN"),
		SheetDBPath:   "data/sheet.db",
	}

	if v := os.Getenv("PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = p
	}
	if v := os.Getenv("ACCOUNT_FILE"); v != "" {
		cfg.AccountFile = v
	}
	if v := os.Getenv("SEED_FILE"); v != "" {
		cfg.SeedFile = v
	}
	if v := os.Getenv("TABLE_ID"); v != "" {
		cfg.TableID = v
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = d
	}
	if v := os.Getenv("HISTORY_PLAINTEXT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("config: invalid HISTORY_PLAINTEXT %q: %w", v, err)
		}
		cfg.PlaintextHistory = b
	}
	if v := os.Getenv("SOURCE"); v != "" {
		if v != "http" && v != "sqlite" {
			return cfg, fmt.Errorf("config: SOURCE must be \"http\" or \"sqlite\", got %q", v)
		}
		cfg.SourceKind = v
	}
	if v := os.Getenv("SHEET_DB_PATH"); v != "" {
		cfg.SheetDBPath = v
	}

	if cfg.TokenSecret == "" {
		return cfg, fmt.Errorf("config: TOKEN_SECRET is required")
	}
	if cfg.SourceKind == "http" && cfg.SheetAPIURL == "" {
		return cfg, fmt.Errorf("config: SHEET_API_URL is required with SOURCE=http")
	}

	return cfg, nil
}

// LoadSeed parses the YAML seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading seed file %s: %w", path, err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("config: parsing seed file %s: %w", path, err)
	}

	if seed.ProvisionalPassword == "" {
		return nil, fmt.Errorf("config: seed file %s: provisional_password is required", path)
	}
	for i, entry := range seed.AllowList {
		if entry.Login == "" || entry.Email == "" {
			return nil, fmt.Errorf("config: seed file %s: allow_list[%d] needs both email and login", path, i)
		}
	}
	for i, admin := range seed.Admins {
		if admin.Name == "" || admin.SecretHash == "" {
			return nil, fmt.Errorf("config: seed file %s: admins[%d] needs name and secret_hash", path, i)
		}
	}

	return &seed, nil
}
