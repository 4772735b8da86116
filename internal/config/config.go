package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// DriverMemory keeps everything in process memory. Useful for demos.
const DriverMemory = "memory"

type Config struct {
	Mode     Mode   `yaml:"mode"`
	HTTPAddr string `yaml:"http_addr"`
	SiteID   string `yaml:"site_id"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	EnableLocalAuth bool   `yaml:"enable_local_auth"`
	AuthHMACSecret  string `yaml:"auth_hmac_secret"`
	AdminUser       string `yaml:"admin_user"`
	AdminPassHash   string `yaml:"admin_pass_hash"` // bcrypt

	CORSOriginsOnline  []string `yaml:"cors_origins_online"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline"`

	Scoring Scoring `yaml:"scoring"`
}

// Scoring holds the knobs of the scoring service.
type Scoring struct {
	MaxInvalidFraction float64       `yaml:"max_invalid_fraction"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	GridInTolerance    float64       `yaml:"grid_in_tolerance"`
}

// CORSOrigins picks the origin list for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:               mode,
		HTTPAddr:           envOr("HTTP_ADDR", ":8080"),
		SiteID:             envOr("SITE_ID", "local"),
		DBDriver:           envOr("DB_DRIVER", "sqlite"),
		DBDSN:              envOr("DB_DSN", ""),
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", true),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		AdminUser:          envOr("ADMIN_USER", "admin"),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji"),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", "https://scoring.mindengage.ai"),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
		Scoring: Scoring{
			MaxInvalidFraction: envFloat("SCORING_MAX_INVALID_FRACTION", 0.10),
			FetchTimeout:       envDuration("SCORING_FETCH_TIMEOUT", 10*time.Second),
			GridInTolerance:    envFloat("SCORING_GRID_IN_TOLERANCE", 1e-4),
		},
	}
}

// Load reads the environment, then overlays the YAML file named by path (or
// CONFIG_FILE when path is empty). Keys missing from the file keep their
// environment values.
func Load(path string) (Config, error) {
	cfg := FromEnv()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		return cfg, cfg.Validate()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "postgres", DriverMemory:
	default:
		return fmt.Errorf("config: unsupported db_driver %q", c.DBDriver)
	}
	if c.Scoring.MaxInvalidFraction < 0 || c.Scoring.MaxInvalidFraction > 1 {
		return fmt.Errorf("config: scoring.max_invalid_fraction must be within [0,1], got %v", c.Scoring.MaxInvalidFraction)
	}
	if c.Scoring.GridInTolerance < 0 {
		return fmt.Errorf("config: scoring.grid_in_tolerance must not be negative")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envFloat(k string, def float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return def
	}
	return f
}
func envDuration(k string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return d
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
