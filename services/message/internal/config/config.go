package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config location; MESSAGE_CONFIG overrides it.
const ConfigPath = "config.yaml"

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	defaultMaxTextLength = 4096
)

var defaultAPIVersions = []string{"1.0", "2.0"}

// SeedUser is a directory entry upserted at startup.
type SeedUser struct {
	ID        string `yaml:"id"`
	UserName  string `yaml:"userName"`
	FirstName string `yaml:"firstName"`
	LastName  string `yaml:"lastName"`
	Role      string `yaml:"role"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string     `yaml:"port"`
	LogLevel                string     `yaml:"logLevel"`
	LogBackend              string     `yaml:"logBackend"`
	StoreDriver             string     `yaml:"storeDriver"`
	DatabaseURL             string     `yaml:"databaseURL"`
	RedisAddr               string     `yaml:"redisAddr"`
	RedisPassword           string     `yaml:"redisPassword"`
	AuthJWKSURL             string     `yaml:"authJwksURL"`
	JWTIssuer               string     `yaml:"jwtIssuer"`
	JWTAudience             string     `yaml:"jwtAudience"`
	JWTLeeway               string     `yaml:"jwtLeeway"`
	IdentityCacheTTL        string     `yaml:"identityCacheTTL"`
	APIVersions             []string   `yaml:"apiVersions"`
	AllowedOrigins          []string   `yaml:"allowedOrigins"`
	TrustedProxyCIDRs       []string   `yaml:"trustedProxyCidrs"`
	WriteRateLimitPerMinute int        `yaml:"writeRateLimitPerMinute"`
	MaxTextLength           int        `yaml:"maxTextLength"`
	SeedUsers               []SeedUser `yaml:"seedUsers"`
}

// Load reads config from path (defaults to config.yaml), then applies .env and environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	if v := os.Getenv("MESSAGE_CONFIG"); v != "" {
		path = v
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("MESSAGE_PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("MESSAGE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MESSAGE_LOG_BACKEND"); v != "" {
		cfg.LogBackend = v
	}
	if v := os.Getenv("MESSAGE_STORE_DRIVER"); v != "" {
		cfg.StoreDriver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("MESSAGE_AUTH_JWKS_URL"); v != "" {
		cfg.AuthJWKSURL = v
	}
	if v := os.Getenv("JWT_ISSUER"); v != "" {
		cfg.JWTIssuer = v
	}
	if v := os.Getenv("JWT_AUDIENCE"); v != "" {
		cfg.JWTAudience = v
	}
	if v := os.Getenv("JWT_LEEWAY"); v != "" {
		cfg.JWTLeeway = v
	}
	if v := os.Getenv("MESSAGE_IDENTITY_CACHE_TTL"); v != "" {
		cfg.IdentityCacheTTL = v
	}
	if v := os.Getenv("MESSAGE_API_VERSIONS"); v != "" {
		cfg.APIVersions = splitCSV(v)
	}
	if v := os.Getenv("MESSAGE_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("MESSAGE_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := os.Getenv("MESSAGE_WRITE_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.WriteRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("MESSAGE_MAX_TEXT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.MaxTextLength = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreDriverPostgres
	}
	cfg.APIVersions = lo.Uniq(lo.Compact(lo.Map(cfg.APIVersions, func(v string, _ int) string {
		return strings.TrimSpace(v)
	})))
	if len(cfg.APIVersions) == 0 {
		cfg.APIVersions = append([]string(nil), defaultAPIVersions...)
	}
	if cfg.MaxTextLength == 0 {
		cfg.MaxTextLength = defaultMaxTextLength
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for storeDriver postgres")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("config: unknown storeDriver %q", cfg.StoreDriver)
	}
	if strings.TrimSpace(cfg.AuthJWKSURL) == "" {
		return errors.New("config: authJwksURL is required (set in config.yaml or MESSAGE_AUTH_JWKS_URL)")
	}
	if cfg.WriteRateLimitPerMinute < 0 {
		return errors.New("config: writeRateLimitPerMinute must be >= 0")
	}
	if cfg.WriteRateLimitPerMinute > 0 && strings.TrimSpace(cfg.RedisAddr) == "" {
		return errors.New("config: redisAddr is required when writeRateLimitPerMinute is set")
	}
	if cfg.MaxTextLength < 0 {
		return errors.New("config: maxTextLength must be > 0")
	}
	if _, err := ParseJWTLeeway(cfg.JWTLeeway); err != nil {
		return err
	}
	if _, err := ParseIdentityCacheTTL(cfg.IdentityCacheTTL); err != nil {
		return err
	}
	for i, u := range cfg.SeedUsers {
		if strings.TrimSpace(u.ID) == "" || strings.TrimSpace(u.UserName) == "" {
			return fmt.Errorf("config: seedUsers[%d] requires id and userName", i)
		}
		switch strings.ToLower(strings.TrimSpace(u.Role)) {
		case "user", "admin":
		default:
			return fmt.Errorf("config: seedUsers[%d] has invalid role %q", i, u.Role)
		}
	}
	return nil
}

func splitCSV(value string) []string {
	parts := lo.Map(strings.Split(value, ","), func(part string, _ int) string {
		return strings.TrimSpace(part)
	})
	return lo.Compact(parts)
}

// ParseJWTLeeway parses optional JWT leeway duration string.
func ParseJWTLeeway(leewayStr string) (time.Duration, error) {
	if leewayStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(leewayStr)
	if err != nil {
		return 0, fmt.Errorf("invalid jwtLeeway duration: %w", err)
	}
	return dur, nil
}

// ParseIdentityCacheTTL parses the optional identity cache TTL. Zero disables caching.
func ParseIdentityCacheTTL(ttlStr string) (time.Duration, error) {
	if ttlStr == "" {
		return 0, nil
	}
	dur, err := time.ParseDuration(ttlStr)
	if err != nil || dur < 0 {
		return 0, fmt.Errorf("invalid identityCacheTTL duration: %q", ttlStr)
	}
	return dur, nil
}
