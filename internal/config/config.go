package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration required by the API process.
// Values come from an optional YAML file (CONFIG_PATH) and are overridden by env.
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig       `yaml:"app"`
	DB        DBConfig        `yaml:"db"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Video     VideoConfig     `yaml:"video"`
	HTTP      HTTPConfig      `yaml:"http"`
	Reaper    ReaperConfig    `yaml:"reaper"`
	Directory DirectoryConfig `yaml:"directory"`
}

type AppConfig struct {
	Env  string `yaml:"env"`
	Port int    `yaml:"port"`
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string `yaml:"sslmode"`

	// EnsureSchema creates the calls table and its indexes on startup.
	EnsureSchema bool `yaml:"ensure_schema"`
}

// RedisConfig is optional. Without a host the create guard is skipped and
// call events stay in-process.
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	JWTIssuer      string        `yaml:"jwt_issuer"`
	JWTAudience    string        `yaml:"jwt_audience"`
	AccessTokenTTL time.Duration `yaml:"access_ttl"`
}

const (
	ProviderDaily   = "daily"
	ProviderLiveKit = "livekit"
)

type VideoConfig struct {
	Provider string `yaml:"provider"`

	DailyAPIKey  string `yaml:"daily_api_key"`
	DailyBaseURL string `yaml:"daily_base_url"`

	LiveKitHost      string `yaml:"livekit_host"`
	LiveKitAPIKey    string `yaml:"livekit_api_key"`
	LiveKitAPISecret string `yaml:"livekit_api_secret"`
	LiveKitJoinURL   string `yaml:"livekit_join_url"`

	RoomTTL         time.Duration `yaml:"room_ttl"`
	MaxParticipants int           `yaml:"max_participants"`
	CreateTimeout   time.Duration `yaml:"create_timeout"`
}

type HTTPConfig struct {
	CORSOrigins    []string `yaml:"cors_origins"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst"`
}

type ReaperConfig struct {
	Disabled  bool          `yaml:"disabled"`
	Interval  time.Duration `yaml:"interval"`
	BatchSize int           `yaml:"batch_size"`
}

type DirectoryConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	if path := strings.TrimSpace(os.Getenv("CONFIG_PATH")); path != "" {
		if err := loadFile(path, &c); err != nil {
			return Config{}, err
		}
	}

	envString("APP_ENV", &c.App.Env)
	parseErrs = envInt("APP_PORT", &c.App.Port, parseErrs)

	envString("DB_HOST", &c.DB.Host)
	parseErrs = envInt("DB_PORT", &c.DB.Port, parseErrs)
	envString("DB_USER", &c.DB.User)
	envSecret("DB_PASSWORD", &c.DB.Password)
	envString("DB_NAME", &c.DB.Name)
	envString("DB_SSLMODE", &c.DB.SSLMode)
	parseErrs = envBool("DB_ENSURE_SCHEMA", &c.DB.EnsureSchema, parseErrs)

	envString("REDIS_HOST", &c.Redis.Host)
	parseErrs = envInt("REDIS_PORT", &c.Redis.Port, parseErrs)
	envSecret("REDIS_PASSWORD", &c.Redis.Password)

	envSecret("JWT_SECRET", &c.Auth.JWTSecret)
	envString("JWT_ISSUER", &c.Auth.JWTIssuer)
	envString("JWT_AUDIENCE", &c.Auth.JWTAudience)
	parseErrs = envDuration("JWT_ACCESS_TTL", &c.Auth.AccessTokenTTL, parseErrs)

	envString("VIDEO_PROVIDER", &c.Video.Provider)
	envSecret("DAILY_API_KEY", &c.Video.DailyAPIKey)
	envString("DAILY_BASE_URL", &c.Video.DailyBaseURL)
	envString("LIVEKIT_HOST", &c.Video.LiveKitHost)
	envSecret("LIVEKIT_API_KEY", &c.Video.LiveKitAPIKey)
	envSecret("LIVEKIT_API_SECRET", &c.Video.LiveKitAPISecret)
	envString("LIVEKIT_JOIN_URL", &c.Video.LiveKitJoinURL)
	parseErrs = envDuration("VIDEO_ROOM_TTL", &c.Video.RoomTTL, parseErrs)
	parseErrs = envInt("VIDEO_MAX_PARTICIPANTS", &c.Video.MaxParticipants, parseErrs)
	parseErrs = envDuration("VIDEO_CREATE_TIMEOUT", &c.Video.CreateTimeout, parseErrs)

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		c.HTTP.CORSOrigins = splitList(v)
	}
	parseErrs = envFloat("RATE_LIMIT_RPS", &c.HTTP.RateLimitRPS, parseErrs)
	parseErrs = envInt("RATE_LIMIT_BURST", &c.HTTP.RateLimitBurst, parseErrs)

	parseErrs = envBool("REAPER_DISABLED", &c.Reaper.Disabled, parseErrs)
	parseErrs = envDuration("REAPER_INTERVAL", &c.Reaper.Interval, parseErrs)
	parseErrs = envInt("REAPER_BATCH_SIZE", &c.Reaper.BatchSize, parseErrs)

	parseErrs = envDuration("DIRECTORY_CACHE_TTL", &c.Directory.CacheTTL, parseErrs)

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every invalid field at once and fills local-friendly defaults.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host != "" && (c.Redis.Port <= 0 || c.Redis.Port > 65535) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 12 * time.Hour
	}

	if c.Video.Provider == "" {
		c.Video.Provider = ProviderDaily
	}
	switch c.Video.Provider {
	case ProviderDaily:
		if c.Video.DailyAPIKey == "" {
			errs = append(errs, errors.New("DAILY_API_KEY is required for the daily provider"))
		}
		if c.Video.DailyBaseURL == "" {
			c.Video.DailyBaseURL = "https://api.daily.co/v1"
		}
	case ProviderLiveKit:
		if c.Video.LiveKitHost == "" {
			errs = append(errs, errors.New("LIVEKIT_HOST is required for the livekit provider"))
		}
		if c.Video.LiveKitAPIKey == "" || c.Video.LiveKitAPISecret == "" {
			errs = append(errs, errors.New("LIVEKIT_API_KEY and LIVEKIT_API_SECRET are required for the livekit provider"))
		}
		if c.Video.LiveKitJoinURL == "" {
			c.Video.LiveKitJoinURL = c.Video.LiveKitHost
		}
	default:
		errs = append(errs, fmt.Errorf("VIDEO_PROVIDER must be one of daily, livekit, got %q", c.Video.Provider))
	}
	if c.Video.RoomTTL <= 0 {
		c.Video.RoomTTL = time.Hour
	}
	if c.Video.MaxParticipants <= 0 {
		c.Video.MaxParticipants = 2
	}
	if c.Video.CreateTimeout <= 0 {
		c.Video.CreateTimeout = 10 * time.Second
	}

	if c.HTTP.RateLimitRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be >= 0, got %v", c.HTTP.RateLimitRPS))
	}
	if c.HTTP.RateLimitRPS == 0 {
		c.HTTP.RateLimitRPS = 2
	}
	if c.HTTP.RateLimitBurst <= 0 {
		c.HTTP.RateLimitBurst = 5
	}

	if c.Reaper.Interval <= 0 {
		c.Reaper.Interval = time.Minute
	}
	if c.Reaper.BatchSize <= 0 {
		c.Reaper.BatchSize = 100
	}
	if c.Directory.CacheTTL <= 0 {
		c.Directory.CacheTTL = 5 * time.Minute
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisEnabled() bool {
	return c.Redis.Host != ""
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func loadFile(path string, c *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

// envSecret does not trim; secrets are taken verbatim.
func envSecret(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int, errs []error) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	*dst = n
	return errs
}

func envFloat(key string, dst *float64, errs []error) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be a number, got %q", key, v))
	}
	*dst = f
	return errs
}

func envBool(key string, dst *bool, errs []error) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be a boolean, got %q", key, v))
	}
	*dst = b
	return errs
}

func envDuration(key string, dst *time.Duration, errs []error) []error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return errs
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return append(errs, fmt.Errorf("%s must be a duration, got %q", key, v))
	}
	*dst = d
	return errs
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
