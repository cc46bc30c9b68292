package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	OutputDir string `yaml:"output_dir"`
	Keyword   string `yaml:"keyword"`
	Headless  bool   `yaml:"headless"`

	ImplicitWait    time.Duration `yaml:"implicit_wait"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout"`
	ScrollTimeout   time.Duration `yaml:"scroll_timeout"`
	ScrollInterval  time.Duration `yaml:"scroll_interval"`
	ScrollMaxWait   time.Duration `yaml:"scroll_max_wait"`
	SettleDelay     time.Duration `yaml:"settle_delay"`
	AddressTimeout  time.Duration `yaml:"address_timeout"`

	MapLat  float64 `yaml:"map_lat"`
	MapLng  float64 `yaml:"map_lng"`
	MapZoom int     `yaml:"map_zoom"`

	CaptureDir string `yaml:"capture_dir"`
	ReplayDir  string `yaml:"replay_dir"`

	DBHost     string `yaml:"db_host"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBName     string `yaml:"db_name"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default reproduces the crawler's historical behaviour: a visible browser
// searching for cafes around Lhokseumawe.
func Default() Config {
	return Config{
		OutputDir:       "output",
		Keyword:         "Cafe lhokseumawe",
		Headless:        false,
		ImplicitWait:    10 * time.Second,
		NavigateTimeout: 300 * time.Second,
		ScrollTimeout:   5 * time.Second,
		ScrollInterval:  time.Second,
		ScrollMaxWait:   2 * time.Minute,
		SettleDelay:     2 * time.Second,
		AddressTimeout:  3 * time.Second,
		MapLat:          5.1921819,
		MapLng:          97.0296394,
		MapZoom:         12,
		DBUser:          "gmaps",
		DBName:          "gmaps",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if
// any), then the environment. A .env file in the working directory is loaded
// into the environment first.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	headless, err := parseHeadless(os.Getenv("HEADLESS"), cfg.Headless)
	if err != nil {
		return err
	}
	cfg.Headless = headless

	cfg.OutputDir = valueOrDefault(os.Getenv("OUTPUT_DIR"), cfg.OutputDir)
	cfg.Keyword = valueOrDefault(os.Getenv("KEYWORD"), cfg.Keyword)

	cfg.ImplicitWait = parseDurationEnv("IMPLICIT_WAIT_MS", cfg.ImplicitWait)
	cfg.NavigateTimeout = parseDurationEnv("NAVIGATE_TIMEOUT_MS", cfg.NavigateTimeout)
	cfg.ScrollTimeout = parseDurationEnv("SCROLL_TIMEOUT_MS", cfg.ScrollTimeout)
	cfg.ScrollInterval = parseDurationEnv("SCROLL_INTERVAL_MS", cfg.ScrollInterval)
	cfg.ScrollMaxWait = parseDurationEnv("SCROLL_MAX_WAIT_MS", cfg.ScrollMaxWait)
	cfg.SettleDelay = parseDurationEnv("SETTLE_DELAY_MS", cfg.SettleDelay)
	cfg.AddressTimeout = parseDurationEnv("ADDRESS_TIMEOUT_MS", cfg.AddressTimeout)

	cfg.MapLat = parseFloatEnv("MAP_LAT", cfg.MapLat)
	cfg.MapLng = parseFloatEnv("MAP_LNG", cfg.MapLng)
	cfg.MapZoom = parseIntEnv("MAP_ZOOM", cfg.MapZoom)

	cfg.CaptureDir = valueOrDefault(os.Getenv("CAPTURE_DIR"), cfg.CaptureDir)
	cfg.ReplayDir = valueOrDefault(os.Getenv("REPLAY_DIR"), cfg.ReplayDir)

	cfg.DBHost = valueOrDefault(os.Getenv("DB_HOST"), cfg.DBHost)
	cfg.DBUser = valueOrDefault(os.Getenv("DB_USER"), cfg.DBUser)
	cfg.DBPassword = valueOrDefault(os.Getenv("DB_PASSWORD"), cfg.DBPassword)
	cfg.DBName = valueOrDefault(os.Getenv("DB_NAME"), cfg.DBName)

	cfg.LogLevel = valueOrDefault(os.Getenv("LOG_LEVEL"), cfg.LogLevel)
	cfg.LogFormat = valueOrDefault(os.Getenv("LOG_FORMAT"), cfg.LogFormat)
	return nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Keyword) == "" {
		return fmt.Errorf("KEYWORD is required")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("OUTPUT_DIR is required")
	}
	if c.CaptureDir != "" && c.ReplayDir != "" {
		return fmt.Errorf("CAPTURE_DIR and REPLAY_DIR are mutually exclusive")
	}
	if c.ScrollInterval <= 0 {
		return fmt.Errorf("scroll interval must be positive")
	}
	if c.AddressTimeout <= 0 {
		return fmt.Errorf("ADDRESS_TIMEOUT_MS must be positive")
	}
	if c.NavigateTimeout <= 0 {
		return fmt.Errorf("NAVIGATE_TIMEOUT_MS must be positive")
	}
	if c.MapZoom < 1 || c.MapZoom > 21 {
		return fmt.Errorf("map zoom %d out of range 1-21", c.MapZoom)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	return nil
}

func parseHeadless(value string, fallback bool) (bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid HEADLESS value: %w", err)
	}
	return b, nil
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	ms, err := strconv.Atoi(value)
	if err != nil || ms < 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func parseIntEnv(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloatEnv(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}
