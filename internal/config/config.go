package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Version  int            `toml:"version" mapstructure:"version"`
	Platform PlatformConfig `toml:"platform" mapstructure:"platform"`
	Browser  BrowserConfig  `toml:"browser" mapstructure:"browser"`
	Pacing   PacingConfig   `toml:"pacing" mapstructure:"pacing"`
	Actions  ActionsConfig  `toml:"actions" mapstructure:"actions"`
	Storage  StorageConfig  `toml:"storage" mapstructure:"storage"`
	API      APIConfig      `toml:"api" mapstructure:"api"`
	Helper   HelperConfig   `toml:"helper" mapstructure:"helper"`
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	Schedule ScheduleConfig `toml:"schedule" mapstructure:"schedule"`
	Email    EmailConfig    `toml:"email" mapstructure:"email"`
	Logger   LoggerConfig   `toml:"logger" mapstructure:"logger"`
}

type PlatformConfig struct {
	// Domain is the registrable domain, e.g. "instagram.com"
	Domain          string   `toml:"domain" mapstructure:"domain"`
	NotFoundPhrases []string `toml:"not_found_phrases" mapstructure:"not_found_phrases"`
	WarningKeywords []string `toml:"warning_keywords" mapstructure:"warning_keywords"`
}

type BrowserConfig struct {
	Headless       bool          `toml:"headless" mapstructure:"headless"`
	RemoteEndpoint string        `toml:"remote_endpoint" mapstructure:"remote_endpoint"`
	Proxy          ProxyConfig   `toml:"proxy" mapstructure:"proxy"`
	ConnectTimeout time.Duration `toml:"connect_timeout" mapstructure:"connect_timeout"`
	NavTimeout     time.Duration `toml:"navigation_timeout" mapstructure:"navigation_timeout"`
}

// ProxyConfig is appended to remote endpoints as query parameters
type ProxyConfig struct {
	Enabled bool   `toml:"enabled" mapstructure:"enabled"`
	Type    string `toml:"type" mapstructure:"type"`
	Country string `toml:"country" mapstructure:"country"`
	Sticky  bool   `toml:"sticky" mapstructure:"sticky"`
}

type PacingConfig struct {
	// Disabled collapses every delay to zero. Only meant for tests and dry runs.
	Disabled     bool          `toml:"disabled" mapstructure:"disabled"`
	PostLoginMin time.Duration `toml:"post_login_min" mapstructure:"post_login_min"`
	PostLoginMax time.Duration `toml:"post_login_max" mapstructure:"post_login_max"`
	TypingDelay  time.Duration `toml:"typing_delay" mapstructure:"typing_delay"`
	JitterMin    time.Duration `toml:"jitter_min" mapstructure:"jitter_min"`
	JitterMax    time.Duration `toml:"jitter_max" mapstructure:"jitter_max"`
}

type ActionsConfig struct {
	Timeout       time.Duration `toml:"timeout" mapstructure:"timeout"`
	Emojis        []string      `toml:"emojis" mapstructure:"emojis"`
	CommentMinSec int           `toml:"comment_settle_min_sec" mapstructure:"comment_settle_min_sec"`
	CommentMaxSec int           `toml:"comment_settle_max_sec" mapstructure:"comment_settle_max_sec"`
}

type StorageConfig struct {
	ActivityLog string `toml:"activity_log" mapstructure:"activity_log"`
	// LedgerBackend is "file" or "sqlite"
	LedgerBackend string `toml:"ledger_backend" mapstructure:"ledger_backend"`
	LedgerPath    string `toml:"ledger_path" mapstructure:"ledger_path"`
	DatabasePath  string `toml:"database_path" mapstructure:"database_path"`
	UploadDir     string `toml:"upload_dir" mapstructure:"upload_dir"`
}

type APIConfig struct {
	BaseURL        string        `toml:"base_url" mapstructure:"base_url"`
	AppID          string        `toml:"app_id" mapstructure:"app_id"`
	RequestsPerMin int           `toml:"requests_per_minute" mapstructure:"requests_per_minute"`
	Timeout        time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type HelperConfig struct {
	Command    []string      `toml:"command" mapstructure:"command"`
	CookiePath string        `toml:"cookie_path" mapstructure:"cookie_path"`
	Timeout    time.Duration `toml:"timeout" mapstructure:"timeout"`
}

type ServerConfig struct {
	Addr           string `toml:"addr" mapstructure:"addr"`
	MaxUploadBytes int64  `toml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

type ScheduleConfig struct {
	Enabled   bool     `toml:"enabled" mapstructure:"enabled"`
	Spec      string   `toml:"spec" mapstructure:"spec"`
	Timezone  string   `toml:"timezone" mapstructure:"timezone"`
	Usernames []string `toml:"usernames" mapstructure:"usernames"`
	Cookies   string   `toml:"cookies" mapstructure:"cookies"`
}

type EmailConfig struct {
	Enabled  bool   `toml:"enabled" mapstructure:"enabled"`
	SMTPHost string `toml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort int    `toml:"smtp_port" mapstructure:"smtp_port"`
	SMTPUser string `toml:"smtp_user" mapstructure:"smtp_user"`
	SMTPPass string `toml:"smtp_pass" mapstructure:"smtp_pass"`
	FromAddr string `toml:"from_address" mapstructure:"from_address"`
	ToAddr   string `toml:"to_address" mapstructure:"to_address"`
}

type LoggerConfig struct {
	Level       string `toml:"level" mapstructure:"level"`
	Format      string `toml:"format" mapstructure:"format"`
	ServiceName string `toml:"service_name" mapstructure:"service_name"`
	LogFile     string `toml:"log_file" mapstructure:"log_file"`
	MaxSize     int    `toml:"max_size" mapstructure:"max_size"`
	MaxBackups  int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAge      int    `toml:"max_age" mapstructure:"max_age"`
	Compress    bool   `toml:"compress" mapstructure:"compress"`
}

// DefaultEmojis are the story reactions used when none are configured
var DefaultEmojis = []string{"🔥", "👏", "👍", "❤️"}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Version: 1,
		Platform: PlatformConfig{
			Domain: "instagram.com",
			NotFoundPhrases: []string{
				"sorry, this page isn't available",
				"page not found",
				"the link you followed may be broken",
			},
			WarningKeywords: []string{
				"attempt", "locked", "limit", "suspicious",
				"unusual", "security", "verify", "blocked",
			},
		},
		Browser: BrowserConfig{
			Headless:       true,
			ConnectTimeout: 30 * time.Second,
			NavTimeout:     60 * time.Second,
			Proxy: ProxyConfig{
				Enabled: true,
				Type:    "residential",
				Country: "us",
				Sticky:  true,
			},
		},
		Pacing: PacingConfig{
			PostLoginMin: 3 * time.Second,
			PostLoginMax: 7 * time.Second,
			TypingDelay:  50 * time.Millisecond,
			JitterMin:    50 * time.Millisecond,
			JitterMax:    200 * time.Millisecond,
		},
		Actions: ActionsConfig{
			Timeout:       3 * time.Minute,
			Emojis:        append([]string(nil), DefaultEmojis...),
			CommentMinSec: 2,
			CommentMaxSec: 5,
		},
		Storage: StorageConfig{
			ActivityLog:   filepath.Join("logs", "activity_log.txt"),
			LedgerBackend: "file",
			LedgerPath:    filepath.Join("logs", "comment_log.txt"),
			DatabasePath:  filepath.Join("data", "igwarmup.db"),
			UploadDir:     "uploads",
		},
		API: APIConfig{
			BaseURL:        "https://i.instagram.com",
			AppID:          "936619743392459",
			RequestsPerMin: 20,
			Timeout:        30 * time.Second,
		},
		Helper: HelperConfig{
			Command:    []string{"node", "fetch_newest_post.js"},
			CookiePath: "igcookie.json",
			Timeout:    2 * time.Minute,
		},
		Server: ServerConfig{
			Addr:           ":3000",
			MaxUploadBytes: 5 << 20,
		},
		Schedule: ScheduleConfig{
			Spec:     "0 9,18 * * *",
			Timezone: "UTC",
		},
		Email: EmailConfig{
			SMTPPort: 587,
		},
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			ServiceName: "igwarmup",
			LogFile:     filepath.Join("logs", "igwarmup.log"),
			MaxSize:     50,
			MaxBackups:  3,
			MaxAge:      14,
			Compress:    true,
		},
	}
}

// Validate checks the values the rest of the app depends on
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Platform.Domain) == "" {
		return fmt.Errorf("platform.domain must be set")
	}
	if c.Actions.Timeout <= 0 {
		return fmt.Errorf("actions.timeout must be positive")
	}
	if c.Actions.CommentMinSec < 0 || c.Actions.CommentMaxSec < c.Actions.CommentMinSec {
		return fmt.Errorf("actions.comment_settle_min_sec/max_sec must form a valid range")
	}
	if c.Pacing.PostLoginMax < c.Pacing.PostLoginMin || c.Pacing.JitterMax < c.Pacing.JitterMin {
		return fmt.Errorf("pacing ranges must have max >= min")
	}
	switch c.Storage.LedgerBackend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("storage.ledger_backend must be \"file\" or \"sqlite\", got %q", c.Storage.LedgerBackend)
	}
	if c.API.RequestsPerMin <= 0 {
		return fmt.Errorf("api.requests_per_minute must be a positive integer")
	}
	if len(c.Helper.Command) == 0 {
		return fmt.Errorf("helper.command must not be empty")
	}
	if c.Schedule.Enabled && len(c.Schedule.Usernames) == 0 {
		return fmt.Errorf("schedule.usernames must not be empty when the schedule is enabled")
	}
	return nil
}

// ConfigDir returns the platform-appropriate config directory
func ConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "igwarmup"), nil
}

// ConfigPath returns the full path to the config file
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CacheDir returns the platform-appropriate cache directory
func CacheDir() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "igwarmup"), nil
}

// Load reads config from path (or the default config path when empty),
// layered over Default() and IGW_* environment variables.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	base, err := Default().encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode default config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	if err := v.ReadConfig(bytes.NewReader(base)); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}
	v.SetEnvPrefix("IGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes config to path (or the default config path when empty)
func (c *Config) Save(path string) error {
	if path == "" {
		p, err := ConfigPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
