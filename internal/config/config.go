package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig        `mapstructure:"app"`
	Databases []DatabaseConfig `mapstructure:"databases"`
	Backup    BackupConfig     `mapstructure:"backup"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type DatabaseConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`

	// SQL Server specific, e.g. "HOST\\INSTANCE"
	Instance string `mapstructure:"instance"`

	// PostgreSQL specific
	SSLMode string `mapstructure:"ssl_mode"`
}

type BackupConfig struct {
	LocalPath      string         `mapstructure:"local_path"`
	RetentionDays  int            `mapstructure:"retention_days"`
	Compress       bool           `mapstructure:"compress"`
	NativeBackup   bool           `mapstructure:"native_backup"`
	BatchSize      int            `mapstructure:"batch_size"`
	ConnectTimeout time.Duration  `mapstructure:"connect_timeout"`
	QueryTimeout   time.Duration  `mapstructure:"query_timeout"`
	NativeTimeout  time.Duration  `mapstructure:"native_timeout"`
	UploadTargets  []UploadTarget `mapstructure:"upload_targets"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Telegram
	BotToken   string `mapstructure:"bot_token"`
	ChatID     string `mapstructure:"chat_id"`
	SendFile   bool   `mapstructure:"send_file"`
	NotifyOnly bool   `mapstructure:"notify_only"`
}

var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "sqlscribe")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("backup.retention_days", 7)
	v.SetDefault("backup.compress", true)
	v.SetDefault("backup.batch_size", 400)
	v.SetDefault("backup.connect_timeout", 30*time.Second)
	v.SetDefault("backup.query_timeout", 600*time.Second)
	v.SetDefault("backup.native_timeout", 3600*time.Second)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for i := range cfg.Databases {
		cfg.Databases[i].Username = ExpandPlaceholders(cfg.Databases[i].Username)
		cfg.Databases[i].Password = ExpandPlaceholders(cfg.Databases[i].Password)
	}
	for i := range cfg.Backup.UploadTargets {
		t := &cfg.Backup.UploadTargets[i]
		t.AccessKey = ExpandPlaceholders(t.AccessKey)
		t.SecretKey = ExpandPlaceholders(t.SecretKey)
		t.BotToken = ExpandPlaceholders(t.BotToken)
		t.ChatID = ExpandPlaceholders(t.ChatID)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ExpandPlaceholders replaces ${VAR} references with values from the
// environment. References to unset variables are kept verbatim so strategies
// can reject them during credential validation instead of silently connecting
// with an empty string.
func ExpandPlaceholders(s string) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return match
	})
}

// HasPlaceholder reports whether s still contains an unresolved ${VAR}
// reference.
func HasPlaceholder(s string) bool {
	return placeholderPattern.MatchString(s)
}

func (c *Config) Validate() error {
	if len(c.Databases) == 0 {
		return fmt.Errorf("at least one database configuration is required")
	}

	for i, db := range c.Databases {
		if db.Name == "" {
			return fmt.Errorf("database[%d]: name is required", i)
		}
		if db.Type == "" {
			return fmt.Errorf("database[%d]: type is required", i)
		}
		if db.Host == "" {
			return fmt.Errorf("database[%d]: host is required", i)
		}
		if db.Enabled && db.Schedule == "" {
			return fmt.Errorf("database[%d]: schedule is required when enabled", i)
		}
	}

	if c.Backup.LocalPath == "" {
		return fmt.Errorf("backup.local_path is required")
	}
	if c.Backup.BatchSize <= 0 {
		return fmt.Errorf("backup.batch_size must be positive")
	}

	return nil
}

func (c *Config) GetEnabledDatabases() []DatabaseConfig {
	var enabled []DatabaseConfig
	for _, db := range c.Databases {
		if db.Enabled {
			enabled = append(enabled, db)
		}
	}
	return enabled
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Backup.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
