package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Connection  ConnectionConfig  `mapstructure:"connection"`
	Selection   SelectionConfig   `mapstructure:"selection"`
	Backup      BackupConfig      `mapstructure:"backup"`
	Retention   RetentionConfig   `mapstructure:"retention"`
	Compression CompressionConfig `mapstructure:"compression"`
	Encryption  EncryptionConfig  `mapstructure:"encryption"`
	Hooks       HooksConfig       `mapstructure:"hooks"`
	Report      ReportConfig      `mapstructure:"report"`
	Uploads     []UploadTarget    `mapstructure:"uploads"`

	// Schedule is a cron expression (with seconds field). Empty means the
	// process performs a single run and exits.
	Schedule string `mapstructure:"schedule"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

type ConnectionConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// Local reports whether the default local connection is targeted. Only
// remote targets get explicit host/port/username flags on the tools.
func (c ConnectionConfig) Local() bool {
	return c.Host == "" || c.Host == "localhost"
}

type SelectionConfig struct {
	// Databases lists the databases to back up. Empty, or the single entry
	// "all", enables discovery against the server.
	Databases []string `mapstructure:"databases"`
	Exclude   []string `mapstructure:"exclude"`
}

// Explicit returns the fixed database list, or nil when discovery is wanted.
func (s SelectionConfig) Explicit() []string {
	if len(s.Databases) == 1 && s.Databases[0] == "all" {
		return nil
	}
	return s.Databases
}

type BackupConfig struct {
	Root           string        `mapstructure:"root"`
	Extension      string        `mapstructure:"extension"`
	FileMode       string        `mapstructure:"file_mode"`
	CreateDatabase bool          `mapstructure:"create_database"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
	DumpTimeout    time.Duration `mapstructure:"dump_timeout"`
}

// Mode parses the configured octal permission string.
func (b BackupConfig) Mode() (os.FileMode, error) {
	bits, err := strconv.ParseUint(b.FileMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid file_mode %q: %w", b.FileMode, err)
	}
	return os.FileMode(bits), nil
}

// Ext returns the output extension with a leading dot.
func (b BackupConfig) Ext() string {
	if strings.HasPrefix(b.Extension, ".") {
		return b.Extension
	}
	return "." + b.Extension
}

type RetentionConfig struct {
	// MonthlyDay is the day of month (1-31) that produces a monthly backup;
	// 0 disables monthly backups. WeeklyDay is the ISO day of week
	// (1=Monday..7=Sunday); 0 disables weekly backups.
	MonthlyDay int `mapstructure:"monthly_day"`
	WeeklyDay  int `mapstructure:"weekly_day"`

	KeepDaily   int `mapstructure:"keep_daily"`
	KeepWeekly  int `mapstructure:"keep_weekly"`
	KeepMonthly int `mapstructure:"keep_monthly"`
}

type CompressionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Tool is the external compressor name (gzip, pigz, bzip2, xz, zstd, ...).
	// The reserved name "builtin" compresses in-process with gzip.
	Tool string   `mapstructure:"tool"`
	Args []string `mapstructure:"args"`
}

type EncryptionConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Tool      string `mapstructure:"tool"`
	PublicKey string `mapstructure:"public_key"`
	Cipher    string `mapstructure:"cipher"`
	Suffix    string `mapstructure:"suffix"`
}

type HooksConfig struct {
	PreCommand  string `mapstructure:"pre_command"`
	PostCommand string `mapstructure:"post_command"`
}

type ReportConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	MailTo       string `mapstructure:"mail_to"`
	MailFrom     string `mapstructure:"mail_from"`
	SendmailPath string `mapstructure:"sendmail_path"`

	TelegramBotToken string `mapstructure:"telegram_bot_token"`
	TelegramChatID   string `mapstructure:"telegram_chat_id"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("PGVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.name", "pgvault")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("connection.port", 5432)
	v.SetDefault("connection.username", "postgres")
	v.SetDefault("backup.extension", "sql")
	v.SetDefault("backup.file_mode", "0600")
	v.SetDefault("backup.command_timeout", "30s")
	v.SetDefault("retention.monthly_day", 1)
	v.SetDefault("retention.weekly_day", 6)
	v.SetDefault("retention.keep_daily", 7)
	v.SetDefault("retention.keep_weekly", 5)
	v.SetDefault("retention.keep_monthly", 3)
	v.SetDefault("compression.enabled", true)
	v.SetDefault("compression.tool", "gzip")
	v.SetDefault("encryption.tool", "openssl")
	v.SetDefault("encryption.cipher", "aes-256-cbc")
	v.SetDefault("encryption.suffix", ".enc")
	v.SetDefault("report.sendmail_path", "/usr/sbin/sendmail")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Backup.Root == "" {
		return fmt.Errorf("backup.root is required")
	}
	if _, err := c.Backup.Mode(); err != nil {
		return err
	}
	if c.Retention.MonthlyDay < 0 || c.Retention.MonthlyDay > 31 {
		return fmt.Errorf("retention.monthly_day must be 0-31, got %d", c.Retention.MonthlyDay)
	}
	if c.Retention.WeeklyDay < 0 || c.Retention.WeeklyDay > 7 {
		return fmt.Errorf("retention.weekly_day must be 0-7, got %d", c.Retention.WeeklyDay)
	}
	if c.Encryption.Enabled && c.Encryption.PublicKey == "" {
		return fmt.Errorf("encryption.public_key is required when encryption is enabled")
	}
	if c.Report.Enabled && c.Report.MailTo == "" && c.Report.TelegramBotToken == "" {
		return fmt.Errorf("report requires mail_to or telegram_bot_token")
	}

	for i, target := range c.Uploads {
		if !target.Enabled {
			continue
		}
		switch target.Type {
		case "s3":
			if target.Bucket == "" {
				return fmt.Errorf("uploads[%d]: bucket is required for s3", i)
			}
		case "gdrive":
			if target.CredentialsFile == "" {
				return fmt.Errorf("uploads[%d]: credentials_file is required for gdrive", i)
			}
		default:
			return fmt.Errorf("uploads[%d]: unknown type %q", i, target.Type)
		}
	}

	return nil
}

// EnabledUploadTargets filters the configured remote destinations.
func (c *Config) EnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Uploads {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
