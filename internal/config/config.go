package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Webhook   WebhookConfig   `mapstructure:"webhook"`
	Zoho      ZohoConfig      `mapstructure:"zoho"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
}

type AppConfig struct {
	Name  string `mapstructure:"name"`
	Env   string `mapstructure:"env"`
	URL   string `mapstructure:"url"`
	Debug bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, mysql, sqlite3
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"ssl_mode"`
	Path     string `mapstructure:"path"` // sqlite3 only
}

type StorageConfig struct {
	// AttachmentPath is the root under which attachment files are written.
	AttachmentPath string `mapstructure:"attachment_path"`
	// PublicBaseURL prefixes generated attachment URLs.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type WebhookConfig struct {
	// Secret enables HMAC signature verification of inbound mail webhooks.
	// When empty, requests are accepted without verification and a warning
	// is logged on every delivery.
	Secret string `mapstructure:"secret"`
}

type ZohoConfig struct {
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	RefreshToken   string        `mapstructure:"refresh_token"`
	AccountID      string        `mapstructure:"account_id"`
	AccountsURL    string        `mapstructure:"accounts_url"`
	MailAPIURL     string        `mapstructure:"mail_api_url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type IngestionConfig struct {
	// SystemUserID is the agent account recorded as creator of tickets that
	// arrive by email. It must exist; the server refuses to start without it.
	SystemUserID    int64    `mapstructure:"system_user_id"`
	IgnoredSenders  []string `mapstructure:"ignored_senders"`
	IgnoredSubjects []string `mapstructure:"ignored_subjects"`
	// AutoReplyMarker identifies our own outbound notification mails when the
	// provider echoes them back through the webhook.
	AutoReplyMarker string `mapstructure:"auto_reply_marker"`
}

type SMTPConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	UseTLS   bool   `mapstructure:"use_tls"`
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TARDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("tardesk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tardesk")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.url", "http://localhost:8080")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("storage.attachment_path", "storage/ticket_attachments")
	v.SetDefault("storage.public_base_url", "/attachments")

	v.SetDefault("zoho.accounts_url", "https://accounts.zoho.com")
	v.SetDefault("zoho.mail_api_url", "https://mail.zoho.com")
	v.SetDefault("zoho.connect_timeout", 10*time.Second)
	v.SetDefault("zoho.request_timeout", 30*time.Second)

	v.SetDefault("ingestion.ignored_senders", []string{"noreply@zoho.com"})
	v.SetDefault("ingestion.ignored_subjects", []string{"ZohoMail - New login activity"})
	v.SetDefault("ingestion.auto_reply_marker", "Este es un email automático")
}

// Validate checks invariants the rest of the system relies on. A missing
// system user id is a startup error, not something resolved lazily
// mid-request.
func (c *Config) Validate() error {
	if c.Ingestion.SystemUserID <= 0 {
		return fmt.Errorf("config: ingestion.system_user_id is required")
	}
	if c.Database.Driver == "" {
		return fmt.Errorf("config: database.driver is required")
	}
	switch c.Database.Driver {
	case "postgres", "mysql", "sqlite3":
	default:
		return fmt.Errorf("config: unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "sqlite3" && c.Database.Path == "" {
		return fmt.Errorf("config: database.path is required for sqlite3")
	}
	return nil
}
