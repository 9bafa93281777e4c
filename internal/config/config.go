package config

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/viper"
)

// Config holds all application settings.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Discord  DiscordConfig
	Avatar   AvatarConfig
	Email    EmailConfig
	// MaintenanceToken guards the bulk sync endpoints. Empty disables them.
	MaintenanceToken string `mapstructure:"maintenance_token"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	PublicURL    string `mapstructure:"public_url"`
	SiteName     string `mapstructure:"site_name"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig holds session token settings.
type JWTConfig struct {
	Secret        string `mapstructure:"secret"`
	ExpirationHrs int    `mapstructure:"expirationHrs"`
}

// DiscordConfig holds the OAuth application and guild settings. Values
// are optional at startup: a deployment without Discord configured simply
// fails Discord operations with a config error at the point of use.
type DiscordConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	GuildID      string `mapstructure:"guild_id"`
	BotToken     string `mapstructure:"bot_token"`
	AvatarSize   int    `mapstructure:"avatar_size"`
}

// AvatarConfig holds local avatar storage and gravatar settings.
type AvatarConfig struct {
	UploadDir    string `mapstructure:"upload_dir"`
	GravatarSize int    `mapstructure:"gravatar_size"`
	MaxUploadKB  int    `mapstructure:"max_upload_kb"`
}

// EmailConfig holds the transactional email settings.
type EmailConfig struct {
	ResendAPIKey        string `mapstructure:"resend_api_key"`
	From                string `mapstructure:"from"`
	VerificationEnabled bool   `mapstructure:"verification_enabled"`
}

// PostgresConnectionString builds the PostgreSQL DSN.
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// Load reads the configuration from an optional YAML file merged with
// explicitly bound environment variables.
func Load(configPath string) (*Config, error) {
	vip := viper.New()

	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.site_name", "MSN")
	vip.SetDefault("server.read_timeout", 10)
	vip.SetDefault("server.write_timeout", 10)
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("jwt.expirationHrs", 24)
	vip.SetDefault("discord.avatar_size", 256)
	vip.SetDefault("avatar.gravatar_size", 256)
	vip.SetDefault("avatar.upload_dir", "data/avatars")
	vip.SetDefault("avatar.max_upload_kb", 1024)

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.public_url", "SERVER_PUBLIC_URL")
	vip.BindEnv("server.site_name", "SERVER_SITE_NAME")
	vip.BindEnv("maintenance_token", "MAINTENANCE_TOKEN")

	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")

	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")

	vip.BindEnv("jwt.secret", "JWT_SECRET")
	vip.BindEnv("jwt.expirationHrs", "JWT_EXPIRATIONHRS")

	vip.BindEnv("discord.client_id", "DISCORD_CLIENT_ID")
	vip.BindEnv("discord.client_secret", "DISCORD_CLIENT_SECRET")
	vip.BindEnv("discord.guild_id", "DISCORD_GUILD_ID")
	vip.BindEnv("discord.bot_token", "DISCORD_BOT_TOKEN")
	vip.BindEnv("discord.avatar_size", "DISCORD_AVATAR_SIZE")

	vip.BindEnv("avatar.upload_dir", "AVATAR_UPLOAD_DIR")
	vip.BindEnv("avatar.gravatar_size", "GRAVATAR_AVATAR_SIZE")
	vip.BindEnv("avatar.max_upload_kb", "AVATAR_MAX_UPLOAD_KB")

	vip.BindEnv("email.resend_api_key", "RESEND_API_KEY")
	vip.BindEnv("email.from", "EMAIL_FROM")
	vip.BindEnv("email.verification_enabled", "EMAIL_VERIFICATION_ENABLED")

	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok {
				log.Printf("config file '%s' not found, using environment variables/defaults", configPath)
			} else {
				log.Printf("warning: failed to read config file '%s': %v", configPath, err)
			}
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- loaded configuration ---")
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s", cfg.Redis.Addr)
		log.Printf("Discord Client ID Set: %t", cfg.Discord.ClientID != "")
		log.Printf("Discord Guild ID Set: %t", cfg.Discord.GuildID != "")
		log.Printf("Email Verification Enabled: %t", cfg.Email.VerificationEnabled)
		log.Printf("----------------------------")
	}

	// Only core infrastructure is required up front. Discord settings are
	// deliberately not validated here (surface at the point of use).
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT secret is required in config (check JWT_SECRET env var)")
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete (check DATABASE_* env vars)")
	}

	return &cfg, nil
}
