package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"email-gate.db"`

	AllowedEmailDomains []string      `env:"ALLOWED_EMAIL_DOMAINS,required,notEmpty" envSeparator:","`
	VerifiedRoleName    string        `env:"VERIFIED_ROLE_NAME" envDefault:"Verified"`
	CommunityName       string        `env:"COMMUNITY_NAME" envDefault:"our Discord server"`
	CommandPrefix       string        `env:"COMMAND_PREFIX" envDefault:"!"`
	CodeTTL             time.Duration `env:"CODE_TTL" envDefault:"24h"`
	JanitorInterval     time.Duration `env:"JANITOR_INTERVAL" envDefault:"1h"`

	DiscordBotToken   string `env:"DISCORD_BOT_TOKEN,required"`
	DiscordGuildID    string `env:"DISCORD_GUILD_ID,required"`
	DiscordAPIBaseURL string `env:"DISCORD_API_BASE_URL" envDefault:"https://discord.com/api/v10"`

	SendGridAPIKey     string `env:"SENDGRID_API_KEY"`
	SendGridBaseURL    string `env:"SENDGRID_BASE_URL" envDefault:"https://api.sendgrid.com"`
	SendGridSender     string `env:"SENDGRID_SENDER"`
	SendGridTemplateID string `env:"SENDGRID_TEMPLATE_ID"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB" envDefault:"0"`
	MemberCacheTTL time.Duration `env:"MEMBER_CACHE_TTL" envDefault:"5m"`

	RelayJWTSecret string `env:"RELAY_JWT_SECRET"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
