package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"email-gate/internal/bot"
	"email-gate/internal/config"
	"email-gate/internal/db"
	"email-gate/internal/discord"
	"email-gate/internal/email"
	"email-gate/internal/repository"
	"email-gate/internal/service"
)

// Guild es todo lo que el servicio y el bot usan de la plataforma de chat.
type Guild interface {
	service.Membership
	bot.Permissions
	bot.DirectMessenger
}

// App agrupa los componentes compartidos por los binarios.
type App struct {
	Store        *repository.Store
	Redis        *redis.Client
	Verification *service.VerificationService
	Dispatcher   *bot.Dispatcher
	Janitor      *service.Janitor
}

// Build arma el grafo completo de dependencias a partir de la configuración.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb := NewRedis(ctx, cfg, logger)

	guild, err := NewGuild(cfg, rdb, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	validator := service.NewDomainValidator(cfg.AllowedEmailDomains)
	verification := service.NewVerificationService(
		logger,
		store.Identities,
		store.Pending,
		validator,
		NewEmailSender(cfg, logger),
		guild,
		service.VerificationConfig{RoleName: cfg.VerifiedRoleName, CodeTTL: cfg.CodeTTL},
	)

	exampleDomain := ""
	if suffixes := validator.Suffixes(); len(suffixes) > 0 {
		exampleDomain = suffixes[0]
	}
	dispatcher := bot.NewDispatcher(logger, verification, guild, guild, bot.Config{
		Prefix:        cfg.CommandPrefix,
		CommunityName: cfg.CommunityName,
		ExampleDomain: exampleDomain,
	})

	return &App{
		Store:        store,
		Redis:        rdb,
		Verification: verification,
		Dispatcher:   dispatcher,
		Janitor:      service.NewJanitor(logger, store.Pending, cfg.JanitorInterval),
	}, nil
}

// Close libera la base y redis.
func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.Store.Close()
}

// OpenStore abre el backend elegido por STORE_DRIVER y aplica las migraciones.
func OpenStore(ctx context.Context, cfg *config.Config) (*repository.Store, error) {
	switch strings.ToLower(cfg.StoreDriver) {
	case "", "postgres":
		pool, err := db.NewPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		if err := db.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		return repository.NewPgStore(pool), nil
	case "sqlite":
		sqlDB, err := db.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		if err := db.MigrateSQLite(ctx, sqlDB); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("sqlite migrate: %w", err)
		}
		return repository.NewSQLiteStore(sqlDB), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewRedis devuelve nil si redis no está configurado o no responde.
func NewRedis(ctx context.Context, cfg *config.Config, logger *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctxPing).Err(); err != nil {
		logger.Warn("redis ping failed, member cache disabled", zap.Error(err))
		_ = client.Close()
		return nil
	}
	return client
}

// NewGuild construye el cliente de Discord, con cache si hay redis.
func NewGuild(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) (Guild, error) {
	client, err := discord.NewClient(cfg.DiscordAPIBaseURL, cfg.DiscordBotToken, cfg.DiscordGuildID, logger)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		return client, nil
	}
	return discord.NewCachedGuild(client, rdb, cfg.MemberCacheTTL, logger), nil
}

// NewEmailSender elige SendGrid, luego SMTP, y si no hay ninguno un sender
// deshabilitado que hace fallar cada emisión.
func NewEmailSender(cfg *config.Config, logger *zap.Logger) email.Sender {
	if cfg.SendGridAPIKey != "" {
		sender, err := email.NewSendGridSender(cfg.SendGridBaseURL, cfg.SendGridAPIKey, cfg.SendGridSender, cfg.SendGridTemplateID)
		if err == nil {
			return sender
		}
		logger.Warn("sendgrid sender init failed", zap.Error(err))
	}
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err == nil {
			return sender
		}
		logger.Warn("smtp sender init failed", zap.Error(err))
	}
	logger.Warn("no email provider configured")
	return email.NewDisabledSender("email sender not configured")
}
