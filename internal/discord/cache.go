package discord

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultMemberCacheTTL = 5 * time.Minute
	redisOpTimeout        = 500 * time.Millisecond
)

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedGuild sirve la lista de roles y el dueño del servidor desde redis y
// cae al cliente REST cuando falta la clave o redis falla. Los roles de cada
// miembro se leen siempre de la API: deciden permisos y una revocación debe
// verse en el acto.
type CachedGuild struct {
	api    *Client
	src    guildSource
	redis  redisKV
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

func NewCachedGuild(api *Client, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedGuild {
	if ttl <= 0 {
		ttl = DefaultMemberCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedGuild{
		api:    api,
		src:    api,
		redis:  client,
		ttl:    ttl,
		prefix: "discord:" + api.GuildID() + ":",
		logger: logger,
	}
}

func (g *CachedGuild) HasRole(ctx context.Context, userID, roleName string) (bool, error) {
	return hasRole(ctx, g, userID, roleName)
}

func (g *CachedGuild) GrantRole(ctx context.Context, userID, roleName string) error {
	return grantRole(ctx, g, userID, roleName)
}

func (g *CachedGuild) IsAdministrator(ctx context.Context, userID string) (bool, error) {
	return isAdministrator(ctx, g, userID)
}

func (g *CachedGuild) SendDirectMessage(ctx context.Context, userID, content string) error {
	return g.api.SendDirectMessage(ctx, userID, content)
}

func (g *CachedGuild) GuildRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if g.load(ctx, g.prefix+"roles", &roles) {
		return roles, nil
	}
	roles, err := g.src.GuildRoles(ctx)
	if err != nil {
		return nil, err
	}
	g.store(ctx, g.prefix+"roles", roles)
	return roles, nil
}

func (g *CachedGuild) MemberRoleIDs(ctx context.Context, userID string) ([]string, error) {
	return g.src.MemberRoleIDs(ctx, userID)
}

func (g *CachedGuild) GuildOwnerID(ctx context.Context) (string, error) {
	var owner string
	if g.load(ctx, g.prefix+"owner", &owner) {
		return owner, nil
	}
	owner, err := g.src.GuildOwnerID(ctx)
	if err != nil {
		return "", err
	}
	g.store(ctx, g.prefix+"owner", owner)
	return owner, nil
}

func (g *CachedGuild) AddMemberRole(ctx context.Context, userID, roleID string) error {
	return g.src.AddMemberRole(ctx, userID, roleID)
}

// load devuelve false en miss o en cualquier error de redis.
func (g *CachedGuild) load(ctx context.Context, key string, out any) bool {
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()

	raw, err := g.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			g.logger.Warn("guild cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		g.logger.Warn("guild cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (g *CachedGuild) store(ctx context.Context, key string, value any) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, redisOpTimeout)
	defer cancel()
	if err := g.redis.Set(ctx, key, payload, g.ttl).Err(); err != nil {
		g.logger.Warn("guild cache write failed", zap.String("key", key), zap.Error(err))
	}
}
