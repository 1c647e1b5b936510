package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://discord.com/api/v10"

	// permissionAdministrator es el bit ADMINISTRATOR de Discord.
	permissionAdministrator uint64 = 1 << 3
)

var (
	ErrMemberNotFound = errors.New("guild member not found")
	ErrRoleNotFound   = errors.New("guild role not found")
)

// Role es un rol del servidor tal como lo devuelve la API.
type Role struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Permissions string `json:"permissions"`
}

func (r Role) isAdministrator() bool {
	bits, err := strconv.ParseUint(r.Permissions, 10, 64)
	if err != nil {
		return false
	}
	return bits&permissionAdministrator != 0
}

// guildSource son las lecturas y escrituras crudas sobre un servidor.
// Client las resuelve por REST y CachedGuild las sirve desde redis.
type guildSource interface {
	GuildRoles(ctx context.Context) ([]Role, error)
	MemberRoleIDs(ctx context.Context, userID string) ([]string, error)
	GuildOwnerID(ctx context.Context) (string, error)
	AddMemberRole(ctx context.Context, userID, roleID string) error
}

// Client habla con la API REST de Discord para un único servidor.
type Client struct {
	baseURL string
	token   string
	guildID string
	client  *http.Client
	logger  *zap.Logger
}

// NewClient construye un cliente autenticado como bot.
func NewClient(baseURL, token, guildID string, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	if strings.TrimSpace(guildID) == "" {
		return nil, fmt.Errorf("discord guild id is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		guildID: guildID,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}, nil
}

func (c *Client) GuildID() string {
	return c.guildID
}

func (c *Client) HasRole(ctx context.Context, userID, roleName string) (bool, error) {
	return hasRole(ctx, c, userID, roleName)
}

func (c *Client) GrantRole(ctx context.Context, userID, roleName string) error {
	return grantRole(ctx, c, userID, roleName)
}

func (c *Client) IsAdministrator(ctx context.Context, userID string) (bool, error) {
	return isAdministrator(ctx, c, userID)
}

func (c *Client) GuildRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	path := "/guilds/" + url.PathEscape(c.guildID) + "/roles"
	if err := c.do(ctx, http.MethodGet, path, nil, &roles); err != nil {
		return nil, fmt.Errorf("get guild roles: %w", err)
	}
	return roles, nil
}

func (c *Client) MemberRoleIDs(ctx context.Context, userID string) ([]string, error) {
	var member struct {
		Roles []string `json:"roles"`
	}
	path := "/guilds/" + url.PathEscape(c.guildID) + "/members/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &member); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, fmt.Errorf("get guild member: %w", err)
	}
	return member.Roles, nil
}

func (c *Client) GuildOwnerID(ctx context.Context) (string, error) {
	var guild struct {
		OwnerID string `json:"owner_id"`
	}
	if err := c.do(ctx, http.MethodGet, "/guilds/"+url.PathEscape(c.guildID), nil, &guild); err != nil {
		return "", fmt.Errorf("get guild: %w", err)
	}
	return guild.OwnerID, nil
}

func (c *Client) AddMemberRole(ctx context.Context, userID, roleID string) error {
	path := "/guilds/" + url.PathEscape(c.guildID) + "/members/" + url.PathEscape(userID) + "/roles/" + url.PathEscape(roleID)
	if err := c.do(ctx, http.MethodPut, path, nil, nil); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return ErrMemberNotFound
		}
		return fmt.Errorf("add member role: %w", err)
	}
	return nil
}

// SendDirectMessage abre (o reutiliza) el canal DM con userID y envía content.
func (c *Client) SendDirectMessage(ctx context.Context, userID, content string) error {
	var channel struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/users/@me/channels", map[string]string{"recipient_id": userID}, &channel); err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if channel.ID == "" {
		return fmt.Errorf("open dm channel: empty channel id")
	}
	path := "/channels/" + url.PathEscape(channel.ID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, nil); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

// apiError es una respuesta no exitosa de la API.
type apiError struct {
	Status  int
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("discord http error: status=%d code=%d %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("discord http error: status=%d", e.Status)
}

func isStatus(err error, status int) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &apiError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		c.logger.Debug("discord api error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func findRole(roles []Role, name string) (Role, bool) {
	for _, r := range roles {
		if r.Name == name {
			return r, true
		}
	}
	return Role{}, false
}

func hasRole(ctx context.Context, src guildSource, userID, roleName string) (bool, error) {
	roles, err := src.GuildRoles(ctx)
	if err != nil {
		return false, err
	}
	role, ok := findRole(roles, roleName)
	if !ok {
		return false, nil
	}
	ids, err := src.MemberRoleIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == role.ID {
			return true, nil
		}
	}
	return false, nil
}

func grantRole(ctx context.Context, src guildSource, userID, roleName string) error {
	roles, err := src.GuildRoles(ctx)
	if err != nil {
		return err
	}
	role, ok := findRole(roles, roleName)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRoleNotFound, roleName)
	}
	return src.AddMemberRole(ctx, userID, role.ID)
}

func isAdministrator(ctx context.Context, src guildSource, userID string) (bool, error) {
	owner, err := src.GuildOwnerID(ctx)
	if err != nil {
		return false, err
	}
	if owner == userID {
		return true, nil
	}
	ids, err := src.MemberRoleIDs(ctx, userID)
	if errors.Is(err, ErrMemberNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	roles, err := src.GuildRoles(ctx)
	if err != nil {
		return false, err
	}
	byID := make(map[string]Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}
	for _, id := range ids {
		if r, ok := byID[id]; ok && r.isAdministrator() {
			return true, nil
		}
	}
	return false, nil
}
