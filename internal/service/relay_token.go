package service

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	relayTokenIssuer = "email-gate"
	relayTokenType   = "relay"
	DefaultRelayTTL  = 365 * 24 * time.Hour
)

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

// RelayClaims identifica al gateway que reenvía eventos del chat.
type RelayClaims struct {
	Relay     string `json:"relay"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// RelayTokenService emite y valida los tokens HS256 de los relays.
type RelayTokenService struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewRelayTokenService(secret string, ttl time.Duration) *RelayTokenService {
	if ttl <= 0 {
		ttl = DefaultRelayTTL
	}
	return &RelayTokenService{
		secret: []byte(secret),
		ttl:    ttl,
		issuer: relayTokenIssuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Issue firma un token para relay. Cada token lleva un jti propio.
func (s *RelayTokenService) Issue(relay string) (string, time.Time, error) {
	if len(s.secret) == 0 || strings.TrimSpace(relay) == "" {
		return "", time.Time{}, ErrJWTInvalid
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := RelayClaims{
		Relay:     relay,
		TokenType: relayTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   relay,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (s *RelayTokenService) Parse(tokenString string) (RelayClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return RelayClaims{}, ErrJWTInvalid
	}

	var claims RelayClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return RelayClaims{}, ErrJWTExpired
		}
		return RelayClaims{}, ErrJWTInvalid
	}

	if claims.TokenType != relayTokenType {
		return RelayClaims{}, ErrJWTInvalid
	}
	if strings.TrimSpace(claims.Relay) == "" || claims.Subject != claims.Relay {
		return RelayClaims{}, ErrJWTInvalid
	}
	return claims, nil
}
