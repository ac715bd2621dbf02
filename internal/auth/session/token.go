package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity envelope carried by both token kinds and
// propagated across HTTP and websocket auth paths.
type Claims struct {
	SessionID         string
	UserID            string
	IsAdmin           bool
	DeviceFingerprint string
	ExpiresAt         time.Time
}

type tokenClaims struct {
	UserID            string `json:"uid"`
	IsAdmin           bool   `json:"adm"`
	DeviceFingerprint string `json:"ua"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies the signed access/refresh token pair.
//
// Both tokens carry identical claims plus the session id as jti; they are
// signed with distinct HMAC secrets so one kind never verifies as the
// other. Tokens are stateless: the session row, keyed by jti, is the only
// persisted state.
type TokenCodec struct {
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration

	accessSecret  []byte
	refreshSecret []byte
}

// NewTokenCodec builds a TokenCodec from config.
func NewTokenCodec(cfg Config) (*TokenCodec, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" || cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrConfig
	}
	return &TokenCodec{
		issuer:        cfg.Issuer,
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
	}, nil
}

// IssueAccess signs a short-lived access token.
func (c *TokenCodec) IssueAccess(claims Claims, now time.Time) (string, time.Time, error) {
	return c.issue(claims, now, c.accessTTL, c.accessSecret)
}

// IssueRefresh signs a long-lived refresh token.
func (c *TokenCodec) IssueRefresh(claims Claims, now time.Time) (string, time.Time, error) {
	return c.issue(claims, now, c.refreshTTL, c.refreshSecret)
}

// VerifyAccess verifies an access token and returns its claims.
func (c *TokenCodec) VerifyAccess(token string) (Claims, error) {
	return c.verify(token, c.accessSecret)
}

// VerifyRefresh verifies a refresh token and returns its claims.
func (c *TokenCodec) VerifyRefresh(token string) (Claims, error) {
	return c.verify(token, c.refreshSecret)
}

func (c *TokenCodec) issue(claims Claims, now time.Time, ttl time.Duration, secret []byte) (string, time.Time, error) {
	exp := now.Add(ttl)

	tc := tokenClaims{
		UserID:            claims.UserID,
		IsAdmin:           claims.IsAdmin,
		DeviceFingerprint: claims.DeviceFingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        claims.SessionID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, tc).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

func (c *TokenCodec) verify(token string, secret []byte) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return secret, nil
	}, jwt.WithIssuer(c.issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return Claims{}, ErrInvalidToken
	}

	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || tc.ID == "" || tc.UserID == "" {
		return Claims{}, ErrInvalidToken
	}

	var exp time.Time
	if tc.ExpiresAt != nil {
		exp = tc.ExpiresAt.Time
	}

	return Claims{
		SessionID:         tc.ID,
		UserID:            tc.UserID,
		IsAdmin:           tc.IsAdmin,
		DeviceFingerprint: tc.DeviceFingerprint,
		ExpiresAt:         exp,
	}, nil
}
