package session

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Kiplya/DialogiX/internal/identity"
)

// UserDirectory exposes the single identity lookup the session manager
// needs during refresh.
type UserDirectory interface {
	GetByID(ctx context.Context, id string) (identity.User, error)
}

// Pair is the result of issuing or rotating a session.
type Pair struct {
	SessionID        string
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
	IsAdmin          bool
	UserID           string
}

// Manager orchestrates token issuance and rotation atop the credential
// store. Rotation is mandatory on every successful refresh: issuing a new
// refresh token without deleting the old session row is a security defect.
type Manager struct {
	cfg   Config
	codec *TokenCodec
	store Store
	users UserDirectory
}

// NewManager constructs a Manager.
func NewManager(cfg Config, codec *TokenCodec, store Store, users UserDirectory) *Manager {
	return &Manager{cfg: cfg, codec: codec, store: store, users: users}
}

// Issue creates a new session row and returns a freshly signed token pair.
// When prevSessionID is non-empty, the prior row is deleted after the new
// one is inserted. The delete is best-effort sequential, not transactional:
// an old session surviving briefly only widens a revocation window, it
// never loses data.
func (m *Manager) Issue(ctx context.Context, now time.Time, userID string, isAdmin bool, fingerprint, prevSessionID string) (Pair, error) {
	sessionID := ulid.Make().String()

	claims := Claims{
		SessionID:         sessionID,
		UserID:            userID,
		IsAdmin:           isAdmin,
		DeviceFingerprint: fingerprint,
	}

	accessToken, accessExp, err := m.codec.IssueAccess(claims, now)
	if err != nil {
		return Pair{}, err
	}
	refreshToken, refreshExp, err := m.codec.IssueRefresh(claims, now)
	if err != nil {
		return Pair{}, err
	}

	if err := m.store.Create(ctx, Row{
		ID:                sessionID,
		UserID:            userID,
		DeviceFingerprint: fingerprint,
		CreatedAt:         now,
		ExpiresAt:         refreshExp,
	}); err != nil {
		return Pair{}, err
	}

	if prevSessionID != "" {
		_ = m.store.Delete(ctx, prevSessionID)
	}

	return Pair{
		SessionID:        sessionID,
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExp,
		IsAdmin:          isAdmin,
		UserID:           userID,
	}, nil
}

// Refresh verifies a refresh token, enforces the session-row and device
// bindings, and rotates the session. Any failure past signature
// verification revokes the presented session so the client's refresh state
// can be cleared.
func (m *Manager) Refresh(ctx context.Context, now time.Time, refreshToken, fingerprint string) (Pair, error) {
	claims, err := m.codec.VerifyRefresh(refreshToken)
	if err != nil {
		return Pair{}, ErrInvalidToken
	}

	row, err := m.store.GetByID(ctx, claims.SessionID)
	if errors.Is(err, ErrSessionNotFound) {
		return Pair{}, ErrSessionRevoked
	}
	if err != nil {
		return Pair{}, err
	}

	if row.DeviceFingerprint != fingerprint {
		_ = m.store.Delete(ctx, row.ID)
		return Pair{}, ErrDeviceMismatch
	}

	user, err := m.users.GetByID(ctx, row.UserID)
	if errors.Is(err, identity.ErrUserNotFound) {
		_ = m.store.Delete(ctx, row.ID)
		return Pair{}, ErrUserGone
	}
	if err != nil {
		return Pair{}, err
	}

	return m.Issue(ctx, now, user.ID, user.IsAdmin, fingerprint, row.ID)
}

// Authorize verifies an access token for API or websocket use.
//
// It additionally requires the refresh cookie to be present on the same
// request (defense against access-token-only replay after logout), the
// device fingerprint to match, and the session row to still exist. All
// failure modes collapse to ErrUnauthorized so callers cannot distinguish
// which check failed.
func (m *Manager) Authorize(ctx context.Context, accessToken string, refreshCookiePresent bool, fingerprint string) (Claims, error) {
	if !refreshCookiePresent {
		return Claims{}, ErrUnauthorized
	}

	claims, err := m.codec.VerifyAccess(accessToken)
	if err != nil {
		return Claims{}, ErrUnauthorized
	}

	if claims.DeviceFingerprint != fingerprint {
		return Claims{}, ErrUnauthorized
	}

	if _, err := m.store.GetByID(ctx, claims.SessionID); err != nil {
		return Claims{}, ErrUnauthorized
	}

	return claims, nil
}

// VerifyRefreshClaims verifies a refresh token without touching the store.
// Logout uses it to locate the session to revoke.
func (m *Manager) VerifyRefreshClaims(refreshToken string) (Claims, error) {
	return m.codec.VerifyRefresh(refreshToken)
}

// Revoke deletes a single session (idempotent).
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	return m.store.Delete(ctx, sessionID)
}

// RevokeAllForUser deletes every session owned by userID (idempotent).
func (m *Manager) RevokeAllForUser(ctx context.Context, userID string) error {
	return m.store.DeleteAllForUser(ctx, userID)
}

// PurgeExpired sweeps session rows past their expiry. It runs once at
// process start; a background scheduler may be added without changing
// this contract.
func (m *Manager) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return m.store.DeleteExpired(ctx, now)
}
