package authapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Kiplya/DialogiX/internal/auth/session"
	"github.com/Kiplya/DialogiX/internal/chat"
	"github.com/Kiplya/DialogiX/internal/identity"
)

// Handler wires the HTTP surface to the identity, session, and chat
// services: registration and login, refresh rotation, logout and
// revoke-all, directory search, account deletion, and chat reads.
type Handler struct {
	log *slog.Logger
	cfg Config

	users    identity.Store
	sessions *session.Manager
	chats    chat.Store
	blocks   chat.BlockStore

	dummyHash string
}

// NewHandler constructs the HTTP handler.
func NewHandler(log *slog.Logger, cfg Config, users identity.Store, sessions *session.Manager, chats chat.Store, blocks chat.BlockStore) *Handler {
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		log:      log,
		cfg:      cfg,
		users:    users,
		sessions: sessions,
		chats:    chats,
		blocks:   blocks,
	}

	// Dummy hash for timing-resistant login checks on unknown emails.
	if hash, err := identity.HashPassword("dummy-password-for-timing-only", identity.DefaultArgon2idParams()); err == nil {
		h.dummyHash = hash
	}

	return h
}

// Register wires the routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/public/registration", h.handleRegistration)
	mux.HandleFunc("/public/login", h.handleLogin)
	mux.HandleFunc("/public/refreshTokens", h.handleRefresh)
	mux.HandleFunc("/public/isEmailExist", h.handleIsEmailExist)
	mux.HandleFunc("/public/isUsernameExist", h.handleIsUsernameExist)

	mux.HandleFunc("/auth/logout", h.RequireAuth(h.handleLogout))
	mux.HandleFunc("/auth/sessions", h.RequireAuth(h.handleSessions))
	mux.HandleFunc("/auth/users", h.RequireAuth(h.handleSearchUsers))
	mux.HandleFunc("/auth/updatePassword", h.RequireAuth(h.handleUpdatePassword))
	mux.HandleFunc("/auth/updateUsername", h.RequireAuth(h.handleUpdateUsername))
	mux.HandleFunc("/auth/self", h.RequireAuth(h.handleSelf))
	mux.HandleFunc("/auth/user", h.RequireAuth(h.handleDeleteUser))
	mux.HandleFunc("/auth/chats", h.RequireAuth(h.handleChats))
	mux.HandleFunc("/auth/messages", h.RequireAuth(h.handleMessages))
}

// ---- public handlers ----

func (h *Handler) handleRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req registrationRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	username, ok := validateUsername(req.Username)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Username length must be longer than 5")
		return
	}
	email, ok := validateEmail(req.Email)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Incorrect email")
		return
	}
	if !validatePassword(req.Password) {
		writeMessage(w, http.StatusBadRequest, "Password length must be longer than 7")
		return
	}

	hash, err := identity.HashPassword(req.Password, identity.DefaultArgon2idParams())
	if err != nil {
		h.serverError(w, "auth.registration.hash.fail", err)
		return
	}

	_, err = h.users.Create(r.Context(), time.Now().UTC(), identity.NewUserInput{
		Email:        email,
		Username:     username,
		PasswordHash: hash,
	})
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		writeMessage(w, http.StatusBadRequest, "User already exist")
		return
	case errors.Is(err, identity.ErrUsernameTaken):
		writeMessage(w, http.StatusBadRequest, "Username already exist")
		return
	case err != nil:
		h.serverError(w, "auth.registration.create.fail", err)
		return
	}

	writeMessage(w, http.StatusOK, "Successful registration")
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	email, ok := validateEmail(req.Email)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Incorrect email")
		return
	}
	if !validatePassword(req.Password) {
		writeMessage(w, http.StatusBadRequest, "Password length must be longer than 7")
		return
	}

	fingerprint := strings.TrimSpace(r.UserAgent())
	if fingerprint == "" {
		writeMessage(w, http.StatusBadRequest, "Invalid User-Agent")
		return
	}

	ctx := r.Context()
	user, err := h.users.GetByEmail(ctx, email)
	if err != nil {
		// Timing resistance: verify against a dummy hash when the
		// email is unknown.
		if h.dummyHash != "" {
			_, _ = identity.VerifyPassword(req.Password, h.dummyHash)
		}
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	okPw, err := identity.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !okPw {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	pair, err := h.sessions.Issue(ctx, time.Now().UTC(), user.ID, user.IsAdmin, fingerprint, "")
	if err != nil {
		h.serverError(w, "auth.login.issue.fail", err)
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:     "Successfully logged in",
		AccessToken: pair.AccessToken,
		IsAdmin:     pair.IsAdmin,
		UserID:      pair.UserID,
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	refreshToken, ok := h.refreshTokenFromCookie(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	fingerprint := strings.TrimSpace(r.UserAgent())
	pair, err := h.sessions.Refresh(r.Context(), time.Now().UTC(), refreshToken, fingerprint)
	if err != nil {
		// The taxonomy is deliberately collapsed for callers: any
		// refresh failure clears the cookie and reads the same.
		if !isAuthFailure(err) {
			h.log.Error("auth.refresh.fail", "err", err)
		}
		h.clearRefreshCookie(w)
		writeMessage(w, http.StatusUnauthorized, "Invalid or expired token")
		return
	}

	h.setRefreshCookie(w, pair.RefreshToken, pair.RefreshExpiresAt)
	writeJSON(w, http.StatusOK, loginResponse{
		Message:     "Access token refreshed",
		AccessToken: pair.AccessToken,
		IsAdmin:     pair.IsAdmin,
		UserID:      pair.UserID,
	})
}

func (h *Handler) handleIsEmailExist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeMessage(w, http.StatusBadRequest, "No Email provided")
		return
	}

	exists, err := h.users.EmailExists(r.Context(), email)
	if err != nil {
		h.serverError(w, "auth.email_exist.fail", err)
		return
	}
	if exists {
		writeMessage(w, http.StatusBadRequest, "User already exist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIsUsernameExist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		writeMessage(w, http.StatusBadRequest, "No username provided")
		return
	}

	exists, err := h.users.UsernameExists(r.Context(), username)
	if err != nil {
		h.serverError(w, "auth.username_exist.fail", err)
		return
	}
	if exists {
		writeMessage(w, http.StatusBadRequest, "Username already exist")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- authenticated handlers ----

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	if refreshToken, ok := h.refreshTokenFromCookie(r); ok {
		if claims, err := h.sessions.VerifyRefreshClaims(refreshToken); err == nil {
			if err := h.sessions.Revoke(r.Context(), claims.SessionID); err != nil {
				h.serverError(w, "auth.logout.revoke.fail", err)
				return
			}
		}
	}

	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "Successfully logged out")
}

func (h *Handler) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	if err := h.sessions.RevokeAllForUser(r.Context(), claims.UserID); err != nil {
		h.serverError(w, "auth.sessions.revoke_all.fail", err)
		return
	}

	h.clearRefreshCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	username := strings.TrimSpace(q.Get("username"))
	page, pageOK := parsePositiveInt(q.Get("page"))
	limit, limitOK := parsePositiveInt(q.Get("limit"))
	if username == "" || !pageOK || !limitOK {
		writeMessage(w, http.StatusBadRequest, "Invalid Credentials")
		return
	}

	ctx := r.Context()
	claims, _ := ClaimsFromContext(ctx)

	// The directory only surfaces new people: the caller and everyone
	// already sharing a chat with them are excluded.
	peers, err := h.chats.PeerIDs(ctx, claims.UserID)
	if err != nil {
		h.serverError(w, "auth.users.peers.fail", err)
		return
	}
	excludeIDs := append(peers, claims.UserID)

	result, err := h.users.SearchByUsername(ctx, username, excludeIDs, page, limit)
	if err != nil {
		h.serverError(w, "auth.users.search.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req updatePasswordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !validatePassword(req.NewPassword) {
		writeMessage(w, http.StatusBadRequest, "Password length must be longer than 7")
		return
	}

	ctx := r.Context()
	claims, _ := ClaimsFromContext(ctx)
	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		h.serverError(w, "auth.update_password.lookup.fail", err)
		return
	}

	okPw, err := identity.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !okPw {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	hash, err := identity.HashPassword(req.NewPassword, identity.DefaultArgon2idParams())
	if err != nil {
		h.serverError(w, "auth.update_password.hash.fail", err)
		return
	}
	if err := h.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		h.serverError(w, "auth.update_password.fail", err)
		return
	}

	// A password change invalidates every session, this one included.
	if err := h.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		h.serverError(w, "auth.update_password.revoke.fail", err)
		return
	}

	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "Password successful changed")
}

func (h *Handler) handleUpdateUsername(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req updateUsernameRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	username, ok := validateUsername(req.Username)
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Username length must be longer than 5")
		return
	}

	ctx := r.Context()
	claims, _ := ClaimsFromContext(ctx)
	err := h.users.UpdateUsername(ctx, claims.UserID, username)
	switch {
	case errors.Is(err, identity.ErrUsernameTaken):
		writeMessage(w, http.StatusBadRequest, "Username already exist")
		return
	case err != nil:
		h.serverError(w, "auth.update_username.fail", err)
		return
	}

	writeMessage(w, http.StatusOK, "Username successful changed")
}

func (h *Handler) handleSelf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	user, err := h.users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		h.serverError(w, "auth.self.fail", err)
		return
	}

	writeJSON(w, http.StatusOK, selfResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
}

// handleDeleteUser removes the account after a password re-check,
// cascading chats, block relationships, and sessions.
func (h *Handler) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req passwordRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	claims, _ := ClaimsFromContext(ctx)
	user, err := h.users.GetByID(ctx, claims.UserID)
	if err != nil {
		h.serverError(w, "auth.delete_user.lookup.fail", err)
		return
	}

	okPw, err := identity.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil || !okPw {
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	if err := h.chats.DeleteAllForUser(ctx, user.ID); err != nil {
		h.serverError(w, "auth.delete_user.chats.fail", err)
		return
	}
	if err := h.blocks.DeleteAllForUser(ctx, user.ID); err != nil {
		h.serverError(w, "auth.delete_user.blocks.fail", err)
		return
	}
	if err := h.sessions.RevokeAllForUser(ctx, user.ID); err != nil {
		h.serverError(w, "auth.delete_user.sessions.fail", err)
		return
	}
	if err := h.users.Delete(ctx, user.ID); err != nil {
		h.serverError(w, "auth.delete_user.fail", err)
		return
	}

	h.clearRefreshCookie(w)
	writeMessage(w, http.StatusOK, "Successful delete user")
}

func (h *Handler) handleChats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	claims, _ := ClaimsFromContext(r.Context())
	summaries, err := h.chats.ListChatsForUser(r.Context(), claims.UserID)
	if err != nil {
		h.serverError(w, "auth.chats.fail", err)
		return
	}
	if summaries == nil {
		summaries = []chat.ChatSummary{}
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	recipientID := strings.TrimSpace(q.Get("recipientId"))
	page, pageOK := parsePositiveInt(q.Get("page"))
	limit, limitOK := parsePositiveInt(q.Get("limit"))
	if recipientID == "" || !pageOK || !limitOK {
		writeMessage(w, http.StatusBadRequest, "Invalid Credentials")
		return
	}

	ctx := r.Context()
	if _, err := h.users.GetByID(ctx, recipientID); err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			writeMessage(w, http.StatusBadRequest, "No recipient found")
			return
		}
		h.serverError(w, "auth.messages.recipient.fail", err)
		return
	}

	claims, _ := ClaimsFromContext(ctx)
	chatID := chat.PairChatID(claims.UserID, recipientID)

	result, err := h.chats.ListMessages(ctx, chatID, page, limit)
	if err != nil {
		if errors.Is(err, chat.ErrChatNotFound) {
			writeMessage(w, http.StatusNotFound, "No chat found")
			return
		}
		h.serverError(w, "auth.messages.fail", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// ---- helpers ----

func (h *Handler) serverError(w http.ResponseWriter, event string, err error) {
	h.log.Error(event, "err", err)
	writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func parsePositiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

func isAuthFailure(err error) bool {
	return errors.Is(err, session.ErrInvalidToken) ||
		errors.Is(err, session.ErrSessionRevoked) ||
		errors.Is(err, session.ErrDeviceMismatch) ||
		errors.Is(err, session.ErrUserGone)
}
