package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/Kiplya/DialogiX/internal/auth/session"
	"github.com/Kiplya/DialogiX/internal/chat"
	"github.com/Kiplya/DialogiX/internal/identity"
)

const apiTestKeyHex = "6368616368612d6b65792d666f722d756e69742d74657374732d6f6e6c792121"

const testUserAgent = "dialogix-test/1.0"

type apiEnv struct {
	ts       *httptest.Server
	client   *http.Client
	users    *identity.MemoryStore
	sessions *session.Manager
	chats    *chat.MemoryStore
	blocks   *chat.MemoryBlockStore
}

type apiPeerLookup struct {
	users identity.Store
}

func (p apiPeerLookup) PeerByID(ctx context.Context, userID string) (chat.Peer, error) {
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return chat.Peer{}, err
	}
	return chat.Peer{ID: u.ID, Username: u.Username, IsOnline: u.IsOnline}, nil
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	users := identity.NewMemoryStore()

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = "api-test-access-secret-0123456789"
	sessCfg.RefreshSecret = "api-test-refresh-secret-9876543210"
	codec, err := session.NewTokenCodec(sessCfg)
	if err != nil {
		t.Fatalf("NewTokenCodec: %v", err)
	}
	sessions := session.NewManager(sessCfg, codec, session.NewMemoryStore(), users)

	crypter, err := chat.NewCrypter(apiTestKeyHex)
	if err != nil {
		t.Fatalf("NewCrypter: %v", err)
	}
	chats := chat.NewMemoryStore(crypter, apiPeerLookup{users: users})
	blocks := chat.NewMemoryBlockStore()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(log, DefaultConfig(), users, sessions, chats, blocks)

	mux := http.NewServeMux()
	h.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar}

	return &apiEnv{
		ts:       ts,
		client:   client,
		users:    users,
		sessions: sessions,
		chats:    chats,
		blocks:   blocks,
	}
}

func (e *apiEnv) do(t *testing.T, method, path string, body any, bearer string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("User-Agent", testUserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	return resp.StatusCode, raw
}

func (e *apiEnv) register(t *testing.T, email, username, password string) {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/public/registration", registrationRequest{
		Email:    email,
		Username: username,
		Password: password,
	}, "")
	if status != http.StatusOK {
		t.Fatalf("registration: expected 200, got %d body=%s", status, body)
	}
}

func (e *apiEnv) login(t *testing.T, email, password string) loginResponse {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/public/login", loginRequest{
		Email:    email,
		Password: password,
	}, "")
	if status != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body=%s", status, body)
	}
	var resp loginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode loginResponse: %v", err)
	}
	return resp
}

func (e *apiEnv) refreshCookie(t *testing.T) *http.Cookie {
	t.Helper()
	u, err := url.Parse(e.ts.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	for _, c := range e.client.Jar.Cookies(u) {
		if c.Name == "refreshToken" {
			return c
		}
	}
	return nil
}

func messageOf(t *testing.T, body []byte) string {
	t.Helper()
	var resp baseResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode message body %q: %v", body, err)
	}
	return resp.Message
}

func TestRegistrationAndLogin(t *testing.T) {
	e := newAPIEnv(t)

	e.register(t, "alice@example.com", "alice_underwood", "strong-password")

	status, body := e.do(t, http.MethodPost, "/public/registration", registrationRequest{
		Email:    "alice@example.com",
		Username: "someone_else_entirely",
		Password: "strong-password",
	}, "")
	if status != http.StatusBadRequest || messageOf(t, body) != "User already exist" {
		t.Fatalf("duplicate email: got %d %s", status, body)
	}

	status, body = e.do(t, http.MethodPost, "/public/registration", registrationRequest{
		Email:    "other@example.com",
		Username: "alice_underwood",
		Password: "strong-password",
	}, "")
	if status != http.StatusBadRequest || messageOf(t, body) != "Username already exist" {
		t.Fatalf("duplicate username: got %d %s", status, body)
	}

	resp := e.login(t, "alice@example.com", "strong-password")
	if resp.AccessToken == "" || resp.UserID == "" {
		t.Fatalf("login response missing token or user id: %+v", resp)
	}
	if resp.IsAdmin {
		t.Fatalf("fresh user must not be admin")
	}
	if e.refreshCookie(t) == nil {
		t.Fatalf("expected refreshToken cookie after login")
	}

	status, body = e.do(t, http.MethodGet, "/auth/self", nil, resp.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("self: expected 200, got %d body=%s", status, body)
	}
	var self selfResponse
	if err := json.Unmarshal(body, &self); err != nil {
		t.Fatalf("decode selfResponse: %v", err)
	}
	if self.ID != resp.UserID || self.Email != "alice@example.com" || self.Username != "alice_underwood" {
		t.Fatalf("unexpected self payload: %+v", self)
	}
}

func TestRegistrationValidation(t *testing.T) {
	e := newAPIEnv(t)

	cases := []struct {
		name string
		req  registrationRequest
	}{
		{"short username", registrationRequest{Email: "a@example.com", Username: "short", Password: "long-enough"}},
		{"bad email", registrationRequest{Email: "not-an-email", Username: "valid_username", Password: "long-enough"}},
		{"short password", registrationRequest{Email: "a@example.com", Username: "valid_username", Password: "short"}},
	}
	for _, tc := range cases {
		status, _ := e.do(t, http.MethodPost, "/public/registration", tc.req, "")
		if status != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", tc.name, status)
		}
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "bob@example.com", "bob_the_builder", "strong-password")

	status, body := e.do(t, http.MethodPost, "/public/login", loginRequest{
		Email:    "unknown@example.com",
		Password: "strong-password",
	}, "")
	if status != http.StatusBadRequest {
		t.Fatalf("unknown email: expected 400, got %d", status)
	}
	msgUnknown := messageOf(t, body)

	status, body = e.do(t, http.MethodPost, "/public/login", loginRequest{
		Email:    "bob@example.com",
		Password: "wrong-password-entirely",
	}, "")
	if status != http.StatusBadRequest {
		t.Fatalf("wrong password: expected 400, got %d", status)
	}
	if msg := messageOf(t, body); msg != msgUnknown {
		t.Fatalf("login failures must be indistinguishable, got %q and %q", msgUnknown, msg)
	}
}

func TestRefreshRotationAndReplay(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "carol@example.com", "carol_rotation", "strong-password")
	e.login(t, "carol@example.com", "strong-password")

	first := e.refreshCookie(t)
	if first == nil {
		t.Fatalf("expected refresh cookie after login")
	}

	status, body := e.do(t, http.MethodPost, "/public/refreshTokens", nil, "")
	if status != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d body=%s", status, body)
	}
	var rotated loginResponse
	if err := json.Unmarshal(body, &rotated); err != nil {
		t.Fatalf("decode refresh response: %v", err)
	}
	if rotated.AccessToken == "" {
		t.Fatalf("refresh must return a new access token")
	}

	second := e.refreshCookie(t)
	if second == nil || second.Value == first.Value {
		t.Fatalf("refresh must rotate the cookie")
	}

	// Replaying the superseded refresh token must fail.
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/public/refreshTokens", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("User-Agent", testUserAgent)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: first.Value})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("replay request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed refresh token: expected 401, got %d", resp.StatusCode)
	}
}

func TestRefreshWithoutCookie(t *testing.T) {
	e := newAPIEnv(t)

	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/public/refreshTokens", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("User-Agent", testUserAgent)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh without cookie: expected 401, got %d", resp.StatusCode)
	}
}

func TestRequireAuthRejections(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "dave@example.com", "dave_locked_out", "strong-password")
	login := e.login(t, "dave@example.com", "strong-password")

	// No bearer token.
	status, _ := e.do(t, http.MethodGet, "/auth/self", nil, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("missing bearer: expected 401, got %d", status)
	}

	// Garbage bearer token.
	status, _ = e.do(t, http.MethodGet, "/auth/self", nil, "not-a-real-token")
	if status != http.StatusUnauthorized {
		t.Fatalf("garbage bearer: expected 401, got %d", status)
	}

	// Valid bearer but no refresh cookie alongside it.
	req, err := http.NewRequest(http.MethodGet, e.ts.URL+"/auth/self", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("User-Agent", testUserAgent)
	req.Header.Set("Authorization", "Bearer "+login.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bearer without cookie: expected 401, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "erin@example.com", "erin_leaves_now", "strong-password")
	login := e.login(t, "erin@example.com", "strong-password")
	cookie := e.refreshCookie(t)

	status, body := e.do(t, http.MethodPost, "/auth/logout", nil, login.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d body=%s", status, body)
	}
	if c := e.refreshCookie(t); c != nil && c.Value != "" {
		t.Fatalf("logout must clear the refresh cookie")
	}

	// The revoked session's refresh token is dead.
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+"/public/refreshTokens", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("User-Agent", testUserAgent)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: cookie.Value})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("refresh request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestRevokeAllSessions(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "frank@example.com", "frank_all_devices", "strong-password")
	e.login(t, "frank@example.com", "strong-password")
	login2 := e.login(t, "frank@example.com", "strong-password")

	status, body := e.do(t, http.MethodDelete, "/auth/sessions", nil, login2.AccessToken)
	if status != http.StatusNoContent {
		t.Fatalf("revoke all: expected 204, got %d body=%s", status, body)
	}

	status, _ = e.do(t, http.MethodPost, "/public/refreshTokens", nil, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("refresh after revoke all: expected 401, got %d", status)
	}
}

func TestExistenceChecks(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "grace@example.com", "grace_existing", "strong-password")

	status, _ := e.do(t, http.MethodGet, "/public/isEmailExist?email=grace@example.com", nil, "")
	if status != http.StatusBadRequest {
		t.Fatalf("taken email: expected 400, got %d", status)
	}
	status, _ = e.do(t, http.MethodGet, "/public/isEmailExist?email=free@example.com", nil, "")
	if status != http.StatusNoContent {
		t.Fatalf("free email: expected 204, got %d", status)
	}

	status, _ = e.do(t, http.MethodGet, "/public/isUsernameExist?username=grace_existing", nil, "")
	if status != http.StatusBadRequest {
		t.Fatalf("taken username: expected 400, got %d", status)
	}
	status, _ = e.do(t, http.MethodGet, "/public/isUsernameExist?username=nobody_here_yet", nil, "")
	if status != http.StatusNoContent {
		t.Fatalf("free username: expected 204, got %d", status)
	}
}

func TestSearchUsersExcludesSelf(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "henry@example.com", "search_henry", "strong-password")
	e.register(t, "irene@example.com", "search_irene", "strong-password")
	login := e.login(t, "henry@example.com", "strong-password")

	status, body := e.do(t, http.MethodGet, "/auth/users?username=search&page=1&limit=10", nil, login.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("search: expected 200, got %d body=%s", status, body)
	}
	var result identity.SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode search result: %v", err)
	}
	if len(result.Users) != 1 || result.Users[0].Username != "search_irene" {
		t.Fatalf("search must exclude the caller, got %+v", result.Users)
	}
	if result.HasMore {
		t.Fatalf("single page of one user must not report more")
	}

	status, _ = e.do(t, http.MethodGet, "/auth/users?username=search&page=0&limit=10", nil, login.AccessToken)
	if status != http.StatusBadRequest {
		t.Fatalf("invalid page: expected 400, got %d", status)
	}
}

func TestSearchUsersExcludesChatPeers(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "paula@example.com", "match_paula", "strong-password")
	e.register(t, "quinn@example.com", "match_quinn", "strong-password")
	e.register(t, "ralph@example.com", "match_ralph", "strong-password")
	paula := e.login(t, "paula@example.com", "strong-password")

	quinn, err := e.users.GetByEmail(context.Background(), "quinn@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}

	// Paula already chats with quinn, so the directory should only
	// offer ralph.
	ctx := context.Background()
	now := time.Now().UTC()
	ch, err := e.chats.GetOrCreateChat(ctx, now, paula.UserID, quinn.ID)
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}
	if _, err := e.chats.AppendMessage(ctx, now, ch.ID, paula.UserID, "hi"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	status, body := e.do(t, http.MethodGet, "/auth/users?username=match&page=1&limit=10", nil, paula.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("search: expected 200, got %d body=%s", status, body)
	}
	var result identity.SearchResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("decode search result: %v", err)
	}
	if len(result.Users) != 1 || result.Users[0].Username != "match_ralph" {
		t.Fatalf("search must exclude existing chat peers, got %+v", result.Users)
	}
	if result.HasMore {
		t.Fatalf("excluded peers must not count toward hasMore")
	}
}

func TestUpdatePassword(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "sam@example.com", "sam_rotates", "strong-password")
	sam := e.login(t, "sam@example.com", "strong-password")

	// Wrong current password is rejected.
	status, _ := e.do(t, http.MethodPost, "/auth/updatePassword", updatePasswordRequest{
		Password:    "not-the-password",
		NewPassword: "brand-new-password",
	}, sam.AccessToken)
	if status != http.StatusBadRequest {
		t.Fatalf("wrong current password: expected 400, got %d", status)
	}

	// Too-short replacement is rejected.
	status, _ = e.do(t, http.MethodPost, "/auth/updatePassword", updatePasswordRequest{
		Password:    "strong-password",
		NewPassword: "short",
	}, sam.AccessToken)
	if status != http.StatusBadRequest {
		t.Fatalf("short new password: expected 400, got %d", status)
	}

	status, body := e.do(t, http.MethodPost, "/auth/updatePassword", updatePasswordRequest{
		Password:    "strong-password",
		NewPassword: "brand-new-password",
	}, sam.AccessToken)
	if status != http.StatusOK || messageOf(t, body) != "Password successful changed" {
		t.Fatalf("update password: got %d %s", status, body)
	}

	// The change revokes every session.
	status, _ = e.do(t, http.MethodPost, "/public/refreshTokens", nil, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("refresh after password change: expected 401, got %d", status)
	}

	status, _ = e.do(t, http.MethodPost, "/public/login", loginRequest{
		Email:    "sam@example.com",
		Password: "strong-password",
	}, "")
	if status != http.StatusBadRequest {
		t.Fatalf("old password must stop working, got %d", status)
	}
	e.login(t, "sam@example.com", "brand-new-password")
}

func TestUpdateUsername(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "tina@example.com", "tina_before", "strong-password")
	e.register(t, "ursula@example.com", "ursula_taken", "strong-password")
	tina := e.login(t, "tina@example.com", "strong-password")

	status, _ := e.do(t, http.MethodPost, "/auth/updateUsername", updateUsernameRequest{Username: "short"}, tina.AccessToken)
	if status != http.StatusBadRequest {
		t.Fatalf("short username: expected 400, got %d", status)
	}

	status, body := e.do(t, http.MethodPost, "/auth/updateUsername", updateUsernameRequest{Username: "URSULA_taken"}, tina.AccessToken)
	if status != http.StatusBadRequest || messageOf(t, body) != "Username already exist" {
		t.Fatalf("taken username: got %d %s", status, body)
	}

	status, body = e.do(t, http.MethodPost, "/auth/updateUsername", updateUsernameRequest{Username: "tina_after"}, tina.AccessToken)
	if status != http.StatusOK || messageOf(t, body) != "Username successful changed" {
		t.Fatalf("update username: got %d %s", status, body)
	}

	u, err := e.users.GetByID(context.Background(), tina.UserID)
	if err != nil || u.Username != "tina_after" {
		t.Fatalf("rename not persisted: %+v err=%v", u, err)
	}
}

func TestChatAndMessageEndpoints(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "jack@example.com", "jack_messenger", "strong-password")
	e.register(t, "kate@example.com", "kate_messenger", "strong-password")
	jack := e.login(t, "jack@example.com", "strong-password")

	kate, err := e.users.GetByEmail(context.Background(), "kate@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	ch, err := e.chats.GetOrCreateChat(ctx, now, jack.UserID, kate.ID)
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}
	for i, text := range []string{"hello", "how are you", "see you"} {
		if _, err := e.chats.AppendMessage(ctx, now.Add(time.Duration(i)*time.Second), ch.ID, jack.UserID, text); err != nil {
			t.Fatalf("AppendMessage: %v", err)
		}
	}

	status, body := e.do(t, http.MethodGet, "/auth/chats", nil, jack.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("chats: expected 200, got %d body=%s", status, body)
	}
	var summaries []chat.ChatSummary
	if err := json.Unmarshal(body, &summaries); err != nil {
		t.Fatalf("decode summaries: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Peer.ID != kate.ID {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
	if summaries[0].LastMessage.Text != "see you" {
		t.Fatalf("summary must carry the latest message, got %q", summaries[0].LastMessage.Text)
	}

	status, body = e.do(t, http.MethodGet, "/auth/messages?recipientId="+kate.ID+"&page=1&limit=2", nil, jack.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("messages: expected 200, got %d body=%s", status, body)
	}
	var page chat.MessagePage
	if err := json.Unmarshal(body, &page); err != nil {
		t.Fatalf("decode message page: %v", err)
	}
	if len(page.Messages) != 2 || !page.HasMore {
		t.Fatalf("expected first page of 2 with more, got %+v", page)
	}
	if page.Messages[0].Text != "see you" {
		t.Fatalf("messages must be newest first, got %q", page.Messages[0].Text)
	}

	status, body = e.do(t, http.MethodGet, "/auth/messages?recipientId="+kate.ID+"&page=1&limit=2", nil, "")
	if status != http.StatusUnauthorized {
		t.Fatalf("messages without auth: expected 401, got %d body=%s", status, body)
	}

	status, _ = e.do(t, http.MethodGet, "/auth/messages?recipientId=no-such-user&page=1&limit=2", nil, jack.AccessToken)
	if status != http.StatusBadRequest {
		t.Fatalf("unknown recipient: expected 400, got %d", status)
	}
}

func TestMessagesForMissingChat(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "liam@example.com", "liam_no_chats", "strong-password")
	e.register(t, "mona@example.com", "mona_no_chats", "strong-password")
	liam := e.login(t, "liam@example.com", "strong-password")

	mona, err := e.users.GetByEmail(context.Background(), "mona@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}

	status, _ := e.do(t, http.MethodGet, "/auth/messages?recipientId="+mona.ID+"&page=1&limit=10", nil, liam.AccessToken)
	if status != http.StatusNotFound {
		t.Fatalf("missing chat: expected 404, got %d", status)
	}
}

func TestDeleteUserCascades(t *testing.T) {
	e := newAPIEnv(t)
	e.register(t, "nina@example.com", "nina_departing", "strong-password")
	e.register(t, "omar@example.com", "omar_remaining", "strong-password")
	nina := e.login(t, "nina@example.com", "strong-password")

	omar, err := e.users.GetByEmail(context.Background(), "omar@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}

	ctx := context.Background()
	now := time.Now().UTC()
	ch, err := e.chats.GetOrCreateChat(ctx, now, nina.UserID, omar.ID)
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}
	if _, err := e.chats.AppendMessage(ctx, now, ch.ID, nina.UserID, "goodbye"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := e.blocks.Block(ctx, nina.UserID, omar.ID); err != nil {
		t.Fatalf("Block: %v", err)
	}

	// Wrong password is rejected.
	status, _ := e.do(t, http.MethodDelete, "/auth/user", passwordRequest{Password: "not-the-password"}, nina.AccessToken)
	if status != http.StatusBadRequest {
		t.Fatalf("wrong password: expected 400, got %d", status)
	}

	status, body := e.do(t, http.MethodDelete, "/auth/user", passwordRequest{Password: "strong-password"}, nina.AccessToken)
	if status != http.StatusOK {
		t.Fatalf("delete user: expected 200, got %d body=%s", status, body)
	}

	if _, err := e.users.GetByID(ctx, nina.UserID); err == nil {
		t.Fatalf("user row must be gone")
	}
	if _, err := e.chats.GetChat(ctx, ch.ID); err == nil {
		t.Fatalf("chats must be cascaded")
	}
	blocked, err := e.blocks.IsBlockedEither(ctx, nina.UserID, omar.ID)
	if err != nil {
		t.Fatalf("IsBlockedEither: %v", err)
	}
	if blocked {
		t.Fatalf("block relationships must be cascaded")
	}

	status, _ = e.do(t, http.MethodPost, "/public/login", loginRequest{
		Email:    "nina@example.com",
		Password: "strong-password",
	}, "")
	if status != http.StatusBadRequest {
		t.Fatalf("login after deletion: expected 400, got %d", status)
	}
}
