// Package main provides a CI-friendly WebSocket smoke test for the
// DialogiX realtime surface.
//
// It validates:
//   - registration + login over HTTP
//   - WS auth via the first-frame auth event (plus refresh cookie)
//   - send -> dialog summary fanout to the peer
//   - read receipts on join_chat
//   - live-read marking while both parties are in the chat room
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const maxReadBytes = 1 << 16 // matches the server frame limit

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type smokeUser struct {
	name        string
	userID      string
	accessToken string
	cookie      string

	conn  *websocket.Conn
	inbox chan envelope
	errCh chan error
}

func main() {
	var (
		baseURL = flag.String("base", "http://127.0.0.1:8080", "Server base URL")
		origin  = flag.String("origin", "http://localhost", "Origin header for the WS handshake")
		text    = flag.String("text", "hello dialogix", "Message text to send")
		timeout = flag.Duration("timeout", 7*time.Second, "Per-step timeout")
		verbose = flag.Bool("v", false, "Verbose output")
	)
	flag.Parse()

	if _, err := url.Parse(*baseURL); err != nil {
		fatalf("invalid -base: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	suffix := fmt.Sprintf("%06d", rand.Intn(1000000))
	alice := provisionUser(ctx, *baseURL, "smoke_alice_"+suffix)
	bob := provisionUser(ctx, *baseURL, "smoke_bob_"+suffix)
	logf(*verbose, "provisioned users %s and %s", alice.userID, bob.userID)

	alice.dial(ctx, *baseURL, *origin)
	defer alice.close()
	bob.dial(ctx, *baseURL, *origin)
	defer bob.close()

	// Both clients enter their private rooms.
	bob.send(ctx, envelope{Event: "join_user"})
	alice.send(ctx, envelope{Event: "join_user"})

	// Alice opens the chat and sends a message. Bob is not in the chat
	// room yet, so the message arrives unread via his dialog list.
	alice.send(ctx, mustEnvelope("join_chat", map[string]string{"recipientId": bob.userID}))
	alice.send(ctx, mustEnvelope("send_message", map[string]string{
		"recipientId": bob.userID,
		"text":        *text,
	}))

	summary := bob.await(*timeout, "dialogs_receive_message")
	var dialog struct {
		LastMessage struct {
			ID       string `json:"id"`
			Text     string `json:"text"`
			IsReaded bool   `json:"isReaded"`
		} `json:"lastMessage"`
	}
	mustUnmarshal(summary.Data, &dialog)
	if dialog.LastMessage.Text != *text {
		fatalf("dialog summary text mismatch: got %q want %q", dialog.LastMessage.Text, *text)
	}
	if dialog.LastMessage.IsReaded {
		fatalf("message must be unread while the peer is outside the chat room")
	}
	logf(*verbose, "bob received dialog summary for message %s", dialog.LastMessage.ID)

	// Bob joins the chat: Alice gets the read receipt for the message
	// she sent.
	bob.send(ctx, mustEnvelope("join_chat", map[string]string{"recipientId": alice.userID}))

	receipt := alice.await(*timeout, "join_chat")
	var readIDs []string
	mustUnmarshal(receipt.Data, &readIDs)
	if len(readIDs) != 1 || readIDs[0] != dialog.LastMessage.ID {
		fatalf("read receipt mismatch: got %v want [%s]", readIDs, dialog.LastMessage.ID)
	}
	logf(*verbose, "alice received read receipt for %s", dialog.LastMessage.ID)

	// With both present, a second message fans out already read.
	alice.send(ctx, mustEnvelope("send_message", map[string]string{
		"recipientId": bob.userID,
		"text":        "second",
	}))
	direct := bob.await(*timeout, "receive_message")
	var msg struct {
		Text     string `json:"text"`
		IsReaded bool   `json:"isReaded"`
	}
	mustUnmarshal(direct.Data, &msg)
	if msg.Text != "second" || !msg.IsReaded {
		fatalf("expected read live message, got %+v", msg)
	}

	fmt.Println("ws-smoke: OK")
}

func provisionUser(ctx context.Context, base, username string) *smokeUser {
	jar, err := cookiejar.New(nil)
	if err != nil {
		fatalf("cookiejar: %v", err)
	}
	client := &http.Client{Jar: jar}

	email := username + "@smoke.invalid"
	const password = "smoke-test-password"

	postJSON(ctx, client, base+"/public/registration", map[string]string{
		"email":    email,
		"username": username,
		"password": password,
	}, http.StatusOK)

	body := postJSON(ctx, client, base+"/public/login", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)

	var login struct {
		AccessToken string `json:"accessToken"`
		UserID      string `json:"userId"`
	}
	mustUnmarshal(body, &login)
	if login.AccessToken == "" || login.UserID == "" {
		fatalf("login response incomplete: %s", body)
	}

	u, err := url.Parse(base)
	if err != nil {
		fatalf("parse base url: %v", err)
	}
	var cookie string
	for _, c := range jar.Cookies(u) {
		if c.Name == "refreshToken" {
			cookie = c.Name + "=" + c.Value
		}
	}
	if cookie == "" {
		fatalf("login did not set a refresh cookie")
	}

	return &smokeUser{
		name:        username,
		userID:      login.UserID,
		accessToken: login.AccessToken,
		cookie:      cookie,
		inbox:       make(chan envelope, 64),
		errCh:       make(chan error, 1),
	}
}

func (s *smokeUser) dial(ctx context.Context, base, origin string) {
	wsURL := strings.Replace(base, "http", "ws", 1) + "/ws"

	header := http.Header{}
	header.Set("Origin", origin)
	header.Set("Cookie", s.cookie)
	header.Set("User-Agent", "dialogix-ws-smoke/1.0")

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		fatalf("%s: dial: %v", s.name, err)
	}
	conn.SetReadLimit(maxReadBytes)
	s.conn = conn

	// First frame: authenticate. The token travels in the frame body, not
	// the URL.
	s.send(ctx, mustEnvelope("auth", map[string]string{"accessToken": s.accessToken}))

	go func() {
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				s.errCh <- err
				return
			}
			var env envelope
			if err := json.Unmarshal(data, &env); err != nil {
				s.errCh <- fmt.Errorf("bad frame: %w", err)
				return
			}
			s.inbox <- env
		}
	}()
}

func (s *smokeUser) send(ctx context.Context, env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		fatalf("%s: marshal: %v", s.name, err)
	}
	if err := s.conn.Write(ctx, websocket.MessageText, data); err != nil {
		fatalf("%s: write: %v", s.name, err)
	}
}

// await drains the inbox until the named event shows up. Unrelated
// events (presence, summary refreshes) are skipped.
func (s *smokeUser) await(timeout time.Duration, event string) envelope {
	deadline := time.After(timeout)
	for {
		select {
		case env := <-s.inbox:
			if env.Event == "unauthorized" {
				fatalf("%s: server rejected call: %s", s.name, env.Data)
			}
			if env.Event == event {
				return env
			}
		case err := <-s.errCh:
			fatalf("%s: read loop: %v", s.name, err)
		case <-deadline:
			fatalf("%s: timed out waiting for %q", s.name, event)
		}
	}
}

func (s *smokeUser) close() {
	if s.conn != nil {
		_ = s.conn.Close(websocket.StatusNormalClosure, "done")
	}
}

func postJSON(ctx context.Context, client *http.Client, url string, payload any, wantStatus int) []byte {
	raw, err := json.Marshal(payload)
	if err != nil {
		fatalf("marshal: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "dialogix-ws-smoke/1.0")

	resp, err := client.Do(req)
	if err != nil {
		fatalf("POST %s: %v", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fatalf("read body: %v", err)
	}
	if resp.StatusCode != wantStatus {
		fatalf("POST %s: status %d body=%s", url, resp.StatusCode, body)
	}
	return body
}

func mustEnvelope(event string, payload any) envelope {
	data, err := json.Marshal(payload)
	if err != nil {
		fatalf("marshal %s payload: %v", event, err)
	}
	return envelope{Event: event, Data: data}
}

func mustUnmarshal(data []byte, dst any) {
	if err := json.Unmarshal(data, dst); err != nil {
		fatalf("unmarshal %s: %v", data, err)
	}
}

func logf(verbose bool, format string, args ...any) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ws-smoke: "+format+"\n", args...)
	os.Exit(1)
}
