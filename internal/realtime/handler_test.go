package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Kiplya/DialogiX/internal/chat"
	"github.com/Kiplya/DialogiX/internal/identity"
)

const handlerTestKeyHex = "6368616368612d6b65792d666f722d756e69742d74657374732d6f6e6c792121"

// userPeers adapts the identity store to the chat peer lookup.
type userPeers struct {
	users identity.Store
}

func (p userPeers) PeerByID(ctx context.Context, userID string) (chat.Peer, error) {
	u, err := p.users.GetByID(ctx, userID)
	if err != nil {
		return chat.Peer{}, err
	}
	return chat.Peer{ID: u.ID, Username: u.Username, IsOnline: u.IsOnline}, nil
}

type handlerEnv struct {
	h      *Handler
	reg    *Registry
	users  *identity.MemoryStore
	chats  *chat.MemoryStore
	blocks *chat.MemoryBlockStore

	alice identity.User
	bob   identity.User
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	log := discardLogger()
	users := identity.NewMemoryStore()
	peers := userPeers{users: users}

	crypter, err := chat.NewCrypter(handlerTestKeyHex)
	if err != nil {
		t.Fatalf("NewCrypter: %v", err)
	}
	chats := chat.NewMemoryStore(crypter, peers)
	blocks := chat.NewMemoryBlockStore()

	reg := NewRegistry(log)
	presence := NewPresence(log, reg, users, chats)
	h := NewHandler(log, reg, presence, chats, blocks, peers)

	ctx := context.Background()
	now := time.Now()
	alice, err := users.Create(ctx, now, identity.NewUserInput{Email: "alice@example.com", Username: "alice_a", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := users.Create(ctx, now, identity.NewUserInput{Email: "bob@example.com", Username: "bob_b", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	return &handlerEnv{h: h, reg: reg, users: users, chats: chats, blocks: blocks, alice: alice, bob: bob}
}

func (e *handlerEnv) client(userID string) *Client {
	c := NewClient(NewRandomHex(4), 32)
	c.UserID = userID
	return c
}

func (e *handlerEnv) dispatch(t *testing.T, c *Client, event string, payload any) {
	t.Helper()
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		data = b
	}
	e.h.HandleEvent(context.Background(), c, Envelope{Event: event, Data: data}, time.Now())
}

func drain(c *Client) []Envelope {
	var out []Envelope
	for {
		select {
		case env := <-c.Send:
			out = append(out, env)
		default:
			return out
		}
	}
}

func findEvent(frames []Envelope, event string) (Envelope, bool) {
	for _, f := range frames {
		if f.Event == event {
			return f, true
		}
	}
	return Envelope{}, false
}

func TestUnauthorizedEcho(t *testing.T) {
	e := newHandlerEnv(t)
	c := NewClient("anon", 32) // never authenticated

	e.dispatch(t, c, EventSendMessage, SendMessagePayload{RecipientID: e.bob.ID, Text: "hi"})

	frames := drain(c)
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if frames[0].Event != EventUnauthorized {
		t.Fatalf("got event %q, want unauthorized", frames[0].Event)
	}

	var p UnauthorizedPayload
	if err := json.Unmarshal(frames[0].Data, &p); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if p.Controller != EventSendMessage {
		t.Fatalf("controller %q, want %q", p.Controller, EventSendMessage)
	}
	var args SendMessagePayload
	if err := json.Unmarshal(p.Args, &args); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}
	if args.Text != "hi" || args.RecipientID != e.bob.ID {
		t.Fatalf("args not echoed verbatim: %+v", args)
	}

	// The chat store was never touched.
	if _, err := e.chats.GetChat(context.Background(), chat.PairChatID(c.UserID, e.bob.ID)); err == nil {
		t.Fatal("unauthenticated event reached the store")
	}
}

func TestJoinUserPresence(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()

	// Alice and bob share a chat so presence transitions reach bob.
	ch, err := e.chats.GetOrCreateChat(ctx, time.Now(), e.alice.ID, e.bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}
	if _, err := e.chats.AppendMessage(ctx, time.Now(), ch.ID, e.alice.ID, "hello"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	bobC := e.client(e.bob.ID)
	e.dispatch(t, bobC, EventJoinUser, nil)
	drain(bobC)

	aliceC := e.client(e.alice.ID)
	e.dispatch(t, aliceC, EventJoinUser, nil)

	frames := drain(bobC)
	env, ok := findEvent(frames, EventUserOnline)
	if !ok {
		t.Fatalf("bob did not receive user_online, frames: %v", frames)
	}
	var id string
	if err := json.Unmarshal(env.Data, &id); err != nil || id != e.alice.ID {
		t.Fatalf("user_online payload %q, want alice id", env.Data)
	}

	u, err := e.users.GetByID(ctx, e.alice.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !u.IsOnline {
		t.Fatal("isOnline flag not persisted")
	}
}

func TestSendMessageCreatesChatAndNotifies(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()

	bobC := e.client(e.bob.ID)
	e.dispatch(t, bobC, EventJoinUser, nil)
	drain(bobC)

	aliceC := e.client(e.alice.ID)
	e.dispatch(t, aliceC, EventSendMessage, SendMessagePayload{RecipientID: e.bob.ID, Text: "hi"})

	chatID := chat.PairChatID(e.alice.ID, e.bob.ID)
	page, err := e.chats.ListMessages(ctx, chatID, 1, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page.Messages) != 1 || page.HasMore {
		t.Fatalf("got %d messages hasMore=%v, want exactly one", len(page.Messages), page.HasMore)
	}
	if page.Messages[0].IsReaded {
		t.Fatal("message read without the recipient present")
	}

	frames := drain(bobC)
	env, ok := findEvent(frames, EventDialogsReceiveMessage)
	if !ok {
		t.Fatalf("bob did not receive a summary refresh, frames: %v", frames)
	}
	var summary chat.ChatSummary
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		t.Fatalf("unmarshal summary: %v", err)
	}
	if summary.ChatID != chatID || summary.Peer.ID != e.alice.ID {
		t.Fatalf("summary %+v, want chat %s with peer alice", summary, chatID)
	}
	if summary.LastMessage.Text != "hi" {
		t.Fatalf("summary last message %q", summary.LastMessage.Text)
	}
}

func TestReadHeuristic(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()
	chatID := chat.PairChatID(e.alice.ID, e.bob.ID)

	aliceC := e.client(e.alice.ID)
	bobC := e.client(e.bob.ID)
	for _, c := range []*Client{aliceC, bobC} {
		e.dispatch(t, c, EventJoinUser, nil)
	}
	e.dispatch(t, aliceC, EventJoinChat, RecipientPayload{RecipientID: e.bob.ID})
	e.dispatch(t, bobC, EventJoinChat, RecipientPayload{RecipientID: e.alice.ID})
	drain(aliceC)
	drain(bobC)

	// Both present: the message is read at creation time.
	e.dispatch(t, aliceC, EventSendMessage, SendMessagePayload{RecipientID: e.bob.ID, Text: "hi"})
	page, _ := e.chats.ListMessages(ctx, chatID, 1, 10)
	if !page.Messages[0].IsReaded {
		t.Fatal("message not read with both participants present")
	}

	env, ok := findEvent(drain(bobC), EventReceiveMessage)
	if !ok {
		t.Fatal("bob did not receive the message")
	}
	var msg chat.Message
	if err := json.Unmarshal(env.Data, &msg); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}
	if !msg.IsReaded {
		t.Fatal("broadcast message not flagged read")
	}

	// Bob leaves: the next message stays unread.
	e.dispatch(t, bobC, EventLeaveChat, RecipientPayload{RecipientID: e.alice.ID})
	e.dispatch(t, aliceC, EventSendMessage, SendMessagePayload{RecipientID: e.bob.ID, Text: "bye"})
	drain(aliceC)

	page, _ = e.chats.ListMessages(ctx, chatID, 1, 10)
	if page.Messages[0].IsReaded {
		t.Fatal("message read while bob was away")
	}
	byeID := page.Messages[0].ID

	// Bob rejoins: alice's unread messages become read and the changed
	// ids are broadcast to the chat room.
	e.dispatch(t, bobC, EventJoinChat, RecipientPayload{RecipientID: e.alice.ID})

	env, ok = findEvent(drain(aliceC), EventJoinChat)
	if !ok {
		t.Fatal("alice did not receive the read receipt")
	}
	var changed []string
	if err := json.Unmarshal(env.Data, &changed); err != nil {
		t.Fatalf("unmarshal ids: %v", err)
	}
	if len(changed) != 1 || changed[0] != byeID {
		t.Fatalf("changed ids %v, want [%s]", changed, byeID)
	}

	page, _ = e.chats.ListMessages(ctx, chatID, 1, 10)
	for _, m := range page.Messages {
		if !m.IsReaded {
			t.Fatalf("message %s still unread after rejoin", m.ID)
		}
	}
}

func TestEditResetsReadUnlessBothPresent(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()
	chatID := chat.PairChatID(e.alice.ID, e.bob.ID)

	aliceC := e.client(e.alice.ID)
	e.dispatch(t, aliceC, EventJoinChat, RecipientPayload{RecipientID: e.bob.ID})
	e.dispatch(t, aliceC, EventSendMessage, SendMessagePayload{RecipientID: e.bob.ID, Text: "tpyo"})

	page, _ := e.chats.ListMessages(ctx, chatID, 1, 10)
	msgID := page.Messages[0].ID
	if _, err := e.chats.MarkRead(ctx, chatID, e.alice.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	e.dispatch(t, aliceC, EventEditMessage, EditMessagePayload{RecipientID: e.bob.ID, MessageID: msgID, Text: "typo"})

	page, _ = e.chats.ListMessages(ctx, chatID, 1, 10)
	m := page.Messages[0]
	if !m.IsEdited {
		t.Fatal("edit did not set isEdited")
	}
	if m.IsReaded {
		t.Fatal("edit did not reset isReaded with the peer away")
	}
	if m.Text != "typo" {
		t.Fatalf("text %q", m.Text)
	}
}

func TestDeleteMessageBroadcasts(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()
	now := time.Now()
	chatID := chat.PairChatID(e.alice.ID, e.bob.ID)

	ch, _ := e.chats.GetOrCreateChat(ctx, now, e.alice.ID, e.bob.ID)
	first, _ := e.chats.AppendMessage(ctx, now, ch.ID, e.alice.ID, "first")
	second, _ := e.chats.AppendMessage(ctx, now.Add(time.Second), ch.ID, e.alice.ID, "second")

	aliceC := e.client(e.alice.ID)
	bobC := e.client(e.bob.ID)
	e.dispatch(t, aliceC, EventJoinUser, nil)
	e.dispatch(t, bobC, EventJoinUser, nil)
	e.dispatch(t, bobC, EventJoinChat, RecipientPayload{RecipientID: e.alice.ID})
	drain(aliceC)
	drain(bobC)

	// Mid-history delete: message removal only, no summary refresh.
	e.dispatch(t, aliceC, EventDeleteMessage, DeleteMessagePayload{RecipientID: e.bob.ID, MessageID: first.ID})
	bobFrames := drain(bobC)
	if _, ok := findEvent(bobFrames, EventDeleteMessage); !ok {
		t.Fatal("bob did not receive delete_message")
	}
	if _, ok := findEvent(bobFrames, EventDialogsDeleteMessage); ok {
		t.Fatal("mid-history delete refreshed summaries")
	}

	// Deleting the last remaining message cascades to the chat.
	e.dispatch(t, aliceC, EventDeleteMessage, DeleteMessagePayload{RecipientID: e.bob.ID, MessageID: second.ID})
	bobFrames = drain(bobC)
	env, ok := findEvent(bobFrames, EventDialogsDeleteChat)
	if !ok {
		t.Fatal("bob did not receive dialogs_delete_chat")
	}
	var gone string
	if err := json.Unmarshal(env.Data, &gone); err != nil || gone != chatID {
		t.Fatalf("dialogs_delete_chat payload %q, want %s", env.Data, chatID)
	}
	if _, err := e.chats.GetChat(ctx, chatID); err == nil {
		t.Fatal("chat survived deletion of its last message")
	}
}

func TestMessageOpsRequireChatMembership(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()
	now := time.Now()

	mallory, err := e.users.Create(ctx, now, identity.NewUserInput{Email: "mallory@example.com", Username: "mallory_m", PasswordHash: "x"})
	if err != nil {
		t.Fatalf("create mallory: %v", err)
	}

	// Alice and bob's chat, plus a separate mallory-bob chat so mallory
	// legitimately resolves a chat with bob.
	ab, _ := e.chats.GetOrCreateChat(ctx, now, e.alice.ID, e.bob.ID)
	target, _ := e.chats.AppendMessage(ctx, now, ab.ID, e.alice.ID, "between us")
	mb, _ := e.chats.GetOrCreateChat(ctx, now, mallory.ID, e.bob.ID)
	e.chats.AppendMessage(ctx, now, mb.ID, mallory.ID, "hi bob")

	bobC := e.client(e.bob.ID)
	e.dispatch(t, bobC, EventJoinUser, nil)
	e.dispatch(t, bobC, EventJoinChat, RecipientPayload{RecipientID: e.alice.ID})
	drain(bobC)

	malloryC := e.client(mallory.ID)

	// Deleting alice's message through mallory's own pair with bob
	// resolves to the wrong chat and touches nothing.
	e.dispatch(t, malloryC, EventDeleteMessage, DeleteMessagePayload{RecipientID: e.bob.ID, MessageID: target.ID})
	if frames := drain(bobC); len(frames) != 0 {
		t.Fatalf("bob received frames from a rejected delete: %v", frames)
	}
	if frames := drain(malloryC); len(frames) != 0 {
		t.Fatalf("mallory received frames from a rejected delete: %v", frames)
	}

	// Same for an edit, even though mallory and bob do share a chat.
	e.dispatch(t, malloryC, EventEditMessage, EditMessagePayload{RecipientID: e.bob.ID, MessageID: target.ID, Text: "tampered"})
	if frames := drain(bobC); len(frames) != 0 {
		t.Fatalf("bob received frames from a rejected edit: %v", frames)
	}

	page, err := e.chats.ListMessages(ctx, ab.ID, 1, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(page.Messages) != 1 || page.Messages[0].Text != "between us" || page.Messages[0].IsEdited {
		t.Fatalf("message altered by a non-participant: %+v", page.Messages)
	}
	if _, err := e.chats.GetChat(ctx, ab.ID); err != nil {
		t.Fatalf("chat gone after rejected operations: %v", err)
	}
}

func TestBlockEnforcedByHandlerNotStore(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()

	aliceC := e.client(e.alice.ID)
	e.dispatch(t, aliceC, EventBlockUser, RecipientPayload{RecipientID: e.bob.ID})

	blocked, err := e.blocks.IsBlockedEither(ctx, e.bob.ID, e.alice.ID)
	if err != nil || !blocked {
		t.Fatalf("block edge not recorded: %v %v", blocked, err)
	}

	// The handler drops the send in either direction.
	bobC := e.client(e.bob.ID)
	e.dispatch(t, bobC, EventSendMessage, SendMessagePayload{RecipientID: e.alice.ID, Text: "hi"})
	chatID := chat.PairChatID(e.alice.ID, e.bob.ID)
	if _, err := e.chats.GetChat(ctx, chatID); err == nil {
		t.Fatal("blocked send reached the store through the handler")
	}

	// The store itself has no opinion on blocking.
	ch, err := e.chats.GetOrCreateChat(ctx, time.Now(), e.alice.ID, e.bob.ID)
	if err != nil {
		t.Fatalf("GetOrCreateChat: %v", err)
	}
	if _, err := e.chats.AppendMessage(ctx, time.Now(), ch.ID, e.bob.ID, "still insertable"); err != nil {
		t.Fatalf("store rejected a write for a blocked pair: %v", err)
	}

	// Unblocking lifts the handler's enforcement.
	e.dispatch(t, aliceC, EventUnblockUser, RecipientPayload{RecipientID: e.bob.ID})
	e.dispatch(t, bobC, EventSendMessage, SendMessagePayload{RecipientID: e.alice.ID, Text: "hello again"})
	page, err := e.chats.ListMessages(ctx, chatID, 1, 10)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if page.Messages[0].Text != "hello again" {
		t.Fatalf("send after unblock did not land: %q", page.Messages[0].Text)
	}
}

func TestDisconnectMarksOfflineOnLastConnection(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()
	now := time.Now()

	ch, _ := e.chats.GetOrCreateChat(ctx, now, e.alice.ID, e.bob.ID)
	e.chats.AppendMessage(ctx, now, ch.ID, e.alice.ID, "hello")

	bobC := e.client(e.bob.ID)
	e.dispatch(t, bobC, EventJoinUser, nil)
	drain(bobC)

	first := e.client(e.alice.ID)
	second := e.client(e.alice.ID)
	e.dispatch(t, first, EventJoinUser, nil)
	e.dispatch(t, second, EventJoinUser, nil)
	drain(bobC)

	e.h.HandleDisconnect(ctx, first)
	if _, ok := findEvent(drain(bobC), EventUserOffline); ok {
		t.Fatal("user_offline broadcast while a connection remained")
	}
	u, _ := e.users.GetByID(ctx, e.alice.ID)
	if !u.IsOnline {
		t.Fatal("user flagged offline while a connection remained")
	}

	e.h.HandleDisconnect(ctx, second)
	if _, ok := findEvent(drain(bobC), EventUserOffline); !ok {
		t.Fatal("user_offline not broadcast on last disconnect")
	}
	u, _ = e.users.GetByID(ctx, e.alice.ID)
	if u.IsOnline {
		t.Fatal("user still flagged online after last disconnect")
	}
}

func TestDeleteChatBroadcasts(t *testing.T) {
	e := newHandlerEnv(t)
	ctx := context.Background()
	now := time.Now()
	chatID := chat.PairChatID(e.alice.ID, e.bob.ID)

	ch, _ := e.chats.GetOrCreateChat(ctx, now, e.alice.ID, e.bob.ID)
	e.chats.AppendMessage(ctx, now, ch.ID, e.alice.ID, "going away")

	bobC := e.client(e.bob.ID)
	e.dispatch(t, bobC, EventJoinUser, nil)
	e.dispatch(t, bobC, EventJoinChat, RecipientPayload{RecipientID: e.alice.ID})
	drain(bobC)

	aliceC := e.client(e.alice.ID)
	e.dispatch(t, aliceC, EventDeleteChat, RecipientPayload{RecipientID: e.bob.ID})

	frames := drain(bobC)
	if _, ok := findEvent(frames, EventDeleteChat); !ok {
		t.Fatal("chat room did not receive delete_chat")
	}
	if _, ok := findEvent(frames, EventDialogsDeleteChat); !ok {
		t.Fatal("private room did not receive dialogs_delete_chat")
	}
	if _, err := e.chats.GetChat(ctx, chatID); err == nil {
		t.Fatal("chat still exists")
	}
}
