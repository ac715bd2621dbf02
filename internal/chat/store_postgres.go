package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Kiplya/DialogiX/internal/identity"
)

// PostgresStore persists chats and messages in Postgres. Message text is
// encrypted before it reaches the database and decrypted on the way out.
type PostgresStore struct {
	pool    *pgxpool.Pool
	crypter *Crypter
}

// NewPostgresStore constructs a chat store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool, crypter *Crypter) *PostgresStore {
	return &PostgresStore{pool: pool, crypter: crypter}
}

func (s *PostgresStore) GetOrCreateChat(ctx context.Context, now time.Time, userA, userB string) (Chat, error) {
	id := PairChatID(userA, userB)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Chat{}, fmt.Errorf("begin chat tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO chats (id, created_at)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET id = chats.id
		RETURNING created_at
	`, id, now).Scan(&createdAt)
	if err != nil {
		return Chat{}, fmt.Errorf("upsert chat: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chat_participants (chat_id, user_id)
		VALUES ($1, $2), ($1, $3)
		ON CONFLICT (chat_id, user_id) DO NOTHING
	`, id, userA, userB)
	if err != nil {
		return Chat{}, fmt.Errorf("insert participants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Chat{}, fmt.Errorf("commit chat tx: %w", err)
	}
	return Chat{ID: id, CreatedAt: createdAt}, nil
}

func (s *PostgresStore) GetChat(ctx context.Context, chatID string) (Chat, error) {
	var c Chat
	err := s.pool.QueryRow(ctx, `
		SELECT id, created_at FROM chats WHERE id = $1
	`, chatID).Scan(&c.ID, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chat{}, ErrChatNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("select chat: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) AppendMessage(ctx context.Context, now time.Time, chatID, senderID, text string) (Message, error) {
	sealed, err := s.crypter.Encrypt(text)
	if err != nil {
		return Message{}, err
	}
	id, err := identity.NewID(now)
	if err != nil {
		return Message{}, err
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, chat_id, user_id, text, is_edited, is_readed, created_at)
		SELECT $1, $2, $3, $4, FALSE, FALSE, $5
		WHERE EXISTS (SELECT 1 FROM chats WHERE id = $2)
	`, id, chatID, senderID, sealed, now)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Message{}, ErrChatNotFound
	}

	return Message{
		ID:        id,
		ChatID:    chatID,
		UserID:    senderID,
		Text:      text,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) EditMessage(ctx context.Context, chatID, messageID, text string) (Message, error) {
	sealed, err := s.crypter.Encrypt(text)
	if err != nil {
		return Message{}, err
	}

	var m Message
	err = s.pool.QueryRow(ctx, `
		UPDATE messages
		SET text = $2, is_edited = TRUE, is_readed = FALSE
		WHERE id = $1 AND chat_id = $3
		RETURNING id, chat_id, user_id, is_edited, is_readed, created_at
	`, messageID, sealed, chatID).Scan(&m.ID, &m.ChatID, &m.UserID, &m.IsEdited, &m.IsReaded, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrMessageNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("update message: %w", err)
	}

	m.Text = text
	return m, nil
}

func (s *PostgresStore) DeleteMessage(ctx context.Context, chatID, messageID string) (DeleteMessageResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return DeleteMessageResult{}, fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var res DeleteMessageResult
	err = tx.QueryRow(ctx, `
		SELECT chat_id FROM messages WHERE id = $1 AND chat_id = $2
	`, messageID, chatID).Scan(&res.ChatID)
	if errors.Is(err, pgx.ErrNoRows) {
		return DeleteMessageResult{}, ErrMessageNotFound
	}
	if err != nil {
		return DeleteMessageResult{}, fmt.Errorf("select message chat: %w", err)
	}

	var latestID string
	err = tx.QueryRow(ctx, `
		SELECT id FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, res.ChatID).Scan(&latestID)
	if err != nil {
		return DeleteMessageResult{}, fmt.Errorf("select latest message: %w", err)
	}
	res.WasLatest = latestID == messageID

	if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID); err != nil {
		return DeleteMessageResult{}, fmt.Errorf("delete message: %w", err)
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE chat_id = $1
	`, res.ChatID).Scan(&remaining)
	if err != nil {
		return DeleteMessageResult{}, fmt.Errorf("count remaining: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM chats WHERE id = $1`, res.ChatID); err != nil {
			return DeleteMessageResult{}, fmt.Errorf("delete empty chat: %w", err)
		}
		res.ChatDeleted = true
	}

	if err := tx.Commit(ctx); err != nil {
		return DeleteMessageResult{}, fmt.Errorf("commit delete tx: %w", err)
	}
	return res, nil
}

func (s *PostgresStore) DeleteChat(ctx context.Context, chatID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM chats WHERE id = $1`, chatID)
	if err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (s *PostgresStore) MarkRead(ctx context.Context, chatID, forSenderID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE messages
		SET is_readed = TRUE
		WHERE chat_id = $1 AND user_id = $2 AND is_readed = FALSE
		RETURNING id
	`, chatID, forSenderID)
	if err != nil {
		return nil, fmt.Errorf("mark read: %w", err)
	}
	defer rows.Close()

	var changed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan read id: %w", err)
		}
		changed = append(changed, id)
	}
	return changed, rows.Err()
}

func (s *PostgresStore) ListMessages(ctx context.Context, chatID string, page, pageSize int) (MessagePage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM chats WHERE id = $1)
	`, chatID).Scan(&exists)
	if err != nil {
		return MessagePage{}, fmt.Errorf("check chat: %w", err)
	}
	if !exists {
		return MessagePage{}, ErrChatNotFound
	}

	var total int
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE chat_id = $1
	`, chatID).Scan(&total)
	if err != nil {
		return MessagePage{}, fmt.Errorf("count messages: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, chat_id, user_id, text, is_edited, is_readed, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`, chatID, pageSize, (page-1)*pageSize)
	if err != nil {
		return MessagePage{}, fmt.Errorf("select messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0, pageSize)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.UserID, &m.Text, &m.IsEdited, &m.IsReaded, &m.CreatedAt); err != nil {
			return MessagePage{}, fmt.Errorf("scan message: %w", err)
		}
		plain, err := s.crypter.Decrypt(m.Text)
		if err != nil {
			return MessagePage{}, err
		}
		m.Text = plain
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return MessagePage{}, err
	}

	return MessagePage{Messages: msgs, HasMore: page*pageSize < total}, nil
}

func (s *PostgresStore) ListChatsForUser(ctx context.Context, userID string) ([]ChatSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id,
		       u.id, u.username, u.is_online,
		       m.id, m.user_id, m.text, m.is_edited, m.is_readed, m.created_at
		FROM chat_participants cp
		JOIN chats c ON c.id = cp.chat_id
		JOIN chat_participants cp2 ON cp2.chat_id = c.id AND cp2.user_id <> cp.user_id
		JOIN users u ON u.id = cp2.user_id
		JOIN LATERAL (
			SELECT id, user_id, text, is_edited, is_readed, created_at
			FROM messages
			WHERE chat_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON TRUE
		WHERE cp.user_id = $1
		ORDER BY m.created_at DESC, m.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select chat summaries: %w", err)
	}
	defer rows.Close()

	var out []ChatSummary
	for rows.Next() {
		var s2 ChatSummary
		if err := rows.Scan(
			&s2.ChatID,
			&s2.Peer.ID, &s2.Peer.Username, &s2.Peer.IsOnline,
			&s2.LastMessage.ID, &s2.LastMessage.UserID, &s2.LastMessage.Text,
			&s2.LastMessage.IsEdited, &s2.LastMessage.IsReaded, &s2.LastMessage.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan chat summary: %w", err)
		}
		s2.LastMessage.ChatID = s2.ChatID
		plain, err := s.crypter.Decrypt(s2.LastMessage.Text)
		if err != nil {
			return nil, err
		}
		s2.LastMessage.Text = plain
		out = append(out, s2)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PeerIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT cp2.user_id
		FROM chat_participants cp
		JOIN chat_participants cp2 ON cp2.chat_id = cp.chat_id AND cp2.user_id <> cp.user_id
		WHERE cp.user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select peer ids: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan peer id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM chats
		WHERE id IN (SELECT chat_id FROM chat_participants WHERE user_id = $1)
	`, userID)
	if err != nil {
		return fmt.Errorf("delete chats for user: %w", err)
	}
	return nil
}
