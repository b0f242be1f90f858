package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ltavares/feira/internal/api"
)

// ReplaceConversations swaps the cached conversation list for the given one,
// preserving server order through the position column.
func (db *DB) ReplaceConversations(convs []api.Conversation) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM conversations`); err != nil {
		return fmt.Errorf("clear conversations: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO conversations
			(id, position, participants, ad_id, ad_title, last_message_preview, unread_count, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range convs {
		participants, err := json.Marshal(c.Participants)
		if err != nil {
			return fmt.Errorf("encode participants: %w", err)
		}
		_, err = stmt.Exec(c.ID, i, string(participants), c.AdID, c.AdTitle,
			c.LastMessagePreview, c.UnreadCount, c.UpdatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert conversation %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// ListConversations returns the cached conversation list in server order.
func (db *DB) ListConversations() ([]api.Conversation, error) {
	rows, err := db.Query(`
		SELECT id, participants, ad_id, ad_title, last_message_preview, unread_count, updated_at
		FROM conversations
		ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var convs []api.Conversation
	for rows.Next() {
		var c api.Conversation
		var participants string
		var updatedAt int64
		err := rows.Scan(&c.ID, &participants, &c.AdID, &c.AdTitle,
			&c.LastMessagePreview, &c.UnreadCount, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if err := json.Unmarshal([]byte(participants), &c.Participants); err != nil {
			return nil, fmt.Errorf("decode participants: %w", err)
		}
		c.UpdatedAt = time.UnixMilli(updatedAt)
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// DeleteConversation drops one conversation and its cached messages.
func (db *DB) DeleteConversation(id string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return tx.Commit()
}

// ReplaceMessages swaps the cached message history of one conversation.
// Only server-confirmed messages belong here.
func (db *DB) ReplaceMessages(conversationID string, msgs []api.Message) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("clear messages: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO messages
			(conversation_id, id, position, sender_id, sender_name, body, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range msgs {
		_, err := stmt.Exec(conversationID, m.ID, i, m.SenderID, m.SenderName,
			m.Text, m.CreatedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// ListMessages returns the cached history of one conversation in server order.
func (db *DB) ListMessages(conversationID string) ([]api.Message, error) {
	rows, err := db.Query(`
		SELECT id, sender_id, sender_name, body, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY position
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []api.Message
	for rows.Next() {
		var m api.Message
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.SenderID, &m.SenderName, &m.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.ConversationID = conversationID
		m.CreatedAt = time.UnixMilli(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetState stores a sync-state value under key.
func (db *DB) SetState(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO sync_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// GetState returns the stored value for key, or "" when absent.
func (db *DB) GetState(key string) (string, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM sync_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}
