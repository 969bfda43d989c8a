package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xhad/docchat/internal/models"
)

type ConversationStoreConfig struct {
	ConnString string
	TableName  string
}

// ConversationStore persists the append-only transcript for each
// (owner, document) conversation. Timestamps are assigned by the server
// on insert; reads come back in creation order.
type ConversationStore struct {
	config ConversationStoreConfig
	pool   *pgxpool.Pool
}

func NewConversationStore(config ConversationStoreConfig) (*ConversationStore, error) {
	if config.TableName == "" {
		config.TableName = "chat_messages"
	}

	pool, err := pgxpool.New(context.Background(), config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	cs := &ConversationStore{
		config: config,
		pool:   pool,
	}

	if err := cs.initialize(); err != nil {
		pool.Close()
		return nil, err
	}

	return cs, nil
}

func (cs *ConversationStore) initialize() error {
	ctx := context.Background()

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID PRIMARY KEY,
			owner_id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('human', 'assistant')),
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, cs.config.TableName)

	_, err := cs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %v", err)
	}

	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s_conversation_idx
		ON %s (owner_id, document_id, created_at)`,
		cs.config.TableName, cs.config.TableName)

	_, err = cs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %v", err)
	}

	return nil
}

func (cs *ConversationStore) AppendMessage(ctx context.Context, msg models.ChatMessage) (models.ChatMessage, error) {
	msg.ID = uuid.NewString()

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, owner_id, document_id, role, content)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		cs.config.TableName)

	err := cs.pool.QueryRow(ctx, stmt,
		msg.ID, msg.OwnerID, msg.DocumentID, string(msg.Role), msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("failed to append message: %w", err)
	}

	return msg, nil
}

func (cs *ConversationStore) Messages(ctx context.Context, ownerID, documentID string) ([]models.ChatMessage, error) {
	query := fmt.Sprintf(`
		SELECT id, owner_id, document_id, role, content, created_at
		FROM %s
		WHERE owner_id = $1 AND document_id = $2
		ORDER BY created_at ASC, id ASC`,
		cs.config.TableName)

	rows, err := cs.pool.Query(ctx, query, ownerID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		var msg models.ChatMessage
		var role string
		if err := rows.Scan(&msg.ID, &msg.OwnerID, &msg.DocumentID, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = models.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}

	return messages, nil
}

func (cs *ConversationStore) CountHumanMessages(ctx context.Context, ownerID, documentID string) (int, error) {
	query := fmt.Sprintf(`
		SELECT count(*)
		FROM %s
		WHERE owner_id = $1 AND document_id = $2 AND role = 'human'`,
		cs.config.TableName)

	var count int
	if err := cs.pool.QueryRow(ctx, query, ownerID, documentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count human messages: %w", err)
	}

	return count, nil
}

func (cs *ConversationStore) Close() {
	if cs.pool != nil {
		cs.pool.Close()
	}
}
