package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	// ErrNotFound indicates no conversation exists with the given id.
	ErrNotFound = errors.New("conversation not found")
	// ErrConflict indicates the row changed since it was loaded. The
	// caller should re-read and retry or surface the conflict.
	ErrConflict = errors.New("conversation version conflict")
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store is the persistence contract the dialogue manager depends on.
type Store interface {
	Get(ctx context.Context, id string) (*Conversation, error)
	CreateIfMissing(ctx context.Context, id, userID string) (*Conversation, error)
	Update(ctx context.Context, id string, expectedVersion int32, state State, patch CollectedData, msgs ...Message) (*Conversation, error)
}

// PGStore keeps conversations in PostgreSQL with an optimistic version
// guard on update.
type PGStore struct {
	db DB
}

// NewPGStore creates a store over the conversations table.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const selectConversation = `SELECT id, user_id, state, collected_data, messages, version, created_at, updated_at
FROM conversations WHERE id = $1`

// Get loads one conversation. Returns ErrNotFound when the id is unknown.
func (s *PGStore) Get(ctx context.Context, id string) (*Conversation, error) {
	return s.scanOne(s.db.QueryRow(ctx, selectConversation, id))
}

// CreateIfMissing inserts a fresh INITIAL conversation unless the id
// already exists, then returns the current row either way. Safe to call on
// every turn.
func (s *PGStore) CreateIfMissing(ctx context.Context, id, userID string) (*Conversation, error) {
	var uid any
	if userID != "" {
		uid = userID
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO conversations (id, user_id) VALUES ($1, $2)
		 ON CONFLICT (id) DO NOTHING`,
		id, uid,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Update advances a conversation guarded by its version: the write only
// lands when the stored version still equals expectedVersion. The patch is
// key-wise merged into the stored data and msgs are appended with the
// current time.
func (s *PGStore) Update(ctx context.Context, id string, expectedVersion int32, state State, patch CollectedData, msgs ...Message) (*Conversation, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, ErrConflict
	}

	data := current.Data
	data.Merge(patch)

	now := time.Now().UTC()
	messages := current.Messages
	for _, m := range msgs {
		if m.Timestamp.IsZero() {
			m.Timestamp = now
		}
		messages = append(messages, m)
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal collected data: %w", err)
	}
	messagesJSON, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal messages: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE conversations
		 SET state = $3, collected_data = $4, messages = $5,
		     version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2`,
		id, expectedVersion, string(state), dataJSON, messagesJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update conversation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// The row moved between the read above and this write.
		return nil, ErrConflict
	}

	return s.Get(ctx, id)
}

func (s *PGStore) scanOne(row pgx.Row) (*Conversation, error) {
	var (
		c            Conversation
		userID       pgtype.Text
		state        string
		dataJSON     []byte
		messagesJSON []byte
	)
	err := row.Scan(&c.ID, &userID, &state, &dataJSON, &messagesJSON, &c.Version, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan conversation: %w", err)
	}

	c.UserID = userID.String
	c.State = State(state)
	if err := json.Unmarshal(dataJSON, &c.Data); err != nil {
		return nil, fmt.Errorf("failed to decode collected data: %w", err)
	}
	if err := json.Unmarshal(messagesJSON, &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return &c, nil
}
