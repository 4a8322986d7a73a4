// Package history persists chat interactions and learner profiles in Postgres.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/physical-ai/tutor-api/internal/domain"
)

// Interaction is one question/answer exchange as stored.
type Interaction struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"user_id"`
	SessionID        string          `json:"session_id"`
	Chapter          int             `json:"chapter,omitempty"`
	SelectedText     string          `json:"selected_text,omitempty"`
	UserMessage      string          `json:"user_message"`
	AssistantMessage string          `json:"assistant_message"`
	Sources          []domain.Source `json:"sources"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Store provides chat history and profile persistence over a pgx pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewStore opens a connection pool and verifies connectivity.
func NewStore(ctx context.Context, url string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables used by the store. Idempotent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS chat_history (
	id UUID PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	chapter INT,
	selected_text TEXT,
	user_message TEXT NOT NULL,
	assistant_message TEXT NOT NULL,
	sources JSONB NOT NULL DEFAULT '[]',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_chat_history_session ON chat_history (user_id, session_id, created_at);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id TEXT PRIMARY KEY,
	background TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// SaveInteraction stores one exchange. A zero ID is replaced with a new UUID.
func (s *Store) SaveInteraction(ctx context.Context, in *Interaction) error {
	if in.ID == uuid.Nil {
		in.ID = uuid.New()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	sourcesJSON, err := json.Marshal(in.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	const q = `
INSERT INTO chat_history (id, user_id, session_id, chapter, selected_text, user_message, assistant_message, sources, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, q,
		in.ID, in.UserID, in.SessionID, in.Chapter, in.SelectedText,
		in.UserMessage, in.AssistantMessage, sourcesJSON, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save interaction: %w", err)
	}
	return nil
}

// ListBySession returns the exchanges of one session, oldest first.
func (s *Store) ListBySession(ctx context.Context, userID, sessionID string, limit int) ([]Interaction, error) {
	const q = `
SELECT id, user_id, session_id, COALESCE(chapter, 0), COALESCE(selected_text, ''), user_message, assistant_message, sources, created_at
FROM chat_history
WHERE user_id = $1 AND session_id = $2
ORDER BY created_at ASC
LIMIT $3`

	rows, err := s.pool.Query(ctx, q, userID, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var items []Interaction
	for rows.Next() {
		var (
			in          Interaction
			sourcesJSON []byte
		)
		err := rows.Scan(&in.ID, &in.UserID, &in.SessionID, &in.Chapter, &in.SelectedText,
			&in.UserMessage, &in.AssistantMessage, &sourcesJSON, &in.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		if err := json.Unmarshal(sourcesJSON, &in.Sources); err != nil {
			s.logger.Warn("Failed to unmarshal stored sources", zap.String("id", in.ID.String()), zap.Error(err))
			in.Sources = nil
		}
		items = append(items, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	return items, nil
}

// GetBackground returns the learner's declared background.
// Returns domain.ErrNoProfile when the user has no stored profile.
func (s *Store) GetBackground(ctx context.Context, userID string) (domain.Background, error) {
	const q = `SELECT background FROM user_profiles WHERE user_id = $1`

	var raw string
	err := s.pool.QueryRow(ctx, q, userID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNoProfile
		}
		return "", fmt.Errorf("failed to get profile: %w", err)
	}

	return domain.ParseBackground(raw), nil
}

// SetBackground upserts the learner's declared background.
func (s *Store) SetBackground(ctx context.Context, userID string, bg domain.Background) error {
	const q = `
INSERT INTO user_profiles (user_id, background, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE SET background = EXCLUDED.background, updated_at = now()`

	if _, err := s.pool.Exec(ctx, q, userID, string(bg)); err != nil {
		return fmt.Errorf("failed to set profile: %w", err)
	}
	return nil
}
