package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// TranscriptRepo persists completed session transcripts. The transcript
// body is stored as a single JSONB document; the columns alongside it
// exist for querying, never as an alternate source of truth.
type TranscriptRepo struct {
	db *PostgresDB
}

func NewTranscriptRepo(db *PostgresDB) *TranscriptRepo {
	return &TranscriptRepo{db: db}
}

func (r *TranscriptRepo) Create(ctx context.Context, t *domain.Transcript) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO transcripts (session_id, schema_version, outcome, terminal_state, body, started_at, ended_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_id) DO NOTHING
	`, t.SessionID, t.SchemaVersion, string(t.Outcome), string(t.TerminalState), body, t.StartedAt, t.EndedAt, time.Now())

	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

func (r *TranscriptRepo) CreateBatch(ctx context.Context, transcripts []*domain.Transcript) error {
	batch := &pgx.Batch{}
	now := time.Now()

	for _, t := range transcripts {
		body, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal transcript %s: %w", t.SessionID, err)
		}
		batch.Queue(`
			INSERT INTO transcripts (session_id, schema_version, outcome, terminal_state, body, started_at, ended_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (session_id) DO NOTHING
		`, t.SessionID, t.SchemaVersion, string(t.Outcome), string(t.TerminalState), body, t.StartedAt, t.EndedAt, now)
	}

	results := r.db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for range transcripts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}

	return nil
}

func (r *TranscriptRepo) GetByID(ctx context.Context, sessionID string) (*domain.Transcript, error) {
	var body []byte
	var processedAt *time.Time

	err := r.db.Pool.QueryRow(ctx, `
		SELECT body, processed_at FROM transcripts WHERE session_id = $1
	`, sessionID).Scan(&body, &processedAt)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	var t domain.Transcript
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("unmarshal transcript: %w", err)
	}
	t.ProcessedAt = processedAt
	return &t, nil
}

func (r *TranscriptRepo) GetUnprocessed(ctx context.Context, limit int) ([]*domain.Transcript, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT body FROM transcripts
		WHERE processed_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transcript
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var t domain.Transcript
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("unmarshal transcript: %w", err)
		}
		out = append(out, &t)
	}

	return out, rows.Err()
}

func (r *TranscriptRepo) MarkProcessed(ctx context.Context, sessionIDs ...string) error {
	if len(sessionIDs) == 0 {
		return nil
	}
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE transcripts SET processed_at = NOW() WHERE session_id = ANY($1)
	`, sessionIDs)
	return err
}

func (r *TranscriptRepo) ListRecent(ctx context.Context, limit int) ([]*domain.Transcript, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT body FROM transcripts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transcript
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var t domain.Transcript
		if err := json.Unmarshal(body, &t); err != nil {
			return nil, fmt.Errorf("unmarshal transcript: %w", err)
		}
		out = append(out, &t)
	}

	return out, rows.Err()
}
