package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/curax/triage/internal/types"
)

// PostgresStore persists sessions in a single table, transcript and context
// as JSONB columns.
type PostgresStore struct {
	db *sql.DB
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	id             TEXT PRIMARY KEY,
	patient_ref    TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	status         TEXT NOT NULL,
	turn_count     INTEGER NOT NULL DEFAULT 0,
	transcript     JSONB NOT NULL DEFAULT '[]',
	context        JSONB NOT NULL DEFAULT '{}',
	emergency_flag BOOLEAN NOT NULL DEFAULT FALSE,
	confidence     DOUBLE PRECISION NOT NULL DEFAULT 0
)`

// OpenPostgres connects to the given DSN and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

func (p *PostgresStore) Get(ctx context.Context, id types.SessionID) (*Session, error) {
	query := `SELECT id, patient_ref, started_at, status, turn_count, transcript, context, emergency_flag, confidence
		FROM sessions WHERE id = $1`

	var s Session
	var transcriptJSON, contextJSON []byte
	err := p.db.QueryRowContext(ctx, query, string(id)).Scan(
		&s.ID,
		&s.PatientRef,
		&s.StartedAt,
		&s.Status,
		&s.TurnCount,
		&transcriptJSON,
		&contextJSON,
		&s.EmergencyFlag,
		&s.Confidence,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if err := json.Unmarshal(transcriptJSON, &s.Transcript); err != nil {
		return nil, fmt.Errorf("decode transcript for %s: %w", id, err)
	}
	if err := json.Unmarshal(contextJSON, &s.Context); err != nil {
		return nil, fmt.Errorf("decode context for %s: %w", id, err)
	}
	return &s, nil
}

func (p *PostgresStore) Put(ctx context.Context, s *Session) error {
	transcriptJSON, err := json.Marshal(s.Transcript)
	if err != nil {
		return fmt.Errorf("encode transcript for %s: %w", s.ID, err)
	}
	contextJSON, err := json.Marshal(s.Context)
	if err != nil {
		return fmt.Errorf("encode context for %s: %w", s.ID, err)
	}

	query := `
		INSERT INTO sessions (id, patient_ref, started_at, status, turn_count, transcript, context, emergency_flag, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			status = $4,
			turn_count = $5,
			transcript = $6,
			context = $7,
			emergency_flag = $8,
			confidence = $9
	`
	_, err = p.db.ExecContext(ctx, query,
		string(s.ID), string(s.PatientRef), s.StartedAt, string(s.Status),
		s.TurnCount, transcriptJSON, contextJSON, s.EmergencyFlag, s.Confidence)
	if err != nil {
		return fmt.Errorf("store session %s: %w", s.ID, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, id types.SessionID) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, string(id))
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context) ([]*Session, error) {
	query := `SELECT id, patient_ref, started_at, status, turn_count, transcript, context, emergency_flag, confidence
		FROM sessions ORDER BY started_at`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		var s Session
		var transcriptJSON, contextJSON []byte
		if err := rows.Scan(&s.ID, &s.PatientRef, &s.StartedAt, &s.Status, &s.TurnCount,
			&transcriptJSON, &contextJSON, &s.EmergencyFlag, &s.Confidence); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal(transcriptJSON, &s.Transcript); err != nil {
			return nil, fmt.Errorf("decode transcript for %s: %w", s.ID, err)
		}
		if err := json.Unmarshal(contextJSON, &s.Context); err != nil {
			return nil, fmt.Errorf("decode context for %s: %w", s.ID, err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
