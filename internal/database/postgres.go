// internal/database/postgres.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podiumhq/podium/internal/models"
	"github.com/podiumhq/podium/internal/store"
)

// PostgresStore implements store.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect builds the pool from a DSN and pings it.
func Connect(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS debates (
			id UUID PRIMARY KEY,
			topic TEXT NOT NULL,
			status TEXT NOT NULL,
			participants UUID[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL,
			invite_code TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS arguments (
			debate_id UUID NOT NULL REFERENCES debates(id),
			author_id UUID NOT NULL,
			text TEXT NOT NULL,
			seq INT NOT NULL,
			submitted_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (debate_id, seq)
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			debate_id UUID PRIMARY KEY REFERENCES debates(id),
			scores JSONB NOT NULL,
			totals JSONB NOT NULL,
			winner_id UUID NOT NULL,
			source TEXT NOT NULL,
			generated_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) LoadDebate(ctx context.Context, id uuid.UUID) (*models.Debate, error) {
	q := `
		SELECT id, topic, status, participants, created_at, COALESCE(invite_code, '')
		FROM debates WHERE id = $1
	`
	var d models.Debate
	var status string
	err := s.pool.QueryRow(ctx, q, id).Scan(
		&d.ID, &d.Topic, &status, &d.Participants, &d.CreatedAt, &d.InviteCode,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load debate %s: %w", id, err)
	}
	d.Status = models.DebateStatus(status)
	return &d, nil
}

func (s *PostgresStore) SaveDebate(ctx context.Context, debate *models.Debate) error {
	q := `
		INSERT INTO debates (id, topic, status, participants, created_at, invite_code)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
		ON CONFLICT (id)
		DO UPDATE SET status = $3, participants = $4
	`
	_, err := s.pool.Exec(ctx, q,
		debate.ID, debate.Topic, string(debate.Status),
		debate.Participants, debate.CreatedAt, debate.InviteCode,
	)
	if err != nil {
		return fmt.Errorf("save debate %s: %w", debate.ID, err)
	}
	return nil
}

func (s *PostgresStore) AppendArgument(ctx context.Context, arg *models.Argument) error {
	q := `
		INSERT INTO arguments (debate_id, author_id, text, seq, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, q,
		arg.DebateID, arg.AuthorID, arg.Text, arg.Seq, arg.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("append argument %d to debate %s: %w", arg.Seq, arg.DebateID, err)
	}
	return nil
}

func (s *PostgresStore) ListArguments(ctx context.Context, debateID uuid.UUID) ([]*models.Argument, error) {
	q := `
		SELECT debate_id, author_id, text, seq, submitted_at
		FROM arguments WHERE debate_id = $1 ORDER BY seq
	`
	rows, err := s.pool.Query(ctx, q, debateID)
	if err != nil {
		return nil, fmt.Errorf("list arguments for debate %s: %w", debateID, err)
	}
	defer rows.Close()

	var args []*models.Argument
	for rows.Next() {
		var a models.Argument
		if err := rows.Scan(&a.DebateID, &a.AuthorID, &a.Text, &a.Seq, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan argument: %w", err)
		}
		args = append(args, &a)
	}
	return args, rows.Err()
}

// SaveResult is the terminal one-time write. A second insert for the
// same debate reports store.ErrResultExists instead of overwriting.
func (s *PostgresStore) SaveResult(ctx context.Context, result *models.Result) error {
	q := `
		INSERT INTO results (debate_id, scores, totals, winner_id, source, generated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (debate_id) DO NOTHING
	`
	scores, err := json.Marshal(result.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	totals, err := json.Marshal(result.Totals)
	if err != nil {
		return fmt.Errorf("marshal totals: %w", err)
	}
	tag, err := s.pool.Exec(ctx, q,
		result.DebateID, scores, totals,
		result.WinnerID, string(result.Source), result.GeneratedAt,
	)
	if err != nil {
		return fmt.Errorf("save result for debate %s: %w", result.DebateID, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrResultExists
	}
	return nil
}

func (s *PostgresStore) LoadResult(ctx context.Context, debateID uuid.UUID) (*models.Result, error) {
	q := `
		SELECT debate_id, scores, totals, winner_id, source, generated_at
		FROM results WHERE debate_id = $1
	`
	var r models.Result
	var source string
	var scores, totals []byte
	err := s.pool.QueryRow(ctx, q, debateID).Scan(
		&r.DebateID, &scores, &totals, &r.WinnerID, &source, &r.GeneratedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load result for debate %s: %w", debateID, err)
	}
	if err := json.Unmarshal(scores, &r.Scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	if err := json.Unmarshal(totals, &r.Totals); err != nil {
		return nil, fmt.Errorf("decode totals: %w", err)
	}
	r.Source = models.AnalysisSource(source)
	return &r, nil
}
