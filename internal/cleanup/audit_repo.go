package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/flowme-cloud/flowme-backend/internal/logging"
)

// AuditSink records reconcile runs. Recording never fails the run.
type AuditSink interface {
	Record(ctx context.Context, res Result, runErr error)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, Result, error) {}

// Run is one row of the cleanup_runs table.
type Run struct {
	ID         string    `json:"id"`
	PageID     string    `json:"pageId"`
	Outcome    Outcome   `json:"outcome"`
	Total      int       `json:"total"`
	Candidates int       `json:"candidates"`
	Kept       int       `json:"kept"`
	Deleted    int       `json:"deleted"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AuditRepo stores reconcile runs in Postgres.
type AuditRepo struct {
	db DB
}

func NewAuditRepo(db DB) *AuditRepo {
	return &AuditRepo{db: db}
}

// Insert writes one run.
func (r *AuditRepo) Insert(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	const q = `
insert into cleanup_runs (id, page_id, outcome, total, candidates, kept, deleted, error, created_at)
values ($1, $2, $3, $4, $5, $6, $7, nullif($8, ''), $9);
`
	if _, err := r.db.Exec(ctx, q, run.ID, run.PageID, string(run.Outcome), run.Total,
		run.Candidates, run.Kept, run.Deleted, run.Error, run.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert cleanup run: %w", err)
	}
	return nil
}

// ListByPage returns the most recent runs for a page, newest first.
func (r *AuditRepo) ListByPage(ctx context.Context, pageID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
select id::text, page_id, outcome, total, candidates, kept, deleted, coalesce(error, ''), created_at
from cleanup_runs
where page_id = $1
order by created_at desc
limit $2;
`
	rows, err := r.db.Query(ctx, q, pageID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cleanup runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var outcome string
		if err := rows.Scan(&run.ID, &run.PageID, &outcome, &run.Total, &run.Candidates,
			&run.Kept, &run.Deleted, &run.Error, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.Outcome = Outcome(outcome)
		out = append(out, run)
	}
	return out, rows.Err()
}

// Record implements AuditSink. Failures are logged only.
func (r *AuditRepo) Record(ctx context.Context, res Result, runErr error) {
	run := &Run{
		PageID:     res.PageID,
		Outcome:    res.Outcome,
		Total:      res.Total,
		Candidates: res.Candidates,
		Kept:       res.Kept,
		Deleted:    res.Deleted,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := r.Insert(ctx, run); err != nil {
		logging.NewLogger(ctx).LogError("cleanup_audit", err)
	}
}

// Schema creates the cleanup_runs table.
const Schema = `
create table if not exists cleanup_runs (
  id uuid primary key,
  page_id text not null,
  outcome text not null,
  total integer not null default 0,
  candidates integer not null default 0,
  kept integer not null default 0,
  deleted integer not null default 0,
  error text,
  created_at timestamptz not null default now()
);
create index if not exists cleanup_runs_page_idx on cleanup_runs (page_id, created_at desc);
`

// EnsureSchema applies Schema.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create cleanup_runs: %w", err)
	}
	return nil
}
