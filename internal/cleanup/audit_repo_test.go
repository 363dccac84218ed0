package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB records statements and serves canned rows.
type fakeDB struct {
	execs    []execCall
	execErr  error
	queries  []execCall
	rows     [][]any
	queryErr error
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, execCall{sql: sql, args: args})
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{data: f.rows, pos: -1}, nil
}

type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.data[r.pos], nil }

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: want %d columns, got %d", len(row), len(dest))
	}
	for i, v := range row {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

func TestAuditRepo_Insert(t *testing.T) {
	db := &fakeDB{}
	repo := NewAuditRepo(db)

	run := &Run{PageID: "42", Outcome: OutcomeReconciled, Total: 3, Candidates: 2, Kept: 1, Deleted: 1}
	require.NoError(t, repo.Insert(context.Background(), run))

	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "insert into cleanup_runs")
	assert.Equal(t, []any{run.ID, "42", "reconciled", 3, 2, 1, 1, "", run.CreatedAt}, db.execs[0].args)

	db.execErr = errors.New("connection reset")
	err := repo.Insert(context.Background(), &Run{PageID: "42"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to insert cleanup run")
}

func TestAuditRepo_RecordNeverFails(t *testing.T) {
	db := &fakeDB{}
	repo := NewAuditRepo(db)

	repo.Record(context.Background(), Result{PageID: "7", Outcome: OutcomeDeleteFailed, Candidates: 1}, errors.New("boom"))
	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	assert.Equal(t, "7", args[1])
	assert.Equal(t, string(OutcomeDeleteFailed), args[2])
	assert.Equal(t, "boom", args[7])

	db.execErr = errors.New("down")
	assert.NotPanics(t, func() {
		repo.Record(context.Background(), Result{PageID: "7", Outcome: OutcomeReconciled}, nil)
	})
}

func TestAuditRepo_ListByPage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	db := &fakeDB{rows: [][]any{
		{"r2", "42", "delete_failed", 2, 1, 0, 0, "boom", at},
		{"r1", "42", "reconciled", 3, 2, 1, 1, "", at.Add(-time.Minute)},
	}}
	repo := NewAuditRepo(db)

	runs, err := repo.ListByPage(context.Background(), "42", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, Run{ID: "r2", PageID: "42", Outcome: OutcomeDeleteFailed, Total: 2, Candidates: 1, Error: "boom", CreatedAt: at}, runs[0])
	assert.Equal(t, OutcomeReconciled, runs[1].Outcome)
	assert.Equal(t, []any{"42", 20}, db.queries[0].args, "limit defaults to 20")

	db.queryErr = errors.New("down")
	_, err = repo.ListByPage(context.Background(), "42", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list cleanup runs")
}

func TestAuditRepo_EnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewAuditRepo(db).EnsureSchema(context.Background()))
	require.Len(t, db.execs, 1)
	assert.Contains(t, db.execs[0].sql, "create table if not exists cleanup_runs")
}

func TestCleanupRunsEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := &fakeDB{rows: [][]any{
		{"r1", "42", "reconciled", 3, 2, 1, 1, "", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}}
	host := &fakeHost{}
	r := gin.New()
	Register(r.Group("/api/v1"), NewHandler(host, NewReconciler(host, &fakeScanner{}, nil), nil), NewAuditRepo(db), false)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pages/42/cleanup/runs?limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		OK   bool  `json:"ok"`
		Runs []Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.OK)
	require.Len(t, body.Runs, 1)
	assert.Equal(t, "r1", body.Runs[0].ID)
	assert.Equal(t, []any{"42", 5}, db.queries[0].args)

	db.queryErr = errors.New("down")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pages/42/cleanup/runs", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"ok":false`))

	// Without a run store the history route is not mounted.
	bare := gin.New()
	Register(bare.Group("/api/v1"), NewHandler(host, NewReconciler(host, &fakeScanner{}, nil), nil), nil, false)
	w = httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/pages/42/cleanup/runs", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAuditRepo_Integration(t *testing.T) {
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set, skipping postgres integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	repo := NewAuditRepo(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	pageID := "it-" + time.Now().Format("150405.000000")
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "delete from cleanup_runs where page_id = $1", pageID)
	})

	repo.Record(ctx, Result{PageID: pageID, Outcome: OutcomeReconciled, Total: 3, Candidates: 2, Kept: 1, Deleted: 1}, nil)
	repo.Record(ctx, Result{PageID: pageID, Outcome: OutcomeDeleteFailed, Candidates: 1}, errors.New("boom"))

	runs, err := repo.ListByPage(ctx, pageID, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	byOutcome := map[Outcome]Run{}
	for _, r := range runs {
		byOutcome[r.Outcome] = r
	}
	assert.Equal(t, 1, byOutcome[OutcomeReconciled].Deleted)
	assert.Empty(t, byOutcome[OutcomeReconciled].Error)
	assert.Equal(t, "boom", byOutcome[OutcomeDeleteFailed].Error)
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := NewScheduler(NewHandler(&fakeHost{}, NewReconciler(&fakeHost{}, &fakeScanner{}, nil), nil), "not a cron line")
	assert.Error(t, s.Start())
	s.Stop()
}

func TestScheduler_DefaultSchedule(t *testing.T) {
	s := NewScheduler(NewHandler(&fakeHost{}, NewReconciler(&fakeHost{}, &fakeScanner{}, nil), nil), "")
	assert.Equal(t, DefaultSweepSchedule, s.schedule)
	require.NoError(t, s.Start())
	s.Stop()
}
