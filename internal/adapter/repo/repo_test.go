package repo

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"productshot/internal/domain"
	"productshot/internal/infra"
	"productshot/internal/sqlinline"
)

type call struct {
	query string
	args  []any
}

// stubDB answers statements by exact query text and records every call.
type stubDB struct {
	rows   map[string]func(args []any) ([]any, error)
	execs  map[string]func(args []any) (pgconn.CommandTag, error)
	multi  map[string][][]any
	calls  []call
	txs    int
	txErrs []error
}

func newStubDB() *stubDB {
	return &stubDB{
		rows:  map[string]func(args []any) ([]any, error){},
		execs: map[string]func(args []any) (pgconn.CommandTag, error){},
		multi: map[string][][]any{},
	}
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	fn, ok := s.execs[query]
	if !ok {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %.60s", query)
	}
	return fn(args)
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	s.calls = append(s.calls, call{query: query, args: args})
	fn, ok := s.rows[query]
	if !ok {
		return valuesRow{err: fmt.Errorf("unexpected query_row: %.60s", query)}
	}
	values, err := fn(args)
	return valuesRow{values: values, err: err}
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	s.calls = append(s.calls, call{query: query, args: args})
	data, ok := s.multi[query]
	if !ok {
		return nil, fmt.Errorf("unexpected query: %.60s", query)
	}
	return &valuesRows{data: data, idx: -1}, nil
}

func (s *stubDB) InTx(ctx context.Context, fn func(infra.SQLExecutor) error) error {
	s.txs++
	err := fn(s)
	s.txErrs = append(s.txErrs, err)
	return err
}

func (s *stubDB) count(query string) int {
	n := 0
	for _, c := range s.calls {
		if c.query == query {
			n++
		}
	}
	return n
}

type valuesRow struct {
	values []any
	err    error
}

func (r valuesRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

func assign(dest, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d dest for %d values", len(dest), len(values))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

type valuesRows struct {
	data [][]any
	idx  int
}

func (r *valuesRows) Close()                                       {}
func (r *valuesRows) Err() error                                   { return nil }
func (r *valuesRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *valuesRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *valuesRows) Next() bool                                   { r.idx++; return r.idx < len(r.data) }
func (r *valuesRows) Scan(dest ...any) error                       { return assign(dest, r.data[r.idx]) }
func (r *valuesRows) Values() ([]any, error)                       { return r.data[r.idx], nil }
func (r *valuesRows) RawValues() [][]byte                          { return nil }
func (r *valuesRows) Conn() *pgx.Conn                              { return nil }

func tag(s string) func([]any) (pgconn.CommandTag, error) {
	return func([]any) (pgconn.CommandTag, error) { return pgconn.NewCommandTag(s), nil }
}

func jobRow(status domain.JobStatus, started *time.Time) []any {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return []any{"job-1", "user-1", "proj-1", "main_white", "asset-1", string(status), "", 0, "", []byte(`{}`), now, now, started}
}

func TestJobTransitionsRequireMatchingState(t *testing.T) {
	db := newStubDB()
	db.execs[sqlinline.QMarkJobRunning] = tag("UPDATE 1")
	db.execs[sqlinline.QMarkJobSucceeded] = tag("UPDATE 0")
	db.execs[sqlinline.QMarkJobFailed] = tag("UPDATE 1")
	repo := NewJobRepository(db)
	ctx := context.Background()

	if err := repo.MarkRunning(ctx, "job-1"); err != nil {
		t.Fatalf("MarkRunning: %v", err)
	}
	if err := repo.MarkSucceeded(ctx, "job-1", 1, "out-1"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("MarkSucceeded on zero rows = %v, want ErrInvalidTransition", err)
	}
	if err := repo.MarkFailed(ctx, "job-1", "boom"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	last := db.calls[len(db.calls)-1]
	if !reflect.DeepEqual(last.args, []any{"job-1", "boom"}) {
		t.Fatalf("MarkFailed args = %#v", last.args)
	}
	succ := db.calls[1]
	if !reflect.DeepEqual(succ.args, []any{"job-1", 1, "out-1"}) {
		t.Fatalf("MarkSucceeded args = %#v", succ.args)
	}
}

func TestJobGetByID(t *testing.T) {
	const (
		jobID   = "6f1c1d0e-1b6b-4c7e-9a53-2f0d7f3f8a11"
		missing = "0b8e4b7a-5d43-4a8e-8f0a-9c2d1e6f7a22"
	)
	db := newStubDB()
	started := time.Date(2024, 1, 1, 12, 0, 5, 0, time.UTC)
	db.rows[sqlinline.QSelectJobByID] = func(args []any) ([]any, error) {
		if args[0] == missing {
			return nil, pgx.ErrNoRows
		}
		return jobRow(domain.JobStatusRunning, &started), nil
	}
	repo := NewJobRepository(db)

	job, err := repo.GetByID(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusRunning || job.Mode != domain.ModeMainWhite {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.StartedAt == nil || !job.StartedAt.Equal(started) {
		t.Fatalf("StartedAt = %v", job.StartedAt)
	}
	if _, err := repo.GetByID(context.Background(), missing); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing job err = %v, want ErrNotFound", err)
	}
}

func TestGetByIDRejectsMalformedIDs(t *testing.T) {
	db := newStubDB()
	db.rows[sqlinline.QSelectJobByID] = func([]any) ([]any, error) {
		return nil, &pgconn.PgError{Code: "22P02", Message: "invalid input syntax for type uuid"}
	}
	db.rows[sqlinline.QSelectAssetByID] = db.rows[sqlinline.QSelectJobByID]

	for _, id := range []string{"abc", "", "job-1", "6f1c1d0e-1b6b-4c7e-9a53"} {
		if _, err := NewJobRepository(db).GetByID(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("job %q err = %v, want ErrNotFound", id, err)
		}
		if _, err := NewAssetRepository(db).GetByID(context.Background(), id); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("asset %q err = %v, want ErrNotFound", id, err)
		}
	}
	if len(db.calls) != 0 {
		t.Fatalf("malformed ids reached the database: %d calls", len(db.calls))
	}
}

func TestJobCreateSetsQueued(t *testing.T) {
	db := newStubDB()
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db.rows[sqlinline.QInsertJob] = func(args []any) ([]any, error) {
		if b, ok := args[5].([]byte); !ok || b != nil {
			return nil, fmt.Errorf("empty inputs should be passed as nil bytes, got %#v", args[5])
		}
		return []any{created, created}, nil
	}
	job := &domain.Job{ID: "job-1", UserID: "u", ProjectID: "p", Mode: domain.ModePackaging, InputAssetID: "a"}
	if err := NewJobRepository(db).Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.Status != domain.JobStatusQueued || !job.CreatedAt.Equal(created) {
		t.Fatalf("unexpected job after create: %+v", job)
	}
}

func TestListStaleJobs(t *testing.T) {
	db := newStubDB()
	db.multi[sqlinline.QListStaleJobs] = [][]any{
		jobRow(domain.JobStatusRunning, nil),
		jobRow(domain.JobStatusQueued, nil),
	}
	jobs, err := NewJobRepository(db).ListStale(context.Background(), time.Now(), 50)
	if err != nil {
		t.Fatalf("ListStale: %v", err)
	}
	if len(jobs) != 2 || jobs[1].Status != domain.JobStatusQueued {
		t.Fatalf("unexpected stale jobs: %+v", jobs)
	}
}

func TestAssetGetByID(t *testing.T) {
	db := newStubDB()
	created := time.Now().UTC()
	db.rows[sqlinline.QSelectAssetByID] = func(args []any) ([]any, error) {
		return []any{"asset-1", "user-1", "proj-1", "output", "output-images", "user-1/proj-1/asset-1.png", "image/png", int64(42), 1024, 1024, "asset-0", "lifestyle", []byte(`{"mode":"lifestyle"}`), created}, nil
	}
	asset, err := NewAssetRepository(db).GetByID(context.Background(), "9d4f2a61-3c5e-4b7a-8e1d-0f6a2b3c4d55")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if asset.Kind != domain.AssetKindOutput || asset.Mode != domain.ModeLifestyle || asset.SourceAssetID != "asset-0" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
}

func TestAppendSpendRejectsOverdraft(t *testing.T) {
	db := newStubDB()
	db.execs[sqlinline.QLockLedgerUser] = tag("SELECT 1")
	db.rows[sqlinline.QSelectLedgerEntryByRef] = func([]any) ([]any, error) { return nil, pgx.ErrNoRows }
	db.rows[sqlinline.QSelectLedgerBalance] = func([]any) ([]any, error) { return []any{int64(0)}, nil }
	repo := NewLedgerRepository(db)

	entry := &domain.LedgerEntry{ID: "e1", UserID: "user-1", Delta: -1, Reason: domain.ReasonGenerationSpend, RefType: domain.RefTypeJob, RefID: "job-1"}
	err := repo.AppendSpend(context.Background(), entry)
	var insufficient *domain.InsufficientCreditsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("AppendSpend err = %v, want InsufficientCreditsError", err)
	}
	if insufficient.Balance != 0 || insufficient.Required != 1 {
		t.Fatalf("unexpected detail: %+v", insufficient)
	}
	if db.count(sqlinline.QInsertLedgerEntry) != 0 {
		t.Fatal("no entry should be inserted on overdraft")
	}
	if db.count(sqlinline.QLockLedgerUser) != 1 {
		t.Fatal("spend must take the per-user lock")
	}
}

func TestAppendSpendDetectsDuplicateCharge(t *testing.T) {
	db := newStubDB()
	db.execs[sqlinline.QLockLedgerUser] = tag("SELECT 1")
	db.rows[sqlinline.QSelectLedgerEntryByRef] = func([]any) ([]any, error) {
		return []any{"e0", "user-1", int64(-1), "generation_spend", "job", "job-1", time.Now()}, nil
	}
	repo := NewLedgerRepository(db)
	entry := &domain.LedgerEntry{ID: "e1", UserID: "user-1", Delta: -1, Reason: domain.ReasonGenerationSpend, RefType: domain.RefTypeJob, RefID: "job-1"}
	if err := repo.AppendSpend(context.Background(), entry); !errors.Is(err, domain.ErrAlreadyCharged) {
		t.Fatalf("AppendSpend err = %v, want ErrAlreadyCharged", err)
	}
}

func TestAppendSpendInsertsWhenCovered(t *testing.T) {
	db := newStubDB()
	created := time.Now().UTC()
	db.execs[sqlinline.QLockLedgerUser] = tag("SELECT 1")
	db.rows[sqlinline.QSelectLedgerEntryByRef] = func([]any) ([]any, error) { return nil, pgx.ErrNoRows }
	db.rows[sqlinline.QSelectLedgerBalance] = func([]any) ([]any, error) { return []any{int64(3)}, nil }
	db.rows[sqlinline.QInsertLedgerEntry] = func(args []any) ([]any, error) {
		if args[2] != int64(-1) || args[3] != "generation_spend" {
			return nil, fmt.Errorf("unexpected insert args %#v", args)
		}
		return []any{created}, nil
	}
	entry := &domain.LedgerEntry{ID: "e1", UserID: "user-1", Delta: -1, Reason: domain.ReasonGenerationSpend, RefType: domain.RefTypeJob, RefID: "job-1"}
	if err := NewLedgerRepository(db).AppendSpend(context.Background(), entry); err != nil {
		t.Fatalf("AppendSpend: %v", err)
	}
	if !entry.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt not populated: %v", entry.CreatedAt)
	}
}

func TestAppendMapsUniqueViolation(t *testing.T) {
	db := newStubDB()
	db.rows[sqlinline.QInsertLedgerEntry] = func([]any) ([]any, error) {
		return nil, &pgconn.PgError{Code: "23505"}
	}
	entry := &domain.LedgerEntry{ID: "e1", UserID: "user-1", Delta: -1, Reason: domain.ReasonGenerationSpend, RefType: domain.RefTypeJob, RefID: "job-1"}
	if err := NewLedgerRepository(db).Append(context.Background(), entry); !errors.Is(err, domain.ErrAlreadyCharged) {
		t.Fatalf("Append err = %v, want ErrAlreadyCharged", err)
	}
}

func TestUsageConsume(t *testing.T) {
	minute := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	windows := []domain.UsageWindow{
		{Kind: domain.WindowPerMinute, Start: minute, Limit: 10},
		{Kind: domain.WindowPerDay, Start: day, Limit: 100},
	}

	tests := []struct {
		name        string
		current     map[string]int
		wantAllowed bool
		wantCounts  []int
		wantIncr    int
	}{
		{
			name:        "both below limit",
			current:     map[string]int{"per_minute": 3, "per_day": 40},
			wantAllowed: true,
			wantCounts:  []int{4, 41},
			wantIncr:    2,
		},
		{
			name:        "minute exhausted",
			current:     map[string]int{"per_minute": 10, "per_day": 40},
			wantAllowed: false,
			wantCounts:  []int{10, 40},
		},
		{
			name:        "day exhausted",
			current:     map[string]int{"per_minute": 0, "per_day": 100},
			wantAllowed: false,
			wantCounts:  []int{0, 100},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := newStubDB()
			db.execs[sqlinline.QEnsureUsageCounter] = tag("INSERT 0 1")
			db.rows[sqlinline.QLockUsageCounter] = func(args []any) ([]any, error) {
				return []any{tc.current[args[1].(string)]}, nil
			}
			db.rows[sqlinline.QIncrementUsageCounter] = func(args []any) ([]any, error) {
				return []any{tc.current[args[1].(string)] + 1}, nil
			}
			counts, allowed, err := NewUsageRepository(db).Consume(context.Background(), "user-1", windows)
			if err != nil {
				t.Fatalf("Consume: %v", err)
			}
			if allowed != tc.wantAllowed {
				t.Fatalf("allowed = %v, want %v", allowed, tc.wantAllowed)
			}
			if !reflect.DeepEqual(counts, tc.wantCounts) {
				t.Fatalf("counts = %v, want %v", counts, tc.wantCounts)
			}
			if got := db.count(sqlinline.QIncrementUsageCounter); got != tc.wantIncr {
				t.Fatalf("increments = %d, want %d", got, tc.wantIncr)
			}
			if db.txs != 1 {
				t.Fatalf("expected a single transaction, got %d", db.txs)
			}
		})
	}
}

func TestUsagePurge(t *testing.T) {
	db := newStubDB()
	db.execs[sqlinline.QPurgeUsageCounters] = tag("DELETE 7")
	n, err := NewUsageRepository(db).PurgeBefore(context.Background(), domain.WindowPerMinute, time.Now())
	if err != nil {
		t.Fatalf("PurgeBefore: %v", err)
	}
	if n != 7 {
		t.Fatalf("purged = %d, want 7", n)
	}
}
