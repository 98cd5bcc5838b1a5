package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/closeplan/internal/core"
)

// fakeRows serves fixed string rows. Unimplemented pgx.Rows methods panic.
type fakeRows struct {
	pgx.Rows
	data [][]string
	pos  int
	err  error
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		switch v := d.(type) {
		case *string:
			*v = row[i]
		case *pgtype.Text:
			*v = pgtype.Text{String: row[i], Valid: row[i] != ""}
		case *pgtype.Date:
			*v = core.ToPgDate(row[i])
		default:
			return fmt.Errorf("scan: unsupported destination %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Close() {}
func (r *fakeRows) Err() error { return r.err }

type fakeBatchResults struct {
	pgx.BatchResults
	results []*fakeRows
	err     error
	closed  bool
}

func (b *fakeBatchResults) Query() (pgx.Rows, error) {
	if b.err != nil {
		return nil, b.err
	}
	r := b.results[0]
	b.results = b.results[1:]
	return r, nil
}

func (b *fakeBatchResults) Close() error {
	b.closed = true
	return nil
}

type fakeTx struct {
	pgx.Tx
	copyErr    error
	table      pgx.Identifier
	columns    []string
	rows       [][]any
	committed  bool
	rolledBack bool
}

func (t *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	if t.copyErr != nil {
		return 0, t.copyErr
	}
	t.table, t.columns = table, cols
	for src.Next() {
		vals, err := src.Values()
		if err != nil {
			return 0, err
		}
		t.rows = append(t.rows, vals)
	}
	return int64(len(t.rows)), src.Err()
}

func (t *fakeTx) Commit(context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

type fakeDB struct {
	batches []*pgx.Batch
	batch   *fakeBatchResults
	queries []string
	args    [][]any
	rows    *fakeRows
	tx      *fakeTx
	execSQL string
}

func (d *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	d.execSQL = sql
	return pgconn.CommandTag{}, nil
}

func (d *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	d.queries = append(d.queries, sql)
	d.args = append(d.args, args)
	return d.rows, nil
}

func (d *fakeDB) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	d.batches = append(d.batches, b)
	return d.batch
}

func (d *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return d.tx, nil
}

func timelineProfile() *core.Profile {
	return &core.Profile{
		Key:   "timeline_tasks",
		Table: "timeline_tasks",
		Columns: []core.Column{
			{Header: "Task", Field: "tasks", DBColumn: "task", Kind: core.KindPicklist},
			{Header: "Task (If Other)", Field: "taskIfOther", DBColumn: "task_if_other"},
			{Header: "Start Date", Field: "startDate", DBColumn: "start_date", Kind: core.KindDate},
			{Header: "ACN Owner", Field: "acnOwnerName"},
		},
		Owners: []core.OwnerLink{
			{NameField: "acnOwnerName", LinkField: "acnOwnerId", DBColumn: "acn_owner_id", Group: core.OwnerGroupA},
		},
		Companions:        map[string]string{"tasks": "taskIfOther"},
		DisplayNameFields: []string{"taskIfOther", "tasks"},
		DisplayOnly:       []string{"acnOwnerName"},
		ScopeField:        "closePlanId",
		ScopeDBColumn:     "close_plan_id",
	}
}

func TestResolveOwners_OneBatch(t *testing.T) {
	db := &fakeDB{batch: &fakeBatchResults{results: []*fakeRows{
		{data: [][]string{{"u-1", "Jane Doe"}}},
		{data: [][]string{{"u-2", " Bob Roe "}, {"u-9", "jane doe"}}},
	}}}

	got, err := NewOwnerDirectory(db).ResolveOwners(context.Background(), core.OwnerQuery{
		GroupA: []string{"jane doe"},
		GroupB: []string{"bob roe"},
	})

	require.NoError(t, err)
	assert.Equal(t, core.ResolutionMap{"jane doe": "u-1", "bob roe": "u-2"}, got)
	require.Len(t, db.batches, 1)
	require.Len(t, db.batches[0].QueuedQueries, 2)
	assert.Equal(t, []any{GroupACN, []string{"jane doe"}}, db.batches[0].QueuedQueries[0].Arguments)
	assert.Equal(t, []any{GroupClient, []string{"bob roe"}}, db.batches[0].QueuedQueries[1].Arguments)
	assert.True(t, db.batch.closed)
}

func TestResolveOwners_LogsCrossGroupCollision(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	db := &fakeDB{batch: &fakeBatchResults{results: []*fakeRows{
		{data: [][]string{{"u-1", "Jane Doe"}}},
		{data: [][]string{{"u-9", "jane doe"}}},
	}}}

	got, err := NewOwnerDirectory(db).ResolveOwners(context.Background(), core.OwnerQuery{
		GroupA: []string{"jane doe"},
		GroupB: []string{"jane doe"},
	})

	require.NoError(t, err)
	assert.Equal(t, core.ResolutionMap{"jane doe": "u-1"}, got)
	assert.Contains(t, buf.String(), "owner name matched more than once")
	assert.Contains(t, buf.String(), "group=client")
	assert.Contains(t, buf.String(), "ignored=u-9")
}

func TestResolveOwners_EmptyQuerySkipsDatabase(t *testing.T) {
	db := &fakeDB{}

	got, err := NewOwnerDirectory(db).ResolveOwners(context.Background(), core.OwnerQuery{})

	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Empty(t, db.batches)
}

func TestResolveOwners_QueryError(t *testing.T) {
	db := &fakeDB{batch: &fakeBatchResults{err: errors.New("relation \"owners\" does not exist")}}

	_, err := NewOwnerDirectory(db).ResolveOwners(context.Background(), core.OwnerQuery{GroupA: []string{"x"}})

	assert.ErrorContains(t, err, "resolve acn owners")
}

func TestKnownRecords(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]string{
		{"t-1", "", "Accruals"},
		{"t-2", "Bank rec", "Other"},
	}}}

	got, err := NewRecordStore(db).KnownRecords(context.Background(), timelineProfile(), "plan-1")

	require.NoError(t, err)
	assert.Equal(t,
		`SELECT id::text, "task_if_other", "task" FROM "timeline_tasks" WHERE "close_plan_id" = $1 ORDER BY created_at, id`,
		db.queries[0])
	assert.Equal(t, []any{"plan-1"}, db.args[0])
	require.Len(t, got, 2)
	assert.Equal(t, "Accruals", timelineProfile().DisplayName(got[0].Fields))
	assert.Equal(t, "Bank rec", timelineProfile().DisplayName(got[1].Fields))
}

func TestKnownRecords_CompanionNeedsOther(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]string{
		{"t-1", "Stale text", "Accruals"},
	}}}

	got, err := NewRecordStore(db).KnownRecords(context.Background(), timelineProfile(), "plan-1")

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Accruals", timelineProfile().DisplayName(got[0].Fields))
}

func TestKnownRecords_DateDisplayColumn(t *testing.T) {
	p := timelineProfile()
	p.DisplayNameFields = []string{"startDate"}
	db := &fakeDB{rows: &fakeRows{data: [][]string{
		{"t-1", "2024-01-05"},
		{"t-2", ""},
	}}}

	got, err := NewRecordStore(db).KnownRecords(context.Background(), p, "plan-1")

	require.NoError(t, err)
	assert.Equal(t,
		`SELECT id::text, "start_date" FROM "timeline_tasks" WHERE "close_plan_id" = $1 ORDER BY created_at, id`,
		db.queries[0])
	require.Len(t, got, 2)
	assert.Equal(t, "2024-01-05", got[0].Fields["startDate"])
	assert.Equal(t, "", got[1].Fields["startDate"])
}

func TestSave_CopiesInStoreColumnOrder(t *testing.T) {
	tx := &fakeTx{}
	db := &fakeDB{tx: tx}
	owner := "u-1"
	payloads := []core.Payload{
		{
			Fields: map[string]string{"tasks": "Accruals", "startDate": "2024-01-05", "closePlanId": "plan-1"},
			Links:  map[string]*string{"acnOwnerId": &owner},
		},
		{
			Fields: map[string]string{"tasks": "Other", "taskIfOther": "Bank rec", "startDate": ""},
			Links:  map[string]*string{"acnOwnerId": nil},
		},
	}

	err := NewRecordStore(db).Save(context.Background(), timelineProfile(), "plan-1", payloads)

	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	assert.Equal(t, pgx.Identifier{"timeline_tasks"}, tx.table)
	assert.Equal(t, []string{"task", "task_if_other", "start_date", "acn_owner_id", "close_plan_id"}, tx.columns)
	require.Len(t, tx.rows, 2)

	first := tx.rows[0]
	assert.Equal(t, pgtype.Text{String: "Accruals", Valid: true}, first[0])
	assert.Equal(t, pgtype.Text{}, first[1])
	assert.Equal(t, "2024-01-05", core.PgDateToString(first[2].(pgtype.Date)))
	assert.Equal(t, pgtype.Text{String: "u-1", Valid: true}, first[3])

	second := tx.rows[1]
	assert.False(t, second[2].(pgtype.Date).Valid)
	assert.Equal(t, pgtype.Text{}, second[3])
	assert.Equal(t, pgtype.Text{String: "plan-1", Valid: true}, second[4], "scope fills an empty scope field")
}

func TestSave_PostgresErrorBecomesSaveError(t *testing.T) {
	tx := &fakeTx{copyErr: &pgconn.PgError{
		Code:    "23514",
		Message: `new row for relation "timeline_tasks" violates check constraint`,
		Detail:  "Failing row contains (2024-02-01, 2024-01-01).",
	}}
	db := &fakeDB{tx: tx}

	err := NewRecordStore(db).Save(context.Background(), timelineProfile(), "plan-1", []core.Payload{{}})

	var se *core.SaveError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, `new row for relation "timeline_tasks" violates check constraint: Failing row contains (2024-02-01, 2024-01-01).`, se.Message)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestSaveError_Generic(t *testing.T) {
	err := saveError(errors.New("conn closed"))

	var se *core.SaveError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, core.GenericSaveFailure, se.Message)
	assert.ErrorContains(t, err, "conn closed")
}

func TestMigrate(t *testing.T) {
	db := &fakeDB{}

	require.NoError(t, Migrate(context.Background(), db))

	assert.Contains(t, db.execSQL, "CREATE TABLE IF NOT EXISTS owners")
	assert.Contains(t, db.execSQL, "CREATE TABLE IF NOT EXISTS ssr_records")
}
