package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/closeplan/internal/core"
)

// RecordStore reads and writes a profile's target table.
type RecordStore struct {
	db DB
}

// NewRecordStore creates a RecordStore over db.
func NewRecordStore(db DB) *RecordStore {
	return &RecordStore{db: db}
}

// KnownRecords lists rows already stored for scope with the columns that
// make up their display name.
func (s *RecordStore) KnownRecords(ctx context.Context, p *core.Profile, scope string) ([]core.KnownRecord, error) {
	query, cols := knownRecordsQuery(p)
	var args []any
	if scopeColumn(p) != "" {
		args = append(args, scope)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", p.Table, err)
	}
	defer rows.Close()

	var out []core.KnownRecord
	for rows.Next() {
		var id string
		texts := make([]pgtype.Text, len(cols))
		dates := make([]pgtype.Date, len(cols))
		dest := make([]any, 0, len(cols)+1)
		dest = append(dest, &id)
		for i, c := range cols {
			if c.Kind == core.KindDate {
				dest = append(dest, &dates[i])
			} else {
				dest = append(dest, &texts[i])
			}
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", p.Table, err)
		}

		rec := core.KnownRecord{ID: id, Fields: make(map[string]string, len(cols))}
		for i, c := range cols {
			if c.Kind == core.KindDate {
				rec.Fields[c.Field] = core.PgDateToString(dates[i])
			} else {
				rec.Fields[c.Field] = texts[i].String
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Table, err)
	}
	return out, nil
}

// knownRecordsQuery selects id plus every persisted display-name column and
// the primary of any companion among them. It returns the selected columns.
func knownRecordsQuery(p *core.Profile) (string, []core.Column) {
	var selected []core.Column
	seen := make(map[string]bool)
	add := func(field string) {
		c, ok := p.Column(field)
		if !ok || c.DBColumn == "" || seen[field] {
			return
		}
		seen[field] = true
		selected = append(selected, c)
	}
	for _, f := range p.DisplayNameFields {
		add(f)
	}
	for _, f := range p.DisplayNameFields {
		if primary, ok := p.CompanionOf(f); ok {
			add(primary)
		}
	}

	cols := []string{"id::text"}
	for _, c := range selected {
		cols = append(cols, pgx.Identifier{c.DBColumn}.Sanitize())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), pgx.Identifier{p.Table}.Sanitize())
	if col := scopeColumn(p); col != "" {
		fmt.Fprintf(&b, " WHERE %s = $1", pgx.Identifier{col}.Sanitize())
	}
	b.WriteString(" ORDER BY created_at, id")
	return b.String(), selected
}

// scopeColumn returns the database column of the profile's scope field.
func scopeColumn(p *core.Profile) string {
	if p.ScopeField == "" {
		return ""
	}
	if c, ok := p.Column(p.ScopeField); ok && c.DBColumn != "" {
		return c.DBColumn
	}
	return p.ScopeDBColumn
}

// Save copies every payload into the profile table inside one transaction.
// Any failure rolls the whole commit back and is returned as *core.SaveError.
func (s *RecordStore) Save(ctx context.Context, p *core.Profile, scope string, payloads []core.Payload) error {
	cols := p.StoreColumns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.DBColumn
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return saveError(fmt.Errorf("begin transaction: %w", err))
	}
	defer tx.Rollback(ctx) // No-op if already committed

	n, err := tx.CopyFrom(ctx, pgx.Identifier{p.Table}, names, pgx.CopyFromRows(copyRows(cols, p, scope, payloads)))
	if err != nil {
		return saveError(fmt.Errorf("copy into %s: %w", p.Table, err))
	}
	if int(n) != len(payloads) {
		return saveError(fmt.Errorf("copy into %s: wrote %d of %d rows", p.Table, n, len(payloads)))
	}

	if err := tx.Commit(ctx); err != nil {
		return saveError(fmt.Errorf("commit transaction: %w", err))
	}

	slog.Info("records saved", "table", p.Table, "rows", n)
	return nil
}

// copyRows converts payloads to COPY values in StoreColumns order.
func copyRows(cols []core.StoreColumn, p *core.Profile, scope string, payloads []core.Payload) [][]any {
	rows := make([][]any, len(payloads))
	for i, pl := range payloads {
		row := make([]any, len(cols))
		for j, c := range cols {
			switch {
			case c.Link:
				row[j] = core.ToPgTextPtr(pl.Links[c.Field])
			case c.Kind == core.KindDate:
				row[j] = core.ToPgDate(pl.Fields[c.Field])
			case c.Field == p.ScopeField && pl.Fields[c.Field] == "":
				row[j] = core.ToPgText(scope)
			default:
				row[j] = core.ToPgText(pl.Fields[c.Field])
			}
		}
		rows[i] = row
	}
	return rows
}

// saveError wraps err with a message fit for the user. Postgres errors
// contribute their message and detail; anything else gets the generic text.
func saveError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg := pgErr.Message
		if pgErr.Detail != "" {
			msg += ": " + pgErr.Detail
		}
		return &core.SaveError{Message: msg, Err: err}
	}
	return &core.SaveError{Message: core.GenericSaveFailure, Err: err}
}
