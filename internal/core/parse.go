package core

// parse.go converts decoded spreadsheet rows into records.
//
// Header matching is case-insensitive and ignores surrounding whitespace,
// so "start date " in a hand-edited sheet still lands on startDate.

import (
	"github.com/google/uuid"
)

// headerLine is the spreadsheet line of the header row; data starts below it.
const headerLine = 1

// IDFunc generates session-local record identifiers.
type IDFunc func() string

// NewRecordID returns a random record identifier.
func NewRecordID() string {
	return uuid.NewString()
}

// ParseRows turns rows into records in input order.
//
// Rows blank across every significant column are dropped. Cells are cleaned,
// date columns are normalized to YYYY-MM-DD (unparseable dates become ""),
// fallbacks and defaults fill empty fields and scope fills the scope field.
// Links start unresolved and FieldErrors empty.
func ParseRows(rows []RawRow, p *Profile, scope string, newID IDFunc) []Record {
	if newID == nil {
		newID = NewRecordID
	}

	out := make([]Record, 0, len(rows))
	for i, row := range rows {
		cells := normalizeRow(row)

		if blankAcross(cells, p.Significant) {
			continue
		}

		rec := Record{
			ID:          newID(),
			Line:        headerLine + 1 + i,
			Fields:      make(map[string]string, len(p.Columns)+1),
			Links:       make(map[string]*string),
			FieldErrors: make(map[string]string),
		}

		for _, col := range p.Columns {
			v := cells[NameKey(col.Header)]
			if col.Kind == KindDate {
				v = NormalizeDate(v)
			}
			rec.Fields[col.Field] = v
		}

		for field, from := range p.Fallbacks {
			if rec.Fields[field] == "" {
				rec.Fields[field] = rec.Fields[from]
			}
		}

		for field, def := range p.Defaults {
			if rec.Fields[field] == "" {
				rec.Fields[field] = def
			}
		}

		if p.ScopeField != "" && rec.Fields[p.ScopeField] == "" {
			rec.Fields[p.ScopeField] = scope
		}

		for _, f := range p.LinkFields() {
			rec.Links[f] = nil
		}

		out = append(out, rec)
	}

	return out
}

// normalizeRow keys a row by NameKey(header) with cleaned cell values.
func normalizeRow(row RawRow) map[string]string {
	cells := make(map[string]string, len(row))
	for header, v := range row {
		key := NameKey(CleanCell(header))
		if key == "" {
			continue
		}
		// The first non-empty value wins when two headers normalize alike.
		if existing := cells[key]; existing != "" {
			continue
		}
		cells[key] = CleanCell(v)
	}
	return cells
}

func blankAcross(cells map[string]string, headers []string) bool {
	for _, h := range headers {
		if cells[NameKey(h)] != "" {
			return false
		}
	}
	return true
}
