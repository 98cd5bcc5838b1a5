package core

// draft.go holds an import session's records and pending edits.
//
// State is immutable: every operation returns a new State and leaves the
// receiver untouched, so a reader holding an old snapshot never observes a
// half-applied change. Base records are never modified after import; the
// merged view is computed on demand from base plus overlay.

import (
	"fmt"
	"maps"
)

// State is a snapshot of base records and their draft overlay.
type State struct {
	records []Record
	overlay map[string]Patch
}

// NewState creates a state over records with an empty overlay.
func NewState(records []Record) State {
	return State{records: cloneRecords(records)}
}

// Len returns the number of live records.
func (s State) Len() int { return len(s.records) }

// Pending returns the number of records with uncommitted edits.
func (s State) Pending() int { return len(s.overlay) }

// Dirty reports whether the overlay holds any edit.
func (s State) Dirty() bool { return len(s.overlay) > 0 }

// Records returns copies of the base records.
func (s State) Records() []Record { return cloneRecords(s.records) }

// Overlay returns a copy of the draft overlay.
func (s State) Overlay() map[string]Patch {
	out := make(map[string]Patch, len(s.overlay))
	for id, p := range s.overlay {
		out[id] = maps.Clone(p)
	}
	return out
}

// Has reports whether id is a live record.
func (s State) Has(id string) bool {
	return s.index(id) >= 0
}

func (s State) index(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// Append returns a state with records added after the existing ones.
// The overlay is carried over unchanged.
func (s State) Append(records []Record) State {
	next := make([]Record, 0, len(s.records)+len(records))
	next = append(next, s.records...)
	next = append(next, cloneRecords(records)...)
	return State{records: next, overlay: s.overlay}
}

// ApplyEdit returns a state whose overlay sets field to value on record id.
func (s State) ApplyEdit(id, field, value string) (State, error) {
	if s.index(id) < 0 {
		return s, fmt.Errorf("apply edit %s: %w", id, ErrRecordNotFound)
	}

	overlay := make(map[string]Patch, len(s.overlay)+1)
	for k, p := range s.overlay {
		overlay[k] = p
	}
	patch := maps.Clone(s.overlay[id])
	if patch == nil {
		patch = Patch{}
	}
	patch[field] = value
	overlay[id] = patch

	return State{records: s.records, overlay: overlay}, nil
}

// ApplyEdits applies every edit or none of them.
func (s State) ApplyEdits(edits []Edit) (State, error) {
	next := s
	for _, e := range edits {
		var err error
		next, err = next.ApplyEdit(e.RecordID, e.Field, e.Value)
		if err != nil {
			return s, err
		}
	}
	return next, nil
}

// DeleteRecords returns a state without the given records and their
// overlay entries, along with the number of records removed. Unknown ids
// are ignored.
func (s State) DeleteRecords(ids []string) (State, int) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	records := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		if _, ok := drop[r.ID]; !ok {
			records = append(records, r)
		}
	}

	overlay := make(map[string]Patch, len(s.overlay))
	for id, p := range s.overlay {
		if _, ok := drop[id]; !ok {
			overlay[id] = p
		}
	}

	return State{records: records, overlay: overlay}, len(s.records) - len(records)
}

// Merged returns every live record with its overlay applied and
// re-validated against p. Neither base records nor overlay change.
func (s State) Merged(p *Profile) []Record {
	out := make([]Record, len(s.records))
	for i, base := range s.records {
		rec := base.Clone()
		for field, v := range s.overlay[base.ID] {
			switch {
			case p.IsLinkField(field):
				if v == "" {
					rec.Links[field] = nil
				} else {
					id := v
					rec.Links[field] = &id
				}
			case p.IsDateField(field):
				rec.Fields[field] = NormalizeDate(v)
			default:
				rec.Fields[field] = v
			}
		}
		out[i] = Validate(rec, p)
	}
	return out
}

// PrepareCommit returns the merged records stripped for persistence.
//
// It refuses with *CommitError when any record has a mandatory field that is
// empty, unresolved or carries a field error. The error lists every such
// record, not only the first.
func (s State) PrepareCommit(p *Profile) ([]Payload, error) {
	merged := s.Merged(p)
	if len(merged) == 0 {
		return nil, ErrNothingToCommit
	}

	var issues []RowIssue
	payloads := make([]Payload, 0, len(merged))

	for i, rec := range merged {
		if missing := missingMandatory(rec, p); len(missing) > 0 {
			issues = append(issues, RowIssue{
				RecordID: rec.ID,
				Row:      i + 1,
				Line:     rec.Line,
				Fields:   missing,
			})
			continue
		}
		payloads = append(payloads, strip(rec, p))
	}

	if len(issues) > 0 {
		return nil, &CommitError{Rows: issues}
	}
	return payloads, nil
}

func missingMandatory(rec Record, p *Profile) []string {
	var missing []string
	for _, f := range p.Mandatory {
		switch {
		case p.IsLinkField(f):
			if rec.Links[f] == nil {
				missing = append(missing, f)
			}
		case rec.Fields[f] == "" || rec.FieldErrors[f] != "":
			missing = append(missing, f)
		}
	}
	return missing
}

func strip(rec Record, p *Profile) Payload {
	out := Payload{
		Fields: make(map[string]string, len(rec.Fields)),
		Links:  make(map[string]*string, len(rec.Links)),
	}
	for k := range rec.Fields {
		if !p.IsDisplayOnly(k) {
			out.Fields[k] = p.ActiveValue(rec.Fields, k)
		}
	}
	for k, v := range rec.Links {
		out.Links[k] = v
	}
	return out
}

func cloneRecords(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
