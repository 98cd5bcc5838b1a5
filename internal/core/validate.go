package core

// validate.go checks records against a profile's picklists and date rule.
//
// Validation never fails. Problems are recorded in Record.FieldErrors and the
// record is kept so the user can correct it. Running Validate on its own
// output yields the same record, which lets merged drafts be re-checked.

import "slices"

// Fixed messages recorded in FieldErrors.
const (
	MsgInvalidPicklist = "Please select a valid value"
	MsgMilestoneDates  = "Start and End Date should be the same for Milestone."
	MsgEndBeforeStart  = "End Date cannot be before Start Date."
)

// Validate returns a copy of rec with picklists checked and the date rule
// evaluated. FieldErrors is rebuilt from scratch. Companion free-text is
// kept whatever the primary holds, so a later edit to "Other" brings it back.
func Validate(rec Record, p *Profile) Record {
	out := rec.Clone()
	out.FieldErrors = make(map[string]string)

	for _, pl := range p.Picklists {
		v := out.Fields[pl.Field]
		if v == "" || !slices.Contains(pl.Values, v) {
			out.Fields[pl.Field] = ""
			out.FieldErrors[pl.Field] = MsgInvalidPicklist
		}
	}

	if r := p.DateRule; r != nil {
		checkDates(&out, r)
	}

	return out
}

// checkDates applies the milestone rule when both dates are present.
// Dates are canonical YYYY-MM-DD, so string order is date order.
func checkDates(rec *Record, r *DateRule) {
	start, end := rec.Fields[r.StartField], rec.Fields[r.EndField]
	if start == "" || end == "" {
		return
	}

	if rec.Fields[r.CategoryField] == r.MilestoneValue {
		if start != end {
			rec.FieldErrors[r.EndField] = MsgMilestoneDates
		}
		return
	}

	if end < start {
		rec.FieldErrors[r.EndField] = MsgEndBeforeStart
	}
}

// ValidateAll validates every record and returns the 1-based positions of
// the records that carry field errors.
func ValidateAll(records []Record, p *Profile) ([]Record, []int) {
	out := make([]Record, len(records))
	var invalid []int
	for i, rec := range records {
		out[i] = Validate(rec, p)
		if out[i].HasErrors() {
			invalid = append(invalid, i+1)
		}
	}
	return out, invalid
}
