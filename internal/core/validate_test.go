package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func parsedRecord(t *testing.T, row RawRow) Record {
	t.Helper()
	recs := ParseRows([]RawRow{row}, testProfile(), "", sequentialIDs())
	if len(recs) != 1 {
		t.Fatalf("ParseRows returned %d records, want 1", len(recs))
	}
	return recs[0]
}

func TestValidate_Picklists(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantValue string
		wantErr   bool
	}{
		{"allowed", "Finance", "Finance", false},
		{"wrong case", "finance", "", true},
		{"not listed", "Legal", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			row["Workstream"] = tt.value
			row["Task"] = "Reconcile"
			got := Validate(parsedRecord(t, row), testProfile())

			assert.Equal(t, tt.wantValue, got.Fields["workstream"])
			if tt.wantErr {
				assert.Equal(t, MsgInvalidPicklist, got.FieldErrors["workstream"])
			} else {
				assert.NotContains(t, got.FieldErrors, "workstream")
			}
		})
	}
}

func TestValidate_OtherCompanion(t *testing.T) {
	row := validRow()
	row["Task"] = "Other"
	row["Task (If Other)"] = "Custom close step"
	got := Validate(parsedRecord(t, row), testProfile())

	assert.True(t, got.IsOther("tasks"))
	assert.Equal(t, "Custom close step", got.Fields["taskIfOther"])
	assert.False(t, got.HasErrors())

	row["Task"] = "Review"
	got = Validate(parsedRecord(t, row), testProfile())
	assert.False(t, got.IsOther("tasks"))
	assert.Equal(t, "Custom close step", got.Fields["taskIfOther"], "companion text is kept")
	assert.Equal(t, "Review", testProfile().DisplayName(got.Fields))
}

func TestValidate_DateRule(t *testing.T) {
	tests := []struct {
		name     string
		category string
		start    string
		end      string
		wantErr  string
	}{
		{"milestone same day", "Milestone", "2024-02-01", "2024-02-01", ""},
		{"milestone spans days", "Milestone", "2024-02-01", "2024-02-03", MsgMilestoneDates},
		{"task in order", "Task", "2024-02-01", "2024-02-03", ""},
		{"task same day", "Task", "2024-02-01", "2024-02-01", ""},
		{"task reversed", "Task", "2024-02-03", "2024-02-01", MsgEndBeforeStart},
		{"missing end", "Task", "2024-02-03", "", ""},
		{"missing start", "Milestone", "", "2024-02-03", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			row["Category"] = tt.category
			row["Start Date"] = tt.start
			row["End Date"] = tt.end
			got := Validate(parsedRecord(t, row), testProfile())

			assert.Equal(t, tt.wantErr, got.FieldErrors["endDate"])
			assert.NotContains(t, got.FieldErrors, "startDate")
		})
	}
}

func TestValidate_Idempotent(t *testing.T) {
	row := validRow()
	row["Workstream"] = "Bogus"
	row["Category"] = "Milestone"
	p := testProfile()

	once := Validate(parsedRecord(t, row), p)
	twice := Validate(once, p)

	assert.Equal(t, once, twice)
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	row := validRow()
	row["Workstream"] = "Bogus"
	rec := parsedRecord(t, row)

	_ = Validate(rec, testProfile())

	assert.Equal(t, "Bogus", rec.Fields["workstream"])
	assert.Empty(t, rec.FieldErrors)
}

func TestValidateAll_InvalidPositions(t *testing.T) {
	p := testProfile()
	bad := validRow()
	bad["Category"] = "Unknown"
	recs := ParseRows([]RawRow{validRow(), bad, validRow(), bad}, p, "", sequentialIDs())

	_, invalid := ValidateAll(recs, p)

	assert.Equal(t, []int{2, 4}, invalid)
}
