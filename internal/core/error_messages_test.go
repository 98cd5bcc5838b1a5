package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantMessage string
	}{
		{
			name: "nil error returns empty",
			err:  nil,
		},
		{
			name:        "duplicate key maps correctly",
			err:         errors.New("ERROR: duplicate key value violates unique constraint \"timeline_tasks_pkey\""),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
		{
			name:        "foreign key maps correctly",
			err:         errors.New("insert violates foreign key constraint"),
			wantCode:    "DB003",
			wantMessage: "Referenced record does not exist",
		},
		{
			name:        "connection refused maps correctly",
			err:         errors.New("dial tcp: connection refused"),
			wantCode:    "DB004",
			wantMessage: "Unable to connect to database",
		},
		{
			name:        "deadline maps before generic timeout",
			err:         fmt.Errorf("resolve owners: %w", context.DeadlineExceeded),
			wantCode:    "IMP007",
			wantMessage: "Request timed out",
		},
		{
			name:        "wrapped sentinel maps through errors.Is",
			err:         fmt.Errorf("import: %w", ErrSessionBusy),
			wantCode:    "IMP002",
			wantMessage: "This import is still being processed",
		},
		{
			name:        "limiter rejection",
			err:         ErrTooManyImports,
			wantCode:    "IMP003",
			wantMessage: "Too many imports in progress",
		},
		{
			name:        "file too large",
			err:         fmt.Errorf("%w: 30MB exceeds limit", ErrFileTooLarge),
			wantCode:    "FILE001",
			wantMessage: "File exceeds maximum size limit",
		},
		{
			name:        "resolution error",
			err:         &ResolutionError{Err: errors.New("directory offline")},
			wantCode:    "RES001",
			wantMessage: "Failed to resolve ACN/Client Owner IDs",
		},
		{
			name:        "save error keeps collaborator message",
			err:         &SaveError{Message: "Required field missing: Stage__c"},
			wantCode:    "SAV001",
			wantMessage: "Required field missing: Stage__c",
		},
		{
			name:        "save error without message uses fallback",
			err:         &SaveError{Err: errors.New("boom")},
			wantCode:    "SAV001",
			wantMessage: GenericSaveFailure,
		},
		{
			name:        "commit refusal counts rows",
			err:         &CommitError{Rows: []RowIssue{{Row: 1}, {Row: 3}}},
			wantCode:    "VAL003",
			wantMessage: "2 rows have missing or invalid mandatory fields",
		},
		{
			name:        "rate limit maps correctly",
			err:         errors.New("rate limit exceeded"),
			wantCode:    "RATE001",
			wantMessage: "Too many requests",
		},
		{
			name:        "unknown error returns default",
			err:         errors.New("some random internal error"),
			wantCode:    "ERR000",
			wantMessage: "An unexpected error occurred",
		},
		{
			name:        "case insensitive matching",
			err:         errors.New("DUPLICATE KEY value violates"),
			wantCode:    "DB001",
			wantMessage: "A record with this ID already exists",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.Message != tt.wantMessage {
				t.Errorf("MapError() message = %q, want %q", got.Message, tt.wantMessage)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrSessionNotFound)

	expected := "Import session not found (Code: IMP001). The session may have expired. Please start a new import"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", errors.New("duplicate key"), true},
		{"sentinel is user facing", ErrUnknownProfile, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommitError(t *testing.T) {
	err := &CommitError{Rows: []RowIssue{
		{Row: 4, Fields: []string{"stage"}},
		{Row: 2, Fields: []string{"reviewDate"}},
	}}

	want := "commit refused: mandatory fields missing or invalid on rows 4, 2"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if got := err.RowNumbers(); len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("RowNumbers() = %v, want [2 4]", got)
	}
}
