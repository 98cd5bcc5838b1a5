package core

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Sentinel errors returned by the service. Callers should test with errors.Is.
var (
	ErrSessionNotFound   = errors.New("import session not found")
	ErrSessionBusy       = errors.New("import session is busy")
	ErrUnknownProfile    = errors.New("unknown import profile")
	ErrRecordNotFound    = errors.New("record not found")
	ErrUnknownField      = errors.New("unknown field")
	ErrNothingToCommit   = errors.New("no records to commit")
	ErrNoFile            = errors.New("no file provided")
	ErrEmptyFile         = errors.New("empty file")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// DecodeError reports a spreadsheet that could not be read.
type DecodeError struct {
	FileName string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode spreadsheet %s: %v", e.FileName, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ResolutionError reports a failed owner lookup. The import that triggered it
// is discarded as a whole.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return "owner resolution failed: " + e.Err.Error()
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SaveError is the persistence collaborator's structured failure.
// Message is safe to show to the user.
type SaveError struct {
	Message string
	Err     error
}

func (e *SaveError) Error() string {
	if e.Err == nil {
		return "save failed: " + e.Message
	}
	return fmt.Sprintf("save failed: %s: %v", e.Message, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// RowIssue names one record that blocks a commit.
type RowIssue struct {
	RecordID string   `json:"recordId"`
	Row      int      `json:"row"`
	Line     int      `json:"line"`
	Fields   []string `json:"fields"`
}

// CommitError lists every record that blocks a commit, in display order.
type CommitError struct {
	Rows []RowIssue
}

func (e *CommitError) Error() string {
	rows := make([]string, len(e.Rows))
	for i, r := range e.Rows {
		rows[i] = strconv.Itoa(r.Row)
	}
	return fmt.Sprintf("commit refused: mandatory fields missing or invalid on rows %s", strings.Join(rows, ", "))
}

// RowNumbers returns the 1-based display rows that block the commit.
func (e *CommitError) RowNumbers() []int {
	out := make([]int, len(e.Rows))
	for i, r := range e.Rows {
		out[i] = r.Row
	}
	sort.Ints(out)
	return out
}
