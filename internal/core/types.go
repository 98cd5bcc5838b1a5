package core

import (
	"context"
	"io"
	"strings"
	"time"
)

// OtherValue is the picklist sentinel that enables a companion free-text field.
const OtherValue = "Other"

// RawRow maps a spreadsheet column header to its cell text.
type RawRow map[string]string

// Record is one parsed spreadsheet row.
//
// Fields holds canonical values keyed by target field name. Links holds
// resolved identifiers; nil means the name could not be resolved.
// ID is session-local and never persisted.
type Record struct {
	ID          string             `json:"id"`
	Line        int                `json:"line"`
	Fields      map[string]string  `json:"fields"`
	Links       map[string]*string `json:"links"`
	FieldErrors map[string]string  `json:"fieldErrors"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	out := Record{
		ID:          r.ID,
		Line:        r.Line,
		Fields:      make(map[string]string, len(r.Fields)),
		Links:       make(map[string]*string, len(r.Links)),
		FieldErrors: make(map[string]string, len(r.FieldErrors)),
	}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	for k, v := range r.Links {
		if v != nil {
			id := *v
			out.Links[k] = &id
		} else {
			out.Links[k] = nil
		}
	}
	for k, v := range r.FieldErrors {
		out.FieldErrors[k] = v
	}
	return out
}

// HasErrors reports whether any field failed validation.
func (r Record) HasErrors() bool {
	return len(r.FieldErrors) > 0
}

// IsOther reports whether field holds the "Other" sentinel.
func (r Record) IsOther(field string) bool {
	return strings.EqualFold(r.Fields[field], OtherValue)
}

// Link returns the resolved identifier for field, or "" when unresolved.
func (r Record) Link(field string) string {
	if id := r.Links[field]; id != nil {
		return *id
	}
	return ""
}

// Patch is one record's pending field overrides.
type Patch map[string]string

// Edit is a single field change requested by the user.
type Edit struct {
	RecordID string `json:"recordId" validate:"required"`
	Field    string `json:"field" validate:"required"`
	Value    string `json:"value"`
}

// Payload is a merged record ready for persistence, with the session id and
// display-only fields removed.
type Payload struct {
	Fields map[string]string
	Links  map[string]*string
}

// KnownRecord is a row that already exists in the target table.
type KnownRecord struct {
	ID     string
	Fields map[string]string
}

// ResolutionMap maps a NameKey to an external identifier.
type ResolutionMap map[string]string

// OwnerQuery carries the distinct NameKeys of both owner groups.
type OwnerQuery struct {
	GroupA []string
	GroupB []string
}

// Size returns the total number of names in the query.
func (q OwnerQuery) Size() int {
	return len(q.GroupA) + len(q.GroupB)
}

// SheetDecoder turns an uploaded file into rows keyed by header.
type SheetDecoder interface {
	Decode(ctx context.Context, fileName string, r io.Reader) ([]RawRow, error)
}

// OwnerDirectory resolves owner names to identifiers in one round trip.
// Implementations must be idempotent and side-effect free.
type OwnerDirectory interface {
	ResolveOwners(ctx context.Context, q OwnerQuery) (ResolutionMap, error)
}

// KnownRecordSource lists records already persisted for a scope.
type KnownRecordSource interface {
	KnownRecords(ctx context.Context, p *Profile, scope string) ([]KnownRecord, error)
}

// RecordSaver persists a full commit. Save is all-or-nothing; failures
// should be returned as *SaveError carrying a user-readable message.
type RecordSaver interface {
	Save(ctx context.Context, p *Profile, scope string, payloads []Payload) error
}

// Severity classifies a Notice.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Notice is a transient user-facing message.
type Notice struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// SessionEvent is published on every session state transition.
type SessionEvent struct {
	SessionID string       `json:"sessionId"`
	Kind      string       `json:"kind"`
	State     SessionState `json:"state"`
	Records   int          `json:"records"`
	Pending   int          `json:"pending"`
	At        time.Time    `json:"at"`
}

// Notifier receives notices and session events. Delivery is best effort.
type Notifier interface {
	Notify(sessionID string, n Notice)
	SessionChanged(ev SessionEvent)
}

// Recorder receives pipeline measurements.
type Recorder interface {
	ImportFinished(profile, outcome string, parsed, dropped, invalid int)
	ResolutionObserved(profile string, d time.Duration, err error)
	CommitFinished(profile, outcome string, rows int)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, Notice) {}
func (nopNotifier) SessionChanged(SessionEvent) {}

type nopRecorder struct{}

func (nopRecorder) ImportFinished(string, string, int, int, int) {}
func (nopRecorder) ResolutionObserved(string, time.Duration, error) {}
func (nopRecorder) CommitFinished(string, string, int) {}
