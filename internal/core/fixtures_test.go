package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// testProfile is a small timeline-shaped profile used across the core tests.
func testProfile() *Profile {
	return &Profile{
		Key:   "tasks",
		Label: "Tasks",
		Table: "tasks",
		Columns: []Column{
			{Header: "Workstream", Field: "workstream", DBColumn: "workstream", Kind: KindPicklist},
			{Header: "Task", Field: "tasks", DBColumn: "task", Kind: KindPicklist},
			{Header: "Category", Field: "category", DBColumn: "category", Kind: KindPicklist},
			{Header: "Task (If Other)", Field: "taskIfOther", DBColumn: "task_if_other"},
			{Header: "Start Date", Field: "startDate", DBColumn: "start_date", Kind: KindDate},
			{Header: "End Date", Field: "endDate", DBColumn: "end_date", Kind: KindDate},
			{Header: "ACN Owner", Field: "acnOwnerName"},
			{Header: "Client Owner", Field: "clientOwnerName"},
			{Header: "Dependency", Field: "dependencyName"},
		},
		Significant: []string{"Workstream", "Task", "Category"},
		Picklists: []Picklist{
			{Field: "workstream", Values: []string{"Finance", "Tax", "Other"}},
			{Field: "tasks", Values: []string{"Reconcile", "Review", "Other"}},
			{Field: "category", Values: []string{"Task", "Milestone"}},
		},
		Companions: map[string]string{"tasks": "taskIfOther"},
		DateRule: &DateRule{
			CategoryField:  "category",
			StartField:     "startDate",
			EndField:       "endDate",
			MilestoneValue: "Milestone",
		},
		Owners: []OwnerLink{
			{NameField: "acnOwnerName", LinkField: "acnOwnerId", DBColumn: "acn_owner_id", Group: OwnerGroupA},
			{NameField: "clientOwnerName", LinkField: "clientOwnerId", DBColumn: "client_owner_id", Group: OwnerGroupB},
		},
		Dependency:        &DependencyLink{NameField: "dependencyName", LinkField: "dependencyId", DBColumn: "dependency_id"},
		DisplayNameFields: []string{"taskIfOther", "tasks"},
		Mandatory:         []string{"workstream", "tasks", "category", "startDate", "endDate"},
		DisplayOnly:       []string{"acnOwnerName", "clientOwnerName", "dependencyName"},
		ScopeField:        "closePlanId",
		ScopeDBColumn:     "close_plan_id",
	}
}

func validRow() RawRow {
	return RawRow{
		"Workstream":   "Finance",
		"Task":         "Reconcile",
		"Category":     "Task",
		"Start Date":   "2024-01-01",
		"End Date":     "2024-01-05",
		"ACN Owner":    "Jane Doe",
		"Client Owner": "Bob Roe",
	}
}

func sequentialIDs() IDFunc {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}
}

type fakeDecoder struct {
	rows []RawRow
	err  error
	// block, when set, is waited on before returning.
	block chan struct{}
}

func (d *fakeDecoder) Decode(ctx context.Context, _ string, r io.Reader) ([]RawRow, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	if d.block != nil {
		<-d.block
	}
	return d.rows, d.err
}

type fakeDirectory struct {
	mu      sync.Mutex
	calls   int
	queries []OwnerQuery
	result  ResolutionMap
	err     error
}

func (d *fakeDirectory) ResolveOwners(_ context.Context, q OwnerQuery) (ResolutionMap, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.queries = append(d.queries, q)
	if d.err != nil {
		return nil, d.err
	}
	return d.result, nil
}

func (d *fakeDirectory) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type fakeKnown struct {
	records []KnownRecord
	err     error
}

func (k *fakeKnown) KnownRecords(context.Context, *Profile, string) ([]KnownRecord, error) {
	return k.records, k.err
}

type fakeSaver struct {
	mu       sync.Mutex
	calls    int
	payloads []Payload
	scope    string
	err      error
}

func (s *fakeSaver) Save(_ context.Context, _ *Profile, scope string, payloads []Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.payloads = payloads
	s.scope = scope
	return nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
	events  []SessionEvent
}

func (n *recordingNotifier) Notify(_ string, notice Notice) {
	n.mu.Lock()
	n.notices = append(n.notices, notice)
	n.mu.Unlock()
}

func (n *recordingNotifier) SessionChanged(ev SessionEvent) {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
}

func (n *recordingNotifier) last() Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return Notice{}
	}
	return n.notices[len(n.notices)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func ptr(s string) *string { return &s }
