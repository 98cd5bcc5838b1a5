package core

import "slices"

// FieldKind is the value type of a profile column.
type FieldKind int

const (
	KindText FieldKind = iota
	KindPicklist
	KindDate
)

func (k FieldKind) String() string {
	switch k {
	case KindPicklist:
		return "picklist"
	case KindDate:
		return "date"
	default:
		return "text"
	}
}

// Column maps one spreadsheet header to a record field.
type Column struct {
	Header   string    // Header text in the template
	Field    string    // Target field on Record.Fields
	DBColumn string    // Persistence column; empty for display-only fields
	Kind     FieldKind // Value type
}

// Picklist is the allowed value set of a constrained field.
type Picklist struct {
	Field  string
	Values []string
}

// DateRule is the category/start/end cross-field check.
type DateRule struct {
	CategoryField  string
	StartField     string
	EndField       string
	MilestoneValue string
}

// OwnerGroup selects which name set an owner lookup belongs to.
type OwnerGroup int

const (
	OwnerGroupA OwnerGroup = iota
	OwnerGroupB
)

// OwnerLink resolves a name field to an identifier through the OwnerDirectory.
type OwnerLink struct {
	NameField string
	LinkField string
	DBColumn  string
	Group     OwnerGroup
}

// DependencyLink resolves a name field against records already persisted.
type DependencyLink struct {
	NameField string
	LinkField string
	DBColumn  string
}

// Profile describes one import kind: the template columns, how rows are
// validated and linked, and where committed rows are stored.
type Profile struct {
	Key   string
	Label string
	Table string

	Columns     []Column
	Significant []string // Headers; a row blank across all of them is dropped
	Picklists   []Picklist
	Companions  map[string]string // Picklist field -> free-text field used when it is "Other"
	DateRule    *DateRule

	Owners     []OwnerLink
	Dependency *DependencyLink

	// DisplayNameFields names a known record, first non-empty wins.
	DisplayNameFields []string

	Mandatory   []string
	DisplayOnly []string
	Defaults    map[string]string
	Fallbacks   map[string]string // Field -> field copied from when empty

	ScopeField    string // Filled from the session scope when empty
	ScopeDBColumn string // Used when ScopeField is not one of Columns
}

// StoreColumn is one persisted column in COPY order.
type StoreColumn struct {
	Field    string
	DBColumn string
	Kind     FieldKind
	Link     bool
}

// Headers returns the template header row.
func (p *Profile) Headers() []string {
	out := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		out[i] = c.Header
	}
	return out
}

// Column returns the column definition for field.
func (p *Profile) Column(field string) (Column, bool) {
	for _, c := range p.Columns {
		if c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

// Allowed returns the picklist values for field, or nil if unconstrained.
func (p *Profile) Allowed(field string) []string {
	for _, pl := range p.Picklists {
		if pl.Field == field {
			return pl.Values
		}
	}
	return nil
}

// IsPicklist reports whether field is constrained to an allowed set.
func (p *Profile) IsPicklist(field string) bool {
	for _, pl := range p.Picklists {
		if pl.Field == field {
			return true
		}
	}
	return false
}

// IsDateField reports whether field holds a date.
func (p *Profile) IsDateField(field string) bool {
	c, ok := p.Column(field)
	return ok && c.Kind == KindDate
}

// IsLinkField reports whether field is a resolved identifier.
func (p *Profile) IsLinkField(field string) bool {
	for _, o := range p.Owners {
		if o.LinkField == field {
			return true
		}
	}
	return p.Dependency != nil && p.Dependency.LinkField == field
}

// IsDisplayOnly reports whether field is stripped before persistence.
func (p *Profile) IsDisplayOnly(field string) bool {
	return slices.Contains(p.DisplayOnly, field)
}

// Editable reports whether a user edit may target field.
func (p *Profile) Editable(field string) bool {
	if _, ok := p.Column(field); ok {
		return true
	}
	return p.IsLinkField(field) || (p.ScopeField != "" && field == p.ScopeField)
}

// LinkFields returns every resolved identifier field.
func (p *Profile) LinkFields() []string {
	var out []string
	for _, o := range p.Owners {
		out = append(out, o.LinkField)
	}
	if p.Dependency != nil {
		out = append(out, p.Dependency.LinkField)
	}
	return out
}

// DisplayName returns the name a dependency reference is matched against.
// A companion counts only while its primary holds "Other".
func (p *Profile) DisplayName(fields map[string]string) string {
	for _, f := range p.DisplayNameFields {
		if v := p.ActiveValue(fields, f); v != "" {
			return v
		}
	}
	return ""
}

// CompanionOf returns the picklist field whose "Other" enables field.
func (p *Profile) CompanionOf(field string) (string, bool) {
	for primary, companion := range p.Companions {
		if companion == field {
			return primary, true
		}
	}
	return "", false
}

// ActiveValue returns fields[field], or "" for a companion whose primary
// is not "Other".
func (p *Profile) ActiveValue(fields map[string]string, field string) string {
	if primary, ok := p.CompanionOf(field); ok && !(Record{Fields: fields}).IsOther(primary) {
		return ""
	}
	return fields[field]
}

// StoreColumns returns the persisted columns in a stable order: template
// columns, then owner links, then the dependency link, then the scope.
func (p *Profile) StoreColumns() []StoreColumn {
	var out []StoreColumn
	scopeCovered := p.ScopeField == ""
	for _, c := range p.Columns {
		if c.DBColumn == "" || p.IsDisplayOnly(c.Field) {
			continue
		}
		if c.Field == p.ScopeField {
			scopeCovered = true
		}
		out = append(out, StoreColumn{Field: c.Field, DBColumn: c.DBColumn, Kind: c.Kind})
	}
	for _, o := range p.Owners {
		out = append(out, StoreColumn{Field: o.LinkField, DBColumn: o.DBColumn, Link: true})
	}
	if d := p.Dependency; d != nil {
		out = append(out, StoreColumn{Field: d.LinkField, DBColumn: d.DBColumn, Link: true})
	}
	if !scopeCovered {
		out = append(out, StoreColumn{Field: p.ScopeField, DBColumn: p.ScopeDBColumn})
	}
	return out
}

// withPicklists returns a copy of p whose allowed values are replaced for
// every field present in values.
func (p *Profile) withPicklists(values map[string][]string) *Profile {
	cp := *p
	cp.Picklists = make([]Picklist, len(p.Picklists))
	for i, pl := range p.Picklists {
		if v, ok := values[pl.Field]; ok {
			pl.Values = slices.Clone(v)
		}
		cp.Picklists[i] = pl
	}
	return &cp
}
