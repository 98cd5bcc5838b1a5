package core

// resolve.go attaches identifiers to owner and dependency names.
//
// Owner names from every record are deduplicated per group and sent to the
// OwnerDirectory in a single call, so an import costs one round trip no
// matter how many rows it has. Dependency names are matched locally against
// the records that already existed when the import started.

import (
	"context"
	"sort"
)

// Resolver resolves the link fields of a batch of records.
type Resolver struct {
	Directory OwnerDirectory
}

// NewResolver creates a Resolver backed by dir.
func NewResolver(dir OwnerDirectory) *Resolver {
	return &Resolver{Directory: dir}
}

// OwnerQueryFor collects the distinct non-empty NameKeys of each owner group.
// Keys are sorted so identical batches produce identical queries.
func OwnerQueryFor(records []Record, p *Profile) OwnerQuery {
	groups := map[OwnerGroup]map[string]struct{}{
		OwnerGroupA: {},
		OwnerGroupB: {},
	}
	for _, rec := range records {
		for _, o := range p.Owners {
			if key := NameKey(rec.Fields[o.NameField]); key != "" {
				groups[o.Group][key] = struct{}{}
			}
		}
	}
	return OwnerQuery{
		GroupA: sortedKeys(groups[OwnerGroupA]),
		GroupB: sortedKeys(groups[OwnerGroupB]),
	}
}

// Resolve returns copies of records with every link field set to its
// identifier or nil. A directory failure is returned as *ResolutionError and
// no record is changed.
func (r *Resolver) Resolve(ctx context.Context, p *Profile, records []Record, known []KnownRecord) ([]Record, error) {
	owners := ResolutionMap{}
	if len(p.Owners) > 0 {
		q := OwnerQueryFor(records, p)
		got, err := r.Directory.ResolveOwners(ctx, q)
		if err != nil {
			return nil, &ResolutionError{Err: err}
		}
		owners = filterResolution(got, q)
	}

	deps := dependencyIndex(known, p)

	out := make([]Record, len(records))
	for i, rec := range records {
		res := rec.Clone()
		for _, o := range p.Owners {
			res.Links[o.LinkField] = lookup(owners, rec.Fields[o.NameField])
		}
		if d := p.Dependency; d != nil {
			res.Links[d.LinkField] = lookup(deps, rec.Fields[d.NameField])
		}
		out[i] = res
	}
	return out, nil
}

// filterResolution drops any key the query did not ask for.
func filterResolution(m ResolutionMap, q OwnerQuery) ResolutionMap {
	out := make(ResolutionMap, q.Size())
	for _, names := range [][]string{q.GroupA, q.GroupB} {
		for _, key := range names {
			if id, ok := m[key]; ok && id != "" {
				out[key] = id
			}
		}
	}
	return out
}

// dependencyIndex maps known record display names to ids. The first record
// with a given name wins.
func dependencyIndex(known []KnownRecord, p *Profile) ResolutionMap {
	idx := make(ResolutionMap, len(known))
	if p.Dependency == nil {
		return idx
	}
	for _, k := range known {
		key := NameKey(p.DisplayName(k.Fields))
		if key == "" {
			continue
		}
		if _, taken := idx[key]; !taken {
			idx[key] = k.ID
		}
	}
	return idx
}

func lookup(m ResolutionMap, name string) *string {
	key := NameKey(name)
	if key == "" {
		return nil
	}
	id, ok := m[key]
	if !ok {
		return nil
	}
	return &id
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
