package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/closeplan/internal/core"
)

// Owner group labels stored in owners.owner_group.
const (
	GroupACN    = "acn"
	GroupClient = "client"
)

const ownersByNameSQL = `SELECT id, name FROM owners WHERE owner_group = $1 AND lower(btrim(name)) = ANY($2)`

// OwnerDirectory resolves owner names against the owners table.
type OwnerDirectory struct {
	db DB
}

// NewOwnerDirectory creates an OwnerDirectory over db.
func NewOwnerDirectory(db DB) *OwnerDirectory {
	return &OwnerDirectory{db: db}
}

// ResolveOwners looks up both owner groups in one batch round trip.
// Names that match nothing are absent from the result. When a name exists
// in both groups the group A identifier is kept.
func (d *OwnerDirectory) ResolveOwners(ctx context.Context, q core.OwnerQuery) (core.ResolutionMap, error) {
	out := make(core.ResolutionMap, q.Size())
	if q.Size() == 0 {
		return out, nil
	}

	groups := []struct {
		label string
		names []string
	}{
		{GroupACN, q.GroupA},
		{GroupClient, q.GroupB},
	}

	batch := &pgx.Batch{}
	for _, g := range groups {
		batch.Queue(ownersByNameSQL, g.label, g.names)
	}

	br := d.db.SendBatch(ctx, batch)
	defer br.Close()

	for _, g := range groups {
		rows, err := br.Query()
		if err != nil {
			return nil, fmt.Errorf("resolve %s owners: %w", g.label, err)
		}
		err = collectOwners(rows, g.label, out)
		if err != nil {
			return nil, fmt.Errorf("resolve %s owners: %w", g.label, err)
		}
	}

	slog.Debug("owners resolved", "requested", q.Size(), "found", len(out))
	return out, nil
}

// collectOwners adds each row to out unless its key is already present.
func collectOwners(rows pgx.Rows, group string, out core.ResolutionMap) error {
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return err
		}
		key := core.NameKey(name)
		if kept, taken := out[key]; taken {
			if kept != id {
				slog.Debug("owner name matched more than once", "name", key, "group", group, "kept", kept, "ignored", id)
			}
			continue
		}
		out[key] = id
	}
	return rows.Err()
}
