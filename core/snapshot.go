package core

import (
	"context"
)

// BuildSnapshot lists one kind on one connection and projects it into a
// name -> content mapping, keeping only entities visible under the
// connection's active namespace scope. Entities with no scoping attributes
// are always included. A backend listing failure propagates as a
// connectivity error; it is not retried here.
func BuildSnapshot(ctx context.Context, conn Connection, kind Kind) (Snapshot, error) {
	if conn == nil {
		return nil, ErrMissingConnection
	}
	if err := kind.Validate(); err != nil {
		return nil, err
	}

	entities, err := conn.List(ctx, kind)
	if err != nil {
		return nil, ConnectivityError(err, "core: list "+kind.String()+" entities", map[string]any{
			"connection": conn.Name(),
			"kind":       kind.String(),
		})
	}

	namespace := conn.Namespace()
	snapshot := make(Snapshot, len(entities))
	for _, entity := range entities {
		if !namespace.Matches(entity.Access) {
			continue
		}
		snapshot[entity.Name] = entity.Content
	}
	return snapshot, nil
}

// SnapshotPair fetches fresh source and destination snapshots and diffs
// them. The dispatcher calls this at every phase boundary so later phases
// observe the effects of earlier ones.
func SnapshotPair(ctx context.Context, src, dest Connection, kind Kind) (ChangeSet, error) {
	sourceSnapshot, err := BuildSnapshot(ctx, src, kind)
	if err != nil {
		return ChangeSet{}, err
	}
	destSnapshot, err := BuildSnapshot(ctx, dest, kind)
	if err != nil {
		return ChangeSet{}, err
	}
	return Diff(sourceSnapshot, destSnapshot), nil
}
