package store

import "fmt"

// VersionConflictError rejects a diff whose base snapshot is stale.
// The diff is dropped wholesale; recomputing against the new version
// is the caller's responsibility.
type VersionConflictError struct {
	SystemID string
	Base     int64
	Current  int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s: diff based on v%d, store is at v%d", e.SystemID, e.Base, e.Current)
}

// DuplicateIDError rejects an add for a semantic ID that already
// exists in the graph.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate semantic id: %s", e.ID)
}

// ReferenceError rejects an edge whose endpoint does not exist at
// application time. Dangling references are never silently dropped.
type ReferenceError struct {
	EdgeID    string
	MissingID string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("edge %q references missing node %s", e.EdgeID, e.MissingID)
}
