// Package store owns the versioned in-memory graph per
// (workspace, system) pair. All mutation goes through Apply, which
// enforces optimistic concurrency on the graph version and invalidates
// the snapshot cache before returning.
package store

import (
	"fmt"
	"sync"

	"github.com/archgraph/archgraph/pkg/formate"
	"github.com/archgraph/archgraph/pkg/model"
)

// CacheInvalidator is the one cross-component contract the store
// depends on: every successful apply invalidates the cached snapshot
// for that system synchronously, so no stale read window exists.
type CacheInvalidator interface {
	Invalidate(systemID string)
}

// ApplyEvent describes a committed mutation, handed to listeners
// (the synchronization hub) after the version has advanced.
type ApplyEvent struct {
	WorkspaceID string
	SystemID    string
	Version     int64
	Diff        *formate.Diff
}

type systemState struct {
	mu    sync.RWMutex
	graph *model.GraphState
}

// Store holds one GraphState per (workspace, system) pair. Writers are
// serialized per system; readers run concurrently under RLock and see
// either the pre- or post-diff state, never a mix.
type Store struct {
	mu      sync.RWMutex
	systems map[string]*systemState

	cache     CacheInvalidator
	listeners []func(ApplyEvent)
}

// NewStore creates an empty store. cache may be nil in tests.
func NewStore(cache CacheInvalidator) *Store {
	return &Store{
		systems: make(map[string]*systemState),
		cache:   cache,
	}
}

// OnApply registers a listener called after every committed mutation.
// Listeners must not block; the hub enqueues and returns.
func (s *Store) OnApply(fn func(ApplyEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func systemKey(workspaceID, systemID string) string {
	return workspaceID + "/" + systemID
}

// system returns the state for a pair, creating it at version 0 on
// first use.
func (s *Store) system(workspaceID, systemID string) *systemState {
	key := systemKey(workspaceID, systemID)

	s.mu.RLock()
	st, ok := s.systems[key]
	s.mu.RUnlock()
	if ok {
		return st
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok = s.systems[key]; ok {
		return st
	}
	st = &systemState{graph: model.NewGraphState(workspaceID, systemID)}
	s.systems[key] = st
	return st
}

// Apply commits a diff against the current graph. The whole diff is
// staged on a copy first: any blocking violation applies zero
// operations. On success the version advances by exactly one and the
// snapshot cache entry is invalidated before Apply returns.
func (s *Store) Apply(workspaceID, systemID string, diff *formate.Diff) (int64, error) {
	st := s.system(workspaceID, systemID)

	version, err := s.commit(st, systemID, diff)
	if err != nil {
		return 0, err
	}

	// Notify outside the per-system lock: listeners are free to read
	// the store (snapshots, versions) while handling the event.
	event := ApplyEvent{
		WorkspaceID: workspaceID,
		SystemID:    systemID,
		Version:     version,
		Diff:        diff,
	}
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(event)
	}

	return version, nil
}

// commit stages and swaps the graph under the per-system write lock,
// invalidating the cache before any reader can see the new version.
func (s *Store) commit(st *systemState, systemID string, diff *formate.Diff) (int64, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if diff.HasBase && diff.BaseVersion != st.graph.Version {
		return 0, &VersionConflictError{
			SystemID: systemID,
			Base:     diff.BaseVersion,
			Current:  st.graph.Version,
		}
	}

	staged := st.graph.Clone()
	for _, op := range diff.Ops {
		if err := applyOp(staged, op); err != nil {
			return 0, err
		}
	}

	staged.Version = st.graph.Version + 1
	st.graph = staged

	if s.cache != nil {
		s.cache.Invalidate(systemID)
	}

	return staged.Version, nil
}

func applyOp(g *model.GraphState, op formate.Operation) error {
	switch {
	case op.Node != nil && op.Kind == formate.OpAdd:
		if _, exists := g.Nodes[op.Node.SemanticID]; exists {
			return &DuplicateIDError{ID: op.Node.SemanticID}
		}
		n := *op.Node
		n.WorkspaceID = g.WorkspaceID
		n.SystemID = g.SystemID
		g.AddNode(&n)

	case op.Node != nil && op.Kind == formate.OpRemove:
		// Idempotent: removing an absent node is a no-op. Incident
		// edges go with the node so the graph never dangles.
		delete(g.Nodes, op.Node.SemanticID)
		for id, e := range g.Edges {
			if e.FromID == op.Node.SemanticID || e.ToID == op.Node.SemanticID {
				delete(g.Edges, id)
			}
		}

	case op.Edge != nil && op.Kind == formate.OpAdd:
		if _, ok := g.Nodes[op.Edge.FromID]; !ok {
			return &ReferenceError{EdgeID: op.Edge.SemanticID, MissingID: op.Edge.FromID}
		}
		if _, ok := g.Nodes[op.Edge.ToID]; !ok {
			return &ReferenceError{EdgeID: op.Edge.SemanticID, MissingID: op.Edge.ToID}
		}
		if _, exists := g.Edges[op.Edge.SemanticID]; exists {
			return &DuplicateIDError{ID: op.Edge.SemanticID}
		}
		e := *op.Edge
		e.WorkspaceID = g.WorkspaceID
		e.SystemID = g.SystemID
		g.AddEdge(&e)

	case op.Edge != nil && op.Kind == formate.OpRemove:
		delete(g.Edges, op.Edge.SemanticID)

	default:
		return fmt.Errorf("malformed operation: neither node nor edge set")
	}
	return nil
}

// Snapshot returns a read-only deep copy of the current graph. Callers
// must not expect later mutations to show up in the copy.
func (s *Store) Snapshot(workspaceID, systemID string) *model.GraphState {
	st := s.system(workspaceID, systemID)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.graph.Clone()
}

// Version returns the current version without copying the graph.
func (s *Store) Version(workspaceID, systemID string) int64 {
	st := s.system(workspaceID, systemID)
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.graph.Version
}

// SetView switches the active diagram perspective. View changes are
// not diffs: they do not advance the version.
func (s *Store) SetView(workspaceID, systemID string, view model.View) {
	st := s.system(workspaceID, systemID)
	st.mu.Lock()
	defer st.mu.Unlock()
	st.graph.CurrentView = view
}

// Restore replaces the graph for a pair wholesale, used when loading
// persisted state at startup. The cache entry is invalidated so the
// next read re-serializes.
func (s *Store) Restore(g *model.GraphState) {
	st := s.system(g.WorkspaceID, g.SystemID)
	st.mu.Lock()
	st.graph = g.Clone()
	st.mu.Unlock()

	if s.cache != nil {
		s.cache.Invalidate(g.SystemID)
	}
}
