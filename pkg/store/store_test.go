package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/archgraph/archgraph/pkg/formate"
	"github.com/archgraph/archgraph/pkg/model"
)

type recordingCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *recordingCache) Invalidate(systemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, systemID)
}

func addNodeOp(name string, t model.NodeType, seq int) formate.Operation {
	id := model.FormatSemanticID(name, t, seq)
	return formate.Operation{
		Kind: formate.OpAdd,
		Node: &model.Node{SemanticID: id, Type: t, Name: name, Description: "d"},
	}
}

func removeNodeOp(id string) formate.Operation {
	return formate.Operation{Kind: formate.OpRemove, Node: &model.Node{SemanticID: id}}
}

func addEdgeOp(fromID, toID string) formate.Operation {
	return formate.Operation{
		Kind: formate.OpAdd,
		Edge: &model.Edge{
			SemanticID: formate.EdgeKey(fromID, model.EdgeRelation, toID),
			Type:       model.EdgeRelation,
			FromID:     fromID,
			ToID:       toID,
		},
	}
}

func TestApplyAdvancesVersionByOne(t *testing.T) {
	s := NewStore(nil)

	for i := 1; i <= 5; i++ {
		diff := &formate.Diff{Ops: []formate.Operation{addNodeOp("N", model.NodeFunction, i)}}
		v, err := s.Apply("ws", "Sys.SY.001", diff)
		if err != nil {
			t.Fatalf("apply %d failed: %v", i, err)
		}
		if v != int64(i) {
			t.Fatalf("version after apply %d = %d, want %d", i, v, i)
		}
	}
}

func TestApplyVersionConflict(t *testing.T) {
	s := NewStore(nil)

	// Empty store is at v0, so a diff pinned to v1 must be rejected
	// no matter what it contains.
	diff := &formate.Diff{
		HasBase:      true,
		BaseSystemID: "Sys.SY.001",
		BaseVersion:  1,
	}
	_, err := s.Apply("ws", "Sys.SY.001", diff)
	var conflict *VersionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected VersionConflictError, got %v", err)
	}
	if conflict.Base != 1 || conflict.Current != 0 {
		t.Errorf("conflict detail = %+v", conflict)
	}

	// Pinned to the right version it goes through.
	diff = &formate.Diff{
		HasBase:     true,
		BaseVersion: 0,
		Ops:         []formate.Operation{addNodeOp("Pay", model.NodeFunction, 1)},
	}
	if _, err := s.Apply("ws", "Sys.SY.001", diff); err != nil {
		t.Fatalf("pinned apply failed: %v", err)
	}
}

func TestApplyDuplicateID(t *testing.T) {
	s := NewStore(nil)

	diff := &formate.Diff{Ops: []formate.Operation{addNodeOp("Pay", model.NodeFunction, 1)}}
	if _, err := s.Apply("ws", "Sys.SY.001", diff); err != nil {
		t.Fatalf("first apply failed: %v", err)
	}

	_, err := s.Apply("ws", "Sys.SY.001", diff)
	var dup *DuplicateIDError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateIDError, got %v", err)
	}
	if s.Version("ws", "Sys.SY.001") != 1 {
		t.Errorf("failed apply must not advance the version")
	}
}

func TestApplyDanglingEdge(t *testing.T) {
	s := NewStore(nil)

	diff := &formate.Diff{Ops: []formate.Operation{addEdgeOp("A.FN.001", "B.FN.002")}}
	_, err := s.Apply("ws", "Sys.SY.001", diff)
	var ref *ReferenceError
	if !errors.As(err, &ref) {
		t.Fatalf("expected ReferenceError, got %v", err)
	}
	if ref.MissingID != "A.FN.001" {
		t.Errorf("missing id = %s, want A.FN.001", ref.MissingID)
	}
}

func TestApplyIsAtomic(t *testing.T) {
	s := NewStore(nil)

	// Second op fails, so the first must not stick.
	diff := &formate.Diff{Ops: []formate.Operation{
		addNodeOp("Pay", model.NodeFunction, 1),
		addEdgeOp("Pay.FN.001", "Missing.FN.009"),
	}}
	if _, err := s.Apply("ws", "Sys.SY.001", diff); err == nil {
		t.Fatal("expected apply to fail")
	}

	snap := s.Snapshot("ws", "Sys.SY.001")
	if len(snap.Nodes) != 0 {
		t.Errorf("partial diff applied: %d nodes", len(snap.Nodes))
	}
	if snap.Version != 0 {
		t.Errorf("version advanced on failed apply: %d", snap.Version)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := NewStore(nil)

	setup := &formate.Diff{Ops: []formate.Operation{addNodeOp("Pay", model.NodeFunction, 1)}}
	if _, err := s.Apply("ws", "Sys.SY.001", setup); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	remove := &formate.Diff{Ops: []formate.Operation{removeNodeOp("Pay.FN.001")}}
	if _, err := s.Apply("ws", "Sys.SY.001", remove); err != nil {
		t.Fatalf("first remove failed: %v", err)
	}
	after1 := s.Snapshot("ws", "Sys.SY.001")

	// Removing again is a no-op, not a failure, and yields the same
	// node/edge sets.
	remove2 := &formate.Diff{Ops: []formate.Operation{removeNodeOp("Pay.FN.001")}}
	if _, err := s.Apply("ws", "Sys.SY.001", remove2); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}
	after2 := s.Snapshot("ws", "Sys.SY.001")

	if len(after1.Nodes) != 0 || len(after2.Nodes) != 0 {
		t.Errorf("node not removed: %d / %d", len(after1.Nodes), len(after2.Nodes))
	}
}

func TestRemoveNodeDropsIncidentEdges(t *testing.T) {
	s := NewStore(nil)

	setup := &formate.Diff{Ops: []formate.Operation{
		addNodeOp("A", model.NodeFunction, 1),
		addNodeOp("B", model.NodeFunction, 2),
		addEdgeOp("A.FN.001", "B.FN.002"),
	}}
	if _, err := s.Apply("ws", "Sys.SY.001", setup); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	remove := &formate.Diff{Ops: []formate.Operation{removeNodeOp("A.FN.001")}}
	if _, err := s.Apply("ws", "Sys.SY.001", remove); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	snap := s.Snapshot("ws", "Sys.SY.001")
	if len(snap.Edges) != 0 {
		t.Errorf("incident edge survived node removal")
	}
}

func TestApplyInvalidatesCache(t *testing.T) {
	cache := &recordingCache{}
	s := NewStore(cache)

	diff := &formate.Diff{Ops: []formate.Operation{addNodeOp("Pay", model.NodeFunction, 1)}}
	if _, err := s.Apply("ws", "Sys.SY.001", diff); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if len(cache.invalidated) != 1 || cache.invalidated[0] != "Sys.SY.001" {
		t.Errorf("cache not invalidated on apply: %v", cache.invalidated)
	}

	// A rejected diff must not touch the cache.
	if _, err := s.Apply("ws", "Sys.SY.001", diff); err == nil {
		t.Fatal("expected duplicate error")
	}
	if len(cache.invalidated) != 1 {
		t.Errorf("cache invalidated on failed apply: %v", cache.invalidated)
	}
}

func TestSnapshotIsIsolatedCopy(t *testing.T) {
	s := NewStore(nil)

	diff := &formate.Diff{Ops: []formate.Operation{addNodeOp("Pay", model.NodeFunction, 1)}}
	if _, err := s.Apply("ws", "Sys.SY.001", diff); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	snap := s.Snapshot("ws", "Sys.SY.001")
	snap.Nodes["Pay.FN.001"].Name = "Mutated"

	if s.Snapshot("ws", "Sys.SY.001").Nodes["Pay.FN.001"].Name != "Pay" {
		t.Errorf("snapshot mutation leaked into store")
	}
}

func TestOnApplyListener(t *testing.T) {
	s := NewStore(nil)

	var events []ApplyEvent
	s.OnApply(func(e ApplyEvent) { events = append(events, e) })

	diff := &formate.Diff{Ops: []formate.Operation{addNodeOp("Pay", model.NodeFunction, 1)}}
	if _, err := s.Apply("ws", "Sys.SY.001", diff); err != nil {
		t.Fatalf("apply failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Version != 1 || events[0].SystemID != "Sys.SY.001" {
		t.Errorf("unexpected event: %+v", events[0])
	}
}

func TestListenerCanReadTheStore(t *testing.T) {
	s := NewStore(nil)

	// The hub-facing listener re-reads the store to size its broadcast;
	// Apply must not still hold the per-system lock when it fires.
	var seenVersion int64
	var seenNodes int
	s.OnApply(func(e ApplyEvent) {
		snap := s.Snapshot("ws", "Sys.SY.001")
		seenVersion = s.Version("ws", "Sys.SY.001")
		seenNodes = len(snap.Nodes)
	})

	diff := &formate.Diff{Ops: []formate.Operation{addNodeOp("Pay", model.NodeFunction, 1)}}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := s.Apply("ws", "Sys.SY.001", diff); err != nil {
			t.Errorf("apply failed: %v", err)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("apply blocked while notifying a listener that reads the store")
	}

	if seenVersion != 1 || seenNodes != 1 {
		t.Errorf("listener saw v%d with %d nodes, want v1 with 1 node", seenVersion, seenNodes)
	}
}

func TestConcurrentAppliesNeverShareAVersion(t *testing.T) {
	s := NewStore(nil)

	const writers = 8
	var wg sync.WaitGroup
	versions := make(chan int64, writers)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			diff := &formate.Diff{Ops: []formate.Operation{addNodeOp("N", model.NodeFunction, i+1)}}
			if v, err := s.Apply("ws", "Sys.SY.001", diff); err == nil {
				versions <- v
			}
		}(i)
	}
	wg.Wait()
	close(versions)

	seen := make(map[int64]bool)
	for v := range versions {
		if seen[v] {
			t.Fatalf("version %d assigned twice", v)
		}
		seen[v] = true
	}
}
