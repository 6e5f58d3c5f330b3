package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/archgraph/archgraph/pkg/model"
)

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) *GraphDB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "archgraph.db")
	db, err := NewGraphDB(dbPath)
	if err != nil {
		t.Fatalf("NewGraphDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func savedGraph(workspaceID, systemID string) *model.GraphState {
	g := model.NewGraphState(workspaceID, systemID)
	g.Version = 7
	g.CurrentView = model.ViewFunctional
	g.AddNode(&model.Node{
		SemanticID:  "Pay.FN.001",
		Type:        model.NodeFunction,
		Name:        "Pay",
		Description: "Processes payments",
		WorkspaceID: workspaceID,
		SystemID:    systemID,
	})
	g.AddNode(&model.Node{
		SemanticID:  "Checkout.SY.001",
		Type:        model.NodeSystem,
		Name:        "Checkout",
		Description: "Checkout system",
		WorkspaceID: workspaceID,
		SystemID:    systemID,
	})
	g.AddEdge(&model.Edge{
		SemanticID:  "Checkout.SY.001 -cp-> Pay.FN.001",
		Type:        model.EdgeComposition,
		FromID:      "Checkout.SY.001",
		ToID:        "Pay.FN.001",
		WorkspaceID: workspaceID,
		SystemID:    systemID,
	})
	return g
}

func TestPersistLoadRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	saved := savedGraph("ws", "Checkout.SY.001")
	if err := db.Persist(ctx, saved); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	loaded, ok, err := db.Load(ctx, "ws", "Checkout.SY.001")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !ok {
		t.Fatalf("expected a saved graph")
	}

	if loaded.Version != 7 {
		t.Errorf("version = %d, want 7", loaded.Version)
	}
	if loaded.CurrentView != model.ViewFunctional {
		t.Errorf("view = %s, want functional", loaded.CurrentView)
	}
	if len(loaded.Nodes) != 2 || len(loaded.Edges) != 1 {
		t.Errorf("graph = %d nodes / %d edges, want 2/1", len(loaded.Nodes), len(loaded.Edges))
	}
	n, ok := loaded.Nodes["Pay.FN.001"]
	if !ok {
		t.Fatalf("Pay.FN.001 missing after load")
	}
	if n.Type != model.NodeFunction || n.Description != "Processes payments" {
		t.Errorf("node round-trip mangled: %+v", n)
	}
}

func TestLoadMissingGraph(t *testing.T) {
	db := setupTestDB(t)

	_, ok, err := db.Load(context.Background(), "ws", "Nothing.SY.001")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if ok {
		t.Errorf("expected no graph for an unsaved pair")
	}
}

func TestPersistReplacesPreviousSave(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	first := savedGraph("ws", "Checkout.SY.001")
	if err := db.Persist(ctx, first); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	second := savedGraph("ws", "Checkout.SY.001")
	second.Version = 12
	second.AddNode(&model.Node{
		SemanticID:  "Refund.FN.001",
		Type:        model.NodeFunction,
		Name:        "Refund",
		Description: "Issues refunds",
		WorkspaceID: "ws",
		SystemID:    "Checkout.SY.001",
	})
	if err := db.Persist(ctx, second); err != nil {
		t.Fatalf("second Persist failed: %v", err)
	}

	loaded, ok, err := db.Load(ctx, "ws", "Checkout.SY.001")
	if err != nil || !ok {
		t.Fatalf("Load failed: %v ok=%v", err, ok)
	}
	if loaded.Version != 12 {
		t.Errorf("version = %d, want the replacement's 12", loaded.Version)
	}
	if len(loaded.Nodes) != 3 {
		t.Errorf("nodes = %d, want 3", len(loaded.Nodes))
	}
}
