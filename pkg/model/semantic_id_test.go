package model

import "testing"

func TestParseSemanticID(t *testing.T) {
	cases := []struct {
		id       string
		wantName string
		wantCode string
		wantSeq  int
		wantErr  bool
	}{
		{"Pay.FN.001", "Pay", "FN", 1, false},
		{"Sys.SY.001", "Sys", "SY", 1, false},
		{"Login.UC.012", "Login", "UC", 12, false},
		{"Billing.Core.REQ.003", "Billing.Core", "REQ", 3, false},
		{"Pay.FN.1", "", "", 0, true},   // sequence not 3 digits
		{"Pay.XX.001", "", "", 0, true}, // unknown type code
		{"Pay.FN.0a1", "", "", 0, true}, // non-numeric sequence
		{"Pay", "", "", 0, true},        // too few segments
		{".FN.001", "", "", 0, true},    // empty name
	}

	for _, tc := range cases {
		got, err := ParseSemanticID(tc.id)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSemanticID(%q): expected error, got %+v", tc.id, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSemanticID(%q): unexpected error: %v", tc.id, err)
			continue
		}
		if got.Name != tc.wantName || got.TypeCode != tc.wantCode || got.Sequence != tc.wantSeq {
			t.Errorf("ParseSemanticID(%q) = %+v, want {%s %s %d}", tc.id, got, tc.wantName, tc.wantCode, tc.wantSeq)
		}
	}
}

func TestSemanticIDMatchesType(t *testing.T) {
	id, err := ParseSemanticID("Pay.FN.001")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !id.MatchesType(NodeFunction) {
		t.Errorf("FN should match FUNC")
	}
	if id.MatchesType(NodeSchema) {
		t.Errorf("FN should not match SCHEMA")
	}
}

func TestFormatSemanticID(t *testing.T) {
	if got := FormatSemanticID("Pay", NodeFunction, 1); got != "Pay.FN.001" {
		t.Errorf("FormatSemanticID = %q, want Pay.FN.001", got)
	}
	if got := FormatSemanticID("Order", NodeSchema, 42); got != "Order.SCH.042" {
		t.Errorf("FormatSemanticID = %q, want Order.SCH.042", got)
	}
}

func TestGraphStateClone(t *testing.T) {
	g := NewGraphState("ws-1", "Sys.SY.001")
	g.Version = 3
	g.AddNode(&Node{
		SemanticID: "Pay.FN.001",
		Type:       NodeFunction,
		Name:       "Pay",
		Properties: map[string]string{"phase": "draft"},
	})
	g.AddEdge(&Edge{SemanticID: "e1", Type: EdgeRelation, FromID: "Pay.FN.001", ToID: "Pay.FN.001"})
	g.Ports["main"] = "Pay.FN.001"

	clone := g.Clone()
	if clone.Version != 3 || len(clone.Nodes) != 1 || len(clone.Edges) != 1 {
		t.Fatalf("clone lost state: %+v", clone)
	}

	// Mutating the clone must not leak into the original.
	clone.Nodes["Pay.FN.001"].Properties["phase"] = "final"
	clone.Ports["main"] = "elsewhere"
	if g.Nodes["Pay.FN.001"].Properties["phase"] != "draft" {
		t.Errorf("clone shares node properties with original")
	}
	if g.Ports["main"] != "Pay.FN.001" {
		t.Errorf("clone shares ports with original")
	}
}
