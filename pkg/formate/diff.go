// Package formate implements the Format-E text protocol: the
// line-oriented serialization of an artifact graph, the add/remove
// diff syntax embedded in reasoning-engine responses, and the
// extraction of <operations> blocks from free text.
package formate

import (
	"fmt"

	"github.com/archgraph/archgraph/pkg/model"
)

// OpKind distinguishes additions from removals.
type OpKind string

const (
	OpAdd    OpKind = "add"
	OpRemove OpKind = "remove"
)

// Operation is a single add/remove of a node or edge. Exactly one of
// Node/Edge is set; removals may carry only the semantic ID.
type Operation struct {
	Kind OpKind      `json:"kind"`
	Node *model.Node `json:"node,omitempty"`
	Edge *model.Edge `json:"edge,omitempty"`
}

// Diff is an ordered sequence of operations plus the base snapshot the
// diff was computed against. It is consumed exactly once.
type Diff struct {
	BaseSystemID string      `json:"base_system_id,omitempty"`
	BaseVersion  int64       `json:"base_version,omitempty"`
	HasBase      bool        `json:"has_base"`
	Ops          []Operation `json:"ops"`
}

// ParseError reports a line that does not match the Format-E grammar.
// Parsing is all-or-nothing: a ParseError means nothing was applied.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("format-e parse error at line %d (%q): %s", e.Line, e.Text, e.Reason)
}

// EdgeKey builds the canonical semantic ID for an edge. Format-E edge
// lines carry no explicit ID, so the triple is the identity.
func EdgeKey(fromID string, t model.EdgeType, toID string) string {
	return fmt.Sprintf("%s -%s-> %s", fromID, EdgeCode(t), toID)
}
