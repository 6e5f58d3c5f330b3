// Package validate checks a pending diff against the current graph
// without committing it. Rules run in a fixed order; violations carry
// a rule ID and, where one can be derived mechanically, a proposed
// correction. Safe corrections (pure retype with the semantic ID
// rewritten to match) can be applied to the diff before it reaches the
// store.
package validate

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/archgraph/archgraph/pkg/formate"
	"github.com/archgraph/archgraph/pkg/model"
	"github.com/archgraph/archgraph/pkg/router"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Correction is a mechanically derivable fix. Safe means it changes
// type and ID spelling only, never referential structure, so it is
// eligible for automatic application.
type Correction struct {
	Retype    model.NodeType
	RetypedID string
	Safe      bool
}

type Violation struct {
	RuleID     string      `json:"rule_id"`
	Severity   Severity    `json:"severity"`
	EntityID   string      `json:"entity_id"`
	Message    string      `json:"message"`
	Correction *Correction `json:"-"`
}

// ReviewQuestion is an unresolved violation surfaced to the user. The
// pending list accumulates across turns until Reset.
type ReviewQuestion struct {
	ID        string    `json:"id"`
	RuleID    string    `json:"rule_id"`
	EntityID  string    `json:"entity_id"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
}

type Config struct {
	AutoApplySafeCorrections bool
}

// Result of checking one diff. Diff is the version to hand to the
// store: corrected when auto-apply is on, the original otherwise.
// Blocked means an unresolved error-severity violation remains and the
// diff must not be applied.
type Result struct {
	Diff               *formate.Diff
	Violations         []Violation
	AppliedCorrections []Violation
	Blocked            bool
}

type Engine struct {
	cfg Config

	mu      sync.Mutex
	pending []ReviewQuestion
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Check runs the rule set against the diff merged virtually with the
// snapshot. The snapshot is read only. Unresolved violations are
// appended to the pending-review list as questions.
func (e *Engine) Check(diff *formate.Diff, snapshot *model.GraphState) Result {
	violations := e.runRules(diff, snapshot)

	result := Result{Diff: diff}
	if e.cfg.AutoApplySafeCorrections {
		corrected := cloneDiff(diff)
		for _, v := range violations {
			if v.Correction != nil && v.Correction.Safe {
				applyRetype(corrected, v.EntityID, v.Correction)
				result.AppliedCorrections = append(result.AppliedCorrections, v)
				continue
			}
			result.Violations = append(result.Violations, v)
		}
		result.Diff = corrected
	} else {
		result.Violations = violations
	}

	for _, v := range result.Violations {
		if v.Severity == SeverityError {
			result.Blocked = true
		}
		e.addReview(v)
	}
	return result
}

// PendingReviews returns a copy of the accumulated review questions.
func (e *Engine) PendingReviews() []ReviewQuestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ReviewQuestion, len(e.pending))
	copy(out, e.pending)
	return out
}

// Reset clears the pending-review list.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = nil
}

func (e *Engine) addReview(v Violation) {
	q := ReviewQuestion{
		ID:        uuid.NewString(),
		RuleID:    v.RuleID,
		EntityID:  v.EntityID,
		Question:  fmt.Sprintf("%s — keep as proposed?", v.Message),
		CreatedAt: time.Now().UTC(),
	}
	e.mu.Lock()
	e.pending = append(e.pending, q)
	e.mu.Unlock()
}

// runRules evaluates the fixed rule order: naming/type consistency,
// ID/type-code agreement, duplicate IDs, dangling references,
// workspace/system scoping.
func (e *Engine) runRules(diff *formate.Diff, snapshot *model.GraphState) []Violation {
	var violations []Violation

	// Merged view of node IDs: snapshot plus the diff's adds, minus
	// its removes, in order.
	present := make(map[string]bool, len(snapshot.Nodes))
	for id := range snapshot.Nodes {
		present[id] = true
	}

	for _, op := range diff.Ops {
		switch {
		case op.Node != nil && op.Kind == formate.OpAdd:
			node := op.Node
			if v := checkNaming(node); v != nil {
				violations = append(violations, *v)
			}
			if v := checkTypeCode(node); v != nil {
				violations = append(violations, *v)
			}
			if present[node.SemanticID] {
				violations = append(violations, Violation{
					RuleID:   "duplicate-id",
					Severity: SeverityError,
					EntityID: node.SemanticID,
					Message:  fmt.Sprintf("node %s already exists", node.SemanticID),
				})
			}
			if v := checkScope(node.SemanticID, node.WorkspaceID, node.SystemID, snapshot); v != nil {
				violations = append(violations, *v)
			}
			present[node.SemanticID] = true

		case op.Node != nil && op.Kind == formate.OpRemove:
			delete(present, op.Node.SemanticID)

		case op.Edge != nil && op.Kind == formate.OpAdd:
			edge := op.Edge
			for _, endpoint := range []string{edge.FromID, edge.ToID} {
				if !present[endpoint] {
					violations = append(violations, Violation{
						RuleID:   "dangling-ref",
						Severity: SeverityError,
						EntityID: edge.SemanticID,
						Message:  fmt.Sprintf("edge %q references missing node %s", edge.SemanticID, endpoint),
					})
				}
			}
			if v := checkScope(edge.SemanticID, edge.WorkspaceID, edge.SystemID, snapshot); v != nil {
				violations = append(violations, *v)
			}
		}
	}
	return violations
}

// checkNaming flags a node whose name lexically implies a data or
// schema role but is tagged as a function. The fix is a pure retype,
// so it is safe.
func checkNaming(node *model.Node) *Violation {
	if node.Type != model.NodeFunction {
		return nil
	}
	suggested, confidence := router.ClassifyNewNode(node.Name, node.Description)
	if confidence < 0.9 {
		return nil
	}
	if suggested != model.NodeSchema && suggested != model.NodeData {
		return nil
	}
	return &Violation{
		RuleID:   "naming-type",
		Severity: SeverityWarning,
		EntityID: node.SemanticID,
		Message:  fmt.Sprintf("node %s is named like a %s but tagged %s", node.SemanticID, suggested, node.Type),
		Correction: &Correction{
			Retype:    suggested,
			RetypedID: retypeID(node.SemanticID, suggested),
			Safe:      true,
		},
	}
}

// checkTypeCode enforces the semantic-ID invariant: the embedded type
// code must agree with the node's type.
func checkTypeCode(node *model.Node) *Violation {
	sid, err := model.ParseSemanticID(node.SemanticID)
	if err != nil {
		return &Violation{
			RuleID:   "id-syntax",
			Severity: SeverityError,
			EntityID: node.SemanticID,
			Message:  fmt.Sprintf("malformed semantic id %s: %v", node.SemanticID, err),
		}
	}
	if !sid.MatchesType(node.Type) {
		return &Violation{
			RuleID:   "id-type-code",
			Severity: SeverityError,
			EntityID: node.SemanticID,
			Message:  fmt.Sprintf("id %s carries code %s which does not match type %s", node.SemanticID, sid.TypeCode, node.Type),
		}
	}
	return nil
}

func checkScope(entityID, workspaceID, systemID string, snapshot *model.GraphState) *Violation {
	if (workspaceID != "" && workspaceID != snapshot.WorkspaceID) ||
		(systemID != "" && systemID != snapshot.SystemID) {
		return &Violation{
			RuleID:   "scope",
			Severity: SeverityError,
			EntityID: entityID,
			Message:  fmt.Sprintf("%s is scoped to %s/%s, not %s/%s", entityID, workspaceID, systemID, snapshot.WorkspaceID, snapshot.SystemID),
		}
	}
	return nil
}

// retypeID rewrites the type code inside a semantic ID, keeping name
// and sequence.
func retypeID(id string, t model.NodeType) string {
	sid, err := model.ParseSemanticID(id)
	if err != nil {
		return id
	}
	return model.FormatSemanticID(sid.Name, t, sid.Sequence)
}

// applyRetype rewrites a node's type and semantic ID inside the diff,
// including edge endpoints added in the same diff, so nothing dangles
// after the correction.
func applyRetype(diff *formate.Diff, oldID string, c *Correction) {
	for _, op := range diff.Ops {
		if op.Node != nil && op.Node.SemanticID == oldID {
			op.Node.Type = c.Retype
			op.Node.SemanticID = c.RetypedID
		}
		if op.Edge != nil {
			changed := false
			if op.Edge.FromID == oldID {
				op.Edge.FromID = c.RetypedID
				changed = true
			}
			if op.Edge.ToID == oldID {
				op.Edge.ToID = c.RetypedID
				changed = true
			}
			if changed && strings.Contains(op.Edge.SemanticID, oldID) {
				op.Edge.SemanticID = formate.EdgeKey(op.Edge.FromID, op.Edge.Type, op.Edge.ToID)
			}
		}
	}
}

// cloneDiff deep-copies a diff so corrections never mutate the
// caller's copy.
func cloneDiff(diff *formate.Diff) *formate.Diff {
	out := &formate.Diff{
		BaseSystemID: diff.BaseSystemID,
		BaseVersion:  diff.BaseVersion,
		HasBase:      diff.HasBase,
		Ops:          make([]formate.Operation, len(diff.Ops)),
	}
	for i, op := range diff.Ops {
		clone := formate.Operation{Kind: op.Kind}
		if op.Node != nil {
			n := *op.Node
			if op.Node.Properties != nil {
				n.Properties = make(map[string]string, len(op.Node.Properties))
				for k, v := range op.Node.Properties {
					n.Properties[k] = v
				}
			}
			clone.Node = &n
		}
		if op.Edge != nil {
			e := *op.Edge
			clone.Edge = &e
		}
		out.Ops[i] = clone
	}
	return out
}
