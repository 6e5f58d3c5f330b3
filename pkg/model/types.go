package model

// NodeType represents the semantic type of an artifact node.
type NodeType string

const (
	NodeSystem      NodeType = "SYS"
	NodeFunction    NodeType = "FUNC"
	NodeRequirement NodeType = "REQ"
	NodeData        NodeType = "DA"
	NodeUseCase     NodeType = "UC"
	NodeModule      NodeType = "MOD"
	NodeSchema      NodeType = "SCHEMA"
)

// EdgeType represents the semantic relationship between two nodes.
type EdgeType string

const (
	EdgeRelation     EdgeType = "RELATION"    // generic association
	EdgeComposition  EdgeType = "COMPOSITION" // parent -> child
	EdgeAllocation   EdgeType = "ALLOCATION"  // function -> module
	EdgeSatisfaction EdgeType = "SATISFY"     // design element -> requirement
	EdgeFlow         EdgeType = "FLOW"        // data flow between functions
)

// View identifies which diagram perspective a client is looking at.
type View string

const (
	ViewHierarchy    View = "hierarchy"
	ViewFunctional   View = "functional"
	ViewRequirements View = "requirements"
	ViewAllocation   View = "allocation"
	ViewUseCase      View = "usecase"
)

// ParseView resolves a view name; unknown names are rejected rather
// than defaulted.
func ParseView(s string) (View, bool) {
	switch View(s) {
	case ViewHierarchy, ViewFunctional, ViewRequirements, ViewAllocation, ViewUseCase:
		return View(s), true
	}
	return "", false
}

// Node represents a single engineering artifact.
// SemanticID is immutable once assigned and unique within a workspace.
type Node struct {
	SemanticID  string            `json:"semantic_id"`
	Type        NodeType          `json:"type"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	WorkspaceID string            `json:"workspace_id"`
	SystemID    string            `json:"system_id"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Edge represents a directed relation between two nodes.
// Both endpoints must reference existing node IDs at application time.
type Edge struct {
	SemanticID  string   `json:"semantic_id"`
	Type        EdgeType `json:"type"`
	FromID      string   `json:"from_id"`
	ToID        string   `json:"to_id"`
	WorkspaceID string   `json:"workspace_id"`
	SystemID    string   `json:"system_id"`
}

// GraphState is the full artifact graph for one (workspace, system)
// pair at a specific version. It is owned by the store; everything
// handed to callers is a copy.
type GraphState struct {
	WorkspaceID string            `json:"workspace_id"`
	SystemID    string            `json:"system_id"`
	Version     int64             `json:"version"`
	Nodes       map[string]*Node  `json:"nodes"`
	Edges       map[string]*Edge  `json:"edges"`
	Ports       map[string]string `json:"ports,omitempty"` // port name -> node semantic ID
	CurrentView View              `json:"current_view"`
}

// NewGraphState creates an empty graph for a workspace/system pair.
func NewGraphState(workspaceID, systemID string) *GraphState {
	return &GraphState{
		WorkspaceID: workspaceID,
		SystemID:    systemID,
		Nodes:       make(map[string]*Node),
		Edges:       make(map[string]*Edge),
		Ports:       make(map[string]string),
		CurrentView: ViewHierarchy,
	}
}

// AddNode adds a node to the graph, keyed by semantic ID.
func (g *GraphState) AddNode(n *Node) {
	g.Nodes[n.SemanticID] = n
}

// AddEdge adds an edge to the graph, keyed by semantic ID.
func (g *GraphState) AddEdge(e *Edge) {
	g.Edges[e.SemanticID] = e
}

// Clone returns a deep copy of the graph state. Node and edge structs
// are copied; property maps are re-allocated so the copy is safe to
// hand to concurrent readers.
func (g *GraphState) Clone() *GraphState {
	clone := NewGraphState(g.WorkspaceID, g.SystemID)
	clone.Version = g.Version
	clone.CurrentView = g.CurrentView
	for id, n := range g.Nodes {
		nc := *n
		if n.Properties != nil {
			nc.Properties = make(map[string]string, len(n.Properties))
			for k, v := range n.Properties {
				nc.Properties[k] = v
			}
		}
		clone.Nodes[id] = &nc
	}
	for id, e := range g.Edges {
		ec := *e
		clone.Edges[id] = &ec
	}
	for name, target := range g.Ports {
		clone.Ports[name] = target
	}
	return clone
}

// Empty reports whether the graph has no nodes.
func (g *GraphState) Empty() bool {
	return len(g.Nodes) == 0
}
