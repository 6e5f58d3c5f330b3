package formate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/archgraph/archgraph/pkg/model"
)

const (
	nodesHeader = "## Nodes"
	edgesHeader = "## Edges"
)

// edgeCodes maps edge types to the short relation codes used on the
// wire (`+ A.FN.001 -cp-> B.FN.002`).
var edgeCodes = map[model.EdgeType]string{
	model.EdgeRelation:     "rel",
	model.EdgeComposition:  "cp",
	model.EdgeAllocation:   "al",
	model.EdgeSatisfaction: "sat",
	model.EdgeFlow:         "fl",
}

var edgeCodesReverse = func() map[string]model.EdgeType {
	m := make(map[string]model.EdgeType, len(edgeCodes))
	for t, c := range edgeCodes {
		m[c] = t
	}
	return m
}()

// EdgeCode returns the wire code for an edge type.
func EdgeCode(t model.EdgeType) string {
	if c, ok := edgeCodes[t]; ok {
		return c
	}
	return "rel"
}

// ParseEdgeCode resolves a wire code back to an edge type.
func ParseEdgeCode(code string) (model.EdgeType, bool) {
	t, ok := edgeCodesReverse[strings.ToLower(strings.TrimSpace(code))]
	return t, ok
}

// Serialize renders a graph to Format-E text. Output is deterministic
// for a given graph (nodes and edges sorted by semantic ID) so equal
// graphs serialize to byte-equal text.
func Serialize(g *model.GraphState) string {
	var sb strings.Builder

	sb.WriteString(nodesHeader)
	sb.WriteByte('\n')
	nodeIDs := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)
	for _, id := range nodeIDs {
		n := g.Nodes[id]
		sb.WriteString(fmt.Sprintf("+ %s|%s|%s|%s\n", n.Name, n.Type, n.SemanticID, n.Description))
	}

	sb.WriteString(edgesHeader)
	sb.WriteByte('\n')
	edgeIDs := make([]string, 0, len(g.Edges))
	for id := range g.Edges {
		edgeIDs = append(edgeIDs, id)
	}
	sort.Strings(edgeIDs)
	for _, id := range edgeIDs {
		e := g.Edges[id]
		sb.WriteString(fmt.Sprintf("+ %s -%s-> %s\n", e.FromID, EdgeCode(e.Type), e.ToID))
	}

	return sb.String()
}

// SerializeDiff renders a diff back to the line protocol, preserving
// operation order. Used for delta broadcasts.
func SerializeDiff(d *Diff) string {
	var sb strings.Builder
	if d.HasBase {
		sb.WriteString(fmt.Sprintf("<base_snapshot>%s@v%d</base_snapshot>\n", d.BaseSystemID, d.BaseVersion))
	}

	var nodes, edges []string
	for _, op := range d.Ops {
		marker := "+"
		if op.Kind == OpRemove {
			marker = "-"
		}
		switch {
		case op.Node != nil && op.Kind == OpRemove:
			nodes = append(nodes, fmt.Sprintf("%s %s", marker, op.Node.SemanticID))
		case op.Node != nil:
			n := op.Node
			nodes = append(nodes, fmt.Sprintf("%s %s|%s|%s|%s", marker, n.Name, n.Type, n.SemanticID, n.Description))
		case op.Edge != nil:
			e := op.Edge
			edges = append(edges, fmt.Sprintf("%s %s -%s-> %s", marker, e.FromID, EdgeCode(e.Type), e.ToID))
		}
	}

	sb.WriteString(nodesHeader)
	sb.WriteByte('\n')
	for _, line := range nodes {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteString(edgesHeader)
	sb.WriteByte('\n')
	for _, line := range edges {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Deserialize is the exact inverse of Serialize. Lines that do not
// match the grammar produce a ParseError and no partial graph.
func Deserialize(text, workspaceID, systemID string) (*model.GraphState, error) {
	g := model.NewGraphState(workspaceID, systemID)

	section := ""
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		switch line {
		case nodesHeader:
			section = "nodes"
			continue
		case edgesHeader:
			section = "edges"
			continue
		}

		if strings.HasPrefix(line, "- ") {
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "removal marker not allowed in a snapshot"}
		}

		switch section {
		case "nodes":
			node, err := parseNodeLine(i+1, line, workspaceID, systemID)
			if err != nil {
				return nil, err
			}
			g.AddNode(node)
		case "edges":
			edge, err := parseEdgeLine(i+1, line, workspaceID, systemID)
			if err != nil {
				return nil, err
			}
			g.AddEdge(edge)
		default:
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "content before section header"}
		}
	}

	return g, nil
}

// parseNodeLine parses `+ <name>|<type>|<semanticId>|<description>`.
// The leading marker must be + or - ; removals are only legal in diffs
// and are rejected by the caller when deserializing a full snapshot.
func parseNodeLine(lineNo int, line, workspaceID, systemID string) (*model.Node, error) {
	body, _, err := splitMarker(lineNo, line)
	if err != nil {
		return nil, err
	}
	fields := strings.SplitN(body, "|", 4)
	if len(fields) != 4 {
		return nil, &ParseError{Line: lineNo, Text: line, Reason: "want <name>|<type>|<semanticId>|<description>"}
	}
	nodeType, ok := model.ParseNodeType(fields[1])
	if !ok {
		return nil, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("unknown node type %q", fields[1])}
	}
	id := strings.TrimSpace(fields[2])
	if _, err := model.ParseSemanticID(id); err != nil {
		return nil, &ParseError{Line: lineNo, Text: line, Reason: err.Error()}
	}
	return &model.Node{
		SemanticID:  id,
		Type:        nodeType,
		Name:        strings.TrimSpace(fields[0]),
		Description: strings.TrimSpace(fields[3]),
		WorkspaceID: workspaceID,
		SystemID:    systemID,
	}, nil
}

// parseEdgeLine parses `+ <fromId> -<code>-> <toId>`.
func parseEdgeLine(lineNo int, line, workspaceID, systemID string) (*model.Edge, error) {
	body, _, err := splitMarker(lineNo, line)
	if err != nil {
		return nil, err
	}
	fromID, edgeType, toID, perr := parseEdgeBody(lineNo, line, body)
	if perr != nil {
		return nil, perr
	}
	return &model.Edge{
		SemanticID:  EdgeKey(fromID, edgeType, toID),
		Type:        edgeType,
		FromID:      fromID,
		ToID:        toID,
		WorkspaceID: workspaceID,
		SystemID:    systemID,
	}, nil
}

func parseEdgeBody(lineNo int, line, body string) (string, model.EdgeType, string, *ParseError) {
	arrowStart := strings.Index(body, " -")
	arrowEnd := strings.Index(body, "-> ")
	if arrowStart < 0 || arrowEnd < 0 || arrowEnd <= arrowStart {
		return "", "", "", &ParseError{Line: lineNo, Text: line, Reason: "want <fromId> -<code>-> <toId>"}
	}
	fromID := strings.TrimSpace(body[:arrowStart])
	code := body[arrowStart+2 : arrowEnd]
	toID := strings.TrimSpace(body[arrowEnd+3:])
	if fromID == "" || toID == "" {
		return "", "", "", &ParseError{Line: lineNo, Text: line, Reason: "empty edge endpoint"}
	}
	edgeType, ok := ParseEdgeCode(code)
	if !ok {
		return "", "", "", &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("unknown relation code %q", code)}
	}
	return fromID, edgeType, toID, nil
}

// splitMarker strips the leading +/- marker and returns the rest of
// the line plus the operation kind the marker stands for.
func splitMarker(lineNo int, line string) (string, OpKind, error) {
	switch {
	case strings.HasPrefix(line, "+ "):
		return strings.TrimSpace(line[2:]), OpAdd, nil
	case strings.HasPrefix(line, "- "):
		return strings.TrimSpace(line[2:]), OpRemove, nil
	default:
		return "", "", &ParseError{Line: lineNo, Text: line, Reason: "line must start with '+ ' or '- '"}
	}
}
