package model

import (
	"fmt"
	"strings"
)

// typeCodes maps each node type to the code embedded in semantic IDs.
var typeCodes = map[NodeType]string{
	NodeSystem:      "SY",
	NodeFunction:    "FN",
	NodeRequirement: "REQ",
	NodeData:        "DA",
	NodeUseCase:     "UC",
	NodeModule:      "MOD",
	NodeSchema:      "SCH",
}

// typeAliases normalizes the spellings that show up in engine output.
var typeAliases = map[string]NodeType{
	"SYS": NodeSystem, "SY": NodeSystem,
	"FUNC": NodeFunction, "FN": NodeFunction,
	"REQ": NodeRequirement, "RQ": NodeRequirement,
	"DA": NodeData, "DATA": NodeData,
	"UC": NodeUseCase, "USECASE": NodeUseCase,
	"MOD": NodeModule, "MD": NodeModule,
	"SCHEMA": NodeSchema, "SCH": NodeSchema,
}

// TypeCode returns the semantic-ID code for a node type.
func TypeCode(t NodeType) string {
	if code, ok := typeCodes[t]; ok {
		return code
	}
	return string(t)
}

// ParseNodeType normalizes a type spelling (e.g. "FN", "FUNC") to the
// canonical NodeType. The second result is false for unknown types.
func ParseNodeType(s string) (NodeType, bool) {
	t, ok := typeAliases[strings.ToUpper(strings.TrimSpace(s))]
	return t, ok
}

// SemanticID is the parsed form of "<Name>.<TypeCode>.<NNN>".
type SemanticID struct {
	Name     string
	TypeCode string
	Sequence int
}

// ParseSemanticID splits and validates a semantic ID. The name part
// may itself contain dots; the last two segments are always the type
// code and the three-digit sequence.
func ParseSemanticID(id string) (SemanticID, error) {
	parts := strings.Split(id, ".")
	if len(parts) < 3 {
		return SemanticID{}, fmt.Errorf("semantic id %q: want <Name>.<TypeCode>.<NNN>", id)
	}
	seqPart := parts[len(parts)-1]
	codePart := parts[len(parts)-2]
	namePart := strings.Join(parts[:len(parts)-2], ".")

	if namePart == "" {
		return SemanticID{}, fmt.Errorf("semantic id %q: empty name", id)
	}
	if _, ok := typeAliases[strings.ToUpper(codePart)]; !ok {
		return SemanticID{}, fmt.Errorf("semantic id %q: unknown type code %q", id, codePart)
	}
	if len(seqPart) != 3 {
		return SemanticID{}, fmt.Errorf("semantic id %q: sequence %q is not 3 digits", id, seqPart)
	}
	seq := 0
	for _, r := range seqPart {
		if r < '0' || r > '9' {
			return SemanticID{}, fmt.Errorf("semantic id %q: sequence %q is not numeric", id, seqPart)
		}
		seq = seq*10 + int(r-'0')
	}

	return SemanticID{Name: namePart, TypeCode: codePart, Sequence: seq}, nil
}

// MatchesType reports whether the embedded type code agrees with the
// given node type.
func (s SemanticID) MatchesType(t NodeType) bool {
	parsed, ok := ParseNodeType(s.TypeCode)
	return ok && parsed == t
}

// FormatSemanticID builds a semantic ID from its parts.
func FormatSemanticID(name string, t NodeType, seq int) string {
	return fmt.Sprintf("%s.%s.%03d", name, TypeCode(t), seq)
}
