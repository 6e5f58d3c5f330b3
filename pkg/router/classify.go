package router

import (
	"strings"

	"github.com/archgraph/archgraph/pkg/model"
)

// typeVocabulary maps lexical signals to node types. Checked in this
// order; more specific roles (schema, data) come before the broad
// ones so "UserDataSchema" lands on SCHEMA, not DA.
var typeVocabulary = []struct {
	Type  model.NodeType
	Terms []string
}{
	{model.NodeSchema, []string{"schema", "serialization", "format", "encoding", "codec", "payload"}},
	{model.NodeData, []string{"data", "record", "entity", "dataset", "table"}},
	{model.NodeRequirement, []string{"requirement", "shall", "constraint"}},
	{model.NodeUseCase, []string{"use case", "usecase", "scenario", "actor"}},
	{model.NodeModule, []string{"module", "component", "library"}},
	{model.NodeSystem, []string{"system", "platform", "subsystem"}},
}

// ClassifyNewNode suggests a node type from name and description
// alone. A name hit is strong evidence; a description-only hit is
// weaker; no hit falls back to FUNC with low confidence. Used as a
// pre-filter before asking the reasoning engine and by the correction
// engine to spot mistyped nodes.
func ClassifyNewNode(name, description string) (model.NodeType, float64) {
	lowerName := strings.ToLower(splitCamel(name))
	lowerDesc := strings.ToLower(description)

	for _, v := range typeVocabulary {
		for _, term := range v.Terms {
			if strings.Contains(lowerName, term) {
				return v.Type, 0.9
			}
		}
	}
	for _, v := range typeVocabulary {
		for _, term := range v.Terms {
			if strings.Contains(lowerDesc, term) {
				return v.Type, 0.6
			}
		}
	}
	return model.NodeFunction, 0.3
}

// splitCamel turns "FormatESerialization" into "Format E Serialization"
// so vocabulary terms match inside camel-case names.
func splitCamel(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
