package formate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/archgraph/archgraph/pkg/model"
)

const (
	opsOpenTag   = "<operations>"
	opsCloseTag  = "</operations>"
	baseOpenTag  = "<base_snapshot>"
	baseCloseTag = "</base_snapshot>"
)

// Extractor pulls operation blocks out of reasoning-engine responses.
// StripDanglingTags controls what happens to an opening <operations>
// tag with no matching close: when true the stray tag is removed from
// the visible text, when false it is preserved verbatim. Either way a
// dangling tag yields no diff.
type Extractor struct {
	StripDanglingTags bool
}

// NewExtractor returns an extractor with the default policy
// (dangling tags are stripped).
func NewExtractor() *Extractor {
	return &Extractor{StripDanglingTags: true}
}

// Extract scans response text for the first well-formed
// <operations>...</operations> block. It returns the human-readable
// text with every well-formed block removed, and the parsed diff from
// the first block (nil when no well-formed block exists). A block
// whose contents do not parse yields a ParseError; the visible text is
// still returned with the broken block stripped so raw tags never
// reach the user.
func (x *Extractor) Extract(text string) (string, *Diff, error) {
	var (
		diff    *Diff
		diffErr error
		visible strings.Builder
	)

	rest := text
	for {
		start := indexFold(rest, opsOpenTag)
		if start < 0 {
			break
		}
		end := indexFold(rest[start+len(opsOpenTag):], opsCloseTag)
		if end < 0 {
			// Dangling open tag: no operations, policy decides whether
			// the tag itself stays visible.
			if x.StripDanglingTags {
				visible.WriteString(rest[:start])
				visible.WriteString(rest[start+len(opsOpenTag):])
			} else {
				visible.WriteString(rest)
			}
			return visible.String(), diff, diffErr
		}

		body := rest[start+len(opsOpenTag) : start+len(opsOpenTag)+end]
		visible.WriteString(rest[:start])
		rest = rest[start+len(opsOpenTag)+end+len(opsCloseTag):]

		// Only the first block counts; later blocks are stripped and
		// ignored.
		if diff == nil && diffErr == nil {
			diff, diffErr = ParseDiff(body)
		}
	}
	visible.WriteString(rest)

	return visible.String(), diff, diffErr
}

// ParseDiff parses the body of an operations block: an optional
// <base_snapshot>systemId@vN</base_snapshot> pin followed by
// `## Nodes` / `## Edges` sections of +/- lines.
func ParseDiff(body string) (*Diff, error) {
	diff := &Diff{}

	section := ""
	for i, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if open := indexFold(line, baseOpenTag); open >= 0 {
			if err := parseBaseSnapshot(i+1, line, diff); err != nil {
				return nil, err
			}
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

		if section == "" {
			return nil, &ParseError{Line: i + 1, Text: line, Reason: "operation line before section header"}
		}

		rest, kind, err := splitMarker(i+1, line)
		if err != nil {
			return nil, err
		}

		switch {
		case section == "nodes" && kind == OpAdd:
			node, err := parseNodeLine(i+1, line, "", "")
			if err != nil {
				return nil, err
			}
			diff.Ops = append(diff.Ops, Operation{Kind: OpAdd, Node: node})
		case section == "nodes" && kind == OpRemove:
			node, err := parseNodeRemoval(i+1, line, rest)
			if err != nil {
				return nil, err
			}
			diff.Ops = append(diff.Ops, Operation{Kind: OpRemove, Node: node})
		case section == "edges":
			edge, err := parseEdgeLine(i+1, line, "", "")
			if err != nil {
				return nil, err
			}
			diff.Ops = append(diff.Ops, Operation{Kind: kind, Edge: edge})
		}
	}

	return diff, nil
}

// parseNodeRemoval accepts either the bare `- <semanticId>` form or
// the full pipe-delimited line.
func parseNodeRemoval(lineNo int, line, body string) (*model.Node, error) {
	if strings.Contains(body, "|") {
		return parseNodeLine(lineNo, line, "", "")
	}
	id := strings.TrimSpace(body)
	if _, err := model.ParseSemanticID(id); err != nil {
		return nil, &ParseError{Line: lineNo, Text: line, Reason: err.Error()}
	}
	return &model.Node{SemanticID: id}, nil
}

// parseBaseSnapshot parses `<base_snapshot>Sys.SY.001@v1</base_snapshot>`.
func parseBaseSnapshot(lineNo int, line string, diff *Diff) error {
	open := indexFold(line, baseOpenTag)
	closeIdx := indexFold(line, baseCloseTag)
	if closeIdx < 0 || closeIdx <= open {
		return &ParseError{Line: lineNo, Text: line, Reason: "unterminated base_snapshot tag"}
	}
	ref := strings.TrimSpace(line[open+len(baseOpenTag) : closeIdx])
	at := strings.LastIndex(ref, "@v")
	if at <= 0 {
		return &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("base snapshot %q: want <systemId>@v<version>", ref)}
	}
	version, err := strconv.ParseInt(ref[at+2:], 10, 64)
	if err != nil {
		return &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("base snapshot %q: bad version", ref)}
	}
	diff.BaseSystemID = ref[:at]
	diff.BaseVersion = version
	diff.HasBase = true
	return nil
}

// indexFold is a case-insensitive strings.Index for ASCII tags.
func indexFold(s, substr string) int {
	return strings.Index(strings.ToLower(s), strings.ToLower(substr))
}
