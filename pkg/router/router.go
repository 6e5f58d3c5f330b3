// Package router classifies user requests to an agent persona,
// renders persona prompts around the serialized graph, and keeps the
// per-persona reward accumulators used to judge routing quality.
package router

import (
	"fmt"
	"strings"
	"sync"
)

type Persona string

const (
	PersonaSystemArchitect      Persona = "system-architect"
	PersonaRequirementsEngineer Persona = "requirements-engineer"
	PersonaArchitectureReviewer Persona = "architecture-reviewer"
	PersonaFunctionalAnalyst    Persona = "functional-analyst"
)

// Rule is one row of the routing table. Rules are evaluated top-down
// and the first match wins. A rule matches when its graph-state
// requirement holds and any of its keywords appears in the request
// text (a rule with no keywords matches on graph state alone).
type Rule struct {
	Persona           Persona  `json:"persona"`
	RequireEmptyGraph bool     `json:"require_empty_graph,omitempty"`
	Keywords          []string `json:"keywords,omitempty"`
}

// Request is the routing input: the user text plus the context hints
// the table is allowed to see.
type Request struct {
	Text       string
	GraphEmpty bool
}

// Outcome summarizes a completed turn for reward scoring.
type Outcome struct {
	Completed   bool
	OpsProduced bool
	OpsValid    bool
}

// RewardStats accumulates scores for one persona.
type RewardStats struct {
	Total float64 `json:"total"`
	Turns int     `json:"turns"`
}

// DefaultRules returns the built-in routing table. The emptiness rule
// comes first: on an empty graph everything goes to the architect,
// whatever the wording.
func DefaultRules() []Rule {
	return []Rule{
		{Persona: PersonaSystemArchitect, RequireEmptyGraph: true},
		{Persona: PersonaRequirementsEngineer, Keywords: []string{"requirement", "shall", "constraint", "compliance"}},
		{Persona: PersonaArchitectureReviewer, Keywords: []string{"review", "assess", "critique", "evaluate", "audit"}},
		{Persona: PersonaFunctionalAnalyst, Keywords: []string{"function", "behavior", "flow", "use case", "scenario"}},
	}
}

type Router struct {
	rules          []Rule
	defaultPersona Persona

	mu      sync.Mutex
	rewards map[Persona]*RewardStats
}

func NewRouter(rules []Rule) *Router {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Router{
		rules:          rules,
		defaultPersona: PersonaSystemArchitect,
		rewards:        make(map[Persona]*RewardStats),
	}
}

// Route picks the persona for a request. Deterministic: identical
// input and context always yield the same persona.
func (r *Router) Route(req Request) Persona {
	text := strings.ToLower(req.Text)
	for _, rule := range r.rules {
		if rule.RequireEmptyGraph && !req.GraphEmpty {
			continue
		}
		if len(rule.Keywords) == 0 {
			if rule.RequireEmptyGraph {
				return rule.Persona
			}
			continue
		}
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Persona
			}
		}
	}
	return r.defaultPersona
}

var personaBriefs = map[Persona]string{
	PersonaSystemArchitect:      "You are a system architect. Decompose the system into subsystems, functions and their relations.",
	PersonaRequirementsEngineer: "You are a requirements engineer. Capture requirements as REQ nodes and link them to the elements that satisfy them.",
	PersonaArchitectureReviewer: "You are an architecture reviewer. Inspect the model for inconsistencies and gaps; propose corrections rather than additions.",
	PersonaFunctionalAnalyst:    "You are a functional analyst. Model behavior: functions, flows between them, and the use cases they serve.",
}

// GetAgentPrompt renders the persona template around the serialized
// graph. The contract with the reasoning engine (operations block,
// base_snapshot, line syntax) is spelled out once here.
func (r *Router) GetAgentPrompt(persona Persona, snapshotText string) string {
	brief, ok := personaBriefs[persona]
	if !ok {
		brief = personaBriefs[r.defaultPersona]
	}
	return fmt.Sprintf(`%s

The current model in Format-E:
%s

To change the model, append exactly one <operations> block containing a
<base_snapshot>systemId@vN</base_snapshot> line and "## Nodes" / "## Edges"
sections. Add with "+ name|TYPE|Semantic.ID.NNN|description" and
"+ From.ID -code-> To.ID"; remove with "- Semantic.ID.NNN". Everything
outside the block is shown to the user verbatim.`, brief, snapshotText)
}

// CalculateReward scores a completed turn in [0,1] and folds it into
// the persona's accumulator. Weights favor finishing the turn over
// producing operations.
func (r *Router) CalculateReward(persona Persona, outcome Outcome) float64 {
	score := 0.0
	if outcome.Completed {
		score += 0.5
	}
	if outcome.OpsProduced {
		score += 0.3
	}
	if outcome.OpsValid {
		score += 0.2
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stats, ok := r.rewards[persona]
	if !ok {
		stats = &RewardStats{}
		r.rewards[persona] = stats
	}
	stats.Total += score
	stats.Turns++
	return score
}

// Rewards returns a copy of the accumulators.
func (r *Router) Rewards() map[Persona]RewardStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Persona]RewardStats, len(r.rewards))
	for p, s := range r.rewards {
		out[p] = *s
	}
	return out
}

// Reset clears all reward state.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rewards = make(map[Persona]*RewardStats)
}
