// Package engine glues the pipeline together: one chat turn flows
// router → reasoning engine → codec → validation → store → hub, and
// every effect leaves as a broadcast event.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/archgraph/archgraph/pkg/cache"
	"github.com/archgraph/archgraph/pkg/formate"
	"github.com/archgraph/archgraph/pkg/hub"
	"github.com/archgraph/archgraph/pkg/llm"
	"github.com/archgraph/archgraph/pkg/model"
	"github.com/archgraph/archgraph/pkg/router"
	"github.com/archgraph/archgraph/pkg/store"
	"github.com/archgraph/archgraph/pkg/validate"
)

// Config selects the workspace the processor serves and the
// correction policy.
type Config struct {
	WorkspaceID              string
	SystemID                 string
	AutoApplySafeCorrections bool
}

// ChatResult is what the requesting client gets back; everyone else
// learns about the turn from broadcasts.
type ChatResult struct {
	Persona    router.Persona       `json:"persona"`
	Text       string               `json:"text"`
	Applied    bool                 `json:"applied"`
	Version    int64                `json:"version,omitempty"`
	Violations []validate.Violation `json:"violations,omitempty"`
	Corrected  []validate.Violation `json:"corrected,omitempty"`
	Reward     float64              `json:"reward"`
	Error      string               `json:"error,omitempty"`
}

// Stats is the payload of the stats command and /v1/stats.
type Stats struct {
	SystemID       string                                `json:"system_id"`
	Version        int64                                 `json:"version"`
	Nodes          int                                   `json:"nodes"`
	Edges          int                                   `json:"edges"`
	Clients        int                                   `json:"clients"`
	PendingReviews int                                   `json:"pending_reviews"`
	Rewards        map[router.Persona]router.RewardStats `json:"rewards"`
}

type Processor struct {
	cfg       Config
	store     *store.Store
	db        *store.GraphDB
	cache     cache.SnapshotCache
	validator *validate.Engine
	router    *router.Router
	engine    llm.Engine
	extractor *formate.Extractor
	hub       *hub.Hub
}

// NewProcessor wires the pipeline. db may be nil when persistence is
// disabled; hub may be nil in tests.
func NewProcessor(cfg Config, st *store.Store, db *store.GraphDB, c cache.SnapshotCache, r *router.Router, eng llm.Engine, h *hub.Hub) *Processor {
	p := &Processor{
		cfg:       cfg,
		store:     st,
		db:        db,
		cache:     c,
		validator: validate.NewEngine(validate.Config{AutoApplySafeCorrections: cfg.AutoApplySafeCorrections}),
		router:    r,
		engine:    eng,
		extractor: formate.NewExtractor(),
		hub:       h,
	}

	st.OnApply(func(e store.ApplyEvent) {
		p.updateSizeGauges()
		if p.hub != nil {
			p.hub.Broadcast(hub.Event{
				Type:     hub.EventDelta,
				SystemID: e.SystemID,
				Version:  e.Version,
				Delta:    formate.SerializeDiff(e.Diff),
			})
		}
	})
	if h != nil {
		h.SetCommandHandler(p.HandleCommand)
		h.SetSnapshotFunc(p.snapshotEvent)
	}
	return p
}

// PendingReviews exposes the unresolved validation questions.
func (p *Processor) PendingReviews() []validate.ReviewQuestion {
	return p.validator.PendingReviews()
}

// snapshotText returns the serialized graph, from cache when the
// entry is still valid.
func (p *Processor) snapshotText() (string, int, int) {
	if entry, ok := p.cache.Get(p.cfg.SystemID); ok {
		ArchgraphSnapshotCache.WithLabelValues("hit").Inc()
		return entry.Text, entry.NodeCount, entry.EdgeCount
	}
	ArchgraphSnapshotCache.WithLabelValues("miss").Inc()

	g := p.store.Snapshot(p.cfg.WorkspaceID, p.cfg.SystemID)
	text := formate.Serialize(g)
	p.cache.Put(p.cfg.SystemID, cache.Entry{
		Text:      text,
		Version:   g.Version,
		NodeCount: len(g.Nodes),
		EdgeCount: len(g.Edges),
	})
	return text, len(g.Nodes), len(g.Edges)
}

// SnapshotText is the cached Format-E serialization of the graph.
func (p *Processor) SnapshotText() string {
	text, _, _ := p.snapshotText()
	return text
}

func (p *Processor) snapshotEvent() hub.Event {
	text, _, _ := p.snapshotText()
	return hub.Event{
		Type:     hub.EventSnapshot,
		SystemID: p.cfg.SystemID,
		Version:  p.store.Version(p.cfg.WorkspaceID, p.cfg.SystemID),
		Snapshot: text,
	}
}

// HandleChat runs one full turn. A stale base snapshot or a blocking
// violation rejects the diff wholesale; the caller decides whether to
// retry with a recomputed diff.
func (p *Processor) HandleChat(ctx context.Context, text string) (ChatResult, error) {
	snapText, nodeCount, _ := p.snapshotText()

	persona := p.router.Route(router.Request{Text: text, GraphEmpty: nodeCount == 0})
	ArchgraphTurnTotal.WithLabelValues(string(persona)).Inc()

	prompt := p.router.GetAgentPrompt(persona, snapText) + "\n\nUser: " + text
	raw, err := p.engine.Generate(ctx, prompt)
	if err != nil {
		ArchgraphApplyTotal.WithLabelValues("engine_error").Inc()
		return ChatResult{Persona: persona}, fmt.Errorf("reasoning engine failed: %w", err)
	}

	visible, diff, err := p.extractor.Extract(raw)
	result := ChatResult{Persona: persona, Text: visible}
	outcome := router.Outcome{Completed: true}

	if err != nil {
		// The block was present but unparseable. Report it, apply
		// nothing.
		var perr *formate.ParseError
		if errors.As(err, &perr) {
			result.Error = perr.Error()
			outcome.OpsProduced = true
			ArchgraphApplyTotal.WithLabelValues("parse_error").Inc()
		} else {
			return result, err
		}
	}

	if diff != nil {
		outcome.OpsProduced = true
		result = p.applyDiff(diff, result)
		outcome.OpsValid = result.Applied
	}

	result.Reward = p.router.CalculateReward(persona, outcome)

	if p.hub != nil {
		p.hub.Broadcast(hub.Event{
			Type:     hub.EventChat,
			SystemID: p.cfg.SystemID,
			Persona:  string(persona),
			Text:     visible,
		})
		if result.Error != "" {
			p.hub.Broadcast(hub.Event{Type: hub.EventError, SystemID: p.cfg.SystemID, Text: result.Error})
		}
	}
	return result, nil
}

func (p *Processor) applyDiff(diff *formate.Diff, result ChatResult) ChatResult {
	snapshot := p.store.Snapshot(p.cfg.WorkspaceID, p.cfg.SystemID)
	checked := p.validator.Check(diff, snapshot)
	result.Violations = checked.Violations
	result.Corrected = checked.AppliedCorrections
	for _, v := range checked.Violations {
		ArchgraphViolationTotal.WithLabelValues(v.RuleID).Inc()
	}

	if checked.Blocked {
		ArchgraphApplyTotal.WithLabelValues("rejected").Inc()
		result.Error = "diff rejected by validation"
		return result
	}

	version, err := p.store.Apply(p.cfg.WorkspaceID, p.cfg.SystemID, checked.Diff)
	if err != nil {
		var conflict *store.VersionConflictError
		if errors.As(err, &conflict) {
			ArchgraphApplyTotal.WithLabelValues("conflict").Inc()
		} else {
			ArchgraphApplyTotal.WithLabelValues("rejected").Inc()
		}
		result.Error = err.Error()
		return result
	}

	ArchgraphApplyTotal.WithLabelValues("applied").Inc()
	result.Applied = true
	result.Version = version
	return result
}

// HandleCommand relays a hub command. Effects are broadcast; nothing
// is returned to the issuing client directly.
func (p *Processor) HandleCommand(clientID string, cmd hub.Command) {
	ctx := context.Background()
	switch cmd.Type {
	case hub.CommandChat:
		if _, err := p.HandleChat(ctx, cmd.Text); err != nil {
			p.broadcastError(err)
		}
	case hub.CommandView:
		p.SetView(model.View(cmd.View))
	case hub.CommandSave:
		if err := p.Save(ctx); err != nil {
			p.broadcastError(err)
		}
	case hub.CommandStats:
		if p.hub != nil {
			p.hub.Broadcast(hub.Event{Type: hub.EventStats, SystemID: p.cfg.SystemID, Stats: p.Stats()})
		}
	case hub.CommandReset:
		p.Reset()
	default:
		p.broadcastError(fmt.Errorf("unknown command %q", cmd.Type))
	}
}

func (p *Processor) broadcastError(err error) {
	fmt.Printf(`{"level":"error","msg":"command failed","error":"%v"}`+"\n", err)
	if p.hub != nil {
		p.hub.Broadcast(hub.Event{Type: hub.EventError, SystemID: p.cfg.SystemID, Text: err.Error()})
	}
}

// SetView switches the diagram perspective and re-broadcasts the
// snapshot so every client redraws.
func (p *Processor) SetView(view model.View) {
	p.store.SetView(p.cfg.WorkspaceID, p.cfg.SystemID, view)
	if p.hub != nil {
		p.hub.Broadcast(p.snapshotEvent())
	}
}

// Save persists the canonical graph. Explicit only, never per
// mutation.
func (p *Processor) Save(ctx context.Context) error {
	if p.db == nil {
		return fmt.Errorf("persistence is not configured")
	}
	g := p.store.Snapshot(p.cfg.WorkspaceID, p.cfg.SystemID)
	if err := p.db.Persist(ctx, g); err != nil {
		return err
	}
	if p.hub != nil {
		p.hub.Broadcast(hub.Event{
			Type:     hub.EventChat,
			SystemID: p.cfg.SystemID,
			Text:     fmt.Sprintf("Graph saved at v%d.", g.Version),
		})
	}
	return nil
}

// Stats gathers the current numbers for the stats command.
func (p *Processor) Stats() Stats {
	g := p.store.Snapshot(p.cfg.WorkspaceID, p.cfg.SystemID)
	clients := 0
	if p.hub != nil {
		clients = p.hub.ClientCount()
	}
	return Stats{
		SystemID:       p.cfg.SystemID,
		Version:        g.Version,
		Nodes:          len(g.Nodes),
		Edges:          len(g.Edges),
		Clients:        clients,
		PendingReviews: len(p.validator.PendingReviews()),
		Rewards:        p.router.Rewards(),
	}
}

// Reset clears pending reviews and reward accumulators. The graph
// itself is untouched.
func (p *Processor) Reset() {
	p.validator.Reset()
	p.router.Reset()
	if p.hub != nil {
		p.hub.Broadcast(hub.Event{Type: hub.EventStats, SystemID: p.cfg.SystemID, Stats: p.Stats()})
	}
}

func (p *Processor) updateSizeGauges() {
	g := p.store.Snapshot(p.cfg.WorkspaceID, p.cfg.SystemID)
	ArchgraphGraphSize.WithLabelValues(p.cfg.SystemID, "nodes").Set(float64(len(g.Nodes)))
	ArchgraphGraphSize.WithLabelValues(p.cfg.SystemID, "edges").Set(float64(len(g.Edges)))
}
