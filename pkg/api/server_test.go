package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/archgraph/archgraph/pkg/engine"
	"github.com/archgraph/archgraph/pkg/model"
	"github.com/archgraph/archgraph/pkg/validate"
)

type mockProcessor struct {
	chatResult engine.ChatResult
	chatErr    error
	snapshot   string
	stats      engine.Stats
	saveErr    error
	resetCount int
	lastView   model.View
	reviews    []validate.ReviewQuestion
}

func (m *mockProcessor) HandleChat(ctx context.Context, text string) (engine.ChatResult, error) {
	return m.chatResult, m.chatErr
}
func (m *mockProcessor) SnapshotText() string                      { return m.snapshot }
func (m *mockProcessor) Stats() engine.Stats                       { return m.stats }
func (m *mockProcessor) Save(ctx context.Context) error            { return m.saveErr }
func (m *mockProcessor) Reset()                                    { m.resetCount++ }
func (m *mockProcessor) SetView(view model.View)                   { m.lastView = view }
func (m *mockProcessor) PendingReviews() []validate.ReviewQuestion { return m.reviews }

type mockGraphs struct{ g *model.GraphState }

func (m *mockGraphs) Snapshot(workspaceID, systemID string) *model.GraphState { return m.g }

func newTestServer(proc *mockProcessor) *httptest.Server {
	graphs := &mockGraphs{g: model.NewGraphState("ws", "Sys.SY.001")}
	s := NewServer(proc, graphs, nil, "ws", "Sys.SY.001", "")
	return httptest.NewServer(s.server.Handler)
}

func TestHandleHealth(t *testing.T) {
	ts := newTestServer(&mockProcessor{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Trace-ID") == "" {
		t.Errorf("no trace id header")
	}
}

func TestHandleChat(t *testing.T) {
	proc := &mockProcessor{chatResult: engine.ChatResult{Text: "done", Applied: true, Version: 2}}
	ts := newTestServer(proc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json", strings.NewReader(`{"text":"add a node"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var result engine.ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !result.Applied || result.Version != 2 {
		t.Errorf("result = %+v", result)
	}
}

func TestHandleChatRejectsEmptyText(t *testing.T) {
	ts := newTestServer(&mockProcessor{})
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/chat", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleChatRejectsGet(t *testing.T) {
	ts := newTestServer(&mockProcessor{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/chat")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestHandleSnapshot(t *testing.T) {
	proc := &mockProcessor{snapshot: "## Nodes\n## Edges\n"}
	ts := newTestServer(proc)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/snapshot")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(body) != "## Nodes\n## Edges\n" {
		t.Errorf("body = %q", body)
	}
}

func TestHandleReviewsReturnsEmptyArray(t *testing.T) {
	ts := newTestServer(&mockProcessor{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/reviews")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var reviews []validate.ReviewQuestion
	if err := json.NewDecoder(resp.Body).Decode(&reviews); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if reviews == nil || len(reviews) != 0 {
		t.Errorf("want empty array, got %v", reviews)
	}
}

func TestHandleView(t *testing.T) {
	proc := &mockProcessor{}
	ts := newTestServer(proc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/view", "application/json", strings.NewReader(`{"view":"functional"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if proc.lastView != model.ViewFunctional {
		t.Errorf("view = %s", proc.lastView)
	}

	resp, err = http.Post(ts.URL+"/v1/view", "application/json", strings.NewReader(`{"view":"sideways"}`))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown view status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleReset(t *testing.T) {
	proc := &mockProcessor{}
	ts := newTestServer(proc)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/reset", "application/json", nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	if proc.resetCount != 1 {
		t.Errorf("reset count = %d", proc.resetCount)
	}
}
