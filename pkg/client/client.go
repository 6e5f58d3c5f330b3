// Package client is the archgraph SDK used by the TUIs and the MCP
// adapter: REST calls for request/response operations plus a
// websocket subscription for the hub's event stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/archgraph/archgraph/pkg/engine"
	"github.com/archgraph/archgraph/pkg/hub"
	"github.com/archgraph/archgraph/pkg/model"
	"github.com/archgraph/archgraph/pkg/validate"
)

// Client is the archgraph SDK client.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a new archgraph client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http: &http.Client{
			// Chat turns wait on the reasoning engine.
			Timeout: 120 * time.Second,
		},
	}
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// Chat submits one user message and returns the turn result.
func (c *Client) Chat(ctx context.Context, text string) (engine.ChatResult, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return engine.ChatResult{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v1/chat", bytes.NewReader(body))
	if err != nil {
		return engine.ChatResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return engine.ChatResult{}, fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return engine.ChatResult{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result engine.ChatResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return engine.ChatResult{}, fmt.Errorf("failed to decode chat result: %w", err)
	}
	return result, nil
}

// Snapshot fetches the serialized Format-E graph.
func (c *Client) Snapshot(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/snapshot", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Graph fetches the full graph as structured data.
func (c *Client) Graph(ctx context.Context) (*model.GraphState, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/graph", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	var g model.GraphState
	if err := json.NewDecoder(resp.Body).Decode(&g); err != nil {
		return nil, err
	}
	return &g, nil
}

// Stats fetches graph and pipeline counters.
func (c *Client) Stats(ctx context.Context) (engine.Stats, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/stats", nil)
	if err != nil {
		return engine.Stats{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return engine.Stats{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return engine.Stats{}, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	var stats engine.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return engine.Stats{}, err
	}
	return stats, nil
}

// Reviews fetches the pending review questions.
func (c *Client) Reviews(ctx context.Context) ([]validate.ReviewQuestion, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.endpoint+"/v1/reviews", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	var reviews []validate.ReviewQuestion
	if err := json.NewDecoder(resp.Body).Decode(&reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Save asks the daemon to persist the canonical graph.
func (c *Client) Save(ctx context.Context) error {
	return c.post(ctx, "/v1/save", nil)
}

// Reset clears pending reviews and reward state.
func (c *Client) Reset(ctx context.Context) error {
	return c.post(ctx, "/v1/reset", nil)
}

// SetView switches the active diagram perspective.
func (c *Client) SetView(ctx context.Context, view model.View) error {
	body, err := json.Marshal(map[string]string{"view": string(view)})
	if err != nil {
		return err
	}
	return c.post(ctx, "/v1/view", body)
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	return nil
}

// Subscription is a live connection to the hub's event stream.
type Subscription struct {
	conn   *websocket.Conn
	Events chan hub.Event
}

// Subscribe opens the websocket and starts delivering events. The
// first event is always a full snapshot.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	wsURL := strings.Replace(c.endpoint, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to hub: %w", err)
	}

	sub := &Subscription{
		conn:   conn,
		Events: make(chan hub.Event, 16),
	}
	go sub.readLoop()
	return sub, nil
}

func (s *Subscription) readLoop() {
	defer close(s.Events)
	for {
		var e hub.Event
		if err := s.conn.ReadJSON(&e); err != nil {
			return
		}
		s.Events <- e
	}
}

// Send relays a command over the hub connection.
func (s *Subscription) Send(cmd hub.Command) error {
	return s.conn.WriteJSON(cmd)
}

// Close tears down the subscription.
func (s *Subscription) Close() error {
	return s.conn.Close()
}
