// Package stream runs flash grids over a websocket, reporting progress
// while points complete.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"Flashgrid/internal/calc/flashapi"
	"Flashgrid/internal/flash"
	"Flashgrid/internal/fluid"
)

// Message is the envelope for both directions. Clients send "start" with
// an endpoint and request, or "stop"; the server answers with "started",
// "progress", "result", "stopped" or "error".
type Message struct {
	Type     string          `json:"type"`
	Endpoint string          `json:"endpoint,omitempty"`
	Request  json.RawMessage `json:"request,omitempty"`

	RunID    string          `json:"run_id,omitempty"`
	Done     int             `json:"done,omitempty"`
	Total    int             `json:"total,omitempty"`
	Results  []*flash.State  `json:"results,omitempty"`
	GridInfo *flash.GridInfo `json:"grid_info,omitempty"`
	Error    string          `json:"error,omitempty"`
}

type Handler struct {
	Upgrader     websocket.Upgrader
	API          *flashapi.Handler
	WriteTimeout time.Duration
	Log          log.FieldLogger
}

// conn serializes writes; gorilla connections allow one writer at a time.
type conn struct {
	ws      *websocket.Conn
	mu      sync.Mutex
	timeout time.Duration
}

func (c *conn) send(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.ws.WriteJSON(&m)
}

func (h *Handler) logger() log.FieldLogger {
	if h.Log == nil {
		return log.StandardLogger()
	}
	return h.Log
}

func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ws, err := h.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer ws.Close()
	c := &conn{ws: ws, timeout: h.WriteTimeout}

	var (
		mu     sync.Mutex
		cancel context.CancelFunc
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		if cancel != nil {
			cancel()
		}
		mu.Unlock()
		wg.Wait()
	}()

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger().WithError(err).Debug("websocket read")
			}
			return
		}

		switch msg.Type {
		case "start":
			mu.Lock()
			busy := cancel != nil
			mu.Unlock()
			if busy {
				_ = c.send(Message{Type: "error", Error: "a calculation is already running"})
				continue
			}
			prep, err := h.prepare(msg)
			if err != nil {
				_ = c.send(Message{Type: "error", Error: err.Error()})
				continue
			}
			ctx, stop := context.WithCancel(r.Context())
			mu.Lock()
			cancel = stop
			mu.Unlock()
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.run(ctx, c, prep)
				mu.Lock()
				stop()
				cancel = nil
				mu.Unlock()
			}()
		case "stop":
			mu.Lock()
			if cancel != nil {
				cancel()
			}
			mu.Unlock()
			_ = c.send(Message{Type: "stopped"})
		default:
			_ = c.send(Message{Type: "error", Error: "unknown message type " + msg.Type})
		}
	}
}

func (h *Handler) prepare(msg Message) (flashapi.Prepared, error) {
	kind, err := flash.ParseKind(msg.Endpoint)
	if err != nil {
		return flashapi.Prepared{}, &fluid.ValidationError{Field: "endpoint", Reason: err.Error()}
	}
	in, err := flashapi.Decode(bytes.NewReader(msg.Request))
	if err != nil {
		return flashapi.Prepared{}, err
	}
	prep, err := flashapi.Prepare(kind, in, h.API.Defaults, false)
	if err != nil {
		return flashapi.Prepared{}, err
	}
	prep.Format = flashapi.FormatJSON
	return prep, nil
}

func (h *Handler) run(ctx context.Context, c *conn, prep flashapi.Prepared) {
	defer func() {
		if p := recover(); p != nil {
			h.logger().WithField("panic", p).Error("flash run aborted")
			_ = c.send(Message{Type: "error", Error: fmt.Sprintf("calculation aborted: %v", p)})
		}
	}()
	var last int
	var lastMu sync.Mutex
	prep.Request.Options.Progress = func(done, total int) {
		pct := done * 100 / total
		lastMu.Lock()
		if pct == last && done != total {
			lastMu.Unlock()
			return
		}
		last = pct
		lastMu.Unlock()
		_ = c.send(Message{Type: "progress", Done: done, Total: total})
	}

	_ = c.send(Message{Type: "started", Endpoint: string(prep.Request.Kind)})
	run, err := h.API.Orchestrator.CalculateGrid(ctx, prep.Request)
	if err != nil {
		_ = c.send(Message{Type: "error", Error: err.Error()})
		return
	}

	h.API.Record(ctx, run, flashapi.FormatJSON)

	results := run.Results()
	out := make([]*flash.State, len(results))
	for k, s := range results {
		out[k] = s.Converted(prep.System, run.MolarMass)
	}
	info := run.Info
	if err := c.send(Message{Type: "result", RunID: run.ID.String(), Results: out, GridInfo: &info}); err != nil {
		h.logger().WithError(err).WithField("run", run.ID).Warn("sending result")
	}
}
