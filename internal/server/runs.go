package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ziadkadry99/promptlab/internal/eval"
	"github.com/ziadkadry99/promptlab/internal/mcptools"
	"github.com/ziadkadry99/promptlab/internal/project"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// RunRequest starts an evaluation run. Zero fields fall back to the
// server's configured evaluation defaults.
type RunRequest struct {
	Loops        int     `json:"loops,omitempty"`
	Threshold    float64 `json:"threshold,omitempty"`
	MaxLoops     int     `json:"maxLoops,omitempty"`
	PromptModel  string  `json:"promptModel,omitempty"`
	AnswerModel  string  `json:"answerModel,omitempty"`
	ScoringModel string  `json:"scoringModel,omitempty"`
	// Detach returns immediately instead of streaming events; clients
	// attach to the event feed over the run's websocket endpoint.
	Detach bool `json:"detach,omitempty"`
}

// RunInfo describes one run the server has started.
type RunInfo struct {
	ID      string `json:"id"`
	Dir     string `json:"dir"`
	Running bool   `json:"running"`
}

// runHandle fans the run's single event channel out to any number of
// subscribers, buffering the full history so late subscribers replay
// from the start.
type runHandle struct {
	run *eval.Run

	mu     sync.Mutex
	events []eval.Event
	subs   map[chan eval.Event]struct{}
	closed bool
}

func newRunHandle(run *eval.Run) *runHandle {
	h := &runHandle{
		run:  run,
		subs: make(map[chan eval.Event]struct{}),
	}
	go h.pump()
	return h
}

func (h *runHandle) pump() {
	for ev := range h.run.Events {
		h.mu.Lock()
		h.events = append(h.events, ev)
		for sub := range h.subs {
			select {
			case sub <- ev:
			default:
				// Slow consumers are evicted rather than stalling the run.
				delete(h.subs, sub)
				close(sub)
			}
		}
		h.mu.Unlock()
	}

	h.mu.Lock()
	h.closed = true
	for sub := range h.subs {
		close(sub)
	}
	h.subs = make(map[chan eval.Event]struct{})
	h.mu.Unlock()
}

// subscribe returns a channel that replays the run's history and then
// delivers live events. The channel closes when the run finishes.
func (h *runHandle) subscribe() chan eval.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := make(chan eval.Event, len(h.events)+256)
	for _, ev := range h.events {
		sub <- ev
	}
	if h.closed {
		close(sub)
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

func (h *runHandle) unsubscribe(sub chan eval.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub)
	}
}

func (h *runHandle) running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.closed
}

// startRun loads the project and launches an evaluation run from the
// request, falling back to the server's evaluation defaults.
func (s *Server) startRun(req RunRequest) (*runHandle, error) {
	proj, err := project.Load(s.cfg.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("loading project: %w", err)
	}

	defaults := s.cfg.Eval
	models := eval.ModelRoles{
		Prompt:  firstNonEmpty(req.PromptModel, defaults.PromptModel),
		Answer:  firstNonEmpty(req.AnswerModel, defaults.AnswerModel),
		Scoring: firstNonEmpty(req.ScoringModel, defaults.ScoringModel),
	}
	loops := req.Loops
	if loops == 0 {
		loops = defaults.Loops
	}
	threshold := req.Threshold
	if threshold == 0 {
		threshold = defaults.Threshold
	}
	maxLoops := req.MaxLoops
	if maxLoops == 0 {
		maxLoops = defaults.MaxLoops
	}

	cfg := eval.RunConfig{
		Project:    proj,
		Store:      s.store,
		Models:     models,
		Loops:      loops,
		Threshold:  threshold,
		MaxLoops:   maxLoops,
		StageDelay: time.Duration(defaults.StageDelayMS) * time.Millisecond,
	}
	if s.history != nil {
		cfg.Recorder = s.history
	}

	if s.cfg.MCPServerURL != "" {
		probeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		inv, err := mcptools.Probe(probeCtx, s.cfg.MCPServerURL)
		cancel()
		if err != nil {
			log.Printf("server: MCP server %s unreachable: %v", s.cfg.MCPServerURL, err)
		} else {
			cfg.ToolContext = inv.Context()
		}
	}

	run, err := eval.NewRunner(s.service).Start(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	h := newRunHandle(run)
	s.mu.Lock()
	s.runs[run.ID] = h
	s.mu.Unlock()
	return h, nil
}

func (s *Server) runHandle(id string) (*runHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.runs[id]
	return h, ok
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h, err := s.startRun(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Detach {
		writeJSON(w, http.StatusAccepted, RunInfo{ID: h.run.ID, Dir: h.run.Dir, Running: true})
		return
	}

	s.streamRun(w, r, h, true)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	infos := make([]RunInfo, 0, len(s.runs))
	for _, h := range s.runs {
		infos = append(infos, RunInfo{ID: h.run.ID, Dir: h.run.Dir, Running: h.running()})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	h, ok := s.runHandle(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}
	h.run.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

// streamRun writes the run's events to the client as server-sent
// events. When cancelOnDisconnect is set, a dropped connection cancels
// the run itself.
func (s *Server) streamRun(w http.ResponseWriter, r *http.Request, h *runHandle, cancelOnDisconnect bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "data: %s\n\n", mustJSON(RunInfo{ID: h.run.ID, Dir: h.run.Dir, Running: true}))
	flusher.Flush()

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	for {
		select {
		case <-r.Context().Done():
			if cancelOnDisconnect {
				log.Printf("server: client gone, cancelling run %s", h.run.ID)
				h.run.Cancel()
			}
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", mustJSON(ev))
			flusher.Flush()
		}
	}
}

// handleRunEvents attaches a websocket client to a run's event feed.
// Disconnecting a watcher never cancels the run.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	h, ok := s.runHandle(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown run")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	// Drain client frames so control messages are processed; a read
	// error means the client went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("server: websocket read: %v", err)
				}
				return
			}
		}
	}()

	sub := h.subscribe()
	defer h.unsubscribe(sub)

	for {
		select {
		case <-gone:
			return
		case ev, ok := <-sub:
			if !ok {
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished")
				conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
