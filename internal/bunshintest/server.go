// Package bunshintest runs an in-process stand-in for the bunshin dashboard
// backend: the six REST endpoints and the two WebSocket streams, with the
// same request and response shapes as the real server.
package bunshintest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"bunshinctl/internal/api"
)

// ShellMode selects what the shell stream is wired to.
type ShellMode int

const (
	// ShellEcho writes a prompt and echoes every frame it receives.
	ShellEcho ShellMode = iota
	// ShellPTY runs /bin/sh under a pseudo-terminal.
	ShellPTY
)

// Request is one recorded HTTP or WebSocket request.
type Request struct {
	Method string
	Path   string
	Query  url.Values
}

// Server is the fake backend. Zero or more stacks are seeded through the
// setter methods; all state is guarded by mu.
type Server struct {
	*httptest.Server

	upgrader websocket.Upgrader

	mu         sync.Mutex
	stacks     map[string]api.Definition
	status     map[string]api.Status
	containers map[string][]api.Container
	logLines   map[string][]string
	holdLogs   bool
	shellMode  ShellMode
	failPaths  map[string]int
	requests   []Request
	shellInput [][]byte

	active   map[string]int
	activeCh chan struct{}
}

// NewServer starts a Server and registers its shutdown with t.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		stacks:     map[string]api.Definition{},
		status:     map[string]api.Status{},
		containers: map[string][]api.Container{},
		logLines:   map[string][]string{},
		holdLogs:   true,
		failPaths:  map[string]int{},
		active:     map[string]int{},
		activeCh:   make(chan struct{}, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/stacks", s.record(s.handleListStacks))
	mux.HandleFunc("/api/stack/get", s.record(s.handleGetStack))
	mux.HandleFunc("/api/stack/save", s.record(s.handleSaveStack))
	mux.HandleFunc("/api/stack/status", s.record(s.handleStatus))
	mux.HandleFunc("/api/stack/action", s.record(s.handleAction))
	mux.HandleFunc("/api/stack/containers", s.record(s.handleContainers))
	mux.HandleFunc("/ws/logs", s.record(s.handleLogs))
	mux.HandleFunc("/ws/shell", s.record(s.handleShell))

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddStack seeds a stack definition.
func (s *Server) AddStack(name string, def api.Definition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stacks[name] = def
}

// SetStatus sets the status text returned for name.
func (s *Server) SetStatus(name string, st api.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[name] = st
}

// SetContainers sets the running containers of name.
func (s *Server) SetContainers(name string, list ...api.Container) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[name] = list
}

// SetLogLines sets the frames sent to a log stream for containerID.
func (s *Server) SetLogLines(containerID string, lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logLines[containerID] = lines
}

// SetHoldLogs controls whether log streams stay open after their lines are
// sent (the default, like a followed container) or close normally.
func (s *Server) SetHoldLogs(hold bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holdLogs = hold
}

// SetShellMode selects the shell backend.
func (s *Server) SetShellMode(m ShellMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shellMode = m
}

// FailNext makes the next n requests to path answer 500.
func (s *Server) FailNext(path string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPaths[path] = n
}

// Definition returns what is stored for name.
func (s *Server) Definition(name string) (api.Definition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	def, ok := s.stacks[name]
	return def, ok
}

// Requests returns the requests seen so far whose path matches path, or
// all requests when path is empty.
func (s *Server) Requests(path string) []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Request
	for _, r := range s.requests {
		if path == "" || r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// ShellInput returns the frames received on shell streams.
func (s *Server) ShellInput() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.shellInput...)
}

// Active returns the number of open streams of kind ("logs" or "shell").
func (s *Server) Active(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[kind]
}

// WaitActive blocks until Active(kind) == n or timeout passes.
func (s *Server) WaitActive(kind string, n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		if s.Active(kind) == n {
			return true
		}
		select {
		case <-s.activeCh:
		case <-time.After(10 * time.Millisecond):
		case <-deadline:
			return s.Active(kind) == n
		}
	}
}

func (s *Server) track(kind string, delta int) {
	s.mu.Lock()
	s.active[kind] += delta
	s.mu.Unlock()
	select {
	case s.activeCh <- struct{}{}:
	default:
	}
}

func (s *Server) record(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query()})
		fail := s.failPaths[r.URL.Path]
		if fail > 0 {
			s.failPaths[r.URL.Path] = fail - 1
		}
		s.mu.Unlock()

		if fail > 0 {
			http.Error(w, `{"error":"injected failure"}`, http.StatusInternalServerError)
			return
		}
		h(w, r)
	}
}

func (s *Server) handleListStacks(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	names := make([]string, 0, len(s.stacks))
	for name := range s.stacks {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	writeJSON(w, names)
}

func (s *Server) handleGetStack(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	def := s.stacks[r.URL.Query().Get("name")]
	s.mu.Unlock()
	writeJSON(w, map[string]string{"yaml": def.YAML, "env": def.Env})
}

func (s *Server) handleSaveStack(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct{ Name, YAML, Env string }
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.stacks[req.Name] = api.Definition{YAML: req.YAML, Env: req.Env}
	s.mu.Unlock()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st, ok := s.status[r.URL.Query().Get("name")]
	s.mu.Unlock()
	if !ok {
		st = api.StatusStopped
	}
	fmt.Fprint(w, st)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("name")
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stacks[name]; !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	switch r.URL.Query().Get("action") {
	case "stop":
		s.status[name] = api.StatusStopped
	case "start", "update":
		s.status[name] = api.StatusOperational
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleContainers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := s.containers[r.URL.Query().Get("name")]
	s.mu.Unlock()
	if list == nil {
		list = []api.Container{}
	}
	writeJSON(w, list)
}

// target resolves the container a stream attaches to the way the backend
// does: exact id, then id prefix, then the first container.
func (s *Server) target(stack, id string) (api.Container, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.containers[stack]
	if len(list) == 0 {
		return api.Container{}, false
	}
	if id != "" {
		for _, c := range list {
			if c.ID == id || strings.HasPrefix(c.ID, id) {
				return c, true
			}
		}
	}
	return list[0], true
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.track("logs", 1)
	defer s.track("logs", -1)

	c, ok := s.target(r.URL.Query().Get("name"), r.URL.Query().Get("container"))
	if !ok {
		return
	}

	s.mu.Lock()
	lines := append([]string(nil), s.logLines[c.ID]...)
	hold := s.holdLogs
	s.mu.Unlock()

	for _, line := range lines {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
	if !hold {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		return
	}
	// Followed stream: stay open until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	s.track("shell", 1)
	defer s.track("shell", -1)

	if _, ok := s.target(r.URL.Query().Get("name"), r.URL.Query().Get("container")); !ok {
		return
	}

	s.mu.Lock()
	mode := s.shellMode
	s.mu.Unlock()

	if mode == ShellPTY {
		s.bridgePTY(conn)
		return
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte("/ # "))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.shellInput = append(s.shellInput, msg)
		s.mu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
