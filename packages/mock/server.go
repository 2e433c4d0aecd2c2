// Package mock serves an imitation of the admin console's conversation
// history screen, for running the history suite without the real console.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	// DefaultPort is the port Start listens on when none is set
	DefaultPort = 3000
	// DefaultRows is the number of generated chats
	DefaultRows = 25
	// HistoryPath is the path of the history screen
	HistoryPath = "/chat/history"
	// LoginPath is where requests without a session are sent
	LoginPath = "/auth/login"
)

// Server imitates the conversation history screen
type Server struct {
	router        *Router
	port          int
	delay         time.Duration
	verbose       bool
	chats         []Chat
	sessionCookie string
}

// Option is a functional option for Server
type Option func(*Server)

// WithPort sets the server port
func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithVerbose enables verbose logging
func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

// WithRows sets the number of chats in the history. Zero gives an empty table.
func WithRows(n int) Option {
	return func(s *Server) {
		if n >= 0 {
			s.chats = GenerateChats(n)
		}
	}
}

// WithSessionCookie requires a cookie of that name on the history screen
// and its API; without it pages redirect to the login screen.
func WithSessionCookie(name string) Option {
	return func(s *Server) {
		s.sessionCookie = name
	}
}

// NewServer creates a new console imitation
func NewServer(opts ...Option) *Server {
	s := &Server{
		router: NewRouter(),
		port:   DefaultPort,
		chats:  GenerateChats(DefaultRows),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.AddRoute(&Route{Method: http.MethodGet, PathPattern: "/", Name: "root", Handler: s.handleRoot})
	s.router.AddRoute(&Route{Method: http.MethodGet, PathPattern: HistoryPath, Name: "history", Handler: s.requireSession(s.handleHistory)})
	s.router.AddRoute(&Route{Method: http.MethodGet, PathPattern: "/api/chats", Name: "chats", Handler: s.requireSession(s.handleChats)})
	s.router.AddRoute(&Route{Method: http.MethodGet, PathPattern: "/api/chats/{{id}}", Name: "chat", Handler: s.requireSession(s.handleChat)})
	s.router.AddRoute(&Route{Method: http.MethodGet, PathPattern: LoginPath, Name: "login", Handler: s.handleLogin})
	s.router.AddRoute(&Route{Method: http.MethodGet, PathPattern: "/healthz", Name: "health", Handler: s.handleHealth})
}

// GetRoutes returns all registered routes
func (s *Server) GetRoutes() []*Route {
	return s.router.routes
}

// Chats returns the generated history.
func (s *Server) Chats() []Chat {
	return s.chats
}

// Handler returns the server's HTTP handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

// Start starts the console imitation
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the server with context for graceful shutdown
func (s *Server) StartWithContext(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Console imitation starting on http://localhost:%d%s", s.port, HistoryPath)
	log.Printf("Chats: %d", len(s.chats))
	if s.verbose {
		for _, route := range s.router.routes {
			log.Printf("  %s %s (%s)", route.Method, route.PathPattern, route.Name)
		}
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	// Apply delay if configured
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	route, params := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		status := http.StatusNotFound
		if s.router.Allowed(r.URL.Path) {
			status = http.StatusMethodNotAllowed
		}
		if s.verbose {
			log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, status, time.Since(start))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	route.Handler(rec, r, params)

	if s.verbose {
		log.Printf("%s %s -> %d (%s)", r.Method, r.URL.RequestURI(), rec.status, time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type routeHandler = func(w http.ResponseWriter, r *http.Request, params map[string]string)

func (s *Server) requireSession(next routeHandler) routeHandler {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		if s.sessionCookie == "" {
			next(w, r, params)
			return
		}
		if c, err := r.Cookie(s.sessionCookie); err == nil && c.Value != "" {
			next(w, r, params)
			return
		}
		if r.URL.Path == HistoryPath {
			target := LoginPath + "?redirect=" + url.QueryEscape(r.URL.RequestURI())
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no session"})
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	http.Redirect(w, r, HistoryPath, http.StatusFound)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleLogin(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = loginTemplate.Execute(w, nil)
}

type historyPage struct {
	Columns     []Column
	ColumnsJSON template.JS
	Chats       []Chat
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	cols, err := json.Marshal(Columns)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := historyTemplate.Execute(w, historyPage{
		Columns:     Columns,
		ColumnsJSON: template.JS(cols),
		Chats:       s.chats,
	}); err != nil {
		log.Printf("rendering history page: %v", err)
	}
}

// ChatsResponse is the body of GET /api/chats
type ChatsResponse struct {
	Chats []Chat `json:"chats"`
	Total int    `json:"total"`
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request, _ map[string]string) {
	q := r.URL.Query()
	var f Filter
	if v := q.Get("start"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		f.From = t
	}
	if v := q.Get("end"); v != "" {
		t, err := ParseDate(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		f.To = t
	}
	f.Search = q.Get("search")

	chats := f.Apply(s.chats)
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n < len(chats) {
			chats = chats[:n]
		}
	}
	writeJSON(w, http.StatusOK, ChatsResponse{Chats: chats, Total: len(chats)})
}

func (s *Server) handleChat(w http.ResponseWriter, _ *http.Request, params map[string]string) {
	for _, c := range s.chats {
		if c.ID == params["id"] {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "chat not found"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
