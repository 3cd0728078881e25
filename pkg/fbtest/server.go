// Package fbtest provides an in-process FileBrowser server and a scripted
// transport for tests.
package fbtest

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/crypto/bcrypt"
)

// Routes that can be made to fail with WithFault.
const (
	RouteLogin     = "login"
	RouteResources = "resources"
	RouteTusCreate = "tus-create"
	RouteTusPatch  = "tus-patch"
)

const tokenBytes = 32

// RecordedRequest is a request the server received.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
}

type tusUpload struct {
	length int64
	data   []byte
}

type errorResponse struct {
	Error string `json:"error"`
}

// Server is a minimal FileBrowser: login, resource upload and tus upload.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	users       map[string][]byte
	tokens      map[string]string
	files       map[string][]byte
	tus         map[string]*tusUpload
	faults      map[string]int
	requests    []RecordedRequest
	tokenFormat string
}

// Option configures a Server.
type Option func(*Server)

// WithUser registers a user. Passwords are stored as bcrypt hashes.
func WithUser(username, password string) Option {
	return func(s *Server) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}

		s.users[username] = hash
	}
}

// WithJSONToken makes login answer {"token": "..."} instead of the bare token.
func WithJSONToken() Option {
	return func(s *Server) {
		s.tokenFormat = "json"
	}
}

// WithFault makes route answer status without doing anything.
func WithFault(route string, status int) Option {
	return func(s *Server) {
		s.faults[route] = status
	}
}

// NewServer starts a server that is closed when the test ends.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		users:       make(map[string][]byte, 1),
		tokens:      make(map[string]string, 1),
		files:       make(map[string][]byte, 1),
		tus:         make(map[string]*tusUpload, 1),
		faults:      make(map[string]int),
		tokenFormat: "raw",
	}

	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(s.buildRouter())
	t.Cleanup(s.Close)

	return s
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(s.record)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Post("/resources/*", s.handleResourceUpload)
			r.Put("/resources/*", s.handleResourceUpload)
			r.Post("/tus/*", s.handleTusCreate)
			r.Patch("/tus/*", s.handleTusPatch)
		})
	})

	return r
}

// File returns the stored content at path.
func (s *Server) File(path string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.files[path]

	return data, ok
}

// Requests returns every request received so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]RecordedRequest(nil), s.requests...)
}

// CountRequests returns how many requests hit paths starting with prefix.
func (s *Server) CountRequests(method, prefix string) int {
	var n int

	for _, r := range s.Requests() {
		if r.Method == method && strings.HasPrefix(r.Path, prefix) {
			n++
		}
	}

	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) fault(w http.ResponseWriter, route string) bool {
	s.mu.Lock()
	status, ok := s.faults[route]
	s.mu.Unlock()

	if !ok {
		return false
	}

	writeJSON(w, status, errorResponse{"injected failure"})

	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return hex.EncodeToString(b), nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, RouteLogin) {
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid request body"})

		return
	}

	s.mu.Lock()
	hash, ok := s.users[req.Username]
	s.mu.Unlock()

	if !ok || bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, "403 Forbidden\n")

		return
	}

	token, err := generateToken()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{"internal error"})

		return
	}

	s.mu.Lock()
	s.tokens[token] = req.Username
	s.mu.Unlock()

	if s.tokenFormat == "json" {
		writeJSON(w, http.StatusOK, map[string]string{"token": token})

		return
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, token)
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth")
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = h[len("Bearer "):]
		}

		s.mu.Lock()
		_, ok := s.tokens[token]
		s.mu.Unlock()

		if token == "" || !ok {
			writeJSON(w, http.StatusUnauthorized, errorResponse{"not authenticated"})

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleResourceUpload(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, RouteResources) {
		return
	}

	path := "/" + chi.URLParam(r, "*")

	var (
		data []byte
		err  error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, ferr := r.FormFile("file")
		if ferr != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{"missing file field"})

			return
		}
		defer func() { _ = file.Close() }()

		data, err = io.ReadAll(file)
	} else {
		data, err = io.ReadAll(r.Body)
	}

	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"reading body"})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[path]; exists && r.URL.Query().Get("override") != "true" {
		writeJSON(w, http.StatusConflict, errorResponse{"file exists"})

		return
	}

	s.files[path] = data

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleTusCreate(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, RouteTusCreate) {
		return
	}

	if r.Header.Get("Tus-Resumable") != "1.0.0" {
		writeJSON(w, http.StatusPreconditionFailed, errorResponse{"unsupported tus version"})

		return
	}

	length, err := strconv.ParseInt(r.Header.Get("Upload-Length"), 10, 64)
	if err != nil || length < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid Upload-Length"})

		return
	}

	path := "/" + chi.URLParam(r, "*")

	s.mu.Lock()
	s.tus[path] = &tusUpload{length: length}
	s.files[path] = []byte{}
	s.mu.Unlock()

	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleTusPatch(w http.ResponseWriter, r *http.Request) {
	if s.fault(w, RouteTusPatch) {
		return
	}

	if r.Header.Get("Content-Type") != "application/offset+octet-stream" {
		writeJSON(w, http.StatusUnsupportedMediaType, errorResponse{"bad content type"})

		return
	}

	path := "/" + chi.URLParam(r, "*")

	s.mu.Lock()
	upload, ok := s.tus[path]
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{"upload not created"})

		return
	}

	offset, err := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
	if err != nil || offset != int64(len(upload.data)) {
		writeJSON(w, http.StatusConflict, errorResponse{"offset mismatch"})

		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"reading body"})

		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	upload.data = append(upload.data, data...)
	if int64(len(upload.data)) > upload.length {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{"exceeds Upload-Length"})

		return
	}

	s.files[path] = upload.data

	w.Header().Set("Upload-Offset", strconv.Itoa(len(upload.data)))
	w.WriteHeader(http.StatusNoContent)
}
