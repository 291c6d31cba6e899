// Package apitest runs an in-process fake of the catalog REST API. It speaks
// the same envelope contract the real server does, including the auth
// endpoints, the dual-identifier quirk on stored items and the optional CSRF
// handshake, so client packages can test against realistic behaviour.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

const (
	csrfHeader    = "X-CSRF-Token"
	csrfErrorCode = "CSRF_TOKEN_INVALID"
	tokenTTL      = time.Hour
)

var signingSecret = []byte("apitest-signing-secret")

type userRecord struct {
	id           string
	email        string
	passwordHash string
}

// Server is the fake API. Create with New, point the client at URL and Close
// when done.
type Server struct {
	http *httptest.Server

	mu        sync.Mutex
	users     map[string]userRecord
	tokens    map[string]string // issued bearer token -> email
	items     map[string][]map[string]any
	nextID    int
	hits      map[string]int
	csrf      bool
	csrfToken string
	legacyIDs bool
}

// Option configures the Server.
type Option func(*Server)

// WithCSRF enables the CSRF handshake: state-changing requests must present
// the current token, and every response advertises it via the header.
func WithCSRF() Option {
	return func(s *Server) {
		s.csrf = true
		s.csrfToken = uuid.New().String()
	}
}

// WithLegacyIDs makes created items carry only the legacy "id" field instead
// of "_id", exercising the dual-identifier path in clients.
func WithLegacyIDs() Option {
	return func(s *Server) { s.legacyIDs = true }
}

// New starts the fake server.
func New(options ...Option) *Server {
	s := &Server{
		users:  make(map[string]userRecord),
		tokens: make(map[string]string),
		items:  make(map[string][]map[string]any),
		hits:   make(map[string]int),
	}
	for _, opt := range options {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.countHits)
	if s.csrf {
		r.Use(s.checkCSRF)
	}
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/register", s.handleRegister).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/login", s.handleLogin).Methods(http.MethodPost)

	resources := r.PathPrefix("/api/{collection:books|scripts}").Subrouter()
	resources.Use(s.requireAuth)
	resources.HandleFunc("", s.handleList).Methods(http.MethodGet)
	resources.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	resources.HandleFunc("", s.handleCreate).Methods(http.MethodPost)
	resources.HandleFunc("/{id}", s.handleUpdate).Methods(http.MethodPut)
	resources.HandleFunc("/{id}", s.handleDelete).Methods(http.MethodDelete)

	s.http = httptest.NewServer(r)
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string { return s.http.URL }

// Close shuts the server down.
func (s *Server) Close() { s.http.Close() }

// Hits returns how many requests matched method and exact path.
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// RotateCSRF invalidates every previously issued CSRF token, forcing clients
// through the refresh-and-retry path.
func (s *Server) RotateCSRF() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrfToken = uuid.New().String()
}

// SeedUser registers a user directly, bypassing the endpoint.
func (s *Server) SeedUser(email, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(fmt.Sprintf("apitest: bcrypt seed failed: %v", err))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = userRecord{
		id:           uuid.New().String(),
		email:        email,
		passwordHash: string(hash),
	}
}

// SeedToken registers a pre-issued bearer token for email, so tests can skip
// the login exchange.
func (s *Server) SeedToken(email string) string {
	token := uuid.New().String()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[token] = email
	return token
}

// SeedItem stores an item as-is in the named collection and returns the
// identifier it was stored under. The caller controls which identifier
// field(s) the item carries.
func (s *Server) SeedItem(collection string, item map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[collection] = append(s.items[collection], item)
	if id, ok := item["_id"].(string); ok && id != "" {
		return id
	}
	id, _ := item["id"].(string)
	return id
}

func (s *Server) countHits(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// checkCSRF enforces the token on state-changing methods and advertises the
// current token on every response.
func (s *Server) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		current := s.csrfToken
		s.mu.Unlock()
		w.Header().Set(csrfHeader, current)

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if r.Header.Get(csrfHeader) != current {
				writeError(w, http.StatusForbidden, csrfErrorCode, "invalid csrf token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "", "Authentication required")
			return
		}
		s.mu.Lock()
		_, known := s.tokens[token]
		s.mu.Unlock()
		if !known {
			writeError(w, http.StatusUnauthorized, "", "Invalid or expired token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	_, exists := s.users[body.Email]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusBadRequest, "", "Email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "Registration failed")
		return
	}
	record := userRecord{
		id:           uuid.New().String(),
		email:        body.Email,
		passwordHash: string(hash),
	}
	s.mu.Lock()
	s.users[body.Email] = record
	s.mu.Unlock()

	writeData(w, http.StatusCreated, map[string]any{
		"user": map[string]any{"id": record.id, "email": record.email},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	record, exists := s.users[body.Email]
	s.mu.Unlock()
	if !exists || bcrypt.CompareHashAndPassword([]byte(record.passwordHash), []byte(body.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "", "Invalid email or password")
		return
	}

	token, err := s.issueToken(record)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", "Token issuance failed")
		return
	}

	writeData(w, http.StatusOK, map[string]any{
		"user":  map[string]any{"id": record.id, "email": record.email},
		"token": token,
	})
}

// issueToken signs a short-lived HS256 JWT for the user and remembers it as a
// valid bearer credential.
func (s *Server) issueToken(record userRecord) (string, error) {
	now := time.Now()
	claims := jwtlib.MapClaims{
		"sub":   record.id,
		"email": record.email,
		"iat":   now.Unix(),
		"exp":   now.Add(tokenTTL).Unix(),
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(signingSecret)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.tokens[token] = record.email
	s.mu.Unlock()
	return token, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	s.mu.Lock()
	items := append([]map[string]any{}, s.items[collection]...)
	s.mu.Unlock()
	writeData(w, http.StatusOK, items)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	query := strings.ToLower(r.URL.Query().Get("q"))
	page := intParam(r, "page", 1)
	limit := intParam(r, "limit", 10)

	s.mu.Lock()
	var matched []map[string]any
	for _, item := range s.items[collection] {
		title, _ := item["title"].(string)
		if query == "" || strings.Contains(strings.ToLower(title), query) {
			matched = append(matched, item)
		}
	}
	s.mu.Unlock()

	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	writeData(w, http.StatusOK, matched[start:end])
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	var item map[string]any
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	s.nextID++
	id := fmt.Sprintf("%s-%d", strings.TrimSuffix(collection, "s"), s.nextID)
	delete(item, "_id")
	delete(item, "id")
	if s.legacyIDs {
		item["id"] = id
	} else {
		item["_id"] = id
	}
	now := time.Now().UTC().Format(time.RFC3339)
	item["createdAt"] = now
	item["updatedAt"] = now
	s.items[collection] = append(s.items[collection], item)
	s.mu.Unlock()

	writeData(w, http.StatusCreated, item)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collection, id := vars["collection"], vars["id"]
	var updates map[string]any
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items[collection] {
		if !itemMatches(item, id) {
			continue
		}
		for k, v := range updates {
			if k == "_id" || k == "id" || k == "createdAt" {
				continue
			}
			item[k] = v
		}
		item["updatedAt"] = time.Now().UTC().Format(time.RFC3339)
		writeData(w, http.StatusOK, item)
		return
	}
	writeError(w, http.StatusNotFound, "", "Item not found")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	collection, id := vars["collection"], vars["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.items[collection]
	for i, item := range items {
		if itemMatches(item, id) {
			s.items[collection] = append(items[:i], items[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "", "Item not found")
}

func itemMatches(item map[string]any, id string) bool {
	if v, ok := item["_id"].(string); ok && v == id {
		return true
	}
	v, ok := item["id"].(string)
	return ok && v == id
}

func intParam(r *http.Request, name string, defaultValue int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return defaultValue
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	apiErr := map[string]any{"message": message}
	if code != "" {
		apiErr["code"] = code
	}
	writeJSON(w, status, map[string]any{"success": false, "error": apiErr})
}
