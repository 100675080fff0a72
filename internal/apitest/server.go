// Package apitest is an in-process fake of the MFALite backend, mounted
// under /v1 like the real service. Package tests run the client and CLI
// against it over httptest instead of mocking the transport.
package apitest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/me/mfalite/pkg/model"
)

// Server is the fake backend. Seed state before serving; all maps are
// guarded by mu so handlers and test assertions may interleave.
type Server struct {
	router chi.Router
	secret []byte
	start  time.Time

	mu           sync.Mutex
	users        map[string]model.User
	passwords    map[string]string // user ID -> login password
	hashes       map[string]string // user ID -> stored password_hash
	roles        map[string]model.Role
	inputs       map[string]model.InputFile
	reports      map[string]model.Report
	workAssets   map[string][]byte // "userID/reportID/file" -> content
	reportAssets map[string][]byte // "{reportID}-{file}" -> content
	runCounts    map[string]int64  // "user|product|status" -> count
	version      model.Version
}

// New creates an empty fake backend.
func New() *Server {
	s := &Server{
		router:       chi.NewRouter(),
		secret:       []byte("apitest-secret"),
		start:        time.Now(),
		users:        make(map[string]model.User),
		passwords:    make(map[string]string),
		hashes:       make(map[string]string),
		roles:        make(map[string]model.Role),
		inputs:       make(map[string]model.InputFile),
		reports:      make(map[string]model.Report),
		workAssets:   make(map[string][]byte),
		reportAssets: make(map[string][]byte),
		runCounts:    make(map[string]int64),
		version:      model.Version{Version: "1.4.2", Build: "apitest"},
	}
	s.routes()
	return s
}

// Handler returns the HTTP handler for httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.router }

// SeedUser registers an account and its login password.
func (s *Server) SeedUser(u model.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	s.passwords[u.ID] = password
}

// SeedRole registers a role.
func (s *Server) SeedRole(r model.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[r.ID] = r
}

// SeedInput registers an uploaded input file.
func (s *Server) SeedInput(f model.InputFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs[f.ID] = f
}

// SeedReport registers a report record.
func (s *Server) SeedReport(r model.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = r
}

// SeedWorkAsset registers a report working-directory asset served from
// /report-path/{userID}/work/{reportID}/{file}.
func (s *Server) SeedWorkAsset(userID, reportID, file string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workAssets[userID+"/"+reportID+"/"+file] = data
}

// SeedReportAsset registers a report-level asset (output zip, generated
// markdown) served from /report/{reportID}-{file}.
func (s *Server) SeedReportAsset(reportID, file string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportAssets[reportID+"-"+file] = data
}

// MintToken issues an access token for the given user, as /login would.
func (s *Server) MintToken(u model.User) string {
	u.Token = ""
	claims := model.Claims{
		User: &u,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return token
}

// PasswordHash returns the password_hash last stored for a user through
// the create or update endpoints.
func (s *Server) PasswordHash(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hashes[id]
	return h, ok
}

// Report returns a seeded or submitted report by ID.
func (s *Server) Report(id string) (model.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	return r, ok
}

// CompleteReport flips a report to a terminal status.
func (s *Server) CompleteReport(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[id]
	r.Status = status
	r.EndDatetime = time.Now().UnixMilli()
	s.reports[id] = r
}

func (s *Server) routes() {
	s.router.Route("/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/signup", s.handleSignup)
		r.Post("/forgot-password", s.handleNoContent)
		r.Get("/version", s.handleVersion)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/users", s.handleListUsers)
			r.Post("/user", s.handleCreateUser)
			r.Put("/user/{id}", s.handleUpdateUser)
			r.Delete("/user/{id}", s.handleDeleteUser)

			r.Get("/roles", s.handleListRoles)
			r.Post("/role", s.handleCreateRole)
			r.Put("/role/{id}", s.handleUpdateRole)
			r.Delete("/role/{id}", s.handleDeleteRole)

			r.Get("/inputs", s.handleListInputs)
			r.Post("/upload-file-content", s.handleUpload)
			r.Delete("/input/{id}", s.handleDeleteInput)

			r.Post("/run", s.handleRun)
			r.Get("/reports", s.handleListReports)
			r.Get("/report/{name}", s.handleReportAsset)
			r.Delete("/report/{id}", s.handleDeleteReport)
			r.Get("/report-path/{userID}/work/{reportID}/{file}", s.handleWorkAsset)

			r.Get("/server-status/default", s.handleServerStatus)
			r.Get("/run-stats/default", s.handleRunStats)
			r.Post("/assume-role", s.handleAssumeRole)
		})
	})
}

// requireAuth validates the bearer token and stashes nothing: handlers
// re-derive the caller from the subject when they need it.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := s.parseToken(raw); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) caller(r *http.Request) *model.User {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil
	}
	u, err := s.parseToken(raw)
	if err != nil {
		return nil
	}
	return u
}

func (s *Server) parseToken(raw string) (*model.User, error) {
	var claims model.Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if claims.User == nil {
		return nil, fmt.Errorf("no user claim")
	}
	return claims.User, nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	login := r.PostFormValue("email")
	if login == "" {
		login = r.PostFormValue("username")
	}
	password := r.PostFormValue("password")

	s.mu.Lock()
	var found *model.User
	for id, u := range s.users {
		if (u.Email == login || id == login) && s.passwords[id] == password {
			found = &u
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	writeJSON(w, model.LoginResponse{AccessToken: s.MintToken(*found)})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.users[req.Email] = model.User{ID: req.Email, Email: req.Email, CreatedAt: time.Now().UnixMilli()}
	s.passwords[req.Email] = req.Password
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleNoContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.version)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		u.Token = ""
		out = append(out, u)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req model.UserUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	u := model.User{
		ID: req.ID, Email: req.Email, Fullname: req.Fullname,
		Roles: req.Roles, CreatedAt: time.Now().UnixMilli(),
	}
	s.mu.Lock()
	s.users[u.ID] = u
	if req.PasswordHash != "" {
		s.hashes[u.ID] = req.PasswordHash
	}
	s.mu.Unlock()
	writeJSON(w, u)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req model.UserUpsert
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	u.Email, u.Fullname, u.Roles = req.Email, req.Fullname, req.Roles
	u.UpdatedAt = time.Now().UnixMilli()
	s.users[id] = u
	if req.PasswordHash != "" {
		s.hashes[id] = req.PasswordHash
	}
	writeJSON(w, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	delete(s.users, id)
	delete(s.passwords, id)
	delete(s.hashes, id)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]model.Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, out)
}

func (s *Server) handleCreateRole(w http.ResponseWriter, r *http.Request) {
	var role model.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil || role.ID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.roles[role.ID] = role
	s.mu.Unlock()
	writeJSON(w, role)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var role model.Role
	if err := json.NewDecoder(r.Body).Decode(&role); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	role.ID = id
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	s.roles[id] = role
	writeJSON(w, role)
}

func (s *Server) handleDeleteRole(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.roles, chi.URLParam(r, "id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListInputs(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	s.mu.Lock()
	out := make([]model.InputFile, 0)
	for _, f := range s.inputs {
		if userID == "" || f.UserID == userID {
			out = append(out, f)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UploadDate > out[j].UploadDate })
	writeJSON(w, out)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req model.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	content, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		http.Error(w, "bad file content", http.StatusBadRequest)
		return
	}
	f := model.InputFile{
		ID: req.ID, Filename: req.Filename, UserID: req.UserID,
		UploadDate: req.UploadDate, Size: int64(len(content)),
	}
	s.mu.Lock()
	s.inputs[f.ID] = f
	s.mu.Unlock()
	writeJSON(w, f)
}

func (s *Server) handleDeleteInput(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.inputs, chi.URLParam(r, "id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req model.RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	report := model.Report{
		ID: req.ID, UserID: req.UserID, Product: req.Product, Title: req.Title,
		Status: model.ReportStarted, InputFiles: req.InputFiles,
		StartDatetime: time.Now().UnixMilli(),
	}
	s.mu.Lock()
	s.reports[report.ID] = report
	s.runCounts[req.UserID+"|"+req.Product+"|"+model.ReportStarted]++
	s.mu.Unlock()
	writeJSON(w, report)
}

func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	s.mu.Lock()
	out := make([]model.Report, 0)
	for _, rep := range s.reports {
		if userID == "" || rep.UserID == userID {
			out = append(out, rep)
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartDatetime > out[j].StartDatetime })
	writeJSON(w, out)
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	delete(s.reports, chi.URLParam(r, "id"))
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// handleReportAsset serves /report/{reportID}-{file}, covering both the
// output zip download and generated per-report files.
func (s *Server) handleReportAsset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	data, ok := s.reportAssets[name]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(name))
	w.Write(data)
}

func (s *Server) handleWorkAsset(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "userID") + "/" + chi.URLParam(r, "reportID") + "/" + chi.URLParam(r, "file")
	s.mu.Lock()
	data, ok := s.workAssets[key]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", contentTypeFor(key))
	w.Write(data)
}

func (s *Server) handleServerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, model.ServerStatus{
		Status:             "ok",
		Uptime:             s.start.UnixMilli(),
		CPUUsage:           12,
		MemoryUsed:         4,
		MemoryAvailable:    12,
		DiskSpaceUsed:      40,
		DiskSpaceAvailable: 160,
		Config:             map[string]any{"workers": 2},
	})
}

func (s *Server) handleRunStats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	counts := make(map[string]int64, len(s.runCounts))
	for k, v := range s.runCounts {
		counts[k] = v
	}
	s.mu.Unlock()
	writeJSON(w, model.RunStats{RunCounts: counts})
}

func (s *Server) handleAssumeRole(w http.ResponseWriter, r *http.Request) {
	caller := s.caller(r)
	if caller == nil || !caller.IsAdmin() {
		http.Error(w, "admin only", http.StatusForbidden)
		return
	}
	var req struct {
		UserID string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	target, ok := s.users[req.UserID]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, model.LoginResponse{AccessToken: s.MintToken(target)})
}

func contentTypeFor(name string) string {
	switch {
	case strings.HasSuffix(name, ".zip"):
		return "application/zip"
	case strings.HasSuffix(name, ".png"):
		return "image/png"
	case strings.HasSuffix(name, ".md"), strings.HasSuffix(name, ".txt"), strings.HasSuffix(name, ".csv"), strings.HasSuffix(name, ".log"):
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
