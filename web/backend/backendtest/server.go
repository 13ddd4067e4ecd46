// Package backendtest runs an in-process imitation of the Antarex API for
// tests and local development. It keeps users and alerts in memory and
// enforces the same role rules as the real service.
package backendtest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/antarex-ai/dashboard/util/crypto"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
)

// Seeded accounts, matching the API's defaults.
const (
	SuperadminPassword = "super123"
	AdminPassword      = "admin123"
	ViewerPassword     = "readonly123"
)

type user struct {
	id        int
	username  string
	hash      string
	role      string
	createdAt time.Time
}

type alert struct {
	Filename   string    `json:"filename"`
	Verdict    string    `json:"verdict"`
	Confidence string    `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
	content    []byte
}

// Server is a fake Antarex API listening on a local port.
type Server struct {
	*httptest.Server

	secret []byte

	mu      sync.Mutex
	users   map[string]*user
	nextID  int
	alerts  []*alert
	calls   map[string]int
	issued  int
	// tokens with a sequence number up to revokedUpTo are rejected.
	revokedUpTo int
	// failures forces a status on the next calls to a path.
	failures map[string]int
}

// NewServer starts a fake API seeded with superadmin, admin and viewer.
func NewServer() *Server {
	s := &Server{
		secret:   []byte("backendtest-secret"),
		users:    make(map[string]*user),
		calls:    make(map[string]int),
		failures: make(map[string]int),
	}
	s.AddUser("superadmin", SuperadminPassword, "superadmin")
	s.AddUser("admin", AdminPassword, "admin")
	s.AddUser("viewer", ViewerPassword, "read_only")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.HandleFunc("POST /auth/login", s.login)
	mux.HandleFunc("POST /auth/change-password", s.authed(s.changePassword))
	mux.HandleFunc("POST /auth/add-user", s.authed(s.addUser))
	mux.HandleFunc("GET /auth/users", s.authed(s.listUsers))
	mux.HandleFunc("DELETE /auth/delete-user/{username}", s.authed(s.deleteUser))
	mux.HandleFunc("POST /auth/reset-password/{username}", s.authed(s.resetPassword))
	mux.HandleFunc("GET /alerts", s.listAlerts)
	mux.HandleFunc("POST /alerts/bulk-update", s.authed(s.bulkUpdate))
	mux.HandleFunc("POST /upload", s.authed(s.upload))
	mux.HandleFunc("GET /download/{filename}", s.authed(s.download))
	mux.HandleFunc("GET /export/csv", s.authed(s.exportCSV))

	s.Server = httptest.NewServer(s.count(mux))
	return s
}

// AddUser inserts an account directly, bypassing role checks.
func (s *Server) AddUser(username, password, role string) {
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.users[username] = &user{id: s.nextID, username: username, hash: hash, role: role, createdAt: time.Now().UTC()}
}

// AddAlert stores an alert as if it had been uploaded and classified.
func (s *Server) AddAlert(filename, verdict, confidence string, createdAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, &alert{
		Filename:   filename,
		Verdict:    verdict,
		Confidence: confidence,
		CreatedAt:  createdAt,
		content:    []byte("%PDF-1.4 " + filename),
	})
}

// HasUser reports whether the account exists.
func (s *Server) HasUser(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok
}

// CheckPassword reports whether password is the account's current password.
func (s *Server) CheckPassword(username, password string) bool {
	s.mu.Lock()
	u, ok := s.users[username]
	s.mu.Unlock()
	return ok && crypto.CheckPasswordHash(u.hash, password)
}

// RevokeTokens makes every token issued so far invalid, as if it expired.
// Tokens issued afterwards work.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedUpTo = s.issued
}

// FailNext makes the next call to path answer with status.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Calls returns how many requests reached path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns how many requests reached the server.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		status, fail := s.failures[r.URL.Path]
		delete(s.failures, r.URL.Path)
		s.mu.Unlock()
		if fail {
			writeDetail(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (s *Server) issue(u *user) string {
	s.mu.Lock()
	s.issued++
	seq := s.issued
	s.mu.Unlock()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        strconv.Itoa(seq),
			Subject:   u.username,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(7 * 24 * time.Hour)),
		},
	}).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	return token
}

type handler func(w http.ResponseWriter, r *http.Request, current *user)

// authed resolves the bearer token the way the API does: a missing or bad
// token is 401, a token for a deleted account is 404.
func (s *Server) authed(h handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeDetail(w, http.StatusUnauthorized, "Missing or invalid token")
			return
		}
		var c claims
		_, err := jwt.ParseWithClaims(strings.TrimSpace(auth[len("Bearer "):]), &c, func(*jwt.Token) (any, error) {
			return s.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		seq, _ := strconv.Atoi(c.ID)
		s.mu.Lock()
		revoked := seq <= s.revokedUpTo
		u := s.users[c.Subject]
		s.mu.Unlock()
		if err != nil || revoked {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		if u == nil {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
		h(w, r, u)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid form")
		return
	}
	s.mu.Lock()
	u := s.users[r.PostForm.Get("username")]
	s.mu.Unlock()
	if u == nil || !crypto.CheckPasswordHash(u.hash, r.PostForm.Get("password")) {
		writeDetail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"access_token": s.issue(u),
		"role":         u.role,
		"token_type":   "bearer",
	})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request, current *user) {
	var body struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if !crypto.CheckPasswordHash(current.hash, body.OldPassword) {
		writeDetail(w, http.StatusBadRequest, "Incorrect old password")
		return
	}
	s.setPassword(current, body.NewPassword)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (s *Server) addUser(w http.ResponseWriter, r *http.Request, current *user) {
	if current.role != "superadmin" {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if !decode(w, r, &body) {
		return
	}
	if s.HasUser(body.Username) {
		writeDetail(w, http.StatusBadRequest, "User already exists")
		return
	}
	s.AddUser(body.Username, body.Password, body.Role)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("User %s created", body.Username),
		"role":    body.Role,
	})
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request, current *user) {
	if current.role != "superadmin" && current.role != "admin" {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	s.mu.Lock()
	out := make([]map[string]any, 0, len(s.users))
	for _, u := range s.users {
		if current.role == "admin" && u.role == "superadmin" {
			continue
		}
		out = append(out, map[string]any{
			"id":         u.id,
			"username":   u.username,
			"role":       u.role,
			"created_at": u.createdAt.Format("2006-01-02T15:04:05.000000"),
		})
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i]["id"].(int) < out[j]["id"].(int) })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request, current *user) {
	if current.role != "superadmin" {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	name := r.PathValue("username")
	s.mu.Lock()
	defer s.mu.Unlock()
	target := s.users[name]
	if target == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	if target.role == "superadmin" {
		writeDetail(w, http.StatusForbidden, "Cannot delete superadmin")
		return
	}
	delete(s.users, name)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("User '%s' deleted successfully", name)})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request, current *user) {
	name := r.PathValue("username")
	s.mu.Lock()
	target := s.users[name]
	s.mu.Unlock()
	if target == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	// The API lets admins reset any admin; the panel is stricter.
	allowed := current.role == "superadmin" ||
		(current.role == "admin" && (target.role == "read_only" || target.role == "admin"))
	if !allowed {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	var body struct {
		NewPassword string `json:"new_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.NewPassword == "" {
		writeDetail(w, http.StatusBadRequest, "New password required")
		return
	}
	s.setPassword(target, body.NewPassword)
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Password reset for user '%s'", name)})
}

func (s *Server) setPassword(u *user, password string) {
	hash, err := crypto.HashPasswordAsBcrypt(password)
	if err != nil {
		panic(err)
	}
	s.mu.Lock()
	u.hash = hash
	s.mu.Unlock()
}

func (s *Server) listAlerts(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := make([]*alert, 0, len(s.alerts))
	for i := len(s.alerts) - 1; i >= 0 && len(out) < 50; i-- {
		out = append(out, s.alerts[i])
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"count": len(out), "alerts": out})
}

func (s *Server) bulkUpdate(w http.ResponseWriter, r *http.Request, current *user) {
	if current.role != "admin" && current.role != "superadmin" {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	var body struct {
		Scope      string   `json:"scope"`
		Filenames  []string `json:"filenames"`
		Verdict    string   `json:"verdict"`
		Confidence string   `json:"confidence"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Confidence == "" {
		body.Confidence = "100%"
	}
	selected := make(map[string]bool)
	for _, f := range body.Filenames {
		selected[f] = true
	}
	s.mu.Lock()
	updated := 0
	for _, a := range s.alerts {
		match := false
		switch body.Scope {
		case "", "pending":
			match = a.Verdict == "" || a.Verdict == "Pending"
		case "all":
			match = true
		case "filenames":
			match = selected[a.Filename]
		default:
			s.mu.Unlock()
			writeDetail(w, http.StatusBadRequest, "Invalid scope")
			return
		}
		if match {
			a.Verdict = body.Verdict
			a.Confidence = body.Confidence
			updated++
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "verdict": body.Verdict, "confidence": body.Confidence})
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request, _ *user) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid multipart body")
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["file"]
	}
	var uploaded []string
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Upload failed")
			return
		}
		content, _ := io.ReadAll(f)
		_ = f.Close()

		s.mu.Lock()
		dup := false
		for _, a := range s.alerts {
			if a.Filename == fh.Filename {
				dup = true
				break
			}
		}
		if !dup {
			s.alerts = append(s.alerts, &alert{
				Filename:   fh.Filename,
				Verdict:    "Pending",
				Confidence: "0%",
				CreatedAt:  time.Now().UTC(),
				content:    content,
			})
			uploaded = append(uploaded, fh.Filename)
		}
		s.mu.Unlock()
	}
	if len(uploaded) == 0 {
		writeDetail(w, http.StatusBadRequest, "No new files uploaded (all duplicates).")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Uploaded %d file(s)", len(uploaded)),
		"files":   uploaded,
	})
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, current *user) {
	if current.role != "admin" && current.role != "superadmin" {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	name := r.PathValue("filename")
	s.mu.Lock()
	var found *alert
	for _, a := range s.alerts {
		if a.Filename == name {
			found = a
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		writeDetail(w, http.StatusNotFound, "File not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	_, _ = w.Write(found.content)
}

func (s *Server) exportCSV(w http.ResponseWriter, _ *http.Request, current *user) {
	if current.role != "admin" && current.role != "superadmin" {
		writeDetail(w, http.StatusForbidden, "Permission denied")
		return
	}
	var b strings.Builder
	b.WriteString("Filename,Verdict,Confidence,Created At\r\n")
	s.mu.Lock()
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		fmt.Fprintf(&b, "%s,%s,%s,%s\r\n", a.Filename, a.Verdict, a.Confidence, a.CreatedAt.Format(time.RFC3339))
	}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=alerts_export.csv")
	_, _ = io.WriteString(w, b.String())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
