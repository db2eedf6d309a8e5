package integration

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
)

// MockVendorServer simulates the vendor's app API for end-to-end tests:
// prelogin, login, a few feed endpoints and both upload flows.
type MockVendorServer struct {
	server *httptest.Server

	mu            sync.Mutex
	requests      []string
	chunksSeen    []string
	loginAttempts int

	// Password accepted by accounts/login/
	Password string
	// FailChunk makes the given chunk index return a broken body
	FailChunk int
}

// NewMockVendorServer starts the mock. Callers must Close it.
func NewMockVendorServer() *MockVendorServer {
	m := &MockVendorServer{Password: "hunter2", FailChunk: -1}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/si/fetch_headers/", m.handlePrelogin)
	mux.HandleFunc("/api/v1/accounts/login/", m.handleLogin)
	mux.HandleFunc("/api/v1/feed/timeline/", m.handleTimeline)
	mux.HandleFunc("/api/v1/users/", m.handleUserInfo)
	mux.HandleFunc("/api/v1/upload/photo/", m.handlePhotoUpload)
	mux.HandleFunc("/api/v1/upload/video/", m.handleVideoJob)
	mux.HandleFunc("/rupload/chunk", m.handleChunk)
	mux.HandleFunc("/api/v1/media/configure/", m.handleConfigure)

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Method+" "+r.URL.Path)
		m.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	return m
}

// URL returns the mock's base URL
func (m *MockVendorServer) URL() string {
	return m.server.URL
}

// Host returns the mock's host:port
func (m *MockVendorServer) Host() string {
	u, _ := url.Parse(m.server.URL)
	return u.Host
}

// Close shuts the mock down
func (m *MockVendorServer) Close() {
	m.server.Close()
}

// Requests returns the request log as "METHOD /path" strings
func (m *MockVendorServer) Requests() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.requests))
	copy(out, m.requests)
	return out
}

// Chunks returns the Content-Range of every chunk received
func (m *MockVendorServer) Chunks() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.chunksSeen))
	copy(out, m.chunksSeen)
	return out
}

// LoginAttempts returns how many credential posts arrived
func (m *MockVendorServer) LoginAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginAttempts
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (m *MockVendorServer) handlePrelogin(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "mock-csrf", Path: "/"})
	writeJSON(w, 200, map[string]interface{}{"status": "ok"})
}

// signedPayload decodes the JSON half of a signed_body form post
func signedPayload(r *http.Request) (map[string]interface{}, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	signed := r.PostFormValue("signed_body")
	dot := strings.Index(signed, ".")
	if dot < 0 {
		return nil, fmt.Errorf("malformed signed_body")
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(signed[dot+1:]), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (m *MockVendorServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.loginAttempts++
	m.mu.Unlock()

	payload, err := signedPayload(r)
	if err != nil {
		writeJSON(w, 400, map[string]interface{}{"status": "fail", "message": "malformed request"})
		return
	}
	if payload["_csrftoken"] != "mock-csrf" {
		writeJSON(w, 400, map[string]interface{}{"status": "fail", "message": "missing csrf"})
		return
	}
	if payload["password"] != m.Password {
		writeJSON(w, 400, map[string]interface{}{"status": "fail", "message": "bad_password"})
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "mock-session", Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "ds_user_id", Value: "12345", Path: "/"})
	http.SetCookie(w, &http.Cookie{Name: "ds_user", Value: fmt.Sprint(payload["username"]), Path: "/"})
	writeJSON(w, 200, map[string]interface{}{
		"status": "ok",
		"logged_in_user": map[string]interface{}{
			"pk":       12345,
			"username": payload["username"],
		},
	})
}

// requireSession rejects calls without the session cookie
func (m *MockVendorServer) requireSession(w http.ResponseWriter, r *http.Request) bool {
	if c, err := r.Cookie("sessionid"); err != nil || c.Value == "" {
		writeJSON(w, 403, map[string]interface{}{"status": "fail", "message": "login_required"})
		return false
	}
	return true
}

func (m *MockVendorServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if !m.requireSession(w, r) {
		return
	}
	writeJSON(w, 200, map[string]interface{}{
		"status": "ok",
		"items":  []interface{}{map[string]interface{}{"pk": 1}},
	})
}

func (m *MockVendorServer) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	if !m.requireSession(w, r) {
		return
	}
	writeJSON(w, 200, map[string]interface{}{
		"status": "ok",
		"user":   map[string]interface{}{"pk": 12345, "username": "tester"},
	})
}

func (m *MockVendorServer) handlePhotoUpload(w http.ResponseWriter, r *http.Request) {
	_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || params["boundary"] == "" {
		writeJSON(w, 400, map[string]interface{}{"status": "fail", "message": "not multipart"})
		return
	}

	uploadID := ""
	reader := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err != nil {
			break
		}
		if part.FormName() == "upload_id" {
			data, _ := io.ReadAll(part)
			uploadID = string(data)
		}
	}
	if uploadID == "" {
		writeJSON(w, 400, map[string]interface{}{"status": "fail", "message": "missing upload_id"})
		return
	}
	writeJSON(w, 200, map[string]interface{}{"status": "ok", "upload_id": uploadID})
}

func (m *MockVendorServer) handleVideoJob(w http.ResponseWriter, r *http.Request) {
	if !m.requireSession(w, r) {
		return
	}
	writeJSON(w, 200, map[string]interface{}{
		"status": "ok",
		"video_upload_urls": []interface{}{
			map[string]interface{}{
				"url": m.server.URL + "/rupload/chunk",
				"job": "mock-job",
			},
		},
	})
}

func (m *MockVendorServer) handleChunk(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	contentRange := r.Header.Get("Content-Range")

	m.mu.Lock()
	index := len(m.chunksSeen)
	m.chunksSeen = append(m.chunksSeen, contentRange)
	failThis := index == m.FailChunk
	m.mu.Unlock()

	if failThis {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("chunk state lost"))
		return
	}

	// "bytes s-e/total"
	var start, end, total int64
	_, err := fmt.Sscanf(contentRange, "bytes %d-%d/%d", &start, &end, &total)
	if err != nil || int64(len(body)) != end-start+1 {
		writeJSON(w, 400, map[string]interface{}{"status": "fail", "message": "bad range"})
		return
	}

	if end+1 == total {
		writeJSON(w, 200, map[string]interface{}{"status": "ok", "configure_delay_ms": 0})
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "0-%d/%d", end, total)
}

func (m *MockVendorServer) handleConfigure(w http.ResponseWriter, r *http.Request) {
	if !m.requireSession(w, r) {
		return
	}
	payload, err := signedPayload(r)
	if err != nil || payload["upload_id"] == nil {
		writeJSON(w, 400, map[string]interface{}{"status": "fail", "message": "missing upload_id"})
		return
	}
	writeJSON(w, 200, map[string]interface{}{
		"status": "ok",
		"media":  map[string]interface{}{"pk": 777, "id": "777_12345"},
	})
}
