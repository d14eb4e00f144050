package terminal

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/cutroom/floor-service/internal/models"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

// fakeServer mimics the floor service endpoints the terminal uses
type fakeServer struct {
	mu        sync.Mutex
	items     []models.Mattress
	operators []models.Operator
	requests  []recordedRequest

	conflict  bool
	failFetch bool
}

func newFakeServer(items ...models.Mattress) *fakeServer {
	return &fakeServer{
		items:     items,
		operators: []models.Operator{{ID: 3, Name: "Maria", Type: models.OperatorSpreader, Active: true}},
	}
}

func (s *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization"), Body: body})

	switch {
	case r.URL.Path == "/users/login":
		var creds map[string]string
		json.Unmarshal(body, &creds)
		if creds["password"] != "pw" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"token":   "tok-" + creds["username"],
			"user":    models.SessionUser{Username: creds["username"], Role: models.RoleSpreader},
		})

	case r.URL.Path == "/api/users/logout":
		writeJSON(w, http.StatusOK, map[string]any{"success": true})

	case r.URL.Path == "/mattress/kanban", r.URL.Path == "/mattress/cutter_queue":
		if s.failFetch {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "database unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s.items})

	case r.URL.Path == "/operators/active":
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s.operators})

	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/mattress/"):
		s.write(w, r.URL.Path, body)

	default:
		http.NotFound(w, r)
	}
}

func (s *fakeServer) write(w http.ResponseWriter, path string, body []byte) {
	id, err := strconv.ParseInt(path[strings.LastIndex(path, "/")+1:], 10, 64)
	if err != nil {
		http.NotFound(w, nil)
		return
	}

	var req models.FinishSpreadingRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad body"})
		return
	}

	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		if s.conflict || (req.ExpectedCurrentStatus != nil && *req.ExpectedCurrentStatus != s.items[i].Status) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"success":        false,
				"conflict":       true,
				"message":        "Mattress status was changed by another device, please refresh",
				"current_status": models.StatusOnSpread,
			})
			return
		}
		s.items[i].Status = req.Status
		if req.Device != "" && req.Status == models.StatusOnCut {
			s.items[i].Device = req.Device
		}
		if req.LayersA > 0 {
			layers := req.LayersA
			s.items[i].LayersA = &layers
		}
		op := req.Operator
		s.items[i].Operator = &op
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": s.items[i]})
		return
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Not found"})
}

func (s *fakeServer) add(m models.Mattress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, m)
}

func (s *fakeServer) writes() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []recordedRequest
	for _, r := range s.requests {
		if r.Method == http.MethodPut {
			out = append(out, r)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
