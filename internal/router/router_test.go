package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cutroom/floor-service/internal/config"
	"github.com/cutroom/floor-service/internal/db"
	"github.com/cutroom/floor-service/internal/models"
	"github.com/cutroom/floor-service/internal/websockets"
)

type envelope struct {
	Success       bool            `json:"success"`
	Data          json.RawMessage `json:"data"`
	Message       string          `json:"message"`
	Conflict      bool            `json:"conflict"`
	CurrentStatus string          `json:"current_status"`
}

func setupTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	database := db.NewTestDB(t)
	hub := websockets.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	cfg := &config.Config{
		JWT:  config.JWT{Secret: "test-secret", ExpiresIn: 1},
		CORS: config.CORS{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	r := New(database, hub, cfg)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	if err := r.Auth().EnsureAdmin(context.Background(), "admin", "password"); err != nil {
		t.Fatalf("seeding admin: %v", err)
	}

	return server, login(t, server, "admin", "password")
}

func login(t *testing.T, server *httptest.Server, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(server.URL+"/users/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login as %s failed: %d", username, resp.StatusCode)
	}

	var loginResp struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
		User    struct {
			Username string `json:"username"`
			Role     string `json:"role"`
		} `json:"user"`
	}
	json.NewDecoder(resp.Body).Decode(&loginResp)
	if loginResp.Token == "" || !loginResp.Success {
		t.Fatal("empty token from login")
	}
	return loginResp.Token
}

func do(t *testing.T, method, url, token string, body any) (*http.Response, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	json.NewDecoder(resp.Body).Decode(&env)
	return resp, env
}

func createUser(t *testing.T, server *httptest.Server, adminToken, username string, role models.UserRole) string {
	t.Helper()
	resp, _ := do(t, http.MethodPost, server.URL+"/users", adminToken, models.UserRequest{
		Username: username,
		Password: "pw",
		Role:     role,
		IsActive: true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating %s: %d", username, resp.StatusCode)
	}
	return login(t, server, username, "pw")
}

func createMattress(t *testing.T, server *httptest.Server, token, name, device string) models.Mattress {
	t.Helper()
	resp, env := do(t, http.MethodPost, server.URL+"/mattress", token, models.MattressRequest{
		Mattress: name,
		Device:   device,
		Shift:    models.Shift1,
		Position: 1,
		Layers:   40,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("creating mattress: %d %s", resp.StatusCode, env.Message)
	}
	var m models.Mattress
	json.Unmarshal(env.Data, &m)
	return m
}

func TestHealth(t *testing.T) {
	server, _ := setupTestServer(t)
	resp, env := do(t, http.MethodGet, server.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Errorf("expected healthy, got %d", resp.StatusCode)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, env := do(t, http.MethodPost, server.URL+"/users/login", "", map[string]string{"username": "admin", "password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized || env.Success {
		t.Errorf("expected 401, got %d", resp.StatusCode)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	server, _ := setupTestServer(t)

	resp, _ := do(t, http.MethodGet, server.URL+"/mattress/kanban?day=today", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	server, token := setupTestServer(t)

	resp, _ := do(t, http.MethodPost, server.URL+"/api/users/logout", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: %d", resp.StatusCode)
	}

	resp, _ = do(t, http.MethodGet, server.URL+"/mattress/kanban", token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", resp.StatusCode)
	}
}

func TestCreateMattressRequiresPlanner(t *testing.T) {
	server, admin := setupTestServer(t)
	spreader := createUser(t, server, admin, "Spreader1", models.RoleSpreader)
	planner := createUser(t, server, admin, "Planner1", models.RolePlanner)

	resp, _ := do(t, http.MethodPost, server.URL+"/mattress", spreader, models.MattressRequest{Mattress: "M", Device: "SP1"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for spreader, got %d", resp.StatusCode)
	}

	createMattress(t, server, planner, "MAT-001", "SP1")
}

func TestSpreaderStartAndConflict(t *testing.T) {
	server, admin := setupTestServer(t)
	spreader := createUser(t, server, admin, "Spreader2", models.RoleSpreader)
	m := createMattress(t, server, admin, "MAT-007", "SP2")

	resp, env := do(t, http.MethodGet, server.URL+"/mattress/kanban?day=today", spreader, nil)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("kanban: %d", resp.StatusCode)
	}
	var board []models.Mattress
	json.Unmarshal(env.Data, &board)
	if len(board) != 1 || board[0].ID != m.ID {
		t.Fatalf("expected the new mattress on the board, got %+v", board)
	}

	expected := models.StatusToLoad
	start := models.StatusUpdateRequest{
		Status:                models.StatusOnSpread,
		Operator:              "Maria",
		Device:                "SP2",
		ExpectedCurrentStatus: &expected,
	}
	url := fmt.Sprintf("%s/mattress/update_status/%d", server.URL, m.ID)

	resp, env = do(t, http.MethodPut, url, spreader, start)
	if resp.StatusCode != http.StatusOK || !env.Success {
		t.Fatalf("start: %d %s", resp.StatusCode, env.Message)
	}

	resp, env = do(t, http.MethodPut, url, spreader, start)
	if resp.StatusCode != http.StatusConflict || !env.Conflict {
		t.Fatalf("expected 409 conflict on repeated start, got %d %+v", resp.StatusCode, env)
	}
	if env.CurrentStatus != string(models.StatusOnSpread) {
		t.Errorf("expected current status in conflict body, got %q", env.CurrentStatus)
	}
}

func TestFinishSpreadingEndpoint(t *testing.T) {
	server, admin := setupTestServer(t)
	m := createMattress(t, server, admin, "MAT-001", "SP1")

	url := fmt.Sprintf("%s/mattress/update_status/%d", server.URL, m.ID)
	if resp, env := do(t, http.MethodPut, url, admin, models.StatusUpdateRequest{Status: models.StatusOnSpread}); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", resp.StatusCode, env.Message)
	}

	finishURL := fmt.Sprintf("%s/mattress/finish_spreading/%d", server.URL, m.ID)
	resp, _ := do(t, http.MethodPut, finishURL, admin, map[string]any{"status": models.StatusToCut, "layers_a": 0})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for zero layers, got %d", resp.StatusCode)
	}

	resp, env := do(t, http.MethodPut, finishURL, admin, map[string]any{
		"status":                  models.StatusToCut,
		"expected_current_status": models.StatusOnSpread,
		"layers_a":                38,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("finish: %d %s", resp.StatusCode, env.Message)
	}
	var updated models.Mattress
	json.Unmarshal(env.Data, &updated)
	if updated.Status != models.StatusToCut || updated.LayersA == nil || *updated.LayersA != 38 {
		t.Errorf("unexpected mattress after finish: %+v", updated)
	}

	resp, env = do(t, http.MethodGet, fmt.Sprintf("%s/mattress/%d/history", server.URL, m.ID), admin, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history: %d", resp.StatusCode)
	}
	var history []models.StatusLogEntry
	json.Unmarshal(env.Data, &history)
	if len(history) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(history))
	}
}

func TestOperatorsEndpoints(t *testing.T) {
	server, admin := setupTestServer(t)
	cutter := createUser(t, server, admin, "Cutter1", models.RoleCutter)

	for _, op := range []models.OperatorRequest{
		{Name: "Maria", Type: models.OperatorSpreader},
		{Name: "Luca", Type: models.OperatorCutter},
	} {
		if resp, env := do(t, http.MethodPost, server.URL+"/operators", admin, op); resp.StatusCode != http.StatusCreated {
			t.Fatalf("creating operator %s: %d %s", op.Name, resp.StatusCode, env.Message)
		}
	}

	resp, _ := do(t, http.MethodPost, server.URL+"/operators", cutter, models.OperatorRequest{Name: "X", Type: models.OperatorCutter})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for cutter creating operators, got %d", resp.StatusCode)
	}

	resp, env := do(t, http.MethodGet, server.URL+"/cutter_operators/active", cutter, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cutter operators: %d", resp.StatusCode)
	}
	var ops []models.Operator
	json.Unmarshal(env.Data, &ops)
	if len(ops) != 1 || ops[0].Name != "Luca" {
		t.Errorf("expected only Luca, got %+v", ops)
	}

	resp, env = do(t, http.MethodGet, server.URL+"/operators/active", cutter, nil)
	json.Unmarshal(env.Data, &ops)
	if resp.StatusCode != http.StatusOK || len(ops) != 2 {
		t.Errorf("expected 2 operators, got %d (%d)", len(ops), resp.StatusCode)
	}
}

func TestDeactivateOperator(t *testing.T) {
	server, admin := setupTestServer(t)
	cutter := createUser(t, server, admin, "Cutter1", models.RoleCutter)

	var created models.Operator
	for _, op := range []models.OperatorRequest{
		{Name: "Maria", Type: models.OperatorSpreader},
		{Name: "Luca", Type: models.OperatorCutter},
	} {
		resp, env := do(t, http.MethodPost, server.URL+"/operators", admin, op)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("creating operator %s: %d %s", op.Name, resp.StatusCode, env.Message)
		}
		if op.Name == "Luca" {
			json.Unmarshal(env.Data, &created)
		}
	}
	url := fmt.Sprintf("%s/operators/%d", server.URL, created.ID)

	if resp, _ := do(t, http.MethodDelete, url, cutter, nil); resp.StatusCode != http.StatusForbidden {
		t.Errorf("expected 403 for cutter deactivating operators, got %d", resp.StatusCode)
	}

	if resp, env := do(t, http.MethodDelete, url, admin, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("deactivate: %d %s", resp.StatusCode, env.Message)
	}

	var ops []models.Operator
	_, env := do(t, http.MethodGet, server.URL+"/cutter_operators/active", cutter, nil)
	json.Unmarshal(env.Data, &ops)
	if len(ops) != 0 {
		t.Errorf("expected no active cutter operators, got %+v", ops)
	}
	_, env = do(t, http.MethodGet, server.URL+"/operators/active", cutter, nil)
	json.Unmarshal(env.Data, &ops)
	if len(ops) != 1 || ops[0].Name != "Maria" {
		t.Errorf("expected only Maria, got %+v", ops)
	}

	if resp, _ := do(t, http.MethodDelete, server.URL+"/operators/9999", admin, nil); resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown operator, got %d", resp.StatusCode)
	}
}

func TestWebSocketReceivesStatusChange(t *testing.T) {
	server, admin := setupTestServer(t)
	m := createMattress(t, server, admin, "MAT-001", "SP1")

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?device=CT1"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+admin)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	// A pong proves the client is registered with the hub
	if err := conn.WriteJSON(websockets.Message{Type: websockets.TypePing}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	var msg websockets.Message
	if err := conn.ReadJSON(&msg); err != nil || msg.Type != websockets.TypePong {
		t.Fatalf("expected pong, got %+v (%v)", msg, err)
	}

	url := fmt.Sprintf("%s/mattress/update_status/%d", server.URL, m.ID)
	if resp, env := do(t, http.MethodPut, url, admin, models.StatusUpdateRequest{Status: models.StatusOnSpread}); resp.StatusCode != http.StatusOK {
		t.Fatalf("start: %d %s", resp.StatusCode, env.Message)
	}

	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("reading status change: %v", err)
	}
	if msg.Type != websockets.TypeStatusChange {
		t.Fatalf("expected %s, got %s", websockets.TypeStatusChange, msg.Type)
	}
	var change models.StatusChange
	json.Unmarshal(msg.Data, &change)
	if change.ItemID != m.ID || change.Status != models.StatusOnSpread || change.SourceID != websockets.ServerSourceID {
		t.Errorf("unexpected change: %+v", change)
	}
}
