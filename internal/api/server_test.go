package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/thermoguard/thermoguard-core/internal/aircon"
	"github.com/thermoguard/thermoguard-core/internal/alert"
	"github.com/thermoguard/thermoguard-core/internal/auth"
	"github.com/thermoguard/thermoguard-core/internal/datacenter"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/config"
	"github.com/thermoguard/thermoguard-core/internal/infrastructure/logging"
	"github.com/thermoguard/thermoguard-core/internal/ingest"
	"github.com/thermoguard/thermoguard-core/internal/notify"
	"github.com/thermoguard/thermoguard-core/internal/sensor"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE users (
		id            TEXT PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL DEFAULT '',
		email         TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		is_active     INTEGER NOT NULL DEFAULT 1,
		created_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at    TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;

	CREATE TABLE data_centers (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		location   TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;

	CREATE TABLE rooms (
		id                 TEXT PRIMARY KEY,
		data_center_id     TEXT NOT NULL REFERENCES data_centers(id) ON DELETE CASCADE,
		name               TEXT NOT NULL,
		target_temperature REAL NOT NULL,
		target_humidity    REAL NOT NULL,
		operation_mode     TEXT NOT NULL DEFAULT 'manual',
		created_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at         TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		UNIQUE (data_center_id, name)
	) STRICT;

	CREATE TABLE sensors (
		id         TEXT PRIMARY KEY,
		device_id  TEXT NOT NULL UNIQUE,
		room_id    TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		name       TEXT NOT NULL,
		type       TEXT NOT NULL,
		is_online  INTEGER NOT NULL DEFAULT 0,
		last_seen  TEXT,
		created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;

	CREATE TABLE readings (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_id   TEXT NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
		temperature REAL,
		humidity    REAL,
		timestamp   TEXT NOT NULL
	) STRICT;

	CREATE TABLE aggregated_readings (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		sensor_id       TEXT NOT NULL REFERENCES sensors(id) ON DELETE CASCADE,
		hour            TEXT NOT NULL,
		min_temperature REAL,
		max_temperature REAL,
		avg_temperature REAL,
		min_humidity    REAL,
		max_humidity    REAL,
		avg_humidity    REAL,
		reading_count   INTEGER NOT NULL,
		UNIQUE (sensor_id, hour)
	) STRICT;

	CREATE TABLE alerts (
		id              TEXT PRIMARY KEY,
		room_id         TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		type            TEXT NOT NULL,
		severity        TEXT NOT NULL,
		message         TEXT NOT NULL,
		value           REAL,
		threshold       REAL,
		is_acknowledged INTEGER NOT NULL DEFAULT 0,
		acknowledged_by TEXT,
		acknowledged_at TEXT,
		escalated_at    TEXT,
		created_at      TEXT NOT NULL
	) STRICT;

	CREATE TABLE air_conditioners (
		id             TEXT PRIMARY KEY,
		room_id        TEXT NOT NULL REFERENCES rooms(id) ON DELETE CASCADE,
		name           TEXT NOT NULL,
		transmitter_id TEXT NOT NULL,
		status         TEXT NOT NULL DEFAULT 'off',
		is_active      INTEGER NOT NULL DEFAULT 1,
		last_command   TEXT,
		created_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		updated_at     TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
	) STRICT;

	CREATE TABLE ir_signals (
		id          TEXT PRIMARY KEY,
		ac_id       TEXT NOT NULL REFERENCES air_conditioners(id) ON DELETE CASCADE,
		command     TEXT NOT NULL,
		signal_data TEXT NOT NULL,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
		UNIQUE (ac_id, command)
	) STRICT;

	CREATE TABLE command_logs (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		ac_id         TEXT NOT NULL REFERENCES air_conditioners(id) ON DELETE CASCADE,
		command       TEXT NOT NULL,
		actor_type    TEXT NOT NULL,
		username      TEXT,
		success       INTEGER NOT NULL,
		error_message TEXT,
		created_at    TEXT NOT NULL
	) STRICT;

	INSERT INTO data_centers (id, name) VALUES ('dc-east', 'East Coast DC');

	INSERT INTO rooms (id, data_center_id, name, target_temperature, target_humidity, operation_mode) VALUES
		('room-auto',   'dc-east', 'Server Room A', 22.0, 45.0, 'automatic'),
		('room-manual', 'dc-east', 'Server Room B', 22.0, 45.0, 'manual');

	INSERT INTO sensors (id, device_id, room_id, name, type, is_online) VALUES
		('sens-1', 'esp32-aa01', 'room-auto', 'Rack A inlet', 'combined', 0);

	INSERT INTO air_conditioners (id, room_id, name, transmitter_id, status, is_active) VALUES
		('ac-1', 'room-auto', 'CRAC-1', 'rack-7-tx', 'off', 1);
	`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("creating test schema: %v", err)
	}
	return db
}

type noopSender struct{}

func (noopSender) Send(context.Context, string, string) error { return nil }
func (noopSender) EnterRecording(context.Context, string, string, aircon.Command) error {
	return nil
}

// testServer bundles the server under test with direct repository
// access for seeding and assertions.
type testServer struct {
	srv     *Server
	handler http.Handler
	users   auth.UserRepository
	alerts  *alert.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := setupTestDB(t)
	logger := logging.Default()

	facilities := datacenter.NewSQLiteRepository(db)
	sensors := sensor.NewSQLiteRepository(db)
	alertStore := alert.NewSQLiteRepository(db)
	engine := alert.NewEngine(alertStore, alert.Config{}, logger)
	acStore := aircon.NewSQLiteRepository(db)
	control := aircon.NewController(acStore, noopSender{}, engine, notify.NopSink{}, aircon.Config{}, logger)
	pipeline := ingest.NewPipeline(sensors, facilities, engine, control, nil, notify.NopSink{}, logger)
	users := auth.NewSQLiteUserRepository(db)

	srv, err := New(Deps{
		Security:   config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret, AccessTokenTTL: 15}},
		Logger:     logger,
		Pipeline:   pipeline,
		Facilities: facilities,
		Sensors:    sensors,
		Alerts:     engine,
		AlertStore: alertStore,
		Control:    control,
		ACs:        acStore,
		Users:      users,
		Version:    "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ts := &testServer{
		srv:     srv,
		handler: srv.buildRouter(),
		users:   users,
		alerts:  engine,
	}
	ts.seedUser(t, "admin1", auth.RoleAdmin)
	ts.seedUser(t, "operator1", auth.RoleOperator)
	ts.seedUser(t, "viewer1", auth.RoleViewer)
	return ts
}

func (ts *testServer) seedUser(t *testing.T, username string, role auth.Role) {
	t.Helper()
	hash, err := auth.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hashing password: %v", err)
	}
	user := &auth.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := ts.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seeding user %s: %v", username, err)
	}
}

// login authenticates through the real endpoint and returns the token.
func (ts *testServer) login(t *testing.T, username string) string {
	t.Helper()
	rec := ts.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": username, "password": "s3cret-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login as %s: status %d: %s", username, rec.Code, rec.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}
	return resp.AccessToken
}

func (ts *testServer) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthRequiresNoAuth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"status":"ok"`)) {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	token := ts.login(t, "operator1")
	if token == "" {
		t.Fatal("expected non-empty access token")
	}

	rec := ts.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "operator1", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong password, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	var me auth.User
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatalf("decoding me response: %v", err)
	}
	if me.Username != "operator1" || me.Role != auth.RoleOperator {
		t.Errorf("unexpected account: %+v", me)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.request(t, http.MethodGet, "/api/v1/sensors", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/sensors", "not-a-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with garbage token, got %d", rec.Code)
	}
}

func TestRoleGates(t *testing.T) {
	ts := newTestServer(t)
	viewer := ts.login(t, "viewer1")
	operator := ts.login(t, "operator1")

	// Viewers can read but never actuate.
	rec := ts.request(t, http.MethodGet, "/api/v1/acs", viewer, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("viewer list ACs: expected 200, got %d", rec.Code)
	}
	rec = ts.request(t, http.MethodPost, "/api/v1/acs/ac-1/turn-on", viewer, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer turn-on: expected 403, got %d", rec.Code)
	}

	// Operators actuate but cannot manage configuration.
	rec = ts.request(t, http.MethodPost, "/api/v1/rooms", operator, map[string]any{
		"data_center_id":     "dc-east",
		"name":               "UPS Room",
		"target_temperature": 24.0,
		"target_humidity":    50.0,
	})
	if rec.Code != http.StatusForbidden {
		t.Errorf("operator create room: expected 403, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodGet, "/api/v1/users", operator, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("operator list users: expected 403, got %d", rec.Code)
	}
}

func TestSubmitReading(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "operator1")

	rec := ts.request(t, http.MethodPost, "/api/v1/readings", token, map[string]any{
		"device_id":   "esp32-aa01",
		"temperature": 23.0,
		"humidity":    44.0,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result ingest.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if result.Sensor.ID != "sens-1" || !result.CameOnline {
		t.Errorf("unexpected result: sensor %s, came_online %v", result.Sensor.ID, result.CameOnline)
	}

	// Unknown device is rejected.
	rec = ts.request(t, http.MethodPost, "/api/v1/readings", token, map[string]any{
		"device_id":   "esp32-zz99",
		"temperature": 23.0,
	})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown device: expected 404, got %d", rec.Code)
	}

	// A reading with no channels fails validation.
	rec = ts.request(t, http.MethodPost, "/api/v1/readings", token, map[string]any{
		"device_id": "esp32-aa01",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty reading: expected 400, got %d", rec.Code)
	}

	// The persisted reading is visible through the query endpoints.
	rec = ts.request(t, http.MethodGet, "/api/v1/sensors/sens-1/latest", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest reading: expected 200, got %d", rec.Code)
	}
}

func TestSubmitReadingsBulk(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "operator1")

	rec := ts.request(t, http.MethodPost, "/api/v1/readings/bulk", token, map[string]any{
		"readings": []map[string]any{
			{"device_id": "esp32-aa01", "temperature": 23.0},
			{"device_id": "esp32-zz99", "temperature": 23.0},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Accepted int `json:"accepted"`
		Rejected int `json:"rejected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding bulk response: %v", err)
	}
	if resp.Accepted != 1 || resp.Rejected != 1 {
		t.Errorf("expected 1 accepted / 1 rejected, got %d / %d", resp.Accepted, resp.Rejected)
	}
}

func TestAcknowledgeAlert(t *testing.T) {
	ts := newTestServer(t)
	operator := ts.login(t, "operator1")
	viewer := ts.login(t, "viewer1")

	raised, err := ts.alerts.Raise(context.Background(), &alert.Alert{
		RoomID:   "room-auto",
		Type:     alert.TypeHighTemp,
		Severity: alert.SeverityWarning,
		Message:  "Temperature 24.5°C exceeds warning threshold 24.0°C",
	})
	if err != nil {
		t.Fatalf("raising alert: %v", err)
	}

	path := fmt.Sprintf("/api/v1/alerts/%s/acknowledge", raised.ID)

	rec := ts.request(t, http.MethodPost, path, viewer, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer acknowledge: expected 403, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, path, operator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("acknowledge: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var acked alert.Alert
	if err := json.Unmarshal(rec.Body.Bytes(), &acked); err != nil {
		t.Fatalf("decoding alert: %v", err)
	}
	if !acked.IsAcknowledged || acked.AcknowledgedBy == nil || *acked.AcknowledgedBy != "operator1" {
		t.Errorf("expected alert acknowledged by operator1, got %+v", acked)
	}

	// Second acknowledgement conflicts.
	rec = ts.request(t, http.MethodPost, path, operator, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("repeat acknowledge: expected 409, got %d", rec.Code)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/alerts/no-such/acknowledge", operator, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown alert: expected 404, got %d", rec.Code)
	}
}

func TestRoomManagement(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "admin1")

	rec := ts.request(t, http.MethodPost, "/api/v1/rooms", admin, map[string]any{
		"data_center_id":     "dc-east",
		"name":               "UPS Room",
		"target_temperature": 24.0,
		"target_humidity":    50.0,
		"operation_mode":     "manual",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	// Duplicate name within the same data center conflicts.
	rec = ts.request(t, http.MethodPost, "/api/v1/rooms", admin, map[string]any{
		"data_center_id":     "dc-east",
		"name":               "UPS Room",
		"target_temperature": 24.0,
		"target_humidity":    50.0,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate room: expected 409, got %d", rec.Code)
	}

	// Out-of-band setpoints are refused.
	rec = ts.request(t, http.MethodPost, "/api/v1/rooms", admin, map[string]any{
		"data_center_id":     "dc-east",
		"name":               "Freezer",
		"target_temperature": 5.0,
		"target_humidity":    50.0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid setpoint: expected 400, got %d", rec.Code)
	}
}

func TestACTurnOnWithoutRecordedCode(t *testing.T) {
	ts := newTestServer(t)
	operator := ts.login(t, "operator1")

	// No IR code is recorded for ac-1; dispatch simulates success.
	rec := ts.request(t, http.MethodPost, "/api/v1/acs/ac-1/turn-on", operator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("turn-on: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ac aircon.AirConditioner
	if err := json.Unmarshal(rec.Body.Bytes(), &ac); err != nil {
		t.Fatalf("decoding AC: %v", err)
	}
	if ac.Status != aircon.StatusOn {
		t.Errorf("expected status on, got %s", ac.Status)
	}

	// The attempt is in the audit trail with the caller's name.
	rec = ts.request(t, http.MethodGet, "/api/v1/acs/ac-1/commands", operator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("commands: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Commands []aircon.CommandLog `json:"commands"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding commands: %v", err)
	}
	if len(resp.Commands) != 1 || !resp.Commands[0].Success {
		t.Fatalf("expected one successful command log, got %+v", resp.Commands)
	}
	if username, ok := resp.Commands[0].Actor.Username(); !ok || username != "operator1" {
		t.Errorf("expected operator1 actor, got %s", resp.Commands[0].Actor)
	}

	rec = ts.request(t, http.MethodPost, "/api/v1/acs/no-such/turn-on", operator, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown AC: expected 404, got %d", rec.Code)
	}
}

func TestWSTicketFlow(t *testing.T) {
	ts := newTestServer(t)
	operator := ts.login(t, "operator1")

	rec := ts.request(t, http.MethodPost, "/api/v1/auth/ws-ticket", operator, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ws-ticket: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Ticket string `json:"ticket"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding ticket response: %v", err)
	}

	entry, ok := ts.srv.tickets.validate(resp.Ticket)
	if !ok {
		t.Fatal("expected ticket to validate")
	}
	if entry.username != "operator1" || entry.role != auth.RoleOperator {
		t.Errorf("unexpected ticket identity: %+v", entry)
	}

	// Tickets are single-use.
	if _, ok := ts.srv.tickets.validate(resp.Ticket); ok {
		t.Error("expected second validation to fail")
	}
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{PingInterval: 30, PongTimeout: 10}, logging.Default())

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{"dashboard": {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{"room:room-auto": {}},
	}
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast("dashboard", []byte(`{"kind":"sensor_reading"}`))

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding broadcast: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.Channel != "dashboard" {
			t.Errorf("unexpected message: %+v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("expected subscribed client to receive broadcast")
	}

	select {
	case <-other.send:
		t.Error("expected unsubscribed client to receive nothing")
	default:
	}
}

func TestSubscribeChannelValidation(t *testing.T) {
	tests := []struct {
		channel string
		want    bool
	}{
		{"dashboard", true},
		{"room:room-auto", true},
		{"room:", false},
		{"admin", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := validChannel(tt.channel); got != tt.want {
			t.Errorf("validChannel(%q) = %v, want %v", tt.channel, got, tt.want)
		}
	}
}

type stubRoomChecker struct {
	known map[string]bool
}

func (s stubRoomChecker) RoomExists(_ context.Context, id string) (bool, error) {
	return s.known[id], nil
}

func TestSubscribeRefusesUnknownRoom(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{PingInterval: 30, PongTimeout: 10}, logging.Default())
	client := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 4),
		rooms:         stubRoomChecker{known: map[string]bool{"room-auto": true}},
		subscriptions: make(map[string]struct{}),
	}

	client.handleSubscribe(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "1",
		Payload: map[string]any{"channels": []string{"room:no-such-room"}},
	})
	var msg WSMessage
	if err := json.Unmarshal(<-client.send, &msg); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if msg.Type != WSTypeError {
		t.Errorf("expected error response, got %q", msg.Type)
	}
	if client.isSubscribed("room:no-such-room") {
		t.Error("unknown room must not be subscribed")
	}

	client.handleSubscribe(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "2",
		Payload: map[string]any{"channels": []string{"room:room-auto"}},
	})
	if err := json.Unmarshal(<-client.send, &msg); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if msg.Type != WSTypeResponse {
		t.Errorf("expected success response, got %q", msg.Type)
	}
	if !client.isSubscribed("room:room-auto") {
		t.Error("known room must be subscribed")
	}
}

func TestUserManagement(t *testing.T) {
	ts := newTestServer(t)
	admin := ts.login(t, "admin1")

	rec := ts.request(t, http.MethodPost, "/api/v1/users", admin, map[string]any{
		"username": "newviewer",
		"password": "long-enough-pass",
		"role":     "viewer",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created auth.User
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decoding user: %v", err)
	}
	if created.PasswordHash != "" {
		t.Error("password hash must never be serialised")
	}

	// Short passwords are refused.
	rec = ts.request(t, http.MethodPost, "/api/v1/users", admin, map[string]any{
		"username": "another",
		"password": "short",
		"role":     "viewer",
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("short password: expected 400, got %d", rec.Code)
	}

	// Taken usernames conflict.
	rec = ts.request(t, http.MethodPost, "/api/v1/users", admin, map[string]any{
		"username": "newviewer",
		"password": "long-enough-pass",
		"role":     "viewer",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate username: expected 409, got %d", rec.Code)
	}

	// Disable, then the account can no longer log in.
	rec = ts.request(t, http.MethodPatch, "/api/v1/users/"+created.ID, admin, map[string]any{
		"is_active": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("disable user: expected 200, got %d", rec.Code)
	}
	rec = ts.request(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "newviewer", "password": "long-enough-pass"})
	if rec.Code != http.StatusForbidden {
		t.Errorf("disabled login: expected 403, got %d", rec.Code)
	}
}
