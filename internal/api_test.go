package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"pickup-games/internal/notify"
	"pickup-games/internal/participation"
	"pickup-games/internal/sessionlock"
	"pickup-games/internal/storage/sqlstore"
)

const adminEmail = "admin@example.com"

type testAPI struct {
	router *gin.Engine
	hub    *notify.Hub
	deps   Deps
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := sqlstore.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	hub := notify.NewHub(logger)
	dispatcher := notify.NewDispatcher(db, notify.DispatcherOptions{Publisher: hub, Logger: logger})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = dispatcher.Close(ctx)
		_ = db.Close()
	})

	engine := participation.NewEngine(db, participation.Options{
		Locker:   sessionlock.NewKeyed(),
		Notifier: dispatcher,
		Events:   db,
		Logger:   logger,
	})
	deps := Deps{
		Store:  db,
		Engine: engine,
		Inbox:  notify.NewInbox(db, nil),
		Hub:    hub,
		Auth:   AuthConfig{Secret: "test-secret", AdminEmail: adminEmail},
		Logger: logger,
	}
	return &testAPI{router: NewRouter(deps), hub: hub, deps: deps}
}

// restart rebuilds the router over the same store with different auth
// settings, as a redeploy with a changed environment would.
func (a *testAPI) restart(auth AuthConfig) {
	a.deps.Auth = auth
	a.router = NewRouter(a.deps)
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d; body %s", w.Code, want, w.Body.String())
	}
}

type authResponse struct {
	AccessToken string       `json:"access_token"`
	User        UserResponse `json:"user"`
}

func (a *testAPI) register(t *testing.T, name string) authResponse {
	t.Helper()
	email := strings.ToLower(name) + "@example.com"
	w := a.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": name, "email": email, "password": "secret123", "area": "E9",
	})
	expectStatus(t, w, http.StatusCreated)
	return decode[authResponse](t, w)
}

func (a *testAPI) createGame(t *testing.T, token string, players int) Game {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/games", token, gin.H{
		"venue":          "Hackney Marshes",
		"date_time":      time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"players_needed": players,
		"format":         "7s",
		"subs":           5,
	})
	expectStatus(t, w, http.StatusCreated)
	return decode[Game](t, w)
}

type joinResponse struct {
	Participant ParticipationResponse  `json:"participant"`
	Capacity    participation.Snapshot `json:"capacity"`
}

type capacityResponse struct {
	Capacity participation.Snapshot `json:"capacity"`
}

func (a *testAPI) waitForInbox(t *testing.T, token string, want int) notify.Page {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		w := a.do(t, http.MethodGet, "/api/notifications", token, nil)
		expectStatus(t, w, http.StatusOK)
		page := decode[notify.Page](t, w)
		if len(page.Notifications) >= want {
			return page
		}
		if time.Now().After(deadline) {
			t.Fatalf("inbox has %d notifications, want %d", len(page.Notifications), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	org := api.register(t, "Org")
	alice := api.register(t, "Alice")
	bob := api.register(t, "Bob")

	game := api.createGame(t, org.AccessToken, 1)
	if game.Status != participation.SessionOpen || game.OpenSlots != 1 || game.OrganiserName != "Org" {
		t.Fatalf("new game = %+v", game)
	}
	gamePath := "/api/games/" + game.ID

	w := api.do(t, http.MethodPost, gamePath+"/participants", org.AccessToken, gin.H{"mode": "REQUESTED"})
	expectStatus(t, w, http.StatusForbidden)
	if body := decode[map[string]string](t, w); body["code"] != "NOT_AUTHORIZED" {
		t.Fatalf("self request body = %v", body)
	}

	w = api.do(t, http.MethodPost, gamePath+"/participants", alice.AccessToken, gin.H{"mode": "REQUESTED"})
	expectStatus(t, w, http.StatusCreated)
	aliceSpot := decode[joinResponse](t, w).Participant
	w = api.do(t, http.MethodPost, gamePath+"/participants", bob.AccessToken, gin.H{"mode": "REQUESTED"})
	expectStatus(t, w, http.StatusCreated)
	bobSpot := decode[joinResponse](t, w).Participant

	w = api.do(t, http.MethodPost, gamePath+"/participants", bob.AccessToken, gin.H{"mode": "REQUESTED"})
	expectStatus(t, w, http.StatusConflict)

	w = api.do(t, http.MethodGet, gamePath+"/participants", "", nil)
	expectStatus(t, w, http.StatusOK)
	if parts := decode[[]Participant](t, w); len(parts) != 2 || parts[0].Badge != "NEW" {
		t.Fatalf("participants = %+v", parts)
	}

	w = api.do(t, http.MethodPost, "/api/participants/"+aliceSpot.ID+"/approve", alice.AccessToken, nil)
	expectStatus(t, w, http.StatusForbidden)
	w = api.do(t, http.MethodPost, "/api/participants/"+aliceSpot.ID+"/approve", org.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	if snap := decode[capacityResponse](t, w).Capacity; snap.Status != participation.SessionFull || snap.OpenSlots != 0 {
		t.Fatalf("after approve = %+v", snap)
	}

	w = api.do(t, http.MethodPost, "/api/participants/"+bobSpot.ID+"/approve", org.AccessToken, nil)
	expectStatus(t, w, http.StatusConflict)
	if body := decode[map[string]string](t, w); body["code"] != "INVALID_STATE" {
		t.Fatalf("approve when full body = %v", body)
	}

	w = api.do(t, http.MethodPost, gamePath+"/participants", bob.AccessToken, gin.H{"mode": "RESERVE"})
	expectStatus(t, w, http.StatusCreated)

	w = api.do(t, http.MethodPost, gamePath+"/withdraw", alice.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	if snap := decode[capacityResponse](t, w).Capacity; snap.ConfirmedCount != 1 || snap.ReserveCount != 0 {
		t.Fatalf("after withdraw = %+v", snap)
	}

	w = api.do(t, http.MethodGet, "/api/my/participations", bob.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	mine := decode[[]MyParticipation](t, w)
	if len(mine) != 1 || mine[0].Status != participation.StatusConfirmed || mine[0].Game.ID != game.ID {
		t.Fatalf("bob participations = %+v", mine)
	}

	bobInbox := api.waitForInbox(t, bob.AccessToken, 1)
	promoted := bobInbox.Notifications[0]
	if promoted.Kind != notify.KindPromoted || !strings.Contains(promoted.Message, "Hackney Marshes") {
		t.Fatalf("bob notification = %+v", promoted)
	}
	orgInbox := api.waitForInbox(t, org.AccessToken, 4)
	var kinds []notify.Kind
	for _, n := range orgInbox.Notifications {
		kinds = append(kinds, n.Kind)
	}
	want := []notify.Kind{notify.KindPlayerWithdrew, notify.KindNewReserve, notify.KindNewRequest, notify.KindNewRequest}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("org inbox kinds = %v, want %v", kinds, want)
		}
	}

	w = api.do(t, http.MethodPost, "/api/notifications/"+promoted.ID+"/read", alice.AccessToken, nil)
	expectStatus(t, w, http.StatusNotFound)
	w = api.do(t, http.MethodPost, "/api/notifications/"+promoted.ID+"/read", bob.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	w = api.do(t, http.MethodGet, "/api/notifications/count", bob.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	if count := decode[map[string]int](t, w); count["count"] != 0 {
		t.Fatalf("bob unread = %v", count)
	}

	w = api.do(t, http.MethodGet, "/api/me", bob.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	if me := decode[UserResponse](t, w); me.GamesConfirmed != 1 || me.IsAdmin {
		t.Fatalf("bob profile = %+v", me)
	}

	w = api.do(t, http.MethodDelete, gamePath, alice.AccessToken, nil)
	expectStatus(t, w, http.StatusForbidden)
	w = api.do(t, http.MethodDelete, gamePath, org.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	w = api.do(t, http.MethodGet, gamePath, "", nil)
	expectStatus(t, w, http.StatusNotFound)
}

func TestCreateGameValidation(t *testing.T) {
	api := newTestAPI(t)
	org := api.register(t, "Org")
	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name string
		body gin.H
	}{
		{"bad format", gin.H{"venue": "Pitch", "date_time": future, "players_needed": 2, "format": "12s"}},
		{"no slots", gin.H{"venue": "Pitch", "date_time": future, "players_needed": 0, "format": "5s"}},
		{"negative subs", gin.H{"venue": "Pitch", "date_time": future, "players_needed": 2, "format": "5s", "subs": -1}},
		{"past", gin.H{"venue": "Pitch", "date_time": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339), "players_needed": 2, "format": "5s"}},
		{"blank venue", gin.H{"venue": "  ", "date_time": future, "players_needed": 2, "format": "5s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(t, http.MethodPost, "/api/games", org.AccessToken, tt.body)
			expectStatus(t, w, http.StatusBadRequest)
		})
	}

	w := api.do(t, http.MethodPost, "/api/games", "", gin.H{"venue": "Pitch"})
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestAuthFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "Alice")

	w := api.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Again", "email": "ALICE@example.com", "password": "secret123",
	})
	expectStatus(t, w, http.StatusConflict)

	w = api.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name": "Long", "email": "long@example.com", "password": "secret123", "bio": strings.Repeat("x", 121),
	})
	expectStatus(t, w, http.StatusBadRequest)

	w = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong"})
	expectStatus(t, w, http.StatusUnauthorized)

	w = api.do(t, http.MethodPost, "/api/auth/login", "", gin.H{"email": "alice@example.com", "password": "secret123"})
	expectStatus(t, w, http.StatusOK)
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == cookieName {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Fatalf("login cookie = %+v", cookie)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusOK)

	w = api.do(t, http.MethodGet, "/api/me", "not-a-token", nil)
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestAdminEndpoints(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register(t, "Admin")
	alice := api.register(t, "Alice")
	if !admin.User.IsAdmin || alice.User.IsAdmin {
		t.Fatalf("admin flags: admin=%v alice=%v", admin.User.IsAdmin, alice.User.IsAdmin)
	}

	w := api.do(t, http.MethodGet, "/api/admin/users", alice.AccessToken, nil)
	expectStatus(t, w, http.StatusForbidden)
	w = api.do(t, http.MethodGet, "/api/admin/users", admin.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	if users := decode[[]UserResponse](t, w); len(users) != 2 {
		t.Fatalf("users = %+v", users)
	}

	game := api.createGame(t, alice.AccessToken, 3)
	w = api.do(t, http.MethodDelete, "/api/admin/users/"+admin.User.ID, admin.AccessToken, nil)
	expectStatus(t, w, http.StatusBadRequest)
	w = api.do(t, http.MethodDelete, "/api/admin/users/"+alice.User.ID, admin.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	w = api.do(t, http.MethodGet, "/api/games/"+game.ID, "", nil)
	expectStatus(t, w, http.StatusNotFound)

	w = api.do(t, http.MethodGet, "/api/admin/logs", admin.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	logs := decode[[]sqlstore.LogEntry](t, w)
	if len(logs) == 0 || logs[0].Action != "admin_delete_user" {
		t.Fatalf("logs = %+v", logs)
	}
}

func TestAdminRightsFollowCurrentConfig(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register(t, "Admin")
	org := api.register(t, "Org")
	alice := api.register(t, "Alice")
	game := api.createGame(t, org.AccessToken, 3)
	w := api.do(t, http.MethodPost, "/api/games/"+game.ID+"/participants", alice.AccessToken, gin.H{"mode": "REQUESTED"})
	expectStatus(t, w, http.StatusCreated)
	p := decode[joinResponse](t, w).Participant

	w = api.do(t, http.MethodGet, "/api/admin/users", admin.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)

	// Same secret, so the old token still verifies; only the admin email moved.
	api.restart(AuthConfig{Secret: "test-secret", AdminEmail: "someone-else@example.com"})

	w = api.do(t, http.MethodGet, "/api/admin/users", admin.AccessToken, nil)
	expectStatus(t, w, http.StatusForbidden)
	w = api.do(t, http.MethodGet, "/api/me", admin.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)
	if me := decode[UserResponse](t, w); me.IsAdmin {
		t.Fatalf("me still admin: %+v", me)
	}
	w = api.do(t, http.MethodPost, "/api/participants/"+p.ID+"/approve", admin.AccessToken, nil)
	expectStatus(t, w, http.StatusForbidden)
}

func TestDeletedUserTokenRejected(t *testing.T) {
	api := newTestAPI(t)
	admin := api.register(t, "Admin")
	alice := api.register(t, "Alice")

	w := api.do(t, http.MethodDelete, "/api/admin/users/"+alice.User.ID, admin.AccessToken, nil)
	expectStatus(t, w, http.StatusOK)

	w = api.do(t, http.MethodGet, "/api/me", alice.AccessToken, nil)
	expectStatus(t, w, http.StatusUnauthorized)
	w = api.do(t, http.MethodPost, "/api/games", alice.AccessToken, gin.H{
		"venue":          "Hackney Marshes",
		"date_time":      time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339),
		"players_needed": 2,
		"format":         "7s",
	})
	expectStatus(t, w, http.StatusUnauthorized)
}

func TestNotificationSocketPushes(t *testing.T) {
	api := newTestAPI(t)
	org := api.register(t, "Org")
	alice := api.register(t, "Alice")
	game := api.createGame(t, org.AccessToken, 2)

	srv := httptest.NewServer(api.router)
	defer srv.Close()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+org.AccessToken)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/notifications", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for api.hub.Connections(org.User.ID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("socket never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	w := api.do(t, http.MethodPost, "/api/games/"+game.ID+"/participants", alice.AccessToken, gin.H{"mode": "REQUESTED"})
	expectStatus(t, w, http.StatusCreated)

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg notify.PushMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read push: %v", err)
	}
	if msg.Type != "notification" || msg.Data.Kind != notify.KindNewRequest || msg.Data.SessionID != game.ID {
		t.Fatalf("push = %+v", msg)
	}
}
