package notify

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHubPublishesToConnectedUser(t *testing.T) {
	t.Parallel()

	hub := NewHub(discardLogger())
	client := dialHub(t, hub, "sam")

	hub.Publish("someone-else", Notification{ID: "ignored"})
	hub.Publish("sam", Notification{ID: "n-1", Kind: KindPromoted, Message: "You're in"})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := client.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "notification" || msg.Data.ID != "n-1" || msg.Data.Kind != KindPromoted {
		t.Fatalf("message = %+v", msg)
	}
}

func TestHubDropsClientThatStopsReading(t *testing.T) {
	t.Parallel()

	hub := NewHub(discardLogger())
	dialHub(t, hub, "stalled")
	reader := dialHub(t, hub, "sam")

	big := Notification{ID: "n-big", Kind: KindNewRequest, Message: strings.Repeat("x", 64<<10)}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			hub.Publish("stalled", big)
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Publish blocked on a client that never reads")
	}
	if n := hub.Connections("stalled"); n != 0 {
		t.Fatalf("stalled client still registered with %d connections", n)
	}

	published := make(chan struct{})
	go func() {
		hub.Publish("sam", Notification{ID: "n-2", Kind: KindPromoted})
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish to another user blocked")
	}

	reader.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg PushMessage
	if err := reader.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Data.ID != "n-2" {
		t.Fatalf("message = %+v", msg)
	}
}

// dialHub connects a websocket client registered under userID and waits until
// the hub knows about it.
func dialHub(t *testing.T, hub *Hub, userID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(userID, conn)
		defer hub.Remove(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	before := hub.Connections(userID)
	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.Connections(userID) == before {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return client
}
