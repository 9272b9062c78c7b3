package events

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Jayesh445/VeriChain-sub000/internal/domain"
)

func event(id, sessionID string) domain.Event {
	return domain.Event{
		ID:        id,
		Type:      domain.EventApprovalRequired,
		Severity:  domain.SeverityWarning,
		SessionID: sessionID,
		ItemID:    "bolt-m8",
		Title:     "Approval required",
		CreatedAt: time.Now(),
	}
}

func TestHub_Register(t *testing.T) {
	hub := NewHub(nil)
	sub := NewSubscriber("dash-1", Filter{}, 4)

	hub.Register(sub)

	if got := hub.Get("dash-1"); got != sub {
		t.Errorf("Expected subscriber %v, got %v", sub, got)
	}
	if hub.Count() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", hub.Count())
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(nil)
	sub := NewSubscriber("dash-1", Filter{}, 4)

	hub.Register(sub)
	hub.Unregister(sub)

	if got := hub.Get("dash-1"); got != nil {
		t.Errorf("Expected nil subscriber, got %v", got)
	}
	if _, ok := <-sub.Messages(); ok {
		t.Error("Expected queue to be closed after unregister")
	}
}

func TestHub_RegisterReplacesStale(t *testing.T) {
	hub := NewHub(nil)
	old := NewSubscriber("dash-1", Filter{}, 4)
	fresh := NewSubscriber("dash-1", Filter{}, 4)

	hub.Register(old)
	hub.Register(fresh)

	// A late unregister of the replaced subscriber must not evict the new one.
	hub.Unregister(old)

	if got := hub.Get("dash-1"); got != fresh {
		t.Errorf("Expected fresh subscriber to remain, got %v", got)
	}
	if _, ok := <-old.Messages(); ok {
		t.Error("Expected replaced subscriber to be closed")
	}
}

func TestHub_BroadcastFilters(t *testing.T) {
	hub := NewHub(nil)
	all := NewSubscriber("all", Filter{}, 4)
	one := NewSubscriber("one", Filter{SessionID: "s-1"}, 4)
	hub.Register(all)
	hub.Register(one)

	if n := hub.Broadcast(event("e-1", "s-1")); n != 2 {
		t.Errorf("Expected 2 deliveries, got %d", n)
	}
	if n := hub.Broadcast(event("e-2", "s-2")); n != 1 {
		t.Errorf("Expected 1 delivery, got %d", n)
	}

	if len(all.send) != 2 {
		t.Errorf("Expected 2 queued messages, got %d", len(all.send))
	}
	if len(one.send) != 1 {
		t.Errorf("Expected 1 queued message, got %d", len(one.send))
	}

	var got domain.Event
	if err := json.Unmarshal(<-one.Messages(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != "e-1" {
		t.Errorf("Expected event e-1, got %s", got.ID)
	}
}

func TestHub_BackpressureDropsOldest(t *testing.T) {
	hub := NewHub(nil)
	sub := NewSubscriber("slow", Filter{}, 2)
	hub.Register(sub)

	for i := 0; i < 5; i++ {
		hub.Broadcast(event("e-"+strconv.Itoa(i), "s-1"))
	}

	if sub.Dropped() != 3 {
		t.Errorf("Expected 3 dropped messages, got %d", sub.Dropped())
	}
	var first domain.Event
	_ = json.Unmarshal(<-sub.Messages(), &first)
	if first.ID != "e-3" {
		t.Errorf("Expected oldest kept event e-3, got %s", first.ID)
	}
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub(nil)
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			sub := NewSubscriber("dash-"+strconv.Itoa(i), Filter{}, 1)
			hub.Register(sub)
			if i%2 == 0 {
				hub.Unregister(sub)
			}
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.Broadcast(event("e", "s"))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.Get("dash-" + strconv.Itoa(i))
		}
	}()

	wg.Wait()
	if hub.Count() != 100 {
		t.Errorf("Expected 100 subscribers, got %d", hub.Count())
	}
	hub.CloseAll()
	if hub.Count() != 0 {
		t.Errorf("Expected 0 subscribers after CloseAll, got %d", hub.Count())
	}
}

func TestWebSocketHandler_StreamsEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(NewWebSocketHandler(hub, "*", true))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?session_id=s-1"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if hub.Count() != 1 {
		t.Fatalf("Expected 1 subscriber, got %d", hub.Count())
	}

	hub.Broadcast(event("skip", "s-2"))
	hub.Broadcast(event("e-1", "s-1"))

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var got domain.Event
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.ID != "e-1" {
		t.Errorf("Expected event e-1, got %s", got.ID)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read pong: %v", err)
	}
	if string(data) != `{"type":"pong"}` {
		t.Errorf("Expected pong, got %s", data)
	}
}

func TestWebSocketHandler_RejectsOrigin(t *testing.T) {
	h := NewWebSocketHandler(NewHub(nil), "https://dash.example.com", false)
	req := httptest.NewRequest("GET", "/ws/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rr := httptest.NewRecorder()

	h.ServeHTTP(rr, req)

	if rr.Code != 403 {
		t.Errorf("Expected status 403, got %d", rr.Code)
	}
}
