package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

// mockClient creates a Client with a send channel but no real connection.
func mockClient(hub *Hub) *Client {
	return &Client{
		hub:  hub,
		conn: nil,
		send: make(chan []byte, sendBufferSize),
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)

	hub.Register(c1)
	hub.Register(c2)

	if got := hub.ClientCount(); got != 2 {
		t.Fatalf("expected 2 clients, got %d", got)
	}

	hub.Unregister(c1)

	if got := hub.ClientCount(); got != 1 {
		t.Fatalf("expected 1 client after unregister, got %d", got)
	}

	hub.Unregister(c2)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestDoubleUnregister(t *testing.T) {
	hub := NewHub(slog.Default())
	c := mockClient(hub)
	hub.Register(c)
	hub.Unregister(c)
	// Should not panic
	hub.Unregister(c)

	if got := hub.ClientCount(); got != 0 {
		t.Fatalf("expected 0 clients, got %d", got)
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())

	c1 := mockClient(hub)
	c2 := mockClient(hub)
	hub.Register(c1)
	hub.Register(c2)

	msg := NewMessage("task", "completed", "t-42", map[string]any{"house_id": "h1"})
	hub.Broadcast(msg)

	// Check both clients received the message
	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.send:
			var got Message
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != "task_completed" {
				t.Errorf("expected type task_completed, got %s", got.Type)
			}
			if got.Entity != "task" {
				t.Errorf("expected entity task, got %s", got.Entity)
			}
			if got.ID != "t-42" {
				t.Errorf("expected id t-42, got %s", got.ID)
			}
			if got.Revision != 1 {
				t.Errorf("expected revision 1, got %d", got.Revision)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timeout waiting for message")
		}
	}

	hub.Unregister(c1)
	hub.Unregister(c2)
}

func TestBroadcastEmptyHub(t *testing.T) {
	hub := NewHub(slog.Default())
	// Should not panic
	msg := NewMessage("task", "archived", "t1", nil)
	hub.Broadcast(msg)
}

func TestBroadcastFullBuffer(t *testing.T) {
	hub := NewHub(slog.Default())

	c := mockClient(hub)
	hub.Register(c)

	// Fill the send buffer
	for i := 0; i < sendBufferSize; i++ {
		hub.Broadcast(NewMessage("test", "fill", "", nil))
	}

	// This should drop the message, not panic or block
	hub.Broadcast(NewMessage("test", "dropped", "", nil))

	// Drain to verify buffer was full
	count := 0
	for {
		select {
		case <-c.send:
			count++
		default:
			goto done
		}
	}
done:
	if count != sendBufferSize {
		t.Errorf("expected %d messages, got %d", sendBufferSize, count)
	}

	hub.Unregister(c)
}

func TestNewMessage(t *testing.T) {
	msg := NewMessage("task_image", "uploaded", "img1", nil)
	if msg.Type != "task_image_uploaded" {
		t.Errorf("expected type task_image_uploaded, got %s", msg.Type)
	}
	if msg.Entity != "task_image" {
		t.Errorf("expected entity task_image, got %s", msg.Entity)
	}
	if msg.Action != "uploaded" {
		t.Errorf("expected action uploaded, got %s", msg.Action)
	}
	if msg.ID != "img1" {
		t.Errorf("expected id img1, got %s", msg.ID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup

	// Spawn goroutines that register, broadcast, and unregister concurrently
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := mockClient(hub)
			hub.Register(c)
			hub.Broadcast(NewMessage("test", "concurrent", "", nil))
			// Drain any messages
			for {
				select {
				case <-c.send:
				default:
					hub.Unregister(c)
					return
				}
			}
		}()
	}

	wg.Wait()

	if got := hub.ClientCount(); got != 0 {
		t.Errorf("expected 0 clients after concurrent test, got %d", got)
	}
}

func TestRevisionIncreasesPerBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())
	if hub.Revision() != 0 {
		t.Fatalf("initial revision = %d, want 0", hub.Revision())
	}

	var last uint64
	for i := 0; i < 5; i++ {
		rev := hub.Notify("house", "created", "")
		if rev != last+1 {
			t.Errorf("revision = %d, want %d", rev, last+1)
		}
		last = rev
	}
	if hub.Revision() != 5 {
		t.Errorf("revision = %d, want 5", hub.Revision())
	}
}

func TestConcurrentRevisionsAreUnique(t *testing.T) {
	hub := NewHub(slog.Default())
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[uint64]bool)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rev := hub.Notify("task", "updated", "")
			mu.Lock()
			seen[rev] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != 50 {
		t.Errorf("unique revisions = %d, want 50", len(seen))
	}
}

func TestHelloMessage(t *testing.T) {
	var got Message
	if err := json.Unmarshal(helloMessage(7), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "hello" || got.Revision != 7 {
		t.Errorf("hello = %+v", got)
	}
}

func TestStartQueuesHelloFirst(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Notify("task", "created", "t-1")

	c := mockClient(hub)
	done := make(chan struct{})
	go func() {
		c.start()
		for i := 0; i < sendBufferSize+4; i++ {
			hub.Notify("task", "updated", "t-1")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("start or broadcast blocked with a full buffer")
	}

	var first Message
	if err := json.Unmarshal(<-c.send, &first); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if first.Type != "hello" || first.Revision != 1 {
		t.Errorf("first message = %+v, want hello at revision 1", first)
	}
	if got := len(c.send); got != sendBufferSize-1 {
		t.Errorf("queued after hello = %d, want %d", got, sendBufferSize-1)
	}
}

func TestSyncReply(t *testing.T) {
	tests := []struct {
		in        string
		ok        bool
		wantStale bool
	}{
		{`{"type":"sync","since":3}`, true, true},
		{`{"type":"sync","since":5}`, true, false},
		{`{"type":"ping"}`, false, false},
		{`not json`, false, false},
	}
	for _, tt := range tests {
		reply, ok := syncReply([]byte(tt.in), 5)
		if ok != tt.ok {
			t.Errorf("%s: ok = %v, want %v", tt.in, ok, tt.ok)
			continue
		}
		if !ok {
			continue
		}
		var got Message
		if err := json.Unmarshal(reply, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Type != "sync" || got.Revision != 5 {
			t.Errorf("%s: reply = %+v", tt.in, got)
		}
		if got.Extra["stale"] != tt.wantStale {
			t.Errorf("%s: stale = %v, want %v", tt.in, got.Extra["stale"], tt.wantStale)
		}
	}
}

func TestHandleWebSocket(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hub.Notify("task", "created", "t1")

	srv := httptest.NewServer(HandleWebSocket(hub, hub.logger))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := ws.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	read := func() Message {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		return m
	}

	if hello := read(); hello.Type != "hello" || hello.Revision != 1 {
		t.Fatalf("hello = %+v, want revision 1", hello)
	}

	if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"sync","since":0}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if reply := read(); reply.Type != "sync" || reply.Extra["stale"] != true {
		t.Errorf("sync = %+v, want stale", reply)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	hub.Notify("house", "updated", "h1")
	if m := read(); m.Type != "house_updated" || m.Revision != 2 {
		t.Errorf("broadcast = %+v, want house_updated at revision 2", m)
	}
}
