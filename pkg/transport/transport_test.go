package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := Pipe()
	defer a.Close()

	if err := a.WriteFrame([]byte(`{"setup":{}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := b.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != `{"setup":{}}` {
		t.Fatalf("got %q", data)
	}

	if err := b.WriteFrame([]byte("reply")); err != nil {
		t.Fatalf("write back: %v", err)
	}
	data, err = a.ReadFrame()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "reply" {
		t.Fatalf("got %q", data)
	}
}

func TestPipeCloseUnblocksBothEnds(t *testing.T) {
	a, b := Pipe()

	errs := make(chan error, 2)
	go func() {
		_, err := a.ReadFrame()
		errs <- err
	}()
	go func() {
		_, err := b.ReadFrame()
		errs <- err
	}()

	a.Close()
	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != ErrClosed {
				t.Fatalf("read after close: %v, want ErrClosed", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("reader did not unblock after close")
		}
	}

	if err := a.WriteFrame([]byte("x")); err != ErrClosed {
		t.Fatalf("write after close: %v, want ErrClosed", err)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	cases := map[string]string{
		"https://api.example.com/v1/live": "wss://api.example.com/v1/live",
		"http://localhost:8080/live":      "ws://localhost:8080/live",
		"wss://api.example.com/v1/live":   "wss://api.example.com/v1/live",
		"ws://localhost:8080/live":        "ws://localhost:8080/live",
	}
	for in, want := range cases {
		if got := normalizeEndpoint(in); got != want {
			t.Fatalf("normalizeEndpoint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWebSocketDialerEcho(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	header := make(http.Header)
	header.Set("Authorization", "Bearer test-key")
	d := &WebSocketDialer{Header: header}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, err := d.Dial(ctx, endpoint)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if gotAuth != "Bearer test-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}

	if err := conn.WriteFrame([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := conn.ReadFrame()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("echo = %q", data)
	}

	if _, ok := conn.(Pinger); !ok {
		t.Fatal("websocket conn should implement Pinger")
	}
}
