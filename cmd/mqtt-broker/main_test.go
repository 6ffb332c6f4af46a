package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/robustmq/robustmq-go/internal/cache"
	"github.com/robustmq/robustmq-go/internal/hub"
)

func TestWSHandlerRegistersClientWithHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := cache.NewManager()
	h := hub.NewHub(m, nil)
	go h.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/mqtt", wsHandler(ctx, h, true))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/mqtt?client_id=c1"
	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.ClientCount() == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected client registered, got count %d", h.ClientCount())
}

func TestWSHandlerRejectsMissingClientID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := cache.NewManager()
	h := hub.NewHub(m, nil)
	go h.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/mqtt", wsHandler(ctx, h, true))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/mqtt")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
