package httpadmin_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/robustmq/robustmq-go/internal/cache"
	"github.com/robustmq/robustmq-go/internal/hub"
	"github.com/robustmq/robustmq-go/internal/httpadmin"
	"github.com/robustmq/robustmq-go/internal/metadata"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	m := cache.NewManager()
	m.AddTopic("c1", metadata.Topic{TopicName: "t1"})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := hub.NewHub(m, nil)
	go h.Run(ctx)

	srv := httpadmin.New("c1", m, h)
	return httptest.NewServer(srv.Router())
}

func TestMetricsReturnsPlainText(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
}

func TestCacheInfoReturnsSnapshot(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/cache-info")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	var snapshot cache.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if snapshot.ClusterName != "c1" {
		t.Fatalf("unexpected cluster name %q", snapshot.ClusterName)
	}
	if _, ok := snapshot.Topics["c1"]["t1"]; !ok {
		t.Fatalf("expected t1 in topic snapshot, got %+v", snapshot.Topics)
	}
}

func TestVersionEndpoint(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body["version"] != httpadmin.Version {
		t.Fatalf("unexpected version %q", body["version"])
	}
}
