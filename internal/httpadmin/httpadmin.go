// Package httpadmin implements the broker's read-only admin HTTP surface
// (spec §6): GET /metrics, GET /cache-info, GET /. It is separate from
// internal/rpcserver because it never proposes a write and never depends
// on the consensus applier.
package httpadmin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/robustmq/robustmq-go/internal/cache"
	"github.com/robustmq/robustmq-go/internal/hub"
)

// Version is the admin surface's reported build version.
const Version = "0.1.0"

// Server serves the admin endpoints over a single broker cluster's cache
// and connection hub.
type Server struct {
	clusterName  string
	cacheManager *cache.Manager
	connHub      *hub.Hub
}

// New builds an httpadmin Server.
func New(clusterName string, cacheManager *cache.Manager, connHub *hub.Hub) *Server {
	return &Server{clusterName: clusterName, cacheManager: cacheManager, connHub: connHub}
}

// Router builds the chi router exposing the admin surface.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/metrics", s.handleMetrics)
	r.Get("/cache-info", s.handleCacheInfo)
	r.Get("/", s.handleVersion)
	return r
}

// handleMetrics returns a small plaintext process metrics report, modeled
// on the teacher's /health endpoint but extended to text/plain per spec §6.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "goroutines %d\n", runtime.NumGoroutine())
	fmt.Fprintf(w, "connections %d\n", s.connHub.ClientCount())
}

// handleCacheInfo dumps the broker cache as JSON: this server's cluster
// name, users, topics, connectors, live brokers, due last wills,
// subscription state, and push-task identifier sets. The registry of
// cluster types kept for WarmUp is not part of the dump.
func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	snapshot := s.cacheManager.Snapshot(s.clusterName)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleVersion reports the admin surface's version, spec §6's GET /.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": Version})
}
