// Command mqtt-broker boots the broker-side process: the subscription
// cache (warmed from the metadata store), the MQTT-over-WebSocket
// connection hub, and the read-only admin HTTP surface.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"golang.org/x/time/rate"

	"github.com/robustmq/robustmq-go/internal/cache"
	"github.com/robustmq/robustmq-go/internal/config"
	"github.com/robustmq/robustmq-go/internal/hub"
	"github.com/robustmq/robustmq-go/internal/httpadmin"
	"github.com/robustmq/robustmq-go/internal/identity"
	"github.com/robustmq/robustmq-go/internal/kv"
	"github.com/robustmq/robustmq-go/internal/rpcserver"
	"github.com/robustmq/robustmq-go/internal/store"
)

func main() {
	cfg := config.LoadMQTTBroker()
	if cfg.DevMode {
		slog.Warn("development mode enabled: WebSocket origin verification disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nodeKey, err := identity.Generate()
	if err != nil {
		slog.Error("failed to generate node identity", "error", err)
		os.Exit(1)
	}
	nodeID := identity.DeriveNodeID(cfg.ClusterName, nodeKey.Public)
	slog.Info("broker identity ready", "node_id", nodeID)

	if err := registerWithPlacementCenter(ctx, cfg, nodeKey); err != nil {
		// Non-fatal: a broker that cannot reach the placement center still
		// serves locally-connected MQTT clients, but it is not in the
		// share-sub leader (C6) membership. Registration is attempted only
		// once, here at startup, and is not retried.
		slog.Error("failed to register with placement center", "error", err)
	} else {
		slog.Info("registered with placement center", "cluster", cfg.ClusterName, "broker_id", cfg.BrokerID)
	}

	// The broker keeps its own embedded KV engine for metadata warm-up in
	// this deployment; a multi-process deployment would instead warm the
	// cache from an RPC read against a remote placement center. Broker
	// membership (C6's live-broker-id set), unlike topic/user warm-up, is
	// NOT read from this local engine -- it is established above via the
	// register_node handshake against the placement center's own cache.
	engine, err := kv.Open(cfg.ClusterName + "-broker.db")
	if err != nil {
		slog.Error("failed to open local metadata store", "error", err)
		os.Exit(1)
	}
	defer engine.Close()
	metaStore := store.NewMetadataStore(engine)

	cacheManager := cache.NewManager()
	cacheManager.RegisterCluster(cfg.ClusterName, "MqttBrokerServer")
	if err := cacheManager.WarmUp(ctx, metaStore); err != nil {
		slog.Error("cache warm-up failed", "error", err)
		os.Exit(1)
	}
	slog.Info("cache warmed", "cluster", cfg.ClusterName)

	rl := hub.NewRateLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	connHub := hub.NewHub(cacheManager, rl)
	go connHub.Run(ctx)

	r := chi.NewRouter()
	r.Get("/mqtt", wsHandler(ctx, connHub, cfg.DevMode))
	r.Mount("/", httpadmin.New(cfg.ClusterName, cacheManager, connHub).Router())

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		slog.Info("mqtt broker starting", "port", cfg.Port, "cluster", cfg.ClusterName)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down mqtt broker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("mqtt broker stopped")
}

// wsHandler accepts an MQTT-over-WebSocket connection identified by a
// client_id query parameter (the MQTT CONNECT packet's parsing is out of
// scope -- no wire codec in this repo) and registers it with the hub.
func wsHandler(serverCtx context.Context, h *hub.Hub, devMode bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clientID := r.URL.Query().Get("client_id")
		if clientID == "" {
			http.Error(w, "missing client_id", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: devMode,
		})
		if err != nil {
			slog.Error("websocket accept error", "error", err)
			return
		}

		client := hub.NewClient(h, conn, clientID, serverCtx)
		h.Register(client)
		slog.Info("client connected", "client_id", clientID)

		go client.WritePump()
		go client.HeartbeatLoop()
		client.ReadPump()
	}
}

// registerWithPlacementCenter runs the two-step register_node handshake
// against the placement center: fetch a nonce for this broker's public key,
// sign it, and submit cluster_name/broker_id/address for the placement
// center to add to its broker cache (C5) -- the set get_share_sub_leader
// (C6) elects over.
func registerWithPlacementCenter(ctx context.Context, cfg config.MQTTBroker, nodeKey identity.KeyPair) error {
	publicKey := base58.Encode(nodeKey.Public)

	challengeURL := cfg.PlacementAddr + "/rpc/register_node/challenge?public_key=" + url.QueryEscape(publicKey)
	challengeReq, err := http.NewRequestWithContext(ctx, http.MethodGet, challengeURL, nil)
	if err != nil {
		return err
	}
	challengeResp, err := http.DefaultClient.Do(challengeReq)
	if err != nil {
		return err
	}
	defer challengeResp.Body.Close()

	var challengeEnv rpcserver.Envelope
	if err := json.NewDecoder(challengeResp.Body).Decode(&challengeEnv); err != nil {
		return err
	}
	if challengeEnv.Code != rpcserver.CodeOK {
		return fmt.Errorf("register_node challenge failed: %v", challengeEnv.Data)
	}
	data, ok := challengeEnv.Data.(map[string]any)
	if !ok {
		return fmt.Errorf("unexpected challenge response shape: %+v", challengeEnv.Data)
	}
	nonce, err := base64.StdEncoding.DecodeString(data["nonce"].(string))
	if err != nil {
		return err
	}

	signature := identity.SignChallenge(nodeKey.Private, cfg.ClusterName, nonce)

	body, err := json.Marshal(map[string]any{
		"cluster_name": cfg.ClusterName,
		"broker_id":    cfg.BrokerID,
		"address":      cfg.AdvertisedAddr,
		"public_key":   publicKey,
		"signature":    base64.StdEncoding.EncodeToString(signature),
	})
	if err != nil {
		return err
	}

	registerReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.PlacementAddr+"/rpc/register_node", bytes.NewReader(body))
	if err != nil {
		return err
	}
	registerReq.Header.Set("Content-Type", "application/json")
	registerResp, err := http.DefaultClient.Do(registerReq)
	if err != nil {
		return err
	}
	defer registerResp.Body.Close()

	var registerEnv rpcserver.Envelope
	if err := json.NewDecoder(registerResp.Body).Decode(&registerEnv); err != nil {
		return err
	}
	if registerEnv.Code != rpcserver.CodeOK {
		return fmt.Errorf("register_node failed: %v", registerEnv.Data)
	}
	return nil
}
