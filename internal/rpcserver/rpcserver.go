// Package rpcserver exposes the placement center's mutating and listing
// operations (spec §6, "gRPC service") as chi-routed JSON endpoints. No
// repo in the reference corpus imports google.golang.org/grpc or a
// protobuf toolchain, so the gRPC surface is reimplemented here as plain
// JSON-RPC reusing the spec's own {code, data} response envelope (see
// DESIGN.md).
package rpcserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/robustmq/robustmq-go/internal/cache"
	"github.com/robustmq/robustmq-go/internal/consensus"
	"github.com/robustmq/robustmq-go/internal/metadata"
	"github.com/robustmq/robustmq-go/internal/sharesub"
	"github.com/robustmq/robustmq-go/internal/store"
)

// Response codes per spec §6: 0 on success, 100 carries an error string in
// data.
const (
	CodeOK    = 0
	CodeError = 100
)

// Envelope is the uniform JSON response wrapper every endpoint returns.
type Envelope struct {
	Code int `json:"code"`
	Data any `json:"data"`
}

// Server holds the dependencies the RPC surface needs: the metadata store
// for listing reads, the consensus applier for mutating writes, and the
// broker cache (C5) that backs both register_node and share-sub leader
// resolution (spec §2: "C6 reads node membership from C5").
type Server struct {
	metaStore    *store.MetadataStore
	applier      *consensus.Applier
	cacheManager *cache.Manager
	challenges   *challengeStore
}

// New builds a Server.
func New(metaStore *store.MetadataStore, applier *consensus.Applier, cacheManager *cache.Manager) *Server {
	return &Server{
		metaStore:    metaStore,
		applier:      applier,
		cacheManager: cacheManager,
		challenges:   newChallengeStore(),
	}
}

// Router builds the chi router exposing every spec §6 operation.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Post("/create_user", s.handleCreateUser)
	r.Post("/delete_user", s.handleDeleteUser)
	r.Get("/list_user", s.handleListUser)

	r.Post("/create_topic", s.handleCreateTopic)
	r.Post("/delete_topic", s.handleDeleteTopic)
	r.Get("/list_topic", s.handleListTopic)

	r.Post("/create_session", s.handleCreateSession)
	r.Post("/delete_session", s.handleDeleteSession)
	r.Get("/list_session", s.handleListSession)

	r.Post("/save_connector", s.handleSaveConnector)
	r.Post("/delete_connector", s.handleDeleteConnector)

	r.Get("/get_share_sub_leader", s.handleGetShareSubLeader)

	r.Get("/register_node/challenge", s.handleRegisterChallenge)
	r.Post("/register_node", s.handleRegisterNode)

	return r
}

func writeOK(w http.ResponseWriter, data any) {
	writeEnvelope(w, Envelope{Code: CodeOK, Data: data})
}

func writeError(w http.ResponseWriter, err error) {
	slog.Error("rpc handler error", "error", err)
	writeEnvelope(w, Envelope{Code: CodeError, Data: err.Error()})
}

func writeEnvelope(w http.ResponseWriter, env Envelope) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		slog.Error("failed to encode rpc response", "error", err)
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- User ---

// createUserRequest is the wire shape for POST /create_user: it carries
// the plaintext password, never a pre-computed hash, so the placement
// center is the only place a password is ever hashed.
type createUserRequest struct {
	ClusterName string `json:"cluster_name"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var wireReq createUserRequest
	if err := decodeBody(r, &wireReq); err != nil {
		writeError(w, err)
		return
	}
	hash, err := metadata.HashPassword(wireReq.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	req := consensus.CreateUserRequest{
		ClusterName: wireReq.ClusterName,
		User: metadata.User{
			Username:     wireReq.Username,
			PasswordHash: hash,
			IsSuperuser:  wireReq.IsSuperuser,
		},
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTCreateUser, Payload: payload}, "create_user"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	var req consensus.DeleteUserRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTDeleteUser, Payload: payload}, "delete_user"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleListUser(w http.ResponseWriter, r *http.Request) {
	cluster := r.URL.Query().Get("cluster_name")
	var name *string
	if v := r.URL.Query().Get("username"); v != "" {
		name = &v
	}
	users, err := s.metaStore.Users.List(cluster, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, users)
}

// --- Topic ---

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	var req consensus.CreateTopicRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTCreateTopic, Payload: payload}, "create_topic"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	var req consensus.DeleteTopicRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTDeleteTopic, Payload: payload}, "delete_topic"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleListTopic(w http.ResponseWriter, r *http.Request) {
	cluster := r.URL.Query().Get("cluster_name")
	var name *string
	if v := r.URL.Query().Get("topic_name"); v != "" {
		name = &v
	}
	topics, err := s.metaStore.Topics.List(cluster, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, topics)
}

// --- Session ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req consensus.CreateSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTCreateSession, Payload: payload}, "create_session"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	var req consensus.DeleteSessionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTDeleteSession, Payload: payload}, "delete_session"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleListSession(w http.ResponseWriter, r *http.Request) {
	cluster := r.URL.Query().Get("cluster_name")
	var name *string
	if v := r.URL.Query().Get("client_id"); v != "" {
		name = &v
	}
	sessions, err := s.metaStore.Sessions.List(cluster, name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, sessions)
}

// --- Connector (supplemented beyond spec.md's explicit RPC list, per
// SPEC_FULL.md §4: "plus connector create/delete") ---

func (s *Server) handleSaveConnector(w http.ResponseWriter, r *http.Request) {
	var req consensus.SaveConnectorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTSaveConnector, Payload: payload}, "save_connector"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

func (s *Server) handleDeleteConnector(w http.ResponseWriter, r *http.Request) {
	var req consensus.DeleteConnectorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	payload, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.applier.Apply(consensus.StorageData{Type: consensus.MQTTDeleteConnector, Payload: payload}, "delete_connector"); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, nil)
}

// --- Share-sub leader ---

// ShareSubLeaderResponse reports the elected broker. An unregistered
// elected id returns BrokerID=0 and an empty Address (spec §5 supplement:
// preserved verbatim from the original's get_share_sub_leader behavior).
type ShareSubLeaderResponse struct {
	BrokerID uint64 `json:"broker_id"`
	Address  string `json:"broker_addr"`
}

func (s *Server) handleGetShareSubLeader(w http.ResponseWriter, r *http.Request) {
	cluster := r.URL.Query().Get("cluster_name")
	group := r.URL.Query().Get("group_name")
	members := s.cacheManager.BrokerMembers(cluster)
	id, err := sharesub.Elect(group, members)
	if err != nil {
		writeError(w, err)
		return
	}
	addr, ok := s.cacheManager.BrokerAddress(cluster, id)
	if !ok {
		writeOK(w, ShareSubLeaderResponse{})
		return
	}
	writeOK(w, ShareSubLeaderResponse{BrokerID: id, Address: addr})
}
