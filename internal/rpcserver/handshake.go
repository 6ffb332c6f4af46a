package rpcserver

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/mr-tron/base58"

	"github.com/robustmq/robustmq-go/internal/identity"
)

// registerChallengeTTL bounds how long a node has to answer a challenge
// before it expires and must be re-requested.
const registerChallengeTTL = 30 * time.Second

// challengeStore holds one pending handshake challenge per public key, so a
// register_node request can be checked against the nonce it was issued.
// Entries are single-use: a successful or failed verification both remove it.
type challengeStore struct {
	mu      sync.Mutex
	pending map[string]identity.Challenge
}

func newChallengeStore() *challengeStore {
	return &challengeStore{pending: make(map[string]identity.Challenge)}
}

func (c *challengeStore) put(publicKey string, ch identity.Challenge) {
	c.mu.Lock()
	c.pending[publicKey] = ch
	c.mu.Unlock()
}

func (c *challengeStore) take(publicKey string) (identity.Challenge, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.pending[publicKey]
	if ok {
		delete(c.pending, publicKey)
	}
	return ch, ok
}

// registerChallengeResponse is the wire shape for GET /register_node/challenge.
type registerChallengeResponse struct {
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleRegisterChallenge issues a fresh handshake nonce for the broker node
// identified by the base58-encoded public key in the query string. The first
// half of the register_node handshake (spec §2: "C6 reads node membership
// from C5") -- the second half, handleRegisterNode, proves ownership of the
// corresponding private key before the broker is added to the cache.
func (s *Server) handleRegisterChallenge(w http.ResponseWriter, r *http.Request) {
	publicKey := r.URL.Query().Get("public_key")
	if publicKey == "" {
		writeError(w, errors.New("missing public_key"))
		return
	}
	ch, err := identity.GenerateChallenge(time.Now(), registerChallengeTTL)
	if err != nil {
		writeError(w, err)
		return
	}
	s.challenges.put(publicKey, ch)
	writeOK(w, registerChallengeResponse{
		Nonce:     base64.StdEncoding.EncodeToString(ch.Nonce),
		ExpiresAt: ch.ExpiresAt,
	})
}

// registerNodeRequest is the wire shape for POST /register_node: a broker
// proves ownership of public_key by signing the nonce from its matching
// challenge, then is added to cluster_name's live broker set (C5) at address.
type registerNodeRequest struct {
	ClusterName string `json:"cluster_name"`
	BrokerID    uint64 `json:"broker_id"`
	Address     string `json:"address"`
	PublicKey   string `json:"public_key"`
	Signature   string `json:"signature"`
}

func (s *Server) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var req registerNodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	pub, err := base58.Decode(req.PublicKey)
	if err != nil {
		writeError(w, err)
		return
	}
	sig, err := base64.StdEncoding.DecodeString(req.Signature)
	if err != nil {
		writeError(w, err)
		return
	}
	ch, ok := s.challenges.take(req.PublicKey)
	if !ok {
		writeError(w, errors.New("no pending challenge for public key"))
		return
	}
	if err := identity.VerifyResponse(ed25519.PublicKey(pub), req.ClusterName, ch, sig, time.Now()); err != nil {
		writeError(w, err)
		return
	}

	s.cacheManager.RegisterBroker(req.ClusterName, req.BrokerID, req.Address)
	writeOK(w, nil)
}
