// Package identity gives every broker and placement-center node an Ed25519
// keypair and a stable, human-printable node id, and implements the
// challenge-response handshake a node uses to prove ownership of its key
// when it registers with the cluster (spec §6, register_node).
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// NonceSize is the size in bytes of a handshake challenge.
const NonceSize = 32

// NodeID is the base58 encoding of a node's Ed25519 public key, prefixed
// with its cluster name so ids from different clusters never collide.
type NodeID string

// DeriveNodeID computes the stable node id for pubKey within clusterName.
func DeriveNodeID(clusterName string, pubKey ed25519.PublicKey) NodeID {
	return NodeID(fmt.Sprintf("%s:%s", clusterName, base58.Encode(pubKey)))
}

// KeyPair is a node's signing identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 keypair for a node.
func Generate() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// Challenge is a time-bound handshake nonce issued to a node attempting to
// register with the cluster.
type Challenge struct {
	Nonce     []byte
	ExpiresAt time.Time
}

// GenerateChallenge creates a fresh challenge valid until now+ttl.
func GenerateChallenge(now time.Time, ttl time.Duration) (Challenge, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return Challenge{}, err
	}
	return Challenge{Nonce: nonce, ExpiresAt: now.Add(ttl)}, nil
}

var (
	// ErrChallengeExpired is returned when a response arrives after the
	// challenge's expiry.
	ErrChallengeExpired = errors.New("identity: challenge expired")
	// ErrInvalidSignature is returned when the response signature does not
	// verify against the claimed public key.
	ErrInvalidSignature = errors.New("identity: invalid signature")
)

// SignChallenge signs the nonce with priv, binding the signature to
// clusterName so a response cannot be replayed against a different
// cluster's placement center.
func SignChallenge(priv ed25519.PrivateKey, clusterName string, nonce []byte) []byte {
	return ed25519.Sign(priv, signingPayload(clusterName, nonce))
}

// VerifyResponse checks a node's signed response to a challenge: the
// signature must verify, and the challenge must not have expired as of now.
func VerifyResponse(pub ed25519.PublicKey, clusterName string, challenge Challenge, signature []byte, now time.Time) error {
	if now.After(challenge.ExpiresAt) {
		return ErrChallengeExpired
	}
	if len(pub) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return ErrInvalidSignature
	}
	if !ed25519.Verify(pub, signingPayload(clusterName, challenge.Nonce), signature) {
		return ErrInvalidSignature
	}
	return nil
}

func signingPayload(clusterName string, nonce []byte) []byte {
	payload := make([]byte, 0, len(clusterName)+1+len(nonce))
	payload = append(payload, []byte(clusterName)...)
	payload = append(payload, ':')
	payload = append(payload, nonce...)
	return payload
}
