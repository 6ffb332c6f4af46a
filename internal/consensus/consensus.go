// Package consensus models the write path's consensus contract (spec §6):
// apply_propose_message. The Raft transport itself is explicitly out of
// scope (spec §1), so Applier is a single-node synchronous stand-in: it
// applies a proposal to the metadata store directly and returns once the
// write has landed, the same observable contract a committed Raft proposal
// would give a caller.
package consensus

import (
	"encoding/json"
	"fmt"

	"github.com/robustmq/robustmq-go/internal/metadata"
	"github.com/robustmq/robustmq-go/internal/store"
)

// StorageDataType enumerates every mutating operation the placement center
// accepts, per spec §6.
type StorageDataType int

const (
	MQTTCreateUser StorageDataType = iota
	MQTTDeleteUser
	MQTTCreateTopic
	MQTTDeleteTopic
	MQTTCreateSession
	MQTTDeleteSession
	MQTTSetTopicRetainMessage
	MQTTSaveLastWill
	MQTTDeleteLastWill
	MQTTSaveConnector
	MQTTDeleteConnector
)

// StorageData is a single proposal: the operation type plus its encoded
// request payload.
type StorageData struct {
	Type    StorageDataType
	Payload []byte
}

// Error wraps a proposal rejection -- the consensus layer's ConsensusError
// (spec §7). RPC handlers report it like any other handler error: a
// CodeError envelope carrying the error message.
type Error struct {
	Label string
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("consensus: %s: %v", e.Label, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// CreateUserRequest/DeleteUserRequest/... are the JSON-encoded payloads
// proposals carry. Each mirrors the gRPC request message the original
// service_mqtt.rs packages into StorageData.
type CreateUserRequest struct {
	ClusterName string        `json:"cluster_name"`
	User        metadata.User `json:"user"`
}

type DeleteUserRequest struct {
	ClusterName string `json:"cluster_name"`
	Username    string `json:"username"`
}

type CreateTopicRequest struct {
	ClusterName string         `json:"cluster_name"`
	Topic       metadata.Topic `json:"topic"`
}

type DeleteTopicRequest struct {
	ClusterName string `json:"cluster_name"`
	TopicName   string `json:"topic_name"`
}

type CreateSessionRequest struct {
	ClusterName string           `json:"cluster_name"`
	Session     metadata.Session `json:"session"`
}

type DeleteSessionRequest struct {
	ClusterName string `json:"cluster_name"`
	ClientID    string `json:"client_id"`
}

type SetTopicRetainMessageRequest struct {
	ClusterName string `json:"cluster_name"`
	TopicName   string `json:"topic_name"`
	RetainMsg   []byte `json:"retain_message"`
	ExpiredSecs *int64 `json:"retain_message_expired_at"`
}

type SaveLastWillRequest struct {
	ClusterName string            `json:"cluster_name"`
	LastWill    metadata.LastWill `json:"last_will"`
}

type DeleteLastWillRequest struct {
	ClusterName string `json:"cluster_name"`
	ClientID    string `json:"client_id"`
}

type SaveConnectorRequest struct {
	ClusterName string             `json:"cluster_name"`
	Connector   metadata.Connector `json:"connector"`
}

type DeleteConnectorRequest struct {
	ClusterName   string `json:"cluster_name"`
	ConnectorName string `json:"connector_name"`
}

// Applier proposes a StorageData entry and applies it synchronously to the
// metadata store, mirroring apply_propose_message's "completes only after
// the entry is committed" contract without an actual replicated log.
type Applier struct {
	metaStore *store.MetadataStore
}

// NewApplier builds an Applier over metaStore.
func NewApplier(metaStore *store.MetadataStore) *Applier {
	return &Applier{metaStore: metaStore}
}

// Apply proposes and applies one StorageData entry. label is a
// human-readable operation name used only for error messages, matching the
// original's per-RPC label ("create_user", "delete_topic", ...).
func (a *Applier) Apply(data StorageData, label string) error {
	if err := a.apply(data); err != nil {
		return &Error{Label: label, Err: err}
	}
	return nil
}

func (a *Applier) apply(data StorageData) error {
	switch data.Type {
	case MQTTCreateUser:
		var req CreateUserRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Users.Save(req.ClusterName, req.User.Username, req.User)

	case MQTTDeleteUser:
		var req DeleteUserRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Users.Delete(req.ClusterName, req.Username)

	case MQTTCreateTopic:
		var req CreateTopicRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Topics.Save(req.ClusterName, req.Topic.TopicName, req.Topic)

	case MQTTDeleteTopic:
		var req DeleteTopicRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Topics.Delete(req.ClusterName, req.TopicName)

	case MQTTSetTopicRetainMessage:
		var req SetTopicRetainMessageRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		topic, ok, err := a.metaStore.Topics.Get(req.ClusterName, req.TopicName)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("consensus: unknown topic %s/%s", req.ClusterName, req.TopicName)
		}
		topic.RetainMessage = req.RetainMsg
		topic.RetainMessageExpiredAt = req.ExpiredSecs
		return a.metaStore.Topics.Save(req.ClusterName, req.TopicName, topic)

	case MQTTCreateSession:
		var req CreateSessionRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Sessions.Save(req.ClusterName, req.Session.ClientID, req.Session)

	case MQTTDeleteSession:
		var req DeleteSessionRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Sessions.Delete(req.ClusterName, req.ClientID)

	case MQTTSaveLastWill:
		var req SaveLastWillRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.LastWills.Save(req.ClusterName, req.LastWill.ClientID, req.LastWill)

	case MQTTDeleteLastWill:
		var req DeleteLastWillRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.LastWills.DeleteLastWillMessage(req.ClusterName, req.ClientID)

	case MQTTSaveConnector:
		var req SaveConnectorRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Connectors.Save(req.ClusterName, req.Connector.ConnectorName, req.Connector)

	case MQTTDeleteConnector:
		var req DeleteConnectorRequest
		if err := json.Unmarshal(data.Payload, &req); err != nil {
			return err
		}
		return a.metaStore.Connectors.Delete(req.ClusterName, req.ConnectorName)

	default:
		return fmt.Errorf("consensus: unknown storage data type %d", data.Type)
	}
}
