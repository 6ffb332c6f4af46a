package store

import (
	"github.com/robustmq/robustmq-go/internal/kv"
	"github.com/robustmq/robustmq-go/internal/metadata"
)

// UserStore is the typed metadata store for spec.md's User record,
// keyed by (cluster, username) under mqtt/{cluster}/user/{username}.
type UserStore struct{ *RecordStore[metadata.User] }

func NewUserStore(engine *kv.Engine) *UserStore {
	return &UserStore{newRecordStore(engine, kv.CFMqtt, userKey, userPrefix, metadata.UserCodec)}
}

// TopicStore is the typed metadata store for Topic records, keyed by
// (cluster, topic_name) under mqtt/{cluster}/topic/{topic_name}.
type TopicStore struct{ *RecordStore[metadata.Topic] }

func NewTopicStore(engine *kv.Engine) *TopicStore {
	return &TopicStore{newRecordStore(engine, kv.CFMqtt, topicKey, topicPrefix, metadata.TopicCodec)}
}

// SessionStore is the typed metadata store for Session records, keyed by
// (cluster, client_id) under mqtt/{cluster}/session/{client_id}.
type SessionStore struct{ *RecordStore[metadata.Session] }

func NewSessionStore(engine *kv.Engine) *SessionStore {
	return &SessionStore{newRecordStore(engine, kv.CFMqtt, sessionKey, sessionPrefix, metadata.SessionCodec)}
}

// LastWillStore is the typed metadata store for LastWill records, keyed by
// (cluster, client_id) under mqtt/{cluster}/lastwill/{client_id}.
type LastWillStore struct{ *RecordStore[metadata.LastWill] }

func NewLastWillStore(engine *kv.Engine) *LastWillStore {
	return &LastWillStore{newRecordStore(engine, kv.CFMqtt, lastWillKey, lastWillPrefix, metadata.LastWillCodec)}
}

// DeleteLastWillMessage removes a cluster's last-will record for client_id.
// Idempotent: deleting an already-absent record is not an error (spec
// invariant 3).
func (s *LastWillStore) DeleteLastWillMessage(cluster, clientID string) error {
	return s.Delete(cluster, clientID)
}

// ConnectorStore is the typed metadata store for Connector records, keyed
// by (cluster, connector_name) under mqtt/{cluster}/connector/{connector_name}.
type ConnectorStore struct{ *RecordStore[metadata.Connector] }

func NewConnectorStore(engine *kv.Engine) *ConnectorStore {
	return &ConnectorStore{newRecordStore(engine, kv.CFMqtt, connectorKey, connectorPrefix, metadata.ConnectorCodec)}
}

// MetadataStore bundles every per-record-type store the Placement Center's
// write and read paths need, sharing one KV engine handle.
type MetadataStore struct {
	Users      *UserStore
	Topics     *TopicStore
	Sessions   *SessionStore
	LastWills  *LastWillStore
	Connectors *ConnectorStore
	Engine     *kv.Engine
}

// NewMetadataStore builds every typed store over a shared engine handle.
func NewMetadataStore(engine *kv.Engine) *MetadataStore {
	return &MetadataStore{
		Users:      NewUserStore(engine),
		Topics:     NewTopicStore(engine),
		Sessions:   NewSessionStore(engine),
		LastWills:  NewLastWillStore(engine),
		Connectors: NewConnectorStore(engine),
		Engine:     engine,
	}
}
