package cache

import "github.com/robustmq/robustmq-go/internal/metadata"

// ExpireLastWill is the in-memory record the broker cache tracks for a
// client whose session ended and whose will message is pending delayed
// delivery (spec §3).
type ExpireLastWill struct {
	ClusterName         string
	ClientID            string
	DelayUntilEpochSecs int64
}

// IsSendLastWill reports whether now has reached the will's delay deadline
// (now >= DelayUntilEpochSecs).
func IsSendLastWill(e ExpireLastWill, now int64) bool {
	return now >= e.DelayUntilEpochSecs
}

// BrokerMember is one live broker node registered with this cache's
// cluster, the membership record C6 (internal/sharesub) elects over.
type BrokerMember struct {
	BrokerID uint64
	Address  string
}

// Subscriber is the routing record for one exclusive MQTT subscription.
type Subscriber struct {
	ClientID      string
	TopicFilter   string
	QoS           uint8
	Identifier    *uint32
	NoLocal       bool
	SubPathMangle string
}

// ShareLeaderGroupState tracks a shared-subscription group this broker
// leads: the set of member client ids and a round-robin dispatch cursor.
type ShareLeaderGroupState struct {
	GroupName  string
	TopicName  string
	Subscriber []Subscriber
	Cursor     int
}

// ShareFollowerState tracks a shared-subscription group this broker
// forwards to its elected leader rather than serving directly.
type ShareFollowerState struct {
	GroupName      string
	TopicName      string
	LeaderBrokerID uint64
	ClientID       string
}

// Snapshot is the read-only, JSON-serializable dump the HTTP admin surface
// publishes at GET /cache-info (spec §6), modeled field-for-field on the
// original's MetadataCacheResult (original_source/.../server/http/cache.rs).
type Snapshot struct {
	ClusterName string `json:"cluster_name"`

	Users      map[string]map[string]metadata.User      `json:"user_info"`
	Topics     map[string]map[string]metadata.Topic      `json:"topic_info"`
	Connectors map[string]map[string]metadata.Connector  `json:"connector_info"`
	Brokers    map[string]map[string]BrokerMember        `json:"broker_info"`

	ExpireLastWills map[string]map[string]ExpireLastWill `json:"expire_last_will_info"`

	ExclusiveSubscribe      map[string]Subscriber            `json:"exclusive_subscribe"`
	ShareLeaderSubscribe    map[string]ShareLeaderGroupState `json:"share_leader_subscribe"`
	ShareFollowerSubscribe  map[string]ShareFollowerState     `json:"share_follower_subscribe"`
	ShareFollowerIdentifier map[uint64]string                `json:"share_follower_identifier_id"`

	ExclusivePushThread      []string `json:"exclusive_push_thread"`
	ShareLeaderPushThread    []string `json:"share_leader_push_thread"`
	ShareFollowerResubThread []string `json:"share_follower_resub_thread"`
}
