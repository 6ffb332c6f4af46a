package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/robustmq/robustmq-go/internal/metadata"
	"github.com/robustmq/robustmq-go/internal/store"
)

// Manager is the Broker's process-local concurrent index of cluster
// metadata and subscription routing state (spec C5). Every mutation is a
// single shard insert/remove; no method holds more than one shard lock at a
// time, and reads return independent per-key snapshots rather than a
// cross-map-consistent view (spec §4.5).
type Manager struct {
	clusters *shardedMap[string] // cluster_name -> cluster_type, for WarmUp filtering

	users      *nestedMap[metadata.User]
	topics     *nestedMap[metadata.Topic]
	connectors *nestedMap[metadata.Connector]
	brokers    *nestedMap[BrokerMember] // cluster -> broker_id (string) -> member

	expireLastWills *nestedMap[ExpireLastWill]

	exclusiveSubscribe     *shardedMap[Subscriber]
	shareLeaderSubscribe   *shardedMap[ShareLeaderGroupState]
	shareFollowerSubscribe *shardedMap[ShareFollowerState]

	shareFollowerIdentifierMu sync.RWMutex
	shareFollowerIdentifierID map[uint64]string

	exclusivePushThread      *stringSet
	shareLeaderPushThread    *stringSet
	shareFollowerResubThread *stringSet
}

// NewManager builds an empty broker cache.
func NewManager() *Manager {
	return &Manager{
		clusters:                  newShardedMap[string](),
		users:                     newNestedMap[metadata.User](),
		topics:                    newNestedMap[metadata.Topic](),
		connectors:                newNestedMap[metadata.Connector](),
		brokers:                   newNestedMap[BrokerMember](),
		expireLastWills:           newNestedMap[ExpireLastWill](),
		exclusiveSubscribe:        newShardedMap[Subscriber](),
		shareLeaderSubscribe:      newShardedMap[ShareLeaderGroupState](),
		shareFollowerSubscribe:    newShardedMap[ShareFollowerState](),
		shareFollowerIdentifierID: make(map[uint64]string),
		exclusivePushThread:       newStringSet(),
		shareLeaderPushThread:     newStringSet(),
		shareFollowerResubThread:  newStringSet(),
	}
}

// --- Topic ---

// AddTopic upserts a topic into the cluster's topic map.
func (m *Manager) AddTopic(cluster string, topic metadata.Topic) {
	m.topics.Set(cluster, topic.TopicName, topic)
}

// RemoveTopic removes topicName from the cluster's topic map. No-op if
// absent. Mutates only the topic map (spec §9 corrects the source bug where
// remove_user/remove_connector mutated this map instead of their own).
func (m *Manager) RemoveTopic(cluster, topicName string) {
	m.topics.Delete(cluster, topicName)
}

// GetTopic returns the cached topic, if any.
func (m *Manager) GetTopic(cluster, topicName string) (metadata.Topic, bool) {
	return m.topics.Get(cluster, topicName)
}

// Topics returns every cached topic for cluster.
func (m *Manager) Topics(cluster string) []metadata.Topic {
	return m.topics.Values(cluster)
}

// --- User ---

// AddUser upserts a user into the cluster's user map.
func (m *Manager) AddUser(cluster string, user metadata.User) {
	m.users.Set(cluster, user.Username, user)
}

// RemoveUser removes username from the cluster's OWN user map -- not the
// topic map (the bug spec §9 calls out in the source and requires fixed).
func (m *Manager) RemoveUser(cluster, username string) {
	m.users.Delete(cluster, username)
}

// GetUser returns the cached user, if any.
func (m *Manager) GetUser(cluster, username string) (metadata.User, bool) {
	return m.users.Get(cluster, username)
}

// Users returns every cached user for cluster.
func (m *Manager) Users(cluster string) []metadata.User {
	return m.users.Values(cluster)
}

// --- Connector ---

// AddConnector upserts a connector into the cluster's connector map.
func (m *Manager) AddConnector(cluster string, connector metadata.Connector) {
	m.connectors.Set(cluster, connector.ConnectorName, connector)
}

// RemoveConnector removes connectorName from the cluster's OWN connector
// map -- not the topic map (spec §9 corrects this source bug too).
func (m *Manager) RemoveConnector(cluster, connectorName string) {
	m.connectors.Delete(cluster, connectorName)
}

// GetConnector returns the cached connector, if any.
func (m *Manager) GetConnector(cluster, connectorName string) (metadata.Connector, bool) {
	return m.connectors.Get(cluster, connectorName)
}

// --- Broker membership (C6 reads this set directly, per spec §2) ---

// RegisterBroker records brokerID as live for cluster at addr. Re-registering
// an already-live broker (e.g. a renewed heartbeat) overwrites its address.
func (m *Manager) RegisterBroker(cluster string, brokerID uint64, addr string) {
	m.brokers.Set(cluster, strconv.FormatUint(brokerID, 10), BrokerMember{BrokerID: brokerID, Address: addr})
}

// UnregisterBroker removes brokerID from cluster's live set. No-op if absent.
func (m *Manager) UnregisterBroker(cluster string, brokerID uint64) {
	m.brokers.Delete(cluster, strconv.FormatUint(brokerID, 10))
}

// BrokerMembers returns the live broker ids for cluster, the membership set
// internal/sharesub.Elect draws from.
func (m *Manager) BrokerMembers(cluster string) []uint64 {
	members := m.brokers.Values(cluster)
	out := make([]uint64, 0, len(members))
	for _, b := range members {
		out = append(out, b.BrokerID)
	}
	return out
}

// BrokerAddress returns the registered address for brokerID within cluster.
func (m *Manager) BrokerAddress(cluster string, brokerID uint64) (string, bool) {
	b, ok := m.brokers.Get(cluster, strconv.FormatUint(brokerID, 10))
	return b.Address, ok
}

// --- Expire last will ---

// AddExpireLastWill registers a pending delayed will delivery.
func (m *Manager) AddExpireLastWill(e ExpireLastWill) {
	m.expireLastWills.Set(e.ClusterName, e.ClientID, e)
}

// RemoveExpireLastWill cancels a pending delayed will delivery.
func (m *Manager) RemoveExpireLastWill(cluster, clientID string) {
	m.expireLastWills.Delete(cluster, clientID)
}

// GetExpireLastWills returns every pending will for cluster whose delay
// deadline has elapsed as of now.
func (m *Manager) GetExpireLastWills(cluster string, now int64) []ExpireLastWill {
	all := m.expireLastWills.Values(cluster)
	var due []ExpireLastWill
	for _, e := range all {
		if IsSendLastWill(e, now) {
			due = append(due, e)
		}
	}
	return due
}

// --- Subscription routing ---

// AddExclusiveSubscriber registers an exclusive subscription under key
// (e.g. "{client_id}/{topic_filter}").
func (m *Manager) AddExclusiveSubscriber(key string, sub Subscriber) {
	m.exclusiveSubscribe.Set(key, sub)
}

// RemoveExclusiveSubscriber removes an exclusive subscription. No-op if absent.
func (m *Manager) RemoveExclusiveSubscriber(key string) {
	m.exclusiveSubscribe.Delete(key)
}

// GetExclusiveSubscriber returns the subscriber registered under key.
func (m *Manager) GetExclusiveSubscriber(key string) (Subscriber, bool) {
	return m.exclusiveSubscribe.Get(key)
}

// ExclusiveSubscribersForTopic returns every exclusive subscriber whose
// filter exactly matches topicName. Wildcard filter matching is out of
// scope (no wire codec in this repo); callers needing '+'/'#' semantics
// sit on top of this exact-match primitive.
func (m *Manager) ExclusiveSubscribersForTopic(topicName string) []Subscriber {
	var out []Subscriber
	for _, sub := range m.exclusiveSubscribe.Values() {
		if sub.TopicFilter == topicName {
			out = append(out, sub)
		}
	}
	return out
}

// RegisterShareLeaderGroup installs this broker as the leader for a shared
// subscription group, keyed by "{cluster}/{group_name}/{topic_name}".
func (m *Manager) RegisterShareLeaderGroup(key string, state ShareLeaderGroupState) {
	m.shareLeaderSubscribe.Set(key, state)
}

// RemoveShareLeaderGroup un-registers a shared-subscription leader group.
func (m *Manager) RemoveShareLeaderGroup(key string) {
	m.shareLeaderSubscribe.Delete(key)
}

// GetShareLeaderGroup returns the leader-side group state for key.
func (m *Manager) GetShareLeaderGroup(key string) (ShareLeaderGroupState, bool) {
	return m.shareLeaderSubscribe.Get(key)
}

// RegisterShareFollower installs a forwarding record for a shared
// subscription group this broker does not lead.
func (m *Manager) RegisterShareFollower(key string, state ShareFollowerState) {
	m.shareFollowerSubscribe.Set(key, state)
}

// RemoveShareFollower removes a share-follower forwarding record.
func (m *Manager) RemoveShareFollower(key string) {
	m.shareFollowerSubscribe.Delete(key)
}

// RegisterShareFollowerIdentifier maps an MQTT subscription identifier
// handle back to its share-follower group key, so a PUBACK/resub can find
// the group it belongs to.
func (m *Manager) RegisterShareFollowerIdentifier(id uint64, groupKey string) {
	m.shareFollowerIdentifierMu.Lock()
	m.shareFollowerIdentifierID[id] = groupKey
	m.shareFollowerIdentifierMu.Unlock()
}

// RemoveShareFollowerIdentifier un-registers an identifier handle.
func (m *Manager) RemoveShareFollowerIdentifier(id uint64) {
	m.shareFollowerIdentifierMu.Lock()
	delete(m.shareFollowerIdentifierID, id)
	m.shareFollowerIdentifierMu.Unlock()
}

// --- Active push-task identifier sets ---

// ExclusivePushThreadKeys returns the active exclusive push-task identifiers.
func (m *Manager) ExclusivePushThreadKeys() []string { return m.exclusivePushThread.Keys() }

// AddExclusivePushThread marks a push task as active for key.
func (m *Manager) AddExclusivePushThread(key string) { m.exclusivePushThread.Add(key) }

// RemoveExclusivePushThread marks a push task inactive for key.
func (m *Manager) RemoveExclusivePushThread(key string) { m.exclusivePushThread.Remove(key) }

// ShareLeaderPushThreadKeys returns the active share-leader push-task identifiers.
func (m *Manager) ShareLeaderPushThreadKeys() []string { return m.shareLeaderPushThread.Keys() }

// AddShareLeaderPushThread marks a share-leader push task as active.
func (m *Manager) AddShareLeaderPushThread(key string) { m.shareLeaderPushThread.Add(key) }

// RemoveShareLeaderPushThread marks a share-leader push task inactive.
func (m *Manager) RemoveShareLeaderPushThread(key string) { m.shareLeaderPushThread.Remove(key) }

// ShareFollowerResubThreadKeys returns the active share-follower resub-task identifiers.
func (m *Manager) ShareFollowerResubThreadKeys() []string { return m.shareFollowerResubThread.Keys() }

// AddShareFollowerResubThread marks a share-follower resub task as active.
func (m *Manager) AddShareFollowerResubThread(key string) { m.shareFollowerResubThread.Add(key) }

// RemoveShareFollowerResubThread marks a share-follower resub task inactive.
func (m *Manager) RemoveShareFollowerResubThread(key string) {
	m.shareFollowerResubThread.Remove(key)
}

// --- Cluster registry (used by WarmUp to filter MQTT broker clusters) ---

const mqttBrokerServerType = "MqttBrokerServer"

// RegisterCluster records a cluster's type, used to decide whether WarmUp
// should populate this cache from it.
func (m *Manager) RegisterCluster(clusterName, clusterType string) {
	m.clusters.Set(clusterName, clusterType)
}

// WarmUp populates the cache at process start: for every registered cluster
// of type MqttBrokerServer, list topics and users from the metadata store
// (spec C3) and insert them (spec §4.5). Subscriptions repopulate on client
// reconnect and are not warmed here.
func (m *Manager) WarmUp(ctx context.Context, metaStore *store.MetadataStore) error {
	for _, cluster := range m.clusters.Keys() {
		clusterType, _ := m.clusters.Get(cluster)
		if clusterType != mqttBrokerServerType {
			continue
		}
		topics, err := metaStore.Topics.List(cluster, nil)
		if err != nil {
			return err
		}
		for _, t := range topics {
			m.AddTopic(cluster, t)
		}

		users, err := metaStore.Users.List(cluster, nil)
		if err != nil {
			return err
		}
		for _, u := range users {
			m.AddUser(cluster, u)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	return nil
}

// Snapshot returns a read-only dump of the whole cache for the admin HTTP
// surface's GET /cache-info (spec §6), reusing the single cluster name the
// caller cares about.
func (m *Manager) Snapshot(clusterName string) Snapshot {
	now := time.Now().Unix()

	exclusive := make(map[string]Subscriber)
	for _, k := range m.exclusiveSubscribe.Keys() {
		if v, ok := m.exclusiveSubscribe.Get(k); ok {
			exclusive[k] = v
		}
	}
	shareLeader := make(map[string]ShareLeaderGroupState)
	for _, k := range m.shareLeaderSubscribe.Keys() {
		if v, ok := m.shareLeaderSubscribe.Get(k); ok {
			shareLeader[k] = v
		}
	}
	shareFollower := make(map[string]ShareFollowerState)
	for _, k := range m.shareFollowerSubscribe.Keys() {
		if v, ok := m.shareFollowerSubscribe.Get(k); ok {
			shareFollower[k] = v
		}
	}

	m.shareFollowerIdentifierMu.RLock()
	shareFollowerIdentifier := make(map[uint64]string, len(m.shareFollowerIdentifierID))
	for k, v := range m.shareFollowerIdentifierID {
		shareFollowerIdentifier[k] = v
	}
	m.shareFollowerIdentifierMu.RUnlock()

	expire := make(map[string]ExpireLastWill)
	for _, e := range m.GetExpireLastWills(clusterName, now) {
		expire[e.ClientID] = e
	}

	return Snapshot{
		ClusterName:              clusterName,
		Users:                    m.users.Snapshot(),
		Topics:                   m.topics.Snapshot(),
		Connectors:               m.connectors.Snapshot(),
		Brokers:                  m.brokers.Snapshot(),
		ExpireLastWills:          map[string]map[string]ExpireLastWill{clusterName: expire},
		ExclusiveSubscribe:       exclusive,
		ShareLeaderSubscribe:     shareLeader,
		ShareFollowerSubscribe:   shareFollower,
		ShareFollowerIdentifier:  shareFollowerIdentifier,
		ExclusivePushThread:      m.ExclusivePushThreadKeys(),
		ShareLeaderPushThread:    m.ShareLeaderPushThreadKeys(),
		ShareFollowerResubThread: m.ShareFollowerResubThreadKeys(),
	}
}

// stringSet is a mutex-guarded set of active push-task identifiers.
type stringSet struct {
	mu sync.RWMutex
	m  map[string]struct{}
}

func newStringSet() *stringSet { return &stringSet{m: make(map[string]struct{})} }

func (s *stringSet) Add(key string) {
	s.mu.Lock()
	s.m[key] = struct{}{}
	s.mu.Unlock()
}

func (s *stringSet) Remove(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

func (s *stringSet) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.m))
	for k := range s.m {
		out = append(out, k)
	}
	return out
}
