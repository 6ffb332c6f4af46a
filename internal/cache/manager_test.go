package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/robustmq/robustmq-go/internal/kv"
	"github.com/robustmq/robustmq-go/internal/metadata"
	"github.com/robustmq/robustmq-go/internal/store"
)

func TestAddRemoveTopic(t *testing.T) {
	m := NewManager()
	m.AddTopic("c1", metadata.Topic{TopicName: "tp1"})

	if _, ok := m.GetTopic("c1", "tp1"); !ok {
		t.Fatal("expected tp1 present after add")
	}

	m.RemoveTopic("c1", "tp1")
	names := topicNames(m.Topics("c1"))
	if contains(names, "tp1") {
		t.Fatalf("expected tp1 absent after remove, got %v", names)
	}

	// Removing a missing topic is a no-op.
	m.RemoveTopic("c1", "does-not-exist")
}

func TestRemoveUserOnlyAffectsUserMap(t *testing.T) {
	m := NewManager()
	m.AddTopic("c1", metadata.Topic{TopicName: "shared-name"})
	m.AddUser("c1", metadata.User{Username: "shared-name"})

	m.RemoveUser("c1", "shared-name")

	if _, ok := m.GetUser("c1", "shared-name"); ok {
		t.Fatal("expected user removed")
	}
	if _, ok := m.GetTopic("c1", "shared-name"); !ok {
		t.Fatal("RemoveUser must not remove the topic of the same name")
	}
}

func TestRemoveConnectorOnlyAffectsConnectorMap(t *testing.T) {
	m := NewManager()
	m.AddTopic("c1", metadata.Topic{TopicName: "shared-name"})
	m.AddConnector("c1", metadata.Connector{ConnectorName: "shared-name"})

	m.RemoveConnector("c1", "shared-name")

	if _, ok := m.GetConnector("c1", "shared-name"); ok {
		t.Fatal("expected connector removed")
	}
	if _, ok := m.GetTopic("c1", "shared-name"); !ok {
		t.Fatal("RemoveConnector must not remove the topic of the same name")
	}
}

func TestGetExpireLastWillsFiltersByDeadline(t *testing.T) {
	m := NewManager()
	m.AddExpireLastWill(ExpireLastWill{ClusterName: "c1", ClientID: "a", DelayUntilEpochSecs: 100})
	m.AddExpireLastWill(ExpireLastWill{ClusterName: "c1", ClientID: "b", DelayUntilEpochSecs: 200})

	due := m.GetExpireLastWills("c1", 150)
	if len(due) != 1 || due[0].ClientID != "a" {
		t.Fatalf("expected only 'a' due at t=150, got %+v", due)
	}

	due = m.GetExpireLastWills("c1", 200)
	if len(due) != 2 {
		t.Fatalf("expected both due at t=200 (>= comparison), got %+v", due)
	}
}

func TestWarmUpPopulatesTopicsAndUsers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	engine, err := kv.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	metaStore := store.NewMetadataStore(engine)

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("tp%d", i)
		if err := metaStore.Topics.Save("c", name, metadata.Topic{TopicName: name}); err != nil {
			t.Fatalf("Save topic: %v", err)
		}
		uname := fmt.Sprintf("user%d", i)
		if err := metaStore.Users.Save("c", uname, metadata.User{Username: uname}); err != nil {
			t.Fatalf("Save user: %v", err)
		}
	}

	m := NewManager()
	m.RegisterCluster("c", mqttBrokerServerType)
	m.RegisterCluster("other", "SomeOtherType")
	if err := m.WarmUp(context.Background(), metaStore); err != nil {
		t.Fatalf("WarmUp: %v", err)
	}

	if got := len(m.Topics("c")); got != 5 {
		t.Fatalf("expected 5 topics, got %d", got)
	}
	if got := len(m.Users("c")); got != 5 {
		t.Fatalf("expected 5 users, got %d", got)
	}
	for i := 0; i < 5; i++ {
		if _, ok := m.GetTopic("c", fmt.Sprintf("tp%d", i)); !ok {
			t.Fatalf("missing topic tp%d after warm-up", i)
		}
		if _, ok := m.GetUser("c", fmt.Sprintf("user%d", i)); !ok {
			t.Fatalf("missing user user%d after warm-up", i)
		}
	}
}

func TestRegisterUnregisterBroker(t *testing.T) {
	m := NewManager()
	m.RegisterBroker("c1", 1, "broker-1:1883")
	m.RegisterBroker("c1", 2, "broker-2:1883")

	members := m.BrokerMembers("c1")
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %+v", members)
	}
	if addr, ok := m.BrokerAddress("c1", 1); !ok || addr != "broker-1:1883" {
		t.Fatalf("expected broker 1 address, got %q, ok=%v", addr, ok)
	}

	m.UnregisterBroker("c1", 1)
	members = m.BrokerMembers("c1")
	if len(members) != 1 || members[0] != 2 {
		t.Fatalf("expected only broker 2 to remain, got %+v", members)
	}
	if _, ok := m.BrokerAddress("c1", 1); ok {
		t.Fatal("expected broker 1 address gone after unregister")
	}

	// Unregistering an absent broker is a no-op.
	m.UnregisterBroker("c1", 99)
}

func TestConcurrentShardAccess(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("tp%d", i)
			m.AddTopic("c1", metadata.Topic{TopicName: name})
			m.GetTopic("c1", name)
			m.RemoveTopic("c1", name)
		}(i)
	}
	wg.Wait()
}

func topicNames(topics []metadata.Topic) []string {
	out := make([]string, len(topics))
	for i, t := range topics {
		out[i] = t.TopicName
	}
	return out
}

func contains(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
