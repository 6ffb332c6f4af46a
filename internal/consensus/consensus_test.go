package consensus_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/robustmq/robustmq-go/internal/consensus"
	"github.com/robustmq/robustmq-go/internal/kv"
	"github.com/robustmq/robustmq-go/internal/metadata"
	"github.com/robustmq/robustmq-go/internal/store"
)

func newTestApplier(t *testing.T) (*consensus.Applier, *store.MetadataStore) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	engine, err := kv.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { engine.Close() })
	metaStore := store.NewMetadataStore(engine)
	return consensus.NewApplier(metaStore), metaStore
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return b
}

func TestApplyCreateAndDeleteUser(t *testing.T) {
	applier, metaStore := newTestApplier(t)

	payload := mustMarshal(t, consensus.CreateUserRequest{
		ClusterName: "c1",
		User:        metadata.User{Username: "alice", PasswordHash: "hash"},
	})
	if err := applier.Apply(consensus.StorageData{Type: consensus.MQTTCreateUser, Payload: payload}, "create_user"); err != nil {
		t.Fatalf("Apply create_user: %v", err)
	}

	got, ok, err := metaStore.Users.Get("c1", "alice")
	if err != nil || !ok {
		t.Fatalf("expected alice present, err=%v ok=%v", err, ok)
	}
	if got.PasswordHash != "hash" {
		t.Fatalf("unexpected user record: %+v", got)
	}

	delPayload := mustMarshal(t, consensus.DeleteUserRequest{ClusterName: "c1", Username: "alice"})
	if err := applier.Apply(consensus.StorageData{Type: consensus.MQTTDeleteUser, Payload: delPayload}, "delete_user"); err != nil {
		t.Fatalf("Apply delete_user: %v", err)
	}
	if _, ok, _ := metaStore.Users.Get("c1", "alice"); ok {
		t.Fatal("expected alice removed")
	}
}

func TestApplySetTopicRetainMessage(t *testing.T) {
	applier, metaStore := newTestApplier(t)
	if err := metaStore.Topics.Save("c1", "t1", metadata.Topic{TopicName: "t1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	expiry := int64(60)
	payload := mustMarshal(t, consensus.SetTopicRetainMessageRequest{
		ClusterName: "c1",
		TopicName:   "t1",
		RetainMsg:   []byte("hello"),
		ExpiredSecs: &expiry,
	})
	if err := applier.Apply(consensus.StorageData{Type: consensus.MQTTSetTopicRetainMessage, Payload: payload}, "set_retain_message"); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	got, ok, err := metaStore.Topics.Get("c1", "t1")
	if err != nil || !ok {
		t.Fatalf("expected topic present, err=%v ok=%v", err, ok)
	}
	if string(got.RetainMessage) != "hello" || got.RetainMessageExpiredAt == nil || *got.RetainMessageExpiredAt != 60 {
		t.Fatalf("unexpected topic record: %+v", got)
	}
}

func TestApplySetTopicRetainMessageUnknownTopicFails(t *testing.T) {
	applier, _ := newTestApplier(t)
	payload := mustMarshal(t, consensus.SetTopicRetainMessageRequest{ClusterName: "c1", TopicName: "missing"})
	err := applier.Apply(consensus.StorageData{Type: consensus.MQTTSetTopicRetainMessage, Payload: payload}, "set_retain_message")
	if err == nil {
		t.Fatal("expected error for unknown topic")
	}
	var cerr *consensus.Error
	if !asConsensusError(err, &cerr) {
		t.Fatalf("expected *consensus.Error, got %T", err)
	}
	if cerr.Label != "set_retain_message" {
		t.Fatalf("unexpected label: %s", cerr.Label)
	}
}

func TestApplyUnknownStorageDataType(t *testing.T) {
	applier, _ := newTestApplier(t)
	err := applier.Apply(consensus.StorageData{Type: consensus.StorageDataType(999), Payload: []byte("{}")}, "op")
	if err == nil {
		t.Fatal("expected error for unknown storage data type")
	}
}

func TestApplySaveAndDeleteLastWill(t *testing.T) {
	applier, metaStore := newTestApplier(t)

	payload := mustMarshal(t, consensus.SaveLastWillRequest{
		ClusterName: "c1",
		LastWill:    metadata.LastWill{ClientID: "cid1", WillPayload: []byte("bye")},
	})
	if err := applier.Apply(consensus.StorageData{Type: consensus.MQTTSaveLastWill, Payload: payload}, "save_last_will"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok, _ := metaStore.LastWills.Get("c1", "cid1"); !ok {
		t.Fatal("expected last will present")
	}

	delPayload := mustMarshal(t, consensus.DeleteLastWillRequest{ClusterName: "c1", ClientID: "cid1"})
	if err := applier.Apply(consensus.StorageData{Type: consensus.MQTTDeleteLastWill, Payload: delPayload}, "delete_last_will"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, ok, _ := metaStore.LastWills.Get("c1", "cid1"); ok {
		t.Fatal("expected last will removed")
	}
}

func asConsensusError(err error, target **consensus.Error) bool {
	ce, ok := err.(*consensus.Error)
	if ok {
		*target = ce
	}
	return ok
}
