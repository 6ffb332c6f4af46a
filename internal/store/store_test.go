package store_test

import (
	"path/filepath"
	"testing"

	"github.com/robustmq/robustmq-go/internal/kv"
	"github.com/robustmq/robustmq-go/internal/metadata"
	"github.com/robustmq/robustmq-go/internal/store"
)

func newTestEngine(t *testing.T) *kv.Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	e, err := kv.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func TestUserSaveGetDelete(t *testing.T) {
	s := store.NewUserStore(newTestEngine(t))

	if _, ok, err := s.Get("c1", "alice"); err != nil || ok {
		t.Fatalf("expected absent, got ok=%v err=%v", ok, err)
	}

	u := metadata.User{Username: "alice", PasswordHash: "h1"}
	if err := s.Save("c1", "alice", u); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, ok, err := s.Get("c1", "alice")
	if err != nil || !ok || got.PasswordHash != "h1" {
		t.Fatalf("unexpected: %+v ok=%v err=%v", got, ok, err)
	}

	u2 := metadata.User{Username: "alice", PasswordHash: "h2"}
	if err := s.Save("c1", "alice", u2); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, _, _ = s.Get("c1", "alice")
	if got.PasswordHash != "h2" {
		t.Fatalf("expected h2 after overwrite, got %s", got.PasswordHash)
	}

	if err := s.Delete("c1", "alice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get("c1", "alice"); ok {
		t.Fatal("expected absent after delete")
	}
	if err := s.Delete("c1", "alice"); err != nil {
		t.Fatalf("re-delete should not error: %v", err)
	}
}

func TestListWithName(t *testing.T) {
	s := store.NewTopicStore(newTestEngine(t))
	if err := s.Save("c1", "tp1", metadata.Topic{TopicName: "tp1", TopicID: "id1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	name := "tp1"
	list, err := s.List("c1", &name)
	if err != nil || len(list) != 1 || list[0].TopicID != "id1" {
		t.Fatalf("unexpected list: %+v err=%v", list, err)
	}

	missing := "tp2"
	list, err = s.List("c1", &missing)
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list for missing name, got %+v err=%v", list, err)
	}
}

func TestListPrefixScanIsolatedPerCluster(t *testing.T) {
	s := store.NewTopicStore(newTestEngine(t))
	for i, name := range []string{"a", "b", "c"} {
		_ = i
		if err := s.Save("c1", name, metadata.Topic{TopicName: name}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := s.Save("c2", "a", metadata.Topic{TopicName: "a"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	list, err := s.List("c1", nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 topics in c1, got %d", len(list))
	}

	list, err = s.List("c2", nil)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected 1 topic in c2, got %d err=%v", len(list), err)
	}
}

// TestUserAndTopicPrefixIsolation matches spec scenario 6: saving a user
// "u1" and a topic "u1" under the same cluster must not cross-pollute.
func TestUserAndTopicPrefixIsolation(t *testing.T) {
	engine := newTestEngine(t)
	users := store.NewUserStore(engine)
	topics := store.NewTopicStore(engine)

	if err := users.Save("c1", "u1", metadata.User{Username: "u1"}); err != nil {
		t.Fatalf("Save user: %v", err)
	}
	if err := topics.Save("c1", "u1", metadata.Topic{TopicName: "u1"}); err != nil {
		t.Fatalf("Save topic: %v", err)
	}

	userList, err := users.List("c1", nil)
	if err != nil || len(userList) != 1 {
		t.Fatalf("expected exactly 1 user, got %d err=%v", len(userList), err)
	}
	topicList, err := topics.List("c1", nil)
	if err != nil || len(topicList) != 1 {
		t.Fatalf("expected exactly 1 topic, got %d err=%v", len(topicList), err)
	}
}

func TestScanWithEnvelopeOrdersByKey(t *testing.T) {
	s := store.NewTopicStore(newTestEngine(t))
	for _, name := range []string{"c", "a", "b"} {
		if err := s.Save("c1", name, metadata.Topic{TopicName: name}); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	recs, err := s.ScanWithEnvelope("c1")
	if err != nil {
		t.Fatalf("ScanWithEnvelope: %v", err)
	}
	if len(recs) != 3 || recs[0].Name != "a" || recs[1].Name != "b" || recs[2].Name != "c" {
		t.Fatalf("expected lexicographic order a,b,c, got %+v", recs)
	}
	for _, r := range recs {
		if r.CreateTime == 0 {
			t.Fatalf("expected nonzero create_time for %s", r.Name)
		}
	}
}

func TestLastWillDeleteIsIdempotent(t *testing.T) {
	s := store.NewLastWillStore(newTestEngine(t))
	if err := s.DeleteLastWillMessage("c1", "client-1"); err != nil {
		t.Fatalf("delete on empty store should not error: %v", err)
	}
	if err := s.Save("c1", "client-1", metadata.LastWill{ClientID: "client-1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.DeleteLastWillMessage("c1", "client-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteLastWillMessage("c1", "client-1"); err != nil {
		t.Fatalf("re-delete should not error: %v", err)
	}
}
