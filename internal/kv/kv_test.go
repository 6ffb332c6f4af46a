package kv_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/robustmq/robustmq-go/internal/kv"
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

func TestPutGetDelete(t *testing.T) {
	e := newTestEngine(t)

	if _, ok, err := e.Get(kv.CFMqtt, []byte("a")); err != nil || ok {
		t.Fatalf("expected absent key, got ok=%v err=%v", ok, err)
	}

	if err := e.Put(kv.CFMqtt, []byte("a"), []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := e.Get(kv.CFMqtt, []byte("a"))
	if err != nil || !ok || string(v) != "v1" {
		t.Fatalf("expected v1, got %q ok=%v err=%v", v, ok, err)
	}

	if err := e.Put(kv.CFMqtt, []byte("a"), []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	v, ok, err = e.Get(kv.CFMqtt, []byte("a"))
	if err != nil || !ok || string(v) != "v2" {
		t.Fatalf("expected v2 after overwrite, got %q ok=%v err=%v", v, ok, err)
	}

	if err := e.Delete(kv.CFMqtt, []byte("a")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, err := e.Get(kv.CFMqtt, []byte("a")); err != nil || ok {
		t.Fatalf("expected absent after delete, got ok=%v err=%v", ok, err)
	}

	// Re-delete is not an error.
	if err := e.Delete(kv.CFMqtt, []byte("a")); err != nil {
		t.Fatalf("re-delete should not error: %v", err)
	}
}

func TestColumnFamiliesAreIsolated(t *testing.T) {
	e := newTestEngine(t)

	if err := e.Put(kv.CFMqtt, []byte("k"), []byte("mqtt-val")); err != nil {
		t.Fatalf("Put mqtt: %v", err)
	}
	if err := e.Put(kv.CFCluster, []byte("k"), []byte("cluster-val")); err != nil {
		t.Fatalf("Put cluster: %v", err)
	}

	v, _, _ := e.Get(kv.CFMqtt, []byte("k"))
	if string(v) != "mqtt-val" {
		t.Fatalf("expected mqtt-val, got %q", v)
	}
	v, _, _ = e.Get(kv.CFCluster, []byte("k"))
	if string(v) != "cluster-val" {
		t.Fatalf("expected cluster-val, got %q", v)
	}
}

func TestCursorPrefixScan(t *testing.T) {
	e := newTestEngine(t)

	keys := []string{
		"mqtt/c1/topic/a",
		"mqtt/c1/topic/b",
		"mqtt/c1/topic/c",
		"mqtt/c1/user/a", // different prefix, must not appear in the topic scan
		"mqtt/c2/topic/a",
	}
	for _, k := range keys {
		if err := e.Put(kv.CFMqtt, []byte(k), []byte("v")); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}

	cur, err := e.Iter(kv.CFMqtt)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	defer cur.Release()

	prefix := []byte("mqtt/c1/topic/")
	var got []string
	for cur.Seek(prefix); cur.Valid(); cur.Next() {
		if !bytes.HasPrefix(cur.Key(), prefix) {
			break
		}
		got = append(got, string(cur.Key()))
	}

	want := []string{"mqtt/c1/topic/a", "mqtt/c1/topic/b", "mqtt/c1/topic/c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d]=%s want %s", i, got[i], want[i])
		}
	}
}

func TestEmptyPrefixScanTerminates(t *testing.T) {
	e := newTestEngine(t)
	cur, err := e.Iter(kv.CFMqtt)
	if err != nil {
		t.Fatalf("Iter: %v", err)
	}
	defer cur.Release()

	count := 0
	for cur.Seek([]byte("mqtt/empty-cluster/topic/")); cur.Valid(); cur.Next() {
		if !bytes.HasPrefix(cur.Key(), []byte("mqtt/empty-cluster/topic/")) {
			break
		}
		count++
	}
	if count != 0 {
		t.Fatalf("expected 0 entries, got %d", count)
	}
}
