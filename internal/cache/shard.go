// Package cache implements the Broker's in-memory subscription & session
// cache (spec C5): a concurrent, process-local index of cluster metadata
// and subscription routing state. It is grounded on the teacher's Hub
// (internal/hub/hub.go) -- a single mutex-guarded map behind a small
// register/unregister API -- generalized into a fixed 16-way sharded map
// per spec §4.5's concurrency discipline: every mutation touches exactly
// one shard lock, never more than one at a time.
package cache

import (
	"hash/fnv"
	"sync"
)

const shardCount = 16

// shardFor picks a deterministic shard index for a string key.
func shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32()) % shardCount
}

// shardedMap is a fixed-shard-count concurrent map keyed by string, holding
// values of type V. Every operation locks exactly one shard.
type shardedMap[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu sync.RWMutex
	m  map[string]V
}

func newShardedMap[V any]() *shardedMap[V] {
	sm := &shardedMap[V]{}
	for i := range sm.shards {
		sm.shards[i].m = make(map[string]V)
	}
	return sm
}

func (sm *shardedMap[V]) shard(key string) *shard[V] {
	return &sm.shards[shardFor(key)]
}

func (sm *shardedMap[V]) Set(key string, v V) {
	s := sm.shard(key)
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

func (sm *shardedMap[V]) Delete(key string) {
	s := sm.shard(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

func (sm *shardedMap[V]) Get(key string) (V, bool) {
	s := sm.shard(key)
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok
}

// Len reports the total number of entries across all shards. Not a
// consistent-across-map snapshot -- matches spec §4.5 ("composite queries
// iterate with a consistent-per-key, not consistent-across-map, view").
func (sm *shardedMap[V]) Len() int {
	n := 0
	for i := range sm.shards {
		sm.shards[i].mu.RLock()
		n += len(sm.shards[i].m)
		sm.shards[i].mu.RUnlock()
	}
	return n
}

// Keys returns a snapshot of every key currently present. Each shard is
// read independently; the result is not a consistent-across-map view.
func (sm *shardedMap[V]) Keys() []string {
	var out []string
	for i := range sm.shards {
		sm.shards[i].mu.RLock()
		for k := range sm.shards[i].m {
			out = append(out, k)
		}
		sm.shards[i].mu.RUnlock()
	}
	return out
}

// Values returns a snapshot of every value currently present.
func (sm *shardedMap[V]) Values() []V {
	var out []V
	for i := range sm.shards {
		sm.shards[i].mu.RLock()
		for _, v := range sm.shards[i].m {
			out = append(out, v)
		}
		sm.shards[i].mu.RUnlock()
	}
	return out
}

// nestedMap is a two-level cluster -> (name -> V) index, the shape spec §9
// calls essential: O(1) cluster-scoped operations without locking unrelated
// clusters. The outer cluster index is a plain map behind a single RWMutex,
// held only to look up or create a cluster's entry; each cluster gets its
// own inner shardedMap.
type nestedMap[V any] struct {
	mu     sync.RWMutex
	byName map[string]*shardedMap[V]
}

func newNestedMap[V any]() *nestedMap[V] {
	return &nestedMap[V]{byName: make(map[string]*shardedMap[V])}
}

func (n *nestedMap[V]) clusterMap(cluster string, createIfMissing bool) *shardedMap[V] {
	n.mu.RLock()
	cm, ok := n.byName[cluster]
	n.mu.RUnlock()
	if ok {
		return cm
	}
	if !createIfMissing {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if cm, ok := n.byName[cluster]; ok {
		return cm
	}
	cm = newShardedMap[V]()
	n.byName[cluster] = cm
	return cm
}

func (n *nestedMap[V]) Set(cluster, name string, v V) {
	n.clusterMap(cluster, true).Set(name, v)
}

func (n *nestedMap[V]) Delete(cluster, name string) {
	cm := n.clusterMap(cluster, false)
	if cm == nil {
		return
	}
	cm.Delete(name)
}

func (n *nestedMap[V]) Get(cluster, name string) (V, bool) {
	cm := n.clusterMap(cluster, false)
	if cm == nil {
		var zero V
		return zero, false
	}
	return cm.Get(name)
}

func (n *nestedMap[V]) Values(cluster string) []V {
	cm := n.clusterMap(cluster, false)
	if cm == nil {
		return nil
	}
	return cm.Values()
}

func (n *nestedMap[V]) Names(cluster string) []string {
	cm := n.clusterMap(cluster, false)
	if cm == nil {
		return nil
	}
	return cm.Keys()
}

// Snapshot returns a shallow copy of the whole cluster->name->V structure,
// for the admin cache-info dump. Each per-cluster map is read independently.
func (n *nestedMap[V]) Snapshot() map[string]map[string]V {
	n.mu.RLock()
	clusters := make([]string, 0, len(n.byName))
	maps := make([]*shardedMap[V], 0, len(n.byName))
	for c, cm := range n.byName {
		clusters = append(clusters, c)
		maps = append(maps, cm)
	}
	n.mu.RUnlock()

	out := make(map[string]map[string]V, len(clusters))
	for i, c := range clusters {
		cm := maps[i]
		inner := make(map[string]V)
		for j := range cm.shards {
			cm.shards[j].mu.RLock()
			for k, v := range cm.shards[j].m {
				inner[k] = v
			}
			cm.shards[j].mu.RUnlock()
		}
		out[c] = inner
	}
	return out
}
