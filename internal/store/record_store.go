// Package store implements the Placement Center's typed CRUD metadata layer
// (spec C3) over internal/kv and internal/metadata: one RecordStore per
// domain type, each save/get/delete/list operation translating to exactly
// one kv operation or prefix scan.
package store

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"github.com/robustmq/robustmq-go/internal/kv"
	"github.com/robustmq/robustmq-go/internal/metadata"
)

// StorageError wraps an underlying KV engine failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// keyFunc builds the storage key for a record given its cluster and name.
type keyFunc func(cluster, name string) []byte

// prefixFunc builds the cluster-scoped scan prefix for a record kind.
type prefixFunc func(cluster string) []byte

// RecordStore is a typed CRUD store for one domain record type T, backed by
// a single column family in the KV engine. Save is not read-modify-write:
// callers that need to mutate-then-save (e.g. the expiration sweeper) must
// read, modify, and save explicitly.
type RecordStore[T any] struct {
	engine *kv.Engine
	cf     string
	key    keyFunc
	prefix prefixFunc
	codec  metadata.Codec[T]
}

func newRecordStore[T any](engine *kv.Engine, cf string, key keyFunc, prefix prefixFunc, codec metadata.Codec[T]) *RecordStore[T] {
	return &RecordStore[T]{engine: engine, cf: cf, key: key, prefix: prefix, codec: codec}
}

// Save encodes payload into an envelope and writes it with a single put.
func (s *RecordStore[T]) Save(cluster, name string, payload T) error {
	data, err := s.codec.Encode(payload)
	if err != nil {
		return err
	}
	raw, err := metadata.WrapEnvelope(data, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := s.engine.Put(s.cf, s.key(cluster, name), raw); err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	return nil
}

// Get returns the decoded record for (cluster, name), or ok=false if absent.
// Decode failures propagate (this is a single-key read).
func (s *RecordStore[T]) Get(cluster, name string) (value T, ok bool, err error) {
	raw, found, err := s.engine.Get(s.cf, s.key(cluster, name))
	if err != nil {
		return value, false, &StorageError{Op: "get", Err: err}
	}
	if !found {
		return value, false, nil
	}
	env, err := metadata.UnwrapEnvelope(raw)
	if err != nil {
		return value, false, err
	}
	v, err := s.codec.Decode(env.Data)
	if err != nil {
		return value, false, err
	}
	return v, true, nil
}

// Delete removes (cluster, name). Re-deleting an absent key is not an error.
func (s *RecordStore[T]) Delete(cluster, name string) error {
	if err := s.engine.Delete(s.cf, s.key(cluster, name)); err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	return nil
}

// EnvelopeRecord pairs a decoded record with its persisted envelope's
// create_time, the timestamp the expiration sweeper reasons about.
type EnvelopeRecord[T any] struct {
	Name       string
	Value      T
	CreateTime int64
}

// ScanWithEnvelope walks the cluster's prefix in key order, yielding each
// decoded record alongside its envelope create_time. Malformed entries are
// logged and skipped. This is the primitive the expiration sweeper (C4)
// uses instead of List, since it needs create_time to evaluate expiry.
func (s *RecordStore[T]) ScanWithEnvelope(cluster string) ([]EnvelopeRecord[T], error) {
	prefix := s.prefix(cluster)
	cur, err := s.engine.Iter(s.cf)
	if err != nil {
		return nil, &StorageError{Op: "scan", Err: err}
	}
	defer cur.Release()

	var out []EnvelopeRecord[T]
	for cur.Seek(prefix); cur.Valid(); cur.Next() {
		if !bytes.HasPrefix(cur.Key(), prefix) {
			break
		}
		key := cur.Key()
		env, err := metadata.UnwrapEnvelope(cur.Value())
		if err != nil {
			slog.Warn("store: skipping malformed envelope", "key", string(key), "error", err)
			continue
		}
		v, err := s.codec.Decode(env.Data)
		if err != nil {
			slog.Warn("store: skipping malformed payload", "key", string(key), "error", err)
			continue
		}
		name := recordNameFromKey(key, prefix)
		out = append(out, EnvelopeRecord[T]{Name: name, Value: v, CreateTime: env.CreateTime})
	}
	return out, nil
}

// recordNameFromKey strips the cluster-scoped prefix to recover the bare
// record name (username, topic name, client id, ...).
func recordNameFromKey(key, prefix []byte) string {
	return string(key[len(prefix):])
}

// List returns every record under the cluster's prefix in key order, or --
// when name is non-nil -- a single-element (or empty) slice for that exact
// key. Malformed entries encountered during a prefix scan are logged and
// skipped rather than aborting the scan.
func (s *RecordStore[T]) List(cluster string, name *string) ([]T, error) {
	if name != nil {
		v, ok, err := s.Get(cluster, *name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		return []T{v}, nil
	}

	prefix := s.prefix(cluster)
	cur, err := s.engine.Iter(s.cf)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer cur.Release()

	var out []T
	for cur.Seek(prefix); cur.Valid(); cur.Next() {
		if !bytes.HasPrefix(cur.Key(), prefix) {
			break
		}
		env, err := metadata.UnwrapEnvelope(cur.Value())
		if err != nil {
			slog.Warn("store: skipping malformed envelope", "key", string(cur.Key()), "error", err)
			continue
		}
		v, err := s.codec.Decode(env.Data)
		if err != nil {
			slog.Warn("store: skipping malformed payload", "key", string(cur.Key()), "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
