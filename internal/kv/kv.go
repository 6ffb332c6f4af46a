// Package kv adapts a bbolt database into the ordered, byte-keyed,
// column-family store the placement center's metadata layer is built on.
// Column families are modeled as top-level buckets; a bbolt read or write
// transaction gives each operation snapshot isolation and per-key atomicity
// for free.
package kv

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Column families used by the core. Callers must stick to these names --
// Open creates exactly this set and nothing else.
const (
	CFMqtt    = "mqtt"
	CFCluster = "cluster"
	CFJournal = "journal"
)

var columnFamilies = []string{CFMqtt, CFCluster, CFJournal}

// Engine is a shared, reference-counted-by-convention handle onto a bbolt
// database. It is safe for concurrent use by multiple goroutines; bbolt
// serializes writers internally and readers run against MVCC snapshots.
type Engine struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path and ensures
// every column family bucket exists.
func Open(path string) (*Engine, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("kv: open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, cf := range columnFamilies {
			if _, err := tx.CreateBucketIfNotExists([]byte(cf)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("kv: init column families: %w", err)
	}
	return &Engine{db: db}, nil
}

// Close releases the underlying database file.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Put writes value under key in the given column family. Atomic per key.
func (e *Engine) Put(cf string, key, value []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		return b.Put(key, value)
	})
}

// Get returns the value stored under key, or ok=false if absent.
func (e *Engine) Get(cf string, key []byte) (value []byte, ok bool, err error) {
	err = e.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		v := b.Get(key)
		if v != nil {
			value = append([]byte(nil), v...)
			ok = true
		}
		return nil
	})
	return value, ok, err
}

// Delete removes key from the given column family. Deleting a missing key
// is not an error.
func (e *Engine) Delete(cf string, key []byte) error {
	return e.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(cf))
		return b.Delete(key)
	})
}

// Cursor is a read-only, snapshot-isolated iterator over one column family.
// It owns the bbolt transaction it was created from and must be closed with
// Release once the caller is done scanning.
type Cursor struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	key     []byte
	value   []byte
	atStart bool
}

// Iter opens a new read-only cursor over cf. Callers must call Release.
func (e *Engine) Iter(cf string) (*Cursor, error) {
	tx, err := e.db.Begin(false)
	if err != nil {
		return nil, err
	}
	b := tx.Bucket([]byte(cf))
	return &Cursor{tx: tx, cursor: b.Cursor()}, nil
}

// Seek positions the cursor at the first key greater than or equal to
// prefix. After Seek, Valid/Key/Value reflect that position.
func (c *Cursor) Seek(prefix []byte) {
	c.key, c.value = c.cursor.Seek(prefix)
}

// Valid reports whether the cursor currently points at a key.
func (c *Cursor) Valid() bool {
	return c.key != nil
}

// Key returns the key at the current cursor position. Only valid while
// Valid() is true; copies are not required to outlive the cursor.
func (c *Cursor) Key() []byte {
	return c.key
}

// Value returns the value at the current cursor position.
func (c *Cursor) Value() []byte {
	return c.value
}

// Next advances the cursor. After Next, Valid/Key/Value reflect the new
// position; Valid() becomes false once iteration runs past the bucket.
func (c *Cursor) Next() {
	c.key, c.value = c.cursor.Next()
}

// Release closes the cursor's underlying transaction. Safe to call once.
func (c *Cursor) Release() error {
	return c.tx.Rollback()
}
