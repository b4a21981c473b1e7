// Package store implements the server's keyspace: an open-addressed hash
// table with linear probing, FNV-1a hashing over the key, fixed capacity,
// and lazy per-entry expiry on read. It follows the shape of a small,
// explicit storage type with no locking beyond what its concurrency model
// needs, adapted from a byte-offset-addressed RAM disk to a key-addressed
// map; the server's single-threaded event loop means no locking is needed
// at all here.
package store

import (
	"errors"
	"hash/fnv"
)

// ErrCapacityExceeded is returned by Set when every slot is occupied by a
// live (non-tombstone) entry and key is not already present.
var ErrCapacityExceeded = errors.New("store: capacity exceeded")

// Clock abstracts "now" in milliseconds so tests can control expiry without
// sleeping.
type Clock func() uint64

type slotState uint8

const (
	slotEmpty slotState = iota
	slotOccupied
	slotTombstone
)

type slot struct {
	state    slotState
	key      []byte
	value    []byte
	expiryMs uint64 // 0 means no expiry
}

// Keyspace is the fixed-capacity open-addressed hash table holding the
// server's entire keyspace: a single logical namespace of keys to values.
type Keyspace struct {
	slots []slot
	count int // live (occupied, non-expired-lazily) entries; tombstones excluded
	now   Clock
}

// New creates a Keyspace with the given fixed capacity. now is called to
// obtain the current time in milliseconds for expiry comparisons.
func New(capacity int, now Clock) *Keyspace {
	return &Keyspace{
		slots: make([]slot, capacity),
		now:   now,
	}
}

func fnv1a(key []byte) uint64 {
	h := fnv.New64a()
	h.Write(key)
	return h.Sum64()
}

// probe returns the slot index a key currently occupies (ok=true), or the
// first empty-or-tombstone slot suitable for insertion (ok=false), walking
// linearly from the key's hashed home slot. It never returns ok=false with a
// -1 index unless the table is entirely full of live entries.
func (k *Keyspace) probe(key []byte) (idx int, ok bool) {
	n := len(k.slots)
	home := int(fnv1a(key) % uint64(n))
	firstFree := -1
	for i := 0; i < n; i++ {
		pos := (home + i) % n
		s := &k.slots[pos]
		switch s.state {
		case slotEmpty:
			if firstFree == -1 {
				firstFree = pos
			}
			return firstFree, false
		case slotTombstone:
			if firstFree == -1 {
				firstFree = pos
			}
		case slotOccupied:
			if string(s.key) == string(key) {
				return pos, true
			}
		}
	}
	return firstFree, false
}

// Get returns the value for key, or (nil, false) if absent or lazily
// expired. An expired entry is deleted as a side effect.
func (k *Keyspace) Get(key []byte) ([]byte, bool) {
	idx, ok := k.probe(key)
	if !ok {
		return nil, false
	}
	s := &k.slots[idx]
	if s.expiryMs != 0 && s.expiryMs < k.now() {
		k.deleteSlot(idx)
		return nil, false
	}
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out, true
}

// Set inserts or updates key with value. relativeExpiryMs > 0 stores an
// absolute deadline now()+relativeExpiryMs; 0 (or less) means no expiry.
// Returns ErrCapacityExceeded if key is new and every slot holds a live
// entry.
func (k *Keyspace) Set(key, value []byte, relativeExpiryMs int64) error {
	idx, existing := k.probe(key)
	if !existing {
		if idx == -1 {
			return ErrCapacityExceeded
		}
		k.count++
	}
	var expiry uint64
	if relativeExpiryMs > 0 {
		expiry = k.now() + uint64(relativeExpiryMs)
	}
	keyCopy := append([]byte(nil), key...)
	valCopy := append([]byte(nil), value...)
	k.slots[idx] = slot{state: slotOccupied, key: keyCopy, value: valCopy, expiryMs: expiry}
	return nil
}

// Del removes key if present, returning whether it was present. Lazily
// expired entries are treated as absent (and are cleaned up as a side
// effect), matching Get's semantics.
func (k *Keyspace) Del(key []byte) bool {
	idx, ok := k.probe(key)
	if !ok {
		return false
	}
	s := &k.slots[idx]
	if s.expiryMs != 0 && s.expiryMs < k.now() {
		k.deleteSlot(idx)
		return false
	}
	k.deleteSlot(idx)
	return true
}

func (k *Keyspace) deleteSlot(idx int) {
	k.slots[idx] = slot{state: slotTombstone}
	k.count--
}

// Keys returns all non-expired keys in arbitrary order. Expired entries
// encountered during the scan are deleted as a side effect, same as Get.
func (k *Keyspace) Keys() [][]byte {
	now := k.now()
	out := make([][]byte, 0, k.count)
	for i := range k.slots {
		s := &k.slots[i]
		if s.state != slotOccupied {
			continue
		}
		if s.expiryMs != 0 && s.expiryMs < now {
			k.deleteSlot(i)
			continue
		}
		keyCopy := append([]byte(nil), s.key...)
		out = append(out, keyCopy)
	}
	return out
}

// Len returns the number of live entries, without triggering lazy expiry.
// Intended for diagnostics/metrics, not for correctness-sensitive logic.
func (k *Keyspace) Len() int {
	return k.count
}

// Capacity returns the fixed number of slots in the table.
func (k *Keyspace) Capacity() int {
	return len(k.slots)
}
