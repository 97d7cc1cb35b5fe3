// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// package linkedhash is a Go implementation of a separately chained hash
// table that iterates in insertion order and hands out references to its
// entries which remain valid while other entries are inserted and deleted.
//
// # Layout
//
// Every entry is an individually allocated node. The nodes are threaded
// through a single "chain" list in which all of the entries that hash to the
// same bucket occupy a contiguous run. The bucket index is an array with one
// slot per bucket recording the first entry of the bucket's run and the
// length of the run:
//
//	buckets:  [0]{first=c count=2}  [1]{first=nil count=0}  [2]{first=b count=1}
//	                 |                                             |
//	chain:    root <-> c <-> a <---------------------------------> b <-> root
//
// A lookup hashes the key, selects bucket hash(key)%capacity and inspects
// exactly count entries starting at first. Because runs are contiguous the
// walk never leaves the bucket.
//
// Contiguity is maintained without ever moving a node: an insertion into a
// non-empty bucket links the new node immediately before the bucket's first
// entry and makes it the new first entry, and an insertion into an empty
// bucket appends the node to the end of the chain. A deletion of a bucket's
// first entry advances first to the entry's successor in the chain, which is
// necessarily a member of the same bucket if the bucket is not now empty.
//
// Since new entries are placed in front of their bucket's run, the chain is
// not in insertion order once two keys share a bucket. Each node is
// therefore also a member of a second "order" list to which it is appended
// on insertion, and all iteration follows the order list.
//
// # Growth
//
// A Map starts with a single bucket. Before an insertion that would make
// used+1 >= 2*capacity true, the capacity is doubled and the chain is rebuilt
// by relinking every node, in iteration order, through the ordinary
// placement path. Nodes are relinked rather than copied so that growth does
// not invalidate outstanding *Entry references, and the order list is not
// touched so that growth does not change iteration order. Capacity never
// shrinks except through Clear, which returns the Map to a single bucket.
package linkedhash

import (
	"fmt"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// bucket records the run of entries in the chain list which hash to the
// same index. first is nil when count is 0.
type bucket[K comparable, V any] struct {
	first *Entry[K, V]
	count int
}

// Pair is a key and value used to construct a Map from a literal list.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is an insertion ordered map from keys to values with Find, Insert,
// Delete, At and All operations. By default, a Map[K,V] uses the same hash
// function as Go's builtin map[K]V, though a different hash function can be
// specified using the WithHash option.
//
// A Map is NOT goroutine-safe. A Map must not be copied; use Clone or
// CopyFrom.
type Map[K comparable, V any] struct {
	hash HashFunc[K]
	// The allocator to use for entries.
	allocator Allocator[K, V]
	logger    *zap.Logger
	// buckets is the bucket index. The capacity of the map is len(buckets)
	// and is always >= 1 for a usable map.
	buckets []bucket[K, V]
	// chain holds the entries grouped by bucket.
	chain list[K, V]
	// order holds the same entries in insertion order.
	order list[K, V]
	// The number of entries in the map.
	used int
}

// New constructs a new, empty Map with a capacity of 1. The zero value for a
// Map is not usable.
func New[K comparable, V any](options ...option[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		hash:      defaultHasher[K](),
		allocator: defaultAllocator[K, V]{},
		logger:    zap.NewNop(),
	}

	for _, op := range options {
		op.apply(m)
	}

	m.reset()
	m.checkInvariants()
	return m
}

// NewFromSeq constructs a Map holding the pairs yielded by seq, inserted in
// the order they are yielded. As with Insert, only the first occurrence of a
// key is retained. A seq such as maps.All or slices.All may be used
// directly.
func NewFromSeq[K comparable, V any](seq iter.Seq2[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](options...)
	seq(func(key K, value V) bool {
		m.Insert(key, value)
		return true
	})
	return m
}

// NewFromPairs constructs a Map holding pairs, inserted in order.
func NewFromPairs[K comparable, V any](pairs []Pair[K, V], options ...option[K, V]) *Map[K, V] {
	m := New[K, V](options...)
	for i := range pairs {
		m.Insert(pairs[i].Key, pairs[i].Value)
	}
	return m
}

// Clone returns an independent copy of the map holding the same entries in
// the same order and using the same hash function, allocator and logger.
func (m *Map[K, V]) Clone() *Map[K, V] {
	c := &Map[K, V]{
		hash:      m.hash,
		allocator: m.allocator,
		logger:    m.logger,
	}
	c.reset()
	c.insertAll(m)
	c.checkInvariants()
	return c
}

// CopyFrom replaces the contents of m with copies of the entries of src, in
// src's iteration order, and adopts src's hash function. It is a noop if m
// and src are the same Map.
func (m *Map[K, V]) CopyFrom(src *Map[K, V]) {
	if m == src {
		return
	}
	m.hash = src.hash
	m.Clear()
	m.insertAll(src)
	m.checkInvariants()
}

// Close releases every entry back to the configured allocator. It is
// unnecessary to close a map using the default allocator. It is invalid to
// use a Map after it has been closed, though Close itself is idempotent.
func (m *Map[K, V]) Close() {
	m.release()
	m.buckets = nil
	m.allocator = nil
}

// Len returns the number of entries in the map.
func (m *Map[K, V]) Len() int {
	return m.used
}

// Empty returns true if the map holds no entries.
func (m *Map[K, V]) Empty() bool {
	return m.used == 0
}

// HashFunc returns the hash function used by the map.
func (m *Map[K, V]) HashFunc() HashFunc[K] {
	return m.hash
}

// Find returns the entry for key, or nil if key is not present.
func (m *Map[K, V]) Find(key K) *Entry[K, V] {
	return m.find(key, m.hash(&key))
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[K, V]) Get(key K) (value V, ok bool) {
	if e := m.find(key, m.hash(&key)); e != nil {
		return e.Value, true
	}
	return value, false
}

// At returns the value for key. If key is not present an error wrapping
// ErrKeyNotFound is returned and the map is left unmodified.
func (m *Map[K, V]) At(key K) (V, error) {
	if e := m.find(key, m.hash(&key)); e != nil {
		return e.Value, nil
	}
	var zero V
	return zero, errors.Wrapf(ErrKeyNotFound, "%v", key)
}

// Insert inserts an entry for key if one is not already present and returns
// it. If the key is already present the existing entry is returned and its
// value is NOT overwritten.
func (m *Map[K, V]) Insert(key K, value V) *Entry[K, V] {
	h := m.hash(&key)
	if e := m.find(key, h); e != nil {
		return e
	}

	// Grow before placing the new entry so that it is placed using the new
	// bucket layout.
	if m.used+1 >= 2*len(m.buckets) {
		m.rehash(2 * len(m.buckets))
	}

	e := m.allocator.AllocEntry()
	e.key = key
	e.Value = value
	m.link(e, h)
	m.order.pushBack(e)
	m.checkInvariants()
	return e
}

// Ref returns a pointer to the value for key, inserting an entry holding the
// zero value if key is not present. The pointer remains valid until key is
// deleted.
func (m *Map[K, V]) Ref(key K) *V {
	var zero V
	return &m.Insert(key, zero).Value
}

// Delete deletes the entry corresponding to the specified key from the map.
// It is a noop to delete a non-existent key. Any *Entry or value pointer for
// the deleted key must not be used afterwards; references to other entries
// are unaffected.
func (m *Map[K, V]) Delete(key K) {
	h := m.hash(&key)
	e := m.find(key, h)
	if e == nil {
		return
	}

	// A successful find guarantees b.count >= 1.
	b := m.bucket(h)
	b.count--
	if b.count == 0 {
		b.first = nil
	} else if b.first == e {
		b.first = e.chain.next
	}
	m.used--
	m.chain.remove(e)
	m.order.remove(e)
	m.allocator.FreeEntry(e)
	m.checkInvariants()
}

// Clear deletes all entries from the map, returning it to the state of a
// newly constructed Map with a capacity of 1.
func (m *Map[K, V]) Clear() {
	if ce := m.logger.Check(zap.DebugLevel, "clear"); ce != nil {
		ce.Write(zap.Int("entries", m.used), zap.Int("capacity", len(m.buckets)))
	}
	m.release()
	m.reset()
	m.checkInvariants()
}

// Front returns the first entry in iteration order, or nil if the map is
// empty.
func (m *Map[K, V]) Front() *Entry[K, V] {
	return m.order.front()
}

// Back returns the last entry in iteration order, or nil if the map is
// empty.
func (m *Map[K, V]) Back() *Entry[K, V] {
	return m.order.back()
}

// All calls yield sequentially for each key and value present in the map,
// in insertion order. If yield returns false, iteration stops. Entries
// deleted by yield are never visited afterwards, and entries inserted
// during iteration are visited. If yield deletes both the entry being
// visited and its successor, or clears the map, iteration stops.
//
// All conforms to the range-over-function iterator form:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
func (m *Map[K, V]) All(yield func(key K, value V) bool) {
	m.Entries(func(e *Entry[K, V]) bool {
		return yield(e.key, e.Value)
	})
}

// Entries calls yield sequentially for each entry in the map, in insertion
// order. It provides mutable access to values. The same rules as All apply
// to mutation during iteration.
func (m *Map[K, V]) Entries(yield func(e *Entry[K, V]) bool) {
	for e := m.order.front(); e != nil; {
		// Capture the successor before yielding so that yield may delete e.
		next := e.Next()
		if !yield(e) {
			return
		}
		if e.list != nil {
			// e is still linked, so its current successor reflects any
			// entries yield deleted or appended.
			next = e.Next()
		} else if next != nil && next.list == nil {
			// yield deleted both e and its successor, or cleared the map.
			// There is no live entry to resume from.
			return
		}
		e = next
	}
}

// Keys calls yield sequentially for each key in the map, in insertion order.
func (m *Map[K, V]) Keys(yield func(key K) bool) {
	m.Entries(func(e *Entry[K, V]) bool {
		return yield(e.key)
	})
}

// Values calls yield sequentially for each value in the map, in insertion
// order.
func (m *Map[K, V]) Values(yield func(value V) bool) {
	m.Entries(func(e *Entry[K, V]) bool {
		return yield(e.Value)
	})
}

// capacity returns the number of buckets.
func (m *Map[K, V]) capacity() int {
	return len(m.buckets)
}

// bucket returns the bucket corresponding to hash value h.
func (m *Map[K, V]) bucket(h uint64) *bucket[K, V] {
	return &m.buckets[h%uint64(len(m.buckets))]
}

func (m *Map[K, V]) find(key K, h uint64) *Entry[K, V] {
	b := m.bucket(h)
	e := b.first
	for i := 0; i < b.count; i++ {
		if e.key == key {
			return e
		}
		e = e.chain.next
	}
	return nil
}

// link places an entry known not to be in the map into the chain list and
// the bucket index. The caller is responsible for the order list.
func (m *Map[K, V]) link(e *Entry[K, V], h uint64) {
	b := m.bucket(h)
	if b.count > 0 {
		m.chain.insertBefore(e, b.first)
	} else {
		m.chain.pushBack(e)
	}
	b.first = e
	b.count++
	m.used++
}

// rehash resets the bucket index to newCapacity empty buckets and relinks
// every entry, in iteration order, into the chain list.
func (m *Map[K, V]) rehash(newCapacity int) {
	if ce := m.logger.Check(zap.DebugLevel, "rehash"); ce != nil {
		ce.Write(zap.Int("from", len(m.buckets)), zap.Int("to", newCapacity),
			zap.Int("entries", m.used))
	}

	m.buckets = make([]bucket[K, V], newCapacity)
	m.chain.init(false /* ordered */)
	m.used = 0
	for e := m.order.front(); e != nil; e = e.Next() {
		m.link(e, m.hash(&e.key))
	}
}

func (m *Map[K, V]) reset() {
	m.buckets = make([]bucket[K, V], 1)
	m.chain.init(false /* ordered */)
	m.order.init(true /* ordered */)
	m.used = 0
}

// release detaches every entry and hands it to the allocator. The bucket
// index is left stale.
func (m *Map[K, V]) release() {
	for e := m.order.front(); e != nil; {
		next := e.Next()
		m.chain.remove(e)
		m.order.remove(e)
		m.allocator.FreeEntry(e)
		e = next
	}
	m.used = 0
}

func (m *Map[K, V]) insertAll(src *Map[K, V]) {
	for e := src.order.front(); e != nil; e = e.Next() {
		m.Insert(e.key, e.Value)
	}
}

func (m *Map[K, V]) checkInvariants() {
	if invariants {
		if err := m.verify(); err != nil {
			panic(fmt.Sprintf("invariant failed: %v\n%s", err, m.debugString()))
		}
	}
}

// verify checks the structural invariants of the map, returning an error
// describing the first violation found.
func (m *Map[K, V]) verify() error {
	if len(m.buckets) == 0 {
		return errors.New("no buckets")
	}
	if m.chain.len != m.used || m.order.len != m.used {
		return errors.Newf("used=%d, but chain has %d entries and order has %d",
			m.used, m.chain.len, m.order.len)
	}
	if m.used >= 2*len(m.buckets) {
		return errors.Newf("used=%d exceeds load factor bound for capacity %d",
			m.used, len(m.buckets))
	}

	// Every bucket's run must be contiguous in the chain and hold only keys
	// hashing to the bucket. Walking the runs must account for every entry.
	var total int
	seen := make(map[*Entry[K, V]]struct{}, m.used)
	for i := range m.buckets {
		b := &m.buckets[i]
		if b.count == 0 {
			if b.first != nil {
				return errors.Newf("bucket(%d): empty with non-nil first", i)
			}
			continue
		}
		if b.first == nil {
			return errors.Newf("bucket(%d): count=%d with nil first", i, b.count)
		}
		e := b.first
		for j := 0; j < b.count; j++ {
			if e == &m.chain.root {
				return errors.Newf("bucket(%d): run ends after %d of %d entries", i, j, b.count)
			}
			if id := m.hash(&e.key) % uint64(len(m.buckets)); id != uint64(i) {
				return errors.Newf("bucket(%d): entry %v belongs to bucket %d", i, e.key, id)
			}
			if j == 0 && e.chain.prev != &m.chain.root {
				if id := m.hash(&e.chain.prev.key) % uint64(len(m.buckets)); id == uint64(i) {
					return errors.Newf("bucket(%d): first entry %v is not the start of its run", i, e.key)
				}
			}
			if _, ok := seen[e]; ok {
				return errors.Newf("bucket(%d): entry %v visited twice", i, e.key)
			}
			seen[e] = struct{}{}
			e = e.chain.next
		}
		total += b.count
	}
	if total != m.used {
		return errors.Newf("bucket counts sum to %d, but used is %d", total, m.used)
	}

	// The order list must hold exactly the same entries.
	var n int
	for e := m.order.front(); e != nil; e = e.Next() {
		if _, ok := seen[e]; !ok {
			return errors.Newf("order: entry %v not in any bucket", e.key)
		}
		n++
	}
	if n != m.used {
		return errors.Newf("order: found %d entries, but used is %d", n, m.used)
	}
	return nil
}

func (m *Map[K, V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d\n", len(m.buckets), m.used)
	for i := range m.buckets {
		b := &m.buckets[i]
		fmt.Fprintf(&buf, "  %4d: count=%d", i, b.count)
		e := b.first
		for j := 0; j < b.count && e != nil && e != &m.chain.root; j++ {
			fmt.Fprintf(&buf, " %v", e.key)
			e = e.chain.next
		}
		buf.WriteString("\n")
	}
	buf.WriteString("  order:")
	for e := m.order.front(); e != nil; e = e.Next() {
		fmt.Fprintf(&buf, " %v", e.key)
	}
	buf.WriteString("\n")
	return buf.String()
}
