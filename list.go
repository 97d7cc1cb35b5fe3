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

package linkedhash

// Entry holds a key and value. An *Entry returned by a Map remains valid,
// and keeps referring to the same key, until that key is deleted from the
// Map. Value may be modified in place.
type Entry[K comparable, V any] struct {
	// chain threads the entry through the bucket-contiguous sequence used
	// for lookups. order threads it through the sequence used for iteration.
	chain link[K, V]
	order link[K, V]
	// list is the order list the entry belongs to, or nil if the entry has
	// been removed.
	list *list[K, V]

	key   K
	Value V
}

type link[K comparable, V any] struct {
	next, prev *Entry[K, V]
}

// Key returns the entry's key.
func (e *Entry[K, V]) Key() K {
	return e.key
}

// Next returns the entry following e in insertion order, or nil.
func (e *Entry[K, V]) Next() *Entry[K, V] {
	if l := e.list; l != nil && e.order.next != &l.root {
		return e.order.next
	}
	return nil
}

// Prev returns the entry preceding e in insertion order, or nil.
func (e *Entry[K, V]) Prev() *Entry[K, V] {
	if l := e.list; l != nil && e.order.prev != &l.root {
		return e.order.prev
	}
	return nil
}

// list is a circular doubly linked list of entries with a sentinel root.
// Every entry of a Map is a member of two lists at once: the chain list, in
// which the entries of a bucket are contiguous, and the order list, which
// is in insertion order. The ordered field selects which pair of links a
// list uses. Entries are allocated individually and never moved, which is
// what allows a Map to hand out stable *Entry references.
//
// A list must not be copied after init since the sentinel refers to
// itself.
type list[K comparable, V any] struct {
	root    Entry[K, V]
	len     int
	ordered bool
}

func (l *list[K, V]) init(ordered bool) {
	l.ordered = ordered
	l.len = 0
	r := l.links(&l.root)
	r.next = &l.root
	r.prev = &l.root
}

func (l *list[K, V]) links(e *Entry[K, V]) *link[K, V] {
	if l.ordered {
		return &e.order
	}
	return &e.chain
}

func (l *list[K, V]) front() *Entry[K, V] {
	if l.len == 0 {
		return nil
	}
	return l.links(&l.root).next
}

func (l *list[K, V]) back() *Entry[K, V] {
	if l.len == 0 {
		return nil
	}
	return l.links(&l.root).prev
}

// insertBefore links e immediately before mark, which must be an element of
// l or its root (which appends).
func (l *list[K, V]) insertBefore(e, mark *Entry[K, V]) {
	el, ml := l.links(e), l.links(mark)
	el.prev = ml.prev
	el.next = mark
	l.links(ml.prev).next = e
	ml.prev = e
	if l.ordered {
		e.list = l
	}
	l.len++
}

func (l *list[K, V]) pushBack(e *Entry[K, V]) {
	l.insertBefore(e, &l.root)
}

// remove unlinks e from l. The links of e are cleared so that a stale
// reference terminates iteration rather than walking into live entries.
func (l *list[K, V]) remove(e *Entry[K, V]) {
	el := l.links(e)
	l.links(el.prev).next = el.next
	l.links(el.next).prev = el.prev
	el.next = nil
	el.prev = nil
	if l.ordered {
		e.list = nil
	}
	l.len--
}
