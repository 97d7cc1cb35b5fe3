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

import "go.uber.org/zap"

// option provide an interface to do work on Map while it is being created.
type option[K comparable, V any] interface {
	apply(m *Map[K, V])
}

type hashOption[K comparable, V any] struct {
	hash HashFunc[K]
}

func (op hashOption[K, V]) apply(m *Map[K, V]) {
	m.hash = op.hash
}

// WithHash is an option to specify the hash function to use for a Map[K,V].
func WithHash[K comparable, V any](hash HashFunc[K]) option[K, V] {
	return hashOption[K, V]{hash}
}

// Allocator specifies an interface for allocating and releasing the entries
// of a Map. The default allocator uses new() and lets the GC reclaim
// entries.
//
// An allocator that recycles entries makes any *Entry retained past the
// Delete of its key point at unrelated data. If the allocator requires that
// entries be freed then Map.Close must be called in order to ensure
// FreeEntry is called for the entries still in the map.
type Allocator[K comparable, V any] interface {
	// AllocEntry should return a pointer equivalent to new(Entry[K,V]).
	AllocEntry() *Entry[K, V]

	// FreeEntry can optionally release an entry that is guaranteed to have
	// been allocated by AllocEntry and is no longer referenced by the Map.
	FreeEntry(e *Entry[K, V])
}

type defaultAllocator[K comparable, V any] struct{}

func (defaultAllocator[K, V]) AllocEntry() *Entry[K, V] {
	return new(Entry[K, V])
}

func (defaultAllocator[K, V]) FreeEntry(e *Entry[K, V]) {
}

type allocatorOption[K comparable, V any] struct {
	allocator Allocator[K, V]
}

func (op allocatorOption[K, V]) apply(m *Map[K, V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[K,V].
func WithAllocator[K comparable, V any](allocator Allocator[K, V]) option[K, V] {
	return allocatorOption[K, V]{allocator}
}

type loggerOption[K comparable, V any] struct {
	logger *zap.Logger
}

func (op loggerOption[K, V]) apply(m *Map[K, V]) {
	if op.logger == nil {
		m.logger = zap.NewNop()
		return
	}
	m.logger = op.logger
}

// WithLogger is an option to trace rehash and clear events of a Map[K,V] at
// debug level. By default nothing is logged.
func WithLogger[K comparable, V any](logger *zap.Logger) option[K, V] {
	return loggerOption[K, V]{logger}
}
