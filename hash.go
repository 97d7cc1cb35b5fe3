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

import (
	"hash/maphash"

	"github.com/cespare/xxhash/v2"
)

// HashFunc maps a key to an unsigned integer. A Map selects the bucket for
// a key as hash(key) % capacity. A HashFunc must be deterministic for the
// lifetime of the Map it is installed in.
type HashFunc[K any] func(key *K) uint64

// defaultHasher returns a HashFunc equivalent to the hashing used by Go's
// builtin map[K]V, randomly seeded.
func defaultHasher[K comparable]() HashFunc[K] {
	seed := maphash.MakeSeed()
	return func(key *K) uint64 {
		return maphash.Comparable(seed, *key)
	}
}

// StringHash is a HashFunc for string keys backed by xxhash. Unlike the
// default hasher it is unseeded, so it yields the same bucket layout (and
// therefore the same debug output) across processes.
func StringHash(key *string) uint64 {
	return xxhash.Sum64String(*key)
}
