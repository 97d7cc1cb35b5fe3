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
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/aclements/go-perfevent/perfbench"
)

func BenchmarkMapIter(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkRuntimeMapIter[int64], genKeys[int64]))
	})
	b.Run("impl=linkedMap", func(b *testing.B) {
		b.Run("t=Int", benchSizes(benchmarkLinkedMapIter[int64], genKeys[int64]))
	})
}

func BenchmarkMapGetHit(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetHit[string], genKeys[string]))
	})
	b.Run("impl=linkedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedMapGetHit[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedMapGetHit[string], genKeys[string]))
	})
}

func BenchmarkMapGetMiss(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapGetMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapGetMiss[string], genKeys[string]))
	})
	b.Run("impl=linkedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedMapGetMiss[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedMapGetMiss[string], genKeys[string]))
	})
}

func BenchmarkMapPutGrow(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapPutGrow[string], genKeys[string]))
	})
	b.Run("impl=linkedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedMapPutGrow[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedMapPutGrow[string], genKeys[string]))
	})
}

func BenchmarkMapPutDelete(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapPutDelete[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkRuntimeMapPutDelete[string], genKeys[string]))
	})
	b.Run("impl=linkedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedMapPutDelete[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedMapPutDelete[string], genKeys[string]))
	})
}

// BenchmarkMapIterChurn iterates while deleting each visited entry and
// appending a replacement, which the builtin map cannot do in a defined
// order.
func BenchmarkMapIterChurn(b *testing.B) {
	b.Run("impl=linkedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedMapIterChurn[int64], genKeys[int64]))
		b.Run("t=String", benchSizes(benchmarkLinkedMapIterChurn[string], genKeys[string]))
	})
}

// BenchmarkMapRefUpdate updates values through retained references while
// other keys are deleted and reinserted.
func BenchmarkMapRefUpdate(b *testing.B) {
	b.Run("impl=runtimeMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkRuntimeMapRefUpdate[int64], genKeys[int64]))
	})
	b.Run("impl=linkedMap", func(b *testing.B) {
		b.Run("t=Int64", benchSizes(benchmarkLinkedMapRefUpdate[int64], genKeys[int64]))
	})
}

type benchTypes interface {
	int64 | string
}

func benchSizes[T benchTypes](
	f func(b *testing.B, n int, genKeys func(start, end int) []T), genKeys func(start, end int) []T,
) func(*testing.B) {
	var cases = []int{
		6, 12, 18, 24, 30,
		64,
		128,
		256,
		512,
		1024,
		2048,
		4096,
		8192,
		1 << 16,
	}

	return func(b *testing.B) {
		for _, n := range cases {
			b.Run("len="+strconv.Itoa(n), func(b *testing.B) {
				// Report hardware counters where the platform supports them.
				perfbench.Open(b)
				f(b, n, genKeys)
			})
		}
	}
}

func genKeys[T benchTypes](start, end int) []T {
	keys := make([]T, end-start)
	for i := range keys {
		switch p := any(&keys[i]).(type) {
		case *int64:
			*p = int64(start + i)
		case *string:
			*p = strconv.Itoa(start + i)
		default:
			panic("not reached")
		}
	}
	return keys
}

func benchmarkRuntimeMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	var tmp T
	for i := 0; i < b.N; i++ {
		for k, v := range m {
			tmp += k + v
		}
	}
}

func benchmarkLinkedMapIter[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := New[T, T]()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Insert(k, k)
	}
	b.ResetTimer()
	var tmp T
	for i := 0; i < b.N; i++ {
		m.All(func(k, v T) bool {
			tmp += k + v
			return true
		})
	}
}

func benchmarkRuntimeMapGetMiss[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T)
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[miss[i%len(miss)]]
	}
}

func benchmarkLinkedMapGetMiss[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := New[T, T]()
	keys := genKeys(0, n)
	miss := genKeys(-n, 0)
	for j := range keys {
		m.Insert(keys[j], keys[j])
	}
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(miss[i%len(miss)])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapGetHit[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}

	// Go's builtin map has an optimization to avoid string comparisons if
	// there is pointer equality. Defeat this optimization to get a better
	// apples-to-apples comparison.
	keys = genKeys(0, n)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = m[keys[i%n]]
	}
}

func benchmarkLinkedMapGetHit[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	m := New[T, T]()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Insert(k, k)
	}
	keys = genKeys(0, n)
	b.ResetTimer()
	var ok bool
	for i := 0; i < b.N; i++ {
		_, ok = m.Get(keys[i%n])
	}
	b.StopTimer()
	fmt.Fprint(io.Discard, ok)
}

func benchmarkRuntimeMapPutGrow[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	keys := genKeys(0, n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m := make(map[T]T)
		for _, k := range keys {
			m[k] = k
		}
	}
}

func benchmarkLinkedMapPutGrow[T benchTypes](b *testing.B, n int, genKeys func(start, end int) []T) {
	keys := genKeys(0, n)
	m := New[T, T]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		m.Clear()
		for _, k := range keys {
			m.Insert(k, k)
		}
	}
}

func benchmarkRuntimeMapPutDelete[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		delete(m, keys[j])
		m[keys[j]] = keys[j]
	}
}

func benchmarkLinkedMapPutDelete[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := New[T, T]()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Insert(k, k)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		m.Delete(keys[j])
		m.Insert(keys[j], keys[j])
	}
}

func benchmarkLinkedMapIterChurn[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := New[T, T]()
	keys := genKeys(0, n)
	for _, k := range keys {
		m.Insert(k, k)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		// Each pass visits the n live entries once, deleting each and
		// appending it again behind the entries still to be visited.
		var visited int
		m.Entries(func(e *Entry[T, T]) bool {
			k, v := e.Key(), e.Value
			m.Delete(k)
			m.Insert(k, v)
			visited++
			return visited < n
		})
	}
}

func benchmarkRuntimeMapRefUpdate[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := make(map[T]T, n)
	keys := genKeys(0, n)
	for _, k := range keys {
		m[k] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		m[keys[j]] += keys[j]
		delete(m, keys[(j+1)%n])
		m[keys[(j+1)%n]] = keys[j]
	}
}

func benchmarkLinkedMapRefUpdate[T benchTypes](
	b *testing.B, n int, genKeys func(start, end int) []T,
) {
	m := New[T, T]()
	keys := genKeys(0, n)
	refs := make([]*T, n)
	for j, k := range keys {
		refs[j] = m.Ref(k)
		*refs[j] = k
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		j := i % n
		*refs[j] += keys[j]
		// Deleting a key invalidates only its own reference.
		next := (j + 1) % n
		m.Delete(keys[next])
		refs[next] = m.Ref(keys[next])
		*refs[next] = keys[j]
	}
}
