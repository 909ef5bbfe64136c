// Copyright 2024 Sift Labs, Inc.
//
//  Licensed under the Apache License, Version 2.0 (the "License");
//  you may not use this file except in compliance with the License.
//  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.

// Package heap implements min-heap operations on plain slices,
// parameterized by a comparison function.
package heap

// Push adds item to the heap *x while preserving the min-heap
// invariant defined by less.
func Push[T any](x *[]T, item T, less func(a, b T) bool) {
	*x = append(*x, item)
	up(*x, len(*x)-1, less)
}

// Pop removes and returns the minimum element of the heap *x.
// Pop panics if the heap is empty.
func Pop[T any](x *[]T, less func(a, b T) bool) T {
	s := *x
	min := s[0]
	last := len(s) - 1
	s[0] = s[last]
	s = s[:last]
	*x = s
	if len(s) > 0 {
		down(s, 0, less)
	}
	return min
}

// Fix restores the heap invariant after the element at index i
// has been assigned a new value.
func Fix[T any](x []T, i int, less func(a, b T) bool) {
	if !down(x, i, less) {
		up(x, i, less)
	}
}

// Init shuffles x into min-heap order.
func Init[T any](x []T, less func(a, b T) bool) {
	for i := len(x)/2 - 1; i >= 0; i-- {
		down(x, i, less)
	}
}

func up[T any](x []T, i int, less func(a, b T) bool) {
	for i > 0 {
		parent := (i - 1) / 2
		if !less(x[i], x[parent]) {
			return
		}
		x[i], x[parent] = x[parent], x[i]
		i = parent
	}
}

// down sifts x[i] toward the leaves and reports whether it moved.
func down[T any](x []T, i int, less func(a, b T) bool) bool {
	start := i
	for {
		kid := 2*i + 1
		if kid >= len(x) {
			break
		}
		if r := kid + 1; r < len(x) && less(x[r], x[kid]) {
			kid = r
		}
		if !less(x[kid], x[i]) {
			break
		}
		x[i], x[kid] = x[kid], x[i]
		i = kid
	}
	return i > start
}
