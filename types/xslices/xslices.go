/*
 *	Copyright 2023 Jan Pfeifer
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package xslices provide missing functionality to the slices package.
// It was created before the slices package, and has since been reduced to
// the helpers that are actually used by the capture and aot packages.
package xslices

import (
	"slices"

	"golang.org/x/exp/constraints"
)

// Map executes the given function sequentially for every element on in, and returns a mapped slice.
func Map[In, Out any](in []In, fn func(e In) Out) (out []Out) {
	out = make([]Out, len(in))
	for ii, e := range in {
		out[ii] = fn(e)
	}
	return
}

// IndicesWhere returns the indices (in order) of the elements for which fn returns true.
func IndicesWhere[T any](in []T, fn func(e T) bool) (indices []int) {
	for ii, e := range in {
		if fn(e) {
			indices = append(indices, ii)
		}
	}
	return
}

// CountWhere returns the number of elements for which fn returns true.
func CountWhere[T any](in []T, fn func(e T) bool) (count int) {
	for _, e := range in {
		if fn(e) {
			count++
		}
	}
	return
}

// At returns the element at the given position. Negative positions count from the end,
// so At(s, -1) == s[len(s)-1]. It panics for out-of-bound positions, like a slice access.
func At[T any](in []T, pos int) T {
	if pos < 0 {
		pos = len(in) + pos
	}
	return in[pos]
}

// Last returns the last element of the slice.
func Last[T any](in []T) T {
	return in[len(in)-1]
}

// Pop removes the last element of the slice and returns it, along with the shortened slice.
func Pop[T any](in []T) (elem T, out []T) {
	elem = Last(in)
	out = in[:len(in)-1]
	return
}

// SetToSorted converts a set represented as a map to a sorted slice of its keys.
func SetToSorted[T constraints.Ordered](set map[T]bool) (sorted []T) {
	if len(set) == 0 {
		return nil
	}
	sorted = make([]T, 0, len(set))
	for key := range set {
		sorted = append(sorted, key)
	}
	slices.Sort(sorted)
	return
}

// Fill returns a new slice of the given size, with every element set to value.
func Fill[T any](size int, value T) (out []T) {
	out = make([]T, size)
	for ii := range out {
		out[ii] = value
	}
	return
}
