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

// Package terms implements the per-shard terms aggregation harness:
// grouping documents by term, selecting the top buckets under an
// order.Order, framing partial results for transport, and merging
// them during the reduce phase.
package terms

import (
	"strings"

	"github.com/dchest/siphash"
	"golang.org/x/exp/slices"

	"github.com/siftlabs/sift/agg"
	"github.com/siftlabs/sift/heap"
	"github.com/siftlabs/sift/order"
)

// DefaultSize is the bucket count returned when the request does not
// specify one.
const DefaultSize = 10

// Terms is a live terms aggregation. It assigns each distinct term a
// bucket ordinal, counts documents per bucket, and hosts the nested
// sub-aggregations that accumulate per-ordinal metric state.
type Terms struct {
	name string
	ord  order.Order
	size int
	subs []agg.Aggregator

	// term lookup is keyed by the siphash of the term bytes;
	// slots carrying colliding hashes are compared by value
	table  map[uint64][]int32
	terms  []string
	counts []int64
}

// New constructs a terms aggregation ordered by ord. A nil ord means
// the default: descending count with ascending term as tie break.
func New(name string, ord order.Order, size int, subs ...agg.Aggregator) *Terms {
	if ord == nil {
		ord = order.Default()
	}
	if size <= 0 {
		size = DefaultSize
	}
	return &Terms{
		name:  name,
		ord:   ord,
		size:  size,
		subs:  subs,
		table: make(map[uint64][]int32),
	}
}

func (t *Terms) Name() string { return t.name }

func (t *Terms) Sub(name string) agg.Aggregator {
	for _, s := range t.subs {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Order returns the bucket order this aggregation was built with.
func (t *Terms) Order() order.Order { return t.ord }

// Size returns the configured result size.
func (t *Terms) Size() int { return t.size }

// Validate resolves the order's aggregation paths against this
// aggregation's sub-tree. It must be called once, before any
// documents are observed concurrently; a failure rejects the request
// before collection starts.
func (t *Terms) Validate() error {
	return order.Validate(t.ord, t)
}

// Observe records one document for term and returns the term's
// bucket ordinal, under which the caller should update any
// sub-aggregations.
func (t *Terms) Observe(term string) int64 {
	h := siphash.Hash(0, 0, []byte(term))
	for _, slot := range t.table[h] {
		if t.terms[slot] == term {
			t.counts[slot]++
			return int64(slot)
		}
	}
	slot := int32(len(t.terms))
	t.terms = append(t.terms, term)
	t.counts = append(t.counts, 1)
	t.table[h] = append(t.table[h], slot)
	return int64(slot)
}

// NumBuckets returns the number of distinct terms observed.
func (t *Terms) NumBuckets() int { return len(t.terms) }

// Bucket is one term group. During collection only the term, count
// and ordinal are populated; materialized sub-aggregation results
// are attached when the bucket is captured for transport.
type Bucket struct {
	Term  string
	Count int64

	ord  int64
	aggs agg.Results
}

func (b *Bucket) DocCount() int64 { return b.Count }

// Ord returns the bucket's slot in the live aggregators'
// per-ordinal storage; -1 for buckets decoded from the wire.
func (b *Bucket) Ord() int64 { return b.ord }

func (b *Bucket) CompareTerm(other agg.Bucket) int {
	return strings.Compare(b.Term, other.(*Bucket).Term)
}

func (b *Bucket) Aggregations() agg.Results { return b.aggs }

// Top selects the top n buckets under the aggregation's order using
// the live comparator path: candidates are compared through their
// ordinals, without materializing sub-aggregation results.
func (t *Terms) Top(n int) []*Bucket {
	if n <= 0 {
		n = t.size
	}
	var cmp order.Comparator
	if order.IsCountDesc(t.ord) {
		// order-by-count fast path: no aggregator state is
		// consulted at all
		cmp = func(a, b agg.Bucket) int {
			if a.DocCount() != b.DocCount() {
				if a.DocCount() > b.DocCount() {
					return -1
				}
				return 1
			}
			return a.CompareTerm(b)
		}
	} else {
		cmp = t.ord.Comparator(t)
	}

	// keep a max-heap of the n best candidates, rooted at the
	// bucket furthest from the front of the sort order
	worst := func(a, b *Bucket) bool { return cmp(a, b) > 0 }
	keep := make([]*Bucket, 0, n)
	for slot := range t.terms {
		b := &Bucket{Term: t.terms[slot], Count: t.counts[slot], ord: int64(slot)}
		if len(keep) < n {
			heap.Push(&keep, b, worst)
		} else if cmp(b, keep[0]) < 0 {
			keep[0] = b
			heap.Fix(keep, 0, worst)
		}
	}
	slices.SortStableFunc(keep, func(a, b *Bucket) bool { return cmp(a, b) < 0 })
	return keep
}

// Materialize attaches the per-ordinal sub-aggregation results to
// the selected buckets so they can leave the shard.
func (t *Terms) Materialize(buckets []*Bucket) {
	for _, b := range buckets {
		b.aggs = agg.Materialize(b.ord, t.subs...)
	}
}
