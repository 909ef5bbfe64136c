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

package terms

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// Reduce merges shard-level partial results into the final bucket
// list: buckets sharing a term have their counts summed and their
// sub-aggregation results merged, and the combined list is sorted
// under the first partial's order and truncated to size.
//
// All partials must stem from the same query and aggregation; the
// order carried by the first partial wins (peers of the same query
// always agree on it).
func Reduce(size int, partials ...*ShardResult) ([]*Bucket, error) {
	if len(partials) == 0 {
		return nil, fmt.Errorf("terms: nothing to reduce")
	}
	first := partials[0]

	// merge by term, preserving first-seen insertion order so the
	// final stable sort keeps cross-shard ties deterministic
	index := make(map[string]*Bucket)
	var merged []*Bucket
	for _, p := range partials {
		if p.QueryID != first.QueryID {
			return nil, fmt.Errorf("terms: partial from query %s, want %s", p.QueryID, first.QueryID)
		}
		if p.Name != first.Name {
			return nil, fmt.Errorf("terms: partial for aggregation %q, want %q", p.Name, first.Name)
		}
		for _, b := range p.Buckets {
			prev, ok := index[b.Term]
			if !ok {
				nb := &Bucket{Term: b.Term, Count: b.Count, ord: -1, aggs: b.aggs}
				index[b.Term] = nb
				merged = append(merged, nb)
				continue
			}
			prev.Count += b.Count
			aggs, err := prev.aggs.Merge(b.aggs)
			if err != nil {
				return nil, fmt.Errorf("terms: merging bucket %q: %w", b.Term, err)
			}
			prev.aggs = aggs
		}
	}

	cmp := first.Order.Comparator(nil)
	slices.SortStableFunc(merged, func(a, b *Bucket) bool { return cmp(a, b) < 0 })
	if size > 0 && len(merged) > size {
		merged = merged[:size]
	}
	return merged, nil
}
