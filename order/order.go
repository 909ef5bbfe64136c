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

// Package order implements bucket ordering for terms aggregations.
//
// An Order ranks result buckets by document count, by the grouping
// key itself, or by a value produced by a nested sub-aggregation,
// with multi-key tie breaking. Orders are immutable once built: a
// tree of orders is constructed from configuration or from the wire,
// validated once against the live aggregator tree, and then shared
// read-only by however many collection units run in parallel.
//
// Comparators come in two flavors. During collection, Comparator is
// handed the live aggregator so metric values can be read straight
// out of per-ordinal storage without materializing buckets. During
// the reduce phase no live aggregator exists, so Comparator(nil)
// yields a comparator over materialized bucket fields; that form is
// what shards agree on.
package order

import (
	"math"

	"golang.org/x/exp/slices"

	"github.com/siftlabs/sift/agg"
)

// Comparator is a strict weak ordering over buckets: it returns a
// negative value if a sorts before b, positive if after, and zero on
// a tie. Comparator calls are synchronous, in-memory reads only.
type Comparator func(a, b agg.Bucket) int

// Order determines the total order of buckets in a terms
// aggregation.
type Order interface {
	// ID returns the stable one-byte wire identifier of the order.
	ID() int8

	// Comparator returns the comparator for this order. ctx, when
	// non-nil, is the live aggregator owning the order; it lets
	// implementations read metric values directly from aggregator
	// state instead of materialized buckets. Comparator(nil) is
	// always supported and compares materialized bucket fields;
	// both forms order already-materialized buckets identically.
	Comparator(ctx agg.Aggregator) Comparator

	// Render returns the JSON-shaped representation of the order:
	// a single-key object such as {"_count": "desc"}, or an array
	// of them for a compound order.
	Render() any

	sealed()
}

const (
	idAggregation int8 = 0
	idCountDesc   int8 = 1
	idCountAsc    int8 = 2
	idTermDesc    int8 = 3
	idTermAsc     int8 = 4
	idCompound    int8 = -1
)

// simpleOrder is a count or term order. Exactly four instances
// exist; identity comparison against the package-level singletons is
// part of the contract (see IsCountDesc).
type simpleOrder struct {
	id  int8
	key string
	asc bool
	cmp Comparator
}

func (o *simpleOrder) ID() int8 { return o.id }

func (o *simpleOrder) Comparator(agg.Aggregator) Comparator { return o.cmp }

func (o *simpleOrder) Render() any {
	return map[string]string{o.key: direction(o.asc)}
}

func (o *simpleOrder) sealed() {}

func direction(asc bool) string {
	if asc {
		return "asc"
	}
	return "desc"
}

var (
	// CountDesc orders buckets by descending document count.
	CountDesc Order = &simpleOrder{id: idCountDesc, key: "_count", asc: false,
		cmp: func(a, b agg.Bucket) int { return compareInt64(b.DocCount(), a.DocCount()) }}

	// CountAsc orders buckets by ascending document count.
	CountAsc Order = &simpleOrder{id: idCountAsc, key: "_count", asc: true,
		cmp: func(a, b agg.Bucket) int { return compareInt64(a.DocCount(), b.DocCount()) }}

	// TermDesc orders buckets by their grouping key, descending.
	TermDesc Order = &simpleOrder{id: idTermDesc, key: "_term", asc: false,
		cmp: func(a, b agg.Bucket) int { return b.CompareTerm(a) }}

	// TermAsc orders buckets by their grouping key, ascending.
	TermAsc Order = &simpleOrder{id: idTermAsc, key: "_term", asc: true,
		cmp: func(a, b agg.Bucket) int { return a.CompareTerm(b) }}
)

// Default is the order applied when a terms aggregation does not
// specify one: descending count with the term as tie break.
func Default() Order { return NewCompound(CountDesc, TermAsc) }

// IsCountDesc reports whether o is a descending-count order the
// collection engine may optimize for: the CountDesc singleton
// itself, or a compound of exactly [CountDesc, TermAsc] (the
// conventional tie break). The check is deliberately narrow and by
// identity, not behavior: an order that happens to compare
// equivalently is not eligible.
func IsCountDesc(o Order) bool {
	if o == CountDesc {
		return true
	}
	c, ok := o.(*Compound)
	return ok && len(c.seq) == 2 && c.seq[0] == CountDesc && c.seq[1] == TermAsc
}

// Compound applies a sequence of orders lexicographically: ties
// under earlier orders are broken by later ones. The sequence order
// is significant and survives serialization.
type Compound struct {
	seq []Order
}

// NewCompound combines the given orders. At least one order is
// required; NewCompound panics on an empty sequence.
func NewCompound(orders ...Order) *Compound {
	if len(orders) == 0 {
		panic("order: empty compound order")
	}
	return &Compound{seq: slices.Clone(orders)}
}

// Sequence returns a copy of the member orders in tie-break
// priority.
func (c *Compound) Sequence() []Order { return slices.Clone(c.seq) }

func (c *Compound) ID() int8 { return idCompound }

// Comparator resolves each member's comparator against the same ctx
// once, then evaluates them in sequence until the first non-zero
// result.
func (c *Compound) Comparator(ctx agg.Aggregator) Comparator {
	cmps := make([]Comparator, len(c.seq))
	for i := range c.seq {
		cmps[i] = c.seq[i].Comparator(ctx)
	}
	return func(a, b agg.Bucket) int {
		for _, cmp := range cmps {
			if n := cmp(a, b); n != 0 {
				return n
			}
		}
		return 0
	}
}

func (c *Compound) Render() any {
	out := make([]any, len(c.seq))
	for i := range c.seq {
		out[i] = c.seq[i].Render()
	}
	return out
}

func (c *Compound) sealed() {}

// Validate resolves every aggregation-path order reachable from o
// (recursing through compound orders) against the aggregator tree
// rooted at root. It must be called once before collection starts;
// a PathError rejects the request before any buckets are built.
func Validate(o Order, root agg.Aggregator) error {
	switch t := o.(type) {
	case *Compound:
		for _, inner := range t.seq {
			if err := Validate(inner, root); err != nil {
				return err
			}
		}
	case *Aggregation:
		return t.path.Validate(root)
	}
	return nil
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// compareDiscardNaN compares two metric values, treating NaN as "no
// value": NaN sorts after every non-NaN value regardless of
// direction, so valueless buckets always sink to the bottom of the
// result. Two NaNs tie.
func compareDiscardNaN(v1, v2 float64, asc bool) int {
	if math.IsNaN(v1) {
		if math.IsNaN(v2) {
			return 0
		}
		return 1
	}
	if math.IsNaN(v2) {
		return -1
	}
	if asc {
		return compareFloat64(v1, v2)
	}
	return compareFloat64(v2, v1)
}
