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
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/siftlabs/sift/agg"
	"github.com/siftlabs/sift/order"
)

// doc is one observation: a term plus an optional price metric.
type doc struct {
	term  string
	price float64
	noval bool
}

// collect builds a terms aggregation with an avg_price sub-agg and
// feeds it docs.
func collect(t *testing.T, ord order.Order, docs []doc) *Terms {
	t.Helper()
	avg := agg.NewAvg("avg_price")
	tm := New("genres", ord, 0, avg)
	if err := tm.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	for _, d := range docs {
		slot := tm.Observe(d.term)
		if !d.noval {
			avg.Observe(slot, d.price)
		}
	}
	return tm
}

func termsOf(buckets []*Bucket) []string {
	out := make([]string, len(buckets))
	for i, b := range buckets {
		out[i] = b.Term
	}
	return out
}

func expectOrder(t *testing.T, buckets []*Bucket, want ...string) {
	t.Helper()
	got := termsOf(buckets)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestObserveCounts(t *testing.T) {
	tm := New("genres", nil, 0)
	slots := make(map[string]int64)
	for i := 0; i < 100; i++ {
		term := fmt.Sprintf("t%d", i%7)
		slot := tm.Observe(term)
		if prev, ok := slots[term]; ok && prev != slot {
			t.Fatalf("term %q moved from slot %d to %d", term, prev, slot)
		}
		slots[term] = slot
	}
	if tm.NumBuckets() != 7 {
		t.Fatalf("NumBuckets = %d, want 7", tm.NumBuckets())
	}
	top := tm.Top(100)
	var total int64
	for _, b := range top {
		total += b.Count
	}
	if total != 100 {
		t.Fatalf("counts sum to %d, want 100", total)
	}
}

func TestTopDefaultOrder(t *testing.T) {
	// equal counts fall back to ascending term
	docs := []doc{
		{term: "b"}, {term: "b"}, {term: "b"},
		{term: "c"}, {term: "c"},
		{term: "a"}, {term: "a"},
		{term: "d"},
	}
	tm := collect(t, nil, docs)
	expectOrder(t, tm.Top(10), "b", "a", "c", "d")
	// truncation keeps the front of the order
	expectOrder(t, tm.Top(2), "b", "a")
}

func TestTopTermOrder(t *testing.T) {
	docs := []doc{{term: "b"}, {term: "c"}, {term: "a"}}
	expectOrder(t, collect(t, order.TermAsc, docs).Top(10), "a", "b", "c")
	expectOrder(t, collect(t, order.TermDesc, docs).Top(10), "c", "b", "a")
}

func TestTopByAggregation(t *testing.T) {
	byAvg, err := order.ByAggregation("avg_price", true)
	if err != nil {
		t.Fatal(err)
	}
	docs := []doc{
		{term: "mid", price: 10},
		{term: "mid", price: 20},
		{term: "low", price: 5},
		{term: "high", price: 100},
		{term: "none", noval: true}, // avg is NaN
	}
	tm := collect(t, byAvg, docs)
	// NaN sinks below every real value, even ascending
	expectOrder(t, tm.Top(10), "low", "mid", "high", "none")

	byAvgDesc, err := order.ByAggregation("avg_price", false)
	if err != nil {
		t.Fatal(err)
	}
	tm = collect(t, byAvgDesc, docs)
	expectOrder(t, tm.Top(10), "high", "mid", "low", "none")
}

func TestTopCompoundTieBreak(t *testing.T) {
	ord := order.NewCompound(order.CountAsc, order.TermDesc)
	docs := []doc{
		{term: "a"}, {term: "a"},
		{term: "b"}, {term: "b"},
		{term: "c"},
	}
	tm := collect(t, ord, docs)
	expectOrder(t, tm.Top(10), "c", "b", "a")
}

func TestTopMatchesFullSort(t *testing.T) {
	// the heap-based selection must agree with sorting everything
	rng := rand.New(rand.NewSource(0x5eed))
	var docs []doc
	for i := 0; i < 500; i++ {
		docs = append(docs, doc{term: fmt.Sprintf("t%02d", rng.Intn(40))})
	}
	tm := collect(t, order.Default(), docs)
	full := tm.Top(tm.NumBuckets())
	for _, n := range []int{1, 3, 10, 39} {
		expectOrder(t, tm.Top(n), termsOf(full[:n])...)
	}
}

func TestValidateRejectsBadPaths(t *testing.T) {
	avg := agg.NewAvg("avg_price")
	nested := New("inner", nil, 0) // bucket-per-term: not orderable
	cases := []struct {
		path    string
		segment string
	}{
		{"no_such", "no_such"},
		{"avg_price.value", "avg_price.value"},
		{"inner", "inner"},
		{"inner>avg_price", "inner"},
	}
	for _, c := range cases {
		o, err := order.ByAggregation(c.path, true)
		if err != nil {
			t.Fatalf("ByAggregation(%q): %v", c.path, err)
		}
		tm := New("genres", o, 0, avg, nested)
		err = tm.Validate()
		var perr *order.PathError
		if !errors.As(err, &perr) {
			t.Errorf("Validate(%q) = %v, want PathError", c.path, err)
			continue
		}
		if perr.Segment != c.segment {
			t.Errorf("Validate(%q): segment %q, want %q", c.path, perr.Segment, c.segment)
		}
	}
}

func TestSizeDefaults(t *testing.T) {
	tm := New("genres", nil, 0)
	if tm.Size() != DefaultSize {
		t.Errorf("Size = %d, want %d", tm.Size(), DefaultSize)
	}
	if !order.IsCountDesc(tm.Order()) {
		t.Errorf("nil order should default to count desc")
	}
	for i := 0; i < 25; i++ {
		tm.Observe(fmt.Sprintf("t%02d", i))
	}
	if got := len(tm.Top(0)); got != DefaultSize {
		t.Errorf("Top(0) returned %d buckets, want %d", got, DefaultSize)
	}
}
