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

package agg

import (
	"math"
	"reflect"
	"testing"

	"github.com/siftlabs/sift/wire"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		agg  Aggregator
		want Kind
	}{
		{NewFilter("f"), KindSingleBucket},
		{NewAvg("a"), KindSingleValue},
		{NewMax("m"), KindSingleValue},
		{NewStats("s"), KindMultiValue},
	}
	for _, c := range cases {
		if got := KindOf(c.agg); got != c.want {
			t.Errorf("KindOf(%s) = %s, want %s", c.agg.Name(), got, c.want)
		}
	}
}

func TestAvgMetric(t *testing.T) {
	a := NewAvg("price")
	a.Observe(0, 2)
	a.Observe(0, 4)
	if got := a.Metric(0); got != 3 {
		t.Errorf("Metric(0) = %v, want 3", got)
	}
	// no observations for ordinal 1 and beyond
	if got := a.Metric(1); !math.IsNaN(got) {
		t.Errorf("Metric(1) = %v, want NaN", got)
	}
	if got := a.Metric(99); !math.IsNaN(got) {
		t.Errorf("Metric(99) = %v, want NaN", got)
	}
}

func TestStatsMetrics(t *testing.T) {
	s := NewStats("s")
	for _, v := range []float64{3, 1, 2} {
		s.Observe(2, v)
	}
	want := map[string]float64{"min": 1, "max": 3, "sum": 6, "avg": 2, "count": 3}
	for name, wantv := range want {
		if !s.HasMetric(name) {
			t.Fatalf("HasMetric(%q) = false", name)
		}
		if got := s.MetricNamed(name, 2); got != wantv {
			t.Errorf("MetricNamed(%q, 2) = %v, want %v", name, got, wantv)
		}
	}
	if s.HasMetric("median") {
		t.Errorf("HasMetric(median) = true")
	}
	// empty ordinal: min/max/avg are NaN, count is zero
	for _, name := range []string{"min", "max", "avg"} {
		if got := s.MetricNamed(name, 0); !math.IsNaN(got) {
			t.Errorf("empty MetricNamed(%q) = %v, want NaN", name, got)
		}
	}
	if got := s.MetricNamed("count", 0); got != 0 {
		t.Errorf("empty count = %v", got)
	}
}

func TestFilterTree(t *testing.T) {
	stats := NewStats("stats")
	f := NewFilter("match", stats)
	if f.Sub("stats") != Aggregator(stats) {
		t.Fatalf("Sub(stats) lookup failed")
	}
	if f.Sub("nope") != nil {
		t.Fatalf("Sub(nope) should be nil")
	}
	f.Observe(1)
	f.Observe(1)
	stats.Observe(1, 10)
	if got := f.BucketDocCount(1); got != 2 {
		t.Errorf("BucketDocCount(1) = %d", got)
	}
	if got := f.BucketDocCount(7); got != 0 {
		t.Errorf("BucketDocCount(7) = %d", got)
	}
	res, ok := f.Result(1).(CountValue)
	if !ok || res.Count != 2 {
		t.Fatalf("Result(1) = %#v", f.Result(1))
	}
	sv, ok := res.Sub.Get("stats").(StatsValue)
	if !ok || sv.Sum != 10 || sv.Count != 1 {
		t.Errorf("nested stats = %#v", res.Sub.Get("stats"))
	}
}

func TestValueMerge(t *testing.T) {
	avg, err := AvgValue{Sum: 6, Count: 2}.Merge(AvgValue{Sum: 3, Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	if got := avg.(AvgValue).Metric(); got != 3 {
		t.Errorf("merged avg = %v, want 3", got)
	}

	max, err := MaxValue{}.Merge(MaxValue{Max: 5, Seen: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := max.(MaxValue).Metric(); got != 5 {
		t.Errorf("merged max = %v, want 5", got)
	}

	stats, err := StatsValue{Min: 1, Max: 4, Sum: 5, Count: 2}.
		Merge(StatsValue{Min: 0, Max: 9, Sum: 9, Count: 1})
	if err != nil {
		t.Fatal(err)
	}
	want := StatsValue{Min: 0, Max: 9, Sum: 14, Count: 3}
	if stats != Value(want) {
		t.Errorf("merged stats = %#v, want %#v", stats, want)
	}

	if _, err := (AvgValue{}).Merge(MaxValue{}); err == nil {
		t.Errorf("mismatched merge succeeded")
	}
}

func TestResultsRoundTrip(t *testing.T) {
	in := Results{
		"avg_price": AvgValue{Sum: 10, Count: 4},
		"max_price": MaxValue{Max: 7, Seen: true},
		"missing":   MaxValue{},
		"match": CountValue{
			Count: 3,
			Sub: Results{
				"stats": StatsValue{Min: 1, Max: 2, Sum: 3, Count: 2},
			},
		},
	}
	w := wire.NewWriter(wire.Current)
	EncodeResults(w, in)
	out, err := DecodeResults(wire.NewReader(w.Bytes(), wire.Current))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\nin:  %#v\nout: %#v", in, out)
	}
}
