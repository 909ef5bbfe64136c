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

import "math"

// Materializer is implemented by aggregators that can produce a
// materialized per-ordinal result value for the reduce phase.
type Materializer interface {
	Aggregator
	Result(ord int64) Value
}

// Materialize collects the per-ordinal results of every
// materializable aggregator in subs, keyed by aggregation name.
func Materialize(ord int64, subs ...Aggregator) Results {
	var out Results
	for _, sub := range subs {
		m, ok := sub.(Materializer)
		if !ok {
			continue
		}
		if out == nil {
			out = make(Results, len(subs))
		}
		out[m.Name()] = m.Result(ord)
	}
	return out
}

// Filter is a single-bucket aggregation: it counts the documents
// matching a predicate and hosts nested sub-aggregations. The
// predicate itself is evaluated by the caller; Filter only accounts
// for the documents handed to Observe.
type Filter struct {
	name   string
	counts []int64
	subs   []Aggregator
}

func NewFilter(name string, subs ...Aggregator) *Filter {
	return &Filter{name: name, subs: subs}
}

func (f *Filter) Name() string { return f.name }

func (f *Filter) Sub(name string) Aggregator {
	for _, s := range f.subs {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// Observe records one matching document for the given ordinal.
func (f *Filter) Observe(ord int64) {
	f.counts = grown(f.counts, ord)
	f.counts[ord]++
}

func (f *Filter) BucketDocCount(ord int64) int64 {
	if ord >= int64(len(f.counts)) {
		return 0
	}
	return f.counts[ord]
}

func (f *Filter) Result(ord int64) Value {
	return CountValue{
		Count: f.BucketDocCount(ord),
		Sub:   Materialize(ord, f.subs...),
	}
}

// Avg is a single-value metric aggregation computing the arithmetic
// mean of the observed values. Its metric is NaN for ordinals with
// no observations.
type Avg struct {
	name   string
	sums   []float64
	counts []int64
}

func NewAvg(name string) *Avg { return &Avg{name: name} }

func (a *Avg) Name() string          { return a.name }
func (a *Avg) Sub(string) Aggregator { return nil }

func (a *Avg) Observe(ord int64, v float64) {
	a.sums = grown(a.sums, ord)
	a.counts = grown(a.counts, ord)
	a.sums[ord] += v
	a.counts[ord]++
}

func (a *Avg) Metric(ord int64) float64 {
	if ord >= int64(len(a.counts)) || a.counts[ord] == 0 {
		return math.NaN()
	}
	return a.sums[ord] / float64(a.counts[ord])
}

func (a *Avg) Result(ord int64) Value {
	if ord >= int64(len(a.counts)) {
		return AvgValue{}
	}
	return AvgValue{Sum: a.sums[ord], Count: a.counts[ord]}
}

// Max is a single-value metric aggregation tracking the largest
// observed value per ordinal.
type Max struct {
	name  string
	maxes []float64
	seen  []bool
}

func NewMax(name string) *Max { return &Max{name: name} }

func (m *Max) Name() string          { return m.name }
func (m *Max) Sub(string) Aggregator { return nil }


func (m *Max) Observe(ord int64, v float64) {
	m.maxes = grown(m.maxes, ord)
	m.seen = grown(m.seen, ord)
	if !m.seen[ord] || v > m.maxes[ord] {
		m.maxes[ord] = v
	}
	m.seen[ord] = true
}

func (m *Max) Metric(ord int64) float64 {
	if ord >= int64(len(m.seen)) || !m.seen[ord] {
		return math.NaN()
	}
	return m.maxes[ord]
}

func (m *Max) Result(ord int64) Value {
	if ord >= int64(len(m.seen)) || !m.seen[ord] {
		return MaxValue{}
	}
	return MaxValue{Max: m.maxes[ord], Seen: true}
}

// Stats is a multi-value metric aggregation exposing "min", "max",
// "sum", "avg" and "count" per ordinal.
type Stats struct {
	name   string
	mins   []float64
	maxes  []float64
	sums   []float64
	counts []int64
}

func NewStats(name string) *Stats { return &Stats{name: name} }

func (s *Stats) Name() string          { return s.name }
func (s *Stats) Sub(string) Aggregator { return nil }

func (s *Stats) Observe(ord int64, v float64) {
	s.mins = grown(s.mins, ord)
	s.maxes = grown(s.maxes, ord)
	s.sums = grown(s.sums, ord)
	s.counts = grown(s.counts, ord)
	if s.counts[ord] == 0 || v < s.mins[ord] {
		s.mins[ord] = v
	}
	if s.counts[ord] == 0 || v > s.maxes[ord] {
		s.maxes[ord] = v
	}
	s.sums[ord] += v
	s.counts[ord]++
}

func (s *Stats) HasMetric(name string) bool {
	switch name {
	case "min", "max", "sum", "avg", "count":
		return true
	}
	return false
}

func (s *Stats) MetricNamed(name string, ord int64) float64 {
	v, _ := s.Result(ord).(StatsValue).MetricNamed(name)
	return v
}

func (s *Stats) Result(ord int64) Value {
	if ord >= int64(len(s.counts)) {
		return StatsValue{}
	}
	return StatsValue{
		Min:   s.mins[ord],
		Max:   s.maxes[ord],
		Sum:   s.sums[ord],
		Count: s.counts[ord],
	}
}

// grown extends s with zero values so that ord is addressable.
func grown[T any](s []T, ord int64) []T {
	for int64(len(s)) <= ord {
		var zero T
		s = append(s, zero)
	}
	return s
}
