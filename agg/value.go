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
	"fmt"
	"math"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/siftlabs/sift/wire"
)

// Value is a materialized, mergeable per-bucket aggregation result.
// Values carry enough partial state to be merged across shards
// (an average keeps its sum and count, not just the quotient).
type Value interface {
	// Merge combines this value with the same aggregation's value
	// from another shard and returns the combined value.
	// Merging values of different concrete types is an error.
	Merge(other Value) (Value, error)

	wireKind() byte
	encode(w *wire.Writer)
}

// SingleMetric is implemented by values that reduce to one unnamed
// numeric result. NaN means "no value".
type SingleMetric interface {
	Metric() float64
}

// NamedMetrics is implemented by values that expose several named
// numeric results.
type NamedMetrics interface {
	MetricNamed(name string) (float64, bool)
}

// Nested is implemented by values that host sub-aggregation results
// of their own (single-bucket aggregations).
type Nested interface {
	SubResults() Results
}

// Results maps aggregation names to their materialized values
// within one bucket.
type Results map[string]Value

// Get returns the value for the named aggregation, or nil.
func (r Results) Get(name string) Value { return r[name] }

// Merge combines two shards' results entry-wise. Entries present on
// only one side are kept as-is.
func (r Results) Merge(other Results) (Results, error) {
	if r == nil {
		return other, nil
	}
	out := make(Results, len(r))
	for name, v := range r {
		out[name] = v
	}
	for name, v := range other {
		prev, ok := out[name]
		if !ok {
			out[name] = v
			continue
		}
		merged, err := prev.Merge(v)
		if err != nil {
			return nil, fmt.Errorf("merging %q: %w", name, err)
		}
		out[name] = merged
	}
	return out, nil
}

const (
	avgValueKind byte = iota + 1
	maxValueKind
	statsValueKind
	countValueKind
)

// AvgValue is the partial state of an average: the running sum and
// the number of observations.
type AvgValue struct {
	Sum   float64
	Count int64
}

func (v AvgValue) Metric() float64 {
	if v.Count == 0 {
		return math.NaN()
	}
	return v.Sum / float64(v.Count)
}

func (v AvgValue) Merge(other Value) (Value, error) {
	o, ok := other.(AvgValue)
	if !ok {
		return nil, mergeMismatch(v, other)
	}
	return AvgValue{Sum: v.Sum + o.Sum, Count: v.Count + o.Count}, nil
}

func (v AvgValue) wireKind() byte { return avgValueKind }

func (v AvgValue) encode(w *wire.Writer) {
	w.WriteFloat64(v.Sum)
	w.WriteUvarint(uint64(v.Count))
}

// MaxValue is the running maximum of a metric.
type MaxValue struct {
	Max  float64
	Seen bool
}

func (v MaxValue) Metric() float64 {
	if !v.Seen {
		return math.NaN()
	}
	return v.Max
}

func (v MaxValue) Merge(other Value) (Value, error) {
	o, ok := other.(MaxValue)
	if !ok {
		return nil, mergeMismatch(v, other)
	}
	switch {
	case !v.Seen:
		return o, nil
	case !o.Seen:
		return v, nil
	}
	return MaxValue{Max: math.Max(v.Max, o.Max), Seen: true}, nil
}

func (v MaxValue) wireKind() byte { return maxValueKind }

func (v MaxValue) encode(w *wire.Writer) {
	w.WriteBool(v.Seen)
	if v.Seen {
		w.WriteFloat64(v.Max)
	}
}

// StatsValue is the partial state of a stats aggregation.
type StatsValue struct {
	Min, Max, Sum float64
	Count         int64
}

// MetricNamed returns one of "min", "max", "sum", "avg" or "count".
// min, max and avg are NaN when the bucket saw no observations.
func (v StatsValue) MetricNamed(name string) (float64, bool) {
	empty := v.Count == 0
	switch name {
	case "count":
		return float64(v.Count), true
	case "sum":
		return v.Sum, true
	case "min":
		if empty {
			return math.NaN(), true
		}
		return v.Min, true
	case "max":
		if empty {
			return math.NaN(), true
		}
		return v.Max, true
	case "avg":
		if empty {
			return math.NaN(), true
		}
		return v.Sum / float64(v.Count), true
	}
	return 0, false
}

func (v StatsValue) Merge(other Value) (Value, error) {
	o, ok := other.(StatsValue)
	if !ok {
		return nil, mergeMismatch(v, other)
	}
	switch {
	case v.Count == 0:
		return o, nil
	case o.Count == 0:
		return v, nil
	}
	return StatsValue{
		Min:   math.Min(v.Min, o.Min),
		Max:   math.Max(v.Max, o.Max),
		Sum:   v.Sum + o.Sum,
		Count: v.Count + o.Count,
	}, nil
}

func (v StatsValue) wireKind() byte { return statsValueKind }

func (v StatsValue) encode(w *wire.Writer) {
	w.WriteUvarint(uint64(v.Count))
	if v.Count > 0 {
		w.WriteFloat64(v.Min)
		w.WriteFloat64(v.Max)
		w.WriteFloat64(v.Sum)
	}
}

// CountValue is the result of a single-bucket aggregation: a
// document count plus the results of any nested sub-aggregations.
type CountValue struct {
	Count int64
	Sub   Results
}

// Metric returns the document count; a keyless order path that
// terminates at a single-bucket aggregation compares this.
func (v CountValue) Metric() float64 { return float64(v.Count) }

func (v CountValue) SubResults() Results { return v.Sub }

func (v CountValue) Merge(other Value) (Value, error) {
	o, ok := other.(CountValue)
	if !ok {
		return nil, mergeMismatch(v, other)
	}
	sub, err := v.Sub.Merge(o.Sub)
	if err != nil {
		return nil, err
	}
	return CountValue{Count: v.Count + o.Count, Sub: sub}, nil
}

func (v CountValue) wireKind() byte { return countValueKind }

func (v CountValue) encode(w *wire.Writer) {
	w.WriteUvarint(uint64(v.Count))
	EncodeResults(w, v.Sub)
}

func mergeMismatch(a, b Value) error {
	return fmt.Errorf("agg: cannot merge %T with %T", a, b)
}

// EncodeValue writes v to the wire stream.
func EncodeValue(w *wire.Writer, v Value) {
	w.WriteByte(v.wireKind())
	v.encode(w)
}

// DecodeValue reads one value previously written by EncodeValue.
func DecodeValue(r *wire.Reader) (Value, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch kind {
	case avgValueKind:
		sum, err := r.ReadFloat64()
		if err != nil {
			return nil, err
		}
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		return AvgValue{Sum: sum, Count: int64(count)}, nil
	case maxValueKind:
		seen, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		v := MaxValue{Seen: seen}
		if seen {
			if v.Max, err = r.ReadFloat64(); err != nil {
				return nil, err
			}
		}
		return v, nil
	case statsValueKind:
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		v := StatsValue{Count: int64(count)}
		if count > 0 {
			if v.Min, err = r.ReadFloat64(); err != nil {
				return nil, err
			}
			if v.Max, err = r.ReadFloat64(); err != nil {
				return nil, err
			}
			if v.Sum, err = r.ReadFloat64(); err != nil {
				return nil, err
			}
		}
		return v, nil
	case countValueKind:
		count, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		sub, err := DecodeResults(r)
		if err != nil {
			return nil, err
		}
		return CountValue{Count: int64(count), Sub: sub}, nil
	}
	return nil, fmt.Errorf("agg: unknown value kind %d", kind)
}

// EncodeResults writes r to the wire stream with entries in
// name order, so that encoding is deterministic.
func EncodeResults(w *wire.Writer, r Results) {
	w.WriteUvarint(uint64(len(r)))
	names := maps.Keys(r)
	slices.Sort(names)
	for _, name := range names {
		w.WriteString(name)
		EncodeValue(w, r[name])
	}
}

// DecodeResults reads a result set written by EncodeResults.
func DecodeResults(r *wire.Reader) (Results, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	out := make(Results, n)
	for i := uint64(0); i < n; i++ {
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		v, err := DecodeValue(r)
		if err != nil {
			return nil, fmt.Errorf("decoding %q: %w", name, err)
		}
		out[name] = v
	}
	return out, nil
}
