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

// Package agg defines the aggregator tree consumed by the bucket
// ordering machinery: the live aggregator interface and its three
// capability shapes, the materialized per-bucket result values
// produced for the reduce phase, and a small set of concrete metric
// aggregators.
package agg

// Aggregator is a live, per-request computation unit that
// accumulates state per bucket ordinal during the collection phase.
type Aggregator interface {
	// Name returns the aggregation name used to address this
	// aggregator in an order path.
	Name() string
	// Sub returns the nested sub-aggregator with the given name,
	// or nil if no such child exists.
	Sub(name string) Aggregator
}

// SingleBucket is the capability shape of aggregators that maintain
// exactly one implicit bucket per ordinal and expose only its
// document count (e.g. a filter aggregation).
type SingleBucket interface {
	Aggregator
	BucketDocCount(ord int64) int64
}

// SingleValue is the capability shape of metric aggregators that
// produce one unnamed numeric value per ordinal. A value of NaN
// means "no value".
type SingleValue interface {
	Aggregator
	Metric(ord int64) float64
}

// MultiValue is the capability shape of metric aggregators that
// produce several named numeric values per ordinal (e.g. stats).
type MultiValue interface {
	Aggregator
	// HasMetric reports whether the named value exists.
	HasMetric(name string) bool
	// MetricNamed returns the named value for the given ordinal.
	// The name must satisfy HasMetric.
	MetricNamed(name string, ord int64) float64
}

// Kind is the capability shape of an aggregator with respect to
// bucket ordering.
type Kind int

const (
	// KindNone marks aggregators that buckets cannot be ordered
	// by (e.g. other bucketing aggregations).
	KindNone Kind = iota
	KindSingleBucket
	KindSingleValue
	KindMultiValue
)

func (k Kind) String() string {
	switch k {
	case KindSingleBucket:
		return "single-bucket"
	case KindSingleValue:
		return "single-value metric"
	case KindMultiValue:
		return "multi-value metric"
	}
	return "unordered"
}

// KindOf resolves the capability shape of a.
// The shape is determined once, when an order comparator is
// constructed, and carried forward from there.
func KindOf(a Aggregator) Kind {
	switch a.(type) {
	case SingleBucket:
		return KindSingleBucket
	case MultiValue:
		return KindMultiValue
	case SingleValue:
		return KindSingleValue
	}
	return KindNone
}

// Bucket is one group in a terms aggregation result. Buckets are
// created and owned by the aggregation engine; the ordering machinery
// only reads them transiently inside comparator calls.
type Bucket interface {
	// DocCount returns the number of documents in the bucket.
	DocCount() int64
	// Ord returns the bucket's slot within the live aggregators'
	// per-bucket storage. Only meaningful during collection.
	Ord() int64
	// CompareTerm compares the grouping keys of two buckets.
	CompareTerm(other Bucket) int
	// Aggregations returns the materialized sub-aggregation
	// results. Only available once the bucket has been reduced;
	// nil during collection.
	Aggregations() Results
}
