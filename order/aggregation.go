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

package order

import (
	"fmt"

	"github.com/siftlabs/sift/agg"
)

// Aggregation orders buckets by a value produced by a named
// sub-aggregation anywhere in the tree below the aggregator that
// owns the order.
type Aggregation struct {
	path *Path
	asc  bool
}

// ByAggregation builds an aggregation order from the textual path
// form "name1>name2.metric".
func ByAggregation(key string, asc bool) (*Aggregation, error) {
	p, err := ParsePath(key)
	if err != nil {
		return nil, err
	}
	return &Aggregation{path: p, asc: asc}, nil
}

// Path returns the order's reference chain.
func (a *Aggregation) Path() *Path { return a.path }

// Ascending reports the order's direction.
func (a *Aggregation) Ascending() bool { return a.asc }

func (a *Aggregation) ID() int8 { return idAggregation }

func (a *Aggregation) Render() any {
	return map[string]string{a.path.String(): direction(a.asc)}
}

func (a *Aggregation) sealed() {}

// Comparator returns the reduce-time comparator over materialized
// bucket fields when ctx is nil. When ctx is the live aggregator
// owning this order, it instead resolves the path once and returns a
// comparator that reads values directly from the target aggregator's
// per-ordinal storage, so that candidate buckets never have to be
// materialized just to be compared. The order must have been
// validated against ctx beforehand; comparator construction treats
// resolution failures as internal-consistency faults and panics.
func (a *Aggregation) Comparator(ctx agg.Aggregator) Comparator {
	if ctx == nil {
		return func(x, y agg.Bucket) int {
			return compareDiscardNaN(a.path.BucketValue(x), a.path.BucketValue(y), a.asc)
		}
	}

	target, err := a.path.Resolve(ctx)
	if err != nil {
		panic(fmt.Sprintf("order: comparator built before validation: %v", err))
	}
	key := a.path.Last().Key

	switch kind := agg.KindOf(target); kind {
	case agg.KindSingleBucket:
		if key != "" {
			panic(fmt.Sprintf("order: metric key %q on single-bucket target %q escaped validation", key, a.path))
		}
		sb := target.(agg.SingleBucket)
		mul := int64(-1)
		if a.asc {
			mul = 1
		}
		return func(x, y agg.Bucket) int {
			return compareInt64(mul*sb.BucketDocCount(x.Ord()), mul*sb.BucketDocCount(y.Ord()))
		}
	case agg.KindMultiValue:
		if key == "" {
			panic(fmt.Sprintf("order: missing metric key on multi-value target %q escaped validation", a.path))
		}
		mv := target.(agg.MultiValue)
		return func(x, y agg.Bucket) int {
			return compareDiscardNaN(mv.MetricNamed(key, x.Ord()), mv.MetricNamed(key, y.Ord()), a.asc)
		}
	case agg.KindSingleValue:
		sv := target.(agg.SingleValue)
		return func(x, y agg.Bucket) int {
			return compareDiscardNaN(sv.Metric(x.Ord()), sv.Metric(y.Ord()), a.asc)
		}
	default:
		panic(fmt.Sprintf("order: unorderable target %q (%s) escaped validation", a.path, kind))
	}
}
