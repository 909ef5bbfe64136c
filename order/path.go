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
	"strings"

	"golang.org/x/exp/slices"

	"github.com/siftlabs/sift/agg"
)

// Token is one segment of a Path: an aggregation name, plus an
// optional metric key on the terminal segment only.
type Token struct {
	Name string
	Key  string
}

func (t Token) String() string {
	if t.Key != "" {
		return t.Name + "." + t.Key
	}
	return t.Name
}

// Path is a reference chain locating a named sub-aggregation (and
// optionally a named metric within it) relative to a root
// aggregator. The textual form is "name1>name2.metric".
type Path struct {
	tokens []Token
}

// ParsePath parses the textual path form. Segments are separated by
// '>'; the terminal segment may carry a metric key after the last
// '.'.
func ParsePath(s string) (*Path, error) {
	if s == "" {
		return nil, fmt.Errorf("order: empty order path")
	}
	parts := strings.Split(s, ">")
	tokens := make([]Token, len(parts))
	for i, part := range parts {
		name, key := part, ""
		if dot := strings.LastIndexByte(part, '.'); dot >= 0 {
			if i != len(parts)-1 {
				return nil, fmt.Errorf("order: path %q: metric key on non-terminal segment %q", s, part)
			}
			name, key = part[:dot], part[dot+1:]
			if key == "" {
				return nil, fmt.Errorf("order: path %q: empty metric key", s)
			}
		}
		if name == "" {
			return nil, fmt.Errorf("order: path %q: empty segment", s)
		}
		tokens[i] = Token{Name: name, Key: key}
	}
	return &Path{tokens: tokens}, nil
}

// Tokens returns a copy of the path's segments.
func (p *Path) Tokens() []Token { return slices.Clone(p.tokens) }

// Last returns the terminal segment.
func (p *Path) Last() Token { return p.tokens[len(p.tokens)-1] }

func (p *Path) String() string {
	var sb strings.Builder
	for i, tok := range p.tokens {
		if i > 0 {
			sb.WriteByte('>')
		}
		sb.WriteString(tok.String())
	}
	return sb.String()
}

// PathError is the failure to resolve an order path against an
// aggregator tree, reported during setup-time validation.
type PathError struct {
	Path    string // the full textual path
	Segment string // the segment that failed to resolve
	Reason  string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("order: path %q: segment %q: %s", e.Path, e.Segment, e.Reason)
}

// Resolve walks the live aggregator tree rooted at root and returns
// the aggregator named by the path.
func (p *Path) Resolve(root agg.Aggregator) (agg.Aggregator, error) {
	cur := root
	for _, tok := range p.tokens {
		next := cur.Sub(tok.Name)
		if next == nil {
			return nil, &PathError{Path: p.String(), Segment: tok.Name, Reason: "no such aggregation"}
		}
		cur = next
	}
	return cur, nil
}

// Validate resolves the path against the aggregator tree rooted at
// root and checks that the metric key is consistent with the
// capability shape of the resolved target. Validation runs once per
// request, before any collection begins; comparator construction
// relies on it and does not re-validate.
func (p *Path) Validate(root agg.Aggregator) error {
	cur := root
	for i, tok := range p.tokens {
		next := cur.Sub(tok.Name)
		if next == nil {
			return &PathError{Path: p.String(), Segment: tok.Name, Reason: "no such aggregation"}
		}
		if i < len(p.tokens)-1 {
			if agg.KindOf(next) != agg.KindSingleBucket {
				return &PathError{
					Path:    p.String(),
					Segment: tok.Name,
					Reason:  "non-terminal segment must name a single-bucket aggregation",
				}
			}
			cur = next
			continue
		}
		switch kind := agg.KindOf(next); kind {
		case agg.KindSingleBucket, agg.KindSingleValue:
			if tok.Key != "" {
				return &PathError{
					Path:    p.String(),
					Segment: tok.String(),
					Reason:  fmt.Sprintf("unexpected metric key %q on a %s aggregation", tok.Key, kind),
				}
			}
		case agg.KindMultiValue:
			if tok.Key == "" {
				return &PathError{
					Path:    p.String(),
					Segment: tok.String(),
					Reason:  "metric key required for a multi-value metric aggregation",
				}
			}
			if !next.(agg.MultiValue).HasMetric(tok.Key) {
				return &PathError{
					Path:    p.String(),
					Segment: tok.String(),
					Reason:  fmt.Sprintf("no metric named %q", tok.Key),
				}
			}
		default:
			return &PathError{
				Path:    p.String(),
				Segment: tok.String(),
				Reason:  "buckets cannot be ordered by this aggregation",
			}
		}
		cur = next
	}
	return nil
}

// BucketValue resolves the path inside a materialized bucket and
// returns the referenced metric value. It requires the path to have
// been validated; a bucket whose recorded results do not match the
// validated shape is an internal-consistency fault and panics rather
// than returning an arbitrary ordering.
func (p *Path) BucketValue(b agg.Bucket) float64 {
	res := b.Aggregations()
	for i, tok := range p.tokens {
		v := res.Get(tok.Name)
		if v == nil {
			panic(fmt.Sprintf("order: bucket has no %q result on path %q", tok.Name, p))
		}
		if i < len(p.tokens)-1 {
			nested, ok := v.(agg.Nested)
			if !ok {
				panic(fmt.Sprintf("order: result %q on path %q has no sub-results", tok.Name, p))
			}
			res = nested.SubResults()
			continue
		}
		if tok.Key != "" {
			nm, ok := v.(agg.NamedMetrics)
			if !ok {
				panic(fmt.Sprintf("order: result %q on path %q has no named metrics", tok.Name, p))
			}
			val, ok := nm.MetricNamed(tok.Key)
			if !ok {
				panic(fmt.Sprintf("order: result %q on path %q has no metric %q", tok.Name, p, tok.Key))
			}
			return val
		}
		sm, ok := v.(agg.SingleMetric)
		if !ok {
			panic(fmt.Sprintf("order: result %q on path %q is not a single metric", tok.Name, p))
		}
		return sm.Metric()
	}
	panic("unreachable")
}
