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
	"bytes"
	"encoding/json"
	"fmt"
)

// ParseJSON parses an order specification of the form
// {"_count": "desc"}, {"_term": "asc"},
// {"<agg-name>[.<metric-key>]": "asc"|"desc"}, or an array of such
// objects for a compound order. Key order within an object is
// significant (it is the tie-break priority), so parsing walks the
// document tokens rather than unmarshalling into a map.
func ParseJSON(data []byte) (Order, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	o, err := parseOrder(dec)
	if err != nil {
		return nil, fmt.Errorf("order: parsing order spec: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("order: parsing order spec: trailing data")
	}
	return o, nil
}

func parseOrder(dec *json.Decoder) (Order, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("expected an object or array, got %v", tok)
	}
	var seq []Order
	switch delim {
	case '{':
		if seq, err = parseObject(dec, seq); err != nil {
			return nil, err
		}
	case '[':
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			if tok != json.Delim('{') {
				return nil, fmt.Errorf("expected an order object, got %v", tok)
			}
			if seq, err = parseObject(dec, seq); err != nil {
				return nil, err
			}
		}
		if _, err := dec.Token(); err != nil { // closing ']'
			return nil, err
		}
	default:
		return nil, fmt.Errorf("expected an object or array, got %v", tok)
	}
	switch len(seq) {
	case 0:
		return nil, fmt.Errorf("no orders given")
	case 1:
		return seq[0], nil
	}
	return NewCompound(seq...), nil
}

// parseObject consumes the body of one order object (the opening '{'
// already read) and appends its entries to seq in document order.
func parseObject(dec *json.Decoder, seq []Order) ([]Order, error) {
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key := keyTok.(string)
		valTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		dir, ok := valTok.(string)
		if !ok {
			return nil, fmt.Errorf("order %q: direction must be a string, got %v", key, valTok)
		}
		var asc bool
		switch dir {
		case "asc":
			asc = true
		case "desc":
			asc = false
		default:
			return nil, fmt.Errorf("order %q: direction must be \"asc\" or \"desc\", got %q", key, dir)
		}
		o, err := byKey(key, asc)
		if err != nil {
			return nil, err
		}
		seq = append(seq, o)
	}
	if _, err := dec.Token(); err != nil { // closing '}'
		return nil, err
	}
	return seq, nil
}

// byKey maps one order key to its Order: the reserved "_count" and
// "_term" keys yield the singletons, anything else is an aggregation
// path.
func byKey(key string, asc bool) (Order, error) {
	switch key {
	case "_count":
		if asc {
			return CountAsc, nil
		}
		return CountDesc, nil
	case "_term":
		if asc {
			return TermAsc, nil
		}
		return TermDesc, nil
	}
	return ByAggregation(key, asc)
}

// MarshalJSON renders the order in the same shape ParseJSON accepts,
// so configuration can be echoed back in diagnostics.
func (o *simpleOrder) MarshalJSON() ([]byte, error) { return json.Marshal(o.Render()) }

func (a *Aggregation) MarshalJSON() ([]byte, error) { return json.Marshal(a.Render()) }

func (c *Compound) MarshalJSON() ([]byte, error) { return json.Marshal(c.Render()) }
