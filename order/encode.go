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
	"errors"
	"fmt"

	"github.com/siftlabs/sift/wire"
)

// ErrUnknownOrderID is returned by Decode when the stream carries an
// order id this implementation does not recognize. The stream is
// unreliable past that point; callers must abandon the whole decode.
var ErrUnknownOrderID = errors.New("order: unknown order id")

// Encode writes o to w. Count and term orders are a bare id byte.
// Aggregation orders carry their direction and path; on wire
// generations without deep-path support only the terminal path token
// is written, as a (name, has-key, key) triple. Compound orders
// write their length and then each member, in tie-break order.
func Encode(w *wire.Writer, o Order) {
	w.WriteByte(byte(o.ID()))
	switch t := o.(type) {
	case *Aggregation:
		w.WriteBool(t.asc)
		if w.Version().SupportsDeepPaths() {
			w.WriteString(t.path.String())
		} else {
			tok := t.path.Last()
			w.WriteString(tok.Name)
			w.WriteBool(tok.Key != "")
			if tok.Key != "" {
				w.WriteString(tok.Key)
			}
		}
	case *Compound:
		w.WriteUvarint(uint64(len(t.seq)))
		for _, inner := range t.seq {
			Encode(w, inner)
		}
	}
}

// Decode reads one order from r, mirroring Encode at r's wire
// generation.
func Decode(r *wire.Reader) (Order, error) {
	id, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch int8(id) {
	case idCountDesc:
		return CountDesc, nil
	case idCountAsc:
		return CountAsc, nil
	case idTermDesc:
		return TermDesc, nil
	case idTermAsc:
		return TermAsc, nil
	case idAggregation:
		asc, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if r.Version().SupportsDeepPaths() {
			key, err := r.ReadString()
			if err != nil {
				return nil, err
			}
			return ByAggregation(key, asc)
		}
		name, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		hasKey, err := r.ReadBool()
		if err != nil {
			return nil, err
		}
		if !hasKey {
			return ByAggregation(name, asc)
		}
		key, err := r.ReadString()
		if err != nil {
			return nil, err
		}
		// legacy single-token encoding: the dotted form is
		// reconstructed by concatenation
		return ByAggregation(name+"."+key, asc)
	case idCompound:
		n, err := r.ReadUvarint()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("order: compound order with no members")
		}
		seq := make([]Order, 0, min(n, 64))
		for i := uint64(0); i < n; i++ {
			inner, err := Decode(r)
			if err != nil {
				return nil, err
			}
			seq = append(seq, inner)
		}
		return NewCompound(seq...), nil
	}
	return nil, fmt.Errorf("%w %d", ErrUnknownOrderID, int8(id))
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
