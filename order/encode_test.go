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
	"errors"
	"reflect"
	"testing"

	"github.com/siftlabs/sift/wire"
)

func mustAgg(t *testing.T, path string, asc bool) *Aggregation {
	t.Helper()
	o, err := ByAggregation(path, asc)
	if err != nil {
		t.Fatalf("ByAggregation(%q): %v", path, err)
	}
	return o
}

func roundTrip(t *testing.T, o Order, v wire.Version) Order {
	t.Helper()
	w := wire.NewWriter(v)
	Encode(w, o)
	r := wire.NewReader(w.Bytes(), v)
	got, err := Decode(r)
	if err != nil {
		t.Fatalf("Decode(%v): %v", o.Render(), err)
	}
	if r.Len() != 0 {
		t.Fatalf("Decode(%v): %d bytes left over", o.Render(), r.Len())
	}
	return got
}

func TestSimpleRoundTrip(t *testing.T) {
	for _, v := range []wire.Version{wire.V1, wire.V2} {
		for _, o := range []Order{CountDesc, CountAsc, TermDesc, TermAsc} {
			got := roundTrip(t, o, v)
			// simple orders decode to the same singleton
			if got != o {
				t.Errorf("%s: %v decoded to a different instance", v, o.Render())
			}
		}
	}
}

func TestAggregationRoundTrip(t *testing.T) {
	orders := []*Aggregation{
		mustAgg(t, "avg_price", true),
		mustAgg(t, "stats.max", false),
		mustAgg(t, "a>b>stats.min", true),
	}
	for _, o := range orders {
		got := roundTrip(t, o, wire.Current)
		ga, ok := got.(*Aggregation)
		if !ok {
			t.Fatalf("decoded %T", got)
		}
		if ga.Path().String() != o.Path().String() || ga.Ascending() != o.Ascending() {
			t.Errorf("round trip %v -> %v", o.Render(), got.Render())
		}
		if !reflect.DeepEqual(got.Render(), o.Render()) {
			t.Errorf("render mismatch: %v vs %v", got.Render(), o.Render())
		}
	}
}

func TestCompoundRoundTrip(t *testing.T) {
	o := NewCompound(
		CountDesc,
		mustAgg(t, "match>stats.avg", false),
		NewCompound(TermAsc, CountAsc), // nesting is legal even if unusual
	)
	got := roundTrip(t, o, wire.Current)
	if !reflect.DeepEqual(got.Render(), o.Render()) {
		t.Errorf("render mismatch:\n got %v\nwant %v", got.Render(), o.Render())
	}
	if !IsCountDesc(roundTrip(t, NewCompound(CountDesc, TermAsc), wire.Current)) {
		t.Errorf("default count order lost its shape over the wire")
	}
}

func TestLegacyPathEncoding(t *testing.T) {
	// a single-segment path survives the legacy two-field encoding
	for _, path := range []string{"avg_price", "stats.max"} {
		o := mustAgg(t, path, true)
		got := roundTrip(t, o, wire.V1).(*Aggregation)
		if got.Path().String() != path || !got.Ascending() {
			t.Errorf("legacy round trip %q -> %q", path, got.Path().String())
		}
	}

	// byte-exact legacy layout: id, asc, name, has-key, key
	w := wire.NewWriter(wire.V1)
	Encode(w, mustAgg(t, "stats.max", true))
	want := []byte{
		0x00,                          // aggregation id
		0x01,                          // ascending
		0x05, 's', 't', 'a', 't', 's', // terminal token name
		0x01,               // has metric key
		0x03, 'm', 'a', 'x', // metric key
	}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("legacy bytes:\n got %x\nwant %x", w.Bytes(), want)
	}

	// legacy peers cannot see more than the terminal token of a
	// deep path
	got := roundTrip(t, mustAgg(t, "a>b>stats.max", false), wire.V1).(*Aggregation)
	if got.Path().String() != "stats.max" {
		t.Errorf("deep path over legacy wire = %q, want %q", got.Path().String(), "stats.max")
	}
}

func TestCurrentPathEncoding(t *testing.T) {
	// byte-exact current layout: id, asc, full path string
	w := wire.NewWriter(wire.V2)
	Encode(w, mustAgg(t, "a>stats.max", false))
	want := append([]byte{0x00, 0x00, 0x0b}, "a>stats.max"...)
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("current bytes:\n got %x\nwant %x", w.Bytes(), want)
	}
}

func TestDecodeErrors(t *testing.T) {
	// unknown id is fatal
	_, err := Decode(wire.NewReader([]byte{0x2a}, wire.Current))
	if !errors.Is(err, ErrUnknownOrderID) {
		t.Errorf("unknown id: %v", err)
	}

	// truncated aggregation order
	w := wire.NewWriter(wire.Current)
	w.WriteByte(0x00)
	w.WriteBool(true)
	if _, err := Decode(wire.NewReader(w.Bytes(), wire.Current)); err == nil {
		t.Errorf("truncated order decoded")
	}

	// empty compound is malformed
	w.Reset()
	w.WriteByte(0xff) // compound id
	w.WriteUvarint(0)
	if _, err := Decode(wire.NewReader(w.Bytes(), wire.Current)); err == nil {
		t.Errorf("empty compound decoded")
	}

	// compound member with a bad id surfaces the member error
	w.Reset()
	w.WriteByte(0xff)
	w.WriteUvarint(1)
	w.WriteByte(0x2a)
	if _, err := Decode(wire.NewReader(w.Bytes(), wire.Current)); !errors.Is(err, ErrUnknownOrderID) {
		t.Errorf("nested unknown id: %v", err)
	}
}
