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

package compr

import (
	"bytes"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("the same eleven bytes "), 400)
	for _, name := range []string{"zstd", "s2"} {
		comp := Compression(name)
		if comp == nil || comp.Name() != name {
			t.Fatalf("bad compressor for %q: %v", name, comp)
		}
		dec := Decompression(name)
		if dec == nil || dec.Name() != name {
			t.Fatalf("bad decompressor for %q: %v", name, dec)
		}
		packed := comp.Compress(nil, src)
		if len(packed) >= len(src) {
			t.Errorf("%s: compressible input grew from %d to %d bytes", name, len(src), len(packed))
		}
		dst := make([]byte, len(src))
		if err := dec.Decompress(dst, packed); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !bytes.Equal(dst, src) {
			t.Errorf("%s: round trip mismatch", name)
		}
		// wrong output size must be rejected
		short := make([]byte, len(src)-1)
		if err := dec.Decompress(short, packed); err == nil {
			t.Errorf("%s: short destination accepted", name)
		}
	}
}

func TestUnknownCodec(t *testing.T) {
	if Compression("lz77") != nil {
		t.Errorf("unknown compressor accepted")
	}
	if Decompression("lz77") != nil {
		t.Errorf("unknown decompressor accepted")
	}
}
