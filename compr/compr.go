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

// Package compr wraps the third-party compression codecs used for
// shard-result frames behind a pair of small interfaces.
package compr

import (
	"fmt"
	"runtime"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
)

// Compressor compresses whole frame payloads.
type Compressor interface {
	// Name identifies the codec; it is written into the frame
	// header so the receiving side can pick the matching
	// Decompressor.
	Name() string
	// Compress appends the compressed contents of src to dst
	// and returns the extended slice. src and dst must not
	// overlap.
	Compress(dst, src []byte) []byte
}

// Decompressor decompresses whole frame payloads.
type Decompressor interface {
	Name() string
	// Decompress decodes src into dst, which must be sized to
	// exactly the decoded length recorded in the frame header.
	// It is safe for concurrent use.
	Decompress(dst, src []byte) error
}

type zstdCodec struct {
	enc *zstd.Encoder
}

func (z zstdCodec) Name() string { return "zstd" }

func (z zstdCodec) Compress(dst, src []byte) []byte {
	return z.enc.EncodeAll(src, dst)
}

var zstdDec *zstd.Decoder

func init() {
	d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(runtime.GOMAXPROCS(0)))
	if err != nil {
		panic(err)
	}
	zstdDec = d
}

type zstdDecompressor struct{}

func (zstdDecompressor) Name() string { return "zstd" }

func (zstdDecompressor) Decompress(dst, src []byte) error {
	out, err := zstdDec.DecodeAll(src, dst[:0:len(dst)])
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return fmt.Errorf("compr: zstd decoded %d bytes, want %d", len(out), len(dst))
	}
	return nil
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) Compress(dst, src []byte) []byte {
	out := s2.Encode(dst[len(dst):cap(dst)], src)
	if len(dst) == 0 {
		return out
	}
	return append(dst, out...)
}

func (s2Codec) Decompress(dst, src []byte) error {
	out, err := s2.Decode(dst[:0:len(dst)], src)
	if err != nil {
		return err
	}
	if len(out) != len(dst) {
		return fmt.Errorf("compr: s2 decoded %d bytes, want %d", len(out), len(dst))
	}
	return nil
}

// Compression returns the Compressor registered under name,
// or nil if the codec is unknown.
func Compression(name string) Compressor {
	switch name {
	case "zstd":
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		return zstdCodec{enc}
	case "s2":
		return s2Codec{}
	}
	return nil
}

// Decompression returns the Decompressor registered under name,
// or nil if the codec is unknown.
func Decompression(name string) Decompressor {
	switch name {
	case "zstd":
		return zstdDecompressor{}
	case "s2":
		return s2Codec{}
	}
	return nil
}
