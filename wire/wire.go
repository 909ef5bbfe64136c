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

// Package wire implements the byte-level stream format used to
// exchange partial aggregation results between peers.
//
// The format is position-dependent and carries no self-description;
// both sides must agree on the negotiated Version before any bytes
// are exchanged. Integers are unsigned LEB128 varints, strings are
// varint-length-prefixed UTF-8, and booleans are a single 0/1 byte.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Version is the wire-protocol generation negotiated with a peer.
//
// The Version is an input to encoding and decoding; negotiation
// itself happens in the surrounding cluster layer.
type Version uint32

const (
	// V1 is the original wire generation. Aggregation order paths
	// are encoded as a single trailing token (name, has-metric flag,
	// optional metric key), so V1 peers can only see single-level
	// path references.
	V1 Version = 1

	// V2 introduced full dotted-path encoding for aggregation
	// orders.
	V2 Version = 2

	// Current is the generation spoken between up-to-date peers.
	Current = V2
)

// SupportsDeepPaths reports whether this wire generation can carry
// multi-level aggregation order paths.
func (v Version) SupportsDeepPaths() bool { return v >= V2 }

func (v Version) String() string { return fmt.Sprintf("v%d", uint32(v)) }

// Writer serializes values into an in-memory buffer.
// The zero value writes at wire.Current.
type Writer struct {
	buf  []byte
	vers Version
}

// NewWriter constructs a Writer targeting the given wire generation.
func NewWriter(v Version) *Writer {
	return &Writer{vers: v}
}

// Version returns the wire generation this writer targets.
func (w *Writer) Version() Version {
	if w.vers == 0 {
		return Current
	}
	return w.vers
}

// Bytes returns the encoded contents.
// The returned slice aliases the writer's internal buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Size returns the number of bytes written so far.
func (w *Writer) Size() int { return len(w.buf) }

// Reset discards the buffered contents but keeps the version
// and the allocated capacity.
func (w *Writer) Reset() { w.buf = w.buf[:0] }

// WriteByte appends a single raw byte.
func (w *Writer) WriteByte(b byte) {
	w.buf = append(w.buf, b)
}

// WriteBool appends a boolean as a single 0/1 byte.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

// WriteUvarint appends u as an unsigned LEB128 varint.
func (w *Writer) WriteUvarint(u uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], u)
	w.buf = append(w.buf, tmp[:n]...)
}

// WriteString appends a varint length prefix followed by the raw
// UTF-8 bytes of s.
func (w *Writer) WriteString(s string) {
	w.WriteUvarint(uint64(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteFloat64 appends f as 8 big-endian bytes of its IEEE-754
// representation.
func (w *Writer) WriteFloat64(f float64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], math.Float64bits(f))
	w.buf = append(w.buf, tmp[:]...)
}

// WriteRaw appends b verbatim, with no length prefix.
func (w *Writer) WriteRaw(b []byte) {
	w.buf = append(w.buf, b...)
}

// WriteBytes appends a varint length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUvarint(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

// Reader decodes values previously produced by a Writer
// speaking the same wire generation.
type Reader struct {
	buf  []byte
	pos  int
	vers Version
}

// NewReader constructs a Reader over buf at the given wire
// generation.
func NewReader(buf []byte, v Version) *Reader {
	return &Reader{buf: buf, vers: v}
}

// Version returns the wire generation this reader assumes.
func (r *Reader) Version() Version {
	if r.vers == 0 {
		return Current
	}
	return r.vers
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// ReadByte consumes and returns one raw byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos]
	r.pos++
	return b, nil
}

// ReadBool consumes a single byte and interprets it as a boolean.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("wire: invalid boolean byte %#x", b)
	}
}

// ReadUvarint consumes an unsigned LEB128 varint.
func (r *Reader) ReadUvarint() (uint64, error) {
	u, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		if n == 0 {
			return 0, io.ErrUnexpectedEOF
		}
		return 0, fmt.Errorf("wire: varint overflows 64 bits")
	}
	r.pos += n
	return u, nil
}

// ReadString consumes a length-prefixed string.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return "", err
	}
	if n > uint64(r.Len()) {
		return "", io.ErrUnexpectedEOF
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

// ReadFloat64 consumes 8 big-endian bytes as an IEEE-754 float.
func (r *Reader) ReadFloat64() (float64, error) {
	if r.Len() < 8 {
		return 0, io.ErrUnexpectedEOF
	}
	f := math.Float64frombits(binary.BigEndian.Uint64(r.buf[r.pos:]))
	r.pos += 8
	return f, nil
}

// ReadRaw consumes exactly n raw bytes.
// The returned slice aliases the reader's buffer.
func (r *Reader) ReadRaw(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, io.ErrUnexpectedEOF
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBytes consumes a length-prefixed byte slice.
// The returned slice aliases the reader's buffer.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.Len()) {
		return nil, io.ErrUnexpectedEOF
	}
	return r.ReadRaw(int(n))
}
