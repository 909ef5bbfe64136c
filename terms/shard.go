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

package terms

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/siftlabs/sift/agg"
	"github.com/siftlabs/sift/compr"
	"github.com/siftlabs/sift/order"
	"github.com/siftlabs/sift/wire"
)

// maxFrameBody caps the decoded payload size a frame header may
// declare, so a corrupt length cannot drive a huge allocation.
const maxFrameBody = 1 << 30

// ShardResult is one shard's partial view of a terms aggregation:
// its top buckets under the request's order, tagged with the query
// they belong to.
type ShardResult struct {
	QueryID uuid.UUID
	Name    string
	Order   order.Order
	Buckets []*Bucket
}

// Capture snapshots the aggregation's current top n buckets,
// materializes their sub-aggregation results, and wraps them for
// transport under queryID.
func (t *Terms) Capture(queryID uuid.UUID, n int) *ShardResult {
	top := t.Top(n)
	t.Materialize(top)
	return &ShardResult{
		QueryID: queryID,
		Name:    t.name,
		Order:   t.ord,
		Buckets: top,
	}
}

// Encode frames the shard result for the given wire generation.
//
// The frame is: query id (16 bytes), aggregation name, codec name,
// decoded body size, blake2b-256 body checksum (32 bytes), and the
// length-prefixed compressed body. The body carries the order
// followed by the buckets.
func (s *ShardResult) Encode(v wire.Version, comp compr.Compressor) ([]byte, error) {
	if comp == nil {
		return nil, fmt.Errorf("terms: nil compressor")
	}
	body := wire.NewWriter(v)
	order.Encode(body, s.Order)
	body.WriteUvarint(uint64(len(s.Buckets)))
	for _, b := range s.Buckets {
		body.WriteString(b.Term)
		body.WriteUvarint(uint64(b.Count))
		agg.EncodeResults(body, b.aggs)
	}
	payload := body.Bytes()
	sum := blake2b.Sum256(payload)

	frame := wire.NewWriter(v)
	frame.WriteRaw(s.QueryID[:])
	frame.WriteString(s.Name)
	frame.WriteString(comp.Name())
	frame.WriteUvarint(uint64(len(payload)))
	frame.WriteRaw(sum[:])
	frame.WriteBytes(comp.Compress(nil, payload))
	return frame.Bytes(), nil
}

// DecodeShardResult parses a frame produced by Encode at the same
// wire generation. The checksum is verified before any of the body
// is interpreted.
func DecodeShardResult(buf []byte, v wire.Version) (*ShardResult, error) {
	r := wire.NewReader(buf, v)
	s := &ShardResult{}

	id, err := r.ReadRaw(len(s.QueryID))
	if err != nil {
		return nil, fmt.Errorf("terms: reading query id: %w", err)
	}
	copy(s.QueryID[:], id)
	if s.Name, err = r.ReadString(); err != nil {
		return nil, fmt.Errorf("terms: reading name: %w", err)
	}
	codec, err := r.ReadString()
	if err != nil {
		return nil, fmt.Errorf("terms: reading codec: %w", err)
	}
	dec := compr.Decompression(codec)
	if dec == nil {
		return nil, fmt.Errorf("terms: unknown codec %q", codec)
	}
	size, err := r.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("terms: reading body size: %w", err)
	}
	if size > maxFrameBody {
		return nil, fmt.Errorf("terms: body size %d exceeds limit", size)
	}
	sum, err := r.ReadRaw(blake2b.Size256)
	if err != nil {
		return nil, fmt.Errorf("terms: reading checksum: %w", err)
	}
	packed, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("terms: reading body: %w", err)
	}
	payload := make([]byte, size)
	if err := dec.Decompress(payload, packed); err != nil {
		return nil, fmt.Errorf("terms: decompressing body: %w", err)
	}
	if got := blake2b.Sum256(payload); !bytes.Equal(got[:], sum) {
		return nil, fmt.Errorf("terms: body checksum mismatch")
	}

	body := wire.NewReader(payload, v)
	if s.Order, err = order.Decode(body); err != nil {
		return nil, fmt.Errorf("terms: decoding order: %w", err)
	}
	n, err := body.ReadUvarint()
	if err != nil {
		return nil, fmt.Errorf("terms: reading bucket count: %w", err)
	}
	s.Buckets = make([]*Bucket, 0, n)
	for i := uint64(0); i < n; i++ {
		b := &Bucket{ord: -1}
		if b.Term, err = body.ReadString(); err != nil {
			return nil, fmt.Errorf("terms: bucket %d: %w", i, err)
		}
		count, err := body.ReadUvarint()
		if err != nil {
			return nil, fmt.Errorf("terms: bucket %d: %w", i, err)
		}
		b.Count = int64(count)
		if b.aggs, err = agg.DecodeResults(body); err != nil {
			return nil, fmt.Errorf("terms: bucket %d: %w", i, err)
		}
		s.Buckets = append(s.Buckets, b)
	}
	if body.Len() != 0 {
		return nil, fmt.Errorf("terms: %d trailing body bytes", body.Len())
	}
	return s, nil
}
