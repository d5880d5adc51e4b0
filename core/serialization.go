// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted record types. Written by hand from the
// mus-go primitive serializers; field order is the wire format and must not
// change without a storage migration.

var (
	topicsMUS = ord.NewSliceSer[string](ord.String)
	vectorMUS = ord.NewSliceSer[float32](raw.Float32)
)

// Timestamps are persisted as microseconds since the Unix epoch.
func marshalTime(t time.Time, bs []byte) int {
	return varint.Int64.Marshal(t.UnixMicro(), bs)
}

func unmarshalTime(bs []byte) (time.Time, int, error) {
	micros, n, err := varint.Int64.Unmarshal(bs)
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(micros).UTC(), n, nil
}

func sizeTime(t time.Time) int {
	return varint.Int64.Size(t.UnixMicro())
}

// ConversationMUS serializes Conversation records.
var ConversationMUS = conversationMUS{}

type conversationMUS struct{}

func (s conversationMUS) Marshal(v Conversation, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Summary, bs[n:])
	n += topicsMUS.Marshal(v.Topics, bs[n:])
	n += varint.Int.Marshal(v.ClusterId, bs[n:])
	n += ord.String.Marshal(v.ClusterName, bs[n:])
	n += varint.Int.Marshal(v.MessageCount, bs[n:])
	n += ord.Bool.Marshal(v.Positioned, bs[n:])
	n += raw.Float64.Marshal(v.Position.X, bs[n:])
	n += raw.Float64.Marshal(v.Position.Y, bs[n:])
	n += raw.Float64.Marshal(v.Position.Z, bs[n:])
	n += raw.Float64.Marshal(v.Position.Magnitude, bs[n:])
	n += marshalTime(v.CreatedAt, bs[n:])
	n += marshalTime(v.UpdatedAt, bs[n:])
	return n
}

func (s conversationMUS) Unmarshal(bs []byte) (v Conversation, n int, err error) {
	var n1 int
	if v.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Summary, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Topics, n1, err = topicsMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ClusterId, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.ClusterName, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.MessageCount, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Positioned, n1, err = ord.Bool.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Position.X, n1, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Position.Y, n1, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Position.Z, n1, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Position.Magnitude, n1, err = raw.Float64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.CreatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.UpdatedAt, n1, err = unmarshalTime(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (s conversationMUS) Size(v Conversation) (size int) {
	size = ord.String.Size(v.Id)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Summary)
	size += topicsMUS.Size(v.Topics)
	size += varint.Int.Size(v.ClusterId)
	size += ord.String.Size(v.ClusterName)
	size += varint.Int.Size(v.MessageCount)
	size += ord.Bool.Size(v.Positioned)
	size += raw.Float64.Size(v.Position.X)
	size += raw.Float64.Size(v.Position.Y)
	size += raw.Float64.Size(v.Position.Z)
	size += raw.Float64.Size(v.Position.Magnitude)
	size += sizeTime(v.CreatedAt)
	size += sizeTime(v.UpdatedAt)
	return size
}

func (s conversationMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

// VectorEntryMUS serializes vector store entries.
var VectorEntryMUS = vectorEntryMUS{}

type vectorEntryMUS struct{}

func (s vectorEntryMUS) Marshal(v VectorEntry, bs []byte) (n int) {
	n = ord.String.Marshal(v.Id, bs)
	n += ord.String.Marshal(v.ConversationId, bs[n:])
	n += ord.String.Marshal(v.Title, bs[n:])
	n += ord.String.Marshal(v.Document, bs[n:])
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	n += varint.Uint64.Marshal(v.Seq, bs[n:])
	return n
}

func (s vectorEntryMUS) Unmarshal(bs []byte) (v VectorEntry, n int, err error) {
	var n1 int
	if v.Id, n, err = ord.String.Unmarshal(bs); err != nil {
		return
	}
	if v.ConversationId, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Title, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Document, n1, err = ord.String.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	if v.Seq, n1, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (s vectorEntryMUS) Size(v VectorEntry) (size int) {
	size = ord.String.Size(v.Id)
	size += ord.String.Size(v.ConversationId)
	size += ord.String.Size(v.Title)
	size += ord.String.Size(v.Document)
	size += vectorMUS.Size(v.Vector)
	size += varint.Uint64.Size(v.Seq)
	return size
}

func (s vectorEntryMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}

// CachedEmbedding is the persisted form of an embedding cache entry.
type CachedEmbedding struct {
	ContentHash ContentHash
	Vector      []float32
}

// CachedEmbeddingMUS serializes embedding cache entries.
var CachedEmbeddingMUS = cachedEmbeddingMUS{}

type cachedEmbeddingMUS struct{}

func (s cachedEmbeddingMUS) Marshal(v CachedEmbedding, bs []byte) (n int) {
	n = varint.Uint64.Marshal(uint64(v.ContentHash), bs)
	n += vectorMUS.Marshal(v.Vector, bs[n:])
	return n
}

func (s cachedEmbeddingMUS) Unmarshal(bs []byte) (v CachedEmbedding, n int, err error) {
	var (
		hash uint64
		n1   int
	)
	if hash, n, err = varint.Uint64.Unmarshal(bs); err != nil {
		return
	}
	v.ContentHash = ContentHash(hash)
	if v.Vector, n1, err = vectorMUS.Unmarshal(bs[n:]); err != nil {
		return v, n + n1, err
	}
	n += n1
	return v, n, nil
}

func (s cachedEmbeddingMUS) Size(v CachedEmbedding) (size int) {
	size = varint.Uint64.Size(uint64(v.ContentHash))
	size += vectorMUS.Size(v.Vector)
	return size
}

func (s cachedEmbeddingMUS) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return n, err
}
