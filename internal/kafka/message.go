// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"time"
)

// Header is a single Kafka record header.
type Header struct {
	Key   string
	Value []byte
}

// Message is the transport-agnostic view of a Kafka record that pipeline
// handlers operate on. It carries enough of the record to reconstruct a
// response record keyed identically to the request.
type Message struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   []Header
	Timestamp time.Time
}

// Handler processes a single request Message and returns the Message to be
// produced onto the operation's response topic. Handler implementations are
// expected to encode business-level failures (malformed payload, cache miss,
// upstream GPU error) into the returned Message's Value themselves; Handle
// should only return an error for conditions the caller cannot recover from
// locally (e.g. it should basically never error in steady state).
type Handler interface {
	Handle(ctx context.Context, msg Message) (Message, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg Message) (Message, error)

func (f HandlerFunc) Handle(ctx context.Context, msg Message) (Message, error) {
	return f(ctx, msg)
}
