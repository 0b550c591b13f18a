// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerFunc_Handle(t *testing.T) {
	t.Run("will delegate to the wrapped function", func(t *testing.T) {
		var called Message
		h := HandlerFunc(func(_ context.Context, msg Message) (Message, error) {
			called = msg
			return Message{Key: msg.Key, Value: []byte("reply")}, nil
		})

		out, err := h.Handle(context.Background(), Message{Key: []byte("k"), Value: []byte("v")})
		assert.NoError(t, err)
		assert.Equal(t, []byte("k"), called.Key)
		assert.Equal(t, []byte("k"), out.Key)
		assert.Equal(t, []byte("reply"), out.Value)
	})
}

func TestAttrs(t *testing.T) {
	t.Run("will name the attribute after the OpenTelemetry messaging semantic convention", func(t *testing.T) {
		assert.Equal(t, "messaging.consumer.group.name", GroupIDAttr("g").Key)
		assert.Equal(t, "messaging.destination.name", TopicAttr("t").Key)
		assert.Equal(t, "messaging.destination.partition.id", PartitionAttr(1).Key)
		assert.Equal(t, "messaging.kafka.offset", OffsetAttr(1).Key)
	})
}
