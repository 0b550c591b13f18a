//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRuntime_ExactlyOnce(t *testing.T) {
	brokers, cleanup := setupKafkaContainer(t)
	defer cleanup()

	const (
		requestTopic  = "requests"
		responseTopic = "responses"
		groupID       = "gateway-test"
	)
	createTopic(t, brokers, requestTopic, 3)
	createTopic(t, brokers, responseTopic, 1)

	handler := HandlerFunc(func(_ context.Context, msg Message) (Message, error) {
		return Message{
			Key:   msg.Key,
			Value: []byte(strings.ToUpper(string(msg.Value))),
		}, nil
	})

	rt := newTestRuntime(t, brokers, groupID, requestTopic, responseTopic, handler)
	defer rt.Close()

	produceTestMessages(t, brokers, requestTopic, []Message{
		testMessage("alpha"),
		testMessage("bravo"),
		testMessage("charlie"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	got := consumeTestMessages(t, brokers, responseTopic, 3, 20*time.Second)
	cancel()
	<-done

	require.Len(t, got, 3)
	values := make([]string, len(got))
	for i, m := range got {
		values[i] = string(m.Value)
	}
	require.ElementsMatch(t, []string{"ALPHA", "BRAVO", "CHARLIE"}, values)
}
