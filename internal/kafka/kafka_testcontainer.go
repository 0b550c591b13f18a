//go:build testcontainers

// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package kafka

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"
)

// setupKafkaContainer starts a Kafka container and returns the broker address and cleanup function.
func setupKafkaContainer(t *testing.T) (brokers []string, cleanup func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "docker.io/apache/kafka-native:latest",
		ExposedPorts: []string{"9092/tcp"},
		Env: map[string]string{
			"KAFKA_NODE_ID":                   "1",
			"KAFKA_PROCESS_ROLES":             "broker,controller",
			"KAFKA_CONTROLLER_QUORUM_VOTERS":  "1@localhost:9093",
			"KAFKA_CONTROLLER_LISTENER_NAMES": "CONTROLLER",

			"KAFKA_LISTENERS":                      "PLAINTEXT://0.0.0.0:9092,CONTROLLER://0.0.0.0:9093",
			"KAFKA_ADVERTISED_LISTENERS":           "PLAINTEXT://localhost:9092",
			"KAFKA_LISTENER_SECURITY_PROTOCOL_MAP": "PLAINTEXT:PLAINTEXT,CONTROLLER:PLAINTEXT",
			"KAFKA_INTER_BROKER_LISTENER_NAME":     "PLAINTEXT",

			"KAFKA_LOG_DIRS": "/var/lib/kafka/data",

			"KAFKA_CLUSTER_ID": "WmV3pZkQR0O6n5j3x8j6bg==",

			"KAFKA_OFFSETS_TOPIC_REPLICATION_FACTOR":         "1",
			"KAFKA_TRANSACTION_STATE_LOG_REPLICATION_FACTOR": "1",
			"KAFKA_TRANSACTION_STATE_LOG_MIN_ISR":            "1",
			"KAFKA_GROUP_INITIAL_REBALANCE_DELAY_MS":         "0",
			"KAFKA_AUTO_CREATE_TOPICS_ENABLE":                "false",
		},
		WaitingFor: wait.ForLog("Kafka Server started").WithStartupTimeout(60 * time.Second),
	}

	kafkaContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start Kafka container")

	host, err := kafkaContainer.Host(ctx)
	require.NoError(t, err, "failed to resolve Kafka container host")
	port, err := kafkaContainer.MappedPort(ctx, "9092")
	require.NoError(t, err, "failed to resolve Kafka container port")

	brokerAddr := fmt.Sprintf("%s:%s", host, port.Port())

	cleanup = func() {
		ctx := context.Background()
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate Kafka container: %v", err)
		}
	}

	return []string{brokerAddr}, cleanup
}

// createTopic creates a Kafka topic with the specified number of partitions.
func createTopic(t *testing.T, brokers []string, topic string, partitions int32) {
	t.Helper()

	ctx := context.Background()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
	)
	require.NoError(t, err, "failed to create Kafka client")
	defer client.Close()

	admin := kadm.NewClient(client)

	resp, err := admin.CreateTopics(ctx, partitions, 1, nil, topic)
	require.NoError(t, err, "failed to create topic")

	for _, topicResp := range resp {
		require.NoError(t, topicResp.Err, "failed to create topic %s", topic)
	}

	time.Sleep(time.Second)
}

// produceTestMessages produces messages to a Kafka topic.
func produceTestMessages(t *testing.T, brokers []string, topic string, messages []Message) {
	t.Helper()

	ctx := context.Background()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
	)
	require.NoError(t, err, "failed to create Kafka client")
	defer client.Close()

	for i, msg := range messages {
		record := &kgo.Record{
			Topic: topic,
			Key:   msg.Key,
			Value: msg.Value,
		}

		if len(msg.Headers) > 0 {
			record.Headers = make([]kgo.RecordHeader, len(msg.Headers))
			for j, h := range msg.Headers {
				record.Headers[j] = kgo.RecordHeader{
					Key:   h.Key,
					Value: h.Value,
				}
			}
		}

		result := client.ProduceSync(ctx, record)
		require.NoError(t, result.FirstErr(), "failed to produce message %d", i)
	}

	require.NoError(t, client.Flush(ctx), "failed to flush messages")
}

// consumeTestMessages reads up to want messages from a topic using a plain
// (non-transactional) consumer, for asserting on what a Runtime produced.
func consumeTestMessages(t *testing.T, brokers []string, topic string, want int, timeout time.Duration) []Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(topic),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err, "failed to create consumer client")
	defer client.Close()

	var out []Message
	for len(out) < want {
		fetches := client.PollFetches(ctx)
		if ctx.Err() != nil {
			break
		}
		fetches.EachRecord(func(r *kgo.Record) {
			out = append(out, toMessage(r))
		})
	}
	return out
}

// newTestRuntime creates a new Runtime instance for testing a single
// operation's request/response topic pair.
func newTestRuntime(t *testing.T, brokers []string, groupID, requestTopic, responseTopic string, handler Handler) *Runtime {
	t.Helper()

	rt, err := NewRuntime(OperationConfig{
		Name:          "test-" + groupID,
		Brokers:       brokers,
		GroupID:       groupID,
		RequestTopic:  requestTopic,
		ResponseTopic: responseTopic,
		Handler:       handler,
	})
	require.NoError(t, err, "failed to build test runtime")
	return rt
}

// testMessage creates a test Message with the given value.
func testMessage(value string) Message {
	return Message{
		Key:   []byte(fmt.Sprintf("key-%s", value)),
		Value: []byte(value),
	}
}

// testMessageWithHeaders creates a test Message with headers.
func testMessageWithHeaders(value string, headers []Header) Message {
	return Message{
		Key:     []byte(fmt.Sprintf("key-%s", value)),
		Value:   []byte(value),
		Headers: headers,
	}
}
