// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package kafka provides the exactly-once Kafka ingress/egress runtime for
// a single gateway operation: one consumer group reading a request topic,
// one transactional producer writing the matching response topic, one
// handler in between.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/plugin/kotel"
	"github.com/twmb/franz-go/plugin/kslog"
	"go.opentelemetry.io/otel"
)

// OperationConfig describes one gateway operation's Kafka wiring: which
// topic to consume, which topic to produce responses onto, and the handler
// that turns a request record into a response record.
type OperationConfig struct {
	Name          string
	Brokers       []string
	GroupID       string
	RequestTopic  string
	ResponseTopic string
	Handler       Handler

	SessionTimeout   time.Duration
	RebalanceTimeout time.Duration

	Logger *slog.Logger
}

func (cfg OperationConfig) validate() error {
	if cfg.Name == "" {
		return errors.New("kafka: operation name is required")
	}
	if len(cfg.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	if cfg.GroupID == "" {
		return errors.New("kafka: group id is required")
	}
	if cfg.RequestTopic == "" || cfg.ResponseTopic == "" {
		return errors.New("kafka: request and response topics are required")
	}
	if cfg.Handler == nil {
		return errors.New("kafka: handler is required")
	}
	return nil
}

// Runtime drives a single exactly-once request/response loop for one
// operation: poll a batch, run the handler per partition concurrently,
// then produce every response record inside a single Kafka transaction
// covering the whole batch.
type Runtime struct {
	name          string
	responseTopic string
	handler       Handler
	client        *kgo.Client
	metrics       *metricsRecorder
	log           *slog.Logger
}

// NewRuntime constructs a Runtime for a single operation. The underlying
// franz-go client is transactional: it joins cfg.GroupID against
// cfg.RequestTopic and is assigned a process-unique transactional id so
// that a crash mid-transaction never double-produces a response.
func NewRuntime(cfg OperationConfig) (*Runtime, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("kafka.operation", cfg.Name), GroupIDAttr(cfg.GroupID))

	sessionTimeout := cfg.SessionTimeout
	if sessionTimeout <= 0 {
		sessionTimeout = 45 * time.Second
	}
	rebalanceTimeout := cfg.RebalanceTimeout
	if rebalanceTimeout <= 0 {
		rebalanceTimeout = 60 * time.Second
	}

	txnID := fmt.Sprintf("album-ai-gateway-%s-%s", cfg.Name, uuid.NewString())

	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.RequestTopic),
		kgo.Balancers(kgo.CooperativeStickyBalancer()),
		kgo.SessionTimeout(sessionTimeout),
		kgo.RebalanceTimeout(rebalanceTimeout),
		kgo.DisableAutoCommit(),
		kgo.RequireStableFetchOffsets(),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.TransactionalID(txnID),
		kgo.WithLogger(kslog.New(logger)),
		kgo.WithHooks(
			kotel.NewTracer(
				kotel.TracerProvider(otel.GetTracerProvider()),
				kotel.TracerPropagator(otel.GetTextMapPropagator()),
				kotel.LinkSpans(),
				kotel.ConsumerGroup(cfg.GroupID),
			),
			kotel.NewMeter(
				kotel.MeterProvider(otel.GetMeterProvider()),
				kotel.WithMergedConnectsMeter(),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create client for operation %s: %w", cfg.Name, err)
	}

	metrics, err := newMetricsRecorder()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka: failed to create metrics recorder: %w", err)
	}

	return &Runtime{
		name:          cfg.Name,
		responseTopic: cfg.ResponseTopic,
		handler:       cfg.Handler,
		client:        client,
		metrics:       metrics,
		log:           logger,
	}, nil
}

// Close releases the underlying Kafka client. It does not produce or
// commit anything; any in-flight transaction is left to the broker's
// transaction timeout.
func (r *Runtime) Close() error {
	r.client.Close()
	return nil
}

// Run polls batches and drives the exactly-once loop until ctx is
// cancelled or the client is closed.
func (r *Runtime) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		fetches := r.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			r.log.ErrorContext(ctx, "kafka fetch error",
				TopicAttr(topic), PartitionAttr(partition), slog.Any("error", err))
		})

		var batches []partitionBatch
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			batches = append(batches, partitionBatch{topic: p.Topic, partition: p.Partition, records: p.Records})
		})
		if len(batches) == 0 {
			continue
		}

		responses, err := r.runHandlers(ctx, batches)
		if err != nil {
			r.log.ErrorContext(ctx, "kafka handler batch failed", slog.Any("error", err))
			continue
		}

		if err := r.commitTransaction(ctx, responses); err != nil {
			r.log.ErrorContext(ctx, "kafka transaction aborted", slog.Any("error", err))
			continue
		}

		for _, b := range batches {
			r.metrics.recordMessagesCommitted(ctx, b.topic, b.partition, len(b.records))
		}
	}
}

type partitionBatch struct {
	topic     string
	partition int32
	records   []*kgo.Record
}

// runHandlers invokes the handler sequentially within each partition
// (preserving offset order) but concurrently across partitions, entirely
// before any Kafka transaction is opened. This mirrors the source
// implementation's process_partition_batch, which runs the business logic
// before begin_transaction so a handler failure never leaves a dangling
// transaction to abort.
func (r *Runtime) runHandlers(ctx context.Context, batches []partitionBatch) ([]*kgo.Record, error) {
	p := pool.NewWithResults[[]*kgo.Record]().WithContext(ctx).WithFirstError()

	for _, b := range batches {
		b := b
		p.Go(func(ctx context.Context) ([]*kgo.Record, error) {
			out := make([]*kgo.Record, 0, len(b.records))
			for _, record := range b.records {
				msg := toMessage(record)
				resp, err := r.handler.Handle(ctx, msg)
				if err != nil {
					r.metrics.recordProcessingFailure(ctx, b.topic, b.partition, "exactly-once")
					return nil, fmt.Errorf("kafka: handler failed for %s[%d]@%d: %w", b.topic, b.partition, record.Offset, err)
				}
				r.metrics.recordMessageProcessed(ctx, b.topic, b.partition, "exactly-once")
				out = append(out, &kgo.Record{
					Topic: r.responseTopic,
					Key:   resp.Key,
					Value: resp.Value,
				})
			}
			return out, nil
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	var all []*kgo.Record
	for _, out := range results {
		all = append(all, out...)
	}
	return all, nil
}

// commitTransaction opens a transaction, produces every response record,
// and commits it together with the consumer offsets for the originating
// batch. Any produce error aborts the whole transaction and the batch is
// redelivered on the next poll.
func (r *Runtime) commitTransaction(ctx context.Context, responses []*kgo.Record) error {
	if err := r.client.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// AbortingFirstErrPromise aborts all buffered records itself on the
	// first produce error, so on error we only need to formally end the
	// transaction as an abort.
	promise := kgo.AbortingFirstErrPromise(r.client)
	for _, rec := range responses {
		r.client.Produce(ctx, rec, promise.Promise())
	}

	if err := promise.Err(); err != nil {
		if endErr := r.client.EndTransaction(ctx, kgo.TryAbort); endErr != nil {
			return fmt.Errorf("produce failed (%v) and abort failed: %w", err, endErr)
		}
		return fmt.Errorf("produce failed, transaction aborted: %w", err)
	}

	if err := r.client.Flush(ctx); err != nil {
		_ = r.client.EndTransaction(ctx, kgo.TryAbort)
		return fmt.Errorf("flush failed, transaction aborted: %w", err)
	}

	if err := r.client.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("end transaction: %w", err)
	}

	return nil
}

func toMessage(record *kgo.Record) Message {
	headers := make([]Header, len(record.Headers))
	for i, h := range record.Headers {
		headers[i] = Header{Key: h.Key, Value: h.Value}
	}
	return Message{
		Topic:     record.Topic,
		Partition: record.Partition,
		Offset:    record.Offset,
		Key:       record.Key,
		Value:     record.Value,
		Headers:   headers,
		Timestamp: record.Timestamp,
	}
}
