// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/yeosa/album-ai-gateway/health"
	"github.com/yeosa/album-ai-gateway/internal/cache"
	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/config"
	"github.com/yeosa/album-ai-gateway/internal/gpuclient"
	"github.com/yeosa/album-ai-gateway/internal/httpapi"
	"github.com/yeosa/album-ai-gateway/internal/imageloader"
	"github.com/yeosa/album-ai-gateway/internal/kafka"
	"github.com/yeosa/album-ai-gateway/internal/lifecycle"
	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/obs"
	"github.com/yeosa/album-ai-gateway/internal/pipeline"
	"github.com/yeosa/album-ai-gateway/internal/textbank"
)

var log = obs.Logger("cmd/gateway")

func main() {
	handler := slog.NewJSONHandler(os.Stdout, nil)
	defer func() {
		if r := recover(); r != nil {
			lifecycle.LogError(handler, fmt.Errorf("panic: %v", r))
			os.Exit(1)
		}
	}()

	builder := lifecycle.WithHooks(buildRuntime)
	err := lifecycle.Run(context.Background(), builder)
	if err != nil {
		log.Error("gateway exited with error", "error", err)
		os.Exit(1)
	}
}

// runtime bundles the HTTP server and the six Kafka consumer tasks into a
// single lifecycle.Runtime.
type runtime struct {
	httpServer *http.Server
	kafkaRTs   []*kafka.Runtime
}

func (rt *runtime) Run(ctx context.Context) error {
	errCh := make(chan error, len(rt.kafkaRTs)+1)

	for _, krt := range rt.kafkaRTs {
		krt := krt
		go func() {
			errCh <- krt.Run(ctx)
		}()
	}

	go func() {
		errCh <- rt.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}

	shutdownCtx := context.Background()
	_ = rt.httpServer.Shutdown(shutdownCtx)
	for _, krt := range rt.kafkaRTs {
		_ = krt.Close()
	}

	var joined error
	for range rt.kafkaRTs {
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			joined = errors.Join(joined, err)
		}
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		joined = errors.Join(joined, err)
	}
	return joined
}

// buildRuntime wires up the whole process in the spec's startup order:
// config, regressor, category bank, quality bank, image loader, cache
// (constructed then pinged), GPU client, Kafka consumer tasks, and
// finally the HTTP router. Shutdown hooks run in the order they are
// registered here: image loader, cache client, CPU pool.
func buildRuntime(ctx context.Context, hooks *lifecycle.HookRegistry) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to load config: %w", err)
	}

	regressor, err := textbank.LoadRegressor(cfg.RegressorPath)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to load aesthetic regressor: %w", err)
	}

	categoryBank, err := textbank.LoadCategoryBank(cfg.CategoryBankPath)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to load category bank: %w", err)
	}

	qualityBank, err := textbank.LoadQualityBank(cfg.QualityBankPath)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to load quality bank: %w", err)
	}

	images, err := imageloader.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to build image loader: %w", err)
	}
	hooks.OnPostRun(func(context.Context) error {
		return images.Close()
	})

	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		DB:   cfg.RedisDB,
	})
	cacheCoord := cache.New(redisClient, int64(cfg.RedisCacheTTL.Seconds()), 80)
	if err := cacheCoord.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gateway: failed to connect to cache backend: %w", err)
	}
	hooks.OnPostRun(func(context.Context) error {
		return cacheCoord.Close()
	})

	gpu := gpuclient.New(cfg.GPUServerBaseURL)

	governor := concurrency.New()
	hooks.OnPostRun(func(context.Context) error {
		governor.Close()
		return nil
	})

	appCtx := &pipeline.Context{
		Cache:        cacheCoord,
		GPU:          gpu,
		Images:       images,
		CategoryBank: categoryBank,
		QualityBank:  qualityBank,
		Regressor:    regressor,
		Governor:     governor,
		ModelName:    cfg.ModelName,
		Log:          obs.Logger("pipeline"),
	}

	kafkaRTs, err := buildKafkaRuntimes(cfg, appCtx)
	if err != nil {
		return nil, fmt.Errorf("gateway: failed to build kafka runtimes: %w", err)
	}

	var healthy health.Binary
	healthy.MarkHealthy()

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.New(appCtx, &healthy),
	}

	return &runtime{httpServer: httpServer, kafkaRTs: kafkaRTs}, nil
}

func buildKafkaRuntimes(cfg *config.Config, appCtx *pipeline.Context) ([]*kafka.Runtime, error) {
	brokers := []string{cfg.KafkaBrokerURL}

	specs := []struct {
		name    string
		groupID string
		handler kafka.Handler
	}{
		{"embedding", cfg.KafkaGroups.Embedding, kafkaHandler(appCtx, pipeline.RunEmbedding)},
		{"category", cfg.KafkaGroups.Category, kafkaHandler(appCtx, func(ctx context.Context, appCtx *pipeline.Context, req model.CategoryRequest) model.Response {
			return pipeline.RunCategory(ctx, appCtx, req, nil)
		})},
		{"duplicate", cfg.KafkaGroups.Duplicate, kafkaHandler(appCtx, pipeline.RunDuplicate)},
		{"quality", cfg.KafkaGroups.Quality, kafkaHandler(appCtx, pipeline.RunQuality)},
		{"score", cfg.KafkaGroups.Score, kafkaHandler(appCtx, pipeline.RunScore)},
		{"people", cfg.KafkaGroups.People, kafkaHandler(appCtx, pipeline.RunPeople)},
	}

	rts := make([]*kafka.Runtime, 0, len(specs))
	for _, s := range specs {
		rt, err := kafka.NewRuntime(kafka.OperationConfig{
			Name:          s.name,
			Brokers:       brokers,
			GroupID:       s.groupID,
			RequestTopic:  fmt.Sprintf("album.ai.%s.request", s.name),
			ResponseTopic: fmt.Sprintf("album.ai.%s.response", s.name),
			Handler:       s.handler,
			Logger:        obs.Logger("kafka." + s.name),
		})
		if err != nil {
			for _, built := range rts {
				built.Close()
			}
			return nil, err
		}
		rts = append(rts, rt)
	}
	return rts, nil
}

// kafkaHandler adapts one pipeline Run function into a kafka.Handler: JSON
// decode the request record's value into T, run the pipeline, JSON encode
// the Response back onto a record with the same key. A record whose value
// does not decode is treated as a malformed request: it still produces a
// well-formed 400 response rather than failing the whole batch, since the
// malformed bytes can never be retried into success.
func kafkaHandler[T any](appCtx *pipeline.Context, run func(ctx context.Context, appCtx *pipeline.Context, req T) model.Response) kafka.Handler {
	return kafka.HandlerFunc(func(ctx context.Context, msg kafka.Message) (kafka.Message, error) {
		var req T
		resp := model.Response{}
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			resp = model.InvalidRequest("unknown", -1)
		} else {
			resp = run(ctx, appCtx, req)
		}

		value, err := json.Marshal(resp)
		if err != nil {
			return kafka.Message{}, fmt.Errorf("kafka handler: failed to encode response: %w", err)
		}
		return kafka.Message{Key: msg.Key, Value: value}, nil
	})
}
