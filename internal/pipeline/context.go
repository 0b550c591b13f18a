// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package pipeline holds the six per-operation request handlers and the
// fetch-and-normalize prologue they share. Every pipeline exposes a single
// RunX(ctx, appCtx, req) model.Response entry point (RunCategory also
// takes a TagBoost) invoked identically from the HTTP adapter and the
// Kafka subsystem.
package pipeline

import (
	"log/slog"

	"github.com/yeosa/album-ai-gateway/internal/cache"
	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/config"
	"github.com/yeosa/album-ai-gateway/internal/gpuclient"
	"github.com/yeosa/album-ai-gateway/internal/imageloader"
	"github.com/yeosa/album-ai-gateway/internal/textbank"
	"github.com/yeosa/album-ai-gateway/internal/vectormath"
)

// Context bundles every shared collaborator a pipeline needs: the cache
// coordinator, the GPU client, the image loader, the two text banks, the
// aesthetic regressor, the concurrency governor, and the model-selected
// quality thresholds. It is built once by the lifecycle manager and
// passed explicitly into every pipeline's Run function — the "explicit
// application-context struct" redesign flag in place of process globals.
type Context struct {
	Cache        *cache.Coordinator
	GPU          *gpuclient.Client
	Images       imageloader.Loader
	CategoryBank textbank.CategoryBank
	QualityBank  textbank.QualityBank
	Regressor    vectormath.LinearRegressor
	Governor     *concurrency.Governor
	ModelName    config.ModelName
	Log          *slog.Logger
}

// QualityThresholds returns (T_sharp, T_combined) for the configured
// model name.
func (c *Context) QualityThresholds() (sharp, combined float32) {
	if c.ModelName == config.ModelViTL14 {
		return 0.483, 0.486
	}
	return 0.488, 0.490
}
