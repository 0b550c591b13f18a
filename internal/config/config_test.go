// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	vars := map[string]string{
		"PROJECT_ID":             "proj",
		"APP_ENV":                "test",
		"AWS_ACCESS_KEY":         "key",
		"AWS_SECRET_KEY":         "secret",
		"AWS_REGION":             "us-east-1",
		"S3_BUCKET_NAME":         "bucket",
		"GCS_BUCKET_NAME":        "gcs-bucket",
		"GCP_KEY":                "gcp-key",
		"LOCAL_IMG_PATH":         "/tmp/images",
		"GPU_SERVER_BASE_URL":    "http://gpu.internal",
		"KAFKA_BROKER_URL":       "localhost:9092",
		"KAFKA_GROUP_CATEGORY":   "category",
		"KAFKA_GROUP_DUPLICATE":  "duplicate",
		"KAFKA_GROUP_QUALITY":    "quality",
		"KAFKA_GROUP_SCORE":      "score",
		"KAFKA_GROUP_EMBEDDING":  "embedding",
		"KAFKA_GROUP_PEOPLE":     "people",
		"IMAGE_MODE":             "local",
		"MODEL_NAME":             "ViT-B/32",
		"REDIS_HOST":             "localhost",
		"REDIS_PORT":             "6379",
		"REDIS_DB":               "0",
		"REDIS_CACHE_TTL":        "3600",
	}
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad(t *testing.T) {
	t.Run("will succeed", func(t *testing.T) {
		t.Run("when every mandatory variable is set", func(t *testing.T) {
			setRequiredEnv(t)
			cfg, err := Load()
			require.NoError(t, err)
			assert.Equal(t, ImageModeLocal, cfg.ImageMode)
			assert.Equal(t, ModelViTB32, cfg.ModelName)
			assert.Equal(t, 6379, cfg.RedisPort)
		})
	})

	t.Run("will fail", func(t *testing.T) {
		t.Run("when a mandatory variable is missing", func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("PROJECT_ID", "")
			_, err := Load()
			assert.Error(t, err)
		})

		t.Run("when IMAGE_MODE is not one of the closed enum values", func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("IMAGE_MODE", "ftp")
			_, err := Load()
			assert.Error(t, err)
		})

		t.Run("when REDIS_PORT is not an integer", func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv("REDIS_PORT", "not-a-number")
			_, err := Load()
			assert.Error(t, err)
		})
	})
}
