// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package config loads the gateway's mandatory environment-variable
// configuration, grounded in the fail-fast os.Getenv style of
// cmd/gateway.LoadConfig in the reference RAG gateway rather than a
// file-based layer: every variable named in the external-interface
// contract is mandatory at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// ImageMode selects which backend the image loader fetches raw bytes from.
type ImageMode string

const (
	ImageModeLocal ImageMode = "local"
	ImageModeGCS   ImageMode = "gcs"
	ImageModeS3    ImageMode = "s3"
)

// ModelName selects the CLIP variant, which in turn selects the quality
// pipeline's dual thresholds.
type ModelName string

const (
	ModelViTB32 ModelName = "ViT-B/32"
	ModelViTL14 ModelName = "ViT-L/14"
)

// Config is the flat, mandatory environment-variable configuration for the
// whole process, loaded once at startup and never mutated.
type Config struct {
	ProjectID string
	AppEnv    string

	AWSAccessKey string
	AWSSecretKey string
	AWSRegion    string
	S3BucketName string

	GCSBucketName string
	GCPKey        string

	ImageMode    ImageMode
	LocalImgPath string

	ModelName ModelName

	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisCacheTTL time.Duration

	GPUServerBaseURL string

	KafkaBrokerURL string
	KafkaGroups    KafkaGroups

	HTTPAddr string

	CategoryBankPath string
	QualityBankPath  string
	RegressorPath    string
}

// KafkaGroups holds the per-operation consumer group IDs.
type KafkaGroups struct {
	Category  string
	Duplicate string
	Quality   string
	Score     string
	Embedding string
	People    string
}

// Load reads and validates every mandatory environment variable named in
// the external-interface contract. It checks every variable before
// returning and reports all missing or malformed values together in one
// joined error.
func Load() (*Config, error) {
	cfg := &Config{}

	var err error
	req := func(name string) string {
		v, ok := os.LookupEnv(name)
		if !ok || v == "" {
			err = errors.Join(err, fmt.Errorf("config: missing required environment variable %s", name))
		}
		return v
	}

	cfg.ProjectID = req("PROJECT_ID")
	cfg.AppEnv = req("APP_ENV")
	cfg.AWSAccessKey = req("AWS_ACCESS_KEY")
	cfg.AWSSecretKey = req("AWS_SECRET_KEY")
	cfg.AWSRegion = req("AWS_REGION")
	cfg.S3BucketName = req("S3_BUCKET_NAME")
	cfg.GCSBucketName = req("GCS_BUCKET_NAME")
	cfg.GCPKey = req("GCP_KEY")
	cfg.LocalImgPath = req("LOCAL_IMG_PATH")
	cfg.GPUServerBaseURL = req("GPU_SERVER_BASE_URL")
	cfg.KafkaBrokerURL = req("KAFKA_BROKER_URL")
	cfg.KafkaGroups.Category = req("KAFKA_GROUP_CATEGORY")
	cfg.KafkaGroups.Duplicate = req("KAFKA_GROUP_DUPLICATE")
	cfg.KafkaGroups.Quality = req("KAFKA_GROUP_QUALITY")
	cfg.KafkaGroups.Score = req("KAFKA_GROUP_SCORE")
	cfg.KafkaGroups.Embedding = req("KAFKA_GROUP_EMBEDDING")
	cfg.KafkaGroups.People = req("KAFKA_GROUP_PEOPLE")

	switch mode := ImageMode(req("IMAGE_MODE")); mode {
	case ImageModeLocal, ImageModeGCS, ImageModeS3:
		cfg.ImageMode = mode
	default:
		err = errors.Join(err, fmt.Errorf("config: IMAGE_MODE must be one of local, gcs, s3, got %q", mode))
	}

	switch name := ModelName(req("MODEL_NAME")); name {
	case ModelViTB32, ModelViTL14:
		cfg.ModelName = name
	default:
		err = errors.Join(err, fmt.Errorf("config: MODEL_NAME must be one of %q, %q, got %q", ModelViTB32, ModelViTL14, name))
	}

	cfg.RedisHost = req("REDIS_HOST")
	cfg.RedisPort = reqInt(&err, "REDIS_PORT")
	cfg.RedisDB = reqInt(&err, "REDIS_DB")
	cfg.RedisCacheTTL = time.Duration(reqInt(&err, "REDIS_CACHE_TTL")) * time.Second

	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", ":8080")
	cfg.CategoryBankPath = getenvDefault("CATEGORY_BANK_PATH", "category_bank.json")
	cfg.QualityBankPath = getenvDefault("QUALITY_BANK_PATH", "quality_bank.json")
	cfg.RegressorPath = getenvDefault("REGRESSOR_PATH", "aesthetic_regressor.json")

	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// getenvDefault reads a deployment-local path or address that the
// external-interface contract doesn't mandate a fixed value for.
func getenvDefault(name, def string) string {
	if v, ok := os.LookupEnv(name); ok && v != "" {
		return v
	}
	return def
}

func reqInt(errp *error, name string) int {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		*errp = errors.Join(*errp, fmt.Errorf("config: missing required environment variable %s", name))
		return 0
	}
	n, parseErr := strconv.Atoi(v)
	if parseErr != nil {
		*errp = errors.Join(*errp, fmt.Errorf("config: %s must be an integer, got %q: %w", name, v, parseErr))
		return 0
	}
	return n
}
