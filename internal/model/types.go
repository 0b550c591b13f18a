// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

// ImageRef is an opaque string identifying one image: simultaneously the
// object-storage key and the key under which its embedding is cached.
type ImageRef = string

// Embedding is a fixed-dimension single-precision vector produced by the
// GPU encoder. Pipelines always work with the L2-normalized form; the
// cache itself may hold either form.
type Embedding = []float32

// EmbeddingRequest is the payload for POST /api/albums/embedding and the
// album.ai.embedding.request topic.
type EmbeddingRequest struct {
	TaskID  string     `json:"taskId"`
	AlbumID int64      `json:"albumId"`
	Images  []ImageRef `json:"images"`
}

// CategoryRequest is the payload for POST /api/albums/categories and the
// album.ai.category.request topic.
type CategoryRequest struct {
	TaskID   string     `json:"taskId"`
	AlbumID  int64      `json:"albumId"`
	Images   []ImageRef `json:"images"`
	Concepts []string   `json:"concepts"`
}

// DuplicateRequest is the payload for POST /api/albums/duplicates and the
// album.ai.duplicate.request topic.
type DuplicateRequest struct {
	TaskID  string     `json:"taskId"`
	AlbumID int64      `json:"albumId"`
	Images  []ImageRef `json:"images"`
}

// QualityRequest is the payload for POST /api/albums/quality and the
// album.ai.quality.request topic.
type QualityRequest struct {
	TaskID  string     `json:"taskId"`
	AlbumID int64      `json:"albumId"`
	Images  []ImageRef `json:"images"`
}

// ScoreCategoryInput is one category bucket to be scored by the highlight
// pipeline.
type ScoreCategoryInput struct {
	Category string     `json:"category"`
	Images   []ImageRef `json:"images"`
}

// ScoreRequest is the payload for POST /api/albums/score and the
// album.ai.score.request topic.
type ScoreRequest struct {
	TaskID     string               `json:"taskId"`
	AlbumID    int64                `json:"albumId"`
	Categories []ScoreCategoryInput `json:"categories"`
}

// PeopleRequest is the payload for POST /api/albums/people and the
// album.ai.people.request topic.
type PeopleRequest struct {
	TaskID  string     `json:"taskId"`
	AlbumID int64      `json:"albumId"`
	Images  []ImageRef `json:"images"`
}
