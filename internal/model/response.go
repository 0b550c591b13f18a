// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

// ResponseBody is the {message, data} pair carried by every Response. Data's
// concrete shape is documented per status code and per operation below; it
// is always one of the *Data types in this file, a []ImageRef, or nil.
type ResponseBody struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Response is the single envelope type shared by every operation and both
// ingress surfaces: {taskId, albumId, statusCode, body:{message, data}}.
type Response struct {
	TaskID     string     `json:"taskId"`
	AlbumID    int64      `json:"albumId"`
	StatusCode StatusCode `json:"statusCode"`
	Body       ResponseBody `json:"body"`
}

// NewResponse builds a Response whose message is derived from status,
// never out of sync with the status taxonomy.
func NewResponse(taskID string, albumID int64, status StatusCode, data any) Response {
	return Response{
		TaskID:     taskID,
		AlbumID:    albumID,
		StatusCode: status,
		Body: ResponseBody{
			Message: status.Message(),
			Data:    data,
		},
	}
}

// EmbeddingRequired builds the 428 response shared by all four vector
// pipelines: data is the subset of input refs missing from cache, in
// input order.
func EmbeddingRequired(taskID string, albumID int64, missing []ImageRef) Response {
	return NewResponse(taskID, albumID, StatusEmbeddingRequired, missing)
}

// InvalidRequest builds the 400 response for a malformed request element.
func InvalidRequest(taskID string, albumID int64) Response {
	return NewResponse(taskID, albumID, StatusInvalidRequest, nil)
}

// InternalError builds the 500 response, optionally carrying the refs
// that failed a cache write (embedding pipeline) or nil otherwise.
func InternalError(taskID string, albumID int64, data any) Response {
	return NewResponse(taskID, albumID, StatusInternalServerError, data)
}

// DuplicateCluster is one group of near-identical images.
type DuplicateCluster = []ImageRef

// DuplicateData is the 201 data payload for the duplicate pipeline.
type DuplicateData struct {
	DuplicateGroups []DuplicateCluster `json:"duplicate_groups"`
}

// CategoryCluster is one labeled bucket of images from the category
// pipeline, including the "기타" sentinel bucket.
type CategoryCluster struct {
	Category string     `json:"category"`
	Images   []ImageRef `json:"images"`
}

// CategoryData is the 201 data payload for the category pipeline.
type CategoryData struct {
	CategoryClusters []CategoryCluster `json:"category_clusters"`
}

// QualityData is the 201 data payload for the quality pipeline: refs
// judged low-quality by either branch.
type QualityData struct {
	LowQualityImages []ImageRef `json:"low_quality_images"`
}

// ImageScore is one image's aesthetic score, order-preserving with input.
type ImageScore struct {
	Image ImageRef `json:"image"`
	Score float32  `json:"score"`
}

// ScoreCategoryResult is one scored category bucket from the highlight
// pipeline.
type ScoreCategoryResult struct {
	Category string       `json:"category"`
	Images   []ImageScore `json:"images"`
}

// ScoreData is the 201 data payload for the highlight scoring pipeline.
type ScoreData struct {
	Categories []ScoreCategoryResult `json:"categories"`
}

// RepresentativeFace is the cluster member the GPU backend chose as the
// representative for a person cluster.
type RepresentativeFace struct {
	Image ImageRef   `json:"image"`
	BBox  [4]float32 `json:"bbox"`
}

// PeopleCluster is one person cluster as returned by the GPU backend and
// passed through verbatim.
type PeopleCluster struct {
	Images             []ImageRef         `json:"images"`
	RepresentativeFace RepresentativeFace `json:"representative_face"`
}

// PeopleData is the 201 data payload for the people clustering pipeline.
type PeopleData struct {
	Clusters []PeopleCluster `json:"clusters"`
}
