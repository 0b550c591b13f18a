// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package gpuclient wraps the remote GPU inference backend: a single
// long-lived *http.Client with a fixed timeout, JSON request/response
// bodies, and a uniform "non-2xx or message != success is a failure" error
// map, grounded in the reference RAG gateway's OpenAI embedding call
// (request construction, context, single doRequest-then-decode shape).
package gpuclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/yeosa/album-ai-gateway/internal/model"
)

// ErrGPUFailure is wrapped by every failure mode the client can produce:
// non-2xx status, a body whose message isn't "success", a network error,
// or a response that doesn't decode. All of these map to a 500 at the
// pipeline boundary.
var ErrGPUFailure = errors.New("gpuclient: gpu backend failure")

// Client is the gateway's single connection to the remote GPU service.
type Client struct {
	http    *http.Client
	baseURL string
}

// New constructs a Client with the spec-mandated 60 second per-request
// timeout.
func New(baseURL string) *Client {
	return &Client{
		http:    &http.Client{Timeout: 60 * time.Second},
		baseURL: baseURL,
	}
}

type embeddingRequestBody struct {
	Images []model.ImageRef `json:"images"`
}

type embeddingResponseBody struct {
	Message string                         `json:"message"`
	Data    map[model.ImageRef][]float32 `json:"data"`
}

// Embed calls POST /clip/embedding and returns the GPU-produced vectors
// keyed by ImageRef. Refs present in the request but absent from the
// response are simply omitted from the returned map; the embedding
// pipeline turns that into invalid_images.
func (c *Client) Embed(ctx context.Context, images []model.ImageRef) (map[model.ImageRef][]float32, error) {
	var out embeddingResponseBody
	if err := c.postJSON(ctx, "/clip/embedding", embeddingRequestBody{Images: images}, &out); err != nil {
		return nil, err
	}
	if out.Message != "success" {
		return nil, fmt.Errorf("%w: embedding response message %q", ErrGPUFailure, out.Message)
	}
	return out.Data, nil
}

type peopleRequestBody struct {
	Images []model.ImageRef `json:"images"`
}

type peopleResponseBody struct {
	Message string                `json:"message"`
	Data    []model.PeopleCluster `json:"data"`
}

// ClusterPeople calls POST /people/cluster and returns the clusters
// verbatim for pass-through into the people response envelope.
func (c *Client) ClusterPeople(ctx context.Context, images []model.ImageRef) ([]model.PeopleCluster, error) {
	var out peopleResponseBody
	if err := c.postJSON(ctx, "/people/cluster", peopleRequestBody{Images: images}, &out); err != nil {
		return nil, err
	}
	if out.Message != "success" {
		return nil, fmt.Errorf("%w: people response message %q", ErrGPUFailure, out.Message)
	}
	return out.Data, nil
}

func (c *Client) postJSON(ctx context.Context, path string, reqBody, respBody any) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("gpuclient: failed to encode request for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("gpuclient: failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %v", ErrGPUFailure, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned status %d", ErrGPUFailure, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrGPUFailure, path, err)
	}
	return nil
}
