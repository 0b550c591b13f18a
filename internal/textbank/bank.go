// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package textbank holds the process-wide, read-only data loaded once at
// startup: the category bank, the quality prompt-pair bank, and the
// aesthetic regressor weights. Parsing the actual PyTorch state-dict
// files (aesthetic_regressor.pth, category_features.pt,
// quality_features.pt) is explicitly out of scope — those are opaque
// blobs an external model-export step produces — so this package only
// defines the in-memory shape and loader functions that decode a JSON
// sidecar file written by the export step (JSON is the interchange
// format here, the same choice
// the cache coordinator and the GPU client make for every other tensor
// payload in this gateway).
package textbank

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/yeosa/album-ai-gateway/internal/vectormath"
)

// Category is one entry in the category bank: a label and its P prompt
// vectors (P=4 per spec).
type Category struct {
	Name    string      `json:"name"`
	Prompts [][]float32 `json:"prompts"`
}

// CategoryBank is the process-wide parent category list plus a per-concept
// override map. An image is classified against the union of the parent
// categories and whichever concepts were named in the request.
type CategoryBank struct {
	Parent   []Category          `json:"parent"`
	Concepts map[string]Category `json:"concepts"`
}

// Effective returns the parent categories plus the named concepts'
// categories, in that order, deduplicated by name (last write wins, same
// as a map union).
func (b CategoryBank) Effective(concepts []string) []Category {
	seen := make(map[string]int, len(b.Parent)+len(concepts))
	out := make([]Category, 0, len(b.Parent)+len(concepts))
	for _, c := range b.Parent {
		seen[c.Name] = len(out)
		out = append(out, c)
	}
	for _, name := range concepts {
		c, ok := b.Concepts[name]
		if !ok {
			continue
		}
		if i, dup := seen[c.Name]; dup {
			out[i] = c
			continue
		}
		seen[c.Name] = len(out)
		out = append(out, c)
	}
	return out
}

// QualityField is one (positive, negative) prompt pair for one quality
// dimension, e.g. "sharp" or "good".
type QualityField struct {
	Name     string    `json:"name"`
	Positive []float32 `json:"positive"`
	Negative []float32 `json:"negative"`
}

// QualityBank is the N quality fields the CLIP-IQA branch scores against.
type QualityBank struct {
	Fields []QualityField `json:"fields"`
}

// ByName returns the field with the given name and whether it was found.
func (b QualityBank) ByName(name string) (QualityField, bool) {
	for _, f := range b.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return QualityField{}, false
}

// LoadCategoryBank reads a JSON-encoded CategoryBank from path.
func LoadCategoryBank(path string) (CategoryBank, error) {
	var bank CategoryBank
	if err := loadJSON(path, &bank); err != nil {
		return CategoryBank{}, fmt.Errorf("textbank: failed to load category bank: %w", err)
	}
	return bank, nil
}

// LoadQualityBank reads a JSON-encoded QualityBank from path.
func LoadQualityBank(path string) (QualityBank, error) {
	var bank QualityBank
	if err := loadJSON(path, &bank); err != nil {
		return QualityBank{}, fmt.Errorf("textbank: failed to load quality bank: %w", err)
	}
	return bank, nil
}

// LoadRegressor reads a JSON-encoded D->1 linear layer from path.
func LoadRegressor(path string) (vectormath.LinearRegressor, error) {
	var r vectormath.LinearRegressor
	if err := loadJSON(path, &r); err != nil {
		return vectormath.LinearRegressor{}, fmt.Errorf("textbank: failed to load aesthetic regressor: %w", err)
	}
	return r, nil
}

func loadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(v)
}
