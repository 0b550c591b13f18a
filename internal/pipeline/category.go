// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package pipeline

import (
	"context"
	"sort"

	"github.com/yeosa/album-ai-gateway/internal/concurrency"
	"github.com/yeosa/album-ai-gateway/internal/model"
	"github.com/yeosa/album-ai-gateway/internal/textbank"
	"github.com/yeosa/album-ai-gateway/internal/vectormath"
)

const (
	categoryTopK               = 3
	categoryRepresentativeCount = 5
	categoryBoostCeiling        = 0.22
	categoryBonusThreshold      = 0.28
	categoryBonusWeight         = 0.5
	categoryAssignThreshold     = 0.21
	categoryOtherLabel          = "기타"
)

// TagBoost maps a category name to a multiplier applied to any image
// score at or below categoryBoostCeiling for that tag. No canonical
// source for this map exists anywhere in the reference implementation;
// per the open design question it defaults to empty, i.e. no boosting.
type TagBoost map[string]float32

type tagScore struct {
	tag   string
	score float32
}

// RunCategory implements the two-pass tag assignment: similarity scoring
// with optional tag boosting, representative-category selection,
// primary classification, per-bucket refinement, and reclassification.
func RunCategory(ctx context.Context, appCtx *Context, req model.CategoryRequest, boost TagBoost) model.Response {
	return envelope(req.TaskID, req.AlbumID, func() model.Response {
		if req.TaskID == "" || req.AlbumID == 0 || len(req.Images) == 0 {
			return model.InvalidRequest(req.TaskID, req.AlbumID)
		}

		matrix, missing := fetchAndNormalize(ctx, appCtx, req.Images)
		if len(missing) > 0 {
			return model.EmbeddingRequired(req.TaskID, req.AlbumID, missing)
		}

		categories := appCtx.CategoryBank.Effective(req.Concepts)

		top3 := concurrency.RunCPU(appCtx.Governor, func() [][]tagScore {
			sim := similarityMatrix(matrix, categories)
			applyTagBoost(sim, categories, boost)
			return topKPerImage(sim, categories, categoryTopK)
		})

		rep := representativeScores(top3, allTags(categories))
		representativeSet := topNTags(rep, categoryRepresentativeCount)

		labels := primaryClassification(top3, representativeSet)
		order := firstSeenOrder(labels)

		buckets := groupByLabel(req.Images, labels)
		refineBuckets(buckets, top3, imageIndex(req.Images), &order)

		clusters := make([]model.CategoryCluster, 0, len(buckets))
		for _, name := range order {
			imgs := buckets[name]
			if len(imgs) == 0 {
				continue
			}
			clusters = append(clusters, model.CategoryCluster{Category: name, Images: imgs})
		}

		return model.NewResponse(req.TaskID, req.AlbumID, model.StatusSuccess, model.CategoryData{CategoryClusters: clusters})
	})
}

func allTags(categories []textbank.Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.Name
	}
	return out
}

// similarityMatrix builds S[n][t] = mean_p(X[n]·prompts[t][p]).
func similarityMatrix(x [][]float32, categories []textbank.Category) [][]float32 {
	out := make([][]float32, len(x))
	for n, row := range x {
		scores := make([]float32, len(categories))
		for t, cat := range categories {
			scores[t] = vectormath.MeanSimilarity(row, cat.Prompts)
		}
		out[n] = scores
	}
	return out
}

// applyTagBoost multiplies S[n][t] by boost[tag] wherever S[n][t] is at
// or below categoryBoostCeiling.
func applyTagBoost(sim [][]float32, categories []textbank.Category, boost TagBoost) {
	if len(boost) == 0 {
		return
	}
	for n := range sim {
		for t, cat := range categories {
			if sim[n][t] <= categoryBoostCeiling {
				if factor, ok := boost[cat.Name]; ok {
					sim[n][t] *= factor
				}
			}
		}
	}
}

// topKPerImage returns, per image, the top-k (tag, score) pairs sorted
// descending by score, ties broken by lower category index first via a
// stable sort over the natural (index) order.
func topKPerImage(sim [][]float32, categories []textbank.Category, k int) [][]tagScore {
	out := make([][]tagScore, len(sim))
	for n, scores := range sim {
		entries := make([]tagScore, len(categories))
		for t, cat := range categories {
			entries[t] = tagScore{tag: cat.Name, score: scores[t]}
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].score > entries[j].score
		})
		if len(entries) > k {
			entries = entries[:k]
		}
		out[n] = entries
	}
	return out
}

// representativeScores computes rep[t] = sum_score[t] + lambda*bonus[t]
// over every image's top-k membership.
func representativeScores(top3 [][]tagScore, tags []string) map[string]float32 {
	rep := make(map[string]float32, len(tags))
	for _, tag := range tags {
		rep[tag] = 0
	}
	sumScore := make(map[string]float32, len(tags))
	bonus := make(map[string]float32, len(tags))
	for _, entries := range top3 {
		for _, e := range entries {
			sumScore[e.tag] += e.score
			if e.score > categoryBonusThreshold {
				bonus[e.tag] += e.score
			}
		}
	}
	for tag := range rep {
		rep[tag] = sumScore[tag] + categoryBonusWeight*bonus[tag]
	}
	return rep
}

// topNTags picks the top-n tags by rep score, as a set.
func topNTags(rep map[string]float32, n int) map[string]bool {
	type kv struct {
		tag   string
		score float32
	}
	entries := make([]kv, 0, len(rep))
	for tag, score := range rep {
		entries = append(entries, kv{tag, score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score > entries[j].score
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	out := make(map[string]bool, len(entries))
	for _, e := range entries {
		out[e.tag] = true
	}
	return out
}

// primaryClassification walks each image's top-3 in ranked order and
// assigns it to the first tag in representativeSet scoring at least
// categoryAssignThreshold; otherwise the "기타" sentinel.
func primaryClassification(top3 [][]tagScore, representativeSet map[string]bool) []string {
	labels := make([]string, len(top3))
	for n, entries := range top3 {
		labels[n] = categoryOtherLabel
		for _, e := range entries {
			if representativeSet[e.tag] && e.score >= categoryAssignThreshold {
				labels[n] = e.tag
				break
			}
		}
	}
	return labels
}

// firstSeenOrder returns distinct labels in order of first appearance.
func firstSeenOrder(labels []string) []string {
	seen := map[string]bool{}
	order := make([]string, 0, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			order = append(order, l)
		}
	}
	return order
}

func groupByLabel(images []model.ImageRef, labels []string) map[string][]model.ImageRef {
	buckets := make(map[string][]model.ImageRef)
	for i, label := range labels {
		buckets[label] = append(buckets[label], images[i])
	}
	return buckets
}

func imageIndex(images []model.ImageRef) map[model.ImageRef]int {
	idx := make(map[model.ImageRef]int, len(images))
	for i, ref := range images {
		idx[ref] = i
	}
	return idx
}

// refineBuckets implements steps 7-8: for each non-"기타" bucket, recompute
// the representative score restricted to that bucket's members and take
// the single highest-rep tag as the bucket's new label; if the new label
// differs, re-examine each member and move it to "기타" unless the new
// label appears in its own top-3 at or above categoryAssignThreshold.
func refineBuckets(buckets map[string][]model.ImageRef, top3 [][]tagScore, idx map[model.ImageRef]int, order *[]string) {
	labelSeen := map[string]bool{}
	for _, l := range *order {
		labelSeen[l] = true
	}
	addLabel := func(l string) {
		if !labelSeen[l] {
			labelSeen[l] = true
			*order = append(*order, l)
		}
	}

	originalLabels := make([]string, 0, len(buckets))
	for label := range buckets {
		originalLabels = append(originalLabels, label)
	}
	sort.Strings(originalLabels) // deterministic iteration over map keys

	// snapshot holds the step-6 partition read-only for the rest of this
	// function: every bucket's recompute and reclassification must be
	// restricted to its own pre-refinement membership, never to members
	// another bucket has already redistributed into it this pass.
	snapshot := make(map[string][]model.ImageRef, len(buckets))
	for label, members := range buckets {
		cp := make([]model.ImageRef, len(members))
		copy(cp, members)
		snapshot[label] = cp
	}

	// moved and cleared are staged here rather than applied to buckets
	// as each label is processed: clearing oldLabel in place would wipe
	// out members an earlier bucket in this same pass already
	// redistributed into it, if that bucket happens to share a label
	// with one being refined later in originalLabels order.
	moved := map[string][]model.ImageRef{}
	cleared := map[string]bool{}

	for _, oldLabel := range originalLabels {
		members := snapshot[oldLabel]
		if oldLabel == categoryOtherLabel || len(members) == 0 {
			continue
		}

		memberTop3 := make([][]tagScore, len(members))
		for i, ref := range members {
			memberTop3[i] = top3[idx[ref]]
		}

		tags := map[string]bool{}
		for _, entries := range memberTop3 {
			for _, e := range entries {
				tags[e.tag] = true
			}
		}
		tagList := make([]string, 0, len(tags))
		for t := range tags {
			tagList = append(tagList, t)
		}

		rep := representativeScores(memberTop3, tagList)
		newLabel := oldLabel
		var best float32 = -1
		for _, t := range tagList {
			if rep[t] > best {
				best = rep[t]
				newLabel = t
			}
		}

		if newLabel == oldLabel {
			continue
		}
		addLabel(newLabel)

		for i, ref := range members {
			qualifies := false
			for _, e := range memberTop3[i] {
				if e.tag == newLabel && e.score >= categoryAssignThreshold {
					qualifies = true
					break
				}
			}
			if qualifies {
				moved[newLabel] = append(moved[newLabel], ref)
			} else {
				moved[categoryOtherLabel] = append(moved[categoryOtherLabel], ref)
				addLabel(categoryOtherLabel)
			}
		}
		cleared[oldLabel] = true
	}

	for label := range cleared {
		buckets[label] = nil
	}
	for label, members := range moved {
		buckets[label] = append(buckets[label], members...)
	}
}
