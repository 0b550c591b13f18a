// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vectormath

// NoiseLabel is the DBSCAN label assigned to points that belong to no
// cluster.
const NoiseLabel = -1

// DBSCAN clusters n points given a precomputed n×n distance matrix,
// matching scikit-learn's DBSCAN(metric="precomputed", eps, min_samples)
// semantics: a point is a core point if it has at least minSamples
// neighbors (itself included) within eps; clusters grow by expanding core
// points' neighborhoods; everything else is noise (-1).
//
// Cluster labels are assigned in the order clusters are first discovered
// while scanning points 0..n-1, so the duplicate pipeline can rely on
// "insertion order of first-seen label".
func DBSCAN(dist [][]float32, eps float32, minSamples int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = NoiseLabel
	}
	visited := make([]bool, n)

	neighbors := func(i int) []int {
		var out []int
		for j := 0; j < n; j++ {
			if dist[i][j] <= eps {
				out = append(out, j)
			}
		}
		return out
	}

	nextLabel := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neigh := neighbors(i)
		if len(neigh) < minSamples {
			continue
		}

		label := nextLabel
		nextLabel++
		labels[i] = label

		queue := append([]int(nil), neigh...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]
			if !visited[j] {
				visited[j] = true
				jNeigh := neighbors(j)
				if len(jNeigh) >= minSamples {
					queue = append(queue, jNeigh...)
				}
			}
			if labels[j] == NoiseLabel {
				labels[j] = label
			}
		}
	}

	return labels
}

// ClustersInInsertionOrder groups point indices by label, excluding noise,
// preserving the order labels were first discovered and the original
// point order within each cluster.
func ClustersInInsertionOrder(labels []int) [][]int {
	order := make([]int, 0)
	byLabel := make(map[int][]int)
	for i, l := range labels {
		if l == NoiseLabel {
			continue
		}
		if _, ok := byLabel[l]; !ok {
			order = append(order, l)
		}
		byLabel[l] = append(byLabel[l], i)
	}

	out := make([][]int, 0, len(order))
	for _, l := range order {
		out = append(out, byLabel[l])
	}
	return out
}
