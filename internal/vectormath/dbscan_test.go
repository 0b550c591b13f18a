// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vectormath

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDBSCAN(t *testing.T) {
	t.Run("will cluster two near-identical points", func(t *testing.T) {
		t.Run("and mark a distant third point as noise", func(t *testing.T) {
			x := NormalizeBatch([][]float32{
				{1, 0},
				{0.999, 0.001},
				{0, 1},
			})
			dist := CosineDistanceMatrix(x)

			labels := DBSCAN(dist, 0.1, 2)

			assert.Equal(t, labels[0], labels[1])
			assert.NotEqual(t, NoiseLabel, labels[0])
			assert.Equal(t, NoiseLabel, labels[2])
		})
	})

	t.Run("will mark every point as noise", func(t *testing.T) {
		t.Run("when minSamples exceeds the largest neighborhood", func(t *testing.T) {
			x := NormalizeBatch([][]float32{{1, 0}, {0.999, 0.001}})
			dist := CosineDistanceMatrix(x)

			labels := DBSCAN(dist, 0.1, 5)

			for _, l := range labels {
				assert.Equal(t, NoiseLabel, l)
			}
		})
	})
}

func TestClustersInInsertionOrder(t *testing.T) {
	t.Run("will preserve first-seen label order and within-cluster input order", func(t *testing.T) {
		labels := []int{1, 0, 1, -1, 0}
		clusters := ClustersInInsertionOrder(labels)

		assert.Equal(t, [][]int{{0, 2}, {1, 4}}, clusters)
	})

	t.Run("will return no clusters", func(t *testing.T) {
		t.Run("when every point is noise", func(t *testing.T) {
			labels := []int{-1, -1, -1}
			clusters := ClustersInInsertionOrder(labels)
			assert.Empty(t, clusters)
		})
	})
}
