package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityMatrixSymmetricAndUnitDiagonal(t *testing.T) {
	vs := []Vector{{1, 0, 0}, {0, 1, 0}, {1, 1, 0}}
	m, err := SimilarityMatrix(vs)
	require.NoError(t, err)

	for i := range vs {
		assert.InDelta(t, 1.0, m[i][i], 1e-9)
		for j := range vs {
			assert.InDelta(t, m[i][j], m[j][i], 1e-9)
		}
	}
}

func TestSimilarityMatrixZeroVectorDiagonal(t *testing.T) {
	vs := []Vector{{0, 0}, {1, 1}}
	m, err := SimilarityMatrix(vs)
	require.NoError(t, err)
	assert.Equal(t, 0.0, m[0][0])
	assert.InDelta(t, 1.0, m[1][1], 1e-9)
}

func TestSimilarityMatrixDimensionMismatch(t *testing.T) {
	_, err := SimilarityMatrix([]Vector{{1, 2}, {1, 2, 3}})
	require.Error(t, err)
}
