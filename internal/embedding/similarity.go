package embedding

// SimilarityMatrix computes the symmetric pairwise cosine similarity matrix
// for vs. Only the upper triangle is computed; the lower triangle and the
// unit diagonal are mirrored/filled in directly. All vectors must share
// dimension.
func SimilarityMatrix(vs []Vector) ([][]float64, error) {
	n := len(vs)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		if vs[i].Norm() > 0 {
			m[i][i] = 1
		}
		for j := i + 1; j < n; j++ {
			sim, err := Cosine(vs[i], vs[j])
			if err != nil {
				return nil, err
			}
			m[i][j] = sim
			m[j][i] = sim
		}
	}
	return m, nil
}
