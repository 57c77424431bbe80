package feature

import "math"

// FeatureDim is the pipeline-wide feature vector length. It matches the
// flattened embedding size the classifier weights were trained against;
// extractor and predictor must agree on it.
const FeatureDim = 2048

// Matrix is a fixed-shape (FeatureDim x sequenceLength) feature matrix.
// Column i summarizes frame i of a chunk; columns of missing frames stay zero.
type Matrix struct {
	rows int
	cols int
	data []float64
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// Rows returns the feature dimension.
func (m *Matrix) Rows() int { return m.rows }

// Cols returns the sequence length.
func (m *Matrix) Cols() int { return m.cols }

// At returns the value at row r, column c.
func (m *Matrix) At(r, c int) float64 {
	return m.data[r*m.cols+c]
}

// Set writes the value at row r, column c.
func (m *Matrix) Set(r, c int, v float64) {
	m.data[r*m.cols+c] = v
}

// SetColumn writes vals into column c, truncating past the feature dimension
// and leaving the remainder zero when vals is shorter.
func (m *Matrix) SetColumn(c int, vals []float64) {
	n := len(vals)
	if n > m.rows {
		n = m.rows
	}
	for r := 0; r < n; r++ {
		m.data[r*m.cols+c] = vals[r]
	}
}

// Stats returns the global mean, population standard deviation, maximum and
// minimum over every entry, including untouched zero columns.
func (m *Matrix) Stats() (mean, std, max, min float64) {
	n := float64(len(m.data))
	if n == 0 {
		return 0, 0, 0, 0
	}

	max = math.Inf(-1)
	min = math.Inf(1)
	var sum float64
	for _, v := range m.data {
		sum += v
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	mean = sum / n

	var sq float64
	for _, v := range m.data {
		d := v - mean
		sq += d * d
	}
	std = math.Sqrt(sq / n)
	return mean, std, max, min
}
