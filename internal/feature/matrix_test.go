package feature

import (
	"math"
	"testing"
)

func TestMatrixSetColumn(t *testing.T) {
	m := NewMatrix(4, 2)
	m.SetColumn(0, []float64{1, 2, 3, 4})
	m.SetColumn(1, []float64{5, 6})

	want := [][]float64{
		{1, 5},
		{2, 6},
		{3, 0},
		{4, 0},
	}
	for r := 0; r < 4; r++ {
		for c := 0; c < 2; c++ {
			if got := m.At(r, c); got != want[r][c] {
				t.Errorf("At(%d,%d) = %v, want %v", r, c, got, want[r][c])
			}
		}
	}
}

func TestMatrixSetColumnTruncates(t *testing.T) {
	m := NewMatrix(2, 1)
	m.SetColumn(0, []float64{7, 8, 9, 10})

	if m.At(0, 0) != 7 || m.At(1, 0) != 8 {
		t.Errorf("column = [%v %v], want [7 8]", m.At(0, 0), m.At(1, 0))
	}
}

func TestMatrixStats(t *testing.T) {
	m := NewMatrix(2, 2)
	m.Set(0, 0, 1)
	m.Set(0, 1, 2)
	m.Set(1, 0, 3)
	m.Set(1, 1, 4)

	mean, std, max, min := m.Stats()
	if mean != 2.5 {
		t.Errorf("mean = %v, want 2.5", mean)
	}
	if want := math.Sqrt(1.25); math.Abs(std-want) > 1e-12 {
		t.Errorf("std = %v, want %v", std, want)
	}
	if max != 4 || min != 1 {
		t.Errorf("max/min = %v/%v, want 4/1", max, min)
	}
}

func TestMatrixStatsZero(t *testing.T) {
	m := NewMatrix(3, 3)
	mean, std, max, min := m.Stats()
	if mean != 0 || std != 0 || max != 0 || min != 0 {
		t.Errorf("zero matrix stats = %v %v %v %v, want all zero", mean, std, max, min)
	}
}
