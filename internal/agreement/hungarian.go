package agreement

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// maxWeightAssign solves the rectangular assignment problem for an r×c
// weight matrix, maximizing the total weight of the chosen cells. It
// returns assignments[i] = column matched to row i, or -1 when row i is
// left unmatched (only possible when r > c).
//
// The matrix is turned into a square cost matrix by subtracting every
// weight from the largest one; padded cells cost the same as a zero-weight
// cell, so unmatched rows and columns contribute nothing to the total.
// Kuhn-Munkres with row/column potentials, O(k³) for k = max(r, c).
func maxWeightAssign(w *mat.Dense) []int {
	r, c := w.Dims()
	if r == 0 {
		return nil
	}

	maxW := mat.Max(w)
	dim := r
	if c > dim {
		dim = c
	}

	cost := make([][]float64, dim)
	for i := 0; i < dim; i++ {
		cost[i] = make([]float64, dim)
		for j := 0; j < dim; j++ {
			if i < r && j < c {
				cost[i][j] = maxW - w.At(i, j)
			} else {
				cost[i][j] = maxW
			}
		}
	}

	// 1-indexed; index 0 is the virtual column used to start each search.
	const inf = math.MaxFloat64 / 2
	u := make([]float64, dim+1)
	v := make([]float64, dim+1)
	p := make([]int, dim+1) // p[j] = row matched to column j
	way := make([]int, dim+1)
	minv := make([]float64, dim+1)
	used := make([]bool, dim+1)

	for i := 1; i <= dim; i++ {
		p[0] = i
		j0 := 0
		for j := 1; j <= dim; j++ {
			minv[j] = inf
			used[j] = false
		}

		for {
			used[j0] = true
			i0 := p[j0]
			delta := inf
			j1 := -1

			for j := 1; j <= dim; j++ {
				if used[j] {
					continue
				}
				cur := cost[i0-1][j-1] - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}

			if j1 < 0 {
				break
			}

			for j := 0; j <= dim; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}

			j0 = j1
			if p[j0] == 0 {
				break
			}
		}

		for j0 != 0 {
			p[j0] = p[way[j0]]
			j0 = way[j0]
		}
	}

	result := make([]int, r)
	for i := range result {
		result[i] = -1
	}
	for j := 1; j <= c; j++ {
		if row := p[j]; row > 0 && row <= r {
			result[row-1] = j - 1
		}
	}
	return result
}
