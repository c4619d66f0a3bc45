package agreement

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestComputeAgreement(t *testing.T) {
	tests := []struct {
		name string
		a, b []string
		want float64
	}{
		{"empty", []string{}, []string{}, 0},
		{"nil", nil, nil, 0},
		{"single", []string{"T0"}, []string{"X"}, 100},
		{"relabeled", []string{"T0", "T0", "T1", "T1"}, []string{"X", "X", "Y", "Y"}, 100},
		{"partial disagreement", []string{"T0", "T0", "T1", "T1"}, []string{"X", "Y", "Y", "Y"}, 75},
		{"one thread vs all distinct", []string{"a", "a", "a", "a"}, []string{"1", "2", "3", "4"}, 25},
		{"three threads vs two", []string{"a", "a", "b", "c"}, []string{"x", "y", "y", "y"}, 50},
		{"swapped names", []string{"A", "B", "A", "B"}, []string{"B", "A", "B", "A"}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeAgreement(tt.a, tt.b))
		})
	}
}

func TestComputeAgreement_LengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		ComputeAgreement([]string{"a", "b"}, []string{"a"})
	})
}

func TestAgreement_Mapping(t *testing.T) {
	res := Agreement([]string{"T0", "T0", "T1", "T1"}, []string{"X", "Y", "Y", "Y"})

	assert.Equal(t, 75.0, res.Accuracy)
	assert.Equal(t, []LabelPair{
		{LabelA: "T0", LabelB: "X", Overlap: 1},
		{LabelA: "T1", LabelB: "Y", Overlap: 2},
	}, res.Mapping)
}

func TestComputeAgreement_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for n := 0; n < 200; n++ {
		length := 1 + rng.Intn(30)
		a := randomLabels(rng, length, 1+rng.Intn(6), "a")
		b := randomLabels(rng, length, 1+rng.Intn(6), "b")

		ab := ComputeAgreement(a, b)
		ba := ComputeAgreement(b, a)
		require.Equal(t, ab, ba, "symmetry: a=%v b=%v", a, b)

		assert.GreaterOrEqual(t, ab, 0.0)
		assert.LessOrEqual(t, ab, 100.0)

		renamed := make([]string, len(b))
		for i, l := range b {
			renamed[i] = "renamed-" + l + "-" + fmt.Sprint(len(l))
		}
		require.Equal(t, ab, ComputeAgreement(a, renamed), "relabeling invariance")

		require.Equal(t, 100.0, ComputeAgreement(a, relabel(a)), "perfect agreement with own relabeling")

		require.Equal(t, ab, ComputeAgreement(a, b), "determinism")
	}
}

func TestComputeAgreement_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 100; n++ {
		length := 1 + rng.Intn(20)
		a := randomLabels(rng, length, 1+rng.Intn(5), "a")
		b := randomLabels(rng, length, 1+rng.Intn(5), "b")

		_, _, overlap := contingency(a, b)
		best := bruteForceMax(overlap)

		want := 100 * float64(best) / float64(length)
		require.Equal(t, want, ComputeAgreement(a, b), "a=%v b=%v", a, b)
	}
}

func TestMaxWeightAssign(t *testing.T) {
	t.Run("square", func(t *testing.T) {
		w := mat.NewDense(3, 3, []float64{
			1, 2, 3,
			4, 4, 6,
			9, 8, 5,
		})
		assign := maxWeightAssign(w)
		require.Len(t, assign, 3)
		assert.Equal(t, 17.0, assignedTotal(w, assign))
	})

	t.Run("more rows than columns", func(t *testing.T) {
		w := mat.NewDense(3, 2, []float64{
			1, 10,
			10, 1,
			5, 5,
		})
		assign := maxWeightAssign(w)
		require.Len(t, assign, 3)
		assert.Equal(t, 20.0, assignedTotal(w, assign))

		unassigned := 0
		for _, j := range assign {
			if j < 0 {
				unassigned++
			}
		}
		assert.Equal(t, 1, unassigned)
	})

	t.Run("more columns than rows", func(t *testing.T) {
		w := mat.NewDense(2, 3, []float64{
			0, 7, 1,
			3, 7, 0,
		})
		assign := maxWeightAssign(w)
		require.Len(t, assign, 2)
		assert.Equal(t, 10.0, assignedTotal(w, assign))
		assert.NotEqual(t, assign[0], assign[1])
	})

	t.Run("all zero", func(t *testing.T) {
		w := mat.NewDense(2, 2, nil)
		assert.Equal(t, 0.0, assignedTotal(w, maxWeightAssign(w)))
	})
}

func randomLabels(rng *rand.Rand, n, vocab int, prefix string) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, rng.Intn(vocab))
	}
	return out
}

func relabel(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = "thread:" + l
	}
	return out
}

func assignedTotal(w *mat.Dense, assign []int) float64 {
	total := 0.0
	for i, j := range assign {
		if j >= 0 {
			total += w.At(i, j)
		}
	}
	return total
}

// bruteForceMax tries every injective mapping of rows to columns.
func bruteForceMax(w *mat.Dense) int {
	r, c := w.Dims()
	used := make([]bool, c)
	var best int
	var walk func(row, acc int)
	walk = func(row, acc int) {
		if row == r {
			if acc > best {
				best = acc
			}
			return
		}
		walk(row+1, acc)
		for j := 0; j < c; j++ {
			if used[j] {
				continue
			}
			used[j] = true
			walk(row+1, acc+int(w.At(row, j)))
			used[j] = false
		}
	}
	walk(0, 0)
	return best
}
