package agreement

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// LabelPair is one cell of the optimal correspondence between two
// annotators' thread vocabularies.
type LabelPair struct {
	LabelA  string `json:"label_a"`
	LabelB  string `json:"label_b"`
	Overlap int    `json:"overlap"`
}

// Result is the outcome of matching two label sequences.
type Result struct {
	Accuracy float64
	Mapping  []LabelPair
}

// ComputeAgreement returns the one-to-one accuracy between two index-aligned
// label sequences: the percentage of positions that agree under the
// renaming of b's labels into a's that maximizes agreement.
//
// It panics if the sequences differ in length.
func ComputeAgreement(labelsA, labelsB []string) float64 {
	return Agreement(labelsA, labelsB).Accuracy
}

// Agreement is ComputeAgreement plus the label correspondence that produced
// the score. Pairs with zero overlap are left out of the mapping.
func Agreement(labelsA, labelsB []string) Result {
	if len(labelsA) != len(labelsB) {
		panic(fmt.Sprintf("agreement: label sequences differ in length (%d vs %d)", len(labelsA), len(labelsB)))
	}
	if len(labelsA) == 0 {
		return Result{}
	}

	rows, cols, overlap := contingency(labelsA, labelsB)
	assign := maxWeightAssign(overlap)

	total := 0
	var mapping []LabelPair
	for i, j := range assign {
		if j < 0 {
			continue
		}
		n := int(overlap.At(i, j))
		if n == 0 {
			continue
		}
		total += n
		mapping = append(mapping, LabelPair{LabelA: rows[i], LabelB: cols[j], Overlap: n})
	}

	return Result{
		Accuracy: 100 * float64(total) / float64(len(labelsA)),
		Mapping:  mapping,
	}
}

// contingency builds the overlap matrix between the sorted distinct labels
// of a (rows) and b (columns). Both sequences must be non-empty.
func contingency(labelsA, labelsB []string) ([]string, []string, *mat.Dense) {
	rows, rowIdx := distinctSorted(labelsA)
	cols, colIdx := distinctSorted(labelsB)

	overlap := mat.NewDense(len(rows), len(cols), nil)
	for k := range labelsA {
		i, j := rowIdx[labelsA[k]], colIdx[labelsB[k]]
		overlap.Set(i, j, overlap.At(i, j)+1)
	}
	return rows, cols, overlap
}

func distinctSorted(labels []string) ([]string, map[string]int) {
	seen := make(map[string]struct{}, len(labels))
	var out []string
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	sort.Strings(out)

	idx := make(map[string]int, len(out))
	for i, l := range out {
		idx[l] = i
	}
	return out, idx
}
