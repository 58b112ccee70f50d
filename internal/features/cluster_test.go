package features

import (
	"errors"
	"math/rand"
	"testing"
)

// threeBlobs builds a matrix with three well-separated groups of points.
func threeBlobs(perBlob int) Matrix {
	rng := rand.New(rand.NewSource(7))
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}

	var x Matrix
	for _, c := range centers {
		for i := 0; i < perBlob; i++ {
			x = append(x, []float64{
				c[0] + rng.Float64(),
				c[1] + rng.Float64(),
			})
		}
	}
	return x
}

func TestClusterFeatureAdder_TransformShape(t *testing.T) {
	x := threeBlobs(20)

	adder := NewClusterFeatureAdder(3, DefaultSeed)
	if _, err := adder.Fit(x); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	out, err := adder.Transform(x)
	if err != nil {
		t.Fatalf("transform failed: %v", err)
	}

	if len(out) != len(x) {
		t.Fatalf("expected %d rows, got %d", len(x), len(out))
	}
	for i, row := range out {
		if len(row) != len(x[i])+1 {
			t.Fatalf("row %d: expected %d columns, got %d", i, len(x[i])+1, len(row))
		}
		// Original columns preserved in order.
		for j := range x[i] {
			if row[j] != x[i][j] {
				t.Errorf("row %d col %d: expected %v, got %v", i, j, x[i][j], row[j])
			}
		}
		// Appended label is an integer in [0, k-1].
		label := row[len(row)-1]
		if label != float64(int(label)) || label < 0 || label > 2 {
			t.Errorf("row %d: label %v out of range [0, 2]", i, label)
		}
	}
}

func TestClusterFeatureAdder_Determinism(t *testing.T) {
	x := threeBlobs(25)

	first := NewClusterFeatureAdder(3, 42)
	if _, err := first.Fit(x); err != nil {
		t.Fatalf("first fit failed: %v", err)
	}
	a, err := first.Transform(x)
	if err != nil {
		t.Fatalf("first transform failed: %v", err)
	}

	second := NewClusterFeatureAdder(3, 42)
	if _, err := second.Fit(x); err != nil {
		t.Fatalf("second fit failed: %v", err)
	}
	b, err := second.Transform(x)
	if err != nil {
		t.Fatalf("second transform failed: %v", err)
	}

	for i := range a {
		la, lb := a[i][len(a[i])-1], b[i][len(b[i])-1]
		if la != lb {
			t.Fatalf("row %d: assignments differ across fits with the same seed: %v vs %v", i, la, lb)
		}
	}
}

func TestClusterFeatureAdder_TransformBeforeFit(t *testing.T) {
	adder := NewClusterFeatureAdder(3, DefaultSeed)

	if _, err := adder.Transform(Matrix{{1, 2}}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted, got %v", err)
	}
	if _, err := adder.Predict(Matrix{{1, 2}}); !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted from Predict, got %v", err)
	}
	if _, err := adder.Centroids(); !errors.Is(err, ErrNotFitted) {
		t.Errorf("expected ErrNotFitted from Centroids, got %v", err)
	}
}

func TestClusterFeatureAdder_FitValidation(t *testing.T) {
	adder := NewClusterFeatureAdder(5, DefaultSeed)

	if _, err := adder.Fit(Matrix{}); err == nil {
		t.Error("expected error for empty matrix")
	}
	if _, err := adder.Fit(Matrix{{1, 2}, {3, 4}}); err == nil {
		t.Error("expected error when rows < clusters")
	}
}

func TestClusterFeatureAdder_DimensionMismatch(t *testing.T) {
	x := threeBlobs(10)

	adder := NewClusterFeatureAdder(3, DefaultSeed)
	if _, err := adder.Fit(x); err != nil {
		t.Fatalf("fit failed: %v", err)
	}

	if _, err := adder.Transform(Matrix{{1, 2, 3}}); err == nil {
		t.Error("expected error for mismatched column count")
	}
}

func TestClusterFeatureAdder_FitChaining(t *testing.T) {
	x := threeBlobs(10)

	adder := NewClusterFeatureAdder(3, DefaultSeed)
	got, err := adder.Fit(x)
	if err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	if got != adder {
		t.Error("Fit should return the receiver for chaining")
	}

	// FitTransform fits from scratch and tags every row.
	out, err := NewClusterFeatureAdder(3, DefaultSeed).FitTransform(x)
	if err != nil {
		t.Fatalf("fit-transform failed: %v", err)
	}
	if len(out) != len(x) {
		t.Fatalf("expected %d rows, got %d", len(x), len(out))
	}
}

func TestClusterFeatureAdder_SeparatedBlobsGetDistinctLabels(t *testing.T) {
	x := threeBlobs(20)

	adder := NewClusterFeatureAdder(3, DefaultSeed)
	labels, err := adder.mustFit(t, x).Predict(x)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}

	// Every blob is internally consistent: all 20 points share one label.
	for blob := 0; blob < 3; blob++ {
		first := labels[blob*20]
		for i := blob * 20; i < (blob+1)*20; i++ {
			if labels[i] != first {
				t.Fatalf("blob %d is split across clusters %d and %d", blob, first, labels[i])
			}
		}
	}

	// And the three blobs land in three distinct clusters.
	seen := map[int]bool{labels[0]: true, labels[20]: true, labels[40]: true}
	if len(seen) != 3 {
		t.Errorf("expected 3 distinct cluster labels, got %d", len(seen))
	}
}

func (a *ClusterFeatureAdder) mustFit(t *testing.T, x Matrix) *ClusterFeatureAdder {
	t.Helper()
	if _, err := a.Fit(x); err != nil {
		t.Fatalf("fit failed: %v", err)
	}
	return a
}
