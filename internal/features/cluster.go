package features

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/muesli/clusters"
)

// ErrNotFitted is returned when Transform or Predict is called before Fit.
var ErrNotFitted = errors.New("features: cluster adder must be fitted before use")

// Defaults for ClusterFeatureAdder configuration.
const (
	DefaultClusters = 5
	DefaultSeed     = 42
	defaultMaxIter  = 100
)

// Matrix is an ordered sequence of feature rows. Column order is fixed and
// must match the layout the consuming model was trained with.
type Matrix [][]float64

// ClusterFeatureAdder appends a k-means cluster label as an extra numeric
// column. Fit partitions the training matrix into NClusters clusters,
// Transform tags each row of its input with the nearest centroid's index.
//
// The same RandomState and the same training data always yield the same
// centroids, so repeated fit/transform cycles are reproducible.
type ClusterFeatureAdder struct {
	NClusters   int
	RandomState int64
	MaxIter     int

	fitted clusters.Clusters
}

// NewClusterFeatureAdder returns an adder with the given cluster count and
// seed. Non-positive arguments fall back to the package defaults.
func NewClusterFeatureAdder(nClusters int, randomState int64) *ClusterFeatureAdder {
	if nClusters <= 0 {
		nClusters = DefaultClusters
	}
	return &ClusterFeatureAdder{
		NClusters:   nClusters,
		RandomState: randomState,
		MaxIter:     defaultMaxIter,
	}
}

// Fit partitions X into NClusters clusters and stores the centroids.
// It returns the receiver for chaining.
func (a *ClusterFeatureAdder) Fit(x Matrix) (*ClusterFeatureAdder, error) {
	if len(x) == 0 {
		return nil, errors.New("features: fit requires at least one row")
	}
	if len(x) < a.NClusters {
		return nil, fmt.Errorf("features: %d rows is fewer than %d clusters", len(x), a.NClusters)
	}

	obs := observations(x)
	cc := seedCentroids(obs, a.NClusters, rand.New(rand.NewSource(a.RandomState)))

	maxIter := a.MaxIter
	if maxIter <= 0 {
		maxIter = defaultMaxIter
	}

	assign := make([]int, len(obs))
	for it := 0; it < maxIter; it++ {
		cc.Reset()
		changed := false
		for i, o := range obs {
			ci := cc.Nearest(o)
			if assign[i] != ci {
				changed = true
			}
			assign[i] = ci
			cc[ci].Append(o)
		}
		cc.Recenter()

		// First pass always counts as a full assignment sweep.
		if !changed && it > 0 {
			break
		}
	}

	a.fitted = cc
	return a, nil
}

// Transform appends the nearest-centroid label of every row of X as a new
// last column. Row order and all original columns are preserved. Labels are
// integers in [0, NClusters-1] represented as floats.
func (a *ClusterFeatureAdder) Transform(x Matrix) (Matrix, error) {
	if a.fitted == nil {
		return nil, ErrNotFitted
	}

	out := make(Matrix, len(x))
	for i, row := range x {
		if len(row) != len(a.fitted[0].Center) {
			return nil, fmt.Errorf("features: row %d has %d columns, centroids have %d", i, len(row), len(a.fitted[0].Center))
		}
		label := a.fitted.Nearest(clusters.Coordinates(row))
		withLabel := make([]float64, len(row), len(row)+1)
		copy(withLabel, row)
		out[i] = append(withLabel, float64(label))
	}
	return out, nil
}

// FitTransform fits on X and transforms it in one call.
func (a *ClusterFeatureAdder) FitTransform(x Matrix) (Matrix, error) {
	if _, err := a.Fit(x); err != nil {
		return nil, err
	}
	return a.Transform(x)
}

// Predict returns the cluster label of every row of X without appending
// columns. Used by the trainer's segmentation report.
func (a *ClusterFeatureAdder) Predict(x Matrix) ([]int, error) {
	if a.fitted == nil {
		return nil, ErrNotFitted
	}

	labels := make([]int, len(x))
	for i, row := range x {
		if len(row) != len(a.fitted[0].Center) {
			return nil, fmt.Errorf("features: row %d has %d columns, centroids have %d", i, len(row), len(a.fitted[0].Center))
		}
		labels[i] = a.fitted.Nearest(clusters.Coordinates(row))
	}
	return labels, nil
}

// Centroids returns a copy of the fitted cluster centers.
func (a *ClusterFeatureAdder) Centroids() (Matrix, error) {
	if a.fitted == nil {
		return nil, ErrNotFitted
	}

	out := make(Matrix, len(a.fitted))
	for i, c := range a.fitted {
		out[i] = append([]float64(nil), c.Center...)
	}
	return out, nil
}

func observations(x Matrix) clusters.Observations {
	obs := make(clusters.Observations, len(x))
	for i, row := range x {
		obs[i] = clusters.Coordinates(row)
	}
	return obs
}

// seedCentroids picks initial centers from the data rows: the first at a
// seeded random index, each following one at the row farthest from its
// nearest existing center. Spreading the seeds keeps Lloyd iterations out
// of degenerate splits, and a fixed RandomState reproduces the same centers.
func seedCentroids(obs clusters.Observations, k int, rng *rand.Rand) clusters.Clusters {
	cc := make(clusters.Clusters, 0, k)

	first := append(clusters.Coordinates{}, obs[rng.Intn(len(obs))].Coordinates()...)
	cc = append(cc, clusters.Cluster{Center: first})

	for len(cc) < k {
		farthest, maxDist := 0, -1.0
		for i, o := range obs {
			nearest := cc.Nearest(o)
			if d := o.Distance(cc[nearest].Center); d > maxDist {
				maxDist = d
				farthest = i
			}
		}
		center := append(clusters.Coordinates{}, obs[farthest].Coordinates()...)
		cc = append(cc, clusters.Cluster{Center: center})
	}
	return cc
}
