package router

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"venue-router/internal/features"
)

func TestVenueModel_Predict(t *testing.T) {
	m := &VenueModel{
		Intercept: 0.5,
		Weights:   []float64{1, 0, 0, 0, 0, 0, 2},
	}

	pred, err := m.Predict([]float64{1, 100, 180, 179.9, 180.1, 500, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.5+1+6, pred, 1e-12)
}

func TestVenueModel_Predict_DimensionMismatch(t *testing.T) {
	m := &VenueModel{Weights: []float64{1, 2, 3}}

	_, err := m.Predict([]float64{1, 2})
	assert.Error(t, err)
}

func TestSaveAndLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	art := &Artifact{
		Version:   "20260827-120000",
		TrainedAt: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
		Columns:   features.Columns,
		Venues: map[string]*VenueModel{
			"NYSE": {Intercept: 0.01, Weights: []float64{1, 2, 3, 4, 5, 6, 7}, Samples: 100, RSquared: 0.8},
			"ARCA": {Intercept: 0.02, Weights: []float64{7, 6, 5, 4, 3, 2, 1}, Samples: 50, RSquared: 0.6},
		},
	}

	require.NoError(t, SaveArtifact(path, art))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)

	assert.Equal(t, 2, reg.Len())
	assert.Equal(t, []string{"ARCA", "NYSE"}, reg.Venues())
	assert.Equal(t, "20260827-120000", reg.Version())
	assert.Equal(t, art.TrainedAt, reg.TrainedAt())

	m, ok := reg.Model("NYSE")
	require.True(t, ok)
	pred, err := m.Predict([]float64{1, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.01, pred, 1e-12)
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadRegistry_MalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

func TestLoadRegistry_ColumnMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")

	cols := append([]string(nil), features.Columns...)
	cols[0], cols[1] = cols[1], cols[0]

	art := &Artifact{
		Columns: cols,
		Venues: map[string]*VenueModel{
			"NYSE": {Weights: make([]float64, len(features.Columns))},
		},
	}
	require.NoError(t, SaveArtifact(path, art))

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column")
}

func TestLoadRegistry_WrongWeightCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	art := &Artifact{
		Columns: features.Columns,
		Venues: map[string]*VenueModel{
			"NYSE": {Weights: []float64{1, 2}},
		},
	}
	require.NoError(t, SaveArtifact(path, art))

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestLoadRegistry_EmptyVenueID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	art := &Artifact{
		Columns: features.Columns,
		Venues: map[string]*VenueModel{
			"": {Weights: make([]float64, len(features.Columns))},
		},
	}
	require.NoError(t, SaveArtifact(path, art))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

func TestLoadRegistry_ZeroVenues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.json")
	art := &Artifact{
		Columns: features.Columns,
		Venues:  map[string]*VenueModel{},
	}
	require.NoError(t, SaveArtifact(path, art))

	// Loading succeeds; the empty registry surfaces as ErrEmptyRegistry at
	// scoring time.
	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reg.Len())
}

func TestSaveArtifact_Atomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "models.json")

	art := &Artifact{
		Columns: features.Columns,
		Venues: map[string]*VenueModel{
			"NYSE": {Weights: make([]float64, len(features.Columns))},
		},
	}
	require.NoError(t, SaveArtifact(path, art))

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, "models.json", entries[0].Name())
}
