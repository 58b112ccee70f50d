package router

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"venue-router/internal/features"
)

// DefaultArtifactPath is where the trainer writes the venue models and where
// the service looks when no path is configured.
const DefaultArtifactPath = "per_venue_price_improvement_models.json"

// Artifact is the on-disk registry format: one fitted linear model per venue
// plus training metadata.
type Artifact struct {
	Version   string                 `json:"version"`
	TrainedAt time.Time              `json:"trained_at"`
	Columns   []string               `json:"columns"`
	Venues    map[string]*VenueModel `json:"venues"`
}

// VenueModel is a trained per-venue regressor with its training stats.
type VenueModel struct {
	Intercept float64   `json:"intercept"`
	Weights   []float64 `json:"weights"`
	Samples   int       `json:"samples"`
	RSquared  float64   `json:"r_squared"`
}

// Predict evaluates the linear model on a feature row.
func (m *VenueModel) Predict(row []float64) (float64, error) {
	if len(row) != len(m.Weights) {
		return 0, fmt.Errorf("router: expected %d features, got %d", len(m.Weights), len(row))
	}

	pred := m.Intercept
	for i, w := range m.Weights {
		pred += w * row[i]
	}
	return pred, nil
}

// LoadRegistry reads a model artifact and builds an immutable registry.
// The artifact's column list must match features.Columns exactly: the models
// do not name-check columns at predict time, so a drifted layout would
// silently produce wrong predictions.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact %s: %w", path, err)
	}

	var art Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return nil, fmt.Errorf("parse model artifact %s: %w", path, err)
	}

	if len(art.Columns) != len(features.Columns) {
		return nil, fmt.Errorf("artifact has %d columns, expected %d", len(art.Columns), len(features.Columns))
	}
	for i, col := range art.Columns {
		if col != features.Columns[i] {
			return nil, fmt.Errorf("artifact column %d is %q, expected %q", i, col, features.Columns[i])
		}
	}

	models := make(map[string]Regressor, len(art.Venues))
	for venue, vm := range art.Venues {
		if venue == "" {
			return nil, fmt.Errorf("artifact contains a model with an empty venue id")
		}
		if len(vm.Weights) != len(features.Columns) {
			return nil, fmt.Errorf("venue %s: model has %d weights, expected %d", venue, len(vm.Weights), len(features.Columns))
		}
		models[venue] = vm
	}

	reg := NewRegistry(models)
	reg.version = art.Version
	reg.trainedAt = art.TrainedAt

	log.Info().
		Str("path", path).
		Str("version", art.Version).
		Int("venues", reg.Len()).
		Time("trained_at", art.TrainedAt).
		Msg("model registry loaded")

	return reg, nil
}

// SaveArtifact writes the artifact atomically (temp file + rename) so a
// concurrently starting service never sees a partial registry.
func SaveArtifact(path string, art *Artifact) error {
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model artifact: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".artifact-*.json")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("chmod temp artifact: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename artifact into place: %w", err)
	}
	return nil
}
