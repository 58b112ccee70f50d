// Command trainer fits one price-improvement regression per venue from the
// execution records in the local store and writes the model artifact the
// router serves from.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"time"

	"venue-router/internal/features"
	"venue-router/internal/router"
	"venue-router/internal/storage"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/sajari/regression"
)

func main() {
	_ = godotenv.Load()

	var (
		dataPath      = flag.String("data", "data", "directory holding the execution store")
		outPath       = flag.String("out", router.DefaultArtifactPath, "where to write the model artifact")
		lookback      = flag.Duration("lookback", 30*24*time.Hour, "how far back to read execution records")
		minSamples    = flag.Int("min-samples", 25, "minimum executions required to fit a venue model")
		clusterReport = flag.Bool("cluster-report", false, "log a k-means segmentation of the training data")
		nClusters     = flag.Int("clusters", features.DefaultClusters, "cluster count for the segmentation report")
		seed          = flag.Int64("seed", features.DefaultSeed, "random state for the segmentation report")
		demo          = flag.Int("demo", 0, "seed the store with N synthetic executions per venue before training")
	)
	flag.Parse()

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Str("data_path", *dataPath).Msg("failed to open execution store")
	}
	defer store.Close()

	if *demo > 0 {
		if err := seedDemoData(store, *demo); err != nil {
			log.Fatal().Err(err).Msg("failed to seed demo data")
		}
		log.Info().Int("per_venue", *demo).Msg("seeded synthetic executions")
	}

	venues, err := store.Venues()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to list venues")
	}
	if len(venues) == 0 {
		log.Fatal().Msg("no execution records found, nothing to train")
	}

	end := time.Now()
	start := end.Add(-*lookback)

	art := &router.Artifact{
		Version:   end.Format("20060102-150405"),
		TrainedAt: end.UTC(),
		Columns:   features.Columns,
		Venues:    make(map[string]*router.VenueModel),
	}

	var training features.Matrix
	for _, venue := range venues {
		recs, err := store.GetExecutions(venue, start, end)
		if err != nil {
			log.Fatal().Err(err).Str("venue", venue).Msg("failed to read executions")
		}
		if len(recs) < *minSamples {
			log.Warn().Str("venue", venue).Int("samples", len(recs)).Int("min", *minSamples).Msg("too few executions, skipping venue")
			continue
		}

		model, err := fitVenue(venue, recs)
		if err != nil {
			log.Error().Err(err).Str("venue", venue).Msg("regression failed, skipping venue")
			continue
		}

		art.Venues[venue] = model
		log.Info().
			Str("venue", venue).
			Int("samples", model.Samples).
			Float64("r_squared", model.RSquared).
			Msg("venue model trained")

		for _, rec := range recs {
			training = append(training, rec.Features)
		}
	}

	if len(art.Venues) == 0 {
		log.Fatal().Msg("no venue had enough executions to train a model")
	}

	if err := router.SaveArtifact(*outPath, art); err != nil {
		log.Fatal().Err(err).Str("path", *outPath).Msg("failed to write model artifact")
	}
	log.Info().Str("path", *outPath).Int("venues", len(art.Venues)).Msg("model artifact written")

	if *clusterReport {
		reportClusters(training, *nClusters, *seed)
	}
}

// fitVenue trains an OLS regression of realized improvement on the feature
// row and extracts its coefficients into the artifact's linear model form.
func fitVenue(venue string, recs []storage.ExecutionRecord) (*router.VenueModel, error) {
	r := new(regression.Regression)
	r.SetObserved("price_improvement")
	for i, col := range features.Columns {
		r.SetVar(i, col)
	}

	for _, rec := range recs {
		if len(rec.Features) != len(features.Columns) {
			return nil, fmt.Errorf("venue %s: record has %d features, expected %d", venue, len(rec.Features), len(features.Columns))
		}
		r.Train(regression.DataPoint(rec.Improvement, rec.Features))
	}

	if err := r.Run(); err != nil {
		return nil, fmt.Errorf("venue %s: %w", venue, err)
	}

	weights := make([]float64, len(features.Columns))
	for i := range weights {
		weights[i] = r.Coeff(i + 1)
	}

	return &router.VenueModel{
		Intercept: r.Coeff(0),
		Weights:   weights,
		Samples:   len(recs),
		RSquared:  r.R2,
	}, nil
}

// reportClusters fits the cluster feature adder on the pooled training
// matrix and logs how the executions segment.
func reportClusters(training features.Matrix, nClusters int, seed int64) {
	if len(training) < nClusters {
		log.Warn().Int("rows", len(training)).Msg("too few rows for cluster report")
		return
	}

	adder := features.NewClusterFeatureAdder(nClusters, seed)
	if _, err := adder.Fit(training); err != nil {
		log.Error().Err(err).Msg("cluster fit failed")
		return
	}

	labels, err := adder.Predict(training)
	if err != nil {
		log.Error().Err(err).Msg("cluster predict failed")
		return
	}

	sizes := make([]int, nClusters)
	for _, l := range labels {
		sizes[l]++
	}
	for i, n := range sizes {
		log.Info().Int("cluster", i).Int("size", n).Msg("training data segment")
	}
}

// Demo venues with distinct improvement profiles so the fitted models have
// something to disagree about.
var demoVenues = map[string]struct {
	base     float64
	sideW    float64
	spreadW  float64
	sizePenW float64
}{
	"NYSE": {base: 0.004, sideW: 0.0012, spreadW: 0.020, sizePenW: -0.0000010},
	"ARCA": {base: 0.003, sideW: -0.0008, spreadW: 0.035, sizePenW: -0.0000005},
	"BATS": {base: 0.005, sideW: 0.0002, spreadW: 0.010, sizePenW: -0.0000020},
	"EDGX": {base: 0.002, sideW: 0.0015, spreadW: 0.025, sizePenW: -0.0000008},
}

func seedDemoData(store *storage.Store, perVenue int) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	now := time.Now()

	for venue, profile := range demoVenues {
		for i := 0; i < perVenue; i++ {
			side := features.SideBuy
			if rng.Intn(2) == 0 {
				side = features.SideSell
			}

			mid := 100 + rng.Float64()*100
			spread := 0.01 + rng.Float64()*0.10

			order := features.OrderRequest{
				Symbol:     "DEMO",
				Side:       side,
				Quantity:   int64(1 + rng.Intn(1000)),
				LimitPrice: mid,
				BidPrice:   mid - spread/2,
				AskPrice:   mid + spread/2,
				BidSize:    int64(100 + rng.Intn(2000)),
				AskSize:    int64(100 + rng.Intn(2000)),
			}
			row := order.Row()

			improvement := profile.base +
				profile.sideW*row[0] +
				profile.spreadW*(row[4]-row[3]) +
				profile.sizePenW*row[1] +
				rng.NormFloat64()*0.0005

			rec := storage.ExecutionRecord{
				Venue:       venue,
				Symbol:      order.Symbol,
				Timestamp:   now.Add(-time.Duration(i) * time.Minute),
				Features:    row,
				Improvement: improvement,
			}
			if err := store.StoreExecution(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
