// Command evapcalc runs the evaporation calculation for a fixture written by
// genmock and prints the result with every intermediate as JSON. Raster
// substitution is not available offline.
//
// Usage:
//
//	go run ./cmd/evapcalc -fixture data/mock/reference_day.json
//	go run ./cmd/evapcalc -fixture day.json -lake-coefficient 1.1 -log-level debug
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/couchcryptid/lake-evaporation-etl/internal/config"
	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/fixture"
	"github.com/couchcryptid/lake-evaporation-etl/internal/observability"
	"github.com/couchcryptid/lake-evaporation-etl/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "evapcalc:", err)
		os.Exit(1)
	}
}

func run() error {
	path := flag.String("fixture", "", "path to a fixture JSON file")
	logLevel := flag.String("log-level", "warn", "log level")
	consts := domain.DefaultConstants()
	flag.Float64Var(&consts.Albedo, "albedo", consts.Albedo, "water surface albedo")
	flag.Float64Var(&consts.AngstromA, "angstrom-a", consts.AngstromA, "Angström a coefficient")
	flag.Float64Var(&consts.AngstromB, "angstrom-b", consts.AngstromB, "Angström b coefficient")
	flag.Float64Var(&consts.LakeCoefficient, "lake-coefficient", consts.LakeCoefficient, "ET0 to lake evaporation factor")
	flag.Parse()

	if *path == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -fixture")
	}
	if err := consts.Validate(); err != nil {
		return err
	}

	f, err := fixture.Load(*path)
	if err != nil {
		return err
	}
	day, err := f.Day()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(&config.Config{LogLevel: *logLevel, LogFormat: "text"})
	processor := pipeline.NewProcessor(f, nil, consts, logger, observability.NewMetricsForTesting())

	res, err := processor.Process(context.Background(), f.Location, day, "offline")
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
