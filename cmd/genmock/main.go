// Command genmock writes a synthetic one-day sensor fixture for offline
// evaporation runs. The defaults reproduce the published validation day at
// 51°N, 23 m altitude on 29 June 2023.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/reference_day.json
//	go run ./cmd/genmock -out gap.json -omit humidity -sunshine -1
package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/couchcryptid/lake-evaporation-etl/internal/domain"
	"github.com/couchcryptid/lake-evaporation-etl/internal/fixture"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the JSON fixture")
	date := flag.String("date", "2023-06-29", "calendar day (YYYY-MM-DD)")
	tz := flag.String("tz", "UTC", "IANA timezone of the location")
	id := flag.String("id", "reference", "location id")
	lat := flag.Float64("lat", 51, "latitude in degrees")
	lon := flag.Float64("lon", 0.5, "longitude in degrees")
	alt := flag.Float64("alt", 23, "altitude in metres")
	omit := flag.String("omit", "", "comma-separated kinds to leave out, e.g. humidity,wind_speed")

	d := fixture.ReferenceDay
	flag.Float64Var(&d.TMin, "tmin", d.TMin, "daily minimum temperature (°C)")
	flag.Float64Var(&d.TMax, "tmax", d.TMax, "daily maximum temperature (°C)")
	flag.Float64Var(&d.RHMin, "rhmin", d.RHMin, "daily minimum relative humidity (%)")
	flag.Float64Var(&d.RHMax, "rhmax", d.RHMax, "daily maximum relative humidity (%)")
	flag.Float64Var(&d.WindMean, "wind", d.WindMean, "mean 10 m wind speed (km/h)")
	flag.Float64Var(&d.Pressure, "pressure", d.Pressure, "air pressure (hPa)")
	flag.Float64Var(&d.SunshineHours, "sunshine", d.SunshineHours, "sunshine hours, negative to omit")
	flag.DurationVar(&d.Interval, "interval", d.Interval, "sampling interval")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if d.TMin > d.TMax || d.RHMin > d.RHMax {
		return fmt.Errorf("minimum exceeds maximum")
	}

	parsed, err := time.Parse(time.DateOnly, *date)
	if err != nil {
		return fmt.Errorf("parse -date: %w", err)
	}
	day, err := domain.DayRangeIn(parsed, *tz)
	if err != nil {
		return err
	}

	omitted := make(map[domain.Kind]bool)
	for _, k := range strings.Split(*omit, ",") {
		if k = strings.TrimSpace(k); k != "" {
			omitted[domain.Kind(k)] = true
		}
	}

	readings := fixture.Generate(day, d, omitted)
	refs := make(map[domain.Kind]string)
	for _, r := range readings {
		refs[r.Kind] = "tsId(" + string(r.Kind) + ")"
	}

	f := &fixture.Fixture{
		Location: domain.LocationMetadata{
			LocationID:   *id,
			Name:         "Synthetic " + *id,
			TimeSeriesID: "evap-" + *id,
			Timezone:     *tz,
			Latitude:     lat,
			Longitude:    lon,
			Altitude:     *alt,
			References:   refs,
		},
		Date:     day.Date.Format(time.DateOnly),
		Readings: readings,
	}
	if err := f.Save(*out); err != nil {
		return err
	}
	fmt.Printf("wrote %d readings for %s to %s\n", len(readings), f.Date, *out)
	return nil
}
