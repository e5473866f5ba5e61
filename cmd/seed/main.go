// Command seed writes a deterministic synthetic archive for local
// development and API smoke tests. Every surface variable of the chosen
// model gets a smooth diurnal ramp so point queries return plausible,
// reproducible numbers without any upstream data.
//
// Usage:
//
//	go run ./cmd/seed -data-root ./data -model gfs025 -days 7
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/couchcryptid/forecast-point-service/internal/config"
	"github.com/couchcryptid/forecast-point-service/internal/domain"
	"github.com/couchcryptid/forecast-point-service/internal/observability"
	"github.com/couchcryptid/forecast-point-service/internal/registry"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataRoot := flag.String("data-root", "./data", "archive root directory")
	modelName := flag.String("model", "gfs025", "model to seed")
	days := flag.Int("days", 7, "days of data to generate, starting today 00:00 UTC")
	flag.Parse()

	cfg := &config.Config{
		DataRoot:        *dataRoot,
		LogLevel:        "info",
		LogFormat:       "text",
		HandleCacheSize: 64,
	}
	logger := observability.NewLogger(cfg)

	reg, err := registry.Load(cfg, logger)
	if err != nil {
		return err
	}
	defer reg.Cache.Close()

	splitter, ok := reg.Splitter(*modelName)
	if !ok {
		return fmt.Errorf("unknown model %q", *modelName)
	}
	m := splitter.Model()

	today := time.Now().UTC().Truncate(24 * time.Hour)
	tr, err := domain.NewTimeRange(
		domain.Timestamp(today.Unix()),
		domain.Timestamp(today.AddDate(0, 0, *days).Unix()),
		m.DtSeconds)
	if err != nil {
		return err
	}

	count := m.Grid.Count()
	steps := tr.Count()
	logger.Info("seeding", "model", m.Name, "grid_points", count, "timesteps", steps)

	for name, v := range domain.Catalog {
		if !m.HasVariable(v) {
			continue
		}
		values := make([]float32, count*steps)
		for loc := 0; loc < count; loc++ {
			lat, _ := m.Grid.Coordinates(loc)
			for t := 0; t < steps; t++ {
				values[loc*steps+t] = synthesize(v, lat, tr.At(t))
			}
		}
		if err := splitter.WriteFrame(v, tr, values); err != nil {
			return fmt.Errorf("seed %s: %w", name, err)
		}
		logger.Info("seeded variable", "variable", name)
	}
	return nil
}

// synthesize produces a smooth, latitude- and time-dependent value in a
// realistic range for the variable.
func synthesize(v domain.Variable, lat float64, ts domain.Timestamp) float32 {
	hour := float64(ts.Time().Hour())
	diurnal := math.Sin((hour - 6) / 24 * 2 * math.Pi)

	switch v.Kind {
	case domain.KindTemperature:
		return float32(25 - math.Abs(lat)/3 + 5*diurnal)
	case domain.KindRelativeHumidity:
		return float32(60 - 15*diurnal)
	case domain.KindCloudCover:
		return float32(50 + 30*math.Sin(float64(ts)/86400))
	case domain.KindShortwaveRadiation:
		return float32(math.Max(0, 600*diurnal))
	default:
		switch v.Unit {
		case domain.UnitPascal, domain.UnitHectopascal:
			return float32(101325 + 200*diurnal)
		case domain.UnitMillimetre:
			return 0
		default:
			return float32(3 * diurnal)
		}
	}
}
