package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Strangeisit/hoticeteaoreryproject/internal/bodies"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/orbit"
	"github.com/Strangeisit/hoticeteaoreryproject/internal/sim"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	years := flag.Float64("years", 1, "simulated years to cover")
	step := flag.Float64("step", 0.25, "simulated years between rows")
	body := flag.String("body", "", "only print this body")
	method := flag.String("method", "mean_anomaly", "solver: mean_anomaly or kepler")
	phase := flag.Bool("phase", true, "include each body's initial mean anomaly")
	flag.Parse()

	m, err := orbit.ParseMethod(*method)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	if !(*step > 0) || *years < 0 {
		fmt.Println("ERROR: step must be positive and years non-negative")
		os.Exit(1)
	}

	reg := bodies.Default()
	if *body != "" {
		if _, ok := reg.Get(*body); !ok {
			fmt.Printf("ERROR: unknown body %q\n", *body)
			os.Exit(1)
		}
	}
	logger.Info("diag", "bodies", reg.Len(), "method", m.String(), "initial_phase", *phase)

	cfg := sim.StepConfig{Method: m, InitialPhase: *phase}
	st := sim.NewState(0)
	now := time.Now()

	rows := 0
	for t := 0.0; t <= *years+1e-9; t += *step {
		st.Clock.Time = t
		f := sim.Render(st, reg, cfg, now)
		fmt.Printf("t=%.3fy  %s\n", f.Time, f.Date.UTC().Format(time.DateOnly))
		for _, b := range f.Bodies {
			if *body != "" && b.Name != *body {
				continue
			}
			p := b.Position
			fmt.Printf("  %-10s ma=%8.3f°  p=(%7.3f, %7.3f, %7.3f)  r=%.3f\n",
				b.Name, orbit.ToDeg(b.MeanAnomaly), p.X, p.Y, p.Z, r3.Norm(p))
		}
		rows++
	}
	fmt.Printf("\nRendered %d frames\n", rows)
}
