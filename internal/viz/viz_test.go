package viz

import (
	"context"
	"strings"
	"testing"

	"github.com/san-kum/demsim/internal/dem"
	"github.com/san-kum/demsim/internal/metrics"
	"github.com/san-kum/demsim/internal/sim"
)

var grain = dem.NewMaterial(0, 2.7e3, 30e6, 0.2, dem.Color{})

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(100, 0)

	if c.Grid[0][0] != 0x2801 {
		t.Errorf("expected dot 1, got %U", c.Grid[0][0])
	}
	if c.Grid[0][1] != 0x2880 {
		t.Errorf("expected dot 8, got %U", c.Grid[0][1])
	}
	c.Clear()
	if c.String() != "⠀⠀\n" {
		t.Errorf("expected blank canvas, got %q", c.String())
	}
}

func TestFit(t *testing.T) {
	ps := []dem.Particle{
		dem.NewParticle(0, 0.1, grain, dem.FreeMovable).At(dem.Vector{X: -1, Z: 0}),
		dem.NewParticle(1, 0.2, grain, dem.Fixed).At(dem.Vector{X: 2, Z: 3}),
	}
	b := Fit(ps)
	want := Bounds{MinX: -1.2, MaxX: 2.2, MinZ: -0.2, MaxZ: 3.2}
	if b != want {
		t.Errorf("expected %+v, got %+v", want, b)
	}

	if empty := Fit(nil); empty.MaxX <= empty.MinX {
		t.Errorf("expected usable default bounds, got %+v", empty)
	}
}

func TestScatter(t *testing.T) {
	c := NewCanvas(10, 5)
	ps := []dem.Particle{
		dem.NewParticle(0, 0.1, grain, dem.FreeMovable).At(dem.Vector{X: 0, Z: 0}),
		dem.NewParticle(1, 0.1, grain, dem.FreeMovable).At(dem.Vector{X: 1, Z: 1}),
	}
	c.Scatter(ps, Bounds{MinX: 0, MaxX: 1, MinZ: 0, MaxZ: 1})

	// z grows upwards: the origin lands on the bottom row.
	if c.Grid[4][0] == brailleBlank {
		t.Error("expected a dot in the bottom-left cell")
	}
	if c.Grid[0][0] != brailleBlank {
		t.Error("expected the top-left cell to stay blank")
	}
}

func TestPlot(t *testing.T) {
	samples := []metrics.Sample{{Dt: 0.01}, {Dt: 0.005}, {Dt: 0.0025}}
	out := Plot(samples, "dt", 20, 5)
	if !strings.Contains(out, "dt") {
		t.Errorf("expected caption in plot, got %q", out)
	}
	if Plot(samples, "nope", 20, 5) != "" {
		t.Error("expected empty plot for unknown series")
	}
	if Plot(nil, "dt", 20, 5) != "" {
		t.Error("expected empty plot without samples")
	}
}

func TestSparklineChart(t *testing.T) {
	if got := SparklineChart(nil, 5); got != "─────" {
		t.Errorf("expected flat line, got %q", got)
	}
	out := SparklineChart([]float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 4)
	if !strings.Contains(out, "█") {
		t.Errorf("expected the maximum bar, got %q", out)
	}
}

func TestLiveModel(t *testing.T) {
	cpu, err := sim.NewCPU(sim.DefaultCPUConfig())
	if err != nil {
		t.Fatal(err)
	}
	cpu.AddParticle(dem.NewParticle(0, 0.05, grain, dem.FreeMovable).At(dem.Vector{Z: 1}))

	rec := metrics.NewRecorder()
	runner := sim.NewRunner(cpu)
	runner.AddObserver(rec)
	limits := sim.RunConfig{MaxSteps: 20, SampleEvery: 5}
	job := runner.Start(context.Background(), limits)

	m := NewLiveModel("column", "cpu", job, rec, limits)
	msg := m.wait()
	done, ok := msg.(DoneMsg)
	if !ok || done.Err != nil {
		t.Fatalf("unexpected message %#v", msg)
	}

	next, cmd := m.Update(done)
	if cmd == nil {
		t.Error("expected quit command")
	}
	final := next.(LiveModel)
	res, err := final.Result()
	if err != nil || res.Steps != 20 {
		t.Errorf("unexpected result %+v, %v", res, err)
	}

	view := final.View()
	for _, want := range []string{"COLUMN", "DONE", "Particles"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}
}
