package bioevo

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"bioevo/internal/arrayio"
	"bioevo/internal/cell"
	"bioevo/internal/dose"
	"bioevo/internal/model"
	"bioevo/internal/render"
	"bioevo/internal/stats"
	"bioevo/internal/tissue"
)

type CellRequest struct {
	Rates    cell.Rates
	Grid     cell.TimeGrid
	Initial  cell.State
	Substeps int
	// OutDir receives trajectory.csv and trajectory.png when set.
	OutDir string
}

type CellResult struct {
	Trajectory cell.Trajectory
	Files      []string
}

// Simulate integrates a single cell. Zero rates, grid and initial state
// select the untreated baseline.
func (c *Client) Simulate(_ context.Context, req CellRequest) (CellResult, error) {
	if req.Rates == (cell.Rates{}) {
		req.Rates = cell.BaselineRates
	}
	if req.Grid == (cell.TimeGrid{}) {
		req.Grid = cell.ShortGrid
	}
	if req.Initial == (cell.State{}) {
		req.Initial = cell.Resting
	}
	traj, err := cell.Integrator{Substeps: req.Substeps}.Integrate(req.Rates, req.Initial, req.Grid)
	if err != nil {
		return CellResult{}, err
	}
	out := CellResult{Trajectory: traj}
	if req.OutDir == "" {
		return out, nil
	}

	rows := make([][]float64, len(traj.Times))
	for i := range traj.Times {
		rows[i] = []float64{traj.Times[i], traj.X[i], traj.V[i]}
	}
	chart := render.LineChart{
		Title:  fmt.Sprintf("Cell k1=%g k2=%g k3=%g", req.Rates.K1, req.Rates.K2, req.Rates.K3),
		XLabel: "t",
		YLabel: "state",
		Series: []render.Series{
			{Name: "X", X: traj.Times, Y: traj.X},
			{Name: "V", X: traj.Times, Y: traj.V},
		},
	}
	files, err := writeTableAndChart(req.OutDir, "trajectory", []string{"t", "x", "v"}, rows, chart)
	if err != nil {
		return CellResult{}, err
	}
	out.Files = files
	return out, nil
}

type SweepRequest struct {
	Hill     dose.Hill
	Mode     dose.Mode
	MaxFold  float64
	ConcLo   float64
	ConcHi   float64
	Points   int
	Rates    cell.Rates
	Grid     cell.TimeGrid
	Initial  cell.State
	Substeps int
	OutDir   string
}

type SweepResult struct {
	Points []dose.Point
	Files  []string
}

// Sweep computes steady-state voltage across log-spaced concentrations
// 10^ConcLo..10^ConcHi.
func (c *Client) Sweep(ctx context.Context, req SweepRequest) (SweepResult, error) {
	if req.Hill == (dose.Hill{}) {
		req.Hill = dose.Amiloride
	}
	if req.Mode == "" {
		req.Mode = dose.Block
	}
	if req.ConcLo == 0 && req.ConcHi == 0 {
		req.ConcLo, req.ConcHi = -8, -3
	}
	if req.ConcHi < req.ConcLo {
		return SweepResult{}, fmt.Errorf("concentration range is empty: 1e%g..1e%g", req.ConcLo, req.ConcHi)
	}
	if req.Points <= 0 {
		req.Points = 50
	}
	if req.Rates == (cell.Rates{}) {
		req.Rates = cell.BaselineRates
	}
	if req.Grid == (cell.TimeGrid{}) {
		req.Grid = cell.ShortGrid
	}
	if req.Initial == (cell.State{}) {
		req.Initial = cell.Resting
	}

	resp := dose.Response{Hill: req.Hill, Mode: req.Mode, MaxFold: req.MaxFold}
	points, err := dose.Sweep(ctx, cell.Integrator{Substeps: req.Substeps}, req.Rates, req.Initial, req.Grid, resp, dose.LogSpace(req.ConcLo, req.ConcHi, req.Points))
	if err != nil {
		return SweepResult{}, err
	}
	out := SweepResult{Points: points}
	if req.OutDir == "" {
		return out, nil
	}

	rows := make([][]float64, len(points))
	logConc := make([]float64, len(points))
	voltage := make([]float64, len(points))
	for i, pt := range points {
		rows[i] = []float64{pt.Conc, pt.Multiplier, pt.V}
		logConc[i] = math.Log10(pt.Conc)
		voltage[i] = pt.V
	}
	chart := render.LineChart{
		Title:  fmt.Sprintf("Dose response (%s, IC50=%g, n=%g)", req.Mode, req.Hill.IC50, req.Hill.N),
		XLabel: "log10 concentration (M)",
		YLabel: "steady-state V",
		Series: []render.Series{{Name: "V", X: logConc, Y: voltage}},
	}
	files, err := writeTableAndChart(req.OutDir, "dose_response", []string{"conc", "multiplier", "v"}, rows, chart)
	if err != nil {
		return SweepResult{}, err
	}
	out.Files = files
	return out, nil
}

type PKRequest struct {
	Model  dose.OneCompartment
	Hill   dose.Hill
	Hours  float64
	Points int
	OutDir string
}

type PKResult struct {
	Points []dose.BlockadePoint
	Files  []string
}

// PK samples the plasma concentration and receptor blockade over Hours.
func (c *Client) PK(_ context.Context, req PKRequest) (PKResult, error) {
	if req.Model == (dose.OneCompartment{}) {
		req.Model = dose.OralPropranolol
	}
	if req.Hill == (dose.Hill{}) {
		req.Hill = dose.Propranolol
	}
	if req.Hours <= 0 {
		req.Hours = 24
	}
	if req.Points < 2 {
		req.Points = 97
	}
	times := make([]float64, req.Points)
	for i := range times {
		times[i] = req.Hours * float64(i) / float64(req.Points-1)
	}
	points, err := req.Model.Blockade(times, req.Hill)
	if err != nil {
		return PKResult{}, err
	}
	out := PKResult{Points: points}
	if req.OutDir == "" {
		return out, nil
	}

	c0 := req.Model.InitialConcentration()
	rows := make([][]float64, len(points))
	relConc := make([]float64, len(points))
	effect := make([]float64, len(points))
	for i, pt := range points {
		rows[i] = []float64{pt.Time, pt.Conc, pt.Effect}
		if c0 > 0 {
			relConc[i] = pt.Conc / c0
		}
		effect[i] = pt.Effect
	}
	chart := render.LineChart{
		Title:  "One-compartment blockade",
		XLabel: "hours",
		YLabel: "fraction",
		Series: []render.Series{
			{Name: "C/C0", X: times, Y: relConc},
			{Name: "blockade", X: times, Y: effect},
		},
	}
	files, err := writeTableAndChart(req.OutDir, "pk_blockade", []string{"time", "conc", "effect"}, rows, chart)
	if err != nil {
		return PKResult{}, err
	}
	out.Files = files
	return out, nil
}

type TissueRequest struct {
	Generator string
	Tissue    TissueOptions
	// Params defaults to the baseline vector.
	Params      model.Params
	PatternPath string
	HeatmapPath string
	// VideoPath writes an AVI of a coupled run, one frame every FrameEvery steps.
	VideoPath  string
	FrameEvery int
}

type TissueResult struct {
	Generator string
	Pattern   model.Pattern
	Frames    int
}

func (c *Client) Tissue(ctx context.Context, req TissueRequest) (TissueResult, error) {
	if req.Generator == "" {
		req.Generator = "tissue"
	}
	if req.Params == (model.Params{}) {
		req.Params = model.Baseline
	}
	spec, err := resolveTissue(req.Generator, req.Tissue)
	if err != nil {
		return TissueResult{}, err
	}
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return TissueResult{}, err
	}
	gen, err := p.BuildGenerator(req.Generator, spec)
	if err != nil {
		return TissueResult{}, err
	}

	out := TissueResult{Generator: gen.Name()}
	if req.VideoPath != "" {
		coupled, ok := gen.(*tissue.Generator)
		if !ok || spec.Coupling <= 0 {
			return TissueResult{}, fmt.Errorf("video requires a coupled tissue")
		}
		every := req.FrameEvery
		if every <= 0 {
			every = max(1, spec.Grid.Points/100)
		}
		var frames []render.Frame
		pattern, err := coupled.GenerateFrames(ctx, req.Params, every, func(step int, t float64, v model.Pattern) error {
			frames = append(frames, render.Frame{Label: fmt.Sprintf("step %d  t=%.2f", step, t), Pattern: v})
			return nil
		})
		if err != nil {
			return TissueResult{}, err
		}
		if err := render.WriteAnimation(req.VideoPath, frames, render.VideoOptions{}); err != nil {
			return TissueResult{}, err
		}
		out.Pattern = pattern
		out.Frames = len(frames)
	} else {
		pattern, err := gen.Generate(ctx, req.Params)
		if err != nil {
			return TissueResult{}, err
		}
		out.Pattern = pattern
	}

	if req.PatternPath != "" {
		if err := arrayio.WritePattern(req.PatternPath, out.Pattern); err != nil {
			return TissueResult{}, err
		}
	}
	if req.HeatmapPath != "" {
		title := fmt.Sprintf("%s %s", gen.Name(), req.Params)
		if err := render.WritePatternPanels(req.HeatmapPath, []render.Panel{{Title: title, Pattern: out.Pattern}}); err != nil {
			return TissueResult{}, err
		}
	}
	return out, nil
}

func writeTableAndChart(dir, stem string, header []string, rows [][]float64, chart render.LineChart) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	csvPath := filepath.Join(dir, stem+".csv")
	if err := stats.WriteTable(csvPath, header, rows); err != nil {
		return nil, err
	}
	pngPath := filepath.Join(dir, stem+".png")
	if err := render.WriteLineChart(pngPath, chart); err != nil {
		return nil, err
	}
	return []string{csvPath, pngPath}, nil
}
