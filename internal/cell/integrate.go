package cell

import "fmt"

// Trajectory holds the sampled solution on a TimeGrid.
type Trajectory struct {
	Times []float64 `json:"times"`
	X     []float64 `json:"x"`
	V     []float64 `json:"v"`
}

func (t Trajectory) Final() State {
	n := len(t.V)
	if n == 0 {
		return State{}
	}
	return State{X: t.X[n-1], V: t.V[n-1]}
}

// Integrator advances a cell over a grid.
type Integrator struct {
	Substeps int
}

func (in Integrator) substeps() int {
	if in.Substeps <= 0 {
		return DefaultSubsteps
	}
	return in.Substeps
}

// Integrate samples the solution at every grid point.
func (in Integrator) Integrate(r Rates, y0 State, grid TimeGrid) (Trajectory, error) {
	if err := grid.Validate(); err != nil {
		return Trajectory{}, err
	}
	if !y0.finite() {
		return Trajectory{}, fmt.Errorf("%w: initial state %+v", ErrNonFinite, y0)
	}
	traj := Trajectory{
		Times: grid.Times(),
		X:     make([]float64, grid.Points),
		V:     make([]float64, grid.Points),
	}
	traj.X[0], traj.V[0] = y0.X, y0.V

	s := y0
	for i := 1; i < grid.Points; i++ {
		var err error
		s, err = in.advance(r, s, traj.Times[i-1], traj.Times[i])
		if err != nil {
			return Trajectory{}, err
		}
		traj.X[i], traj.V[i] = s.X, s.V
	}
	return traj, nil
}

// Final integrates to the end of the grid without keeping the samples.
func (in Integrator) Final(r Rates, y0 State, grid TimeGrid) (State, error) {
	if err := grid.Validate(); err != nil {
		return State{}, err
	}
	if !y0.finite() {
		return State{}, fmt.Errorf("%w: initial state %+v", ErrNonFinite, y0)
	}
	s := y0
	prev := grid.At(0)
	for i := 1; i < grid.Points; i++ {
		next := grid.At(i)
		var err error
		s, err = in.advance(r, s, prev, next)
		if err != nil {
			return State{}, err
		}
		prev = next
	}
	return s, nil
}

func (in Integrator) advance(r Rates, s State, from, to float64) (State, error) {
	n := in.substeps()
	h := (to - from) / float64(n)
	for k := 0; k < n; k++ {
		s = rk4(r, s, h)
		if !s.finite() {
			return State{}, fmt.Errorf("%w: t=%.6g state=%+v", ErrNonFinite, from+float64(k+1)*h, s)
		}
	}
	return s, nil
}

func rk4(r Rates, s State, h float64) State {
	k1 := Derivatives(r, s)
	k2 := Derivatives(r, State{X: s.X + 0.5*h*k1.X, V: s.V + 0.5*h*k1.V})
	k3 := Derivatives(r, State{X: s.X + 0.5*h*k2.X, V: s.V + 0.5*h*k2.V})
	k4 := Derivatives(r, State{X: s.X + h*k3.X, V: s.V + h*k3.V})
	return State{
		X: s.X + h/6*(k1.X+2*k2.X+2*k3.X+k4.X),
		V: s.V + h/6*(k1.V+2*k2.V+2*k3.V+k4.V),
	}
}

// EulerStep is one explicit Euler step; the coupled tissue update uses it
// with an extra diffusion term on V.
func EulerStep(r Rates, s State, dt float64, extraV float64) State {
	d := Derivatives(r, s)
	return State{X: s.X + dt*d.X, V: s.V + dt*(d.V+extraV)}
}
