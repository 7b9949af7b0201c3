package model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// MatrixFunc builds the system matrix A(kappa) of dy/dt = A y together with
// the partial derivatives dA/dkappa_k. A must be linear in kappa.
type MatrixFunc func(kappa []float64) (a *mat.Dense, da []*mat.Dense)

// LinearConfig describes a linear dynamical system observed at fixed times.
type LinearConfig struct {
	Name      string
	NumParams int
	// Y0 is the initial condition at t = 0.
	Y0 []float64
	// Times are the observation times.
	Times []float64
	// Observed lists the state components reported in F. Nil reports all.
	Observed    []int
	Matrix      MatrixFunc
	SkipHessian bool
}

// LinearSystem solves dy/dt = A(kappa) y exactly with the matrix exponential.
// Outputs are ordered time-major: F[t*len(Observed)+s].
type LinearSystem struct {
	cfg LinearConfig
}

// ensure interface compliance
var _ Model = (*LinearSystem)(nil)

// NewLinearSystem validates cfg and returns the model.
func NewLinearSystem(cfg LinearConfig) (*LinearSystem, error) {
	if cfg.NumParams <= 0 {
		return nil, fmt.Errorf("model %q: number of parameters must be positive", cfg.Name)
	}
	if len(cfg.Y0) == 0 || len(cfg.Times) == 0 {
		return nil, fmt.Errorf("model %q: initial condition and observation times are required", cfg.Name)
	}
	if cfg.Matrix == nil {
		return nil, fmt.Errorf("model %q: nil matrix function", cfg.Name)
	}
	if cfg.Observed == nil {
		cfg.Observed = make([]int, len(cfg.Y0))
		for i := range cfg.Observed {
			cfg.Observed[i] = i
		}
	}
	for _, s := range cfg.Observed {
		if s < 0 || s >= len(cfg.Y0) {
			return nil, fmt.Errorf("model %q: observed component %d out of range", cfg.Name, s)
		}
	}
	return &LinearSystem{cfg: cfg}, nil
}

func (s *LinearSystem) Name() string   { return s.cfg.Name }
func (s *LinearSystem) NumInput() int  { return s.cfg.NumParams }
func (s *LinearSystem) NumOutput() int { return len(s.cfg.Times) * len(s.cfg.Observed) }

// Trajectory returns the full state (all components) at every observation
// time, one row per time.
func (s *LinearSystem) Trajectory(x mat.Matrix) (*mat.Dense, error) {
	kappa, err := params(x, s.cfg.NumParams)
	if err != nil {
		return nil, fmt.Errorf("model %q: %w", s.cfg.Name, err)
	}
	a, _, err := s.matrix(kappa)
	if err != nil {
		return nil, err
	}
	y0 := mat.NewVecDense(len(s.cfg.Y0), append([]float64(nil), s.cfg.Y0...))
	out := mat.NewDense(len(s.cfg.Times), len(s.cfg.Y0), nil)
	for ti, t := range s.cfg.Times {
		var y mat.VecDense
		y.MulVec(propagator(a, t), y0)
		out.SetRow(ti, y.RawVector().Data)
	}
	return out, nil
}

// Eval solves the system and its parameter sensitivities at x.
func (s *LinearSystem) Eval(x mat.Matrix) (State, error) {
	kappa, err := params(x, s.cfg.NumParams)
	if err != nil {
		return State{}, fmt.Errorf("model %q: %w", s.cfg.Name, err)
	}
	a, da, err := s.matrix(kappa)
	if err != nil {
		return State{}, err
	}

	np := s.cfg.NumParams
	nobs := len(s.cfg.Observed)
	nout := s.NumOutput()
	y0 := mat.NewVecDense(len(s.cfg.Y0), append([]float64(nil), s.cfg.Y0...))

	state := State{
		F:    make([]float64, nout),
		Grad: mat.NewDense(nout, np, nil),
	}
	if !s.cfg.SkipHessian {
		state.Hess = make([]*mat.Dense, nout)
		for i := range state.Hess {
			state.Hess[i] = mat.NewDense(np, np, nil)
		}
	}

	var y, dy mat.VecDense
	for ti, t := range s.cfg.Times {
		row := ti * nobs

		y.MulVec(propagator(a, t), y0)
		for oi, c := range s.cfg.Observed {
			state.F[row+oi] = y.AtVec(c)
		}

		for k := 0; k < np; k++ {
			dy.MulVec(vanLoan(a, t, da[k]), y0)
			for oi, c := range s.cfg.Observed {
				state.Grad.Set(row+oi, k, dy.AtVec(c))
			}
		}

		if state.Hess == nil {
			continue
		}
		// d2/dki dkj exp(At) = F(i,j) + F(j,i) because A is linear in kappa.
		second := make([][]*mat.VecDense, np)
		for i := 0; i < np; i++ {
			second[i] = make([]*mat.VecDense, np)
			for j := 0; j < np; j++ {
				v := mat.NewVecDense(len(s.cfg.Y0), nil)
				v.MulVec(vanLoan(a, t, da[i], da[j]), y0)
				second[i][j] = v
			}
		}
		for i := 0; i < np; i++ {
			for j := i; j < np; j++ {
				for oi, c := range s.cfg.Observed {
					h := second[i][j].AtVec(c) + second[j][i].AtVec(c)
					state.Hess[row+oi].Set(i, j, h)
					state.Hess[row+oi].Set(j, i, h)
				}
			}
		}
	}
	return state, nil
}

func (s *LinearSystem) matrix(kappa []float64) (*mat.Dense, []*mat.Dense, error) {
	a, da := s.cfg.Matrix(kappa)
	d := len(s.cfg.Y0)
	if r, c := a.Dims(); r != d || c != d {
		return nil, nil, fmt.Errorf("model %q: system matrix is %dx%d, want %dx%d", s.cfg.Name, r, c, d, d)
	}
	if len(da) != s.cfg.NumParams {
		return nil, nil, fmt.Errorf("model %q: got %d matrix derivatives, want %d", s.cfg.Name, len(da), s.cfg.NumParams)
	}
	return a, da, nil
}

// propagator returns exp(A t).
func propagator(a *mat.Dense, t float64) *mat.Dense {
	var at, e mat.Dense
	at.Scale(t, a)
	e.Exp(&at)
	return &e
}

// vanLoan returns the upper right block of exp(t M), where M is block upper
// bidiagonal with A on the diagonal and the couplings on the superdiagonal.
// With one coupling E this is the integral of exp(A(t-s)) E exp(As) over
// [0, t], i.e. the derivative of exp(At) along E.
func vanLoan(a *mat.Dense, t float64, couplings ...*mat.Dense) *mat.Dense {
	d, _ := a.Dims()
	n := len(couplings) + 1
	m := mat.NewDense(n*d, n*d, nil)
	for b := 0; b < n; b++ {
		m.Slice(b*d, (b+1)*d, b*d, (b+1)*d).(*mat.Dense).Scale(t, a)
		if b < len(couplings) {
			m.Slice(b*d, (b+1)*d, (b+1)*d, (b+2)*d).(*mat.Dense).Scale(t, couplings[b])
		}
	}
	var e mat.Dense
	e.Exp(m)
	return mat.DenseCopyOf(e.Slice(0, d, (n-1)*d, n*d))
}
