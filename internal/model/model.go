// Package model provides forward models that map a parameter vector to
// observable outputs together with their first and second derivatives.
// Models are the functions wrapped by package memo.
package model

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimension is returned when an input does not have NumInput elements.
	ErrDimension = errors.New("input dimension mismatch")
	// ErrUnknownModel is returned by Lookup for unregistered names.
	ErrUnknownModel = errors.New("unknown model")
)

// State is the result of a single model evaluation.
type State struct {
	// F holds the NumOutput model outputs.
	F []float64
	// Grad is the NumOutput x NumInput Jacobian, nil if not computed.
	Grad *mat.Dense
	// Hess holds one NumInput x NumInput matrix per output, nil if not computed.
	Hess []*mat.Dense
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	c := State{}
	if s.F != nil {
		c.F = append([]float64(nil), s.F...)
	}
	if s.Grad != nil {
		c.Grad = mat.DenseCopyOf(s.Grad)
	}
	if s.Hess != nil {
		c.Hess = make([]*mat.Dense, len(s.Hess))
		for i, h := range s.Hess {
			if h != nil {
				c.Hess[i] = mat.DenseCopyOf(h)
			}
		}
	}
	return c
}

// Model is a deterministic forward model.
type Model interface {
	Name() string
	NumInput() int
	NumOutput() int
	Eval(x mat.Matrix) (State, error)
}

// Describe renders a short human readable summary of m.
func Describe(m Model) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\n", m.Name())
	fmt.Fprintf(&b, "Number of input parameters: %d\n", m.NumInput())
	fmt.Fprintf(&b, "Number of output parameters: %d\n", m.NumOutput())
	return b.String()
}

// params extracts the n elements of a row or column vector.
func params(x mat.Matrix, n int) ([]float64, error) {
	r, c := x.Dims()
	if (r != 1 && c != 1) || r*c != n {
		return nil, fmt.Errorf("got %dx%d input, want %d parameters: %w", r, c, n, ErrDimension)
	}
	out := make([]float64, 0, n)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out = append(out, x.At(i, j))
		}
	}
	return out, nil
}
