package model

import "gonum.org/v1/gonum/mat"

const catalysisSpecies = 6

// CatalysisObserved are the reported species; the third one cannot be measured.
var CatalysisObserved = []int{0, 1, 3, 4, 5}

// NewCatalysis returns the catalytic conversion model with five reaction
// rate constants. Concentrations start at (500, 0, 0, 0, 0, 0) and are
// observed every 30 minutes up to 180.
func NewCatalysis() *LinearSystem {
	s, err := NewLinearSystem(LinearConfig{
		Name:      "Catalysis model",
		NumParams: 5,
		Y0:        []float64{500, 0, 0, 0, 0, 0},
		Times:     []float64{0, 30, 60, 90, 120, 150, 180},
		Observed:  CatalysisObserved,
		Matrix:    catalysisMatrix,
	})
	if err != nil {
		panic(err)
	}
	return s
}

// NewCatalysisFull returns the dimensionless catalysis model in which every
// entry of the 6x6 system matrix is a free parameter (row-major).
func NewCatalysisFull() *LinearSystem {
	s, err := NewLinearSystem(LinearConfig{
		Name:      "Catalysis model (dimensionless, full matrix)",
		NumParams: catalysisSpecies * catalysisSpecies,
		Y0:        []float64{1, 0, 0, 0, 0, 0},
		Times:     []float64{0, 1. / 6, 1. / 3, 1. / 2, 2. / 3, 5. / 6, 1},
		Observed:  CatalysisObserved,
		Matrix:    fullMatrix,
	})
	if err != nil {
		panic(err)
	}
	return s
}

func catalysisMatrix(k []float64) (*mat.Dense, []*mat.Dense) {
	a := mat.NewDense(catalysisSpecies, catalysisSpecies, []float64{
		-k[0], 0, 0, 0, 0, 0,
		k[0], -k[1] - k[3] - k[4], 0, 0, 0, 0,
		0, k[1], -k[2], 0, 0, 0,
		0, 0, k[2], 0, 0, 0,
		0, k[4], 0, 0, 0, 0,
		0, k[3], 0, 0, 0, 0,
	})

	da := make([]*mat.Dense, len(k))
	for i := range da {
		da[i] = mat.NewDense(catalysisSpecies, catalysisSpecies, nil)
	}
	da[0].Set(0, 0, -1)
	da[0].Set(1, 0, 1)
	da[1].Set(1, 1, -1)
	da[1].Set(2, 1, 1)
	da[2].Set(2, 2, -1)
	da[2].Set(3, 2, 1)
	da[3].Set(1, 1, -1)
	da[3].Set(5, 1, 1)
	da[4].Set(1, 1, -1)
	da[4].Set(4, 1, 1)
	return a, da
}

func fullMatrix(k []float64) (*mat.Dense, []*mat.Dense) {
	a := mat.NewDense(catalysisSpecies, catalysisSpecies, append([]float64(nil), k...))
	da := make([]*mat.Dense, len(k))
	for i := range da {
		da[i] = mat.NewDense(catalysisSpecies, catalysisSpecies, nil)
		da[i].Set(i/catalysisSpecies, i%catalysisSpecies, 1)
	}
	return a, da
}
