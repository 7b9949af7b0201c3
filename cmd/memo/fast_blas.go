//go:build cgo

package main

// Registers the netlib BLAS implementation backed by the system BLAS.
// Without cgo, gonum/mat keeps its pure Go implementation.

import (
	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

func init() {
	blas64.Use(netlib.Implementation{})
	log.Debug().Msg("CGO/BLAS acceleration enabled (netlib)")
}
