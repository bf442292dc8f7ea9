//go:build !gnuplot

package main

import "errors"

var errNoGnuplot = errors.New("built without gnuplot support (rebuild with -tags gnuplot)")

func quickLook(
	res *ASEResult,
	dir string,
) (
	error,
) {
	return errNoGnuplot
}
