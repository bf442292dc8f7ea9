package main

import (
	"fmt"
	"math"
	"strings"
)

const um2ToCM2 = 1e-8

// SpotGeometry is the excitation spot on the sample.
type SpotGeometry interface {
	AreaCM2() float64
	String() string
}

type Rectangle struct {
	HeightUM, WidthUM float64
}

func (r Rectangle) AreaCM2() float64 { return r.HeightUM * r.WidthUM * um2ToCM2 }

func (r Rectangle) String() string {
	return fmt.Sprintf("rectangle %g x %g um", r.HeightUM, r.WidthUM)
}

type Circle struct {
	DiameterUM float64
}

func (c Circle) AreaCM2() float64 {
	return math.Pi * math.Pow(c.DiameterUM/2, 2) * um2ToCM2
}

func (c Circle) String() string { return fmt.Sprintf("circle d=%g um", c.DiameterUM) }

type Ellipse struct {
	MajorUM, MinorUM float64
}

func (e Ellipse) AreaCM2() float64 {
	return math.Pi * (e.MajorUM / 2) * (e.MinorUM / 2) * um2ToCM2
}

func (e Ellipse) String() string {
	return fmt.Sprintf("ellipse %g x %g um", e.MajorUM, e.MinorUM)
}

type UnknownSpotShapeError struct {
	Shape string
}

func (e *UnknownSpotShapeError) Error() string {
	return fmt.Sprintf("unknown spot shape %q (rectangle, circle, ellipse)", e.Shape)
}

// newSpotGeometry builds the spot from the operator's shape tag and two
// dimensions in microns. d2 is ignored for a circle.
func newSpotGeometry(
	shape string,
	d1, d2 float64,
) (
	SpotGeometry, error,
) {

	var g SpotGeometry
	switch strings.ToLower(strings.TrimSpace(shape)) {
	case "rectangle":
		g = Rectangle{HeightUM: d1, WidthUM: d2}
	case "circle":
		d2 = d1
		g = Circle{DiameterUM: d1}
	case "ellipse":
		g = Ellipse{MajorUM: d1, MinorUM: d2}
	default:
		return nil, &UnknownSpotShapeError{Shape: shape}
	}

	if d1 <= 0 || d2 <= 0 {
		return nil, fmt.Errorf("spot %s: dimensions must be > 0", g)
	}
	return g, nil
}
