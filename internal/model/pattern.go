package model

import (
	"fmt"
	"math"
)

// Pattern is a row-major voltage field with one value per cell. Shape is
// either [n] for a 1D sequence of cells or [rows, cols] for a grid.
type Pattern struct {
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

func NewGrid(rows, cols int) Pattern {
	return Pattern{Shape: []int{rows, cols}, Values: make([]float64, rows*cols)}
}

func NewSequence(n int) Pattern {
	return Pattern{Shape: []int{n}, Values: make([]float64, n)}
}

// FilledGrid returns a rows x cols pattern with every cell set to v.
func FilledGrid(rows, cols int, v float64) Pattern {
	p := NewGrid(rows, cols)
	for i := range p.Values {
		p.Values[i] = v
	}
	return p
}

func (p Pattern) Dims() int {
	return len(p.Shape)
}

// Rows is 1 for a 1D sequence.
func (p Pattern) Rows() int {
	if len(p.Shape) == 2 {
		return p.Shape[0]
	}
	return 1
}

func (p Pattern) Cols() int {
	switch len(p.Shape) {
	case 1:
		return p.Shape[0]
	case 2:
		return p.Shape[1]
	default:
		return 0
	}
}

func (p Pattern) Len() int {
	return len(p.Values)
}

func (p Pattern) At(row, col int) float64 {
	return p.Values[row*p.Cols()+col]
}

func (p Pattern) Set(row, col int, v float64) {
	p.Values[row*p.Cols()+col] = v
}

func (p Pattern) SameShape(other Pattern) bool {
	if len(p.Shape) != len(other.Shape) {
		return false
	}
	for i := range p.Shape {
		if p.Shape[i] != other.Shape[i] {
			return false
		}
	}
	return true
}

func (p Pattern) Clone() Pattern {
	return Pattern{
		Shape:  append([]int(nil), p.Shape...),
		Values: append([]float64(nil), p.Values...),
	}
}

// Validate checks that the shape is 1D or 2D and matches the value count.
func (p Pattern) Validate() error {
	if len(p.Shape) != 1 && len(p.Shape) != 2 {
		return fmt.Errorf("pattern must be 1D or 2D, got shape %v", p.Shape)
	}
	n := 1
	for _, d := range p.Shape {
		if d <= 0 {
			return fmt.Errorf("pattern dimensions must be > 0, got shape %v", p.Shape)
		}
		n *= d
	}
	if n != len(p.Values) {
		return fmt.Errorf("pattern shape %v needs %d values, got %d", p.Shape, n, len(p.Values))
	}
	return nil
}

// Finite reports the first non-finite cell index, or -1.
func (p Pattern) Finite() int {
	for i, v := range p.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return i
		}
	}
	return -1
}

// Range returns the min and max cell values.
func (p Pattern) Range() (float64, float64) {
	if len(p.Values) == 0 {
		return 0, 0
	}
	lo, hi := p.Values[0], p.Values[0]
	for _, v := range p.Values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
