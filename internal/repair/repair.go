// Package repair fills missing sensor readings in a captured flight buffer.
//
// Repair is axis-wise: each component is searched for independently, so a
// vector with only one missing axis keeps its other measured values.
package repair

import (
	"fmt"

	"payloadnav/internal/nav"
)

// AllMissingError reports an axis with no valid value anywhere in the sequence.
type AllMissingError struct {
	Axis int
}

func (e *AllMissingError) Error() string {
	return fmt.Sprintf("repair: all values at axis %d are missing", e.Axis)
}

// Vectors repairs a sequence of 3-axis physical quantities. Interior gaps
// take the mean of the nearest valid values before and after.
func Vectors(seq []nav.Axes3) ([]nav.Vec3, error) {
	rows := make([][]*float64, len(seq))
	for i := range seq {
		rows[i] = seq[i][:]
	}
	vals, err := fill(rows, 3, interpolate)
	if err != nil {
		return nil, err
	}
	out := make([]nav.Vec3, len(vals))
	for i, r := range vals {
		out[i] = nav.Vec3{X: r[0], Y: r[1], Z: r[2]}
	}
	return out, nil
}

// Quaternions repairs a sequence of quaternions. Interior gaps repeat the
// nearest previous valid component; quaternion components are never averaged.
func Quaternions(seq []nav.Axes4) ([]nav.Quat, error) {
	rows := make([][]*float64, len(seq))
	for i := range seq {
		rows[i] = seq[i][:]
	}
	vals, err := fill(rows, 4, holdPrevious)
	if err != nil {
		return nil, err
	}
	out := make([]nav.Quat, len(vals))
	for i, r := range vals {
		out[i] = nav.QuatWXYZ(r[0], r[1], r[2], r[3])
	}
	return out, nil
}

type interiorMode int

const (
	interpolate interiorMode = iota
	holdPrevious
)

// fill works on a private copy so callers' buffers are left untouched.
// Interior gaps are filled in index order, so an already repaired value
// counts as the previous valid value for the next gap.
func fill(rows [][]*float64, width int, mode interiorMode) ([][]float64, error) {
	n := len(rows)
	if n == 0 {
		return nil, nil
	}

	vals := make([][]float64, n)
	ok := make([][]bool, n)
	for i, r := range rows {
		vals[i] = make([]float64, width)
		ok[i] = make([]bool, width)
		for a := 0; a < width && a < len(r); a++ {
			if r[a] != nil {
				vals[i][a] = *r[a]
				ok[i][a] = true
			}
		}
	}

	for a := 0; a < width; a++ {
		if !ok[0][a] {
			j := nextValid(ok, 0, a)
			if j < 0 {
				return nil, &AllMissingError{Axis: a}
			}
			vals[0][a], ok[0][a] = vals[j][a], true
		}
		last := n - 1
		if !ok[last][a] {
			j := prevValid(ok, last, a)
			if j < 0 {
				return nil, &AllMissingError{Axis: a}
			}
			vals[last][a], ok[last][a] = vals[j][a], true
		}
	}

	for i := 1; i < n-1; i++ {
		for a := 0; a < width; a++ {
			if ok[i][a] {
				continue
			}
			p := prevValid(ok, i, a)
			if p < 0 {
				return nil, &AllMissingError{Axis: a}
			}
			switch mode {
			case holdPrevious:
				vals[i][a] = vals[p][a]
			default:
				q := nextValid(ok, i, a)
				if q < 0 {
					return nil, &AllMissingError{Axis: a}
				}
				vals[i][a] = (vals[p][a] + vals[q][a]) / 2
			}
			ok[i][a] = true
		}
	}
	return vals, nil
}

func nextValid(ok [][]bool, idx, axis int) int {
	for i := idx + 1; i < len(ok); i++ {
		if ok[i][axis] {
			return i
		}
	}
	return -1
}

func prevValid(ok [][]bool, idx, axis int) int {
	for i := idx - 1; i >= 0; i-- {
		if ok[i][axis] {
			return i
		}
	}
	return -1
}
