/*Package domain describes the read-only geometry contract the communication
engine consumes: sub-box bounds, periodicity, and (for sheared boxes) the box
edge tensor and its inverse used to convert to and from lambda coordinates.

The engine treats every type satisfying Box as an external collaborator - it
never mutates one. Orthogonal and Triclinic are reference
implementations, grounded on the box bookkeeping the teacher's cosmology
tools carry (prd/sublo/subhi arrays, gonum-backed tensor math), useful for
tests and for the bundled reference driver.
*/
package domain

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Box is the read-only geometry contract described in the specification's
// external interfaces section.
type Box interface {
	// Dimension returns 2 or 3.
	Dimension() int
	// Triclinic reports whether the box is a sheared parallelepiped.
	Triclinic() bool
	// Periodic reports, per dimension, whether that axis wraps.
	Periodic() [3]bool
	// SubLo and SubHi return this rank's sub-box bounds. For a triclinic
	// box these are expressed in lambda (fractional, [0,1)) coordinates;
	// for an orthogonal box they are in box units.
	SubLo() [3]float64
	SubHi() [3]float64
	// Prd returns the periodic box edge length along each dimension, in
	// the same coordinate system as SubLo/SubHi (1.0 per axis for a
	// triclinic box, since lambda space is unit-normalized).
	Prd() [3]float64
	// H returns the 3x3 box edge tensor (columns are edge vectors, so
	// x = H*lambda) and HInv its inverse. For an orthogonal box both are
	// diagonal.
	H() *mat.Dense
	HInv() *mat.Dense
}

// Orthogonal is a reference Box implementation for an axis-aligned
// simulation cell.
type Orthogonal struct {
	dim       int
	periodic  [3]bool
	lo, hi    [3]float64
	prd       [3]float64
	h, hInv   *mat.Dense
}

// NewOrthogonal builds an Orthogonal box from this rank's sub-box bounds and
// the global periodic edge lengths.
func NewOrthogonal(dim int, periodic [3]bool, sublo, subhi, prd [3]float64) *Orthogonal {
	h := mat.NewDense(3, 3, nil)
	hInv := mat.NewDense(3, 3, nil)
	for d := 0; d < 3; d++ {
		h.Set(d, d, prd[d])
		hInv.Set(d, d, 1.0/prd[d])
	}
	return &Orthogonal{dim: dim, periodic: periodic, lo: sublo, hi: subhi, prd: prd, h: h, hInv: hInv}
}

func (b *Orthogonal) Dimension() int      { return b.dim }
func (b *Orthogonal) Triclinic() bool     { return false }
func (b *Orthogonal) Periodic() [3]bool   { return b.periodic }
func (b *Orthogonal) SubLo() [3]float64   { return b.lo }
func (b *Orthogonal) SubHi() [3]float64   { return b.hi }
func (b *Orthogonal) Prd() [3]float64     { return b.prd }
func (b *Orthogonal) H() *mat.Dense       { return b.h }
func (b *Orthogonal) HInv() *mat.Dense    { return b.hInv }

// Triclinic is a reference Box implementation for a sheared parallelepiped
// cell. h stores the three edge vectors as columns and is upper triangular
// (h[0][1], h[0][2] and h[1][2] are the tilt factors xy, xz, yz
// respectively, matching the convention used by the LAMMPS-style domain
// this package's tensor math is grounded on).
type Triclinic struct {
	dim      int
	periodic [3]bool
	lo, hi   [3]float64 // lambda-space bounds, always in [0,1)
	h, hInv  *mat.Dense
}

// NewTriclinic builds a Triclinic box from lambda-space sub-box bounds and
// the box edge tensor h (columns = edge vectors, upper triangular).
func NewTriclinic(dim int, periodic [3]bool, sublo, subhi [3]float64, h *mat.Dense) (*Triclinic, error) {
	hInv := mat.NewDense(3, 3, nil)
	if err := hInv.Inverse(h); err != nil {
		return nil, err
	}
	hc := mat.DenseCopyOf(h)
	return &Triclinic{dim: dim, periodic: periodic, lo: sublo, hi: subhi, h: hc, hInv: hInv}, nil
}

func (b *Triclinic) Dimension() int    { return b.dim }
func (b *Triclinic) Triclinic() bool   { return true }
func (b *Triclinic) Periodic() [3]bool { return b.periodic }
func (b *Triclinic) SubLo() [3]float64 { return b.lo }
func (b *Triclinic) SubHi() [3]float64 { return b.hi }
func (b *Triclinic) Prd() [3]float64   { return [3]float64{1, 1, 1} }
func (b *Triclinic) H() *mat.Dense     { return b.h }
func (b *Triclinic) HInv() *mat.Dense  { return b.hInv }

// ToLambda converts a box-coordinate position to lambda (fractional)
// coordinates: lambda = h_inv * x. The box's global lower corner is taken
// to be the origin; no offset is subtracted.
func ToLambda(hInv *mat.Dense, x [3]float64) [3]float64 {
	xv := mat.NewVecDense(3, x[:])
	var out mat.VecDense
	out.MulVec(hInv, xv)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// FromLambda converts a lambda-space position back to box coordinates:
// x = h * lambda.
func FromLambda(h *mat.Dense, lambda [3]float64) [3]float64 {
	lv := mat.NewVecDense(3, lambda[:])
	var out mat.VecDense
	out.MulVec(h, lv)
	return [3]float64{out.AtVec(0), out.AtVec(1), out.AtVec(2)}
}

// CutghostLambda converts an orthogonal cutoff distance to per-dimension
// lambda-space ghost cutoffs, following the length-of-reciprocal-row
// construction used by triclinic ghost sizing: cutghost[d] is the distance
// in lambda space that corresponds to `cut` box-length units measured
// perpendicular to the d-th pair of box faces.
func CutghostLambda(hInv *mat.Dense, cut float64) [3]float64 {
	row := func(i int) float64 {
		var s float64
		for j := 0; j < 3; j++ {
			v := hInv.At(i, j)
			s += v * v
		}
		return s
	}
	var out [3]float64
	out[0] = cut * math.Sqrt(row(0))
	out[1] = cut * math.Sqrt(row(1))
	out[2] = cut * hInv.At(2, 2)
	return out
}
