package particle

import (
	"encoding/binary"
	"fmt"
	"math"
)

// AuxField is a named, typed per-particle array that rides alongside the
// fixed position/velocity/force/type/id columns of a Container, generalizing
// the teacher's Field interface to the byte-oriented pack/unpack shape the
// communication engine needs.
type AuxField interface {
	Name() string
	// Width is the packed byte width of one value.
	Width() int
	// Forward reports whether this field is carried by forward
	// communication (ghost refresh); Border reports whether it is carried
	// when a ghost is first created.
	Forward() bool
	Border() bool

	Len() int
	Grow(n int)
	Truncate(n int)
	SwapRemove(slot int)

	Pack(slot int, buf []byte) int
	Unpack(slot int, buf []byte)
}

// type assertions
var (
	_ AuxField = &Uint32Field{}
	_ AuxField = &Uint64Field{}
	_ AuxField = &Float32Field{}
	_ AuxField = &Float64Field{}
	_ Store    = &Container{}
)

// Uint32Field implements AuxField for []uint32 data.
type Uint32Field struct {
	name           string
	data           []uint32
	forward, order bool
}

// NewUint32Field creates an aux field with a given name, participating in
// forward and/or border communication as requested.
func NewUint32Field(name string, forward, border bool) *Uint32Field {
	return &Uint32Field{name: name, forward: forward, order: border}
}

func (x *Uint32Field) Name() string  { return x.name }
func (x *Uint32Field) Width() int    { return 4 }
func (x *Uint32Field) Forward() bool { return x.forward }
func (x *Uint32Field) Border() bool  { return x.order }
func (x *Uint32Field) Len() int      { return len(x.data) }

func (x *Uint32Field) Grow(n int) {
	x.data = append(x.data, make([]uint32, n)...)
}
func (x *Uint32Field) Truncate(n int) { x.data = x.data[:n] }
func (x *Uint32Field) SwapRemove(slot int) {
	last := len(x.data) - 1
	x.data[slot] = x.data[last]
	x.data = x.data[:last]
}
func (x *Uint32Field) Pack(slot int, buf []byte) int {
	binary.LittleEndian.PutUint32(buf, x.data[slot])
	return 4
}
func (x *Uint32Field) Unpack(slot int, buf []byte) {
	x.data[slot] = binary.LittleEndian.Uint32(buf)
}

// Uint64Field implements AuxField for []uint64 data.
type Uint64Field struct {
	name           string
	data           []uint64
	forward, order bool
}

func NewUint64Field(name string, forward, border bool) *Uint64Field {
	return &Uint64Field{name: name, forward: forward, order: border}
}

func (x *Uint64Field) Name() string  { return x.name }
func (x *Uint64Field) Width() int    { return 8 }
func (x *Uint64Field) Forward() bool { return x.forward }
func (x *Uint64Field) Border() bool  { return x.order }
func (x *Uint64Field) Len() int      { return len(x.data) }

func (x *Uint64Field) Grow(n int) {
	x.data = append(x.data, make([]uint64, n)...)
}
func (x *Uint64Field) Truncate(n int) { x.data = x.data[:n] }
func (x *Uint64Field) SwapRemove(slot int) {
	last := len(x.data) - 1
	x.data[slot] = x.data[last]
	x.data = x.data[:last]
}
func (x *Uint64Field) Pack(slot int, buf []byte) int {
	binary.LittleEndian.PutUint64(buf, x.data[slot])
	return 8
}
func (x *Uint64Field) Unpack(slot int, buf []byte) {
	x.data[slot] = binary.LittleEndian.Uint64(buf)
}

// Float32Field implements AuxField for []float32 data.
type Float32Field struct {
	name           string
	data           []float32
	forward, order bool
}

func NewFloat32Field(name string, forward, border bool) *Float32Field {
	return &Float32Field{name: name, forward: forward, order: border}
}

func (x *Float32Field) Name() string  { return x.name }
func (x *Float32Field) Width() int    { return 4 }
func (x *Float32Field) Forward() bool { return x.forward }
func (x *Float32Field) Border() bool  { return x.order }
func (x *Float32Field) Len() int      { return len(x.data) }

func (x *Float32Field) Grow(n int) {
	x.data = append(x.data, make([]float32, n)...)
}
func (x *Float32Field) Truncate(n int) { x.data = x.data[:n] }
func (x *Float32Field) SwapRemove(slot int) {
	last := len(x.data) - 1
	x.data[slot] = x.data[last]
	x.data = x.data[:last]
}
func (x *Float32Field) Pack(slot int, buf []byte) int {
	binary.LittleEndian.PutUint32(buf, math.Float32bits(x.data[slot]))
	return 4
}
func (x *Float32Field) Unpack(slot int, buf []byte) {
	x.data[slot] = math.Float32frombits(binary.LittleEndian.Uint32(buf))
}

// Float64Field implements AuxField for []float64 data.
type Float64Field struct {
	name           string
	data           []float64
	forward, order bool
}

func NewFloat64Field(name string, forward, border bool) *Float64Field {
	return &Float64Field{name: name, forward: forward, order: border}
}

func (x *Float64Field) Name() string  { return x.name }
func (x *Float64Field) Width() int    { return 8 }
func (x *Float64Field) Forward() bool { return x.forward }
func (x *Float64Field) Border() bool  { return x.order }
func (x *Float64Field) Len() int      { return len(x.data) }

func (x *Float64Field) Grow(n int) {
	x.data = append(x.data, make([]float64, n)...)
}
func (x *Float64Field) Truncate(n int) { x.data = x.data[:n] }
func (x *Float64Field) SwapRemove(slot int) {
	last := len(x.data) - 1
	x.data[slot] = x.data[last]
	x.data = x.data[:last]
}
func (x *Float64Field) Pack(slot int, buf []byte) int {
	binary.LittleEndian.PutUint64(buf, math.Float64bits(x.data[slot]))
	return 8
}
func (x *Float64Field) Unpack(slot int, buf []byte) {
	x.data[slot] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
}

// Container is the reference particle store: fixed position, velocity,
// force, type and id columns plus an open set of named AuxField columns,
// generalizing the teacher's map-of-Field Particles type into something the
// communication engine can pack, unpack and reslot directly.
type Container struct {
	GhostVelocity bool

	Pos   [][3]float64
	Vel   [][3]float64
	Force [][3]float64
	Type  []int32
	ID    []uint64

	period [3]float64
	aux    map[string]AuxField
}

// NewContainer creates an empty container. period is the box's periodic
// length along each axis, used to turn a pbc image-count triple into an
// actual position shift when packing forward/border messages; pass a
// triclinic box's lattice vectors component-wise if the box is sheared, or
// call SetPeriod once the box is known.
func NewContainer(period [3]float64) *Container {
	return &Container{aux: map[string]AuxField{}, period: period}
}

// SetPeriod updates the periodic length used by PackForward/PackBorder's
// image shift, for callers that build a Container before the box is final.
func (c *Container) SetPeriod(period [3]float64) {
	c.period = period
}

// AddField registers an aux field with the container. It must already be
// sized to Len().
func (c *Container) AddField(f AuxField) error {
	if f.Len() != c.Len() {
		return fmt.Errorf("particle: field %q has length %d, container has %d", f.Name(), f.Len(), c.Len())
	}
	c.aux[f.Name()] = f
	return nil
}

func (c *Container) Field(name string) (AuxField, bool) {
	f, ok := c.aux[name]
	return f, ok
}

func (c *Container) Len() int { return len(c.Pos) }

// Coord returns slot's position along dim.
func (c *Container) Coord(slot, dim int) float64 { return c.Pos[slot][dim] }

// TypeOf returns slot's particle type.
func (c *Container) TypeOf(slot int) int32 { return c.Type[slot] }

// Grow appends n zero-valued slots and returns the index of the first one.
func (c *Container) Grow(n int) int {
	start := len(c.Pos)
	c.Pos = append(c.Pos, make([][3]float64, n)...)
	c.Vel = append(c.Vel, make([][3]float64, n)...)
	c.Force = append(c.Force, make([][3]float64, n)...)
	c.Type = append(c.Type, make([]int32, n)...)
	c.ID = append(c.ID, make([]uint64, n)...)
	for _, f := range c.aux {
		f.Grow(n)
	}
	return start
}

// Truncate discards every slot from n onward.
func (c *Container) Truncate(n int) {
	c.Pos = c.Pos[:n]
	c.Vel = c.Vel[:n]
	c.Force = c.Force[:n]
	c.Type = c.Type[:n]
	c.ID = c.ID[:n]
	for _, f := range c.aux {
		f.Truncate(n)
	}
}

// SwapRemove deletes slot by swapping in the last slot and shrinking by one.
func (c *Container) SwapRemove(slot int) {
	last := len(c.Pos) - 1
	c.Pos[slot] = c.Pos[last]
	c.Vel[slot] = c.Vel[last]
	c.Force[slot] = c.Force[last]
	c.Type[slot] = c.Type[last]
	c.ID[slot] = c.ID[last]
	c.Pos = c.Pos[:last]
	c.Vel = c.Vel[:last]
	c.Force = c.Force[:last]
	c.Type = c.Type[:last]
	c.ID = c.ID[:last]
	for _, f := range c.aux {
		f.SwapRemove(slot)
	}
}

// CommForwardWidth is 3 float64 for position, plus 3 more for velocity when
// ghost velocities are enabled, plus every forward-flagged aux field.
func (c *Container) CommForwardWidth() int {
	w := 24
	if c.GhostVelocity {
		w += 24
	}
	for _, f := range c.aux {
		if f.Forward() {
			w += f.Width()
		}
	}
	return w
}

// CommReverseWidth is 3 float64 for the accumulated force.
func (c *Container) CommReverseWidth() int {
	return 24
}

// CommBorderWidth is position (3 float64), type (int32), id (uint64), plus
// every border-flagged aux field.
func (c *Container) CommBorderWidth() int {
	w := 24 + 4 + 8
	for _, f := range c.aux {
		if f.Border() {
			w += f.Width()
		}
	}
	return w
}

// CommBorderVelWidth is CommBorderWidth plus velocity (3 float64).
func (c *Container) CommBorderVelWidth() int {
	return c.CommBorderWidth() + 24
}

func shiftedPos(p [3]float64, pbcFlag int, pbc [6]int, prd [3]float64) [3]float64 {
	if pbcFlag == 0 {
		return p
	}
	out := p
	out[0] += float64(pbc[0]) * prd[0]
	out[1] += float64(pbc[1]) * prd[1]
	out[2] += float64(pbc[2]) * prd[2]
	return out
}

func putVec(buf []byte, v [3]float64) int {
	binary.LittleEndian.PutUint64(buf[0:8], math.Float64bits(v[0]))
	binary.LittleEndian.PutUint64(buf[8:16], math.Float64bits(v[1]))
	binary.LittleEndian.PutUint64(buf[16:24], math.Float64bits(v[2]))
	return 24
}

func getVec(buf []byte) [3]float64 {
	return [3]float64{
		math.Float64frombits(binary.LittleEndian.Uint64(buf[0:8])),
		math.Float64frombits(binary.LittleEndian.Uint64(buf[8:16])),
		math.Float64frombits(binary.LittleEndian.Uint64(buf[16:24])),
	}
}

// PackForward writes position (image-shifted if pbcFlag is set) and, when
// ghost velocities are on, velocity, followed by every forward aux field.
// PBC image shift here is a plain per-axis add of pbc[d]*period, which is
// only correct for an orthogonal box; a triclinic engine must instead shift
// with the box's h matrix before calling this.
func (c *Container) PackForward(indices []int, buf []byte, pbcFlag int, pbc [6]int) int {
	names := c.namesSorted()
	off := 0
	for _, i := range indices {
		off += putVec(buf[off:], c.pbcShift(c.Pos[i], pbcFlag, pbc))
		if c.GhostVelocity {
			off += putVec(buf[off:], c.Vel[i])
		}
		for _, f := range names {
			field := c.aux[f]
			if field.Forward() {
				off += field.Pack(i, buf[off:])
			}
		}
	}
	return off
}

// pbcShift is a hook point: the reference container has no box reference of
// its own, so it treats pbc as raw period counts against the period given
// to NewContainer or SetPeriod.
func (c *Container) pbcShift(p [3]float64, pbcFlag int, pbc [6]int) [3]float64 {
	return shiftedPos(p, pbcFlag, pbc, c.period)
}

func (c *Container) UnpackForward(count, firstSlot int, buf []byte) {
	names := c.namesSorted()
	off := 0
	for k := 0; k < count; k++ {
		slot := firstSlot + k
		c.Pos[slot] = getVec(buf[off:])
		off += 24
		if c.GhostVelocity {
			c.Vel[slot] = getVec(buf[off:])
			off += 24
		}
		for _, f := range names {
			field := c.aux[f]
			if field.Forward() {
				field.Unpack(slot, buf[off:])
				off += field.Width()
			}
		}
	}
}

func (c *Container) PackReverse(count, firstSlot int, buf []byte) int {
	off := 0
	for k := 0; k < count; k++ {
		off += putVec(buf[off:], c.Force[firstSlot+k])
	}
	return off
}

func (c *Container) UnpackReverse(indices []int, buf []byte) {
	off := 0
	for _, i := range indices {
		v := getVec(buf[off:])
		off += 24
		c.Force[i][0] += v[0]
		c.Force[i][1] += v[1]
		c.Force[i][2] += v[2]
	}
}

func (c *Container) PackBorder(indices []int, buf []byte, pbcFlag int, pbc [6]int) int {
	return c.packBorder(indices, buf, pbcFlag, pbc, false)
}

func (c *Container) PackBorderVel(indices []int, buf []byte, pbcFlag int, pbc [6]int) int {
	return c.packBorder(indices, buf, pbcFlag, pbc, true)
}

func (c *Container) packBorder(indices []int, buf []byte, pbcFlag int, pbc [6]int, withVel bool) int {
	names := c.namesSorted()
	off := 0
	for _, i := range indices {
		off += putVec(buf[off:], c.pbcShift(c.Pos[i], pbcFlag, pbc))
		binary.LittleEndian.PutUint32(buf[off:], uint32(c.Type[i]))
		off += 4
		binary.LittleEndian.PutUint64(buf[off:], c.ID[i])
		off += 8
		for _, f := range names {
			field := c.aux[f]
			if field.Border() {
				off += field.Pack(i, buf[off:])
			}
		}
		if withVel {
			off += putVec(buf[off:], c.Vel[i])
		}
	}
	return off
}

func (c *Container) UnpackBorder(count, firstSlot int, buf []byte) {
	c.unpackBorder(count, firstSlot, buf, false)
}

func (c *Container) UnpackBorderVel(count, firstSlot int, buf []byte) {
	c.unpackBorder(count, firstSlot, buf, true)
}

func (c *Container) unpackBorder(count, firstSlot int, buf []byte, withVel bool) {
	names := c.namesSorted()
	off := 0
	for k := 0; k < count; k++ {
		slot := firstSlot + k
		c.Pos[slot] = getVec(buf[off:])
		off += 24
		c.Type[slot] = int32(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
		c.ID[slot] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
		for _, f := range names {
			field := c.aux[f]
			if field.Border() {
				field.Unpack(slot, buf[off:])
				off += field.Width()
			}
		}
		if withVel {
			c.Vel[slot] = getVec(buf[off:])
			off += 24
		}
	}
}

// PackExchange serializes one full particle record: a leading uint32 byte
// count, then position, velocity, force, type, id and every aux field in
// name order, so UnpackExchange on the far side can size its read without
// knowing the schema in advance.
func (c *Container) PackExchange(slot int, buf []byte) int {
	body := buf[4:]
	off := 0
	off += putVec(body[off:], c.Pos[slot])
	off += putVec(body[off:], c.Vel[slot])
	off += putVec(body[off:], c.Force[slot])
	binary.LittleEndian.PutUint32(body[off:], uint32(c.Type[slot]))
	off += 4
	binary.LittleEndian.PutUint64(body[off:], c.ID[slot])
	off += 8
	for _, f := range c.namesSorted() {
		off += c.aux[f].Pack(slot, body[off:])
	}
	binary.LittleEndian.PutUint32(buf[0:4], uint32(off))
	return 4 + off
}

func (c *Container) UnpackExchange(buf []byte) int {
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	body := buf[4 : 4+n]
	slot := c.Grow(1)
	off := 0
	c.Pos[slot] = getVec(body[off:])
	off += 24
	c.Vel[slot] = getVec(body[off:])
	off += 24
	c.Force[slot] = getVec(body[off:])
	off += 24
	c.Type[slot] = int32(binary.LittleEndian.Uint32(body[off:]))
	off += 4
	c.ID[slot] = binary.LittleEndian.Uint64(body[off:])
	off += 8
	for _, f := range c.namesSorted() {
		field := c.aux[f]
		field.Unpack(slot, body[off:])
		off += field.Width()
	}
	return 4 + n
}

// CommExchangeWidth is an upper bound on one packed exchange record: the
// 4-byte length prefix, position/velocity/force (3 vectors), type, id, and
// every aux field.
func (c *Container) CommExchangeWidth() int {
	w := 4 + 24*3 + 4 + 8
	for _, f := range c.aux {
		w += f.Width()
	}
	return w
}

// PeekExchange reads slot 0's dim coordinate and total record length from
// the front of buf without appending a particle.
func (c *Container) PeekExchange(buf []byte, dim int) (float64, int) {
	n := int(binary.LittleEndian.Uint32(buf[0:4]))
	pos := getVec(buf[4:])
	return pos[dim], 4 + n
}

func (c *Container) namesSorted() []string {
	names := make([]string, 0, len(c.aux))
	for n := range c.aux {
		names = append(names, n)
	}
	// insertion sort: field counts are always small, and callers that loop
	// over many particles per pack/unpack call this once up front rather
	// than resorting inside the loop.
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}
