/*Package particle defines the pack/unpack contract external modules supply
to the communication engine, plus a generic reference container that
implements it.

The engine never touches particle data directly; it only ever holds slot
indices and calls through Capability. Five external client roles share this
one shape (particle container, force kernel, per-step fix-up, observable
compute, output dump) - see the design notes in the specification this
package implements.
*/
package particle

// Capability is the pack/unpack contract a client of the communication
// engine must satisfy. All indices are slot indices into the client's own
// storage; buf is a byte slice owned by the engine for the duration of one
// call.
type Capability interface {
	// CommForwardWidth and CommReverseWidth return the maximum number of
	// bytes this capability packs per particle for forward and reverse
	// communication respectively, used to size the shared send/recv
	// buffers.
	CommForwardWidth() int
	CommReverseWidth() int
	// CommBorderWidth returns the maximum bytes packed per particle by
	// PackBorder (position, type, id, and any border-flagged aux fields;
	// never velocity, see VelCapability).
	CommBorderWidth() int
	// CommExchangeWidth returns an upper bound on the bytes PackExchange
	// writes for a single particle, including its length prefix.
	CommExchangeWidth() int

	// PackForward packs the particles at indices into buf, applying the
	// pbc image shift if pbcFlag is set, and returns the number of bytes
	// written.
	PackForward(indices []int, buf []byte, pbcFlag int, pbc [6]int) int
	// UnpackForward unpacks count particles from buf into slots
	// [firstSlot, firstSlot+count).
	UnpackForward(count, firstSlot int, buf []byte)

	// PackReverse packs count particles starting at firstSlot (a ghost
	// window) as force contributions, returning bytes written.
	PackReverse(count, firstSlot int, buf []byte) int
	// UnpackReverse accumulates (sums, does not assign) the packed
	// contributions in buf into the owner slots named by indices.
	UnpackReverse(indices []int, buf []byte)

	// PackBorder and UnpackBorder move a new ghost into existence:
	// position, type, id, and any per-module fields, but never velocity
	// (see VelCapability for that).
	PackBorder(indices []int, buf []byte, pbcFlag int, pbc [6]int) int
	UnpackBorder(count, firstSlot int, buf []byte)

	// PackExchange serializes the single particle at slot (including a
	// leading length word) and returns bytes written; UnpackExchange
	// deserializes one particle from the front of buf and returns the
	// number of bytes consumed, appending the particle as a new owned
	// slot.
	PackExchange(slot int, buf []byte) int
	UnpackExchange(buf []byte) int
	// PeekExchange reads the coordinate along dim and the total record
	// length (including the leading length word) of the exchange record
	// at the front of buf, without appending anything - used to classify
	// an incoming migrant before deciding whether to accept or skip it.
	PeekExchange(buf []byte, dim int) (coord float64, recordLen int)
}

// VelCapability is an optional extension a Capability may also implement to
// support the ghost_velocity configuration toggle. PackBorderVel/UnpackBorderVel
// replace PackBorder/UnpackBorder entirely when active - they carry
// everything a normal border message does, plus velocity, in one packed
// record, matching the source's pack_border_vel/unpack_border_vel pair.
type VelCapability interface {
	CommBorderVelWidth() int
	PackBorderVel(indices []int, buf []byte, pbcFlag int, pbc [6]int) int
	UnpackBorderVel(count, firstSlot int, buf []byte)
}

// Store extends Capability with the slot-management operations the
// communication engine needs to grow ghost space, discard stale ghosts
// before rebuilding them, and remove a local particle that has migrated to
// another worker. A capability that only ever appears in test fixtures as a
// remote peer (never as the engine's own client) need not implement Store.
type Store interface {
	Capability
	// Coord returns slot's position along dim, used by the engine to
	// classify particles against slab/multi-type boundaries during
	// exchange and border-list construction.
	Coord(slot, dim int) float64
	// TypeOf returns slot's particle type, used to classify particles
	// against per-type multi-style boundaries.
	TypeOf(slot int) int32
	// Len returns the current number of slots, owned plus ghost.
	Len() int
	// Grow appends n uninitialized slots and returns the index of the
	// first one.
	Grow(n int) int
	// Truncate discards every slot from n onward.
	Truncate(n int)
	// SwapRemove deletes slot by moving the last slot into its place and
	// shrinking Len by one, exactly like a slice swap-delete.
	SwapRemove(slot int)
}
