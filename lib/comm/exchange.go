package comm

// Exchange moves particles that have crossed a sub-box boundary to the rank
// that now owns them. It processes one dimension at a time so a particle
// that crossed two boundaries in one step can migrate through an
// intermediate rank within a single Exchange call, exactly as the
// grounding source's per-dimension loop does: an accepted incoming particle
// becomes part of the local set scanned by the next dimension's pass.
//
// A particle that ends up outside every rank's sub-box - too large a step,
// or stepping off a non-periodic boundary - is silently dropped, matching
// the grounding source's documented behavior.
func (e *Engine) Exchange() error {
	me := e.t.Rank()
	e.store.Truncate(e.nlocal)

	for dim := 0; dim < 3; dim++ {
		lo := e.box.SubLo()[dim]
		hi := e.box.SubHi()[dim]

		width := e.store.CommExchangeWidth()
		sendBytes := e.sendBuf.Ensure(e.nlocal * width)
		off := 0
		i := 0
		for i < e.nlocal {
			x := e.store.Coord(i, dim)
			if x < lo || x >= hi {
				off += e.store.PackExchange(i, sendBytes[off:])
				e.store.SwapRemove(i)
				e.nlocal--
			} else {
				i++
			}
		}
		nsend := off

		var recvBytes []byte
		var nrecv int

		switch {
		case e.procgrid[dim] == 1:
			nrecv = nsend
			recvBytes = sendBytes[:nsend]

		default:
			wire, err := e.sendBuf.Encode(sendBytes[:nsend])
			if err != nil {
				return classifyErr(me, err)
			}

			nrecv1, err := e.t.SendRecvInt(len(wire), e.procneigh[dim][0], e.procneigh[dim][1])
			if err != nil {
				return classifyErr(me, err)
			}
			nrecv2 := 0
			if e.procgrid[dim] > 2 {
				nrecv2, err = e.t.SendRecvInt(len(wire), e.procneigh[dim][1], e.procneigh[dim][0])
				if err != nil {
					return classifyErr(me, err)
				}
			}

			recvWire := e.recvBuf.Ensure(nrecv1 + nrecv2)

			req1, err := e.t.IRecv(recvWire[:nrecv1], e.procneigh[dim][1])
			if err != nil {
				return classifyErr(me, err)
			}
			if err := e.t.Send(wire, e.procneigh[dim][0]); err != nil {
				return classifyErr(me, err)
			}
			got1, err := req1.Wait()
			if err != nil {
				return classifyErr(me, err)
			}
			part1, err := e.recvBuf.Decode(recvWire[:got1])
			if err != nil {
				return classifyErr(me, err)
			}

			var part2 []byte
			if e.procgrid[dim] > 2 {
				req2, err := e.t.IRecv(recvWire[nrecv1:nrecv1+nrecv2], e.procneigh[dim][0])
				if err != nil {
					return classifyErr(me, err)
				}
				if err := e.t.Send(wire, e.procneigh[dim][1]); err != nil {
					return classifyErr(me, err)
				}
				got2, err := req2.Wait()
				if err != nil {
					return classifyErr(me, err)
				}
				part2, err = e.recvBuf.Decode(recvWire[nrecv1 : nrecv1+got2])
				if err != nil {
					return classifyErr(me, err)
				}
			}

			recvBytes = append(append([]byte{}, part1...), part2...)
			nrecv = len(recvBytes)
		}

		off = 0
		for off < nrecv {
			coord, recLen := e.store.PeekExchange(recvBytes[off:], dim)
			if coord >= lo && coord < hi {
				e.store.UnpackExchange(recvBytes[off : off+recLen])
				e.nlocal++
			}
			off += recLen
		}
	}

	return nil
}
