package comm

// Borders rebuilds every ghost from scratch: it discards the previous ghost
// region, then walks the swap schedule dimension by dimension, classifying
// candidate slots against each swap's slab (or per-type multi) bounds,
// packing and exchanging them, and appending the results as new ghost slots.
// This also refreshes forward-comm state (SendList/SendNum/RecvNum/FirstRecv)
// used by ForwardComm and ReverseComm until the next Borders call.
func (e *Engine) Borders() error {
	me := e.t.Rank()
	e.store.Truncate(e.nlocal)

	iswap := 0
	for dim := 0; dim < 3; dim++ {
		nlast := 0
		maxneed := 2 * e.plan.Need[dim]
		for ineed := 0; ineed < maxneed; ineed++ {
			sw := &e.plan.Swaps[iswap]

			var nfirst int
			if ineed%2 == 0 {
				nfirst = nlast
				nlast = e.store.Len()
			}

			sendList := sw.SendList[:0]
			if e.firstGroupLen > 0 && ineed < 2 {
				for i := 0; i < e.firstGroupLen && i < e.nlocal; i++ {
					if e.inSwapWindow(sw, i) {
						sendList = append(sendList, i)
					}
				}
				for i := e.nlocal; i < nlast; i++ {
					if e.inSwapWindow(sw, i) {
						sendList = append(sendList, i)
					}
				}
			} else {
				for i := nfirst; i < nlast; i++ {
					if e.inSwapWindow(sw, i) {
						sendList = append(sendList, i)
					}
				}
			}
			sw.SendList = sendList
			sw.SendNum = len(sendList)

			velCap, hasVel := e.store.(interface {
				CommBorderVelWidth() int
				PackBorderVel(indices []int, buf []byte, pbcFlag int, pbc [6]int) int
				UnpackBorderVel(count, firstSlot int, buf []byte)
			})
			useVel := e.ghostVelocity && hasVel

			width := e.store.CommBorderWidth()
			if useVel {
				width = velCap.CommBorderVelWidth()
			}
			sendBytes := e.sendBuf.Ensure(sw.SendNum * width)
			var n int
			if useVel {
				n = velCap.PackBorderVel(sendList, sendBytes, sw.PbcFlag, sw.Pbc)
			} else {
				n = e.store.PackBorder(sendList, sendBytes, sw.PbcFlag, sw.Pbc)
			}

			var recvBytes []byte
			var nrecv int
			if sw.SendProc != me {
				var err error
				nrecv, err = e.t.SendRecvInt(sw.SendNum, sw.SendProc, sw.RecvProc)
				if err != nil {
					return classifyErr(me, err)
				}

				wire, err := e.sendBuf.Encode(sendBytes[:n])
				if err != nil {
					return classifyErr(me, err)
				}

				recvWire := e.recvBuf.Ensure(1 + nrecv*width + bufExtra)
				req, err := e.t.IRecv(recvWire, sw.RecvProc)
				if err != nil {
					return classifyErr(me, err)
				}
				if err := e.t.Send(wire, sw.SendProc); err != nil {
					return classifyErr(me, err)
				}
				got, err := req.Wait()
				if err != nil {
					return classifyErr(me, err)
				}
				recvBytes, err = e.recvBuf.Decode(recvWire[:got])
				if err != nil {
					return classifyErr(me, err)
				}
			} else {
				nrecv = sw.SendNum
				recvBytes = sendBytes[:n]
			}

			firstrecv := e.store.Grow(nrecv)
			if useVel {
				velCap.UnpackBorderVel(nrecv, firstrecv, recvBytes)
			} else {
				e.store.UnpackBorder(nrecv, firstrecv, recvBytes)
			}

			sw.RecvNum = nrecv
			sw.FirstRecv = firstrecv

			iswap++
		}
	}

	return nil
}

func (e *Engine) inSwapWindow(sw *Swap, slot int) bool {
	x := e.store.Coord(slot, sw.Dim)
	if e.plan.Style == Single {
		return x >= sw.SlabLo && x <= sw.SlabHi
	}
	t := int(e.store.TypeOf(slot))
	if t < 0 || t >= len(sw.MultiLo) {
		return false
	}
	return x >= sw.MultiLo[t] && x <= sw.MultiHi[t]
}
