package comm

// ForwardComm refreshes every ghost's copy of its owner's current position
// (and velocity, aux fields flagged Forward) by walking the swap schedule in
// ascending order - the same order Borders built it in, so a ghost created
// by an early swap is already in place to be forwarded again by a later one
// in the same call, letting a two-hop neighbor relationship resolve within
// one ForwardComm.
func (e *Engine) ForwardComm() error {
	me := e.t.Rank()
	width := e.store.CommForwardWidth()

	for i := range e.plan.Swaps {
		sw := &e.plan.Swaps[i]

		sendBytes := e.sendBuf.Ensure(sw.SendNum * width)
		n := e.store.PackForward(sw.SendList, sendBytes, sw.PbcFlag, sw.Pbc)

		if sw.SendProc == me {
			e.store.UnpackForward(sw.RecvNum, sw.FirstRecv, sendBytes[:n])
			continue
		}

		wire, err := e.sendBuf.Encode(sendBytes[:n])
		if err != nil {
			return classifyErr(me, err)
		}

		recvWire := e.recvBuf.Ensure(1 + sw.RecvNum*width + bufExtra)
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
		payload, err := e.recvBuf.Decode(recvWire[:got])
		if err != nil {
			return classifyErr(me, err)
		}
		e.store.UnpackForward(sw.RecvNum, sw.FirstRecv, payload)
	}

	return nil
}
