package comm

// ReverseComm folds force contributions accumulated on ghosts back onto
// their owners, walking the swap schedule in descending order - the exact
// reverse of the order Borders and ForwardComm use it in, so a ghost's
// accumulated force is sent home before the swap that created it is
// unwound.
func (e *Engine) ReverseComm() error {
	me := e.t.Rank()
	width := e.store.CommReverseWidth()

	for i := len(e.plan.Swaps) - 1; i >= 0; i-- {
		sw := &e.plan.Swaps[i]

		sendBytes := e.sendBuf.Ensure(sw.RecvNum * width)
		n := e.store.PackReverse(sw.RecvNum, sw.FirstRecv, sendBytes)

		if sw.SendProc == me {
			e.store.UnpackReverse(sw.SendList, sendBytes[:n])
			continue
		}

		wire, err := e.sendBuf.Encode(sendBytes[:n])
		if err != nil {
			return classifyErr(me, err)
		}

		recvWire := e.recvBuf.Ensure(1 + sw.SendNum*width + bufExtra)
		req, err := e.t.IRecv(recvWire, sw.SendProc)
		if err != nil {
			return classifyErr(me, err)
		}
		if err := e.t.Send(wire, sw.RecvProc); err != nil {
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
		e.store.UnpackReverse(sw.SendList, payload)
	}

	return nil
}
