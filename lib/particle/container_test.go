package particle

import "testing"

func newTestContainer(n int) *Container {
	c := NewContainer([3]float64{10, 10, 10})
	c.Grow(n)
	for i := 0; i < n; i++ {
		c.Pos[i] = [3]float64{float64(i), float64(i) * 2, float64(i) * 3}
		c.Type[i] = int32(i % 3)
		c.ID[i] = uint64(i + 1)
	}
	return c
}

func TestContainerGrowTruncate(t *testing.T) {
	c := newTestContainer(3)
	if c.Len() != 3 {
		t.Fatalf("expected Len() = 3, got %d", c.Len())
	}
	start := c.Grow(2)
	if start != 3 {
		t.Errorf("expected Grow to return 3, got %d", start)
	}
	if c.Len() != 5 {
		t.Errorf("expected Len() = 5 after Grow(2), got %d", c.Len())
	}
	c.Truncate(3)
	if c.Len() != 3 {
		t.Errorf("expected Len() = 3 after Truncate(3), got %d", c.Len())
	}
}

func TestContainerSwapRemove(t *testing.T) {
	c := newTestContainer(4)
	lastID := c.ID[3]
	c.SwapRemove(1)
	if c.Len() != 3 {
		t.Fatalf("expected Len() = 3 after SwapRemove, got %d", c.Len())
	}
	if c.ID[1] != lastID {
		t.Errorf("expected slot 1 to hold the former last id %d, got %d", lastID, c.ID[1])
	}
}

func TestPackUnpackForward(t *testing.T) {
	src := newTestContainer(3)
	dst := NewContainer([3]float64{10, 10, 10})
	dst.Grow(3)

	buf := make([]byte, 3*src.CommForwardWidth())
	n := src.PackForward([]int{0, 1, 2}, buf, 0, [6]int{})
	dst.UnpackForward(3, 0, buf[:n])

	for i := 0; i < 3; i++ {
		if dst.Pos[i] != src.Pos[i] {
			t.Errorf("slot %d: expected pos %v, got %v", i, src.Pos[i], dst.Pos[i])
		}
	}
}

func TestPackUnpackForwardPBC(t *testing.T) {
	src := newTestContainer(1)
	dst := NewContainer([3]float64{10, 10, 10})
	dst.Grow(1)

	buf := make([]byte, src.CommForwardWidth())
	n := src.PackForward([]int{0}, buf, 1, [6]int{1, 0, 0, 0, 0, 0})
	dst.UnpackForward(1, 0, buf[:n])

	want := src.Pos[0]
	want[0] += 10
	if dst.Pos[0] != want {
		t.Errorf("expected shifted pos %v, got %v", want, dst.Pos[0])
	}
}

func TestPackUnpackReverseAccumulates(t *testing.T) {
	c := newTestContainer(2)
	c.Force[0] = [3]float64{1, 1, 1}

	ghost := NewContainer([3]float64{10, 10, 10})
	ghost.Grow(1)
	ghost.Force[0] = [3]float64{2, 3, 4}

	buf := make([]byte, ghost.CommReverseWidth())
	n := ghost.PackReverse(1, 0, buf)
	c.UnpackReverse([]int{0}, buf[:n])

	want := [3]float64{3, 4, 5}
	if c.Force[0] != want {
		t.Errorf("expected accumulated force %v, got %v", want, c.Force[0])
	}
}

func TestPackUnpackBorder(t *testing.T) {
	src := newTestContainer(2)
	dst := NewContainer([3]float64{10, 10, 10})
	dst.Grow(2)

	buf := make([]byte, 2*src.CommForwardWidth()+2*12)
	n := src.PackBorder([]int{0, 1}, buf, 0, [6]int{})
	dst.UnpackBorder(2, 0, buf[:n])

	for i := 0; i < 2; i++ {
		if dst.Pos[i] != src.Pos[i] || dst.Type[i] != src.Type[i] || dst.ID[i] != src.ID[i] {
			t.Errorf("slot %d: border round trip mismatch, got pos=%v type=%d id=%d", i, dst.Pos[i], dst.Type[i], dst.ID[i])
		}
	}
}

func TestPackUnpackExchange(t *testing.T) {
	src := newTestContainer(1)
	src.Vel[0] = [3]float64{7, 8, 9}
	dst := NewContainer([3]float64{10, 10, 10})

	buf := make([]byte, 4+3*24+12)
	n := src.PackExchange(0, buf)
	consumed := dst.UnpackExchange(buf[:n])
	if consumed != n {
		t.Errorf("expected UnpackExchange to consume %d bytes, got %d", n, consumed)
	}
	if dst.Len() != 1 {
		t.Fatalf("expected exchange to append one slot, got Len() = %d", dst.Len())
	}
	if dst.Pos[0] != src.Pos[0] || dst.Vel[0] != src.Vel[0] || dst.ID[0] != src.ID[0] {
		t.Errorf("exchange round trip mismatch: got pos=%v vel=%v id=%d", dst.Pos[0], dst.Vel[0], dst.ID[0])
	}
}

func TestAuxFieldRoundTrip(t *testing.T) {
	c := newTestContainer(2)
	f := NewFloat64Field("charge", true, true)
	f.Grow(2)
	f.data[0] = 1.5
	f.data[1] = -2.5
	if err := c.AddField(f); err != nil {
		t.Fatalf("AddField failed: %v", err)
	}

	dst := NewContainer([3]float64{10, 10, 10})
	dst.Grow(2)
	g := NewFloat64Field("charge", true, true)
	g.Grow(2)
	if err := dst.AddField(g); err != nil {
		t.Fatalf("AddField on dst failed: %v", err)
	}

	buf := make([]byte, 2*c.CommForwardWidth())
	n := c.PackForward([]int{0, 1}, buf, 0, [6]int{})
	dst.UnpackForward(2, 0, buf[:n])

	got, _ := dst.Field("charge")
	gotFloat := got.(*Float64Field)
	if gotFloat.data[0] != 1.5 || gotFloat.data[1] != -2.5 {
		t.Errorf("expected aux field to round-trip through forward comm, got %v", gotFloat.data)
	}
}

func TestAddFieldLengthMismatch(t *testing.T) {
	c := newTestContainer(3)
	f := NewUint32Field("bad", false, false)
	f.Grow(2)
	if err := c.AddField(f); err == nil {
		t.Errorf("expected AddField to reject a field with mismatched length")
	}
}
