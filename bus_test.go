package acorn

import (
	"errors"

	"periph.io/x/conn/v3/i2c/i2ctest"
)

var errNACK = errors.New("i2c: NACK")

// fakeBus plays back ops and fails the failAt-th transaction (1-based).
type fakeBus struct {
	i2ctest.Playback
	calls  int
	failAt int
}

func newFakeBus(ops ...i2ctest.IO) *fakeBus {
	return &fakeBus{Playback: i2ctest.Playback{Ops: ops, DontPanic: true}}
}

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	b.calls++
	if b.calls == b.failAt {
		return errNACK
	}
	return b.Playback.Tx(addr, w, r)
}

func write(w ...byte) i2ctest.IO { return i2ctest.IO{Addr: BridgeAddr, W: w} }
func read(r ...byte) i2ctest.IO  { return i2ctest.IO{Addr: BridgeAddr, R: r} }
