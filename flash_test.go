package acorn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"
	"periph.io/x/conn/v3/spi"
)

func TestFlashReadIDThroughBridge(t *testing.T) {
	bus := newFakeBus(
		write(0x01, 0x9F, 0x00, 0x00, 0x00),
		read(0xFF, 0xEF, 0x70, 0x18),
	)
	s := NewSequence(NewBridge(bus, BridgeAddr), nil)

	id, name, err := s.Flash().ReadID()
	require.NoError(t, err)
	assert.Equal(t, flashIDWinbondW25Q128, id)
	assert.Equal(t, "Winbond W25Q 128Mb", name)
	assert.NoError(t, bus.Close())
}

func TestFlashReadChunks(t *testing.T) {
	const (
		n     = 300
		first = bridgeBufferSize - 4
	)
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}

	chunk := func(addr, size int) (w, r []byte) {
		w = make([]byte, 1+4+size)
		w[0] = 0x01
		w[1] = flashCmdRead
		w[2] = byte(addr >> 16)
		w[3] = byte(addr >> 8)
		w[4] = byte(addr)
		r = make([]byte, 4+size)
		copy(r[4:], data[addr-0x100:])
		return w, r
	}
	w1, r1 := chunk(0x100, first)
	w2, r2 := chunk(0x100+first, n-first)
	bus := newFakeBus(write(w1...), read(r1...), write(w2...), read(r2...))
	f := NewFlash(NewBridge(bus, BridgeAddr).SPI(0x01), nil)

	got, err := f.Read(0x100, n)
	require.NoError(t, err)
	assert.Equal(t, data, got)
	assert.NoError(t, bus.Close())
}

func TestFlashReadOutOfRange(t *testing.T) {
	bus := newFakeBus()
	f := NewFlash(NewBridge(bus, BridgeAddr).SPI(0x01), nil)

	for _, tt := range []struct{ addr, n int }{
		{1<<24 - 1, 2},
		{1 << 24, 1},
		{-1, 1},
		{0, -1},
		{0x100, -4},
	} {
		_, err := f.Read(tt.addr, tt.n)
		assert.Error(t, err, "Read(%#x, %d)", tt.addr, tt.n)
	}

	got, err := f.Read(0, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	assert.Zero(t, bus.calls)
}

// csConn records the chip select level seen during each Tx.
type csConn struct {
	cs    *gpiotest.Pin
	reply []byte
	seen  []gpio.Level
}

func (c *csConn) String() string      { return "csConn" }
func (c *csConn) Duplex() conn.Duplex { return conn.Full }
func (c *csConn) Tx(w, r []byte) error {
	c.seen = append(c.seen, c.cs.Read())
	copy(r, c.reply)
	return nil
}
func (c *csConn) TxPackets(p []spi.Packet) error { return nil }

func TestFlashChipSelect(t *testing.T) {
	cs := &gpiotest.Pin{N: "CS", L: gpio.High}
	c := &csConn{cs: cs, reply: []byte{0x00, 0b11}}
	f := NewFlash(c, cs)

	sr, err := f.ReadStatusRegister()
	require.NoError(t, err)
	assert.True(t, sr.Busy())
	assert.True(t, sr.WriteEnabled())
	assert.Equal(t, []gpio.Level{gpio.Low}, c.seen)
	assert.Equal(t, gpio.High, cs.Read())
}

func TestStatusRegisterString(t *testing.T) {
	tests := []struct {
		sr   StatusRegister
		want string
	}{
		{0, "00000000"},
		{0b00000011, "00000011 WEL,BUSY"},
		{0b10111100, "10111100 SRP,TB,BP=7"},
		{0b01001000, "01001000 SEC,BP=2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.sr.String())
	}
}

func TestFlashTiming(t *testing.T) {
	f := NewFlash(nil, nil)
	// unidentified: slowest known part
	assert.Equal(t, 3*time.Microsecond, f.timing().releasePowerDown)

	p := flashParts[flashIDMicronN25Q32]
	f.part = &p
	tm := f.timing()
	assert.Equal(t, "Micron N25Q 32Mb", tm.name)
	assert.Equal(t, 3*time.Microsecond, tm.powerDown)
}
