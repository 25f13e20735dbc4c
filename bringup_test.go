package acorn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"
)

// programOps is the bus traffic of Program with PROG_EN on progEn and the
// flash selected by ss.
func programOps(progEn, ss Line, id ...byte) []i2ctest.IO {
	return []i2ctest.IO{
		write(0xF6, 1<<progEn),
		write(0xF7, 0b01<<(2*progEn)),
		write(0xF4, 1<<progEn),
		write(0xF0, 0x00),
		write(1<<ss, 0x9F, 0x00, 0x00, 0x00),
		read(id...),
		write(0xF4, 0x00),
	}
}

func TestProgram(t *testing.T) {
	bus := newFakeBus(programOps(PinProgEn, PinSPISS, 1, 2, 3, 4)...)
	var out bytes.Buffer
	s := NewSequence(NewBridge(bus, BridgeAddr), &out)

	id, err := s.Program()
	require.NoError(t, err)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, id)
	assert.Equal(t, "SPI flash ID: 1 2 3 4\n", out.String())
	assert.NoError(t, bus.Close())
}

func TestProgramLines(t *testing.T) {
	for progEn := Line(0); progEn < bridgeLines; progEn++ {
		ss := (progEn + 1) % bridgeLines
		t.Run(fmt.Sprintf("PROG_EN=SS%d", progEn), func(t *testing.T) {
			bus := newFakeBus(programOps(progEn, ss, 0xFF, 0xEF, 0x70, 0x18)...)
			var out bytes.Buffer
			s := NewSequence(NewBridge(bus, BridgeAddr), &out)
			s.ProgEn = progEn
			s.SS = ss

			_, err := s.Program()
			require.NoError(t, err)
			assert.Equal(t, "SPI flash ID: 255 239 112 24\n", out.String())
			assert.NoError(t, bus.Close())
		})
	}
}

func TestProgramStopsOnFirstFailure(t *testing.T) {
	steps := len(programOps(PinProgEn, PinSPISS, 1, 2, 3, 4))
	for failAt := 1; failAt <= steps; failAt++ {
		t.Run(fmt.Sprintf("tx%d", failAt), func(t *testing.T) {
			bus := newFakeBus(programOps(PinProgEn, PinSPISS, 1, 2, 3, 4)...)
			bus.failAt = failAt
			var out bytes.Buffer
			s := NewSequence(NewBridge(bus, BridgeAddr), &out)

			_, err := s.Program()
			require.Error(t, err)
			assert.ErrorIs(t, err, errNACK)
			var txErr *TxError
			assert.True(t, errors.As(err, &txErr))

			assert.Equal(t, failAt, bus.calls, "no transaction after the failed one")
			if failAt < steps {
				assert.Empty(t, out.String())
			} else {
				// only restoring the routing failed
				assert.Equal(t, "SPI flash ID: 1 2 3 4\n", out.String())
			}
		})
	}
}

func TestStartIdle(t *testing.T) {
	bus := newFakeBus()
	var out bytes.Buffer
	s := NewSequence(NewBridge(bus, BridgeAddr), &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx, ModeIdle))
	assert.Zero(t, bus.calls)
	assert.Empty(t, out.String())
}

func TestStartIdleWithoutBridge(t *testing.T) {
	var out bytes.Buffer
	s := NewSequence(nil, &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mode, err := ParseMode("idle")
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx, mode))
	assert.Empty(t, out.String())
}

func TestStartProgram(t *testing.T) {
	bus := newFakeBus(programOps(PinProgEn, PinSPISS, 1, 2, 3, 4)...)
	var out bytes.Buffer
	s := NewSequence(NewBridge(bus, BridgeAddr), &out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.Start(ctx, ModeProgram))
	assert.Equal(t, "SPI flash ID: 1 2 3 4\n", out.String())
	assert.NoError(t, bus.Close())
}

func TestStartProgramFailureDoesNotIdle(t *testing.T) {
	bus := newFakeBus(programOps(PinProgEn, PinSPISS, 1, 2, 3, 4)...)
	bus.failAt = 3
	s := NewSequence(NewBridge(bus, BridgeAddr), nil)

	// Never cancelled: Start must return on its own.
	err := s.Start(context.Background(), ModeProgram)
	assert.ErrorIs(t, err, errNACK)
	assert.Equal(t, 3, bus.calls)
}

func TestStartUnknownMode(t *testing.T) {
	bus := newFakeBus()
	s := NewSequence(NewBridge(bus, BridgeAddr), nil)
	assert.Error(t, s.Start(context.Background(), Mode(7)))
	assert.Zero(t, bus.calls)
}

func TestParseMode(t *testing.T) {
	for _, m := range []Mode{ModeProgram, ModeIdle} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("flash")
	assert.Error(t, err)
}

func TestStatus(t *testing.T) {
	bus := newFakeBus(
		write(0xF6, 0b1110),
		write(0xF7, 0b0100), // PROG_EN push-pull
		write(0xF4, 0b1100), // PROG_EN low
		write(0xF5),
		read(0b1000),
	)
	s := NewSequence(NewBridge(bus, BridgeAddr), nil)

	st, err := s.Status()
	require.NoError(t, err)
	assert.True(t, st.Done())
	assert.False(t, st.ProgramN())
	assert.Equal(t, "gpio=1000 PROGRAMN=false DONE=true", st.String())
	assert.NoError(t, bus.Close())
}

func TestStatusKeepsFlashWithFPGA(t *testing.T) {
	for progEn := Line(0); progEn < bridgeLines; progEn++ {
		t.Run(fmt.Sprintf("PROG_EN=SS%d", progEn), func(t *testing.T) {
			programN := (progEn + 1) % bridgeLines
			done := (progEn + 2) % bridgeLines
			bus := newFakeBus(
				write(0xF6, 1<<progEn|1<<programN|1<<done),
				write(0xF7, 0b01<<(2*progEn)),
				write(0xF4, 1<<programN|1<<done),
				write(0xF5),
				read(0x00),
			)
			s := NewSequence(NewBridge(bus, BridgeAddr), nil)
			s.ProgEn, s.ProgramN, s.Done = progEn, programN, done
			s.SS = (progEn + 3) % bridgeLines

			_, err := s.Status()
			require.NoError(t, err)
			assert.NoError(t, bus.Close())
		})
	}
}
