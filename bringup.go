package acorn

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Bridge lines as wired on the board. [Acorn]
//
//	SS0 | flash /CS
//	SS1 | PROG_EN: high connects the flash SPI lines to the bridge
//	SS2 | ECP5 PROGRAMN
//	SS3 | ECP5 DONE
const (
	PinSPISS Line = iota
	PinProgEn
	PinProgramN
	PinDone
)

// Mode selects what Start does before idling.
type Mode int

const (
	// ModeProgram routes the flash to the bridge, prints its ID and restores
	// the routing.
	ModeProgram Mode = iota
	// ModeIdle makes no bus transaction at all.
	ModeIdle
)

func (m Mode) String() string {
	switch m {
	case ModeProgram:
		return "prog"
	case ModeIdle:
		return "idle"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode parses the name returned by Mode.String.
func ParseMode(s string) (Mode, error) {
	for _, m := range []Mode{ModeProgram, ModeIdle} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode %q", s)
}

// Sequence drives the bridge to give it access to the configuration flash.
// Every step is a single blocking bus transaction and the first failure ends
// the sequence without any further bus transaction.
type Sequence struct {
	Bridge *Bridge

	SS       Line // flash chip select
	ProgEn   Line
	ProgramN Line
	Done     Line

	SPI SPIConfig

	Out io.Writer // diagnostic output
	Log *slog.Logger
}

// NewSequence returns a sequence using the board wiring and the fastest SPI
// clock in mode 0, MSB first.
func NewSequence(b *Bridge, out io.Writer) *Sequence {
	return &Sequence{
		Bridge:   b,
		SS:       PinSPISS,
		ProgEn:   PinProgEn,
		ProgramN: PinProgramN,
		Done:     PinDone,
		SPI:      SPIConfig{Clock: MaxSPIClock},
		Out:      out,
	}
}

func (s *Sequence) log() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// Start runs the mode and then blocks until ctx is done. It returns early only
// when a bus transaction fails.
func (s *Sequence) Start(ctx context.Context, m Mode) error {
	switch m {
	case ModeProgram:
		if _, err := s.Program(); err != nil {
			return err
		}
	case ModeIdle:
	default:
		return fmt.Errorf("unknown mode %d", int(m))
	}
	s.log().Debug("idle", "mode", m)
	Idle(ctx)
	return nil
}

// Idle blocks until ctx is done.
func Idle(ctx context.Context) {
	<-ctx.Done()
}

// Program enables programming, reads the flash ID, prints it and disables
// programming again.
func (s *Sequence) Program() (id [4]byte, err error) {
	if err = s.EnableProgramming(); err != nil {
		return id, err
	}
	if id, err = s.ReadFlashID(); err != nil {
		return id, err
	}
	out := s.Out
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "SPI flash ID: %d %d %d %d\n", id[0], id[1], id[2], id[3])
	if err = s.DisableProgramming(); err != nil {
		return id, err
	}
	return id, nil
}

// EnableProgramming drives PROG_EN high as a push-pull output and configures
// the SPI interface of the bridge.
func (s *Sequence) EnableProgramming() error {
	l := s.log()

	l.Debug("gpio enable", "line", s.ProgEn, "mask", s.ProgEn.Mask())
	if err := s.Bridge.EnableGPIO(s.ProgEn.Mask()); err != nil {
		return fmt.Errorf("enable programming: %w", err)
	}

	l.Debug("gpio config", "line", s.ProgEn, "mode", GPIOPushPull)
	if err := s.Bridge.ConfigureGPIO(s.ProgEn, GPIOPushPull); err != nil {
		return fmt.Errorf("enable programming: %w", err)
	}

	// TODO: hold the ECP5 in reset with PROGRAMN before taking over the flash.
	l.Debug("gpio write", "mask", s.ProgEn.Mask())
	if err := s.Bridge.WriteGPIO(s.ProgEn.Mask()); err != nil {
		return fmt.Errorf("enable programming: %w", err)
	}

	l.Debug("spi config", "value", s.SPI.Byte())
	if err := s.Bridge.ConfigureSPI(s.SPI); err != nil {
		return fmt.Errorf("enable programming: %w", err)
	}
	return nil
}

// ReadFlashID sends the Read Identification command and returns the four
// bytes clocked in, the first one being the response to the command byte.
func (s *Sequence) ReadFlashID() ([4]byte, error) {
	buf := [4]byte{flashCmdReadID}

	s.log().Debug("spi write", "ss", s.SS.Mask(), "data", buf[:])
	if err := s.Bridge.SPIWrite(s.SS.Mask(), buf[:]); err != nil {
		return buf, fmt.Errorf("read flash ID: %w", err)
	}
	if err := s.Bridge.SPIRead(s.SS.Mask(), buf[:]); err != nil {
		return buf, fmt.Errorf("read flash ID: %w", err)
	}
	s.log().Debug("spi read", "ss", s.SS.Mask(), "data", buf[:])
	return buf, nil
}

// DisableProgramming drives PROG_EN low, giving the flash back to the FPGA.
func (s *Sequence) DisableProgramming() error {
	s.log().Debug("gpio write", "mask", 0)
	if err := s.Bridge.WriteGPIO(0); err != nil {
		return fmt.Errorf("disable programming: %w", err)
	}
	return nil
}

// Flash returns the configuration flash behind the bridge. It is only
// reachable between EnableProgramming and DisableProgramming.
func (s *Sequence) Flash() *Flash {
	return NewFlash(s.Bridge.SPI(s.SS.Mask()), nil)
}

// BoardStatus holds the levels of the bridge GPIO lines.
type BoardStatus struct {
	GPIO byte

	programN Line
	done     Line
}

// Done reports whether the FPGA signals a completed configuration.
func (st BoardStatus) Done() bool { return st.GPIO&st.done.Mask() != 0 }

// ProgramN reports the level of PROGRAMN; low holds the FPGA in reset.
func (st BoardStatus) ProgramN() bool { return st.GPIO&st.programN.Mask() != 0 }

func (st BoardStatus) String() string {
	return fmt.Sprintf("gpio=%04b PROGRAMN=%t DONE=%t", st.GPIO, st.ProgramN(), st.Done())
}

// Status switches PROGRAMN and DONE to quasi-bidirectional GPIOs released
// high and reads back their levels. PROG_EN stays a push-pull output driven
// low, leaving the flash with the FPGA.
func (s *Sequence) Status() (BoardStatus, error) {
	st := BoardStatus{programN: s.ProgramN, done: s.Done}
	inputs := s.ProgramN.Mask() | s.Done.Mask()
	cfg := s.ProgEn.ConfigBits(GPIOPushPull) |
		s.ProgramN.ConfigBits(GPIOQuasiBidirectional) |
		s.Done.ConfigBits(GPIOQuasiBidirectional)

	if err := s.Bridge.EnableGPIO(s.ProgEn.Mask() | inputs); err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	if err := s.Bridge.WriteGPIOConfig(byte(cfg)); err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	// PROG_EN low, inputs released high
	if err := s.Bridge.WriteGPIO(inputs); err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	v, err := s.Bridge.ReadGPIO()
	if err != nil {
		return st, fmt.Errorf("status: %w", err)
	}
	st.GPIO = v
	s.log().Debug("status", "gpio", v)
	return st, nil
}
