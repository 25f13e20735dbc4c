package acorn

import (
	"fmt"
	"strings"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"
)

// Flash is a SPI NOR flash reached through conn. The chip select is driven by
// conn itself unless cs is set.
type Flash struct {
	conn spi.Conn
	cs   gpio.PinOut
	part *flashPart // nil until ReadID finds a known chip
}

// NewFlash returns a flash on conn. cs may be nil when conn asserts the chip
// select on its own, as the bridge does.
func NewFlash(conn spi.Conn, cs gpio.PinOut) *Flash {
	return &Flash{conn: conn, cs: cs}
}

// Flash commands:
//   - [N25Q32|Table 16: Command Set]
//   - [W25Q128|8.1.2 Instruction Set Table 1]
const (
	flashCmdReleasePowerDown   = 0xAB
	flashCmdPowerDown          = 0xB9
	flashCmdReadID             = 0x9F
	flashCmdRead               = 0x03
	flashCmdReadStatusRegister = 0x05
)

// flashReadHeader is the read command byte followed by a 24-bit address.
const flashReadHeader = 4

// flashMaxAddr is the last byte reachable with 24-bit addressing.
const flashMaxAddr = 1<<24 - 1

// tx runs one transaction, in place. Through the bridge the chip select
// frames the whole buffer, so cs is only touched for a direct SPI port.
func (f *Flash) tx(buf []byte) (err error) {
	if f.cs == nil {
		return f.conn.Tx(buf, buf)
	}
	if err = f.cs.Out(gpio.Low); err != nil {
		return err
	}
	defer func() {
		if csErr := f.cs.Out(gpio.High); csErr != nil && err == nil {
			err = csErr
		}
	}()
	return f.conn.Tx(buf, buf)
}

// command sends a single opcode and waits d for the chip to settle.
func (f *Flash) command(op byte, d time.Duration) error {
	if err := f.tx([]byte{op}); err != nil {
		return err
	}
	time.Sleep(d)
	return nil
}

// PowerUp releases the chip from deep power-down.
func (f *Flash) PowerUp() error {
	return f.command(flashCmdReleasePowerDown, f.timing().releasePowerDown)
}

// PowerDown puts the chip in deep power-down.
func (f *Flash) PowerDown() error {
	return f.command(flashCmdPowerDown, f.timing().powerDown)
}

// ReadID returns the 3-byte JEDEC ID and, for known chips, the part name.
// A known ID also selects the chip's power-down timings.
func (f *Flash) ReadID() (id [3]byte, name string, err error) {
	buf := [4]byte{flashCmdReadID}
	if err = f.tx(buf[:]); err != nil {
		return id, "", err
	}
	copy(id[:], buf[1:])

	f.part = nil
	if p, ok := flashParts[id]; ok {
		f.part = &p
		name = p.name
	}
	return id, name, nil
}

// Read returns n bytes starting at addr, one transaction per bridge buffer.
func (f *Flash) Read(addr, n int) ([]byte, error) {
	if n < 0 || addr < 0 || addr > flashMaxAddr || n > flashMaxAddr+1-addr {
		return nil, fmt.Errorf("read of %d bytes at 0x%X out of 24-bit range", n, addr)
	}

	const maxChunk = bridgeBufferSize - flashReadHeader
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := min(n-len(out), maxChunk)
		at := addr + len(out)
		buf := make([]byte, flashReadHeader+chunk)
		buf[0] = flashCmdRead
		buf[1], buf[2], buf[3] = byte(at>>16), byte(at>>8), byte(at)

		if err := f.tx(buf); err != nil {
			return nil, fmt.Errorf("read at 0x%06X: %w", at, err)
		}
		out = append(out, buf[flashReadHeader:]...)
	}
	return out, nil
}

// ReadStatusRegister returns status register 1.
func (f *Flash) ReadStatusRegister() (StatusRegister, error) {
	buf := [2]byte{flashCmdReadStatusRegister}
	if err := f.tx(buf[:]); err != nil {
		return 0, err
	}
	return StatusRegister(buf[1]), nil
}

// StatusRegister is status register 1 of the flash chip.
//
//	Bits| [N25Q32|Table 9]                     | [W25Q128|7.1 Status Registers]
//	----+--------------------------------------+-------------------------------
//	7   | Status register write enable/disable | SRP: Status Register Protect
//	6   | Reserved                             | SEC: Sector protect
//	5   | Top/bottom                           | TB: Top/Bottom protect
//	4:2 | Block protect 2-0                    | BP2-0: Block Protect bit 2-0
//	1   | Write enable latch                   | WEL: Write Enable Latch
//	0   | Write in progress                    | BUSY: Erase/Write in progress
type StatusRegister byte

func (sr StatusRegister) StatusRegisterProtect() bool { return sr&(1<<7) != 0 }
func (sr StatusRegister) SectorProtect() bool         { return sr&(1<<6) != 0 }
func (sr StatusRegister) TopBottom() bool             { return sr&(1<<5) != 0 }
func (sr StatusRegister) BlockProtect() byte          { return byte(sr>>2) & 0b111 }
func (sr StatusRegister) WriteEnabled() bool          { return sr&(1<<1) != 0 }
func (sr StatusRegister) Busy() bool                  { return sr&(1<<0) != 0 }

func (sr StatusRegister) String() string {
	flags := []struct {
		set  bool
		name string
	}{
		{sr.StatusRegisterProtect(), "SRP"},
		{sr.SectorProtect(), "SEC"},
		{sr.TopBottom(), "TB"},
		{sr.BlockProtect() != 0, fmt.Sprintf("BP=%d", sr.BlockProtect())},
		{sr.WriteEnabled(), "WEL"},
		{sr.Busy(), "BUSY"},
	}
	var s []string
	for _, fl := range flags {
		if fl.set {
			s = append(s, fl.name)
		}
	}
	b := fmt.Sprintf("%08b", byte(sr))
	if len(s) == 0 {
		return b
	}
	return b + " " + strings.Join(s, ",")
}
