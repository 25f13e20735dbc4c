package acorn

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// BridgeAddr is the I2C address of the SC18IS602B with A2..A0 tied low.
// [SC18IS602B|7.1.1 Slave address]
const BridgeAddr = 0x28

// Function IDs.
// [SC18IS602B|Table 4: Function ID]
const (
	regConfigSPI  = 0xF0 // Configure SPI Interface
	regClearIRQ   = 0xF1 // Clear Interrupt
	regIdleMode   = 0xF2 // Idle mode
	regGPIOWrite  = 0xF4 // GPIO Write
	regGPIORead   = 0xF5 // GPIO Read
	regGPIOEnable = 0xF6 // GPIO Enable
	regGPIOConfig = 0xF7 // GPIO Configuration
)

// bridgeBufferSize is the size of the SPI data buffer. A single SPI write can
// carry at most this many bytes after the function ID.
// [SC18IS602B|7.4 SPI read and write - Function ID 01h to 0Fh]
const bridgeBufferSize = 200

// bridgeLines is the number of slave-select lines usable as GPIO (SS0..SS3).
const bridgeLines = 4

// Line is a slave-select line of the bridge. Lines may be used either as SPI
// slave selects or as GPIOs.
type Line uint8

// Mask returns the bitmask selecting the line in the GPIO enable, GPIO write
// and SPI function ID bytes.
func (l Line) Mask() byte { return 1 << l }

// ConfigBits returns the mode code shifted to the position of the line in the
// GPIO configuration register.
func (l Line) ConfigBits(m GPIOMode) uint16 { return uint16(m) << (2 * l) }

// GPIOMode is the 2-bit drive mode of a GPIO line.
// [SC18IS602B|Table 10: GPIO Configuration]
type GPIOMode byte

const (
	GPIOQuasiBidirectional GPIOMode = 0b00
	GPIOPushPull           GPIOMode = 0b01
	GPIOInputOnly          GPIOMode = 0b10
	GPIOOpenDrain          GPIOMode = 0b11
)

func (m GPIOMode) String() string {
	switch m {
	case GPIOQuasiBidirectional:
		return "quasi-bidirectional"
	case GPIOPushPull:
		return "push-pull"
	case GPIOInputOnly:
		return "input-only"
	case GPIOOpenDrain:
		return "open-drain"
	}
	return fmt.Sprintf("GPIOMode(%d)", byte(m))
}

// SPI clock rates with the internal 7.3728 MHz oscillator, indexed by the
// SPR1:SPR0 code. [SC18IS602B|Table 7: SPI clock rate]
var spiClockRates = [4]physic.Frequency{
	1843 * physic.KiloHertz,
	461 * physic.KiloHertz,
	115 * physic.KiloHertz,
	58 * physic.KiloHertz,
}

// MaxSPIClock is the fastest SPI clock the bridge generates.
var MaxSPIClock = spiClockRates[0]

// SPIConfig is the content of the SPI configuration register.
//
//	Bits| [SC18IS602B|Table 6: Configure SPI Interface]
//	----+--------------------------------------------
//	7:6 | reserved
//	5   | ORDER: 0 = MSB first, 1 = LSB first
//	4   | reserved
//	3   | CPOL
//	2   | CPHA
//	1:0 | SPR: clock rate
type SPIConfig struct {
	// Clock is the highest acceptable SPI clock. The bridge picks the fastest
	// rate that does not exceed it. Zero selects the maximum rate.
	Clock physic.Frequency
	// Mode is one of spi.Mode0..spi.Mode3, optionally with spi.LSBFirst.
	Mode spi.Mode
}

// Byte encodes the configuration for the SPI configuration register.
func (c SPIConfig) Byte() byte {
	var b byte
	if c.Mode&spi.LSBFirst != 0 {
		b |= 1 << 5
	}
	b |= byte(c.Mode&spi.Mode3) << 2
	return b | c.rate()
}

func (c SPIConfig) rate() byte {
	if c.Clock == 0 {
		return 0
	}
	for i, f := range spiClockRates {
		if f <= c.Clock {
			return byte(i)
		}
	}
	return byte(len(spiClockRates) - 1)
}

// TxError reports a failed bus transaction with the bridge.
type TxError struct {
	Op  string
	Reg byte // function ID
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("sc18is602b: %s (0x%02X) failed: %v", e.Op, e.Reg, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// Bridge is an SC18IS602B I2C-to-SPI bridge.
type Bridge struct {
	dev i2c.Dev
}

// NewBridge returns a bridge at addr on bus. No bus transaction is made.
func NewBridge(bus i2c.Bus, addr uint16) *Bridge {
	return &Bridge{dev: i2c.Dev{Bus: bus, Addr: addr}}
}

func (b *Bridge) String() string {
	return fmt.Sprintf("SC18IS602B(%s@%#02x)", b.dev.Bus, b.dev.Addr)
}

// WriteReg writes data to the function ID reg in a single I2C write.
func (b *Bridge) WriteReg(reg byte, data []byte) error {
	w := make([]byte, 1+len(data))
	w[0] = reg
	copy(w[1:], data)
	return b.tx(regName(reg), reg, w, nil)
}

// EnableGPIO selects which lines are GPIOs (bit set) or slave selects.
func (b *Bridge) EnableGPIO(mask byte) error {
	return b.WriteReg(regGPIOEnable, []byte{mask})
}

// ConfigureGPIO writes the GPIO configuration register with mode for line and
// zero (quasi-bidirectional) for every other line.
func (b *Bridge) ConfigureGPIO(l Line, m GPIOMode) error {
	if l >= bridgeLines {
		return fmt.Errorf("sc18is602b: line %d is not a GPIO", l)
	}
	return b.WriteGPIOConfig(byte(l.ConfigBits(m)))
}

// WriteGPIOConfig writes the whole GPIO configuration register, two bits per
// line. Build cfg by OR-ing Line.ConfigBits of lines 0..3.
func (b *Bridge) WriteGPIOConfig(cfg byte) error {
	return b.WriteReg(regGPIOConfig, []byte{cfg})
}

// WriteGPIO sets the levels of the GPIO output lines.
func (b *Bridge) WriteGPIO(mask byte) error {
	return b.WriteReg(regGPIOWrite, []byte{mask})
}

// ReadGPIO returns the levels of the GPIO lines. The bridge latches the levels
// into its data buffer on the GPIO Read function, which is read back next.
// [SC18IS602B|7.4.8 GPIO Read - Function ID F5h]
func (b *Bridge) ReadGPIO() (byte, error) {
	if err := b.tx("gpio read", regGPIORead, []byte{regGPIORead}, nil); err != nil {
		return 0, err
	}
	var r [1]byte
	if err := b.tx("gpio read", regGPIORead, nil, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// ConfigureSPI writes the SPI configuration register.
func (b *Bridge) ConfigureSPI(c SPIConfig) error {
	return b.WriteReg(regConfigSPI, []byte{c.Byte()})
}

// SPIWrite clocks data out on the SPI bus with the slave selects in ss
// asserted. The bytes clocked in are kept in the bridge buffer for SPIRead.
func (b *Bridge) SPIWrite(ss byte, data []byte) error {
	if ss == 0 || ss&^(1<<bridgeLines-1) != 0 {
		return fmt.Errorf("sc18is602b: invalid slave select mask %#02x", ss)
	}
	if len(data) > bridgeBufferSize {
		return fmt.Errorf("sc18is602b: %d bytes exceed the %d byte buffer", len(data), bridgeBufferSize)
	}
	w := make([]byte, 1+len(data))
	w[0] = ss
	copy(w[1:], data)
	return b.tx("spi write", ss, w, nil)
}

// SPIRead reads len(data) bytes clocked in by the previous SPIWrite to ss.
// The bridge has a single buffer so ss only labels errors.
func (b *Bridge) SPIRead(ss byte, data []byte) error {
	if len(data) > bridgeBufferSize {
		return fmt.Errorf("sc18is602b: %d bytes exceed the %d byte buffer", len(data), bridgeBufferSize)
	}
	return b.tx("spi read", ss, nil, data)
}

// SPI returns a connection to the SPI device selected by the lines in ss.
func (b *Bridge) SPI(ss byte) spi.Conn {
	return &bridgeConn{b: b, ss: ss}
}

func (b *Bridge) tx(op string, reg byte, w, r []byte) error {
	if err := b.dev.Tx(w, r); err != nil {
		return &TxError{Op: op, Reg: reg, Err: err}
	}
	return nil
}

func regName(reg byte) string {
	switch reg {
	case regConfigSPI:
		return "spi config"
	case regClearIRQ:
		return "clear interrupt"
	case regIdleMode:
		return "idle mode"
	case regGPIOWrite:
		return "gpio write"
	case regGPIORead:
		return "gpio read"
	case regGPIOEnable:
		return "gpio enable"
	case regGPIOConfig:
		return "gpio config"
	}
	return "write"
}

// bridgeConn implements spi.Conn on top of the bridge buffer. Every Tx is a
// SPI write followed by a read of the clocked-in bytes.
type bridgeConn struct {
	b  *Bridge
	ss byte
}

func (c *bridgeConn) String() string {
	return fmt.Sprintf("%s/SS%#02x", c.b, c.ss)
}

func (c *bridgeConn) Duplex() conn.Duplex { return conn.Full }

func (c *bridgeConn) Tx(w, r []byte) error {
	if len(w) == 0 {
		w = make([]byte, len(r))
	}
	if len(r) != 0 && len(r) != len(w) {
		return errors.New("sc18is602b: w and r must be the same length")
	}
	if err := c.b.SPIWrite(c.ss, w); err != nil {
		return err
	}
	if len(r) == 0 {
		return nil
	}
	return c.b.SPIRead(c.ss, r)
}

// TxPackets sends each packet as its own transaction. The bridge releases the
// slave select after every write so KeepCS cannot be honored.
func (c *bridgeConn) TxPackets(p []spi.Packet) error {
	for i := range p {
		if p[i].KeepCS {
			return errors.New("sc18is602b: KeepCS is not supported")
		}
		if err := c.Tx(p[i].W, p[i].R); err != nil {
			return err
		}
	}
	return nil
}
