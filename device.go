package acorn

import (
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/ftdi"
)

// BusFTDI is the bus name selecting the MPSSE I2C port of an FTDI adapter.
const BusFTDI = "ftdi"

type Device struct {
	FTDI     *ftdi.FT232H // set when the bus is an FTDI adapter
	Bridge   *Bridge
	Sequence *Sequence

	bus i2c.BusCloser
}

var hostInitialized atomic.Bool

// InitPlatform loads the periph host drivers. It is safe to call more than
// once; only the first call has an effect.
func InitPlatform() error {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return fmt.Errorf("host initialization failed: %w", err)
		}
	}
	return nil
}

// NewDevice opens the I2C bus named in c and prepares the bridge sequence.
// Diagnostic output of the sequence goes to out. No bridge transaction is
// made.
func NewDevice(c *Config, out io.Writer) (*Device, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := InitPlatform(); err != nil {
		return nil, err
	}

	d := &Device{}
	if err := d.openBus(c.Bus); err != nil {
		return nil, err
	}

	speed, _ := c.BusFrequency()
	if speed != 0 {
		if err := d.bus.SetSpeed(speed); err != nil {
			d.bus.Close()
			return nil, fmt.Errorf("failed to set bus speed to %s: %w", speed, err)
		}
	}

	d.Bridge = NewBridge(d.bus, c.Addr)
	d.Sequence = newSequenceFromConfig(d.Bridge, c, out)
	return d, nil
}

func newSequenceFromConfig(b *Bridge, c *Config, out io.Writer) *Sequence {
	s := NewSequence(b, out)
	s.SS = Line(c.Pins.SPISS)
	s.ProgEn = Line(c.Pins.ProgEn)
	s.ProgramN = Line(c.Pins.ProgramN)
	s.Done = Line(c.Pins.Done)
	s.SPI, _ = c.SPIConfig()
	return s
}

// Close releases the I2C bus.
func (d *Device) Close() error {
	if d.bus == nil {
		return nil
	}
	return d.bus.Close()
}

func (d *Device) openBus(name string) (err error) {
	if name != BusFTDI {
		d.bus, err = i2creg.Open(name)
		if err != nil {
			return fmt.Errorf("could not open I2C bus %q: %w", name, err)
		}
		return nil
	}

	if err := d.findFT232H(); err != nil {
		return err
	}
	// [FTDI-AN_255] SDA and SCL are pulled up on the board.
	d.bus, err = d.FTDI.I2C(gpio.PullNoChange)
	if err != nil {
		return fmt.Errorf("failed to get I2C port: %w", err)
	}
	return nil
}

func (d *Device) findFT232H() error {
	const vendorID = 0x0403 // FTDI
	productIDs := map[uint16]string{
		0x6010: "FT2232H",
		0x6014: "FT232H",
	}

	info := ftdi.Info{}
	for _, dev := range ftdi.All() {
		dev.Info(&info)
		if _, ok := productIDs[info.DevID]; info.VenID != vendorID || !ok {
			continue
		}
		if ft, ok := dev.(*ftdi.FT232H); ok {
			d.FTDI = ft
			return nil
		}
	}

	return errors.New("FTDI device not found")
}
