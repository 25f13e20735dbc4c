package acorn

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// Config describes how the bridge is reached and how the board is wired.
// Every field is optional; missing fields keep their DefaultConfig value.
type Config struct {
	// Bus is the I2C bus name as known to periph's i2creg, or "ftdi" for the
	// MPSSE I2C port of an FT232H/FT2232H. Empty selects the first bus.
	Bus      string `yaml:"Bus"`
	BusSpeed string `yaml:"BusSpeed"`
	Addr     uint16 `yaml:"Addr"`

	Pins struct {
		SPISS    uint8 `yaml:"SPISS"`
		ProgEn   uint8 `yaml:"ProgEn"`
		ProgramN uint8 `yaml:"ProgramN"`
		Done     uint8 `yaml:"Done"`
	} `yaml:"Pins"`

	SPI struct {
		Clock    string `yaml:"Clock"`
		Mode     int    `yaml:"Mode"`
		LSBFirst bool   `yaml:"LSBFirst"`
	} `yaml:"SPI"`

	Logging struct {
		Level  string `yaml:"Level"`
		Format string `yaml:"Format"`
	} `yaml:"Logging"`
}

// DefaultConfig returns the configuration of the board as shipped.
func DefaultConfig() *Config {
	c := &Config{
		BusSpeed: "100kHz",
		Addr:     BridgeAddr,
	}
	c.Pins.SPISS = uint8(PinSPISS)
	c.Pins.ProgEn = uint8(PinProgEn)
	c.Pins.ProgramN = uint8(PinProgramN)
	c.Pins.Done = uint8(PinDone)
	c.SPI.Clock = MaxSPIClock.String()
	c.Logging.Level = "INFO"
	c.Logging.Format = "text"
	return c
}

// LoadConfig reads the YAML file at path over DefaultConfig and validates the
// result.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open config file: %w", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(c); err != nil {
		return nil, fmt.Errorf("can't decode config file %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return c, nil
}

// Validate checks ranges that the bridge and the bus can accept.
func (c *Config) Validate() error {
	if c.Addr > 0x7F {
		return fmt.Errorf("address %#x is not a 7-bit I2C address", c.Addr)
	}
	pins := []struct {
		name string
		line uint8
	}{
		{"SPISS", c.Pins.SPISS},
		{"ProgEn", c.Pins.ProgEn},
		{"ProgramN", c.Pins.ProgramN},
		{"Done", c.Pins.Done},
	}
	used := map[uint8]string{}
	for _, p := range pins {
		if p.line >= bridgeLines {
			return fmt.Errorf("pin %s: line %d does not exist", p.name, p.line)
		}
		if other, ok := used[p.line]; ok {
			return fmt.Errorf("pins %s and %s share line %d", other, p.name, p.line)
		}
		used[p.line] = p.name
	}
	if c.SPI.Mode < 0 || c.SPI.Mode > 3 {
		return fmt.Errorf("SPI mode %d is not in 0..3", c.SPI.Mode)
	}
	if _, err := c.BusFrequency(); err != nil {
		return err
	}
	if _, err := c.SPIConfig(); err != nil {
		return err
	}
	return nil
}

// BusFrequency returns the parsed I2C bus speed, zero when unset.
func (c *Config) BusFrequency() (physic.Frequency, error) {
	return parseFrequency("BusSpeed", c.BusSpeed)
}

// SPIConfig returns the bridge SPI configuration.
func (c *Config) SPIConfig() (SPIConfig, error) {
	clk, err := parseFrequency("SPI.Clock", c.SPI.Clock)
	if err != nil {
		return SPIConfig{}, err
	}
	mode := spi.Mode(c.SPI.Mode)
	if c.SPI.LSBFirst {
		mode |= spi.LSBFirst
	}
	return SPIConfig{Clock: clk, Mode: mode}, nil
}

func parseFrequency(field, s string) (physic.Frequency, error) {
	var f physic.Frequency
	if s == "" {
		return 0, nil
	}
	if err := f.Set(s); err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return f, nil
}
