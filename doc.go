// Package acorn brings up the configuration flash of an ECP5 board whose SPI
// flash is reachable through an SC18IS602B I2C-to-SPI bridge.
//
// The bridge's spare slave-select lines double as GPIOs. One of them (PROG_EN)
// switches the flash SPI lines from the FPGA to the bridge, so the flash can be
// accessed while the FPGA is held off the bus.
//
// # References:
//
// NXP
//   - [SC18IS602B]: I2C-bus to SPI bridge, Product data sheet Rev. 6 (https://www.nxp.com/docs/en/data-sheet/SC18IS602B.pdf)
//
// FTDI (https://ftdichip.com/document/application-notes/)
//   - [FTDI-AN_255]: USB to I2C Example using the FT232H and FT201X devices (https://ftdichip.com/wp-content/uploads/2020/08/AN_255_USB-to-I2C-Example-using-the-FT232H-and-FT201X-devices.pdf)
//
// FPGA
//   - [Acorn]: SQRL Acorn CLE-215 / ECP5 link board (https://github.com/litex-hub/litex-boards/blob/master/litex_boards/platforms/sqrl_acorn.py)
//
// SPI Flash
//   - [N25Q32]: N25Q032A Micron Serial NOR Flash Memory datasheet (could not find the official public URL)
//   - [W25Q128]: W25Q128JV-DTR Winbond Serial Flash Memory (https://www.winbond.com/resource-files/W25Q128JV_DTR%20RevD%2012232024%20Plus.pdf)
package acorn
