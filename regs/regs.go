// Package regs names the byte offsets and bit layouts of the packed
// memory-mapped register blocks the bundled peripheral drivers program,
// so the debug server can decode a raw register read the same way the
// driver headers document it.
//
// Grounded on the driver headers' packed structs: gpio.h's
// {out,oe,in} uint32 triple, uart.h's per-direction {config,
// phy_config,status,data} block duplicated for rx and tx, spi.h's
// {config,divider,send_data,receive_data,status} block, and i2c.h's
// {divider,action,send_data,receive_data,status} block.
package regs

// GPIO register offsets, one 32-bit word each: driven value, output
// enable, and sampled input, matching gpio_regs_t.
const (
	GPIOOut = 0x00
	GPIOOE  = 0x04
	GPIOIn  = 0x08
	GPIORegsSize = 0x0C
)

// uartModSize is the size in bytes of one direction's register block
// inside uart_regs_t: {config, padding[3], phy_config, status, data,
// padding[6]}, aligned(4).
const uartModSize = 16

// UART register offsets within one direction's (rx or tx) block.
const (
	UARTConfig    = 0x00
	UARTPhyConfig = 0x04
	UARTStatus    = 0x08
	UARTData      = 0x09
)

// UARTRx and UARTTx are the byte offsets of the rx and tx register
// blocks within the full uart_regs_t.
const (
	UARTRx = 0
	UARTTx = uartModSize
)

// UART status bits, shared by both directions' status byte.
const (
	UARTStatusBusy  = 1 << 0
	UARTStatusReady = 1 << 1
)

// SPI register offsets, matching spi_regs_t.
const (
	SPIConfig      = 0x00
	SPIDivider     = 0x04
	SPISendData    = 0x08
	SPIReceiveData = 0x0C
	SPIStatus      = 0x10
)

// SPIStatusBusy is set while a transfer started by writing SPISendData
// is still shifting.
const SPIStatusBusy = 1 << 0

// I2C register offsets, matching i2c_regs_t.
const (
	I2CDivider     = 0x00
	I2CAction      = 0x04
	I2CSendData    = 0x08
	I2CReceiveData = 0x0C
	I2CStatus      = 0x10
)

// I2C action register bit values.
const (
	I2CActionStart = 1 << 0
	I2CActionStop  = 1 << 1
	I2CActionWrite = 1 << 2
	I2CActionRead  = 1 << 3
)

// I2CStatusAck is set when the last written byte was acknowledged.
const I2CStatusAck = 1 << 0
