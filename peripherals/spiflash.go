package peripherals

import (
	"os"

	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

const (
	flashSize     = 16 * 1024 * 1024
	cmdRead       = 0x03
	cmdFastRead   = 0x0B
)

// SPIFlash is a single-bit-mode (the quad lines' bit 0 only) read-only
// SPI NOR flash model: while csn is low it shifts in an 8-bit command
// and, for the supported read commands, a 24-bit address, then clocks
// flash bytes out d_i bit 0 one bit per clk rising edge. Bits 1-3 of the
// quad data bus are left low, matching a flash chip that never drives
// them outside quad-mode commands this model does not implement.
//
// Grounded on the spiflash model's declared state struct (last_clk,
// last_csn, bit_count, byte_count, data_width, addr, curr_byte, command,
// out_buffer) and its 16MiB 0xFF-filled backing array; step() and the
// quad-mode command set are not given in the retrieved source, so only
// the single-bit READ/FAST_READ path is implemented, in the same
// counter-driven style as the rest of this package.
type SPIFlash struct {
	name string
	clk, csn, dO, dOE, dI *model.Item

	data []byte

	lastClk, lastCsn uint32
	bitCount         int
	byteCount        int
	addr             uint32
	command          uint8
	curByte          uint8
}

// NewSPIFlash builds a flash model backed by a flashSize byte array
// initialized to 0xFF (the teacher's erased-flash convention).
func NewSPIFlash(m *model.Model, name, clkItem, csnItem, dOItem, dOEItem, dIItem string) (*SPIFlash, error) {
	clk, err := pin(m, clkItem)
	if err != nil {
		return nil, err
	}
	csn, err := pin(m, csnItem)
	if err != nil {
		return nil, err
	}
	dO, err := pin(m, dOItem)
	if err != nil {
		return nil, err
	}
	dOE, err := pin(m, dOEItem)
	if err != nil {
		return nil, err
	}
	dI, err := pin(m, dIItem)
	if err != nil {
		return nil, err
	}

	data := make([]byte, flashSize)
	for i := range data {
		data[i] = 0xFF
	}
	return &SPIFlash{name: name, clk: clk, csn: csn, dO: dO, dOE: dOE, dI: dI, data: data, lastCsn: 1}, nil
}

// LoadData reads filename into the flash image at offset, mirroring
// spiflash::load_data.
func (f *SPIFlash) LoadData(filename string, offset int) error {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	copy(f.data[offset:], raw)
	return nil
}

func (f *SPIFlash) Step(now vtime.Time) error {
	clk, csn := readPin(f.clk), readPin(f.csn)
	defer func() { f.lastClk, f.lastCsn = clk, csn }()

	if csn == 1 {
		if f.lastCsn == 0 {
			f.bitCount, f.byteCount, f.command, f.addr = 0, 0, 0, 0
		}
		writePin(f.dI, 0)
		return nil
	}

	posedge := f.lastClk == 0 && clk == 1
	if !posedge {
		return nil
	}

	mosi := readPin(f.dO) & 1

	switch {
	case f.byteCount == 0:
		f.command = (f.command << 1) | uint8(mosi)
		f.bitCount++
		if f.bitCount == 8 {
			f.bitCount, f.byteCount = 0, 1
		}
	case f.byteCount <= 3 && (f.command == cmdRead || f.command == cmdFastRead):
		f.addr = (f.addr << 1) | uint32(mosi)
		f.bitCount++
		if f.bitCount == 8 {
			f.bitCount, f.byteCount = 0, f.byteCount+1
		}
	default:
		if f.bitCount == 0 {
			f.curByte = f.data[f.addr%uint32(len(f.data))]
		}
		outBit := (f.curByte >> 7) & 1
		writePin(f.dI, uint32(outBit))
		f.curByte <<= 1
		f.bitCount++
		if f.bitCount == 8 {
			f.bitCount = 0
			f.addr++
		}
	}
	return nil
}
