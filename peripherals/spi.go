package peripherals

import (
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// SPI is a peripheral-side SPI slave: while csn is asserted low it shifts
// an MSB-first byte in from copi and a queued byte out on cipo, one bit
// per clk rising edge, and logs a "byte" event with the completed
// in_buffer once 8 bits have shifted.
//
// Grounded on the spi model's declared state struct (last_clk, last_csn,
// bit_count, in_buffer, out_buffer, width); like uart, step() itself is
// written fresh since only the state shape was retrieved.
type SPI struct {
	name                  string
	clk, csn, copi, cipo  *model.Item
	width                 int

	log logger
	in  player

	lastClk, lastCsn uint32
	bitCount         int
	inBuffer         uint32
	outBuffer        uint32
	queue            []byte
}

// NewSPI builds an SPI peripheral shifting width-bit (default 8) frames.
func NewSPI(m *model.Model, name, clkItem, copiItem, cipoItem, csnItem string, width int, log logger, in player) (*SPI, error) {
	clk, err := pin(m, clkItem)
	if err != nil {
		return nil, err
	}
	copi, err := pin(m, copiItem)
	if err != nil {
		return nil, err
	}
	cipo, err := pin(m, cipoItem)
	if err != nil {
		return nil, err
	}
	csn, err := pin(m, csnItem)
	if err != nil {
		return nil, err
	}
	if width <= 0 {
		width = 8
	}
	return &SPI{name: name, clk: clk, csn: csn, copi: copi, cipo: cipo, width: width, log: log, in: in, lastCsn: 1}, nil
}

func (s *SPI) Step(now vtime.Time) error {
	clk, csn := readPin(s.clk), readPin(s.csn)
	defer func() { s.lastClk, s.lastCsn = clk, csn }()

	if s.lastCsn == 1 && csn == 0 {
		s.startFrame()
	}
	if csn == 1 {
		writePin(s.cipo, 1)
		return nil
	}

	posedge := s.lastClk == 0 && clk == 1
	if !posedge {
		return nil
	}

	outBit := (s.outBuffer >> uint(s.width-1)) & 1
	writePin(s.cipo, outBit)
	s.outBuffer = (s.outBuffer << 1) & mask(s.width)

	s.inBuffer = (s.inBuffer<<1 | readPin(s.copi)) & mask(s.width)
	s.bitCount++
	if s.bitCount < s.width {
		return nil
	}

	s.bitCount = 0
	if s.log != nil {
		if err := s.log.LogEvent(now, s.name, "byte", int(s.inBuffer)); err != nil {
			return err
		}
	}
	if s.in != nil {
		s.in.Observe(s.name, "byte")
	}
	s.refillOutBuffer()
	return nil
}

func (s *SPI) startFrame() {
	s.bitCount, s.inBuffer = 0, 0
	s.refillOutBuffer()
}

func (s *SPI) refillOutBuffer() {
	if s.in != nil {
		for _, action := range s.in.GetPendingActions(s.name) {
			if action.Event != "send" {
				continue
			}
			var b int
			if err := unmarshalInt(action.Payload, &b); err == nil {
				s.queue = append(s.queue, byte(b))
			}
		}
	}
	if len(s.queue) == 0 {
		s.outBuffer = mask(s.width) // idle high, matching a released bus
		return
	}
	s.outBuffer = uint32(s.queue[0])
	s.queue = s.queue[1:]
}

func mask(width int) uint32 {
	if width >= 32 {
		return ^uint32(0)
	}
	return (uint32(1) << uint(width)) - 1
}
