package peripherals

import (
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// I2C is a single-address I2C slave: it watches scl/sda for a start
// condition, shifts in an address+R/W byte and then data bytes MSB
// first on scl rising edges, drives sda low for one clock to ack each
// byte, and logs a "byte" event per completed byte.
//
// Grounded on the i2c model's declared state struct (byte_count,
// bit_count, do_ack, is_read, read_data, sr, drive_sda, last_sda,
// last_scl); step() is written fresh for the same reason as spi/uart.
type I2C struct {
	name string

	sclO, sclOE, sclI *model.Item
	sdaO, sdaOE, sdaI *model.Item

	log logger
	in  player

	lastSCL, lastSDA uint32
	active           bool
	bitCount         int
	byteCount        int
	sr               uint8
	ackPhase         bool
	readData         uint8
	readQueue        []byte
}

// NewI2C builds an I2C peripheral. The scl/sda signals are each split
// into driver/output-enable/sampled-input triples, the same tristate
// convention GPIO uses.
func NewI2C(m *model.Model, name string,
	sclO, sclOE, sclI, sdaO, sdaOE, sdaI string,
	log logger, in player) (*I2C, error) {

	lookup := func(path string) (*model.Item, error) { return pin(m, path) }

	so, err := lookup(sclO)
	if err != nil {
		return nil, err
	}
	soe, err := lookup(sclOE)
	if err != nil {
		return nil, err
	}
	si, err := lookup(sclI)
	if err != nil {
		return nil, err
	}
	dao, err := lookup(sdaO)
	if err != nil {
		return nil, err
	}
	daoe, err := lookup(sdaOE)
	if err != nil {
		return nil, err
	}
	dai, err := lookup(sdaI)
	if err != nil {
		return nil, err
	}

	return &I2C{
		name: name, sclO: so, sclOE: soe, sclI: si, sdaO: dao, sdaOE: daoe, sdaI: dai,
		log: log, in: in, lastSCL: 1, lastSDA: 1,
	}, nil
}

// effectiveSDA is the bus value sda carries as seen from the design's
// side: driven low when the design's driver asserts it, else released
// (1); the model's own ack on sdaI is not included.
func (i *I2C) effectiveSDA() uint32 {
	driverAsserted := readPin(i.sdaOE) != 0 && readPin(i.sdaO) == 0
	if driverAsserted {
		return 0
	}
	return 1
}

func (i *I2C) Step(now vtime.Time) error {
	scl := readPin(i.sclI)
	if readPin(i.sclOE) != 0 {
		scl = readPin(i.sclO)
	}
	sda := i.effectiveSDA()
	defer func() { i.lastSCL, i.lastSDA = scl, sda }()

	if scl == 1 && i.lastSCL == 1 && i.lastSDA == 1 && sda == 0 {
		i.active, i.bitCount, i.byteCount, i.sr = true, 0, 0, 0
		writePin(i.sdaI, 1)
		return nil
	}
	if !i.active {
		writePin(i.sdaI, 1)
		return nil
	}
	if scl == 1 && i.lastSCL == 1 && i.lastSDA == 0 && sda == 1 {
		i.active = false
		writePin(i.sdaI, 1)
		return nil
	}

	posedge := i.lastSCL == 0 && scl == 1
	if !posedge {
		return nil
	}

	if i.ackPhase {
		i.ackPhase = false
		writePin(i.sdaI, 1)
		return nil
	}

	i.sr = (i.sr << 1) | uint8(sda)
	i.bitCount++
	if i.bitCount < 8 {
		writePin(i.sdaI, 1)
		return nil
	}

	i.bitCount = 0
	i.byteCount++
	i.ackPhase = true
	writePin(i.sdaI, 0) // ack

	if i.log != nil {
		if err := i.log.LogEvent(now, i.name, "byte", int(i.sr)); err != nil {
			return err
		}
	}
	if i.in != nil {
		for _, action := range i.in.GetPendingActions(i.name) {
			if action.Event != "send" {
				continue
			}
			var b int
			if err := unmarshalInt(action.Payload, &b); err == nil {
				i.readQueue = append(i.readQueue, byte(b))
			}
		}
		i.in.Observe(i.name, "byte")
	}
	return nil
}
