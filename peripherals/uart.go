package peripherals

import (
	"github.com/hwdebug/rtlserver/model"
	"github.com/hwdebug/rtlserver/vtime"
)

// defaultBaudDiv is the bit period, in Step calls, used when no explicit
// divider is given: 25MHz / 115200 baud, the uart model's own default.
const defaultBaudDiv = 25000000 / 115200

// UART is a bit-banged serial link: it samples a start-bit-then-8-data-
// bits-then-stop-bit frame off its tx pin and logs each received byte,
// and shifts queued bytes out its rx pin on the same framing.
//
// Grounded on the uart model's declared state struct (tx_last, rx_counter,
// rx_sr, tx_active, tx_counter, tx_data); step() itself is not given in
// the retrieved source, so the bit-banging loop below is written fresh in
// the same polled, counter-driven style the rest of this package's models
// use.
type UART struct {
	name    string
	tx, rx  *model.Item
	baudDiv int

	log logger
	in  player

	txLast    uint32
	receiving bool
	rxCounter int
	rxSR      uint8
	rxBits    int

	txActive bool
	txCounter int
	txData    uint8
	txBits    int
	queue     []byte
}

// NewUART builds a UART peripheral. baudDiv of 0 uses the default divider.
func NewUART(m *model.Model, name, txItem, rxItem string, baudDiv int, log logger, in player) (*UART, error) {
	tx, err := pin(m, txItem)
	if err != nil {
		return nil, err
	}
	rx, err := pin(m, rxItem)
	if err != nil {
		return nil, err
	}
	if baudDiv <= 0 {
		baudDiv = defaultBaudDiv
	}
	return &UART{name: name, tx: tx, rx: rx, baudDiv: baudDiv, log: log, in: in, txLast: 1}, nil
}

func (u *UART) Step(now vtime.Time) error {
	if err := u.stepReceive(now); err != nil {
		return err
	}
	return u.stepTransmit()
}

func (u *UART) stepReceive(now vtime.Time) error {
	tx := readPin(u.tx)
	defer func() { u.txLast = tx }()

	if !u.receiving {
		if u.txLast == 1 && tx == 0 {
			u.receiving = true
			u.rxCounter = u.baudDiv + u.baudDiv/2
			u.rxSR, u.rxBits = 0, 0
		}
		return nil
	}

	u.rxCounter--
	if u.rxCounter > 0 {
		return nil
	}
	u.rxCounter = u.baudDiv

	if u.rxBits < 8 {
		if tx == 1 {
			u.rxSR |= 1 << uint(u.rxBits)
		}
		u.rxBits++
		return nil
	}

	u.receiving = false
	if u.log != nil {
		if err := u.log.LogEvent(now, u.name, "rx", int(u.rxSR)); err != nil {
			return err
		}
	}
	if u.in != nil {
		u.in.Observe(u.name, "rx")
	}
	return nil
}

func (u *UART) stepTransmit() error {
	if !u.txActive {
		if u.in != nil {
			for _, action := range u.in.GetPendingActions(u.name) {
				if action.Event != "send" {
					continue
				}
				var b int
				if err := unmarshalInt(action.Payload, &b); err == nil {
					u.queue = append(u.queue, byte(b))
				}
			}
		}
		if len(u.queue) == 0 {
			writePin(u.rx, 1)
			return nil
		}
		u.txData, u.queue = u.queue[0], u.queue[1:]
		u.txActive, u.txBits, u.txCounter = true, -1, u.baudDiv
		writePin(u.rx, 0) // start bit
		return nil
	}

	u.txCounter--
	if u.txCounter > 0 {
		return nil
	}
	u.txCounter = u.baudDiv
	u.txBits++

	if u.txBits < 8 {
		writePin(u.rx, uint32((u.txData>>uint(u.txBits))&1))
		return nil
	}

	writePin(u.rx, 1) // stop bit
	u.txActive = false
	return nil
}
