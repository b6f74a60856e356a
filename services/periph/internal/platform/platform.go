// Package platform binds peripheral transports to a concrete board and
// plays the vendor-interrupt role by calling into the category routers.
package platform

import (
	"tinygo.org/x/drivers"

	"periph-go/services/periph/internal/adc"
	"periph-go/services/periph/internal/can"
	"periph-go/services/periph/internal/core"
	"periph-go/services/periph/internal/exti"
	"periph-go/services/periph/internal/i2c"
	"periph-go/services/periph/internal/i2s"
	"periph-go/services/periph/internal/timer"
	"periph-go/services/periph/internal/uart"
	"periph-go/services/periph/internal/usb"
	"periph-go/x/timex"
)

// Kind names a peripheral category in configs and topics.
type Kind string

const (
	KindEXTI    Kind = "exti"
	KindADC     Kind = "adc"
	KindCAN     Kind = "can"
	KindUART    Kind = "uart"
	KindUSB     Kind = "usb"
	KindI2C     Kind = "i2c"
	KindI2S     Kind = "i2s"
	KindCapture Kind = "capture"
	KindEncoder Kind = "encoder"
	KindPWM     Kind = "pwm"
)

// Routers are the inbound sides a board's interrupt glue calls into.
type Routers struct {
	EXTI  *exti.Dispatcher
	ADC   *adc.Router
	CAN   *can.Router
	UART  *uart.Router
	USB   *usb.Router
	I2C   *i2c.Router
	I2S   *i2s.Router
	Timer *timer.Router
}

// NewRouters builds one router per category. ready gates edge delivery.
func NewRouters(clock timex.Clock, ready func() bool, lines exti.Lines) *Routers {
	opts := []exti.Option{exti.WithReady(ready)}
	if lines != nil {
		opts = append(opts, exti.WithLines(lines))
	}
	return &Routers{
		EXTI:  exti.NewDispatcher(clock, opts...),
		ADC:   adc.NewRouter(),
		CAN:   can.NewRouter(),
		UART:  uart.NewRouter(),
		USB:   usb.NewRouter(),
		I2C:   i2c.NewRouter(),
		I2S:   i2s.NewRouter(),
		Timer: timer.NewRouter(),
	}
}

// Board provides transports for the categories it supports. A nil
// transport means the category is unsupported on this board.
type Board interface {
	Name() string
	// Unit resolves a configured peripheral name to its hardware unit.
	Unit(k Kind, name string) (core.UnitID, bool)
	// Attach hands the board the routers its interrupt glue must call.
	Attach(r *Routers)

	Lines() exti.Lines
	ADC() adc.Transport
	CAN() can.Transport
	UART() uart.Transport
	USB() usb.Transport
	I2CBus(name string) (drivers.I2C, bool)
	I2CAsync() i2c.AsyncTransport
	I2S() i2s.Transport
	Capture() timer.CaptureTransport
	Encoder() timer.EncoderTransport
	PWM() timer.PWMTransport

	Close()
}
