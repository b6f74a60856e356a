// Package logx is a component-tagged logger for task context. It must never
// be called from an interrupt callback.
package logx

// Component identifies a subsystem for log filtering.
type Component string

const (
	Periph Component = "periph"
	EXTI   Component = "exti"
	Stream Component = "i2s"
	UART   Component = "uart"
	USB    Component = "usb"
	CAN    Component = "can"
	ADC    Component = "adc"
	I2C    Component = "i2c"
	Timer  Component = "timer"
	Config Component = "config"
	Sim    Component = "sim"
)

// Level mirrors slog levels so host and MCU builds share call sites.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)
