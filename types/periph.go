package types

import "periph-go/x/mathx"

// Peripheral configuration supplied on topic "config/periph" or loaded from
// a YAML board file. Every list entry is addressed by Name in bus topics.

type PeriphConfig struct {
	EXTI    EXTIConfig      `json:"exti" yaml:"exti"`
	ADC     []ADCConfig     `json:"adc,omitempty" yaml:"adc,omitempty"`
	CAN     []CANConfig     `json:"can,omitempty" yaml:"can,omitempty"`
	UART    []UARTConfig    `json:"uart,omitempty" yaml:"uart,omitempty"`
	USB     []USBConfig     `json:"usb,omitempty" yaml:"usb,omitempty"`
	I2C     []I2CConfig     `json:"i2c,omitempty" yaml:"i2c,omitempty"`
	I2S     []I2SConfig     `json:"i2s,omitempty" yaml:"i2s,omitempty"`
	Capture []CaptureConfig `json:"capture,omitempty" yaml:"capture,omitempty"`
	Encoder []EncoderConfig `json:"encoder,omitempty" yaml:"encoder,omitempty"`
	PWM     []PWMConfig     `json:"pwm,omitempty" yaml:"pwm,omitempty"`

	EventQueue      int `json:"event_queue,omitempty" yaml:"event_queue,omitempty"`             // ISR -> task events
	RxRing          int `json:"rx_ring,omitempty" yaml:"rx_ring,omitempty"`                     // bytes per rx ring, power of two
	StateIntervalMs int `json:"state_interval_ms,omitempty" yaml:"state_interval_ms,omitempty"` // retained state refresh
}

type EXTIConfig struct {
	DebounceMs int             `json:"debounce_ms,omitempty" yaml:"debounce_ms,omitempty"`
	Watchers   []WatcherConfig `json:"watchers,omitempty" yaml:"watchers,omitempty"`
}

type WatcherConfig struct {
	Name       string `json:"name" yaml:"name"`
	Mask       uint32 `json:"mask" yaml:"mask"`
	DebounceMs int    `json:"debounce_ms,omitempty" yaml:"debounce_ms,omitempty"`
}

type ADCConfig struct {
	Name           string  `json:"name" yaml:"name"`
	Channels       int     `json:"channels,omitempty" yaml:"channels,omitempty"`
	Vref           float32 `json:"vref,omitempty" yaml:"vref,omitempty"`
	ResolutionBits uint8   `json:"resolution_bits,omitempty" yaml:"resolution_bits,omitempty"`
}

type CANConfig struct {
	Name       string `json:"name" yaml:"name"`
	TxID       uint32 `json:"tx_id" yaml:"tx_id"`
	Extended   bool   `json:"extended,omitempty" yaml:"extended,omitempty"`
	FilterID   uint32 `json:"filter_id,omitempty" yaml:"filter_id,omitempty"`
	FilterMask uint32 `json:"filter_mask,omitempty" yaml:"filter_mask,omitempty"`
}

type UARTConfig struct {
	Name     string `json:"name" yaml:"name"`
	Baud     uint32 `json:"baud,omitempty" yaml:"baud,omitempty"`
	RxBuffer int    `json:"rx_buffer,omitempty" yaml:"rx_buffer,omitempty"`
	TxDepth  int    `json:"tx_depth,omitempty" yaml:"tx_depth,omitempty"`
}

type USBConfig struct {
	Name    string `json:"name" yaml:"name"`
	TxDepth int    `json:"tx_depth,omitempty" yaml:"tx_depth,omitempty"`
}

type I2CConfig struct {
	Name string `json:"name" yaml:"name"`
}

type I2SConfig struct {
	Name           string `json:"name" yaml:"name"`
	SamplesPerHalf int    `json:"samples_per_half,omitempty" yaml:"samples_per_half,omitempty"`
	SampleRate     uint32 `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`
	Mono           bool   `json:"mono,omitempty" yaml:"mono,omitempty"`         // single hardware channel
	Loopback       bool   `json:"loopback,omitempty" yaml:"loopback,omitempty"` // write every settled rx half back out
}

type CaptureConfig struct {
	Name    string `json:"name" yaml:"name"`
	Channel uint8  `json:"channel" yaml:"channel"`
}

type EncoderConfig struct {
	Name string `json:"name" yaml:"name"`
}

type PWMConfig struct {
	Name      string `json:"name" yaml:"name"`
	Channel   uint8  `json:"channel" yaml:"channel"`
	Prescaler uint32 `json:"prescaler,omitempty" yaml:"prescaler,omitempty"`
	Period    uint32 `json:"period" yaml:"period"`
	Pulse     uint32 `json:"pulse" yaml:"pulse"`
}

const (
	DefaultEventQueue      = 64
	DefaultRxRing          = 256
	DefaultStateIntervalMs = 5000
	DefaultDebounceMs      = 250
)

// Normalize fills defaults and clamps sizes. RxRing is rounded up to a
// power of two.
func (c *PeriphConfig) Normalize() {
	c.EventQueue = mathx.OrDefault(c.EventQueue, DefaultEventQueue, 4, 1024)
	c.RxRing = nextPow2(mathx.OrDefault(c.RxRing, DefaultRxRing, 16, 1<<14))
	c.StateIntervalMs = mathx.OrDefault(c.StateIntervalMs, DefaultStateIntervalMs, 100, 3_600_000)
	c.EXTI.DebounceMs = mathx.OrDefault(c.EXTI.DebounceMs, DefaultDebounceMs, 1, 10_000)
	for i := range c.EXTI.Watchers {
		w := &c.EXTI.Watchers[i]
		w.DebounceMs = mathx.OrDefault(w.DebounceMs, c.EXTI.DebounceMs, 1, 10_000)
	}
	for i := range c.Capture {
		c.Capture[i].Channel = mathx.OrDefault(c.Capture[i].Channel, 1, 1, 4)
	}
	for i := range c.PWM {
		c.PWM[i].Channel = mathx.OrDefault(c.PWM[i].Channel, 1, 1, 4)
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
