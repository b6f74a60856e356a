package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: device ID (same value placed in ctx under CtxDeviceKey)
// Val: raw JSON bytes for that device
// -----------------------------------------------------------------------------

const cfgPico = `{
  "periph": {
    "exti": {
      "debounce_ms": 250,
      "watchers": [
        {"name": "button", "mask": 1},
        {"name": "alert", "mask": 2, "debounce_ms": 50}
      ]
    },
    "uart": [
      {"name": "uart0", "baud": 115200, "rx_buffer": 64},
      {"name": "uart1", "baud": 9600}
    ],
    "i2c": [
      {"name": "i2c0"}
    ],
    "event_queue": 64,
    "rx_ring": 256,
    "state_interval_ms": 5000
  },
  "heartbeat": {
    "interval": 10
  }
}`

const cfgSim = `{
  "periph": {
    "exti": {"watchers": [{"name": "button", "mask": 1}]},
    "adc": [{"name": "adc0", "channels": 4}],
    "can": [{"name": "can1", "tx_id": 256, "filter_id": 512, "filter_mask": 1792}],
    "uart": [{"name": "uart0"}],
    "usb": [{"name": "cdc0"}],
    "i2c": [{"name": "i2c0"}],
    "i2s": [{"name": "i2s0", "samples_per_half": 160, "sample_rate": 8000}],
    "capture": [{"name": "tim2", "channel": 1}],
    "encoder": [{"name": "tim3"}],
    "pwm": [{"name": "tim4", "channel": 1, "period": 1000, "pulse": 250}]
  },
  "heartbeat": {"interval": 30}
}`

var embeddedConfigs = map[string][]byte{
	"rp2040": []byte(cfgPico),
	"sim":    []byte(cfgSim),
}
