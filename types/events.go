package types

// Event payloads published non-retained on periph/<kind>/<name>/event.

type EdgeEvent struct {
	Mask  uint32 `json:"mask"`
	Count uint32 `json:"count"`
	TS    int64  `json:"ts_ns"`
}

type RxEvent struct {
	Data    string `json:"data"`
	Dropped uint32 `json:"dropped,omitempty"` // ring overflow so far
}

type TxDoneEvent struct {
	Len int `json:"len"`
}

type ConversionEvent struct {
	Raw   []uint16  `json:"raw"`
	Volts []float32 `json:"volts"`
}

type CANEvent struct {
	ID       uint32 `json:"id"`
	Extended bool   `json:"extended,omitempty"`
	Data     []byte `json:"data"`
}

type CaptureEvent struct {
	Channel uint8  `json:"channel"`
	Value   uint32 `json:"value"`
}

type EncoderEvent struct {
	Value int32 `json:"value"`
	Step  int8  `json:"step"` // +1 or -1
}

type PWMEvent struct {
	Channel uint8  `json:"channel"`
	Phase   string `json:"phase"` // "half" | "finished"
}

// AudioEvent summarizes one settled I2S half.
type AudioEvent struct {
	Frames int   `json:"frames"`
	PeakL  int16 `json:"peak_l"`
	PeakR  int16 `json:"peak_r"`
}
