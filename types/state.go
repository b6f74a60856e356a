package types

// ------------------------
// Service state (retained on periph/state)
// ------------------------

type PeriphState struct {
	Level      string            `json:"level"` // "idle", "ready", "stopped"
	Board      string            `json:"board"`
	Units      map[string]string `json:"units,omitempty"` // "kind/name" -> "ok" or error code
	EventDrops uint32            `json:"event_drops"`
	RxDropped  uint32            `json:"rx_dropped"`
	RxErrors   uint32            `json:"rx_errors"`
	TxRejected uint32            `json:"tx_rejected"`
	TxPending  uint32            `json:"tx_pending"`
	Suppressed uint32            `json:"suppressed"`
	TS         int64             `json:"ts_ns"`
}

// ------------------------
// Control
// ------------------------

// TxRequest is the payload of periph/<kind>/<name>/control/tx.
type TxRequest struct {
	Data      string `json:"data"`
	Blocking  bool   `json:"blocking,omitempty"`
	TimeoutMs int    `json:"timeout_ms,omitempty"`
	// CAN
	ID       uint32 `json:"id,omitempty"`
	Extended bool   `json:"extended,omitempty"`
	// I2C
	Addr uint16 `json:"addr,omitempty"`
	Reg  uint8  `json:"reg,omitempty"`
}

// ReadRequest is the payload of periph/i2c/<name>/control/read.
type ReadRequest struct {
	Addr uint16 `json:"addr"`
	Reg  uint8  `json:"reg"`
	Len  int    `json:"len"`
}

// ------------------------
// Generic replies
// ------------------------

type OKReply struct {
	OK bool `json:"ok"`
}

type ErrorReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type ReadReply struct {
	OK   bool   `json:"ok"`
	Data []byte `json:"data"`
}
