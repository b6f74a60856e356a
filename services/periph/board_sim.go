//go:build !rp2040

package periph

import (
	"periph-go/services/periph/internal/can"
	"periph-go/services/periph/internal/platform"
	"periph-go/services/periph/internal/timer"
)

// SimBoard is the host board. Its Fire* methods stand in for vendor
// interrupts.
type SimBoard = platform.SimBoard

type (
	CANFrame     = can.Frame
	TimerChannel = timer.Channel
)

func NewSimBoard() *SimBoard { return platform.NewSimBoard() }
