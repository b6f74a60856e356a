package periph

import "periph-go/services/periph/internal/platform"

// Board is the transport set a Service runs on.
type Board = platform.Board

// Kind names a peripheral category as it appears in topics.
type Kind = platform.Kind

const (
	KindEXTI    = platform.KindEXTI
	KindADC     = platform.KindADC
	KindCAN     = platform.KindCAN
	KindUART    = platform.KindUART
	KindUSB     = platform.KindUSB
	KindI2C     = platform.KindI2C
	KindI2S     = platform.KindI2S
	KindCapture = platform.KindCapture
	KindEncoder = platform.KindEncoder
	KindPWM     = platform.KindPWM
)

// DefaultBoard returns the board for the build target.
func DefaultBoard() Board { return platform.Default() }
