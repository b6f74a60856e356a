//go:build rp2040

package platform

// Default returns the board for this build.
func Default() Board { return NewRP2Board() }
