//go:build !rp2040

package platform

// Default returns the board for this build: the simulator on the host.
func Default() Board { return NewSimBoard() }
