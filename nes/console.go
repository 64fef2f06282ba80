package nes

import "image"

// Console wires a cartridge, the VRAM view, the PPU and a buffered display
// together. The caller owns the pacing: it advances the PPU through
// RunCycles (three dots per CPU cycle) and collects finished frames.
type Console struct {
	PPU *PPU

	display   *Display
	lastFrame uint64
}

// NewConsole creates a console around a cartridge. The listener receives
// NMIs raised during RunCycles; it may be nil if nobody cares.
func NewConsole(cartridge *Cartridge, listener InterruptListener) *Console {
	display := NewDisplay()
	ppu := NewPPU(NewVRAM(cartridge), display, listener)
	return &Console{PPU: ppu, display: display}
}

func (c *Console) Reset() {
	c.lastFrame = 0
	c.PPU.Reset()
}

// RunCycles advances the PPU by n dots and reports whether a frame boundary
// was crossed.
func (c *Console) RunCycles(n int) bool {
	return c.PPU.RunCycles(n)
}

// Frame returns the display buffer and whether a new frame has completed
// since the last call.
func (c *Console) Frame() (*image.RGBA, bool) {
	if c.lastFrame < c.PPU.FramesSinceReset() {
		c.lastFrame = c.PPU.FramesSinceReset()
		return c.display.Picture(), true
	}
	return c.display.Picture(), false
}
