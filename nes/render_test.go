package nes

import (
	"image/color"
	"testing"
)

// parkedOAM parks every sprite below the visible area and returns the
// buffer for the test to place its own sprites into.
func parkedOAM() [256]byte {
	var oam [256]byte
	for i := range oam {
		oam[i] = 0xF0
	}
	return oam
}

// solidTile writes a pattern tile whose every pixel has the given 2-bit
// color index.
func solidTile(v *VRAM, base uint16, index byte) {
	for row := uint16(0); row < 8; row++ {
		var lo, hi byte
		if index&1 != 0 {
			lo = 0xFF
		}
		if index&2 != 0 {
			hi = 0xFF
		}
		v.Write(base+row, lo)
		v.Write(base+row+8, hi)
	}
}

func newRenderPPU(t *testing.T) (*PPU, *Display, *nmiRecorder) {
	t.Helper()
	r := &nmiRecorder{}
	d := NewDisplay()
	p := NewPPU(NewVRAM(newTestCartridge(t, 0)), d, r)
	return p, d, r
}

func TestBackdropFill(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	ppu.vram.Write(0x3F00, 0x21)
	ppu.WriteRegister(PPUMASK, 0x08)
	ppu.RunCycles(pixelsPerLine * linesPerFrame)

	want := colors[0x21]
	for _, pt := range [][2]int{{0, 0}, {5, 3}, {128, 120}, {255, 239}} {
		if got := display.Picture().RGBAAt(pt[0], pt[1]); got != want {
			t.Errorf("pixel (%d, %d): got = %v, want the backdrop %v", pt[0], pt[1], got, want)
		}
	}
}

func TestBackgroundTileRendering(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	vram := ppu.vram
	solidTile(vram, 16, 1) // tile 1, color index 1
	// tile 1 in the top-left corner only
	vram.Write(0x2000, 1)
	vram.Write(0x3F00, 0x0F)
	vram.Write(0x3F01, 0x16)
	ppu.WriteRegister(PPUMASK, 0x0A) // background, left 8 included
	ppu.RunCycles(pixelsPerLine * linesPerFrame)

	if got := display.Picture().RGBAAt(3, 3); got != colors[0x16] {
		t.Errorf("inside the tile: got = %v, want %v", got, colors[0x16])
	}
	if got := display.Picture().RGBAAt(8, 3); got != colors[0x0F] {
		t.Errorf("right of the tile: got = %v, want the backdrop %v", got, colors[0x0F])
	}
	if got := display.Picture().RGBAAt(3, 8); got != colors[0x0F] {
		t.Errorf("below the tile: got = %v, want the backdrop %v", got, colors[0x0F])
	}
}

func TestLeftColumnMask(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	vram := ppu.vram
	solidTile(vram, 16, 1)
	for i := uint16(0); i < 960; i++ {
		vram.Write(0x2000+i, 1)
	}
	vram.Write(0x3F00, 0x0F)
	vram.Write(0x3F01, 0x16)
	ppu.WriteRegister(PPUMASK, 0x08) // background only, left 8 masked off
	ppu.RunCycles(pixelsPerLine * linesPerFrame)

	if got := display.Picture().RGBAAt(4, 10); got != colors[0x0F] {
		t.Errorf("masked column: got = %v, want the backdrop %v", got, colors[0x0F])
	}
	if got := display.Picture().RGBAAt(8, 10); got != colors[0x16] {
		t.Errorf("past the mask: got = %v, want %v", got, colors[0x16])
	}
}

func TestSpriteOverflow(t *testing.T) {
	ppu, _, _ := newRenderPPU(t)
	oam := parkedOAM()
	for i := 0; i < 9; i++ {
		oam[i*4+0] = 45 // all nine cover scanline 50
		oam[i*4+1] = 0
		oam[i*4+2] = 0
		oam[i*4+3] = byte(i * 8)
	}
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUMASK, 0x10)
	ppu.RunCycles(49*pixelsPerLine + 258) // through sprite evaluation at (49, 257)

	if !ppu.spriteOverflow {
		t.Error("sprite overflow flag should be set with nine active sprites")
	}
	if ppu.activeNum != 8 {
		t.Errorf("captured sprites: got = %d, want 8", ppu.activeNum)
	}
}

func TestNoSpriteOverflowWithEight(t *testing.T) {
	ppu, _, _ := newRenderPPU(t)
	oam := parkedOAM()
	for i := 0; i < 8; i++ {
		oam[i*4+0] = 45
		oam[i*4+3] = byte(i * 8)
	}
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUMASK, 0x10)
	ppu.RunCycles(49*pixelsPerLine + 258)

	if ppu.spriteOverflow {
		t.Error("sprite overflow flag must stay clear with eight sprites")
	}
	if ppu.activeNum != 8 {
		t.Errorf("captured sprites: got = %d, want 8", ppu.activeNum)
	}
}

func TestSpriteZeroHit(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	vram := ppu.vram
	solidTile(vram, 16, 1)
	for i := uint16(0); i < 960; i++ {
		vram.Write(0x2000+i, 1) // opaque background everywhere
	}
	vram.Write(0x3F00, 0x0F)
	vram.Write(0x3F01, 0x16)
	vram.Write(0x3F11, 0x14)
	oam := parkedOAM()
	oam[0] = 48  // y: covers lines 48-55
	oam[1] = 1   // tile
	oam[2] = 0   // in front, sprite palette 0
	oam[3] = 100 // x
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUMASK, 0x1E)

	ppu.RunCycles(51 * pixelsPerLine) // past line 50
	if !ppu.spriteZeroHit {
		t.Fatal("sprite zero hit should be set where sprite and background overlap")
	}
	if got := display.Picture().RGBAAt(100, 50); got != colors[0x14] {
		t.Errorf("sprite pixel: got = %v, want %v", got, colors[0x14])
	}
	if got := display.Picture().RGBAAt(10, 50); got != colors[0x16] {
		t.Errorf("background pixel: got = %v, want %v", got, colors[0x16])
	}

	// the flag sticks until pre-render dot 1
	ppu.RunCycles(261*pixelsPerLine + 1 - 51*pixelsPerLine)
	if !ppu.spriteZeroHit {
		t.Fatal("sprite zero hit must persist until line 261 dot 1")
	}
	ppu.RunCycles(1)
	if ppu.spriteZeroHit {
		t.Error("sprite zero hit must be cleared at line 261 dot 1")
	}
}

func TestNoSpriteZeroHitOnTransparentBackground(t *testing.T) {
	ppu, _, _ := newRenderPPU(t)
	vram := ppu.vram
	solidTile(vram, 16, 1)
	vram.Write(0x3F11, 0x14)
	oam := parkedOAM()
	oam[0] = 48
	oam[1] = 1
	oam[2] = 0
	oam[3] = 100
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUMASK, 0x1E) // background enabled but the nametable is all tile 0

	ppu.RunCycles(60 * pixelsPerLine)
	if ppu.spriteZeroHit {
		t.Error("no hit without an opaque background pixel underneath")
	}
}

func TestSpritePriorityBehindBackground(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	vram := ppu.vram
	solidTile(vram, 16, 1)
	for i := uint16(0); i < 960; i++ {
		vram.Write(0x2000+i, 1)
	}
	vram.Write(0x3F00, 0x0F)
	vram.Write(0x3F01, 0x16)
	vram.Write(0x3F11, 0x14)
	oam := parkedOAM()
	oam[0] = 48
	oam[1] = 1
	oam[2] = 0x20 // behind the background
	oam[3] = 100
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUMASK, 0x1E)
	ppu.RunCycles(51 * pixelsPerLine)

	if got := display.Picture().RGBAAt(100, 50); got != colors[0x16] {
		t.Errorf("pixel: got = %v, want the background to win, %v", got, colors[0x16])
	}
}

func TestSpriteHorizontalFlip(t *testing.T) {
	run := func(t *testing.T, attributes byte) color.RGBA {
		ppu, display, _ := newRenderPPU(t)
		vram := ppu.vram
		// tile 1: left half color 1, right half color 0
		for row := uint16(0); row < 8; row++ {
			vram.Write(16+row, 0xF0)
		}
		vram.Write(0x3F11, 0x14)
		oam := parkedOAM()
		oam[0] = 48
		oam[1] = 1
		oam[2] = attributes
		oam[3] = 64
		ppu.WriteOAMDMA(oam)
		ppu.WriteRegister(PPUMASK, 0x1E)
		ppu.RunCycles(51 * pixelsPerLine)
		return display.Picture().RGBAAt(64, 50) // leftmost sprite pixel
	}

	backdrop := colors[0]
	if got := run(t, 0x00); got != colors[0x14] {
		t.Errorf("unflipped: got = %v, want the opaque left edge %v", got, colors[0x14])
	}
	if got := run(t, 0x40); got == colors[0x14] || got != backdrop {
		t.Errorf("flipped: got = %v, want the transparent edge showing backdrop %v", got, backdrop)
	}
}

func TestSpriteVerticalFlip(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	vram := ppu.vram
	// tile 1: only the top row opaque
	vram.Write(16, 0xFF)
	vram.Write(0x3F11, 0x14)
	oam := parkedOAM()
	oam[0] = 48
	oam[1] = 1
	oam[2] = 0x80 // flip vertically: the opaque row moves to the bottom
	oam[3] = 64
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUMASK, 0x1E)
	ppu.RunCycles(57 * pixelsPerLine)

	backdrop := colors[0]
	if got := display.Picture().RGBAAt(64, 48); got != backdrop {
		t.Errorf("top row: got = %v, want backdrop %v", got, backdrop)
	}
	if got := display.Picture().RGBAAt(64, 55); got != colors[0x14] {
		t.Errorf("bottom row: got = %v, want %v", got, colors[0x14])
	}
}

func TestDoubleHeightSprites(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	endWarmup(ppu)
	vram := ppu.vram
	solidTile(vram, 2*16, 1) // top half, color 1
	solidTile(vram, 3*16, 2) // bottom half, color 2
	vram.Write(0x3F11, 0x14)
	vram.Write(0x3F12, 0x24)
	oam := parkedOAM()
	oam[0] = 100
	oam[1] = 2 // even index: tiles 2 and 3 from pattern table 0
	oam[2] = 0
	oam[3] = 32
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUCTRL, 0x20) // 8x16 sprites
	ppu.WriteRegister(PPUMASK, 0x1E)
	ppu.RunCycles(117 * pixelsPerLine)

	if got := display.Picture().RGBAAt(32, 104); got != colors[0x14] {
		t.Errorf("upper tile: got = %v, want %v", got, colors[0x14])
	}
	if got := display.Picture().RGBAAt(32, 112); got != colors[0x24] {
		t.Errorf("lower tile: got = %v, want %v", got, colors[0x24])
	}
}

func TestSpriteOrderingLowestIndexWins(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	vram := ppu.vram
	solidTile(vram, 16, 1)
	vram.Write(0x3F11, 0x14) // sprite palette 0
	vram.Write(0x3F15, 0x24) // sprite palette 1
	oam := parkedOAM()
	// two overlapping sprites; the lower OAM index must be on top
	oam[0], oam[1], oam[2], oam[3] = 48, 1, 0x00, 64
	oam[4], oam[5], oam[6], oam[7] = 48, 1, 0x01, 66
	ppu.WriteOAMDMA(oam)
	ppu.WriteRegister(PPUMASK, 0x1E)
	ppu.RunCycles(51 * pixelsPerLine)

	if got := display.Picture().RGBAAt(68, 50); got != colors[0x14] {
		t.Errorf("overlap: got = %v, want sprite 0's %v", got, colors[0x14])
	}
	if got := display.Picture().RGBAAt(72, 50); got != colors[0x24] {
		t.Errorf("past sprite 0: got = %v, want sprite 1's %v", got, colors[0x24])
	}
}

func TestNoRenderingWhenDisabled(t *testing.T) {
	ppu, display, _ := newRenderPPU(t)
	ppu.vram.Write(0x3F00, 0x21)
	ppu.RunCycles(pixelsPerLine * linesPerFrame)

	var zero color.RGBA
	if got := display.Picture().RGBAAt(50, 50); got != zero {
		t.Errorf("pixel: got = %v, want the untouched buffer with rendering disabled", got)
	}
}
