package nes

import (
	"image/color"

	"github.com/golang/glog"
)

const (
	pixelsPerLine = 341 // dots per scanline; only 256 of these are visible
	linesPerFrame = 262 // scanlines per frame: 0-239 visible, 240 post-render, 241-260 vblank, 261 pre-render

	// Writes to PPUCTRL are dropped this long after reset
	// (29658 CPU cycles, three dots each).
	warmupDots = 29658 * 3
)

// Register indices. These are also the offsets of the registers in the CPU
// memory map from 0x2000; mirroring every 8 bytes up to 0x3FFF is the CPU
// bus's business.
const (
	PPUCTRL = iota
	PPUMASK
	PPUSTATUS
	OAMADDR
	OAMDATA
	PPUSCROLL
	PPUADDR
	PPUDATA
)

// sprite is one of the (up to) eight sprites evaluated for the next
// scanline, with its pattern row already resolved to colors.
//
// OAM attribute byte:
// 76543210
// ||||||||
// ||||||++- Palette (4 to 7) of sprite
// |||+++--- Unimplemented (read 0)
// ||+------ Priority (0: in front of background; 1: behind background)
// |+------- Flip sprite horizontally
// +-------- Flip sprite vertically
type sprite struct {
	oamAddr          int // byte offset of the sprite in OAM; 0 identifies sprite zero
	x                int
	behindBackground bool
	row              [8]*color.RGBA // resolved pixels for the target line, nil = transparent
}

// PPU stands for Picture Processing Unit, renders a 256px x 240px image.
// The PPU runs 3x faster than the CPU and rendering 1 frame takes
// 341x262=89342 dots, one fewer on odd frames; only dots 1-256 of lines
// 0-239 write a pixel.
// This implementation emulates NTSC, not PAL.
//
// References:
//   https://www.nesdev.org/wiki/PPU_registers
//   https://www.nesdev.org/wiki/PPU_rendering
//   https://www.nesdev.org/wiki/PPU_scrolling
type PPU struct {
	vram     *VRAM
	screen   Screen
	listener InterruptListener

	// oam
	oamAddress  byte
	oamAddrHeld byte // oamAddress snapshot taken at line 0 dot 65, fixed for the rest of the frame
	primaryOAM  [256]byte

	// sprites evaluated for the next scanline
	activeSprites [8]sprite
	activeNum     int

	// https://www.nesdev.org/wiki/PPU_sprite_evaluation
	spriteOverflow bool
	spriteZeroHit  bool
	inVblank       bool

	// Current VRAM address (15 bits), for PPUADDR $2006
	// yyy NN YYYYY XXXXX
	// ||| || ||||| +++++-- coarse X scroll
	// ||| || +++++-------- coarse Y scroll
	// ||| ++-------------- nametable select
	// +++----------------- fine Y scroll
	v uint16
	// Temporary VRAM address (15 bits)
	t uint16
	// fine x scroll (3 bits)
	x byte
	// w is the write toggle shared by PPUSCROLL and PPUADDR; PPUSTATUS
	// reads clear it.
	w bool
	// buffer for PPUDATA $2007 reads outside the palette region
	buffer byte
	// ioLatch holds the last byte seen on the register bus; reads of
	// write-only registers return it and PPUSTATUS reads mix it in.
	ioLatch byte

	// $2000
	nameTableFlag       byte // 0 = $2000; 1 = $2400; 2 = $2800; 3 = $2C00
	vramIncrementFlag   byte // 0: add 1, going across; 1: add 32, going down
	spriteTableFlag     byte // 0: $0000; 1: $1000; ignored in 8x16 mode
	backgroundTableFlag byte // 0: $0000; 1: $1000
	spriteSizeFlag      byte // 0: 8x8 pixels; 1: 8x16 pixels
	nmiOutput           bool

	// $2001
	grayScale          bool // stored, not applied
	showLeftBackground bool
	showLeftSprite     bool
	showBackground     bool
	showSprite         bool

	// background latches, two stages: [0] feeds the pixels being drawn,
	// [1] holds the next tile and is copied down every eighth dot.
	bkgPalette   [2]*[4]color.RGBA
	bkgPatternLo [2]byte
	bkgPatternHi [2]byte

	// palette decode cache, [0] background / [1] sprite; any write into
	// palette RAM clears it.
	paletteCache [2][4]*[4]color.RGBA
	rgbPalette   *[64]color.RGBA
	transparent  color.RGBA

	// line, pixel indicate which dot is processing.
	line  int
	pixel int

	cyclesSinceReset uint64
	cyclesSinceFrame uint64
	framesSinceReset uint64
}

// NewPPU creates a PPU wired to its collaborators. The screen is told which
// RGB value the PPU reserves as its transparency sentinel.
func NewPPU(vram *VRAM, screen Screen, listener InterruptListener) *PPU {
	p := &PPU{vram: vram, screen: screen, listener: listener, rgbPalette: &colors}
	p.transparent = nonPaletteColor(p.rgbPalette)
	screen.SetTransparentColor(p.transparent)
	p.Reset()
	return p
}

// Reset returns the PPU to its power-on state: zeroed registers, zeroed OAM,
// cleared flags, dot (0, 0). The palette cache is not shared across resets.
func (p *PPU) Reset() {
	*p = PPU{
		vram:        p.vram,
		screen:      p.screen,
		listener:    p.listener,
		rgbPalette:  p.rgbPalette,
		transparent: p.transparent,
	}
	// the latch patterns are zero, so these are never read before the
	// first real fetch replaces them
	p.bkgPalette[0] = new([4]color.RGBA)
	p.bkgPalette[1] = p.bkgPalette[0]
}

// FramesSinceReset returns how many frames have been completed.
func (p *PPU) FramesSinceReset() uint64 {
	return p.framesSinceReset
}

// ReadRegister reads the specified PPU register and takes the side effects
// that come with it. Reading a nominally write-only register returns the
// current value of the I/O bus latch.
func (p *PPU) ReadRegister(register int) byte {
	switch register & 7 {
	case PPUSTATUS:
		return p.readPPUSTATUS()
	case OAMDATA:
		return p.readOAMDATA()
	case PPUDATA:
		return p.readPPUDATA()
	default:
		return p.ioLatch
	}
}

// WriteRegister writes one of the PPU registers. Writing any value to any
// register, even the read-only PPUSTATUS, fills the I/O bus latch.
func (p *PPU) WriteRegister(register int, data byte) {
	p.ioLatch = data
	switch register & 7 {
	case PPUCTRL:
		p.writePPUCTRL(data)
	case PPUMASK:
		p.writePPUMASK(data)
	case PPUSTATUS:
		// read only
	case OAMADDR:
		p.oamAddress = data
	case OAMDATA:
		p.writeOAMDATA(data)
	case PPUSCROLL:
		p.writePPUSCROLL(data)
	case PPUADDR:
		p.writePPUADDR(data)
	case PPUDATA:
		p.writePPUDATA(data)
	}
}

// WriteOAMDMA replaces the whole of OAM at once, the $4014 upload path.
func (p *PPU) WriteOAMDMA(data [256]byte) {
	p.primaryOAM = data
}

// writePPUCTRL writes PPUCTRL ($2000). Writes during the warm-up window
// after reset are dropped. Enabling the vblank NMI while the vblank flag is
// already set raises the NMI immediately.
func (p *PPU) writePPUCTRL(data byte) {
	if p.cyclesSinceReset < warmupDots {
		return
	}
	wasEnabled := p.nmiOutput
	p.nameTableFlag = data & 3
	p.vramIncrementFlag = (data >> 2) & 1
	p.spriteTableFlag = (data >> 3) & 1
	p.backgroundTableFlag = (data >> 4) & 1
	p.spriteSizeFlag = (data >> 5) & 1
	p.nmiOutput = bitHigh(data, 7)
	// t: ...GH.. ........ <- d: ......GH
	p.t = (p.t & 0xF3FF) | ((uint16(data) & 0x03) << 10)
	if p.inVblank && p.nmiOutput && !wasEnabled {
		p.triggerNMI()
	}
}

// writePPUMASK writes PPUMASK ($2001).
func (p *PPU) writePPUMASK(data byte) {
	p.grayScale = bitHigh(data, 0)
	p.showLeftBackground = bitHigh(data, 1)
	p.showLeftSprite = bitHigh(data, 2)
	p.showBackground = bitHigh(data, 3)
	p.showSprite = bitHigh(data, 4)
}

// readPPUSTATUS reads PPUSTATUS ($2002): the three status flags on top of
// the stale low bits of the bus latch. Clears the vblank flag and the
// shared write toggle.
func (p *PPU) readPPUSTATUS() byte {
	res := p.ioLatch & 0x1F
	if p.spriteOverflow {
		res = setBit(res, 5)
	}
	if p.spriteZeroHit {
		res = setBit(res, 6)
	}
	if p.inVblank {
		res = setBit(res, 7)
	}
	p.inVblank = false
	p.w = false
	p.ioLatch = res
	return res
}

// readOAMDATA reads OAMDATA ($2004); reads do not advance the OAM cursor.
func (p *PPU) readOAMDATA() byte {
	v := p.primaryOAM[p.oamAddress]
	p.ioLatch = v
	return v
}

// writeOAMDATA writes OAMDATA ($2004); writes advance the OAM cursor.
func (p *PPU) writeOAMDATA(data byte) {
	p.primaryOAM[p.oamAddress] = data
	p.oamAddress++
}

// writePPUSCROLL writes PPUSCROLL ($2005).
func (p *PPU) writePPUSCROLL(data byte) {
	if !p.w {
		// x-scroll
		// t: ....... ...ABCDE <- d: ABCDE...
		// x:              FGH <- d: .....FGH
		// w:                  <- 1
		p.t = (p.t & 0xFFE0) | (uint16(data) >> 3)
		p.x = data & 7
		p.w = true
	} else {
		// y-scroll
		// t: FGH..AB CDE..... <- d: ABCDEFGH
		// w:                  <- 0
		p.t = (p.t & 0x8FFF) | ((uint16(data) & 0x07) << 12)
		p.t = (p.t & 0xFC1F) | ((uint16(data) & 0xF8) << 2)
		p.w = false
	}
}

// writePPUADDR writes PPUADDR ($2006), high byte first. The high write
// lands in t's bits 13-8, nametable select included; the low write copies
// t into v.
func (p *PPU) writePPUADDR(data byte) {
	if !p.w {
		// t: .CDEFGH ........ <- d: ..CDEFGH
		// t: Z...... ........ <- 0 (bit Z is cleared)
		// w:                  <- 1
		p.t = (p.t & 0x00FF) | ((uint16(data) & 0x3F) << 8)
		p.w = true
	} else {
		// t: ....... ABCDEFGH <- d: ABCDEFGH
		// v: <...all bits...> <- t: <...all bits...>
		// w:                  <- 0
		p.t = (p.t & 0xFF00) | uint16(data)
		p.v = p.t
		p.w = false
	}
}

// writePPUDATA writes PPUDATA ($2007) into VRAM and advances the address.
// Writes that land in palette RAM invalidate the palette decode cache.
func (p *PPU) writePPUDATA(data byte) {
	address := p.v & 0x3FFF
	p.vram.Write(address, data)
	if address >= PaletteStart {
		p.invalidatePaletteCache()
	}
	p.incrementAddress()
}

// readPPUDATA reads PPUDATA ($2007). Reads below the palette region go
// through a one-byte buffer; palette reads return directly while refilling
// the buffer with the mirrored nametable byte underneath.
// Source: http://forums.nesdev.com/viewtopic.php?t=1721
func (p *PPU) readPPUDATA() byte {
	address := p.v & 0x3FFF
	data := p.vram.Read(address)
	if address < PaletteStart {
		data, p.buffer = p.buffer, data
	} else {
		p.buffer = p.vram.Read(address - 0x1000)
	}
	p.incrementAddress()
	p.ioLatch = data
	return data
}

func (p *PPU) incrementAddress() {
	if p.vramIncrementFlag == 0 {
		p.v++
	} else {
		p.v += 32
	}
}

func (p *PPU) triggerNMI() {
	if p.listener != nil {
		p.listener.RaiseNMI()
	}
}

func (p *PPU) renderingEnabled() bool {
	return p.showBackground || p.showSprite
}

// incrementCoarseX increments X, calc from https://www.nesdev.org/wiki/PPU_scrolling
func (p *PPU) incrementCoarseX() {
	if p.v&0x001F == 31 {
		p.v &= 0xFFE0
		p.v ^= 0x0400
	} else {
		p.v++
	}
}

// incrementY increments Y, calc from https://www.nesdev.org/wiki/PPU_scrolling#Wrapping_around
func (p *PPU) incrementY() {
	if (p.v & 0x7000) != 0x7000 {
		p.v += 0x1000
	} else {
		p.v &= 0x8FFF
		y := (p.v & 0x03E0) >> 5
		if y == 29 {
			y = 0
			p.v ^= 0x0800
		} else if y == 31 {
			y = 0
		} else {
			y++
		}
		p.v = (p.v & 0xFC1F) | (y << 5)
	}
}

// copyX copies the horizontal bits of t into v.
func (p *PPU) copyX() {
	// v: .... .A.. ...B CDEF <- t: .... .A.. ...BCDEF
	p.v = (p.v & 0xFBE0) | (p.t & 0x041F)
}

// copyY copies the vertical bits of t into v.
func (p *PPU) copyY() {
	// v: GHI A.BC DEF. .... <- t: GHIA.BC DEF.....
	p.v = (p.v & 0x841F) | (p.t & 0x7BE0)
}

// fillBackgroundLatches fetches the nametable byte, attribute byte and the
// two pattern planes for the tile v points at, resolves the attribute into a
// palette, installs everything in the next-stage latches, and advances v to
// the following tile.
func (p *PPU) fillBackgroundLatches() {
	nameTableByte := p.vram.Read(NametableStart | (p.v & 0x0FFF))
	attributeByte := p.vram.Read(0x23C0 | (p.v & 0x0C00) | ((p.v >> 4) & 0x38) | ((p.v >> 2) & 0x07))
	// two attribute bits per 2x2 tile block within the 4x4 meta-block
	shift := ((p.v >> 4) & 4) | (p.v & 2)
	paletteID := byte((uint16(attributeByte) >> shift) & 3)

	fineY := (p.v >> 12) & 7
	base := uint16(p.backgroundTableFlag)*0x1000 + uint16(nameTableByte)*16
	p.bkgPalette[1] = p.decodePalette(paletteID, false)
	p.bkgPatternLo[1] = p.vram.Read(base + fineY)
	p.bkgPatternHi[1] = p.vram.Read(base + fineY + 8)
	p.incrementCoarseX()
}

// shiftBackgroundLatches moves the next-stage tile into the current stage.
func (p *PPU) shiftBackgroundLatches() {
	p.bkgPalette[0] = p.bkgPalette[1]
	p.bkgPatternLo[0] = p.bkgPatternLo[1]
	p.bkgPatternHi[0] = p.bkgPatternHi[1]
}

// backgroundPixel reads the background color for the current dot from the
// current-stage latches; nil means transparent.
func (p *PPU) backgroundPixel() *color.RGBA {
	if !p.showBackground || (p.pixel-1 < 8 && !p.showLeftBackground) {
		return nil
	}
	shift := uint(7 - (p.pixel-1)%8)
	v := (p.bkgPatternLo[0]>>shift)&1 | ((p.bkgPatternHi[0]>>shift)&1)<<1
	if v == 0 {
		return nil
	}
	return &p.bkgPalette[0][v]
}

// evaluateSprites scans OAM, starting at the held OAM address, for sprites
// active on the given line and resolves up to eight of them into the sprite
// slots. Finding a ninth sets the overflow flag and stops the scan.
// References:
//   https://www.nesdev.org/wiki/PPU_OAM
//   https://www.nesdev.org/wiki/PPU_sprite_evaluation
func (p *PPU) evaluateSprites(line int) {
	height := 8
	if p.spriteSizeFlag == 1 {
		height = 16
	}
	count := 0
	p.activeNum = 0
	for n := 0; n < 64; n++ {
		addr := (int(p.oamAddrHeld) + n*4) % len(p.primaryOAM)
		y := int(p.primaryOAM[addr])
		if y <= line && line < y+height {
			if count == 8 {
				p.spriteOverflow = true
				break
			}
			p.fillSpriteSlot(count, addr, line-y, height == 16)
			count++
			p.activeNum = count
		}
	}
}

// fillSpriteSlot resolves one sprite's pattern row for the target line into
// slot i: colors with flips applied, nil for transparent pixels.
func (p *PPU) fillSpriteSlot(i, addr, line int, double bool) {
	tile := p.primaryOAM[(addr+1)&0xFF]
	attributes := p.primaryOAM[(addr+2)&0xFF]

	s := &p.activeSprites[i]
	s.oamAddr = addr
	s.x = int(p.primaryOAM[(addr+3)&0xFF])
	s.behindBackground = bitHigh(attributes, 5)

	palette := p.decodePalette(attributes&3, true)
	flipV := bitHigh(attributes, 7)
	flipH := bitHigh(attributes, 6)

	var base uint16
	if !double {
		if flipV {
			line = 7 - line
		}
		base = uint16(p.spriteTableFlag)*0x1000 + uint16(tile)*16
	} else {
		// 8x16: bit 0 of the tile index selects the pattern table.
		if flipV {
			line = 15 - line
		}
		tileIx := uint16(tile & 0xFE)
		if line >= 8 {
			tileIx++
			line -= 8
		}
		base = uint16(tile&1)*0x1000 + tileIx*16
	}

	lo := p.vram.Read(base + uint16(line))
	hi := p.vram.Read(base + uint16(line) + 8)
	for x := uint(0); x < 8; x++ {
		c := ((hi>>x)&1)<<1 | (lo>>x)&1
		ix := 7 - x
		if flipH {
			ix = x
		}
		if c == 0 {
			s.row[ix] = nil
		} else {
			s.row[ix] = &palette[c]
		}
	}
}

// overlaySprites merges the sprite pixel for the current dot over the
// background pixel and performs sprite-zero collision detection. Slots are
// walked in reverse so the lowest OAM index wins.
func (p *PPU) overlaySprites(bkg *color.RGBA) *color.RGBA {
	if !p.showSprite || (p.pixel-1 < 8 && !p.showLeftSprite) {
		return bkg
	}
	x := p.pixel - 1
	var top *sprite
	var topColor *color.RGBA
	spriteZeroVisible := false
	for i := p.activeNum - 1; i >= 0; i-- {
		s := &p.activeSprites[i]
		if s.x <= x && x < s.x+8 {
			c := s.row[x-s.x]
			if c == nil {
				continue
			}
			top = s
			topColor = c
			if s.oamAddr == 0 {
				spriteZeroVisible = true
			}
		}
	}
	// "when an opaque pixel of sprite 0 overlaps an opaque pixel of the
	// background, this is a sprite zero hit"
	// Details: https://wiki.nesdev.com/w/index.php/PPU_OAM#Sprite_zero_hits
	if spriteZeroVisible && bkg != nil && x < 255 {
		p.spriteZeroHit = true
	}
	if top != nil && (!top.behindBackground || bkg == nil) {
		return topColor
	}
	return bkg
}

// renderPixel composes and emits the pixel for the current dot. A pixel
// that is still transparent after composition falls back to the universal
// background color at palette RAM entry 0.
func (p *PPU) renderPixel() {
	bkg := p.backgroundPixel()
	final := p.overlaySprites(bkg)
	if final == nil {
		final = &p.decodePalette(0, false)[0]
	}
	p.screen.WriteAt(p.pixel-1, p.line, *final)
}

// decodePalette resolves a palette id into four RGB colors from palette
// RAM, memoized until palette RAM is next written.
func (p *PPU) decodePalette(paletteID byte, isSprite bool) *[4]color.RGBA {
	s := 0
	if isSprite {
		s = 1
	}
	if cached := p.paletteCache[s][paletteID]; cached != nil {
		return cached
	}
	address := PaletteStart + uint16(16*s) + uint16(paletteID)*4
	palette := new([4]color.RGBA)
	for i := uint16(0); i < 4; i++ {
		palette[i] = p.rgbPalette[p.vram.Read(address+i)&0x3F]
	}
	p.paletteCache[s][paletteID] = palette
	return palette
}

func (p *PPU) invalidatePaletteCache() {
	p.paletteCache = [2][4]*[4]color.RGBA{}
}

// RunCycles advances the pipeline by n dots, driving all rendering side
// effects, and reports whether a frame boundary was crossed.
func (p *PPU) RunCycles(n int) bool {
	crossed := false
	for i := 0; i < n; i++ {
		if p.step() {
			crossed = true
		}
	}
	return crossed
}

// step runs one dot. In order: dispatch the phase actions for the current
// (line, pixel), update flags at the phase edges, then advance the counters.
// Reference: https://www.nesdev.org/wiki/File:Ntsc_timing.png
func (p *PPU) step() bool {
	frameEnded := false
	if p.line <= 239 && p.renderingEnabled() {
		// visible scanline
		switch {
		case 1 <= p.pixel && p.pixel <= 256:
			if p.pixel > 1 && (p.pixel-1)%8 == 0 {
				// every eighth dot: promote the prefetched tile and
				// fetch the one after it
				p.shiftBackgroundLatches()
				p.fillBackgroundLatches()
			}
			p.renderPixel()
			if p.pixel == 256 {
				p.incrementY()
			}
		case p.pixel == 257:
			p.copyX()
			// fetch data for sprites on the next scanline
			p.evaluateSprites(p.line + 1)
		case p.pixel == 321 || p.pixel == 329:
			// lead-in tiles for the next scanline
			p.shiftBackgroundLatches()
			p.fillBackgroundLatches()
		}
	}
	switch {
	case p.line == 0 && p.pixel == 65:
		// the OAM address sprite evaluation uses is fixed from here on
		p.oamAddrHeld = p.oamAddress
	case p.line == 241 && p.pixel == 1:
		p.inVblank = true
		if p.nmiOutput {
			p.triggerNMI()
		}
	case p.line == 261:
		// pre-render scanline for the next frame
		switch {
		case p.pixel == 1:
			p.inVblank = false
			p.spriteZeroHit = false
			p.spriteOverflow = false
		case p.pixel == 257 && p.renderingEnabled():
			p.copyX()
			p.evaluateSprites(0)
		case 280 <= p.pixel && p.pixel <= 304 && p.renderingEnabled():
			p.copyY()
		case (p.pixel == 321 || p.pixel == 329) && p.renderingEnabled():
			p.shiftBackgroundLatches()
			p.fillBackgroundLatches()
		case p.pixel == pixelsPerLine-1-int(p.framesSinceReset%2):
			// last dot of the frame; odd frames end one dot early
			frameEnded = true
		}
	}

	p.cyclesSinceReset++
	p.cyclesSinceFrame++
	p.pixel++
	if p.pixel >= pixelsPerLine {
		p.pixel = 0
		p.line++
	}
	if frameEnded {
		p.newFrame()
	}
	if p.pixel >= pixelsPerLine || p.line >= linesPerFrame {
		glog.Fatalf("PPU counters out of range: line=%d, pixel=%d", p.line, p.pixel)
	}
	return frameEnded
}

func (p *PPU) newFrame() {
	p.framesSinceReset++
	p.cyclesSinceFrame = 0
	p.pixel = 0
	p.line = 0
	glog.V(2).Infof("PPU frame %d starting", p.framesSinceReset)
}
