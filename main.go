package main

import (
	"flag"
	"os"

	"github.com/golang/glog"

	"github.com/JoostHazelzet/nes/nes"
	"github.com/JoostHazelzet/nes/ui"
)

var (
	romPath = flag.String("rom", "", "path to an iNES ROM; its CHR data fills the pattern tables (blank CHR RAM cartridge if empty)")
	scale   = flag.Int("scale", 2, "window scale factor")
)

type nmiLogger struct {
	count uint64
}

func (l *nmiLogger) RaiseNMI() {
	l.count++
	glog.V(1).Infof("NMI %d", l.count)
}

func loadCartridge() (*nes.Cartridge, error) {
	if *romPath == "" {
		// a minimal NROM image with CHR RAM, so the demo can draw its
		// own tiles through the data port
		data := make([]byte, nes.InesHeaderSizeBytes+0x4000)
		copy(data, []byte{'N', 'E', 'S', nes.MSDOSEOF, 1, 0})
		return nes.NewCartridge(data)
	}
	data, err := os.ReadFile(*romPath)
	if err != nil {
		return nil, err
	}
	return nes.NewCartridge(data)
}

// writeVRAM moves the PPU's address cursor and streams bytes through the
// data port, the same way a game's CPU would during vblank.
func writeVRAM(p *nes.PPU, address uint16, data []byte) {
	p.WriteRegister(nes.PPUADDR, byte(address>>8))
	p.WriteRegister(nes.PPUADDR, byte(address))
	for _, b := range data {
		p.WriteRegister(nes.PPUDATA, b)
	}
}

// paint sets up a visible scene using only the register port: a palette, a
// couple of striped tiles in CHR RAM, a full nametable and eight sprites.
func paint(console *nes.Console) {
	p := console.PPU

	// palette RAM: backdrop plus one background and one sprite palette
	writeVRAM(p, 0x3F00, []byte{
		0x21, 0x16, 0x27, 0x2A,
		0x21, 0x01, 0x11, 0x31,
		0x21, 0x06, 0x26, 0x36,
		0x21, 0x09, 0x29, 0x39,
	})
	writeVRAM(p, 0x3F10, []byte{
		0x21, 0x14, 0x24, 0x34,
	})

	// tile 1: horizontal stripes on the two bit planes; tile 2: two-row
	// bands whose left and right halves differ (both dropped with a
	// warning if the cartridge brought real CHR ROM)
	writeVRAM(p, 0x0010, []byte{
		0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00,
		0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF, 0x00, 0xFF,
	})
	writeVRAM(p, 0x0020, []byte{
		0xF0, 0xF0, 0xF0, 0xF0, 0x0F, 0x0F, 0x0F, 0x0F,
		0xFF, 0xFF, 0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00,
	})

	// nametable 0: checker the two tiles; attributes select palettes
	tiles := make([]byte, 960)
	for i := range tiles {
		tiles[i] = byte(1 + (i/4+i/128)%2)
	}
	writeVRAM(p, 0x2000, tiles)
	attributes := make([]byte, 64)
	for i := range attributes {
		attributes[i] = 0b00_01_00_11
	}
	writeVRAM(p, 0x23C0, attributes)

	// a diagonal of sprites over the checker
	var oam [256]byte
	for i := range oam {
		oam[i] = 0xF0 // park unused sprites below the visible lines
	}
	for i := 0; i < 8; i++ {
		oam[i*4+0] = byte(40 + i*20) // y
		oam[i*4+1] = 1               // tile
		oam[i*4+2] = byte(i&1) << 5  // odd ones behind the background
		oam[i*4+3] = byte(40 + i*24) // x
	}
	p.WriteOAMDMA(oam)

	p.WriteRegister(nes.PPUCTRL, 0x80)
	// the address writes above moved the scroll registers; put them back
	p.WriteRegister(nes.PPUSCROLL, 0)
	p.WriteRegister(nes.PPUSCROLL, 0)
	p.WriteRegister(nes.PPUMASK, 0x1E)
}

func main() {
	flag.Parse()
	cartridge, err := loadCartridge()
	if err != nil {
		glog.Exitf("Failed to load a cartridge: %v", err)
	}
	console := nes.NewConsole(cartridge, &nmiLogger{})
	// two frames gets past the post-reset window during which PPUCTRL
	// writes are dropped
	console.RunCycles(2 * 341 * 262)
	paint(console)
	s := *scale
	ui.Start(console, nes.ScreenWidth*s, nes.ScreenHeight*s)
}
