package nes

import "github.com/golang/glog"

// Landmarks of the PPU address space, used by the PPU when forming fetch
// addresses.
const (
	NametableStart       uint16 = 0x2000
	NametableLength      uint16 = 0x0400
	AttributeTableOffset uint16 = 0x03C0
	PaletteStart         uint16 = 0x3F00
)

// VRAM is the PPU's view of its 16-bit address space.
//
// Address        Size    Description
// -------------------------------------
// $0000-$0FFF    $1000   Pattern table 0 (cartridge CHR)
// $1000-$1FFF    $1000   Pattern table 1 (cartridge CHR)
// $2000-$23FF    $0400   Nametable 0
// $2400-$27FF    $0400   Nametable 1
// $2800-$2BFF    $0400   Nametable 2
// $2C00-$2FFF    $0400   Nametable 3
// $3000-$3EFF    $0F00   Mirrors of $2000-$2EFF
// $3F00-$3F1F    $0020   Palette RAM indexes
// $3F20-$3FFF    $00E0   Mirrors of $3F00-$3F1F
// Reference: https://www.nesdev.org/wiki/PPU_memory_map
//
// Only the first 2 KB of tables is populated unless the cartridge is wired
// for four-screen mirroring.
type VRAM struct {
	cartridge *Cartridge
	tables    [4096]byte
	palette   [32]byte
}

// NewVRAM creates the video address space view for a cartridge.
func NewVRAM(cartridge *Cartridge) *VRAM {
	return &VRAM{cartridge: cartridge}
}

// mirrorAddress folds a nametable address into the physical table array.
func (m *VRAM) mirrorAddress(address uint16) uint16 {
	address = (address - NametableStart) % 0x1000
	table := address / NametableLength
	offset := address % NametableLength
	switch m.cartridge.Mirroring() {
	case MirrorHorizontal:
		// $2000/$2400 share one table, $2800/$2C00 the other.
		table = table / 2
	case MirrorVertical:
		// $2000/$2800 share one table, $2400/$2C00 the other.
		table = table % 2
	case MirrorFourScreen:
		// all four tables are distinct
	}
	return table*NametableLength + offset
}

// paletteReadAddress folds a palette address into the 32-byte palette RAM.
// $3F10/$3F14/$3F18/$3F1C mirror their background counterparts.
// $3F04/$3F08/$3F0C are writable but read back the backdrop entry.
func paletteReadAddress(address uint16) uint16 {
	mirrored := (address - PaletteStart) % 0x20
	switch mirrored {
	case 0x10, 0x14, 0x18, 0x1C:
		mirrored -= 0x10
	case 0x04, 0x08, 0x0C:
		mirrored = 0
	}
	return mirrored
}

func paletteWriteAddress(address uint16) uint16 {
	mirrored := (address - PaletteStart) % 0x20
	switch mirrored {
	case 0x10, 0x14, 0x18, 0x1C:
		mirrored -= 0x10
	}
	return mirrored
}

// Read reads a byte from the PPU address space.
func (m *VRAM) Read(address uint16) byte {
	address &= 0x3FFF
	switch {
	case address < NametableStart:
		data, err := m.cartridge.mapper.ReadCHR(address)
		if err != nil {
			glog.Fatalf("Pattern table read failed: %v", err)
		}
		return data
	case address < PaletteStart:
		return m.tables[m.mirrorAddress(address)]
	default:
		return m.palette[paletteReadAddress(address)]
	}
}

// Write writes a byte into the PPU address space. Writes into CHR ROM are
// dropped; everything else lands in nametable or palette RAM.
func (m *VRAM) Write(address uint16, data byte) {
	address &= 0x3FFF
	switch {
	case address < NametableStart:
		if err := m.cartridge.mapper.WriteCHR(address, data); err != nil {
			glog.Warningf("Dropping pattern table write: %v", err)
		}
	case address < PaletteStart:
		m.tables[m.mirrorAddress(address)] = data
	default:
		m.palette[paletteWriteAddress(address)] = data
	}
}
