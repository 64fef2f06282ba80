package nes

import "fmt"

const (
	chrROMSizeUnit      int  = 0x2000 // 8 KB
	prgROMSizeUnit      int  = 0x4000 // 16 KB
	InesHeaderSizeBytes int  = 16     // The valid INES header has 16 bytes
	MSDOSEOF            byte = 0x1A
)

// MirrorMode selects how the two physical nametables map onto the four
// logical ones (or, for four-screen boards, doesn't).
type MirrorMode byte

const (
	MirrorHorizontal MirrorMode = iota
	MirrorVertical
	MirrorFourScreen
)

// https://www.nesdev.org/wiki/INES
type Cartridge struct {
	prgROM []byte
	chrROM []byte
	mapper Mapper
	flags6 byte // https://www.nesdev.org/wiki/INES#Flags_6
	flags7 byte // https://www.nesdev.org/wiki/INES#Flags_7
}

// isValid checks whether the buffer starts with a valid INES header.
func isValid(data []byte) bool {
	return len(data) >= InesHeaderSizeBytes &&
		data[0] == byte('N') &&
		data[1] == byte('E') &&
		data[2] == byte('S') &&
		data[3] == MSDOSEOF
}

// readPRGROM retrieves Program ROM from cartridge data.
func readPRGROM(data []byte) []byte {
	var l = InesHeaderSizeBytes
	var r = InesHeaderSizeBytes + int(data[4])*prgROMSizeUnit
	return data[l:r]
}

// readCHRROM retrieves Character ROM from cartridge data.
func readCHRROM(data []byte) []byte {
	var l = InesHeaderSizeBytes + int(data[4])*prgROMSizeUnit
	var r = l + int(data[5])*chrROMSizeUnit
	return data[l:r]
}

// NewCartridge creates a cartridge from raw INES data.
func NewCartridge(data []byte) (*Cartridge, error) {
	if !isValid(data) {
		return nil, fmt.Errorf("The buffer is not a valid NES format.")
	}
	c := &Cartridge{}
	c.prgROM = readPRGROM(data)
	c.chrROM = readCHRROM(data)
	c.flags6 = data[6]
	c.flags7 = data[7]
	number := (c.flags6 >> 4) | (c.flags7 & 0xF0)
	c.mapper = NewMapper(number, c.chrROM)
	if c.mapper == nil {
		return nil, fmt.Errorf("Unsupported mapper: %d", number)
	}
	return c, nil
}

// Mirroring reports the nametable mirroring the board is wired for.
func (c *Cartridge) Mirroring() MirrorMode {
	if bitHigh(c.flags6, 3) {
		return MirrorFourScreen
	}
	if bitHigh(c.flags6, 0) {
		return MirrorVertical
	}
	return MirrorHorizontal
}
