package nes

import "fmt"

// Mapper0: https://www.nesdev.org/wiki/NROM

type mapper0 struct {
	chr      []byte
	writable bool
}

// NewMapper0 creates an NROM mapper. Boards that declare no CHR ROM carry
// 8 KB of CHR RAM instead, which the PPU may write through the data port.
func NewMapper0(chrROM []byte) *mapper0 {
	if len(chrROM) == 0 {
		return &mapper0{chr: make([]byte, chrROMSizeUnit), writable: true}
	}
	return &mapper0{chr: chrROM}
}

func (m *mapper0) ReadCHR(address uint16) (byte, error) {
	return m.chr[int(address)%len(m.chr)], nil
}

func (m *mapper0) WriteCHR(address uint16, data byte) error {
	if !m.writable {
		return fmt.Errorf("Writing data to CHR ROM not allowed: address=0x%04x, data=0x%02x", address, data)
	}
	m.chr[int(address)%len(m.chr)] = data
	return nil
}
