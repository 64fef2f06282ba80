package nes

import "testing"

func buildInes(prgBanks, chrBanks int, flags6 byte) []byte {
	data := make([]byte, InesHeaderSizeBytes+prgBanks*prgROMSizeUnit+chrBanks*chrROMSizeUnit)
	copy(data, []byte{'N', 'E', 'S', MSDOSEOF, byte(prgBanks), byte(chrBanks), flags6})
	return data
}

func TestNewCartridge(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		wantErr  bool
		prgBytes int
		chrBytes int
	}{
		{
			name:     "NROM with CHR ROM",
			data:     buildInes(2, 1, 0),
			prgBytes: 2 * prgROMSizeUnit,
			chrBytes: chrROMSizeUnit,
		},
		{
			name:     "NROM without CHR ROM",
			data:     buildInes(1, 0, 0),
			prgBytes: prgROMSizeUnit,
			chrBytes: 0,
		},
		{
			name:    "bad magic",
			data:    append([]byte{'N', 'O', 'P', 'E'}, make([]byte, 12)...),
			wantErr: true,
		},
		{
			name:    "too short",
			data:    []byte{'N', 'E', 'S'},
			wantErr: true,
		},
		{
			name:    "unsupported mapper",
			data:    buildInes(1, 0, 0x10),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCartridge(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatal("want an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewCartridge: %v", err)
			}
			if len(c.prgROM) != tt.prgBytes {
				t.Errorf("prgROM: got = %d bytes, want %d", len(c.prgROM), tt.prgBytes)
			}
			if len(c.chrROM) != tt.chrBytes {
				t.Errorf("chrROM: got = %d bytes, want %d", len(c.chrROM), tt.chrBytes)
			}
		})
	}
}

func TestCartridgeMirroring(t *testing.T) {
	tests := []struct {
		flags6 byte
		want   MirrorMode
	}{
		{0x00, MirrorHorizontal},
		{0x01, MirrorVertical},
		{0x08, MirrorFourScreen},
		{0x09, MirrorFourScreen}, // four-screen wins over the vertical bit
	}
	for _, tt := range tests {
		c, err := NewCartridge(buildInes(1, 0, tt.flags6))
		if err != nil {
			t.Fatalf("NewCartridge: %v", err)
		}
		if got := c.Mirroring(); got != tt.want {
			t.Errorf("flags6 = 0x%02x: got = %v, want %v", tt.flags6, got, tt.want)
		}
	}
}
