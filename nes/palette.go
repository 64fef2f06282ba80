package nes

import "image/color"

// The 2C02 generates 64 colors; this maps them to RGB.
// Reference: https://bisqwit.iki.fi/utils/nespalette.php
var colors = [64]color.RGBA{
	{82, 82, 82, 255}, {1, 26, 81, 255}, {15, 15, 101, 255}, {35, 6, 99, 255},
	{54, 3, 75, 255}, {64, 4, 38, 255}, {63, 9, 4, 255}, {50, 19, 0, 255},
	{31, 32, 0, 255}, {11, 42, 0, 255}, {0, 47, 0, 255}, {0, 46, 10, 255},
	{0, 38, 45, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{160, 160, 160, 255}, {30, 74, 157, 255}, {56, 55, 188, 255}, {88, 40, 184, 255},
	{117, 33, 148, 255}, {132, 35, 92, 255}, {130, 46, 36, 255}, {111, 63, 0, 255},
	{81, 82, 0, 255}, {49, 99, 0, 255}, {26, 107, 5, 255}, {14, 105, 46, 255},
	{16, 92, 104, 255}, {0, 0, 0, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{254, 255, 255, 255}, {105, 158, 252, 255}, {137, 135, 255, 255}, {174, 118, 255, 255},
	{206, 109, 241, 255}, {224, 112, 178, 255}, {222, 124, 112, 255}, {200, 145, 62, 255},
	{166, 167, 37, 255}, {129, 186, 40, 255}, {99, 196, 70, 255}, {84, 193, 125, 255},
	{86, 179, 192, 255}, {60, 60, 60, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
	{254, 255, 255, 255}, {190, 214, 253, 255}, {204, 204, 255, 255}, {221, 196, 255, 255},
	{234, 192, 249, 255}, {242, 193, 223, 255}, {241, 199, 194, 255}, {232, 208, 170, 255},
	{217, 218, 157, 255}, {201, 226, 158, 255}, {188, 230, 174, 255}, {180, 229, 199, 255},
	{181, 223, 228, 255}, {169, 169, 169, 255}, {0, 0, 0, 255}, {0, 0, 0, 255},
}

// nonPaletteColor walks the gray ramp looking for a color that does not
// appear in the palette, so a screen can tell transparent pixels apart from
// rendered ones. A 64-entry palette cannot cover every gray, but if a
// custom palette ever did, the fixed fallback keeps the answer deterministic.
func nonPaletteColor(palette *[64]color.RGBA) color.RGBA {
	for v := 1; v < 256; v++ {
		c := color.RGBA{byte(v), byte(v), byte(v), 255}
		found := false
		for _, p := range palette {
			if p == c {
				found = true
				break
			}
		}
		if !found {
			return c
		}
	}
	return color.RGBA{1, 2, 3, 255}
}
