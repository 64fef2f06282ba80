package nes

import (
	"image"
	"image/color"
)

// NES PPU generates 256x240 pixels.
const (
	ScreenWidth  = 256
	ScreenHeight = 240
)

// Screen is the pixel sink the PPU draws into. WriteAt is called once per
// visible dot while rendering is enabled, synchronously from RunCycles.
// SetTransparentColor tells the sink which RGB value the PPU reserves for
// transparency; the sink will never receive it from WriteAt.
type Screen interface {
	WriteAt(x, y int, c color.RGBA)
	SetTransparentColor(c color.RGBA)
}

// Display is a Screen that buffers pixels into an RGBA image for display.
type Display struct {
	picture     *image.RGBA
	transparent color.RGBA
}

func NewDisplay() *Display {
	return &Display{
		picture: image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight)),
	}
}

func (d *Display) WriteAt(x, y int, c color.RGBA) {
	d.picture.SetRGBA(x, y, c)
}

func (d *Display) SetTransparentColor(c color.RGBA) {
	d.transparent = c
}

// Picture returns the buffered frame. The PPU mutates it in place, so
// callers should read it between frames.
func (d *Display) Picture() *image.RGBA {
	return d.picture
}
