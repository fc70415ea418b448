package avatar

import (
	"bytes"
	"errors"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"strings"
	"unicode"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultSize = 128
	MaxSize     = 512

	// The glyphs are drawn on a small canvas and scaled up.
	baseSize = 32
)

var ErrInvalidInitials = errors.New("initials must be one or two letters or digits")

var palette = []color.RGBA{
	{R: 0x25, G: 0x63, B: 0xeb, A: 0xff},
	{R: 0x7c, G: 0x3a, B: 0xed, A: 0xff},
	{R: 0xdb, G: 0x27, B: 0x77, A: 0xff},
	{R: 0xea, G: 0x58, B: 0x0c, A: 0xff},
	{R: 0x16, G: 0xa3, B: 0x4a, A: 0xff},
	{R: 0x08, G: 0x91, B: 0xb2, A: 0xff},
	{R: 0x4b, G: 0x55, B: 0x63, A: 0xff},
}

// Normalize upper-cases initials and checks they are one or two letters or
// digits. "_" stands for "no initials" and renders a blank avatar.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "_" {
		return "", nil
	}

	runes := []rune(strings.ToUpper(raw))
	if len(runes) == 0 || len(runes) > 2 {
		return "", ErrInvalidInitials
	}
	for _, r := range runes {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return "", ErrInvalidInitials
		}
	}

	return string(runes), nil
}

// Render draws initials centered on a colour picked from the initials, as a
// size x size PNG.
func Render(initials string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	bg := background(initials)
	small := image.NewRGBA(image.Rect(0, 0, baseSize, baseSize))
	draw.Draw(small, small.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if initials != "" {
		face := basicfont.Face7x13
		drawer := &font.Drawer{Dst: small, Src: image.NewUniform(color.White), Face: face}

		width := drawer.MeasureString(initials)
		metrics := face.Metrics()
		height := metrics.Ascent + metrics.Descent

		drawer.Dot = fixed.Point26_6{
			X: (fixed.I(baseSize) - width) / 2,
			Y: (fixed.I(baseSize)-height)/2 + metrics.Ascent,
		}
		drawer.DrawString(initials)
	}

	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(out, out.Bounds(), small, small.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func background(initials string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(initials))
	return palette[h.Sum32()%uint32(len(palette))]
}
