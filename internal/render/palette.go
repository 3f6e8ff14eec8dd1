package render

import (
	"github.com/lucasb-eyer/go-colorful"
	"github.com/zeebo/xxh3"
)

// linkPalette is shared by every view that colors by link id.
var linkPalette = []colorful.Color{
	MustHex("#3b82f6"),
	MustHex("#10b981"),
	MustHex("#f59e0b"),
	MustHex("#8b5cf6"),
	MustHex("#ec4899"),
	MustHex("#06b6d4"),
	MustHex("#84cc16"),
	MustHex("#f97316"),
}

// Named colors used across views.
var (
	Black = colorful.Color{}
	White = colorful.Color{R: 1, G: 1, B: 1}
	Gray  = MustHex("#64748b")
	Red   = MustHex("#ef4444")
	Amber = MustHex("#eab308")
	Blue  = MustHex("#3b82f6")
)

// MustHex parses a "#rrggbb" color and panics on malformed input. It is
// meant for package-level color literals.
func MustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// PaletteSize is the number of distinct link colors.
func PaletteSize() int { return len(linkPalette) }

// PaletteIndex hashes id into the palette.
func PaletteIndex(id string) int {
	return int(xxh3.HashString(id) % uint64(len(linkPalette)))
}

// PaletteColor returns the stable color for a link id. Any two callers
// computing it for the same id get the same color.
func PaletteColor(id string) colorful.Color {
	return linkPalette[PaletteIndex(id)]
}
