package main

import (
	"io"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/termenv"
)

// style colors terminal output. Writers that are not a terminal get plain
// text.
type style struct {
	out *termenv.Output
}

func newStyle(w io.Writer) style {
	return style{out: termenv.NewOutput(w)}
}

// swatch renders a block in a system's display color.
func (s style) swatch(rgb [3]float64) string {
	hex := colorful.Color{R: rgb[0], G: rgb[1], B: rgb[2]}.Clamped().Hex()
	return s.out.String("██").Foreground(s.out.Color(hex)).String()
}

func (s style) bold(text string) string  { return s.out.String(text).Bold().String() }
func (s style) faint(text string) string { return s.out.String(text).Faint().String() }
func (s style) warn(text string) string {
	return s.out.String(text).Foreground(s.out.Color("3")).String()
}

// state colors a compute state name. Padding around the name is kept.
func (s style) state(name string) string {
	color := ""
	switch strings.TrimSpace(name) {
	case "READY":
		color = "2"
	case "DIRTY", "COMPUTING":
		color = "3"
	case "FAILED":
		color = "1"
	default:
		return s.faint(name)
	}
	return s.out.String(name).Foreground(s.out.Color(color)).Bold().String()
}
