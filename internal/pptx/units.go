package pptx

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// EMU is the OOXML length unit. There are 914400 per inch.
type EMU int64

const (
	EMUPerInch  EMU = 914400
	EMUPerPoint EMU = 12700
	EMUPerCm    EMU = 360000
)

func Inches(v float64) EMU { return EMU(math.Round(v * float64(EMUPerInch))) }
func Points(v float64) EMU { return EMU(math.Round(v * float64(EMUPerPoint))) }
func Cm(v float64) EMU     { return EMU(math.Round(v * float64(EMUPerCm))) }

func (e EMU) Inches() float64 { return float64(e) / float64(EMUPerInch) }
func (e EMU) Points() float64 { return float64(e) / float64(EMUPerPoint) }
func (e EMU) Cm() float64     { return float64(e) / float64(EMUPerCm) }

// RGB is an sRGB color.
type RGB struct{ R, G, B uint8 }

func (c RGB) Hex() string    { return fmt.Sprintf("%02X%02X%02X", c.R, c.G, c.B) }
func (c RGB) String() string { return c.Hex() }

// ParseRGB parses "RRGGBB", with an optional leading '#'.
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return RGB{}, fmt.Errorf("pptx: invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, fmt.Errorf("pptx: invalid color %q", s)
	}
	return RGB{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, nil
}
