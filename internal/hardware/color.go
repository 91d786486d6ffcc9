package hardware

// RainbowPalette is the ring's warm-to-cool sweep, one color per pixel on a
// ten pixel ring.
var RainbowPalette = []RGB{
	{0xFF, 0x00, 0x00}, // red
	{0xFF, 0x45, 0x00}, // orange red
	{0xFF, 0xA5, 0x00}, // orange
	{0xFF, 0xD7, 0x00}, // gold
	{0xFF, 0xFF, 0x00}, // yellow
	{0xAD, 0xFF, 0x2F}, // green yellow
	{0x00, 0x80, 0x00}, // green
	{0x00, 0xFF, 0xFF}, // cyan
	{0x1E, 0x90, 0xFF}, // dodger blue
	{0x41, 0x69, 0xE1}, // royal blue
}

// ColorMode selects which wheel function the routines render with.
type ColorMode int

const (
	ModeRainbow ColorMode = iota + 1
	ModePink
	ModeBlue
)

// ModeDescription names a color mode for logs and feedback.
func ModeDescription(m ColorMode) string {
	switch m {
	case ModeRainbow:
		return "Rainbow Wheel"
	case ModePink:
		return "Pink Nebula"
	case ModeBlue:
		return "Deep Space Blue"
	default:
		return "Unknown Mode"
	}
}

// Wheel maps a position 0–255 to a color in the given mode. Positions under
// 40 are dark in every mode, which gives chase effects their gap.
func Wheel(mode ColorMode, pos int) RGB {
	pos &= 0xFF
	switch mode {
	case ModePink:
		return pinkWheel(pos)
	case ModeBlue:
		return blueWheel(pos)
	default:
		return rainbowWheel(pos)
	}
}

func rainbowWheel(pos int) RGB {
	switch {
	case pos < 40:
		return RGB{}
	case pos < 85:
		return RGB{clamp8(pos * 3), clamp8(255 - pos*3), 0}
	case pos < 170:
		pos -= 85
		return RGB{clamp8(255 - pos*3), 0, clamp8(pos * 3)}
	default:
		pos -= 170
		return RGB{0, clamp8(pos * 3), clamp8(255 - pos*3)}
	}
}

func pinkWheel(pos int) RGB {
	switch {
	case pos < 40:
		return RGB{}
	case pos < 85:
		return RGB{199, 21, 133}
	case pos < 170:
		return RGB{255, 105, 180}
	default:
		return RGB{255, 20, 147}
	}
}

func blueWheel(pos int) RGB {
	switch {
	case pos < 40:
		return RGB{}
	case pos < 85:
		return RGB{0, 191, 255}
	case pos < 170:
		return RGB{0, 0, 255}
	default:
		return RGB{25, 25, 112}
	}
}

func clamp8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
