// Package color assigns deterministic, neighbor-aware colors to activity
// segments. The same app/window pair always hashes to the same hue, so
// segments recolor identically across renders without a palette registry;
// the neighbor check keeps adjacent segments at least 40 degrees apart on
// the hue circle.
package color

import "math"

const (
	// Saturation and lightness are fixed; only hue varies per segment.
	Saturation = 65
	Lightness  = 40

	// minHueDistance is the smallest acceptable circular hue distance
	// between adjacent differing segments.
	minHueDistance = 40
)

// HSL is a color in hue/saturation/lightness space.
type HSL struct {
	H int // degrees, [0, 360)
	S int // percent
	L int // percent
}

// keyHash is the 32-bit polynomial rolling hash over the composite
// "app::title" key: hash = char + (hash<<5) - hash per character.
func keyHash(key string) int32 {
	var h int32
	for _, c := range key {
		h = c + (h << 5) - h
	}
	return h
}

func mod(v int32, m int32) int32 {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}

// HueFor returns the base hue for an app/window pair.
func HueFor(appName, windowTitle string) int {
	return int(mod(keyHash(appName+"::"+windowTitle), 360))
}

// ColorFor returns the segment color, re-hued away from the previous
// segment when the two base hues would be indistinguishable. hasPrev is
// false for the first segment on screen; a previous segment whose app and
// title are both empty is still a real neighbor.
func ColorFor(appName, windowTitle, prevAppName, prevWindowTitle string, hasPrev bool) HSL {
	h := keyHash(appName + "::" + windowTitle)
	hue := int(mod(h, 360))

	if hasPrev && (prevAppName != appName || prevWindowTitle != windowTitle) {
		prevHue := HueFor(prevAppName, prevWindowTitle)
		d := hue - prevHue
		if d < 0 {
			d = -d
		}
		if d < minHueDistance || d > 360-minHueDistance {
			hue = (prevHue + 60 + int(mod(h, 120))) % 360
		}
	}

	return HSL{H: hue, S: Saturation, L: Lightness}
}

// CircularDistance returns the distance between two hues on the 360° circle.
func CircularDistance(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 180 {
		d = 360 - d
	}
	return d
}

// RGB converts the color to 8-bit RGB components for truecolor terminals.
func (c HSL) RGB() (uint8, uint8, uint8) {
	h := float64(c.H) / 360
	s := float64(c.S) / 100
	l := float64(c.L) / 100

	if s == 0 {
		v := uint8(math.Round(l * 255))
		return v, v, v
	}

	var q float64
	if l < 0.5 {
		q = l * (1 + s)
	} else {
		q = l + s - l*s
	}
	p := 2*l - q

	conv := func(t float64) uint8 {
		if t < 0 {
			t++
		}
		if t > 1 {
			t--
		}
		var v float64
		switch {
		case t < 1.0/6:
			v = p + (q-p)*6*t
		case t < 1.0/2:
			v = q
		case t < 2.0/3:
			v = p + (q-p)*(2.0/3-t)*6
		default:
			v = p
		}
		return uint8(math.Round(v * 255))
	}

	return conv(h + 1.0/3), conv(h), conv(h - 1.0/3)
}
