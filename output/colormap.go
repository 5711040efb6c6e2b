package output

import "image/color"

// RdYlGn anchor stops, sampled from the matplotlib colormap of the same
// name: strong negative change reads red, no change pale yellow, strong
// positive change green.
var rdYlGnStops = []color.RGBA{
	{165, 0, 38, 255},
	{215, 48, 39, 255},
	{244, 109, 67, 255},
	{253, 174, 97, 255},
	{254, 224, 139, 255},
	{255, 255, 191, 255},
	{217, 239, 139, 255},
	{166, 217, 106, 255},
	{102, 189, 99, 255},
	{26, 152, 80, 255},
	{0, 104, 55, 255},
}

// RdYlGn maps a normalized value in [0,1] through the diverging
// red-yellow-green gradient. Values outside [0,1] are clamped.
func RdYlGn(norm float64) color.RGBA {
	if norm <= 0 {
		return rdYlGnStops[0]
	}
	if norm >= 1 {
		return rdYlGnStops[len(rdYlGnStops)-1]
	}
	pos := norm * float64(len(rdYlGnStops)-1)
	lo := int(pos)
	ratio := pos - float64(lo)
	a, b := rdYlGnStops[lo], rdYlGnStops[lo+1]
	return color.RGBA{
		R: lerp(a.R, b.R, ratio),
		G: lerp(a.G, b.G, ratio),
		B: lerp(a.B, b.B, ratio),
		A: 255,
	}
}

func lerp(a, b uint8, ratio float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*ratio)
}
