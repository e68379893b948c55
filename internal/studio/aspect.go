package studio

import "math"

type AspectRatio string

const (
	Ratio1x1  AspectRatio = "1:1"
	Ratio3x4  AspectRatio = "3:4"
	Ratio4x3  AspectRatio = "4:3"
	Ratio9x16 AspectRatio = "9:16"
	Ratio16x9 AspectRatio = "16:9"

	// RatioSource is resolved against the source image before any request
	// leaves the process; the service never sees it.
	RatioSource AspectRatio = "source"
)

var supportedRatios = []struct {
	ratio AspectRatio
	value float64
}{
	{Ratio1x1, 1.0},
	{Ratio3x4, 3.0 / 4.0},
	{Ratio4x3, 4.0 / 3.0},
	{Ratio9x16, 9.0 / 16.0},
	{Ratio16x9, 16.0 / 9.0},
}

// ResolveClosest maps pixel dimensions onto the supported ratio with the
// smallest absolute difference. On an exact tie the first entry of the
// fixed set wins. Non-positive dimensions resolve to 1:1.
func ResolveClosest(width, height int) AspectRatio {
	if width <= 0 || height <= 0 {
		return Ratio1x1
	}

	r := float64(width) / float64(height)
	best := supportedRatios[0].ratio
	bestDiff := math.Abs(r - supportedRatios[0].value)
	for _, cand := range supportedRatios[1:] {
		if diff := math.Abs(r - cand.value); diff < bestDiff {
			best = cand.ratio
			bestDiff = diff
		}
	}
	return best
}

// AspectRatios lists the choices offered to users, RatioSource last.
func AspectRatios() []AspectRatio {
	return []AspectRatio{Ratio1x1, Ratio3x4, Ratio4x3, Ratio9x16, Ratio16x9, RatioSource}
}

func (r AspectRatio) Valid() bool {
	if r == RatioSource {
		return true
	}
	for _, entry := range supportedRatios {
		if entry.ratio == r {
			return true
		}
	}
	return false
}

func resolveAspect(requested AspectRatio, source *Asset) AspectRatio {
	switch requested {
	case Ratio1x1, Ratio3x4, Ratio4x3, Ratio9x16, Ratio16x9:
		return requested
	}
	if source != nil && source.HasSize() {
		return ResolveClosest(source.Width, source.Height)
	}
	return Ratio1x1
}
