package photocal

import (
	"fmt"
	"image"
)

// ChipStats summarises one chip of a clipped image.
type ChipStats struct {
	Label  string
	Bounds image.Rectangle
	Median float64
	Sigma  float64
	Count  int
}

// ChipStatistics computes the median and robust sigma of every chip of a
// clipped image laid out by g. Chips are returned column by column, bottom
// row first, labelled C<column><row>.
func ChipStatistics(img *Image, g MosaicGeometry) []ChipStats {
	stats := make([]ChipStats, 0, g.ChipsX*g.ChipsY)
	for cx := 0; cx < g.ChipsX; cx++ {
		for cy := 0; cy < g.ChipsY; cy++ {
			r := image.Rect(cx*g.ChipWidth, cy*g.ChipHeight, (cx+1)*g.ChipWidth, (cy+1)*g.ChipHeight)
			values := img.finitePixels(r)
			median, sigma := MedianMAD(values)
			stats = append(stats, ChipStats{
				Label:  fmt.Sprintf("C%d%d", cx, cy),
				Bounds: r.Intersect(img.Bounds()),
				Median: median,
				Sigma:  sigma,
				Count:  len(values),
			})
		}
	}
	return stats
}

// ChipSpread is the difference between the highest and lowest chip median.
func ChipSpread(stats []ChipStats) float64 {
	if len(stats) == 0 {
		return 0
	}
	lo, hi := stats[0].Median, stats[0].Median
	for _, s := range stats[1:] {
		lo = min(lo, s.Median)
		hi = max(hi, s.Median)
	}
	return hi - lo
}
