package photocal

import "fmt"

// ClipOverscan packs the active area of every chip into a contiguous image of
// ClippedWidth x ClippedHeight, dropping the overscan columns and rows. The
// input must have exactly the frame dimensions of g.
func ClipOverscan(f Frame, g MosaicGeometry) (Frame, error) {
	if err := g.Validate(); err != nil {
		return Frame{}, err
	}
	src := f.Image
	if src.Width != g.FrameWidth || src.Height != g.FrameHeight {
		return Frame{}, &GeometryMismatchError{
			Op:     "overscan clip",
			Reason: fmt.Sprintf("frame is %v, geometry expects %dx%d", src, g.FrameWidth, g.FrameHeight),
		}
	}

	clipped := NewImage(g.ClippedWidth(), g.ClippedHeight())
	for cx := 0; cx < g.ChipsX; cx++ {
		for cy := 0; cy < g.ChipsY; cy++ {
			clipped.CopyRegion(src,
				cx*g.CellWidth(), cy*g.CellHeight(),
				cx*g.ChipWidth, cy*g.ChipHeight,
				g.ChipWidth, g.ChipHeight)
		}
	}

	hdr := f.Header.Clone()
	hdr.Set("OVERSCAN", "removed", "")
	hdr.Set("X_CLIP", g.OverscanX, "overscan columns removed per chip")
	hdr.Set("Y_CLIP", g.OverscanY, "overscan rows removed per chip")
	return Frame{Image: clipped, Header: hdr}, nil
}
