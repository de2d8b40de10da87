package photocal

import "fmt"

// MosaicGeometry describes a multi-chip detector frame. Each chip occupies a
// cell of (ChipWidth+OverscanX) x (ChipHeight+OverscanY) pixels with the
// active area leading and the overscan trailing in both axes. The frame may
// omit the trailing overscan of the last row or column of chips.
type MosaicGeometry struct {
	ChipsX      int `koanf:"chips_x" yaml:"chips_x"`
	ChipsY      int `koanf:"chips_y" yaml:"chips_y"`
	ChipWidth   int `koanf:"chip_width" yaml:"chip_width"`
	ChipHeight  int `koanf:"chip_height" yaml:"chip_height"`
	OverscanX   int `koanf:"overscan_x" yaml:"overscan_x"`
	OverscanY   int `koanf:"overscan_y" yaml:"overscan_y"`
	FrameWidth  int `koanf:"frame_width" yaml:"frame_width"`
	FrameHeight int `koanf:"frame_height" yaml:"frame_height"`
}

// TOROSGeometry is the 8x2 chip mosaic of the TOROS camera.
func TOROSGeometry() MosaicGeometry {
	return MosaicGeometry{
		ChipsX:      8,
		ChipsY:      2,
		ChipWidth:   1320,
		ChipHeight:  5280,
		OverscanX:   180,
		OverscanY:   40,
		FrameWidth:  12000,
		FrameHeight: 10600,
	}
}

func (g MosaicGeometry) CellWidth() int     { return g.ChipWidth + g.OverscanX }
func (g MosaicGeometry) CellHeight() int    { return g.ChipHeight + g.OverscanY }
func (g MosaicGeometry) ClippedWidth() int  { return g.ChipsX * g.ChipWidth }
func (g MosaicGeometry) ClippedHeight() int { return g.ChipsY * g.ChipHeight }

func (g MosaicGeometry) String() string {
	return fmt.Sprintf("%dx%d chips of %dx%d (+%d/%d overscan), frame %dx%d",
		g.ChipsX, g.ChipsY, g.ChipWidth, g.ChipHeight, g.OverscanX, g.OverscanY, g.FrameWidth, g.FrameHeight)
}

// cellsAlong counts the cell origins 0, step, 2*step, ... below frame.
func cellsAlong(frame, step int) int {
	return (frame + step - 1) / step
}

// Validate checks that stepping cells across the frame yields exactly the
// configured number of chips and that every active area lies inside the frame.
func (g MosaicGeometry) Validate() error {
	const op = "mosaic geometry"
	if g.ChipsX <= 0 || g.ChipsY <= 0 || g.ChipWidth <= 0 || g.ChipHeight <= 0 {
		return &GeometryMismatchError{Op: op, Reason: fmt.Sprintf("chip counts and sizes must be positive: %v", g)}
	}
	if g.OverscanX < 0 || g.OverscanY < 0 {
		return &GeometryMismatchError{Op: op, Reason: fmt.Sprintf("overscan must not be negative: %v", g)}
	}
	if n := cellsAlong(g.FrameWidth, g.CellWidth()); n != g.ChipsX {
		return &GeometryMismatchError{Op: op, Reason: fmt.Sprintf("frame width %d holds %d chip columns, want %d", g.FrameWidth, n, g.ChipsX)}
	}
	if n := cellsAlong(g.FrameHeight, g.CellHeight()); n != g.ChipsY {
		return &GeometryMismatchError{Op: op, Reason: fmt.Sprintf("frame height %d holds %d chip rows, want %d", g.FrameHeight, n, g.ChipsY)}
	}
	if last := (g.ChipsX-1)*g.CellWidth() + g.ChipWidth; last > g.FrameWidth {
		return &GeometryMismatchError{Op: op, Reason: fmt.Sprintf("last chip column ends at %d, past frame width %d", last, g.FrameWidth)}
	}
	if last := (g.ChipsY-1)*g.CellHeight() + g.ChipHeight; last > g.FrameHeight {
		return &GeometryMismatchError{Op: op, Reason: fmt.Sprintf("last chip row ends at %d, past frame height %d", last, g.FrameHeight)}
	}
	return nil
}
