package photocal

const (
	calBias       = "bias_subtracted"
	calFlat       = "bias_subtracted, flat_fielded"
	calBackground = "bias_subtracted, flat_fielded, background_subtracted"
)

// SubtractBias returns raw - bias pixel by pixel. Negative results are kept.
func SubtractBias(raw, bias Frame) (Frame, error) {
	if !raw.Image.SameShape(bias.Image) {
		return Frame{}, &ShapeMismatchError{
			Op:    "bias subtraction",
			Width: bias.Image.Width, Height: bias.Image.Height,
			WantW: raw.Image.Width, WantH: raw.Image.Height,
		}
	}

	out := NewImage(raw.Image.Width, raw.Image.Height)
	for i, v := range raw.Image.Pix {
		out.Pix[i] = v - bias.Image.Pix[i]
	}

	hdr := raw.Header.Clone()
	hdr.Set("CAL", calBias, "")
	return Frame{Image: out, Header: hdr}, nil
}
