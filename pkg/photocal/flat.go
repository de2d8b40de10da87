package photocal

import "fmt"

// FlatField divides the clipped frame by the flat. The flat must already be
// at the clipped resolution. Zero flat pixels yield IEEE-754 results: +/-Inf,
// or NaN where the numerator is also zero.
func FlatField(clipped, flat Frame) (Frame, error) {
	if !clipped.Image.SameShape(flat.Image) {
		return Frame{}, &GeometryMismatchError{
			Op:     "flat field",
			Reason: fmt.Sprintf("flat is %v, clipped image is %v", flat.Image, clipped.Image),
		}
	}

	out := NewImage(clipped.Image.Width, clipped.Image.Height)
	for i, v := range clipped.Image.Pix {
		out.Pix[i] = v / flat.Image.Pix[i]
	}

	hdr := clipped.Header.Clone()
	hdr.Set("CAL", calFlat, "")
	return Frame{Image: out, Header: hdr}, nil
}
