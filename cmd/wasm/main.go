//go:build js && wasm

package main

import (
	"bytes"
	"context"
	"syscall/js"

	"photocal/pkg/photocal"
)

var (
	lastScience  *photocal.Image
	lastOptions  photocal.QuicklookOptions
	lastGeometry photocal.MosaicGeometry
)

func main() {
	js.Global().Set("calibrateFITS", js.FuncOf(calibrateFITS))
	js.Global().Set("renderQuicklook", js.FuncOf(renderQuicklook))
	select {} // block forever
}

func copyBytes(v js.Value) []byte {
	b := make([]byte, v.Get("length").Int())
	js.CopyBytesToGo(b, v)
	return b
}

// calibrateFITS(rawBytes, biasBytes, flatBytes, options) returns the
// calibrated FITS file and a summary.
func calibrateFITS(this js.Value, args []js.Value) interface{} {
	if len(args) < 3 {
		return errorResult("usage: calibrateFITS(raw, bias, flat, options)")
	}

	frames := make([]photocal.Frame, 3)
	for i, name := range []string{"raw", "bias", "flat"} {
		f, err := photocal.ReadFitsFromBytes(copyBytes(args[i]))
		if err != nil {
			return errorResult(name + " FITS parse error: " + err.Error())
		}
		frames[i] = f
	}

	geometry := photocal.TOROSGeometry()
	params := photocal.DefaultBackgroundParams()
	var mask *photocal.CircularMask
	if len(args) >= 4 && args[3].Type() == js.TypeObject {
		opts := args[3]
		if g := opts.Get("geometry"); g.Type() == js.TypeObject {
			geometry = photocal.MosaicGeometry{
				ChipsX:      g.Get("chipsX").Int(),
				ChipsY:      g.Get("chipsY").Int(),
				ChipWidth:   g.Get("chipWidth").Int(),
				ChipHeight:  g.Get("chipHeight").Int(),
				OverscanX:   g.Get("overscanX").Int(),
				OverscanY:   g.Get("overscanY").Int(),
				FrameWidth:  g.Get("frameWidth").Int(),
				FrameHeight: g.Get("frameHeight").Int(),
			}
		}
		if m := opts.Get("mask"); m.Type() == js.TypeObject {
			mask = &photocal.CircularMask{CX: m.Get("cx").Float(), CY: m.Get("cy").Float(), R: m.Get("r").Float()}
		}
		if s := opts.Get("sigma"); s.Type() == js.TypeNumber {
			params.Sigma = s.Float()
		}
	}

	clipped, flatFielded, err := photocal.Reduce(frames[0], frames[1], frames[2], geometry)
	if err != nil {
		return errorResult("Calibration error: " + err.Error())
	}
	science, bkg, err := photocal.RemoveBackground(context.Background(), clipped, flatFielded.Header, mask, params)
	if err != nil {
		return errorResult("Background error: " + err.Error())
	}

	var buf bytes.Buffer
	if err := photocal.WriteFitsTo(&buf, science.Image, science.Header); err != nil {
		return errorResult("FITS write error: " + err.Error())
	}

	lastScience = science.Image
	lastGeometry = geometry
	lastOptions = photocal.QuicklookOptions{Mask: mask, Geometry: &lastGeometry, Title: science.Header.Calibration()}

	fitsArray := js.Global().Get("Uint8Array").New(buf.Len())
	js.CopyBytesToJS(fitsArray, buf.Bytes())

	chips := photocal.ChipStatistics(science.Image, geometry)
	jsChips := make([]interface{}, len(chips))
	for i, c := range chips {
		jsChips[i] = map[string]interface{}{
			"label":  c.Label,
			"median": c.Median,
			"sigma":  c.Sigma,
			"count":  c.Count,
		}
	}

	return js.ValueOf(map[string]interface{}{
		"width":         science.Image.Width,
		"height":        science.Image.Height,
		"cal":           science.Header.Calibration(),
		"background":    bkg.Median,
		"backgroundRMS": bkg.RMSMedian,
		"excludedBoxes": bkg.ExcludedBoxes,
		"chips":         jsChips,
		"fits":          fitsArray,
	})
}

func renderQuicklook(this js.Value, args []js.Value) interface{} {
	if lastScience == nil {
		return js.Null()
	}

	jpegBytes, err := photocal.RenderQuicklookBytes(lastScience, lastOptions)
	if err != nil {
		return js.Null()
	}

	uint8Array := js.Global().Get("Uint8Array").New(len(jpegBytes))
	js.CopyBytesToJS(uint8Array, jpegBytes)
	return uint8Array
}

func errorResult(msg string) interface{} {
	return js.ValueOf(map[string]interface{}{
		"error": msg,
	})
}
