package photocal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
)

// Options configures a calibration run.
type Options struct {
	RawFile     string
	BiasFile    string
	FlatFile    string
	ScienceFile string

	WriteBkg        bool
	BkgFile         string
	WritePreBackSub bool
	PreBackSubFile  string

	UseMask bool
	CX      float64
	CY      float64
	R       float64

	// QuicklookFile, when set, receives a JPEG preview of the science image.
	QuicklookFile string
	// BkgQuicklookFile, when set, receives a false-colour preview of the
	// background surface.
	BkgQuicklookFile string

	Geometry   MosaicGeometry
	Background BackgroundParams

	// Logger receives diagnostics. nil means log.Default().
	Logger *log.Logger
}

// NewOptions returns options for the TOROS mosaic with default background
// parameters.
func NewOptions(raw, bias, flat, science string) Options {
	return Options{
		RawFile:     raw,
		BiasFile:    bias,
		FlatFile:    flat,
		ScienceFile: science,
		Geometry:    TOROSGeometry(),
		Background:  DefaultBackgroundParams(),
	}
}

func (o Options) Validate() error {
	if o.RawFile == "" || o.BiasFile == "" || o.FlatFile == "" || o.ScienceFile == "" {
		return fmt.Errorf("%w: raw, bias, flat and science paths are required", ErrInvalidOptions)
	}
	if o.WriteBkg && o.BkgFile == "" {
		return fmt.Errorf("%w: background output requested without a path", ErrInvalidOptions)
	}
	if o.WritePreBackSub && o.PreBackSubFile == "" {
		return fmt.Errorf("%w: pre background-subtracted output requested without a path", ErrInvalidOptions)
	}
	if o.UseMask && o.R <= 0 {
		return fmt.Errorf("%w: mask radius must be positive, got %g", ErrInvalidOptions, o.R)
	}
	if err := o.Background.Validate(); err != nil {
		return err
	}
	return o.Geometry.Validate()
}

// Mask returns the circular mask when masking is enabled.
func (o Options) Mask() *CircularMask {
	if !o.UseMask {
		return nil
	}
	return &CircularMask{CX: o.CX, CY: o.CY, R: o.R}
}

func (o Options) logger() *log.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return log.Default()
}

// Result holds the products of a calibration run.
type Result struct {
	Science    Frame
	PreBackSub Frame
	Background *Background
}

// LoadInputs reads the raw, bias and flat frames. All three paths are checked
// before anything is read; every absent path is reported in a
// *MissingInputError.
func LoadInputs(rawFile, biasFile, flatFile string) (raw, bias, flat Frame, err error) {
	var missing []string
	for _, p := range []string{rawFile, biasFile, flatFile} {
		if _, statErr := os.Stat(p); errors.Is(statErr, os.ErrNotExist) {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return Frame{}, Frame{}, Frame{}, &MissingInputError{Paths: missing}
	}

	if raw, err = ReadFits(rawFile); err != nil {
		return Frame{}, Frame{}, Frame{}, fmt.Errorf("loading raw: %w", err)
	}
	if bias, err = ReadFits(biasFile); err != nil {
		return Frame{}, Frame{}, Frame{}, fmt.Errorf("loading bias: %w", err)
	}
	if flat, err = ReadFits(flatFile); err != nil {
		return Frame{}, Frame{}, Frame{}, fmt.Errorf("loading flat: %w", err)
	}
	return raw, bias, flat, nil
}

// Reduce subtracts the bias, clips the overscan and flat fields. It returns
// both the clipped bias-subtracted frame and the flat-fielded frame.
func Reduce(raw, bias, flat Frame, g MosaicGeometry) (clipped, flatFielded Frame, err error) {
	biasRaw, err := SubtractBias(raw, bias)
	if err != nil {
		return Frame{}, Frame{}, err
	}
	clipped, err = ClipOverscan(biasRaw, g)
	if err != nil {
		return Frame{}, Frame{}, err
	}
	flatFielded, err = FlatField(clipped, flat)
	if err != nil {
		return Frame{}, Frame{}, err
	}
	return clipped, flatFielded, nil
}

// RemoveBackground estimates the sky on clipped and subtracts it. The
// returned frame carries hdr updated with the background stage.
func RemoveBackground(ctx context.Context, clipped Frame, hdr *Header, mask *CircularMask, p BackgroundParams) (Frame, *Background, error) {
	bkg, err := EstimateBackground(ctx, clipped.Image, mask, p)
	if err != nil {
		return Frame{}, nil, fmt.Errorf("estimating background: %w", err)
	}
	science, err := SubtractBackground(clipped.Image, hdr, bkg, mask)
	if err != nil {
		return Frame{}, nil, err
	}
	return science, bkg, nil
}

// Calibrate runs bias subtraction, overscan clipping, flat fielding and
// background subtraction and writes the requested products. Any failure
// aborts the run. When inputs are missing a notice is logged, nothing is
// written and a *MissingInputError is returned.
//
// The background is estimated on, and subtracted from, the clipped
// bias-subtracted image; the science header is derived from the
// flat-fielded header.
func Calibrate(ctx context.Context, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	logger := opts.logger()

	raw, bias, flat, err := LoadInputs(opts.RawFile, opts.BiasFile, opts.FlatFile)
	if err != nil {
		var missing *MissingInputError
		if errors.As(err, &missing) {
			logger.Printf("Missing file! %v", missing.Paths)
		}
		return nil, err
	}

	clipped, flatFielded, err := Reduce(raw, bias, flat, opts.Geometry)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.WritePreBackSub {
		if err := WriteFits(opts.PreBackSubFile, flatFielded.Image, flatFielded.Header); err != nil {
			return nil, err
		}
	}

	mask := opts.Mask()
	science, bkg, err := RemoveBackground(ctx, clipped, flatFielded.Header, mask, opts.Background)
	if err != nil {
		return nil, err
	}

	if err := WriteFits(opts.ScienceFile, science.Image, science.Header); err != nil {
		return nil, err
	}
	if opts.WriteBkg {
		if err := WriteFits(opts.BkgFile, bkg.Surface, nil); err != nil {
			return nil, err
		}
	}
	if opts.QuicklookFile != "" {
		ql := QuicklookOptions{Mask: mask, Geometry: &opts.Geometry, Title: science.Header.Calibration()}
		if err := RenderQuicklook(opts.QuicklookFile, science.Image, ql); err != nil {
			return nil, err
		}
	}
	if opts.BkgQuicklookFile != "" {
		ql := QuicklookOptions{Mask: mask, Geometry: &opts.Geometry, Title: "background", FalseColor: true}
		if err := RenderQuicklook(opts.BkgQuicklookFile, bkg.Surface, ql); err != nil {
			return nil, err
		}
	}

	logger.Printf("science image written to %s", opts.ScienceFile)
	return &Result{Science: science, PreBackSub: flatFielded, Background: bkg}, nil
}
