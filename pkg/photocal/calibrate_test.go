package photocal

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type calibrationFixture struct {
	dir  string
	opts Options
	logs *bytes.Buffer
}

func newCalibrationFixture(t *testing.T) calibrationFixture {
	t.Helper()
	dir := t.TempDir()
	g := smallGeometry()

	raw := constantFrame(g.FrameWidth, g.FrameHeight, 1000)
	raw.Header.Set("OBJECT", "field 7", "")
	raw.Header.Set("EXPTIME", 60.0, "")
	bias := constantFrame(g.FrameWidth, g.FrameHeight, 100)
	flat := constantFrame(g.ClippedWidth(), g.ClippedHeight(), 1)

	opts := NewOptions(
		writeTestFits(t, dir, "raw.fits", raw),
		writeTestFits(t, dir, "bias.fits", bias),
		writeTestFits(t, dir, "flat.fits", flat),
		filepath.Join(dir, "science.fits"),
	)
	opts.Geometry = g
	opts.Background.BoxWidth = 20
	opts.Background.BoxHeight = 20

	logs := &bytes.Buffer{}
	opts.Logger = log.New(logs, "", 0)
	return calibrationFixture{dir: dir, opts: opts, logs: logs}
}

func TestCalibrate_EndToEnd(t *testing.T) {
	fx := newCalibrationFixture(t)
	fx.opts.WriteBkg = true
	fx.opts.BkgFile = filepath.Join(fx.dir, "bkg.fits")
	fx.opts.WritePreBackSub = true
	fx.opts.PreBackSubFile = filepath.Join(fx.dir, "prebacksub.fits")
	fx.opts.QuicklookFile = filepath.Join(fx.dir, "science.jpg")
	fx.opts.BkgQuicklookFile = filepath.Join(fx.dir, "bkg.jpg")

	res, err := Calibrate(context.Background(), fx.opts)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	assertAllNear(t, res.Science.Image, 0, 1e-6)
	if res.Background.Median < 899.999 || res.Background.Median > 900.001 {
		t.Errorf("background median: got %g, want 900", res.Background.Median)
	}

	science, err := ReadFits(fx.opts.ScienceFile)
	if err != nil {
		t.Fatalf("reading science: %v", err)
	}
	if science.Image.Width != 80 || science.Image.Height != 80 {
		t.Errorf("science is %v, want 80x80", science.Image)
	}
	assertAllNear(t, science.Image, 0, 1e-6)
	if got := science.Header.Calibration(); got != calBackground+" without mask" {
		t.Errorf("CAL: got %q", got)
	}
	if science.Header.ObjectName() != "field 7" {
		t.Errorf("OBJECT not carried to the science header: %v", science.Header.Keys())
	}
	if got := science.Header.GetString("OVERSCAN"); got != "removed" {
		t.Errorf("OVERSCAN: got %q", got)
	}

	pre, err := ReadFits(fx.opts.PreBackSubFile)
	if err != nil {
		t.Fatalf("reading pre background-subtracted image: %v", err)
	}
	assertAllNear(t, pre.Image, 900, 0)
	if got := pre.Header.Calibration(); got != calFlat {
		t.Errorf("pre background-subtracted CAL: got %q", got)
	}

	bkg, err := ReadFits(fx.opts.BkgFile)
	if err != nil {
		t.Fatalf("reading background: %v", err)
	}
	assertAllNear(t, bkg.Image, 900, 1e-6)
	if bkg.Header.Len() != 0 {
		t.Errorf("background file carries header cards: %v", bkg.Header.Keys())
	}

	for _, p := range []string{fx.opts.QuicklookFile, fx.opts.BkgQuicklookFile} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("quicklook not written: %v", err)
		}
	}
	if !strings.Contains(fx.logs.String(), "science image written to") {
		t.Errorf("log output: %q", fx.logs.String())
	}
}

func TestCalibrate_WithMask(t *testing.T) {
	fx := newCalibrationFixture(t)
	fx.opts.UseMask = true
	fx.opts.CX, fx.opts.CY, fx.opts.R = 40, 40, 15

	res, err := Calibrate(context.Background(), fx.opts)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if got := res.Science.Header.Calibration(); got != calBackground+" with mask" {
		t.Errorf("CAL: got %q", got)
	}
	if res.Background.ExcludedBoxes == 0 {
		t.Error("mask excluded no boxes")
	}
	assertAllNear(t, res.Science.Image, 0, 1e-6)
}

func TestCalibrate_OptionalOutputsSkipped(t *testing.T) {
	fx := newCalibrationFixture(t)
	if _, err := Calibrate(context.Background(), fx.opts); err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	entries, err := os.ReadDir(fx.dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if diff := cmp.Diff([]string{"bias.fits", "flat.fits", "raw.fits", "science.fits"}, names); diff != "" {
		t.Errorf("output files (-want +got):\n%s", diff)
	}
}

func TestCalibrate_MissingInputs(t *testing.T) {
	fx := newCalibrationFixture(t)
	missingBias := filepath.Join(fx.dir, "nobias.fits")
	missingFlat := filepath.Join(fx.dir, "noflat.fits")
	fx.opts.BiasFile = missingBias
	fx.opts.FlatFile = missingFlat

	res, err := Calibrate(context.Background(), fx.opts)
	if res != nil {
		t.Error("got a result for missing inputs")
	}
	if !errors.Is(err, ErrMissingInput) {
		t.Fatalf("got %v, want ErrMissingInput", err)
	}
	var missing *MissingInputError
	if !errors.As(err, &missing) {
		t.Fatalf("error is %T, want *MissingInputError", err)
	}
	if diff := cmp.Diff([]string{missingBias, missingFlat}, missing.Paths); diff != "" {
		t.Errorf("missing paths (-want +got):\n%s", diff)
	}
	if !strings.Contains(fx.logs.String(), "Missing file!") {
		t.Errorf("no missing-file notice logged: %q", fx.logs.String())
	}
	if _, err := os.Stat(fx.opts.ScienceFile); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("science file written despite missing inputs: %v", err)
	}
}

func TestCalibrate_GeometryMismatch(t *testing.T) {
	fx := newCalibrationFixture(t)
	fx.opts.Geometry = TOROSGeometry()
	fx.opts.WritePreBackSub = true
	fx.opts.PreBackSubFile = filepath.Join(fx.dir, "prebacksub.fits")

	_, err := Calibrate(context.Background(), fx.opts)
	if !errors.Is(err, ErrGeometryMismatch) {
		t.Fatalf("got %v, want ErrGeometryMismatch", err)
	}
	for _, p := range []string{fx.opts.ScienceFile, fx.opts.PreBackSubFile} {
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s written after a failed run", filepath.Base(p))
		}
	}
}

func TestCalibrate_Cancelled(t *testing.T) {
	fx := newCalibrationFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Calibrate(ctx, fx.opts); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestOptions_Validate(t *testing.T) {
	base := NewOptions("raw.fits", "bias.fits", "flat.fits", "science.fits")
	if err := base.Validate(); err != nil {
		t.Fatalf("default options rejected: %v", err)
	}

	cases := map[string]func(o *Options){
		"no science path":    func(o *Options) { o.ScienceFile = "" },
		"bkg without path":   func(o *Options) { o.WriteBkg = true },
		"pre without path":   func(o *Options) { o.WritePreBackSub = true },
		"mask without size":  func(o *Options) { o.UseMask = true },
		"even filter":        func(o *Options) { o.Background.FilterSize = 2 },
		"negative overscan":  func(o *Options) { o.Geometry.OverscanX = -1 },
		"zero sigma":         func(o *Options) { o.Background.Sigma = 0 },
		"percentile too big": func(o *Options) { o.Background.ExcludePercentile = 101 },
	}
	for name, mutate := range cases {
		o := base
		mutate(&o)
		if err := o.Validate(); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}

	masked := base
	masked.UseMask = true
	masked.CX, masked.CY, masked.R = 1, 2, 3
	if diff := cmp.Diff(&CircularMask{CX: 1, CY: 2, R: 3}, masked.Mask()); diff != "" {
		t.Errorf("mask (-want +got):\n%s", diff)
	}
	if base.Mask() != nil {
		t.Error("mask returned with masking disabled")
	}
}
