package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	yml "gopkg.in/yaml.v2"

	"photocal/pkg/photocal"
)

var (
	// Version is the version number. Typically injected via ldflags.
	Version = "1"

	// ConfigFileName is read when no config path is given.
	ConfigFileName = "photocal.yml"
)

// Config is the on-disk form of a calibration run.
type Config struct {
	Raw     string `koanf:"raw" yaml:"raw"`
	Bias    string `koanf:"bias" yaml:"bias"`
	Flat    string `koanf:"flat" yaml:"flat"`
	Science string `koanf:"science" yaml:"science"`

	WriteBkg        bool   `koanf:"write_bkg" yaml:"write_bkg"`
	BkgFile         string `koanf:"bkg_file" yaml:"bkg_file"`
	WritePreBackSub bool   `koanf:"write_pre_back_sub" yaml:"write_pre_back_sub"`
	PreBackSubFile  string `koanf:"prebacksub_file" yaml:"prebacksub_file"`

	UseMask bool    `koanf:"use_mask" yaml:"use_mask"`
	CX      float64 `koanf:"cx" yaml:"cx"`
	CY      float64 `koanf:"cy" yaml:"cy"`
	R       float64 `koanf:"r" yaml:"r"`

	Quicklook    string `koanf:"quicklook" yaml:"quicklook"`
	BkgQuicklook string `koanf:"bkg_quicklook" yaml:"bkg_quicklook"`

	Geometry   photocal.MosaicGeometry   `koanf:"geometry" yaml:"geometry"`
	Background photocal.BackgroundParams `koanf:"background" yaml:"background"`
}

func defaultConfig() Config {
	return Config{
		Science:    "science.fits",
		Geometry:   photocal.TOROSGeometry(),
		Background: photocal.DefaultBackgroundParams(),
	}
}

// Options converts the config into pipeline options.
func (c Config) Options(logger *log.Logger) photocal.Options {
	opts := photocal.NewOptions(c.Raw, c.Bias, c.Flat, c.Science)
	opts.WriteBkg = c.WriteBkg
	opts.BkgFile = c.BkgFile
	opts.WritePreBackSub = c.WritePreBackSub
	opts.PreBackSubFile = c.PreBackSubFile
	opts.UseMask = c.UseMask
	opts.CX, opts.CY, opts.R = c.CX, c.CY, c.R
	opts.QuicklookFile = c.Quicklook
	opts.BkgQuicklookFile = c.BkgQuicklook
	opts.Geometry = c.Geometry
	opts.Background = c.Background
	opts.Logger = logger
	return opts
}

// loadConfig layers the yaml file at path over the defaults. A missing file
// leaves the defaults in place.
func loadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("loading defaults: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("loading config %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}
	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		usage()
		return nil
	}
	cfgPath := ConfigFileName
	if len(args) > 1 {
		cfgPath = args[1]
	}

	switch strings.ToLower(args[0]) {
	case "run":
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		return calibrate(cfg)
	case "mkconf":
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		f, err := os.Create(cfgPath)
		if err != nil {
			return err
		}
		defer f.Close()
		return yml.NewEncoder(f).Encode(cfg)
	case "conf":
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		return yml.NewEncoder(os.Stdout).Encode(cfg)
	case "version":
		fmt.Printf("photocal version %v\n", Version)
		return nil
	case "help":
		usage()
		return nil
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage() {
	str := `photocal calibrates raw mosaic-CCD exposures: bias subtraction, overscan
removal, flat fielding and sky background subtraction.

Usage:
	photocal <command> [config.yml]

Commands:
	run      calibrate the frames named in the config
	mkconf   write the effective config (defaults + file) back to the config path
	conf     print the effective config
	version
	help

The config defaults to photocal.yml and the TOROS 8x2 mosaic geometry.`
	fmt.Println(str)
}

func calibrate(cfg Config) error {
	logger := log.New(os.Stderr, "photocal: ", log.LstdFlags)
	fmt.Printf("Calibrating: %s\n", cfg.Raw)
	fmt.Printf("  Bias:     %s\n", cfg.Bias)
	fmt.Printf("  Flat:     %s\n", cfg.Flat)
	fmt.Printf("  Geometry: %v\n", cfg.Geometry)

	startTime := time.Now()
	result, err := photocal.Calibrate(context.Background(), cfg.Options(logger))
	if err != nil {
		return err
	}
	elapsed := time.Since(startTime)

	science := result.Science
	fmt.Println()
	fmt.Printf("=== Calibration Results (%.1fs) ===\n", elapsed.Seconds())
	fmt.Printf("  Image size:      %d x %d\n", science.Image.Width, science.Image.Height)
	fmt.Printf("  CAL:             %s\n", science.Header.Calibration())
	fmt.Printf("  Background:      %.3f (rms %.3f)\n", result.Background.Median, result.Background.RMSMedian)
	fmt.Printf("  Excluded boxes:  %d of %d\n", result.Background.ExcludedBoxes,
		result.Background.Mesh.Width*result.Background.Mesh.Height)

	chips := photocal.ChipStatistics(science.Image, cfg.Geometry)
	fmt.Println()
	fmt.Println("=== Residual per chip ===")
	for _, c := range chips {
		fmt.Printf("  %-4s median=%9.3f  sigma=%8.3f  n=%d\n", c.Label, c.Median, c.Sigma, c.Count)
	}
	fmt.Printf("\n  Chip spread: %.3f\n", photocal.ChipSpread(chips))
	fmt.Println("==============================")
	fmt.Println(cfg.Science)
	return nil
}
