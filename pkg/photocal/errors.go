package photocal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingInput      = errors.New("missing input file")
	ErrShapeMismatch     = errors.New("image shape mismatch")
	ErrGeometryMismatch  = errors.New("image does not match mosaic geometry")
	ErrWrite             = errors.New("write failed")
	ErrInvalidOptions    = errors.New("invalid options")
	ErrNoBackgroundBoxes = errors.New("every background box exceeds the masked-pixel limit")
)

// MissingInputError lists every input path that does not exist.
type MissingInputError struct {
	Paths []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input file(s): %s", strings.Join(e.Paths, ", "))
}

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// ShapeMismatchError reports two images that must share dimensions but don't.
type ShapeMismatchError struct {
	Op            string
	Width, Height int
	WantW, WantH  int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("%s: image is %dx%d, want %dx%d", e.Op, e.Width, e.Height, e.WantW, e.WantH)
}

func (e *ShapeMismatchError) Is(target error) bool { return target == ErrShapeMismatch }

// GeometryMismatchError reports an image or geometry incompatible with the
// configured mosaic layout.
type GeometryMismatchError struct {
	Op     string
	Reason string
}

func (e *GeometryMismatchError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *GeometryMismatchError) Is(target error) bool { return target == ErrGeometryMismatch }

// WriteError wraps a failure to persist an output file.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing %s: %v", e.Path, e.Err)
}

func (e *WriteError) Is(target error) bool { return target == ErrWrite }
func (e *WriteError) Unwrap() error        { return e.Err }
