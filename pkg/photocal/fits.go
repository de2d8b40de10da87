package photocal

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// structuralKeys are regenerated by the writer and never carried between frames.
var structuralKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "NAXIS": true, "EXTEND": true,
	"BZERO": true, "BSCALE": true, "END": true, "PCOUNT": true, "GCOUNT": true,
	"XTENSION": true, "COMMENT": true, "HISTORY": true, "": true,
}

func isStructuralKey(key string) bool {
	if structuralKeys[key] {
		return true
	}
	return strings.HasPrefix(key, "NAXIS")
}

// Header is an ordered set of FITS keyword records. Setting an existing key
// replaces its value in place; no other record is touched.
type Header struct {
	cards []fitsio.Card
}

func NewHeader() *Header {
	return &Header{}
}

func (h *Header) index(key string) int {
	key = strings.ToUpper(key)
	for i, c := range h.cards {
		if c.Name == key {
			return i
		}
	}
	return -1
}

// Set stores value under key, keeping the existing comment when comment is empty.
func (h *Header) Set(key string, value interface{}, comment string) {
	key = strings.ToUpper(key)
	if i := h.index(key); i >= 0 {
		h.cards[i].Value = value
		if comment != "" {
			h.cards[i].Comment = comment
		}
		return
	}
	h.cards = append(h.cards, fitsio.Card{Name: key, Value: value, Comment: comment})
}

func (h *Header) Get(key string) (interface{}, bool) {
	if i := h.index(key); i >= 0 {
		return h.cards[i].Value, true
	}
	return nil, false
}

func (h *Header) Len() int { return len(h.cards) }

func (h *Header) Keys() []string {
	keys := make([]string, len(h.cards))
	for i, c := range h.cards {
		keys[i] = c.Name
	}
	return keys
}

// Cards returns a copy of the records in order.
func (h *Header) Cards() []fitsio.Card {
	out := make([]fitsio.Card, len(h.cards))
	copy(out, h.cards)
	return out
}

func (h *Header) Clone() *Header {
	return &Header{cards: h.Cards()}
}

func (h *Header) GetString(key string) string {
	v, ok := h.Get(key)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (h *Header) GetDouble(key string) (float64, bool) {
	v, ok := h.Get(key)
	if !ok {
		return 0, false
	}
	return cardFloat(v)
}

func (h *Header) GetInt(key string) (int, bool) {
	d, ok := h.GetDouble(key)
	if !ok || d != math.Trunc(d) {
		return 0, false
	}
	return int(d), true
}

func (h *Header) ObjectName() string { return h.GetString("OBJECT") }
func (h *Header) Filter() string     { return h.GetString("FILTER") }
func (h *Header) Calibration() string {
	return h.GetString("CAL")
}

func (h *Header) ExposureTime() (float64, bool) {
	if v, ok := h.GetDouble("EXPTIME"); ok {
		return v, true
	}
	return h.GetDouble("EXPOSURE")
}

func cardFloat(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		d, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return d, err == nil
	}
	return 0, false
}

// Frame pairs pixel data with its header.
type Frame struct {
	Image  *Image
	Header *Header
}

// ReadFits reads the primary image HDU of a FITS file.
func ReadFits(filePath string) (Frame, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return Frame{}, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	frame, err := ReadFitsFrom(f)
	if err != nil {
		return Frame{}, fmt.Errorf("%s: %w", filePath, err)
	}
	return frame, nil
}

// ReadFitsFromBytes decodes an in-memory FITS file.
func ReadFitsFromBytes(data []byte) (Frame, error) {
	return ReadFitsFrom(bytes.NewReader(data))
}

// ReadFitsFrom decodes the primary image HDU from r. BSCALE and BZERO are
// applied so the returned pixels are physical values.
func ReadFitsFrom(r io.Reader) (Frame, error) {
	fits, err := fitsio.Open(r)
	if err != nil {
		return Frame{}, fmt.Errorf("decoding FITS: %w", err)
	}
	defer fits.Close()

	if len(fits.HDUs()) == 0 {
		return Frame{}, errors.New("FITS file has no HDU")
	}
	hdu := fits.HDU(0)
	img, ok := hdu.(fitsio.Image)
	if !ok {
		return Frame{}, fmt.Errorf("primary HDU is %v, not an image", hdu.Type())
	}

	fhdr := hdu.Header()
	axes := fhdr.Axes()
	if len(axes) < 2 || axes[0] == 0 || axes[1] == 0 {
		return Frame{}, fmt.Errorf("invalid FITS: NAXIS=%d, axes=%v", len(axes), axes)
	}
	width, height := axes[0], axes[1]

	bscale, bzero := 1.0, 0.0
	hdr := NewHeader()
	for i := range fhdr.Keys() {
		card := fhdr.Card(i)
		if card == nil {
			continue
		}
		switch card.Name {
		case "BSCALE":
			if v, ok := cardFloat(card.Value); ok {
				bscale = v
			}
		case "BZERO":
			if v, ok := cardFloat(card.Value); ok {
				bzero = v
			}
		}
		if isStructuralKey(card.Name) {
			continue
		}
		hdr.Set(card.Name, card.Value, card.Comment)
	}

	pix, err := decodePixels(img.Raw(), fhdr.Bitpix(), width*height, bscale, bzero)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Image:  &Image{Width: width, Height: height, Pix: pix},
		Header: hdr,
	}, nil
}

// decodePixels converts big-endian FITS data of the first plane to float64.
func decodePixels(raw []byte, bitpix, numPixels int, bscale, bzero float64) ([]float64, error) {
	size := bitpix / 8
	if size < 0 {
		size = -size
	}
	if size == 0 {
		return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
	}
	if len(raw) < numPixels*size {
		return nil, fmt.Errorf("short pixel data: %d bytes for %d pixels of BITPIX %d", len(raw), numPixels, bitpix)
	}

	pix := make([]float64, numPixels)
	for i := 0; i < numPixels; i++ {
		b := raw[i*size:]
		var v float64
		switch bitpix {
		case 8:
			v = float64(b[0])
		case 16:
			v = float64(int16(binary.BigEndian.Uint16(b)))
		case 32:
			v = float64(int32(binary.BigEndian.Uint32(b)))
		case 64:
			v = float64(int64(binary.BigEndian.Uint64(b)))
		case -32:
			v = float64(math.Float32frombits(binary.BigEndian.Uint32(b)))
		case -64:
			v = math.Float64frombits(binary.BigEndian.Uint64(b))
		default:
			return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
		}
		pix[i] = v*bscale + bzero
	}
	return pix, nil
}

// WriteFits writes img as a BITPIX -64 primary HDU, replacing any existing
// file. hdr may be nil.
func WriteFits(filePath string, img *Image, hdr *Header) error {
	f, err := os.Create(filePath)
	if err != nil {
		return &WriteError{Path: filePath, Err: err}
	}
	if err := WriteFitsTo(f, img, hdr); err != nil {
		f.Close()
		return &WriteError{Path: filePath, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: filePath, Err: err}
	}
	return nil
}

// WriteFitsTo streams img and hdr as a FITS file to w.
func WriteFitsTo(w io.Writer, img *Image, hdr *Header) error {
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()

	im := fitsio.NewImage(-64, []int{img.Width, img.Height})
	defer im.Close()
	if hdr != nil && hdr.Len() > 0 {
		if err := im.Header().Append(hdr.Cards()...); err != nil {
			return fmt.Errorf("building header: %w", err)
		}
	}
	if err := im.Write(img.Pix); err != nil {
		return fmt.Errorf("encoding pixels: %w", err)
	}
	return fits.Write(im)
}
