package drawing

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// RasterEncoding is the only payload encoding written by EncodeRaster.
const RasterEncoding = "zstd"

// MaxRasterSide bounds each raster dimension so width*height*4 cannot overflow
// and a decoded snapshot stays within MaxRasterBytes.
const (
	MaxRasterSide  = 8192
	MaxRasterBytes = MaxRasterSide * MaxRasterSide * 4
)

var (
	ErrRasterSize     = errors.New("raster pixel buffer does not match its dimensions")
	ErrRasterEncoding = errors.New("unsupported raster encoding")
)

// Raster is a full RGBA snapshot of a drawing surface (4 bytes per pixel, row-major).
// On the wire it is an opaque zstd-compressed blob, base64 encoded inside JSON.
type Raster struct {
	Width  int
	Height int
	Pix    []byte
}

// NewRaster validates pix against the dimensions and copies it.
func NewRaster(width, height int, pix []byte) (*Raster, error) {
	if err := checkSize(width, height, len(pix)); err != nil {
		return nil, err
	}
	return &Raster{Width: width, Height: height, Pix: append([]byte(nil), pix...)}, nil
}

// checkSize rejects out-of-range dimensions before computing the expected length.
func checkSize(width, height, n int) error {
	if width <= 0 || height <= 0 || width > MaxRasterSide || height > MaxRasterSide || n != width*height*4 {
		return fmt.Errorf("%w: %dx%d with %d bytes", ErrRasterSize, width, height, n)
	}
	return nil
}

// Valid reports whether the pixel buffer matches the dimensions.
func (r *Raster) Valid() bool {
	return r != nil && checkSize(r.Width, r.Height, len(r.Pix)) == nil
}

// Clone returns a deep copy; nil stays nil.
func (r *Raster) Clone() *Raster {
	if r == nil {
		return nil
	}
	return &Raster{Width: r.Width, Height: r.Height, Pix: append([]byte(nil), r.Pix...)}
}

var (
	zstdOnce sync.Once
	zstdEnc  *zstd.Encoder
	zstdDec  *zstd.Decoder
	zstdErr  error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	zstdOnce.Do(func() {
		zstdEnc, zstdErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if zstdErr != nil {
			return
		}
		zstdDec, zstdErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxRasterBytes))
	})
	return zstdEnc, zstdDec, zstdErr
}

// EncodeRaster compresses the pixel buffer. Blank canvases compress to a few hundred bytes.
func EncodeRaster(r *Raster) ([]byte, error) {
	enc, _, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	return enc.EncodeAll(r.Pix, make([]byte, 0, len(r.Pix)/8)), nil
}

// DecodeRaster reverses EncodeRaster and checks the result against the dimensions.
func DecodeRaster(width, height int, data []byte) (*Raster, error) {
	if width <= 0 || height <= 0 || width > MaxRasterSide || height > MaxRasterSide {
		return nil, fmt.Errorf("%w: %dx%d", ErrRasterSize, width, height)
	}
	_, dec, err := codecs()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	pix, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decode raster: %w", err)
	}
	if err := checkSize(width, height, len(pix)); err != nil {
		return nil, err
	}
	return &Raster{Width: width, Height: height, Pix: pix}, nil
}

type rasterWire struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Encoding string `json:"encoding"`
	Data     []byte `json:"data"`
}

// MarshalJSON writes {"width","height","encoding":"zstd","data":<base64>}.
func (r *Raster) MarshalJSON() ([]byte, error) {
	data, err := EncodeRaster(r)
	if err != nil {
		return nil, err
	}
	return json.Marshal(rasterWire{
		Width:    r.Width,
		Height:   r.Height,
		Encoding: RasterEncoding,
		Data:     data,
	})
}

// UnmarshalJSON accepts the format written by MarshalJSON.
func (r *Raster) UnmarshalJSON(b []byte) error {
	var w rasterWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if w.Encoding != RasterEncoding {
		return fmt.Errorf("%w: %q", ErrRasterEncoding, w.Encoding)
	}
	decoded, err := DecodeRaster(w.Width, w.Height, w.Data)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}
