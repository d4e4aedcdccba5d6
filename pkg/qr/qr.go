// Package qr encodes badge payloads into QR PNG images and decodes codes back
// out of camera frames or uploaded pictures.
package qr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decode JPEG frames
	_ "image/png"  // decode PNG frames

	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
	goqrcode "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	MinSize     = 64
	MaxSize     = 1024
)

// ErrNoCode indicates the image did not contain a readable QR code.
var ErrNoCode = errors.New("no qr code found")

// Encoder renders payloads as PNG QR codes.
type Encoder struct {
	level goqrcode.RecoveryLevel
}

// NewEncoder returns an encoder using medium error correction.
func NewEncoder() *Encoder {
	return &Encoder{level: goqrcode.Medium}
}

// PNG renders payload as a square PNG of size pixels. Sizes are clamped to
// [MinSize, MaxSize]; zero means DefaultSize.
func (e *Encoder) PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, errors.New("payload must not be empty")
	}
	switch {
	case size == 0:
		size = DefaultSize
	case size < MinSize:
		size = MinSize
	case size > MaxSize:
		size = MaxSize
	}

	png, err := goqrcode.Encode(payload, e.level, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr payload: %w", err)
	}
	return png, nil
}

// Decoder extracts QR text from images.
type Decoder struct {
	hints map[gozxing.DecodeHintType]interface{}
}

// NewDecoder returns a decoder that tries harder on noisy camera frames.
func NewDecoder() *Decoder {
	return &Decoder{hints: map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}}
}

// Decode reads a PNG or JPEG image and returns the QR text it carries.
func (d *Decoder) Decode(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}

	result, err := zxingqr.NewQRCodeReader().Decode(bmp, d.hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return result.GetText(), nil
}
