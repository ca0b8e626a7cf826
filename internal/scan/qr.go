package scan

import (
	"fmt"
	"image"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// QRDecoder decodes QR codes out of captured frames. It is not safe for
// concurrent use; the scan loop calls it from a single goroutine.
type QRDecoder struct {
	reader gozxing.Reader
}

// NewQRDecoder returns a decoder backed by the zxing QR reader.
func NewQRDecoder() *QRDecoder {
	return &QRDecoder{reader: qrcode.NewQRCodeReader()}
}

// DecodeFrame returns the text payload of the QR code in img, or ErrNoCode
// when the frame holds none.
func (d *QRDecoder) DecodeFrame(img image.Image) (string, error) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("preparing frame bitmap: %w", err)
	}

	result, err := d.reader.Decode(bmp, nil)
	if err != nil {
		if _, ok := err.(gozxing.NotFoundException); ok {
			return "", ErrNoCode
		}
		return "", fmt.Errorf("decoding frame: %w", err)
	}
	return result.GetText(), nil
}
