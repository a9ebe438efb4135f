// Package qr renders scannable QR code images for batch identifiers.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultSize = 300

// PNG encodes the batch identifier into a PNG image. The rendering is a pure
// function of the input string.
func PNG(batchID string, size int) ([]byte, error) {
	if batchID == "" {
		return nil, fmt.Errorf("batch id required")
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := qrcode.Encode(batchID, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
