package qr

import (
	"bytes"
	"fmt"

	"github.com/yeqown/go-qrcode"
)

// RenderPNG encodes the payment payload as a QR code PNG.
func RenderPNG(payload string) ([]byte, error) {
	options := []qrcode.ImageOption{
		qrcode.WithQRWidth(8),
		qrcode.WithBuiltinImageEncoder(qrcode.PNG_FORMAT),
	}
	qrc, err := qrcode.New(payload, options...)
	if err != nil {
		return nil, fmt.Errorf("create qr code: %w", err)
	}

	var buf bytes.Buffer
	if err := qrc.SaveTo(&buf); err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return buf.Bytes(), nil
}
