// Package export renders piggy bank data for people rather than programs:
// QR images of pairing and guest codes, and PDF statements.
package export

import (
	"bytes"
	"image/png"

	"github.com/dmitrijs2005/piggysync/internal/common"
	"github.com/skip2/go-qrcode"
)

// QRSize is the edge length in pixels of rendered codes.
const QRSize = 256

// CodePNG renders a pairing or access code as a PNG QR image.
func CodePNG(code string) ([]byte, error) {
	code = common.NormalizeCode(code)
	if code == "" {
		return nil, common.ErrInvalidCode
	}

	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(QRSize)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
