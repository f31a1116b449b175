// internal/helper/media.go
package helper

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

const (
	// MaxMediaDimension batas sisi terpanjang media yang disimpan di log.
	// Log pesan hanya butuh preview, bukan file asli.
	MaxMediaDimension = 1024
	MediaJPEGQuality  = 85
)

// NormalizeImagePayload decode media image/sticker masuk, resize bila perlu,
// dan re-encode ke JPEG supaya payload di log seragam dan kecil.
// Sticker WhatsApp selalu WebP, jadi handle itu duluan.
func NormalizeImagePayload(data []byte, mimetype string) ([]byte, string, error) {
	decoded, err := decodeMediaImage(data, mimetype)
	if err != nil {
		return nil, "", err
	}

	bounds := decoded.Bounds()
	if bounds.Dx() > MaxMediaDimension || bounds.Dy() > MaxMediaDimension {
		decoded = imaging.Fit(decoded, MaxMediaDimension, MaxMediaDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, decoded, imaging.JPEG, imaging.JPEGQuality(MediaJPEGQuality)); err != nil {
		return nil, "", fmt.Errorf("encode media payload: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func decodeMediaImage(data []byte, mimetype string) (image.Image, error) {
	if strings.Contains(mimetype, "webp") {
		img, err := webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode webp media: %w", err)
		}
		return img, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	return img, nil
}
