package storage

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

const (
	ThumbnailSize = 480
	AvatarSize    = 256
)

// Thumbnail decodes an image and returns a JPEG that fits in a
// ThumbnailSize square, keeping the aspect ratio.
func Thumbnail(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return encodeJPEG(imaging.Fit(img, ThumbnailSize, ThumbnailSize, imaging.Lanczos))
}

// Avatar decodes an image and returns an AvatarSize square JPEG cropped
// around the centre.
func Avatar(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return encodeJPEG(imaging.Fill(img, AvatarSize, AvatarSize, imaging.Center, imaging.Lanczos))
}

func encodeJPEG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(82)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
