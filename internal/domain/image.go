package domain

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

type ImageFormat string

const (
	JPEG ImageFormat = "jpeg"
	PNG  ImageFormat = "png"
	GIF  ImageFormat = "gif"
	WEBP ImageFormat = "webp"
)

// ContentType returns the MIME type stored alongside an uploaded image.
func (f ImageFormat) ContentType() string {
	return "image/" + string(f)
}

// Extension returns the file extension used for object names.
func (f ImageFormat) Extension() string {
	if f == JPEG {
		return ".jpg"
	}
	return "." + string(f)
}

// DetectImageFormat sniffs the encoded image header.
func DetectImageFormat(data []byte) (ImageFormat, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("image data cannot be empty")
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("unsupported image format: %w", err)
	}

	switch format {
	case "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "gif":
		return GIF, nil
	case "webp":
		return WEBP, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// ImageStore keeps uploaded images and returns a URL the prediction
// service can fetch them from.
type ImageStore interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}
