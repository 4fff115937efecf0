// Package uploads handles chart image intake for manual analysis. It enforces
// the accepted image types (JPEG, PNG, WEBP) before any backend request is
// made and produces the encoded data URL stored alongside saved analyses.
package uploads

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
)

// Errors reported to the user near the upload control. They are deliberately
// specific, unlike backend failures which collapse to a generic message.
var (
	// ErrUnsupportedType is returned for any MIME type outside JPEG/PNG/WEBP.
	ErrUnsupportedType = errors.New("invalid file type: please use a JPG, PNG, or WEBP image")
	// ErrEmptyImage is returned when the file contains no data.
	ErrEmptyImage = errors.New("image file is empty")
	// ErrTooLarge is returned when the file exceeds the configured size cap.
	ErrTooLarge = errors.New("image file exceeds the maximum allowed size")
)

// allowedTypes is the exact set of accepted image MIME types.
var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// ChartImage is a validated chart image ready for analysis.
type ChartImage struct {
	FileName string
	MIMEType string
	Data     []byte
}

// DataURL returns the self-contained data: URL encoding of the image, the
// format the gallery persists.
func (c *ChartImage) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", c.MIMEType, base64.StdEncoding.EncodeToString(c.Data))
}

// ReadFile loads and validates a chart image from disk. maxSize caps the file
// size in bytes; zero disables the cap. The MIME type is sniffed from the
// content, not trusted from the extension.
func ReadFile(path string, maxSize int64) (*ChartImage, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	if maxSize > 0 && info.Size() > maxSize {
		return nil, ErrTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}

	return FromBytes(filepath.Base(path), data)
}

// FromBytes validates raw image bytes. Used directly by tests and by any
// front end that already holds the file content.
func FromBytes(fileName string, data []byte) (*ChartImage, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	mimeType := http.DetectContentType(data)
	if !allowedTypes[mimeType] {
		return nil, fmt.Errorf("%w (detected %s)", ErrUnsupportedType, mimeType)
	}

	return &ChartImage{
		FileName: fileName,
		MIMEType: mimeType,
		Data:     data,
	}, nil
}
