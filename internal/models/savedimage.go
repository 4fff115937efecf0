package models

import (
	"errors"
	"fmt"
	"time"
)

// SavedImage represents a user-confirmed chart analysis stored in the gallery.
// It freezes the prediction that was active at save time; the embedded
// prediction is never re-validated or updated later. SavedImages are created
// only via explicit user confirmation after a successful image analysis and
// deleted only via explicit user deletion.
type SavedImage struct {
	ID           string     `json:"id"`           // Derived from creation time + originating file name
	AssetID      string     `json:"assetId"`      // Owning instrument ID
	DataURL      string     `json:"dataUrl"`      // Self-contained data: URL with the encoded image
	Timestamp    time.Time  `json:"timestamp"`    // Creation instant
	Instructions string     `json:"instructions"` // User free text at creation
	Prediction   Prediction `json:"prediction"`
}

// NewSavedImageID derives a gallery-unique ID from the creation instant and
// the originating file name.
func NewSavedImageID(createdAt time.Time, fileName string) string {
	return fmt.Sprintf("%d-%s", createdAt.UnixMilli(), fileName)
}

// Validate checks that all saved image fields are valid.
func (s *SavedImage) Validate() error {
	if s.ID == "" {
		return errors.New("saved image ID must not be empty")
	}
	if s.AssetID == "" {
		return errors.New("saved image asset ID must not be empty")
	}
	if s.DataURL == "" {
		return errors.New("saved image data URL must not be empty")
	}
	if s.Timestamp.IsZero() {
		return errors.New("saved image timestamp must not be zero")
	}
	return s.Prediction.Validate()
}
