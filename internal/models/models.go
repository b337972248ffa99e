package models

import "time"

// ImageEntry represents one uploaded image and its accumulated view history
type ImageEntry struct {
	ID           string       `json:"id"`
	FileName     string       `json:"filename"`
	OriginalName string       `json:"originalName"`
	SenderName   string       `json:"senderName"`
	UploadedAt   time.Time    `json:"uploadedAt"`
	Views        []ViewRecord `json:"views"`
}

// ViewRecord represents one recorded open of a tracking link
type ViewRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	UserAgent string    `json:"userAgent"`
}
