// Package model holds the document metadata record shared by every layer.
package model

import "time"

// Document is the metadata record of one uploaded file.
// StoredName is the opaque blob key and is never serialized to clients.
type Document struct {
	ID           int64     `json:"id"`
	OriginalName string    `json:"originalName"`
	StoredName   string    `json:"-"`
	SizeBytes    int64     `json:"sizeBytes"`
	CreatedAt    time.Time `json:"createdAt"`
}
