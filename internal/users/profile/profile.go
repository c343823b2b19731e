// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package profile manages the per-user document that sits next to the
credential row: the profile picture, the card pincode and the activation
flag mirrored from the account.

Profiles live in the MongoDB profiles collection, keyed by user ID. Images
are stored through [objectstore.Store] under opaque keys and served back by
name.
*/
package profile

import (
	"net/http"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/apperr"
)

// # Domain Entities

// Profile is the public view of a user's profile document.
type Profile struct {
	UserID      string    `bson:"user_id"                json:"userId"`
	ImageRef    string    `bson:"image_ref,omitempty"    json:"imageRef,omitempty"`
	ImageURL    string    `bson:"-"                      json:"imageUrl,omitempty"`
	PincodeHash string    `bson:"pincode_hash,omitempty" json:"-"`
	HasPincode  bool      `bson:"-"                      json:"hasPincode"`
	Activated   bool      `bson:"activated"              json:"activated"`
	UpdatedAt   time.Time `bson:"updated_at"             json:"updatedAt"`
}

// # Upload Rules

const (
	// imageKeyPrefix namespaces profile images inside the object store.
	imageKeyPrefix = "profiles/"

	// imageRoute is the public path images are served from.
	imageRoute = "/api/v1/images/"

	// PincodeDigits is the length of the card pincode.
	PincodeDigits = 4

	// sniffLength is how many leading bytes decide the real content type.
	sniffLength = 512
)

// imageExtensions maps accepted content types to the stored file extension.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// # Domain Errors

var (
	// ErrUnsupportedImage is returned for uploads that are not jpeg, png, gif or webp.
	ErrUnsupportedImage = apperr.New(http.StatusUnsupportedMediaType, "UNSUPPORTED_IMAGE", "Image must be JPEG, PNG, GIF or WebP")

	// ErrImageTooLarge is returned for uploads above the size limit.
	ErrImageTooLarge = apperr.New(http.StatusRequestEntityTooLarge, "IMAGE_TOO_LARGE", "Image exceeds the 5 MiB limit")

	// ErrImageNotFound is returned when no image exists under a name.
	ErrImageNotFound = apperr.NotFound("Image")
)

// # Field Identifiers

const (
	FieldImage   = "image"
	FieldPincode = "pincode"
	FieldName    = "name"
)
