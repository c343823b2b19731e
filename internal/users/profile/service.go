// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"time"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/ctxutil"
	"github.com/taibuivan/kinbank/internal/platform/dberr"
	"github.com/taibuivan/kinbank/internal/platform/objectstore"
	"github.com/taibuivan/kinbank/internal/platform/sec"
	"github.com/taibuivan/kinbank/pkg/uuid"
)

// # Service Layer

// Service orchestrates profile reads, image uploads and pincode changes.
type Service struct {
	repository Repository
	objects    objectstore.Store
	hasher     *sec.Hasher
	now        func() time.Time
}

// NewService constructs a new [Service]. A nil clock uses time.Now.
func NewService(repository Repository, objects objectstore.Store, hasher *sec.Hasher, clock func() time.Time) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{repository: repository, objects: objects, hasher: hasher, now: clock}
}

/*
Get returns the profile of userID.

A user who never touched their profile gets an empty one rather than a 404.
*/
func (service *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	profile, err := service.repository.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, dberr.ErrNotFound) {
			return &Profile{UserID: userID}, nil
		}
		return nil, err
	}
	return present(profile), nil
}

// UploadInput describes one image upload.
type UploadInput struct {
	Filename string
	Size     int64
	Body     io.Reader
}

/*
UploadImage stores a new profile picture and points the profile at it.

The content type is sniffed from the bytes; the client supplied name and
type are not trusted. Previous images stay in the object store.

Returns:
  - *Profile: the updated profile
  - error: [ErrImageTooLarge], [ErrUnsupportedImage] or storage errors
*/
func (service *Service) UploadImage(ctx context.Context, userID string, input UploadInput) (*Profile, error) {
	if input.Size <= 0 || input.Size > constants.MaxUploadBytes {
		return nil, ErrImageTooLarge
	}

	head := make([]byte, sniffLength)
	read, err := io.ReadFull(input.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("profile_service_read_upload_failed: %w", err)
	}
	head = head[:read]

	contentType := http.DetectContentType(head)
	extension, ok := imageExtensions[contentType]
	if !ok {
		return nil, ErrUnsupportedImage
	}

	name := uuid.New() + extension
	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), input.Body), input.Size)
	if err := service.objects.Put(ctx, imageKeyPrefix+name, contentType, body, input.Size); err != nil {
		return nil, fmt.Errorf("profile_service_store_image_failed: %w", err)
	}

	if err := service.repository.SetImage(ctx, userID, name, service.now()); err != nil {
		return nil, err
	}

	ctxutil.GetLogger(ctx).InfoContext(ctx, "profile_image_uploaded",
		slog.String("user_id", userID),
		slog.String("image_ref", name),
		slog.Int64("size", input.Size),
	)
	return service.Get(ctx, userID)
}

/*
OpenImage opens the stored image called name. The caller closes the body.
*/
func (service *Service) OpenImage(ctx context.Context, name string) (*objectstore.Object, error) {
	if name == "" || path.Base(name) != name {
		return nil, ErrImageNotFound
	}

	object, err := service.objects.Get(ctx, imageKeyPrefix+name)
	if err != nil {
		if errors.Is(err, objectstore.ErrNotFound) || errors.Is(err, objectstore.ErrInvalidKey) {
			return nil, ErrImageNotFound
		}
		return nil, fmt.Errorf("profile_service_open_image_failed: %w", err)
	}
	return object, nil
}

// SetPincode stores a hash of the card pincode.
func (service *Service) SetPincode(ctx context.Context, userID, pincode string) error {
	pincodeHash, err := service.hasher.Hash(ctx, pincode)
	if err != nil {
		return fmt.Errorf("profile_service_hash_failed: %w", err)
	}
	return service.repository.SetPincode(ctx, userID, pincodeHash, service.now())
}

// MarkActivated mirrors a completed account activation into the profile.
func (service *Service) MarkActivated(ctx context.Context, userID string) error {
	return service.repository.MarkActivated(ctx, userID, service.now())
}

// AccountActivated lets the service act as the activation hook of the auth flow.
func (service *Service) AccountActivated(ctx context.Context, userID string) error {
	return service.MarkActivated(ctx, userID)
}

// present fills the derived, non-stored fields.
func present(profile *Profile) *Profile {
	if profile.ImageRef != "" {
		profile.ImageURL = imageRoute + profile.ImageRef
	}
	profile.HasPincode = profile.PincodeHash != ""
	return profile
}
