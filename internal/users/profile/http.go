// Copyright (c) 2026 Kinbank. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package profile

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/kinbank/internal/platform/constants"
	"github.com/taibuivan/kinbank/internal/platform/middleware"
	requestutil "github.com/taibuivan/kinbank/internal/platform/request"
	"github.com/taibuivan/kinbank/internal/platform/respond"
	"github.com/taibuivan/kinbank/internal/platform/validate"
)

// multipartOverhead leaves room for boundaries and part headers around the image.
const multipartOverhead = 64 << 10

// Handler implements the profile HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the profile endpoints on router.
//
// # Endpoints
//   - GET /profile          : Current user's profile.
//   - PUT /profile/image    : Multipart upload, field "image".
//   - PUT /profile/pincode  : Sets the card pincode.
//   - GET /images/{name}    : Serves a stored image (public).
func (handler *Handler) RegisterRoutes(router chi.Router) {
	router.Get("/images/{name}", handler.image)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/profile", handler.get)
		r.Put("/profile/image", handler.uploadImage)
		r.Put("/profile/pincode", handler.setPincode)
	})
}

type pincodeRequest struct {
	Pincode string `json:"pincode"`
}

func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	profile, err := handler.service.Get(request.Context(), userID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

/*
UploadImage replaces the profile picture.

PUT /api/v1/profile/image

Request:
  - Body: multipart/form-data with an "image" file part

Response:
  - 200: Profile
  - 413: IMAGE_TOO_LARGE
  - 415: UNSUPPORTED_IMAGE
*/
func (handler *Handler) uploadImage(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	request.Body = http.MaxBytesReader(writer, request.Body, constants.MaxUploadBytes+multipartOverhead)
	file, header, err := request.FormFile(FieldImage)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(writer, request, ErrImageTooLarge)
			return
		}
		respond.Error(writer, request, validate.RequiredError(FieldImage, "An image file is required"))
		return
	}
	defer file.Close()

	profile, err := handler.service.UploadImage(request.Context(), userID, UploadInput{
		Filename: header.Filename,
		Size:     header.Size,
		Body:     file,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, profile)
}

func (handler *Handler) setPincode(writer http.ResponseWriter, request *http.Request) {
	userID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input pincodeRequest
	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Digits(FieldPincode, input.Pincode, PincodeDigits)
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.SetPincode(request.Context(), userID, input.Pincode); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// image streams a stored picture. Names are opaque, so responses are cacheable.
func (handler *Handler) image(writer http.ResponseWriter, request *http.Request) {
	object, err := handler.service.OpenImage(request.Context(), requestutil.Param(request, FieldName))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer object.Body.Close()

	writer.Header().Set("Content-Type", object.ContentType)
	if object.Size > 0 {
		writer.Header().Set("Content-Length", strconv.FormatInt(object.Size, 10))
	}
	writer.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	writer.Header().Set("X-Content-Type-Options", "nosniff")
	writer.WriteHeader(http.StatusOK)
	_, _ = io.Copy(writer, object.Body)
}
