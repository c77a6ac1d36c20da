package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/manutenzioni/internal/auth"
	"github.com/dukerupert/manutenzioni/internal/storage"
	"github.com/dukerupert/manutenzioni/internal/task"
)

// multipartOverhead is allowed on top of the file itself for headers and
// boundaries.
const multipartOverhead = 1 << 20

type ImageHandler struct {
	svc    *task.Service
	logger *slog.Logger
}

func NewImageHandler(svc *task.Service, logger *slog.Logger) *ImageHandler {
	return &ImageHandler{svc: svc, logger: logger}
}

func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	images, err := h.svc.Images(r.Context(), taskID)
	if err != nil {
		fail(w, h.logger, err, "failed to list images")
		return
	}
	if images == nil {
		images = []task.ImageView{}
	}
	writeJSON(w, http.StatusOK, images)
}

// readUpload reads the "file" part of a multipart form, refusing files
// larger than limit.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (task.Upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return task.Upload{}, task.ErrImageTooLarge
		}
		return task.Upload{}, errors.New("missing file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return task.Upload{}, err
	}
	if int64(len(data)) > limit {
		return task.Upload{}, task.ErrImageTooLarge
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return task.Upload{FileName: header.Filename, ContentType: contentType, Data: data}, nil
}

func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	u, err := readUpload(w, r, task.MaxImageSize)
	if err != nil {
		if statusFor(err) == http.StatusInternalServerError {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fail(w, h.logger, err, "failed to read upload")
		return
	}
	img, err := h.svc.UploadImage(r.Context(), taskID, auth.UserID(r.Context()), u)
	if err != nil {
		fail(w, h.logger, err, "failed to upload image")
		return
	}
	writeJSON(w, http.StatusCreated, img)
}

func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	imageID, err := parseIDParam(r, "image_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid image id")
		return
	}
	if err := h.svc.DeleteImage(r.Context(), taskID, imageID); err != nil {
		fail(w, h.logger, err, "failed to delete image")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Opener reads stored objects back.
type Opener interface {
	Open(ctx context.Context, bucket storage.Bucket, key string) (io.ReadCloser, string, error)
}

type FileHandler struct {
	blobs  Opener
	logger *slog.Logger
}

func NewFileHandler(blobs Opener, logger *slog.Logger) *FileHandler {
	return &FileHandler{blobs: blobs, logger: logger}
}

// Serve streams an object when no public bucket URL is configured.
func (h *FileHandler) Serve(w http.ResponseWriter, r *http.Request) {
	bucket := storage.Bucket(r.PathValue("bucket"))
	if bucket != storage.BucketTaskImages && bucket != storage.BucketAvatars {
		writeError(w, http.StatusNotFound, "unknown bucket")
		return
	}
	key := r.PathValue("key")
	if key == "" || strings.Contains(key, "..") {
		writeError(w, http.StatusBadRequest, "invalid key")
		return
	}

	body, contentType, err := h.blobs.Open(r.Context(), bucket, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		if errors.Is(err, storage.ErrDisabled) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		fail(w, h.logger, err, "failed to open file")
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("stream file", "bucket", bucket, "key", key, "error", err)
	}
}
