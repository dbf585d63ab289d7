package handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/darigo/apiserver/internal/services"
	"github.com/darigo/apiserver/internal/storage"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxMultipartMemory = 32 << 20

// ObjectOpener streams stored media.
type ObjectOpener interface {
	Open(ctx context.Context, key string) (storage.Object, error)
}

// UploadHandler serves stored media under /uploads.
type UploadHandler struct {
	objects ObjectOpener
	logger  *zap.Logger
}

func NewUploadHandler(objects ObjectOpener, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{objects: objects, logger: logger}
}

// UploadRouter registers the media route on the given router.
func UploadRouter(r chi.Router, handler *UploadHandler) {
	r.Get("/*", handler.ServeObject)
}

func (h *UploadHandler) ServeObject(w http.ResponseWriter, r *http.Request) {
	if h.objects == nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	obj, err := h.objects.Open(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.logger.Error("failed to open object", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer obj.Body.Close()

	contentType := obj.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.logger.Warn("media stream interrupted", zap.Error(err))
	}
}

type receivedUpload struct {
	services.Upload
	file multipart.File
}

func (u receivedUpload) close() {
	_ = u.file.Close()
}

// readUpload parses a multipart form and opens its single file field.
// The content type is sniffed when the client did not send one.
func readUpload(w http.ResponseWriter, r *http.Request, maxSize int64) (receivedUpload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+(1<<20))
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return receivedUpload{}, errors.New("invalid multipart form")
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		return receivedUpload{}, errors.New("file is required")
	}
	if header.Size > maxSize {
		_ = file.Close()
		return receivedUpload{}, errors.New("uploaded file too large")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		var sniff [512]byte
		n, _ := io.ReadFull(file, sniff[:])
		contentType = http.DetectContentType(sniff[:n])
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			_ = file.Close()
			return receivedUpload{}, errors.New("failed to read upload")
		}
	}

	return receivedUpload{
		Upload: services.Upload{
			Filename:    header.Filename,
			ContentType: contentType,
			Size:        header.Size,
			Body:        file,
		},
		file: file,
	}, nil
}
