package api

import (
	"errors"
	"io"
	"net/http"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/basel-ax/fitroom/internal/domain"
)

const maxFileSize = 10 * 1024 * 1024 // 10MB

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		writeError(w, http.StatusServiceUnavailable, "image storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFileSize+1<<20)
	if err := r.ParseMultipartForm(maxFileSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file size exceeds 10MB")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()

	if header.Size > maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file size exceeds 10MB")
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxFileSize+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) > maxFileSize {
		writeError(w, http.StatusRequestEntityTooLarge, "file size exceeds 10MB")
		return
	}

	format, err := domain.DetectImageFormat(data)
	if err != nil {
		writeError(w, http.StatusUnsupportedMediaType, "unsupported image format")
		return
	}

	objectName := path.Join("uploads", time.Now().UTC().Format("2006/01/02"), uuid.NewString()+format.Extension())
	url, err := s.images.Put(r.Context(), objectName, format.ContentType(), data)
	if err != nil {
		s.logger.Error("upload.failed", "object", objectName, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	s.logger.Info("upload.stored", "object", objectName, "bytes", len(data), "format", format)
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
