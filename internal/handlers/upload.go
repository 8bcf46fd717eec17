package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/lehigh-university-libraries/retoucher/internal/images"
	"github.com/lehigh-university-libraries/retoucher/internal/models"
)

// maxBatchFiles bounds one batch upload.
const maxBatchFiles = 50

func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	s, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}

	var snap *models.Snapshot
	// Check if this is a JSON request with image URL
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var request struct {
			ImageURL string `json:"image_url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			h.writeError(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
			return
		}
		if request.ImageURL == "" {
			h.writeError(w, "image_url is required", http.StatusBadRequest)
			return
		}
		fetched, err := h.fetcher.Fetch(r.Context(), request.ImageURL)
		if err != nil {
			h.writeError(w, "Failed to process image URL: "+err.Error(), http.StatusBadRequest)
			return
		}
		snap = fetched
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, images.MaxUploadBytes+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			file, header, err = r.FormFile("files")
			if err != nil {
				h.writeError(w, "Failed to read file: "+err.Error(), http.StatusBadRequest)
				return
			}
		}
		defer file.Close()
		snap, err = readPart(file, header)
		if err != nil {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := s.Open(snap); err != nil {
		h.writeErr(w, err)
		return
	}
	h.writeJSON(w, s.State())
}

func readPart(file multipart.File, header *multipart.FileHeader) (*models.Snapshot, error) {
	if header.Size > images.MaxUploadBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", header.Filename, images.MaxUploadBytes)
	}
	data, err := io.ReadAll(io.LimitReader(file, images.MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", header.Filename, err)
	}
	if len(data) > images.MaxUploadBytes {
		return nil, fmt.Errorf("%s is larger than %d bytes", header.Filename, images.MaxUploadBytes)
	}
	snap, err := images.NewSnapshot(header.Filename, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", header.Filename, err)
	}
	return snap, nil
}

// readSources collects batch inputs from a multipart "files" field or a JSON
// list of URLs.
func (h *Handler) readSources(r *http.Request) ([]*models.Snapshot, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		var request struct {
			URLs []string `json:"urls"`
		}
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		if len(request.URLs) > maxBatchFiles {
			return nil, fmt.Errorf("at most %d images per batch", maxBatchFiles)
		}
		sources := make([]*models.Snapshot, 0, len(request.URLs))
		for _, u := range request.URLs {
			snap, err := h.fetcher.Fetch(r.Context(), u)
			if err != nil {
				return nil, err
			}
			sources = append(sources, snap)
		}
		return sources, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("failed to parse form: %w", err)
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) > maxBatchFiles {
		return nil, fmt.Errorf("at most %d images per batch", maxBatchFiles)
	}
	sources := make([]*models.Snapshot, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
		}
		snap, err := readPart(file, header)
		file.Close()
		if err != nil {
			return nil, err
		}
		sources = append(sources, snap)
	}
	return sources, nil
}
