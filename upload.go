package main

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const maxLogoBytes = 2 << 20 // 2MB

var allowedLogoExts = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".svg":  "image/svg+xml",
}

// HandleLogoUpload accepts a multipart brand logo and stores it under the
// upload dir with a random name. The returned path is the opaque reference
// a registration submission carries in its logo field.
func (a *App) HandleLogoUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLogoBytes)
	if err := r.ParseMultipartForm(maxLogoBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, ErrFileTooLarge)
			return
		}
		writeFailure(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}
	file, header, err := r.FormFile("logoImage")
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "logoImage file is required")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	wantType, ok := allowedLogoExts[ext]
	if !ok {
		writeError(w, ErrInvalidFileType)
		return
	}

	// Sniff the leading bytes; SVG is text so the extension check stands alone.
	head := make([]byte, 512)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		writeError(w, err)
		return
	}
	if ext != ".svg" {
		if got := http.DetectContentType(head[:n]); got != wantType {
			writeError(w, ErrInvalidFileType)
			return
		}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeError(w, err)
		return
	}

	if err := os.MkdirAll(a.cfg.UploadDir, 0o755); err != nil {
		writeError(w, err)
		return
	}
	name := "brand-logo-" + uuid.NewString() + ext
	dstPath := filepath.Join(a.cfg.UploadDir, name)
	dst, err := os.Create(dstPath)
	if err != nil {
		writeError(w, err)
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(dstPath)
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "Logo uploaded", map[string]string{"logo": dstPath})
}
