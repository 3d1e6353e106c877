package main

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

const maxImageBytes = 10 * 1024 * 1024 // 10MB

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// parseImageForm extracts the single "image" file from a multipart request
// and checks its size and content type before anything is uploaded.
func (app *application) parseImageForm(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes)

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		return nil, nil, fmt.Errorf("parse form: %w", err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, nil, fmt.Errorf("image file is required: %w", err)
	}

	if header.Size > maxImageBytes {
		file.Close()
		return nil, nil, fmt.Errorf("image exceeds the 10MB limit")
	}

	// Sniff the actual content rather than trusting the declared header.
	buf := make([]byte, 512)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		file.Close()
		return nil, nil, fmt.Errorf("seek file: %w", err)
	}

	contentType := http.DetectContentType(buf[:n])
	if !allowedImageTypes[contentType] {
		file.Close()
		return nil, nil, fmt.Errorf("unsupported image type %s", contentType)
	}

	return file, header, nil
}

// versionedURL appends a cache-busting version parameter so clients that
// cache by URL pick up a replaced image immediately.
func versionedURL(imageURL string) string {
	return fmt.Sprintf("%s?v=%d", imageURL, time.Now().Unix())
}
