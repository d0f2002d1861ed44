// Package storage persists photos and patient uploads. Keys are slash
// separated paths relative to the configured root, e.g.
// "<session_id>/<uuid>.jpg" or "patient-documents/<patient_id>/<doc_id>.pdf".
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lasercare/clinic/internal/platform/apperr"
)

const (
	TempPrefix     = "temp-photos"
	DocumentPrefix = "patient-documents"
	SideEffectDir  = "side-effects"
)

var ErrNotFound = errors.New("storage: object not found")

// PhotoExtensions lists the accepted image extensions for photo uploads.
var PhotoExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".heic": true,
}

// Store is implemented by the filesystem and S3 backends.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Move(ctx context.Context, from, to string) error
	// DeleteOlderThan removes every object under prefix last modified before cutoff.
	DeleteOlderThan(ctx context.Context, prefix string, cutoff time.Time) (int, error)
}

// SessionPhotoKey is the key of a photo attached to a session.
func SessionPhotoKey(sessionID uuid.UUID, ext string) string {
	return path.Join(sessionID.String(), uuid.NewString()+ext)
}

// SideEffectPhotoKey is the key of a photo attached to a side effect report.
func SideEffectPhotoKey(sessionID uuid.UUID, ext string) string {
	return path.Join(sessionID.String(), SideEffectDir, uuid.NewString()+ext)
}

// TempPhotoKey is the staging key of an uploaded photo not yet bound to a session.
func TempPhotoKey(photoID uuid.UUID, ext string) string {
	return path.Join(TempPrefix, photoID.String()+ext)
}

// DocumentKey is the key of a document uploaded for a patient.
func DocumentKey(patientID, docID uuid.UUID, ext string) string {
	return path.Join(DocumentPrefix, patientID.String(), docID.String()+ext)
}

// Ext returns the lower-cased extension of a client supplied filename.
func Ext(filename string) string {
	return strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
}

// CheckPhoto validates a photo upload against the size ceiling and the
// accepted extensions and returns the normalized extension.
func CheckPhoto(filename string, size, maxBytes int64) (string, error) {
	if maxBytes > 0 && size > maxBytes {
		return "", apperr.PayloadTooLarge("photo exceeds the configured size").
			WithDetails("max_bytes", maxBytes)
	}
	ext := Ext(filename)
	if !PhotoExtensions[ext] {
		return "", apperr.Validationf("unsupported photo extension %q", ext)
	}
	return ext, nil
}

// CheckDocument validates a document upload. Any extension is accepted.
func CheckDocument(filename string, size, maxBytes int64) (string, error) {
	if maxBytes > 0 && size > maxBytes {
		return "", apperr.PayloadTooLarge("document exceeds the configured size").
			WithDetails("max_bytes", maxBytes)
	}
	if strings.TrimSpace(filename) == "" {
		return "", apperr.Validation("filename is required")
	}
	return Ext(filename), nil
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
