package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
)

// Upload is a file received from a client, detached from the transport.
type Upload struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FromMultipart adapts a multipart file header.
func FromMultipart(fh *multipart.FileHeader) Upload {
	return Upload{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromBytes builds an in-memory upload.
func FromBytes(filename, contentType string, data []byte) Upload {
	return Upload{
		Filename:    filename,
		Size:        int64(len(data)),
		ContentType: contentType,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// PutUpload streams u into the store under key.
func PutUpload(ctx context.Context, s Store, key string, u Upload, contentType string) (int64, error) {
	f, err := u.Open()
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return s.Put(ctx, key, f, contentType)
}

// ContentTypeFor guesses a content type from an extension when the client
// did not send one.
func ContentTypeFor(ext, sent string) string {
	if sent != "" && !strings.HasPrefix(sent, "application/octet-stream") {
		return sent
	}
	switch ext {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}
