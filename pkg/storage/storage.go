package storage

import (
	"context"
	"fmt"
	"io"
	"path"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// StoredObject describes a persisted attachment blob.
type StoredObject struct {
	URL      string
	Size     int64
	MimeType string
}

// BlobStorage persists attachment bytes and yields the public projection the
// message pipeline embeds. Implementations own the bucket mechanics; the core
// only sees this contract.
type BlobStorage interface {
	Store(ctx context.Context, r io.Reader, mimeType, folder, name string) (*StoredObject, error)
}

// FirebaseStorage stores blobs in the project's Firebase Storage bucket.
type FirebaseStorage struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewFirebaseStorage creates a new FirebaseStorage over an initialized bucket
func NewFirebaseStorage(bucket *gcs.BucketHandle, bucketName string) *FirebaseStorage {
	return &FirebaseStorage{bucket: bucket, bucketName: bucketName}
}

// Store uploads the object under folder/<uuid>-<name> and returns its public
// URL, size and content type.
func (s *FirebaseStorage) Store(ctx context.Context, r io.Reader, mimeType, folder, name string) (*StoredObject, error) {
	key := path.Join(folder, uuid.NewString()+"-"+name)

	w := s.bucket.Object(key).NewWriter(ctx)
	w.ContentType = mimeType
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to upload object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize object %s: %w", key, err)
	}

	attrs := w.Attrs()
	return &StoredObject{
		URL:      fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucketName, key),
		Size:     attrs.Size,
		MimeType: attrs.ContentType,
	}, nil
}
