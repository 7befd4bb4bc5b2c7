package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const prefix = "assets"

var ErrInvalidRef = errors.New("invalid asset reference")

// Storage keeps overlay assets in an S3-compatible bucket via MinIO.
// ffmpeg needs a real file for its movie source, so assets are mirrored
// into a local directory on first use.
type Storage struct {
	client     *minio.Client
	bucketName string
	mirrorDir  string
}

// NewStorage creates a new Storage instance connected to the specified MinIO server.
// If the bucket does not exist, it will be created automatically.
func NewStorage(ctx context.Context, endpoint, accessKey, secretKey, bucketName string, useSSL bool, mirrorDir string) (*Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, bucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	if err := os.MkdirAll(mirrorDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}

	return &Storage{
		client:     client,
		bucketName: bucketName,
		mirrorDir:  mirrorDir,
	}, nil
}

// Save uploads src under the assets prefix and returns the reference.
func (s *Storage) Save(ctx context.Context, name string, src io.Reader) (string, error) {
	if err := validRef(name); err != nil {
		return "", err
	}

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucketName, objectName(name), src, -1, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to save file: %w", err)
	}

	return name, nil
}

// Open returns a reader over the stored object.
func (s *Storage) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := validRef(ref); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, objectName(ref), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load file: %w", err)
	}

	return obj, nil
}

// LocalPath downloads ref into the mirror directory unless it is already there.
func (s *Storage) LocalPath(ctx context.Context, ref string) (string, error) {
	if err := validRef(ref); err != nil {
		return "", err
	}

	local := filepath.Join(s.mirrorDir, ref)
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}

	if err := s.client.FGetObject(ctx, s.bucketName, objectName(ref), local, minio.GetObjectOptions{}); err != nil {
		return "", fmt.Errorf("failed to mirror file: %w", err)
	}

	return local, nil
}

// Delete removes the object and its local mirror.
func (s *Storage) Delete(ctx context.Context, ref string) error {
	if err := validRef(ref); err != nil {
		return err
	}

	if err := s.client.RemoveObject(ctx, s.bucketName, objectName(ref), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}

	if err := os.Remove(filepath.Join(s.mirrorDir, ref)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete mirror: %w", err)
	}

	return nil
}

func objectName(ref string) string {
	return path.Join(prefix, ref)
}

func validRef(ref string) error {
	if ref == "" || ref != filepath.Base(ref) || ref == "." || ref == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}
