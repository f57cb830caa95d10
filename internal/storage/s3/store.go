// Package s3 keeps the snapshot documents in an S3-compatible bucket.
// The service stores exactly two kinds of objects, the database list
// and the schema catalog, so the store is a thin document layer rather
// than a general blob API.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sqlsage/sqlsage/internal/storage"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

// documents is the slice of the S3 API the snapshot store needs.
type documents interface {
	write(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	open(ctx context.Context, key string) (io.ReadCloser, error)
	describe(ctx context.Context, key string) (storage.ObjectInfo, error)
	remove(ctx context.Context, key string) error
}

type Store struct {
	docs   documents
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	host, secure := endpointHost(cfg)
	if host == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	if cfg.AutoCreateBucket {
		if err := ensureBucket(ctx, client, bucket, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return &Store{
		docs:   &minioDocuments{client: client, bucket: bucket},
		prefix: documentPrefix(cfg.Prefix),
	}, nil
}

// endpointHost strips an optional scheme off the configured endpoint;
// a scheme overrides the UseSSL flag.
func endpointHost(cfg Config) (string, bool) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if host, ok := strings.CutPrefix(endpoint, "https://"); ok {
		return host, true
	}
	if host, ok := strings.CutPrefix(endpoint, "http://"); ok {
		return host, false
	}
	return endpoint, cfg.UseSSL
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket, region string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}
	return nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	docKey, err := s.documentKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	info, err := s.docs.write(ctx, docKey, body, size, contentType)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("write snapshot document %q: %w", docKey, err)
	}
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	docKey, err := s.documentKey(key)
	if err != nil {
		return nil, err
	}
	reader, err := s.docs.open(ctx, docKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, storage.ErrObjectNotFound
		}
		return nil, fmt.Errorf("read snapshot document %q: %w", docKey, err)
	}
	return reader, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	docKey, err := s.documentKey(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.docs.describe(ctx, docKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.ObjectInfo{}, storage.ErrObjectNotFound
		}
		return storage.ObjectInfo{}, fmt.Errorf("stat snapshot document %q: %w", docKey, err)
	}
	return info, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	docKey, err := s.documentKey(key)
	if err != nil {
		return err
	}
	if err := s.docs.remove(ctx, docKey); err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil
		}
		return fmt.Errorf("delete snapshot document %q: %w", docKey, err)
	}
	return nil
}

// documentKey validates a snapshot document name and places it under
// the configured prefix. Documents are flat names; directory layout
// belongs to the prefix.
func (s *Store) documentKey(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\") {
		return "", fmt.Errorf("invalid snapshot document name %q", name)
	}
	if s.prefix == "" {
		return name, nil
	}
	return s.prefix + "/" + name, nil
}

func documentPrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return ""
	}
	prefix = path.Clean(prefix)
	if prefix == "." {
		return ""
	}
	return prefix
}

type minioDocuments struct {
	client *minio.Client
	bucket string
}

func (d *minioDocuments) write(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	info, err := d.client.PutObject(ctx, d.bucket, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return storage.ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag}, nil
}

func (d *minioDocuments) open(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapMinioErr(err)
	}
	// GetObject is lazy; Stat forces the not-found error out now.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, mapMinioErr(err)
	}
	return obj, nil
}

func (d *minioDocuments) describe(ctx context.Context, key string) (storage.ObjectInfo, error) {
	obj, err := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, mapMinioErr(err)
	}
	return storage.ObjectInfo{Key: obj.Key, Size: obj.Size, ETag: obj.ETag, LastModified: obj.LastModified}, nil
}

func (d *minioDocuments) remove(ctx context.Context, key string) error {
	if err := d.client.RemoveObject(ctx, d.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return mapMinioErr(err)
	}
	return nil
}

func mapMinioErr(err error) error {
	var response minio.ErrorResponse
	if errors.As(err, &response) {
		switch response.Code {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return storage.ErrObjectNotFound
		}
	}
	return err
}
