package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"strings"
)

// S3FileProvider implements FileProvider on top of an S3 bucket. Keys are
// "<prefix>/<path>".
type S3FileProvider struct {
	bucket   string
	prefix   string
	s3Client S3Client
}

// NewS3FileProvider creates a new S3 file provider.
func NewS3FileProvider(bucket, prefix string, s3Client S3Client) *S3FileProvider {
	return &S3FileProvider{
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
		s3Client: s3Client,
	}
}

// Read reads a file from S3.
func (p *S3FileProvider) Read(ctx context.Context, name string) ([]byte, error) {
	key, err := p.key(name)
	if err != nil {
		return nil, err
	}
	return p.s3Client.GetObject(ctx, p.bucket, key)
}

// Write writes data to S3.
func (p *S3FileProvider) Write(ctx context.Context, name string, data []byte) error {
	key, err := p.key(name)
	if err != nil {
		return err
	}
	return p.s3Client.PutObject(ctx, p.bucket, key, data)
}

// Exists returns (false, nil) only for "not found"; other failures are errors.
func (p *S3FileProvider) Exists(ctx context.Context, name string) (bool, error) {
	key, err := p.key(name)
	if err != nil {
		return false, err
	}
	if err := p.s3Client.HeadObject(ctx, p.bucket, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes a file from S3.
func (p *S3FileProvider) Delete(ctx context.Context, name string) error {
	key, err := p.key(name)
	if err != nil {
		return err
	}
	return p.s3Client.DeleteObject(ctx, p.bucket, key)
}

// List returns files under prefix relative to the provider prefix.
func (p *S3FileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	s3Prefix, err := p.key(prefix)
	if err != nil {
		return nil, err
	}
	keys, err := p.s3Client.ListObjects(ctx, p.bucket, s3Prefix)
	if err != nil {
		return nil, err
	}

	root := ""
	if p.prefix != "" {
		root = p.prefix + "/"
	}

	result := make([]string, 0, len(keys))
	for _, key := range keys {
		if rel, ok := strings.CutPrefix(key, root); ok && rel != "" && !strings.HasSuffix(rel, "/") {
			result = append(result, rel)
		}
	}
	return result, nil
}

func (p *S3FileProvider) key(name string) (string, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return "", err
	}
	switch {
	case p.prefix == "":
		return cleaned, nil
	case cleaned == "":
		return p.prefix + "/", nil
	default:
		return p.prefix + "/" + cleaned, nil
	}
}
