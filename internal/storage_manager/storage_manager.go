package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	// BackendLocal uses a plain directory.
	BackendLocal BackendType = "local"
	// BackendGit uses a git working copy, committing every change.
	BackendGit BackendType = "git"
	// BackendS3 uses an S3 bucket.
	BackendS3 BackendType = "s3"
)

// Config holds the configuration for the StorageManager.
type Config struct {
	Backend BackendType

	LocalConfig *LocalConfig
	GitConfig   *GitProviderOptions
	S3Config    *S3Config
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	// BaseDir is created if it does not exist.
	BaseDir string
}

// S3Config holds configuration for S3 storage.
type S3Config struct {
	Bucket string
	// Prefix is an optional prefix for all keys in the bucket.
	Prefix       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	// Client overrides the client built from the default credential chain.
	Client *s3.Client
}

// StorageManager owns the configured backend.
type StorageManager struct {
	backend  BackendType
	provider FileProvider
}

// New builds the configured backend. The git backend may clone its remote,
// so ctx bounds that network call.
func New(ctx context.Context, config Config, log logger.Logger) (*StorageManager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}

	var provider FileProvider

	switch config.Backend {
	case BackendLocal:
		if config.LocalConfig == nil || config.LocalConfig.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		if err := os.MkdirAll(config.LocalConfig.BaseDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
		provider = NewLocalFileProvider(config.LocalConfig.BaseDir)

	case BackendGit:
		if config.GitConfig == nil {
			return nil, fmt.Errorf("git config is required for git backend")
		}
		opts := *config.GitConfig
		if opts.Logger == nil {
			opts.Logger = log
		}
		gp, err := NewGitFileProvider(ctx, opts)
		if err != nil {
			return nil, err
		}
		provider = gp

	case BackendS3:
		if config.S3Config == nil || config.S3Config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		client := config.S3Config.Client
		if client == nil {
			var err error
			client, err = NewS3SDKClient(ctx, config.S3Config.Region, config.S3Config.Endpoint, config.S3Config.UsePathStyle)
			if err != nil {
				return nil, err
			}
		}
		provider = NewS3FileProvider(config.S3Config.Bucket, config.S3Config.Prefix, NewAWSS3Client(client))

	default:
		return nil, fmt.Errorf("unsupported backend type: %q", config.Backend)
	}

	log.Info("Storage backend ready", logger.StringField("backend", string(config.Backend)))

	return &StorageManager{backend: config.Backend, provider: provider}, nil
}

// NewWithProvider wraps an existing provider, mainly for tests.
func NewWithProvider(backend BackendType, provider FileProvider) *StorageManager {
	return &StorageManager{backend: backend, provider: provider}
}

// GetProvider returns a FileProvider scoped to namespace. An empty
// namespace is the store root.
func (m *StorageManager) GetProvider(namespace string) FileProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedFileProvider(m.provider, namespace)
}

// Backend returns the configured backend type.
func (m *StorageManager) Backend() BackendType {
	return m.backend
}

// Snapshotter returns the backend's native snapshotter when it has one
// (git tree hashes) and a content-hashing one otherwise.
func (m *StorageManager) Snapshotter() Snapshotter {
	if s, ok := m.provider.(Snapshotter); ok {
		return s
	}
	return NewContentSnapshotter(m.provider)
}

// Sync pulls remote changes when the backend supports it.
func (m *StorageManager) Sync(ctx context.Context) error {
	if s, ok := m.provider.(Syncer); ok {
		return s.Sync(ctx)
	}
	return nil
}

// Check verifies the backend answers, for readiness probes.
func (m *StorageManager) Check(ctx context.Context) error {
	if _, err := m.provider.Exists(ctx, ".probe"); err != nil {
		return fmt.Errorf("store unavailable: %w", err)
	}
	return nil
}

// Close pushes pending git commits.
func (m *StorageManager) Close(ctx context.Context) error {
	if gp, ok := m.provider.(*GitFileProvider); ok {
		return gp.Flush(ctx)
	}
	return nil
}
