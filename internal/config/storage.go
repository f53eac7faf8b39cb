package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/lewisedginton/brainoverflow/internal/storage_manager"
)

// StorageConfig holds snippet store configuration
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" yaml:"backend" default:"git"` // "local", "git" or "s3"
	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir"`           // defaults to ~/BrainOverflow

	S3Bucket       string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix       string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`
	S3Region       string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	S3Endpoint     string `env:"STORAGE_S3_ENDPOINT" yaml:"s3_endpoint"` // S3-compatible stores
	S3UsePathStyle bool   `env:"STORAGE_S3_USE_PATH_STYLE" yaml:"s3_use_path_style"`

	GitPath           string        `env:"STORAGE_GIT_PATH" yaml:"git_path"` // defaults to ~/BrainOverflow
	GitRemoteURL      string        `env:"STORAGE_GIT_REMOTE_URL" yaml:"git_remote_url"`
	GitRemoteName     string        `env:"STORAGE_GIT_REMOTE_NAME" yaml:"git_remote_name" default:"origin"`
	GitAuthorName     string        `env:"STORAGE_GIT_AUTHOR_NAME" yaml:"git_author_name" default:"BrainOverflow"`
	GitAuthorEmail    string        `env:"STORAGE_GIT_AUTHOR_EMAIL" yaml:"git_author_email" default:"brainoverflow@localhost"`
	GitPushDebounce   time.Duration `env:"STORAGE_GIT_PUSH_DEBOUNCE" yaml:"git_push_debounce" default:"5s"`
	GitAuthUsername   string        `env:"STORAGE_GIT_AUTH_USERNAME" yaml:"git_auth_username"`
	GitAuthPassword   string        `env:"STORAGE_GIT_AUTH_PASSWORD" yaml:"git_auth_password"`
	GitSSHKeyPath     string        `env:"STORAGE_GIT_SSH_KEY_PATH" yaml:"git_ssh_key_path"`
	GitSSHKeyPassword string        `env:"STORAGE_GIT_SSH_KEY_PASSWORD" yaml:"git_ssh_key_password"`
}

// Validate checks backend specific settings.
func (s StorageConfig) Validate() error {
	var result error

	switch storage_manager.BackendType(s.Backend) {
	case storage_manager.BackendLocal, storage_manager.BackendGit:
	case storage_manager.BackendS3:
		if s.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage_s3_bucket is required for the s3 backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("storage backend must be one of [local, git, s3], got %q", s.Backend))
	}

	if s.GitPushDebounce < 0 {
		result = multierror.Append(result, fmt.Errorf("git_push_debounce cannot be negative"))
	}
	if s.GitSSHKeyPath != "" && s.GitAuthPassword != "" {
		result = multierror.Append(result, fmt.Errorf("configure either ssh key or http password auth for git, not both"))
	}

	return result
}

// Path is the store location for display: a directory or s3://bucket/prefix.
func (s StorageConfig) Path() string {
	switch storage_manager.BackendType(s.Backend) {
	case storage_manager.BackendS3:
		return "s3://" + s.S3Bucket + "/" + s.S3Prefix
	case storage_manager.BackendGit:
		return orDefault(s.GitPath, DefaultStoreDir())
	default:
		return orDefault(s.LocalDir, DefaultStoreDir())
	}
}

// ManagerConfig translates the settings into a storage_manager.Config.
func (s StorageConfig) ManagerConfig() storage_manager.Config {
	cfg := storage_manager.Config{Backend: storage_manager.BackendType(s.Backend)}

	switch cfg.Backend {
	case storage_manager.BackendLocal:
		cfg.LocalConfig = &storage_manager.LocalConfig{BaseDir: s.Path()}
	case storage_manager.BackendGit:
		cfg.GitConfig = &storage_manager.GitProviderOptions{
			Path:           s.Path(),
			AuthorName:     s.GitAuthorName,
			AuthorEmail:    s.GitAuthorEmail,
			InitIfMissing:  true,
			RemoteURL:      s.GitRemoteURL,
			RemoteName:     s.GitRemoteName,
			Username:       s.GitAuthUsername,
			Password:       s.GitAuthPassword,
			SSHKeyPath:     s.GitSSHKeyPath,
			SSHKeyPassword: s.GitSSHKeyPassword,
			PushDelay:      s.GitPushDebounce,
		}
	case storage_manager.BackendS3:
		cfg.S3Config = &storage_manager.S3Config{
			Bucket:       s.S3Bucket,
			Prefix:       s.S3Prefix,
			Region:       s.S3Region,
			Endpoint:     s.S3Endpoint,
			UsePathStyle: s.S3UsePathStyle,
		}
	}
	return cfg
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
