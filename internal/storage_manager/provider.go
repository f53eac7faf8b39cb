// Package storage_manager provides the file storage behind the snippet store.
// A single backend (local directory, git working copy or S3 bucket) is
// chosen at startup and handed out as prefix-scoped FileProviders.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned (possibly wrapped) by Read when the file does not exist.
var ErrNotFound = errors.New("object not found")

// ErrInvalidPath is returned for paths that are absolute or escape the store root.
var ErrInvalidPath = errors.New("invalid path")

// FileProvider defines the interface for file storage operations.
// Paths are slash separated and relative to the provider root.
type FileProvider interface {
	// Read reads the entire content of a file
	Read(ctx context.Context, path string) ([]byte, error)

	// Write writes data to a file, creating it if it doesn't exist
	Write(ctx context.Context, path string, data []byte) error

	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// Delete removes a file. Deleting a missing file is not an error.
	Delete(ctx context.Context, path string) error

	// List returns all files under prefix
	List(ctx context.Context, prefix string) ([]string, error)
}

// cleanPath normalises p and rejects anything that would leave the root.
func cleanPath(p string) (string, error) {
	p = filepath.ToSlash(p)
	if strings.HasPrefix(p, "/") {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
	}
	cleaned := path.Clean(p)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q escapes the store", ErrInvalidPath, p)
	}
	if cleaned == "." {
		return "", nil
	}
	return cleaned, nil
}

// LocalFileProvider implements FileProvider for local filesystem.
type LocalFileProvider struct {
	baseDir string
}

// NewLocalFileProvider creates a new local file provider.
func NewLocalFileProvider(baseDir string) *LocalFileProvider {
	return &LocalFileProvider{baseDir: baseDir}
}

func (p *LocalFileProvider) resolve(name string) (string, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(p.baseDir, filepath.FromSlash(cleaned)), nil
}

// Read reads a file from the local filesystem.
func (p *LocalFileProvider) Read(ctx context.Context, name string) ([]byte, error) {
	return readFile(p.resolve(name))
}

// Write writes data to a local file, creating parent directories.
func (p *LocalFileProvider) Write(ctx context.Context, name string, data []byte) error {
	fullPath, err := p.resolve(name)
	if err != nil {
		return err
	}
	return writeFile(fullPath, data)
}

// Exists checks if a file exists on the local filesystem.
func (p *LocalFileProvider) Exists(ctx context.Context, name string) (bool, error) {
	fullPath, err := p.resolve(name)
	if err != nil {
		return false, err
	}
	return fileExists(fullPath)
}

// Delete removes a file from the local filesystem.
func (p *LocalFileProvider) Delete(ctx context.Context, name string) error {
	fullPath, err := p.resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// List returns files under prefix in the local filesystem.
func (p *LocalFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	return walkFiles(p.baseDir, prefix, false)
}

func readFile(fullPath string, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(fullPath) //nolint:gosec // G304: path is confined to the store root by cleanPath
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filepath.Base(fullPath))
	}
	return data, err
}

func writeFile(fullPath string, data []byte) error {
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return os.WriteFile(fullPath, data, 0o600)
}

func fileExists(fullPath string) (bool, error) {
	info, err := os.Stat(fullPath)
	if err == nil {
		return !info.IsDir(), nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// walkFiles lists regular files below root/prefix as slash separated paths
// relative to root. A missing prefix yields an empty list.
func walkFiles(root, prefix string, skipGit bool) ([]string, error) {
	cleaned, err := cleanPath(prefix)
	if err != nil {
		return nil, err
	}

	result := []string{}
	err = filepath.WalkDir(filepath.Join(root, filepath.FromSlash(cleaned)), func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if skipGit && d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, err := filepath.Rel(root, p); err == nil {
			result = append(result, filepath.ToSlash(rel))
		}
		return nil
	})
	return result, err
}

// PrefixedFileProvider scopes another FileProvider to a sub-directory so
// several components can share one backend.
type PrefixedFileProvider struct {
	provider FileProvider
	prefix   string
}

// NewPrefixedFileProvider creates a new prefixed file provider.
func NewPrefixedFileProvider(provider FileProvider, prefix string) *PrefixedFileProvider {
	return &PrefixedFileProvider{provider: provider, prefix: strings.Trim(prefix, "/")}
}

// Read reads a file with the prefix applied.
func (p *PrefixedFileProvider) Read(ctx context.Context, name string) ([]byte, error) {
	full, err := p.prefixPath(name)
	if err != nil {
		return nil, err
	}
	return p.provider.Read(ctx, full)
}

// Write writes data with the prefix applied.
func (p *PrefixedFileProvider) Write(ctx context.Context, name string, data []byte) error {
	full, err := p.prefixPath(name)
	if err != nil {
		return err
	}
	return p.provider.Write(ctx, full, data)
}

// Exists checks if a file exists with the prefix applied.
func (p *PrefixedFileProvider) Exists(ctx context.Context, name string) (bool, error) {
	full, err := p.prefixPath(name)
	if err != nil {
		return false, err
	}
	return p.provider.Exists(ctx, full)
}

// Delete removes a file with the prefix applied.
func (p *PrefixedFileProvider) Delete(ctx context.Context, name string) error {
	full, err := p.prefixPath(name)
	if err != nil {
		return err
	}
	return p.provider.Delete(ctx, full)
}

// List returns files under prefix, relative to this provider's root.
func (p *PrefixedFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	full, err := p.prefixPath(prefix)
	if err != nil {
		return nil, err
	}
	files, err := p.provider.List(ctx, full)
	if err != nil {
		return nil, err
	}

	if p.prefix == "" {
		return files, nil
	}

	result := make([]string, 0, len(files))
	for _, file := range files {
		if rel, ok := strings.CutPrefix(file, p.prefix+"/"); ok {
			result = append(result, rel)
		}
	}
	return result, nil
}

func (p *PrefixedFileProvider) prefixPath(name string) (string, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return "", err
	}
	if p.prefix == "" {
		return cleaned, nil
	}
	if cleaned == "" {
		return p.prefix, nil
	}
	return p.prefix + "/" + cleaned, nil
}
