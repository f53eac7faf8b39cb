package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileProvider(t *testing.T) {
	ctx := context.Background()
	p := NewLocalFileProvider(t.TempDir())

	require.NoError(t, p.Write(ctx, "a.md", []byte("alpha")))
	require.NoError(t, p.Write(ctx, "nested/b.md", []byte("beta")))

	data, err := p.Read(ctx, "a.md")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(data))

	exists, err := p.Exists(ctx, "nested/b.md")
	require.NoError(t, err)
	assert.True(t, exists)

	files, err := p.List(ctx, "")
	require.NoError(t, err)
	sort.Strings(files)
	assert.Equal(t, []string{"a.md", "nested/b.md"}, files)

	require.NoError(t, p.Delete(ctx, "a.md"))
	require.NoError(t, p.Delete(ctx, "a.md"), "deleting twice is fine")

	_, err = p.Read(ctx, "a.md")
	assert.True(t, errors.Is(err, ErrNotFound))

	files, err = p.List(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPathsCannotEscapeRoot(t *testing.T) {
	ctx := context.Background()
	p := NewLocalFileProvider(t.TempDir())

	for _, bad := range []string{"../x.md", "/etc/passwd", "a/../../x.md"} {
		assert.ErrorIs(t, p.Write(ctx, bad, []byte("x")), ErrInvalidPath, bad)
		_, err := p.Read(ctx, bad)
		assert.ErrorIs(t, err, ErrInvalidPath, bad)
	}
}

func TestPrefixedFileProvider(t *testing.T) {
	ctx := context.Background()
	root := NewLocalFileProvider(t.TempDir())
	snippets := NewPrefixedFileProvider(root, "snippets")

	require.NoError(t, snippets.Write(ctx, "one.md", []byte("1")))
	require.NoError(t, root.Write(ctx, "other/two.md", []byte("2")))

	files, err := snippets.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"one.md"}, files)

	data, err := root.Read(ctx, "snippets/one.md")
	require.NoError(t, err)
	assert.Equal(t, "1", string(data))

	_, err = snippets.Read(ctx, "../other/two.md")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: map[string][]byte{}} }

func (f *fakeS3) GetObject(_ context.Context, bucket, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, ErrNotFound
	}
	return data, nil
}

func (f *fakeS3) PutObject(_ context.Context, bucket, key string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[bucket+"/"+key] = data
	return nil
}

func (f *fakeS3) HeadObject(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.objects[bucket+"/"+key]; !ok {
		return ErrNotFound
	}
	return nil
}

func (f *fakeS3) DeleteObject(_ context.Context, bucket, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeS3) ListObjects(_ context.Context, bucket, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for k := range f.objects {
		if key, ok := strings.CutPrefix(k, bucket+"/"); ok && strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func TestS3FileProvider(t *testing.T) {
	ctx := context.Background()
	client := newFakeS3()
	p := NewS3FileProvider("bucket", "store/", client)

	require.NoError(t, p.Write(ctx, "a.md", []byte("alpha")))
	require.NoError(t, p.Write(ctx, "b.md", []byte("beta")))
	assert.Contains(t, client.objects, "bucket/store/a.md")

	exists, err := p.Exists(ctx, "a.md")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = p.Exists(ctx, "zzz.md")
	require.NoError(t, err)
	assert.False(t, exists)

	files, err := p.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, files)

	require.NoError(t, p.Delete(ctx, "a.md"))
	_, err = p.Read(ctx, "a.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentSnapshotter(t *testing.T) {
	ctx := context.Background()
	p := NewLocalFileProvider(t.TempDir())
	require.NoError(t, p.Write(ctx, "a.md", []byte("hello")))

	snap, err := NewContentSnapshotter(p).Snapshot(ctx)
	require.NoError(t, err)
	// git hash-object of "hello"
	assert.Equal(t, Snapshot{"a.md": "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0"}, snap)
}

func TestStorageManager(t *testing.T) {
	ctx := context.Background()

	_, err := New(ctx, Config{Backend: "ftp"}, nil)
	assert.Error(t, err)

	_, err = New(ctx, Config{Backend: BackendLocal}, nil)
	assert.Error(t, err)

	m, err := New(ctx, Config{Backend: BackendLocal, LocalConfig: &LocalConfig{BaseDir: t.TempDir() + "/store"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendLocal, m.Backend())
	require.NoError(t, m.Check(ctx))
	require.NoError(t, m.Sync(ctx), "local backend has nothing to sync")

	_, ok := m.Snapshotter().(*ContentSnapshotter)
	assert.True(t, ok)

	require.NoError(t, m.GetProvider("ns").Write(ctx, "x.md", []byte("x")))
	snap, err := m.Snapshotter().Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap, "ns/x.md")
	require.NoError(t, m.Close(ctx))
}
