package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGitProvider(t *testing.T) *GitFileProvider {
	t.Helper()
	p, err := NewGitFileProvider(context.Background(), GitProviderOptions{
		Path:          filepath.Join(t.TempDir(), "store"),
		InitIfMissing: true,
	})
	require.NoError(t, err)
	return p
}

func commitCount(t *testing.T, repo *git.Repository) int {
	t.Helper()
	head, err := repo.Head()
	if err != nil {
		return 0
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	require.NoError(t, err)
	n := 0
	require.NoError(t, iter.ForEach(func(*object.Commit) error { n++; return nil }))
	return n
}

func TestNewGitFileProvider(t *testing.T) {
	_, err := NewGitFileProvider(context.Background(), GitProviderOptions{})
	assert.Error(t, err, "path is required")

	_, err = NewGitFileProvider(context.Background(), GitProviderOptions{Path: filepath.Join(t.TempDir(), "nope")})
	assert.Error(t, err, "missing repo without InitIfMissing")

	p := newTestGitProvider(t)
	_, err = os.Stat(filepath.Join(p.repoPath, ".git"))
	assert.NoError(t, err)
	assert.False(t, p.hasRemote)
}

func TestGitFileProviderCommits(t *testing.T) {
	ctx := context.Background()
	p := newTestGitProvider(t)

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap, "no commits yet")

	require.NoError(t, p.Write(ctx, "a.md", []byte("hello")))
	require.NoError(t, p.Write(ctx, "a.md", []byte("hello")), "unchanged write is not an error")
	assert.Equal(t, 1, commitCount(t, p.repo))

	require.NoError(t, p.Write(ctx, "b.md", []byte("world")))
	assert.Equal(t, 2, commitCount(t, p.repo))

	snap, err = p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b6fc4c620b67d95f953a5c1c1230aaab5db5a1b0", snap["a.md"])
	assert.Len(t, snap, 2)

	files, err := p.List(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.md", "b.md"}, files)

	require.NoError(t, p.Delete(ctx, "a.md"))
	require.NoError(t, p.Delete(ctx, "a.md"))
	assert.Equal(t, 3, commitCount(t, p.repo))

	snap, err = p.Snapshot(ctx)
	require.NoError(t, err)
	assert.NotContains(t, snap, "a.md")

	_, err = p.Read(ctx, "a.md")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGitFileProviderDeleteUntracked(t *testing.T) {
	ctx := context.Background()
	p := newTestGitProvider(t)

	require.NoError(t, os.WriteFile(filepath.Join(p.repoPath, "loose.md"), []byte("x"), 0o600))
	require.NoError(t, p.Delete(ctx, "loose.md"))

	exists, err := p.Exists(ctx, "loose.md")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGitFileProviderRemoteRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available for the file transport")
	}

	ctx := context.Background()
	remote := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	first, err := NewGitFileProvider(ctx, GitProviderOptions{
		Path:      filepath.Join(t.TempDir(), "first"),
		RemoteURL: remote,
	})
	require.NoError(t, err)
	assert.True(t, first.hasRemote)

	require.NoError(t, first.Write(ctx, "a.md", []byte("from first")))

	second, err := NewGitFileProvider(ctx, GitProviderOptions{
		Path:      filepath.Join(t.TempDir(), "second"),
		RemoteURL: remote,
		PushDelay: time.Hour,
	})
	require.NoError(t, err)

	data, err := second.Read(ctx, "a.md")
	require.NoError(t, err, "clone picks up pushed commit")
	assert.Equal(t, "from first", string(data))

	require.NoError(t, second.Write(ctx, "b.md", []byte("from second")))
	require.NoError(t, second.Flush(ctx))

	require.NoError(t, first.Sync(ctx))
	snap, err := first.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap, "b.md")
	require.NoError(t, first.Sync(ctx), "already up to date")
}

func newRemotePair(t *testing.T) (first, second *GitFileProvider) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available for the file transport")
	}

	ctx := context.Background()
	remote := filepath.Join(t.TempDir(), "remote.git")
	_, err := git.PlainInit(remote, true)
	require.NoError(t, err)

	first, err = NewGitFileProvider(ctx, GitProviderOptions{
		Path:      filepath.Join(t.TempDir(), "first"),
		RemoteURL: remote,
	})
	require.NoError(t, err)
	require.NoError(t, first.Write(ctx, "base.md", []byte("base")))

	second, err = NewGitFileProvider(ctx, GitProviderOptions{
		Path:      filepath.Join(t.TempDir(), "second"),
		RemoteURL: remote,
		PushDelay: time.Hour,
	})
	require.NoError(t, err)
	return first, second
}

func TestGitFileProviderSyncReplaysDivergedCommits(t *testing.T) {
	ctx := context.Background()
	first, second := newRemotePair(t)

	require.NoError(t, second.Write(ctx, "mine.md", []byte("from second")))
	require.NoError(t, first.Write(ctx, "other.md", []byte("from first")))
	require.NoError(t, first.Delete(ctx, "base.md"))

	require.NoError(t, second.Sync(ctx))

	snap, err := second.Snapshot(ctx)
	require.NoError(t, err)
	assert.Contains(t, snap, "mine.md")
	assert.Contains(t, snap, "other.md")
	assert.NotContains(t, snap, "base.md")

	data, err := second.Read(ctx, "other.md")
	require.NoError(t, err)
	assert.Equal(t, "from first", string(data))
	_, err = second.Read(ctx, "base.md")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, first.Sync(ctx))
	data, err = first.Read(ctx, "mine.md")
	require.NoError(t, err, "replayed commit reached the remote")
	assert.Equal(t, "from second", string(data))

	head, err := second.repo.Head()
	require.NoError(t, err)
	commit, err := second.repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "Write mine.md", commit.Message)
	assert.Equal(t, 1, commit.NumParents(), "history stays linear")
}

func TestGitFileProviderFlushIntegratesRemoteChanges(t *testing.T) {
	ctx := context.Background()
	first, second := newRemotePair(t)

	require.NoError(t, second.Write(ctx, "mine.md", []byte("from second")))
	require.NoError(t, first.Write(ctx, "other.md", []byte("from first")))

	require.NoError(t, second.Flush(ctx))

	exists, err := second.Exists(ctx, "other.md")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, first.Sync(ctx))
	exists, err = first.Exists(ctx, "mine.md")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGitFileProviderSyncSameFileKeepsLocal(t *testing.T) {
	ctx := context.Background()
	first, second := newRemotePair(t)

	require.NoError(t, second.Write(ctx, "base.md", []byte("edited on second")))
	require.NoError(t, first.Write(ctx, "base.md", []byte("edited on first")))

	require.NoError(t, second.Sync(ctx))

	data, err := second.Read(ctx, "base.md")
	require.NoError(t, err)
	assert.Equal(t, "edited on second", string(data))
}
