package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/lewisedginton/brainoverflow/pkg/logger"
)

const (
	defaultRemoteName = "origin"
	pushTimeout       = 30 * time.Second
)

// GitFileProvider implements FileProvider on a git working copy. Every
// write or delete is committed; commits are pushed to the remote (if any)
// once no further commit has happened for PushDelay.
type GitFileProvider struct {
	repoPath    string
	repo        *git.Repository
	authorName  string
	authorEmail string
	remoteName  string
	auth        transport.AuthMethod
	hasRemote   bool
	pushDelay   time.Duration
	log         logger.Logger

	mu sync.Mutex

	pushMu      sync.Mutex
	pushTimer   *time.Timer
	pushPending bool
}

// GitProviderOptions holds options for creating a GitFileProvider.
type GitProviderOptions struct {
	// Path is the working copy directory.
	Path        string
	AuthorName  string
	AuthorEmail string
	// InitIfMissing initializes a new repo if Path doesn't contain one and
	// no RemoteURL is configured.
	InitIfMissing bool

	// RemoteURL is cloned into Path when Path holds no repository, and
	// added as RemoteName to an existing repository that lacks it.
	RemoteURL  string
	RemoteName string

	// Username/Password enable HTTP basic auth (use a token as password).
	Username string
	Password string
	// SSHKeyPath enables public key auth for ssh remotes.
	SSHKeyPath     string
	SSHKeyPassword string

	// PushDelay debounces pushes. Zero pushes after every commit.
	PushDelay time.Duration

	Logger logger.Logger
}

// NewGitFileProvider opens, clones or initializes the working copy at opts.Path.
func NewGitFileProvider(ctx context.Context, opts GitProviderOptions) (*GitFileProvider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("repository path is required")
	}

	p := &GitFileProvider{
		repoPath:    opts.Path,
		authorName:  opts.AuthorName,
		authorEmail: opts.AuthorEmail,
		remoteName:  opts.RemoteName,
		pushDelay:   opts.PushDelay,
		log:         opts.Logger,
	}
	if p.authorName == "" {
		p.authorName = "BrainOverflow"
	}
	if p.authorEmail == "" {
		p.authorEmail = "brainoverflow@localhost"
	}
	if p.remoteName == "" {
		p.remoteName = defaultRemoteName
	}
	if p.log == nil {
		p.log = logger.NewNopLogger()
	}

	auth, err := gitAuth(opts)
	if err != nil {
		return nil, err
	}
	p.auth = auth

	repo, err := p.openRepository(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.repo = repo

	if _, err := repo.Remote(p.remoteName); err == nil {
		p.hasRemote = true
	} else if !errors.Is(err, git.ErrRemoteNotFound) {
		return nil, fmt.Errorf("failed to read remote %s: %w", p.remoteName, err)
	}

	return p, nil
}

func gitAuth(opts GitProviderOptions) (transport.AuthMethod, error) {
	switch {
	case opts.SSHKeyPath != "":
		keys, err := gitssh.NewPublicKeysFromFile("git", opts.SSHKeyPath, opts.SSHKeyPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to load ssh key %s: %w", opts.SSHKeyPath, err)
		}
		return keys, nil
	case opts.Username != "" || opts.Password != "":
		return &githttp.BasicAuth{Username: opts.Username, Password: opts.Password}, nil
	default:
		return nil, nil
	}
}

func (p *GitFileProvider) openRepository(ctx context.Context, opts GitProviderOptions) (*git.Repository, error) {
	repo, err := git.PlainOpen(opts.Path)
	if err == nil {
		if opts.RemoteURL != "" {
			if err := p.ensureRemote(repo, opts.RemoteURL); err != nil {
				return nil, err
			}
		}
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}

	switch {
	case opts.RemoteURL != "":
		p.log.Info("Cloning store repository",
			logger.StringField("path", opts.Path),
			logger.StringField("remote", opts.RemoteURL))
		repo, err = git.PlainCloneContext(ctx, opts.Path, false, &git.CloneOptions{
			URL:        opts.RemoteURL,
			RemoteName: p.remoteName,
			Auth:       p.auth,
		})
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return p.initRepository(opts.Path, opts.RemoteURL)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to clone %s: %w", opts.RemoteURL, err)
		}
		return repo, nil

	case opts.InitIfMissing:
		return p.initRepository(opts.Path, "")

	default:
		return nil, fmt.Errorf("failed to open git repository: %w", err)
	}
}

func (p *GitFileProvider) initRepository(path, remoteURL string) (*git.Repository, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create repository directory: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize git repository: %w", err)
	}
	if remoteURL != "" {
		if err := p.ensureRemote(repo, remoteURL); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func (p *GitFileProvider) ensureRemote(repo *git.Repository, url string) error {
	if _, err := repo.Remote(p.remoteName); err == nil {
		return nil
	}
	_, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: p.remoteName, URLs: []string{url}})
	if err != nil {
		return fmt.Errorf("failed to add remote %s: %w", p.remoteName, err)
	}
	return nil
}

func (p *GitFileProvider) resolve(name string) (string, string, error) {
	cleaned, err := cleanPath(name)
	if err != nil {
		return "", "", err
	}
	return cleaned, filepath.Join(p.repoPath, filepath.FromSlash(cleaned)), nil
}

// Read reads a file from the working tree.
func (p *GitFileProvider) Read(ctx context.Context, name string) ([]byte, error) {
	_, fullPath, err := p.resolve(name)
	return readFile(fullPath, err)
}

// Write writes data to a file and commits the change.
func (p *GitFileProvider) Write(ctx context.Context, name string, data []byte) error {
	rel, fullPath, err := p.resolve(name)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := writeFile(fullPath, data); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return fmt.Errorf("failed to stage %s: %w", rel, err)
	}

	return p.commit(ctx, worktree, "Write "+rel)
}

// Exists checks if a file exists in the working tree.
func (p *GitFileProvider) Exists(ctx context.Context, name string) (bool, error) {
	_, fullPath, err := p.resolve(name)
	if err != nil {
		return false, err
	}
	return fileExists(fullPath)
}

// Delete removes a file and commits the deletion.
func (p *GitFileProvider) Delete(ctx context.Context, name string) error {
	rel, fullPath, err := p.resolve(name)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if exists, err := fileExists(fullPath); err != nil || !exists {
		return err
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}

	if _, err := worktree.Remove(rel); err != nil {
		if !errors.Is(err, index.ErrEntryNotFound) {
			return fmt.Errorf("failed to stage deletion of %s: %w", rel, err)
		}
		// Untracked: nothing to commit.
		if err := os.Remove(fullPath); err != nil {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
		return nil
	}

	return p.commit(ctx, worktree, "Delete "+rel)
}

// List returns files under prefix in the working tree, skipping .git.
func (p *GitFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	return walkFiles(p.repoPath, prefix, true)
}

func (p *GitFileProvider) commit(ctx context.Context, worktree *git.Worktree, msg string) error {
	_, err := worktree.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{
			Name:  p.authorName,
			Email: p.authorEmail,
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	p.schedulePush(ctx)
	return nil
}

// schedulePush is called with p.mu held.
func (p *GitFileProvider) schedulePush(ctx context.Context) {
	if !p.hasRemote {
		return
	}

	if p.pushDelay <= 0 {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
		defer cancel()
		if err := p.publishLocked(pushCtx); err != nil {
			p.log.Warn("Failed to push store", logger.ErrorField(err))
		}
		return
	}

	p.pushMu.Lock()
	defer p.pushMu.Unlock()

	p.pushPending = true
	if p.pushTimer != nil {
		p.pushTimer.Stop()
	}
	p.pushTimer = time.AfterFunc(p.pushDelay, func() {
		pushCtx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := p.Flush(pushCtx); err != nil {
			p.log.Warn("Failed to push store", logger.ErrorField(err))
		}
	})
}

// Flush pushes any commits still waiting for the debounce timer.
func (p *GitFileProvider) Flush(ctx context.Context) error {
	p.pushMu.Lock()
	pending := p.pushPending
	p.pushPending = false
	if p.pushTimer != nil {
		p.pushTimer.Stop()
		p.pushTimer = nil
	}
	p.pushMu.Unlock()

	if !pending {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.publishLocked(ctx)
}

// publishLocked pushes, and when the remote has moved on integrates it
// through syncLocked, which pushes the result.
func (p *GitFileProvider) publishLocked(ctx context.Context) error {
	err := p.pushLocked(ctx)
	if err == nil || !strings.Contains(err.Error(), git.ErrNonFastForwardUpdate.Error()) {
		return err
	}
	p.log.Info("Remote store moved ahead, integrating before push",
		logger.StringField("remote", p.remoteName))
	return p.syncLocked(ctx)
}

func (p *GitFileProvider) pushLocked(ctx context.Context) error {
	err := p.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: p.remoteName,
		Auth:       p.auth,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push to %s: %w", p.remoteName, err)
	}
	p.log.Debug("Pushed store", logger.StringField("remote", p.remoteName))
	return nil
}

// Sync fetches the remote and integrates it into the working copy. A copy
// that is behind is fast-forwarded, one that is ahead is pushed, and local
// commits on a diverged branch are replayed onto the remote head and then
// pushed. When both sides changed the same file the local version wins.
func (p *GitFileProvider) Sync(ctx context.Context) error {
	if !p.hasRemote {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.syncLocked(ctx)
}

func (p *GitFileProvider) syncLocked(ctx context.Context) error {
	err := p.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: p.remoteName,
		Auth:       p.auth,
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		return nil
	default:
		return fmt.Errorf("failed to fetch from %s: %w", p.remoteName, err)
	}

	branch, err := p.currentBranch()
	if err != nil {
		return err
	}

	remoteRef, err := p.repo.Reference(plumbing.NewRemoteReferenceName(p.remoteName, branch.Short()), true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to resolve remote branch: %w", err)
	}
	remote, err := p.repo.CommitObject(remoteRef.Hash())
	if err != nil {
		return fmt.Errorf("failed to load remote commit: %w", err)
	}

	localRef, err := p.repo.Reference(branch, true)
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return p.resetTo(branch, remote.Hash)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", branch.Short(), err)
	}
	if localRef.Hash() == remote.Hash {
		return nil
	}
	local, err := p.repo.CommitObject(localRef.Hash())
	if err != nil {
		return fmt.Errorf("failed to load local commit: %w", err)
	}

	behind, err := local.IsAncestor(remote)
	if err != nil {
		return fmt.Errorf("failed to compare histories: %w", err)
	}
	if behind {
		return p.resetTo(branch, remote.Hash)
	}

	ahead, err := remote.IsAncestor(local)
	if err != nil {
		return fmt.Errorf("failed to compare histories: %w", err)
	}
	if ahead {
		return p.pushLocked(ctx)
	}

	return p.rebaseOnto(ctx, branch, local, remote)
}

func (p *GitFileProvider) currentBranch() (plumbing.ReferenceName, error) {
	head, err := p.repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if head.Type() != plumbing.SymbolicReference || !head.Target().IsBranch() {
		return "", fmt.Errorf("store working copy has a detached HEAD")
	}
	return head.Target(), nil
}

// resetTo points branch at hash and makes the working tree match it.
func (p *GitFileProvider) resetTo(branch plumbing.ReferenceName, hash plumbing.Hash) error {
	if err := p.repo.Storer.SetReference(plumbing.NewHashReference(branch, hash)); err != nil {
		return fmt.Errorf("failed to move %s: %w", branch.Short(), err)
	}
	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if err := worktree.Reset(&git.ResetOptions{Commit: hash, Mode: git.HardReset}); err != nil {
		return fmt.Errorf("failed to reset worktree: %w", err)
	}
	return nil
}

// rebaseOnto replays the first-parent commits of local that remote lacks on
// top of remote, then pushes. On failure the branch is put back on local.
func (p *GitFileProvider) rebaseOnto(ctx context.Context, branch plumbing.ReferenceName, local, remote *object.Commit) error {
	bases, err := local.MergeBase(remote)
	if err != nil {
		return fmt.Errorf("failed to find merge base: %w", err)
	}
	isBase := make(map[plumbing.Hash]bool, len(bases))
	for _, b := range bases {
		isBase[b.Hash] = true
	}

	var pending []*object.Commit
	for c := local; !isBase[c.Hash]; {
		pending = append(pending, c)
		if c.NumParents() == 0 {
			break
		}
		if c, err = c.Parent(0); err != nil {
			return fmt.Errorf("failed to walk local history: %w", err)
		}
	}
	slices.Reverse(pending)

	if err := p.resetTo(branch, remote.Hash); err != nil {
		return err
	}

	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	for _, c := range pending {
		if err := p.replay(worktree, c); err != nil {
			if resetErr := p.resetTo(branch, local.Hash); resetErr != nil {
				p.log.Error("Failed to restore local branch", logger.ErrorField(resetErr))
			}
			return fmt.Errorf("failed to replay %s: %w", c.Hash, err)
		}
	}

	p.log.Info("Replayed local store commits onto remote",
		logger.IntField("commits", len(pending)),
		logger.StringField("remote", p.remoteName))

	return p.pushLocked(ctx)
}

// replay applies the changes c made to its first parent and commits them
// with c's author and message.
func (p *GitFileProvider) replay(worktree *git.Worktree, c *object.Commit) error {
	tree, err := c.Tree()
	if err != nil {
		return err
	}
	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return err
		}
		if parentTree, err = parent.Tree(); err != nil {
			return err
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return err
	}

	for _, ch := range changes {
		action, err := ch.Action()
		if err != nil {
			return err
		}

		if action == merkletrie.Delete {
			if _, err := worktree.Remove(ch.From.Name); err != nil && !errors.Is(err, index.ErrEntryNotFound) {
				return fmt.Errorf("failed to remove %s: %w", ch.From.Name, err)
			}
			continue
		}

		_, to, err := ch.Files()
		if err != nil {
			return err
		}
		if to == nil {
			continue
		}
		contents, err := to.Contents()
		if err != nil {
			return err
		}
		_, fullPath, err := p.resolve(ch.To.Name)
		if err != nil {
			return err
		}
		if err := writeFile(fullPath, []byte(contents)); err != nil {
			return err
		}
		if _, err := worktree.Add(ch.To.Name); err != nil {
			return fmt.Errorf("failed to stage %s: %w", ch.To.Name, err)
		}
	}

	author := c.Author
	_, err = worktree.Commit(c.Message, &git.CommitOptions{
		Author: &author,
		Committer: &object.Signature{
			Name:  p.authorName,
			Email: p.authorEmail,
			When:  time.Now(),
		},
	})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	return err
}

// Snapshot maps every file in the HEAD commit to its blob hash. A
// repository without commits yields an empty snapshot.
func (p *GitFileProvider) Snapshot(ctx context.Context) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	snap := Snapshot{}

	head, err := p.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}

	commit, err := p.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to load HEAD tree: %w", err)
	}

	err = tree.Files().ForEach(func(f *object.File) error {
		snap[f.Name] = f.Hash.String()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk HEAD tree: %w", err)
	}
	return snap, nil
}
