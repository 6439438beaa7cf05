package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"ceeval-hq/verdict/pkg/config"
)

// Source provides the local path a catalog is loaded from.
type Source interface {
	// Name identifies the source kind in logs and metrics.
	Name() string

	// Path is the catalog file or directory to load.
	Path() string

	// Sync refreshes the local copy and reports whether it changed.
	Sync(ctx context.Context) (bool, error)
}

// fileSource is a catalog that lives on the local filesystem.
type fileSource struct {
	path string
}

func (s fileSource) Name() string                       { return "file" }
func (s fileSource) Path() string                       { return s.path }
func (s fileSource) Sync(context.Context) (bool, error) { return false, nil }

// GitSource keeps a local clone of a catalog repository. Rule definitions
// are committed by the configuration tooling; verdict only reads them.
type GitSource struct {
	config config.GitConfig
	path   string
	auth   transport.AuthMethod
	logger *slog.Logger

	mu   sync.Mutex
	repo *gogit.Repository
	head string
}

// NewGitSource creates a source for cfg. path is the catalog location
// relative to the repository root.
func NewGitSource(cfg config.GitConfig, path string, logger *slog.Logger) (*GitSource, error) {
	if cfg.Repository == "" {
		return nil, errors.New("git repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, errors.New("git branch cannot be empty")
	}
	auth, err := gitAuth(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create git auth: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GitSource{config: cfg, path: path, auth: auth, logger: logger}, nil
}

// Name implements Source.
func (g *GitSource) Name() string { return "git" }

// Path implements Source.
func (g *GitSource) Path() string {
	return filepath.Join(g.config.LocalPath, g.path)
}

// Head returns the commit the local clone is at.
func (g *GitSource) Head() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.head
}

// Sync clones the repository on first use and pulls afterwards. It reports
// whether HEAD moved.
func (g *GitSource) Sync(ctx context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	if g.repo == nil {
		if err := g.open(ctx); err != nil {
			return false, err
		}
		head, err := g.headSHA()
		if err != nil {
			return false, err
		}
		g.head = head
		g.logger.Info("catalog repository ready", "repository", g.config.Repository, "branch", g.config.Branch, "commit", short(head))
		return true, nil
	}

	wt, err := g.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("failed to get worktree: %w", err)
	}
	err = wt.PullContext(ctx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Auth:          g.auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		return false, fmt.Errorf("failed to pull: %w", err)
	}

	head, err := g.headSHA()
	if err != nil {
		return false, err
	}
	changed := head != g.head
	if changed {
		g.logger.Info("catalog repository updated", "from", short(g.head), "to", short(head))
		g.head = head
	}
	return changed, nil
}

// open reuses an existing clone at LocalPath or clones a fresh one.
func (g *GitSource) open(ctx context.Context) error {
	local := g.config.LocalPath
	if g.config.CleanOnStart {
		if err := os.RemoveAll(local); err != nil {
			return fmt.Errorf("failed to clean %s: %w", local, err)
		}
	}

	if _, err := os.Stat(filepath.Join(local, ".git")); err == nil {
		repo, err := gogit.PlainOpen(local)
		if err != nil {
			return fmt.Errorf("failed to open existing clone: %w", err)
		}
		g.repo = repo
		return nil
	}

	if err := os.MkdirAll(local, 0o755); err != nil {
		return fmt.Errorf("failed to create clone directory: %w", err)
	}
	repo, err := gogit.PlainCloneContext(ctx, local, false, &gogit.CloneOptions{
		URL:           g.config.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(g.config.Branch),
		SingleBranch:  true,
		Depth:         g.config.Depth,
		Auth:          g.auth,
	})
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", g.config.Repository, err)
	}
	g.repo = repo
	return nil
}

func (g *GitSource) headSHA() (string, error) {
	ref, err := g.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to get HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// gitAuth builds the transport auth for "none", "token" or "ssh".
func gitAuth(cfg config.GitAuthConfig) (transport.AuthMethod, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "token":
		if cfg.Token == "" {
			return nil, errors.New("token auth requires a non-empty token")
		}
		return &http.BasicAuth{Username: "git", Password: cfg.Token}, nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, errors.New("ssh auth requires ssh_key_path")
		}
		info, err := os.Stat(cfg.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to access SSH key: %w", err)
		}
		if mode := info.Mode().Perm(); mode&0o077 != 0 {
			return nil, fmt.Errorf("SSH key permissions too open (%o), should be 0600", mode)
		}
		auth, err := ssh.NewPublicKeysFromFile("git", cfg.SSHKeyPath, cfg.SSHKeyPassphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to load SSH key: %w", err)
		}
		return auth, nil
	default:
		return nil, fmt.Errorf("unknown git auth type: %s", cfg.Type)
	}
}

func short(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
