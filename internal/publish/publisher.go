package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"git.home.luguber.info/inful/matrixci/internal/config"
	"git.home.luguber.info/inful/matrixci/internal/logfields"
)

// Publisher imports a built documentation tree into the pages branch of the
// project repository and force-pushes it. The push credential comes from the
// configured environment variable and is never logged.
type Publisher struct {
	cfg config.PublishConfig
}

// NewPublisher creates a publisher for the given configuration.
func NewPublisher(cfg config.PublishConfig) *Publisher {
	return &Publisher{cfg: cfg}
}

// Publish verifies the docs tree, stages it onto the pages branch in a
// scratch clone, and force-pushes. extraFiles are written into the tree root
// after import (e.g. a run summary page). Publish failures never affect the
// job outcome that preceded them; callers report them separately.
func (p *Publisher) Publish(ctx context.Context, docsDir string, extraFiles map[string][]byte) error {
	token := os.Getenv(p.cfg.TokenEnv)
	if token == "" {
		return fmt.Errorf("publish credential %s is not set", p.cfg.TokenEnv)
	}
	auth := &githttp.BasicAuth{Username: "x-access-token", Password: token}

	title, err := VerifyDocs(docsDir)
	if err != nil {
		return err
	}
	slog.Info("Publishing documentation",
		logfields.Branch(p.cfg.PagesBranch),
		slog.String("title", title))

	scratch, err := os.MkdirTemp("", "matrixci-pages-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer func() {
		_ = os.RemoveAll(scratch)
	}()

	repo, err := p.preparePagesRepo(ctx, scratch, auth)
	if err != nil {
		return err
	}

	if err := StageDocs(repo, docsDir, extraFiles); err != nil {
		return err
	}

	pushCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	refspec := gitcfg.RefSpec(fmt.Sprintf("+HEAD:refs/heads/%s", p.cfg.PagesBranch))
	err = repo.PushContext(pushCtx, &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{refspec},
		Auth:       auth,
		Force:      true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("failed to push pages branch: %w", err)
	}

	slog.Info("Documentation published",
		logfields.Branch(p.cfg.PagesBranch),
		logfields.URL(p.cfg.RemoteURL))
	return nil
}

// preparePagesRepo clones the existing pages branch when it exists, otherwise
// initializes a fresh repository pointed at the remote so the first publish
// creates the branch.
func (p *Publisher) preparePagesRepo(ctx context.Context, dir string, auth *githttp.BasicAuth) (*git.Repository, error) {
	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           p.cfg.RemoteURL,
		ReferenceName: plumbing.NewBranchReferenceName(p.cfg.PagesBranch),
		SingleBranch:  true,
		Depth:         1,
		Auth:          auth,
	})
	if err == nil {
		return repo, nil
	}

	slog.Debug("Pages branch not cloneable, starting fresh", logfields.Error(err))
	repo, err = git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("failed to init pages repository: %w", err)
	}
	_, err = repo.CreateRemote(&gitcfg.RemoteConfig{Name: "origin", URLs: []string{p.cfg.RemoteURL}})
	if err != nil {
		return nil, fmt.Errorf("failed to configure pages remote: %w", err)
	}
	return repo, nil
}

// StageDocs replaces the repository worktree content with the docs tree plus
// extra files and commits the import.
func StageDocs(repo *git.Repository, docsDir string, extraFiles map[string][]byte) error {
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	root := wt.Filesystem.Root()

	if err := clearWorktree(root); err != nil {
		return err
	}
	if err := copyTree(docsDir, root); err != nil {
		return err
	}
	for name, content := range extraFiles {
		if err := os.WriteFile(filepath.Join(root, name), content, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	if err := wt.AddGlob("."); err != nil {
		return fmt.Errorf("failed to stage documentation: %w", err)
	}
	_, err = wt.Commit(fmt.Sprintf("Import documentation (%s)", time.Now().Format("2006-01-02 15:04:05")), &git.CommitOptions{
		Author: &object.Signature{
			Name:  "matrixci",
			Email: "matrixci@localhost",
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to commit documentation: %w", err)
	}
	return nil
}

// clearWorktree removes everything under root except the .git directory.
func clearWorktree(root string) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read worktree: %w", err)
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(root, e.Name())); err != nil {
			return fmt.Errorf("failed to clear worktree: %w", err)
		}
	}
	return nil
}

// copyTree copies the src directory tree into dst.
func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		in, err := os.Open(filepath.Clean(path))
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}
