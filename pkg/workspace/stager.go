// Package workspace stages a filtered copy of a source tree into a scoped
// temporary directory so a backend can work without touching the caller's
// files. A `.git` directory in the source is never copied, regardless of the
// configured globs; symlinks are skipped; the execute bit is preserved.
package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/backplane/pkg/globmatch"
)

// Options tunes staging behavior.
type Options struct {
	// Include and Exclude filter relative slash-separated paths.
	Include []string
	Exclude []string
	// InitVCS creates a fresh git repository in the staged workspace and
	// records a baseline commit. The workspace's .git is its own; nothing is
	// carried over from the source.
	InitVCS bool
}

// Staged is a handle on a staged workspace. Release removes the directory on
// every exit path; callers defer it immediately after staging.
type Staged struct {
	root     string
	released bool
}

// Root returns the staged workspace directory.
func (s *Staged) Root() string { return s.root }

// Release removes the staged directory recursively. Safe to call twice.
func (s *Staged) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	return os.RemoveAll(s.root)
}

// Stage copies the filtered source tree into a freshly-created scoped temp
// directory. Staging the same source twice yields two independent workspaces
// with identical file listings.
func Stage(sourceRoot string, opts Options) (*Staged, error) {
	info, err := os.Stat(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("workspace source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("workspace source %q is not a directory", sourceRoot)
	}

	globs, err := globmatch.New(opts.Include, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("workspace globs: %w", err)
	}

	tmp, err := os.MkdirTemp("", "abp-workspace-*")
	if err != nil {
		return nil, fmt.Errorf("workspace temp dir: %w", err)
	}
	staged := &Staged{root: tmp}

	if err := copyTree(sourceRoot, tmp, globs); err != nil {
		_ = staged.Release()
		return nil, err
	}

	if opts.InitVCS {
		if err := initBaseline(tmp); err != nil {
			_ = staged.Release()
			return nil, err
		}
	}
	return staged, nil
}

func copyTree(src, dst string, globs *globmatch.IncludeExcludeGlobs) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		// The source's VCS directory never crosses into the workspace.
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			// Directories materialize lazily when a contained file copies.
			return nil
		}
		if !globs.Decide(rel).IsAllowed() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		target := filepath.Join(dst, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("stage mkdir %q: %w", rel, err)
		}
		if err := copyFile(path, target, info.Mode()); err != nil {
			return fmt.Errorf("stage copy %q: %w", rel, err)
		}
		return nil
	})
}

func copyFile(src, dst string, mode fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	perm := fs.FileMode(0o644)
	if mode&0o111 != 0 {
		perm = 0o755
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// initBaseline creates a fresh repository and records the staged tree as the
// baseline commit. Best-effort identity so the commit works on hosts with no
// global git config.
func initBaseline(root string) error {
	steps := [][]string{
		{"init", "--quiet"},
		{"-c", "user.name=abp", "-c", "user.email=abp@localhost", "add", "-A"},
		{"-c", "user.name=abp", "-c", "user.email=abp@localhost",
			"commit", "--quiet", "--allow-empty", "-m", "workspace baseline"},
	}
	for _, args := range steps {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("workspace vcs init (git %s): %w: %s",
				strings.Join(args, " "), err, strings.TrimSpace(string(out)))
		}
	}
	return nil
}

// Listing returns the sorted relative slash-separated file paths of a staged
// (or any) directory tree, excluding VCS internals.
func Listing(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
