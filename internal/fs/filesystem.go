package fs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"cfgpush/internal/cfgpush"
)

// OSFilesystemManager implements cfgpush.FilesystemManager on the real filesystem.
type OSFilesystemManager struct {
	ignore *IgnoreMatcher
	root   string
}

var _ cfgpush.FilesystemManager = (*OSFilesystemManager)(nil)

// NewOSFilesystemManager creates a manager. ignore may be nil; when set,
// FindFiles and FindDirs skip matching entries below root.
func NewOSFilesystemManager(root string, ignore *IgnoreMatcher) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore, root: root}
}

// Resolve makes rawPath absolute and stats it. Only regular files and
// directories are accepted.
func (m *OSFilesystemManager) Resolve(rawPath string) (*cfgpush.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	info, err := os.Lstat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}
	if !info.Mode().IsRegular() && !info.IsDir() {
		return nil, fmt.Errorf("not a regular file or directory (%s): %s", info.Mode().Type(), absPath)
	}
	return cfgpush.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *cfgpush.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *cfgpush.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// Remove deletes a regular file.
func (m *OSFilesystemManager) Remove(path *cfgpush.Path) error {
	if path.IsDir() {
		return fmt.Errorf("refusing to remove directory: %s", path.String())
	}
	if err := os.Remove(path.String()); err != nil {
		return fmt.Errorf("removing %s: %w", path.String(), err)
	}
	return nil
}

// FindFiles returns the regular files under dir whose names end in ext,
// skipping ignored files and directories.
func (m *OSFilesystemManager) FindFiles(dir, ext string) ([]string, error) {
	var out []string
	err := m.walk(dir, func(p string, d fs.DirEntry, rel string) {
		if d.Type().IsRegular() && filepath.Ext(p) == ext && !m.ignore.Match(rel) {
			out = append(out, p)
		}
	})
	return out, err
}

// FindDirs returns dir and every non-ignored directory below it.
func (m *OSFilesystemManager) FindDirs(dir string) ([]string, error) {
	var out []string
	err := m.walk(dir, func(p string, d fs.DirEntry, _ string) {
		if d.IsDir() {
			out = append(out, p)
		}
	})
	return out, err
}

// Ignored reports whether path, absolute or relative to the root, is ignored.
func (m *OSFilesystemManager) Ignored(path string, isDir bool) bool {
	rel := m.rel(path)
	if isDir {
		return m.ignore.MatchDir(rel)
	}
	return m.ignore.Match(rel)
}

func (m *OSFilesystemManager) walk(dir string, visit func(p string, d fs.DirEntry, rel string)) error {
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := m.rel(p)
		if d.IsDir() && p != dir && m.ignore.MatchDir(rel) {
			return filepath.SkipDir
		}
		visit(p, d, rel)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking %s: %w", dir, err)
	}
	return nil
}

func (m *OSFilesystemManager) rel(p string) string {
	if m.root == "" || !filepath.IsAbs(p) {
		return p
	}
	rel, err := filepath.Rel(m.root, p)
	if err != nil {
		return p
	}
	return rel
}
