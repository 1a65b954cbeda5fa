package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"cfgpush/internal/cfgpush"
)

// MockFile represents a file in the mock filesystem.
type MockFile struct {
	Content     []byte
	ModTime     time.Time
	IsDirectory bool

	// growth is appended to Content, one chunk per Stat call, to imitate a
	// file still being written.
	growth [][]byte
}

// MockFilesystemManager is an in-memory cfgpush.FilesystemManager.
type MockFilesystemManager struct {
	mu      sync.Mutex
	files   map[string]*MockFile
	removed []string
}

var _ cfgpush.FilesystemManager = (*MockFilesystemManager)(nil)

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{files: make(map[string]*MockFile)}
}

// AddFile adds a file to the mock filesystem.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{Content: content, ModTime: time.Unix(1700000000, 0)}
}

// AddDirectory adds a directory to the mock filesystem.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = &MockFile{IsDirectory: true, ModTime: time.Unix(1700000000, 0)}
}

// Grow schedules chunks to be appended to path, one per subsequent Stat.
func (m *MockFilesystemManager) Grow(path string, chunks ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if f, ok := m.files[path]; ok {
		f.growth = append(f.growth, chunks...)
	}
}

// Exists reports whether path is present.
func (m *MockFilesystemManager) Exists(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[path]
	return ok
}

// Removed returns the paths deleted through Remove.
func (m *MockFilesystemManager) Removed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.removed...)
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*cfgpush.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", absPath)
	}
	return cfgpush.NewPath(absPath, file.IsDirectory, infoFor(absPath, file)), nil
}

func (m *MockFilesystemManager) Open(path *cfgpush.Path) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if file.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(file.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *cfgpush.Path) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	file, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", path.String())
	}
	if len(file.growth) > 0 {
		file.Content = append(file.Content, file.growth[0]...)
		file.growth = file.growth[1:]
		file.ModTime = file.ModTime.Add(time.Second)
	}
	return infoFor(path.String(), file), nil
}

func (m *MockFilesystemManager) Remove(path *cfgpush.Path) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.files[path.String()]; !ok {
		return fmt.Errorf("file not found: %s", path.String())
	}
	delete(m.files, path.String())
	m.removed = append(m.removed, path.String())
	return nil
}

func infoFor(path string, f *MockFile) fs.FileInfo {
	mode := fs.FileMode(0644)
	if f.IsDirectory {
		mode = fs.ModeDir | 0755
	}
	return &mockFileInfo{
		name:    filepath.Base(path),
		size:    int64(len(f.Content)),
		mode:    mode,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
}

// mockFileInfo implements fs.FileInfo for mock files.
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (fi *mockFileInfo) Name() string       { return fi.name }
func (fi *mockFileInfo) Size() int64        { return fi.size }
func (fi *mockFileInfo) Mode() fs.FileMode  { return fi.mode }
func (fi *mockFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *mockFileInfo) IsDir() bool        { return fi.isDir }
func (fi *mockFileInfo) Sys() any           { return nil }
