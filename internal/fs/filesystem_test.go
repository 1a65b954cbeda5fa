package fs

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestOSFilesystemManager_Resolve(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "switch01.gz")
	writeFile(t, file, "data")

	m := NewOSFilesystemManager(dir, nil)

	t.Run("regular file", func(t *testing.T) {
		p, err := m.Resolve(file)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if p.IsDir() {
			t.Error("IsDir() = true for file")
		}
		if p.Info().Size() != 4 {
			t.Errorf("Info().Size() = %d, want 4", p.Info().Size())
		}
	})

	t.Run("directory", func(t *testing.T) {
		p, err := m.Resolve(dir)
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if !p.IsDir() {
			t.Error("IsDir() = false for directory")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := m.Resolve(filepath.Join(dir, "gone.gz")); err == nil {
			t.Error("Resolve() expected error for missing path")
		}
	})

	t.Run("symlink rejected", func(t *testing.T) {
		link := filepath.Join(dir, "link.gz")
		if err := os.Symlink(file, link); err != nil {
			t.Skipf("symlinks unavailable: %v", err)
		}
		if _, err := m.Resolve(link); err == nil {
			t.Error("Resolve() expected error for symlink")
		}
	})
}

func TestOSFilesystemManager_OpenStatRemove(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "r1.gz")
	writeFile(t, file, "hello")

	m := NewOSFilesystemManager(dir, nil)
	p, err := m.Resolve(file)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	rc, err := m.Open(p)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "hello" {
		t.Errorf("read %q, want %q", data, "hello")
	}

	writeFile(t, file, "hello world")
	info, err := m.Stat(p)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 11 {
		t.Errorf("Stat().Size() = %d, want 11", info.Size())
	}

	if err := m.Remove(p); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Errorf("file still present after Remove: %v", err)
	}

	d, _ := m.Resolve(dir)
	if _, err := m.Open(d); err == nil {
		t.Error("Open() on directory expected error")
	}
	if err := m.Remove(d); err == nil {
		t.Error("Remove() on directory expected error")
	}
}

func TestOSFilesystemManager_Find(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "site", "rack1", "sw1.gz"), "x")
	writeFile(t, filepath.Join(root, "site", "rack1", "sw1.tmp"), "x")
	writeFile(t, filepath.Join(root, "site", "rack2", "sw2.gz"), "x")
	writeFile(t, filepath.Join(root, "staging", "sw3.gz"), "x")
	writeFile(t, filepath.Join(root, "skip.gz"), "x")

	m := NewOSFilesystemManager(root, NewIgnoreMatcher([]string{"staging/", "skip.gz"}))

	files, err := m.FindFiles(root, ".gz")
	if err != nil {
		t.Fatalf("FindFiles() error = %v", err)
	}
	sort.Strings(files)
	want := []string{
		filepath.Join(root, "site", "rack1", "sw1.gz"),
		filepath.Join(root, "site", "rack2", "sw2.gz"),
	}
	if len(files) != len(want) {
		t.Fatalf("FindFiles() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("files[%d] = %q, want %q", i, files[i], want[i])
		}
	}

	dirs, err := m.FindDirs(root)
	if err != nil {
		t.Fatalf("FindDirs() error = %v", err)
	}
	if len(dirs) != 4 { // root, site, rack1, rack2
		t.Errorf("FindDirs() = %v, want 4 entries", dirs)
	}

	if !m.Ignored(filepath.Join(root, "staging"), true) {
		t.Error("Ignored(staging, dir) = false, want true")
	}
	if m.Ignored(filepath.Join(root, "site", "rack1", "sw1.gz"), false) {
		t.Error("Ignored(sw1.gz) = true, want false")
	}
}
