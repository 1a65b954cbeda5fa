package vault

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileSystemVault(t *testing.T) {
	t.Run("creates directory structure", func(t *testing.T) {
		tmpDir := t.TempDir()
		root := filepath.Join(tmpDir, "vault")

		v, err := NewFileSystemVault("test", root)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		if _, err := os.Stat(filepath.Join(root, "content")); err != nil {
			t.Errorf("content directory not created: %v", err)
		}

		if v.name != "test" {
			t.Errorf("name = %q, want %q", v.name, "test")
		}
	})

	t.Run("works with existing directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		_, err := NewFileSystemVault("test", tmpDir)
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}
	})
}

func TestFileSystemVault_PutContent(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		data    string
		size    int64
		wantErr bool
	}{
		{
			name: "store content successfully",
			key:  "switch01/abc123",
			data: "hostname switch01",
			size: 17,
		},
		{
			name:    "size mismatch",
			key:     "switch01/def456",
			data:    "hello",
			size:    100,
			wantErr: true,
		},
		{
			name: "empty content",
			key:  "router/empty",
			data: "",
			size: 0,
		},
		{
			name:    "key escaping the vault",
			key:     "../outside",
			data:    "x",
			size:    1,
			wantErr: true,
		},
		{
			name:    "absolute key",
			key:     "/etc/passwd",
			data:    "x",
			size:    1,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewFileSystemVault("test", t.TempDir())
			if err != nil {
				t.Fatalf("NewFileSystemVault() error = %v", err)
			}

			err = v.PutContent(tt.key, strings.NewReader(tt.data), tt.size)
			if (err != nil) != tt.wantErr {
				t.Errorf("PutContent() error = %v, wantErr %v", err, tt.wantErr)
			}

			if !tt.wantErr {
				contentPath := filepath.Join(v.contentDir, filepath.FromSlash(tt.key))
				data, err := os.ReadFile(contentPath)
				if err != nil {
					t.Fatalf("failed to read content file: %v", err)
				}
				if string(data) != tt.data {
					t.Errorf("content = %q, want %q", string(data), tt.data)
				}
			}
		})
	}
}

func TestFileSystemVault_PutContent_Idempotent(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	key := "switch01/abc123"
	data := "hello world"

	if err := v.PutContent(key, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("first PutContent() error = %v", err)
	}
	if err := v.PutContent(key, strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("second PutContent() error = %v", err)
	}

	var buf bytes.Buffer
	if err := v.GetContent(key, &buf); err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	if buf.String() != data {
		t.Errorf("content = %q, want %q", buf.String(), data)
	}
}

func TestFileSystemVault_GetContent(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	t.Run("retrieve existing content", func(t *testing.T) {
		key := "router1/abc123.age"
		data := "ciphertext"

		if err := v.PutContent(key, strings.NewReader(data), int64(len(data))); err != nil {
			t.Fatalf("PutContent() error = %v", err)
		}

		var buf bytes.Buffer
		if err := v.GetContent(key, &buf); err != nil {
			t.Fatalf("GetContent() error = %v", err)
		}

		if buf.String() != data {
			t.Errorf("content = %q, want %q", buf.String(), data)
		}
	})

	t.Run("content not found", func(t *testing.T) {
		var buf bytes.Buffer
		err := v.GetContent("router1/nonexistent", &buf)
		if err == nil {
			t.Fatal("GetContent() expected error for nonexistent content")
		}
		if !strings.Contains(err.Error(), "content not found") {
			t.Errorf("error = %v, want error containing 'content not found'", err)
		}
	})
}

func TestFileSystemVault_ValidateSetup(t *testing.T) {
	t.Run("valid setup", func(t *testing.T) {
		v, err := NewFileSystemVault("test", t.TempDir())
		if err != nil {
			t.Fatalf("NewFileSystemVault() error = %v", err)
		}

		if err := v.ValidateSetup(); err != nil {
			t.Errorf("ValidateSetup() error = %v", err)
		}
	})

	t.Run("missing root directory", func(t *testing.T) {
		v := &FileSystemVault{
			name:       "test",
			root:       "/nonexistent/path",
			contentDir: "/nonexistent/path/content",
		}

		if err := v.ValidateSetup(); err == nil {
			t.Error("ValidateSetup() expected error for missing root")
		}
	})
}

func TestFileSystemVault_AtomicWrite(t *testing.T) {
	v, err := NewFileSystemVault("test", t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystemVault() error = %v", err)
	}

	data := "hello world"
	if err := v.PutContent("switch01/abc123", strings.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("PutContent() error = %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(v.contentDir, "switch01"))
	if err != nil {
		t.Fatalf("failed to read key dir: %v", err)
	}

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".tmp-") {
			t.Errorf("temp file left behind: %s", entry.Name())
		}
	}
}
