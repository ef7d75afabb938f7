package storage

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	dir := t.TempDir()
	fs, err := NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# smith2020\n")
	if err := s.Write("smith2020.org", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("smith2020.org")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
	if !s.Exists("smith2020.org") {
		t.Error("Exists = false after write")
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.md", []byte("deep")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "deep" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteReplacesExisting(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("n.md", []byte("original content"))
	if err := s.Write("n.md", []byte("updated content")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("n.md")
	if string(got) != "updated content" {
		t.Errorf("expected updated content, got %q", got)
	}
}

func TestList_FiltersExtensions(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("smith2020.pdf", []byte("a"))
	_ = s.Write("sub/doe2019.PDF", []byte("b"))
	_ = s.Write("readme.txt", []byte("c"))
	_ = s.Write(".hidden/x.pdf", []byte("d"))

	items, err := s.List("", []string{"pdf", ".djvu"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var paths []string
	for _, it := range items {
		paths = append(paths, filepath.ToSlash(it.Path))
		if !filepath.IsAbs(it.Abs) {
			t.Errorf("Abs not absolute: %q", it.Abs)
		}
	}
	sort.Strings(paths)
	if len(paths) != 2 || paths[0] != "smith2020.pdf" || paths[1] != "sub/doe2019.PDF" {
		t.Errorf("paths = %v", paths)
	}

	all, _ := s.List("", nil)
	if len(all) != 3 {
		t.Errorf("unfiltered len = %d, want 3", len(all))
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
		if s.Exists(p) {
			t.Errorf("Exists(%q) = true", p)
		}
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	_, err := NewFS(filepath.Join(t.TempDir(), "does-not-exist"))
	if err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "bibkit-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	_, err := NewFS(f.Name())
	if err == nil {
		t.Error("expected error when root is a file")
	}
}
