package store

import (
	"os"
	"path/filepath"
	"testing"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)
	if s.Dir() != dir {
		t.Errorf("Dir() = %q, want %q", s.Dir(), dir)
	}

	want := doc{Name: "focus", Count: 3}
	if err := s.Save("prefs", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got doc
	ok, err := s.Load("prefs", &got)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !ok {
		t.Fatal("Load() ok = false, want true")
	}
	if got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}
}

func TestFileStore_LoadMissing(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nonexistent"))

	var got doc
	ok, err := s.Load("prefs", &got)
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if ok {
		t.Error("Load() ok = true for missing document, want false")
	}
}

func TestFileStore_Delete(t *testing.T) {
	s := NewFileStore(t.TempDir())

	if err := s.Save("todos", doc{Name: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := s.Delete("todos"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var got doc
	if ok, _ := s.Load("todos", &got); ok {
		t.Error("Load() ok = true after Delete, want false")
	}

	// Deleting again is not an error.
	if err := s.Delete("todos"); err != nil {
		t.Errorf("Delete() second call error = %v, want nil", err)
	}
}

func TestFileStore_CorruptDocument(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	if err := os.WriteFile(filepath.Join(dir, "prefs.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	var got doc
	if _, err := s.Load("prefs", &got); err == nil {
		t.Error("Load() error = nil for corrupt document, want error")
	}
}
