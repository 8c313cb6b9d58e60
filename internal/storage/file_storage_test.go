// internal/storage/file_storage_test.go
package storage

import (
	"path/filepath"
	"testing"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatalf("create storage: %v", err)
	}
	return fs
}

func TestSaveAndLoadJSON(t *testing.T) {
	fs := newTestStorage(t)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	in := payload{Name: "demo", Count: 3}

	if err := fs.SaveJSONFile("projects", "demo.json", in); err != nil {
		t.Fatalf("save: %v", err)
	}

	var out payload
	if err := fs.LoadJSONFile("projects", "demo.json", &out); err != nil {
		t.Fatalf("load: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: %+v != %+v", out, in)
	}
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	fs := newTestStorage(t)
	if err := fs.SaveTextFile("projects", "a.json", []byte("{}")); err != nil {
		t.Fatalf("save: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(fs.BaseDir, "projects", "*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}

func TestCacheServesFreshWrites(t *testing.T) {
	fs := newTestStorage(t)
	if err := fs.SaveTextFile("p", "f.txt", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.LoadTextFile("p", "f.txt"); err != nil {
		t.Fatal(err)
	}
	// A second save must invalidate the cached first version.
	if err := fs.SaveTextFile("p", "f.txt", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	data, err := fs.LoadTextFile("p", "f.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v2" {
		t.Fatalf("stale cache read: %q", data)
	}
}

func TestDeleteMissingFileFails(t *testing.T) {
	fs := newTestStorage(t)
	if err := fs.DeleteFile("projects", "nope.json"); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestListFiles(t *testing.T) {
	fs := newTestStorage(t)
	for _, name := range []string{"b.json", "a.json"} {
		if err := fs.SaveTextFile("projects", name, []byte("{}")); err != nil {
			t.Fatal(err)
		}
	}
	files, err := fs.ListFiles("projects")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || files[0] != "a.json" || files[1] != "b.json" {
		t.Fatalf("wrong listing: %v", files)
	}
}

func TestLoadMissingJSONFails(t *testing.T) {
	fs := newTestStorage(t)
	var v map[string]interface{}
	if err := fs.LoadJSONFile("projects", "absent.json", &v); err == nil {
		t.Fatal("expected an error")
	}
}
