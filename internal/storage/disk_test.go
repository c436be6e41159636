package storage

import (
	"testing"
)

func TestDiskBlobStore_WriteReadExists(t *testing.T) {
	s, err := NewDiskBlobStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if s.Exists("a/b") {
		t.Error("missing key must not exist")
	}
	if err := s.Write("a/b", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("a/b") {
		t.Error("written key must exist")
	}
	data, err := s.Read("a/b")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("read = %q", data)
	}
}

func TestDiskBlobStore_Overwrite(t *testing.T) {
	s, _ := NewDiskBlobStore(t.TempDir())
	if err := s.Write("k", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write("k", []byte("two")); err != nil {
		t.Fatal(err)
	}
	data, _ := s.Read("k")
	if string(data) != "two" {
		t.Errorf("read = %q, want overwritten value", data)
	}
}

func TestDiskBlobStore_List(t *testing.T) {
	s, _ := NewDiskBlobStore(t.TempDir())
	for _, k := range []string{"v1/index.bin", "v1/meta.json", "v2/index.bin", "latest"} {
		if err := s.Write(k, []byte("x")); err != nil {
			t.Fatal(err)
		}
	}
	keys, err := s.List("v1/")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "v1/index.bin" || keys[1] != "v1/meta.json" {
		t.Errorf("keys = %v", keys)
	}
	all, _ := s.List("")
	if len(all) != 4 {
		t.Errorf("all keys = %v", all)
	}
}

func TestDiskBlobStore_Delete(t *testing.T) {
	s, _ := NewDiskBlobStore(t.TempDir())
	if err := s.Write("k", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if s.Exists("k") {
		t.Error("deleted key must not exist")
	}
	// Deleting a missing key is not an error.
	if err := s.Delete("k"); err != nil {
		t.Errorf("deleting missing key: %v", err)
	}
}

func TestDiskBlobStore_RejectsEscapingKeys(t *testing.T) {
	s, _ := NewDiskBlobStore(t.TempDir())
	for _, k := range []string{"../escape", "/abs/path", "."} {
		if err := s.Write(k, []byte("x")); err == nil {
			t.Errorf("key %q must be rejected", k)
		}
	}
}
