package dump

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/psanford/sqlite3vfs"

	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
	"github.com/FocuswithJustin/memvfs/core/memvfs"
	"github.com/FocuswithJustin/memvfs/internal/sqlite"
)

// newVFSWithFile creates a VFS holding one file with content.
func newVFSWithFile(t *testing.T, name string, content []byte) *memvfs.VFS {
	t.Helper()
	v := memvfs.New(memvfs.Options{})
	if err := v.Deserialize(name, bytes.NewReader(content)); err != nil {
		t.Fatalf("Deserialize() = %v", err)
	}
	return v
}

func TestWriteRestoreRoundTrip(t *testing.T) {
	content := bytes.Repeat([]byte("round trip "), 10000)
	v := newVFSWithFile(t, "cool.db", content)
	path := filepath.Join(t.TempDir(), "cool.dump")

	digest, err := WriteFile(v, "cool.db", path, Options{})
	if err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
	if len(digest) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(digest))
	}

	// The on-disk dump is the raw content.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if !bytes.Equal(raw, content) {
		t.Error("dump file does not match content")
	}

	if err := RestoreFile(v, "restored.db", path); err != nil {
		t.Fatalf("RestoreFile() = %v", err)
	}
	var out bytes.Buffer
	if _, err := v.SerializeTo("restored.db", &out); err != nil {
		t.Fatalf("SerializeTo() = %v", err)
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Error("restored content does not match")
	}
}

func TestCompressedDump(t *testing.T) {
	content := bytes.Repeat([]byte("compressible "), 20000)
	v := newVFSWithFile(t, "cool.db", content)
	dir := t.TempDir()

	plainPath := filepath.Join(dir, "plain.dump")
	xzPath := filepath.Join(dir, "packed.dump")

	plainDigest, err := WriteFile(v, "cool.db", plainPath, Options{})
	if err != nil {
		t.Fatalf("WriteFile(plain) = %v", err)
	}
	xzDigest, err := WriteFile(v, "cool.db", xzPath, Options{Compress: true})
	if err != nil {
		t.Fatalf("WriteFile(compress) = %v", err)
	}

	// The digest covers uncompressed content, so it is identical.
	if plainDigest != xzDigest {
		t.Errorf("digests differ: %s vs %s", plainDigest, xzDigest)
	}

	raw, err := os.ReadFile(xzPath)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}
	if !bytes.HasPrefix(raw, xzHeader) {
		t.Error("compressed dump lacks xz magic")
	}
	if len(raw) >= len(content) {
		t.Errorf("compressed dump is %d bytes, want < %d", len(raw), len(content))
	}

	// Restore auto-detects compression.
	if err := RestoreFile(v, "restored.db", xzPath); err != nil {
		t.Fatalf("RestoreFile() = %v", err)
	}
	var out bytes.Buffer
	if _, err := v.SerializeTo("restored.db", &out); err != nil {
		t.Fatalf("SerializeTo() = %v", err)
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Error("restored content does not match")
	}
}

func TestDigest(t *testing.T) {
	content := []byte("digest me")
	v := newVFSWithFile(t, "cool.db", content)
	dir := t.TempDir()

	for _, tt := range []struct {
		name string
		opts Options
	}{
		{"plain", Options{}},
		{"compressed", Options{Compress: true}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".dump")
			want, err := WriteFile(v, "cool.db", path, tt.opts)
			if err != nil {
				t.Fatalf("WriteFile() = %v", err)
			}
			got, err := Digest(path)
			if err != nil {
				t.Fatalf("Digest() = %v", err)
			}
			if got != want {
				t.Errorf("Digest() = %s, want %s", got, want)
			}
		})
	}
}

func TestWriteAll(t *testing.T) {
	v := memvfs.New(memvfs.Options{})
	files := map[string][]byte{
		"top.db":         []byte("top level"),
		"a-test/cool.db": []byte("nested"),
	}
	for name, content := range files {
		if err := v.Deserialize(name, bytes.NewReader(content)); err != nil {
			t.Fatalf("Deserialize(%q) = %v", name, err)
		}
	}

	dir := t.TempDir()
	if err := WriteAll(v, dir, Options{}); err != nil {
		t.Fatalf("WriteAll() = %v", err)
	}

	for name, content := range files {
		raw, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			t.Fatalf("ReadFile(%q) = %v", name, err)
		}
		if !bytes.Equal(raw, content) {
			t.Errorf("dump of %q does not match", name)
		}
	}
}

func TestWriteAllRefusesEscapingNames(t *testing.T) {
	v := newVFSWithFile(t, "../evil.db", []byte("nope"))

	err := WriteAll(v, t.TempDir(), Options{})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("WriteAll() = %v, want ErrInvalidInput", err)
	}
}

func TestWriteFileMissing(t *testing.T) {
	v := memvfs.New(memvfs.Options{})
	path := filepath.Join(t.TempDir(), "out.dump")

	if _, err := WriteFile(v, "missing.db", path, Options{}); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("WriteFile(missing) = %v, want ErrNotFound", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed WriteFile left a file behind")
	}
}

func TestRestoreFileMissing(t *testing.T) {
	v := memvfs.New(memvfs.Options{})
	err := RestoreFile(v, "x.db", filepath.Join(t.TempDir(), "absent.dump"))
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("RestoreFile(absent) = %v, want ErrNotFound", err)
	}
}

// TestRealDatabaseRoundTrip builds a real database on disk, loads it
// into memory, reads it through a handle, dumps it back out, and
// verifies the dump is byte-identical and passes an integrity check.
func TestRealDatabaseRoundTrip(t *testing.T) {
	dir := t.TempDir()
	orig := filepath.Join(dir, "orig.db")

	db, err := sqlite.Open(orig)
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	if _, err := db.Exec(`CREATE TABLE songs (id INTEGER PRIMARY KEY, title TEXT)`); err != nil {
		t.Fatalf("Exec(create) = %v", err)
	}
	for i := 0; i < 200; i++ {
		if _, err := db.Exec(`INSERT INTO songs (title) VALUES ('track')`); err != nil {
			t.Fatalf("Exec(insert) = %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	want, err := os.ReadFile(orig)
	if err != nil {
		t.Fatalf("ReadFile() = %v", err)
	}

	v := memvfs.New(memvfs.Options{})
	if err := RestoreFile(v, "songs.db", orig); err != nil {
		t.Fatalf("RestoreFile() = %v", err)
	}

	// The in-memory copy is readable through the engine-facing handle.
	f, _, err := v.Open("songs.db", sqlite3vfs.OpenReadWrite|sqlite3vfs.OpenMainDB)
	if err != nil {
		t.Fatalf("Open handle = %v", err)
	}
	head := make([]byte, sqlite.HeaderSize)
	if _, err := f.ReadAt(head, 0); err != nil {
		t.Fatalf("ReadAt() = %v", err)
	}
	f.Close()
	h, err := sqlite.ParseHeader(head)
	if err != nil {
		t.Fatalf("ParseHeader() = %v", err)
	}
	if h.SizeBytes() != int64(len(want)) {
		t.Errorf("header size = %d, want %d", h.SizeBytes(), len(want))
	}

	out := filepath.Join(dir, "copy.db")
	if _, err := WriteFile(v, "songs.db", out, Options{}); err != nil {
		t.Fatalf("WriteFile() = %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile(copy) = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("dumped database is not byte-identical to the original")
	}

	results, err := sqlite.IntegrityCheck(out)
	if err != nil {
		t.Fatalf("IntegrityCheck() = %v", err)
	}
	if len(results) != 1 || results[0] != "ok" {
		t.Errorf("IntegrityCheck() = %v, want [ok]", results)
	}
}
