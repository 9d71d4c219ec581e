// Package dump moves database content between a memvfs instance and
// real files on disk.
//
// A dump file is the raw serialized content of one virtual file,
// optionally xz-compressed. Restores detect compression from the file
// header, so a dump written with compression restores the same way as
// a plain one. Every dump write reports the blake3 digest of the
// uncompressed content, which is stable across compression settings.
package dump

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"

	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
	"github.com/FocuswithJustin/memvfs/core/memvfs"
	"github.com/FocuswithJustin/memvfs/internal/logging"
)

// xzHeader is the xz stream magic.
var xzHeader = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}

// Options configures dump writes.
type Options struct {
	// Compress wraps the dump in an xz stream.
	Compress bool
}

// WriteFile dumps the named virtual file to path and returns the
// blake3 digest of its uncompressed content. The dump is written to a
// temporary file in the target directory and renamed into place, so a
// failed write never leaves a partial dump at path.
func WriteFile(v *memvfs.VFS, name, path string, opts Options) (string, error) {
	cr, err := v.Serialize(name)
	if err != nil {
		return "", err
	}
	defer cr.Close()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", apperrors.NewIO("create directory for", path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".dump-*")
	if err != nil {
		return "", apperrors.NewIO("create temporary file for", path, err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	var w io.Writer = tmp
	var xzw *xz.Writer
	if opts.Compress {
		xzw, err = xz.NewWriter(tmp)
		if err != nil {
			return "", apperrors.NewIO("compress", path, err)
		}
		w = xzw
	}

	hasher := blake3.New()
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		hasher.Write(chunk)
		if _, err := w.Write(chunk); err != nil {
			return "", apperrors.NewIO("write", path, err)
		}
	}
	if xzw != nil {
		if err := xzw.Close(); err != nil {
			return "", apperrors.NewIO("compress", path, err)
		}
	}
	if err := tmp.Close(); err != nil {
		return "", apperrors.NewIO("write", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", apperrors.NewIO("rename", path, err)
	}

	digest := hex.EncodeToString(hasher.Sum(nil))
	logging.Info("dump written", "file", name, "path", path, "blake3", digest)
	return digest, nil
}

// RestoreFile loads path into the named virtual file, replacing any
// existing content. Compression is detected from the file header.
func RestoreFile(v *memvfs.VFS, name, path string) error {
	r, err := openMaybeCompressed(path)
	if err != nil {
		return err
	}
	defer r.Close()
	return v.Deserialize(name, r)
}

// WriteAll dumps every registered file under dir, one dump per file
// with the virtual name as its relative path. Names that escape dir
// are refused.
func WriteAll(v *memvfs.VFS, dir string, opts Options) error {
	for _, name := range v.FileNames() {
		if !safeRelName(name) {
			return apperrors.NewValidation("name", "escapes the dump directory: "+name)
		}
		if _, err := WriteFile(v, name, filepath.Join(dir, filepath.FromSlash(name)), opts); err != nil {
			return err
		}
	}
	return nil
}

// Digest returns the blake3 digest of path's uncompressed content.
func Digest(path string) (string, error) {
	r, err := openMaybeCompressed(path)
	if err != nil {
		return "", err
	}
	defer r.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", apperrors.NewIO("read", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// safeRelName reports whether name stays inside a dump directory when
// joined to it.
func safeRelName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

type readCloser struct {
	io.Reader
	io.Closer
}

// openMaybeCompressed opens path, transparently decompressing an xz
// stream.
func openMaybeCompressed(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &apperrors.NotFoundError{Resource: "dump", ID: path, Err: err}
		}
		return nil, apperrors.NewIO("open", path, err)
	}

	br := bufio.NewReader(f)
	head, err := br.Peek(len(xzHeader))
	if err != nil && err != io.EOF {
		f.Close()
		return nil, apperrors.NewIO("read", path, err)
	}
	if bytes.Equal(head, xzHeader) {
		xzr, err := xz.NewReader(br)
		if err != nil {
			f.Close()
			return nil, apperrors.NewIO("decompress", path, err)
		}
		return readCloser{Reader: xzr, Closer: f}, nil
	}
	return readCloser{Reader: br, Closer: f}, nil
}
