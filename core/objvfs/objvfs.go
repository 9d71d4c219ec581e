// Package objvfs implements a virtual file system for SQLite backed by
// a remote object store.
//
// A database file is split into fixed 64 KiB blocks, each stored as one
// object keyed "<name>/<blockIndex>". Missing blocks read as zeros.
// Writes fetch the affected blocks, patch them, and re-upload whole
// blocks. File locking is left to the object store's consistency
// model: every lock operation succeeds immediately and reserved-lock
// probes report no holder, so this VFS is only safe for workloads that
// coordinate writers externally.
package objvfs

import (
	"strconv"
	"strings"

	"github.com/psanford/sqlite3vfs"

	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
)

// BlockSize is the fixed object granularity.
const BlockSize = 64 * 1024

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStore is the backing storage contract. Get returns an error
// satisfying errors.Is(err, apperrors.ErrNotFound) for a missing key.
type ObjectStore interface {
	Get(key string) ([]byte, error)
	Put(key string, data []byte) error
	Delete(key string) error
	List(prefix string) ([]ObjectInfo, error)
}

// Options configures a VFS instance.
type Options struct {
	// Name is the VFS registration name. Empty defaults to "objvfs".
	Name string
}

// VFS dispatches file operations onto an ObjectStore. It implements
// sqlite3vfs.VFS.
type VFS struct {
	name  string
	store ObjectStore
}

var _ sqlite3vfs.VFS = (*VFS)(nil)

// New creates a VFS over store.
func New(store ObjectStore, opts Options) *VFS {
	name := opts.Name
	if name == "" {
		name = "objvfs"
	}
	return &VFS{name: name, store: store}
}

// Name returns the VFS registration name.
func (v *VFS) Name() string {
	return v.name
}

// Open returns a handle on the named file. Files exist implicitly;
// reading an absent file yields zeros and the first write creates it.
func (v *VFS) Open(name string, flags sqlite3vfs.OpenFlag) (sqlite3vfs.File, sqlite3vfs.OpenFlag, error) {
	return &File{key: name, store: v.store}, flags, nil
}

// Delete removes every block of the named file. Deleting an absent
// file is a no-op.
func (v *VFS) Delete(name string, dirSync bool) error {
	infos, err := v.store.List(name + "/")
	if err != nil {
		return apperrors.Wrapf(err, "delete %s", name)
	}
	for _, info := range infos {
		if err := v.store.Delete(info.Key); err != nil {
			return apperrors.Wrapf(err, "delete %s", name)
		}
	}
	return nil
}

// Access reports whether any block exists for the named file.
// Permission probes always succeed.
func (v *VFS) Access(name string, flags sqlite3vfs.AccessFlag) (bool, error) {
	if flags != sqlite3vfs.AccessExists {
		return true, nil
	}
	infos, err := v.store.List(name + "/")
	if err != nil {
		return false, apperrors.Wrapf(err, "access %s", name)
	}
	return len(infos) > 0, nil
}

// FullPathname returns name unchanged.
func (v *VFS) FullPathname(name string) string {
	return name
}

// File is one open handle on an object-backed file. It implements
// sqlite3vfs.File.
type File struct {
	key   string
	store ObjectStore
}

var _ sqlite3vfs.File = (*File)(nil)

func (f *File) blockKey(idx int64) string {
	return f.key + "/" + strconv.FormatInt(idx, 10)
}

// blockIndex parses the index back out of an object key.
func (f *File) blockIndex(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, f.key+"/")
	if !ok {
		return 0, false
	}
	idx, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return idx, true
}

// readBlock fetches one block, padding short or missing objects with
// zeros to the full block size.
func (f *File) readBlock(idx int64) ([]byte, error) {
	data, err := f.store.Get(f.blockKey(idx))
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return make([]byte, BlockSize), nil
		}
		return nil, err
	}
	if len(data) < BlockSize {
		padded := make([]byte, BlockSize)
		copy(padded, data)
		return padded, nil
	}
	return data, nil
}

// Close is a no-op; handles hold no remote state.
func (f *File) Close() error {
	return nil
}

// ReadAt fills p from the blocks spanning [off, off+len(p)). Regions
// with no stored block read as zeros, so n is always len(p) on
// success.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		idx := off / BlockSize
		start := off % BlockSize
		block, err := f.readBlock(idx)
		if err != nil {
			return n, apperrors.Wrapf(err, "read %s block %d", f.key, idx)
		}
		c := copy(p[n:], block[start:])
		n += c
		off += int64(c)
	}
	return n, nil
}

// WriteAt patches the blocks spanning [off, off+len(p)) and re-uploads
// each in full.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	n := 0
	for n < len(p) {
		idx := off / BlockSize
		start := off % BlockSize
		block, err := f.readBlock(idx)
		if err != nil {
			return n, apperrors.Wrapf(err, "write %s block %d", f.key, idx)
		}
		c := copy(block[start:], p[n:])
		if err := f.store.Put(f.blockKey(idx), block); err != nil {
			return n, apperrors.Wrapf(err, "write %s block %d", f.key, idx)
		}
		n += c
		off += int64(c)
	}
	return n, nil
}

// Truncate deletes blocks wholly beyond size and trims a straddling
// block.
func (f *File) Truncate(size int64) error {
	infos, err := f.store.List(f.key + "/")
	if err != nil {
		return apperrors.Wrapf(err, "truncate %s", f.key)
	}

	keep := size / BlockSize
	rem := size % BlockSize

	for _, info := range infos {
		idx, ok := f.blockIndex(info.Key)
		if !ok {
			continue
		}
		switch {
		case idx > keep, idx == keep && rem == 0:
			if err := f.store.Delete(info.Key); err != nil {
				return apperrors.Wrapf(err, "truncate %s", f.key)
			}
		case idx == keep:
			block, err := f.store.Get(info.Key)
			if err != nil {
				return apperrors.Wrapf(err, "truncate %s", f.key)
			}
			if int64(len(block)) > rem {
				if err := f.store.Put(info.Key, block[:rem]); err != nil {
					return apperrors.Wrapf(err, "truncate %s", f.key)
				}
			}
		}
	}
	return nil
}

// Sync is a no-op; every write is already pushed to the store.
func (f *File) Sync(flag sqlite3vfs.SyncType) error {
	return nil
}

// FileSize sums the stored block sizes. Whole-block uploads round the
// size up to a block multiple; the engine reads the true size from the
// database header.
func (f *File) FileSize() (int64, error) {
	infos, err := f.store.List(f.key + "/")
	if err != nil {
		return 0, apperrors.Wrapf(err, "size %s", f.key)
	}
	var total int64
	for _, info := range infos {
		total += info.Size
	}
	return total, nil
}

// Lock always succeeds; coordination is external.
func (f *File) Lock(elock sqlite3vfs.LockType) error {
	return nil
}

// Unlock always succeeds.
func (f *File) Unlock(elock sqlite3vfs.LockType) error {
	return nil
}

// CheckReservedLock reports no holder.
func (f *File) CheckReservedLock() (bool, error) {
	return false, nil
}

// SectorSize returns 0.
func (f *File) SectorSize() int64 {
	return 0
}

// DeviceCharacteristics returns 0.
func (f *File) DeviceCharacteristics() sqlite3vfs.DeviceCharacteristic {
	return 0
}
