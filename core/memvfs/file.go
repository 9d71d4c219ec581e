package memvfs

import (
	"errors"

	"github.com/psanford/sqlite3vfs"

	"github.com/FocuswithJustin/memvfs/core/blockstore"
	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
	"github.com/FocuswithJustin/memvfs/core/lockstate"
)

// File is one open handle on a virtual file. It implements
// sqlite3vfs.File. Handles are not safe for concurrent use with
// themselves; the engine serializes calls on a single handle.
type File struct {
	name  string
	entry *entry
	lock  *lockstate.Handle
}

var _ sqlite3vfs.File = (*File)(nil)

func newFile(name string, e *entry) *File {
	return &File{name: name, entry: e, lock: &lockstate.Handle{}}
}

// store snapshots the entry's current store pointer. Deserialize may
// swap the pointer under the entry mutex; the engine's lock protocol
// guarantees no handle is mid-I/O when that happens.
func (f *File) store() *blockstore.Store {
	f.entry.mu.Lock()
	s := f.entry.store
	f.entry.mu.Unlock()
	return s
}

// Close releases any lock still held. The engine unlocks before
// closing, so this is normally a no-op.
func (f *File) Close() error {
	f.entry.mu.Lock()
	defer f.entry.mu.Unlock()
	return f.entry.locks.Release(f.lock, lockstate.None)
}

// ReadAt copies stored bytes at off into p. When the range is not
// fully stored it returns n < len(p) with a nil error and zeroes the
// remainder of p; the dispatch layer reports the short read to the
// engine.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	n := f.store().ReadAt(p, off)
	if n < len(p) {
		clear(p[n:])
	}
	return n, nil
}

// WriteAt stores p at off. It cannot fail; memory is the medium.
func (f *File) WriteAt(p []byte, off int64) (int, error) {
	f.store().WriteAt(p, off)
	return len(p), nil
}

// Truncate discards content at or beyond size.
func (f *File) Truncate(size int64) error {
	f.store().Truncate(size)
	return nil
}

// Sync is a no-op; there is no durable medium to flush to.
func (f *File) Sync(flag sqlite3vfs.SyncType) error {
	return nil
}

// FileSize returns the end offset of the last stored run.
func (f *File) FileSize() (int64, error) {
	return f.store().Size(), nil
}

// Lock raises this handle's lock level. A refused level returns
// sqlite3vfs.BusyError synchronously; the engine retries through its
// busy handler.
func (f *File) Lock(elock sqlite3vfs.LockType) error {
	f.entry.mu.Lock()
	defer f.entry.mu.Unlock()

	if err := f.entry.locks.Acquire(f.lock, lockstate.Level(elock)); err != nil {
		if errors.Is(err, lockstate.ErrBusy) {
			return sqlite3vfs.BusyError
		}
		return err
	}
	return nil
}

// Unlock lowers this handle's lock level.
func (f *File) Unlock(elock sqlite3vfs.LockType) error {
	f.entry.mu.Lock()
	defer f.entry.mu.Unlock()
	return f.entry.locks.Release(f.lock, lockstate.Level(elock))
}

// CheckReservedLock reports whether any handle holds RESERVED or
// higher on this file.
func (f *File) CheckReservedLock() (bool, error) {
	f.entry.mu.Lock()
	defer f.entry.mu.Unlock()
	return f.entry.locks.Holders(lockstate.Reserved) > 0, nil
}

// SectorSize returns 0; memory has no meaningful sector granularity.
func (f *File) SectorSize() int64 {
	return 0
}

// DeviceCharacteristics returns 0. No capability bits are advertised;
// the engine assumes the most conservative device.
func (f *File) DeviceCharacteristics() sqlite3vfs.DeviceCharacteristic {
	return 0
}

// FileControl reports every custom operation as unhandled.
func (f *File) FileControl(op int, arg any) error {
	return apperrors.NewUnsupported("file control", "no custom operations")
}

// LockLevel returns the handle's current lock level.
func (f *File) LockLevel() lockstate.Level {
	f.entry.mu.Lock()
	defer f.entry.mu.Unlock()
	return f.lock.Level()
}
