package memvfs

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/psanford/sqlite3vfs"

	"github.com/FocuswithJustin/memvfs/core/blockstore"
	apperrors "github.com/FocuswithJustin/memvfs/core/errors"
	"github.com/FocuswithJustin/memvfs/core/lockstate"
	"github.com/FocuswithJustin/memvfs/internal/logging"
)

// Options configures a VFS instance.
type Options struct {
	// Name is the VFS registration name. Empty generates a unique
	// "memvfs-<uuid>" name so multiple instances can coexist in one
	// process.
	Name string

	// AllowSharedWhilePending relaxes the lock policy; see
	// lockstate.Policy.
	AllowSharedWhilePending bool
}

// entry is the per-file state shared by every handle opened on a name.
type entry struct {
	// mu guards locks and the store pointer. Ordinary handle I/O reads
	// the pointer under mu but performs store operations without it;
	// the engine's lock protocol serializes page access.
	mu    sync.Mutex
	store *blockstore.Store
	locks *lockstate.State
}

// VFS is an in-memory file system holding a set of named database
// files. It implements sqlite3vfs.VFS.
type VFS struct {
	name   string
	policy lockstate.Policy

	mu    sync.Mutex
	files map[string]*entry
}

var _ sqlite3vfs.VFS = (*VFS)(nil)

// New creates an empty VFS.
func New(opts Options) *VFS {
	name := opts.Name
	if name == "" {
		name = "memvfs-" + uuid.NewString()
	}
	return &VFS{
		name:   name,
		policy: lockstate.Policy{AllowSharedWhilePending: opts.AllowSharedWhilePending},
		files:  make(map[string]*entry),
	}
}

// Name returns the VFS registration name.
func (v *VFS) Name() string {
	return v.name
}

func (v *VFS) newEntry() *entry {
	return &entry{
		store: blockstore.New(),
		locks: lockstate.New(v.policy),
	}
}

// Open opens or creates the named file. An empty name opens an
// anonymous temporary file that is never registered and vanishes when
// the handle is dropped.
func (v *VFS) Open(name string, flags sqlite3vfs.OpenFlag) (sqlite3vfs.File, sqlite3vfs.OpenFlag, error) {
	if name == "" {
		return newFile("", v.newEntry()), flags, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	e, exists := v.files[name]
	if exists {
		if flags&sqlite3vfs.OpenCreate != 0 && flags&sqlite3vfs.OpenExclusive != 0 {
			return nil, 0, sqlite3vfs.CantOpenError
		}
	} else {
		if flags&sqlite3vfs.OpenCreate == 0 {
			return nil, 0, sqlite3vfs.CantOpenError
		}
		e = v.newEntry()
		v.files[name] = e
		logging.FileEvent("create", v.name, name)
	}

	return newFile(name, e), flags, nil
}

// Delete removes the named file from the registry. Content becomes
// unreachable for new opens; existing handles keep their entry.
func (v *VFS) Delete(name string, dirSync bool) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.files[name]; !ok {
		return apperrors.NewNotFound("file", name)
	}
	delete(v.files, name)
	logging.FileEvent("delete", v.name, name)
	return nil
}

// Access reports whether the named file exists. Read and write
// permission checks always succeed; everything in memory is readable
// and writable.
func (v *VFS) Access(name string, flags sqlite3vfs.AccessFlag) (bool, error) {
	if flags == sqlite3vfs.AccessExists {
		return v.Exists(name), nil
	}
	return true, nil
}

// FullPathname returns name unchanged. Names are opaque keys, not
// paths.
func (v *VFS) FullPathname(name string) string {
	return name
}

// Exists reports whether name is registered.
func (v *VFS) Exists(name string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.files[name]
	return ok
}

// FileNames returns the registered names in sorted order.
func (v *VFS) FileNames() []string {
	v.mu.Lock()
	defer v.mu.Unlock()

	names := make([]string, 0, len(v.files))
	for name := range v.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FileSize returns the content size of the named file.
func (v *VFS) FileSize(name string) (int64, error) {
	e, err := v.lookup(name)
	if err != nil {
		return 0, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Size(), nil
}

func (v *VFS) lookup(name string) (*entry, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	e, ok := v.files[name]
	if !ok {
		return nil, apperrors.NewNotFound("file", name)
	}
	return e, nil
}
