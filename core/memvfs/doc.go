/*
Package memvfs implements an in-memory virtual file system for SQLite.

Database files live entirely in process memory as sparse run stores
(see core/blockstore). The VFS type implements sqlite3vfs.VFS and its
File implements sqlite3vfs.File, so an instance can be registered with
any SQLite binding that dispatches through those interfaces:

	vfs := memvfs.New(memvfs.Options{})
	sqlite3vfs.RegisterVFS(vfs.Name(), vfs)
	db, err := sql.Open("sqlite3", "file:cool.db?vfs="+vfs.Name())

# Concurrency

The registry mutex guards only the name to entry map. Each entry owns a
mutex guarding its lock-state counts and the store pointer. Ordinary
handle reads and writes do not take the entry mutex; the engine's lock
protocol already serializes page access, and a handle performing I/O
holds at least a SHARED lock. Serialize and Deserialize take the entry
mutex themselves because they run outside any engine connection.

Lock acquisition never blocks. A refused level surfaces as
sqlite3vfs.BusyError and the engine retries through its busy handler.

# Serialization

Serialize streams the stored runs of one file as a lazy sequence of
non-empty chunks under a SHARED-equivalent lock, so concurrent readers
proceed while writers are held off. Deserialize builds a replacement
store off to the side, then swaps it in under an EXCLUSIVE-equivalent
lock. A failure while reading the source leaves the previous content
untouched.
*/
package memvfs
