package memvfs

import (
	"fmt"
	"io"

	"github.com/FocuswithJustin/memvfs/core/blockstore"
	"github.com/FocuswithJustin/memvfs/core/lockstate"
	"github.com/FocuswithJustin/memvfs/internal/logging"
)

// deserializeChunkSize is the read granularity when rebuilding a store
// from a stream. Chunk boundaries carry no meaning; any split of the
// same bytes produces identical content.
const deserializeChunkSize = 64 * 1024

// ChunkReader streams one file's content as a sequence of non-empty
// chunks. It holds a SHARED-equivalent lock from creation until EOF or
// Close, so writers are refused while a serialization is in flight but
// concurrent readers proceed. A ChunkReader is single-pass.
type ChunkReader struct {
	entry *entry
	lock  *lockstate.Handle
	off   int64
	done  bool
}

// Serialize begins streaming the named file. It returns ErrBusy
// (wrapped) when a writer holds PENDING or higher. The caller must
// drain the reader to EOF or Close it to release the lock.
func (v *VFS) Serialize(name string) (*ChunkReader, error) {
	e, err := v.lookup(name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	h := &lockstate.Handle{}
	if err := e.locks.Acquire(h, lockstate.Shared); err != nil {
		return nil, fmt.Errorf("serialize %s: %w", name, err)
	}
	return &ChunkReader{entry: e, lock: h}, nil
}

// Next returns the next chunk, or io.EOF after the last one. Chunks
// are never empty. The lock is released when EOF is reached.
func (r *ChunkReader) Next() ([]byte, error) {
	if r.done {
		return nil, io.EOF
	}

	r.entry.mu.Lock()
	off, data, ok := r.entry.store.NextRun(r.off)
	var chunk []byte
	if ok {
		chunk = make([]byte, len(data))
		copy(chunk, data)
		r.off = off + int64(len(data))
	}
	r.entry.mu.Unlock()

	if !ok {
		r.release()
		return nil, io.EOF
	}
	return chunk, nil
}

// Close releases the lock early. It is idempotent and safe after EOF.
func (r *ChunkReader) Close() error {
	r.release()
	return nil
}

func (r *ChunkReader) release() {
	if r.done {
		return
	}
	r.done = true
	r.entry.mu.Lock()
	r.entry.locks.Release(r.lock, lockstate.None)
	r.entry.mu.Unlock()
}

// SerializeTo writes the named file's content to w and returns the
// byte count.
func (v *VFS) SerializeTo(name string, w io.Writer) (int64, error) {
	cr, err := v.Serialize(name)
	if err != nil {
		return 0, err
	}
	defer cr.Close()

	var total int64
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := w.Write(chunk)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("serialize %s: %w", name, err)
		}
	}
}

// Deserialize replaces the named file's content with the bytes read
// from src, creating the file if needed. The replacement store is
// built completely before any lock is taken, so a failed read leaves
// the previous content untouched. The swap itself runs under an
// EXCLUSIVE-equivalent lock and returns ErrBusy (wrapped) while any
// reader holds SHARED or higher.
func (v *VFS) Deserialize(name string, src io.Reader) error {
	next := blockstore.New()
	buf := make([]byte, deserializeChunkSize)
	for {
		n, err := src.Read(buf)
		if n > 0 {
			next.Append(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("deserialize %s: %w", name, err)
		}
	}

	v.mu.Lock()
	e, ok := v.files[name]
	if !ok {
		e = v.newEntry()
		v.files[name] = e
	}
	v.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	h := &lockstate.Handle{}
	if err := e.locks.Acquire(h, lockstate.Exclusive); err != nil {
		// Undo any writer-starvation promotion; an internal handle
		// must not linger at PENDING.
		e.locks.Release(h, lockstate.None)
		return fmt.Errorf("deserialize %s: %w", name, err)
	}
	e.store = next
	logging.FileEvent("deserialize", v.name, name, "size", next.Size())
	return e.locks.Release(h, lockstate.None)
}
