// Package blockstore implements the sparse run store backing a single
// virtual database file.
//
// Content is held as non-overlapping byte runs keyed by their starting
// offset in an ordered index. Reads walk forward across contiguous runs
// and stop at the first gap, so a read may return fewer bytes than
// requested. Writes replace any overlapping region, splitting partially
// covered runs into a kept prefix and suffix around the written range.
//
// The store performs no synchronization of its own. Callers hold the
// per-file mutex (or rely on the engine's page-level serialization)
// around every call.
package blockstore

import (
	"github.com/google/btree"
)

// LockPageOffset is the byte offset of the locking page, which the
// database engine never reads or writes as ordinary data. Page-aligned
// writes skip straight over it, so a write landing exactly one page
// past this offset synthesizes a zero-filled run for the skipped page.
const LockPageOffset = 1 << 30

const btreeDegree = 16

// run is one contiguous stretch of bytes at a fixed offset.
type run struct {
	off  int64
	data []byte
}

func (r run) end() int64 {
	return r.off + int64(len(r.data))
}

func lessRun(a, b run) bool {
	return a.off < b.off
}

// Store is a sparse offset-keyed byte store.
type Store struct {
	runs *btree.BTreeG[run]
}

// New returns an empty store.
func New() *Store {
	return &Store{runs: btree.NewG(btreeDegree, lessRun)}
}

// Size returns the end offset of the last run, or 0 for an empty store.
// A trailing gap after the last run is not part of the size.
func (s *Store) Size() int64 {
	if r, ok := s.runs.Max(); ok {
		return r.end()
	}
	return 0
}

// Runs returns the number of stored runs.
func (s *Store) Runs() int {
	return s.runs.Len()
}

// runAt returns the run covering off, if any.
func (s *Store) runAt(off int64) (run, bool) {
	var cur run
	found := false
	s.runs.DescendLessOrEqual(run{off: off}, func(r run) bool {
		cur, found = r, true
		return false
	})
	if !found || cur.end() <= off {
		return run{}, false
	}
	return cur, true
}

// ReadAt copies stored bytes starting at off into p. It walks forward
// across contiguous runs and stops at the first gap or when p is full,
// returning the number of bytes copied. It never errors; a short count
// signals that the rest of the range is not stored.
func (s *Store) ReadAt(p []byte, off int64) int {
	n := 0
	for n < len(p) {
		cur, ok := s.runAt(off)
		if !ok {
			break
		}
		c := copy(p[n:], cur.data[off-cur.off:])
		n += c
		off += int64(c)
	}
	return n
}

// Read returns up to amount bytes starting at off. The result is
// shorter than amount when the range is not fully stored.
func (s *Store) Read(off int64, amount int) []byte {
	p := make([]byte, amount)
	n := s.ReadAt(p, off)
	return p[:n]
}

// WriteAt stores a copy of data at off, replacing any overlapping
// region. Runs partially covered by [off, off+len(data)) are split: the
// portion outside the written range survives as a new run. The set of
// affected runs is collected before any mutation.
func (s *Store) WriteAt(data []byte, off int64) {
	if len(data) == 0 {
		return
	}
	if off == LockPageOffset+int64(len(data)) {
		if _, covered := s.runAt(LockPageOffset); !covered {
			s.insert(make([]byte, len(data)), LockPageOffset)
		}
	}
	s.insert(data, off)
}

func (s *Store) insert(data []byte, off int64) {
	end := off + int64(len(data))

	var overlap []run
	if cur, ok := s.runAt(off); ok {
		overlap = append(overlap, cur)
	}
	s.runs.AscendGreaterOrEqual(run{off: off + 1}, func(r run) bool {
		if r.off >= end {
			return false
		}
		overlap = append(overlap, r)
		return true
	})

	for _, r := range overlap {
		s.runs.Delete(r)
		if r.off < off {
			s.runs.ReplaceOrInsert(run{off: r.off, data: r.data[:off-r.off]})
		}
		if r.end() > end {
			s.runs.ReplaceOrInsert(run{off: end, data: r.data[end-r.off:]})
		}
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	s.runs.ReplaceOrInsert(run{off: off, data: buf})
}

// Truncate discards everything at or beyond size. A run straddling the
// boundary keeps only its prefix.
func (s *Store) Truncate(size int64) {
	var drop []run
	s.runs.AscendGreaterOrEqual(run{off: size}, func(r run) bool {
		drop = append(drop, r)
		return true
	})
	for _, r := range drop {
		s.runs.Delete(r)
	}
	if size == 0 {
		return
	}
	if cur, ok := s.runAt(size - 1); ok && cur.end() > size {
		s.runs.Delete(cur)
		s.runs.ReplaceOrInsert(run{off: cur.off, data: cur.data[:size-cur.off]})
	}
}

// Append stores data as a new run immediately after the current size.
// It is the sequential build path for deserialization; empty chunks are
// ignored so the run set never contains an empty run.
func (s *Store) Append(data []byte) {
	if len(data) == 0 {
		return
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	s.runs.ReplaceOrInsert(run{off: s.Size(), data: buf})
}

// NextRun returns the first run starting at or after off. The returned
// slice is the store's own backing array; callers that retain it past
// the governing lock must copy.
func (s *Store) NextRun(off int64) (runOff int64, data []byte, ok bool) {
	s.runs.AscendGreaterOrEqual(run{off: off}, func(r run) bool {
		runOff, data, ok = r.off, r.data, true
		return false
	})
	return runOff, data, ok
}

// Ascend calls fn for each run in offset order until fn returns false.
func (s *Store) Ascend(fn func(off int64, data []byte) bool) {
	s.runs.Ascend(func(r run) bool {
		return fn(r.off, r.data)
	})
}
