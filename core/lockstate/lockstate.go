// Package lockstate implements the five-level file locking protocol
// used by the database engine, for files that exist only inside a
// single process.
//
// Each file has one State holding aggregate counts, and each open
// handle owns a Handle tracking its current level. Acquisition never
// blocks: a refused request returns ErrBusy immediately and the caller
// retries on its own schedule. The machine performs no synchronization
// of its own; callers hold the per-file mutex around every call.
package lockstate

import "errors"

// Level is a lock level. Levels are ordered; a handle at a level
// implicitly holds every lower level except None.
type Level int

const (
	None Level = iota
	Shared
	Reserved
	Pending
	Exclusive
)

func (l Level) String() string {
	switch l {
	case None:
		return "NONE"
	case Shared:
		return "SHARED"
	case Reserved:
		return "RESERVED"
	case Pending:
		return "PENDING"
	case Exclusive:
		return "EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrBusy signals that a requested level is refused by current
	// holders. The refusal is synchronous; the caller retries.
	ErrBusy = errors.New("file is locked")

	// ErrProtocol signals a lock call that violates the protocol, such
	// as acquiring downward or releasing upward. It indicates a logic
	// error in the caller, not a recoverable condition.
	ErrProtocol = errors.New("lock protocol violation")
)

// Policy configures contention behavior shared by every handle of one
// file.
type Policy struct {
	// AllowSharedWhilePending permits new Shared acquisitions while
	// some handle holds Pending. When false (the default), a Pending
	// holder refuses new readers, and a refused Exclusive request is
	// promoted to Pending so a writer cannot be starved by a stream of
	// overlapping readers.
	AllowSharedWhilePending bool
}

// Handle tracks one file handle's current lock level.
type Handle struct {
	level Level
}

// Level returns the handle's current level.
func (h *Handle) Level() Level {
	return h.level
}

// State holds the aggregate lock accounting for one file.
type State struct {
	policy Policy

	// counts[l] is the number of handles holding a level at or above l.
	// counts[None] is unused.
	counts [Exclusive + 1]int
}

// New returns an empty lock state with the given policy.
func New(policy Policy) *State {
	return &State{policy: policy}
}

// Holders returns the number of handles holding a level at or above l.
func (s *State) Holders(l Level) int {
	if l <= None {
		return 0
	}
	return s.counts[l]
}

// others counts holders at or above l, excluding h itself.
func (s *State) others(h *Handle, l Level) int {
	n := s.counts[l]
	if h.level >= l {
		n--
	}
	return n
}

// raise moves h to target, incrementing every level in between.
func (s *State) raise(h *Handle, target Level) {
	for l := h.level + 1; l <= target; l++ {
		s.counts[l]++
	}
	h.level = target
}

// Acquire raises h to target. It is a no-op when h already holds
// target, and returns ErrProtocol when target is below the current
// level. On refusal it returns ErrBusy without changing h, except for
// the writer-starvation case: under the strict policy a refused
// Exclusive request with no existing Pending holder leaves h promoted
// to Pending, still returning ErrBusy.
func (s *State) Acquire(h *Handle, target Level) error {
	switch {
	case target == h.level:
		return nil
	case target < h.level:
		return ErrProtocol
	}

	switch target {
	case Shared:
		if s.counts[Exclusive] > 0 {
			return ErrBusy
		}
		if !s.policy.AllowSharedWhilePending && s.counts[Pending] > 0 {
			return ErrBusy
		}
	case Reserved:
		if s.others(h, Reserved) > 0 {
			return ErrBusy
		}
	case Pending:
		if s.others(h, Pending) > 0 {
			return ErrBusy
		}
	case Exclusive:
		if s.others(h, Shared) > 0 {
			if !s.policy.AllowSharedWhilePending && s.counts[Pending] == 0 {
				s.raise(h, Pending)
			}
			return ErrBusy
		}
	}

	s.raise(h, target)
	return nil
}

// Release lowers h to target, decrementing every level given up. It is
// a no-op when h already holds target, and returns ErrProtocol when
// target is above the current level. Counts are floored at zero.
func (s *State) Release(h *Handle, target Level) error {
	switch {
	case target == h.level:
		return nil
	case target > h.level:
		return ErrProtocol
	}

	for l := target + 1; l <= h.level; l++ {
		if s.counts[l] > 0 {
			s.counts[l]--
		}
	}
	h.level = target
	return nil
}
