// Package srb layers anchors on top of a BRB byte ring: out-of-band
// markers placed at logical byte offsets that are handed back to the
// reader in order, at the exact offset they were placed at.
package srb

import (
	"errors"
	"sync"
	"time"

	"streambridge/pkg/brb"
	"streambridge/pkg/rbcore"
)

// defaultDrainPollInterval is used when New is called with a zero
// drainPollInterval, so existing callers that don't care about the exact
// tick still get sensible Drain behaviour.
const defaultDrainPollInterval = 20 * time.Millisecond

// Ring wraps a *brb.Ring with a monotonic read-offset counter and an
// ordered anchor list. Unlike the C source, which multiplexes BASIC and
// SPECIAL ring buffers behind one tagged struct, Ring is its own type
// that holds a *brb.Ring field by composition; there is no shared handle type
// to mis-cast.
type Ring struct {
	rb *brb.Ring

	// lock guards readOffset and the anchor list.
	lock sync.Mutex
	// readLock serialises consumer-side operations (Read, Drain, Reset)
	// against each other so a late PutAnchor during an in-flight read
	// behaves per the documented race in Read, not some worse one.
	readLock sync.Mutex

	readOffset uint64
	head       anchorNode // dummy; head.next is the first real anchor

	// drainPollInterval is the per-iteration timeout Drain gives the
	// underlying BRB read while waiting for the writer to catch up.
	drainPollInterval time.Duration
}

// New creates an SRB of the given byte capacity. drainPollInterval sets
// Drain's internal poll tick; a zero value uses defaultDrainPollInterval.
func New(size int, drainPollInterval time.Duration) (*Ring, error) {
	rb, err := brb.New(size)
	if err != nil {
		return nil, err
	}
	if drainPollInterval <= 0 {
		drainPollInterval = defaultDrainPollInterval
	}
	return &Ring{rb: rb, drainPollInterval: drainPollInterval}, nil
}

// Read returns bytes from the stream, clamped so it never crosses a
// pending anchor's offset. If the next byte due to the reader is at or
// past the head anchor's offset, Read returns ErrFetchAnchor without
// touching the underlying BRB; the caller must GetAnchor, then retry.
//
// A PutAnchor landing inside [readOffset, readOffset+clamped) after the
// SRB lock is released but before the BRB read completes is not rolled
// back: those bytes are delivered first, and the very next Read returns
// ErrFetchAnchor immediately because the distance will be <= 0. Callers
// that need the anchor strictly before those bytes must call
// PutAnchorAtCurrent before issuing the write that follows it.
func (r *Ring) Read(dst []byte, timeout time.Duration) (int, error) {
	r.readLock.Lock()
	defer r.readLock.Unlock()

	deadline := time.Now().Add(timeout)

	for {
		clamped := len(dst)
		r.lock.Lock()
		if r.head.next != nil {
			distance := int64(r.head.next.anchor.Offset) - int64(r.readOffset)
			if distance <= 0 {
				r.lock.Unlock()
				return 0, rbcore.ErrFetchAnchor
			}
			if int64(clamped) > distance {
				clamped = int(distance)
			}
		}
		r.lock.Unlock()

		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		n, err := r.rb.Read(dst[:clamped], remaining)
		if n > 0 {
			r.lock.Lock()
			r.readOffset += uint64(n)
			r.lock.Unlock()
			return n, err
		}

		// A PutAnchor landing at or behind readOffset wakes us via
		// WakeupReader; re-check for an anchor instead of surfacing
		// ErrReaderUnblocked to a caller that never asked to be woken.
		if errors.Is(err, rbcore.ErrReaderUnblocked) {
			r.lock.Lock()
			hasReadyAnchor := r.head.next != nil && int64(r.head.next.anchor.Offset)-int64(r.readOffset) <= 0
			r.lock.Unlock()
			if hasReadyAnchor {
				continue
			}
		}
		return n, err
	}
}

// Write passes bytes straight through to the underlying BRB; SRB adds no
// framing of its own to the byte stream.
func (r *Ring) Write(src []byte, timeout time.Duration) (int, error) {
	return r.rb.Write(src, timeout)
}

// PutAnchor inserts an anchor at its explicit logical offset. If that
// offset is at or before the current read offset, a reader blocked in
// Read is woken so it gets a chance to observe ErrFetchAnchor instead of
// blocking past an anchor it should have already seen.
func (r *Ring) PutAnchor(a Anchor) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.putAnchorLocked(a)
}

// PutAnchorAtCurrent inserts an anchor at the current write offset
// (readOffset + BRB.Filled()), computed while holding the lock that
// guards readOffset and the anchor list. Write does not take that lock,
// so bytes from a Write running concurrently on another goroutine may or
// may not be counted. It returns the anchor actually inserted, with
// Offset filled in.
func (r *Ring) PutAnchorAtCurrent(payload any) Anchor {
	r.lock.Lock()
	defer r.lock.Unlock()
	a := Anchor{Offset: r.readOffset + uint64(r.rb.Filled()), Payload: payload}
	r.putAnchorLocked(a)
	return a
}

func (r *Ring) putAnchorLocked(a Anchor) {
	if r.readOffset >= a.Offset {
		r.rb.WakeupReader()
	}
	insert(&r.head, a)
}

// GetAnchor pops the head anchor if its offset has been reached by the
// reader; otherwise it returns ErrNoAnchors.
func (r *Ring) GetAnchor() (Anchor, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	if r.head.next == nil {
		return Anchor{}, rbcore.ErrNoAnchors
	}
	if int64(r.head.next.anchor.Offset)-int64(r.readOffset) > 0 {
		return Anchor{}, rbcore.ErrNoAnchors
	}

	n := r.head.next
	r.head.next = n.next
	return n.anchor, nil
}

// Drain discards bytes until readOffset reaches drainUpto, or the BRB
// signals that no further progress is possible (writer finished or
// aborted). Anchors are never discarded by Drain: once readOffset passes
// an anchor's offset, the next Read returns ErrFetchAnchor for it, in
// offset order, exactly as if those bytes had been read normally.
func (r *Ring) Drain(drainUpto uint64) uint64 {
	r.readLock.Lock()
	defer r.readLock.Unlock()

	for {
		r.lock.Lock()
		if r.readOffset >= drainUpto {
			ro := r.readOffset
			r.lock.Unlock()
			return ro
		}
		remaining := drainUpto - r.readOffset
		r.lock.Unlock()

		n, err := r.rb.Discard(int(remaining), r.drainPollInterval)

		r.lock.Lock()
		if n > 0 {
			r.readOffset += uint64(n)
		}
		ro := r.readOffset
		stop := errors.Is(err, rbcore.ErrWriterFinished) || errors.Is(err, rbcore.ErrAborted)
		r.lock.Unlock()

		if stop {
			return ro
		}
	}
}

// ReadOffset returns the cumulative number of bytes returned to the
// reader since creation or the last ResetReadOffset.
func (r *Ring) ReadOffset() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.readOffset
}

// WriteOffset returns ReadOffset + the BRB's current filled count.
func (r *Ring) WriteOffset() uint64 {
	r.lock.Lock()
	ro := r.readOffset
	r.lock.Unlock()
	return ro + uint64(r.rb.Filled())
}

// Filled returns the underlying BRB's filled byte count.
func (r *Ring) Filled() int {
	return r.rb.Filled()
}

// Reset advances readOffset by the unread byte count, then empties the
// BRB. Anchors remain in the list; the next Read that reaches their
// offset still returns ErrFetchAnchor for them. Reset is non-blocking and
// drops unread bytes, unlike Drain which waits for the writer.
//
// The original special_rb.c left a known race here: srb_reset could run
// concurrently with an in-flight srb_read, which would update readOffset
// out from under the reset. Taking readLock here, matching Read's own
// readLock acquisition, closes that race by serialising Reset against any
// in-flight Read or Drain.
func (r *Ring) Reset() {
	r.readLock.Lock()
	defer r.readLock.Unlock()

	r.lock.Lock()
	defer r.lock.Unlock()

	if filled := r.rb.Filled(); filled > 0 {
		r.readOffset += uint64(filled)
	}
	r.rb.Reset()
}

// ResetReadOffset sets readOffset back to zero. Use only when the caller
// knows no anchors are outstanding; an anchor whose offset was relative
// to the old counter will no longer line up with the new one.
func (r *Ring) ResetReadOffset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.readOffset = 0
}

// Abort delegates to the underlying BRB, aborting both the read and
// write sides.
func (r *Ring) Abort() {
	r.rb.Abort()
}

// SignalWriterFinished delegates to the underlying BRB.
func (r *Ring) SignalWriterFinished() {
	r.rb.SignalWriterFinished()
}

// WakeupReader delegates to the underlying BRB.
func (r *Ring) WakeupReader() {
	r.rb.WakeupReader()
}
