// Package brb implements a bounded byte ring buffer (BRB) with blocking
// read/write, writer-finished signalling, reader wake-up and bilateral
// abort. Exactly one goroutine writes and one goroutine reads; a third,
// supervisory goroutine may call the control operations (Abort,
// SignalWriterFinished, WakeupReader, Reset).
//
// The original C implementation (ESP-IDF's basic_rb) multiplexes BRB and
// SRB handles behind a shared struct whose first field is a type tag, so
// a caller holding the wrong handle variant only fails at runtime. Ring
// here is its own Go type; SRB holds a *Ring field instead of sharing a tagged
// union, so a cross-cast is a compile error rather than a logged one.
package brb

import (
	"runtime"
	"sync"
	"time"

	"streambridge/pkg/rbcore"
)

// Ring is a bounded byte FIFO safe for exactly one reader goroutine and
// one writer goroutine, plus any number of control-operation callers.
type Ring struct {
	mu       sync.Mutex
	canRead  *sync.Cond
	canWrite *sync.Cond

	buf  []byte
	size int

	readPos  int
	writePos int
	filled   int

	abortRead      bool
	abortWrite     bool
	writerFinished bool
	readerUnblock  bool
}

// New allocates a ring buffer with the given capacity. size must be at
// least 2, matching the original rb_init contract.
func New(size int) (*Ring, error) {
	if size < 2 {
		return nil, rbcore.ErrInvalid
	}
	r := &Ring{
		buf:  make([]byte, size),
		size: size,
	}
	r.canRead = sync.NewCond(&r.mu)
	r.canWrite = sync.NewCond(&r.mu)
	return r, nil
}

// Close releases the backing buffer. The caller must guarantee no
// concurrent reader, writer or control operation is in flight; Close does
// not fence against them itself (fence by aborting and waiting for both
// sides to return first).
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = nil
}

// Filled returns the number of unread bytes currently in the buffer.
func (r *Ring) Filled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filled
}

// Available returns the number of bytes that can currently be written
// without blocking.
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size - r.filled
}

// Read copies up to len(dst) bytes into dst, blocking until either dst is
// full, the writer has finished, an abort or wakeup occurs, or timeout
// elapses. It returns the number of bytes copied. The matching sentinel
// from rbcore is returned only when an abort, writer-finished or wakeup
// ends a read that copied zero bytes; a partial read returns its count
// with a nil error, and a timeout never returns a sentinel.
func (r *Ring) Read(dst []byte, timeout time.Duration) (int, error) {
	return r.read(dst, len(dst), timeout)
}

// Discard behaves like Read but drops the bytes instead of copying them
// anywhere; it is the null-destination read used by SRB's drain.
func (r *Ring) Discard(n int, timeout time.Duration) (int, error) {
	return r.read(nil, n, timeout)
}

func (r *Ring) read(dst []byte, n int, timeout time.Duration) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Every exit from this function must clear readerUnblock, matching the
	// original's unconditional rb->reader_unblock = 0 at its single out:
	// label. Otherwise a WakeupReader racing a read that happens to be
	// fully satisfied from already-buffered data leaves the flag set, and
	// the next, unrelated blocking read spuriously returns ErrReaderUnblocked.
	defer func() { r.readerUnblock = false }()

	total := 0
	deadline := time.Now().Add(timeout)

	for {
		if r.abortRead {
			if total > 0 {
				return total, nil
			}
			return 0, rbcore.ErrAborted
		}

		readSize := r.filled
		if readSize > n {
			readSize = n
		}
		if readSize > 0 {
			r.copyOut(dst, total, readSize)
			r.readPos = (r.readPos + readSize) % r.size
			r.filled -= readSize
			n -= readSize
			total += readSize
			r.canWrite.Broadcast()
		}
		if n == 0 {
			return total, nil
		}

		if r.writerFinished {
			if total > 0 {
				return total, nil
			}
			return 0, rbcore.ErrWriterFinished
		}
		if r.readerUnblock {
			if total > 0 {
				return total, nil
			}
			return 0, rbcore.ErrReaderUnblocked
		}

		if !time.Now().Before(deadline) {
			// Zero (or elapsed) timeout: yield once so a caller polling
			// with a zero timeout cannot busy-loop a watchdog.
			r.mu.Unlock()
			runtime.Gosched()
			r.mu.Lock()
			return total, nil
		}

		waitWithDeadline(r.canRead, deadline)
	}
}

// Write copies up to len(src) bytes into the ring, blocking symmetrically
// to Read. src must be non-nil.
func (r *Ring) Write(src []byte, timeout time.Duration) (int, error) {
	if src == nil {
		return 0, rbcore.ErrInvalid
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	total := 0
	n := len(src)
	deadline := time.Now().Add(timeout)

	for {
		if r.abortWrite {
			if total > 0 {
				return total, nil
			}
			return 0, rbcore.ErrAborted
		}

		writeSize := r.size - r.filled
		if writeSize > n {
			writeSize = n
		}
		if writeSize > 0 {
			r.copyIn(src[total : total+writeSize])
			r.writePos = (r.writePos + writeSize) % r.size
			r.filled += writeSize
			n -= writeSize
			total += writeSize
			r.canRead.Broadcast()
		}
		if n == 0 {
			return total, nil
		}

		if r.writerFinished {
			// Pathological: the writer's own thread signalled finished
			// mid-write (or a supervisor did, racing this call).
			if total > 0 {
				return total, nil
			}
			return 0, rbcore.ErrWriterFinished
		}

		if !time.Now().Before(deadline) {
			r.mu.Unlock()
			runtime.Gosched()
			r.mu.Lock()
			return total, nil
		}

		waitWithDeadline(r.canWrite, deadline)
	}
}

// copyOut copies readSize bytes starting at the current read cursor into
// dst[offset:], splitting at the buffer wrap point. dst may be nil, in
// which case the bytes are discarded (used by Discard).
func (r *Ring) copyOut(dst []byte, offset, readSize int) {
	if dst == nil {
		return
	}
	first := readSize
	if r.readPos+first > r.size {
		first = r.size - r.readPos
	}
	copy(dst[offset:offset+first], r.buf[r.readPos:r.readPos+first])
	if first < readSize {
		copy(dst[offset+first:offset+readSize], r.buf[0:readSize-first])
	}
}

// copyIn copies src into the ring starting at the current write cursor,
// splitting at the buffer wrap point.
func (r *Ring) copyIn(src []byte) {
	writeSize := len(src)
	first := writeSize
	if r.writePos+first > r.size {
		first = r.size - r.writePos
	}
	copy(r.buf[r.writePos:r.writePos+first], src[:first])
	if first < writeSize {
		copy(r.buf[0:writeSize-first], src[first:writeSize])
	}
}

// Reset clears pointers, filled count and every flag; capacity is
// preserved. The caller is responsible for ensuring no read or write is
// in flight.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked(false, false)
}

// ResetAndAbortWrite atomically clears state and sets abortWrite, so no
// write can interleave between the reset and the abort becoming visible.
func (r *Ring) ResetAndAbortWrite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked(false, true)
	r.canWrite.Broadcast()
}

func (r *Ring) resetLocked(abortRead, abortWrite bool) {
	r.readPos = 0
	r.writePos = 0
	r.filled = 0
	r.writerFinished = false
	r.readerUnblock = false
	r.abortRead = abortRead
	r.abortWrite = abortWrite
}

// AbortRead fails every in-flight and future read with ErrAborted until
// Reset clears the flag.
func (r *Ring) AbortRead() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortRead = true
	r.canRead.Broadcast()
}

// AbortWrite fails every in-flight and future write with ErrAborted until
// Reset clears the flag.
func (r *Ring) AbortWrite() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortWrite = true
	r.canWrite.Broadcast()
}

// Abort sets both abort flags and wakes both waiters. Repeated calls are
// idempotent.
func (r *Ring) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.abortRead = true
	r.abortWrite = true
	r.canRead.Broadcast()
	r.canWrite.Broadcast()
}

// SignalWriterFinished marks end-of-stream: the reader will drain
// whatever remains, then see ErrWriterFinished on an otherwise-empty read.
func (r *Ring) SignalWriterFinished() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writerFinished = true
	r.canRead.Broadcast()
}

// IsWriterFinished reports whether SignalWriterFinished has been called
// since the last Reset.
func (r *Ring) IsWriterFinished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writerFinished
}

// WakeupReader forces a blocked Read to return early with
// ErrReaderUnblocked (if it has not already copied any bytes this call).
// The flag is transient: it is consumed by the next Read.
func (r *Ring) WakeupReader() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.readerUnblock = true
	r.canRead.Broadcast()
}

// waitWithDeadline waits on cond until either it is signalled or deadline
// passes. sync.Cond has no built-in timeout, so a timer broadcasts the
// condition once the deadline arrives; the caller always re-evaluates its
// own state after waking; the loop condition in Read/Write tells a real
// wakeup from a timer-induced one.
func waitWithDeadline(cond *sync.Cond, deadline time.Time) {
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}
	timer := time.AfterFunc(remaining, cond.Broadcast)
	defer timer.Stop()
	cond.Wait()
}
