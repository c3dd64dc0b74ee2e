package brb

import (
	"errors"
	"testing"
	"time"

	"streambridge/pkg/rbcore"
)

func TestNewRejectsUndersizedBuffer(t *testing.T) {
	if _, err := New(1); !errors.Is(err, rbcore.ErrInvalid) {
		t.Fatalf("New(1) error = %v, want ErrInvalid", err)
	}
	if _, err := New(0); !errors.Is(err, rbcore.ErrInvalid) {
		t.Fatalf("New(0) error = %v, want ErrInvalid", err)
	}
}

func TestBasicRoundTrip(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	if n, err := r.Write([]byte("HELLO"), time.Second); n != 5 || err != nil {
		t.Fatalf("Write = %d, %v, want 5, nil", n, err)
	}

	out := make([]byte, 5)
	n, err := r.Read(out, time.Second)
	if n != 5 || err != nil {
		t.Fatalf("Read = %d, %v, want 5, nil", n, err)
	}
	if string(out) != "HELLO" {
		t.Fatalf("Read contents = %q, want %q", out, "HELLO")
	}
	if got := r.Filled(); got != 0 {
		t.Fatalf("Filled() = %d, want 0", got)
	}
}

func TestWrapAround(t *testing.T) {
	r, err := New(8)
	if err != nil {
		t.Fatal(err)
	}

	if n, _ := r.Write([]byte("ABCDEF"), time.Second); n != 6 {
		t.Fatalf("first write = %d, want 6", n)
	}
	out := make([]byte, 4)
	if n, _ := r.Read(out, time.Second); n != 4 || string(out) != "ABCD" {
		t.Fatalf("first read = %d %q, want 4 ABCD", n, out)
	}
	if n, _ := r.Write([]byte("GHIJK"), time.Second); n != 5 {
		t.Fatalf("second write = %d, want 5", n)
	}

	out = make([]byte, 7)
	n, err := r.Read(out, time.Second)
	if err != nil || n != 7 {
		t.Fatalf("wrapped read = %d, %v, want 7, nil", n, err)
	}
	if string(out) != "EFGHIJK" {
		t.Fatalf("wrapped read contents = %q, want %q", out, "EFGHIJK")
	}
}

func TestWriterFinishedAfterPartialRead(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	if n, _ := r.Write([]byte("abc"), time.Second); n != 3 {
		t.Fatalf("write = %d, want 3", n)
	}
	r.SignalWriterFinished()

	out := make([]byte, 10)
	n, err := r.Read(out, 50*time.Millisecond)
	if n != 3 || err != nil {
		t.Fatalf("partial read = %d, %v, want 3, nil", n, err)
	}

	n, err = r.Read(out, 50*time.Millisecond)
	if n != 0 || !errors.Is(err, rbcore.ErrWriterFinished) {
		t.Fatalf("follow-up read = %d, %v, want 0, ErrWriterFinished", n, err)
	}
}

func TestAbortWakesBlockedReader(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var n int
	var readErr error
	go func() {
		out := make([]byte, 10)
		n, readErr = r.Read(out, 5*time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	r.AbortRead()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not wake up after AbortRead")
	}
	if n != 0 || !errors.Is(readErr, rbcore.ErrAborted) {
		t.Fatalf("aborted read = %d, %v, want 0, ErrAborted", n, readErr)
	}
}

func TestAbortIdempotent(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	r.Abort()
	r.Abort()

	if _, err := r.Write([]byte("x"), 10*time.Millisecond); !errors.Is(err, rbcore.ErrAborted) {
		t.Fatalf("write after double abort = %v, want ErrAborted", err)
	}
	if _, err := r.Read(make([]byte, 1), 10*time.Millisecond); !errors.Is(err, rbcore.ErrAborted) {
		t.Fatalf("read after double abort = %v, want ErrAborted", err)
	}
}

func TestWakeupReaderReturnsZeroWithoutData(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	var n int
	var readErr error
	go func() {
		out := make([]byte, 10)
		n, readErr = r.Read(out, 5*time.Second)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	r.WakeupReader()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader did not wake up after WakeupReader")
	}
	if n != 0 || !errors.Is(readErr, rbcore.ErrReaderUnblocked) {
		t.Fatalf("unblocked read = %d, %v, want 0, ErrReaderUnblocked", n, readErr)
	}
}

func TestWakeupReaderDuringFullySatisfiedReadDoesNotStickForNextRead(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	if n, err := r.Write([]byte("data"), time.Second); n != 4 || err != nil {
		t.Fatalf("Write = %d, %v, want 4, nil", n, err)
	}

	// Races WakeupReader against a Read that is fully satisfied from the
	// data already buffered above; that read must not need to consult the
	// unblock flag to return, but it must still clear it before returning.
	r.WakeupReader()

	out := make([]byte, 4)
	n, err := r.Read(out, time.Second)
	if n != 4 || err != nil {
		t.Fatalf("fully satisfied read = %d, %v, want 4, nil", n, err)
	}

	// A second, unrelated blocking read on an empty buffer must actually
	// wait out its timeout rather than immediately returning a stale
	// ErrReaderUnblocked left over from the first read.
	start := time.Now()
	n, err = r.Read(make([]byte, 4), 100*time.Millisecond)
	elapsed := time.Since(start)
	if n != 0 || err != nil {
		t.Fatalf("second read = %d, %v, want 0, nil (timeout)", n, err)
	}
	if elapsed < 80*time.Millisecond {
		t.Fatalf("second read returned after %v, want it to have waited out its timeout", elapsed)
	}
}

func TestZeroTimeoutPollsOnceWithoutBlocking(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	n, err := r.Read(make([]byte, 4), 0)
	if time.Since(start) > 200*time.Millisecond {
		t.Fatalf("zero-timeout read took %v, want near-instant", time.Since(start))
	}
	if n != 0 || err != nil {
		t.Fatalf("zero-timeout read on empty buffer = %d, %v, want 0, nil", n, err)
	}
}

func TestReadOfSizeZero(t *testing.T) {
	r, err := New(16)
	if err != nil {
		t.Fatal(err)
	}
	n, err := r.Read(nil, time.Second)
	if n != 0 || err != nil {
		t.Fatalf("zero-size read = %d, %v, want 0, nil", n, err)
	}
}

func TestFilledNeverExceedsCapacity(t *testing.T) {
	r, err := New(4)
	if err != nil {
		t.Fatal(err)
	}

	n, err := r.Write([]byte("ABCDEFGH"), 10*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("write into full buffer = %d, want 4 (clamped to capacity)", n)
	}
	if got := r.Filled(); got < 0 || got > 4 {
		t.Fatalf("Filled() = %d, want in [0,4]", got)
	}
}

func TestConcurrentProducerConsumerPreservesFIFO(t *testing.T) {
	r, err := New(32)
	if err != nil {
		t.Fatal(err)
	}

	const total = 10000
	payload := make([]byte, total)
	for i := range payload {
		payload[i] = byte(i)
	}

	go func() {
		off := 0
		for off < total {
			n, _ := r.Write(payload[off:min(off+7, total)], time.Second)
			off += n
		}
		r.SignalWriterFinished()
	}()

	got := make([]byte, 0, total)
	buf := make([]byte, 5)
	for {
		n, err := r.Read(buf, time.Second)
		got = append(got, buf[:n]...)
		if errors.Is(err, rbcore.ErrWriterFinished) {
			break
		}
	}

	if len(got) != total {
		t.Fatalf("total bytes read = %d, want %d", len(got), total)
	}
	for i, b := range got {
		if b != payload[i] {
			t.Fatalf("byte %d = %d, want %d (FIFO order violated)", i, b, payload[i])
		}
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
