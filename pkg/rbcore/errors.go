// Package rbcore holds the sentinel errors shared by the BRB and SRB ring
// buffer layers, so that callers can errors.Is against either without
// importing both packages.
package rbcore

import "errors"

var (
	// ErrAborted is returned when a read or write was cut short by Abort,
	// AbortRead or AbortWrite. Subsequent calls on the aborted side keep
	// returning it until Reset clears the flag.
	ErrAborted = errors.New("rbcore: operation aborted")

	// ErrWriterFinished is returned by a read that returned zero bytes
	// after the writer signalled completion. A read that returns a
	// partial count does not return this error; the next call does.
	ErrWriterFinished = errors.New("rbcore: writer finished")

	// ErrReaderUnblocked is returned when WakeupReader forced an early,
	// zero-byte return from a blocked read.
	ErrReaderUnblocked = errors.New("rbcore: reader unblocked")

	// ErrInvalid signals programmer error: a nil buffer on write, or a
	// capacity below 2 at construction time.
	ErrInvalid = errors.New("rbcore: invalid argument")

	// ErrFetchAnchor is returned by SRB.Read when the next byte available
	// to the reader lies at or past a pending anchor's offset. The caller
	// must pop the anchor with GetAnchor before reading further.
	ErrFetchAnchor = errors.New("rbcore: anchor pending, fetch before reading")

	// ErrNoAnchors is returned by SRB.GetAnchor when there is no anchor
	// whose offset has been reached yet.
	ErrNoAnchors = errors.New("rbcore: no anchor ready")
)
